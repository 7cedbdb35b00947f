package transport

import (
	"beatbox/internal/events"
	applog "beatbox/internal/log"
)

// LoggingTransport prints events through the application logger. It is
// the default egress when no network transport is enabled, so a plain
// terminal session still shows hits and calibration progress.
type LoggingTransport struct{}

// NewLoggingTransport creates a new LoggingTransport instance.
func NewLoggingTransport() *LoggingTransport {
	applog.Infof("Transport: Using LoggingTransport")
	return &LoggingTransport{}
}

// Send logs the event. Classification, calibration and lifecycle
// events print at info; the high-rate onset and telemetry streams stay
// at debug.
func (lt *LoggingTransport) Send(data any) error {
	evt, ok := data.(events.Event)
	if !ok {
		applog.Debugf("LoggingTransport: %+v", data)
		return nil
	}

	switch payload := evt.Data.(type) {
	case events.Classification:
		applog.Infof("hit: %-6s %-8s delta %+7.1f ms  confidence %.2f",
			payload.Sound, payload.Timing, payload.DeltaMS, payload.Confidence)
	case events.CalibrationProgress:
		applog.Infof("calibration: %s %d/%d", payload.Phase, payload.Collected, payload.Required)
	case events.Lifecycle:
		applog.Infof("engine: %s (tempo %d BPM)", payload.State, payload.TempoBPM)
	default:
		applog.Debugf("LoggingTransport: %s seq=%d %+v", evt.Type, evt.Seq, evt.Data)
	}
	return nil
}

// Close is a no-op for LoggingTransport.
func (lt *LoggingTransport) Close() error {
	return nil
}

// Ensure LoggingTransport satisfies the interface at compile time.
var _ Transport = (*LoggingTransport)(nil)
