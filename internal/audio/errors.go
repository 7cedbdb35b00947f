package audio

import "errors"

// Control-surface errors. The real-time callback never returns errors;
// failures there are counted and surfaced through telemetry instead.
var (
	// ErrTempoOutOfRange is returned when a tempo falls outside the
	// supported practice range.
	ErrTempoOutOfRange = errors.New("tempo outside supported range")

	// ErrAlreadyRunning is returned by Start when the engine is running.
	ErrAlreadyRunning = errors.New("engine already running, call Stop first")

	// ErrNotRunning is returned by Stop when there is nothing to stop.
	ErrNotRunning = errors.New("engine not running")

	// ErrHardware wraps device discovery and selection failures.
	ErrHardware = errors.New("audio hardware unavailable")

	// ErrStreamOpen wraps failures to open the duplex stream.
	ErrStreamOpen = errors.New("failed to open duplex stream")

	// ErrStreamFailure wraps failures of an already-open stream.
	ErrStreamFailure = errors.New("audio stream failed")

	// ErrInvalidDevice is returned for device IDs outside the device list.
	ErrInvalidDevice = errors.New("invalid device ID")
)
