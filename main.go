package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"beatbox/cmd"
	"beatbox/internal/audio"
	"beatbox/internal/engine"
	"beatbox/internal/events"
	applog "beatbox/internal/log"
	"beatbox/internal/transport"
	"beatbox/internal/transport/udp"
	"beatbox/internal/tui"
	"beatbox/pkg/build"
)

// main is the entry point for the beatbox trainer.
// The program flow is divided into three distinct phases:
//
// 1. Startup Phase (Cold Path):
//   - Initialize build information
//   - Configure runtime settings
//   - Parse command line arguments and load configuration
//   - Initialize PortAudio
//   - Execute one-off commands if requested
//
// 2. Concurrent Phase (Hot Path):
//   - Assemble the engine handle and event transports
//   - Start the duplex stream; the audio callback begins firing
//   - Run the calibration session, the terminal monitor, or headless
//
// 3. Shutdown Phase (Cold Path):
//   - Handle termination signals
//   - Stop the stream and flush the recording if active
//   - Clean up resources
func main() {
	// ==================== STARTUP PHASE (Cold Path) ====================

	// Build information is embedded via ldflags. A development build
	// without them still runs.
	if err := build.Initialize(); err != nil {
		applog.Warnf("build info: %v", err)
	}

	// Limit OS threads to optimize for real-time audio processing:
	// - One thread dedicated to the audio callback (time-critical)
	// - One thread for analysis, transports and I/O
	runtime.GOMAXPROCS(2)

	// Parse command line arguments and build configuration
	cfg, err := cmd.ParseArgs()
	if err != nil {
		applog.Fatalf("%v", err)
	}

	if level, ok := applog.ParseLevel(cfg.LogLevel); ok {
		applog.SetLevel(level)
	}

	// Initialize PortAudio subsystem
	if err := audio.Initialize(); err != nil {
		applog.Fatalf("%v", err)
	}
	defer audio.Terminate()

	// Handle one-off commands (e.g., device listing) that don't require
	// the audio engine to be running
	if cfg.Command == "list" {
		if err := audio.ListDevices(); err != nil {
			applog.Fatalf("%v", err)
		}
		return
	}

	// ==================== CONCURRENT PHASE (Hot Path) ====================

	// Setup signal handling for graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	handle, err := engine.NewHandle(cfg, audio.PortAudioBackend{})
	if err != nil {
		applog.Fatalf("%v", err)
	}
	defer handle.Close()

	// Event fan-out. The terminal monitor draws the feed itself, so the
	// stdout hit logger only runs headless.
	var sinks []transport.Transport
	if !cfg.TUIMode {
		sinks = append(sinks, transport.NewLoggingTransport())
	}
	if cfg.Transport.WebSocketEnabled {
		sinks = append(sinks, transport.NewWebSocketTransport(cfg.Transport.WebSocketPort))
	}
	fanout := transport.NewFanout(handle.Hub(), sinks...)
	fanout.Start()
	defer fanout.Close()

	if cfg.Transport.UDPEnabled {
		sender, err := udp.NewUDPSender(cfg.Transport.UDPTargetAddress)
		if err != nil {
			applog.Fatalf("%v", err)
		}
		defer sender.Close()
		publisher, err := udp.NewTelemetryPublisher(handle.Hub(), sender)
		if err != nil {
			applog.Fatalf("%v", err)
		}
		publisher.Start()
		defer publisher.Close()
	}

	// CRITICAL: Start of real-time audio processing. The first call to
	// Start triggers PortAudio to begin calling the callback function,
	// marking the start of the hot path.
	if err := handle.Start(cfg.Audio.TempoBPM); err != nil {
		applog.Fatalf("%v", err)
	}

	if path := handle.RecordingPath(); path != "" {
		applog.Infof("recording input to %s", path)
	}

	switch {
	case cfg.Command == "calibrate":
		if err := runCalibration(handle, done); err != nil {
			applog.Errorf("calibration: %v", err)
		}

	case cfg.TUIMode:
		if err := tui.StartMonitorUI(handle); err != nil {
			applog.Errorf("monitor: %v", err)
		}

	default:
		applog.Infof("trainer running at %d BPM, Ctrl+C to stop", cfg.Audio.TempoBPM)
		// Block until termination signal is received
		<-done
	}

	// ==================== SHUTDOWN PHASE (Cold Path) ====================

	if err := handle.Stop(); err != nil && !errors.Is(err, audio.ErrNotRunning) {
		applog.Errorf("stopping engine: %v", err)
	}

	if path := handle.RecordingPath(); path != "" {
		fmt.Printf("\nRecording saved to: %s\n", path)
	}
}

// runCalibration drives a guided calibration session on the console:
// prompt for each sound, echo progress as hits land, and print the
// resulting thresholds.
func runCalibration(h *engine.Handle, done <-chan os.Signal) error {
	sub := h.Subscribe(64)
	defer sub.Close()

	if err := h.StartCalibration(); err != nil {
		return err
	}

	fmt.Println("\nCalibration: hit each sound on the click when prompted. Ctrl+C aborts.")

	lastPhase := ""
	for {
		select {
		case <-done:
			fmt.Println("\nCalibration aborted.")
			return h.ResetCalibration()

		case evt, ok := <-sub.C:
			if !ok {
				return errors.New("event stream closed during calibration")
			}
			prog, isProgress := evt.Data.(events.CalibrationProgress)
			if evt.Type != events.TypeCalibration || !isProgress {
				continue
			}

			switch prog.Phase {
			case "recording_kick", "recording_snare", "recording_hihat":
				if prog.Phase != lastPhase {
					lastPhase = prog.Phase
					sound := strings.ToUpper(strings.TrimPrefix(prog.Phase, "recording_"))
					fmt.Printf("\nHit your %s %d times:\n", sound, prog.Required)
					continue
				}
				fmt.Printf("  %d/%d\n", prog.Collected, prog.Required)

			case "completed":
				thresholds, err := h.FinishCalibration()
				if err != nil {
					return err
				}
				fmt.Println("\nCalibration complete:")
				fmt.Printf("  kick:  centroid < %.0f Hz, zcr < %.3f\n", thresholds.KickCentroid, thresholds.KickZCR)
				fmt.Printf("  snare: centroid > %.0f Hz\n", thresholds.SnareCentroid)
				fmt.Printf("  hihat: zcr > %.3f\n", thresholds.HihatZCR)
				return nil
			}
		}
	}
}
