// SPDX-License-Identifier: MIT
package engine

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"beatbox/internal/analysis"
	"beatbox/internal/audio"
	"beatbox/internal/calibration"
	"beatbox/internal/config"
	"beatbox/internal/events"
	"beatbox/pkg/utils"
)

func newTestHandle(t *testing.T, mutate func(*config.Config)) (*Handle, *audio.SimBackend) {
	t.Helper()
	cfg := config.NewConfig()
	if mutate != nil {
		mutate(cfg)
	}
	backend := audio.NewSimBackend()
	h, err := NewHandle(cfg, backend)
	if err != nil {
		t.Fatalf("NewHandle: %v", err)
	}
	t.Cleanup(func() { h.Close() })
	return h, backend
}

// feedSignal installs a capture source that plays the given samples
// once from frame zero, silence after.
func feedSignal(backend *audio.SimBackend, signal []float32) {
	backend.SetSource(func(start uint64, in []float32) {
		for i := range in {
			if idx := start + uint64(i); idx < uint64(len(signal)) {
				in[i] = signal[idx]
			}
		}
	})
}

// attackSignal is silence with a 1 kHz burst starting at offset.
func attackSignal(total, offset int) []float32 {
	signal := make([]float32, total)
	copy(signal[offset:], utils.GenerateSineWave(2048, 48000, 1000))
	return signal
}

// stepPaced advances the backend one period at a time with a short
// sleep so the analysis goroutine keeps up, the way a device clock
// would pace a real stream.
func stepPaced(t *testing.T, backend *audio.SimBackend, periods int) {
	t.Helper()
	for i := 0; i < periods; i++ {
		if err := backend.Step(1); err != nil {
			t.Fatalf("Step %d: %v", i, err)
		}
		time.Sleep(time.Millisecond)
	}
}

func waitForEvent(t *testing.T, sub *events.Subscription, typ events.Type, timeout time.Duration) events.Event {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case evt, ok := <-sub.C:
			if !ok {
				t.Fatal("subscription closed while waiting for event")
			}
			if evt.Type == typ {
				return evt
			}
		case <-deadline:
			t.Fatalf("no %s event within %s", typ, timeout)
		}
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestHandleEndToEndClassification(t *testing.T) {
	h, backend := newTestHandle(t, nil)
	feedSignal(backend, attackSignal(16384, 8200))

	sub := h.Subscribe(64)
	defer sub.Close()

	if err := h.Start(120); err != nil {
		t.Fatalf("Start: %v", err)
	}
	stepPaced(t, backend, 32)

	evt := waitForEvent(t, sub, events.TypeClassification, 5*time.Second)
	hit := evt.Data.(events.Classification)

	if hit.Sound != "kick" {
		t.Errorf("sound = %q, want kick", hit.Sound)
	}
	diff := int64(hit.Timestamp) - 8200
	if diff < -64 || diff > 64 {
		t.Errorf("timestamp = %d, want 8200 +/- 64", hit.Timestamp)
	}
	// ~8200 frames past the beat at frame 0 is ~171 ms late at 120 BPM.
	if hit.Timing != "late" {
		t.Errorf("timing = %q, want late", hit.Timing)
	}
	if hit.DeltaMS < 160 || hit.DeltaMS > 180 {
		t.Errorf("delta = %.1f ms, want ~171", hit.DeltaMS)
	}
	if hit.Confidence <= 0 {
		t.Errorf("confidence = %v, want > 0", hit.Confidence)
	}

	// With the stream quiet the pipeline drains everything back to the
	// free queue.
	waitFor(t, 2*time.Second, func() bool {
		return h.pool.FreeLen() == h.pool.Count()
	})

	if err := h.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if h.Stats().Running {
		t.Error("Stats reports running after Stop")
	}
}

func TestHandleStartStopErrors(t *testing.T) {
	h, _ := newTestHandle(t, nil)

	if err := h.Stop(); !errors.Is(err, audio.ErrNotRunning) {
		t.Errorf("Stop before Start = %v, want ErrNotRunning", err)
	}
	if err := h.Start(10); !errors.Is(err, audio.ErrTempoOutOfRange) {
		t.Errorf("Start(10) = %v, want ErrTempoOutOfRange", err)
	}

	// The failed start must leave the handle startable.
	if err := h.Start(120); err != nil {
		t.Fatalf("Start after failed Start: %v", err)
	}
	if err := h.Start(120); !errors.Is(err, audio.ErrAlreadyRunning) {
		t.Errorf("second Start = %v, want ErrAlreadyRunning", err)
	}

	if err := h.SetTempo(80); err != nil {
		t.Fatalf("SetTempo: %v", err)
	}
	if got := h.Stats().TempoBPM; got != 80 {
		t.Errorf("tempo = %d, want 80", got)
	}
	if err := h.SetTempo(500); !errors.Is(err, audio.ErrTempoOutOfRange) {
		t.Errorf("SetTempo(500) = %v, want ErrTempoOutOfRange", err)
	}

	if err := h.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	if err := h.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := h.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	closedCalls := map[string]error{
		"Start":            h.Start(120),
		"Stop":             h.Stop(),
		"SetTempo":         h.SetTempo(100),
		"StartCalibration": h.StartCalibration(),
		"ResetCalibration": h.ResetCalibration(),
		"ApplyPatch":       h.ApplyPatch(Patch{TempoBPM: intPtr(100)}),
	}
	for name, err := range closedCalls {
		if !errors.Is(err, ErrClosed) {
			t.Errorf("%s on closed handle = %v, want ErrClosed", name, err)
		}
	}
	if _, err := h.FinishCalibration(); !errors.Is(err, ErrClosed) {
		t.Errorf("FinishCalibration on closed handle = %v, want ErrClosed", err)
	}
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

func TestHandleApplyPatch(t *testing.T) {
	h, _ := newTestHandle(t, nil)
	def := analysis.DefaultThresholds()

	if err := h.ApplyPatch(Patch{}); !errors.Is(err, ErrEmptyPatch) {
		t.Errorf("empty patch = %v, want ErrEmptyPatch", err)
	}

	if err := h.ApplyPatch(Patch{TempoBPM: intPtr(90)}); err != nil {
		t.Fatalf("tempo patch: %v", err)
	}
	if got := h.Stats().TempoBPM; got != 90 {
		t.Errorf("tempo = %d, want 90", got)
	}

	// An invalid tempo rejects the whole patch: the threshold field
	// must not land.
	err := h.ApplyPatch(Patch{TempoBPM: intPtr(999), KickCentroid: floatPtr(2000)})
	if !errors.Is(err, audio.ErrTempoOutOfRange) {
		t.Fatalf("invalid tempo patch = %v, want ErrTempoOutOfRange", err)
	}
	if got := h.Thresholds(); got != def {
		t.Errorf("thresholds changed by a rejected patch: %+v", got)
	}

	if err := h.ApplyPatch(Patch{KickCentroid: floatPtr(2000), KickZCR: floatPtr(0.2)}); err != nil {
		t.Fatalf("threshold patch: %v", err)
	}
	got := h.Thresholds()
	if got.KickCentroid != 2000 || got.KickZCR != 0.2 {
		t.Errorf("patched thresholds = %+v", got)
	}
	if got.SnareCentroid != def.SnareCentroid || got.HihatZCR != def.HihatZCR {
		t.Errorf("unpatched fields changed: %+v", got)
	}
	if !got.Calibrated {
		t.Error("patched thresholds must be marked calibrated")
	}
}

func TestHandleCalibrationCommands(t *testing.T) {
	h, _ := newTestHandle(t, nil)

	if err := h.StartCalibration(); err != nil {
		t.Fatalf("StartCalibration: %v", err)
	}
	if phase, _, required := h.CalibrationProgress(); phase != calibration.PhaseRecordingKick || required != 10 {
		t.Errorf("progress = %s/%d, want recording_kick/10", phase, required)
	}
	if err := h.StartCalibration(); !errors.Is(err, calibration.ErrAlreadyInProgress) {
		t.Errorf("second StartCalibration = %v, want ErrAlreadyInProgress", err)
	}
	if _, err := h.FinishCalibration(); !errors.Is(err, calibration.ErrInsufficientSamples) {
		t.Errorf("FinishCalibration mid-phase = %v, want ErrInsufficientSamples", err)
	}

	if err := h.ResetCalibration(); err != nil {
		t.Fatalf("ResetCalibration: %v", err)
	}
	if phase, _, _ := h.CalibrationProgress(); phase != calibration.PhaseIdle {
		t.Errorf("phase after reset = %s, want idle", phase)
	}
	if _, err := h.FinishCalibration(); !errors.Is(err, calibration.ErrNotComplete) {
		t.Errorf("FinishCalibration after reset = %v, want ErrNotComplete", err)
	}
}

func TestHandleTelemetryEvents(t *testing.T) {
	h, _ := newTestHandle(t, func(cfg *config.Config) {
		cfg.Transport.TelemetryInterval = 10 * time.Millisecond
	})

	sub := h.Subscribe(64)
	defer sub.Close()

	first := waitForEvent(t, sub, events.TypeTelemetry, 2*time.Second).Data.(events.Telemetry)
	second := waitForEvent(t, sub, events.TypeTelemetry, 2*time.Second).Data.(events.Telemetry)

	if first.TempoBPM != 120 {
		t.Errorf("tempo = %d, want the configured 120", first.TempoBPM)
	}
	if first.FreeBuffers != 16 {
		t.Errorf("free buffers = %d, want the full pool of 16", first.FreeBuffers)
	}
	if second.FramesProcessed < first.FramesProcessed {
		t.Errorf("frame counter went backwards: %d then %d",
			first.FramesProcessed, second.FramesProcessed)
	}
}

func TestHandleRecordsInput(t *testing.T) {
	dir := t.TempDir()
	h, backend := newTestHandle(t, func(cfg *config.Config) {
		cfg.Recording.Enabled = true
		cfg.Recording.OutputDir = dir
	})

	path := h.RecordingPath()
	if path == "" {
		t.Fatal("RecordingPath is empty with recording enabled")
	}
	if !strings.HasSuffix(path, ".wav") || !strings.HasPrefix(filepath.Base(path), "beatbox-") {
		t.Errorf("unexpected recording name %q", path)
	}

	signal := make([]float32, 4096)
	for i := range signal {
		signal[i] = 0.25
	}
	feedSignal(backend, signal)

	if err := h.Start(120); err != nil {
		t.Fatalf("Start: %v", err)
	}
	stepPaced(t, backend, 8)

	waitFor(t, 2*time.Second, func() bool {
		return h.Stats().RecordedFrames >= 4096
	})

	if err := h.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("recording file: %v", err)
	}
	// 4096 16-bit samples plus the WAV header.
	if info.Size() < 8000 {
		t.Errorf("recording is %d bytes, want at least 8000", info.Size())
	}
}

func TestHandleBackpressureStaysConsistent(t *testing.T) {
	h, backend := newTestHandle(t, nil)

	if err := h.Start(120); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Step far faster than the pipeline drains. Drops are allowed; the
	// counters must stay monotone and the pool must reconcile.
	var lastDropped uint64
	for batch := 0; batch < 8; batch++ {
		if err := backend.Step(32); err != nil {
			t.Fatalf("Step batch %d: %v", batch, err)
		}
		dropped := h.Stats().DroppedFrames
		if dropped < lastDropped {
			t.Fatalf("dropped counter went backwards: %d then %d", lastDropped, dropped)
		}
		lastDropped = dropped
	}

	if got := h.Stats().FramesProcessed; got != 8*32*512 {
		t.Errorf("frames processed = %d, want %d", got, 8*32*512)
	}

	waitFor(t, 5*time.Second, func() bool {
		return h.pool.FreeLen() == h.pool.Count()
	})

	if err := h.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if free, filled := h.pool.FreeLen(), h.pool.FilledLen(); free+filled != h.pool.Count() {
		t.Errorf("pool lost buffers: %d free + %d filled != %d", free, filled, h.pool.Count())
	}
}
