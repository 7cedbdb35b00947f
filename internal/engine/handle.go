// SPDX-License-Identifier: MIT
// Package engine assembles the trainer from its parts and exposes the
// command surface. A Handle owns the hub, the threshold store, the
// buffer pool, the audio engine, the analysis pipeline, the
// calibration manager and an optional recorder; callers construct one
// explicitly and pass it where it is needed.
package engine

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"beatbox/internal/analysis"
	"beatbox/internal/audio"
	"beatbox/internal/calibration"
	"beatbox/internal/config"
	"beatbox/internal/events"
	applog "beatbox/internal/log"
)

var (
	// ErrEmptyPatch is returned by ApplyPatch when no field is present.
	ErrEmptyPatch = errors.New("parameter patch has no fields")

	// ErrClosed is returned by commands on a closed handle.
	ErrClosed = errors.New("handle is closed")
)

// Patch carries optional parameter updates. Present fields apply
// together: the tempo through the engine's atomic store, the
// thresholds as one snapshot swap.
type Patch struct {
	TempoBPM      *int
	KickCentroid  *float64
	KickZCR       *float64
	SnareCentroid *float64
	HihatZCR      *float64
}

func (p Patch) empty() bool {
	return p.TempoBPM == nil && p.KickCentroid == nil && p.KickZCR == nil &&
		p.SnareCentroid == nil && p.HihatZCR == nil
}

// Stats is a point-in-time snapshot of the running system.
type Stats struct {
	Running         bool
	TempoBPM        int
	FramesProcessed uint64
	DroppedFrames   uint64
	FreeBuffers     int
	FilledBuffers   int
	RMS             float64
	CallbackAvgMS   float64
	CallbackMaxMS   float64
	RecordedFrames  uint64
}

// Handle is the assembled trainer.
type Handle struct {
	cfg   *config.Config
	hub   *events.Hub
	store *analysis.ThresholdStore
	pool  *audio.BufferPool
	eng   *audio.Engine
	pipe  *analysis.Pipeline
	calib *calibration.Manager
	rec   *audio.Recorder

	recPath string

	mu        sync.Mutex
	closed    bool
	telemDone chan struct{}
	wg        sync.WaitGroup
}

// NewHandle builds the full component graph against the given backend.
// When recording is enabled a timestamped WAV file is created under
// the configured directory and tapped into the analysis pipeline.
func NewHandle(cfg *config.Config, backend audio.Backend) (*Handle, error) {
	hub := events.NewHub(0)
	store := analysis.NewThresholdStore()
	pool := audio.NewBufferPool(cfg.Audio.BufferCount, cfg.Audio.BufferSize)
	eng := audio.NewEngine(cfg, backend, pool, hub)
	calib := calibration.NewManager(cfg, store, hub)

	var rec *audio.Recorder
	var recPath string
	var sink analysis.BufferSink
	if cfg.Recording.Enabled {
		if err := os.MkdirAll(cfg.Recording.OutputDir, 0o755); err != nil {
			hub.Close()
			return nil, fmt.Errorf("create recording directory: %w", err)
		}
		recPath = filepath.Join(cfg.Recording.OutputDir,
			fmt.Sprintf("beatbox-%s.wav", time.Now().Format("20060102-150405")))
		var err error
		rec, err = audio.NewRecorder(recPath, cfg.Audio.SampleRate, cfg.Recording.BitDepth,
			time.Duration(cfg.Recording.MaxDuration)*time.Second)
		if err != nil {
			hub.Close()
			return nil, err
		}
		sink = rec
		applog.Infof("handle: recording input to %s", recPath)
	}

	pipe, err := analysis.NewPipeline(cfg, pool, hub, store, eng, calib, sink)
	if err != nil {
		if rec != nil {
			rec.Close()
		}
		hub.Close()
		return nil, err
	}

	h := &Handle{
		cfg:       cfg,
		hub:       hub,
		store:     store,
		pool:      pool,
		eng:       eng,
		pipe:      pipe,
		calib:     calib,
		rec:       rec,
		recPath:   recPath,
		telemDone: make(chan struct{}),
	}

	h.wg.Add(1)
	go h.telemetryLoop()
	return h, nil
}

// Start launches the analysis pipeline, then the audio stream. The
// pipeline goes first so the filled queue has a consumer before the
// callback produces its first period.
func (h *Handle) Start(tempoBPM int) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrClosed
	}
	if h.eng.Running() {
		return audio.ErrAlreadyRunning
	}

	h.pipe.Start()
	if err := h.eng.Start(tempoBPM); err != nil {
		h.pipe.Stop()
		return err
	}
	return nil
}

// Stop halts the audio stream, then drains and stops the pipeline.
func (h *Handle) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrClosed
	}
	if err := h.eng.Stop(); err != nil {
		return err
	}
	h.pipe.Stop()
	return nil
}

// SetTempo changes the metronome tempo without interrupting the
// stream.
func (h *Handle) SetTempo(tempoBPM int) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrClosed
	}
	return h.eng.SetTempo(tempoBPM)
}

// StartCalibration begins a guided calibration session.
func (h *Handle) StartCalibration() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrClosed
	}
	return h.calib.Start()
}

// FinishCalibration computes and publishes the calibrated thresholds.
func (h *Handle) FinishCalibration() (analysis.Thresholds, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return analysis.Thresholds{}, ErrClosed
	}
	return h.calib.Finish()
}

// ResetCalibration abandons the current calibration session.
func (h *Handle) ResetCalibration() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrClosed
	}
	h.calib.Reset()
	return nil
}

// CalibrationProgress reports the calibration machine position.
func (h *Handle) CalibrationProgress() (phase calibration.Phase, collected, required int) {
	return h.calib.Progress()
}

// ApplyPatch applies a partial parameter update. An empty patch is
// rejected; an invalid tempo rejects the whole patch. Threshold fields
// land as a single snapshot swap marked calibrated.
func (h *Handle) ApplyPatch(p Patch) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrClosed
	}
	if p.empty() {
		return ErrEmptyPatch
	}

	if p.TempoBPM != nil {
		if err := h.eng.SetTempo(*p.TempoBPM); err != nil {
			return err
		}
	}

	if p.KickCentroid != nil || p.KickZCR != nil || p.SnareCentroid != nil || p.HihatZCR != nil {
		t := h.store.Load()
		if p.KickCentroid != nil {
			t.KickCentroid = *p.KickCentroid
		}
		if p.KickZCR != nil {
			t.KickZCR = *p.KickZCR
		}
		if p.SnareCentroid != nil {
			t.SnareCentroid = *p.SnareCentroid
		}
		if p.HihatZCR != nil {
			t.HihatZCR = *p.HihatZCR
		}
		t.Calibrated = true
		h.store.Store(t)
		applog.Infof("handle: thresholds patched (kick %.0f Hz/%.3f, snare %.0f Hz, hihat %.3f)",
			t.KickCentroid, t.KickZCR, t.SnareCentroid, t.HihatZCR)
	}
	return nil
}

// Subscribe attaches an event consumer with the given channel buffer.
func (h *Handle) Subscribe(buffer int) *events.Subscription {
	return h.hub.Subscribe(buffer)
}

// Hub exposes the event hub for transports.
func (h *Handle) Hub() *events.Hub {
	return h.hub
}

// Thresholds reports the classifier thresholds currently in effect.
func (h *Handle) Thresholds() analysis.Thresholds {
	return h.store.Load()
}

// RecordingPath reports where the input capture is being written, or
// "" when recording is disabled.
func (h *Handle) RecordingPath() string {
	return h.recPath
}

// SampleRate reports the stream sample rate in Hz. Frame timestamps in
// classification events divide by this to get seconds.
func (h *Handle) SampleRate() float64 {
	return h.eng.SampleRate()
}

// Stats snapshots the engine, pool and pipeline counters.
func (h *Handle) Stats() Stats {
	avgMS, maxMS := h.eng.CallbackStats()
	s := Stats{
		Running:         h.eng.Running(),
		TempoBPM:        h.eng.TempoBPM(),
		FramesProcessed: h.eng.FramesProcessed(),
		DroppedFrames:   h.eng.DroppedFrames(),
		FreeBuffers:     h.pool.FreeLen(),
		FilledBuffers:   h.pool.FilledLen(),
		RMS:             h.pipe.RMS(),
		CallbackAvgMS:   avgMS,
		CallbackMaxMS:   maxMS,
	}
	if h.rec != nil {
		s.RecordedFrames = h.rec.Written()
	}
	return s
}

// Close stops everything and releases the recorder and the hub.
// Idempotent.
func (h *Handle) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.mu.Unlock()

	var firstErr error
	if h.eng.Running() {
		if err := h.eng.Stop(); err != nil {
			firstErr = err
		}
	}
	h.pipe.Stop()

	close(h.telemDone)
	h.wg.Wait()

	if h.rec != nil {
		if err := h.rec.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	h.hub.Close()
	return firstErr
}

// telemetryLoop publishes periodic snapshots until the handle closes.
func (h *Handle) telemetryLoop() {
	defer h.wg.Done()

	interval := h.cfg.Transport.TelemetryInterval
	if interval <= 0 {
		interval = config.DefaultTelemetryInterval
		applog.Warnf("handle: invalid telemetry interval, defaulting to %s", interval)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s := h.Stats()
			h.hub.Publish(events.TypeTelemetry, events.Telemetry{
				TempoBPM:        s.TempoBPM,
				FramesProcessed: s.FramesProcessed,
				DroppedFrames:   s.DroppedFrames,
				FreeBuffers:     s.FreeBuffers,
				FilledBuffers:   s.FilledBuffers,
				RMS:             s.RMS,
				CallbackAvgMS:   s.CallbackAvgMS,
				CallbackMaxMS:   s.CallbackMaxMS,
			})
		case <-h.telemDone:
			return
		}
	}
}
