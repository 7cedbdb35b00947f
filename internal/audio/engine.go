// SPDX-License-Identifier: MIT
/*
Package audio implements the real-time half of the trainer:
- Metronome click synthesis mixed in a full-duplex callback
- Lock-free capture handoff through a pooled SPSC queue
- Atomic tempo, frame counting and dropped-period accounting
- WAV recording of the capture stream (written off the callback)

Thread Safety:
- Start/Stop/SetTempo are safe from any non-real-time goroutine
- The callback uses atomics and pre-allocated buffers only
- Locks the OS thread during callback processing
*/
package audio

import (
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"beatbox/internal/config"
	"beatbox/internal/events"
	applog "beatbox/internal/log"
)

// Engine lifecycle states. Stopped -> Starting -> Running -> Stopped.
const (
	stateStopped int32 = iota
	stateStarting
	stateRunning
)

// Engine owns the duplex stream and the real-time callback. It renders
// the metronome click into the output and hands captured periods to the
// analysis side through the buffer pool.
type Engine struct {
	cfg     *config.Config
	backend Backend
	stream  Stream
	pool    *BufferPool
	met     *Metronome
	hub     *events.Hub

	state   atomic.Int32
	tempo   atomic.Uint32
	frames  atomic.Uint64
	dropped atomic.Uint64

	// Callback duration accounting for latency telemetry.
	cbTotalNS atomic.Int64
	cbMaxNS   atomic.Int64
	cbCount   atomic.Uint64

	// clickPos persists between callbacks so a click spans period
	// boundaries. Only the callback touches it while the stream runs.
	clickPos int

	sampleRate float64
}

// NewEngine wires the engine against a backend and a shared pool. The
// hub receives lifecycle events; the callback itself never publishes.
func NewEngine(cfg *config.Config, backend Backend, pool *BufferPool, hub *events.Hub) *Engine {
	met := NewMetronome(cfg.Audio.SampleRate)
	e := &Engine{
		cfg:        cfg,
		backend:    backend,
		pool:       pool,
		met:        met,
		hub:        hub,
		sampleRate: cfg.Audio.SampleRate,
		clickPos:   len(met.Click()),
	}
	e.tempo.Store(uint32(cfg.Audio.TempoBPM))
	return e
}

// Start validates the tempo, opens the duplex stream and begins
// processing. Returns ErrAlreadyRunning if the engine is not stopped.
func (e *Engine) Start(tempoBPM int) error {
	if tempoBPM < config.MinTempoBPM || tempoBPM > config.MaxTempoBPM {
		return fmt.Errorf("%w: %d bpm not in [%d, %d]",
			ErrTempoOutOfRange, tempoBPM, config.MinTempoBPM, config.MaxTempoBPM)
	}
	if !e.state.CompareAndSwap(stateStopped, stateStarting) {
		return ErrAlreadyRunning
	}

	e.tempo.Store(uint32(tempoBPM))
	e.frames.Store(0)
	e.dropped.Store(0)
	e.cbTotalNS.Store(0)
	e.cbMaxNS.Store(0)
	e.cbCount.Store(0)
	e.clickPos = len(e.met.Click())

	stream, err := e.backend.Open(StreamConfigFrom(e.cfg), e.process)
	if err != nil {
		e.state.Store(stateStopped)
		return err
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		e.state.Store(stateStopped)
		return err
	}

	e.stream = stream
	e.state.Store(stateRunning)
	e.hub.Publish(events.TypeLifecycle, events.Lifecycle{State: "started", TempoBPM: tempoBPM})
	applog.Infof("engine: started at %d BPM (%.0f Hz, %d frames/buffer)",
		tempoBPM, e.sampleRate, e.cfg.Audio.FramesPerBuffer)
	return nil
}

// Stop halts and closes the stream. Returns ErrNotRunning when there is
// nothing to stop. Safe from any non-real-time goroutine.
func (e *Engine) Stop() error {
	if !e.state.CompareAndSwap(stateRunning, stateStopped) {
		return ErrNotRunning
	}

	var err error
	if e.stream != nil {
		if serr := e.stream.Stop(); serr != nil {
			err = serr
		}
		if cerr := e.stream.Close(); cerr != nil && err == nil {
			err = cerr
		}
		e.stream = nil
	}

	e.hub.Publish(events.TypeLifecycle, events.Lifecycle{State: "stopped", TempoBPM: e.TempoBPM()})
	applog.Infof("engine: stopped after %d frames (%d dropped)",
		e.frames.Load(), e.dropped.Load())
	return err
}

// SetTempo changes the metronome tempo. The store is atomic and takes
// effect at the next callback; the stream keeps running, so the beat
// grid re-phases without an audio gap. Valid while running or stopped.
func (e *Engine) SetTempo(tempoBPM int) error {
	if tempoBPM < config.MinTempoBPM || tempoBPM > config.MaxTempoBPM {
		return fmt.Errorf("%w: %d bpm not in [%d, %d]",
			ErrTempoOutOfRange, tempoBPM, config.MinTempoBPM, config.MaxTempoBPM)
	}
	e.tempo.Store(uint32(tempoBPM))
	e.hub.Publish(events.TypeLifecycle, events.Lifecycle{State: "tempo_changed", TempoBPM: tempoBPM})
	return nil
}

// TempoBPM reports the current tempo.
func (e *Engine) TempoBPM() int {
	return int(e.tempo.Load())
}

// Running reports whether the stream is active.
func (e *Engine) Running() bool {
	return e.state.Load() == stateRunning
}

// FramesProcessed reports the absolute frame count since Start.
func (e *Engine) FramesProcessed() uint64 {
	return e.frames.Load()
}

// DroppedFrames reports capture frames dropped because the pool was
// exhausted or the filled queue was full. Monotonic while running.
func (e *Engine) DroppedFrames() uint64 {
	return e.dropped.Load()
}

// SampleRate reports the stream sample rate.
func (e *Engine) SampleRate() float64 {
	return e.sampleRate
}

// CallbackStats reports the average and maximum callback duration in
// milliseconds since Start.
func (e *Engine) CallbackStats() (avgMS, maxMS float64) {
	count := e.cbCount.Load()
	if count == 0 {
		return 0, 0
	}
	avgMS = float64(e.cbTotalNS.Load()) / float64(count) / 1e6
	maxMS = float64(e.cbMaxNS.Load()) / 1e6
	return avgMS, maxMS
}

// process is the duplex callback: mix the click into out, hand the
// captured period to the analysis side.
// Performance Critical (Hot Path):
// - Runs on the stream's OS thread (locked for the duration)
// - Atomics loaded once per period
// - Pre-allocated pool buffers only; an exhausted pool drops the period
//   and counts it, the callback never blocks or allocates
func (e *Engine) process(in, out []float32) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	begin := time.Now()

	spb := SamplesPerBeat(int(e.tempo.Load()), e.sampleRate)
	start := e.frames.Add(uint64(len(out))) - uint64(len(out))

	click := e.met.Click()
	clickPos := e.clickPos
	for i := range out {
		out[i] = 0
		if IsBeatFrame(start+uint64(i), spb) {
			clickPos = 0
		}
		if clickPos < len(click) {
			out[i] += click[clickPos]
			clickPos++
		}
	}
	e.clickPos = clickPos

	if buf, ok := e.pool.TakeFree(); ok {
		n := len(in)
		if n > cap(buf.Data) {
			n = cap(buf.Data)
		}
		buf.Data = buf.Data[:n]
		copy(buf.Data, in[:n])
		buf.Start = start
		if !e.pool.PushFilled(buf) {
			e.pool.ReturnFree(buf)
			e.dropped.Add(uint64(len(in)))
		}
	} else {
		e.dropped.Add(uint64(len(in)))
	}

	ns := time.Since(begin).Nanoseconds()
	e.cbTotalNS.Add(ns)
	e.cbCount.Add(1)
	for {
		max := e.cbMaxNS.Load()
		if ns <= max || e.cbMaxNS.CompareAndSwap(max, ns) {
			break
		}
	}
}
