// SPDX-License-Identifier: MIT
/*
Package analysis hosts the non-real-time half of the trainer: it drains
captured periods from the buffer pool and turns them into classified,
timed stroke events.

Processing chain per chunk:
- level metering (RMS) for telemetry
- onset detection by spectral flux over a sliding FFT window
- per onset: feature extraction over a fixed window, then either
  calibration sample collection or classification + beat quantization

Thread Safety:
- The pipeline goroutine owns every FFT workspace exclusively
- Thresholds are read through an atomic snapshot store
- Events leave through the hub, which never blocks the publisher
*/
package analysis

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"beatbox/internal/audio"
	"beatbox/internal/config"
	"beatbox/internal/events"
	applog "beatbox/internal/log"
)

// BufferSink receives every drained capture period, in stream order.
// The WAV recorder implements it.
type BufferSink interface {
	Write(samples []float32) error
}

// Calibrator consumes feature vectors while a calibration phase is
// recording. The calibration manager implements it.
type Calibrator interface {
	Recording() bool
	Collect(f Features) error
}

// Pipeline owns the analysis goroutine. It never blocks the audio
// callback: it only pops the filled queue and returns buffers to the
// free queue.
type Pipeline struct {
	cfg        *config.Config
	pool       *audio.BufferPool
	hub        *events.Hub
	store      *ThresholdStore
	quant      *Quantizer
	onsets     *OnsetDetector
	extractor  *FeatureExtractor
	calibrator Calibrator
	sink       BufferSink

	// chunk accumulates drained periods up to MinChunkSize.
	chunk      []float32
	chunkStart uint64

	// hist retains recent samples so an onset's feature window can
	// complete after the onset is confirmed.
	hist      []float32
	histStart uint64
	pending   []uint64

	rmsBits atomic.Uint64

	mu       sync.Mutex
	doneChan chan struct{}
	wg       sync.WaitGroup
	running  bool
}

// NewPipeline wires the analysis chain against a shared pool and hub.
// calibrator and sink may be nil.
func NewPipeline(cfg *config.Config, pool *audio.BufferPool, hub *events.Hub, store *ThresholdStore, tempo TempoSource, calibrator Calibrator, sink BufferSink) (*Pipeline, error) {
	windowType, err := ParseWindowFunc(cfg.Analysis.FFTWindow)
	if err != nil {
		applog.Warnf("analysis: %v, using Hann", err)
	}

	onsets, err := NewOnsetDetector(
		cfg.Analysis.WindowSize,
		cfg.Analysis.HopSize,
		cfg.Analysis.MedianHalfWindow,
		cfg.Analysis.ThresholdOffset,
		cfg.Audio.SampleRate,
		windowType,
	)
	if err != nil {
		return nil, err
	}
	extractor, err := NewFeatureExtractor(cfg.Analysis.FeatureWindowSize, cfg.Audio.SampleRate, windowType)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		cfg:        cfg,
		pool:       pool,
		hub:        hub,
		store:      store,
		quant:      NewQuantizer(tempo, cfg.Audio.SampleRate),
		onsets:     onsets,
		extractor:  extractor,
		calibrator: calibrator,
		sink:       sink,
		chunk:      make([]float32, 0, 2*cfg.Analysis.MinChunkSize),
		hist:       make([]float32, 0, 2*cfg.Analysis.FeatureWindowSize),
		pending:    make([]uint64, 0, 32),
	}, nil
}

// Start launches the drain goroutine. Restarting after Stop begins a
// fresh session: windowing state and history are cleared.
func (p *Pipeline) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}

	p.onsets.Reset()
	p.chunk = p.chunk[:0]
	p.hist = p.hist[:0]
	p.pending = p.pending[:0]
	p.rmsBits.Store(0)

	p.doneChan = make(chan struct{})
	p.running = true
	p.wg.Add(1)
	go p.loop()
	applog.Infof("analysis: pipeline started (chunk %d, onset window %d/%d, feature window %d)",
		p.cfg.Analysis.MinChunkSize, p.cfg.Analysis.WindowSize,
		p.cfg.Analysis.HopSize, p.cfg.Analysis.FeatureWindowSize)
}

// Stop signals the goroutine and waits for it to finish the in-flight
// buffer. Safe to call when not running.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	close(p.doneChan)
	p.running = false
	p.mu.Unlock()

	p.wg.Wait()
	applog.Infof("analysis: pipeline stopped")
}

// RMS reports the level of the most recent analysis chunk.
func (p *Pipeline) RMS() float64 {
	return math.Float64frombits(p.rmsBits.Load())
}

// LastFlux reports the detector's most recent spectral flux value.
func (p *Pipeline) LastFlux() float64 {
	return p.onsets.LastFlux()
}

func (p *Pipeline) loop() {
	defer p.wg.Done()

	for {
		select {
		case <-p.doneChan:
			return
		default:
		}

		buf, ok := p.pool.PopFilled()
		if !ok {
			// Nothing captured yet. The callback outpaces this loop by
			// design margins, so a short sleep is cheaper than a
			// condition handshake with the real-time side.
			time.Sleep(time.Millisecond)
			continue
		}
		p.ingest(buf)
	}
}

// ingest copies one capture period out of the pool and returns the
// buffer before any heavy processing happens.
func (p *Pipeline) ingest(buf *audio.Buffer) {
	if p.sink != nil {
		if err := p.sink.Write(buf.Data); err != nil {
			applog.Errorf("analysis: recording sink: %v", err)
		}
	}

	if len(p.chunk) > 0 && buf.Start != p.chunkStart+uint64(len(p.chunk)) {
		// Periods were dropped upstream. Process what accumulated so
		// far; the detector re-anchors at the new position.
		p.processChunk()
	}
	if len(p.chunk) == 0 {
		p.chunkStart = buf.Start
	}
	p.chunk = append(p.chunk, buf.Data...)
	p.pool.ReturnFree(buf)

	if len(p.chunk) >= p.cfg.Analysis.MinChunkSize {
		p.processChunk()
	}
}

func (p *Pipeline) processChunk() {
	if len(p.chunk) == 0 {
		return
	}
	chunk, start := p.chunk, p.chunkStart

	var sum float64
	for _, s := range chunk {
		sum += float64(s) * float64(s)
	}
	rms := math.Sqrt(sum / float64(len(chunk)))
	p.rmsBits.Store(math.Float64bits(rms))

	// Extend the feature history. A gap strands pending onsets: their
	// window tails were never captured.
	if len(p.hist) == 0 {
		p.histStart = start
	} else if start != p.histStart+uint64(len(p.hist)) {
		if n := len(p.pending); n > 0 {
			applog.Debugf("analysis: dropping %d pending onsets across a capture gap", n)
		}
		p.pending = p.pending[:0]
		p.hist = p.hist[:0]
		p.histStart = start
	}
	p.hist = append(p.hist, chunk...)

	for _, ts := range p.onsets.Feed(chunk, start) {
		if len(p.pending) == cap(p.pending) {
			copy(p.pending, p.pending[1:])
			p.pending = p.pending[:len(p.pending)-1]
		}
		p.pending = append(p.pending, ts)
	}
	p.chunk = p.chunk[:0]

	p.resolve(rms)

	// Trim history. Every pending onset still needs at most one
	// feature window of trailing samples, so keeping twice the window
	// never starves one.
	if max := 2 * p.extractor.WindowSize(); len(p.hist) > max {
		cut := len(p.hist) - max
		p.histStart += uint64(cut)
		p.hist = append(p.hist[:0], p.hist[cut:]...)
	}
}

// resolve completes pending onsets whose feature window has fully
// arrived and publishes the results.
func (p *Pipeline) resolve(rms float64) {
	histEnd := p.histStart + uint64(len(p.hist))
	size := uint64(p.extractor.WindowSize())

	kept := p.pending[:0]
	for _, ts := range p.pending {
		if ts < p.histStart {
			continue
		}
		if ts+size > histEnd {
			kept = append(kept, ts)
			continue
		}

		off := int(ts - p.histStart)
		f := p.extractor.Extract(p.hist[off : off+int(size)])

		p.hub.Publish(events.TypeOnset, events.Onset{
			Timestamp: ts,
			RMS:       rms,
			Centroid:  f.Centroid,
			ZCR:       f.ZCR,
			Flatness:  f.Flatness,
			Rolloff:   f.Rolloff,
			DecayMS:   f.DecayMS,
		})

		if p.calibrator != nil && p.calibrator.Recording() {
			if err := p.calibrator.Collect(f); err != nil {
				applog.Debugf("analysis: calibration sample rejected: %v", err)
			}
			continue
		}

		hit := Classify(f, p.store.Load(), p.cfg.Analysis.ClassifierLevel)
		fb := p.quant.Quantize(ts)
		p.hub.Publish(events.TypeClassification, events.Classification{
			Sound:      hit.Sound.String(),
			Timing:     fb.Timing.String(),
			DeltaMS:    fb.DeltaMS,
			Timestamp:  ts,
			Confidence: hit.Confidence,
		})
	}
	p.pending = kept
}
