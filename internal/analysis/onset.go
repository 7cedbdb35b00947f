package analysis

import (
	"fmt"
	"sort"
)

// OnsetDetector finds percussive attacks in the capture stream. It
// slides a Hann-windowed FFT over the signal by a fixed hop, measures
// spectral flux between consecutive windows and flags flux values that
// are strict local maxima above an adaptive median threshold.
//
// Owned by the analysis goroutine; not safe for concurrent use.
// Indefinite silence is a valid steady state and never errors.
type OnsetDetector struct {
	spec    *Spectrum
	hop     int
	halfWin int
	offset  float64

	buf      []float32 // samples awaiting a full window
	bufStart uint64    // absolute frame index of buf[0]
	primed   bool

	prevMag  []float64
	havePrev bool
	run      int // consecutive flux values since the last discontinuity

	flux    []float64 // trailing flux history, newest last
	fluxCap int
	scratch []float64 // median working copy

	lastFlux float64
	out      []uint64
}

// NewOnsetDetector builds a detector for the given analysis geometry.
// windowSize must be a power of two; hopSize must be in (0, windowSize].
func NewOnsetDetector(windowSize, hopSize, medianHalfWindow int, thresholdOffset, sampleRate float64, windowType WindowFunc) (*OnsetDetector, error) {
	if hopSize <= 0 || hopSize > windowSize {
		return nil, fmt.Errorf("hop size must be in (0, %d], got %d", windowSize, hopSize)
	}
	if medianHalfWindow < 1 {
		return nil, fmt.Errorf("median half window must be at least 1, got %d", medianHalfWindow)
	}

	spec, err := NewSpectrum(windowSize, sampleRate, windowType)
	if err != nil {
		return nil, err
	}

	span := 2*medianHalfWindow + 1
	return &OnsetDetector{
		spec:    spec,
		hop:     hopSize,
		halfWin: medianHalfWindow,
		offset:  thresholdOffset,
		prevMag: make([]float64, spec.Bins()),
		fluxCap: span + 99,
		flux:    make([]float64, 0, span+99),
		scratch: make([]float64, span),
	}, nil
}

// Feed consumes the next capture samples beginning at absolute frame
// start and returns the timestamps of any confirmed onsets. The
// returned slice is reused by the next call. A gap in the stream
// (dropped periods upstream) restarts the windowing at the new
// position; the flux history keeps the threshold adapted.
func (d *OnsetDetector) Feed(samples []float32, start uint64) []uint64 {
	d.out = d.out[:0]

	if !d.primed {
		d.bufStart = start
		d.primed = true
	} else if start != d.bufStart+uint64(len(d.buf)) {
		d.buf = d.buf[:0]
		d.bufStart = start
		d.havePrev = false
		d.run = 0
	}
	d.buf = append(d.buf, samples...)

	size := d.spec.Size()
	consumed := 0
	for len(d.buf)-consumed >= size {
		winStart := d.bufStart + uint64(consumed)
		mag := d.spec.Magnitudes(d.buf[consumed : consumed+size])
		d.observe(mag, winStart)
		consumed += d.hop
	}
	if consumed > 0 {
		n := copy(d.buf, d.buf[consumed:])
		d.buf = d.buf[:n]
		d.bufStart += uint64(consumed)
	}
	return d.out
}

// observe folds one window's magnitude spectrum into the flux history
// and checks whether the previous flux value was a confirmed peak.
func (d *OnsetDetector) observe(mag []float64, winStart uint64) {
	if !d.havePrev {
		copy(d.prevMag, mag)
		d.havePrev = true
		return
	}

	var flux float64
	for k, m := range mag {
		if diff := m - d.prevMag[k]; diff > 0 {
			flux += diff
		}
	}
	copy(d.prevMag, mag)
	d.lastFlux = flux

	if len(d.flux) == d.fluxCap {
		copy(d.flux, d.flux[1:])
		d.flux = d.flux[:d.fluxCap-1]
	}
	d.flux = append(d.flux, flux)
	d.run++

	// A peak is confirmable only once its successor is known, so the
	// candidate is the second-newest flux value.
	if d.run < 3 {
		return
	}
	n := len(d.flux)
	f0, f1, f2 := d.flux[n-3], d.flux[n-2], d.flux[n-1]
	if f1 > f0 && f1 > f2 && f1 > d.threshold() {
		// winStart belongs to the confirming window; the peak window
		// began one hop earlier. The flux of a Hann-weighted window
		// peaks when the attack crosses the window's energy centroid,
		// so the emitted timestamp anchors at the window center.
		peakStart := winStart - uint64(d.hop)
		d.out = append(d.out, peakStart+uint64(d.spec.Size()/2))
	}
}

// threshold computes median(recent flux) + offset over the trailing
// median window.
func (d *OnsetDetector) threshold() float64 {
	span := 2*d.halfWin + 1
	if n := len(d.flux); n < span {
		span = n
	}
	s := d.scratch[:span]
	copy(s, d.flux[len(d.flux)-span:])
	sort.Float64s(s)
	return s[span/2] + d.offset
}

// LastFlux reports the most recent spectral flux value, for debug
// surfaces that plot raw detector output.
func (d *OnsetDetector) LastFlux() float64 {
	return d.lastFlux
}

// Reset clears the windowing state and flux history.
func (d *OnsetDetector) Reset() {
	d.buf = d.buf[:0]
	d.primed = false
	d.havePrev = false
	d.run = 0
	d.flux = d.flux[:0]
	d.lastFlux = 0
}
