package audio

import (
	"math"
	"math/rand"
)

const (
	// clickDurationMS is the length of one metronome click.
	clickDurationMS = 20

	// clickSeed fixes the click's noise content so output is
	// reproducible across runs and platforms.
	clickSeed = 42
)

// Metronome owns the pre-synthesized click waveform. The click is a
// short burst of seeded white noise: broadband, so it stays audible
// over drum-like input, and cheap to mix sample by sample.
type Metronome struct {
	click      []float32
	sampleRate float64
}

// NewMetronome synthesizes the click for the given sample rate.
func NewMetronome(sampleRate float64) *Metronome {
	n := int(sampleRate * clickDurationMS / 1000.0)
	click := make([]float32, n)
	r := rand.New(rand.NewSource(clickSeed))
	for i := range click {
		click[i] = float32(r.Float64()*2.0 - 1.0)
	}
	return &Metronome{click: click, sampleRate: sampleRate}
}

// Click returns the click waveform. Callers must not modify it.
func (m *Metronome) Click() []float32 {
	return m.click
}

// SamplesPerBeat returns the beat period in samples at the given tempo.
func SamplesPerBeat(tempoBPM int, sampleRate float64) float64 {
	return sampleRate * 60.0 / float64(tempoBPM)
}

// IsBeatFrame reports whether frame is the first integer frame at or
// after a beat instant k*samplesPerBeat. Exactly one frame per beat
// satisfies this, so a click is triggered once per beat with no
// accumulated drift: the phase is recomputed from the absolute frame
// index every time.
//
// Performance Critical (Hot Path): called per output sample.
func IsBeatFrame(frame uint64, samplesPerBeat float64) bool {
	return math.Mod(float64(frame), samplesPerBeat) < 1.0
}
