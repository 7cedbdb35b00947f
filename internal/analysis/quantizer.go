package analysis

import "math"

// Timing classifies an onset against the beat grid.
type Timing int

const (
	TimingOnTime Timing = iota
	TimingEarly
	TimingLate
)

// String returns the wire name used in event payloads.
func (t Timing) String() string {
	switch t {
	case TimingEarly:
		return "early"
	case TimingLate:
		return "late"
	default:
		return "on_time"
	}
}

// TimingFeedback pairs the classification with the signed distance
// from the scoring beat in milliseconds.
type TimingFeedback struct {
	Timing  Timing
	DeltaMS float64
}

// Hits closer to a beat than this score as on time.
const toleranceMS = 50.0

// Quantize scores an onset timestamp against the metronome grid for
// the given tempo. Pure: no state, no side effects.
//
// A hit inside the tolerance after a beat is on time. A hit inside the
// tolerance before the NEXT beat is early, and DeltaMS is the negative
// distance to that beat, so displays can render "-31 ms" rather than a
// large positive lateness. Everything else is late.
func Quantize(onsetTimestamp uint64, tempoBPM int, sampleRate float64) TimingFeedback {
	samplesPerBeat := sampleRate * 60 / float64(tempoBPM)
	beatPhase := math.Mod(float64(onsetTimestamp), samplesPerBeat)
	deltaMS := beatPhase / sampleRate * 1000
	periodMS := 60000 / float64(tempoBPM)

	switch {
	case deltaMS < toleranceMS:
		return TimingFeedback{Timing: TimingOnTime, DeltaMS: deltaMS}
	case deltaMS > periodMS-toleranceMS:
		return TimingFeedback{Timing: TimingEarly, DeltaMS: deltaMS - periodMS}
	default:
		return TimingFeedback{Timing: TimingLate, DeltaMS: deltaMS}
	}
}

// TempoSource reports the live tempo. The audio engine satisfies it.
type TempoSource interface {
	TempoBPM() int
}

// Quantizer binds Quantize to a live tempo source so the pipeline
// scores each onset against the tempo at resolution time.
type Quantizer struct {
	tempo      TempoSource
	sampleRate float64
}

// NewQuantizer returns a quantizer reading tempo from the source.
func NewQuantizer(tempo TempoSource, sampleRate float64) *Quantizer {
	return &Quantizer{tempo: tempo, sampleRate: sampleRate}
}

// Quantize scores the onset against the current tempo.
func (q *Quantizer) Quantize(onsetTimestamp uint64) TimingFeedback {
	return Quantize(onsetTimestamp, q.tempo.TempoBPM(), q.sampleRate)
}
