// SPDX-License-Identifier: MIT
package analysis

import (
	"math"
	"sync/atomic"
)

// Sound is a recognized beatbox stroke category.
type Sound int

const (
	SoundUnknown Sound = iota
	SoundKick
	SoundSnare
	SoundHiHat
	SoundClosedHiHat
	SoundOpenHiHat
	SoundKSnare
)

// String returns the wire name used in event payloads.
func (s Sound) String() string {
	switch s {
	case SoundKick:
		return "kick"
	case SoundSnare:
		return "snare"
	case SoundHiHat:
		return "hihat"
	case SoundClosedHiHat:
		return "closed_hihat"
	case SoundOpenHiHat:
		return "open_hihat"
	case SoundKSnare:
		return "k_snare"
	default:
		return "unknown"
	}
}

// Hit is one classified stroke.
type Hit struct {
	Sound      Sound
	Confidence float64 // [0,1], 0 for Unknown
}

// Decision cutoffs used until calibration completes.
const (
	DefaultKickCentroid  = 1500.0 // Hz
	DefaultKickZCR       = 0.1
	DefaultSnareCentroid = 4000.0 // Hz
	DefaultHihatZCR      = 0.3
)

// Level 2 subdivision cutoffs.
const (
	closedHiHatMaxDecayMS = 50.0
	openHiHatMinDecayMS   = 150.0
	kickMaxFlatness       = 0.1
	ksnareMinFlatness     = 0.3
)

// Thresholds is one calibration snapshot. Immutable once published; a
// new calibration replaces the whole set in a single store.
type Thresholds struct {
	KickCentroid  float64
	KickZCR       float64
	SnareCentroid float64
	HihatZCR      float64
	Calibrated    bool
}

// DefaultThresholds returns the uncalibrated cutoffs.
func DefaultThresholds() Thresholds {
	return Thresholds{
		KickCentroid:  DefaultKickCentroid,
		KickZCR:       DefaultKickZCR,
		SnareCentroid: DefaultSnareCentroid,
		HihatZCR:      DefaultHihatZCR,
	}
}

// ThresholdStore publishes threshold snapshots atomically. Readers
// never block and never observe a partially updated set: the
// calibration manager is the single writer, the classifier path and
// control surface read concurrently.
type ThresholdStore struct {
	v atomic.Pointer[Thresholds]
}

// NewThresholdStore returns a store holding the default thresholds.
func NewThresholdStore() *ThresholdStore {
	s := &ThresholdStore{}
	t := DefaultThresholds()
	s.v.Store(&t)
	return s
}

// Load returns the current snapshot.
func (s *ThresholdStore) Load() Thresholds {
	return *s.v.Load()
}

// Store publishes a new snapshot.
func (s *ThresholdStore) Store(t Thresholds) {
	s.v.Store(&t)
}

// Classify maps a feature vector to a hit. Deterministic and pure:
// identical inputs always produce the identical result.
//
// Level 1 uses centroid and zcr, first match wins:
//  1. centroid < KickCentroid and zcr < KickZCR  -> Kick
//  2. centroid < SnareCentroid                   -> Snare
//  3. zcr > HihatZCR (centroid already >= Snare) -> HiHat
//  4. otherwise                                  -> Unknown
//
// Level 2 subdivides: a HiHat with decay under 50 ms is closed, over
// 150 ms open; a Kick with flatness over 0.3 is a K-snare. Confidence
// is the smallest normalized margin of the binding comparisons.
func Classify(f Features, t Thresholds, level int) Hit {
	var h Hit
	switch {
	case f.Centroid < t.KickCentroid && f.ZCR < t.KickZCR:
		h = Hit{
			Sound:      SoundKick,
			Confidence: math.Min(marginBelow(t.KickCentroid, f.Centroid), marginBelow(t.KickZCR, f.ZCR)),
		}
	case f.Centroid < t.SnareCentroid:
		h = Hit{
			Sound:      SoundSnare,
			Confidence: marginBelow(t.SnareCentroid, f.Centroid),
		}
	case f.ZCR > t.HihatZCR:
		h = Hit{
			Sound:      SoundHiHat,
			Confidence: math.Min(marginAbove(t.SnareCentroid, f.Centroid), marginAbove(t.HihatZCR, f.ZCR)),
		}
	default:
		return Hit{Sound: SoundUnknown}
	}

	if level < 2 {
		return h
	}
	switch h.Sound {
	case SoundKick:
		switch {
		case f.Flatness < kickMaxFlatness:
			// Confirmed kick.
		case f.Flatness > ksnareMinFlatness:
			h.Sound = SoundKSnare
		}
	case SoundHiHat:
		if f.DecayMS < closedHiHatMaxDecayMS {
			h.Sound = SoundClosedHiHat
		} else if f.DecayMS > openHiHatMinDecayMS {
			h.Sound = SoundOpenHiHat
		}
	}
	return h
}

// marginBelow is the normalized distance of v under the cutoff,
// clamped to [0,1].
func marginBelow(cutoff, v float64) float64 {
	if cutoff <= 0 {
		return 0
	}
	return clamp01((cutoff - v) / cutoff)
}

// marginAbove mirrors marginBelow for values over the cutoff.
func marginAbove(cutoff, v float64) float64 {
	if cutoff <= 0 {
		return 0
	}
	return clamp01((v - cutoff) / cutoff)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
