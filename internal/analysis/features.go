package analysis

import "math"

const (
	// Guard for divisions over near-silent spectra.
	energyEpsilon = 1e-10
	// -20 dB in amplitude terms.
	decayFloorRatio = 0.1
	rolloffFraction = 0.85
)

// Features summarizes one onset window. Value object: produced once
// per onset and never mutated.
type Features struct {
	Centroid float64 // magnitude-weighted mean frequency, Hz
	ZCR      float64 // adjacent sign flips / (len-1), [0,1]
	Flatness float64 // geometric / arithmetic magnitude mean, [0,1]
	Rolloff  float64 // lowest frequency holding 85% of energy, Hz
	DecayMS  float64 // peak to -20 dB, milliseconds
}

// FeatureExtractor computes Features over a fixed-size onset window.
// Extract is deterministic; the FFT workspace makes an instance
// single-goroutine like the rest of the analysis chain.
type FeatureExtractor struct {
	spec       *Spectrum
	sampleRate float64
}

// NewFeatureExtractor builds an extractor over windowSize samples,
// which must be a power of two.
func NewFeatureExtractor(windowSize int, sampleRate float64, windowType WindowFunc) (*FeatureExtractor, error) {
	spec, err := NewSpectrum(windowSize, sampleRate, windowType)
	if err != nil {
		return nil, err
	}
	return &FeatureExtractor{spec: spec, sampleRate: sampleRate}, nil
}

// WindowSize returns the number of samples Extract analyzes.
func (e *FeatureExtractor) WindowSize() int {
	return e.spec.Size()
}

// Extract computes the feature vector for one onset window. Input
// shorter than the window size is zero-padded for the spectral
// features; time-domain features use the samples as given.
func (e *FeatureExtractor) Extract(window []float32) Features {
	mag := e.spec.Magnitudes(window)

	return Features{
		Centroid: e.centroid(mag),
		ZCR:      zeroCrossingRate(window),
		Flatness: flatness(mag),
		Rolloff:  e.rolloff(mag),
		DecayMS:  decayTime(window, e.sampleRate),
	}
}

func (e *FeatureExtractor) centroid(mag []float64) float64 {
	var weighted, total float64
	for k, m := range mag {
		weighted += e.spec.BinFrequency(k) * m
		total += m
	}
	if total < energyEpsilon {
		return 0
	}
	return weighted / total
}

func zeroCrossingRate(window []float32) float64 {
	if len(window) < 2 {
		return 0
	}
	flips := 0
	for i := 1; i < len(window); i++ {
		if (window[i] >= 0) != (window[i-1] >= 0) {
			flips++
		}
	}
	return float64(flips) / float64(len(window)-1)
}

func flatness(mag []float64) float64 {
	if len(mag) == 0 {
		return 0
	}
	var logSum, sum float64
	for _, m := range mag {
		if m < energyEpsilon {
			m = energyEpsilon
		}
		logSum += math.Log(m)
		sum += m
	}
	arith := sum / float64(len(mag))
	if arith < energyEpsilon {
		return 0
	}
	f := math.Exp(logSum/float64(len(mag))) / arith
	if f > 1 {
		f = 1
	}
	return f
}

func (e *FeatureExtractor) rolloff(mag []float64) float64 {
	var total float64
	for _, m := range mag {
		total += m * m
	}
	if total < energyEpsilon {
		return 0
	}
	target := rolloffFraction * total
	var cum float64
	for k, m := range mag {
		cum += m * m
		if cum >= target {
			return e.spec.BinFrequency(k)
		}
	}
	return e.spec.BinFrequency(len(mag) - 1)
}

// decayTime measures the attack envelope directly: the gap between the
// absolute peak and the first later sample under peak*decayFloorRatio.
// When the window ends before the envelope falls that far, the
// remaining window length is reported.
func decayTime(window []float32, sampleRate float64) float64 {
	if len(window) == 0 {
		return 0
	}
	peakIdx := 0
	var peak float32
	for i, s := range window {
		if s < 0 {
			s = -s
		}
		if s > peak {
			peak = s
			peakIdx = i
		}
	}
	if peak == 0 {
		return 0
	}
	floor := peak * decayFloorRatio
	for i := peakIdx + 1; i < len(window); i++ {
		s := window[i]
		if s < 0 {
			s = -s
		}
		if s < floor {
			return float64(i-peakIdx) / sampleRate * 1000
		}
	}
	return float64(len(window)-peakIdx) / sampleRate * 1000
}
