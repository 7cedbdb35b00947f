// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math/cmplx"
	"strings"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"

	applog "beatbox/internal/log"
	"beatbox/pkg/bitint"
)

// WindowFunc defines the type for selecting an FFT window function.
type WindowFunc int

// Enum for available window functions.
const (
	BartlettHann WindowFunc = iota
	Blackman
	BlackmanNuttall
	Hann
	Hamming
	Lanczos
	Nuttall
)

// Spectrum computes magnitude spectra over fixed-size windows using
// pre-allocated buffers. Not safe for concurrent use: each instance is
// owned by a single goroutine (the analysis loop).
type Spectrum struct {
	fft        *fourier.FFT
	size       int
	sampleRate float64
	input      []float64    // windowed input signal
	coeffs     []complex128 // FFT complex results
	magnitude  []float64    // calculated magnitudes
	window     []float64    // pre-calculated window coefficients
}

// NewSpectrum allocates a spectrum workspace for the given FFT size,
// which must be a power of two.
func NewSpectrum(size int, sampleRate float64, windowType WindowFunc) (*Spectrum, error) {
	if !bitint.IsPowerOfTwo(size) {
		return nil, fmt.Errorf("fft size must be a power of 2, got %d", size)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %f", sampleRate)
	}

	windowCoeffs := make([]float64, size)
	applyWindow(windowCoeffs, windowType)

	// FFT output size for real input is N/2 + 1 complex values.
	bins := size/2 + 1

	return &Spectrum{
		fft:        fourier.NewFFT(size),
		size:       size,
		sampleRate: sampleRate,
		input:      make([]float64, size),
		coeffs:     make([]complex128, bins),
		magnitude:  make([]float64, bins),
		window:     windowCoeffs,
	}, nil
}

// Magnitudes windows the samples, runs the FFT and returns the
// magnitude spectrum. Input shorter than the FFT size is zero-padded,
// longer input is truncated. The returned slice is reused by the next
// call.
// Performance Critical (Hot Path): no allocation after construction.
func (s *Spectrum) Magnitudes(samples []float32) []float64 {
	n := len(samples)
	for i := 0; i < s.size; i++ {
		if i < n {
			s.input[i] = float64(samples[i]) * s.window[i]
		} else {
			s.input[i] = 0 // Zero-padding.
		}
	}

	s.fft.Coefficients(s.coeffs, s.input)

	for i, c := range s.coeffs {
		s.magnitude[i] = cmplx.Abs(c)
	}
	return s.magnitude
}

// BinFrequency returns the center frequency (Hz) for a given bin index.
func (s *Spectrum) BinFrequency(bin int) float64 {
	if bin < 0 || bin >= len(s.magnitude) {
		return 0.0
	}

	// Frequency resolution = sampleRate / fftSize
	// Bin frequency = binIndex * frequencyResolution
	return float64(bin) * (s.sampleRate / float64(s.size))
}

// Bins returns the number of magnitude bins (size/2 + 1).
func (s *Spectrum) Bins() int {
	return len(s.magnitude)
}

// Size returns the FFT window size in samples.
func (s *Spectrum) Size() int {
	return s.size
}

// SampleRate returns the configured sample rate (Hz).
func (s *Spectrum) SampleRate() float64 {
	return s.sampleRate
}

// ParseWindowFunc converts a string name (case-insensitive) to a WindowFunc
// enum, returns a known default (Hann) and an error if the name is unknown.
func ParseWindowFunc(name string) (WindowFunc, error) {
	switch strings.ToLower(name) {
	case "bartletthann":
		return BartlettHann, nil
	case "blackman":
		return Blackman, nil
	case "blackmannuttall":
		return BlackmanNuttall, nil
	case "hann", "hanning":
		return Hann, nil
	case "hamming":
		return Hamming, nil
	case "lanczos":
		return Lanczos, nil
	case "nuttall":
		return Nuttall, nil
	default:
		return Hann, fmt.Errorf("unknown FFT window function name: '%s'", name)
	}
}

// applyWindow applies the selected window function to the coefficient slice.
// Falls back to Hann if the type is unknown.
func applyWindow(coeffs []float64, windowType WindowFunc) {
	// Initialize coeffs with 1.0 before applying: the window functions
	// multiply in place.
	for i := range coeffs {
		coeffs[i] = 1.0
	}
	switch windowType {
	case BartlettHann:
		window.BartlettHann(coeffs)
	case Blackman:
		window.Blackman(coeffs)
	case BlackmanNuttall:
		window.BlackmanNuttall(coeffs)
	case Hann:
		window.Hann(coeffs)
	case Hamming:
		window.Hamming(coeffs)
	case Lanczos:
		window.Lanczos(coeffs)
	case Nuttall:
		window.Nuttall(coeffs)
	default:
		applog.Warnf("Analysis: Unknown window function type %d, defaulting to Hann", windowType)
		window.Hann(coeffs)
	}
}
