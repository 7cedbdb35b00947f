// SPDX-License-Identifier: MIT
package utils

import (
	"math"
	"testing"
)

// peakedMagnitudes builds a spectrum-like hill with its maximum at peak.
func peakedMagnitudes(size, peak int) []float64 {
	mags := make([]float64, size)
	for i := range mags {
		mags[i] = math.Exp(-0.01 * math.Pow(float64(i-peak), 2))
	}
	return mags
}

func TestMockTransport(t *testing.T) {
	mt := &MockTransport{}

	payloads := []any{"first", 42, []float64{0.1, 0.2}}
	for _, p := range payloads {
		if err := mt.Send(p); err != nil {
			t.Errorf("MockTransport.Send() error = %v", err)
		}
	}

	got := mt.Payloads()
	if len(got) != len(payloads) {
		t.Fatalf("MockTransport stored %d payloads, want %d", len(got), len(payloads))
	}
	if mt.SentCount() != len(payloads) {
		t.Errorf("SentCount() = %d, want %d", mt.SentCount(), len(payloads))
	}
	if got[0] != "first" || got[1] != 42 {
		t.Errorf("Payloads() = %v, want stored order preserved", got)
	}

	if mt.Closed() {
		t.Error("Closed() = true before Close")
	}
	if err := mt.Close(); err != nil {
		t.Errorf("MockTransport.Close() error = %v", err)
	}
	if !mt.Closed() {
		t.Error("Closed() = false after Close")
	}
}

func TestGenerateSineWave(t *testing.T) {
	const (
		size       = 1024
		sampleRate = 44100.0
		frequency  = 440.0 // A4
	)

	wave := GenerateSineWave(size, sampleRate, frequency)
	if len(wave) != size {
		t.Fatalf("len = %d, want %d", len(wave), size)
	}

	// Sample i must equal sin(2*pi*f*i/sr) scaled to 0.9 full scale.
	for _, i := range []int{0, 1, 100, 512, size - 1} {
		want := math.Sin(2*math.Pi*frequency*float64(i)/sampleRate) * 0.9
		if diff := math.Abs(float64(wave[i]) - want); diff > 1e-6 {
			t.Errorf("sample %d = %v, want %v", i, wave[i], want)
		}
	}

	for i, v := range wave {
		if v > 0.9 || v < -0.9 {
			t.Fatalf("sample %d = %v, outside 0.9 full scale", i, v)
		}
	}
}

func TestGenerateComplexWave(t *testing.T) {
	for _, size := range []int{16, 1024, 8192} {
		wave := GenerateComplexWave(size, 44100)
		if len(wave) != size {
			t.Fatalf("len = %d, want %d", len(wave), size)
		}

		var peak float32
		for _, v := range wave {
			if a := abs32(v); a > peak {
				peak = a
			}
		}
		if peak == 0 {
			t.Errorf("size %d: wave is silent", size)
		}
		if peak > 1 {
			t.Errorf("size %d: peak %v clips full scale", size, peak)
		}
	}
}

func TestGenerateNoiseBurst(t *testing.T) {
	const (
		size     = 4096
		offset   = 1024
		burstLen = 512
	)

	result := GenerateNoiseBurst(size, offset, burstLen, 0.9, 7)

	for i := 0; i < offset; i++ {
		if result[i] != 0 {
			t.Fatalf("sample %d before the burst = %v, want 0", i, result[i])
		}
	}
	for i := offset + burstLen; i < size; i++ {
		if result[i] != 0 {
			t.Fatalf("sample %d after the burst = %v, want 0", i, result[i])
		}
	}

	energetic := 0
	for i := offset; i < offset+burstLen; i++ {
		if result[i] > 1 || result[i] < -1 {
			t.Fatalf("sample %d = %v, outside [-1, 1]", i, result[i])
		}
		if result[i] != 0 {
			energetic++
		}
	}
	if energetic < burstLen/2 {
		t.Errorf("burst has %d non-zero samples of %d, expected a dense burst", energetic, burstLen)
	}

	// Same seed, same burst.
	again := GenerateNoiseBurst(size, offset, burstLen, 0.9, 7)
	for i := range result {
		if result[i] != again[i] {
			t.Fatal("noise burst is not deterministic for a fixed seed")
		}
	}
}

func TestGenerateDecayBurst(t *testing.T) {
	const size = 8192

	result := GenerateDecayBurst(size, 0, size, 0.9, 0.999, 7)

	// Envelope must fall: the last quarter should be much quieter than the first.
	var headPeak, tailPeak float32
	for i := 0; i < size/4; i++ {
		if v := abs32(result[i]); v > headPeak {
			headPeak = v
		}
	}
	for i := size * 3 / 4; i < size; i++ {
		if v := abs32(result[i]); v > tailPeak {
			tailPeak = v
		}
	}
	if tailPeak >= headPeak/2 {
		t.Errorf("decay burst tail peak %v not below half of head peak %v", tailPeak, headPeak)
	}
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

func TestFindPeakBin(t *testing.T) {
	const size = 1024
	hill := peakedMagnitudes(size, size/4)

	tests := []struct {
		name  string
		mags  []float64
		start int
		end   int
		want  int
	}{
		{"full range", hill, 0, size - 1, size / 4},
		{"window around the peak", hill, size / 8, size - 1, size / 4},
		{"window ending past the peak", hill, 0, size / 3, size / 4},
		{"negative start clamps", hill, -10, size - 1, size / 4},
		{"end past slice clamps", hill, 0, size * 2, size / 4},
		{"empty slice", nil, 0, 10, 0},
		{"single value", []float64{1.0}, 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FindPeakBin(tt.mags, tt.start, tt.end); got != tt.want {
				t.Errorf("FindPeakBin() = %d, want %d", got, tt.want)
			}
		})
	}

	allocs := testing.AllocsPerRun(100, func() {
		FindPeakBin(hill, 0, len(hill)-1)
	})
	if allocs > 0 {
		t.Errorf("FindPeakBin allocated memory: got %.1f allocs, want 0", allocs)
	}
}

func BenchmarkGenerateSineWave(b *testing.B) {
	for _, size := range []int{64, 1024, 8192} {
		b.Run(sizeLabel(size), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				GenerateSineWave(size, 44100, 440)
			}
		})
	}
}

func BenchmarkFindPeakBin(b *testing.B) {
	for _, size := range []int{64, 1024, 8192} {
		b.Run(sizeLabel(size), func(b *testing.B) {
			mags := peakedMagnitudes(size, size/2)
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				FindPeakBin(mags, 0, size-1)
			}
		})
	}
}

func sizeLabel(size int) string {
	switch {
	case size <= 64:
		return "Small"
	case size <= 1024:
		return "Standard"
	}
	return "Large"
}
