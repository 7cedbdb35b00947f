// SPDX-License-Identifier: MIT
package bitint

import "testing"

func TestNextPowerOfTwo(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{-10, 1},     // Negative clamps to 1
		{0, 1},       // Zero clamps to 1
		{1, 1},       // One
		{16, 16},     // Ring capacity, already a power of two
		{17, 32},     // One past a power
		{256, 256},   // Onset FFT window
		{1000, 1024}, // Rounds up to the feature window size
		{2048, 2048}, // Pool buffer size
	}

	for _, tt := range tests {
		if got := NextPowerOfTwo(tt.in); got != tt.want {
			t.Errorf("NextPowerOfTwo(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestNextPowerOfTwoIsMinimal(t *testing.T) {
	// For every size up to 4096 the result must be a power of two, at
	// least size, and halving it must drop below size.
	for size := 1; size <= 4096; size++ {
		got := NextPowerOfTwo(size)
		if !IsPowerOfTwo(got) {
			t.Fatalf("NextPowerOfTwo(%d) = %d, not a power of two", size, got)
		}
		if got < size {
			t.Fatalf("NextPowerOfTwo(%d) = %d, below input", size, got)
		}
		if got/2 >= size {
			t.Fatalf("NextPowerOfTwo(%d) = %d, not minimal (%d suffices)", size, got, got/2)
		}
	}
}

func TestIsPowerOfTwo(t *testing.T) {
	tests := []struct {
		in   int
		want bool
	}{
		{-2, false},     // Negative
		{0, false},      // Zero
		{1, true},       // One
		{64, true},      // Onset hop size
		{512, true},     // Frames per buffer
		{100, false},    // Not a power of two
		{1 << 20, true}, // Large power of two
	}

	for _, tt := range tests {
		if got := IsPowerOfTwo(tt.in); got != tt.want {
			t.Errorf("IsPowerOfTwo(%d) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

var benchSizes = [...]int{3, 16, 64, 500, 2048, 40000}

func BenchmarkNextPowerOfTwo(b *testing.B) {
	b.ReportAllocs()
	var i int
	for n := 0; n < b.N; n++ {
		NextPowerOfTwo(benchSizes[i%len(benchSizes)])
		i++
	}
}

func BenchmarkIsPowerOfTwo(b *testing.B) {
	b.ReportAllocs()
	var i int
	for n := 0; n < b.N; n++ {
		IsPowerOfTwo(benchSizes[i%len(benchSizes)])
		i++
	}
}
