// Package bitint provides the power-of-two helpers behind ring
// capacity rounding and FFT window validation.
package bitint

import "math/bits"

// NextPowerOfTwo returns the smallest power of 2 >= size. Exact powers
// of 2 map to themselves; size <= 0 maps to 1. The size-1 before the
// bit-length measurement keeps exact powers from doubling:
// Len(8)=4 would give 16, Len(7)=3 gives 8.
func NextPowerOfTwo(size int) int {
	if size <= 0 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// IsPowerOfTwo reports whether n is a positive power of 2. A power of
// 2 carries a single set bit, so n&(n-1) clears it to zero; anything
// else keeps a bit.
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}
