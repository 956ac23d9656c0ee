// SPDX-License-Identifier: MIT
/*
Package bitint provides the power-of-two arithmetic used to size FFT
windows. Window sizes are configured as an order (size = 2^order) and
validated as powers of two before any buffer is allocated.

All functions are O(1), allocation free and safe to call from the
audio callback.

Usage:

	size := bitint.Pow2(11)           // 2048
	order, ok := bitint.Order(size)   // 11, true
	valid := bitint.IsPowerOfTwo(size)
*/
package bitint

import "math/bits"

// MaxOrder is the largest order Pow2 accepts. 2^30 samples is far beyond
// any analysis window and still fits a 32-bit int.
const MaxOrder = 30

// IsPowerOfTwo reports whether n is a positive power of two.
//
//	Input  Output  Binary
//	8      true    1000 & 0111 = 0000
//	7      false   0111 & 0110 = 0110
//	0      false   not positive
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}

// NextPowerOfTwo returns the smallest power of two >= size. Values <= 0
// return 1. The size-1 keeps exact powers unchanged: for 8, bits.Len(7)
// is 3 and 1<<3 is 8.
func NextPowerOfTwo(size int) int {
	if size <= 0 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// Pow2 returns 2^order, or 0 when order is outside [0, MaxOrder].
func Pow2(order int) int {
	if order < 0 || order > MaxOrder {
		return 0
	}
	return 1 << order
}

// Order returns log2(n) for a power of two n. ok is false otherwise.
func Order(n int) (order int, ok bool) {
	if !IsPowerOfTwo(n) {
		return 0, false
	}
	return bits.TrailingZeros(uint(n)), true
}
