package refconv

import "math"

// SaturatingRoundingDoublingHighMul returns the high 32 bits of 2*a*b with
// rounding to nearest, ties away from zero. The single overflow case
// (both operands math.MinInt32) saturates to math.MaxInt32.
func SaturatingRoundingDoublingHighMul(a, b int32) int32 {
	if a == math.MinInt32 && b == math.MinInt32 {
		return math.MaxInt32
	}
	ab := int64(a) * int64(b)
	nudge := int64(1 << 30)
	if ab < 0 {
		nudge = 1 - (1 << 30)
	}
	// Truncating division, not a shift: they disagree on negative ties.
	return int32((ab + nudge) / (1 << 31))
}

// RoundingDivideByPOT divides x by 2^exponent, rounding to nearest with
// ties away from zero. exponent must be in [0, 31].
func RoundingDivideByPOT(x int32, exponent int) int32 {
	if exponent == 0 {
		return x
	}
	mask := int32(1<<exponent) - 1
	remainder := x & mask
	threshold := mask >> 1
	if x < 0 {
		threshold++
	}
	q := x >> exponent
	if remainder > threshold {
		q++
	}
	return q
}

// MultiplyByQuantizedMultiplier rescales a 32-bit accumulator by a Q31
// fixed-point multiplier and a signed power-of-two exponent. Positive
// shifts scale up, negative shifts scale down.
func MultiplyByQuantizedMultiplier(x int32, multiplier int32, shift int32) int32 {
	leftShift := shift
	if leftShift < 0 {
		leftShift = 0
	}
	rightShift := -shift
	if rightShift < 0 {
		rightShift = 0
	}
	return RoundingDivideByPOT(SaturatingRoundingDoublingHighMul(x*(1<<leftShift), multiplier), int(rightShift))
}

// MultiplyByQuantizedMultiplier64 is the 64-bit accumulator variant used
// by the 16-bit activation path. The caller guarantees acc*multiplier
// fits in int64, which holds for the accumulation depths this package
// supports. Rounds half up. The result saturates to int32.
func MultiplyByQuantizedMultiplier64(acc int64, multiplier int32, shift int32) int32 {
	totalShift := 31 - int64(shift)
	round := int64(1) << (totalShift - 1)
	acc = acc*int64(multiplier) + round
	acc >>= totalShift
	if acc > math.MaxInt32 {
		return math.MaxInt32
	}
	if acc < math.MinInt32 {
		return math.MinInt32
	}
	return int32(acc)
}
