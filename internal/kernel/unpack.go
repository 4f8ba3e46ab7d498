package kernel

// nibbleTable maps a raw 4-bit pattern to its two's-complement value.
// Values 0..7 are themselves, 8..15 wrap to -8..-1.
var nibbleTable = [16]int8{
	0, 1, 2, 3, 4, 5, 6, 7,
	-8, -7, -6, -5, -4, -3, -2, -1,
}

// UnpackInt4 expands n packed 4-bit signed elements (two per byte, low
// nibble first) into one int8 each, preserving element order. dst must
// hold at least n elements. Runs before every evaluation that uses an
// int4 filter; the destination scratch is shared across calls and never
// treated as a cache.
func UnpackInt4(dst []int8, packed []byte, n int) {
	for i := 0; i < n; i++ {
		b := packed[i>>1]
		if i&1 == 0 {
			dst[i] = nibbleTable[b&0x0F]
		} else {
			dst[i] = nibbleTable[b>>4]
		}
	}
}

// PackInt4 is the inverse transform, used to build packed filters for
// the synthetic runner and tests. Values must lie in [-8, 7].
func PackInt4(vals []int8) []byte {
	out := make([]byte, (len(vals)+1)/2)
	for i, v := range vals {
		nib := byte(v) & 0x0F
		if i&1 == 0 {
			out[i>>1] = nib
		} else {
			out[i>>1] |= nib << 4
		}
	}
	return out
}
