package tensor

// Shape is an ordered sequence of per-axis extents. Activations use NHWC
// ([batch, height, width, channels]); standard conv filters use OHWI
// ([out_channels, kernel_h, kernel_w, in_channels]); depthwise filters use
// [1, kernel_h, kernel_w, out_channels].
type Shape []int

// Dim returns the extent of axis i, or 1 when the axis does not exist.
// Missing trailing axes behave like broadcast dimensions of extent 1.
func (s Shape) Dim(i int) int {
	if i < 0 || i >= len(s) {
		return 1
	}
	return s[i]
}

// FlatSize returns the total element count.
func (s Shape) FlatSize() int {
	n := 1
	for _, d := range s {
		n *= d
	}
	return n
}

// Index4 returns the flat offset of element (b, y, x, c) in a rank-4
// row-major layout. The shape must have rank 4.
func (s Shape) Index4(b, y, x, c int) int {
	return ((b*s[1]+y)*s[2]+x)*s[3] + c
}

// Equal reports whether two shapes have identical rank and extents.
func (s Shape) Equal(o Shape) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if s[i] != o[i] {
			return false
		}
	}
	return true
}
