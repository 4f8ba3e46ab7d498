package tensor

// DType identifies the element encoding of a tensor buffer.
type DType uint32

const (
	// None marks an absent tensor slot (e.g. an operator without bias).
	None DType = iota
	F32
	I8
	I16
	I32
	I64

	// I4 is packed: two signed 4-bit two's-complement values per byte,
	// low nibble first. Element values span [-8, 7].
	I4
)

// String returns the C-style type name used in diagnostics and emitted
// literal arrays.
func (d DType) String() string {
	switch d {
	case None:
		return "none"
	case F32:
		return "float32"
	case I8:
		return "int8"
	case I16:
		return "int16"
	case I32:
		return "int32"
	case I64:
		return "int64"
	case I4:
		return "int4"
	default:
		return "unknown"
	}
}

// Size returns the storage size in bytes of a single element, or 0 for
// packed and absent encodings.
func (d DType) Size() int {
	switch d {
	case F32, I32:
		return 4
	case I8:
		return 1
	case I16:
		return 2
	case I64:
		return 8
	default:
		return 0
	}
}

// PackedBytes returns the buffer size in bytes needed to hold n elements
// of this dtype, accounting for sub-byte packing.
func (d DType) PackedBytes(n int) int {
	if d == I4 {
		return (n + 1) / 2
	}
	return n * d.Size()
}
