package tensor

import "fmt"

// Tensor is a caller-owned view over a contiguous element buffer plus a
// shape descriptor. The evaluation core treats input, filter and bias
// views as read-only and the output view as write-once for the duration
// of a single call; it never copies or retains a view beyond the call.
type Tensor struct {
	DType DType
	Shape Shape

	data any
}

// NewFloat32 wraps a float32 buffer. The buffer length must equal the
// shape's flat size; a mismatch is a construction bug and panics.
func NewFloat32(shape Shape, data []float32) *Tensor {
	checkLen(shape, len(data), F32)
	return &Tensor{DType: F32, Shape: shape, data: data}
}

// NewInt8 wraps an int8 buffer.
func NewInt8(shape Shape, data []int8) *Tensor {
	checkLen(shape, len(data), I8)
	return &Tensor{DType: I8, Shape: shape, data: data}
}

// NewInt16 wraps an int16 buffer.
func NewInt16(shape Shape, data []int16) *Tensor {
	checkLen(shape, len(data), I16)
	return &Tensor{DType: I16, Shape: shape, data: data}
}

// NewInt32 wraps an int32 buffer.
func NewInt32(shape Shape, data []int32) *Tensor {
	checkLen(shape, len(data), I32)
	return &Tensor{DType: I32, Shape: shape, data: data}
}

// NewInt64 wraps an int64 buffer.
func NewInt64(shape Shape, data []int64) *Tensor {
	checkLen(shape, len(data), I64)
	return &Tensor{DType: I64, Shape: shape, data: data}
}

// NewInt4 wraps a packed int4 buffer: two signed nibbles per byte, low
// nibble first. The byte length must be ceil(flatSize/2).
func NewInt4(shape Shape, packed []byte) *Tensor {
	want := I4.PackedBytes(shape.FlatSize())
	if len(packed) != want {
		panic(fmt.Sprintf("tensor: int4 buffer is %d bytes, shape %v needs %d", len(packed), shape, want))
	}
	return &Tensor{DType: I4, Shape: shape, data: packed}
}

// Float32 returns the underlying float32 buffer. Calling a typed accessor
// on a tensor of another dtype is a programming error and panics.
func (t *Tensor) Float32() []float32 { return t.data.([]float32) }

// Int8 returns the underlying int8 buffer.
func (t *Tensor) Int8() []int8 { return t.data.([]int8) }

// Int16 returns the underlying int16 buffer.
func (t *Tensor) Int16() []int16 { return t.data.([]int16) }

// Int32 returns the underlying int32 buffer.
func (t *Tensor) Int32() []int32 { return t.data.([]int32) }

// Int64 returns the underlying int64 buffer.
func (t *Tensor) Int64() []int64 { return t.data.([]int64) }

// Packed returns the raw packed bytes of an I4 tensor.
func (t *Tensor) Packed() []byte { return t.data.([]byte) }

func checkLen(shape Shape, got int, d DType) {
	if got != shape.FlatSize() {
		panic(fmt.Sprintf("tensor: %s buffer has %d elements, shape %v needs %d", d, got, shape, shape.FlatSize()))
	}
}
