package refconv

import (
	"testing"

	"github.com/samcharles93/convtrace/internal/tensor"
)

// unitMult/unitShift make the requantization a no-op (scale 1.0).
const (
	unitMult  = int32(1 << 30)
	unitShift = int32(1)
)

func int8Params() Params {
	return Params{
		StrideH: 1, StrideW: 1,
		DilationH: 1, DilationW: 1,
		QuantMin: -128, QuantMax: 127,
	}
}

func repeat32(v int32, n int) []int32 {
	s := make([]int32, n)
	for i := range s {
		s[i] = v
	}
	return s
}

func TestConvPerChannelPointwise(t *testing.T) {
	t.Parallel()

	p := int8Params()
	inShape := tensor.Shape{1, 1, 1, 2}
	fShape := tensor.Shape{2, 1, 1, 2}
	outShape := tensor.Shape{1, 1, 1, 2}

	in := []int8{10, 20}
	f := []int8{1, 2, 3, 4}
	bias := []int32{0, 10}
	out := make([]int8, 2)

	// Scale 0.5: oc0 = (10*1 + 20*2) / 2 = 25, oc1 = (10*3 + 20*4 + 10) / 2 = 60.
	mult := []int32{1 << 30, 1 << 30}
	shift := []int32{0, 0}
	ConvPerChannel(p, mult, shift, inShape, in, fShape, f, bias, outShape, out)

	want := []int8{25, 60}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("out[%d]: expected %d, got %d", i, want[i], out[i])
		}
	}
}

func TestConvPerChannelInputOffset(t *testing.T) {
	t.Parallel()

	p := int8Params()
	p.InputOffset = 5 // input zero point -5

	in := []int8{10, 20}
	f := []int8{1, 2, 3, 4}
	bias := []int32{0, 10}
	out := make([]int8, 2)

	// Effective inputs {15, 25}: oc0 = 65/2 -> 33, oc1 = 155/2 -> 78.
	mult := []int32{1 << 30, 1 << 30}
	shift := []int32{0, 0}
	ConvPerChannel(p, mult, shift,
		tensor.Shape{1, 1, 1, 2}, in,
		tensor.Shape{2, 1, 1, 2}, f, bias,
		tensor.Shape{1, 1, 1, 2}, out)

	want := []int8{33, 78}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("out[%d]: expected %d, got %d", i, want[i], out[i])
		}
	}
}

func TestConvPerChannelOutputOffsetAndClamp(t *testing.T) {
	t.Parallel()

	p := int8Params()
	p.OutputOffset = -10

	in := []int8{10, 20}
	f := []int8{1, 2, 3, 4}
	out := make([]int8, 2)
	mult := []int32{1 << 30, 1 << 30}
	shift := []int32{0, 0}

	ConvPerChannel(p, mult, shift,
		tensor.Shape{1, 1, 1, 2}, in,
		tensor.Shape{2, 1, 1, 2}, f, []int32(nil),
		tensor.Shape{1, 1, 1, 2}, out)

	// Requantized {25, 55} then offset -10.
	if out[0] != 15 || out[1] != 45 {
		t.Fatalf("expected {15, 45}, got {%d, %d}", out[0], out[1])
	}

	// Saturating accumulators clamp to the quantized range.
	p.OutputOffset = 0
	in = []int8{100, 100}
	f = []int8{10, 10, -10, -10}
	ConvPerChannel(p, mult, shift,
		tensor.Shape{1, 1, 1, 2}, in,
		tensor.Shape{2, 1, 1, 2}, f, []int32(nil),
		tensor.Shape{1, 1, 1, 2}, out)
	if out[0] != 127 {
		t.Errorf("positive overflow: expected 127, got %d", out[0])
	}
	if out[1] != -128 {
		t.Errorf("negative overflow: expected -128, got %d", out[1])
	}
}

func TestConvPerChannelInt16(t *testing.T) {
	t.Parallel()

	p := Params{
		StrideH: 1, StrideW: 1,
		DilationH: 1, DilationW: 1,
		QuantMin: -32768, QuantMax: 32767,
	}

	in := []int16{10, 20}
	f := []int8{1, 2, 3, 4}
	bias := []int64{0, 10}
	out := make([]int16, 2)
	mult := []int32{1 << 30, 1 << 30}
	shift := []int32{0, 0}

	ConvPerChannel(p, mult, shift,
		tensor.Shape{1, 1, 1, 2}, in,
		tensor.Shape{2, 1, 1, 2}, f, bias,
		tensor.Shape{1, 1, 1, 2}, out)

	want := []int16{25, 60}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("out[%d]: expected %d, got %d", i, want[i], out[i])
		}
	}
}

func TestConvPerChannelPadding(t *testing.T) {
	t.Parallel()

	p := int8Params()
	p.PadH, p.PadW = 1, 1

	inShape := tensor.Shape{1, 3, 3, 1}
	fShape := tensor.Shape{1, 3, 3, 1}
	outShape := tensor.Shape{1, 3, 3, 1}

	in := make([]int8, 9)
	f := make([]int8, 9)
	for i := range in {
		in[i] = 1
		f[i] = 1
	}
	out := make([]int8, 9)

	ConvPerChannel(p, []int32{unitMult}, []int32{unitShift},
		inShape, in, fShape, f, []int32(nil), outShape, out)

	// Valid tap counts: 4 at corners, 6 on edges, 9 in the center.
	want := []int8{4, 6, 4, 6, 9, 6, 4, 6, 4}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("out[%d]: expected %d, got %d", i, want[i], out[i])
		}
	}
}

func TestConvPerChannelStride(t *testing.T) {
	t.Parallel()

	p := int8Params()
	p.StrideH, p.StrideW = 2, 2

	in := make([]int8, 16)
	for i := range in {
		in[i] = int8(i)
	}
	out := make([]int8, 4)

	ConvPerChannel(p, []int32{unitMult}, []int32{unitShift},
		tensor.Shape{1, 4, 4, 1}, in,
		tensor.Shape{1, 1, 1, 1}, []int8{1}, []int32(nil),
		tensor.Shape{1, 2, 2, 1}, out)

	want := []int8{0, 2, 8, 10}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("out[%d]: expected %d, got %d", i, want[i], out[i])
		}
	}
}

func TestConvPerChannelDilation(t *testing.T) {
	t.Parallel()

	p := int8Params()
	p.DilationH, p.DilationW = 2, 2

	in := []int8{1, 2, 3, 4, 5, 6, 7, 8, 9}
	f := []int8{1, 1, 1, 1}
	out := make([]int8, 1)

	ConvPerChannel(p, []int32{unitMult}, []int32{unitShift},
		tensor.Shape{1, 3, 3, 1}, in,
		tensor.Shape{1, 2, 2, 1}, f, []int32(nil),
		tensor.Shape{1, 1, 1, 1}, out)

	// Taps at (0,0), (0,2), (2,0), (2,2): 1+3+7+9.
	if out[0] != 20 {
		t.Fatalf("expected 20, got %d", out[0])
	}
}

func TestConvFloat(t *testing.T) {
	t.Parallel()

	p := Params{
		StrideH: 1, StrideW: 1,
		DilationH: 1, DilationW: 1,
		FloatMin: -10, FloatMax: 10,
	}

	in := []float32{1, 2}
	f := []float32{0.5, 0.25}
	bias := []float32{1}
	out := make([]float32, 1)

	ConvFloat(p,
		tensor.Shape{1, 1, 1, 2}, in,
		tensor.Shape{1, 1, 1, 2}, f, bias,
		tensor.Shape{1, 1, 1, 1}, out)

	if out[0] != 2 {
		t.Fatalf("expected 2, got %g", out[0])
	}

	// Activation clamp.
	bias[0] = 100
	ConvFloat(p,
		tensor.Shape{1, 1, 1, 2}, in,
		tensor.Shape{1, 1, 1, 2}, f, bias,
		tensor.Shape{1, 1, 1, 1}, out)
	if out[0] != 10 {
		t.Fatalf("expected clamp to 10, got %g", out[0])
	}
}

func TestDepthwiseConvPerChannel(t *testing.T) {
	t.Parallel()

	p := int8Params()
	p.DepthMultiplier = 1

	in := []int8{1, 1, 1, 1, 1, 1, 1, 1}
	// Channel 0 weights 2, channel 1 weights 3.
	f := []int8{2, 3, 2, 3, 2, 3, 2, 3}
	out := make([]int8, 2)

	DepthwiseConvPerChannel(p, repeat32(unitMult, 2), repeat32(unitShift, 2),
		tensor.Shape{1, 2, 2, 2}, in,
		tensor.Shape{1, 2, 2, 2}, f, nil,
		tensor.Shape{1, 1, 1, 2}, out)

	if out[0] != 8 || out[1] != 12 {
		t.Fatalf("expected {8, 12}, got {%d, %d}", out[0], out[1])
	}
}

func TestDepthwiseConvDepthMultiplier(t *testing.T) {
	t.Parallel()

	p := int8Params()
	p.DepthMultiplier = 2

	in := []int8{3, 5}
	// oc = ic*2 + m: channel 0 feeds oc0/oc1, channel 1 feeds oc2/oc3.
	f := []int8{1, 2, 3, 4}
	out := make([]int8, 4)

	DepthwiseConvPerChannel(p, repeat32(unitMult, 4), repeat32(unitShift, 4),
		tensor.Shape{1, 1, 1, 2}, in,
		tensor.Shape{1, 1, 1, 4}, f, nil,
		tensor.Shape{1, 1, 1, 4}, out)

	want := []int8{3, 6, 15, 20}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("out[%d]: expected %d, got %d", i, want[i], out[i])
		}
	}
}

func TestDepthwiseConvFloat(t *testing.T) {
	t.Parallel()

	p := Params{
		StrideH: 1, StrideW: 1,
		DilationH: 1, DilationW: 1,
		DepthMultiplier: 1,
		FloatMin:        -100, FloatMax: 100,
	}

	in := []float32{1, 2, 3, 4}
	f := []float32{0.5, 0.5, 0.5, 0.5}
	bias := []float32{1}
	out := make([]float32, 1)

	DepthwiseConvFloat(p,
		tensor.Shape{1, 2, 2, 1}, in,
		tensor.Shape{1, 2, 2, 1}, f, bias,
		tensor.Shape{1, 1, 1, 1}, out)

	if out[0] != 6 {
		t.Fatalf("expected 6, got %g", out[0])
	}
}
