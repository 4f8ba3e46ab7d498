// Package refconv holds the reference convolution primitives: portable,
// scalar implementations of the float and per-channel quantized kernels
// plus the fixed-point requantization arithmetic they share. Dispatch,
// operand validation and capture live upstream in internal/kernel; these
// functions trust their inputs.
package refconv

import "github.com/samcharles93/convtrace/internal/tensor"

// Params carries the geometry and quantization constants of one conv or
// depthwise-conv evaluation. InputOffset and OutputOffset are the values
// added to each input element and each requantized output element; for a
// quantized operator InputOffset is the negated input zero point and
// OutputOffset is the output zero point.
type Params struct {
	StrideH, StrideW     int
	DilationH, DilationW int
	PadH, PadW           int

	// DepthMultiplier is the per-input-channel output fan-out of a
	// depthwise kernel. Ignored by standard convolution.
	DepthMultiplier int

	InputOffset  int32
	OutputOffset int32

	QuantMin, QuantMax int32
	FloatMin, FloatMax float32
}

// Quantized constrains the activation element types of the per-channel
// integer kernels.
type Quantized interface {
	~int8 | ~int16
}

// BiasWidth constrains the bias element types. The two widths share
// requantization logic and differ only in accumulator widening.
type BiasWidth interface {
	~int32 | ~int64
}

// ConvFloat evaluates a standard convolution over float32 operands.
// Input and output are NHWC, the filter is OHWI. bias may be nil.
func ConvFloat(p Params, inShape tensor.Shape, in []float32, fShape tensor.Shape, f []float32, bias []float32, outShape tensor.Shape, out []float32) {
	batches := outShape.Dim(0)
	outH, outW, outC := outShape.Dim(1), outShape.Dim(2), outShape.Dim(3)
	inH, inW, inC := inShape.Dim(1), inShape.Dim(2), inShape.Dim(3)
	kH, kW := fShape.Dim(1), fShape.Dim(2)

	for b := 0; b < batches; b++ {
		for oy := 0; oy < outH; oy++ {
			for ox := 0; ox < outW; ox++ {
				inYOrigin := oy*p.StrideH - p.PadH
				inXOrigin := ox*p.StrideW - p.PadW
				for oc := 0; oc < outC; oc++ {
					var acc float32
					for ky := 0; ky < kH; ky++ {
						inY := inYOrigin + ky*p.DilationH
						if inY < 0 || inY >= inH {
							continue
						}
						for kx := 0; kx < kW; kx++ {
							inX := inXOrigin + kx*p.DilationW
							if inX < 0 || inX >= inW {
								continue
							}
							for ic := 0; ic < inC; ic++ {
								iv := in[inShape.Index4(b, inY, inX, ic)]
								fv := f[fShape.Index4(oc, ky, kx, ic)]
								acc += iv * fv
							}
						}
					}
					if bias != nil {
						acc += bias[oc]
					}
					if acc < p.FloatMin {
						acc = p.FloatMin
					}
					if acc > p.FloatMax {
						acc = p.FloatMax
					}
					out[outShape.Index4(b, oy, ox, oc)] = acc
				}
			}
		}
	}
}

// ConvPerChannel evaluates a per-channel quantized convolution. The
// accumulator is widened to int64, the bias (when present) is added at
// accumulator width, and each output channel's (multiplier, shift) pair
// rescales the result before the output offset and clamp are applied.
func ConvPerChannel[T Quantized, B BiasWidth](p Params, mult, shift []int32, inShape tensor.Shape, in []T, fShape tensor.Shape, f []int8, bias []B, outShape tensor.Shape, out []T) {
	batches := outShape.Dim(0)
	outH, outW, outC := outShape.Dim(1), outShape.Dim(2), outShape.Dim(3)
	inH, inW, inC := inShape.Dim(1), inShape.Dim(2), inShape.Dim(3)
	kH, kW := fShape.Dim(1), fShape.Dim(2)

	requant := requantFor[T]()

	for b := 0; b < batches; b++ {
		for oy := 0; oy < outH; oy++ {
			for ox := 0; ox < outW; ox++ {
				inYOrigin := oy*p.StrideH - p.PadH
				inXOrigin := ox*p.StrideW - p.PadW
				for oc := 0; oc < outC; oc++ {
					var acc int64
					for ky := 0; ky < kH; ky++ {
						inY := inYOrigin + ky*p.DilationH
						if inY < 0 || inY >= inH {
							continue
						}
						for kx := 0; kx < kW; kx++ {
							inX := inXOrigin + kx*p.DilationW
							if inX < 0 || inX >= inW {
								continue
							}
							for ic := 0; ic < inC; ic++ {
								iv := int32(in[inShape.Index4(b, inY, inX, ic)]) + p.InputOffset
								fv := int32(f[fShape.Index4(oc, ky, kx, ic)])
								acc += int64(iv) * int64(fv)
							}
						}
					}
					if bias != nil {
						acc += int64(bias[oc])
					}
					v := requant(acc, mult[oc], shift[oc]) + p.OutputOffset
					if v < p.QuantMin {
						v = p.QuantMin
					}
					if v > p.QuantMax {
						v = p.QuantMax
					}
					out[outShape.Index4(b, oy, ox, oc)] = T(v)
				}
			}
		}
	}
}

// requantFor picks the accumulator rescale for the activation width: the
// 8-bit path accumulates within int32 range and uses the doubling
// high-mul form, the 16-bit path uses the 64-bit rounding form.
func requantFor[T Quantized]() func(acc int64, mult, shift int32) int32 {
	var zero T
	if any(zero) == any(int16(0)) {
		return MultiplyByQuantizedMultiplier64
	}
	return func(acc int64, mult, shift int32) int32 {
		return MultiplyByQuantizedMultiplier(int32(acc), mult, shift)
	}
}
