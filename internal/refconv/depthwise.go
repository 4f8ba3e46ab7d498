package refconv

import "github.com/samcharles93/convtrace/internal/tensor"

// DepthwiseConvFloat evaluates a depthwise convolution over float32
// operands. The filter is [1, kernel_h, kernel_w, out_channels] where
// out_channels = in_channels * DepthMultiplier.
func DepthwiseConvFloat(p Params, inShape tensor.Shape, in []float32, fShape tensor.Shape, f []float32, bias []float32, outShape tensor.Shape, out []float32) {
	batches := outShape.Dim(0)
	outH, outW := outShape.Dim(1), outShape.Dim(2)
	inH, inW, inC := inShape.Dim(1), inShape.Dim(2), inShape.Dim(3)
	kH, kW := fShape.Dim(1), fShape.Dim(2)

	for b := 0; b < batches; b++ {
		for oy := 0; oy < outH; oy++ {
			for ox := 0; ox < outW; ox++ {
				inYOrigin := oy*p.StrideH - p.PadH
				inXOrigin := ox*p.StrideW - p.PadW
				for ic := 0; ic < inC; ic++ {
					for m := 0; m < p.DepthMultiplier; m++ {
						oc := ic*p.DepthMultiplier + m
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
								iv := in[inShape.Index4(b, inY, inX, ic)]
								fv := f[fShape.Index4(0, ky, kx, oc)]
								acc += iv * fv
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
}

// DepthwiseConvPerChannel evaluates a per-channel quantized depthwise
// convolution over int8 activations with int32 bias.
func DepthwiseConvPerChannel(p Params, mult, shift []int32, inShape tensor.Shape, in []int8, fShape tensor.Shape, f []int8, bias []int32, outShape tensor.Shape, out []int8) {
	batches := outShape.Dim(0)
	outH, outW := outShape.Dim(1), outShape.Dim(2)
	inH, inW, inC := inShape.Dim(1), inShape.Dim(2), inShape.Dim(3)
	kH, kW := fShape.Dim(1), fShape.Dim(2)

	for b := 0; b < batches; b++ {
		for oy := 0; oy < outH; oy++ {
			for ox := 0; ox < outW; ox++ {
				inYOrigin := oy*p.StrideH - p.PadH
				inXOrigin := ox*p.StrideW - p.PadW
				for ic := 0; ic < inC; ic++ {
					for m := 0; m < p.DepthMultiplier; m++ {
						oc := ic*p.DepthMultiplier + m
						var acc int32
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
								iv := int32(in[inShape.Index4(b, inY, inX, ic)]) + p.InputOffset
								fv := int32(f[fShape.Index4(0, ky, kx, oc)])
								acc += iv * fv
							}
						}
						if bias != nil {
							acc += bias[oc]
						}
						v := MultiplyByQuantizedMultiplier(acc, mult[oc], shift[oc]) + p.OutputOffset
						if v < p.QuantMin {
							v = p.QuantMin
						}
						if v > p.QuantMax {
							v = p.QuantMax
						}
						out[outShape.Index4(b, oy, ox, oc)] = int8(v)
					}
				}
			}
		}
	}
}
