package kernel

import (
	"fmt"

	"github.com/samcharles93/convtrace/internal/refconv"
)

// OpData is the per-operator parameter store: conv geometry, zero points
// and the per-output-channel requantization sequences. OutputMultiplier
// holds Q31 fixed-point fractions, OutputShift the matching signed
// power-of-two exponents; index i of one corresponds to index i of the
// other and to output channel i. The kernel passes both through to the
// primitives unmodified and aligned.
type OpData struct {
	StrideH, StrideW     int
	DilationH, DilationW int
	PadH, PadW           int

	// DepthMultiplier is used by the depthwise operator only.
	DepthMultiplier int

	InputZeroPoint  int32
	OutputZeroPoint int32

	OutputMultiplier []int32
	OutputShift      []int32

	QuantMin, QuantMax int32
	FloatMin, FloatMax float32
}

// params assembles the primitive parameter bundle. The primitives add
// InputOffset to raw input values, so it carries the negated zero point.
func (d *OpData) params() refconv.Params {
	return refconv.Params{
		StrideH:         atLeastOne(d.StrideH),
		StrideW:         atLeastOne(d.StrideW),
		DilationH:       atLeastOne(d.DilationH),
		DilationW:       atLeastOne(d.DilationW),
		PadH:            d.PadH,
		PadW:            d.PadW,
		DepthMultiplier: atLeastOne(d.DepthMultiplier),
		InputOffset:     -d.InputZeroPoint,
		OutputOffset:    d.OutputZeroPoint,
		QuantMin:        d.QuantMin,
		QuantMax:        d.QuantMax,
		FloatMin:        d.FloatMin,
		FloatMax:        d.FloatMax,
	}
}

// assertChannels enforces the parameter-store invariant for a quantized
// evaluation. A violation is a model-construction bug upstream, not a
// runtime condition, so it halts instead of returning.
func (d *OpData) assertChannels(outChannels int) {
	if len(d.OutputMultiplier) != outChannels || len(d.OutputShift) != outChannels {
		panic(fmt.Sprintf("kernel: per-channel sequences have %d multipliers and %d shifts for %d output channels",
			len(d.OutputMultiplier), len(d.OutputShift), outChannels))
	}
}

func atLeastOne(v int) int {
	if v < 1 {
		return 1
	}
	return v
}
