package kernel

import (
	"errors"
	"fmt"

	"github.com/samcharles93/convtrace/internal/capture"
	"github.com/samcharles93/convtrace/internal/refconv"
	"github.com/samcharles93/convtrace/internal/tensor"
)

// ErrUnsupportedType reports an operand type combination with no
// evaluation primitive. It marks a model the instrumented build cannot
// run; there is nothing transient to retry.
var ErrUnsupportedType = errors.New("unsupported operand type")

// typeKey is the (input, filter, bias) element-type triple the
// dispatcher routes on. An absent bias is tensor.None.
type typeKey struct {
	in, filter, bias tensor.DType
}

type evalFunc func(op *Op, ctx Context, in, filter, bias, out *tensor.Tensor) error

// The route tables enumerate every supported triple per operator kind.
// Hybrid float/integer combinations are rejected by absence. The two
// int16 bias widths route to distinct instantiations of the same
// per-channel primitive, differing only in accumulator/bias widening.
var convRoutes = map[typeKey]evalFunc{
	{tensor.F32, tensor.F32, tensor.F32}:  evalConvFloat,
	{tensor.F32, tensor.F32, tensor.None}: evalConvFloat,

	{tensor.I16, tensor.I8, tensor.I32}:  evalConvInt16Bias32,
	{tensor.I16, tensor.I8, tensor.I64}:  evalConvInt16Bias64,
	{tensor.I16, tensor.I8, tensor.None}: evalConvInt16Bias32,

	{tensor.I8, tensor.I8, tensor.I32}:  evalConvInt8,
	{tensor.I8, tensor.I8, tensor.None}: evalConvInt8,

	{tensor.I8, tensor.I4, tensor.I32}:  evalConvInt4,
	{tensor.I8, tensor.I4, tensor.None}: evalConvInt4,
}

var depthwiseRoutes = map[typeKey]evalFunc{
	{tensor.F32, tensor.F32, tensor.F32}:  evalDepthwiseFloat,
	{tensor.F32, tensor.F32, tensor.None}: evalDepthwiseFloat,

	{tensor.I8, tensor.I8, tensor.I32}:  evalDepthwiseInt8,
	{tensor.I8, tensor.I8, tensor.None}: evalDepthwiseInt8,

	{tensor.I8, tensor.I4, tensor.I32}:  evalDepthwiseInt4,
	{tensor.I8, tensor.I4, tensor.None}: evalDepthwiseInt4,
}

func routesFor(kind capture.Kind) map[typeKey]evalFunc {
	if kind == capture.KindDepthwise {
		return depthwiseRoutes
	}
	return convRoutes
}

// route selects the evaluation primitive for the operand types, or
// reports which tensor role has no supported routing.
func route(kind capture.Kind, in, filter, bias, out *tensor.Tensor) (evalFunc, error) {
	if out.DType != in.DType {
		return nil, fmt.Errorf("%w: %s: output type %s with %s input", ErrUnsupportedType, kind, out.DType, in.DType)
	}
	routes := routesFor(kind)
	key := typeKey{in: in.DType, filter: filter.DType, bias: biasType(bias)}
	if fn, ok := routes[key]; ok {
		return fn, nil
	}
	return nil, unsupported(kind, routes, key)
}

func biasType(bias *tensor.Tensor) tensor.DType {
	if bias == nil {
		return tensor.None
	}
	return bias.DType
}

// unsupported names the first operand role, in input/filter/bias order,
// that rules the triple out.
func unsupported(kind capture.Kind, routes map[typeKey]evalFunc, key typeKey) error {
	inOK, filterOK := false, false
	for k := range routes {
		if k.in != key.in {
			continue
		}
		inOK = true
		if k.filter == key.filter {
			filterOK = true
		}
	}
	switch {
	case !inOK:
		return fmt.Errorf("%w: %s: input type %s", ErrUnsupportedType, kind, key.in)
	case !filterOK:
		return fmt.Errorf("%w: %s: filter type %s with %s input", ErrUnsupportedType, kind, key.filter, key.in)
	default:
		return fmt.Errorf("%w: %s: bias type %s with %s input and %s filter", ErrUnsupportedType, kind, key.bias, key.in, key.filter)
	}
}

func evalConvFloat(op *Op, _ Context, in, f, bias, out *tensor.Tensor) error {
	var b []float32
	if bias != nil {
		b = bias.Float32()
	}
	refconv.ConvFloat(op.data.params(), in.Shape, in.Float32(), f.Shape, f.Float32(), b, out.Shape, out.Float32())
	return nil
}

func evalConvInt8(op *Op, _ Context, in, f, bias, out *tensor.Tensor) error {
	op.data.assertChannels(out.Shape.Dim(3))
	var b []int32
	if bias != nil {
		b = bias.Int32()
	}
	refconv.ConvPerChannel(op.data.params(), op.data.OutputMultiplier, op.data.OutputShift,
		in.Shape, in.Int8(), f.Shape, f.Int8(), b, out.Shape, out.Int8())
	return nil
}

func evalConvInt4(op *Op, ctx Context, in, f, bias, out *tensor.Tensor) error {
	op.data.assertChannels(out.Shape.Dim(3))
	var b []int32
	if bias != nil {
		b = bias.Int32()
	}
	unpacked := op.unpackFilter(ctx, f)
	refconv.ConvPerChannel(op.data.params(), op.data.OutputMultiplier, op.data.OutputShift,
		in.Shape, in.Int8(), f.Shape, unpacked, b, out.Shape, out.Int8())
	return nil
}

func evalConvInt16Bias32(op *Op, _ Context, in, f, bias, out *tensor.Tensor) error {
	op.data.assertChannels(out.Shape.Dim(3))
	var b []int32
	if bias != nil {
		b = bias.Int32()
	}
	refconv.ConvPerChannel(op.data.params(), op.data.OutputMultiplier, op.data.OutputShift,
		in.Shape, in.Int16(), f.Shape, f.Int8(), b, out.Shape, out.Int16())
	return nil
}

func evalConvInt16Bias64(op *Op, _ Context, in, f, bias, out *tensor.Tensor) error {
	op.data.assertChannels(out.Shape.Dim(3))
	refconv.ConvPerChannel(op.data.params(), op.data.OutputMultiplier, op.data.OutputShift,
		in.Shape, in.Int16(), f.Shape, f.Int8(), bias.Int64(), out.Shape, out.Int16())
	return nil
}

func evalDepthwiseFloat(op *Op, _ Context, in, f, bias, out *tensor.Tensor) error {
	var b []float32
	if bias != nil {
		b = bias.Float32()
	}
	refconv.DepthwiseConvFloat(op.data.params(), in.Shape, in.Float32(), f.Shape, f.Float32(), b, out.Shape, out.Float32())
	return nil
}

func evalDepthwiseInt8(op *Op, _ Context, in, f, bias, out *tensor.Tensor) error {
	op.data.assertChannels(out.Shape.Dim(3))
	var b []int32
	if bias != nil {
		b = bias.Int32()
	}
	refconv.DepthwiseConvPerChannel(op.data.params(), op.data.OutputMultiplier, op.data.OutputShift,
		in.Shape, in.Int8(), f.Shape, f.Int8(), b, out.Shape, out.Int8())
	return nil
}

func evalDepthwiseInt4(op *Op, ctx Context, in, f, bias, out *tensor.Tensor) error {
	op.data.assertChannels(out.Shape.Dim(3))
	var b []int32
	if bias != nil {
		b = bias.Int32()
	}
	unpacked := op.unpackFilter(ctx, f)
	refconv.DepthwiseConvPerChannel(op.data.params(), op.data.OutputMultiplier, op.data.OutputShift,
		in.Shape, in.Int8(), f.Shape, unpacked, b, out.Shape, out.Int8())
	return nil
}
