package kernel

import (
	"fmt"

	"github.com/samcharles93/convtrace/internal/capture"
	"github.com/samcharles93/convtrace/internal/tensor"
)

// Op is one conv or depthwise-conv operator instance. The two kinds
// share parameter storage and evaluation flow; the kind picks the route
// table and the capture classification.
type Op struct {
	kind capture.Kind
	data OpData
	rec  *capture.Recorder

	// unpackIdx locates the int4 unpack scratch, -1 when the filter is
	// not packed. The buffer is requested once at construction with
	// capacity for the full filter and repopulated on every evaluation.
	unpackIdx int
}

// NewConv constructs a standard convolution operator. rec may be nil to
// run without capture.
func NewConv(ctx Context, data OpData, filter *tensor.Tensor, rec *capture.Recorder) *Op {
	return newOp(ctx, capture.KindConv, data, filter, rec)
}

// NewDepthwiseConv constructs a depthwise convolution operator.
func NewDepthwiseConv(ctx Context, data OpData, filter *tensor.Tensor, rec *capture.Recorder) *Op {
	return newOp(ctx, capture.KindDepthwise, data, filter, rec)
}

func newOp(ctx Context, kind capture.Kind, data OpData, filter *tensor.Tensor, rec *capture.Recorder) *Op {
	op := &Op{kind: kind, data: data, rec: rec, unpackIdx: -1}
	if filter != nil && filter.DType == tensor.I4 {
		op.unpackIdx = ctx.RequestScratch(filter.Shape.FlatSize())
	}
	return op
}

// Data returns the operator's parameter store.
func (op *Op) Data() *OpData { return &op.data }

// Eval runs one invocation: capture arming, type dispatch, the selected
// primitive, post-capture and the boundary-counter advance. It returns
// a dispatch error as-is; missing required operands are a caller
// contract violation and panic.
func (op *Op) Eval(ctx Context, node *Node) error {
	in := node.Input(SlotInput)
	filter := node.Input(SlotFilter)
	bias := node.Input(SlotBias)
	out := node.Output
	if in == nil || filter == nil || out == nil {
		panic(fmt.Sprintf("kernel: %s node missing required tensor", op.kind))
	}

	layer := capture.Layer{
		Kind:           op.kind,
		KernelH:        filter.Shape.Dim(1),
		KernelW:        filter.Shape.Dim(2),
		InputChannels:  in.Shape.Dim(3),
		OutputChannels: out.Shape.Dim(3),
	}

	snap := op.rec.Begin(layer)
	snap.Tensor("ifmap", in)
	snap.Tensor("filter", filter)
	snap.Tensor("bias", bias)
	if len(op.data.OutputMultiplier) > 0 {
		snap.QuantParams(op.data.InputZeroPoint, op.data.OutputZeroPoint,
			op.data.OutputMultiplier, op.data.OutputShift)
	}
	if op.kind == capture.KindDepthwise {
		snap.DebugWindow(in, filter)
	}

	fn, err := route(op.kind, in, filter, bias, out)
	if err != nil {
		ctx.Logger().Error("dispatch failed", "op", op.kind.String(), "err", err)
		return err
	}
	if err := fn(op, ctx, in, filter, bias, out); err != nil {
		return err
	}

	snap.Output(out)
	op.rec.Advance(layer)
	return nil
}

// unpackFilter materializes the int8 view of a packed int4 filter in
// the operator's scratch buffer.
func (op *Op) unpackFilter(ctx Context, filter *tensor.Tensor) []int8 {
	n := filter.Shape.FlatSize()
	if op.unpackIdx < 0 {
		panic("kernel: int4 filter with no unpack scratch requested")
	}
	buf := ctx.Scratch(op.unpackIdx)
	if len(buf) < n {
		panic(fmt.Sprintf("kernel: unpack scratch holds %d bytes, filter needs %d", len(buf), n))
	}
	dst := int8View(buf)[:n]
	UnpackInt4(dst, filter.Packed(), n)
	return dst
}
