package kernel

import (
	"bytes"
	"strings"
	"testing"

	"github.com/samcharles93/convtrace/internal/capture"
	"github.com/samcharles93/convtrace/internal/tensor"
)

// block is an expansion (16->32) and projection (32->16) operator pair
// sharing one recorder and context.
type block struct {
	ex, pr         *Op
	exNode, prNode *Node
}

func buildBlock(t *testing.T, ctx Context, rec *capture.Recorder) block {
	t.Helper()

	exMult, exShift := unitScale(32)
	exFilter := tensor.NewInt8(tensor.Shape{32, 1, 1, 16}, make([]int8, 32*16))
	ex := NewConv(ctx, int8OpData(exMult, exShift), exFilter, rec)
	exNode := &Node{
		Inputs: []*tensor.Tensor{
			tensor.NewInt8(tensor.Shape{1, 1, 1, 16}, make([]int8, 16)),
			exFilter,
			tensor.NewInt32(tensor.Shape{32}, make([]int32, 32)),
		},
		Output: tensor.NewInt8(tensor.Shape{1, 1, 1, 32}, make([]int8, 32)),
	}

	prMult, prShift := unitScale(16)
	prFilter := tensor.NewInt8(tensor.Shape{16, 1, 1, 32}, make([]int8, 16*32))
	pr := NewConv(ctx, int8OpData(prMult, prShift), prFilter, rec)
	prNode := &Node{
		Inputs: []*tensor.Tensor{
			tensor.NewInt8(tensor.Shape{1, 1, 1, 32}, make([]int8, 32)),
			prFilter,
			nil,
		},
		Output: tensor.NewInt8(tensor.Shape{1, 1, 1, 16}, make([]int8, 16)),
	}

	return block{ex: ex, pr: pr, exNode: exNode, prNode: prNode}
}

func TestCaptureFiresOnFifthBlock(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	rec := capture.NewRecorder(&buf, []capture.Rule{
		{Kind: capture.KindConv, Pattern: capture.PatternExpansion, Block: 4, Prefix: "bn5_ex"},
	})

	ctx := NewRunContext(nil)
	b := buildBlock(t, ctx, rec)

	// Blocks 1-4: the projection boundary advances the counter, the
	// expansion rule stays silent.
	for i := 0; i < 4; i++ {
		if err := b.ex.Eval(ctx, b.exNode); err != nil {
			t.Fatalf("block %d expansion: %v", i+1, err)
		}
		if err := b.pr.Eval(ctx, b.prNode); err != nil {
			t.Fatalf("block %d projection: %v", i+1, err)
		}
	}
	if buf.Len() != 0 {
		t.Fatalf("capture emitted before block 5:\n%s", buf.String())
	}
	if got := rec.Block(capture.KindConv); got != 4 {
		t.Fatalf("expected conv counter 4 after 4 projections, got %d", got)
	}

	// Block 5: the expansion runs with the counter at 4 and is captured.
	if err := b.ex.Eval(ctx, b.exNode); err != nil {
		t.Fatalf("block 5 expansion: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "// BN 5: EXPANSION LAYER DATA") {
		t.Errorf("missing block banner:\n%s", out)
	}
	for _, name := range []string{"bn5_ex_ifmap", "bn5_ex_filter", "bn5_ex_bias", "bn5_ex_output"} {
		if !strings.Contains(out, "Tensor '"+name+"'") {
			t.Errorf("missing array %s", name)
		}
	}
	if !strings.Contains(out, "// --- BN 5: FINAL OUTPUT DATA ---") {
		t.Errorf("missing output banner:\n%s", out)
	}
	if !strings.Contains(out, "bn5_ex_output_multiplier") {
		t.Errorf("missing requantization params:\n%s", out)
	}

	// Later blocks stay suppressed.
	marker := buf.Len()
	if err := b.pr.Eval(ctx, b.prNode); err != nil {
		t.Fatalf("block 5 projection: %v", err)
	}
	if err := b.ex.Eval(ctx, b.exNode); err != nil {
		t.Fatalf("block 6 expansion: %v", err)
	}
	if buf.Len() != marker {
		t.Fatalf("suppressed rule emitted again:\n%s", buf.String()[marker:])
	}
}

func TestCaptureDepthwiseEveryInvocationAdvances(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	rec := capture.NewRecorder(&buf, nil)
	ctx := NewRunContext(nil)

	mult, shift := unitScale(8)
	data := int8OpData(mult, shift)
	data.DepthMultiplier = 1
	filter := tensor.NewInt8(tensor.Shape{1, 3, 3, 8}, make([]int8, 72))
	op := NewDepthwiseConv(ctx, data, filter, rec)

	node := &Node{
		Inputs: []*tensor.Tensor{
			tensor.NewInt8(tensor.Shape{1, 3, 3, 8}, make([]int8, 72)),
			filter,
			nil,
		},
		Output: tensor.NewInt8(tensor.Shape{1, 1, 1, 8}, make([]int8, 8)),
	}
	for i := 0; i < 3; i++ {
		if err := op.Eval(ctx, node); err != nil {
			t.Fatalf("eval %d: %v", i, err)
		}
	}
	if got := rec.Block(capture.KindDepthwise); got != 3 {
		t.Fatalf("expected depthwise counter 3, got %d", got)
	}
	if got := rec.Block(capture.KindConv); got != 0 {
		t.Fatalf("conv counter moved with depthwise invocations: %d", got)
	}
}

func TestCaptureSkippedOnDispatchError(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	rec := capture.NewRecorder(&buf, nil)
	ctx := NewRunContext(nil)

	// Projection-shaped, so a successful run would advance the counter.
	mult, shift := unitScale(1)
	filter := tensor.NewFloat32(tensor.Shape{1, 1, 1, 2}, make([]float32, 2))
	op := NewConv(ctx, int8OpData(mult, shift), filter, rec)

	node := &Node{
		Inputs: []*tensor.Tensor{
			tensor.NewInt8(tensor.Shape{1, 1, 1, 2}, make([]int8, 2)),
			filter,
			nil,
		},
		Output: tensor.NewInt8(tensor.Shape{1, 1, 1, 1}, make([]int8, 1)),
	}
	if err := op.Eval(ctx, node); err == nil {
		t.Fatal("expected dispatch error")
	}
	// A failed evaluation is not a block boundary.
	if got := rec.Block(capture.KindConv); got != 0 {
		t.Fatalf("counter advanced on a failed evaluation: %d", got)
	}
}
