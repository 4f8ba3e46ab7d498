// Package model builds the deterministic synthetic network the runner
// executes: an optional spatial stem followed by inverted-residual
// blocks (expansion 1x1, depthwise, projection 1x1), all int8
// per-channel quantized with seeded pseudo-random weights. It exists to
// drive the instrumented kernels through a realistic layer sequence so
// capture rules have real block boundaries to count.
package model

import (
	"fmt"
	"math/rand"

	"github.com/samcharles93/convtrace/internal/capture"
	"github.com/samcharles93/convtrace/internal/kernel"
	"github.com/samcharles93/convtrace/internal/tensor"
)

// BlockSpec describes one inverted-residual block.
type BlockSpec struct {
	ExpandRatio int `yaml:"expand_ratio"`
	OutChannels int `yaml:"out_channels"`
	Stride      int `yaml:"stride"`
	KernelSize  int `yaml:"kernel_size"`
}

// NetworkSpec describes the synthetic topology.
type NetworkSpec struct {
	Height   int `yaml:"height"`
	Width    int `yaml:"width"`
	Channels int `yaml:"channels"`

	// Stem prepends a 3x3 spatial conv that keeps the channel count.
	Stem bool `yaml:"stem"`

	// Int4Expansion packs expansion filters as int4 to exercise the
	// unpack path.
	Int4Expansion bool `yaml:"int4_expansion"`

	Blocks []BlockSpec `yaml:"blocks"`
}

// Uniform returns a spec with n identical blocks.
func Uniform(height, width, channels, n, expandRatio, outChannels int) NetworkSpec {
	spec := NetworkSpec{Height: height, Width: width, Channels: channels}
	for i := 0; i < n; i++ {
		spec.Blocks = append(spec.Blocks, BlockSpec{
			ExpandRatio: expandRatio,
			OutChannels: outChannels,
			Stride:      1,
			KernelSize:  3,
		})
	}
	return spec
}

type layerInst struct {
	name string
	op   *kernel.Op
	node *kernel.Node
}

// Network is a built, ready-to-run layer sequence.
type Network struct {
	layers []layerInst
	input  *tensor.Tensor
	output *tensor.Tensor
}

// Build materializes tensors and operators for spec. All weights, bias
// values and quantization parameters derive from seed, so two builds
// with the same spec and seed produce identical capture output.
func Build(ctx kernel.Context, spec NetworkSpec, seed int64, rec *capture.Recorder) (*Network, error) {
	if spec.Height < 1 || spec.Width < 1 || spec.Channels < 1 {
		return nil, fmt.Errorf("model: invalid input extent %dx%dx%d", spec.Height, spec.Width, spec.Channels)
	}
	rng := rand.New(rand.NewSource(seed))

	net := &Network{}
	in := tensor.NewInt8(tensor.Shape{1, spec.Height, spec.Width, spec.Channels}, randInt8(rng, spec.Height*spec.Width*spec.Channels))
	net.input = in
	cur := in

	if spec.Stem {
		cur = net.addConv(ctx, rec, rng, "stem", cur, cur.Shape.Dim(3), 3, 1, false)
	}
	for i, b := range spec.Blocks {
		if b.ExpandRatio < 1 || b.OutChannels < 1 {
			return nil, fmt.Errorf("model: block %d has invalid expand ratio %d or channels %d", i, b.ExpandRatio, b.OutChannels)
		}
		expanded := cur.Shape.Dim(3) * b.ExpandRatio
		cur = net.addConv(ctx, rec, rng, fmt.Sprintf("block%d_expand", i), cur, expanded, 1, 1, spec.Int4Expansion)
		cur = net.addDepthwise(ctx, rec, rng, fmt.Sprintf("block%d_dw", i), cur, b.KernelSize, b.Stride)
		cur = net.addConv(ctx, rec, rng, fmt.Sprintf("block%d_project", i), cur, b.OutChannels, 1, 1, false)
	}
	net.output = cur
	return net, nil
}

// SetInput overwrites the network input with caller data.
func (n *Network) SetInput(data []int8) error {
	dst := n.input.Int8()
	if len(data) != len(dst) {
		return fmt.Errorf("model: input has %d elements, network needs %d", len(data), len(dst))
	}
	copy(dst, data)
	return nil
}

// Input returns the network input view.
func (n *Network) Input() *tensor.Tensor { return n.input }

// Output returns the final layer's output view.
func (n *Network) Output() *tensor.Tensor { return n.output }

// Layers returns the layer count.
func (n *Network) Layers() int { return len(n.layers) }

// Run evaluates every layer in order.
func (n *Network) Run(ctx kernel.Context) error {
	for _, l := range n.layers {
		if err := l.op.Eval(ctx, l.node); err != nil {
			return fmt.Errorf("model: layer %s: %w", l.name, err)
		}
	}
	return nil
}

func (n *Network) addConv(ctx kernel.Context, rec *capture.Recorder, rng *rand.Rand, name string, in *tensor.Tensor, outC, k, stride int, packed bool) *tensor.Tensor {
	inC := in.Shape.Dim(3)
	pad := (k - 1) / 2
	outH := convExtent(in.Shape.Dim(1), k, stride, pad)
	outW := convExtent(in.Shape.Dim(2), k, stride, pad)
	out := tensor.NewInt8(tensor.Shape{1, outH, outW, outC}, make([]int8, outH*outW*outC))

	fShape := tensor.Shape{outC, k, k, inC}
	var filter *tensor.Tensor
	if packed {
		filter = tensor.NewInt4(fShape, kernel.PackInt4(randNibbles(rng, fShape.FlatSize())))
	} else {
		filter = tensor.NewInt8(fShape, randInt8(rng, fShape.FlatSize()))
	}
	bias := tensor.NewInt32(tensor.Shape{outC}, randBias(rng, outC))

	data := synthOpData(rng, outC)
	data.StrideH, data.StrideW = stride, stride
	data.PadH, data.PadW = pad, pad

	op := kernel.NewConv(ctx, data, filter, rec)
	n.layers = append(n.layers, layerInst{
		name: name,
		op:   op,
		node: &kernel.Node{Inputs: []*tensor.Tensor{in, filter, bias}, Output: out},
	})
	return out
}

func (n *Network) addDepthwise(ctx kernel.Context, rec *capture.Recorder, rng *rand.Rand, name string, in *tensor.Tensor, k, stride int) *tensor.Tensor {
	c := in.Shape.Dim(3)
	pad := (k - 1) / 2
	outH := convExtent(in.Shape.Dim(1), k, stride, pad)
	outW := convExtent(in.Shape.Dim(2), k, stride, pad)
	out := tensor.NewInt8(tensor.Shape{1, outH, outW, c}, make([]int8, outH*outW*c))

	fShape := tensor.Shape{1, k, k, c}
	filter := tensor.NewInt8(fShape, randInt8(rng, fShape.FlatSize()))
	bias := tensor.NewInt32(tensor.Shape{c}, randBias(rng, c))

	data := synthOpData(rng, c)
	data.StrideH, data.StrideW = stride, stride
	data.PadH, data.PadW = pad, pad
	data.DepthMultiplier = 1

	op := kernel.NewDepthwiseConv(ctx, data, filter, rec)
	n.layers = append(n.layers, layerInst{
		name: name,
		op:   op,
		node: &kernel.Node{Inputs: []*tensor.Tensor{in, filter, bias}, Output: out},
	})
	return out
}

func convExtent(in, k, stride, pad int) int {
	out := (in+2*pad-k)/stride + 1
	if out < 1 {
		out = 1
	}
	return out
}

// synthOpData draws plausible quantization parameters: Q31 multipliers
// in [0.25, 0.5), shifts in [-8, -3], and small zero points.
func synthOpData(rng *rand.Rand, outC int) kernel.OpData {
	mult := make([]int32, outC)
	shift := make([]int32, outC)
	for i := range mult {
		mult[i] = int32(1<<29) + rng.Int31n(1<<29)
		shift[i] = -3 - rng.Int31n(6)
	}
	return kernel.OpData{
		InputZeroPoint:   rng.Int31n(9) - 4,
		OutputZeroPoint:  rng.Int31n(9) - 4,
		OutputMultiplier: mult,
		OutputShift:      shift,
		QuantMin:         -128,
		QuantMax:         127,
	}
}

func randInt8(rng *rand.Rand, n int) []int8 {
	out := make([]int8, n)
	for i := range out {
		out[i] = int8(rng.Intn(255) - 127)
	}
	return out
}

func randNibbles(rng *rand.Rand, n int) []int8 {
	out := make([]int8, n)
	for i := range out {
		out[i] = int8(rng.Intn(16) - 8)
	}
	return out
}

func randBias(rng *rand.Rand, n int) []int32 {
	out := make([]int32, n)
	for i := range out {
		out[i] = rng.Int31n(2048) - 1024
	}
	return out
}
