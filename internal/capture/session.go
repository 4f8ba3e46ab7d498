package capture

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/samcharles93/convtrace/internal/logger"
	"github.com/samcharles93/convtrace/internal/tensor"
)

// Rule selects one invocation to snapshot: the first invocation of Kind
// whose block counter equals Block and whose structure matches Pattern.
// Prefix names the emitted arrays. Each rule fires at most once per
// Recorder lifetime.
type Rule struct {
	Kind    Kind
	Pattern Pattern
	Block   int
	Prefix  string

	// DebugWindow additionally dumps the top-left 3x3 input window and
	// 3x3 filter plane of channel 0, once per Recorder.
	DebugWindow bool
}

type ruleState int

const (
	ruleIdle ruleState = iota
	rulePre            // pre-evaluation data written, output pending
	ruleDone           // post-evaluation data written; suppressed forever
)

type armedRule struct {
	Rule
	state ruleState
}

// Recorder owns all capture state for one process run: the per-kind
// block counters, the rules with their one-shot latches, and the
// emission sink. It deliberately has no locking: evaluation is
// single-threaded and non-reentrant, and a concurrent caller would race
// on the counters.
type Recorder struct {
	w        io.Writer
	log      logger.Logger
	boundary BoundaryPolicy

	sessionID string
	created   time.Time

	counters  map[Kind]int
	rules     []*armedRule
	arrays    []ArrayInfo
	debugDone bool
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithLogger sets the diagnostic sink. Capture itself never fails; the
// logger only reports skipped pieces.
func WithLogger(l logger.Logger) Option {
	return func(r *Recorder) { r.log = l }
}

// WithBoundary overrides the counter-advance policy.
func WithBoundary(b BoundaryPolicy) Option {
	return func(r *Recorder) { r.boundary = b }
}

// NewRecorder creates a Recorder emitting to w.
func NewRecorder(w io.Writer, rules []Rule, opts ...Option) *Recorder {
	r := &Recorder{
		w:         w,
		log:       logger.Discard(),
		boundary:  DefaultBoundary,
		sessionID: uuid.NewString(),
		created:   time.Now().UTC(),
		counters:  make(map[Kind]int),
	}
	for _, rl := range rules {
		r.rules = append(r.rules, &armedRule{Rule: rl})
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// SessionID returns the uuid identifying this capture run.
func (r *Recorder) SessionID() string {
	if r == nil {
		return ""
	}
	return r.sessionID
}

// Block returns the current block counter for kind.
func (r *Recorder) Block(kind Kind) int {
	if r == nil {
		return 0
	}
	return r.counters[kind]
}

// Begin checks the current invocation against the rules. On a hit it
// writes the pre-evaluation banner and returns a Capture for the
// operand emissions; otherwise it returns nil. All Capture methods are
// nil-safe so the kernel path stays branch-free. A nil Recorder never
// captures.
func (r *Recorder) Begin(l Layer) *Capture {
	if r == nil {
		return nil
	}
	for _, rl := range r.rules {
		if rl.state != ruleIdle || rl.Kind != l.Kind {
			continue
		}
		if r.counters[l.Kind] != rl.Block || !rl.Pattern.Matches(l) {
			continue
		}
		rl.state = rulePre
		fmt.Fprintf(r.w, "\n%s\n// BN %d: %s LAYER DATA\n%s\n",
			bannerRule, rl.Block+1, strings.ToUpper(l.Pattern().String()), bannerRule)
		r.log.Debug("capture hit",
			"kind", l.Kind.String(), "block", rl.Block, "prefix", rl.Prefix)
		return &Capture{rec: r, rule: rl, layer: l}
	}
	return nil
}

// Advance moves the block counter of the invocation's kind if the
// boundary policy marks it as a boundary. Call after evaluation,
// whether or not the invocation was captured.
func (r *Recorder) Advance(l Layer) {
	if r == nil {
		return
	}
	if r.boundary(l) {
		r.counters[l.Kind]++
	}
}

// Capture emits the snapshot of a single rule hit. The expected call
// order is Tensor/QuantParams/DebugWindow before evaluation, then
// Output once after; Output latches the rule.
type Capture struct {
	rec   *Recorder
	rule  *armedRule
	layer Layer
}

// Tensor emits one operand as a literal array named prefix_role. A nil
// tensor (absent bias) is skipped silently.
func (c *Capture) Tensor(role string, t *tensor.Tensor) {
	if c == nil || t == nil {
		return
	}
	name := c.rule.Prefix + "_" + role
	WriteTensor(c.rec.w, name, t)
	c.rec.recordTensor(name, t)
}

// QuantParams emits the requantization parameter bundle for the layer.
func (c *Capture) QuantParams(inputZeroPoint, outputZeroPoint int32, mult, shift []int32) {
	if c == nil {
		return
	}
	WriteQuantParams(c.rec.w, c.rule.Prefix, inputZeroPoint, outputZeroPoint, mult, shift)
	c.rec.recordArray(c.rule.Prefix+"_output_multiplier", tensor.I32, []int{len(mult)})
	c.rec.recordArray(c.rule.Prefix+"_output_shift", tensor.I32, []int{len(shift)})
}

// DebugWindow emits the channel-0 spot-check arrays when the rule asks
// for them. Tensors that are not rank-4 int8 with at least a 3x3 extent
// are skipped.
func (c *Capture) DebugWindow(input, filter *tensor.Tensor) {
	if c == nil || !c.rule.DebugWindow || c.rec.debugDone {
		return
	}
	if !debugWindowFits(input) || !debugWindowFits(filter) {
		c.rec.log.Warn("debug window skipped: operands below 3x3 int8")
		return
	}
	w := c.rec.w
	fmt.Fprint(w, "\n\n--- DEBUG DUMP: DEPTHWISE STAGE, TOP-LEFT 3x3 WINDOW, CHANNEL 0 ---\n\n")

	fmt.Fprint(w, "// 1. DW Input Data (Top-Left 3x3 Window, Channel 0):\n")
	fmt.Fprint(w, "const int8_t debug_dw_window_ch0[] = {")
	in := input.Int8()
	for y := 0; y < 3; y++ {
		for x := 0; x < 3; x++ {
			fmt.Fprintf(w, " %d,", in[input.Shape.Index4(0, y, x, 0)])
		}
	}
	fmt.Fprint(w, " };\n\n")

	fmt.Fprint(w, "// 2. DW Filter Data (First Filter, Channel 0, 3x3):\n")
	fmt.Fprint(w, "const int8_t debug_dw_filter_ch0[] = {")
	f := filter.Int8()
	for ky := 0; ky < 3; ky++ {
		for kx := 0; kx < 3; kx++ {
			fmt.Fprintf(w, " %d,", f[filter.Shape.Index4(0, ky, kx, 0)])
		}
	}
	fmt.Fprint(w, " };\n\n")

	c.rec.debugDone = true
}

// Output emits the post-evaluation data and sets the rule's latch. Any
// later invocation matching the same rule emits nothing.
func (c *Capture) Output(t *tensor.Tensor) {
	if c == nil {
		return
	}
	fmt.Fprintf(c.rec.w, "\n// --- BN %d: FINAL OUTPUT DATA ---\n", c.rule.Block+1)
	c.Tensor("output", t)
	c.rule.state = ruleDone
}

func debugWindowFits(t *tensor.Tensor) bool {
	return t != nil && t.DType == tensor.I8 && len(t.Shape) == 4 &&
		t.Shape.Dim(1) >= 3 && t.Shape.Dim(2) >= 3
}
