// Package capture implements the golden-vector snapshot subsystem: a
// per-operator-kind block counter, one-shot capture rules, and the
// C-style literal-array emission format consumed by an offline reference
// harness. All state lives in an explicit Recorder passed to each
// operator instance; there are no package-level counters.
package capture

// Kind distinguishes the two instrumented operator kinds. A depthwise
// layer is identified by its kind, never by filter shape.
type Kind int

const (
	KindConv Kind = iota
	KindDepthwise
)

func (k Kind) String() string {
	switch k {
	case KindConv:
		return "conv"
	case KindDepthwise:
		return "depthwise"
	default:
		return "unknown"
	}
}

// Pattern is the structural classification of one operator invocation.
type Pattern int

const (
	// PatternAny matches every invocation of the rule's kind.
	PatternAny Pattern = iota
	// PatternExpansion is a 1x1 convolution that grows channel count.
	PatternExpansion
	// PatternProjection is a 1x1 convolution that shrinks channel count.
	PatternProjection
	// PatternSpatial covers every other convolution, including 1x1
	// layers that keep the channel count.
	PatternSpatial
	// PatternDepthwise is any depthwise invocation.
	PatternDepthwise
)

func (p Pattern) String() string {
	switch p {
	case PatternAny:
		return "any"
	case PatternExpansion:
		return "expansion"
	case PatternProjection:
		return "projection"
	case PatternSpatial:
		return "spatial"
	case PatternDepthwise:
		return "depthwise"
	default:
		return "unknown"
	}
}

// Layer describes the structure of the current invocation, derived from
// the operand shapes by the kernel layer.
type Layer struct {
	Kind                          Kind
	KernelH, KernelW              int
	InputChannels, OutputChannels int
}

// Pattern classifies the layer.
func (l Layer) Pattern() Pattern {
	if l.Kind == KindDepthwise {
		return PatternDepthwise
	}
	if l.KernelH == 1 && l.KernelW == 1 {
		switch {
		case l.OutputChannels > l.InputChannels:
			return PatternExpansion
		case l.OutputChannels < l.InputChannels:
			return PatternProjection
		}
	}
	return PatternSpatial
}

// Matches reports whether the layer satisfies pattern p.
func (p Pattern) Matches(l Layer) bool {
	if p == PatternAny {
		return true
	}
	return l.Pattern() == p
}

// BoundaryPolicy decides whether an invocation advances the block
// counter of its kind. It is injectable so tests can drive arbitrary
// topologies.
type BoundaryPolicy func(Layer) bool

// DefaultBoundary reproduces the instrumentation this package was built
// against: the conv counter advances only after a projection-shaped 1x1
// layer, the depthwise counter after every invocation. The asymmetry is
// deliberate; it keeps both counters aligned to the block index of an
// inverted-residual network.
func DefaultBoundary(l Layer) bool {
	if l.Kind == KindDepthwise {
		return true
	}
	return l.Pattern() == PatternProjection
}
