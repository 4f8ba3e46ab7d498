// Package kernel implements the instrumented convolution and
// depthwise-convolution operators: operand lookup, type dispatch to the
// reference primitives, packed-weight unpacking, and the capture hooks.
// Evaluation is single-threaded, synchronous and non-reentrant; one
// invocation runs to completion before the next begins.
package kernel

import (
	"unsafe"

	"github.com/samcharles93/convtrace/internal/logger"
	"github.com/samcharles93/convtrace/internal/tensor"
)

// Node slot indices for operator operands.
const (
	SlotInput  = 0
	SlotFilter = 1
	SlotBias   = 2
)

// Context is the execution environment an operator runs in: persistent
// allocation at construction time, scratch retrieval by index at
// evaluation time, and a diagnostic sink.
type Context interface {
	// AllocatePersistent returns a zeroed buffer that stays valid for
	// the lifetime of the run.
	AllocatePersistent(size int) []byte

	// RequestScratch registers a persistent scratch buffer during
	// operator construction and returns its retrieval index.
	RequestScratch(size int) int

	// Scratch returns the buffer registered under index.
	Scratch(index int) []byte

	Logger() logger.Logger
}

// Node binds an operator invocation to its operand tensors. Inputs are
// slot-indexed: 0 input, 1 filter, 2 optional bias.
type Node struct {
	Inputs []*tensor.Tensor
	Output *tensor.Tensor
}

// Input returns the tensor in the given slot, or nil when absent.
func (n *Node) Input(slot int) *tensor.Tensor {
	if slot < 0 || slot >= len(n.Inputs) {
		return nil
	}
	return n.Inputs[slot]
}

// RunContext is the arena-backed Context used by the runner and tests.
type RunContext struct {
	log     logger.Logger
	scratch [][]byte
}

// NewRunContext creates a RunContext logging to log; a nil log discards.
func NewRunContext(log logger.Logger) *RunContext {
	if log == nil {
		log = logger.Discard()
	}
	return &RunContext{log: log}
}

func (c *RunContext) AllocatePersistent(size int) []byte {
	return make([]byte, size)
}

func (c *RunContext) RequestScratch(size int) int {
	c.scratch = append(c.scratch, c.AllocatePersistent(size))
	return len(c.scratch) - 1
}

func (c *RunContext) Scratch(index int) []byte {
	if index < 0 || index >= len(c.scratch) {
		return nil
	}
	return c.scratch[index]
}

func (c *RunContext) Logger() logger.Logger { return c.log }

// int8View reinterprets a scratch byte buffer as int8 without copying.
func int8View(b []byte) []int8 {
	if len(b) == 0 {
		return nil
	}
	return unsafe.Slice((*int8)(unsafe.Pointer(&b[0])), len(b))
}
