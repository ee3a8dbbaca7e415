// Package platform defines the hardware capability seam the kernel is
// built against: save/restore of a thread's full execution context
// to/from its own stack, fabrication of an initial stack frame for the
// shared trampoline, and the time/tick source that drives preemption. A
// real target implements this over register save instructions and a
// hardware timer; platform/host implements it over goroutines and
// channels for development and tests.
package platform

// Context is an opaque per-thread execution context created by NewContext.
// The kernel never inspects it; it only threads it back through Switch and
// StackPointer.
type Context interface{}

// Platform is the capability set the kernel needs from its host.
type Platform interface {
	// NewContext fabricates a context for a thread whose stack occupies
	// stack, such that the first Switch onto it begins running entry as if
	// it had just been restored from a preemption at entry's first
	// instruction.
	NewContext(stack []byte, entry func()) Context

	// Switch transfers execution from the calling thread's context (from,
	// nil if there is none yet) to to. The call returns once execution is
	// switched back to from. If from is nil there is nothing to switch back
	// to: a real target never returns, while platform/host returns as soon
	// as to has been resumed.
	Switch(from, to Context)

	// StackPointer reports the current stack depth marker for ctx, used
	// for low-water-mark tracking and overflow detection. Smaller values
	// indicate more of the stack has been consumed, matching a
	// downward-growing hardware stack.
	StackPointer(ctx Context) uintptr

	// Now returns a free-running millisecond counter.
	Now() uint64

	// Ticks delivers one value per periodic hardware tick (default 1ms).
	Ticks() <-chan struct{}
}
