package kernel

import (
	"unsafe"

	"zero/internal/mem"
)

// buildPool allocates n fixed-size stacks and parks a stopped TCB over
// each, ready for FromPool to hand out. Called once from Init.
func (k *Kernel) buildPool(n int, stackBytes uintptr) error {
	for i := 0; i < n; i++ {
		stack, err := k.Allocate(stackBytes, mem.BottomUp)
		if err != nil {
			return err
		}
		t := &TCB{
			id:               k.nextIDLocked(),
			name:             "pool",
			stackBase:        unsafePointerOf(stack),
			stackSize:        uintptr(len(stack)),
			allocatedSignals: reservedSignalMask,
			flags:            FlagPoolThread,
			status:           StatusStopped,
			quantumRemaining: k.cfg.QuantumTicks,
		}
		t.link.Value = t
		t.timeoutLink.Value = t
		t.lowSP = t.stackSize
		t.ctx = k.plat.NewContext(stack, k.trampolineFor(t))
		k.poolFree = append(k.poolFree, t)
	}
	return nil
}

// newIdleThread builds the thread the scheduler dispatches when no other
// thread is ready. It never terminates, so trampoline teardown never
// triggers for it.
func (k *Kernel) newIdleThread(stackBytes uintptr) (*TCB, error) {
	stack, err := k.Allocate(stackBytes, mem.BottomUp)
	if err != nil {
		return nil, err
	}
	t := &TCB{
		id:               k.nextIDLocked(),
		name:             "idle",
		stackBase:        unsafePointerOf(stack),
		stackSize:        uintptr(len(stack)),
		allocatedSignals: reservedSignalMask,
		status:           StatusStopped,
		quantumRemaining: k.cfg.QuantumTicks,
	}
	t.lowSP = t.stackSize
	entry := func(unsafe.Pointer) int {
		k.idleBody()
		return 0
	}
	t.entry = entry
	t.ctx = k.plat.NewContext(stack, k.trampolineFor(t))
	return t, nil
}

// FromPool hands out a stopped pool TCB configured to run entry, marking
// it ready immediately with no separate Restart step: a pool thread is
// always ready the instant it is handed out.
func FromPool(name string, entry ThreadFunc, args unsafe.Pointer, exitDst *int, termSynapse *Synapse) (*TCB, error) {
	if k == nil {
		return nil, ErrNotInitialized
	}
	k.mu.Lock()
	defer k.mu.Unlock()

	if len(k.poolFree) == 0 {
		return nil, ErrPoolExhausted
	}
	last := len(k.poolFree) - 1
	t := k.poolFree[last]
	k.poolFree = k.poolFree[:last]

	t.id = k.nextIDLocked()
	t.name = name
	t.entry = entry
	t.entryArgs = args
	t.exitDst = exitDst
	t.termSynapse = termSynapse
	t.allocatedSignals = reservedSignalMask
	t.waitingSignals = 0
	t.currentSignals = 0
	t.timeoutOffset = 0

	// A freshly handed-out pool thread runs next, ahead of whatever is
	// already on the ready list: prepend, don't use the normal tail-ready
	// path readyLocked takes for newly created threads.
	t.status = StatusReady
	t.quantumRemaining = k.cfg.QuantumTicks
	k.activeList().Prepend(&t.link)
	return t, nil
}

// reanimateLocked resets t to its pristine pooled state and returns it to
// the free list. A fresh platform.Context is fabricated over the same
// underlying stack bytes, since the goroutine backing the outgoing
// context is mid-return from entry and cannot be reused for a future
// job. Caller holds k.mu.
func (k *Kernel) reanimateLocked(t *TCB) {
	t.entry = nil
	t.entryArgs = nil
	t.exitDst = nil
	t.termSynapse = nil
	t.allocatedSignals = reservedSignalMask
	t.waitingSignals = 0
	t.currentSignals = 0
	t.timeoutOffset = 0
	t.quantumRemaining = k.cfg.QuantumTicks
	t.lowSP = t.stackSize
	t.status = StatusStopped

	stack := k.heap.Bytes(t.stackBase, t.stackSize)
	t.ctx = k.plat.NewContext(stack, k.trampolineFor(t))

	k.poolFree = append(k.poolFree, t)
}
