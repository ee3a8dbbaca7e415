package kernel

import (
	"errors"
	"fmt"
	"unsafe"

	"zero/internal/mem"
)

// ErrThreadLeakedSignals is the pool-leak assertion failure: a pool thread
// exited with allocated signals still outstanding. A real target treats
// this as fatal, since a reanimated TCB reusing the slot must start from
// a clean signal mask.
var ErrThreadLeakedSignals = errors.New("kernel: pool thread exited with allocated signals outstanding")

// CreateOptions configures a new (non-pool) thread. ReadyOnStart is a
// convenience for Flags|=FlagReadyOnCreate; the two compose, so either
// spelling works.
type CreateOptions struct {
	Name         string
	StackBytes   uintptr
	Entry        ThreadFunc
	Args         unsafe.Pointer
	ExitDst      *int
	TermSynapse  *Synapse
	ReadyOnStart bool
	Flags        Flags
	Strategy     mem.Strategy
}

// Create allocates a fresh stack from the kernel heap, builds a TCB, and
// either queues it ready (FlagReadyOnCreate) or leaves it stopped
// awaiting a Restart.
func Create(opts CreateOptions) (*TCB, error) {
	if k == nil {
		return nil, ErrNotInitialized
	}
	if opts.Entry == nil {
		return nil, fmt.Errorf("kernel: Create requires a non-nil entry point")
	}
	stack, err := k.Allocate(opts.StackBytes, opts.Strategy)
	if err != nil {
		return nil, err
	}

	flags := opts.Flags
	if opts.ReadyOnStart {
		flags |= FlagReadyOnCreate
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	t := &TCB{
		id:               k.nextIDLocked(),
		name:             opts.Name,
		stackBase:        unsafePointerOf(stack),
		stackSize:        uintptr(len(stack)),
		allocatedSignals: reservedSignalMask,
		flags:            flags,
		entry:            opts.Entry,
		entryArgs:        opts.Args,
		termSynapse:      opts.TermSynapse,
		exitDst:          opts.ExitDst,
		status:           StatusStopped,
		quantumRemaining: k.cfg.QuantumTicks,
	}
	t.link.Value = t
	t.timeoutLink.Value = t
	t.ctx = k.plat.NewContext(stack, k.trampolineFor(t))
	t.lowSP = t.stackSize

	if flags&FlagReadyOnCreate != 0 {
		k.readyLocked(t)
	}
	return t, nil
}

func (k *Kernel) nextIDLocked() ID {
	k.nextID++
	return k.nextID
}

// trampolineFor returns the function the platform runs the very first
// time t's context is switched onto. It runs t's entry to completion,
// then performs a fixed teardown sequence: record the exit code, remove
// the thread from any list it is still on, assert no dangling signals
// for pool threads, either reanimate (pool threads) or deallocate its
// stack, and fire the termination synapse — then park forever, since a
// platform.Context's goroutine never runs twice.
func (k *Kernel) trampolineFor(t *TCB) func() {
	return func() {
		code := t.entry(t.entryArgs)

		k.mu.Lock()
		if t.exitDst != nil {
			*t.exitDst = code
		}
		synapse := t.termSynapse
		t.link.Detach()
		t.timeoutLink.Detach()

		isPool := t.flags&FlagPoolThread != 0 && t.flags&FlagSelfDestruct == 0
		if isPool && t.allocatedSignals&^reservedSignalMask != 0 {
			t.status = StatusStopped
			k.mu.Unlock()
			panic(ErrThreadLeakedSignals)
		}

		if isPool {
			k.reanimateLocked(t)
			k.mu.Unlock()
		} else {
			t.status = StatusStopped
			stackBase, stackSize := t.stackBase, t.stackSize
			k.mu.Unlock()
			k.heap.Free(stackBase, stackSize)
		}

		synapse.Fire()
		k.terminateSwitch(t)
	}
}

// terminateSwitch hands off to the next runnable thread without ever
// returning to this goroutine, matching a real trampoline's "never
// returns" contract.
func (k *Kernel) terminateSwitch(t *TCB) {
	k.mu.Lock()
	next := k.pickNextLocked()
	k.current = next
	next.status = StatusRunning
	k.mu.Unlock()

	k.plat.Switch(nil, next.ctx)
	select {}
}
