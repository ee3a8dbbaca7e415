// Package kernel implements the zero microkernel: a round-robin thread
// scheduler driven by a periodic tick, a signal/wait synchronization
// primitive, and a page-backed heap, built over a platform.Platform
// capability set so the same scheduling logic runs unmodified on real
// hardware or on platform/host for development.
//
// On real hardware the tick is a genuine interrupt that can force a
// context switch at an arbitrary instruction. platform/host cannot do
// that — no portable Go mechanism can suspend another goroutine's
// execution from outside it — so the tick handler here only marks the
// running thread preemptable, and Checkpoint performs the actual switch
// the next time that thread's own goroutine reaches it. A thread body
// that never calls Checkpoint (directly, or through Wait/Delay) is never
// displaced by quantum expiration alone; see Checkpoint, DESIGN.md, and
// TestPreemptionRequiresCheckpoint for the documented consequence.
package kernel

import (
	"fmt"
	"sync"
	"unsafe"

	"zero/internal/list"
	"zero/internal/mem"
	"zero/platform"
)

// Kernel is the single scheduler instance. This package deliberately
// exposes a package-level singleton rather than a widely-threaded
// handle: a real target only ever runs one kernel image.
type Kernel struct {
	mu sync.Mutex

	cfg  Config
	plat platform.Platform
	heap *mem.Allocator

	nextID ID

	ring        [2]list.List[*TCB]
	activeIdx   int
	timeoutList list.OffsetList[*TCB]

	poolFree []*TCB

	idle    *TCB
	current *TCB

	forbidDepth int

	idleEntry func()
	overflow  func(t *TCB)
}

var k *Kernel

// Option customizes Init beyond Config with weak-linked application
// overrides: the idle thread body and the stack-overflow handler.
type Option func(*Kernel)

// WithIdleEntry overrides the body the idle thread runs when no other
// thread is ready. The default loops forever calling Checkpoint.
func WithIdleEntry(fn func()) Option {
	return func(k *Kernel) { k.idleEntry = fn }
}

// WithOverflowHandler installs a callback invoked when a thread's stack
// low-water mark reaches zero. With no handler installed, an overflow is
// recorded in the low-water mark only: the offending thread is neither
// halted nor parked and keeps running.
func WithOverflowHandler(fn func(t *TCB)) Option {
	return func(k *Kernel) { k.overflow = fn }
}

// Init constructs the kernel singleton: it carves the heap out of region
// using cfg's page size, builds the thread pool, creates the idle thread,
// and starts plat's tick source. It must be called exactly once before Run.
func Init(cfg Config, plat platform.Platform, region []byte, opts ...Option) (*Kernel, error) {
	if k != nil {
		return nil, fmt.Errorf("kernel: already initialized")
	}
	newK := &Kernel{
		cfg:  cfg,
		plat: plat,
		heap: mem.New(region, cfg.PageSize),
	}
	for _, opt := range opts {
		opt(newK)
	}
	k = newK

	if err := k.buildPool(cfg.PoolThreads, cfg.PoolStackBytes); err != nil {
		k = nil
		return nil, err
	}
	idle, err := k.newIdleThread(cfg.IdleStackBytes)
	if err != nil {
		k = nil
		return nil, err
	}
	k.idle = idle

	if starter, ok := plat.(interface{ Start() error }); ok {
		if err := starter.Start(); err != nil {
			k = nil
			return nil, err
		}
	}

	return k, nil
}

// idleBody is the body the idle TCB runs: the WithIdleEntry override if
// one was set, otherwise a loop that calls Checkpoint forever.
func (k *Kernel) idleBody() {
	if k.idleEntry != nil {
		k.idleEntry()
		return
	}
	for {
		Checkpoint()
	}
}

// Run starts the tick loop and dispatches the first thread. It does not
// return on a real target; the host build returns as soon as the first
// thread has been dispatched.
func (k *Kernel) Run() {
	k.mu.Lock()
	first := k.pickNextLocked()
	k.current = first
	first.status = StatusRunning
	k.mu.Unlock()

	go k.tickLoop()

	k.plat.Switch(nil, first.ctx)
}

// Now returns the platform's free-running millisecond counter.
func (k *Kernel) Now() uint64 { return k.plat.Now() }

// Now returns the singleton kernel's free-running millisecond counter.
func Now() uint64 {
	if k == nil {
		return 0
	}
	return k.Now()
}

// Forbid enters a critical section: the tick handler still runs and
// accumulates bookkeeping (quantum decrement, timeout aging, wake
// requests), but Checkpoint will not act on preemptPending until the
// matching Permit. Sections nest.
func (k *Kernel) Forbid() {
	k.mu.Lock()
	k.forbidDepth++
	k.mu.Unlock()
}

// Permit leaves a critical section entered by Forbid.
func (k *Kernel) Permit() {
	k.mu.Lock()
	k.forbidDepth--
	if k.forbidDepth < 0 {
		k.forbidDepth = 0
	}
	k.mu.Unlock()
}

// SwitchingEnabled reports whether the scheduler is currently free to
// switch away from the running thread.
func (k *Kernel) SwitchingEnabled() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.forbidDepth == 0
}

// Forbid enters a critical section on the singleton kernel. See
// (*Kernel).Forbid.
func Forbid() {
	if k != nil {
		k.Forbid()
	}
}

// Permit leaves a critical section entered by Forbid.
func Permit() {
	if k != nil {
		k.Permit()
	}
}

// SwitchingEnabled reports whether the singleton kernel is currently
// free to switch away from the running thread.
func SwitchingEnabled() bool {
	if k == nil {
		return true
	}
	return k.SwitchingEnabled()
}

// Allocate reserves n bytes from the heap using strategy.
func (k *Kernel) Allocate(n uintptr, strategy mem.Strategy) ([]byte, error) {
	ptr, actual, err := k.heap.Allocate(n, strategy)
	if err != nil {
		return nil, err
	}
	return k.heap.Bytes(ptr, actual), nil
}

// Free releases a range previously returned by Allocate.
func (k *Kernel) Free(b []byte) {
	if len(b) == 0 {
		return
	}
	k.heap.Free(unsafePointerOf(b), uintptr(len(b)))
}

// Reallocate resizes a range previously returned by Allocate to newN
// bytes using strategy, copying the overlapping prefix and freeing the
// old range. It never extends in place; the returned slice may alias a
// different part of the heap entirely.
func (k *Kernel) Reallocate(b []byte, newN uintptr, strategy mem.Strategy) ([]byte, error) {
	ptr, actual, err := k.heap.Reallocate(unsafePointerOf(b), uintptr(len(b)), newN, strategy)
	if err != nil {
		return nil, err
	}
	return k.heap.Bytes(ptr, actual), nil
}

// Delay blocks the calling thread for at least ms milliseconds, or until
// it is stopped and then restarted. It is Wait with no signals of interest, kept as a
// convenience for the common sleep-and-resume pattern.
func Delay(ms uint32) {
	t := Current()
	if t == nil {
		return
	}
	t.Wait(0, ms)
}

// Current returns the TCB of the calling goroutine's thread. Outside any
// thread context (e.g. before Run) it returns nil.
func Current() *TCB {
	if k == nil {
		return nil
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.current
}

func (k *Kernel) activeList() *list.List[*TCB]  { return &k.ring[k.activeIdx] }
func (k *Kernel) expiredList() *list.List[*TCB] { return &k.ring[1-k.activeIdx] }

func unsafePointerOf(b []byte) unsafe.Pointer {
	if len(b) == 0 {
		return nil
	}
	return unsafe.Pointer(&b[0])
}
