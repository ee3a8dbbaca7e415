// Package host implements platform.Platform for development and testing
// on an ordinary OS, over user-level coroutine primitives instead of raw
// machine stacks. Each simulated thread runs on a real goroutine, but
// only one goroutine is ever runnable at a time: Switch hands a token to
// the target thread's goroutine and parks the caller until the token
// comes back, so the single-logical-CPU model holds exactly even though
// real OS threads are doing the work underneath.
//
// True asynchronous preemption of arbitrary running code is not available
// in portable Go without OS-thread-level signal tricks; see
// kernel.Checkpoint and DESIGN.md for how the kernel reconciles that with
// a periodic-tick preemptive scheduler.
package host

import (
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"zero/platform"
)

// Platform drives the kernel's tick using a real POSIX interval timer
// (setitimer + SIGALRM), the host analogue of an MCU's periodic hardware
// timer interrupt.
type Platform struct {
	interval time.Duration
	ticks    chan struct{}
	sig      chan os.Signal
	stop     chan struct{}
	ms       atomic.Uint64
}

// New creates a host platform whose tick fires every interval (1ms is a
// reasonable default, matching a typical MCU's timer tick).
func New(interval time.Duration) *Platform {
	p := &Platform{
		interval: interval,
		ticks:    make(chan struct{}, 1),
		sig:      make(chan os.Signal, 4),
		stop:     make(chan struct{}),
	}
	signal.Notify(p.sig, syscall.SIGALRM)
	go p.pump()
	return p
}

// Start arms the interval timer. Kernel.Init calls this after the platform
// is constructed but before the first Switch.
func (p *Platform) Start() error {
	interval := unix.Timeval{
		Sec:  int64(p.interval / time.Second),
		Usec: int64((p.interval % time.Second) / time.Microsecond),
	}
	it := unix.Itimerval{Interval: interval, Value: interval}
	_, err := unix.Setitimer(unix.ItimerReal, it)
	return err
}

// Stop disarms the timer and releases the signal handler.
func (p *Platform) Stop() {
	_, _ = unix.Setitimer(unix.ItimerReal, unix.Itimerval{})
	signal.Stop(p.sig)
	close(p.stop)
}

func (p *Platform) pump() {
	for {
		select {
		case <-p.sig:
			p.ms.Add(uint64(p.interval / time.Millisecond))
			select {
			case p.ticks <- struct{}{}:
			default:
				// A tick is already pending; the scheduler coalesces bursts,
				// matching how a real tick handler drains a single counter.
			}
		case <-p.stop:
			return
		}
	}
}

// Ticks implements platform.Platform.
func (p *Platform) Ticks() <-chan struct{} { return p.ticks }

// Now implements platform.Platform.
func (p *Platform) Now() uint64 { return p.ms.Load() }

type hostContext struct {
	resume  chan struct{}
	exited  atomic.Bool
	consumed atomic.Uint64 // simulated bytes of stack depth consumed, see SimulateStackUsage
	top     uintptr
}

// NewContext implements platform.Platform. entry runs on a dedicated
// goroutine that blocks until the first Switch onto this context.
func (p *Platform) NewContext(stack []byte, entry func()) platform.Context {
	ctx := &hostContext{
		resume: make(chan struct{}),
		top:    uintptr(len(stack)),
	}
	go func() {
		<-ctx.resume
		entry()
		ctx.exited.Store(true)
	}()
	return ctx
}

// Switch implements platform.Platform. It always runs on the goroutine
// that is currently "logically" executing: a thread's own goroutine giving
// up the CPU, or, with from nil, the goroutine calling Kernel.Run for the
// very first dispatch or a terminating thread's goroutine. With from nil
// it returns as soon as to has been resumed.
func (p *Platform) Switch(from, to platform.Context) {
	toCtx := to.(*hostContext)
	toCtx.resume <- struct{}{}
	if from != nil {
		fromCtx := from.(*hostContext)
		<-fromCtx.resume
	}
}

// StackPointer implements platform.Platform. Real hardware reports the
// literal stack pointer register; a host goroutine has no addressable
// stack pointer of its own, so this reports a synthetic value derived from
// the simulated consumption recorded via SimulateStackUsage. It starts at
// the top of the stack (least consumption) and decreases as bytes are
// consumed, matching a downward-growing hardware stack.
func (p *Platform) StackPointer(ctx platform.Context) uintptr {
	c := ctx.(*hostContext)
	consumed := c.consumed.Load()
	if uintptr(consumed) >= c.top {
		return 0
	}
	return c.top - uintptr(consumed)
}

// SimulateStackUsage records that ctx has consumed n bytes of its stack so
// far, letting tests exercise stack-overflow detection deterministically
// without a real machine stack to measure.
func SimulateStackUsage(ctx platform.Context, n uintptr) {
	ctx.(*hostContext).consumed.Store(uint64(n))
}
