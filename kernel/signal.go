package kernel

import (
	"errors"

	"zero/internal/bitset"
)

// SignalMask is the per-thread signal bitmask, a 16-bit word matching a
// native machine word on a small target. Config.SignalWidth sets how many
// of its bits AllocateSignal hands out.
type SignalMask = uint16

// Reserved signal bits, always allocated on every thread and never
// freeable.
const (
	SigTimeout SignalMask = 1 << iota
	SigStart
	SigStop
	SigTerm
)

const (
	reservedSignalMask  = SigTimeout | SigStart | SigStop | SigTerm
	reservedSignalCount = 4
)

// ErrSignalExhausted is returned by AllocateSignal when no bit is
// available (either the requested hint is already taken, or the thread's
// non-reserved bits are all allocated).
var ErrSignalExhausted = errors.New("kernel: no free signal bit")

// AllocateSignal reserves a signal bit for t. If hint names a valid bit
// (0 <= hint < SignalWidth), only that bit is tried, and the call fails if
// it is already allocated; otherwise the lowest free non-reserved bit is
// used. Hints landing on a reserved bit always fail, since reserved bits
// are pre-allocated on every thread.
func (t *TCB) AllocateSignal(hint int) (SignalMask, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	width := k.cfg.SignalWidth
	if hint >= 0 && hint < width {
		if bitset.Test(t.allocatedSignals, hint) {
			return 0, ErrSignalExhausted
		}
		mask := bitset.OneHot[SignalMask](hint)
		t.allocatedSignals |= mask
		return mask, nil
	}

	bit, ok := bitset.LowestFree(t.allocatedSignals, k.cfg.ReservedSignals, width)
	if !ok {
		return 0, ErrSignalExhausted
	}
	mask := bitset.OneHot[SignalMask](bit)
	t.allocatedSignals |= mask
	return mask, nil
}

// FreeSignals clears the intersection of mask with t's non-reserved
// signals from its allocated, waiting, and current masks. Reserved bits
// in mask are silently ignored.
func (t *TCB) FreeSignals(mask SignalMask) {
	k.mu.Lock()
	defer k.mu.Unlock()

	freeable := mask &^ reservedSignalMask
	t.allocatedSignals &^= freeable
	t.waitingSignals &^= freeable
	t.currentSignals &^= freeable
}

// ClearSignals clears mask from t's current signals without waiting.
func (t *TCB) ClearSignals(mask SignalMask) {
	k.mu.Lock()
	defer k.mu.Unlock()
	t.currentSignals &^= mask
}

// CurrentSignals returns the signals raised but not yet consumed.
func (t *TCB) CurrentSignals() SignalMask {
	k.mu.Lock()
	defer k.mu.Unlock()
	return t.currentSignals
}

// AllocatedSignals returns the signals t has reserved, optionally
// excluding the kernel-reserved bits.
func (t *TCB) AllocatedSignals(userOnly bool) SignalMask {
	k.mu.Lock()
	defer k.mu.Unlock()
	if userOnly {
		return t.allocatedSignals &^ reservedSignalMask
	}
	return t.allocatedSignals
}

// Wait blocks the calling thread until any bit in sigs (plus the always-
// implied SIG_STOP, unless SIG_START is requested) becomes current, or
// timeoutMs milliseconds elapse if timeoutMs > 0. It is only legal when
// called by the owning thread; any other caller gets 0 without blocking,
// a policy violation that is silently ignored rather than reported since
// there is no meaningful value to return.
//
// current_signals is cleared for the awoken bits on wake, not on entry,
// so a signal raised while this call is still being set up is never
// silently dropped.
func (t *TCB) Wait(sigs SignalMask, timeoutMs uint32) SignalMask {
	if Current() != t {
		return 0
	}

	k.mu.Lock()

	waiting := sigs
	if waiting&SigStart == 0 {
		waiting |= SigStop
	}
	if timeoutMs > 0 {
		waiting |= SigTimeout
	} else {
		waiting &^= SigTimeout
	}
	waiting &= t.allocatedSignals
	t.waitingSignals = waiting

	if waiting == 0 {
		k.mu.Unlock()
		return 0
	}

	awoken := waiting & t.currentSignals
	if awoken == 0 {
		t.status = StatusWaiting
		if timeoutMs > 0 {
			t.timeoutOffset = timeoutMs
			k.timeoutList.Insert(&t.timeoutLink, timeoutMs)
		}
		k.switchAway(t)
		awoken = t.waitingSignals & t.currentSignals
	}

	t.currentSignals &^= awoken
	t.timeoutOffset = 0
	t.waitingSignals = 0
	t.status = StatusRunning
	k.mu.Unlock()

	if awoken&SigStop != 0 {
		return t.Wait(SigStart, 0)
	}
	return awoken
}

// Signal raises sigs on t. Safe to call from any thread, or from a tick
// or driver callback standing in for an interrupt handler. If t was
// blocked and this raise makes it runnable, it is dequeued from the
// timeout list (if present) and prepended to the active ready list — the
// scheduler's sole priority mechanism.
func (t *TCB) Signal(sigs SignalMask) {
	k.mu.Lock()
	k.signalLocked(t, sigs)
	k.mu.Unlock()
}

// Fire signals synapse's target with its mask. A nil synapse is a no-op; a
// synapse whose thread has terminated still signals that TCB (see
// Synapse).
func (s *Synapse) Fire() {
	if s == nil || s.thread == nil {
		return
	}
	s.thread.Signal(s.mask)
}

// signalLocked implements Signal's mutation; caller holds k.mu.
func (k *Kernel) signalLocked(t *TCB, sigs SignalMask) {
	wasSignalable := t.waitingSignals&t.currentSignals != 0
	t.currentSignals |= sigs & t.allocatedSignals
	nowSignalable := t.waitingSignals&t.currentSignals != 0

	if t == k.current || wasSignalable || !nowSignalable {
		return
	}

	t.timeoutLink.Detach()
	t.timeoutOffset = 0
	t.status = StatusReady
	k.activeList().Prepend(&t.link)

	// The woken thread just became the active list's head, ahead of
	// whatever is currently running (including the idle thread). Force
	// the running thread's quantum as if it had just expired: a prepend
	// always compels the next Checkpoint to switch rather than waiting
	// out the rest of the quantum.
	if k.current != nil {
		k.current.preemptPending.Store(true)
	}
}
