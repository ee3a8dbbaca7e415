package kernel

// Checkpoint is the cooperative preemption point every thread body must
// call periodically. Because a Go goroutine cannot be suspended at an
// arbitrary instruction the way a hardware interrupt suspends a real
// thread, the tick handler only ever sets preemptPending; the actual
// context switch happens here, on the running thread's own goroutine.
// Running each thread on its own OS thread under the host's preemptive
// scheduler was considered and rejected; see DESIGN.md and
// platform/host's package comment.
func Checkpoint() {
	t := Current()
	if t == nil {
		return
	}
	k.mu.Lock()
	if !k.forbiddenLocked() && t.preemptPending.Load() {
		t.preemptPending.Store(false)
		if t != k.idle {
			k.rotateLocked(t)
		}
		k.switchAway(t)
		k.mu.Unlock()
		return
	}
	k.mu.Unlock()
}

func (k *Kernel) forbiddenLocked() bool { return k.forbidDepth > 0 }

// rotateLocked moves t from the head of the active list to the tail of
// the expired list, per the round-robin quantum-exhaustion rule.
// Caller holds k.mu.
func (k *Kernel) rotateLocked(t *TCB) {
	t.link.Detach()
	t.quantumRemaining = k.cfg.QuantumTicks
	t.status = StatusReady
	k.expiredList().Append(&t.link)
}

// pickNextLocked returns the next thread to run: the active list's head,
// or (once it drains) the expired list after the two lists swap roles, or
// the idle thread if both are empty. Caller holds k.mu.
func (k *Kernel) pickNextLocked() *TCB {
	if k.activeList().Empty() {
		k.activeIdx = 1 - k.activeIdx
	}
	if e := k.activeList().PopHead(); e != nil {
		return e.Value
	}
	return k.idle
}

// switchAway performs the actual platform.Switch from t to the next
// runnable thread, blocking the calling goroutine until t is scheduled
// again. The caller is responsible for having already placed t on
// whatever list matches its new status (or on no list at all, if it is
// blocked in Wait or has terminated) before calling this.
//
// Caller holds k.mu; it is released for the duration of the platform
// switch and re-acquired before returning.
func (k *Kernel) switchAway(t *TCB) {
	next := k.pickNextLocked()
	prev := t
	k.current = next
	next.status = StatusRunning

	k.mu.Unlock()
	k.plat.Switch(prev.ctx, next.ctx)
	k.mu.Lock()
}

// preemptCurrent is invoked by tickLoop once per tick with k.mu held. It
// ages the timeout list, decrements the running thread's quantum, and
// marks preemptPending when the quantum is exhausted so the next
// Checkpoint call performs the actual switch.
func (k *Kernel) preemptCurrent() {
	for _, e := range k.timeoutList.Tick() {
		t := e.Value
		k.signalLocked(t, SigTimeout)
	}

	t := k.current
	if t == nil || t == k.idle {
		return
	}
	t.ticksRun++
	if t.quantumRemaining > 0 {
		t.quantumRemaining--
	}
	if t.quantumRemaining == 0 {
		t.preemptPending.Store(true)
	}

	if sp := k.plat.StackPointer(t.ctx); sp < t.lowSP || t.lowSP == 0 {
		t.lowSP = sp
	}
	if k.plat.StackPointer(t.ctx) == 0 && k.overflow != nil {
		go k.overflow(t)
	}
}

// tickLoop drains the platform's tick channel for the process lifetime,
// applying bookkeeping under k.mu on every tick. It never itself performs
// a platform.Switch — see Checkpoint.
func (k *Kernel) tickLoop() {
	for range k.plat.Ticks() {
		k.mu.Lock()
		k.preemptCurrent()
		k.mu.Unlock()
	}
}

// readyLocked marks t ready and places it on the active list's tail
// (normal readiness, e.g. after Create with FlagReadyOnCreate). It never
// prepends; wake priority is handled by signalLocked directly. Caller
// holds k.mu.
func (k *Kernel) readyLocked(t *TCB) {
	t.status = StatusReady
	t.quantumRemaining = k.cfg.QuantumTicks
	k.activeList().Append(&t.link)
}
