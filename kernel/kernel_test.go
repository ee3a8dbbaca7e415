package kernel

import (
	"testing"
	"time"
	"unsafe"

	"zero/platform/host"
)

// resetKernel clears the package singleton between tests. Production code
// never does this; Init is meant to run exactly once per process.
func resetKernel() { k = nil }

func newTestKernel(t *testing.T, cfg Config) *host.Platform {
	t.Helper()
	resetKernel()
	plat := host.New(time.Millisecond)
	t.Cleanup(plat.Stop)

	region := make([]byte, 8192)
	if _, err := Init(cfg, plat, region); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return plat
}

func TestSignalWakesWaitingThread(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PoolThreads = 0
	newTestKernel(t, cfg)

	done := make(chan SignalMask, 1)
	var consumer *TCB
	var err error

	consumer, err = Create(CreateOptions{
		Name:         "consumer",
		StackBytes:   256,
		ReadyOnStart: true,
		Entry: func(unsafe.Pointer) int {
			mask, aerr := consumer.AllocateSignal(-1)
			if aerr != nil {
				close(done)
				return 1
			}
			got := consumer.Wait(mask, 0)
			done <- got
			return 0
		},
	})
	if err != nil {
		t.Fatalf("Create consumer: %v", err)
	}

	_, err = Create(CreateOptions{
		Name:         "producer",
		StackBytes:   256,
		ReadyOnStart: true,
		Entry: func(unsafe.Pointer) int {
			mask := consumer.AllocatedSignals(true)
			for mask == 0 {
				mask = consumer.AllocatedSignals(true)
			}
			consumer.Signal(mask)
			return 0
		},
	})
	if err != nil {
		t.Fatalf("Create producer: %v", err)
	}

	k.Run()

	select {
	case got := <-done:
		if got == 0 {
			t.Fatalf("consumer woke with empty mask")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for consumer to wake")
	}
}

func TestWaitTimesOutWithoutSignal(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PoolThreads = 0
	newTestKernel(t, cfg)

	done := make(chan SignalMask, 1)
	Create(CreateOptions{
		Name:         "sleeper",
		StackBytes:   256,
		ReadyOnStart: true,
		Entry: func(unsafe.Pointer) int {
			t := Current()
			mask, _ := t.AllocateSignal(-1)
			got := t.Wait(mask, 20)
			done <- got
			return 0
		},
	})

	k.Run()

	select {
	case got := <-done:
		if got&SigTimeout == 0 {
			t.Fatalf("expected SigTimeout, got %#x", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for sleeper to time out")
	}
}

func TestFromPoolExhaustion(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PoolThreads = 1
	newTestKernel(t, cfg)

	var exit int
	first, err := FromPool("worker", func(unsafe.Pointer) int { return 7 }, nil, &exit, nil)
	if err != nil {
		t.Fatalf("FromPool: %v", err)
	}
	if first.Status() != StatusReady {
		t.Fatalf("pool thread should start ready, got %v", first.Status())
	}

	if _, err := FromPool("worker2", func(unsafe.Pointer) int { return 0 }, nil, nil, nil); err != ErrPoolExhausted {
		t.Fatalf("expected ErrPoolExhausted, got %v", err)
	}
}

func TestStopThenRestartRequiresSigStart(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PoolThreads = 0
	newTestKernel(t, cfg)

	stage := make(chan string, 4)
	var self *TCB
	var err error
	self, err = Create(CreateOptions{
		Name:         "pausable",
		StackBytes:   256,
		ReadyOnStart: true,
		Entry: func(unsafe.Pointer) int {
			mask, _ := self.AllocateSignal(-1)
			stage <- "before"
			self.Wait(mask, 0)
			stage <- "after"
			return 0
		},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	k.Run()

	select {
	case s := <-stage:
		if s != "before" {
			t.Fatalf("unexpected stage %q", s)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("thread never ran")
	}

	self.Stop()

	// Restart is only effective once self has actually re-entered
	// Wait(SigStart, 0) inside the kernel's SIG_STOP recursion; that
	// happens on self's own goroutine and isn't synchronized
	// with this one, so retry Restart until it takes effect rather than
	// assuming a single call lands after the right instant.
	retry := time.NewTicker(2 * time.Millisecond)
	defer retry.Stop()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case s := <-stage:
			if s != "after" {
				t.Fatalf("unexpected stage %q", s)
			}
			return
		case <-retry.C:
			self.Restart()
		case <-deadline:
			t.Fatal("thread never resumed after Restart")
		}
	}
}

// TestPreemptionRequiresCheckpoint documents and locks in the scheduler's
// actual contract: quantum exhaustion only marks preemptPending, and the
// switch happens on the running thread's own next Checkpoint call. A
// thread that never calls Checkpoint or Wait is never displaced, even
// after its quantum has long since expired. See kernel.Checkpoint and
// DESIGN.md for why portable Go cannot do better than this.
func TestPreemptionRequiresCheckpoint(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PoolThreads = 0
	cfg.QuantumTicks = 1
	newTestKernel(t, cfg)

	var cooperative *TCB
	ranAfterHog := make(chan struct{}, 1)

	Create(CreateOptions{
		Name:         "hog",
		StackBytes:   256,
		ReadyOnStart: true,
		Entry: func(unsafe.Pointer) int {
			// Long enough for many quantum ticks (QuantumTicks=1) to
			// expire while this goroutine never calls Checkpoint.
			time.Sleep(30 * time.Millisecond)
			if got := cooperative.TicksRun(); got != 0 {
				t.Errorf("cooperative thread accumulated %d ticks before hog ever checkpointed", got)
			}
			Checkpoint()
			return 0
		},
	})

	cooperative, _ = Create(CreateOptions{
		Name:         "cooperative",
		StackBytes:   256,
		ReadyOnStart: true,
		Entry: func(unsafe.Pointer) int {
			ranAfterHog <- struct{}{}
			return 0
		},
	})

	k.Run()

	select {
	case <-ranAfterHog:
	case <-time.After(2 * time.Second):
		t.Fatal("cooperative thread never scheduled after hog checkpointed")
	}
}

// TestFromPoolRunsBeforeAlreadyReadyThreads verifies FromPool prepends
// the handed-out thread ahead of threads that were already ready,
// instead of queuing it behind them.
func TestFromPoolRunsBeforeAlreadyReadyThreads(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PoolThreads = 1
	newTestKernel(t, cfg)

	order := make(chan string, 3)

	Create(CreateOptions{
		Name:         "a",
		StackBytes:   256,
		ReadyOnStart: true,
		Entry: func(unsafe.Pointer) int {
			order <- "a"
			return 0
		},
	})
	Create(CreateOptions{
		Name:         "b",
		StackBytes:   256,
		ReadyOnStart: true,
		Entry: func(unsafe.Pointer) int {
			order <- "b"
			return 0
		},
	})

	var exit int
	if _, err := FromPool("pooled", func(unsafe.Pointer) int {
		order <- "pooled"
		return 0
	}, nil, &exit, nil); err != nil {
		t.Fatalf("FromPool: %v", err)
	}

	k.Run()

	var got []string
	for i := 0; i < 3; i++ {
		select {
		case s := <-order:
			got = append(got, s)
		case <-time.After(2 * time.Second):
			t.Fatalf("only saw %v before timing out", got)
		}
	}
	if got[0] != "pooled" {
		t.Fatalf("run order = %v, want the pool-handed-out thread to run first", got)
	}
}

// TestFromPoolSlotReturnsAfterExit covers the other half of the pool
// scenario: once a pool thread runs to completion, reanimateLocked puts it
// back on the free list so a subsequent FromPool call succeeds again
// instead of staying exhausted forever.
func TestFromPoolSlotReturnsAfterExit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PoolThreads = 1
	newTestKernel(t, cfg)

	firstDone := make(chan struct{})
	var exit1 int
	first, err := FromPool("first", func(unsafe.Pointer) int {
		close(firstDone)
		return 0
	}, nil, &exit1, nil)
	if err != nil {
		t.Fatalf("FromPool first: %v", err)
	}
	if first.Status() != StatusReady {
		t.Fatalf("pool thread should start ready, got %v", first.Status())
	}

	k.Run()

	select {
	case <-firstDone:
	case <-time.After(2 * time.Second):
		t.Fatal("first pool thread never ran")
	}

	// Give the trampoline's teardown (which runs after entry returns, on
	// first's own goroutine) a chance to reanimate the slot before the
	// next FromPool call polls for it.
	deadline := time.After(2 * time.Second)
	for {
		var exit2 int
		second, err := FromPool("second", func(unsafe.Pointer) int { return 0 }, nil, &exit2, nil)
		if err == nil {
			if second.Status() != StatusReady {
				t.Fatalf("reanimated pool thread should start ready, got %v", second.Status())
			}
			return
		}
		if err != ErrPoolExhausted {
			t.Fatalf("FromPool second: %v", err)
		}
		select {
		case <-deadline:
			t.Fatal("pool slot never became available again after first thread exited")
		case <-time.After(2 * time.Millisecond):
		}
	}
}
