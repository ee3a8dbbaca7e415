package main

import (
	"fmt"
	"time"
	"unsafe"

	"github.com/spf13/cobra"

	"zero/config"
	"zero/internal/stats"
	"zero/kernel"
	"zero/platform/host"
)

func newBenchCmd() *cobra.Command {
	var threads int
	var duration time.Duration

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Measure round-robin fairness across a set of busy threads",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Named(config.ProfileHost)
			if err != nil {
				return err
			}

			plat := host.New(time.Millisecond)
			defer plat.Stop()

			region := make([]byte, int(cfg.PageSize)*cfg.HeapPages)
			kk, err := kernel.Init(cfg, plat, region)
			if err != nil {
				return fmt.Errorf("init kernel: %w", err)
			}

			tcbs := make([]*kernel.TCB, threads)
			for i := range tcbs {
				t, err := kernel.Create(kernel.CreateOptions{
					Name:         fmt.Sprintf("busy-%d", i),
					StackBytes:   256,
					ReadyOnStart: true,
					Entry: func(unsafe.Pointer) int {
						// Checkpoint must be called explicitly: the host
						// simulator can only switch away from a thread at
						// a point that thread's own goroutine reaches, so
						// a tight loop with no checkpoint would never be
						// preempted regardless of quantum expiration. See
						// kernel's package comment and DESIGN.md.
						for {
							kernel.Checkpoint()
						}
					},
				})
				if err != nil {
					return fmt.Errorf("create thread %d: %w", i, err)
				}
				tcbs[i] = t
			}

			kk.Run()
			time.Sleep(duration)

			samples := make([]stats.Sample, len(tcbs))
			for i, t := range tcbs {
				samples[i] = stats.Sample{Name: t.Name(), Ticks: t.TicksRun()}
			}
			f := stats.Measure(samples)
			fmt.Printf("mean=%.1f stddev=%.1f cv=%.4f\n", f.Mean, f.StdDev, f.CV)
			return nil
		},
	}

	cmd.Flags().IntVar(&threads, "threads", 4, "number of equal-priority busy threads")
	cmd.Flags().DurationVar(&duration, "duration", 2*time.Second, "how long to let them run")
	return cmd
}
