package main

import (
	"fmt"
	"time"
	"unsafe"

	"github.com/spf13/cobra"

	"zero/config"
	"zero/kernel"
	"zero/platform/host"
)

func newRunCmd() *cobra.Command {
	var profile string
	var configPath string
	var duration time.Duration
	var workers int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Boot the kernel with a handful of demo worker threads",
		RunE: func(cmd *cobra.Command, args []string) error {
			var cfg kernel.Config
			var err error
			if configPath != "" {
				cfg, err = config.Load(configPath)
			} else {
				cfg, err = config.Named(config.Profile(profile))
			}
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

			for i := 0; i < workers; i++ {
				id := i
				_, err := kernel.Create(kernel.CreateOptions{
					Name:         fmt.Sprintf("worker-%d", id),
					StackBytes:   512,
					ReadyOnStart: true,
					Entry: func(unsafe.Pointer) int {
						for {
							kernel.Delay(100)
							fmt.Printf("worker-%d tick at %dms\n", id, kk.Now())
						}
					},
				})
				if err != nil {
					return fmt.Errorf("create worker %d: %w", id, err)
				}
			}

			kk.Run()
			time.Sleep(duration)
			return nil
		},
	}

	cmd.Flags().StringVar(&profile, "profile", string(config.ProfileHost), "config profile (tiny|host)")
	cmd.Flags().StringVar(&configPath, "config", "", "path to a YAML config file, overriding --profile")
	cmd.Flags().DurationVar(&duration, "duration", 2*time.Second, "how long to run before exiting")
	cmd.Flags().IntVar(&workers, "workers", 3, "number of demo worker threads")
	return cmd
}
