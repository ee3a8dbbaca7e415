// Command zerosim runs the zero microkernel against the host platform, for
// development and manual scenario checking without real target hardware.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "zerosim",
		Short: "Run and inspect the zero kernel on the host simulator",
	}
	root.AddCommand(newRunCmd())
	root.AddCommand(newBenchCmd())
	root.AddCommand(newInspectCmd())
	return root
}
