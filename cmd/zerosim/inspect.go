package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"zero/config"
	"zero/kernel"
)

func newInspectCmd() *cobra.Command {
	var profile string
	var configPath string

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print the resolved Config for a profile or config file",
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
			out, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			fmt.Print(string(out))
			return nil
		},
	}

	cmd.Flags().StringVar(&profile, "profile", string(config.ProfileHost), "config profile (tiny|host)")
	cmd.Flags().StringVar(&configPath, "config", "", "path to a YAML config file, overriding --profile")
	return cmd
}
