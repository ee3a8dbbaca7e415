// Package config loads a kernel.Config from a YAML profile, the way a
// real target's build would instead bake these as compile-time constants.
// It exists so cmd/zerosim can select between named profiles (a small
// 8-bit-like footprint vs. a roomier development footprint) without
// recompiling.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"zero/kernel"
)

// Profile names a built-in Config the CLI can select without a file.
type Profile string

const (
	ProfileTiny Profile = "tiny"
	ProfileHost Profile = "host"
)

// Named returns the built-in profile's Config.
func Named(p Profile) (kernel.Config, error) {
	switch p {
	case ProfileTiny:
		return kernel.DefaultConfig(), nil
	case ProfileHost:
		c := kernel.DefaultConfig()
		c.HeapPages = 4096
		c.PoolThreads = 16
		c.PoolStackBytes = 4096
		c.IdleStackBytes = 4096
		return c, nil
	default:
		return kernel.Config{}, fmt.Errorf("config: unknown profile %q", p)
	}
}

// Load reads a YAML file into a kernel.Config, starting from
// kernel.DefaultConfig so a profile only needs to override the fields it
// cares about.
func Load(path string) (kernel.Config, error) {
	cfg := kernel.DefaultConfig()

	f, err := os.Open(path)
	if err != nil {
		return kernel.Config{}, err
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return kernel.Config{}, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}
