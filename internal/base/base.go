// Licensed Materials - Property of IBM
// Copyright IBM Corp. 2023.
// US Government Users Restricted Rights - Use, duplication or disclosure restricted by GSA ADP Schedule Contract with IBM Corp.

// Package base resolves the runtime environment of one invocation: the
// root directory layout, the optional stevedore.yaml configuration and
// the external tool paths. The resolved Config is threaded explicitly
// through the program; nothing here is process-global.
package base

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/zosopentools/stevedore/internal/control"
	"github.com/zosopentools/stevedore/internal/metrics"
)

// RootEnvVar overrides the root directory when no flag is given.
const RootEnvVar = "STEVEDORE_ROOT"

const configFile = "stevedore.yaml"

// Config is the resolved environment of one invocation.
type Config struct {
	// Root is the install prefix everything else hangs off.
	Root string

	DefaultTriplet control.Triplet

	// External tool paths. Resolved from PATH when the configuration
	// file does not pin them.
	CMake string
	Git   string

	Debug           bool
	FeaturePackages bool

	// RunID tags every log line of this invocation.
	RunID string

	Metrics metrics.Sink
}

// fileConfig mirrors stevedore.yaml at the root.
type fileConfig struct {
	DefaultTriplet  string `yaml:"default-triplet"`
	CMake           string `yaml:"cmake"`
	Git             string `yaml:"git"`
	FeaturePackages bool   `yaml:"feature-packages"`
}

func readFileConfig(root string) (*fileConfig, error) {
	data, err := os.ReadFile(filepath.Join(root, configFile))
	if err != nil {
		if os.IsNotExist(err) {
			return &fileConfig{}, nil
		}
		return nil, err
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("%v: %w", filepath.Join(root, configFile), err)
	}
	return &fc, nil
}

// Resolve builds the Config for one run. The root comes from the flag,
// then the environment, then the executable's directory; stevedore.yaml
// at the root fills in the rest.
func Resolve(flagRoot string) (*Config, error) {
	root := flagRoot
	if root == "" {
		root = os.Getenv(RootEnvVar)
	}
	if root == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("unable to locate the root directory: %w", err)
		}
		root = filepath.Dir(exe)
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	fc, err := readFileConfig(root)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Root:            root,
		DefaultTriplet:  control.Triplet("x64-windows"),
		CMake:           fc.CMake,
		Git:             fc.Git,
		FeaturePackages: fc.FeaturePackages,
		RunID:           uuid.NewString(),
		Metrics:         metrics.Noop{},
	}
	if fc.DefaultTriplet != "" {
		cfg.DefaultTriplet = control.Triplet(fc.DefaultTriplet)
	}
	if cfg.CMake == "" {
		cfg.CMake, _ = exec.LookPath("cmake")
	}
	if cfg.Git == "" {
		cfg.Git, _ = exec.LookPath("git")
	}
	return cfg, nil
}

// RequireTools fails when an external tool the run needs was neither
// configured nor found on PATH.
func (c *Config) RequireTools() error {
	if c.CMake == "" {
		return fmt.Errorf("cmake was not found on PATH; set `cmake:` in %v", configFile)
	}
	if c.Git == "" {
		return fmt.Errorf("git was not found on PATH; set `git:` in %v", configFile)
	}
	return nil
}
