// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"sync"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// Embedded Default Globals
// =============================================================================

//go:embed globals.yaml
var defaultGlobalsYAML []byte

// =============================================================================
// Configuration Types
// =============================================================================

// GlobalsFile is the on-disk layout of an ambient-globals list.
//
// Groups exist for readability only; all names are merged.
type GlobalsFile struct {
	// ECMAScript lists language built-ins.
	ECMAScript []string `yaml:"ecmascript"`

	// Host lists host-environment identifiers.
	Host []string `yaml:"host"`

	// Extra lists project-specific identifiers.
	Extra []string `yaml:"extra"`
}

// Names returns every name in the file, in file order.
func (f *GlobalsFile) Names() []string {
	names := make([]string, 0, len(f.ECMAScript)+len(f.Host)+len(f.Extra))
	names = append(names, f.ECMAScript...)
	names = append(names, f.Host...)
	names = append(names, f.Extra...)
	return names
}

// Config holds compiler settings loaded from YAML.
//
// Thread Safety: Immutable after loading; safe for concurrent use.
type Config struct {
	// PrefixBase starts every generated parameter and local name.
	PrefixBase string `yaml:"prefix_base"`

	// StartSequence is the first per-call number handed out.
	StartSequence uint64 `yaml:"start_sequence"`

	// MaxSourceSize bounds the routine source size in bytes.
	MaxSourceSize int `yaml:"max_source_size"`

	// Concurrency bounds parallel compilations in a batch.
	Concurrency int `yaml:"concurrency"`

	// GlobalsFile replaces the embedded globals list when set.
	GlobalsFile string `yaml:"globals_file"`

	// ExtraGlobals are added on top of the resolved globals list.
	ExtraGlobals []string `yaml:"extra_globals"`
}

// =============================================================================
// Defaults
// =============================================================================

const (
	// DefaultPrefixBase is the default generated-name prefix.
	DefaultPrefixBase = "_inline_"

	// DefaultMaxSourceSize is the default routine size limit (1MB).
	DefaultMaxSourceSize = 1024 * 1024

	// DefaultConcurrency is the default batch parallelism.
	DefaultConcurrency = 8
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// IsIdentifier reports whether name is a plain ASCII JavaScript identifier.
func IsIdentifier(name string) bool {
	return identifierPattern.MatchString(name)
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		PrefixBase:    DefaultPrefixBase,
		MaxSourceSize: DefaultMaxSourceSize,
		Concurrency:   DefaultConcurrency,
	}
}

// Validate checks the configuration for values the compiler cannot use.
func (c *Config) Validate() error {
	if !identifierPattern.MatchString(c.PrefixBase) {
		return fmt.Errorf("prefix_base %q is not a valid identifier", c.PrefixBase)
	}
	if c.MaxSourceSize <= 0 {
		return fmt.Errorf("max_source_size must be positive, got %d", c.MaxSourceSize)
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive, got %d", c.Concurrency)
	}
	for _, name := range c.ExtraGlobals {
		if !identifierPattern.MatchString(name) {
			return fmt.Errorf("extra_globals entry %q is not a valid identifier", name)
		}
	}
	return nil
}

// LoadConfig reads a YAML config file, filling unset fields from
// DefaultConfig, and validates the result.
//
// Inputs:
//
//	path - Path to the YAML file.
//
// Outputs:
//
//	*Config - The loaded configuration. Never nil on success.
//	error   - Non-nil if the file cannot be read, parsed or validated.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	return ParseConfig(data)
}

// ParseConfig parses YAML config bytes over the defaults.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// ResolveGlobals returns the ambient globals this config selects: the
// globals file (or the embedded default) plus ExtraGlobals.
func (c *Config) ResolveGlobals() ([]string, error) {
	var (
		names []string
		err   error
	)
	if c.GlobalsFile != "" {
		names, err = LoadGlobalsFile(c.GlobalsFile)
	} else {
		names, err = DefaultGlobals()
	}
	if err != nil {
		return nil, err
	}

	resolved := make([]string, 0, len(names)+len(c.ExtraGlobals))
	resolved = append(resolved, names...)
	resolved = append(resolved, c.ExtraGlobals...)
	return resolved, nil
}

// =============================================================================
// Globals Loading
// =============================================================================

var (
	defaultGlobalsOnce sync.Once
	defaultGlobals     []string
	defaultGlobalsErr  error
)

// DefaultGlobals returns the embedded ambient-globals list.
//
// Description:
//
//	Parses globals.yaml on first call and caches the result. The returned
//	slice is a copy; callers may modify it.
//
// Thread Safety: Safe for concurrent use (uses sync.Once internally).
func DefaultGlobals() ([]string, error) {
	defaultGlobalsOnce.Do(func() {
		names, err := parseGlobals(defaultGlobalsYAML)
		if err != nil {
			defaultGlobalsErr = fmt.Errorf("parsing embedded globals.yaml: %w", err)
			return
		}
		defaultGlobals = names
		slog.Debug("default ambient globals loaded",
			slog.Int("global_count", len(names)),
		)
	})
	if defaultGlobalsErr != nil {
		return nil, defaultGlobalsErr
	}
	return append([]string(nil), defaultGlobals...), nil
}

// LoadGlobalsFile reads an ambient-globals list in the GlobalsFile layout.
func LoadGlobalsFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading globals %s: %w", path, err)
	}
	names, err := parseGlobals(data)
	if err != nil {
		return nil, fmt.Errorf("parsing globals %s: %w", path, err)
	}
	return names, nil
}

func parseGlobals(data []byte) ([]string, error) {
	var file GlobalsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	names := file.Names()
	for _, name := range names {
		if !identifierPattern.MatchString(name) {
			return nil, fmt.Errorf("%q is not a valid identifier", name)
		}
	}
	return names, nil
}
