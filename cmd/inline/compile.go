// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/AleutianAI/inline/services/inline/compile"
	"github.com/AleutianAI/inline/services/inline/config"
	"github.com/spf13/cobra"
)

// compilerFlags hold the overrides shared by compile and serve.
type compilerFlags struct {
	globalsFile string
	globals     []string
	start       uint64
	prefix      string
	concurrency int
}

func (f *compilerFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.globalsFile, "globals", "", "YAML file replacing the built-in ambient globals")
	cmd.Flags().StringSliceVar(&f.globals, "global", nil, "Extra ambient global (repeatable)")
	cmd.Flags().Uint64Var(&f.start, "start", 0, "First per-call sequence number")
	cmd.Flags().StringVar(&f.prefix, "prefix", config.DefaultPrefixBase, "Generated-name prefix")
	cmd.Flags().IntVar(&f.concurrency, "concurrency", config.DefaultConcurrency, "Parallel compilations per batch")
}

// buildCompiler loads --config and applies explicitly set flags over it.
func (f *compilerFlags) buildCompiler(cmd *cobra.Command) (*compile.Compiler, error) {
	cfg := config.DefaultConfig()
	if configPath != "" {
		loaded, err := config.LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("globals") {
		cfg.GlobalsFile = f.globalsFile
	}
	if flags.Changed("global") {
		cfg.ExtraGlobals = append(cfg.ExtraGlobals, f.globals...)
	}
	if flags.Changed("start") {
		cfg.StartSequence = f.start
	}
	if flags.Changed("prefix") {
		cfg.PrefixBase = f.prefix
	}
	if flags.Changed("concurrency") {
		cfg.Concurrency = f.concurrency
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts, err := compile.OptionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	return compile.New(opts...), nil
}

func newCompileCommand() *cobra.Command {
	var flags compilerFlags

	cmd := &cobra.Command{
		Use:   "compile [files...]",
		Short: "Compile routines and print them as JSON",
		Long: `Compile one routine per file, or a single routine from stdin when no
files are given. One routine prints as a JSON object; several print as a
JSON array in argument order.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			compiler, err := flags.buildCompiler(cmd)
			if err != nil {
				return err
			}

			sources, err := readSources(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}

			routines, err := compiler.CompileAll(cmd.Context(), sources)
			if err != nil {
				return err
			}
			return writeRoutines(cmd.OutOrStdout(), routines)
		},
	}
	flags.register(cmd)
	return cmd
}

// readSources returns the text of each file, or stdin when paths is empty.
func readSources(stdin io.Reader, paths []string) ([]string, error) {
	if len(paths) == 0 {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
		return []string{string(data)}, nil
	}

	sources := make([]string, 0, len(paths))
	for _, path := range paths {
		src, err := compile.SourceFile(path).RoutineSource()
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		sources = append(sources, src)
	}
	return sources, nil
}

// writeRoutines prints indented JSON: an object for one routine, an array
// otherwise.
func writeRoutines(w io.Writer, routines []*compile.CompiledRoutine) error {
	var v any = routines
	if len(routines) == 1 {
		v = routines[0]
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding routines: %w", err)
	}
	return nil
}
