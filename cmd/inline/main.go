// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command inline compiles elementwise JavaScript routines into renamed,
// inlinable bodies with per-argument usage metadata.
//
// Usage:
//
//	inline compile routine.js
//	echo 'function(a, b) { return a + b }' | inline compile
//	inline compile --global ndarray --start 100 a.js b.js
//	inline serve --port 8080
//
// Example request against the server:
//
//	curl -X POST http://localhost:8080/v1/inline/compile \
//	  -H "Content-Type: application/json" \
//	  -d '{"source": "function(a) { a += 1 }"}'
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "inline",
		Short:         "Compile JavaScript routines for kernel inlining",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			level := slog.LevelWarn
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML compiler config")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(newCompileCommand())
	root.AddCommand(newServeCommand())
	return root
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
