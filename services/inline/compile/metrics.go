// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package compile

import (
	"errors"

	"github.com/AleutianAI/inline/services/inline/ast"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Package-level Prometheus metrics for routine compilation.
// Auto-registered via promauto so no explicit registry wiring is needed.
var (
	// compileDuration measures Compile latency.
	//
	// Labels:
	//   - outcome: see classifyOutcome
	compileDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "inline",
			Subsystem: "compile",
			Name:      "duration_seconds",
			Help:      "Duration of routine compilation in seconds.",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		},
		[]string{"outcome"},
	)

	// compileTotal counts Compile calls.
	compileTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "inline",
			Subsystem: "compile",
			Name:      "calls_total",
			Help:      "Total number of routine compilations.",
		},
		[]string{"outcome"},
	)

	// compileRejections counts unsupported-construct rejections.
	//
	// Labels:
	//   - reason: "eval", "with", "computed_this", "bare_this",
	//     "private_this", "parameter", "reserved"
	compileRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "inline",
			Subsystem: "compile",
			Name:      "rejections_total",
			Help:      "Total routines rejected for unsupported constructs.",
		},
		[]string{"reason"},
	)
)

// classifyOutcome maps a Compile result to a label-safe outcome.
func classifyOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ast.ErrSyntax):
		return "syntax_error"
	case errors.Is(err, ast.ErrSourceTooLarge), errors.Is(err, ast.ErrInvalidContent):
		return "invalid_input"
	case errors.Is(err, ErrUnsupported):
		return "unsupported"
	default:
		return "internal_error"
	}
}

// rejectionReason maps an ErrUnsupported error to its reason label.
func rejectionReason(err error) string {
	switch {
	case errors.Is(err, ErrEvalNotAllowed):
		return "eval"
	case errors.Is(err, ErrWithNotAllowed):
		return "with"
	case errors.Is(err, ErrComputedThis):
		return "computed_this"
	case errors.Is(err, ErrBareThis):
		return "bare_this"
	case errors.Is(err, ErrPrivateThis):
		return "private_this"
	case errors.Is(err, ErrUnsupportedParameter):
		return "parameter"
	case errors.Is(err, ErrReservedIdentifier):
		return "reserved"
	default:
		return "other"
	}
}
