// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package inline

import "github.com/AleutianAI/inline/services/inline/compile"

// CompileRequest is the body of POST /v1/inline/compile.
type CompileRequest struct {
	// Source is the routine's function source text.
	Source string `json:"source" binding:"required"`

	// Globals are extra ambient identifiers for this call.
	Globals []string `json:"globals,omitempty"`
}

// CompileBatchRequest is the body of POST /v1/inline/compile/batch.
type CompileBatchRequest struct {
	Sources []string `json:"sources" binding:"required"`
	Globals []string `json:"globals,omitempty"`
}

// CompileBatchResponse holds one routine per request source, in order.
type CompileBatchResponse struct {
	Routines []*compile.CompiledRoutine `json:"routines"`
}

// ErrorResponse is returned for every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`

	// Line and Column locate syntax errors and rejected constructs.
	Line   int `json:"line,omitempty"`
	Column int `json:"column,omitempty"`

	RequestID string `json:"request_id,omitempty"`
}

// HealthResponse is returned by GET /v1/inline/health.
type HealthResponse struct {
	Status string `json:"status"`
}

// Error codes.
const (
	CodeInvalidRequest       = "INVALID_REQUEST"
	CodeSourceTooLarge       = "SOURCE_TOO_LARGE"
	CodeSyntaxError          = "SYNTAX_ERROR"
	CodeUnsupportedConstruct = "UNSUPPORTED_CONSTRUCT"
	CodeReservedIdentifier   = "RESERVED_IDENTIFIER"
	CodeInternalError        = "INTERNAL_ERROR"
)
