// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

import (
	"errors"
	"fmt"
)

var (
	// ErrSyntax is returned when the routine source does not parse as a
	// JavaScript function.
	ErrSyntax = errors.New("syntax error")

	// ErrSourceTooLarge is returned when the source exceeds MaxSourceSize.
	ErrSourceTooLarge = errors.New("routine source too large")

	// ErrInvalidContent is returned when the source is not valid UTF-8.
	ErrInvalidContent = errors.New("routine source is not valid UTF-8")
)

// SyntaxError locates a parse failure in the caller's original text.
//
// Line and Column are 1-based and refer to the source passed to Anchor,
// not to the wrapped call expression.
type SyntaxError struct {
	Line    int
	Column  int
	Message string
}

// Error implements the error interface.
func (e *SyntaxError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s at %d:%d: %s", ErrSyntax, e.Line, e.Column, e.Message)
	}
	return fmt.Sprintf("%s: %s", ErrSyntax, e.Message)
}

// Unwrap lets errors.Is match ErrSyntax.
func (e *SyntaxError) Unwrap() error {
	return ErrSyntax
}
