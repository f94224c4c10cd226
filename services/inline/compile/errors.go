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
	"fmt"
)

// ErrUnsupported is the parent of every construct rejection. Callers must
// supply a different routine; retrying the same input fails the same way.
var ErrUnsupported = errors.New("unsupported construct")

var (
	ErrEvalNotAllowed       = fmt.Errorf("%w: eval() not allowed", ErrUnsupported)
	ErrWithNotAllowed       = fmt.Errorf("%w: with() statements not allowed", ErrUnsupported)
	ErrComputedThis         = fmt.Errorf("%w: computed this is not allowed", ErrUnsupported)
	ErrBareThis             = fmt.Errorf("%w: bare this is not allowed", ErrUnsupported)
	ErrPrivateThis          = fmt.Errorf("%w: private fields on this are not allowed", ErrUnsupported)
	ErrUnsupportedParameter = fmt.Errorf("%w: parameters must be plain identifiers", ErrUnsupported)

	// ErrReservedIdentifier is returned when an identifier that would be left
	// unrewritten already looks like a generated name.
	ErrReservedIdentifier = fmt.Errorf("%w: identifier collides with generated names", ErrUnsupported)
)

var (
	// ErrMissingRange signals a node whose byte range does not fit the
	// parsed source. This is a parser contract violation, not a user error.
	ErrMissingRange = errors.New("node range missing or out of bounds")

	// ErrOverlappingEdits signals two rewrites claiming the same bytes.
	ErrOverlappingEdits = errors.New("overlapping rewrite edits")

	// ErrSourceUnavailable is returned when a RoutineSource cannot produce text.
	ErrSourceUnavailable = errors.New("routine source unavailable")
)

// RejectError reports a construct the rewriter refused, with its location
// in the caller's source.
type RejectError struct {
	// Reason is one of the ErrUnsupported sentinels.
	Reason error

	// Construct is a short excerpt of the offending source.
	Construct string

	Line   int
	Column int
}

// Error implements the error interface.
func (e *RejectError) Error() string {
	return fmt.Sprintf("%v at %d:%d (%s)", e.Reason, e.Line, e.Column, e.Construct)
}

// Unwrap returns the sentinel so errors.Is works against it and ErrUnsupported.
func (e *RejectError) Unwrap() error {
	return e.Reason
}
