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
	"cmp"
	"fmt"
	"slices"
	"strings"
)

// Edit replaces Source[Start:End] with Text.
type Edit struct {
	Start int
	End   int
	Text  string
}

// EditList collects rewrites keyed by byte ranges of the original source
// and splices them in one reconstruction pass, so no offset bookkeeping is
// needed while edits are being recorded.
type EditList struct {
	edits []Edit
}

// Add records a replacement of [start, end).
func (l *EditList) Add(start, end int, text string) {
	l.edits = append(l.edits, Edit{Start: start, End: end, Text: text})
}

// Len returns the number of recorded edits.
func (l *EditList) Len() int {
	return len(l.edits)
}

// Apply returns src[lo:hi] with every edit spliced in.
//
// Description:
//
//	Edits are applied in start-offset order. Every edit must lie inside
//	[lo, hi) and edits must not overlap; either violation returns an error
//	instead of producing corrupted text.
//
// Outputs:
//
//	string - The rewritten slice.
//	error  - ErrMissingRange or ErrOverlappingEdits.
func (l *EditList) Apply(src string, lo, hi int) (string, error) {
	if lo < 0 || hi > len(src) || lo > hi {
		return "", fmt.Errorf("%w: slice [%d, %d) of %d bytes", ErrMissingRange, lo, hi, len(src))
	}

	ordered := slices.Clone(l.edits)
	slices.SortStableFunc(ordered, func(a, b Edit) int {
		return cmp.Compare(a.Start, b.Start)
	})

	var sb strings.Builder
	sb.Grow(hi - lo)

	cursor := lo
	for _, e := range ordered {
		if e.Start < lo || e.End > hi || e.Start > e.End {
			return "", fmt.Errorf("%w: edit [%d, %d) outside [%d, %d)", ErrMissingRange, e.Start, e.End, lo, hi)
		}
		if e.Start < cursor {
			return "", fmt.Errorf("%w: edit at %d starts before previous edit ends at %d", ErrOverlappingEdits, e.Start, cursor)
		}
		sb.WriteString(src[cursor:e.Start])
		sb.WriteString(e.Text)
		cursor = e.End
	}
	sb.WriteString(src[cursor:hi])

	return sb.String(), nil
}
