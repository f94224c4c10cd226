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
	"strconv"
	"sync/atomic"

	"github.com/AleutianAI/inline/services/inline/config"
)

// DefaultPrefixBase starts every generated parameter and local name.
const DefaultPrefixBase = config.DefaultPrefixBase

// Sequence hands out the per-call numbers that make generated names unique.
//
// Implementations must never return the same value twice and must be safe
// for concurrent use.
type Sequence interface {
	Next() uint64
}

// AtomicSequence is a lock-free monotonically increasing Sequence.
type AtomicSequence struct {
	next atomic.Uint64
}

// NewSequence returns a sequence whose first value is start.
func NewSequence(start uint64) *AtomicSequence {
	s := &AtomicSequence{}
	s.next.Store(start)
	return s
}

// Next returns the current value and advances the sequence in one step.
func (s *AtomicSequence) Next() uint64 {
	return s.next.Add(1) - 1
}

// callPrefix builds "<base><n>_".
func callPrefix(base string, n uint64) string {
	return base + strconv.FormatUint(n, 10) + "_"
}

// argName builds "<prefix>arg<i>_".
func argName(prefix string, i int) string {
	return prefix + "arg" + strconv.Itoa(i) + "_"
}
