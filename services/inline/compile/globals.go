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

// GlobalSet is the set of ambient identifiers left unrewritten.
//
// Thread Safety: Immutable after construction; safe for concurrent reads.
type GlobalSet map[string]struct{}

// NewGlobalSet builds a set from names. "eval" is never admitted: a
// reference to it is always rejected.
func NewGlobalSet(names ...string) GlobalSet {
	set := make(GlobalSet, len(names))
	for _, name := range names {
		if name == "" || name == evalIdentifier {
			continue
		}
		set[name] = struct{}{}
	}
	return set
}

// Has reports whether name is an ambient global.
func (s GlobalSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Union returns a new set holding the names of s and other.
func (s GlobalSet) Union(other GlobalSet) GlobalSet {
	merged := make(GlobalSet, len(s)+len(other))
	for name := range s {
		merged[name] = struct{}{}
	}
	for name := range other {
		merged[name] = struct{}{}
	}
	return merged
}
