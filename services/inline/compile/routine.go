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

import "slices"

// ArgumentUsage describes how a routine uses one declared parameter.
//
// JSON field names follow the kernel generator's argument descriptor.
type ArgumentUsage struct {
	// Name is the generated identifier that replaces the parameter.
	Name string `json:"name"`

	// IsWritten is true if any occurrence assigns to the parameter.
	IsWritten bool `json:"lvalue"`

	// IsRead is true if any occurrence reads the parameter.
	IsRead bool `json:"rvalue"`

	// Count is the number of occurrences of the parameter in the body.
	Count int `json:"count"`
}

// CompiledRoutine is a rewritten routine body plus its usage metadata.
//
// Thread Safety: Never mutated after Compile returns it.
type CompiledRoutine struct {
	// Body is the rewritten function body, braces included.
	Body string `json:"body"`

	// Args has one entry per declared parameter, in declaration order.
	Args []ArgumentUsage `json:"args"`

	// ThisVars holds the flattened this-property names, sorted and unique.
	ThisVars []string `json:"thisVars"`

	// LocalVars holds the renamed local variable names, sorted and unique.
	LocalVars []string `json:"localVars"`
}

// Arity returns the number of declared parameters.
func (r *CompiledRoutine) Arity() int {
	return len(r.Args)
}

// uniqueNames sorts names and drops duplicates. The result is never nil so
// it encodes as [] rather than null.
func uniqueNames(names []string) []string {
	if len(names) == 0 {
		return []string{}
	}
	out := slices.Clone(names)
	slices.Sort(out)
	return slices.Compact(out)
}

// assemble bundles the per-call state into the returned record.
func assemble(body string, args []ArgumentUsage, thisVars, localVars []string) *CompiledRoutine {
	return &CompiledRoutine{
		Body:      body,
		Args:      slices.Clone(args),
		ThisVars:  uniqueNames(thisVars),
		LocalVars: uniqueNames(localVars),
	}
}
