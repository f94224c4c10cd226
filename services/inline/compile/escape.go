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

import "strings"

// thisVarPrefix starts every flattened this-property name.
const thisVarPrefix = "this_"

// escapeIdentifier doubles every underscore so a suffix can never contain
// the single-underscore delimiter used by generated names.
func escapeIdentifier(name string) string {
	return strings.ReplaceAll(name, "_", "__")
}

// thisVarName flattens this.<prop> into one identifier.
func thisVarName(prop string) string {
	return thisVarPrefix + escapeIdentifier(prop)
}

// escapeString rewrites a quoted JavaScript string literal into single
// quotes with every literal underscore written as \_.
//
// Existing escape sequences are copied unchanged, so the literal's value is
// preserved. An unescaped single quote (only possible inside a double-quoted
// literal) gains a backslash.
func escapeString(raw string) string {
	if len(raw) < 2 {
		return raw
	}
	body := raw[1 : len(raw)-1]

	var sb strings.Builder
	sb.Grow(len(raw) + 8)
	sb.WriteByte('\'')
	for i := 0; i < len(body); i++ {
		c := body[i]
		switch c {
		case '\\':
			sb.WriteByte(c)
			if i+1 < len(body) {
				i++
				sb.WriteByte(body[i])
			}
		case '\'':
			sb.WriteString(`\'`)
		case '_':
			sb.WriteString(`\_`)
		default:
			sb.WriteByte(c)
		}
	}
	sb.WriteByte('\'')
	return sb.String()
}

// isReservedName reports whether a name left untouched in the output could
// be confused with a generated one.
func isReservedName(name, prefixBase string) bool {
	return strings.HasPrefix(name, prefixBase) || strings.HasPrefix(name, thisVarPrefix)
}
