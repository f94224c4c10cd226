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

// tree-sitter-javascript node types used by the anchor extractor and the
// routine rewriter.
const (
	NodeProgram                 = "program"
	NodeExpressionStatement     = "expression_statement"
	NodeCallExpression          = "call_expression"
	NodeParenthesizedExpression = "parenthesized_expression"
	NodeComment                 = "comment"
	NodeError                   = "ERROR"

	// Function kinds. Grammars before 0.21 name function expressions "function".
	NodeFunction           = "function"
	NodeFunctionExpression = "function_expression"
	NodeGeneratorFunction  = "generator_function"
	NodeArrowFunction      = "arrow_function"
	NodeStatementBlock     = "statement_block"

	NodeIdentifier                  = "identifier"
	NodeShorthandPropertyIdentifier = "shorthand_property_identifier"
	NodeShorthandPropertyPattern    = "shorthand_property_identifier_pattern"
	NodePrivatePropertyIdentifier   = "private_property_identifier"
	NodeMemberExpression            = "member_expression"
	NodeSubscriptExpression         = "subscript_expression"
	NodeThis                        = "this"
	NodeString                      = "string"
	NodeWithStatement               = "with_statement"

	NodeAssignmentExpression          = "assignment_expression"
	NodeAugmentedAssignmentExpression = "augmented_assignment_expression"
	NodeUpdateExpression              = "update_expression"

	NodeAssignmentPattern = "assignment_pattern"
	NodeObjectPattern     = "object_pattern"
)

// Field names.
const (
	FieldFunction   = "function"
	FieldParameters = "parameters"
	FieldParameter  = "parameter"
	FieldBody       = "body"
	FieldObject     = "object"
	FieldProperty   = "property"
	FieldLeft       = "left"
)

// IsFunctionKind reports whether nodeType is a function node the anchor
// extractor accepts as the invoked callee.
func IsFunctionKind(nodeType string) bool {
	switch nodeType {
	case NodeFunction, NodeFunctionExpression, NodeGeneratorFunction, NodeArrowFunction:
		return true
	default:
		return false
	}
}
