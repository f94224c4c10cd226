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
	"strings"
	"unicode/utf8"

	"github.com/AleutianAI/inline/services/inline/ast"
	sitter "github.com/smacker/go-tree-sitter"
)

const evalIdentifier = "eval"

// Usage is the role of one identifier occurrence.
type Usage uint8

const (
	// UsageWrite marks an occurrence that assigns to the identifier.
	UsageWrite Usage = 1 << iota

	// UsageRead marks an occurrence that reads the identifier.
	UsageRead
)

// frame links a node to its parent during descent. Tree nodes are owned by
// tree-sitter and are never annotated.
type frame struct {
	node   *sitter.Node
	parent *frame
}

// usageOf classifies an occurrence from its immediate parent. Parentheses
// are transparent: (a) = 1 writes a.
func usageOf(node *sitter.Node, parent *frame) Usage {
	target := node
	for parent != nil && parent.node.Type() == ast.NodeParenthesizedExpression {
		target = parent.node
		parent = parent.parent
	}
	if parent == nil {
		return UsageRead
	}

	switch parent.node.Type() {
	case ast.NodeAssignmentExpression:
		if sameNode(parent.node.ChildByFieldName(ast.FieldLeft), target) {
			return UsageWrite
		}
	case ast.NodeAugmentedAssignmentExpression:
		if sameNode(parent.node.ChildByFieldName(ast.FieldLeft), target) {
			return UsageWrite | UsageRead
		}
	case ast.NodeUpdateExpression:
		return UsageWrite | UsageRead
	}
	return UsageRead
}

func sameNode(a, b *sitter.Node) bool {
	if a == nil || b == nil {
		return false
	}
	return a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Type() == b.Type()
}

// rewriter holds the state of one Compile call.
type rewriter struct {
	anchored   *ast.Anchored
	prefix     string
	prefixBase string
	globals    GlobalSet

	// params maps a parameter name to its first declaration index.
	params map[string]int
	args   []ArgumentUsage

	edits     EditList
	localVars []string
	thisVars  []string
}

func newRewriter(anchored *ast.Anchored, prefixBase, prefix string, globals GlobalSet) (*rewriter, error) {
	r := &rewriter{
		anchored:   anchored,
		prefix:     prefix,
		prefixBase: prefixBase,
		globals:    globals,
		params:     make(map[string]int, len(anchored.Params)),
		args:       make([]ArgumentUsage, len(anchored.Params)),
	}

	for i, p := range anchored.Params {
		if p.Kind != ast.NodeIdentifier {
			return nil, r.reject(p.Node, ErrUnsupportedParameter)
		}
		if p.Name == evalIdentifier {
			return nil, r.reject(p.Node, ErrEvalNotAllowed)
		}
		if _, dup := r.params[p.Name]; !dup {
			r.params[p.Name] = i
		}
		r.args[i] = ArgumentUsage{Name: argName(prefix, i)}
	}
	return r, nil
}

// visit is the single recursive descent over the routine body.
func (r *rewriter) visit(node *sitter.Node, parent *frame) error {
	if node == nil {
		return nil
	}

	switch node.Type() {
	case ast.NodeMemberExpression:
		return r.visitMember(node, parent)

	case ast.NodeSubscriptExpression:
		if obj := unwrapParens(node.ChildByFieldName(ast.FieldObject)); obj != nil && obj.Type() == ast.NodeThis {
			return r.reject(node, ErrComputedThis)
		}
		return r.visitChildren(node, parent)

	case ast.NodeThis:
		return r.reject(node, ErrBareThis)

	case ast.NodeIdentifier:
		return r.visitIdentifier(node, parent, false)

	case ast.NodeShorthandPropertyIdentifier, ast.NodeShorthandPropertyPattern:
		return r.visitIdentifier(node, parent, true)

	case ast.NodeString:
		r.replace(node, escapeString(r.anchored.Text(node)))
		return nil

	case ast.NodeWithStatement:
		return r.reject(node, ErrWithNotAllowed)

	default:
		return r.visitChildren(node, parent)
	}
}

func (r *rewriter) visitChildren(node *sitter.Node, parent *frame) error {
	self := &frame{node: node, parent: parent}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		if err := r.visit(node.NamedChild(i), self); err != nil {
			return err
		}
	}
	return nil
}

// visitMember flattens this.prop and otherwise walks only the object side;
// a non-computed property name is not a variable reference.
func (r *rewriter) visitMember(node *sitter.Node, parent *frame) error {
	obj := node.ChildByFieldName(ast.FieldObject)
	if obj == nil {
		return r.visitChildren(node, parent)
	}

	if inner := unwrapParens(obj); inner.Type() == ast.NodeThis {
		prop := node.ChildByFieldName(ast.FieldProperty)
		if prop == nil {
			return r.reject(node, ErrComputedThis)
		}
		if prop.Type() == ast.NodePrivatePropertyIdentifier {
			return r.reject(node, ErrPrivateThis)
		}
		name := thisVarName(r.anchored.Text(prop))
		r.thisVars = append(r.thisVars, name)
		r.replace(node, name)
		return nil
	}

	return r.visit(obj, &frame{node: node, parent: parent})
}

// unwrapParens returns the expression inside any enclosing parentheses.
func unwrapParens(node *sitter.Node) *sitter.Node {
	for node != nil && node.Type() == ast.NodeParenthesizedExpression {
		var inner *sitter.Node
		for i := 0; i < int(node.NamedChildCount()); i++ {
			if child := node.NamedChild(i); child.Type() != ast.NodeComment {
				inner = child
				break
			}
		}
		if inner == nil {
			return node
		}
		node = inner
	}
	return node
}

// visitIdentifier classifies one identifier occurrence. Shorthand object
// properties keep their key: {a} becomes {a: <renamed>}.
func (r *rewriter) visitIdentifier(node *sitter.Node, parent *frame, shorthand bool) error {
	name := r.anchored.Text(node)
	if name == evalIdentifier {
		return r.reject(node, ErrEvalNotAllowed)
	}

	if idx, ok := r.params[name]; ok {
		usage := usageOf(node, parent)
		arg := &r.args[idx]
		arg.IsWritten = arg.IsWritten || usage&UsageWrite != 0
		arg.IsRead = arg.IsRead || usage&UsageRead != 0
		arg.Count++
		r.rename(node, name, arg.Name, shorthand)
		return nil
	}

	if r.globals.Has(name) {
		if isReservedName(name, r.prefixBase) {
			return r.reject(node, ErrReservedIdentifier)
		}
		return nil
	}

	local := r.prefix + escapeIdentifier(name)
	r.localVars = append(r.localVars, local)
	r.rename(node, name, local, shorthand)
	return nil
}

func (r *rewriter) rename(node *sitter.Node, original, generated string, shorthand bool) {
	if shorthand {
		generated = original + ": " + generated
	}
	r.replace(node, generated)
}

func (r *rewriter) replace(node *sitter.Node, text string) {
	r.edits.Add(int(node.StartByte()), int(node.EndByte()), text)
}

// body splices the recorded edits over the function body's range.
func (r *rewriter) body() (string, error) {
	body := r.anchored.Body
	text, err := r.edits.Apply(string(r.anchored.Source), int(body.StartByte()), int(body.EndByte()))
	if err != nil {
		return "", err
	}
	if r.anchored.ExpressionBody {
		return "{return " + text + ";}", nil
	}
	return text, nil
}

func (r *rewriter) reject(node *sitter.Node, reason error) error {
	line, col := r.anchored.Position(node)
	return &RejectError{
		Reason:    reason,
		Construct: excerpt(r.anchored.Text(node)),
		Line:      line,
		Column:    col,
	}
}

// excerpt trims a construct to one short line for error messages.
func excerpt(text string) string {
	const maxExcerpt = 40
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	if len(text) > maxExcerpt {
		cut := maxExcerpt
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut] + "..."
	}
	return text
}
