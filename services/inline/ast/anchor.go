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
	"context"
	"fmt"
	"log/slog"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("aleutian.inline.ast")

// The closing wrapper starts on its own line so a trailing line comment in
// the routine cannot swallow it.
const (
	anchorOpen  = "("
	anchorClose = "\n)()"
)

// Param is one declared parameter of the anchored function.
type Param struct {
	// Name is the parameter's source text. Only meaningful when Kind is
	// NodeIdentifier; destructuring and default parameters carry their
	// full source text.
	Name string

	// Kind is the tree-sitter node type of the parameter.
	Kind string

	Node *sitter.Node
}

// Anchored is a parsed routine with its function node located.
//
// Thread Safety: Not safe for concurrent use. Close releases the tree.
type Anchored struct {
	// Source is the wrapped text the tree was parsed from. All node byte
	// offsets index into Source.
	Source []byte

	Tree     *sitter.Tree
	Function *sitter.Node
	Params   []Param
	Body     *sitter.Node

	// ExpressionBody is true for arrow functions whose body is an expression
	// rather than a statement block.
	ExpressionBody bool
}

// Close releases the underlying tree-sitter tree.
func (a *Anchored) Close() {
	if a != nil && a.Tree != nil {
		a.Tree.Close()
	}
}

// Text returns the wrapped source covered by n.
func (a *Anchored) Text(n *sitter.Node) string {
	return string(a.Source[n.StartByte():n.EndByte()])
}

// Position converts the start of n to a 1-based line and column in the
// caller's original text.
func (a *Anchored) Position(n *sitter.Node) (line, column int) {
	return unwrapPoint(n.StartPoint())
}

func unwrapPoint(p sitter.Point) (line, column int) {
	line = int(p.Row) + 1
	column = int(p.Column) + 1
	if p.Row == 0 {
		column -= len(anchorOpen)
	}
	if column < 1 {
		column = 1
	}
	return line, column
}

// AnchorOptions configures an Anchorer.
type AnchorOptions struct {
	// MaxSourceSize is the maximum routine source size in bytes.
	// Larger sources return ErrSourceTooLarge.
	// Default: 1MB
	MaxSourceSize int
}

// DefaultAnchorOptions returns the default options.
func DefaultAnchorOptions() AnchorOptions {
	return AnchorOptions{
		MaxSourceSize: 1024 * 1024,
	}
}

// AnchorOption is a functional option for configuring an Anchorer.
type AnchorOption func(*AnchorOptions)

// WithMaxSourceSize sets the maximum routine source size.
func WithMaxSourceSize(size int) AnchorOption {
	return func(o *AnchorOptions) {
		o.MaxSourceSize = size
	}
}

// Anchorer wraps routine source in an immediately invoked call expression
// and locates the invoked function in the parsed tree.
//
// Thread Safety:
//
//	Anchorer is safe for concurrent use. Each Anchor call creates its own
//	tree-sitter parser instance.
type Anchorer struct {
	options AnchorOptions
}

// NewAnchorer creates an Anchorer with the given options.
func NewAnchorer(opts ...AnchorOption) *Anchorer {
	options := DefaultAnchorOptions()
	for _, opt := range opts {
		opt(&options)
	}
	return &Anchorer{options: options}
}

// Anchor parses a routine and locates its function node.
//
// Description:
//
//	Wraps src as "(" + src + "\n)()" so named declarations, anonymous function
//	expressions and arrow functions all end up as the callee of a call
//	expression, then parses the result with tree-sitter.
//
// Inputs:
//
//	ctx - Context for tracing and parser cancellation.
//	src - Function source text.
//
// Outputs:
//
//	*Anchored - Parsed tree with the function located. Caller must Close it.
//	error     - *SyntaxError (matching ErrSyntax), ErrSourceTooLarge or
//	            ErrInvalidContent. No partial result is returned.
//
// Thread Safety: This method is safe for concurrent use.
func (p *Anchorer) Anchor(ctx context.Context, src string) (*Anchored, error) {
	ctx, span := tracer.Start(ctx, "Anchorer.Anchor")
	defer span.End()

	anchored, err := p.anchor(ctx, src)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.String("function_kind", anchored.Function.Type()),
		attribute.Int("arity", len(anchored.Params)),
		attribute.Int("source_bytes", len(src)),
	)
	return anchored, nil
}

func (p *Anchorer) anchor(ctx context.Context, src string) (*Anchored, error) {
	if len(src) > p.options.MaxSourceSize {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrSourceTooLarge, len(src), p.options.MaxSourceSize)
	}
	if !utf8.ValidString(src) {
		return nil, ErrInvalidContent
	}

	content := []byte(anchorOpen + src + anchorClose)

	parser := sitter.NewParser()
	parser.SetLanguage(javascript.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}

	root := tree.RootNode()
	if root.HasError() {
		err := syntaxErrorAt(root)
		tree.Close()
		return nil, err
	}

	fn, err := locateCallee(root)
	if err != nil {
		tree.Close()
		return nil, err
	}

	anchored := &Anchored{
		Source:   content,
		Tree:     tree,
		Function: fn,
	}
	anchored.Params = collectParams(fn, content)

	body := fn.ChildByFieldName(FieldBody)
	if body == nil {
		tree.Close()
		line, col := unwrapPoint(fn.StartPoint())
		return nil, &SyntaxError{Line: line, Column: col, Message: "function has no body"}
	}
	anchored.Body = body
	anchored.ExpressionBody = body.Type() != NodeStatementBlock

	slog.Debug("routine anchored",
		slog.String("function_kind", fn.Type()),
		slog.Int("arity", len(anchored.Params)),
		slog.Bool("expression_body", anchored.ExpressionBody),
	)
	return anchored, nil
}

// locateCallee walks program > expression_statement > call_expression and
// returns the function inside the callee's parentheses.
func locateCallee(root *sitter.Node) (*sitter.Node, error) {
	if root.Type() != NodeProgram {
		return nil, &SyntaxError{Message: "source is not a single function"}
	}
	stmts := namedChildren(root)
	if len(stmts) != 1 || stmts[0].Type() != NodeExpressionStatement {
		return nil, &SyntaxError{Message: "source is not a single function"}
	}

	exprs := namedChildren(stmts[0])
	if len(exprs) != 1 || exprs[0].Type() != NodeCallExpression {
		return nil, &SyntaxError{Message: "source is not a single function"}
	}
	call := exprs[0]

	callee := call.ChildByFieldName(FieldFunction)
	if callee == nil || callee.Type() != NodeParenthesizedExpression {
		return nil, &SyntaxError{Message: "source is not a single function"}
	}
	// The wrapper's own parentheses must enclose the whole input.
	if callee.StartByte() != 0 {
		return nil, &SyntaxError{Message: "source is not a single function"}
	}

	inner := namedChildren(callee)
	if len(inner) != 1 || !IsFunctionKind(inner[0].Type()) {
		line, col := 1, 1
		if len(inner) > 0 {
			line, col = unwrapPoint(inner[0].StartPoint())
		}
		return nil, &SyntaxError{Line: line, Column: col, Message: "expected a function expression"}
	}
	return inner[0], nil
}

// collectParams returns the declared parameters in order.
func collectParams(fn *sitter.Node, content []byte) []Param {
	if single := fn.ChildByFieldName(FieldParameter); single != nil {
		return []Param{newParam(single, content)}
	}

	params := make([]Param, 0, 4)
	list := fn.ChildByFieldName(FieldParameters)
	if list == nil {
		return params
	}
	for _, child := range namedChildren(list) {
		params = append(params, newParam(child, content))
	}
	return params
}

func newParam(n *sitter.Node, content []byte) Param {
	return Param{
		Name: string(content[n.StartByte():n.EndByte()]),
		Kind: n.Type(),
		Node: n,
	}
}

// namedChildren returns the named children of n, skipping comments.
func namedChildren(n *sitter.Node) []*sitter.Node {
	count := int(n.NamedChildCount())
	children := make([]*sitter.Node, 0, count)
	for i := 0; i < count; i++ {
		child := n.NamedChild(i)
		if child == nil || child.Type() == NodeComment {
			continue
		}
		children = append(children, child)
	}
	return children
}

// syntaxErrorAt reports the first ERROR or MISSING node below root.
func syntaxErrorAt(root *sitter.Node) error {
	bad := firstErrorNode(root)
	if bad == nil {
		return &SyntaxError{Message: "unparseable routine"}
	}
	line, col := unwrapPoint(bad.StartPoint())
	msg := "unexpected input"
	if bad.IsMissing() {
		msg = fmt.Sprintf("missing %q", bad.Type())
	}
	return &SyntaxError{Line: line, Column: col, Message: msg}
}

func firstErrorNode(n *sitter.Node) *sitter.Node {
	if n.Type() == NodeError || n.IsMissing() {
		return n
	}
	if !n.HasError() {
		return nil
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child == nil {
			continue
		}
		if found := firstErrorNode(child); found != nil {
			return found
		}
	}
	return nil
}
