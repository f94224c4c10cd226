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
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/AleutianAI/inline/services/inline/ast"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestCompiler returns a compiler whose first prefix is _inline_0_.
func newTestCompiler(globals ...string) *Compiler {
	return New(WithSequence(NewSequence(0)), WithGlobals(globals...))
}

func compileOK(t *testing.T, c *Compiler, src string) *CompiledRoutine {
	t.Helper()
	routine, err := c.Compile(context.Background(), src)
	require.NoError(t, err)
	require.NotNil(t, routine)
	return routine
}

func TestCompile_SumOfArguments(t *testing.T) {
	r := compileOK(t, newTestCompiler(), "function(a,b){ return a+b }")

	require.Len(t, r.Args, 2)
	assert.Equal(t, ArgumentUsage{Name: "_inline_0_arg0_", IsRead: true, Count: 1}, r.Args[0])
	assert.Equal(t, ArgumentUsage{Name: "_inline_0_arg1_", IsRead: true, Count: 1}, r.Args[1])
	assert.Equal(t, "{ return _inline_0_arg0_+_inline_0_arg1_ }", r.Body)
	assert.Empty(t, r.LocalVars)
	assert.Empty(t, r.ThisVars)
}

func TestCompile_CompoundAssignment(t *testing.T) {
	r := compileOK(t, newTestCompiler(), "function(a){ a+=1; return a }")

	require.Len(t, r.Args, 1)
	assert.Equal(t, ArgumentUsage{Name: "_inline_0_arg0_", IsWritten: true, IsRead: true, Count: 2}, r.Args[0])
	assert.Equal(t, "{ _inline_0_arg0_+=1; return _inline_0_arg0_ }", r.Body)
}

func TestCompile_LocalVariable(t *testing.T) {
	r := compileOK(t, newTestCompiler(), "function(a){ var t = a*2; return t }")

	assert.Equal(t, []string{"_inline_0_t"}, r.LocalVars)
	assert.Equal(t, ArgumentUsage{Name: "_inline_0_arg0_", IsRead: true, Count: 1}, r.Args[0])
	assert.Equal(t, "{ var _inline_0_t = _inline_0_arg0_*2; return _inline_0_t }", r.Body)
}

func TestCompile_ThisProperty(t *testing.T) {
	tests := []struct {
		name string
		src  string
		body string
	}{
		{"plain", "function(){ return this.value }", "{ return this_value }"},
		{"parenthesized", "function(){ return (this).value }", "{ return this_value }"},
		{"nested parentheses", "function(){ return ((this)).value }", "{ return this_value }"},
		{"optional chain", "function(){ return this?.value }", "{ return this_value }"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := compileOK(t, newTestCompiler(), tt.src)

			assert.Empty(t, r.Args)
			assert.Equal(t, []string{"this_value"}, r.ThisVars)
			assert.Equal(t, tt.body, r.Body)
		})
	}
}

func TestCompile_ParenthesizedComputedThis(t *testing.T) {
	_, err := newTestCompiler().Compile(context.Background(), "function(){ return (this)[0] }")
	assert.ErrorIs(t, err, ErrComputedThis)
}

func TestCompile_GlobalLeftAlone(t *testing.T) {
	r := compileOK(t, newTestCompiler("Math"), "function(a){ return Math.sqrt(a) }")

	assert.Equal(t, "{ return Math.sqrt(_inline_0_arg0_) }", r.Body)
	assert.Empty(t, r.LocalVars)
}

func TestCompile_UsageClassification(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		write bool
		read  bool
		count int
	}{
		{"plain assignment", "function(a){ a = 1 }", true, false, 1},
		{"assignment from self", "function(a){ a = a }", true, true, 2},
		{"compound", "function(a){ a *= 2 }", true, true, 1},
		{"prefix increment", "function(a){ ++a }", true, true, 1},
		{"postfix decrement", "function(a){ a-- }", true, true, 1},
		{"parenthesized target", "function(a){ (a) = 1 }", true, false, 1},
		{"right-hand side", "function(a, b){ b = a }", false, true, 1},
		{"member target reads", "function(a){ a.x = 1 }", false, true, 1},
		{"index target reads", "function(a){ a[0] = 1 }", false, true, 1},
		{"unused", "function(a){ return 0 }", false, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := compileOK(t, newTestCompiler(), tt.src)
			arg := r.Args[0]
			assert.Equal(t, tt.write, arg.IsWritten, "IsWritten")
			assert.Equal(t, tt.read, arg.IsRead, "IsRead")
			assert.Equal(t, tt.count, arg.Count, "Count")
		})
	}
}

func TestCompile_UsageIsMonotonic(t *testing.T) {
	r := compileOK(t, newTestCompiler(), "function(a){ var x = a; a = 3; return x }")

	arg := r.Args[0]
	assert.True(t, arg.IsRead)
	assert.True(t, arg.IsWritten)
	assert.Equal(t, 2, arg.Count)
}

func TestCompile_UnderscoresEscaped(t *testing.T) {
	r := compileOK(t, newTestCompiler(), "function(){ var my_var = this.my_prop; return my_var }")

	assert.Equal(t, []string{"_inline_0_my__var"}, r.LocalVars)
	assert.Equal(t, []string{"this_my__prop"}, r.ThisVars)
	assert.Equal(t, "{ var _inline_0_my__var = this_my__prop; return _inline_0_my__var }", r.Body)
}

func TestCompile_DuplicatesCollapsed(t *testing.T) {
	r := compileOK(t, newTestCompiler(), "function(){ var t = this.x; t = t + this.x; z = t }")

	assert.Equal(t, []string{"_inline_0_t", "_inline_0_z"}, r.LocalVars)
	assert.Equal(t, []string{"this_x"}, r.ThisVars)
}

func TestCompile_StringLiterals(t *testing.T) {
	r := compileOK(t, newTestCompiler(), `function(){ return "it's" + 'a_b' }`)

	assert.Equal(t, `{ return 'it\'s' + 'a\_b' }`, r.Body)
}

func TestCompile_PropertyNamesNotRenamed(t *testing.T) {
	r := compileOK(t, newTestCompiler(), "function(a){ return a.length + a[i] }")

	assert.Equal(t, "{ return _inline_0_arg0_.length + _inline_0_arg0_[_inline_0_i] }", r.Body)
	assert.Equal(t, []string{"_inline_0_i"}, r.LocalVars)
	assert.Equal(t, 2, r.Args[0].Count)
}

func TestCompile_ObjectLiteralKeys(t *testing.T) {
	r := compileOK(t, newTestCompiler(), "function(a){ return {key: a, a} }")

	assert.Equal(t, "{ return {key: _inline_0_arg0_, a: _inline_0_arg0_} }", r.Body)
	assert.Equal(t, 2, r.Args[0].Count)
}

func TestCompile_ChainedThisMember(t *testing.T) {
	r := compileOK(t, newTestCompiler(), "function(){ return this.shape.length }")

	assert.Equal(t, "{ return this_shape.length }", r.Body)
	assert.Equal(t, []string{"this_shape"}, r.ThisVars)
}

func TestCompile_ArrowExpressionBody(t *testing.T) {
	r := compileOK(t, newTestCompiler(), "x => x * 2")

	assert.Equal(t, "{return _inline_0_arg0_ * 2;}", r.Body)
	assert.Equal(t, 1, r.Arity())
}

func TestCompile_NamedDeclaration(t *testing.T) {
	r := compileOK(t, newTestCompiler(), "function scale(a, s) { a *= s }")

	assert.Equal(t, "{ _inline_0_arg0_ *= _inline_0_arg1_ }", r.Body)
	assert.True(t, r.Args[0].IsWritten)
	assert.False(t, r.Args[1].IsWritten)
}

func TestCompile_DuplicateParameterUsesFirst(t *testing.T) {
	r := compileOK(t, newTestCompiler(), "function(a, a){ return a }")

	require.Len(t, r.Args, 2)
	assert.Equal(t, 1, r.Args[0].Count)
	assert.Equal(t, 0, r.Args[1].Count)
}

func TestCompile_Rejections(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want error
	}{
		{"eval call", "function(x){ eval(x) }", ErrEvalNotAllowed},
		{"eval parameter", "function(eval){ return 1 }", ErrEvalNotAllowed},
		{"with statement", "function(o){ with(o){ x = 1 } }", ErrWithNotAllowed},
		{"computed this", "function(){ return this[0] }", ErrComputedThis},
		{"bare this", "function(){ return this }", ErrBareThis},
		{"this as argument", "function(f){ f(this) }", ErrBareThis},
		{"destructured parameter", "function({x}){ return x }", ErrUnsupportedParameter},
		{"default parameter", "function(x = 1){ return x }", ErrUnsupportedParameter},
		{"rest parameter", "function(...xs){ return xs }", ErrUnsupportedParameter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestCompiler().Compile(context.Background(), tt.src)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, ErrUnsupported)

			var rejErr *RejectError
			require.True(t, errors.As(err, &rejErr))
			assert.Positive(t, rejErr.Line)
			assert.NotEmpty(t, rejErr.Construct)
		})
	}
}

func TestCompile_EvalRejectedEvenWhenGlobal(t *testing.T) {
	_, err := newTestCompiler("eval").Compile(context.Background(), "function(x){ return eval(x) }")
	assert.ErrorIs(t, err, ErrEvalNotAllowed)
}

func TestCompile_RejectPosition(t *testing.T) {
	_, err := newTestCompiler().Compile(context.Background(), "function(){\n  return this[0]\n}")

	var rejErr *RejectError
	require.True(t, errors.As(err, &rejErr))
	assert.Equal(t, 2, rejErr.Line)
	assert.Equal(t, 10, rejErr.Column)
	assert.Equal(t, "this[0]", rejErr.Construct)
}

func TestCompile_ReservedGlobal(t *testing.T) {
	c := newTestCompiler("this_value", "_inline_9_x")

	_, err := c.Compile(context.Background(), "function(){ return this_value }")
	assert.ErrorIs(t, err, ErrReservedIdentifier)

	_, err = c.Compile(context.Background(), "function(){ return _inline_9_x }")
	assert.ErrorIs(t, err, ErrReservedIdentifier)
}

func TestCompile_LookalikeLocalsStillEscaped(t *testing.T) {
	r := compileOK(t, newTestCompiler(), "function(a){ var _inline_0_arg0_ = a; return _inline_0_arg0_ }")

	assert.Equal(t, []string{"_inline_0___inline__0__arg0__"}, r.LocalVars)
	assert.NotContains(t, r.LocalVars, r.Args[0].Name)
}

func TestCompile_SyntaxError(t *testing.T) {
	_, err := newTestCompiler().Compile(context.Background(), "function(a { return a }")
	assert.ErrorIs(t, err, ast.ErrSyntax)
}

func TestCompile_SequenceAdvancesPerCall(t *testing.T) {
	c := newTestCompiler()
	src := "function(a){ var t = a; return t }"

	first := compileOK(t, c, src)
	second := compileOK(t, c, src)

	assert.Equal(t, "_inline_0_arg0_", first.Args[0].Name)
	assert.Equal(t, "_inline_1_arg0_", second.Args[0].Name)
	assert.NotEqual(t, first.LocalVars, second.LocalVars)
}

func TestCompile_FailedCallStillConsumesSequence(t *testing.T) {
	c := newTestCompiler()
	_, err := c.Compile(context.Background(), "function(){ eval() }")
	require.Error(t, err)

	r := compileOK(t, c, "function(a){ return a }")
	assert.Equal(t, "_inline_1_arg0_", r.Args[0].Name)
}

func TestCompile_SharedSequenceAcrossCompilers(t *testing.T) {
	seq := NewSequence(0)
	c1 := New(WithSequence(seq))
	c2 := New(WithSequence(seq))

	r1 := compileOK(t, c1, "function(a){ return a }")
	r2 := compileOK(t, c2, "function(a){ return a }")
	assert.NotEqual(t, r1.Args[0].Name, r2.Args[0].Name)
}

func TestCompile_CustomPrefixBase(t *testing.T) {
	c := New(WithSequence(NewSequence(5)), WithPrefixBase("_k_"), WithGlobals())
	r := compileOK(t, c, "function(a){ var t = a; }")

	assert.Equal(t, "_k_5_arg0_", r.Args[0].Name)
	assert.Equal(t, []string{"_k_5_t"}, r.LocalVars)
}

func TestCompile_InvalidPrefixBaseFallsBack(t *testing.T) {
	for _, base := range []string{"", "9x_", "a-b_", " _p_"} {
		t.Run(base, func(t *testing.T) {
			c := New(WithSequence(NewSequence(0)), WithPrefixBase(base), WithGlobals())
			r := compileOK(t, c, "function(a){ var t = a; return t }")

			assert.Equal(t, "{ var _inline_0_t = _inline_0_arg0_; return _inline_0_t }", r.Body)
		})
	}
}

func TestCompile_ExtraGlobalsPerCall(t *testing.T) {
	c := newTestCompiler()
	r, err := c.Compile(context.Background(), "function(a){ return ndarray(a) }", WithExtraGlobals("ndarray"))
	require.NoError(t, err)
	assert.Equal(t, "{ return ndarray(_inline_0_arg0_) }", r.Body)

	r = compileOK(t, c, "function(a){ return ndarray(a) }")
	assert.Equal(t, []string{"_inline_1_ndarray"}, r.LocalVars)
}

func TestCompile_DefaultGlobals(t *testing.T) {
	c := New(WithSequence(NewSequence(0)))
	r := compileOK(t, c, "function(a){ return Math.floor(a) + undefined }")

	assert.Empty(t, r.LocalVars)
}

func TestCompileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routine.js")
	require.NoError(t, os.WriteFile(path, []byte("function(a){ return -a }"), 0o600))

	c := newTestCompiler()
	r, err := c.CompileSource(context.Background(), SourceFile(path))
	require.NoError(t, err)
	assert.Equal(t, "{ return -_inline_0_arg0_ }", r.Body)

	r, err = c.CompileSource(context.Background(), SourceText("function(){ return 1 }"))
	require.NoError(t, err)
	assert.Equal(t, "{ return 1 }", r.Body)

	_, err = c.CompileSource(context.Background(), SourceFile(filepath.Join(t.TempDir(), "missing.js")))
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestCompileAll_OrderAndUniqueness(t *testing.T) {
	c := New(WithSequence(NewSequence(0)), WithConcurrency(4))

	sources := make([]string, 32)
	for i := range sources {
		sources[i] = fmt.Sprintf("function(a){ var t = a + %d; return t }", i)
	}

	routines, err := c.CompileAll(context.Background(), sources)
	require.NoError(t, err)
	require.Len(t, routines, len(sources))

	seen := make(map[string]bool)
	for i, r := range routines {
		assert.Contains(t, r.Body, fmt.Sprintf("+ %d;", i))
		for _, name := range append([]string{r.Args[0].Name}, r.LocalVars...) {
			assert.False(t, seen[name], "duplicate generated name %s", name)
			seen[name] = true
		}
	}
}

func TestCompileAll_FirstErrorReturned(t *testing.T) {
	c := newTestCompiler()
	_, err := c.CompileAll(context.Background(), []string{
		"function(a){ return a }",
		"function(){ return this }",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBareThis)
	assert.True(t, strings.HasPrefix(err.Error(), "routine 1:"))
}

func TestParse_UsesProcessWideSequence(t *testing.T) {
	r1, err := Parse("function(a){ return a }")
	require.NoError(t, err)
	r2, err := Parse("function(a){ return a }")
	require.NoError(t, err)

	assert.NotEqual(t, r1.Args[0].Name, r2.Args[0].Name)
}
