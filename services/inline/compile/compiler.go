// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package compile turns the source of a small JavaScript routine into a
// CompiledRoutine: a body whose parameters, locals and this-properties are
// renamed so many routines can be inlined side by side, plus per-parameter
// read/write metadata.
package compile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/AleutianAI/inline/services/inline/ast"
	"github.com/AleutianAI/inline/services/inline/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("aleutian.inline.compile")

// Options configures a Compiler.
type Options struct {
	// PrefixBase starts every generated name. New replaces a base that is
	// not a valid identifier with the default.
	// Default: "_inline_"
	PrefixBase string

	// Globals is the ambient-globals set. Default: the embedded list.
	Globals GlobalSet

	// Sequence supplies per-call numbers. Default: NewSequence(0).
	Sequence Sequence

	// MaxSourceSize bounds routine source size in bytes. Default: 1MB
	MaxSourceSize int

	// Concurrency bounds CompileAll parallelism. Default: 8
	Concurrency int

	// Logger receives compile diagnostics. Default: slog.Default()
	Logger *slog.Logger
}

// Option is a functional option for configuring a Compiler.
type Option func(*Options)

// WithPrefixBase sets the generated-name prefix.
func WithPrefixBase(base string) Option {
	return func(o *Options) {
		o.PrefixBase = base
	}
}

// WithGlobals replaces the ambient-globals set.
func WithGlobals(names ...string) Option {
	return func(o *Options) {
		o.Globals = NewGlobalSet(names...)
	}
}

// WithSequence sets the per-call number source. Compilers sharing a
// Sequence never produce colliding names.
func WithSequence(seq Sequence) Option {
	return func(o *Options) {
		o.Sequence = seq
	}
}

// WithMaxSourceSize sets the routine size limit.
func WithMaxSourceSize(size int) Option {
	return func(o *Options) {
		o.MaxSourceSize = size
	}
}

// WithConcurrency sets CompileAll parallelism.
func WithConcurrency(n int) Option {
	return func(o *Options) {
		o.Concurrency = n
	}
}

// WithLogger sets the diagnostics logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// OptionsFromConfig converts a loaded config into compiler options.
func OptionsFromConfig(cfg *config.Config) ([]Option, error) {
	globals, err := cfg.ResolveGlobals()
	if err != nil {
		return nil, err
	}
	return []Option{
		WithPrefixBase(cfg.PrefixBase),
		WithGlobals(globals...),
		WithSequence(NewSequence(cfg.StartSequence)),
		WithMaxSourceSize(cfg.MaxSourceSize),
		WithConcurrency(cfg.Concurrency),
	}, nil
}

// CallOption adjusts a single Compile call.
type CallOption func(*callOptions)

type callOptions struct {
	extraGlobals GlobalSet
}

// WithExtraGlobals treats names as ambient for this call only.
func WithExtraGlobals(names ...string) CallOption {
	return func(o *callOptions) {
		o.extraGlobals = o.extraGlobals.Union(NewGlobalSet(names...))
	}
}

// RoutineSource is anything that can recover a routine's source text.
type RoutineSource interface {
	RoutineSource() (string, error)
}

// SourceText is routine source held in memory.
type SourceText string

// RoutineSource returns the text itself.
func (s SourceText) RoutineSource() (string, error) {
	return string(s), nil
}

// SourceFile is a path to a file holding one routine.
type SourceFile string

// RoutineSource reads the file.
func (f SourceFile) RoutineSource() (string, error) {
	data, err := os.ReadFile(string(f))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Compiler rewrites routines into CompiledRoutines.
//
// Description:
//
//	Each Compile call draws one number from the Compiler's Sequence and
//	derives the call-scoped prefix from it, so names generated by different
//	calls never collide even when their bodies are concatenated.
//
// Thread Safety:
//
//	Compiler is safe for concurrent use. All per-call state lives on the
//	call's stack; the Sequence is the only shared mutable state.
type Compiler struct {
	options  Options
	anchorer *ast.Anchorer
	logger   *slog.Logger
}

// New creates a Compiler with the given options.
//
// Example:
//
//	c := compile.New(compile.WithGlobals("Math", "console"))
//	routine, err := c.Compile(ctx, "function(a, b) { return a + b }")
func New(opts ...Option) *Compiler {
	options := Options{
		PrefixBase:    DefaultPrefixBase,
		MaxSourceSize: config.DefaultMaxSourceSize,
		Concurrency:   config.DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(&options)
	}

	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	if !config.IsIdentifier(options.PrefixBase) {
		options.Logger.Warn("invalid prefix base, using default",
			slog.String("prefix_base", options.PrefixBase),
			slog.String("default", DefaultPrefixBase))
		options.PrefixBase = DefaultPrefixBase
	}
	if options.Sequence == nil {
		options.Sequence = NewSequence(0)
	}
	if options.Concurrency <= 0 {
		options.Concurrency = 1
	}
	if options.Globals == nil {
		names, err := config.DefaultGlobals()
		if err != nil {
			options.Logger.Warn("falling back to empty ambient globals",
				slog.String("error", err.Error()))
		}
		options.Globals = NewGlobalSet(names...)
	}

	return &Compiler{
		options:  options,
		anchorer: ast.NewAnchorer(ast.WithMaxSourceSize(options.MaxSourceSize)),
		logger:   options.Logger,
	}
}

// Compile rewrites one routine.
//
// Description:
//
//	Parses src, walks the function body once classifying and renaming every
//	identifier, string literal and this-property access, and assembles the
//	result. The first unsupported construct aborts the call.
//
// Inputs:
//
//	ctx  - Context for tracing and parser cancellation.
//	src  - Function source text (declaration, expression or arrow form).
//	opts - Per-call adjustments.
//
// Outputs:
//
//	*CompiledRoutine - The rewritten routine. Never nil on success.
//	error            - ast.ErrSyntax, ast.ErrSourceTooLarge,
//	                   ast.ErrInvalidContent, a *RejectError wrapping an
//	                   ErrUnsupported sentinel, or ErrMissingRange /
//	                   ErrOverlappingEdits. No partial result is returned.
//
// Thread Safety: This method is safe for concurrent use.
func (c *Compiler) Compile(ctx context.Context, src string, opts ...CallOption) (*CompiledRoutine, error) {
	start := time.Now()

	ctx, span := tracer.Start(ctx, "Compiler.Compile",
		trace.WithAttributes(attribute.Int("source_bytes", len(src))),
	)
	defer span.End()

	var call callOptions
	for _, opt := range opts {
		opt(&call)
	}

	seq := c.options.Sequence.Next()
	prefix := callPrefix(c.options.PrefixBase, seq)

	routine, err := c.compile(ctx, src, prefix, call)

	outcome := classifyOutcome(err)
	compileTotal.WithLabelValues(outcome).Inc()
	compileDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())

	span.SetAttributes(
		attribute.String("prefix", prefix),
		attribute.String("outcome", outcome),
	)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, ErrUnsupported) {
			compileRejections.WithLabelValues(rejectionReason(err)).Inc()
			c.logger.Warn("routine rejected",
				slog.String("prefix", prefix),
				slog.String("error", err.Error()),
			)
		} else {
			c.logger.Debug("routine compile failed",
				slog.String("prefix", prefix),
				slog.String("outcome", outcome),
				slog.String("error", err.Error()),
			)
		}
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("arity", routine.Arity()),
		attribute.Int("local_vars", len(routine.LocalVars)),
		attribute.Int("this_vars", len(routine.ThisVars)),
	)
	c.logger.Debug("routine compiled",
		slog.String("prefix", prefix),
		slog.Int("arity", routine.Arity()),
		slog.Int("local_vars", len(routine.LocalVars)),
		slog.Int("this_vars", len(routine.ThisVars)),
		slog.Duration("elapsed", time.Since(start)),
	)
	return routine, nil
}

func (c *Compiler) compile(ctx context.Context, src, prefix string, call callOptions) (*CompiledRoutine, error) {
	anchored, err := c.anchorer.Anchor(ctx, src)
	if err != nil {
		return nil, err
	}
	defer anchored.Close()

	globals := c.options.Globals
	if len(call.extraGlobals) > 0 {
		globals = globals.Union(call.extraGlobals)
	}

	r, err := newRewriter(anchored, c.options.PrefixBase, prefix, globals)
	if err != nil {
		return nil, err
	}

	if err := r.visit(anchored.Body, &frame{node: anchored.Function}); err != nil {
		return nil, err
	}

	body, err := r.body()
	if err != nil {
		return nil, fmt.Errorf("reconstructing body: %w", err)
	}

	return assemble(body, r.args, r.thisVars, r.localVars), nil
}

// CompileSource recovers the text from s and compiles it.
func (c *Compiler) CompileSource(ctx context.Context, s RoutineSource, opts ...CallOption) (*CompiledRoutine, error) {
	src, err := s.RoutineSource()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	return c.Compile(ctx, src, opts...)
}

// CompileAll compiles a batch of routines concurrently.
//
// Description:
//
//	Runs at most Options.Concurrency compilations at once. Results are in
//	input order. The first failure cancels the remaining work and is
//	returned with the failing routine's index.
//
// Thread Safety: This method is safe for concurrent use.
func (c *Compiler) CompileAll(ctx context.Context, sources []string, opts ...CallOption) ([]*CompiledRoutine, error) {
	results := make([]*CompiledRoutine, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.options.Concurrency)

	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			routine, err := c.Compile(gctx, src, opts...)
			if err != nil {
				return fmt.Errorf("routine %d: %w", i, err)
			}
			results[i] = routine
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

var defaultCompiler = sync.OnceValue(func() *Compiler {
	return New()
})

// Default returns the process-wide compiler. Its sequence starts at zero
// when first used and is shared by every Parse call.
func Default() *Compiler {
	return defaultCompiler()
}

// Parse compiles src with the process-wide compiler.
func Parse(src string) (*CompiledRoutine, error) {
	return Default().Compile(context.Background(), src)
}
