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
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

var (
	spanExporterOnce sync.Once
	spanExporter     *tracetest.InMemoryExporter
)

// setupTestTracer installs one in-memory provider per test binary. Package
// tracers are created at init and delegate to the first provider only.
func setupTestTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	spanExporterOnce.Do(func() {
		spanExporter = tracetest.NewInMemoryExporter()
		otel.SetTracerProvider(sdktrace.NewTracerProvider(
			sdktrace.WithSyncer(spanExporter),
		))
	})
	spanExporter.Reset()
	return spanExporter
}

func findSpan(t *testing.T, exporter *tracetest.InMemoryExporter, name string) tracetest.SpanStub {
	t.Helper()
	for _, s := range exporter.GetSpans() {
		if s.Name == name {
			return s
		}
	}
	t.Fatalf("span %q not found", name)
	return tracetest.SpanStub{}
}

func spanAttrs(s tracetest.SpanStub) map[string]string {
	attrs := make(map[string]string, len(s.Attributes))
	for _, a := range s.Attributes {
		attrs[string(a.Key)] = a.Value.Emit()
	}
	return attrs
}

func TestCompile_SpanOnSuccess(t *testing.T) {
	exporter := setupTestTracer(t)
	successes := testutil.ToFloat64(compileTotal.WithLabelValues("success"))

	c := New(WithSequence(NewSequence(3)), WithGlobals())
	compileOK(t, c, "function(a, b){ var t = this.k; return a + b + t }")

	span := findSpan(t, exporter, "Compiler.Compile")
	attrs := spanAttrs(span)
	assert.Equal(t, "_inline_3_", attrs["prefix"])
	assert.Equal(t, "success", attrs["outcome"])
	assert.Equal(t, "2", attrs["arity"])
	assert.Equal(t, "1", attrs["local_vars"])
	assert.Equal(t, "1", attrs["this_vars"])
	assert.NotEqual(t, codes.Error, span.Status.Code)

	anchor := findSpan(t, exporter, "Anchorer.Anchor")
	assert.Equal(t, span.SpanContext.SpanID(), anchor.Parent.SpanID())
	assert.Equal(t, "2", spanAttrs(anchor)["arity"])

	assert.Equal(t, successes+1, testutil.ToFloat64(compileTotal.WithLabelValues("success")))
}

func TestCompile_SpanAndMetricsOnRejection(t *testing.T) {
	tests := []struct {
		name   string
		src    string
		reason string
	}{
		{"computed this", "function(){ return this[0] }", "computed_this"},
		{"bare this", "function(){ return this }", "bare_this"},
		{"eval", "function(x){ eval(x) }", "eval"},
		{"with", "function(o){ with(o){} }", "with"},
		{"parameter", "function({a}){ return a }", "parameter"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exporter := setupTestTracer(t)
			rejections := testutil.ToFloat64(compileRejections.WithLabelValues(tt.reason))
			unsupported := testutil.ToFloat64(compileTotal.WithLabelValues("unsupported"))

			_, err := newTestCompiler().Compile(context.Background(), tt.src)
			require.ErrorIs(t, err, ErrUnsupported)

			span := findSpan(t, exporter, "Compiler.Compile")
			assert.Equal(t, codes.Error, span.Status.Code)
			assert.Equal(t, "unsupported", spanAttrs(span)["outcome"])
			require.NotEmpty(t, span.Events)
			assert.Equal(t, "exception", span.Events[0].Name)

			assert.Equal(t, rejections+1, testutil.ToFloat64(compileRejections.WithLabelValues(tt.reason)))
			assert.Equal(t, unsupported+1, testutil.ToFloat64(compileTotal.WithLabelValues("unsupported")))
		})
	}
}

func TestCompile_SpanOnSyntaxError(t *testing.T) {
	exporter := setupTestTracer(t)
	syntaxErrors := testutil.ToFloat64(compileTotal.WithLabelValues("syntax_error"))

	_, err := newTestCompiler().Compile(context.Background(), "function(a { }")
	require.Error(t, err)

	span := findSpan(t, exporter, "Compiler.Compile")
	assert.Equal(t, codes.Error, span.Status.Code)
	assert.Equal(t, "syntax_error", spanAttrs(span)["outcome"])
	assert.Equal(t, codes.Error, findSpan(t, exporter, "Anchorer.Anchor").Status.Code)

	assert.Equal(t, syntaxErrors+1, testutil.ToFloat64(compileTotal.WithLabelValues("syntax_error")))
}
