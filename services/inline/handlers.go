// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package inline

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/AleutianAI/inline/services/inline/ast"
	"github.com/AleutianAI/inline/services/inline/compile"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// DefaultMaxBatchSize bounds the number of sources in one batch request.
const DefaultMaxBatchSize = 256

const requestIDHeader = "X-Request-ID"

// Handlers serves the inline compiler over HTTP.
//
// Thread Safety: Safe for concurrent use; the Compiler is the only shared state.
type Handlers struct {
	compiler     *compile.Compiler
	maxBatchSize int
}

// NewHandlers creates handlers backed by compiler.
func NewHandlers(compiler *compile.Compiler) *Handlers {
	return &Handlers{
		compiler:     compiler,
		maxBatchSize: DefaultMaxBatchSize,
	}
}

// HandleCompile handles POST /v1/inline/compile.
//
// Description:
//
//	Compiles one routine. Request globals are added to the compiler's
//	ambient set for this call only.
//
// Response:
//
//	200 OK: compile.CompiledRoutine
//	400 Bad Request: Malformed body or invalid UTF-8 source
//	413 Request Entity Too Large: Source exceeds the size limit
//	422 Unprocessable Entity: Syntax error or unsupported construct
//
// Thread Safety: This method is safe for concurrent use.
func (h *Handlers) HandleCompile(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleCompile")

	var req CompileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Debug("invalid compile request", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:     err.Error(),
			Code:      CodeInvalidRequest,
			RequestID: requestID,
		})
		return
	}

	routine, err := h.compiler.Compile(c.Request.Context(), req.Source, compile.WithExtraGlobals(req.Globals...))
	if err != nil {
		writeCompileError(c, logger, requestID, err)
		return
	}

	c.JSON(http.StatusOK, routine)
}

// HandleCompileBatch handles POST /v1/inline/compile/batch.
//
// Response:
//
//	200 OK: CompileBatchResponse
//	400 Bad Request: Malformed body, empty or oversized batch
//	413/422: As HandleCompile, for the first failing source
//
// Thread Safety: This method is safe for concurrent use.
func (h *Handlers) HandleCompileBatch(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleCompileBatch")

	var req CompileBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:     err.Error(),
			Code:      CodeInvalidRequest,
			RequestID: requestID,
		})
		return
	}
	if len(req.Sources) == 0 || len(req.Sources) > h.maxBatchSize {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:     fmt.Sprintf("sources must hold between 1 and %d routines", h.maxBatchSize),
			Code:      CodeInvalidRequest,
			RequestID: requestID,
		})
		return
	}

	routines, err := h.compiler.CompileAll(c.Request.Context(), req.Sources, compile.WithExtraGlobals(req.Globals...))
	if err != nil {
		writeCompileError(c, logger, requestID, err)
		return
	}

	logger.Debug("batch compiled", slog.Int("routines", len(routines)))
	c.JSON(http.StatusOK, CompileBatchResponse{Routines: routines})
}

// HandleHealth handles GET /v1/inline/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "healthy"})
}

// writeCompileError maps a compile failure to a status and error code.
func writeCompileError(c *gin.Context, logger *slog.Logger, requestID string, err error) {
	resp := ErrorResponse{
		Error:     err.Error(),
		RequestID: requestID,
	}
	status := http.StatusUnprocessableEntity

	var (
		synErr *ast.SyntaxError
		rejErr *compile.RejectError
	)
	switch {
	case errors.As(err, &synErr):
		resp.Code = CodeSyntaxError
		resp.Line, resp.Column = synErr.Line, synErr.Column
	case errors.As(err, &rejErr):
		resp.Code = CodeUnsupportedConstruct
		if errors.Is(err, compile.ErrReservedIdentifier) {
			resp.Code = CodeReservedIdentifier
		}
		resp.Line, resp.Column = rejErr.Line, rejErr.Column
	case errors.Is(err, ast.ErrSourceTooLarge):
		status = http.StatusRequestEntityTooLarge
		resp.Code = CodeSourceTooLarge
	case errors.Is(err, ast.ErrInvalidContent):
		status = http.StatusBadRequest
		resp.Code = CodeInvalidRequest
	default:
		status = http.StatusInternalServerError
		resp.Code = CodeInternalError
		logger.Error("compile failed", slog.String("error", err.Error()))
	}

	c.JSON(status, resp)
}

// getOrCreateRequestID returns the caller's X-Request-ID or a new UUID,
// echoing it on the response.
func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader(requestIDHeader)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header(requestIDHeader, requestID)
	return requestID
}
