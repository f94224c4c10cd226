// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package inline exposes the routine compiler over HTTP.
package inline

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// ServiceName identifies the service in traces.
const ServiceName = "aleutian-inline"

// RegisterRoutes registers all /inline routes with the router group.
//
// Description:
//
//	The router group should already have any required middleware applied.
//
// Endpoints:
//
//	POST /v1/inline/compile       - Compile one routine
//	POST /v1/inline/compile/batch - Compile several routines
//	GET  /v1/inline/health        - Health check
//
// Example:
//
//	handlers := inline.NewHandlers(compile.New())
//	v1 := router.Group("/v1")
//	inline.RegisterRoutes(v1, handlers)
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	inline := rg.Group("/inline")
	{
		inline.POST("/compile", handlers.HandleCompile)
		inline.POST("/compile/batch", handlers.HandleCompileBatch)
		inline.GET("/health", handlers.HandleHealth)
	}
}

// NewRouter builds the full HTTP engine: recovery, OTel tracing, the
// Prometheus scrape endpoint and the /v1 routes.
func NewRouter(handlers *Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(ServiceName))

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	RegisterRoutes(v1, handlers)
	return router
}
