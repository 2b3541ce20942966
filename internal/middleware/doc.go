// omnifeed - Adaptive Content Discovery and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/omnifeed

/*
Package middleware provides HTTP middleware components for the application.

This package implements infrastructure middleware for compression, performance
monitoring, request ID tracking, and Prometheus metrics integration. These
components compose into a middleware stack for HTTP request processing.

Key Components:

  - Compression: Gzip compression for clients that accept it
  - Performance Monitor: Request latency tracking with percentile calculations
  - Request ID: UUID-based request tracking for distributed tracing
  - Prometheus Metrics: HTTP request/response instrumentation

Middleware Stack:

The typical middleware stack for an endpoint is:

	http.HandleFunc("/api/v1/endpoint",
	    middleware.PrometheusMetrics( // Layer 1: Metrics
	        middleware.Compression(    // Layer 2: Gzip
	            middleware.RequestID(  // Layer 3: Request tracking
	                handler,           // Layer 4: Business logic
	            ),
	        ),
	    ),
	)

Usage Example - Compression:

	import "github.com/tomtom215/omnifeed/internal/middleware"

	// Wrap handler with gzip compression
	http.HandleFunc("/api/v1/data",
	    middleware.Compression(handler),
	)

	// Responses are compressed when Accept-Encoding includes gzip

Usage Example - Performance Monitoring:

	// Create performance monitor
	perfMon := middleware.NewPerformanceMonitor(1000)

	// Wrap handler
	http.Handle("/api/v1/stats",
	    perfMon.Middleware(handler),
	)

	// Get performance statistics, one entry per endpoint
	for _, s := range perfMon.GetStats() {
	    fmt.Printf("%s p50: %dms, p95: %dms, p99: %dms\n",
	        s.Path, s.P50Duration, s.P95Duration, s.P99Duration)
	}

Usage Example - Request ID:

	// Request ID middleware
	http.HandleFunc("/api/v1/logs",
	    middleware.RequestID(handler),
	)

	// Access request ID in handler
	func handler(w http.ResponseWriter, r *http.Request) {
	    requestID := r.Context().Value(middleware.RequestIDKey).(string)
	    log.Printf("[%s] Processing request", requestID)
	}

Performance Characteristics:

  - Compression: 70-90% size reduction for JSON (text/json mime types)
  - Compression overhead: ~1-2ms for typical responses
  - Metrics overhead: <0.1ms per request
  - Request ID overhead: <0.01ms (UUID generation)
  - Performance monitor: mutex-guarded sliding window of latency samples

Compression Details:

The compression middleware:
  - Compresses every response, whatever its size or content type, when
    Accept-Encoding includes gzip
  - Skips WebSocket upgrade requests
  - Sets Content-Encoding: gzip and removes Content-Length
  - Does not implement http.Flusher

Performance Monitor:

The performance monitor tracks:
  - Request count per endpoint
  - Latency percentiles (p50, p95, p99)
  - Sliding window of the most recent maxMetrics requests
  - Thread-safe concurrent access with RWMutex

Thread Safety:

All middleware components are thread-safe:
  - Compression uses per-request gzip writers
  - Performance monitor uses sync.RWMutex
  - Request ID uses context.Context (immutable)
  - Prometheus metrics use atomic operations

See Also:

  - internal/metrics: Prometheus metrics definitions
*/
package middleware
