// omnifeed - Adaptive Content Discovery and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/omnifeed

/*
Package metrics provides Prometheus metrics collection and export for observability.

This package implements comprehensive application instrumentation using the Prometheus
client library, exposing metrics for monitoring performance, errors, and system health.

# Overview

The package provides metrics for:
  - HTTP request latency and throughput (ops surface)
  - Database query performance
  - Retriever polling and orchestrator traversal statistics
  - Scorer updates and ranking model training
  - Circuit breaker state transitions
  - Cache hit/miss rates

# Metrics Endpoint

Metrics are exposed at the /metrics endpoint in Prometheus text format:

	curl http://localhost:3857/metrics

# Available Metrics

API Metrics:
  - api_requests_total: Total API requests (counter)
    Labels: method, endpoint, status_code
  - api_request_duration_seconds: Request latency (histogram)
    Labels: method, endpoint
    Buckets: .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10
  - api_active_requests: Active requests (gauge)

Database Metrics:
  - duckdb_query_duration_seconds: Query execution time (histogram)
    Labels: operation, table
  - duckdb_connection_pool_size: Database connections in use (gauge)
  - duckdb_query_errors_total: Failed queries (counter)
    Labels: operation, table, error_type

Retriever and Orchestrator Metrics:
  - retriever_poll_duration_seconds: Per-invocation latency (histogram)
    Labels: handler_type
  - retriever_poll_errors_total: Failed polls (counter)
    Labels: handler_type, error_type
  - orchestrator_traversal_duration_seconds: Full feed traversal duration (histogram)
  - orchestrator_nodes_visited: Nodes visited per traversal (histogram)

Scorer and Ranking Metrics:
  - scorer_updates_total: EMA score updates applied (counter)
  - scorer_confidence: Confidence distribution after an update (histogram)
  - model_training_duration_seconds: Training run duration (histogram)
    Labels: model
  - model_training_examples: Training set size (histogram)
    Labels: model
  - ranking_ood_guard_trips_total: Scoring calls rejected by the OOD guard (counter)

Circuit Breaker Metrics:
  - circuit_breaker_state: Current state (gauge)
    Labels: name
    Values: 0=closed, 1=half-open, 2=open
  - circuit_breaker_requests_total: Requests through the breaker (counter)
    Labels: name, result
  - circuit_breaker_consecutive_failures: Current consecutive failures (gauge)
    Labels: name
  - circuit_breaker_state_transitions_total: State transitions (counter)
    Labels: name, from_state, to_state

Cache Metrics:
  - cache_hits_total: Cache hits (counter)
    Labels: cache_type
  - cache_misses_total: Cache misses (counter)
    Labels: cache_type
  - cache_evictions_total: Cache evictions (counter)
    Labels: cache_type
  - cache_entries: Current number of cached entries (gauge)
    Labels: cache_type

# Usage Example

Basic setup in main.go:

	import (
	    "github.com/tomtom215/omnifeed/internal/metrics"
	    "github.com/prometheus/client_golang/prometheus/promhttp"
	)

	func main() {
	    // Register metrics endpoint
	    http.Handle("/metrics", promhttp.Handler())

	    // Record metrics
	    metrics.RecordAPIRequest("GET", "/healthz", "200", 0.023*time.Second)
	    metrics.RecordDBQuery("select", "contents", 5*time.Millisecond, nil)
	    metrics.RecordRetrieverPoll("rss", 250*time.Millisecond, 12, nil)
	}

Recording HTTP metrics with middleware:

	func MetricsMiddleware(next http.Handler) http.Handler {
	    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	        start := time.Now()

	        // Wrap ResponseWriter to capture status code
	        rw := &responseWriter{ResponseWriter: w, statusCode: 200}

	        next.ServeHTTP(rw, r)

	        // Record metrics
	        metrics.RecordAPIRequest(r.Method, r.URL.Path, strconv.Itoa(rw.statusCode), time.Since(start))
	    })
	}

Recording database query metrics:

	func (db *Database) Query(ctx context.Context, sql string, args ...interface{}) (*sql.Rows, error) {
	    start := time.Now()
	    rows, err := db.conn.QueryContext(ctx, sql, args...)
	    metrics.RecordDBQuery("select", "contents", time.Since(start), err)

	    return rows, err
	}

# Prometheus Configuration

Example prometheus.yml configuration:

	scrape_configs:
	  - job_name: 'omnifeed'
	    static_configs:
	      - targets: ['localhost:8080']
	    metrics_path: '/metrics'
	    scrape_interval: 15s

# Grafana Dashboards

The metrics support Grafana dashboards with panels for:

  - Request rate (queries per second)
  - Request latency (p50, p95, p99 percentiles)
  - Error rate (errors per second by endpoint)
  - Database query performance (duration distribution)
  - Retriever poll rate and error rate by handler type
  - Circuit breaker state visualization
  - Cache hit rate and efficiency

Example PromQL queries:

	# API request rate
	rate(api_requests_total[5m])

	# API p95 latency
	histogram_quantile(0.95, rate(api_request_duration_seconds_bucket[5m]))

	# Database query rate
	rate(duckdb_query_duration_seconds_count[5m])

	# Cache hit rate
	sum(rate(cache_hits_total[5m])) / (sum(rate(cache_hits_total[5m])) + sum(rate(cache_misses_total[5m])))

	# Retriever polls per minute, by handler
	sum by (handler_type) (rate(retriever_poll_duration_seconds_count[1m])) * 60

# Performance Impact

Metrics collection overhead:
  - Counter increment: ~100ns per operation
  - Histogram observation: ~500ns per operation
  - Memory overhead: ~5KB per metric time series
  - Total overhead: <1% CPU, <10MB RAM for typical workloads

# Thread Safety

All metric recording functions are thread-safe and designed for concurrent use
from multiple goroutines. The Prometheus client library handles synchronization
internally.

# Cardinality Management

To prevent high cardinality issues:

  - Endpoint labels are normalized (no query parameters)
  - Status codes are recorded as the exact numeric code
  - Retriever error types are bucketed into timeout, database, parse, fetch, other;
    database error types are the first 50 characters of the error message
  - User-specific labels are avoided

Maximum cardinality per metric:
  - api_requests_total: small (2 methods × 3 endpoints × handful of statuses)
  - retriever_poll_duration_seconds: one series per handler_type
  - circuit_breaker_state: one series per named breaker

# Alerting Rules

Example Prometheus alerting rules:

	groups:
	  - name: omnifeed
	    rules:
	      - alert: HighRetrieverErrorRate
	        expr: |
	          sum(rate(retriever_poll_errors_total[5m]))
	          /
	          sum(rate(retriever_poll_duration_seconds_count[5m]))
	          > 0.2
	        for: 5m
	        annotations:
	          summary: "High retriever poll error rate: {{ $value }}%"

	      - alert: SlowDatabaseQueries
	        expr: |
	          histogram_quantile(0.95,
	            rate(duckdb_query_duration_seconds_bucket[5m]))
	          > 1
	        for: 5m
	        annotations:
	          summary: "p95 query latency: {{ $value }}s"

	      - alert: CircuitBreakerOpen
	        expr: circuit_breaker_state > 0
	        for: 2m
	        annotations:
	          summary: "Circuit breaker open for {{ $labels.name }}"

# Debugging

Enable metrics debugging with LOG_LEVEL=debug:

	# View all registered metrics
	curl http://localhost:8080/metrics | grep "# HELP"

	# Check specific metric
	curl http://localhost:8080/metrics | grep retriever_poll_duration_seconds

	# Validate Prometheus format
	promtool check metrics http://localhost:8080/metrics

# Best Practices

When adding new metrics:

 1. Use appropriate metric types:
    - Counter: Monotonically increasing values (requests, errors)
    - Gauge: Point-in-time values (connections, queue size)
    - Histogram: Distribution of values (latency, size)

 2. Choose descriptive names:
    - Use underscore separation: http_request_duration_seconds
    - Include units: _seconds, _bytes, _total
    - Follow Prometheus naming conventions

 3. Add helpful documentation:
    - Include HELP text describing the metric
    - Document all label dimensions
    - Specify units in metric name

 4. Minimize cardinality:
    - Avoid high-cardinality labels (user IDs, timestamps)
    - Normalize endpoint paths
    - Use fixed error type constants

 5. Test performance impact:
    - Benchmark metric recording overhead
    - Monitor memory usage with many time series
    - Validate scrape duration <1s

# See Also

  - internal/middleware: HTTP middleware with metrics integration
  - internal/store/duckdbstore: Database metrics recording
  - internal/retriever, internal/orchestrator: Retriever and traversal metrics
  - https://prometheus.io/docs/practices/naming/: Metric naming conventions
  - https://prometheus.io/docs/practices/instrumentation/: Instrumentation guide
*/
package metrics
