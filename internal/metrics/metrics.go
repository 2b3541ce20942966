// omnifeed - Adaptive Content Discovery and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/omnifeed

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus Metrics Integration for Production Observability
// This package provides comprehensive instrumentation for:
// - Database query performance (DuckDB)
// - API endpoint latency and throughput
// - Retriever polling and orchestrator traversal
// - Scorer updates and ranking model training
// - Cache efficiency and circuit breaker state

var (
	// Database Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdb_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation", "table", "error_type"},
	)

	DBConnectionPoolSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "duckdb_connection_pool_size",
			Help: "Current number of database connections in use",
		},
	)

	// API Endpoint Metrics (ops surface: healthz/readyz/metrics)
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)

	// Retriever Metrics: adapter/handler polling (§4.1-§4.2)
	RetrieverPollDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "retriever_poll_duration_seconds",
			Help:    "Duration of a single retriever Invoke/Poll call",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"handler_type"},
	)

	RetrieverPollErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retriever_poll_errors_total",
			Help: "Total number of retriever poll failures",
		},
		[]string{"handler_type", "error_type"},
	)

	RetrieverItemsProduced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retriever_items_produced_total",
			Help: "Total number of raw items produced by a retriever poll",
		},
		[]string{"handler_type"},
	)

	// Orchestrator Metrics: retriever DAG traversal (§4.2)
	OrchestratorTraversalDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "orchestrator_traversal_duration_seconds",
			Help:    "Duration of a full feed traversal from an entry retriever",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	OrchestratorNodesVisited = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "orchestrator_nodes_visited",
			Help:    "Number of retriever nodes visited per traversal",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250},
		},
	)

	OrchestratorCyclesDetected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "orchestrator_cycles_detected_total",
			Help: "Total number of cycles caught by the traversal's visited-set guard",
		},
	)

	OrchestratorDepthCapped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "orchestrator_depth_capped_total",
			Help: "Total number of sub-nodes skipped for exceeding the configured depth cap",
		},
	)

	// Scorer Metrics: EMA score propagation (§4.3)
	ScorerUpdatesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scorer_updates_total",
			Help: "Total number of retriever score updates applied",
		},
	)

	ScorerConfidence = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scorer_confidence",
			Help:    "Confidence value computed for a retriever after an update",
			Buckets: []float64{0, 0.1, 0.25, 0.5, 0.75, 0.9, 0.95, 1},
		},
	)

	// Ingestion Metrics: enrichment/embed/persist pipeline (§4.4)
	IngestionItemsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingestion_items_processed_total",
			Help: "Total number of raw items run through the ingestion pipeline",
		},
		[]string{"source_type", "outcome"}, // outcome: "created", "updated", "failed"
	)

	IngestionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ingestion_duration_seconds",
			Help:    "Duration of ingesting one batch of raw items",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	IngestionEmbedErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ingestion_embed_errors_total",
			Help: "Total number of embedding failures during ingestion",
		},
	)

	// Ranking Metrics: model registry and scoring (§4.6-§4.7)
	ModelTrainingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "model_training_duration_seconds",
			Help:    "Duration of a single model training run",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"model"},
	)

	ModelTrainingExamples = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "model_training_examples",
			Help:    "Number of training examples used in a training run",
			Buckets: []float64{10, 50, 100, 500, 1000, 5000, 10000, 50000},
		},
		[]string{"model"},
	)

	ModelTrainingErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "model_training_errors_total",
			Help: "Total number of failed training runs",
		},
		[]string{"model"},
	)

	RankingOODGuardTrips = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ranking_ood_guard_trips_total",
			Help: "Total number of scoring calls rejected by the out-of-distribution feature guard",
		},
	)

	// Cache Metrics (General)
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	CacheSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cache_entries",
			Help: "Current number of cached entries",
		},
		[]string{"cache_type"},
	)

	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_evictions_total",
			Help: "Total number of cache evictions (TTL expiry)",
		},
		[]string{"cache_type"},
	)

	// Circuit Breaker Metrics (adapters wrapping unreliable upstream fetches)
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_consecutive_failures",
			Help: "Current number of consecutive failures",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Dead Letter Queue Metrics (event bus delivery failures, §9)
	DLQEntriesTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dlq_entries_total",
			Help: "Current number of entries in the Dead Letter Queue",
		},
	)

	DLQEntriesByCategory = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dlq_entries_by_category",
			Help: "Current number of DLQ entries by error category",
		},
		[]string{"category"}, // connection, timeout, validation, database, capacity, unknown
	)

	DLQMessagesAdded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dlq_messages_added_total",
			Help: "Total number of messages added to the DLQ",
		},
	)

	DLQMessagesRemoved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dlq_messages_removed_total",
			Help: "Total number of messages removed from the DLQ (successfully reprocessed)",
		},
	)

	DLQMessagesExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dlq_messages_expired_total",
			Help: "Total number of messages expired from the DLQ",
		},
	)

	DLQRetryAttempts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dlq_retry_attempts_total",
			Help: "Total number of retry attempts for DLQ messages",
		},
	)

	DLQRetrySuccesses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dlq_retry_successes_total",
			Help: "Total number of successful DLQ message retries",
		},
	)

	DLQRetryFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dlq_retry_failures_total",
			Help: "Total number of failed DLQ message retries",
		},
	)

	DLQOldestEntryAge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dlq_oldest_entry_age_seconds",
			Help: "Age of the oldest entry in the DLQ in seconds",
		},
	)

	// Event Bus Metrics (embedded NATS JetStream, §9)
	NATSMessagesPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nats_messages_published_total",
			Help: "Total number of messages published to NATS",
		},
	)

	NATSMessagesConsumed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nats_messages_consumed_total",
			Help: "Total number of messages consumed from NATS",
		},
	)

	NATSMessagesProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nats_messages_processed_total",
			Help: "Total number of messages successfully processed",
		},
	)

	NATSMessagesDeduplicated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nats_messages_deduplicated_total",
			Help: "Total number of messages skipped due to deduplication",
		},
	)

	NATSMessagesParseFailed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nats_messages_parse_failed_total",
			Help: "Total number of messages that failed to parse",
		},
	)

	NATSProcessingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "nats_processing_duration_seconds",
			Help:    "Duration of NATS message processing in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	NATSBatchFlushDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "nats_batch_flush_duration_seconds",
			Help:    "Duration of batch flush operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	NATSBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "nats_batch_size",
			Help:    "Number of events in each batch flush",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
	)

	NATSQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nats_queue_depth",
			Help: "Current depth of the NATS message queue",
		},
	)

	NATSConsumerLag = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nats_consumer_lag",
			Help: "Number of pending messages in NATS consumer",
		},
	)

	// System Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)

	AppUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "app_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)
)

// RecordDBQuery records a database query metric
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		errorType := err.Error()
		if len(errorType) > 50 {
			errorType = errorType[:50]
		}
		DBQueryErrors.WithLabelValues(operation, table, errorType).Inc()
	}
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordRetrieverPoll records a single retriever invocation.
func RecordRetrieverPoll(handlerType string, duration time.Duration, itemCount int, err error) {
	RetrieverPollDuration.WithLabelValues(handlerType).Observe(duration.Seconds())
	if err != nil {
		errorType := classifyError(err.Error())
		RetrieverPollErrors.WithLabelValues(handlerType, errorType).Inc()
		return
	}
	RetrieverItemsProduced.WithLabelValues(handlerType).Add(float64(itemCount))
}

// RecordOrchestratorTraversal records one full feed traversal.
func RecordOrchestratorTraversal(duration time.Duration, nodesVisited int) {
	OrchestratorTraversalDuration.Observe(duration.Seconds())
	OrchestratorNodesVisited.Observe(float64(nodesVisited))
}

// RecordScorerUpdate records a retriever score update.
func RecordScorerUpdate(confidence float64) {
	ScorerUpdatesTotal.Inc()
	ScorerConfidence.Observe(confidence)
}

// RecordIngestion records the outcome of ingesting one raw item.
func RecordIngestion(sourceType, outcome string) {
	IngestionItemsProcessed.WithLabelValues(sourceType, outcome).Inc()
}

// RecordModelTraining records a completed (or failed) training run.
func RecordModelTraining(model string, duration time.Duration, exampleCount int, err error) {
	if err != nil {
		ModelTrainingErrors.WithLabelValues(model).Inc()
		return
	}
	ModelTrainingDuration.WithLabelValues(model).Observe(duration.Seconds())
	ModelTrainingExamples.WithLabelValues(model).Observe(float64(exampleCount))
}

// classifyError buckets an error message into a small, cardinality-bounded
// set of categories for use as a metric label.
func classifyError(msg string) string {
	switch {
	case contains(msg, "timeout"), contains(msg, "deadline"):
		return "timeout"
	case contains(msg, "database"), contains(msg, "duckdb"):
		return "database"
	case contains(msg, "parse"):
		return "parse"
	case contains(msg, "fetch"), contains(msg, "connection"):
		return "fetch"
	default:
		return "other"
	}
}

// contains reports whether s contains substr, without pulling in strings
// for a single prefix-agnostic check used only for label classification.
func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}

// RecordDLQEntry records a message being added to the DLQ
func RecordDLQEntry(category string) {
	DLQMessagesAdded.Inc()
	DLQEntriesByCategory.WithLabelValues(category).Inc()
}

// RecordDLQRemoval records a message being successfully removed from the DLQ
func RecordDLQRemoval(category string) {
	DLQMessagesRemoved.Inc()
	DLQEntriesByCategory.WithLabelValues(category).Dec()
}

// RecordDLQExpiry records a message expiring from the DLQ
func RecordDLQExpiry(category string) {
	DLQMessagesExpired.Inc()
	DLQEntriesByCategory.WithLabelValues(category).Dec()
}

// RecordDLQRetry records a retry attempt and its outcome
func RecordDLQRetry(success bool) {
	DLQRetryAttempts.Inc()
	if success {
		DLQRetrySuccesses.Inc()
	} else {
		DLQRetryFailures.Inc()
	}
}

// UpdateDLQGauges updates DLQ gauge metrics with current stats
func UpdateDLQGauges(totalEntries int64, oldestEntryAge float64, entriesByCategory map[string]int64) {
	DLQEntriesTotal.Set(float64(totalEntries))
	DLQOldestEntryAge.Set(oldestEntryAge)
	for category, count := range entriesByCategory {
		DLQEntriesByCategory.WithLabelValues(category).Set(float64(count))
	}
}

// RecordNATSPublish records a message being published to NATS
func RecordNATSPublish() {
	NATSMessagesPublished.Inc()
}

// RecordNATSConsume records a message being consumed from NATS
func RecordNATSConsume() {
	NATSMessagesConsumed.Inc()
}

// RecordNATSProcessed records a message being successfully processed
func RecordNATSProcessed() {
	NATSMessagesProcessed.Inc()
}

// RecordNATSDeduplicated records a message being skipped due to deduplication
func RecordNATSDeduplicated() {
	NATSMessagesDeduplicated.Inc()
}

// RecordNATSParseFailed records a message that failed to parse
func RecordNATSParseFailed() {
	NATSMessagesParseFailed.Inc()
}

// RecordNATSProcessingDuration records the duration of message processing
func RecordNATSProcessingDuration(duration time.Duration) {
	NATSProcessingDuration.Observe(duration.Seconds())
}

// RecordNATSBatchFlush records a batch flush operation
func RecordNATSBatchFlush(duration time.Duration, batchSize int) {
	NATSBatchFlushDuration.Observe(duration.Seconds())
	NATSBatchSize.Observe(float64(batchSize))
}

// UpdateNATSQueueDepth updates the NATS queue depth gauge
func UpdateNATSQueueDepth(depth int64) {
	NATSQueueDepth.Set(float64(depth))
}

// UpdateNATSConsumerLag updates the NATS consumer lag gauge
func UpdateNATSConsumerLag(lag int64) {
	NATSConsumerLag.Set(float64(lag))
}
