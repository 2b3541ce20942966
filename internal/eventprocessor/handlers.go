// omnifeed - Adaptive Content Discovery and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/omnifeed

//go:build nats

package eventprocessor

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"

	"github.com/tomtom215/omnifeed/internal/cache"
	"github.com/tomtom215/omnifeed/internal/logging"
	"github.com/tomtom215/omnifeed/internal/metrics"
)

// DuckDBHandlerConfig holds configuration for the DuckDB handler.
type DuckDBHandlerConfig struct {
	// EnableDeduplication enables event deduplication based on CorrelationKey.
	EnableDeduplication bool

	// DeduplicationWindow is how long to remember correlation keys for deduplication.
	DeduplicationWindow time.Duration

	// MaxDeduplicationEntries is the maximum number of entries in the dedup cache.
	MaxDeduplicationEntries int
}

// DefaultDuckDBHandlerConfig returns a DuckDBHandlerConfig with sensible defaults.
func DefaultDuckDBHandlerConfig() DuckDBHandlerConfig {
	return DuckDBHandlerConfig{
		EnableDeduplication:     true,
		DeduplicationWindow:     5 * time.Minute,
		MaxDeduplicationEntries: 10000,
	}
}

// DuckDBHandlerStats holds runtime statistics for monitoring.
type DuckDBHandlerStats struct {
	MessagesReceived  int64
	MessagesProcessed int64
	ParseErrors       int64
	DuplicatesSkipped int64
	LastMessageTime   time.Time
}

// DuckDBHandler is a Router-compatible NoPublishHandlerFunc that appends
// FeedEvents to the Appender for batched persistence. It replaces the old
// manual subscribe-loop consumer: Ack/Nack, retry and poison-queue routing
// are handled by the Router's middleware stack, so Handle only needs to
// report success or failure.
//
// Performance: Uses BloomLRU for O(1) deduplication on CorrelationKey with
// ~90%+ fast-path rejections.
type DuckDBHandler struct {
	appender *Appender
	config   DuckDBHandlerConfig

	dedupCache *cache.BloomLRU

	messagesReceived  atomic.Int64
	messagesProcessed atomic.Int64
	parseErrors       atomic.Int64
	duplicatesSkipped atomic.Int64
	lastMessageTime   atomic.Value // stores time.Time
}

// NewDuckDBHandler creates a new DuckDB handler for registration with a Router.
func NewDuckDBHandler(appender *Appender, cfg DuckDBHandlerConfig, _ interface{}) (*DuckDBHandler, error) {
	if appender == nil {
		return nil, fmt.Errorf("appender required")
	}

	h := &DuckDBHandler{
		appender: appender,
		config:   cfg,
		dedupCache: cache.NewBloomLRU(
			cfg.MaxDeduplicationEntries,
			cfg.DeduplicationWindow,
			0.01, // 1% false positive rate
		),
	}
	h.lastMessageTime.Store(time.Time{})

	return h, nil
}

// Handle processes a single message. It implements the Watermill
// NoPublishHandlerFunc signature: Ack/Nack is decided by the router from the
// returned error, so Handle never calls msg.Ack()/msg.Nack() itself.
func (h *DuckDBHandler) Handle(msg *message.Message) error {
	startTime := time.Now()
	h.messagesReceived.Add(1)
	h.lastMessageTime.Store(startTime)

	metrics.RecordNATSConsume()

	var event FeedEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		h.parseErrors.Add(1)
		metrics.RecordNATSParseFailed()
		logging.Warn().
			Str("message_uuid", msg.UUID).
			Err(err).
			Msg("DUCKDB_HANDLER: failed to parse message")
		// Malformed payloads will never parse on retry; treat as a permanent
		// error so the poison queue middleware routes it to the DLQ instead
		// of retrying indefinitely.
		return NewPermanentError("parse feed event", err)
	}

	if h.config.EnableDeduplication && h.isDuplicate(&event) {
		h.duplicatesSkipped.Add(1)
		metrics.RecordNATSDeduplicated()
		return nil
	}

	if err := h.appender.Append(context.Background(), &event); err != nil {
		logging.Warn().
			Str("event_id", event.EventID).
			Err(err).
			Msg("DUCKDB_HANDLER: failed to append event")
		return NewRetryableError("append feed event", err)
	}

	if h.config.EnableDeduplication {
		h.recordEvent(&event)
	}

	h.messagesProcessed.Add(1)
	metrics.RecordNATSProcessed()
	metrics.RecordNATSProcessingDuration(time.Since(startTime))
	return nil
}

// isDuplicate checks if an event has been seen recently by EventID or
// CorrelationKey (the idempotent-upsert key computed by the publisher, see
// FeedEvent.SetCorrelationKey).
func (h *DuckDBHandler) isDuplicate(event *FeedEvent) bool {
	if h.dedupCache.IsDuplicate(event.EventID) {
		return true
	}
	if event.CorrelationKey != "" && h.dedupCache.Contains("corr:"+event.CorrelationKey) {
		return true
	}
	return false
}

// recordEvent adds event keys to the deduplication cache.
func (h *DuckDBHandler) recordEvent(event *FeedEvent) {
	h.dedupCache.Record(event.EventID)
	if event.CorrelationKey != "" {
		h.dedupCache.Record("corr:" + event.CorrelationKey)
	}
}

// StartCleanup launches a background goroutine that periodically evicts
// expired entries from the deduplication cache. It returns immediately.
func (h *DuckDBHandler) StartCleanup(ctx context.Context) {
	if !h.config.EnableDeduplication {
		return
	}

	ticker := time.NewTicker(h.config.DeduplicationWindow / 2)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				h.dedupCache.CleanupExpired()
			}
		}
	}()
}

// Stats returns current runtime statistics.
func (h *DuckDBHandler) Stats() DuckDBHandlerStats {
	var lastTime time.Time
	if t, ok := h.lastMessageTime.Load().(time.Time); ok {
		lastTime = t
	}
	return DuckDBHandlerStats{
		MessagesReceived:  h.messagesReceived.Load(),
		MessagesProcessed: h.messagesProcessed.Load(),
		ParseErrors:       h.parseErrors.Load(),
		DuplicatesSkipped: h.duplicatesSkipped.Load(),
		LastMessageTime:   lastTime,
	}
}
