// omnifeed - Adaptive Content Discovery and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/omnifeed

// Package eventprocessor provides an event-sourced architecture using Watermill,
// NATS JetStream, and DuckDB for ingesting and scoring content across retrievers.
//
// This package enables multiple deployment scenarios:
//   - Single-node: Embedded NATS server with all adapters and the scorer in one process
//   - Distributed: Adapters publish from separate processes to a shared NATS cluster
//   - Replay: Full event history lets a fresh scorer or store rebuild its state
//
// # Architecture Decision: NATS-First (Event Sourcing)
//
// This package implements a unified event-sourced architecture where ALL feed
// events flow through NATS JetStream before reaching DuckDB:
//
//	┌─────────────┐   ┌─────────────┐   ┌─────────────┐   ┌─────────────┐
//	│  RSS/Atom   │   │  Search     │   │  Feedback   │   │   Future    │
//	│  Adapter    │   │  Adapter    │   │  (ratings)  │   │  Adapters   │
//	└──────┬──────┘   └──────┬──────┘   └──────┬──────┘   └──────┬──────┘
//	       │                 │                 │                 │
//	       └────────────────┬┴─────────────────┴─────────────────┘
//	                        │
//	                        ▼
//	              ┌─────────────────────┐
//	              │   NATS JetStream    │  ← Single Source of Truth
//	              │   (Event Store)     │
//	              └─────────┬───────────┘
//	                        │
//	          ┌─────────────┼─────────────┐
//	          ▼             ▼             ▼
//	   ┌────────────┐ ┌───────────┐ ┌────────────┐
//	   │DuckDBHandler│ │  Scorer   │ │  Future    │
//	   │(Materialized)│ │(EMA update)│ │ Consumers  │
//	   └──────┬───────┘ └───────────┘ └────────────┘
//	          │
//	          ▼
//	   ┌────────────┐
//	   │   DuckDB   │  ← Materialized View (derived state)
//	   │            │
//	   └────────────┘
//
// # Why Event Sourcing?
//
//   - Idempotent Ingestion: retrievers re-poll overlapping windows; the
//     correlation key lets the same item be republished without duplicating rows
//   - Single Source of Truth: NATS JetStream holds the authoritative event log
//   - Replay & Audit: Full event history enables scorer state reconstruction
//   - Scalability: Adding a retriever is "just another event publisher"
//   - Testability: Centralized event tests work for all adapters
//
// # Deduplication Strategy
//
// Layered deduplication keeps a flaky adapter or a retried publish from
// double-counting an item or a rating:
//
//  1. Correlation Key: a content-derived key (retriever_id + uri, or
//     content_id + retriever_id for feedback) set by FeedEvent.SetCorrelationKey
//  2. In-Memory Cache: recent EventIDs and CorrelationKeys (BloomLRU, 5-minute
//     window by default) — fast path for duplicate adapter polls
//  3. Database Constraint: UNIQUE INDEX as final safety net
//
// # Data Flow
//
// All adapters publish to NATS, DuckDBHandler is the only writer to DuckDB:
//
//	Adapter:    poll source → RawItemPayload → FeedEvent → NATS publish
//	Feedback:   rating submitted → FeedbackPayload → FeedEvent → NATS publish
//	Scorer:     EMA update → ScorePayload → FeedEvent → NATS publish
//
//	DuckDBHandler: NATS subscribe (Router) → Deduplicate → Appender → DuckDB INSERT
//
// # Key Components
//
//   - EmbeddedServer: Optional embedded NATS JetStream server for single-instance deployments
//   - Publisher: Watermill publisher with circuit breaker and reconnection handling
//   - Subscriber: Durable JetStream consumer with exactly-once delivery
//   - DuckDBHandler: Router-registered consumer with correlation-key deduplication
//   - Appender: Batch appender for high-throughput DuckDB writes
//   - StreamReader: Unified interface for reading from streams
//
// # Usage Example
//
//	// Create embedded NATS server (optional)
//	serverCfg := eventprocessor.DefaultServerConfig()
//	server, err := eventprocessor.NewEmbeddedServer(&serverCfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer server.Shutdown(ctx)
//
//	// Create publisher
//	pub, err := eventprocessor.NewPublisher(
//	    eventprocessor.DefaultPublisherConfig(server.ClientURL()),
//	    nil, // logger
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer pub.Close()
//
//	// Publish event
//	event := eventprocessor.NewFeedEvent(eventprocessor.EventKindRawItem)
//	event.RetrieverID = "hn-frontpage"
//	event.SetCorrelationKey("hn-frontpage:https://example.com/post")
//
//	pub.PublishEvent(ctx, event) // serializes and publishes to event.Topic()
//
// # Configuration
//
// The package uses configuration structs with sensible defaults:
//
//	cfg := eventprocessor.DefaultNATSConfig()
//	cfg.StoreDir = "/data/nats/jetstream"
//	cfg.MaxMemory = 1 << 30 // 1GB
//
// # Fallback Pattern
//
// The package implements a resilient reader pattern that automatically falls back
// to the Go NATS client when the DuckDB nats_js extension is unavailable:
//
//	readerCfg := eventprocessor.DefaultResilientReaderConfig(server.ClientURL())
//	reader, err := eventprocessor.NewResilientReader(&readerCfg)
//	// Uses nats_js extension if available, otherwise Go NATS client
//	messages, err := reader.Query(ctx, "MEDIA_EVENTS", opts)
//
// # Integration
//
// The event processor is the wire format between the ingestion side and the
// storage/scoring side of the retrieval engine:
//
//   - Adapters publish raw items and feedback to NATS JetStream
//   - DuckDBHandler persists events to DuckDB via the Appender
//   - The scorer consumes feedback events and publishes score updates
package eventprocessor
