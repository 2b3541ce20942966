// omnifeed - Adaptive Content Discovery and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/omnifeed

// Package config loads and validates omnifeed's configuration using Koanf v2.
//
// # Configuration Loading Order
//
//  1. Defaults: sensible built-in values for every optional setting.
//  2. Config file: an optional YAML file (config.yaml) for persistent settings.
//  3. Environment variables: override any setting, highest priority.
//
// # Configuration Categories
//
//   - Store: the embedded DuckDB path and pragmas backing the Store contract.
//   - Retriever: traversal depth cap, retrievers selected per feed cycle,
//     per-invocation timeout.
//   - Scorer: EMA alpha, confidence floor, explore/exploit ratio.
//   - Ingestion: embedding batch size, audio download timeout and size cap.
//   - Ranking: training cadence, model snapshot directory, OOD threshold.
//   - EventBus: embedded NATS JetStream settings for the feedback/ingestion bus.
//   - Server: the ops-only HTTP surface (health, readiness, metrics).
//   - Logging: zerolog level and format.
//
// Example:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal("failed to load config:", err)
//	}
//	eng := engine.New(engine.Config{Store: st, Handlers: handlers, Models: models, Logger: logger})
package config
