// omnifeed - Adaptive Content Discovery and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/omnifeed

package config

import "time"

// Config holds all application configuration loaded from environment variables
// and config files. Config is immutable after Load() and safe for concurrent
// read access from multiple goroutines.
type Config struct {
	Store     StoreConfig     `koanf:"store"`
	Retriever RetrieverConfig `koanf:"retriever"`
	Scorer    ScorerConfig    `koanf:"scorer"`
	Ingestion IngestionConfig `koanf:"ingestion"`
	Ranking   RankingConfig   `koanf:"ranking"`
	EventBus  EventBusConfig  `koanf:"event_bus"`
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// StoreConfig holds the embedded DuckDB connection settings backing the
// Store contract (sources, retrievers, content, encodings, embeddings,
// feedback, scores).
//
// Environment variables:
//   - STORE_PATH: file path for the DuckDB database (":memory:" for ephemeral)
//   - STORE_MAX_MEMORY: DuckDB memory budget (e.g. "2GB")
//   - STORE_THREADS: DuckDB worker thread count (0 = runtime.NumCPU())
type StoreConfig struct {
	Path       string `koanf:"path"`
	MaxMemory  string `koanf:"max_memory"`
	Threads    int    `koanf:"threads"`
	ReadOnly   bool   `koanf:"read_only"`
	SeedMockup bool   `koanf:"seed_mockup"`
}

// RetrieverConfig bounds the orchestrator's traversal of the retriever DAG.
//
// Environment variables:
//   - RETRIEVER_MAX_DEPTH: hard cap on recursion depth (§4.2 cycle safety)
//   - RETRIEVER_FEED_LIMIT: default number of retrievers selected per feed cycle
//   - RETRIEVER_INVOKE_TIMEOUT: per-handler-invocation deadline
type RetrieverConfig struct {
	MaxDepth        int           `koanf:"max_depth"`
	FeedLimit       int           `koanf:"feed_limit"`
	InvokeTimeout   time.Duration `koanf:"invoke_timeout"`
	IncludeDisabled bool          `koanf:"include_disabled"`
}

// ScorerConfig carries the EMA and explore/exploit constants from §4.3.
//
// Environment variables:
//   - SCORER_EMA_ALPHA, SCORER_MIN_CONFIDENCE_SAMPLES, SCORER_EXPLORE_RATIO,
//     SCORER_MIN_EXPLOIT_CONFIDENCE.
type ScorerConfig struct {
	EMAAlpha             float64 `koanf:"ema_alpha"`
	MinConfidenceSamples int     `koanf:"min_confidence_samples"`
	ExploreRatio         float64 `koanf:"explore_ratio"`
	MinExploitConfidence float64 `koanf:"min_exploit_confidence"`
	OversampleFactor      int    `koanf:"oversample_factor"`
}

// IngestionConfig bounds the raw-item-to-content pipeline of §4.4.
//
// Environment variables:
//   - INGESTION_TEXT_CORPUS_CHARS, INGESTION_AUDIO_TIMEOUT,
//     INGESTION_AUDIO_MAX_BYTES, INGESTION_EMBED_BATCH_SIZE.
type IngestionConfig struct {
	TextCorpusChars int           `koanf:"text_corpus_chars"`
	AudioTimeout    time.Duration `koanf:"audio_timeout"`
	AudioMaxBytes   int64         `koanf:"audio_max_bytes"`
	EmbedBatchSize  int           `koanf:"embed_batch_size"`
}

// RankingConfig governs the ranking heads and model registry of §4.6-§4.7.
//
// Environment variables:
//   - RANKING_OUTPUT_DIM, RANKING_OOD_THRESHOLD, RANKING_RIDGE_L2,
//     RANKING_MODEL_DIR, RANKING_TRAIN_INTERVAL, RANKING_MIN_TRAINING_EXAMPLES.
type RankingConfig struct {
	OutputDim           int           `koanf:"output_dim"`
	OODThreshold        float64       `koanf:"ood_threshold"`
	RidgeL2             float64       `koanf:"ridge_l2"`
	ModelDir            string        `koanf:"model_dir"`
	TrainInterval       time.Duration `koanf:"train_interval"`
	MinTrainingExamples int           `koanf:"min_training_examples"`
}

// EventBusConfig configures the embedded NATS JetStream instance carrying
// feedback events and ingestion jobs between the orchestrator, ingestion
// pipeline, and scorer (§4.4, §9).
//
// Environment variables:
//   - EVENT_BUS_ENABLED, EVENT_BUS_URL, EVENT_BUS_EMBEDDED,
//     EVENT_BUS_STORE_DIR, EVENT_BUS_WAL_DIR.
type EventBusConfig struct {
	Enabled    bool   `koanf:"enabled"`
	URL        string `koanf:"url"`
	Embedded   bool   `koanf:"embedded"`
	StoreDir   string `koanf:"store_dir"`
	WALDir     string `koanf:"wal_dir"`
	Subscribers int   `koanf:"subscribers"`
}

// ServerConfig configures the minimal ops-only HTTP surface (health,
// readiness, metrics). It intentionally does not expose the product feed
// API — that remains a Go-level contract (§6).
//
// Environment variables:
//   - HTTP_HOST, HTTP_PORT, HTTP_TIMEOUT.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`
}

// LoggingConfig configures zerolog output.
//
// Environment variables:
//   - LOG_LEVEL, LOG_FORMAT, LOG_CALLER.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}
