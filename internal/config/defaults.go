// omnifeed - Adaptive Content Discovery and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/omnifeed

package config

import "time"

// defaultConfig returns a Config with all sensible default values. Defaults
// are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Path:      "omnifeed.duckdb",
			MaxMemory: "2GB",
			Threads:   0,
		},
		Retriever: RetrieverConfig{
			MaxDepth:      4,
			FeedLimit:     20,
			InvokeTimeout: 30 * time.Second,
		},
		Scorer: ScorerConfig{
			EMAAlpha:             0.3,
			MinConfidenceSamples: 5,
			ExploreRatio:         0.3,
			MinExploitConfidence: 0.3,
			OversampleFactor:     2,
		},
		Ingestion: IngestionConfig{
			TextCorpusChars: 1000,
			AudioTimeout:    30 * time.Second,
			AudioMaxBytes:   25 << 20, // 25MB
			EmbedBatchSize:  32,
		},
		Ranking: RankingConfig{
			OutputDim:           64,
			OODThreshold:        10.0,
			RidgeL2:             1.0,
			ModelDir:            "models",
			TrainInterval:       6 * time.Hour,
			MinTrainingExamples: 20,
		},
		EventBus: EventBusConfig{
			Enabled:     true,
			URL:         "nats://127.0.0.1:4222",
			Embedded:    true,
			StoreDir:    "data/nats",
			WALDir:      "data/wal",
			Subscribers: 2,
		},
		Server: ServerConfig{
			Host:    "127.0.0.1",
			Port:    8080,
			Timeout: 15 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			Caller: false,
		},
	}
}
