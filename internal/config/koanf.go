// omnifeed - Adaptive Content Discovery and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/omnifeed

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found is used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/omnifeed/config.yaml",
	"/etc/omnifeed/config.yml",
}

// ConfigPathEnvVar overrides the config file search with an explicit path.
const ConfigPathEnvVar = "CONFIG_PATH"

// Load reads configuration from defaults, an optional YAML file, and
// environment variables (in that priority order), then validates the
// result.
func Load() (*Config, error) {
	k := koanf.New(".")

	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// envTransformFunc maps environment variable names to koanf config paths.
// Unmapped keys return an empty string and are skipped, so arbitrary
// environment variables never leak into the config tree.
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		"store_path":       "store.path",
		"store_max_memory": "store.max_memory",
		"store_threads":    "store.threads",
		"store_read_only":  "store.read_only",
		"store_seed_mockup": "store.seed_mockup",

		"retriever_max_depth":        "retriever.max_depth",
		"retriever_feed_limit":       "retriever.feed_limit",
		"retriever_invoke_timeout":   "retriever.invoke_timeout",
		"retriever_include_disabled": "retriever.include_disabled",

		"scorer_ema_alpha":               "scorer.ema_alpha",
		"scorer_min_confidence_samples":  "scorer.min_confidence_samples",
		"scorer_explore_ratio":           "scorer.explore_ratio",
		"scorer_min_exploit_confidence":  "scorer.min_exploit_confidence",
		"scorer_oversample_factor":       "scorer.oversample_factor",

		"ingestion_text_corpus_chars": "ingestion.text_corpus_chars",
		"ingestion_audio_timeout":     "ingestion.audio_timeout",
		"ingestion_audio_max_bytes":   "ingestion.audio_max_bytes",
		"ingestion_embed_batch_size":  "ingestion.embed_batch_size",

		"ranking_output_dim":            "ranking.output_dim",
		"ranking_ood_threshold":         "ranking.ood_threshold",
		"ranking_ridge_l2":              "ranking.ridge_l2",
		"ranking_model_dir":             "ranking.model_dir",
		"ranking_train_interval":        "ranking.train_interval",
		"ranking_min_training_examples": "ranking.min_training_examples",

		"event_bus_enabled":     "event_bus.enabled",
		"event_bus_url":         "event_bus.url",
		"event_bus_embedded":    "event_bus.embedded",
		"event_bus_store_dir":   "event_bus.store_dir",
		"event_bus_wal_dir":     "event_bus.wal_dir",
		"event_bus_subscribers": "event_bus.subscribers",

		"http_host":    "server.host",
		"http_port":    "server.port",
		"http_timeout": "server.timeout",

		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}
