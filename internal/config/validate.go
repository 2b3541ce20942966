// omnifeed - Adaptive Content Discovery and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/omnifeed

package config

import (
	"fmt"
	"net/url"
)

// Validate checks that the configuration is internally consistent. It is
// called automatically by Load but is exported so callers constructing a
// Config programmatically (tests, embedding scenarios) can reuse it.
func (c *Config) Validate() error {
	if c.Store.Path == "" {
		return fmt.Errorf("store.path must not be empty")
	}

	if c.Retriever.MaxDepth < 1 {
		return fmt.Errorf("retriever.max_depth must be >= 1, got %d", c.Retriever.MaxDepth)
	}
	if c.Retriever.FeedLimit < 1 {
		return fmt.Errorf("retriever.feed_limit must be >= 1, got %d", c.Retriever.FeedLimit)
	}

	if c.Scorer.EMAAlpha <= 0 || c.Scorer.EMAAlpha > 1 {
		return fmt.Errorf("scorer.ema_alpha must be in (0,1], got %f", c.Scorer.EMAAlpha)
	}
	if c.Scorer.MinConfidenceSamples < 1 {
		return fmt.Errorf("scorer.min_confidence_samples must be >= 1, got %d", c.Scorer.MinConfidenceSamples)
	}
	if c.Scorer.ExploreRatio < 0 || c.Scorer.ExploreRatio > 1 {
		return fmt.Errorf("scorer.explore_ratio must be in [0,1], got %f", c.Scorer.ExploreRatio)
	}
	if c.Scorer.MinExploitConfidence < 0 || c.Scorer.MinExploitConfidence > 1 {
		return fmt.Errorf("scorer.min_exploit_confidence must be in [0,1], got %f", c.Scorer.MinExploitConfidence)
	}
	if c.Scorer.OversampleFactor < 1 {
		return fmt.Errorf("scorer.oversample_factor must be >= 1, got %d", c.Scorer.OversampleFactor)
	}

	if c.Ingestion.TextCorpusChars < 1 {
		return fmt.Errorf("ingestion.text_corpus_chars must be >= 1, got %d", c.Ingestion.TextCorpusChars)
	}
	if c.Ingestion.AudioMaxBytes < 0 {
		return fmt.Errorf("ingestion.audio_max_bytes must be >= 0, got %d", c.Ingestion.AudioMaxBytes)
	}

	if c.Ranking.OutputDim < 1 {
		return fmt.Errorf("ranking.output_dim must be >= 1, got %d", c.Ranking.OutputDim)
	}
	if c.Ranking.OODThreshold <= 0 {
		return fmt.Errorf("ranking.ood_threshold must be > 0, got %f", c.Ranking.OODThreshold)
	}
	if c.Ranking.RidgeL2 < 0 {
		return fmt.Errorf("ranking.ridge_l2 must be >= 0, got %f", c.Ranking.RidgeL2)
	}

	if c.EventBus.Enabled && !c.EventBus.Embedded {
		if err := validateNATSURL(c.EventBus.URL); err != nil {
			return fmt.Errorf("event_bus.url: %w", err)
		}
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in [1,65535], got %d", c.Server.Port)
	}

	return nil
}

// validateNATSURL validates that a NATS connection URL is well-formed.
// Supports nats://, tls://, ws:// and wss:// schemes.
func validateNATSURL(rawURL string) error {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("failed to parse URL: %w", err)
	}

	validSchemes := map[string]bool{"nats": true, "tls": true, "ws": true, "wss": true}
	if !validSchemes[parsedURL.Scheme] {
		return fmt.Errorf("scheme must be nats, tls, ws, or wss, got: %s", parsedURL.Scheme)
	}

	if parsedURL.Host == "" {
		return fmt.Errorf("host is required (e.g., localhost:4222)")
	}

	return nil
}
