// omnifeed - Adaptive Content Discovery and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/omnifeed

// Package embedding provides the encoding service interface consumed by
// ingestion, and the per-type fusion model that projects an open-ended set
// of named embeddings down to a fixed-dimensional vector for ranking.
package embedding

import "context"

// Service is the external encoding collaborator: text and audio models
// live behind this interface so the engine never depends on a specific
// embedding provider.
type Service interface {
	// Encode batch-encodes texts into vectors, one per input, in order.
	Encode(ctx context.Context, texts []string) ([][]float32, error)
	// EmbedText encodes a single string. Implementations may just call
	// Encode with a one-element slice.
	EmbedText(ctx context.Context, text string) ([]float32, error)
	// EmbedAudioURL downloads and encodes the audio at url.
	EmbedAudioURL(ctx context.Context, url string) ([]float32, error)
	// Model returns the model identifier recorded on produced embeddings.
	Model() string
}
