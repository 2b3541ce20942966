// omnifeed - Adaptive Content Discovery and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/omnifeed

//go:build !nats

package eventprocessor

import (
	"context"
	"time"
)

// DuckDBHandlerConfig is a stub for non-NATS builds.
type DuckDBHandlerConfig struct {
	EnableDeduplication     bool
	DeduplicationWindow     time.Duration
	MaxDeduplicationEntries int
}

// DefaultDuckDBHandlerConfig returns default configuration.
// This is a stub for non-NATS builds.
func DefaultDuckDBHandlerConfig() DuckDBHandlerConfig {
	return DuckDBHandlerConfig{
		EnableDeduplication:     true,
		DeduplicationWindow:     5 * time.Minute,
		MaxDeduplicationEntries: 10000,
	}
}

// DuckDBHandlerStats is a stub for non-NATS builds.
type DuckDBHandlerStats struct {
	MessagesReceived  int64
	MessagesProcessed int64
	ParseErrors       int64
	DuplicatesSkipped int64
	LastMessageTime   time.Time
}

// DuckDBHandler is a stub for non-NATS builds.
type DuckDBHandler struct{}

// NewDuckDBHandler returns an error in non-NATS builds.
func NewDuckDBHandler(_ *Appender, _ DuckDBHandlerConfig, _ interface{}) (*DuckDBHandler, error) {
	return nil, ErrNATSNotEnabled
}

// StartCleanup is a no-op stub.
func (h *DuckDBHandler) StartCleanup(_ context.Context) {}

// Stats returns empty stats in non-NATS builds.
func (h *DuckDBHandler) Stats() DuckDBHandlerStats {
	return DuckDBHandlerStats{}
}
