// omnifeed - Adaptive Content Discovery and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/omnifeed

//go:build !nats

package eventprocessor

import (
	"context"
)

// FeedEventInserter defines the interface for inserting feed events.
// This is a stub for non-NATS builds.
type FeedEventInserter interface {
	InsertRawItem(ctx context.Context, retrieverID string, item RawItemPayload) error
	InsertFeedback(ctx context.Context, feedback FeedbackPayload) error
}

// DuckDBStore is a stub for non-NATS builds.
type DuckDBStore struct{}

// NewDuckDBStore returns an error in non-NATS builds.
func NewDuckDBStore(_ FeedEventInserter) (*DuckDBStore, error) {
	return nil, ErrNATSNotEnabled
}

// InsertFeedEvents is a no-op stub.
func (s *DuckDBStore) InsertFeedEvents(_ context.Context, _ []*FeedEvent) error {
	return ErrNATSNotEnabled
}
