// omnifeed - Adaptive Content Discovery and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/omnifeed

//go:build nats

package eventprocessor

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/omnifeed/internal/logging"
)

// FeedEventInserter defines the interface for materializing FeedEvents into
// the store. This abstraction lets DuckDBStore depend on the store package's
// contract without importing its concrete DuckDB implementation, avoiding an
// eventprocessor<->store import cycle.
type FeedEventInserter interface {
	InsertRawItem(ctx context.Context, retrieverID string, item RawItemPayload) error
	InsertFeedback(ctx context.Context, feedback FeedbackPayload) error
}

// BatchFeedEventInserter extends FeedEventInserter with atomic batch
// operations. Implementations must guarantee all-or-nothing semantics using
// database transactions.
type BatchFeedEventInserter interface {
	FeedEventInserter

	// InsertFeedEventsBatch atomically applies a batch of events.
	// Returns the number applied and the number skipped as duplicates.
	InsertFeedEventsBatch(ctx context.Context, events []*FeedEvent) (inserted int, duplicates int, err error)
}

// DuckDBStore implements EventStore by dispatching FeedEvents to the store
// layer based on their Kind.
//
// Supports atomic batch inserts via BatchFeedEventInserter. When the
// underlying db implements it, all inserts in a flush are wrapped in a
// transaction for all-or-nothing semantics.
type DuckDBStore struct {
	db      FeedEventInserter
	batchDB BatchFeedEventInserter // nil if db doesn't support batch ops
}

// NewDuckDBStore creates a new DuckDBStore with the given database.
func NewDuckDBStore(db FeedEventInserter) (*DuckDBStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database required")
	}

	store := &DuckDBStore{db: db}

	if batchDB, ok := db.(BatchFeedEventInserter); ok {
		store.batchDB = batchDB
		logging.Info().Msg("STORE: atomic batch insert support enabled")
	} else {
		logging.Warn().Msg("STORE: database does not support atomic batch inserts, using individual inserts")
	}

	return store, nil
}

// InsertFeedEvents applies a batch of events to the store. Uses atomic batch
// insert when available. Raw items that fail to unmarshal are logged and
// skipped rather than failing the whole batch.
//
// Note: With ON CONFLICT DO NOTHING, duplicate events (by correlation key)
// are silently skipped. The batch method returns counts of inserted vs
// duplicates for auditability.
func (s *DuckDBStore) InsertFeedEvents(ctx context.Context, events []*FeedEvent) error {
	if len(events) == 0 {
		return nil
	}

	startTime := time.Now()
	logging.Trace().Int("count", len(events)).Msg("STORE: inserting batch of events")

	if s.batchDB != nil {
		inserted, duplicates, err := s.batchDB.InsertFeedEventsBatch(ctx, events)
		if err != nil {
			logging.Trace().
				Dur("elapsed", time.Since(startTime)).
				Err(err).
				Int("rolled_back", len(events)).
				Msg("STORE: atomic batch FAILED")
			return fmt.Errorf("atomic batch insert failed: %w", err)
		}

		logging.Trace().
			Int("inserted", inserted).
			Int("duplicates", duplicates).
			Int("total", len(events)).
			Dur("elapsed", time.Since(startTime)).
			Msg("STORE: atomic batch SUCCESS")
		return nil
	}

	logging.Warn().Msg("STORE: using non-atomic individual inserts (partial state possible on failure)")

	for i, event := range events {
		if err := s.insertOne(ctx, event); err != nil {
			logging.Error().
				Int("index", i).
				Int("total", len(events)).
				Dur("elapsed", time.Since(startTime)).
				Err(err).
				Msg("STORE: non-atomic batch failed")
			return fmt.Errorf("insert event %d (%s): %w", i, event.EventID, err)
		}
	}

	logging.Info().
		Int("count", len(events)).
		Dur("elapsed", time.Since(startTime)).
		Msg("STORE: non-atomic batch complete")
	return nil
}

func (s *DuckDBStore) insertOne(ctx context.Context, event *FeedEvent) error {
	switch event.Kind {
	case EventKindRawItem:
		var item RawItemPayload
		if err := event.UnmarshalPayload(&item); err != nil {
			logging.Warn().Err(err).Str("event_id", event.EventID).Msg("STORE: skipping raw_item with malformed payload")
			return nil
		}
		return s.db.InsertRawItem(ctx, event.RetrieverID, item)
	case EventKindFeedback:
		var feedback FeedbackPayload
		if err := event.UnmarshalPayload(&feedback); err != nil {
			return fmt.Errorf("unmarshal feedback payload: %w", err)
		}
		return s.db.InsertFeedback(ctx, feedback)
	case EventKindScoreUpdate:
		// Score updates are broadcast-only; the scorer already persisted the
		// authoritative value before publishing. Nothing to materialize here.
		return nil
	default:
		return fmt.Errorf("unknown event kind: %s", event.Kind)
	}
}
