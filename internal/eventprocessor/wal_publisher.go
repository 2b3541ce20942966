// omnifeed - Adaptive Content Discovery and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/omnifeed

//go:build wal && nats

package eventprocessor

import (
	"context"

	"github.com/tomtom215/omnifeed/internal/logging"
	"github.com/tomtom215/omnifeed/internal/wal"
)

// WALEnabledPublisher wraps a Publisher with WAL durability. Events are
// persisted to the WAL before NATS publishing, so a crash between the two
// never loses a raw item, feedback rating, or score update.
//
// The flow is:
//  1. Write the FeedEvent to the WAL (ACID, durable)
//  2. Attempt NATS publish
//  3. On success: confirm the WAL entry
//  4. On failure: the entry remains in the WAL for retry by the background RetryLoop
type WALEnabledPublisher struct {
	inner *Publisher
	wal   *wal.BadgerWAL
}

// NewWALEnabledPublisher creates a WAL-enabled event publisher.
func NewWALEnabledPublisher(inner *Publisher, w *wal.BadgerWAL) (*WALEnabledPublisher, error) {
	if inner == nil {
		return nil, &ValidationError{Field: "inner", Message: "inner publisher required"}
	}
	if w == nil {
		return nil, &ValidationError{Field: "wal", Message: "WAL required"}
	}
	return &WALEnabledPublisher{
		inner: inner,
		wal:   w,
	}, nil
}

// PublishFeedEvent writes the event to the WAL first, then publishes to NATS.
// On publish failure the entry is left pending for the RetryLoop rather than
// returning an error, since the event is already durable.
func (p *WALEnabledPublisher) PublishFeedEvent(ctx context.Context, event *FeedEvent) error {
	if event == nil {
		return nil
	}
	event.EnsureSchemaVersion()

	entryID, err := p.wal.Write(ctx, event)
	if err != nil {
		logging.Error().
			Str("event_id", event.EventID).
			Err(err).
			Msg("WAL write failed for event")
		wal.RecordWALWriteFailure()
		return p.inner.PublishEvent(ctx, event)
	}

	if err := p.inner.PublishEvent(ctx, event); err != nil {
		logging.Warn().
			Str("event_id", event.EventID).
			Str("wal_entry_id", entryID).
			Err(err).
			Msg("NATS publish failed, entry will be retried")
		wal.RecordWALNATSPublishFailure()
		return nil
	}

	if err := p.wal.Confirm(ctx, entryID); err != nil {
		logging.Warn().
			Str("wal_entry_id", entryID).
			Err(err).
			Msg("WAL confirm failed")
	}

	return nil
}

// WAL returns the underlying WAL for background processing.
func (p *WALEnabledPublisher) WAL() *wal.BadgerWAL {
	return p.wal
}

// Inner returns the underlying Publisher, for recovery operations that
// publish directly.
func (p *WALEnabledPublisher) Inner() *Publisher {
	return p.inner
}

// CreateWALPublisher creates a wal.Publisher that publishes FeedEvents to
// NATS. This is used by the WAL recovery and retry loops.
func (p *WALEnabledPublisher) CreateWALPublisher() wal.Publisher {
	return wal.PublisherFunc(func(ctx context.Context, entry *wal.Entry) error {
		var event FeedEvent
		if err := entry.UnmarshalPayload(&event); err != nil {
			return err
		}
		return p.inner.PublishEvent(ctx, &event)
	})
}
