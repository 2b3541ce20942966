// omnifeed - Adaptive Content Discovery and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/omnifeed

package store

import (
	"context"
	"time"
)

// Store is the sole mutator of persistent entities. Every other component
// communicates with persistence exclusively through this interface; no
// component outside this package's implementations issues SQL or touches a
// file on disk directly.
type Store interface {
	// Sources.
	UpsertSource(ctx context.Context, s *Source) (*Source, error)
	GetSource(ctx context.Context, id string) (*Source, error)
	GetSourceByURI(ctx context.Context, sourceType, uri string) (*Source, error)

	// Retrievers.
	UpsertRetrieverByURI(ctx context.Context, r *Retriever) (retriever *Retriever, created bool, err error)
	GetRetriever(ctx context.Context, id string) (*Retriever, error)
	GetRetrieverByURI(ctx context.Context, uri string) (*Retriever, error)
	ListChildren(ctx context.Context, parentID string) ([]*Retriever, error)
	ListRetrievers(ctx context.Context) ([]*Retriever, error)
	// ListNeedingPoll returns enabled POLL/HYBRID retrievers whose
	// now - last_invoked_at >= poll_interval_seconds (or that have never
	// been invoked).
	ListNeedingPoll(ctx context.Context, now time.Time) ([]*Retriever, error)
	TouchInvokedAt(ctx context.Context, id string, at time.Time) error
	SetRetrieverScore(ctx context.Context, id string, score RetrieverScore) error
	SetRetrieverEnabled(ctx context.Context, id string, enabled bool) error

	// Contents.
	UpsertContentBySource(ctx context.Context, sourceID, externalID string, c *Content) (content *Content, created bool, err error)
	GetContent(ctx context.Context, id string) (*Content, error)
	GetContentByCanonicalID(ctx context.Context, scheme, value string) (*Content, error)
	MarkSeen(ctx context.Context, id string) error
	SetHidden(ctx context.Context, id string, hidden bool) error
	ListContent(ctx context.Context, limit, offset int) ([]*Content, error)

	// Encodings.
	UpsertEncoding(ctx context.Context, e *Encoding) (encoding *Encoding, created bool, err error)
	GetEncodingBySource(ctx context.Context, sourceType, externalID string) (*Encoding, error)
	ListEncodingsByContent(ctx context.Context, contentID string) ([]*Encoding, error)

	// Creators.
	UpsertCreator(ctx context.Context, c *Creator) (*Creator, error)
	GetCreator(ctx context.Context, id string) (*Creator, error)

	// Feedback.
	InsertFeedbackEvent(ctx context.Context, f *FeedbackEvent) error
	InsertExplicitFeedback(ctx context.Context, f *ExplicitFeedback) error
	ListFeedbackEvents(ctx context.Context, since time.Time) ([]*FeedbackEvent, error)
	ListExplicitFeedback(ctx context.Context) ([]*ExplicitFeedback, error)

	// Aggregates.
	GetSourceStats(ctx context.Context, sourceID string) (SourceStats, error)
	UpsertSourceStats(ctx context.Context, s SourceStats) error

	Close() error
}

// IDGenerator produces unique string identifiers for new rows. Callers
// that need deterministic IDs in tests can supply a fake.
type IDGenerator interface {
	NewID() string
}
