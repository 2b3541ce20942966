// omnifeed - Adaptive Content Discovery and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/omnifeed

// Package memstore is an in-memory store.Store reference implementation.
// It exists for unit tests and for local development without a DuckDB
// file; it enforces the same uniqueness and upsert-preservation
// invariants as the DuckDB-backed implementation.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/tomtom215/omnifeed/internal/errs"
	"github.com/tomtom215/omnifeed/internal/store"
)

// Store is a mutex-guarded, map-backed store.Store.
type Store struct {
	mu sync.Mutex
	ids store.IDGenerator

	sources    map[string]*store.Source
	sourceByURI map[string]string // sourceType+"\x00"+uri -> id

	retrievers    map[string]*store.Retriever
	retrieverByURI map[string]string

	contents         map[string]*store.Content
	contentBySource  map[string]string // sourceID+"\x00"+externalID -> content id
	contentByCanon   map[string]string // scheme+"\x00"+value -> content id

	encodings       map[string]*store.Encoding
	encodingBySrc   map[string]string // sourceType+"\x00"+externalID -> encoding id
	encodingsByContent map[string][]string

	creators map[string]*store.Creator

	feedbackEvents []*store.FeedbackEvent
	explicit       []*store.ExplicitFeedback

	sourceStats map[string]store.SourceStats
}

// New returns an empty Store using UUIDGenerator for new IDs.
func New() *Store {
	return NewWithIDs(store.UUIDGenerator{})
}

// NewWithIDs returns an empty Store using the supplied ID generator, for
// deterministic test fixtures.
func NewWithIDs(ids store.IDGenerator) *Store {
	return &Store{
		ids:                 ids,
		sources:             make(map[string]*store.Source),
		sourceByURI:         make(map[string]string),
		retrievers:          make(map[string]*store.Retriever),
		retrieverByURI:      make(map[string]string),
		contents:            make(map[string]*store.Content),
		contentBySource:     make(map[string]string),
		contentByCanon:      make(map[string]string),
		encodings:           make(map[string]*store.Encoding),
		encodingBySrc:       make(map[string]string),
		encodingsByContent:  make(map[string][]string),
		creators:            make(map[string]*store.Creator),
		sourceStats:         make(map[string]store.SourceStats),
	}
}

func sourceKey(sourceType, uri string) string { return sourceType + "\x00" + uri }
func extKey(a, b string) string                { return a + "\x00" + b }

// Close is a no-op for the in-memory store.
func (s *Store) Close() error { return nil }

func (s *Store) UpsertSource(_ context.Context, in *store.Source) (*store.Source, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := sourceKey(in.SourceType, in.URI)
	if id, ok := s.sourceByURI[key]; ok {
		existing := s.sources[id]
		cp := *in
		cp.ID = existing.ID
		cp.CreatedAt = existing.CreatedAt
		s.sources[id] = &cp
		out := *s.sources[id]
		return &out, nil
	}

	cp := *in
	if cp.ID == "" {
		cp.ID = s.ids.NewID()
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	s.sources[cp.ID] = &cp
	s.sourceByURI[key] = cp.ID
	out := cp
	return &out, nil
}

func (s *Store) GetSource(_ context.Context, id string) (*store.Source, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	src, ok := s.sources[id]
	if !ok {
		return nil, errs.Wrap(errs.ErrInvalidInput, "source not found: "+id, nil)
	}
	out := *src
	return &out, nil
}

func (s *Store) GetSourceByURI(_ context.Context, sourceType, uri string) (*store.Source, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.sourceByURI[sourceKey(sourceType, uri)]
	if !ok {
		return nil, errs.Wrap(errs.ErrInvalidInput, "source not found: "+uri, nil)
	}
	out := *s.sources[id]
	return &out, nil
}

// UpsertRetrieverByURI inserts a new retriever or returns the existing row
// for the same URI, per §4.2 step 5's "upsert by URI" rule.
func (s *Store) UpsertRetrieverByURI(_ context.Context, in *store.Retriever) (*store.Retriever, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.retrieverByURI[in.URI]; ok {
		out := *s.retrievers[id]
		return &out, false, nil
	}

	cp := *in
	if cp.ID == "" {
		cp.ID = s.ids.NewID()
	}
	s.retrievers[cp.ID] = &cp
	s.retrieverByURI[cp.URI] = cp.ID
	out := cp
	return &out, true, nil
}

func (s *Store) GetRetriever(_ context.Context, id string) (*store.Retriever, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.retrievers[id]
	if !ok {
		return nil, errs.Wrap(errs.ErrInvalidInput, "retriever not found: "+id, nil)
	}
	out := *r
	return &out, nil
}

func (s *Store) GetRetrieverByURI(_ context.Context, uri string) (*store.Retriever, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.retrieverByURI[uri]
	if !ok {
		return nil, errs.Wrap(errs.ErrInvalidInput, "retriever not found: "+uri, nil)
	}
	out := *s.retrievers[id]
	return &out, nil
}

func (s *Store) ListChildren(_ context.Context, parentID string) ([]*store.Retriever, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*store.Retriever
	for _, r := range s.retrievers {
		if r.ParentID != nil && *r.ParentID == parentID {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *Store) ListRetrievers(_ context.Context) ([]*store.Retriever, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*store.Retriever, 0, len(s.retrievers))
	for _, r := range s.retrievers {
		cp := *r
		out = append(out, &cp)
	}
	return out, nil
}

func (s *Store) ListNeedingPoll(_ context.Context, now time.Time) ([]*store.Retriever, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*store.Retriever
	for _, r := range s.retrievers {
		if !r.IsEnabled || r.Kind == store.RetrieverKindExplore {
			continue
		}
		if r.LastInvokedAt == nil {
			cp := *r
			out = append(out, &cp)
			continue
		}
		due := r.LastInvokedAt.Add(time.Duration(r.PollIntervalSeconds) * time.Second)
		if !now.Before(due) {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *Store) TouchInvokedAt(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.retrievers[id]
	if !ok {
		return errs.Wrap(errs.ErrInvalidInput, "retriever not found: "+id, nil)
	}
	t := at
	r.LastInvokedAt = &t
	return nil
}

func (s *Store) SetRetrieverScore(_ context.Context, id string, score store.RetrieverScore) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.retrievers[id]
	if !ok {
		return errs.Wrap(errs.ErrInvalidInput, "retriever not found: "+id, nil)
	}
	sc := score
	r.Score = &sc
	return nil
}

func (s *Store) SetRetrieverEnabled(_ context.Context, id string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.retrievers[id]
	if !ok {
		return errs.Wrap(errs.ErrInvalidInput, "retriever not found: "+id, nil)
	}
	r.IsEnabled = enabled
	return nil
}

// UpsertContentBySource preserves seen/hidden across repeated ingestions
// of the same (source_id, external_id), per §4.4 step 4.
func (s *Store) UpsertContentBySource(_ context.Context, sourceID, externalID string, in *store.Content) (*store.Content, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := extKey(sourceID, externalID)
	if id, ok := s.contentBySource[key]; ok {
		existing := s.contents[id]
		cp := *in
		cp.ID = existing.ID
		cp.SourceID = existing.SourceID
		cp.IngestedAt = existing.IngestedAt
		cp.Seen = existing.Seen
		cp.Hidden = existing.Hidden
		s.contents[id] = &cp
		out := cp
		return &out, false, nil
	}

	cp := *in
	cp.SourceID = sourceID
	if cp.ID == "" {
		cp.ID = s.ids.NewID()
	}
	if cp.IngestedAt.IsZero() {
		cp.IngestedAt = time.Now()
	}
	s.contents[cp.ID] = &cp
	s.contentBySource[key] = cp.ID
	for scheme, value := range cp.CanonicalIDs {
		s.contentByCanon[extKey(scheme, value)] = cp.ID
	}
	out := cp
	return &out, true, nil
}

func (s *Store) GetContent(_ context.Context, id string) (*store.Content, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contents[id]
	if !ok {
		return nil, errs.Wrap(errs.ErrInvalidInput, "content not found: "+id, nil)
	}
	out := *c
	return &out, nil
}

func (s *Store) GetContentByCanonicalID(_ context.Context, scheme, value string) (*store.Content, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.contentByCanon[extKey(scheme, value)]
	if !ok {
		return nil, errs.Wrap(errs.ErrInvalidInput, "content not found for "+scheme+":"+value, nil)
	}
	out := *s.contents[id]
	return &out, nil
}

// MarkSeen implements the monotone false->true transition; calling it
// again on an already-seen content is a no-op.
func (s *Store) MarkSeen(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contents[id]
	if !ok {
		return errs.Wrap(errs.ErrInvalidInput, "content not found: "+id, nil)
	}
	c.Seen = true
	return nil
}

// SetHidden is idempotent in either direction.
func (s *Store) SetHidden(_ context.Context, id string, hidden bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contents[id]
	if !ok {
		return errs.Wrap(errs.ErrInvalidInput, "content not found: "+id, nil)
	}
	c.Hidden = hidden
	return nil
}

func (s *Store) ListContent(_ context.Context, limit, offset int) ([]*store.Content, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*store.Content, 0, len(s.contents))
	for _, c := range s.contents {
		cp := *c
		out = append(out, &cp)
	}
	if offset >= len(out) {
		return nil, nil
	}
	end := len(out)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return out[offset:end], nil
}

// UpsertEncoding enforces uniqueness of (source_type, external_id); a
// second insert for the same key is treated as idempotent success
// (DualWriteConflict) rather than an error.
func (s *Store) UpsertEncoding(_ context.Context, in *store.Encoding) (*store.Encoding, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := extKey(in.SourceType, in.ExternalID)
	if id, ok := s.encodingBySrc[key]; ok {
		out := *s.encodings[id]
		return &out, false, nil
	}

	cp := *in
	if cp.ID == "" {
		cp.ID = s.ids.NewID()
	}
	if cp.DiscoveredAt.IsZero() {
		cp.DiscoveredAt = time.Now()
	}
	s.encodings[cp.ID] = &cp
	s.encodingBySrc[key] = cp.ID
	s.encodingsByContent[cp.ContentID] = append(s.encodingsByContent[cp.ContentID], cp.ID)
	out := cp
	return &out, true, nil
}

func (s *Store) GetEncodingBySource(_ context.Context, sourceType, externalID string) (*store.Encoding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.encodingBySrc[extKey(sourceType, externalID)]
	if !ok {
		return nil, errs.Wrap(errs.ErrInvalidInput, "encoding not found", nil)
	}
	out := *s.encodings[id]
	return &out, nil
}

func (s *Store) ListEncodingsByContent(_ context.Context, contentID string) ([]*store.Encoding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := s.encodingsByContent[contentID]
	out := make([]*store.Encoding, 0, len(ids))
	for _, id := range ids {
		cp := *s.encodings[id]
		out = append(out, &cp)
	}
	return out, nil
}

func (s *Store) UpsertCreator(_ context.Context, in *store.Creator) (*store.Creator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *in
	if cp.ID == "" {
		cp.ID = s.ids.NewID()
	}
	s.creators[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (s *Store) GetCreator(_ context.Context, id string) (*store.Creator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.creators[id]
	if !ok {
		return nil, errs.Wrap(errs.ErrInvalidInput, "creator not found: "+id, nil)
	}
	out := *c
	return &out, nil
}

func (s *Store) InsertFeedbackEvent(_ context.Context, f *store.FeedbackEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *f
	if cp.ID == "" {
		cp.ID = s.ids.NewID()
	}
	s.feedbackEvents = append(s.feedbackEvents, &cp)
	return nil
}

func (s *Store) InsertExplicitFeedback(_ context.Context, f *store.ExplicitFeedback) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *f
	if cp.ID == "" {
		cp.ID = s.ids.NewID()
	}
	s.explicit = append(s.explicit, &cp)
	return nil
}

func (s *Store) ListFeedbackEvents(_ context.Context, since time.Time) ([]*store.FeedbackEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*store.FeedbackEvent
	for _, f := range s.feedbackEvents {
		if f.Timestamp.After(since) {
			cp := *f
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *Store) ListExplicitFeedback(_ context.Context) ([]*store.ExplicitFeedback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*store.ExplicitFeedback, len(s.explicit))
	for i, f := range s.explicit {
		cp := *f
		out[i] = &cp
	}
	return out, nil
}

func (s *Store) GetSourceStats(_ context.Context, sourceID string) (store.SourceStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.sourceStats[sourceID]; ok {
		return st, nil
	}
	return store.DefaultSourceStats(sourceID), nil
}

func (s *Store) UpsertSourceStats(_ context.Context, st store.SourceStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st.UpdatedAt.IsZero() {
		st.UpdatedAt = time.Now()
	}
	s.sourceStats[st.SourceID] = st
	return nil
}

var _ store.Store = (*Store)(nil)
