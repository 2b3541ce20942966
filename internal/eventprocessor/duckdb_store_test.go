// omnifeed - Adaptive Content Discovery and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/omnifeed

//go:build nats

package eventprocessor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

// mockFeedInserter implements FeedEventInserter for testing.
type mockFeedInserter struct {
	mu          sync.Mutex
	rawItems    []RawItemPayload
	feedback    []FeedbackPayload
	insertErr   error
	insertCalls int
	errorAfterN int // error after N successful inserts (0 = immediate error if insertErr set)
}

func newMockFeedInserter() *mockFeedInserter {
	return &mockFeedInserter{}
}

func (m *mockFeedInserter) InsertRawItem(_ context.Context, _ string, item RawItemPayload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insertCalls++
	if m.insertErr != nil && (m.errorAfterN == 0 || m.insertCalls > m.errorAfterN) {
		return m.insertErr
	}
	m.rawItems = append(m.rawItems, item)
	return nil
}

func (m *mockFeedInserter) InsertFeedback(_ context.Context, feedback FeedbackPayload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insertCalls++
	if m.insertErr != nil && (m.errorAfterN == 0 || m.insertCalls > m.errorAfterN) {
		return m.insertErr
	}
	m.feedback = append(m.feedback, feedback)
	return nil
}

func (m *mockFeedInserter) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insertErr = err
	m.errorAfterN = 0
}

func (m *mockFeedInserter) SetErrorAfterN(n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorAfterN = n
	m.insertErr = err
}

func (m *mockFeedInserter) RawItemCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rawItems)
}

func (m *mockFeedInserter) InsertCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertCalls
}

func rawItemEvent(retrieverID, uri string) *FeedEvent {
	event := NewFeedEvent(EventKindRawItem)
	event.RetrieverID = retrieverID
	payload, _ := json.Marshal(RawItemPayload{URI: uri, FetchedAt: time.Now()})
	event.Payload = payload
	return event
}

func TestDuckDBStore_NewDuckDBStore(t *testing.T) {
	tests := []struct {
		name    string
		db      FeedEventInserter
		wantErr bool
	}{
		{name: "valid database", db: newMockFeedInserter()},
		{name: "nil database", db: nil, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := NewDuckDBStore(tt.db)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewDuckDBStore() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && store == nil {
				t.Error("NewDuckDBStore() returned nil store")
			}
		})
	}
}

func TestDuckDBStore_InsertFeedEvents_Single(t *testing.T) {
	db := newMockFeedInserter()
	store, err := NewDuckDBStore(db)
	if err != nil {
		t.Fatalf("NewDuckDBStore() error = %v", err)
	}

	event := rawItemEvent("retriever-1", "https://example.com/a")

	ctx := context.Background()
	if err := store.InsertFeedEvents(ctx, []*FeedEvent{event}); err != nil {
		t.Fatalf("InsertFeedEvents() error = %v", err)
	}

	if db.RawItemCount() != 1 {
		t.Fatalf("RawItemCount = %d, want 1", db.RawItemCount())
	}
}

func TestDuckDBStore_InsertFeedEvents_Batch(t *testing.T) {
	db := newMockFeedInserter()
	store, err := NewDuckDBStore(db)
	if err != nil {
		t.Fatalf("NewDuckDBStore() error = %v", err)
	}

	events := make([]*FeedEvent, 10)
	for i := 0; i < 10; i++ {
		events[i] = rawItemEvent("retriever-1", "https://example.com/"+string(rune('a'+i)))
	}

	ctx := context.Background()
	if err := store.InsertFeedEvents(ctx, events); err != nil {
		t.Fatalf("InsertFeedEvents() error = %v", err)
	}

	if db.InsertCalls() != 10 {
		t.Errorf("InsertCalls = %d, want 10", db.InsertCalls())
	}
	if db.RawItemCount() != 10 {
		t.Errorf("RawItemCount = %d, want 10", db.RawItemCount())
	}
}

func TestDuckDBStore_InsertFeedEvents_Error(t *testing.T) {
	db := newMockFeedInserter()
	store, err := NewDuckDBStore(db)
	if err != nil {
		t.Fatalf("NewDuckDBStore() error = %v", err)
	}

	insertErr := errors.New("database connection failed")
	db.SetError(insertErr)

	event := rawItemEvent("retriever-1", "https://example.com/a")

	ctx := context.Background()
	err = store.InsertFeedEvents(ctx, []*FeedEvent{event})
	if err == nil {
		t.Fatal("InsertFeedEvents() should return error")
	}
	if !errors.Is(err, insertErr) {
		t.Errorf("error should wrap original: %v", err)
	}
}

func TestDuckDBStore_InsertFeedEvents_PartialBatchError(t *testing.T) {
	db := newMockFeedInserter()
	store, err := NewDuckDBStore(db)
	if err != nil {
		t.Fatalf("NewDuckDBStore() error = %v", err)
	}

	events := make([]*FeedEvent, 5)
	for i := 0; i < 5; i++ {
		events[i] = rawItemEvent("retriever-1", "https://example.com/"+string(rune('a'+i)))
	}

	db.SetErrorAfterN(3, errors.New("connection lost"))

	ctx := context.Background()
	err = store.InsertFeedEvents(ctx, events)
	if err == nil {
		t.Fatal("InsertFeedEvents() should return error on partial failure")
	}
	if db.RawItemCount() != 3 {
		t.Errorf("expected 3 items before failure, got %d", db.RawItemCount())
	}
}

func TestDuckDBStore_InsertFeedEvents_FeedbackAndScoreUpdate(t *testing.T) {
	db := newMockFeedInserter()
	store, err := NewDuckDBStore(db)
	if err != nil {
		t.Fatalf("NewDuckDBStore() error = %v", err)
	}

	feedbackEvent := NewFeedEvent(EventKindFeedback)
	payload, _ := json.Marshal(FeedbackPayload{ContentID: "c1", RetrieverID: "r1", Objective: "click", Value: 1})
	feedbackEvent.Payload = payload

	scoreEvent := NewFeedEvent(EventKindScoreUpdate)
	scorePayload, _ := json.Marshal(ScorePayload{RetrieverID: "r1", Score: 0.5, SampleCount: 3, Confidence: 0.4})
	scoreEvent.Payload = scorePayload

	ctx := context.Background()
	if err := store.InsertFeedEvents(ctx, []*FeedEvent{feedbackEvent, scoreEvent}); err != nil {
		t.Fatalf("InsertFeedEvents() error = %v", err)
	}

	if len(db.feedback) != 1 {
		t.Fatalf("expected 1 feedback record, got %d", len(db.feedback))
	}
	if db.feedback[0].ContentID != "c1" {
		t.Errorf("ContentID = %s, want c1", db.feedback[0].ContentID)
	}
}

func TestDuckDBStore_EmptyBatch(t *testing.T) {
	db := newMockFeedInserter()
	store, err := NewDuckDBStore(db)
	if err != nil {
		t.Fatalf("NewDuckDBStore() error = %v", err)
	}

	ctx := context.Background()
	if err := store.InsertFeedEvents(ctx, []*FeedEvent{}); err != nil {
		t.Errorf("InsertFeedEvents() with empty batch should not error: %v", err)
	}
	if db.InsertCalls() != 0 {
		t.Errorf("InsertCalls = %d, want 0 for empty batch", db.InsertCalls())
	}
}

func BenchmarkDuckDBStore_InsertFeedEvents(b *testing.B) {
	db := newMockFeedInserter()
	store, err := NewDuckDBStore(db)
	if err != nil {
		b.Fatalf("NewDuckDBStore() error = %v", err)
	}

	events := []*FeedEvent{rawItemEvent("retriever-1", "https://example.com/a")}
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = store.InsertFeedEvents(ctx, events)
	}
}
