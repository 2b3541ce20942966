// omnifeed - Adaptive Content Discovery and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/omnifeed

package retriever

import (
	"context"
	"testing"
	"time"

	"github.com/tomtom215/omnifeed/internal/store"
)

type fakeAdapter struct {
	sourceType string
	items      []RawItem
	lastSince  *time.Time
}

func (f *fakeAdapter) SourceType() string { return f.sourceType }
func (f *fakeAdapter) CanHandle(url string) bool { return true }
func (f *fakeAdapter) Resolve(ctx context.Context, url string) (SourceInfo, error) {
	return SourceInfo{SourceType: f.sourceType, URI: url, DisplayName: "Fake " + url}, nil
}
func (f *fakeAdapter) Poll(ctx context.Context, source SourceInfo, since *time.Time) ([]RawItem, error) {
	f.lastSince = since
	return f.items, nil
}

func TestSourceWrapperHandler_ResolveAndInvokeRoundTrip(t *testing.T) {
	adapters := NewAdapterRegistry()
	adapters.Register(&fakeAdapter{sourceType: "rss", items: []RawItem{{ExternalID: "1", Title: "a"}}})
	h := NewSourceWrapperHandler(adapters)

	uri := SourceURI("rss", "https://example.com/feed.xml")
	r, err := h.Resolve(context.Background(), uri, "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if r.URI != uri || r.HandlerType != "source" || r.Kind != store.RetrieverKindPoll {
		t.Errorf("resolve round trip mismatch: uri=%s handler=%s kind=%s", r.URI, r.HandlerType, r.Kind)
	}

	results, err := h.Invoke(context.Background(), r)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if len(results) != 1 || results[0].Kind != ResultKindContent {
		t.Fatalf("expected one content result, got %+v", results)
	}
}

func TestSourceWrapperHandler_InvokeUsesLastInvokedAtAsSince(t *testing.T) {
	adapter := &fakeAdapter{sourceType: "rss"}
	adapters := NewAdapterRegistry()
	adapters.Register(adapter)
	h := NewSourceWrapperHandler(adapters)

	since := time.Now().Add(-time.Hour)
	r := &store.Retriever{
		URI:           SourceURI("rss", "https://example.com/feed.xml"),
		HandlerType:   "source",
		Config:        map[string]any{"source_type": "rss", "url": "https://example.com/feed.xml"},
		LastInvokedAt: &since,
	}

	if _, err := h.Invoke(context.Background(), r); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if adapter.lastSince == nil || !adapter.lastSince.Equal(since) {
		t.Error("expected adapter.Poll to receive retriever.LastInvokedAt as since")
	}
}

type fakeSearchProvider struct {
	name        string
	suggestions []SearchSuggestion
}

func (f *fakeSearchProvider) Name() string { return f.name }
func (f *fakeSearchProvider) Search(ctx context.Context, query string, limit int) ([]SearchSuggestion, error) {
	if limit < len(f.suggestions) {
		return f.suggestions[:limit], nil
	}
	return f.suggestions, nil
}

func TestExploratoryHandler_EmitsSourceRetrieverPerSuggestion(t *testing.T) {
	search := NewSearchRegistry()
	search.Register(&fakeSearchProvider{name: "p1", suggestions: []SearchSuggestion{
		{URL: "https://a.example", Name: "A", SourceType: "rss"},
		{URL: "https://b.example", Name: "B", SourceType: "rss"},
	}})
	h := NewExploratoryHandler(search)

	r, err := h.Resolve(context.Background(), "explore:golang blogs", "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if r.Kind != store.RetrieverKindExplore {
		t.Errorf("expected EXPLORE kind, got %s", r.Kind)
	}

	results, err := h.Invoke(context.Background(), r)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 sub-retriever results, got %d", len(results))
	}
	for _, res := range results {
		if res.Kind != ResultKindRetriever || res.Retriever == nil {
			t.Error("expected every result to be a RETRIEVER result")
		}
	}
}

func TestAdapterRegistry_ResolveFirstMatch(t *testing.T) {
	reg := NewAdapterRegistry()
	reg.Register(&fakeAdapter{sourceType: "rss"})
	reg.Register(&fakeAdapter{sourceType: "podcast"})

	a, ok := reg.ByType("podcast")
	if !ok || a.SourceType() != "podcast" {
		t.Error("expected ByType to find registered adapter")
	}

	_, ok = reg.ByType("unknown")
	if ok {
		t.Error("expected ByType to report not found for unregistered type")
	}
}

func TestHandlerRegistry_ResolveDispatchesByScheme(t *testing.T) {
	reg := NewHandlerRegistry()
	reg.Register(NewSourceWrapperHandler(NewAdapterRegistry()))
	reg.Register(NewExploratoryHandler(NewSearchRegistry()))
	reg.Register(NewStrategyHandler(NewSearchRegistry()))

	h, ok := reg.Resolve("source:rss:https://example.com/feed")
	if !ok || h.HandlerType() != "source" {
		t.Errorf("expected source: scheme to resolve to the source handler, got %v, ok=%v", h, ok)
	}

	h, ok = reg.Resolve("explore:golang blogs")
	if !ok || h.HandlerType() != "exploratory" {
		t.Errorf("expected explore: scheme to resolve to the exploratory handler, got %v, ok=%v", h, ok)
	}

	h, ok = reg.Resolve("strategy:bandcamp:tag_search")
	if !ok || h.HandlerType() != "strategy" {
		t.Errorf("expected strategy: scheme to resolve to the strategy handler, got %v, ok=%v", h, ok)
	}

	_, ok = reg.Resolve("unknown://nothing")
	if ok {
		t.Error("expected an unregistered scheme to fail resolution")
	}
}
