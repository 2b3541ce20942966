// omnifeed - Adaptive Content Discovery and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/omnifeed

package ingestion

import (
	"context"
	"testing"

	"github.com/tomtom215/omnifeed/internal/retriever"
	"github.com/tomtom215/omnifeed/internal/store"
	"github.com/tomtom215/omnifeed/internal/store/memstore"
)

type fakeEmbedService struct {
	textCalls int
}

func (f *fakeEmbedService) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 2, 3}
	}
	return out, nil
}

func (f *fakeEmbedService) EmbedText(ctx context.Context, text string) ([]float32, error) {
	f.textCalls++
	return []float32{1, 2, 3}, nil
}

func (f *fakeEmbedService) EmbedAudioURL(ctx context.Context, url string) ([]float32, error) {
	return []float32{3, 4}, nil
}

func (f *fakeEmbedService) Model() string { return "fake-model-v1" }

func TestIngest_IdempotentByExternalID(t *testing.T) {
	st := memstore.New()
	src, _ := st.UpsertSource(context.Background(), &store.Source{SourceType: "rss", URI: "https://example.com/feed"})
	embed := &fakeEmbedService{}
	p := New(st, embed)

	items := []retriever.RawItem{{
		ExternalID:  "ext-1",
		URL:         "https://example.com/1",
		Title:       "A title",
		RawMetadata: map[string]any{"content_text": "full body text", "author": "Jane"},
	}}
	opts := Options{GenerateEmbeddings: true, EnrichContent: true, Persist: true}

	results1, errs1 := p.Ingest(context.Background(), src.ID, "rss", items, opts)
	if len(errs1) != 0 {
		t.Fatalf("first ingest errors: %v", errs1)
	}
	results2, errs2 := p.Ingest(context.Background(), src.ID, "rss", items, opts)
	if len(errs2) != 0 {
		t.Fatalf("second ingest errors: %v", errs2)
	}

	if results1[0].Content.ID != results2[0].Content.ID {
		t.Error("expected content id to be stable across repeated ingestion")
	}
	if results1[0].Encoding.ID != results2[0].Encoding.ID {
		t.Error("expected encoding id to be stable across repeated ingestion")
	}

	embeddingCount := 0
	for _, e := range results2[0].Content.Embeddings {
		if e.Type == textEmbeddingType {
			embeddingCount++
		}
	}
	if embeddingCount != 1 {
		t.Errorf("expected exactly one type=text embedding after re-ingest, got %d", embeddingCount)
	}
}

func TestIngest_PreservesSeenAndHidden(t *testing.T) {
	st := memstore.New()
	src, _ := st.UpsertSource(context.Background(), &store.Source{SourceType: "rss", URI: "https://example.com/feed"})
	p := New(st, &fakeEmbedService{})

	items := []retriever.RawItem{{ExternalID: "ext-1", URL: "https://example.com/1", Title: "t"}}
	opts := Options{Persist: true}

	results, _ := p.Ingest(context.Background(), src.ID, "rss", items, opts)
	if err := st.MarkSeen(context.Background(), results[0].Content.ID); err != nil {
		t.Fatalf("MarkSeen: %v", err)
	}
	if err := st.SetHidden(context.Background(), results[0].Content.ID, true); err != nil {
		t.Fatalf("SetHidden: %v", err)
	}

	results2, _ := p.Ingest(context.Background(), src.ID, "rss", items, opts)
	if !results2[0].Content.Seen || !results2[0].Content.Hidden {
		t.Error("expected seen/hidden to survive re-ingestion")
	}
}

func TestIngest_MetadataPartitioning(t *testing.T) {
	st := memstore.New()
	src, _ := st.UpsertSource(context.Background(), &store.Source{SourceType: "youtube", URI: "https://youtube.com/c/x"})
	p := New(st, &fakeEmbedService{})

	items := []retriever.RawItem{{
		ExternalID: "vid-1",
		URL:        "https://youtube.com/watch?v=vid-1",
		Title:      "A video",
		RawMetadata: map[string]any{
			"description": "desc",
			"view_count":  int64(1000),
			"video_id":    "vid-1",
			"unknown_key": "goes to content",
		},
	}}

	results, errs := p.Ingest(context.Background(), src.ID, "youtube", items, Options{Persist: true})
	if len(errs) != 0 {
		t.Fatalf("ingest errors: %v", errs)
	}

	c := results[0].Content
	if _, ok := c.Metadata["description"]; !ok {
		t.Error("expected description routed to content metadata")
	}
	if _, ok := c.Metadata["unknown_key"]; !ok {
		t.Error("expected unknown key to default to content metadata")
	}
	if _, ok := c.Metadata["view_count"]; ok {
		t.Error("expected view_count to be routed to encoding metadata, not content")
	}

	e := results[0].Encoding
	if _, ok := e.Metadata["view_count"]; !ok {
		t.Error("expected view_count routed to encoding metadata")
	}
	if _, ok := e.Metadata["description"]; ok {
		t.Error("expected description to stay out of encoding metadata")
	}
}

func TestIngest_DoesNotReembedWithoutForce(t *testing.T) {
	st := memstore.New()
	src, _ := st.UpsertSource(context.Background(), &store.Source{SourceType: "rss", URI: "https://example.com/feed"})
	embed := &fakeEmbedService{}
	p := New(st, embed)

	items := []retriever.RawItem{{ExternalID: "ext-1", URL: "https://example.com/1", Title: "t", RawMetadata: map[string]any{"content_text": "body"}}}
	opts := Options{GenerateEmbeddings: true, Persist: true}

	p.Ingest(context.Background(), src.ID, "rss", items, opts)
	callsAfterFirst := embed.textCalls

	p.Ingest(context.Background(), src.ID, "rss", items, opts)
	if embed.textCalls != callsAfterFirst {
		t.Errorf("expected no additional embed calls without force, went from %d to %d", callsAfterFirst, embed.textCalls)
	}
}

func TestClassifyContentType(t *testing.T) {
	tests := []struct {
		name string
		item retriever.RawItem
		want store.ContentType
	}{
		{"podcast episode", retriever.RawItem{Title: "Episode 42: Go Concurrency"}, store.ContentTypePodcast},
		{"arxiv paper", retriever.RawItem{Title: "Attention Is All You Need (arXiv)"}, store.ContentTypePaper},
		{"book chapter", retriever.RawItem{Title: "Chapter 3: The Go Memory Model"}, store.ContentTypeBook},
		{"trailer", retriever.RawItem{Title: "Official Trailer #1"}, store.ContentTypeFilm},
		{"unclassified", retriever.RawItem{Title: "Notes on nothing in particular"}, store.ContentTypeOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyContentType(&tt.item); got != tt.want {
				t.Errorf("classifyContentType(%q) = %v, want %v", tt.item.Title, got, tt.want)
			}
		})
	}
}

func TestIngest_SetsContentTypeFromClassification(t *testing.T) {
	st := memstore.New()
	src, _ := st.UpsertSource(context.Background(), &store.Source{SourceType: "rss", URI: "https://example.com/feed"})
	p := New(st, &fakeEmbedService{})

	items := []retriever.RawItem{{
		ExternalID: "ep-1",
		URL:        "https://example.com/ep-1",
		Title:      "Episode 12: Rate Limiting",
	}}

	results, errsOut := p.Ingest(context.Background(), src.ID, "rss", items, Options{Persist: true})
	if len(errsOut) != 0 {
		t.Fatalf("ingest errors: %v", errsOut)
	}
	if results[0].Content.ContentType != store.ContentTypePodcast {
		t.Errorf("expected ContentTypePodcast, got %v", results[0].Content.ContentType)
	}
}

func TestTextCorpus_FallsBackToDescription(t *testing.T) {
	item := &retriever.RawItem{Title: "T", RawMetadata: map[string]any{"description": "a short description"}}
	got := textCorpus(item)
	if got == "" {
		t.Fatal("expected non-empty corpus from description fallback")
	}
}
