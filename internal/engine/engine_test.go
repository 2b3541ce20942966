// omnifeed - Adaptive Content Discovery and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/omnifeed

package engine

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/omnifeed/internal/embedding"
	"github.com/tomtom215/omnifeed/internal/modelregistry"
	"github.com/tomtom215/omnifeed/internal/orchestrator"
	"github.com/tomtom215/omnifeed/internal/retriever"
	"github.com/tomtom215/omnifeed/internal/store"
	"github.com/tomtom215/omnifeed/internal/store/memstore"
)

type fakeAdapter struct{ items []retriever.RawItem }

func (a *fakeAdapter) SourceType() string   { return "fake" }
func (a *fakeAdapter) CanHandle(string) bool { return true }
func (a *fakeAdapter) Resolve(ctx context.Context, url string) (retriever.SourceInfo, error) {
	return retriever.SourceInfo{SourceType: "fake", URI: url, DisplayName: "Fake Feed"}, nil
}
func (a *fakeAdapter) Poll(ctx context.Context, source retriever.SourceInfo, since *time.Time) ([]retriever.RawItem, error) {
	return a.items, nil
}

type fakeEmbedService struct{}

func (fakeEmbedService) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 1}
	}
	return out, nil
}
func (fakeEmbedService) EmbedText(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 1}, nil
}
func (fakeEmbedService) EmbedAudioURL(ctx context.Context, url string) ([]float32, error) {
	return []float32{1}, nil
}
func (fakeEmbedService) Model() string { return "fake-v1" }

func buildTestEngine(t *testing.T, items []retriever.RawItem) (*Engine, *store.Source) {
	t.Helper()
	st := memstore.New()
	adapters := retriever.NewAdapterRegistry()
	adapter := &fakeAdapter{items: items}
	adapters.Register(adapter)

	handlers := retriever.NewHandlerRegistry()
	handlers.Register(retriever.NewSourceWrapperHandler(adapters))

	ds, err := modelregistry.NewDiskStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewDiskStore: %v", err)
	}
	models := modelregistry.New(ds)

	e := New(Config{
		Store:    st,
		Adapters: adapters,
		Handlers: handlers,
		Search:   retriever.NewSearchRegistry(),
		Embed:    fakeEmbedService{},
		Fuser:    embedding.NewFuser(2),
		Models:   models,
		Logger:   zerolog.Nop(),
	})

	src, err := e.AddSource(context.Background(), "https://example.com/feed")
	if err != nil {
		t.Fatalf("AddSource: %v", err)
	}
	return e, src
}

func TestEngine_AddSource_RegistersPollWrapperRetriever(t *testing.T) {
	e, src := buildTestEngine(t, nil)
	if src.SourceType != "fake" {
		t.Fatalf("expected source_type fake, got %s", src.SourceType)
	}

	uri := retriever.SourceURI("fake", "https://example.com/feed")
	r, err := e.store.GetRetrieverByURI(context.Background(), uri)
	if err != nil {
		t.Fatalf("GetRetrieverByURI: %v", err)
	}
	if r.Config["source_id"] != src.ID {
		t.Error("expected wrapper retriever's config to carry the source id")
	}
}

func TestEngine_InvokeForFeed_IngestsItemsAttributedToSource(t *testing.T) {
	items := []retriever.RawItem{
		{ExternalID: "1", URL: "https://example.com/1", Title: "One", RawMetadata: map[string]any{"content_text": "body one"}},
		{ExternalID: "2", URL: "https://example.com/2", Title: "Two", RawMetadata: map[string]any{"content_text": "body two"}},
	}
	e, src := buildTestEngine(t, items)

	tctx := orchestrator.DefaultContext()
	if err := e.InvokeForFeed(context.Background(), tctx); err != nil {
		t.Fatalf("InvokeForFeed: %v", err)
	}

	contents, err := e.store.ListContent(context.Background(), 0, 100)
	if err != nil {
		t.Fatalf("ListContent: %v", err)
	}
	if len(contents) != 2 {
		t.Fatalf("expected 2 ingested contents, got %d", len(contents))
	}
	for _, c := range contents {
		if c.SourceID != src.ID {
			t.Errorf("expected ingested content to carry source id %s, got %s", src.ID, c.SourceID)
		}
		if !strings.Contains(c.Title, "One") && !strings.Contains(c.Title, "Two") {
			t.Errorf("unexpected content title %q", c.Title)
		}
	}
}

func TestEngine_GetFeed_ColdStartWithoutTrainedModel(t *testing.T) {
	items := []retriever.RawItem{{ExternalID: "1", URL: "https://example.com/1", Title: "One", RawMetadata: map[string]any{"content_text": "body"}}}
	e, _ := buildTestEngine(t, items)

	if err := e.InvokeForFeed(context.Background(), orchestrator.DefaultContext()); err != nil {
		t.Fatalf("InvokeForFeed: %v", err)
	}

	feed, err := e.GetFeed(context.Background(), "", 10)
	if err != nil {
		t.Fatalf("GetFeed: %v", err)
	}
	if len(feed) != 1 {
		t.Fatalf("expected 1 feed item, got %d", len(feed))
	}
	if feed[0].Score.Reward != 2.5 {
		t.Errorf("expected cold-start reward 2.5, got %v", feed[0].Score.Reward)
	}
}

func TestEngine_RateContent_PropagatesToRetrieverScore(t *testing.T) {
	items := []retriever.RawItem{{ExternalID: "1", URL: "https://example.com/1", Title: "One", RawMetadata: map[string]any{"content_text": "body"}}}
	e, src := buildTestEngine(t, items)

	if err := e.InvokeForFeed(context.Background(), orchestrator.DefaultContext()); err != nil {
		t.Fatalf("InvokeForFeed: %v", err)
	}
	contents, _ := e.store.ListContent(context.Background(), 0, 10)
	if len(contents) != 1 {
		t.Fatalf("expected 1 content, got %d", len(contents))
	}

	if err := e.RateContent(context.Background(), contents[0].ID, 4.5, nil); err != nil {
		t.Fatalf("RateContent: %v", err)
	}

	uri := retriever.SourceURI("fake", "https://example.com/feed")
	r, err := e.store.GetRetrieverByURI(context.Background(), uri)
	if err != nil {
		t.Fatalf("GetRetrieverByURI: %v", err)
	}
	if r.Score == nil || r.Score.Value != 4.5 {
		t.Errorf("expected retriever score to reflect the rating, got %+v", r.Score)
	}
	_ = src
}

func TestEngine_RateContent_UpdatesSourceStats(t *testing.T) {
	items := []retriever.RawItem{{ExternalID: "1", URL: "https://example.com/1", Title: "One", RawMetadata: map[string]any{"content_text": "body"}}}
	e, _ := buildTestEngine(t, items)

	if err := e.InvokeForFeed(context.Background(), orchestrator.DefaultContext()); err != nil {
		t.Fatalf("InvokeForFeed: %v", err)
	}
	contents, _ := e.store.ListContent(context.Background(), 0, 10)
	if len(contents) != 1 {
		t.Fatalf("expected 1 content, got %d", len(contents))
	}

	before, _ := e.store.GetSourceStats(context.Background(), contents[0].SourceID)
	if before.AvgReward != store.DefaultSourceStats(contents[0].SourceID).AvgReward {
		t.Fatalf("expected default source stats before rating, got %+v", before)
	}

	if err := e.RateContent(context.Background(), contents[0].ID, 5.0, nil); err != nil {
		t.Fatalf("RateContent: %v", err)
	}

	after, err := e.store.GetSourceStats(context.Background(), contents[0].SourceID)
	if err != nil {
		t.Fatalf("GetSourceStats: %v", err)
	}
	if after.AvgReward == store.DefaultSourceStats(contents[0].SourceID).AvgReward {
		t.Errorf("expected avg_reward to move off its default after rating, still %v", after.AvgReward)
	}
	if after.ClickRate == 0 {
		t.Error("expected click_rate to move off zero after a rating")
	}
	if after.Engagement != 1 {
		t.Errorf("expected engagement count 1, got %v", after.Engagement)
	}
}
