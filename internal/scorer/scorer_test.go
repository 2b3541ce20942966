// omnifeed - Adaptive Content Discovery and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/omnifeed

package scorer

import (
	"context"
	"math"
	"testing"

	"github.com/tomtom215/omnifeed/internal/store"
	"github.com/tomtom215/omnifeed/internal/store/memstore"
)

func almostEqual(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

// TestRecordRating_EMAWalk mirrors scenario S2: chain A -> B -> C (C leaf).
func TestRecordRating_EMAWalk(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()

	a, _, _ := s.UpsertRetrieverByURI(ctx, &store.Retriever{URI: "a", IsEnabled: true})
	parentA := a.ID
	b, _, _ := s.UpsertRetrieverByURI(ctx, &store.Retriever{URI: "b", IsEnabled: true, ParentID: &parentA})
	parentB := b.ID
	c, _, _ := s.UpsertRetrieverByURI(ctx, &store.Retriever{URI: "c", IsEnabled: true, ParentID: &parentB})

	sc := New(s)

	if _, err := sc.RecordRating(ctx, c.ID, 5.0); err != nil {
		t.Fatalf("first RecordRating: %v", err)
	}
	if _, err := sc.RecordRating(ctx, c.ID, 0.0); err != nil {
		t.Fatalf("second RecordRating: %v", err)
	}

	for _, id := range []string{a.ID, b.ID, c.ID} {
		r, err := s.GetRetriever(ctx, id)
		if err != nil {
			t.Fatalf("GetRetriever(%s): %v", id, err)
		}
		if r.Score == nil {
			t.Fatalf("expected %s to have a score", id)
		}
		if !almostEqual(r.Score.Value, 3.5) {
			t.Errorf("%s: expected value 3.5, got %v", id, r.Score.Value)
		}
		if r.Score.SampleSize != 2 {
			t.Errorf("%s: expected sample_size 2, got %d", id, r.Score.SampleSize)
		}
	}
}

func TestRecordRating_FirstRatingOnLeaf(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()
	r, _, _ := s.UpsertRetrieverByURI(ctx, &store.Retriever{URI: "leaf", IsEnabled: true})

	sc := New(s)
	if _, err := sc.RecordRating(ctx, r.ID, 4.0); err != nil {
		t.Fatalf("RecordRating: %v", err)
	}

	got, _ := s.GetRetriever(ctx, r.ID)
	if got.Score.Value != 4.0 || got.Score.SampleSize != 1 {
		t.Errorf("expected value=4.0 sample_size=1, got value=%v sample_size=%d", got.Score.Value, got.Score.SampleSize)
	}
}

func TestConfidence_MonotoneNonDecreasing(t *testing.T) {
	prev := -1.0
	for n := 0; n <= 50; n++ {
		c := Confidence(n)
		if c < 0 || c > 1 {
			t.Fatalf("confidence(%d) = %v out of [0,1]", n, c)
		}
		if c < prev {
			t.Fatalf("confidence(%d) = %v is less than confidence(%d) = %v", n, c, n-1, prev)
		}
		prev = c
	}
	if Confidence(0) != 0 {
		t.Errorf("expected confidence(0) = 0, got %v", Confidence(0))
	}
}

func TestRecordRatingBySourceID_ResolvesByPattern(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()

	src, err := s.UpsertSource(ctx, &store.Source{SourceType: "rss", URI: "https://example.com/feed"})
	if err != nil {
		t.Fatalf("UpsertSource: %v", err)
	}
	r, _, _ := s.UpsertRetrieverByURI(ctx, &store.Retriever{URI: "source:rss:https://example.com/feed", IsEnabled: true})

	sc := New(s)
	updated, err := sc.RecordRatingBySourceID(ctx, src.ID, 4.5)
	if err != nil {
		t.Fatalf("RecordRatingBySourceID: %v", err)
	}
	if len(updated) != 1 || updated[0] != r.ID {
		t.Errorf("expected retriever %s to be updated, got %v", r.ID, updated)
	}
}

func TestRecordRatingBySourceID_NoMatchIsNoOp(t *testing.T) {
	s := memstore.New()
	sc := New(s)
	updated, err := sc.RecordRatingBySourceID(context.Background(), "nonexistent", 3.0)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if updated != nil {
		t.Errorf("expected no-op, got %v", updated)
	}
}

// TestSelectRetrievers_ExploreFloor mirrors scenario S1: confident
// retrievers only, explore pool empty.
func TestSelectRetrievers_ExploreFloor(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		r, _, _ := s.UpsertRetrieverByURI(ctx, &store.Retriever{URI: "r" + string(rune('a'+i)), IsEnabled: true})
		if err := s.SetRetrieverScore(ctx, r.ID, store.RetrieverScore{Value: 3.0, Confidence: 0.9, SampleSize: 10}); err != nil {
			t.Fatalf("SetRetrieverScore: %v", err)
		}
	}

	sc := New(s)
	sel, err := sc.SelectRetrievers(ctx, 5, DefaultExploreRatio, DefaultMinExploitConfidence, false)
	if err != nil {
		t.Fatalf("SelectRetrievers: %v", err)
	}

	if len(sel.Exploit) > 4 {
		t.Errorf("expected at most 4 exploit picks, got %d", len(sel.Exploit))
	}
	if len(sel.Explore) != 0 {
		t.Errorf("expected empty explore pick with no unscored/low-confidence retrievers, got %d", len(sel.Explore))
	}
	if len(sel.Exploit)+len(sel.Explore) > 5 {
		t.Errorf("expected total selection <= limit, got %d", len(sel.Exploit)+len(sel.Explore))
	}
}

func TestSelectRetrievers_ReservesExploreFloorWithUnscoredNode(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()

	for i := 0; i < 9; i++ {
		r, _, _ := s.UpsertRetrieverByURI(ctx, &store.Retriever{URI: "r" + string(rune('a'+i)), IsEnabled: true})
		_ = s.SetRetrieverScore(ctx, r.ID, store.RetrieverScore{Value: 3.0, Confidence: 0.9, SampleSize: 10})
	}
	s.UpsertRetrieverByURI(ctx, &store.Retriever{URI: "unscored", IsEnabled: true})

	sc := New(s)
	sel, err := sc.SelectRetrievers(ctx, 5, DefaultExploreRatio, DefaultMinExploitConfidence, false)
	if err != nil {
		t.Fatalf("SelectRetrievers: %v", err)
	}
	if len(sel.Explore) < 1 {
		t.Error("expected at least one explore slot filled once an unscored retriever exists")
	}
}

func TestSelectRetrievers_DoesNotStealFromExploitWhenExplorePoolEmpty(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()
	r, _, _ := s.UpsertRetrieverByURI(ctx, &store.Retriever{URI: "only", IsEnabled: true})
	_ = s.SetRetrieverScore(ctx, r.ID, store.RetrieverScore{Value: 3.0, Confidence: 0.9, SampleSize: 10})

	sc := New(s)
	sel, err := sc.SelectRetrievers(ctx, 5, DefaultExploreRatio, DefaultMinExploitConfidence, false)
	if err != nil {
		t.Fatalf("SelectRetrievers: %v", err)
	}
	total := len(sel.Exploit) + len(sel.Explore)
	if total > 5 {
		t.Errorf("expected total <= limit, got %d", total)
	}
	if len(sel.Explore) != 0 {
		t.Errorf("expected no explore picks from an empty explore pool, got %d", len(sel.Explore))
	}
}

func TestSelectRetrievers_DisabledExcludedUnlessIncludeDisabled(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()
	r, _, _ := s.UpsertRetrieverByURI(ctx, &store.Retriever{URI: "disabled", IsEnabled: false})
	_ = s.SetRetrieverScore(ctx, r.ID, store.RetrieverScore{Value: 3.0, Confidence: 0.9, SampleSize: 10})

	sc := New(s)

	sel, err := sc.SelectRetrievers(ctx, 5, DefaultExploreRatio, DefaultMinExploitConfidence, false)
	if err != nil {
		t.Fatalf("SelectRetrievers: %v", err)
	}
	if len(sel.Exploit)+len(sel.Explore) != 0 {
		t.Error("expected disabled retriever excluded when includeDisabled=false")
	}

	sel, err = sc.SelectRetrievers(ctx, 5, DefaultExploreRatio, DefaultMinExploitConfidence, true)
	if err != nil {
		t.Fatalf("SelectRetrievers: %v", err)
	}
	if len(sel.Exploit)+len(sel.Explore) != 1 {
		t.Error("expected disabled retriever included when includeDisabled=true")
	}
}

func TestSelectRetrievers_CachesRetrieverListUntilInvalidated(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()
	r, _, _ := s.UpsertRetrieverByURI(ctx, &store.Retriever{URI: "only", IsEnabled: true})
	_ = s.SetRetrieverScore(ctx, r.ID, store.RetrieverScore{Value: 3.0, Confidence: 0.9, SampleSize: 10})

	sc := New(s)
	if _, err := sc.SelectRetrievers(ctx, 5, DefaultExploreRatio, DefaultMinExploitConfidence, false); err != nil {
		t.Fatalf("first SelectRetrievers: %v", err)
	}

	if _, _, err := s.UpsertRetrieverByURI(ctx, &store.Retriever{URI: "second", IsEnabled: true}); err != nil {
		t.Fatalf("UpsertRetrieverByURI: %v", err)
	}
	sel, err := sc.SelectRetrievers(ctx, 5, DefaultExploreRatio, DefaultMinExploitConfidence, false)
	if err != nil {
		t.Fatalf("second SelectRetrievers: %v", err)
	}
	if total := len(sel.Exploit) + len(sel.Explore); total != 1 {
		t.Errorf("expected cached retriever list to hide the new retriever, got %d picks", total)
	}

	sc.InvalidateRetrieverCache()
	sel, err = sc.SelectRetrievers(ctx, 5, DefaultExploreRatio, DefaultMinExploitConfidence, false)
	if err != nil {
		t.Fatalf("third SelectRetrievers: %v", err)
	}
	if total := len(sel.Exploit) + len(sel.Explore); total != 2 {
		t.Errorf("expected both retrievers visible after invalidation, got %d picks", total)
	}
}

func TestRebuildParentScores_WeightedBySampleSize(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()

	parent, _, _ := s.UpsertRetrieverByURI(ctx, &store.Retriever{URI: "parent", IsEnabled: true})
	parentID := parent.ID
	child1, _, _ := s.UpsertRetrieverByURI(ctx, &store.Retriever{URI: "child1", IsEnabled: true, ParentID: &parentID})
	child2, _, _ := s.UpsertRetrieverByURI(ctx, &store.Retriever{URI: "child2", IsEnabled: true, ParentID: &parentID})

	_ = s.SetRetrieverScore(ctx, child1.ID, store.RetrieverScore{Value: 4.0, SampleSize: 3})
	_ = s.SetRetrieverScore(ctx, child2.ID, store.RetrieverScore{Value: 1.0, SampleSize: 1})

	sc := New(s)
	if err := sc.RebuildParentScores(ctx); err != nil {
		t.Fatalf("RebuildParentScores: %v", err)
	}

	got, _ := s.GetRetriever(ctx, parent.ID)
	if got.Score == nil {
		t.Fatal("expected parent to receive a rebuilt score")
	}
	want := (4.0*3 + 1.0*1) / 4.0
	if !almostEqual(got.Score.Value, want) {
		t.Errorf("expected weighted value %v, got %v", want, got.Score.Value)
	}
	if got.Score.SampleSize != 4 {
		t.Errorf("expected summed sample_size 4, got %d", got.Score.SampleSize)
	}
}
