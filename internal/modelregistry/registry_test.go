// omnifeed - Adaptive Content Discovery and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/omnifeed

package modelregistry

import (
	"context"
	"testing"

	"github.com/tomtom215/omnifeed/internal/rank"
	"github.com/tomtom215/omnifeed/internal/store"
)

type fakeSource struct {
	examples []rank.TrainingExample
	err      error
}

func (f *fakeSource) LoadTrainingExamples(ctx context.Context) ([]rank.TrainingExample, error) {
	return f.examples, f.err
}

func separableExamples() []rank.TrainingExample {
	var out []rank.TrainingExample
	for i := 0; i < 10; i++ {
		out = append(out, rank.TrainingExample{
			Content: &store.Content{Title: "t", ContentType: store.ContentTypeArticle},
			Fused:   []float32{float32(i), float32(-i), 1},
			Stats:   store.DefaultSourceStats("s"),
			Engaged: i%2 == 0,
		})
	}
	return out
}

func TestRegistry_GetModelForObjective_NilBeforeTraining(t *testing.T) {
	ds, err := NewDiskStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewDiskStore: %v", err)
	}
	reg := New(ds)
	reg.Register("default", &fakeSource{examples: separableExamples()}, false, true)

	if got := reg.GetModelForObjective(""); got != nil {
		t.Error("expected nil model before any TrainModel call")
	}
}

func TestRegistry_TrainModel_PersistsAndSwapsIn(t *testing.T) {
	ds, err := NewDiskStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewDiskStore: %v", err)
	}
	reg := New(ds)
	reg.Register("default", &fakeSource{examples: separableExamples()}, false, true)

	if err := reg.TrainModel(context.Background(), "default"); err != nil {
		t.Fatalf("TrainModel: %v", err)
	}

	got := reg.GetModelForObjective("")
	if got == nil || !got.Trained() {
		t.Fatal("expected a trained model to be dispatched after TrainModel")
	}
}

func TestRegistry_LoadPersisted_RestoresAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	ds1, _ := NewDiskStore(dir)
	reg1 := New(ds1)
	reg1.Register("default", &fakeSource{examples: separableExamples()}, false, true)
	if err := reg1.TrainModel(context.Background(), "default"); err != nil {
		t.Fatalf("TrainModel: %v", err)
	}

	ds2, _ := NewDiskStore(dir)
	reg2 := New(ds2)
	reg2.Register("default", &fakeSource{}, false, true)
	if err := reg2.LoadPersisted("default"); err != nil {
		t.Fatalf("LoadPersisted: %v", err)
	}

	got := reg2.GetModelForObjective("")
	if got == nil || !got.Trained() {
		t.Fatal("expected the restored model to report trained")
	}
}

func TestRegistry_GetModelForObjective_FallsBackToDefault(t *testing.T) {
	ds, _ := NewDiskStore(t.TempDir())
	reg := New(ds)
	reg.Register("entertainment-head", &fakeSource{examples: nil}, true, false)
	reg.Register("default", &fakeSource{examples: separableExamples()}, false, true)

	if err := reg.TrainModel(context.Background(), "default"); err != nil {
		t.Fatalf("TrainModel: %v", err)
	}

	got := reg.GetModelForObjective(rank.ObjectiveEntertainment)
	if got == nil || !got.Trained() {
		t.Fatal("expected fallback to the trained default model when the objective-specific model is untrained")
	}
}
