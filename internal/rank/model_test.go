// omnifeed - Adaptive Content Discovery and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/omnifeed

package rank

import (
	"testing"

	"github.com/tomtom215/omnifeed/internal/store"
)

func TestModel_Untrained_ReturnsColdStart(t *testing.T) {
	m := NewModel()
	c := &store.Content{Title: "x", ContentType: store.ContentTypeArticle}
	stats := store.DefaultSourceStats("src-1")

	got := m.Score(c, []float32{1, 2, 3}, stats, "")
	if got.ClickProb != 0.5 {
		t.Errorf("expected cold-start click=0.5, got %v", got.ClickProb)
	}
	if got.Reward != 2.5 {
		t.Errorf("expected cold-start reward=2.5, got %v", got.Reward)
	}
}

func TestModel_NoEmbeddings_ReturnsColdStart(t *testing.T) {
	m := NewModel()
	examples := buildSeparableExamples()
	m.Train(examples)

	c := &store.Content{Title: "x"}
	got := m.Score(c, nil, store.DefaultSourceStats("s"), "")
	if got.ClickProb != 0.5 || got.Reward != 2.5 {
		t.Errorf("expected cold-start score when fused is empty, got %+v", got)
	}
}

func TestModel_Train_OmitsClickHeadWhenLabelsIdentical(t *testing.T) {
	m := NewModel()
	var examples []TrainingExample
	for i := 0; i < 5; i++ {
		examples = append(examples, TrainingExample{
			Content: &store.Content{Title: "t", ContentType: store.ContentTypeArticle},
			Fused:   []float32{float32(i), 0, 0},
			Stats:   store.DefaultSourceStats("s"),
			Engaged: true, // identical labels, every example engaged
		})
	}
	m.Train(examples)

	if m.click != nil {
		t.Error("expected click head to be omitted when all training labels are identical")
	}

	got := m.Score(examples[0].Content, examples[0].Fused, examples[0].Stats, "")
	if got.ClickProb != 0.5 {
		t.Errorf("expected predict_click=0.5 without a click head, got %v", got.ClickProb)
	}
}

func TestModel_Train_RewardHeadOnlyWithPositiveExamples(t *testing.T) {
	m := NewModel()
	var examples []TrainingExample
	for i := 0; i < 6; i++ {
		examples = append(examples, TrainingExample{
			Content:    &store.Content{Title: "t", ContentType: store.ContentTypeVideo},
			Fused:      []float32{float32(i), float32(i) * 2, 1},
			Stats:      store.DefaultSourceStats("s"),
			HasReward:  true,
			Reward:     float64(i % 5),
			Objectives: []string{ObjectiveEntertainment},
		})
	}
	m.Train(examples)

	if _, ok := m.rewardByID[ObjectiveEntertainment]; !ok {
		t.Fatal("expected entertainment reward head to be trained")
	}
	if _, ok := m.rewardByID[ObjectiveCuriosity]; ok {
		t.Error("expected curiosity reward head to be absent: no example ever selected it")
	}
}

func TestModel_Score_OODGuardBypassesRewardHead(t *testing.T) {
	m := NewModel()
	examples := buildSeparableExamples()
	m.Train(examples)

	// A fused vector wildly outside the training range should trip the
	// OOD guard and fall back to the source prior rather than extrapolate.
	stats := store.SourceStats{AvgReward: 4.2}
	oodVec := make([]float32, len(examples[0].Fused))
	for i := range oodVec {
		oodVec[i] = 1000
	}
	got := m.Score(&store.Content{Title: "x", ContentType: store.ContentTypeArticle}, oodVec, stats, ObjectiveEntertainment)
	if got.Reward != 4.2 {
		t.Errorf("expected OOD fallback to source avg_reward 4.2, got %v", got.Reward)
	}
}

func TestModel_Score_MultiObjectiveMeanWithoutArgument(t *testing.T) {
	m := NewModel()
	var examples []TrainingExample
	for i := 0; i < 6; i++ {
		examples = append(examples, TrainingExample{
			Content:    &store.Content{Title: "t", ContentType: store.ContentTypeVideo},
			Fused:      []float32{float32(i), float32(i) * 2, 1},
			Stats:      store.DefaultSourceStats("s"),
			HasReward:  true,
			Reward:     float64(i % 5),
			Objectives: []string{ObjectiveEntertainment, ObjectiveCuriosity},
		})
	}
	m.Train(examples)

	withObjective := m.Score(examples[0].Content, examples[0].Fused, examples[0].Stats, ObjectiveEntertainment)
	withoutObjective := m.Score(examples[0].Content, examples[0].Fused, examples[0].Stats, "")
	if withoutObjective.Reward == 0 {
		t.Error("expected a non-zero mean reward across present objectives")
	}
	_ = withObjective
}

func TestFeatures_UnlistedContentTypeFoldsIntoOther(t *testing.T) {
	c := &store.Content{Title: "t", ContentType: store.ContentTypePodcast}
	row := Features(c, []float32{1}, store.DefaultSourceStats("s"))
	// last element of the one-hot block is the "other" slot.
	if row[len(row)-1] != 1.0 {
		t.Errorf("expected podcast content type to set the trailing 'other' slot, got %v", row[len(row)-1])
	}
}

func buildSeparableExamples() []TrainingExample {
	var examples []TrainingExample
	for i := 0; i < 10; i++ {
		engaged := i%2 == 0
		examples = append(examples, TrainingExample{
			Content: &store.Content{Title: "t", ContentType: store.ContentTypeArticle},
			Fused:   []float32{float32(i), float32(-i), 1},
			Stats:   store.DefaultSourceStats("s"),
			Engaged: engaged,
		})
	}
	return examples
}
