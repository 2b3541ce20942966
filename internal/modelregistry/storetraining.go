// omnifeed - Adaptive Content Discovery and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/omnifeed

package modelregistry

import (
	"context"
	"time"

	"github.com/tomtom215/omnifeed/internal/embedding"
	"github.com/tomtom215/omnifeed/internal/rank"
	"github.com/tomtom215/omnifeed/internal/store"
)

// StoreTrainingSource is the TrainingSource every registered model in
// production uses: it joins every piece of persisted content with its
// fused embedding, source priors, implicit engagement events, and
// explicit ratings into the TrainingExample rows Model.Train expects.
type StoreTrainingSource struct {
	store store.Store
	fuser *embedding.Fuser
}

// NewStoreTrainingSource builds a TrainingSource reading from st and
// fusing embeddings with fuser.
func NewStoreTrainingSource(st store.Store, fuser *embedding.Fuser) *StoreTrainingSource {
	return &StoreTrainingSource{store: st, fuser: fuser}
}

// LoadTrainingExamples implements modelregistry.TrainingSource.
func (s *StoreTrainingSource) LoadTrainingExamples(ctx context.Context) ([]rank.TrainingExample, error) {
	contents, err := s.store.ListContent(ctx, 0, 0)
	if err != nil {
		return nil, err
	}

	events, err := s.store.ListFeedbackEvents(ctx, time.Time{})
	if err != nil {
		return nil, err
	}
	engaged := make(map[string]bool, len(events))
	for _, e := range events {
		if e.IsEngagement() {
			engaged[e.ItemID] = true
		}
	}

	explicit, err := s.store.ListExplicitFeedback(ctx)
	if err != nil {
		return nil, err
	}
	// Later ratings for the same content overwrite earlier ones: training
	// reflects the most recent judgment, not an average of revisions.
	rewards := make(map[string]store.ExplicitFeedback, len(explicit))
	for _, f := range explicit {
		rewards[f.ContentID] = *f
	}

	examples := make([]rank.TrainingExample, 0, len(contents))
	for _, c := range contents {
		stats := store.DefaultSourceStats(c.SourceID)
		if c.SourceID != "" {
			if st, err := s.store.GetSourceStats(ctx, c.SourceID); err == nil {
				stats = st
			}
		}

		ex := rank.TrainingExample{
			Content: c,
			Fused:   s.fuser.Transform(embeddingsByType(c)),
			Stats:   stats,
			Engaged: engaged[c.ID],
		}
		if fb, ok := rewards[c.ID]; ok {
			ex.HasReward = true
			ex.Reward = fb.RewardScore
			ex.Objectives = fb.Selections["reward_type"]
		}
		examples = append(examples, ex)
	}
	return examples, nil
}

func embeddingsByType(c *store.Content) map[string][]float32 {
	out := make(map[string][]float32, len(c.Embeddings))
	for _, e := range c.Embeddings {
		out[e.Type] = e.Vector
	}
	return out
}
