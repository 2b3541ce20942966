// omnifeed - Adaptive Content Discovery and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/omnifeed

// This file contains service wrappers that adapt the engine's periodic
// work (feed traversal, model retraining) to the suture.Service interface.
//
// Each wrapper:
//   - Holds a reference to the shared *engine.Engine
//   - Implements Serve(context.Context) error
//   - Runs on its own ticker and exits cleanly on context cancellation
package supervisor

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/omnifeed/internal/engine"
	"github.com/tomtom215/omnifeed/internal/orchestrator"
)

// FeedSchedulerService periodically invokes the retriever DAG for every
// registered feed objective, polling due retrievers and scoring the
// results into the store.
type FeedSchedulerService struct {
	engine   *engine.Engine
	logger   zerolog.Logger
	interval time.Duration
	tctx     orchestrator.Context
}

// NewFeedSchedulerService creates a scheduler that runs a feed traversal
// every interval. A zero interval defaults to 5 minutes; a zero tctx
// defaults to orchestrator.DefaultContext().
func NewFeedSchedulerService(eng *engine.Engine, logger zerolog.Logger, interval time.Duration, tctx orchestrator.Context) *FeedSchedulerService {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if tctx.MaxDepth == 0 && tctx.Limit == 0 {
		tctx = orchestrator.DefaultContext()
	}
	return &FeedSchedulerService{
		engine:   eng,
		logger:   logger.With().Str("component", "feed_scheduler").Logger(),
		interval: interval,
		tctx:     tctx,
	}
}

// Serve implements suture.Service. It runs invocations on a ticker until
// ctx is canceled, logging but not propagating per-tick failures so a
// single bad traversal doesn't restart the whole service.
func (s *FeedSchedulerService) Serve(ctx context.Context) error {
	s.logger.Info().Dur("interval", s.interval).Msg("starting feed scheduler")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("feed scheduler stopped")
			return nil
		case <-ticker.C:
			if err := s.engine.InvokeForFeed(ctx, s.tctx); err != nil {
				s.logger.Warn().Err(err).Msg("feed traversal failed")
			}
		}
	}
}

// String implements fmt.Stringer for suture's log messages.
func (s *FeedSchedulerService) String() string { return "feed_scheduler" }

// ModelTrainingService periodically retrains a named ranking model from
// accumulated feedback so GetFeed's scores stay current without requiring
// an operator to trigger training by hand.
type ModelTrainingService struct {
	engine    *engine.Engine
	logger    zerolog.Logger
	interval  time.Duration
	modelName string
}

// NewModelTrainingService creates a service that retrains modelName every
// interval. A zero interval defaults to 1 hour.
func NewModelTrainingService(eng *engine.Engine, logger zerolog.Logger, interval time.Duration, modelName string) *ModelTrainingService {
	if interval <= 0 {
		interval = time.Hour
	}
	return &ModelTrainingService{
		engine:    eng,
		logger:    logger.With().Str("component", "model_training").Logger(),
		interval:  interval,
		modelName: modelName,
	}
}

// Serve implements suture.Service.
func (s *ModelTrainingService) Serve(ctx context.Context) error {
	s.logger.Info().Dur("interval", s.interval).Str("model", s.modelName).Msg("starting model training scheduler")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("model training scheduler stopped")
			return nil
		case <-ticker.C:
			if err := s.engine.Train(ctx, s.modelName); err != nil {
				s.logger.Warn().Err(err).Str("model", s.modelName).Msg("training failed")
			}
		}
	}
}

// String implements fmt.Stringer for suture's log messages.
func (s *ModelTrainingService) String() string { return "model_training:" + s.modelName }
