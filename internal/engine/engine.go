// omnifeed - Adaptive Content Discovery and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/omnifeed

// Package engine is the outward-facing facade of §6: it wires the store,
// retriever registries, orchestrator, scorer, embedding fusion, ranking
// model registry, and ingestion pipeline into the five operations a caller
// needs (add_source/add_retriever, invoke_for_feed, rate_content, get_feed,
// train), and nothing else.
package engine

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/omnifeed/internal/embedding"
	"github.com/tomtom215/omnifeed/internal/errs"
	"github.com/tomtom215/omnifeed/internal/ingestion"
	"github.com/tomtom215/omnifeed/internal/modelregistry"
	"github.com/tomtom215/omnifeed/internal/orchestrator"
	"github.com/tomtom215/omnifeed/internal/rank"
	"github.com/tomtom215/omnifeed/internal/retriever"
	"github.com/tomtom215/omnifeed/internal/scorer"
	"github.com/tomtom215/omnifeed/internal/store"
)

// feedListMultiplier over-fetches unseen content before ranking so a
// limit-sized feed survives hidden/already-seen items being skipped.
const feedListMultiplier = 10

// Engine coordinates discovery, scoring, ranking, and feedback. It is safe
// for concurrent use; every component it wraps already is.
type Engine struct {
	logger zerolog.Logger

	store    store.Store
	adapters *retriever.AdapterRegistry
	handlers *retriever.HandlerRegistry
	search   *retriever.SearchRegistry

	embed        embedding.Service
	fuser        *embedding.Fuser
	ingest       *ingestion.Pipeline
	orchestrator *orchestrator.Orchestrator
	scorer       *scorer.Scorer
	models       *modelregistry.Registry

	invokeCount atomic.Int64
	rateCount   atomic.Int64
}

// Config bundles the collaborators a new Engine wires together.
type Config struct {
	Store    store.Store
	Adapters *retriever.AdapterRegistry
	Handlers *retriever.HandlerRegistry
	Search   *retriever.SearchRegistry
	Embed    embedding.Service
	Fuser    *embedding.Fuser
	Models   *modelregistry.Registry
	Logger   zerolog.Logger
}

// New wires an Engine from cfg, constructing the orchestrator and ingestion
// pipeline that ride on top of the supplied collaborators.
func New(cfg Config) *Engine {
	sc := scorer.New(cfg.Store)
	orc := orchestrator.New(cfg.Store, cfg.Handlers, sc)

	return &Engine{
		logger:       cfg.Logger.With().Str("component", "engine").Logger(),
		store:        cfg.Store,
		adapters:     cfg.Adapters,
		handlers:     cfg.Handlers,
		search:       cfg.Search,
		embed:        cfg.Embed,
		fuser:        cfg.Fuser,
		ingest:       ingestion.New(cfg.Store, cfg.Embed),
		orchestrator: orc,
		scorer:       sc,
		models:       cfg.Models,
	}
}

// AddSource resolves url against the adapter registry, upserts the
// resulting Source, and registers its POLL wrapper retriever.
func (e *Engine) AddSource(ctx context.Context, url string) (*store.Source, error) {
	adapter, ok := e.adapters.Resolve(url)
	if !ok {
		return nil, errs.Wrap(errs.ErrInvalidInput, "no adapter can handle url "+url, nil)
	}
	info, err := adapter.Resolve(ctx, url)
	if err != nil {
		return nil, errs.Wrap(errs.ErrInvalidInput, "resolve source", err)
	}

	src, err := e.store.UpsertSource(ctx, &store.Source{
		SourceType:  info.SourceType,
		URI:         info.URI,
		DisplayName: info.DisplayName,
		AvatarURL:   info.AvatarURL,
		Metadata:    info.Metadata,
	})
	if err != nil {
		return nil, errs.Wrap(errs.ErrFatal, "persist source", err)
	}

	uri := retriever.SourceURI(info.SourceType, info.URI)
	h, ok := e.handlers.Resolve(uri)
	if !ok {
		return nil, errs.Wrap(errs.ErrInvalidInput, "no handler registered for source wrapper uris", nil)
	}
	r, err := h.Resolve(ctx, uri, info.DisplayName)
	if err != nil {
		return nil, errs.Wrap(errs.ErrFatal, "resolve source wrapper retriever", err)
	}
	r.Config["source_id"] = src.ID
	r.IsEnabled = true
	if _, _, err := e.store.UpsertRetrieverByURI(ctx, r); err != nil {
		return nil, errs.Wrap(errs.ErrFatal, "persist source wrapper retriever", err)
	}
	e.scorer.InvalidateRetrieverCache()
	return src, nil
}

// AddRetriever resolves uri against the handler registry and upserts the
// resulting retriever node, whatever shape its handler produces.
func (e *Engine) AddRetriever(ctx context.Context, uri, displayName string) (*store.Retriever, error) {
	h, ok := e.handlers.Resolve(uri)
	if !ok {
		return nil, errs.Wrap(errs.ErrInvalidInput, "no handler can resolve uri "+uri, nil)
	}
	r, err := h.Resolve(ctx, uri, displayName)
	if err != nil {
		return nil, errs.Wrap(errs.ErrInvalidInput, "resolve retriever", err)
	}
	r.IsEnabled = true
	created, _, err := e.store.UpsertRetrieverByURI(ctx, r)
	if err != nil {
		return nil, errs.Wrap(errs.ErrFatal, "persist retriever", err)
	}
	e.scorer.InvalidateRetrieverCache()
	return created, nil
}

// InvokeForFeed runs one orchestrator pass: selecting retrievers via the
// explore/exploit policy, invoking their DAGs, and ingesting the resulting
// items through the ingestion pipeline, grouped by the source that
// produced them.
func (e *Engine) InvokeForFeed(ctx context.Context, tctx orchestrator.Context) error {
	e.invokeCount.Add(1)
	result, err := e.orchestrator.InvokeForFeed(ctx, tctx)
	if err != nil {
		return errs.Wrap(errs.ErrFatal, "invoke for feed", err)
	}

	bySource := make(map[string][]retriever.RawItem)
	for _, item := range result.Items {
		bySource[item.SourceID] = append(bySource[item.SourceID], item)
	}
	for sourceID, items := range bySource {
		if sourceID == "" {
			e.logger.Warn().Int("item_count", len(items)).Msg("dropping items with no resolvable source_id")
			continue
		}
		src, err := e.store.GetSource(ctx, sourceID)
		if err != nil {
			e.logger.Warn().Err(err).Str("source_id", sourceID).Msg("skipping ingestion for unresolved source")
			continue
		}
		_, errsOut := e.ingest.Ingest(ctx, sourceID, src.SourceType, items, ingestion.Options{
			GenerateEmbeddings: true,
			EnrichContent:      true,
			Persist:            true,
		})
		for _, ierr := range errsOut {
			e.logger.Warn().Err(ierr).Str("source_id", sourceID).Msg("ingestion item failed")
		}
	}
	return nil
}

// RateContent records a rating as explicit feedback and propagates it up
// the content's originating retriever's ancestry, per §4.3/§4.6.
func (e *Engine) RateContent(ctx context.Context, contentID string, score float64, selections map[string][]string) error {
	e.rateCount.Add(1)

	if err := e.store.InsertExplicitFeedback(ctx, &store.ExplicitFeedback{
		ContentID:   contentID,
		RewardScore: score,
		Selections:  selections,
		Timestamp:   time.Now(),
	}); err != nil {
		return errs.Wrap(errs.ErrFatal, "persist explicit feedback", err)
	}

	content, err := e.store.GetContent(ctx, contentID)
	if err != nil || content.SourceID == "" {
		return nil // no retriever ancestry to propagate to is not an error
	}
	if _, err := e.scorer.RecordRatingBySourceID(ctx, content.SourceID, score); err != nil {
		e.logger.Warn().Err(err).Str("content_id", contentID).Msg("rating propagation failed")
	}
	if err := e.updateSourceStats(ctx, content.SourceID, score); err != nil {
		e.logger.Warn().Err(err).Str("content_id", contentID).Msg("source stats update failed")
	}
	return nil
}

// updateSourceStats applies an explicit rating to the owning source's
// SourceStats aggregate, per §4.4's incremental-update promise. It reuses
// the scorer's EMA idiom (EMAAlpha against the running value) rather than
// a full recompute scan: avg_reward tracks the rating itself, and
// click_rate/engagement treat the rating as one engagement event, since a
// rating is the only per-content signal this path carries.
func (e *Engine) updateSourceStats(ctx context.Context, sourceID string, reward float64) error {
	stats, err := e.store.GetSourceStats(ctx, sourceID)
	if err != nil {
		stats = store.DefaultSourceStats(sourceID)
	}
	stats.SourceID = sourceID
	stats.AvgReward = scorer.EMAAlpha*reward + (1-scorer.EMAAlpha)*stats.AvgReward
	stats.ClickRate = scorer.EMAAlpha*1.0 + (1-scorer.EMAAlpha)*stats.ClickRate
	stats.Engagement++
	stats.UpdatedAt = time.Now()
	return e.store.UpsertSourceStats(ctx, stats)
}

// FeedItem is one ranked item in a get_feed response.
type FeedItem struct {
	Content *store.Content
	Score   rank.Score
}

// GetFeed ranks unseen content by the registry's model for objective (or
// cold-start priors when nothing is trained), returning the top limit items.
func (e *Engine) GetFeed(ctx context.Context, objective string, limit int) ([]FeedItem, error) {
	contents, err := e.store.ListContent(ctx, limit*feedListMultiplier, 0)
	if err != nil {
		return nil, errs.Wrap(errs.ErrFatal, "list content", err)
	}

	model := e.models.GetModelForObjective(objective)

	items := make([]FeedItem, 0, len(contents))
	for _, c := range contents {
		if c.Hidden || c.Seen {
			continue
		}
		fused := e.fuseEmbeddings(c)
		stats := e.sourceStatsFor(ctx, c)
		var sc rank.Score
		if model != nil {
			sc = model.Score(c, fused, stats, objective)
		} else {
			sc = rank.Score{ClickProb: 0.5, Reward: stats.AvgReward, Combined: stats.AvgReward}
		}
		items = append(items, FeedItem{Content: c, Score: sc})
	}

	sort.Slice(items, func(i, j int) bool { return items[i].Score.Combined > items[j].Score.Combined })
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (e *Engine) fuseEmbeddings(c *store.Content) []float32 {
	byType := make(map[string][]float32, len(c.Embeddings))
	for _, emb := range c.Embeddings {
		byType[emb.Type] = emb.Vector
	}
	return e.fuser.Transform(byType)
}

func (e *Engine) sourceStatsFor(ctx context.Context, c *store.Content) store.SourceStats {
	if c.SourceID == "" {
		return store.DefaultSourceStats("")
	}
	stats, err := e.store.GetSourceStats(ctx, c.SourceID)
	if err != nil {
		return store.DefaultSourceStats(c.SourceID)
	}
	return stats
}

// Train triggers an explicit training run for modelName via the registry.
func (e *Engine) Train(ctx context.Context, modelName string) error {
	if err := e.models.TrainModel(ctx, modelName); err != nil {
		return fmt.Errorf("train model %s: %w", modelName, err)
	}
	return nil
}
