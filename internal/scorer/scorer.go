// omnifeed - Adaptive Content Discovery and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/omnifeed

// Package scorer maintains per-retriever quality scores via exponential
// moving average and implements the explore/exploit selection policy that
// the orchestrator consumes when assembling a feed.
package scorer

import (
	"context"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/tomtom215/omnifeed/internal/cache"
	"github.com/tomtom215/omnifeed/internal/errs"
	"github.com/tomtom215/omnifeed/internal/store"
)

const (
	// EMAAlpha weights the newest rating against the running value.
	EMAAlpha = 0.3
	// MinConfidenceSamples is the sample_size at which confidence growth
	// sharply tapers, per the confidence() curve below.
	MinConfidenceSamples = 5

	// DefaultExploreRatio is the fraction of a selection reserved for
	// exploration of unscored or low-confidence retrievers.
	DefaultExploreRatio = 0.3
	// DefaultMinExploitConfidence is the confidence floor a retriever
	// must clear to be eligible for the exploit pool.
	DefaultMinExploitConfidence = 0.3

	oversampleFactor = 2

	// retrieverListTTL bounds how long SelectRetrievers reuses a prior
	// ListRetrievers result. Short enough that a scheduler invoking the
	// orchestrator far more often than retriever topology actually changes
	// doesn't round-trip the store on every pass, long enough to matter.
	retrieverListTTL = 2 * time.Second
	retrieverListKey = "all"
)

// Confidence maps a sample size to a confidence in [0,1]. confidence(0) = 0.
func Confidence(sampleSize int) float64 {
	if sampleSize <= 0 {
		return 0
	}
	c := 1 - math.Exp(-0.7*float64(sampleSize)/MinConfidenceSamples)
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// Clock abstracts time.Now so tests can control last_updated.
type Clock func() time.Time

// Scorer mutates retriever scores and selects retrievers for a feed.
type Scorer struct {
	store store.Store
	now   Clock

	// retrieverList caches the most recent ListRetrievers call behind
	// SelectRetrievers, keyed on a constant key since there are no
	// parameters to the underlying list. Invalidated on every write this
	// Scorer makes; otherwise expires on its own after retrieverListTTL.
	retrieverList *cache.LFUCacheGeneric[[]*store.Retriever]
}

// New builds a Scorer over the given store.
func New(st store.Store) *Scorer {
	return &Scorer{
		store:         st,
		now:           time.Now,
		retrieverList: cache.NewLFUCacheGeneric[[]*store.Retriever](1, retrieverListTTL),
	}
}

// WithClock overrides the scorer's time source, for deterministic tests.
func (s *Scorer) WithClock(clock Clock) *Scorer {
	s.now = clock
	return s
}

// RecordRating walks up the parent chain from retrieverID, applying the
// EMA update at each node, per §4.3. Returns the ids updated, in walk order.
func (s *Scorer) RecordRating(ctx context.Context, retrieverID string, rating float64) ([]string, error) {
	var updated []string
	currentID := retrieverID

	for currentID != "" {
		r, err := s.store.GetRetriever(ctx, currentID)
		if err != nil {
			return updated, errs.Wrap(errs.ErrInvalidInput, "record rating: resolve retriever "+currentID, err)
		}

		var next store.RetrieverScore
		if r.Score == nil {
			next = store.RetrieverScore{Value: rating, SampleSize: 1}
		} else {
			next = store.RetrieverScore{
				Value:      EMAAlpha*rating + (1-EMAAlpha)*r.Score.Value,
				SampleSize: r.Score.SampleSize + 1,
			}
		}
		next.Confidence = Confidence(next.SampleSize)
		next.LastUpdated = s.now()

		if err := s.store.SetRetrieverScore(ctx, r.ID, next); err != nil {
			return updated, errs.Wrap(errs.ErrFatal, "persist score for "+r.ID, err)
		}
		updated = append(updated, r.ID)

		if r.ParentID == nil {
			break
		}
		currentID = *r.ParentID
	}

	if len(updated) > 0 {
		s.invalidateRetrieverList()
	}
	return updated, nil
}

// RecordRatingBySourceID resolves a rating referenced by a legacy source
// id to a retriever, per §4.3's three-step resolution order, and applies
// RecordRating to it. A miss at every step is a no-op (nil, nil).
func (s *Scorer) RecordRatingBySourceID(ctx context.Context, sourceID string, rating float64) ([]string, error) {
	// (a) direct retriever id.
	if r, err := s.store.GetRetriever(ctx, sourceID); err == nil {
		return s.RecordRating(ctx, r.ID, rating)
	}

	src, err := s.store.GetSource(ctx, sourceID)
	if err != nil {
		return nil, nil
	}

	// (b) source -> retriever by URI pattern "source:{source_type}:{uri}".
	pattern := "source:" + src.SourceType + ":" + src.URI
	if r, err := s.store.GetRetrieverByURI(ctx, pattern); err == nil {
		return s.RecordRating(ctx, r.ID, rating)
	}

	// (c) retriever whose URI equals the source URI.
	if r, err := s.store.GetRetrieverByURI(ctx, src.URI); err == nil {
		return s.RecordRating(ctx, r.ID, rating)
	}

	return nil, nil
}

// RebuildParentScores recomputes every retriever-with-scored-children's
// score as the sample-size-weighted average of its children's values,
// with confidence derived from the summed sample size. This is the
// optional batch propagation pass mentioned in §4.3; RecordRating's
// incremental walk is the path used during normal operation.
func (s *Scorer) RebuildParentScores(ctx context.Context) error {
	all, err := s.store.ListRetrievers(ctx)
	if err != nil {
		return errs.Wrap(errs.ErrFatal, "rebuild parent scores: list retrievers", err)
	}

	childrenByParent := make(map[string][]*store.Retriever)
	for _, r := range all {
		if r.ParentID != nil {
			childrenByParent[*r.ParentID] = append(childrenByParent[*r.ParentID], r)
		}
	}

	for parentID, children := range childrenByParent {
		var weightedSum, totalSamples float64
		anyScored := false
		for _, c := range children {
			if c.Score == nil {
				continue
			}
			anyScored = true
			weight := float64(c.Score.SampleSize)
			weightedSum += weight * c.Score.Value
			totalSamples += weight
		}
		if !anyScored || totalSamples == 0 {
			continue
		}
		score := store.RetrieverScore{
			Value:       weightedSum / totalSamples,
			SampleSize:  int(totalSamples),
			Confidence:  Confidence(int(totalSamples)),
			LastUpdated: s.now(),
		}
		if err := s.store.SetRetrieverScore(ctx, parentID, score); err != nil {
			return errs.Wrap(errs.ErrFatal, "persist rebuilt score for "+parentID, err)
		}
	}
	s.invalidateRetrieverList()
	return nil
}

// Selection is the split result of SelectRetrievers.
type Selection struct {
	Exploit []*store.Retriever
	Explore []*store.Retriever
}

// SelectRetrievers implements the explore/exploit scheduling policy of
// §4.3, the most important scheduling invariant of the system: at least
// one explore slot is always reserved, weighted sampling without
// replacement draws the exploit pick, and unscored retrievers sort first
// within the explore pool.
func (s *Scorer) SelectRetrievers(ctx context.Context, limit int, exploreRatio, minExploitConfidence float64, includeDisabled bool) (Selection, error) {
	all, err := s.listRetrieversCached(ctx)
	if err != nil {
		return Selection{}, errs.Wrap(errs.ErrFatal, "select retrievers: list retrievers", err)
	}

	exploreCount := int(math.Floor(float64(limit) * exploreRatio))
	if exploreCount < 1 {
		exploreCount = 1
	}
	exploitCount := limit - exploreCount
	if exploitCount < 0 {
		exploitCount = 0
	}

	var exploitPool, explorePool []*store.Retriever
	for _, r := range all {
		if !r.IsEnabled && !includeDisabled {
			continue
		}
		if r.Score != nil && r.Score.Confidence >= minExploitConfidence {
			exploitPool = append(exploitPool, r)
		} else {
			explorePool = append(explorePool, r)
		}
	}

	sort.SliceStable(exploitPool, func(i, j int) bool {
		return scoreValue(exploitPool[i]) > scoreValue(exploitPool[j])
	})
	if len(exploitPool) > exploitCount*oversampleFactor && exploitCount > 0 {
		exploitPool = exploitPool[:exploitCount*oversampleFactor]
	}

	sort.SliceStable(explorePool, func(i, j int) bool {
		iUnscored, jUnscored := explorePool[i].Score == nil, explorePool[j].Score == nil
		if iUnscored != jUnscored {
			return iUnscored
		}
		return false
	})
	if len(explorePool) > exploreCount*oversampleFactor {
		explorePool = explorePool[:exploreCount*oversampleFactor]
	}

	exploitPick := weightedSampleWithoutReplacement(exploitPool, exploitCount)
	explorePick := uniformSampleWithoutReplacement(explorePool, exploreCount)

	return Selection{Exploit: exploitPick, Explore: explorePick}, nil
}

// listRetrieversCached serves ListRetrievers out of retrieverList when a
// fresh-enough snapshot exists, and refreshes it otherwise.
func (s *Scorer) listRetrieversCached(ctx context.Context) ([]*store.Retriever, error) {
	if cached, ok := s.retrieverList.Get(retrieverListKey); ok {
		return cached, nil
	}
	all, err := s.store.ListRetrievers(ctx)
	if err != nil {
		return nil, err
	}
	s.retrieverList.Set(retrieverListKey, all)
	return all, nil
}

// invalidateRetrieverList drops the cached ListRetrievers snapshot after a
// write this Scorer made, so the next SelectRetrievers call sees it.
func (s *Scorer) invalidateRetrieverList() {
	s.retrieverList.Delete(retrieverListKey)
}

// InvalidateRetrieverCache drops the cached retriever list snapshot. Callers
// that add or reconfigure a retriever directly through the store, bypassing
// RecordRating/RebuildParentScores, should call this so SelectRetrievers
// doesn't serve a stale snapshot for up to retrieverListTTL.
func (s *Scorer) InvalidateRetrieverCache() {
	s.invalidateRetrieverList()
}

func scoreValue(r *store.Retriever) float64 {
	if r.Score == nil {
		return 0
	}
	return r.Score.Value
}

// weightedSampleWithoutReplacement draws n items from pool with weight
// 1 + score.value, without replacement.
func weightedSampleWithoutReplacement(pool []*store.Retriever, n int) []*store.Retriever {
	if n <= 0 || len(pool) == 0 {
		return nil
	}
	remaining := append([]*store.Retriever{}, pool...)
	var picked []*store.Retriever

	for len(picked) < n && len(remaining) > 0 {
		total := 0.0
		weights := make([]float64, len(remaining))
		for i, r := range remaining {
			w := 1 + scoreValue(r)
			weights[i] = w
			total += w
		}
		target := rand.Float64() * total
		cum := 0.0
		idx := len(remaining) - 1
		for i, w := range weights {
			cum += w
			if target <= cum {
				idx = i
				break
			}
		}
		picked = append(picked, remaining[idx])
		remaining = append(remaining[:idx], remaining[idx+1:]...)
	}
	return picked
}

// uniformSampleWithoutReplacement draws up to n items uniformly from pool,
// preserving pool's ordering bias (unscored-first) by sampling a prefix-
// weighted index rather than reshuffling the whole pool.
func uniformSampleWithoutReplacement(pool []*store.Retriever, n int) []*store.Retriever {
	if n <= 0 || len(pool) == 0 {
		return nil
	}
	remaining := append([]*store.Retriever{}, pool...)
	var picked []*store.Retriever
	for len(picked) < n && len(remaining) > 0 {
		idx := rand.Intn(len(remaining))
		picked = append(picked, remaining[idx])
		remaining = append(remaining[:idx], remaining[idx+1:]...)
	}
	return picked
}

