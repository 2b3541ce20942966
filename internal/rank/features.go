// omnifeed - Adaptive Content Discovery and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/omnifeed

package rank

import "github.com/tomtom215/omnifeed/internal/store"

// contentTypeOrder fixes the one-hot encoding order from §4.6. A content
// type outside this list (book, game, show, film, podcast) is folded into
// the "other" slot rather than dropped.
var contentTypeOrder = []store.ContentType{
	store.ContentTypeArticle,
	store.ContentTypeVideo,
	store.ContentTypeAudio,
	store.ContentTypePaper,
	store.ContentTypeImage,
	store.ContentTypeThread,
	store.ContentTypeOther,
}

// Objective ids for the multi-objective reward heads.
const (
	ObjectiveEntertainment = "entertainment"
	ObjectiveCuriosity     = "curiosity"
	ObjectiveFoundational  = "foundational"
	ObjectiveTargeted      = "targeted"
)

// Objectives lists every reward-head objective id.
var Objectives = []string{ObjectiveEntertainment, ObjectiveCuriosity, ObjectiveFoundational, ObjectiveTargeted}

// Features builds the feature row for one content item per §4.6: the fused
// embedding vector, source priors, thumbnail/title signals, and a one-hot
// content-type encoding. Missing source stats default to (2.5, 0, 0) via
// store.DefaultSourceStats, which callers are expected to supply already.
func Features(c *store.Content, fused []float32, stats store.SourceStats) []float64 {
	out := make([]float64, 0, len(fused)+3+2+len(contentTypeOrder))

	for _, v := range fused {
		out = append(out, float64(v))
	}

	out = append(out, stats.AvgReward, stats.ClickRate, clampUnit(stats.Engagement/100))

	hasThumbnail := 0.0
	if _, ok := c.Metadata["thumbnail"]; ok {
		hasThumbnail = 1.0
	}
	out = append(out, hasThumbnail, clampUnit(float64(len(c.Title))/100))

	matched := false
	for _, ct := range contentTypeOrder {
		v := 0.0
		if c.ContentType == ct {
			v = 1.0
			matched = true
		}
		out = append(out, v)
	}
	if !matched {
		out[len(out)-1] = 1.0 // fold unlisted types into the trailing "other" slot
	}

	return out
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
