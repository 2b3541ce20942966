// omnifeed - Adaptive Content Discovery and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/omnifeed

// Package store defines the typed persistence contract shared by every
// engine component: sources, retrievers, contents, encodings, embeddings,
// creators, feedback and the per-retriever/per-source aggregates derived
// from them. Concrete backends live in sibling packages (memstore,
// duckdbstore); nothing in the engine imports those directly, only this
// package's interfaces.
package store

import "time"

// RetrieverKind classifies how a retriever participates in the DAG.
type RetrieverKind string

const (
	RetrieverKindPoll    RetrieverKind = "POLL"
	RetrieverKindExplore RetrieverKind = "EXPLORE"
	RetrieverKindHybrid  RetrieverKind = "HYBRID"
)

// ContentType enumerates the kinds of content the engine understands.
type ContentType string

const (
	ContentTypeVideo   ContentType = "video"
	ContentTypeAudio   ContentType = "audio"
	ContentTypeArticle ContentType = "article"
	ContentTypePaper   ContentType = "paper"
	ContentTypeImage   ContentType = "image"
	ContentTypeThread  ContentType = "thread"
	ContentTypeBook    ContentType = "book"
	ContentTypeGame    ContentType = "game"
	ContentTypeShow    ContentType = "show"
	ContentTypeFilm    ContentType = "film"
	ContentTypePodcast ContentType = "podcast"
	ContentTypeOther   ContentType = "other"
)

// ConsumptionType describes how a piece of content is meant to be consumed.
type ConsumptionType string

const (
	ConsumptionOneShot    ConsumptionType = "one_shot"
	ConsumptionReplayable ConsumptionType = "replayable"
	ConsumptionSerialized ConsumptionType = "serialized"
)

// Engagement event types. The set counts as engagement for the click head;
// other event types may be recorded but do not flip the engagement bit.
const (
	EventTypeClick              = "click"
	EventTypeReadingComplete    = "reading_complete"
	EventTypeWatchingComplete   = "watching_complete"
	EventTypeListeningComplete  = "listening_complete"
)

// EngagementEventTypes is the set of event types counted as engagement.
var EngagementEventTypes = map[string]bool{
	EventTypeClick:             true,
	EventTypeReadingComplete:   true,
	EventTypeWatchingComplete:  true,
	EventTypeListeningComplete: true,
}

// Source is the immutable identity of a pollable endpoint. (source_type,
// uri) is unique; a Source acts as a template consumed by adapters.
type Source struct {
	ID          string
	SourceType  string
	URI         string
	DisplayName string
	AvatarURL   string
	Metadata    map[string]any
	CreatedAt   time.Time
}

// RetrieverScore holds the EMA-derived quality estimate for a retriever.
type RetrieverScore struct {
	Value       float64
	Confidence  float64
	SampleSize  int
	LastUpdated time.Time
}

// Retriever is a node in the discovery DAG.
type Retriever struct {
	ID                  string
	DisplayName         string
	Kind                RetrieverKind
	HandlerType         string
	URI                 string
	Config              map[string]any
	PollIntervalSeconds int
	LastInvokedAt       *time.Time
	ParentID            *string
	Depth               int
	IsEnabled           bool
	Score               *RetrieverScore
}

// Embedding is a single named vector representation of a Content.
type Embedding struct {
	Name      string
	Type      string
	Model     string
	Vector    []float32
	SourceURL string
}

// Content is a piece of content independent of how it was discovered.
type Content struct {
	ID              string
	SourceID        string
	Title           string
	ContentType     ContentType
	PublishedAt     *time.Time
	IngestedAt      time.Time
	CreatorIDs      []string
	ConsumptionType ConsumptionType
	CanonicalIDs    map[string]string
	Seen            bool
	Hidden          bool
	SeriesID        *string
	SeriesPosition  *int
	Metadata        map[string]any
	Embeddings      []Embedding
}

// EmbeddingByType returns the content's embedding of the given type, if any.
func (c *Content) EmbeddingByType(typ string) (Embedding, bool) {
	for _, e := range c.Embeddings {
		if e.Type == typ {
			return e, true
		}
	}
	return Embedding{}, false
}

// SetEmbedding replaces any existing embedding of the same type with e.
func (c *Content) SetEmbedding(e Embedding) {
	for i := range c.Embeddings {
		if c.Embeddings[i].Type == e.Type {
			c.Embeddings[i] = e
			return
		}
	}
	c.Embeddings = append(c.Embeddings, e)
}

// Encoding is a specific accessor for a Content via some source/platform.
type Encoding struct {
	ID            string
	ContentID     string
	SourceType    string
	ExternalID    string
	URI           string
	MediaType     *string
	Metadata      map[string]any
	DiscoveredAt  time.Time
	IsPrimary     bool
}

// Creator is a deduplicated identity behind one or more content items.
type Creator struct {
	ID          string
	Name        string
	Variants    []string
	ExternalIDs map[string]string
	Bio         *string
	URL         *string
	AvatarURL   *string
}

// FeedbackEvent is an implicit engagement signal.
type FeedbackEvent struct {
	ID        string
	ItemID    string
	Timestamp time.Time
	EventType string
	Payload   map[string]any
}

// IsEngagement reports whether the event's type counts as engagement.
func (f FeedbackEvent) IsEngagement() bool {
	return EngagementEventTypes[f.EventType]
}

// ExplicitFeedback is a user-submitted rating of a content item.
type ExplicitFeedback struct {
	ID          string
	ContentID   string
	RewardScore float64
	Selections  map[string][]string
	Notes       *string
	Completed   *bool
	Checkpoint  *string
	Timestamp   time.Time
}

// SourceStats are the per-source aggregates consumed as ranking priors.
type SourceStats struct {
	SourceID   string
	AvgReward  float64
	ClickRate  float64
	Engagement float64
	UpdatedAt  time.Time
}

// DefaultSourceStats are used when no stats row exists for a source, per
// the §4.6 feature contract: (avg_reward, click_rate, engagement) = (2.5, 0, 0).
func DefaultSourceStats(sourceID string) SourceStats {
	return SourceStats{SourceID: sourceID, AvgReward: 2.5, ClickRate: 0, Engagement: 0}
}
