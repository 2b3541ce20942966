// omnifeed - Adaptive Content Discovery and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/omnifeed

package eventprocessor

import (
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// SchemaVersion is the current event schema version.
// Increment this when making breaking changes to FeedEvent.
const SchemaVersion = 1

// FeedEvent is the canonical envelope for everything that crosses the event
// bus between the orchestrator, the ingestion pipeline, and the scorer:
// newly-discovered raw items, feedback ratings, and retriever score updates.
// The envelope carries routing/dedup fields; Payload holds the kind-specific
// body (RawItemPayload, FeedbackPayload, or ScorePayload).
type FeedEvent struct {
	SchemaVersion int `json:"schema_version,omitempty"`

	EventID        string    `json:"event_id"`
	Kind           string    `json:"kind"` // raw_item, feedback, score_update
	RetrieverID    string    `json:"retriever_id,omitempty"`
	SourceID       string    `json:"source_id,omitempty"`
	CorrelationKey string    `json:"correlation_key,omitempty"` // dedup key for idempotent upsert
	Timestamp      time.Time `json:"timestamp"`

	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewFeedEvent creates an event with a unique ID, timestamp, and schema version.
func NewFeedEvent(kind string) *FeedEvent {
	return &FeedEvent{
		SchemaVersion: SchemaVersion,
		EventID:       uuid.New().String(),
		Kind:          kind,
		Timestamp:     time.Now().UTC(),
	}
}

// GetSchemaVersion returns the schema version, defaulting to 1 for legacy events.
func (e *FeedEvent) GetSchemaVersion() int {
	if e.SchemaVersion == 0 {
		return 1
	}
	return e.SchemaVersion
}

// EnsureSchemaVersion sets the schema version if not already set.
func (e *FeedEvent) EnsureSchemaVersion() {
	if e.SchemaVersion == 0 {
		e.SchemaVersion = SchemaVersion
	}
}

// Validate checks required envelope fields.
func (e *FeedEvent) Validate() error {
	if e.EventID == "" {
		return &ValidationError{Field: "event_id", Message: "required"}
	}
	if e.Kind == "" {
		return &ValidationError{Field: "kind", Message: "required"}
	}
	switch e.Kind {
	case EventKindRawItem, EventKindFeedback, EventKindScoreUpdate:
	default:
		return &ValidationError{Field: "kind", Message: "unknown event kind: " + e.Kind}
	}
	return nil
}

// Topic returns the NATS subject for this event.
// Format: omnifeed.<kind>
// Example: omnifeed.raw_item
func (e *FeedEvent) Topic() string {
	return "omnifeed." + e.Kind
}

// UnmarshalPayload decodes the event's Payload into v, which should be a
// pointer to RawItemPayload, FeedbackPayload, or ScorePayload depending on
// Kind.
func (e *FeedEvent) UnmarshalPayload(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// SetCorrelationKey assigns the dedup key used for idempotent dual-write
// upsert of the content this event carries (§4.4). Callers compute the key
// from the payload (e.g. retriever_id+uri for raw items) before publishing.
func (e *FeedEvent) SetCorrelationKey(key string) {
	e.CorrelationKey = key
}

// RawItemPayload is the Payload body for EventKindRawItem: a single item
// discovered by an Adapter's poll, awaiting ingestion.
type RawItemPayload struct {
	URI       string            `json:"uri"`
	Title     string            `json:"title,omitempty"`
	Creator   string            `json:"creator,omitempty"`
	MediaType string            `json:"media_type,omitempty"` // text, audio, video, image
	Metadata  map[string]string `json:"metadata,omitempty"`
	FetchedAt time.Time         `json:"fetched_at"`
}

// FeedbackPayload is the Payload body for EventKindFeedback: a rating
// submitted against a content item, used to update the owning retriever's
// EMA score (§4.3) and to accumulate ranking training examples (§4.6).
type FeedbackPayload struct {
	ContentID   string  `json:"content_id"`
	RetrieverID string  `json:"retriever_id"`
	Objective   string  `json:"objective"` // click, or a named reward objective
	Value       float64 `json:"value"`     // 1.0/0.0 for click, arbitrary reward otherwise
	Explicit    bool    `json:"explicit"`
}

// ScorePayload is the Payload body for EventKindScoreUpdate: the result of
// an EMA propagation, broadcast so other consumers (e.g. the ops surface)
// can observe score changes without polling the store.
type ScorePayload struct {
	RetrieverID string  `json:"retriever_id"`
	Score       float64 `json:"score"`
	SampleCount int     `json:"sample_count"`
	Confidence  float64 `json:"confidence"`
}

// ValidationError represents a field validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// Event kind constants for NATS subjects.
const (
	// EventKindRawItem indicates a newly-discovered item awaiting ingestion.
	EventKindRawItem = "raw_item"
	// EventKindFeedback indicates a rating submitted against a content item.
	EventKindFeedback = "feedback"
	// EventKindScoreUpdate indicates a retriever's EMA score changed.
	EventKindScoreUpdate = "score_update"
)
