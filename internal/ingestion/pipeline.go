// omnifeed - Adaptive Content Discovery and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/omnifeed

// Package ingestion is the sole path by which a raw item from any source
// becomes durable Content: source-specific enrichment, text/audio
// embedding, and an idempotent dual-write of (Content, Encoding).
package ingestion

import (
	"context"
	"math"
	"strings"

	"github.com/tomtom215/omnifeed/internal/cache"
	"github.com/tomtom215/omnifeed/internal/embedding"
	"github.com/tomtom215/omnifeed/internal/errs"
	"github.com/tomtom215/omnifeed/internal/retriever"
	"github.com/tomtom215/omnifeed/internal/store"
)

const (
	textEmbeddingType  = "text"
	audioEmbeddingType = "audio"

	textCorpusContentChars = 1000
	descriptionFallbackChars = 500
)

// contentMetadataKeys and encodingMetadataKeys partition a RawItem's
// raw_metadata between Content and Encoding per §4.4. Unknown keys
// default to content metadata.
var contentMetadataKeys = map[string]bool{
	"content_text": true,
	"content_html": true,
	"description":  true,
	"thumbnail":    true,
	"tags":         true,
	"author":       true,
}

var encodingMetadataKeys = map[string]bool{
	"view_count":       true,
	"like_count":       true,
	"duration_seconds": true,
	"bitrate":          true,
	"resolution":       true,
	"file_size":        true,
	"video_id":         true,
	"channel_id":       true,
}

// contentTypeMatcher classifies a content item's title/body against the
// keywords a creator most plausibly used to describe its own medium. Built
// once at package init; SearchFirst's earliest-position match wins when a
// text trips more than one keyword.
var contentTypeMatcher = cache.NewPatternMatcher(map[string]any{
	"podcast":         store.ContentTypePodcast,
	"episode":         store.ContentTypePodcast,
	"arxiv":           store.ContentTypePaper,
	"preprint":        store.ContentTypePaper,
	"abstract:":       store.ContentTypePaper,
	"isbn":            store.ContentTypeBook,
	"chapter":         store.ContentTypeBook,
	"gameplay":        store.ContentTypeGame,
	"playthrough":     store.ContentTypeGame,
	"trailer":         store.ContentTypeFilm,
	"official movie":  store.ContentTypeFilm,
	"season":          store.ContentTypeShow,
	"thread:":         store.ContentTypeThread,
	"🧵":                store.ContentTypeThread,
	"watch:":          store.ContentTypeVideo,
	"video essay":     store.ContentTypeVideo,
})

// classifyContentType guesses a ContentType from the item's title and
// content_text via contentTypeMatcher, falling back to ContentTypeOther
// when nothing matches.
func classifyContentType(item *retriever.RawItem) store.ContentType {
	corpus := strings.ToLower(item.Title + " " + contentTextOf(item))
	if match, ok := contentTypeMatcher.MatchFirst(corpus); ok {
		if ct, ok := match.Data.(store.ContentType); ok {
			return ct
		}
	}
	return store.ContentTypeOther
}

// Enricher populates metadata.content_text for items from one source
// (e.g. a transcript fetch for video). Enrichment failures are logged and
// skipped; they never abort the pipeline.
type Enricher interface {
	Enrich(ctx context.Context, item *retriever.RawItem) error
}

// Options controls which pipeline steps run for a given Ingest call.
type Options struct {
	GenerateEmbeddings bool
	EnrichContent      bool
	Persist            bool
	// Force re-embeds items even when the required embedding types are
	// already present (refresh_embeddings with force=true in §4.4).
	Force bool
}

// Logger is the minimal logging surface the pipeline needs for
// per-item warnings that must not abort the run.
type Logger interface {
	Warn(msg string, kv ...any)
}

// nopLogger discards everything; used when no logger is supplied.
type nopLogger struct{}

func (nopLogger) Warn(string, ...any) {}

// Pipeline is the ingestion pipeline described in §4.4.
type Pipeline struct {
	store     store.Store
	embed     embedding.Service
	enrichers map[string]Enricher
	logger    Logger
}

// New builds a Pipeline over the given store and embedding service.
func New(st store.Store, embed embedding.Service) *Pipeline {
	return &Pipeline{
		store:     st,
		embed:     embed,
		enrichers: make(map[string]Enricher),
		logger:    nopLogger{},
	}
}

// WithLogger attaches a logger for per-item warnings.
func (p *Pipeline) WithLogger(l Logger) *Pipeline {
	p.logger = l
	return p
}

// RegisterEnricher registers a source-specific enricher.
func (p *Pipeline) RegisterEnricher(sourceType string, e Enricher) {
	p.enrichers[sourceType] = e
}

// Result is the outcome of ingesting one item.
type Result struct {
	Content        *store.Content
	Encoding       *store.Encoding
	ContentCreated bool
	EncodingCreated bool
}

// Ingest runs the pipeline over items from one source, in order.
func (p *Pipeline) Ingest(ctx context.Context, sourceID, sourceType string, items []retriever.RawItem, opts Options) ([]Result, []error) {
	var results []Result
	var errorsOut []error

	for i := range items {
		item := &items[i]

		if opts.EnrichContent {
			if enricher, ok := p.enrichers[sourceType]; ok {
				if err := enricher.Enrich(ctx, item); err != nil {
					p.logger.Warn("enrichment failed, continuing without it", "external_id", item.ExternalID, "error", err)
				}
			}
		}

		content := p.materializeContent(item)
		existingEmbeddings := p.existingEmbeddings(ctx, sourceType, item.ExternalID)

		if opts.GenerateEmbeddings {
			if err := p.embedText(ctx, content, item, opts.Force || !hasType(existingEmbeddings, textEmbeddingType)); err != nil {
				p.logger.Warn("text embedding failed", "external_id", item.ExternalID, "error", err)
			}
			if err := p.embedAudio(ctx, content, item, opts.Force || !hasType(existingEmbeddings, audioEmbeddingType)); err != nil {
				p.logger.Warn("audio embedding failed", "external_id", item.ExternalID, "error", err)
			}
		}

		if !opts.Persist {
			results = append(results, Result{Content: content})
			continue
		}

		res, err := p.persist(ctx, sourceID, sourceType, item, content)
		if err != nil {
			errorsOut = append(errorsOut, errs.Wrap(errs.ErrFatal, "persist item "+item.ExternalID, err))
			continue
		}
		results = append(results, res)
	}

	return results, errorsOut
}

func hasType(embeddings []store.Embedding, typ string) bool {
	for _, e := range embeddings {
		if e.Type == typ {
			return true
		}
	}
	return false
}

// materializeContent builds a Content shell from a raw item, before any
// embeddings or persistence; it does not look up an existing row.
func (p *Pipeline) materializeContent(item *retriever.RawItem) *store.Content {
	c := &store.Content{
		Title:       item.Title,
		PublishedAt: item.PublishedAt,
		ContentType: classifyContentType(item),
		Metadata:    map[string]any{},
	}
	for k, v := range item.RawMetadata {
		if _, isEncoding := encodingMetadataKeys[k]; isEncoding {
			continue
		}
		c.Metadata[k] = v
	}
	return c
}

// existingEmbeddings looks up the already-persisted content for this
// (source_type, external_id), if any, via its encoding, and returns its
// embeddings so a re-ingest of the same item can tell which embedding
// types are already present and skip recomputing them unless forced.
func (p *Pipeline) existingEmbeddings(ctx context.Context, sourceType, externalID string) []store.Embedding {
	enc, err := p.store.GetEncodingBySource(ctx, sourceType, externalID)
	if err != nil || enc == nil {
		return nil
	}
	existing, err := p.store.GetContent(ctx, enc.ContentID)
	if err != nil || existing == nil {
		return nil
	}
	return existing.Embeddings
}

// creatorName extracts the author field the text-embedding corpus needs,
// per §4.4 step 2.
func creatorName(item *retriever.RawItem) string {
	if author, ok := item.RawMetadata["author"].(string); ok {
		return author
	}
	return ""
}

func contentTextOf(item *retriever.RawItem) string {
	if text, ok := item.RawMetadata["content_text"].(string); ok {
		return text
	}
	return ""
}

func descriptionOf(item *retriever.RawItem) string {
	if desc, ok := item.RawMetadata["description"].(string); ok {
		return desc
	}
	return ""
}

// textCorpus builds the canonical embedding corpus: title + "by " +
// creator + first 1000 chars of content_text, falling back to
// description[:500] when there is no content_text.
func textCorpus(item *retriever.RawItem) string {
	body := contentTextOf(item)
	if body == "" {
		body = truncate(descriptionOf(item), descriptionFallbackChars)
	} else {
		body = truncate(body, textCorpusContentChars)
	}
	creator := creatorName(item)
	var b strings.Builder
	b.WriteString(item.Title)
	if creator != "" {
		b.WriteString(" by ")
		b.WriteString(creator)
	}
	if body != "" {
		b.WriteString(" ")
		b.WriteString(body)
	}
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func (p *Pipeline) embedText(ctx context.Context, content *store.Content, item *retriever.RawItem, need bool) error {
	if !need {
		return nil
	}
	corpus := textCorpus(item)
	if corpus == "" {
		return nil
	}
	vec, err := p.embed.EmbedText(ctx, corpus)
	if err != nil {
		return errs.Wrap(errs.ErrFetch, "embed text", err)
	}
	content.SetEmbedding(store.Embedding{Name: textEmbeddingType, Type: textEmbeddingType, Model: p.embed.Model(), Vector: vec})
	return nil
}

func (p *Pipeline) embedAudio(ctx context.Context, content *store.Content, item *retriever.RawItem, need bool) error {
	if !need {
		return nil
	}
	url, ok := item.RawMetadata["audio_preview_url"].(string)
	if !ok || url == "" {
		return nil
	}

	vec, err := p.embed.EmbedAudioURL(ctx, url)
	if err != nil {
		return errs.Wrap(errs.ErrFetch, "embed audio", err)
	}
	normalizeL2(vec)
	content.SetEmbedding(store.Embedding{Name: audioEmbeddingType, Type: audioEmbeddingType, Model: p.embed.Model(), Vector: vec, SourceURL: url})
	return nil
}

func normalizeL2(vec []float32) {
	var sumSquares float64
	for _, v := range vec {
		sumSquares += float64(v) * float64(v)
	}
	if sumSquares == 0 {
		return
	}
	norm := float32(1.0 / math.Sqrt(sumSquares))
	for i := range vec {
		vec[i] *= norm
	}
}

// persist performs the idempotent dual-write of §4.4 step 4: upsert the
// Content by (source_id, external_id) preserving seen/hidden, then upsert
// the derived Encoding; a duplicate encoding for the same
// (source_type, external_id) is treated as idempotent success, not an error.
func (p *Pipeline) persist(ctx context.Context, sourceID, sourceType string, item *retriever.RawItem, content *store.Content) (Result, error) {
	persistedContent, contentCreated, err := p.store.UpsertContentBySource(ctx, sourceID, item.ExternalID, content)
	if err != nil {
		return Result{}, errs.Wrap(errs.ErrFatal, "upsert content", err)
	}

	enc := &store.Encoding{
		ContentID:  persistedContent.ID,
		SourceType: sourceType,
		ExternalID: item.ExternalID,
		URI:        item.URL,
		Metadata:   encodingMetadataOf(item),
		IsPrimary:  true,
	}
	persistedEncoding, encodingCreated, err := p.store.UpsertEncoding(ctx, enc)
	if err != nil {
		// Encoding conflicts for an existing (source_type, external_id)
		// are idempotent success per the DualWriteConflict taxonomy entry;
		// only a genuine store failure reaches here.
		return Result{}, errs.Wrap(errs.ErrDualWriteConflict, "upsert encoding", err)
	}

	return Result{
		Content:         persistedContent,
		Encoding:        persistedEncoding,
		ContentCreated:  contentCreated,
		EncodingCreated: encodingCreated,
	}, nil
}

func encodingMetadataOf(item *retriever.RawItem) map[string]any {
	out := make(map[string]any)
	for k, v := range item.RawMetadata {
		if encodingMetadataKeys[k] {
			out[k] = v
		}
	}
	return out
}
