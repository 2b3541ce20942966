// omnifeed - Adaptive Content Discovery and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/omnifeed

// Package retriever holds the Adapter and Handler interfaces consumed by
// the orchestrator, plus the registries that resolve a handler_type or a
// URL to a concrete implementation. Concrete adapters (rssref and any
// future provider) live in their own packages and register themselves
// against a Registry at construction time; nothing in this package knows
// about a specific provider.
package retriever

import (
	"context"
	"time"

	"github.com/tomtom215/omnifeed/internal/cache"
	"github.com/tomtom215/omnifeed/internal/store"
)

// RawItem is what an Adapter's poll returns: an unnormalized item from a
// source, prior to ingestion.
type RawItem struct {
	// SourceID is populated by the handler that produced this item (the
	// store.Source.ID backing the POLL leaf), so downstream ingestion
	// can group items without re-deriving the source from the URI.
	SourceID     string
	ExternalID   string
	URL          string
	Title        string
	PublishedAt  *time.Time
	RawMetadata  map[string]any
}

// SourceInfo is the resolved identity of a pollable endpoint, produced by
// Adapter.Resolve and used to construct or match a store.Source.
type SourceInfo struct {
	SourceType  string
	URI         string
	DisplayName string
	AvatarURL   string
	Metadata    map[string]any
}

// Adapter is a concrete source poller for one provider/protocol.
type Adapter interface {
	// SourceType returns this adapter's stable identifier.
	SourceType() string
	// CanHandle is a pure, cheap URL classification check.
	CanHandle(url string) bool
	// Resolve may perform network I/O. Returns an error wrapping
	// errs.ErrInvalidInput if url does not belong to this adapter or the
	// target is unreachable.
	Resolve(ctx context.Context, url string) (SourceInfo, error)
	// Poll returns items published strictly after since, when provided.
	// Implementations must be best-effort idempotent: the same item in
	// the same state yields the same ExternalID.
	Poll(ctx context.Context, source SourceInfo, since *time.Time) ([]RawItem, error)
}

// ResultKind tags a RetrievalResult as either content or a sub-retriever.
type ResultKind int

const (
	ResultKindContent ResultKind = iota
	ResultKindRetriever
)

// RetrievalResult is one item emitted by Handler.Invoke: either a raw item
// ready for the ingestion pipeline, or a sub-retriever to fold into the DAG.
type RetrievalResult struct {
	Kind      ResultKind
	Item      *RawItem
	Retriever *store.Retriever
}

// ContentResult wraps a raw item as a CONTENT result.
func ContentResult(item RawItem) RetrievalResult {
	return RetrievalResult{Kind: ResultKindContent, Item: &item}
}

// RetrieverResult wraps a sub-retriever as a RETRIEVER result.
func RetrieverResult(r *store.Retriever) RetrievalResult {
	return RetrievalResult{Kind: ResultKindRetriever, Retriever: r}
}

// Handler is a retriever driver: it knows how to resolve a URI into a
// store.Retriever and how to invoke one to produce content and/or
// sub-retrievers.
type Handler interface {
	// HandlerType returns this handler's stable identifier.
	HandlerType() string
	// CanHandle is a pure, cheap URI classification check.
	CanHandle(uri string) bool
	// Resolve populates retriever metadata without invoking it; it
	// performs no network calls beyond what is necessary to produce a
	// well-formed Retriever.
	Resolve(ctx context.Context, uri string, displayName string) (*store.Retriever, error)
	// Invoke runs the retriever once, returning content and/or
	// sub-retrievers discovered in this single invocation.
	Invoke(ctx context.Context, r *store.Retriever) ([]RetrievalResult, error)
}

// SchemeHandler is an optional interface a Handler implements when its
// CanHandle check is a static colon-terminated scheme prefix (e.g.
// "source:"). HandlerRegistry uses it to route Resolve through a trie
// instead of a linear CanHandle scan.
type SchemeHandler interface {
	SchemePrefix() string
}

// AdapterRegistry resolves a URL to the first adapter that claims it.
type AdapterRegistry struct {
	adapters []Adapter
}

// NewAdapterRegistry returns an empty registry.
func NewAdapterRegistry() *AdapterRegistry {
	return &AdapterRegistry{}
}

// Register appends an adapter. Registration order is the match order.
func (r *AdapterRegistry) Register(a Adapter) {
	r.adapters = append(r.adapters, a)
}

// ByType returns the adapter with the given SourceType, if registered.
func (r *AdapterRegistry) ByType(sourceType string) (Adapter, bool) {
	for _, a := range r.adapters {
		if a.SourceType() == sourceType {
			return a, true
		}
	}
	return nil, false
}

// Resolve returns the first registered adapter that claims url.
func (r *AdapterRegistry) Resolve(url string) (Adapter, bool) {
	for _, a := range r.adapters {
		if a.CanHandle(url) {
			return a, true
		}
	}
	return nil, false
}

// HandlerRegistry resolves a handler_type or URI to the first handler
// that claims it.
type HandlerRegistry struct {
	handlers []Handler
	// schemes indexes handlers that declare a static SchemePrefix, so
	// Resolve can skip the linear CanHandle scan for the common case.
	schemes *cache.Trie
}

// NewHandlerRegistry returns an empty registry.
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{schemes: cache.NewTrie()}
}

// Register appends a handler. Registration order is the match order. If h
// declares a SchemePrefix, it is also indexed for fast Resolve dispatch.
func (r *HandlerRegistry) Register(h Handler) {
	r.handlers = append(r.handlers, h)
	if sh, ok := h.(SchemeHandler); ok {
		r.schemes.InsertWithData(sh.SchemePrefix(), h)
	}
}

// ByType returns the handler with the given HandlerType, if registered.
func (r *HandlerRegistry) ByType(handlerType string) (Handler, bool) {
	for _, h := range r.handlers {
		if h.HandlerType() == handlerType {
			return h, true
		}
	}
	return nil, false
}

// Resolve returns the first registered handler that claims uri. Handlers
// indexed by a SchemePrefix are matched in O(len(uri)) via the scheme trie;
// the remaining handlers are checked with a linear CanHandle scan in
// registration order, same as before the trie existed.
func (r *HandlerRegistry) Resolve(uri string) (Handler, bool) {
	if res, ok := r.schemes.LongestPrefixMatch(uri); ok {
		if h, ok := res.Data.(Handler); ok && h.CanHandle(uri) {
			return h, true
		}
	}
	for _, h := range r.handlers {
		if _, isScheme := h.(SchemeHandler); isScheme {
			continue
		}
		if h.CanHandle(uri) {
			return h, true
		}
	}
	return nil, false
}

// SearchSuggestion is one candidate source surfaced by a search provider
// for exploratory/strategy handlers.
type SearchSuggestion struct {
	URL              string
	Name             string
	SourceType       string
	Description      string
	ThumbnailURL     string
	SubscriberCount  int64
	Metadata         map[string]any
}

// SearchProvider answers discovery queries for exploratory handlers.
type SearchProvider interface {
	Name() string
	Search(ctx context.Context, query string, limit int) ([]SearchSuggestion, error)
}

// SearchRegistry holds the configured set of search providers.
type SearchRegistry struct {
	providers []SearchProvider
}

// NewSearchRegistry returns an empty registry.
func NewSearchRegistry() *SearchRegistry {
	return &SearchRegistry{}
}

// Register appends a search provider.
func (r *SearchRegistry) Register(p SearchProvider) {
	r.providers = append(r.providers, p)
}

// Providers returns the registered search providers, in registration order.
func (r *SearchRegistry) Providers() []SearchProvider {
	return r.providers
}
