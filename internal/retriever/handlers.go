// omnifeed - Adaptive Content Discovery and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/omnifeed

package retriever

import (
	"context"
	"fmt"
	"strings"

	"github.com/tomtom215/omnifeed/internal/errs"
	"github.com/tomtom215/omnifeed/internal/store"
)

// SourceWrapperHandler wraps an AdapterRegistry as a POLL leaf handler.
// Its Invoke calls the matching adapter's Poll with since =
// retriever.LastInvokedAt and converts raw items to CONTENT results.
type SourceWrapperHandler struct {
	adapters *AdapterRegistry
}

// NewSourceWrapperHandler builds a handler over the given adapter registry.
func NewSourceWrapperHandler(adapters *AdapterRegistry) *SourceWrapperHandler {
	return &SourceWrapperHandler{adapters: adapters}
}

func (h *SourceWrapperHandler) HandlerType() string { return "source" }

func (h *SourceWrapperHandler) CanHandle(uri string) bool {
	return strings.HasPrefix(uri, "source:")
}

// SchemePrefix lets HandlerRegistry index this handler for trie dispatch.
func (h *SourceWrapperHandler) SchemePrefix() string { return "source:" }

// Resolve parses a "source:{source_type}:{url}" URI, delegating to the
// matching adapter's Resolve to populate config.
func (h *SourceWrapperHandler) Resolve(ctx context.Context, uri string, displayName string) (*store.Retriever, error) {
	sourceType, rawURL, ok := splitSourceURI(uri)
	if !ok {
		return nil, errs.Wrap(errs.ErrInvalidInput, "malformed source uri: "+uri, nil)
	}
	adapter, ok := h.adapters.ByType(sourceType)
	if !ok {
		return nil, errs.Wrap(errs.ErrInvalidInput, "no adapter registered for source_type: "+sourceType, nil)
	}
	info, err := adapter.Resolve(ctx, rawURL)
	if err != nil {
		return nil, errs.Wrap(errs.ErrInvalidInput, "resolve "+uri, err)
	}
	if displayName == "" {
		displayName = info.DisplayName
	}
	return &store.Retriever{
		DisplayName: displayName,
		Kind:        store.RetrieverKindPoll,
		HandlerType: h.HandlerType(),
		URI:         uri,
		Config: map[string]any{
			"source_type":  info.SourceType,
			"url":          info.URI,
			"display_name": info.DisplayName,
			"avatar_url":   info.AvatarURL,
			"metadata":     info.Metadata,
		},
		PollIntervalSeconds: 3600,
		IsEnabled:           true,
	}, nil
}

// Invoke calls the matching adapter's Poll and converts raw items to
// CONTENT results. The "since" timestamp is the retriever's
// LastInvokedAt, giving strictly-after semantics per the source's poll
// contract (the documented resolution of the since-filtering open
// question: strict '>').
func (h *SourceWrapperHandler) Invoke(ctx context.Context, r *store.Retriever) ([]RetrievalResult, error) {
	sourceType, _ := r.Config["source_type"].(string)
	rawURL, _ := r.Config["url"].(string)

	adapter, ok := h.adapters.ByType(sourceType)
	if !ok {
		return nil, errs.Wrap(errs.ErrInvalidInput, "no adapter registered for source_type: "+sourceType, nil)
	}

	info := SourceInfo{SourceType: sourceType, URI: rawURL, DisplayName: r.DisplayName}
	items, err := adapter.Poll(ctx, info, r.LastInvokedAt)
	if err != nil {
		return nil, err
	}

	sourceID, _ := r.Config["source_id"].(string)
	results := make([]RetrievalResult, 0, len(items))
	for _, item := range items {
		item.SourceID = sourceID
		results = append(results, ContentResult(item))
	}
	return results, nil
}

func splitSourceURI(uri string) (sourceType, rawURL string, ok bool) {
	const prefix = "source:"
	if !strings.HasPrefix(uri, prefix) {
		return "", "", false
	}
	rest := uri[len(prefix):]
	idx := strings.Index(rest, ":")
	if idx < 0 {
		return "", "", false
	}
	return rest[:idx], rest[idx+1:], true
}

// SourceURI formats the canonical "source:{source_type}:{url}" retriever
// URI used by SourceWrapperHandler.
func SourceURI(sourceType, url string) string {
	return fmt.Sprintf("source:%s:%s", sourceType, url)
}

// ExploratoryHandler is an EXPLORE node that asks every registered search
// provider for suggestions and emits each as a child "source:" retriever.
type ExploratoryHandler struct {
	search *SearchRegistry
}

// NewExploratoryHandler builds a handler over the given search registry.
func NewExploratoryHandler(search *SearchRegistry) *ExploratoryHandler {
	return &ExploratoryHandler{search: search}
}

func (h *ExploratoryHandler) HandlerType() string { return "exploratory" }

func (h *ExploratoryHandler) CanHandle(uri string) bool {
	return strings.HasPrefix(uri, "explore:")
}

// SchemePrefix lets HandlerRegistry index this handler for trie dispatch.
func (h *ExploratoryHandler) SchemePrefix() string { return "explore:" }

func (h *ExploratoryHandler) Resolve(ctx context.Context, uri string, displayName string) (*store.Retriever, error) {
	if !h.CanHandle(uri) {
		return nil, errs.Wrap(errs.ErrInvalidInput, "malformed explore uri: "+uri, nil)
	}
	return &store.Retriever{
		DisplayName: displayName,
		Kind:        store.RetrieverKindExplore,
		HandlerType: h.HandlerType(),
		URI:         uri,
		Config:      map[string]any{"query": strings.TrimPrefix(uri, "explore:")},
		IsEnabled:   true,
	}, nil
}

// Invoke asks every provider for up to maxResults/len(providers)
// suggestions. This divides with integer arithmetic and may over-fetch by
// one result per provider when maxResults doesn't divide evenly; that is
// the documented, accepted behavior, not a bug to fix.
func (h *ExploratoryHandler) Invoke(ctx context.Context, r *store.Retriever) ([]RetrievalResult, error) {
	query, _ := r.Config["query"].(string)
	providers := h.search.Providers()
	if len(providers) == 0 {
		return nil, nil
	}

	const maxResults = 20
	perProvider := maxResults / len(providers)
	if perProvider < 1 {
		perProvider = 1
	}

	var results []RetrievalResult
	var firstErr error
	for _, p := range providers {
		suggestions, err := p.Search(ctx, query, perProvider)
		if err != nil {
			if firstErr == nil {
				firstErr = errs.Wrap(errs.ErrFetch, "search provider "+p.Name(), err)
			}
			continue
		}
		for _, s := range suggestions {
			sub := &store.Retriever{
				DisplayName: s.Name,
				Kind:        store.RetrieverKindPoll,
				HandlerType: "source",
				URI:         SourceURI(s.SourceType, s.URL),
				Config: map[string]any{
					"source_type":  s.SourceType,
					"url":          s.URL,
					"display_name": s.Name,
					"avatar_url":   s.ThumbnailURL,
					"metadata":     s.Metadata,
				},
				PollIntervalSeconds: 3600,
				IsEnabled:           true,
			}
			results = append(results, RetrieverResult(sub))
		}
	}
	return results, firstErr
}

// StrategyHandler is a scorable "{provider}:{method}" query/prompt
// construction method that emits child retrievers for discovered sources.
// It differs from ExploratoryHandler only in URI shape and kind (HYBRID,
// since a strategy node both is scored like a leaf and expands like an
// explorer).
type StrategyHandler struct {
	search *SearchRegistry
}

// NewStrategyHandler builds a handler over the given search registry.
func NewStrategyHandler(search *SearchRegistry) *StrategyHandler {
	return &StrategyHandler{search: search}
}

func (h *StrategyHandler) HandlerType() string { return "strategy" }

func (h *StrategyHandler) CanHandle(uri string) bool {
	return strings.HasPrefix(uri, "strategy:")
}

// SchemePrefix lets HandlerRegistry index this handler for trie dispatch.
func (h *StrategyHandler) SchemePrefix() string { return "strategy:" }

func (h *StrategyHandler) Resolve(ctx context.Context, uri string, displayName string) (*store.Retriever, error) {
	rest := strings.TrimPrefix(uri, "strategy:")
	parts := strings.SplitN(rest, ":", 2)
	if len(parts) != 2 {
		return nil, errs.Wrap(errs.ErrInvalidInput, "malformed strategy uri: "+uri, nil)
	}
	return &store.Retriever{
		DisplayName: displayName,
		Kind:        store.RetrieverKindHybrid,
		HandlerType: h.HandlerType(),
		URI:         uri,
		Config:      map[string]any{"provider": parts[0], "method": parts[1]},
		IsEnabled:   true,
	}, nil
}

func (h *StrategyHandler) Invoke(ctx context.Context, r *store.Retriever) ([]RetrievalResult, error) {
	provider, _ := r.Config["provider"].(string)
	method, _ := r.Config["method"].(string)
	query := fmt.Sprintf("%s %s", provider, method)

	var results []RetrievalResult
	var firstErr error
	for _, p := range h.search.Providers() {
		if p.Name() != provider && provider != "" {
			continue
		}
		suggestions, err := p.Search(ctx, query, 10)
		if err != nil {
			if firstErr == nil {
				firstErr = errs.Wrap(errs.ErrFetch, "search provider "+p.Name(), err)
			}
			continue
		}
		for _, s := range suggestions {
			sub := &store.Retriever{
				DisplayName: s.Name,
				Kind:        store.RetrieverKindPoll,
				HandlerType: "source",
				URI:         SourceURI(s.SourceType, s.URL),
				Config: map[string]any{
					"source_type":  s.SourceType,
					"url":          s.URL,
					"display_name": s.Name,
					"metadata":     s.Metadata,
				},
				PollIntervalSeconds: 3600,
				IsEnabled:           true,
			}
			results = append(results, RetrieverResult(sub))
		}
	}
	return results, firstErr
}

var (
	_ Handler = (*SourceWrapperHandler)(nil)
	_ Handler = (*ExploratoryHandler)(nil)
	_ Handler = (*StrategyHandler)(nil)
)
