// omnifeed - Adaptive Content Discovery and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/omnifeed

// Package bandcamp implements a retriever.SearchProvider over Bandcamp's
// public artist/label search page, giving ExploratoryHandler and
// StrategyHandler something concrete to discover sources with. Fetches are
// wrapped in a circuit breaker, matching the reference RSS adapter.
package bandcamp

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/omnifeed/internal/errs"
	"github.com/tomtom215/omnifeed/internal/metrics"
	"github.com/tomtom215/omnifeed/internal/retriever"
)

const providerName = "bandcamp"
const breakerName = "bandcamp-search"
const searchURL = "https://bandcamp.com/search"

// resultPattern extracts thumbnail, artist URL, and display name out of a
// Bandcamp search-results page. Bandcamp's markup has no public API, so
// screen-scraping the rendered search page is the only discovery path.
var resultPattern = regexp.MustCompile(
	`<li class="searchresult band"[\s\S]*?<img[^>]+src="([^"]*)"[\s\S]*?` +
		`<div class="heading">\s*<a href="([^"]+)"[^>]*>([^<]+)</a>`)

// Provider searches Bandcamp for artists and labels matching a query.
type Provider struct {
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
	baseURL string // overridden in tests to point at an httptest server
}

// New builds a Provider with a closed breaker and a 30s HTTP client.
func New() *Provider {
	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(breakerName).Set(0)

	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
			if to == gobreaker.StateClosed {
				metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)
			}
		},
	})

	return &Provider{
		client:  &http.Client{Timeout: 30 * time.Second},
		breaker: breaker,
		baseURL: searchURL,
	}
}

// Name identifies this provider to the search registry.
func (p *Provider) Name() string { return providerName }

// Search queries Bandcamp's band/label search and returns up to limit
// suggestions in page order.
func (p *Provider) Search(ctx context.Context, query string, limit int) ([]retriever.SearchSuggestion, error) {
	if limit <= 0 {
		limit = 10
	}

	body, err := p.fetch(ctx, query)
	if err != nil {
		return nil, err
	}

	matches := resultPattern.FindAllStringSubmatch(string(body), -1)
	suggestions := make([]retriever.SearchSuggestion, 0, min(limit, len(matches)))
	for _, m := range matches {
		if len(suggestions) >= limit {
			break
		}
		thumbnail, artistURL, name := m[1], m[2], strings.TrimSpace(m[3])
		if artistURL == "" || name == "" {
			continue
		}
		suggestions = append(suggestions, retriever.SearchSuggestion{
			URL:          artistURL,
			Name:         name,
			SourceType:   "bandcamp",
			ThumbnailURL: thumbnail,
			Metadata: map[string]any{
				"slug": bandcampSlug(artistURL),
			},
		})
	}
	return suggestions, nil
}

func (p *Provider) fetch(ctx context.Context, query string) ([]byte, error) {
	u := p.baseURL + "?" + url.Values{"q": {query}, "item_type": {"b"}}.Encode()

	body, err := p.breaker.Execute(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		resp, err := p.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, errs.ErrFetch
		}
		return io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, errs.Wrap(errs.ErrFetch, "bandcamp search breaker open", err)
		}
		return nil, errs.Wrap(errs.ErrFetch, "bandcamp search "+query, err)
	}
	return body, nil
}

func bandcampSlug(artistURL string) string {
	u, err := url.Parse(artistURL)
	if err != nil {
		return ""
	}
	host := u.Hostname()
	if idx := strings.Index(host, ".bandcamp.com"); idx > 0 {
		return host[:idx]
	}
	return ""
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

var _ retriever.SearchProvider = (*Provider)(nil)
