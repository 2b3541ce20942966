// omnifeed - Adaptive Content Discovery and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/omnifeed

// Package rssref implements the reference RSS/Atom source adapter: the
// first concrete retriever.Adapter, and the one every other provider
// adapter is expected to imitate. Fetches are wrapped in a circuit breaker
// so a single flaky feed can't stall an entire orchestrator pass.
package rssref

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/omnifeed/internal/errs"
	"github.com/tomtom215/omnifeed/internal/metrics"
	"github.com/tomtom215/omnifeed/internal/retriever"
)

const sourceType = "rss"

// breakerName is shared by every Adapter instance's circuit breaker so the
// metric series stays stable regardless of how many adapters are wired up.
const breakerName = "rss-adapter"

// defaultFetchesPerSecond and defaultFetchBurst bound how many feed fetches
// one Adapter instance can issue against the network per second, independent
// of how many retrievers the orchestrator fans a poll pass out to.
const (
	defaultFetchesPerSecond = 5
	defaultFetchBurst       = 10
)

var feedPathIndicators = []string{"/feed", "/rss", "/atom", ".xml", ".rss", ".atom"}

var imgSrcPattern = regexp.MustCompile(`<img[^>]+src=["']([^"']+)["']`)
var htmlTagPattern = regexp.MustCompile(`<[^>]+>`)

// Adapter polls RSS and Atom feeds via gofeed, tripping its breaker open
// after a run of consecutive fetch failures. Fetches are also throttled by
// a token bucket so a large poll fan-out across many retrievers sharing
// this adapter can't burst the network all at once.
type Adapter struct {
	parser  *gofeed.Parser
	breaker *gobreaker.CircuitBreaker[*gofeed.Feed]
	limiter *rate.Limiter
}

// New builds an Adapter with a fresh gofeed parser, a closed breaker, and a
// token bucket limited to defaultFetchesPerSecond.
func New() *Adapter {
	return NewWithLimiter(rate.NewLimiter(rate.Limit(defaultFetchesPerSecond), defaultFetchBurst))
}

// NewWithLimiter builds an Adapter using the given rate limiter in place of
// the default, so callers can bound poll fan-out to their own budget.
func NewWithLimiter(limiter *rate.Limiter) *Adapter {
	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(breakerName).Set(0)

	breaker := gobreaker.NewCircuitBreaker[*gofeed.Feed](gobreaker.Settings{
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

	return &Adapter{parser: gofeed.NewParser(), breaker: breaker, limiter: limiter}
}

// SourceType identifies this adapter in retriever configs and sources.
func (a *Adapter) SourceType() string { return sourceType }

// CanHandle applies the same permissive heuristics as upstream feed
// discovery tooling: a clear feed-shaped path or query wins immediately,
// but any http(s) URL is accepted since validation truly happens on fetch.
func (a *Adapter) CanHandle(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	path := strings.ToLower(u.Path)
	for _, indicator := range feedPathIndicators {
		if strings.Contains(path, indicator) {
			return true
		}
	}
	query := strings.ToLower(u.RawQuery)
	if strings.Contains(query, "feed") || strings.Contains(query, "rss") {
		return true
	}
	return true
}

// Resolve fetches and parses the feed once to extract its identity and
// metadata, without consuming any entries.
func (a *Adapter) Resolve(ctx context.Context, rawURL string) (retriever.SourceInfo, error) {
	feed, err := a.fetch(ctx, rawURL)
	if err != nil {
		return retriever.SourceInfo{}, err
	}

	title := feed.Title
	if title == "" {
		if u, perr := url.Parse(rawURL); perr == nil {
			title = u.Host
		}
	}
	description := feed.Description

	var avatarURL string
	if feed.Image != nil {
		avatarURL = feed.Image.URL
	}

	return retriever.SourceInfo{
		SourceType:  sourceType,
		URI:         rawURL,
		DisplayName: extractText(title),
		AvatarURL:   avatarURL,
		Metadata: map[string]any{
			"description": extractText(description),
			"link":        feed.Link,
			"language":    feed.Language,
			"generator":   feed.Generator,
		},
	}, nil
}

// Poll fetches the feed and returns every entry published strictly after
// since. A nil since returns every entry in the current fetch.
func (a *Adapter) Poll(ctx context.Context, source retriever.SourceInfo, since *time.Time) ([]retriever.RawItem, error) {
	feed, err := a.fetch(ctx, source.URI)
	if err != nil {
		return nil, err
	}

	items := make([]retriever.RawItem, 0, len(feed.Items))
	for _, entry := range feed.Items {
		publishedAt := entryPublishedAt(entry)
		if since != nil && publishedAt != nil && !publishedAt.After(*since) {
			continue
		}

		content := entry.Content
		if content == "" {
			content = entry.Description
		}

		author := ""
		if entry.Author != nil {
			author = entry.Author.Name
		}
		if author == "" && len(entry.Authors) > 0 {
			author = entry.Authors[0].Name
		}
		if author == "" {
			author = source.DisplayName
		}

		var enclosures []map[string]any
		for _, enc := range entry.Enclosures {
			enclosures = append(enclosures, map[string]any{
				"url":  enc.URL,
				"type": enc.Type,
			})
		}

		var tags []string
		for _, cat := range entry.Categories {
			if cat != "" {
				tags = append(tags, cat)
			}
		}

		items = append(items, retriever.RawItem{
			ExternalID:  entryID(entry, source.URI),
			URL:         entry.Link,
			Title:       extractText(firstNonEmpty(entry.Title, "Untitled")),
			PublishedAt: publishedAt,
			RawMetadata: map[string]any{
				"author":        author,
				"content_html":  content,
				"content_text":  extractText(content),
				"thumbnail":     entryThumbnail(entry, content),
				"enclosures":    enclosures,
				"tags":          tags,
				"comments_url":  entry.Custom["comments"],
			},
		})
	}
	return items, nil
}

func (a *Adapter) fetch(ctx context.Context, feedURL string) (*gofeed.Feed, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, errs.Wrap(errs.ErrRateLimited, "rate limiter wait for "+feedURL, err)
	}

	feed, err := a.breaker.Execute(func() (*gofeed.Feed, error) {
		return a.parser.ParseURLWithContext(feedURL, ctx)
	})
	if err != nil {
		if errsIsOpen(err) {
			return nil, errs.Wrap(errs.ErrFetch, "rss breaker open for "+feedURL, err)
		}
		return nil, errs.Wrap(errs.ErrFetch, "fetch feed "+feedURL, err)
	}
	return feed, nil
}

func errsIsOpen(err error) bool {
	return err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests
}

func entryPublishedAt(entry *gofeed.Item) *time.Time {
	if entry.PublishedParsed != nil {
		return entry.PublishedParsed
	}
	if entry.UpdatedParsed != nil {
		return entry.UpdatedParsed
	}
	return nil
}

func entryID(entry *gofeed.Item, feedURL string) string {
	if entry.GUID != "" {
		return entry.GUID
	}
	if entry.Link != "" {
		return entry.Link
	}
	sum := sha256.Sum256([]byte(feedURL + ":" + entry.Title))
	return hex.EncodeToString(sum[:])[:16]
}

func entryThumbnail(entry *gofeed.Item, content string) string {
	if entry.Image != nil && entry.Image.URL != "" {
		return entry.Image.URL
	}
	for _, enc := range entry.Enclosures {
		if strings.HasPrefix(enc.Type, "image/") {
			return enc.URL
		}
	}
	if content != "" {
		if m := imgSrcPattern.FindStringSubmatch(content); len(m) == 2 {
			return m[1]
		}
	}
	return ""
}

func extractText(html string) string {
	text := htmlTagPattern.ReplaceAllString(html, "")
	replacer := strings.NewReplacer(
		"&nbsp;", " ",
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
	)
	text = replacer.Replace(text)
	return strings.Join(strings.Fields(text), " ")
}

func firstNonEmpty(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
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

var _ retriever.Adapter = (*Adapter)(nil)
