// omnifeed - Adaptive Content Discovery and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/omnifeed

// Package orchestrator walks the retriever DAG: it invokes a retriever's
// handler, recurses into any sub-retrievers it emits within a depth cap,
// and guarantees termination on cyclic back-edges via a per-traversal
// seen-set.
package orchestrator

import (
	"context"
	"time"

	"github.com/tomtom215/omnifeed/internal/cache"
	"github.com/tomtom215/omnifeed/internal/errs"
	"github.com/tomtom215/omnifeed/internal/retriever"
	"github.com/tomtom215/omnifeed/internal/scorer"
	"github.com/tomtom215/omnifeed/internal/store"
)

// Clock abstracts time.Now for deterministic tests.
type Clock func() time.Time

// InvocationResult accumulates everything discovered across one traversal.
type InvocationResult struct {
	Items         []retriever.RawItem
	NewRetrievers []*store.Retriever
	Errors        []error
}

func (r *InvocationResult) merge(other InvocationResult) {
	r.Items = append(r.Items, other.Items...)
	r.NewRetrievers = append(r.NewRetrievers, other.NewRetrievers...)
	r.Errors = append(r.Errors, other.Errors...)
}

// Context carries per-traversal parameters. MaxDepth bounds recursion;
// Deadline, if set, is honored as a hard cutoff for further handler calls.
type Context struct {
	MaxDepth        int
	Limit           int
	IncludeDisabled bool
	Deadline        time.Time

	// itemBudget tracks CONTENT results found per depth across one
	// InvokeForFeed traversal, so the walk can stop expanding once Limit
	// items have been found anywhere in the DAG, not just among the
	// top-level candidates. Left nil (and ignored) when Invoke is called
	// directly, e.g. from tests, or when Limit is unset.
	itemBudget *cache.FenwickTree
}

// DefaultContext returns sane traversal defaults: a depth cap of 5 and a
// feed size of 20.
func DefaultContext() Context {
	return Context{MaxDepth: 5, Limit: 20}
}

// budgetExhausted reports whether the traversal has already found at least
// Limit items, across all depths, and should stop expanding further
// branches. Always false when no budget is tracked.
func (c Context) budgetExhausted() bool {
	return c.itemBudget != nil && c.Limit > 0 && c.itemBudget.Total() >= int64(c.Limit)
}

// Orchestrator owns the handler registry and drives traversals. It holds
// no per-traversal state itself: the seen-set in Invoke is always local to
// one call tree, so concurrent traversals never interfere.
type Orchestrator struct {
	store    store.Store
	handlers *retriever.HandlerRegistry
	scorer   *scorer.Scorer
	now      Clock
}

// New builds an Orchestrator over the given store, handler registry, and
// scorer.
func New(st store.Store, handlers *retriever.HandlerRegistry, sc *scorer.Scorer) *Orchestrator {
	return &Orchestrator{store: st, handlers: handlers, scorer: sc, now: time.Now}
}

// WithClock overrides the orchestrator's time source, for deterministic tests.
func (o *Orchestrator) WithClock(clock Clock) *Orchestrator {
	o.now = clock
	return o
}

// Invoke walks retriever and its descendants, per §4.2. seen is the
// traversal-local set of already-invoked URIs; callers invoking the public
// entry point should pass a fresh empty map.
func (o *Orchestrator) Invoke(ctx context.Context, r *store.Retriever, depth int, tctx Context, seen map[string]bool) InvocationResult {
	var result InvocationResult

	if seen[r.URI] {
		return result
	}
	seen[r.URI] = true

	if !tctx.Deadline.IsZero() && o.now().After(tctx.Deadline) {
		result.Errors = append(result.Errors, errs.Wrap(errs.ErrFetch, "deadline exceeded before invoking "+r.URI, nil))
		return result
	}

	h, ok := o.handlers.ByType(r.HandlerType)
	if !ok {
		result.Errors = append(result.Errors, errs.Wrap(errs.ErrInvalidInput, "no handler registered for handler_type: "+r.HandlerType, nil))
		return result
	}

	results, err := h.Invoke(ctx, r)
	if err != nil {
		result.Errors = append(result.Errors, errs.Wrap(errs.ErrFetch, "invoke "+r.URI, err))
		// Per §4.2 step 3/4: invocation timestamp only advances on a
		// normal return, so a failed call leaves last_invoked_at as-is.
		return result
	}

	now := o.now()
	if err := o.store.TouchInvokedAt(ctx, r.ID, now); err != nil {
		result.Errors = append(result.Errors, errs.Wrap(errs.ErrFatal, "touch invoked_at for "+r.ID, err))
	}

	for _, res := range results {
		switch res.Kind {
		case retriever.ResultKindContent:
			result.Items = append(result.Items, *res.Item)
			if tctx.itemBudget != nil {
				tctx.itemBudget.Update(depth, 1)
			}
		case retriever.ResultKindRetriever:
			sub := res.Retriever
			if seen[sub.URI] {
				continue
			}
			parentID := r.ID
			sub.ParentID = &parentID
			sub.Depth = depth + 1

			persisted, created, err := o.store.UpsertRetrieverByURI(ctx, sub)
			if err != nil {
				result.Errors = append(result.Errors, errs.Wrap(errs.ErrFatal, "persist sub-retriever "+sub.URI, err))
				continue
			}
			if created {
				result.NewRetrievers = append(result.NewRetrievers, persisted)
			}

			if depth < tctx.MaxDepth && !tctx.budgetExhausted() {
				child := o.Invoke(ctx, persisted, depth+1, tctx, seen)
				result.merge(child)
			}
		}
	}

	return result
}

// InvokeForFeed clears the traversal seen-set, asks the scorer for a
// selection of up to ctx.Limit retrievers, and invokes each, merging
// results. This is the entry point behind the outward get_feed/
// invoke_for_feed operation.
func (o *Orchestrator) InvokeForFeed(ctx context.Context, tctx Context) (InvocationResult, error) {
	var result InvocationResult

	selection, err := o.scorer.SelectRetrievers(ctx, tctx.Limit, scorer.DefaultExploreRatio, scorer.DefaultMinExploitConfidence, tctx.IncludeDisabled)
	if err != nil {
		return result, errs.Wrap(errs.ErrFatal, "select retrievers", err)
	}

	if tctx.Limit > 0 {
		tctx.itemBudget = cache.NewFenwickTree(tctx.MaxDepth + 1)
	}

	seen := make(map[string]bool)
	candidates := append(append([]*store.Retriever{}, selection.Exploit...), selection.Explore...)
	for _, r := range candidates {
		if tctx.budgetExhausted() {
			break
		}
		child := o.Invoke(ctx, r, 0, tctx, seen)
		result.merge(child)
	}
	return result, nil
}
