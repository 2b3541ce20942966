// omnifeed - Adaptive Content Discovery and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/omnifeed

package modelregistry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tomtom215/omnifeed/internal/rank"
)

// TrainingSource supplies the labeled examples a named model trains on.
// Concrete implementations read Content, Encoding, and feedback out of the
// store; the registry itself never imports store directly so it stays
// usable in tests with a fake source.
type TrainingSource interface {
	LoadTrainingExamples(ctx context.Context) ([]rank.TrainingExample, error)
}

// entry is one named model: its training source, its objective and default
// flags, and the currently-cached (possibly untrained) instance.
type entry struct {
	name               string
	source             TrainingSource
	supportsObjectives bool
	isDefault          bool
	model              *rank.Model
}

// Registry holds named ranking models and dispatches an objective to
// whichever trained model serves it, per §4.7.
type Registry struct {
	mu          sync.RWMutex
	store       *DiskStore
	entries     map[string]*entry
	defaultName string
}

// New returns an empty Registry persisting snapshots under store.
func New(store *DiskStore) *Registry {
	return &Registry{store: store, entries: make(map[string]*entry)}
}

// Register adds a named model backed by source. isDefault marks the model
// used when no objective-specific model is trained.
func (r *Registry) Register(name string, source TrainingSource, supportsObjectives, isDefault bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[name] = &entry{name: name, source: source, supportsObjectives: supportsObjectives, isDefault: isDefault, model: rank.NewModel()}
	if isDefault {
		r.defaultName = name
	}
}

// LoadPersisted restores any previously trained snapshot for name from disk,
// leaving the cached model untrained if none exists.
func (r *Registry) LoadPersisted(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[name]
	if !ok {
		return fmt.Errorf("modelregistry: no model registered as %q", name)
	}
	snap, _, err := r.store.Load(name)
	if err != nil {
		return err
	}
	e.model = rank.RestoreModel(snap)
	return nil
}

// GetModelForObjective implements get_model_for_objective: an
// objective-capable trained model wins; otherwise the trained default; the
// final nil return tells the caller to fall back to source/cold-start priors.
func (r *Registry) GetModelForObjective(objective string) *rank.Model {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if objective != "" {
		for _, e := range r.entries {
			if e.supportsObjectives && e.model.Trained() {
				return e.model
			}
		}
	}
	if r.defaultName != "" {
		if e, ok := r.entries[r.defaultName]; ok && e.model.Trained() {
			return e.model
		}
	}
	return nil
}

// TrainModel builds a fresh model instance for name, trains it against its
// registered TrainingSource, and on success persists and swaps in the new
// instance. Training is always explicit; nothing here runs on a timer.
func (r *Registry) TrainModel(ctx context.Context, name string) error {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("modelregistry: no model registered as %q", name)
	}

	examples, err := e.source.LoadTrainingExamples(ctx)
	if err != nil {
		return fmt.Errorf("load training examples for %s: %w", name, err)
	}

	fresh := rank.NewModel()
	fresh.Train(examples)
	if !fresh.Trained() {
		return fmt.Errorf("modelregistry: training %s produced no usable model", name)
	}

	meta := SnapshotMetadata{TrainedAt: time.Now(), Examples: len(examples)}
	if err := r.store.Save(name, fresh.Snapshot(), meta); err != nil {
		return fmt.Errorf("persist trained model %s: %w", name, err)
	}

	r.mu.Lock()
	e.model = fresh
	r.mu.Unlock()
	return nil
}
