// omnifeed - Adaptive Content Discovery and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/omnifeed

package duckdbstore

import (
	"context"
	"fmt"
	"time"
)

// schemaContext bounds DDL execution the same way ordinary queries are
// bounded, so a slow first-run schema creation can't hang startup forever.
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

// getTableCreationQueries returns every CREATE TABLE/INDEX statement that
// defines the store's schema. All columns live in the initial statement;
// there is no user base yet to migrate, so there is nothing for
// migrations.go's versioned path to do until after a first release.
func getTableCreationQueries() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS sources (
			id UUID PRIMARY KEY,
			source_type TEXT NOT NULL,
			uri TEXT NOT NULL,
			display_name TEXT,
			avatar_url TEXT,
			metadata JSON,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (source_type, uri)
		);`,

		`CREATE TABLE IF NOT EXISTS retrievers (
			id UUID PRIMARY KEY,
			display_name TEXT,
			kind TEXT NOT NULL,
			handler_type TEXT NOT NULL,
			uri TEXT NOT NULL UNIQUE,
			config JSON,
			poll_interval_seconds INTEGER NOT NULL DEFAULT 0,
			last_invoked_at TIMESTAMP,
			parent_id UUID,
			depth INTEGER NOT NULL DEFAULT 0,
			is_enabled BOOLEAN NOT NULL DEFAULT TRUE,
			score_value DOUBLE,
			score_confidence DOUBLE,
			score_sample_size INTEGER,
			score_last_updated TIMESTAMP
		);`,
		`CREATE INDEX IF NOT EXISTS idx_retrievers_parent ON retrievers(parent_id);`,

		`CREATE TABLE IF NOT EXISTS contents (
			id UUID PRIMARY KEY,
			source_id UUID,
			title TEXT,
			content_type TEXT,
			published_at TIMESTAMP,
			ingested_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			creator_ids JSON,
			consumption_type TEXT,
			canonical_ids JSON,
			seen BOOLEAN NOT NULL DEFAULT FALSE,
			hidden BOOLEAN NOT NULL DEFAULT FALSE,
			series_id TEXT,
			series_position INTEGER,
			metadata JSON,
			embeddings JSON
		);`,
		`CREATE INDEX IF NOT EXISTS idx_contents_source ON contents(source_id);`,

		`CREATE TABLE IF NOT EXISTS content_source_keys (
			source_id UUID NOT NULL,
			external_id TEXT NOT NULL,
			content_id UUID NOT NULL,
			PRIMARY KEY (source_id, external_id)
		);`,

		`CREATE TABLE IF NOT EXISTS content_canonical_ids (
			scheme TEXT NOT NULL,
			value TEXT NOT NULL,
			content_id UUID NOT NULL,
			PRIMARY KEY (scheme, value)
		);`,

		`CREATE TABLE IF NOT EXISTS encodings (
			id UUID PRIMARY KEY,
			content_id UUID NOT NULL,
			source_type TEXT NOT NULL,
			external_id TEXT NOT NULL,
			uri TEXT,
			media_type TEXT,
			metadata JSON,
			discovered_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			is_primary BOOLEAN NOT NULL DEFAULT FALSE,
			UNIQUE (source_type, external_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_encodings_content ON encodings(content_id);`,

		`CREATE TABLE IF NOT EXISTS creators (
			id UUID PRIMARY KEY,
			name TEXT,
			variants JSON,
			external_ids JSON,
			bio TEXT,
			url TEXT,
			avatar_url TEXT
		);`,

		`CREATE TABLE IF NOT EXISTS feedback_events (
			id UUID PRIMARY KEY,
			item_id TEXT NOT NULL,
			timestamp TIMESTAMP NOT NULL,
			event_type TEXT NOT NULL,
			payload JSON
		);`,
		`CREATE INDEX IF NOT EXISTS idx_feedback_events_timestamp ON feedback_events(timestamp);`,

		`CREATE TABLE IF NOT EXISTS explicit_feedback (
			id UUID PRIMARY KEY,
			content_id UUID NOT NULL,
			reward_score DOUBLE NOT NULL,
			selections JSON,
			notes TEXT,
			completed BOOLEAN,
			checkpoint TEXT,
			timestamp TIMESTAMP NOT NULL
		);`,

		`CREATE TABLE IF NOT EXISTS source_stats (
			source_id UUID PRIMARY KEY,
			avg_reward DOUBLE NOT NULL,
			click_rate DOUBLE NOT NULL,
			engagement DOUBLE NOT NULL,
			updated_at TIMESTAMP NOT NULL
		);`,
	}
}

// createTables runs every table/index creation statement in order.
func (s *Store) createTables() error {
	ctx, cancel := schemaContext()
	defer cancel()

	for _, query := range getTableCreationQueries() {
		if _, err := s.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("execute schema statement: %s: %w", query, err)
		}
	}
	return nil
}
