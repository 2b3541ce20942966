// omnifeed - Adaptive Content Discovery and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/omnifeed

// Package duckdbstore is the embedded-analytical-database backing of the
// store.Store contract. It keeps every mutation behind a single
// *sql.DB, mirroring memstore's upsert-preservation invariants in SQL
// instead of in a mutex-guarded map.
package duckdbstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/goccy/go-json"

	"github.com/tomtom215/omnifeed/internal/errs"
	"github.com/tomtom215/omnifeed/internal/store"
)

// Store is a *sql.DB-backed store.Store implementation over DuckDB.
type Store struct {
	conn *sql.DB
	ids  store.IDGenerator
}

// Open creates (if needed) the parent directory of path, opens a DuckDB
// connection, and ensures the schema exists. path may be ":memory:" for a
// transient, process-local database.
func Open(path string) (*Store, error) {
	return OpenWithIDs(path, store.UUIDGenerator{})
}

// OpenWithIDs is Open with an injectable IDGenerator, for deterministic
// test fixtures.
func OpenWithIDs(path string, ids store.IDGenerator) (*Store, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, errs.Wrap(errs.ErrFatal, "create database directory "+dir, err)
			}
		}
	}

	conn, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, errs.Wrap(errs.ErrFatal, "open duckdb", err)
	}
	conn.SetMaxOpenConns(runtime.NumCPU())
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(time.Hour)
	conn.SetConnMaxIdleTime(5 * time.Minute)

	s := &Store{conn: conn, ids: ids}
	if err := s.createTables(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.conn.Close()
}

func queryCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 30*time.Second)
}

// marshalJSON renders v as a JSON string, or an invalid NullString when v
// is nil/empty so the column stores SQL NULL instead of the literal "null".
func marshalJSON(v any) (sql.NullString, error) {
	if isEmptyJSONValue(v) {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshal json: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func isEmptyJSONValue(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case map[string]any:
		return len(t) == 0
	case map[string]string:
		return len(t) == 0
	case []string:
		return len(t) == 0
	case []store.Embedding:
		return len(t) == 0
	case map[string][]string:
		return len(t) == 0
	default:
		return false
	}
}

func unmarshalJSON(ns sql.NullString, out any) error {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(ns.String), out)
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

func nullTimePtr(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullStringPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return nullString(*s)
}

func nullIntPtr(i *int) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*i), Valid: true}
}

func nullBoolPtr(b *bool) sql.NullBool {
	if b == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *b, Valid: true}
}

// --- Sources -----------------------------------------------------------

func (s *Store) UpsertSource(ctx context.Context, in *store.Source) (*store.Source, error) {
	ctx, cancel := queryCtx(ctx)
	defer cancel()

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, errs.Wrap(errs.ErrFatal, "begin tx", err)
	}
	defer func() { _ = tx.Rollback() }()

	var existingID string
	var createdAt time.Time
	err = tx.QueryRowContext(ctx, `SELECT id, created_at FROM sources WHERE source_type = ? AND uri = ?`,
		in.SourceType, in.URI).Scan(&existingID, &createdAt)

	meta, merr := marshalJSON(in.Metadata)
	if merr != nil {
		return nil, merr
	}

	switch {
	case err == sql.ErrNoRows:
		id := in.ID
		if id == "" {
			id = s.ids.NewID()
		}
		createdAt = time.Now()
		if _, err := tx.ExecContext(ctx, `INSERT INTO sources (id, source_type, uri, display_name, avatar_url, metadata, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			id, in.SourceType, in.URI, in.DisplayName, in.AvatarURL, meta, createdAt); err != nil {
			return nil, errs.Wrap(errs.ErrFatal, "insert source", err)
		}
		if err := tx.Commit(); err != nil {
			return nil, errs.Wrap(errs.ErrFatal, "commit", err)
		}
		out := *in
		out.ID = id
		out.CreatedAt = createdAt
		return &out, nil
	case err != nil:
		return nil, errs.Wrap(errs.ErrFatal, "query source", err)
	default:
		if _, err := tx.ExecContext(ctx, `UPDATE sources SET display_name = ?, avatar_url = ?, metadata = ? WHERE id = ?`,
			in.DisplayName, in.AvatarURL, meta, existingID); err != nil {
			return nil, errs.Wrap(errs.ErrFatal, "update source", err)
		}
		if err := tx.Commit(); err != nil {
			return nil, errs.Wrap(errs.ErrFatal, "commit", err)
		}
		out := *in
		out.ID = existingID
		out.CreatedAt = createdAt
		return &out, nil
	}
}

func (s *Store) GetSource(ctx context.Context, id string) (*store.Source, error) {
	ctx, cancel := queryCtx(ctx)
	defer cancel()
	row := s.conn.QueryRowContext(ctx, `SELECT id, source_type, uri, display_name, avatar_url, metadata, created_at FROM sources WHERE id = ?`, id)
	return scanSource(row)
}

func (s *Store) GetSourceByURI(ctx context.Context, sourceType, uri string) (*store.Source, error) {
	ctx, cancel := queryCtx(ctx)
	defer cancel()
	row := s.conn.QueryRowContext(ctx, `SELECT id, source_type, uri, display_name, avatar_url, metadata, created_at FROM sources WHERE source_type = ? AND uri = ?`, sourceType, uri)
	return scanSource(row)
}

func scanSource(row *sql.Row) (*store.Source, error) {
	var out store.Source
	var avatar, meta sql.NullString
	if err := row.Scan(&out.ID, &out.SourceType, &out.URI, &out.DisplayName, &avatar, &meta, &out.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, errs.Wrap(errs.ErrInvalidInput, "source not found", nil)
		}
		return nil, errs.Wrap(errs.ErrFatal, "scan source", err)
	}
	out.AvatarURL = avatar.String
	if err := unmarshalJSON(meta, &out.Metadata); err != nil {
		return nil, errs.Wrap(errs.ErrParse, "unmarshal source metadata", err)
	}
	return &out, nil
}

// --- Retrievers ----------------------------------------------------------

func (s *Store) UpsertRetrieverByURI(ctx context.Context, in *store.Retriever) (*store.Retriever, bool, error) {
	ctx, cancel := queryCtx(ctx)
	defer cancel()

	var existingID string
	err := s.conn.QueryRowContext(ctx, `SELECT id FROM retrievers WHERE uri = ?`, in.URI).Scan(&existingID)
	if err == nil {
		existing, gerr := s.GetRetriever(ctx, existingID)
		if gerr != nil {
			return nil, false, gerr
		}
		return existing, false, nil
	}
	if err != sql.ErrNoRows {
		return nil, false, errs.Wrap(errs.ErrFatal, "query retriever", err)
	}

	cfg, merr := marshalJSON(in.Config)
	if merr != nil {
		return nil, false, merr
	}
	id := in.ID
	if id == "" {
		id = s.ids.NewID()
	}

	var scoreValue, scoreConfidence sql.NullFloat64
	var scoreSamples sql.NullInt64
	var scoreUpdated sql.NullTime
	if in.Score != nil {
		scoreValue = sql.NullFloat64{Float64: in.Score.Value, Valid: true}
		scoreConfidence = sql.NullFloat64{Float64: in.Score.Confidence, Valid: true}
		scoreSamples = sql.NullInt64{Int64: int64(in.Score.SampleSize), Valid: true}
		scoreUpdated = nullTime(in.Score.LastUpdated)
	}

	_, err = s.conn.ExecContext(ctx, `INSERT INTO retrievers
		(id, display_name, kind, handler_type, uri, config, poll_interval_seconds, last_invoked_at, parent_id, depth, is_enabled, score_value, score_confidence, score_sample_size, score_last_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, in.DisplayName, string(in.Kind), in.HandlerType, in.URI, cfg, in.PollIntervalSeconds,
		nullTimePtr(in.LastInvokedAt), nullStringPtr(in.ParentID), in.Depth, in.IsEnabled,
		scoreValue, scoreConfidence, scoreSamples, scoreUpdated)
	if err != nil {
		return nil, false, errs.Wrap(errs.ErrFatal, "insert retriever", err)
	}

	out := *in
	out.ID = id
	return &out, true, nil
}

func (s *Store) GetRetriever(ctx context.Context, id string) (*store.Retriever, error) {
	ctx, cancel := queryCtx(ctx)
	defer cancel()
	row := s.conn.QueryRowContext(ctx, retrieverSelectColumns+` WHERE id = ?`, id)
	return scanRetriever(row)
}

func (s *Store) GetRetrieverByURI(ctx context.Context, uri string) (*store.Retriever, error) {
	ctx, cancel := queryCtx(ctx)
	defer cancel()
	row := s.conn.QueryRowContext(ctx, retrieverSelectColumns+` WHERE uri = ?`, uri)
	return scanRetriever(row)
}

const retrieverSelectColumns = `SELECT id, display_name, kind, handler_type, uri, config, poll_interval_seconds,
	last_invoked_at, parent_id, depth, is_enabled, score_value, score_confidence, score_sample_size, score_last_updated
	FROM retrievers`

func scanRetriever(row *sql.Row) (*store.Retriever, error) {
	var out store.Retriever
	var kind, cfg sql.NullString
	var lastInvoked, scoreUpdated sql.NullTime
	var parentID sql.NullString
	var scoreValue, scoreConfidence sql.NullFloat64
	var scoreSamples sql.NullInt64

	if err := row.Scan(&out.ID, &out.DisplayName, &kind, &out.HandlerType, &out.URI, &cfg, &out.PollIntervalSeconds,
		&lastInvoked, &parentID, &out.Depth, &out.IsEnabled, &scoreValue, &scoreConfidence, &scoreSamples, &scoreUpdated); err != nil {
		if err == sql.ErrNoRows {
			return nil, errs.Wrap(errs.ErrInvalidInput, "retriever not found", nil)
		}
		return nil, errs.Wrap(errs.ErrFatal, "scan retriever", err)
	}
	out.Kind = store.RetrieverKind(kind.String)
	if err := unmarshalJSON(cfg, &out.Config); err != nil {
		return nil, errs.Wrap(errs.ErrParse, "unmarshal retriever config", err)
	}
	if lastInvoked.Valid {
		t := lastInvoked.Time
		out.LastInvokedAt = &t
	}
	if parentID.Valid {
		p := parentID.String
		out.ParentID = &p
	}
	if scoreValue.Valid {
		out.Score = &store.RetrieverScore{
			Value:       scoreValue.Float64,
			Confidence:  scoreConfidence.Float64,
			SampleSize:  int(scoreSamples.Int64),
			LastUpdated: scoreUpdated.Time,
		}
	}
	return &out, nil
}

func scanRetrieverRows(rows *sql.Rows) ([]*store.Retriever, error) {
	defer rows.Close()
	var out []*store.Retriever
	for rows.Next() {
		var r store.Retriever
		var kind, cfg sql.NullString
		var lastInvoked, scoreUpdated sql.NullTime
		var parentID sql.NullString
		var scoreValue, scoreConfidence sql.NullFloat64
		var scoreSamples sql.NullInt64

		if err := rows.Scan(&r.ID, &r.DisplayName, &kind, &r.HandlerType, &r.URI, &cfg, &r.PollIntervalSeconds,
			&lastInvoked, &parentID, &r.Depth, &r.IsEnabled, &scoreValue, &scoreConfidence, &scoreSamples, &scoreUpdated); err != nil {
			return nil, errs.Wrap(errs.ErrFatal, "scan retriever row", err)
		}
		r.Kind = store.RetrieverKind(kind.String)
		if err := unmarshalJSON(cfg, &r.Config); err != nil {
			return nil, errs.Wrap(errs.ErrParse, "unmarshal retriever config", err)
		}
		if lastInvoked.Valid {
			t := lastInvoked.Time
			r.LastInvokedAt = &t
		}
		if parentID.Valid {
			p := parentID.String
			r.ParentID = &p
		}
		if scoreValue.Valid {
			r.Score = &store.RetrieverScore{
				Value:       scoreValue.Float64,
				Confidence:  scoreConfidence.Float64,
				SampleSize:  int(scoreSamples.Int64),
				LastUpdated: scoreUpdated.Time,
			}
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

func (s *Store) ListChildren(ctx context.Context, parentID string) ([]*store.Retriever, error) {
	ctx, cancel := queryCtx(ctx)
	defer cancel()
	rows, err := s.conn.QueryContext(ctx, retrieverSelectColumns+` WHERE parent_id = ?`, parentID)
	if err != nil {
		return nil, errs.Wrap(errs.ErrFatal, "list children", err)
	}
	return scanRetrieverRows(rows)
}

func (s *Store) ListRetrievers(ctx context.Context) ([]*store.Retriever, error) {
	ctx, cancel := queryCtx(ctx)
	defer cancel()
	rows, err := s.conn.QueryContext(ctx, retrieverSelectColumns)
	if err != nil {
		return nil, errs.Wrap(errs.ErrFatal, "list retrievers", err)
	}
	return scanRetrieverRows(rows)
}

// ListNeedingPoll returns enabled POLL/HYBRID retrievers whose poll
// interval has elapsed (or that have never been invoked). The comparison
// is done in Go, not SQL, so it exactly matches memstore's semantics.
func (s *Store) ListNeedingPoll(ctx context.Context, now time.Time) ([]*store.Retriever, error) {
	all, err := s.ListRetrievers(ctx)
	if err != nil {
		return nil, err
	}
	var out []*store.Retriever
	for _, r := range all {
		if !r.IsEnabled || r.Kind == store.RetrieverKindExplore {
			continue
		}
		if r.LastInvokedAt == nil {
			out = append(out, r)
			continue
		}
		due := r.LastInvokedAt.Add(time.Duration(r.PollIntervalSeconds) * time.Second)
		if !now.Before(due) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Store) TouchInvokedAt(ctx context.Context, id string, at time.Time) error {
	ctx, cancel := queryCtx(ctx)
	defer cancel()
	res, err := s.conn.ExecContext(ctx, `UPDATE retrievers SET last_invoked_at = ? WHERE id = ?`, at, id)
	return checkRowsAffected(res, err, "retriever", id)
}

func (s *Store) SetRetrieverScore(ctx context.Context, id string, score store.RetrieverScore) error {
	ctx, cancel := queryCtx(ctx)
	defer cancel()
	res, err := s.conn.ExecContext(ctx, `UPDATE retrievers SET score_value = ?, score_confidence = ?, score_sample_size = ?, score_last_updated = ? WHERE id = ?`,
		score.Value, score.Confidence, score.SampleSize, score.LastUpdated, id)
	return checkRowsAffected(res, err, "retriever", id)
}

func (s *Store) SetRetrieverEnabled(ctx context.Context, id string, enabled bool) error {
	ctx, cancel := queryCtx(ctx)
	defer cancel()
	res, err := s.conn.ExecContext(ctx, `UPDATE retrievers SET is_enabled = ? WHERE id = ?`, enabled, id)
	return checkRowsAffected(res, err, "retriever", id)
}

func checkRowsAffected(res sql.Result, err error, entity, id string) error {
	if err != nil {
		return errs.Wrap(errs.ErrFatal, "update "+entity, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errs.Wrap(errs.ErrFatal, "rows affected", err)
	}
	if n == 0 {
		return errs.Wrap(errs.ErrInvalidInput, entity+" not found: "+id, nil)
	}
	return nil
}

// --- Contents ------------------------------------------------------------

func (s *Store) UpsertContentBySource(ctx context.Context, sourceID, externalID string, in *store.Content) (*store.Content, bool, error) {
	ctx, cancel := queryCtx(ctx)
	defer cancel()

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, errs.Wrap(errs.ErrFatal, "begin tx", err)
	}
	defer func() { _ = tx.Rollback() }()

	var existingContentID string
	err = tx.QueryRowContext(ctx, `SELECT content_id FROM content_source_keys WHERE source_id = ? AND external_id = ?`,
		sourceID, externalID).Scan(&existingContentID)

	creatorIDs, cerr := marshalJSON(in.CreatorIDs)
	if cerr != nil {
		return nil, false, cerr
	}
	canon, cerr := marshalJSON(in.CanonicalIDs)
	if cerr != nil {
		return nil, false, cerr
	}
	meta, cerr := marshalJSON(in.Metadata)
	if cerr != nil {
		return nil, false, cerr
	}
	embeds, cerr := marshalJSON(in.Embeddings)
	if cerr != nil {
		return nil, false, cerr
	}

	switch {
	case err == sql.ErrNoRows:
		id := in.ID
		if id == "" {
			id = s.ids.NewID()
		}
		ingestedAt := in.IngestedAt
		if ingestedAt.IsZero() {
			ingestedAt = time.Now()
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO contents
			(id, source_id, title, content_type, published_at, ingested_at, creator_ids, consumption_type, canonical_ids, seen, hidden, series_id, series_position, metadata, embeddings)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, sourceID, in.Title, string(in.ContentType), nullTimePtr(in.PublishedAt), ingestedAt,
			creatorIDs, string(in.ConsumptionType), canon, in.Seen, in.Hidden,
			nullStringPtr(in.SeriesID), nullIntPtr(in.SeriesPosition), meta, embeds); err != nil {
			return nil, false, errs.Wrap(errs.ErrFatal, "insert content", err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO content_source_keys (source_id, external_id, content_id) VALUES (?, ?, ?)`,
			sourceID, externalID, id); err != nil {
			return nil, false, errs.Wrap(errs.ErrFatal, "insert content source key", err)
		}
		for scheme, value := range in.CanonicalIDs {
			if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO content_canonical_ids (scheme, value, content_id) VALUES (?, ?, ?)`,
				scheme, value, id); err != nil {
				return nil, false, errs.Wrap(errs.ErrFatal, "insert canonical id", err)
			}
		}
		if err := tx.Commit(); err != nil {
			return nil, false, errs.Wrap(errs.ErrFatal, "commit", err)
		}
		out := *in
		out.ID = id
		out.SourceID = sourceID
		out.IngestedAt = ingestedAt
		return &out, true, nil

	case err != nil:
		return nil, false, errs.Wrap(errs.ErrFatal, "query content source key", err)

	default:
		var existingSeen, existingHidden bool
		var existingIngestedAt time.Time
		var existingSourceID string
		if err := tx.QueryRowContext(ctx, `SELECT source_id, ingested_at, seen, hidden FROM contents WHERE id = ?`, existingContentID).
			Scan(&existingSourceID, &existingIngestedAt, &existingSeen, &existingHidden); err != nil {
			return nil, false, errs.Wrap(errs.ErrFatal, "load existing content", err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE contents SET title = ?, content_type = ?, published_at = ?, creator_ids = ?, consumption_type = ?, canonical_ids = ?, series_id = ?, series_position = ?, metadata = ?, embeddings = ? WHERE id = ?`,
			in.Title, string(in.ContentType), nullTimePtr(in.PublishedAt), creatorIDs, string(in.ConsumptionType), canon,
			nullStringPtr(in.SeriesID), nullIntPtr(in.SeriesPosition), meta, embeds, existingContentID); err != nil {
			return nil, false, errs.Wrap(errs.ErrFatal, "update content", err)
		}
		for scheme, value := range in.CanonicalIDs {
			if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO content_canonical_ids (scheme, value, content_id) VALUES (?, ?, ?)`,
				scheme, value, existingContentID); err != nil {
				return nil, false, errs.Wrap(errs.ErrFatal, "update canonical id", err)
			}
		}
		if err := tx.Commit(); err != nil {
			return nil, false, errs.Wrap(errs.ErrFatal, "commit", err)
		}
		out := *in
		out.ID = existingContentID
		out.SourceID = existingSourceID
		out.IngestedAt = existingIngestedAt
		out.Seen = existingSeen
		out.Hidden = existingHidden
		return &out, false, nil
	}
}

const contentSelectColumns = `SELECT id, source_id, title, content_type, published_at, ingested_at, creator_ids, consumption_type, canonical_ids, seen, hidden, series_id, series_position, metadata, embeddings FROM contents`

func (s *Store) GetContent(ctx context.Context, id string) (*store.Content, error) {
	ctx, cancel := queryCtx(ctx)
	defer cancel()
	row := s.conn.QueryRowContext(ctx, contentSelectColumns+` WHERE id = ?`, id)
	return scanContent(row)
}

func (s *Store) GetContentByCanonicalID(ctx context.Context, scheme, value string) (*store.Content, error) {
	ctx, cancel := queryCtx(ctx)
	defer cancel()
	var contentID string
	if err := s.conn.QueryRowContext(ctx, `SELECT content_id FROM content_canonical_ids WHERE scheme = ? AND value = ?`, scheme, value).Scan(&contentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, errs.Wrap(errs.ErrInvalidInput, "content not found for "+scheme+":"+value, nil)
		}
		return nil, errs.Wrap(errs.ErrFatal, "query canonical id", err)
	}
	return s.GetContent(ctx, contentID)
}

func scanContent(row *sql.Row) (*store.Content, error) {
	var c store.Content
	var sourceID, contentType, consumptionType, seriesID sql.NullString
	var publishedAt sql.NullTime
	var seriesPosition sql.NullInt64
	var creatorIDs, canon, meta, embeds sql.NullString

	if err := row.Scan(&c.ID, &sourceID, &c.Title, &contentType, &publishedAt, &c.IngestedAt,
		&creatorIDs, &consumptionType, &canon, &c.Seen, &c.Hidden, &seriesID, &seriesPosition, &meta, &embeds); err != nil {
		if err == sql.ErrNoRows {
			return nil, errs.Wrap(errs.ErrInvalidInput, "content not found", nil)
		}
		return nil, errs.Wrap(errs.ErrFatal, "scan content", err)
	}
	c.SourceID = sourceID.String
	c.ContentType = store.ContentType(contentType.String)
	c.ConsumptionType = store.ConsumptionType(consumptionType.String)
	if publishedAt.Valid {
		t := publishedAt.Time
		c.PublishedAt = &t
	}
	if seriesID.Valid {
		v := seriesID.String
		c.SeriesID = &v
	}
	if seriesPosition.Valid {
		v := int(seriesPosition.Int64)
		c.SeriesPosition = &v
	}
	if err := unmarshalJSON(creatorIDs, &c.CreatorIDs); err != nil {
		return nil, errs.Wrap(errs.ErrParse, "unmarshal creator ids", err)
	}
	if err := unmarshalJSON(canon, &c.CanonicalIDs); err != nil {
		return nil, errs.Wrap(errs.ErrParse, "unmarshal canonical ids", err)
	}
	if err := unmarshalJSON(meta, &c.Metadata); err != nil {
		return nil, errs.Wrap(errs.ErrParse, "unmarshal content metadata", err)
	}
	if err := unmarshalJSON(embeds, &c.Embeddings); err != nil {
		return nil, errs.Wrap(errs.ErrParse, "unmarshal content embeddings", err)
	}
	return &c, nil
}

func (s *Store) MarkSeen(ctx context.Context, id string) error {
	ctx, cancel := queryCtx(ctx)
	defer cancel()
	res, err := s.conn.ExecContext(ctx, `UPDATE contents SET seen = TRUE WHERE id = ?`, id)
	return checkRowsAffected(res, err, "content", id)
}

func (s *Store) SetHidden(ctx context.Context, id string, hidden bool) error {
	ctx, cancel := queryCtx(ctx)
	defer cancel()
	res, err := s.conn.ExecContext(ctx, `UPDATE contents SET hidden = ? WHERE id = ?`, hidden, id)
	return checkRowsAffected(res, err, "content", id)
}

func (s *Store) ListContent(ctx context.Context, limit, offset int) ([]*store.Content, error) {
	ctx, cancel := queryCtx(ctx)
	defer cancel()
	query := contentSelectColumns + ` ORDER BY ingested_at DESC OFFSET ?`
	args := []any{offset}
	if limit > 0 {
		query = contentSelectColumns + ` ORDER BY ingested_at DESC LIMIT ? OFFSET ?`
		args = []any{limit, offset}
	}
	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errs.Wrap(errs.ErrFatal, "list content", err)
	}
	defer rows.Close()

	var out []*store.Content
	for rows.Next() {
		var c store.Content
		var sourceID, contentType, consumptionType, seriesID sql.NullString
		var publishedAt sql.NullTime
		var seriesPosition sql.NullInt64
		var creatorIDs, canon, meta, embeds sql.NullString
		if err := rows.Scan(&c.ID, &sourceID, &c.Title, &contentType, &publishedAt, &c.IngestedAt,
			&creatorIDs, &consumptionType, &canon, &c.Seen, &c.Hidden, &seriesID, &seriesPosition, &meta, &embeds); err != nil {
			return nil, errs.Wrap(errs.ErrFatal, "scan content row", err)
		}
		c.SourceID = sourceID.String
		c.ContentType = store.ContentType(contentType.String)
		c.ConsumptionType = store.ConsumptionType(consumptionType.String)
		if publishedAt.Valid {
			t := publishedAt.Time
			c.PublishedAt = &t
		}
		if seriesID.Valid {
			v := seriesID.String
			c.SeriesID = &v
		}
		if seriesPosition.Valid {
			v := int(seriesPosition.Int64)
			c.SeriesPosition = &v
		}
		if err := unmarshalJSON(creatorIDs, &c.CreatorIDs); err != nil {
			return nil, errs.Wrap(errs.ErrParse, "unmarshal creator ids", err)
		}
		if err := unmarshalJSON(canon, &c.CanonicalIDs); err != nil {
			return nil, errs.Wrap(errs.ErrParse, "unmarshal canonical ids", err)
		}
		if err := unmarshalJSON(meta, &c.Metadata); err != nil {
			return nil, errs.Wrap(errs.ErrParse, "unmarshal content metadata", err)
		}
		if err := unmarshalJSON(embeds, &c.Embeddings); err != nil {
			return nil, errs.Wrap(errs.ErrParse, "unmarshal content embeddings", err)
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

// --- Encodings -------------------------------------------------------------

func (s *Store) UpsertEncoding(ctx context.Context, in *store.Encoding) (*store.Encoding, bool, error) {
	ctx, cancel := queryCtx(ctx)
	defer cancel()

	var existingID string
	err := s.conn.QueryRowContext(ctx, `SELECT id FROM encodings WHERE source_type = ? AND external_id = ?`, in.SourceType, in.ExternalID).Scan(&existingID)
	if err == nil {
		return s.getEncodingByID(ctx, existingID, false)
	}
	if err != sql.ErrNoRows {
		return nil, false, errs.Wrap(errs.ErrFatal, "query encoding", err)
	}

	meta, merr := marshalJSON(in.Metadata)
	if merr != nil {
		return nil, false, merr
	}
	id := in.ID
	if id == "" {
		id = s.ids.NewID()
	}
	discoveredAt := in.DiscoveredAt
	if discoveredAt.IsZero() {
		discoveredAt = time.Now()
	}
	if _, err := s.conn.ExecContext(ctx, `INSERT INTO encodings (id, content_id, source_type, external_id, uri, media_type, metadata, discovered_at, is_primary)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, in.ContentID, in.SourceType, in.ExternalID, in.URI, nullStringPtr(in.MediaType), meta, discoveredAt, in.IsPrimary); err != nil {
		return nil, false, errs.Wrap(errs.ErrFatal, "insert encoding", err)
	}
	out := *in
	out.ID = id
	out.DiscoveredAt = discoveredAt
	return &out, true, nil
}

func (s *Store) getEncodingByID(ctx context.Context, id string, _ bool) (*store.Encoding, bool, error) {
	row := s.conn.QueryRowContext(ctx, encodingSelectColumns+` WHERE id = ?`, id)
	e, err := scanEncoding(row)
	if err != nil {
		return nil, false, err
	}
	return e, false, nil
}

const encodingSelectColumns = `SELECT id, content_id, source_type, external_id, uri, media_type, metadata, discovered_at, is_primary FROM encodings`

func scanEncoding(row *sql.Row) (*store.Encoding, error) {
	var e store.Encoding
	var uri, mediaType, meta sql.NullString
	if err := row.Scan(&e.ID, &e.ContentID, &e.SourceType, &e.ExternalID, &uri, &mediaType, &meta, &e.DiscoveredAt, &e.IsPrimary); err != nil {
		if err == sql.ErrNoRows {
			return nil, errs.Wrap(errs.ErrInvalidInput, "encoding not found", nil)
		}
		return nil, errs.Wrap(errs.ErrFatal, "scan encoding", err)
	}
	e.URI = uri.String
	if mediaType.Valid {
		v := mediaType.String
		e.MediaType = &v
	}
	if err := unmarshalJSON(meta, &e.Metadata); err != nil {
		return nil, errs.Wrap(errs.ErrParse, "unmarshal encoding metadata", err)
	}
	return &e, nil
}

func (s *Store) GetEncodingBySource(ctx context.Context, sourceType, externalID string) (*store.Encoding, error) {
	ctx, cancel := queryCtx(ctx)
	defer cancel()
	row := s.conn.QueryRowContext(ctx, encodingSelectColumns+` WHERE source_type = ? AND external_id = ?`, sourceType, externalID)
	return scanEncoding(row)
}

func (s *Store) ListEncodingsByContent(ctx context.Context, contentID string) ([]*store.Encoding, error) {
	ctx, cancel := queryCtx(ctx)
	defer cancel()
	rows, err := s.conn.QueryContext(ctx, encodingSelectColumns+` WHERE content_id = ?`, contentID)
	if err != nil {
		return nil, errs.Wrap(errs.ErrFatal, "list encodings", err)
	}
	defer rows.Close()

	var out []*store.Encoding
	for rows.Next() {
		var e store.Encoding
		var uri, mediaType, meta sql.NullString
		if err := rows.Scan(&e.ID, &e.ContentID, &e.SourceType, &e.ExternalID, &uri, &mediaType, &meta, &e.DiscoveredAt, &e.IsPrimary); err != nil {
			return nil, errs.Wrap(errs.ErrFatal, "scan encoding row", err)
		}
		e.URI = uri.String
		if mediaType.Valid {
			v := mediaType.String
			e.MediaType = &v
		}
		if err := unmarshalJSON(meta, &e.Metadata); err != nil {
			return nil, errs.Wrap(errs.ErrParse, "unmarshal encoding metadata", err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

// --- Creators --------------------------------------------------------------

func (s *Store) UpsertCreator(ctx context.Context, in *store.Creator) (*store.Creator, error) {
	ctx, cancel := queryCtx(ctx)
	defer cancel()

	variants, err := marshalJSON(in.Variants)
	if err != nil {
		return nil, err
	}
	extIDs, err := marshalJSON(in.ExternalIDs)
	if err != nil {
		return nil, err
	}
	id := in.ID
	if id == "" {
		id = s.ids.NewID()
	}
	if _, err := s.conn.ExecContext(ctx, `INSERT INTO creators (id, name, variants, external_ids, bio, url, avatar_url) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name, variants = excluded.variants, external_ids = excluded.external_ids, bio = excluded.bio, url = excluded.url, avatar_url = excluded.avatar_url`,
		id, in.Name, variants, extIDs, nullStringPtr(in.Bio), nullStringPtr(in.URL), nullStringPtr(in.AvatarURL)); err != nil {
		return nil, errs.Wrap(errs.ErrFatal, "upsert creator", err)
	}
	out := *in
	out.ID = id
	return &out, nil
}

func (s *Store) GetCreator(ctx context.Context, id string) (*store.Creator, error) {
	ctx, cancel := queryCtx(ctx)
	defer cancel()
	row := s.conn.QueryRowContext(ctx, `SELECT id, name, variants, external_ids, bio, url, avatar_url FROM creators WHERE id = ?`, id)
	var c store.Creator
	var variants, extIDs, bio, curl, avatar sql.NullString
	if err := row.Scan(&c.ID, &c.Name, &variants, &extIDs, &bio, &curl, &avatar); err != nil {
		if err == sql.ErrNoRows {
			return nil, errs.Wrap(errs.ErrInvalidInput, "creator not found: "+id, nil)
		}
		return nil, errs.Wrap(errs.ErrFatal, "scan creator", err)
	}
	if err := unmarshalJSON(variants, &c.Variants); err != nil {
		return nil, errs.Wrap(errs.ErrParse, "unmarshal creator variants", err)
	}
	if err := unmarshalJSON(extIDs, &c.ExternalIDs); err != nil {
		return nil, errs.Wrap(errs.ErrParse, "unmarshal creator external ids", err)
	}
	if bio.Valid {
		v := bio.String
		c.Bio = &v
	}
	if curl.Valid {
		v := curl.String
		c.URL = &v
	}
	if avatar.Valid {
		v := avatar.String
		c.AvatarURL = &v
	}
	return &c, nil
}

// --- Feedback ----------------------------------------------------------

func (s *Store) InsertFeedbackEvent(ctx context.Context, f *store.FeedbackEvent) error {
	ctx, cancel := queryCtx(ctx)
	defer cancel()
	payload, err := marshalJSON(f.Payload)
	if err != nil {
		return err
	}
	id := f.ID
	if id == "" {
		id = s.ids.NewID()
	}
	_, err = s.conn.ExecContext(ctx, `INSERT INTO feedback_events (id, item_id, timestamp, event_type, payload) VALUES (?, ?, ?, ?, ?)`,
		id, f.ItemID, f.Timestamp, f.EventType, payload)
	if err != nil {
		return errs.Wrap(errs.ErrFatal, "insert feedback event", err)
	}
	return nil
}

func (s *Store) InsertExplicitFeedback(ctx context.Context, f *store.ExplicitFeedback) error {
	ctx, cancel := queryCtx(ctx)
	defer cancel()
	selections, err := marshalJSON(f.Selections)
	if err != nil {
		return err
	}
	id := f.ID
	if id == "" {
		id = s.ids.NewID()
	}
	_, err = s.conn.ExecContext(ctx, `INSERT INTO explicit_feedback (id, content_id, reward_score, selections, notes, completed, checkpoint, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, f.ContentID, f.RewardScore, selections, nullStringPtr(f.Notes), nullBoolPtr(f.Completed), nullStringPtr(f.Checkpoint), f.Timestamp)
	if err != nil {
		return errs.Wrap(errs.ErrFatal, "insert explicit feedback", err)
	}
	return nil
}

func (s *Store) ListFeedbackEvents(ctx context.Context, since time.Time) ([]*store.FeedbackEvent, error) {
	ctx, cancel := queryCtx(ctx)
	defer cancel()
	rows, err := s.conn.QueryContext(ctx, `SELECT id, item_id, timestamp, event_type, payload FROM feedback_events WHERE timestamp > ? ORDER BY timestamp`, since)
	if err != nil {
		return nil, errs.Wrap(errs.ErrFatal, "list feedback events", err)
	}
	defer rows.Close()

	var out []*store.FeedbackEvent
	for rows.Next() {
		var f store.FeedbackEvent
		var payload sql.NullString
		if err := rows.Scan(&f.ID, &f.ItemID, &f.Timestamp, &f.EventType, &payload); err != nil {
			return nil, errs.Wrap(errs.ErrFatal, "scan feedback event", err)
		}
		if err := unmarshalJSON(payload, &f.Payload); err != nil {
			return nil, errs.Wrap(errs.ErrParse, "unmarshal feedback payload", err)
		}
		out = append(out, &f)
	}
	return out, rows.Err()
}

func (s *Store) ListExplicitFeedback(ctx context.Context) ([]*store.ExplicitFeedback, error) {
	ctx, cancel := queryCtx(ctx)
	defer cancel()
	rows, err := s.conn.QueryContext(ctx, `SELECT id, content_id, reward_score, selections, notes, completed, checkpoint, timestamp FROM explicit_feedback ORDER BY timestamp`)
	if err != nil {
		return nil, errs.Wrap(errs.ErrFatal, "list explicit feedback", err)
	}
	defer rows.Close()

	var out []*store.ExplicitFeedback
	for rows.Next() {
		var f store.ExplicitFeedback
		var selections sql.NullString
		var notes, checkpoint sql.NullString
		var completed sql.NullBool
		if err := rows.Scan(&f.ID, &f.ContentID, &f.RewardScore, &selections, &notes, &completed, &checkpoint, &f.Timestamp); err != nil {
			return nil, errs.Wrap(errs.ErrFatal, "scan explicit feedback", err)
		}
		if err := unmarshalJSON(selections, &f.Selections); err != nil {
			return nil, errs.Wrap(errs.ErrParse, "unmarshal feedback selections", err)
		}
		if notes.Valid {
			v := notes.String
			f.Notes = &v
		}
		if completed.Valid {
			v := completed.Bool
			f.Completed = &v
		}
		if checkpoint.Valid {
			v := checkpoint.String
			f.Checkpoint = &v
		}
		out = append(out, &f)
	}
	return out, rows.Err()
}

// --- Aggregates --------------------------------------------------------

func (s *Store) GetSourceStats(ctx context.Context, sourceID string) (store.SourceStats, error) {
	ctx, cancel := queryCtx(ctx)
	defer cancel()
	var st store.SourceStats
	err := s.conn.QueryRowContext(ctx, `SELECT source_id, avg_reward, click_rate, engagement, updated_at FROM source_stats WHERE source_id = ?`, sourceID).
		Scan(&st.SourceID, &st.AvgReward, &st.ClickRate, &st.Engagement, &st.UpdatedAt)
	if err == sql.ErrNoRows {
		return store.DefaultSourceStats(sourceID), nil
	}
	if err != nil {
		return store.SourceStats{}, errs.Wrap(errs.ErrFatal, "get source stats", err)
	}
	return st, nil
}

func (s *Store) UpsertSourceStats(ctx context.Context, st store.SourceStats) error {
	ctx, cancel := queryCtx(ctx)
	defer cancel()
	updatedAt := st.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	_, err := s.conn.ExecContext(ctx, `INSERT INTO source_stats (source_id, avg_reward, click_rate, engagement, updated_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (source_id) DO UPDATE SET avg_reward = excluded.avg_reward, click_rate = excluded.click_rate, engagement = excluded.engagement, updated_at = excluded.updated_at`,
		st.SourceID, st.AvgReward, st.ClickRate, st.Engagement, updatedAt)
	if err != nil {
		return errs.Wrap(errs.ErrFatal, "upsert source stats", err)
	}
	return nil
}

var _ store.Store = (*Store)(nil)
