package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/hpungsan/reqlens/internal/cache"
	"github.com/hpungsan/reqlens/internal/errors"
	"github.com/hpungsan/reqlens/internal/requirement"
)

// CacheStore is the SQLite-backed cache.Store. Entries survive restarts, so
// candidate edits made through one CLI invocation are seen by the next.
type CacheStore struct {
	db *sql.DB
}

var _ cache.Store = (*CacheStore)(nil)

// NewCacheStore wraps an initialized database.
func NewCacheStore(db *sql.DB) *CacheStore {
	return &CacheStore{db: db}
}

func (s *CacheStore) Get(ctx context.Context, documentID string) (*cache.Entry, error) {
	query := `
		SELECT signature, candidates_json, parser_mode, parser_error,
			external_available, updated_at
		FROM extraction_cache
		WHERE document_id = ?
	`

	var (
		e           cache.Entry
		candsJSON   string
		mode        string
		parserError sql.NullString
		updatedAt   int64
	)
	err := s.db.QueryRowContext(ctx, query, documentID).Scan(
		&e.Signature, &candsJSON, &mode, &parserError,
		&e.ExternalAvailable, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	if err := json.Unmarshal([]byte(candsJSON), &e.Candidates); err != nil {
		return nil, errors.NewInternal(err)
	}
	e.ParserMode = cache.ParserMode(mode)
	e.ParserError = parserError.String
	e.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return &e, nil
}

// Put upserts the entry; last write wins.
func (s *CacheStore) Put(ctx context.Context, documentID string, e cache.Entry) error {
	cands := e.Candidates
	if cands == nil {
		cands = []requirement.Candidate{}
	}
	data, err := json.Marshal(cands)
	if err != nil {
		return errors.NewInternal(err)
	}
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = time.Now()
	}

	query := `
		INSERT INTO extraction_cache (
			document_id, signature, candidates_json, parser_mode,
			parser_error, external_available, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(document_id) DO UPDATE SET
			signature = excluded.signature,
			candidates_json = excluded.candidates_json,
			parser_mode = excluded.parser_mode,
			parser_error = excluded.parser_error,
			external_available = excluded.external_available,
			updated_at = excluded.updated_at
	`
	parserError := sql.NullString{String: e.ParserError, Valid: e.ParserError != ""}
	_, err = s.db.ExecContext(ctx, query,
		documentID, e.Signature, string(data), string(e.ParserMode),
		parserError, e.ExternalAvailable, e.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

func (s *CacheStore) Delete(ctx context.Context, documentID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM extraction_cache WHERE document_id = ?`, documentID); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}
