package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/hpungsan/reqlens/internal/errors"
	"github.com/hpungsan/reqlens/internal/requirement"
)

// ErrUniqueConstraint is returned when a record with the same normalized text
// was already accepted for the document.
var ErrUniqueConstraint = &errors.ReqError{
	Code:    "UNIQUE_CONSTRAINT",
	Status:  409,
	Message: "unique constraint violation",
}

// ListFilters narrows ListRecords.
type ListFilters struct {
	DocumentID string
}

// InsertRecords stores accepted requirements in one transaction. Either all
// records are written or none are.
func InsertRecords(ctx context.Context, db *sql.DB, records []requirement.Record) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewInternal(err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO requirements (
			id, document_id, candidate_id, name, text, text_norm,
			confidence, score, classification, allocation, flags_json,
			source, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	for _, r := range records {
		var flagsJSON sql.NullString
		if len(r.Flags) > 0 {
			data, err := json.Marshal(r.Flags)
			if err != nil {
				return errors.NewInternal(err)
			}
			flagsJSON = sql.NullString{String: string(data), Valid: true}
		}

		_, err := tx.ExecContext(ctx, query,
			r.ID, r.DocumentID, r.CandidateID, r.Name, r.Text, requirement.NormalizedKey(r.Text),
			string(r.Confidence), r.Score, toNullString(optional(r.Classification)), toNullString(r.Allocation), flagsJSON,
			toNullString(optional(r.Source)), r.CreatedAt,
		)
		if err != nil {
			if isUniqueConstraintError(err) {
				return ErrUniqueConstraint
			}
			return errors.NewInternal(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// isUniqueConstraintError checks if the error is a SQLite UNIQUE constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// ListRecords returns accepted requirements newest first.
func ListRecords(ctx context.Context, db *sql.DB, f ListFilters) ([]requirement.Record, error) {
	query := `
		SELECT id, document_id, candidate_id, name, text, confidence, score,
			classification, allocation, flags_json, source, created_at
		FROM requirements
	`
	var args []any
	if f.DocumentID != "" {
		query += " WHERE document_id = ?"
		args = append(args, f.DocumentID)
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	records := []requirement.Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		records = append(records, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return records, nil
}

// PersistedTexts returns the text of every accepted requirement. Duplicate
// marking compares candidates against this set.
func PersistedTexts(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT text FROM requirements`)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var texts []string
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return nil, errors.NewInternal(err)
		}
		texts = append(texts, text)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return texts, nil
}

// DeleteRecord removes an accepted requirement.
func DeleteRecord(ctx context.Context, db *sql.DB, id string) error {
	result, err := db.ExecContext(ctx, `DELETE FROM requirements WHERE id = ?`, id)
	if err != nil {
		return errors.NewInternal(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if n == 0 {
		return errors.NewNotFound("requirement", id)
	}
	return nil
}

// scanRecord scans a single row into a Record.
func scanRecord(rows *sql.Rows) (*requirement.Record, error) {
	var (
		r              requirement.Record
		confidence     string
		classification sql.NullString
		allocation     sql.NullString
		flagsJSON      sql.NullString
		source         sql.NullString
	)

	err := rows.Scan(
		&r.ID, &r.DocumentID, &r.CandidateID, &r.Name, &r.Text, &confidence, &r.Score,
		&classification, &allocation, &flagsJSON, &source, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	r.Confidence = requirement.Confidence(confidence)
	r.Classification = classification.String
	r.Allocation = fromNullString(allocation)
	r.Source = source.String

	if flagsJSON.Valid && flagsJSON.String != "" {
		if err := json.Unmarshal([]byte(flagsJSON.String), &r.Flags); err != nil {
			return nil, err
		}
	}
	return &r, nil
}

// optional maps "" to nil.
func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// toNullString converts a *string to sql.NullString.
func toNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// fromNullString converts a sql.NullString to *string.
func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}
