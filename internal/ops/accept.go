package ops

import (
	"context"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/hpungsan/reqlens/internal/db"
	"github.com/hpungsan/reqlens/internal/document"
	"github.com/hpungsan/reqlens/internal/errors"
	"github.com/hpungsan/reqlens/internal/requirement"
)

// AcceptInput contains parameters for the Accept operation.
type AcceptInput struct {
	Path string

	// CandidateIDs picks candidates explicitly; empty means every selected one
	CandidateIDs []string
}

// AcceptOutput contains the result of the Accept operation.
type AcceptOutput struct {
	DocumentID string               `json:"document_id"`
	Accepted   []requirement.Record `json:"accepted"`

	// Skipped lists candidates already accepted or duplicating a record
	Skipped []string `json:"skipped"`
}

// Accept turns candidates into requirement records. Accepted candidates
// are marked imported and become read-only. The batch is all or nothing.
func Accept(ctx context.Context, env *Env, input AcceptInput) (*AcceptOutput, error) {
	doc, res, err := workingSet(ctx, env, input.Path)
	if err != nil {
		return nil, err
	}

	var picked []int
	if len(input.CandidateIDs) > 0 {
		for _, id := range input.CandidateIDs {
			idx, err := findCandidate(res.Candidates, id)
			if err != nil {
				return nil, err
			}
			if !slices.Contains(picked, idx) {
				picked = append(picked, idx)
			}
		}
	} else {
		for i, c := range res.Candidates {
			if c.Selected {
				picked = append(picked, i)
			}
		}
	}
	if len(picked) == 0 {
		return nil, errors.NewInvalidRequest("no candidates selected")
	}

	out := &AcceptOutput{DocumentID: doc.ID, Accepted: []requirement.Record{}, Skipped: []string{}}
	var accepted []int
	for _, idx := range picked {
		c := res.Candidates[idx]
		if c.Imported || c.Duplicate {
			out.Skipped = append(out.Skipped, c.ID)
			continue
		}
		out.Accepted = append(out.Accepted, requirement.NewRecord(c, doc.ID, doc.Name))
		accepted = append(accepted, idx)
	}
	if len(accepted) == 0 {
		return out, nil
	}

	if err := db.InsertRecords(ctx, env.DB, out.Accepted); err != nil {
		return nil, err
	}
	for _, idx := range accepted {
		res.Candidates[idx].Imported = true
	}

	persisted, err := db.PersistedTexts(ctx, env.DB)
	if err != nil {
		return nil, err
	}
	requirement.MarkDuplicates(res.Candidates, persisted)
	if err := save(ctx, env, res); err != nil {
		return nil, err
	}

	env.Logger.Info("requirements accepted",
		zap.String("document", doc.Name), zap.Int("count", len(out.Accepted)))
	return out, nil
}

// ListInput contains parameters for the List operation.
type ListInput struct {
	// Path limits the listing to one document
	Path string
}

// ListOutput contains the result of the List operation.
type ListOutput struct {
	Records []requirement.Record `json:"records"`
	Count   int                  `json:"count"`
}

// List returns accepted requirement records, newest first.
func List(ctx context.Context, env *Env, input ListInput) (*ListOutput, error) {
	var filters db.ListFilters
	if strings.TrimSpace(input.Path) != "" {
		id, err := document.IDForPath(input.Path)
		if err != nil {
			return nil, err
		}
		filters.DocumentID = id
	}
	records, err := db.ListRecords(ctx, env.DB, filters)
	if err != nil {
		return nil, err
	}
	return &ListOutput{Records: records, Count: len(records)}, nil
}

// DeleteRecordInput contains parameters for the DeleteRecord operation.
type DeleteRecordInput struct {
	ID string
}

// DeleteRecordOutput contains the result of the DeleteRecord operation.
type DeleteRecordOutput struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

// DeleteRecord removes an accepted requirement. Candidates that matched it
// stop being duplicates on their next extraction or cache read.
func DeleteRecord(ctx context.Context, env *Env, input DeleteRecordInput) (*DeleteRecordOutput, error) {
	id := strings.TrimSpace(input.ID)
	if id == "" {
		return nil, errors.NewInvalidRequest("id is required")
	}
	if err := db.DeleteRecord(ctx, env.DB, id); err != nil {
		return nil, err
	}
	return &DeleteRecordOutput{ID: id, Deleted: true}, nil
}
