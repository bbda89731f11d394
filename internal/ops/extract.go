package ops

import (
	"context"

	"github.com/hpungsan/reqlens/internal/db"
	"github.com/hpungsan/reqlens/internal/document"
	"github.com/hpungsan/reqlens/internal/errors"
	"github.com/hpungsan/reqlens/internal/extract"
	"github.com/hpungsan/reqlens/internal/requirement"
)

// ExtractInput contains parameters for the Extract operation.
type ExtractInput struct {
	Path string

	// Force skips the cache even when the document is unchanged
	Force bool
}

// ExtractOutput contains the result of the Extract operation.
type ExtractOutput struct {
	Document *document.Document `json:"document"`
	*extract.Result
}

// Extract runs the extraction pipeline for the document at path.
func Extract(ctx context.Context, env *Env, input ExtractInput) (*ExtractOutput, error) {
	doc, err := document.Load(input.Path)
	if err != nil {
		return nil, err
	}
	res, err := env.Extractor.Extract(ctx, doc, input.Force)
	if err != nil {
		return nil, err
	}
	return &ExtractOutput{Document: doc, Result: res}, nil
}

// ForgetInput contains parameters for the Forget operation.
type ForgetInput struct {
	Path string
}

// ForgetOutput contains the result of the Forget operation.
type ForgetOutput struct {
	DocumentID string `json:"document_id"`
	Cancelled  bool   `json:"cancelled"`
}

// Forget drops the cached candidates of a document and cancels any run in
// flight. The file does not need to exist any more.
func Forget(ctx context.Context, env *Env, input ForgetInput) (*ForgetOutput, error) {
	if input.Path == "" {
		return nil, errors.NewInvalidRequest("path is required")
	}
	id, err := document.IDForPath(input.Path)
	if err != nil {
		return nil, err
	}
	running := env.Extractor.Running(id)
	if err := env.Extractor.Forget(ctx, id); err != nil {
		return nil, errors.NewInternal(err)
	}
	return &ForgetOutput{DocumentID: id, Cancelled: running}, nil
}

// SelectInput contains parameters for the Select operation.
type SelectInput struct {
	Path        string
	CandidateID string
	Selected    bool
}

// CandidateOutput returns one candidate after a mutation.
type CandidateOutput struct {
	DocumentID string                `json:"document_id"`
	Candidate  requirement.Candidate `json:"candidate"`
}

// Select toggles a candidate's selected flag.
func Select(ctx context.Context, env *Env, input SelectInput) (*CandidateOutput, error) {
	_, res, err := workingSet(ctx, env, input.Path)
	if err != nil {
		return nil, err
	}
	idx, err := findCandidate(res.Candidates, input.CandidateID)
	if err != nil {
		return nil, err
	}
	c := &res.Candidates[idx]
	if c.Imported {
		return nil, errors.NewConflict("candidate " + c.ID + " is already accepted")
	}
	if c.Selected != input.Selected {
		c.Selected = input.Selected
		if err := save(ctx, env, res); err != nil {
			return nil, err
		}
	}
	return &CandidateOutput{DocumentID: res.DocumentID, Candidate: *c}, nil
}

// AddInput contains parameters for the Add operation.
type AddInput struct {
	Path string

	// Text is a sentence the user picked out of the document
	Text string
}

// Add creates a manual candidate from a user-selected sentence. It is
// scored like a paragraph, named and classified, and starts selected.
func Add(ctx context.Context, env *Env, input AddInput) (*CandidateOutput, error) {
	text := requirement.CollapseSpace(input.Text)
	if text == "" {
		return nil, errors.NewInvalidRequest("text is required")
	}

	_, res, err := workingSet(ctx, env, input.Path)
	if err != nil {
		return nil, err
	}
	key := requirement.NormalizedKey(text)
	for _, c := range res.Candidates {
		if requirement.NormalizedKey(c.Text) == key {
			return nil, errors.NewConflict("candidate " + c.ID + " already has this text")
		}
	}

	c := requirement.NewCandidate(text, requirement.OriginManual)
	scored, _ := requirement.ScoreBlock(requirement.TextBlock{Text: text, SectionType: requirement.SectionParagraph})
	c.Score = scored.Score
	c.Confidence = scored.Confidence
	c.Flags = requirement.UnionFlags(scored.Flags, []string{"manual"})
	c.Name = requirement.GenerateName(text)
	c.Classification = requirement.Classify(text, "")
	c.Selected = true

	res.Candidates = append(res.Candidates, c)
	persisted, err := db.PersistedTexts(ctx, env.DB)
	if err != nil {
		return nil, err
	}
	requirement.MarkDuplicates(res.Candidates, persisted)

	if err := save(ctx, env, res); err != nil {
		return nil, err
	}
	return &CandidateOutput{DocumentID: res.DocumentID, Candidate: res.Candidates[len(res.Candidates)-1]}, nil
}

// RemoveInput contains parameters for the Remove operation.
type RemoveInput struct {
	Path        string
	CandidateID string
}

// RemoveOutput contains the result of the Remove operation.
type RemoveOutput struct {
	DocumentID string `json:"document_id"`
	Removed    string `json:"removed"`
	Remaining  int    `json:"remaining"`
}

// Remove deletes a candidate from the document's working set. Accepted
// records are not affected.
func Remove(ctx context.Context, env *Env, input RemoveInput) (*RemoveOutput, error) {
	_, res, err := workingSet(ctx, env, input.Path)
	if err != nil {
		return nil, err
	}
	idx, err := findCandidate(res.Candidates, input.CandidateID)
	if err != nil {
		return nil, err
	}
	removed := res.Candidates[idx].ID
	res.Candidates = append(res.Candidates[:idx], res.Candidates[idx+1:]...)
	if err := save(ctx, env, res); err != nil {
		return nil, err
	}
	return &RemoveOutput{DocumentID: res.DocumentID, Removed: removed, Remaining: len(res.Candidates)}, nil
}
