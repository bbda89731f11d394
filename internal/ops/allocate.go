package ops

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/hpungsan/reqlens/internal/allocate"
	"github.com/hpungsan/reqlens/internal/document"
	"github.com/hpungsan/reqlens/internal/errors"
	"github.com/hpungsan/reqlens/internal/requirement"
)

// Suggestion sources.
const (
	SourceHeuristic = "heuristic"
	SourceAI        = "ai"
)

// AllocateInput contains parameters for the Allocate operation.
type AllocateInput struct {
	Path string

	// SubsystemsFile overrides the configured catalog
	SubsystemsFile string

	// UseAI asks the AI reviewer first and falls back to heuristics
	UseAI bool
}

// AllocateOutput contains the result of the Allocate operation.
type AllocateOutput struct {
	DocumentID  string                `json:"document_id"`
	Source      string                `json:"source"`
	AIError     string                `json:"ai_error,omitempty"`
	Subsystems  []allocate.Subsystem  `json:"subsystems"`
	Suggestions []allocate.Suggestion `json:"suggestions"`
}

// Allocate proposes a subsystem for every candidate that is not yet
// accepted. When the AI reviewer is unavailable or fails, every suggestion
// comes from the heuristic engine; candidates the model skipped are filled
// in heuristically too.
func Allocate(ctx context.Context, env *Env, input AllocateInput) (*AllocateOutput, error) {
	doc, res, err := workingSet(ctx, env, input.Path)
	if err != nil {
		return nil, err
	}
	subs, _, err := loadSubsystems(env, input.SubsystemsFile)
	if err != nil {
		return nil, err
	}

	open := make([]requirement.Candidate, 0, len(res.Candidates))
	for _, c := range res.Candidates {
		if !c.Imported {
			open = append(open, c)
		}
	}

	out := &AllocateOutput{DocumentID: doc.ID, Source: SourceHeuristic, Subsystems: subs}
	if out.Subsystems == nil {
		out.Subsystems = []allocate.Subsystem{}
	}

	var fromAI map[string]allocate.Suggestion
	if input.UseAI {
		fromAI, out.AIError = env.suggestWithAI(ctx, doc, open, subs)
		if len(fromAI) > 0 {
			out.Source = SourceAI
		}
	}

	out.Suggestions = make([]allocate.Suggestion, 0, len(open))
	for _, c := range open {
		if s, ok := fromAI[c.ID]; ok {
			out.Suggestions = append(out.Suggestions, s)
			continue
		}
		out.Suggestions = append(out.Suggestions, env.Engine.Suggest(c, subs))
	}
	return out, nil
}

// suggestWithAI returns the model's suggestions keyed by candidate id, or
// the reason there are none.
func (env *Env) suggestWithAI(ctx context.Context, doc *document.Document, cands []requirement.Candidate, subs []allocate.Subsystem) (map[string]allocate.Suggestion, string) {
	if len(cands) == 0 {
		return nil, ""
	}
	suggestions, err := env.AI.SuggestAllocations(ctx, cands, subs, string(doc.Type), doc.Name)
	if err != nil {
		env.Logger.Warn("ai allocation failed, using heuristics",
			zap.String("document", doc.Name), zap.Error(err))
		return nil, err.Error()
	}
	byID := make(map[string]allocate.Suggestion, len(suggestions))
	for _, s := range suggestions {
		byID[s.CandidateID] = s
	}
	return byID, ""
}

// ApplyInput contains parameters for the ApplyAllocation operation.
type ApplyInput struct {
	Path        string
	CandidateID string

	// Allocation assigns a catalog subsystem (or System Level) directly
	// instead of computing a suggestion.
	Allocation *string

	// Create adds a proposed new subsystem to the catalog
	Create bool

	SubsystemsFile string
	UseAI          bool
}

// ApplyOutput contains the result of the ApplyAllocation operation.
type ApplyOutput struct {
	DocumentID string                `json:"document_id"`
	Candidate  requirement.Candidate `json:"candidate"`
	Suggestion allocate.Suggestion   `json:"suggestion"`

	// Created is the subsystem added to the catalog, if any
	Created *allocate.Subsystem `json:"created,omitempty"`
}

// ApplyAllocation merges an allocation into one candidate. Any new
// subsystem name must pass the subsystem-name sanity filter before it is
// written to the catalog.
func ApplyAllocation(ctx context.Context, env *Env, input ApplyInput) (*ApplyOutput, error) {
	doc, res, err := workingSet(ctx, env, input.Path)
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

	subs, catalogPath, err := loadSubsystems(env, input.SubsystemsFile)
	if err != nil {
		return nil, err
	}

	var s allocate.Suggestion
	if input.Allocation != nil {
		s, err = manualSuggestion(c.ID, *input.Allocation, subs)
		if err != nil {
			return nil, err
		}
	} else {
		s = env.Engine.Suggest(*c, subs)
		if input.UseAI {
			if fromAI, _ := env.suggestWithAI(ctx, doc, []requirement.Candidate{*c}, subs); len(fromAI) > 0 {
				if aiSug, ok := fromAI[c.ID]; ok {
					s = aiSug
				}
			}
		}
	}

	if input.Create && s.NewSubsystemName != "" && catalogPath == "" {
		return nil, errors.NewInvalidRequest("creating a subsystem needs a subsystems file")
	}

	created, err := allocate.Apply(c, s, subs, input.Create)
	if err != nil {
		return nil, err
	}
	if created != nil {
		updated, added := allocate.AddSubsystem(subs, *created)
		if added {
			if err := allocate.SaveCatalog(catalogPath, updated); err != nil {
				return nil, errors.NewInternal(err)
			}
			env.Logger.Info("subsystem created",
				zap.String("name", created.Name), zap.String("catalog", catalogPath))
		}
	}

	if err := save(ctx, env, res); err != nil {
		return nil, err
	}
	return &ApplyOutput{
		DocumentID: res.DocumentID,
		Candidate:  *c,
		Suggestion: s,
		Created:    created,
	}, nil
}

// manualSuggestion validates an operator-chosen allocation. An empty name
// clears the allocation.
func manualSuggestion(candidateID, name string, subs []allocate.Subsystem) (allocate.Suggestion, error) {
	s := allocate.Suggestion{
		CandidateID: candidateID,
		Confidence:  requirement.ConfidenceHigh,
		Rationale:   "manual",
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return s, nil
	}
	if requirement.NormalizedKey(name) == requirement.NormalizedKey(allocate.SystemLevel) {
		name = allocate.SystemLevel
	} else {
		sub, ok := allocate.Find(subs, name)
		if !ok {
			return s, errors.NewNotFound("subsystem", name)
		}
		name = sub.Name
	}
	s.Allocation = &name
	return s, nil
}
