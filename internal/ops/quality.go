package ops

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hpungsan/reqlens/internal/ai"
	"github.com/hpungsan/reqlens/internal/requirement"
)

// NoChanges is the QualityReview message when nothing was merged.
const NoChanges = "no changes"

// QualityInput contains parameters for the QualityReview operation.
type QualityInput struct {
	Path string
}

// QualityOutput contains the result of the QualityReview operation.
type QualityOutput struct {
	DocumentID string `json:"document_id"`
	Reviewed   int    `json:"reviewed"`
	Changed    int    `json:"changed"`
	Message    string `json:"message"`
	AIError    string `json:"ai_error,omitempty"`
}

// QualityReview runs the AI quality pass over the weakest candidates and
// merges its updates. An unavailable or failing reviewer is reported as
// "no changes", never as an error.
func QualityReview(ctx context.Context, env *Env, input QualityInput) (*QualityOutput, error) {
	doc, res, err := workingSet(ctx, env, input.Path)
	if err != nil {
		return nil, err
	}
	out := &QualityOutput{DocumentID: doc.ID, Message: NoChanges}

	if !env.AI.Available() {
		out.AIError = ai.ErrNoAPIKey.Error()
		return out, nil
	}
	out.Reviewed = len(requirement.SelectForQualityReview(res.Candidates))

	updates, err := env.AI.QualityReview(ctx, res.Candidates, string(doc.Type), doc.Name)
	if err != nil {
		env.Logger.Warn("quality review failed", zap.String("document", doc.Name), zap.Error(err))
		out.AIError = err.Error()
		return out, nil
	}

	out.Changed = requirement.ApplyReview(res.Candidates, updates)
	if out.Changed == 0 {
		return out, nil
	}
	if err := save(ctx, env, res); err != nil {
		return nil, err
	}
	out.Message = fmt.Sprintf("%d candidates updated", out.Changed)
	return out, nil
}
