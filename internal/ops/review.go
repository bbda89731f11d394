package ops

import (
	"context"

	"github.com/hpungsan/reqlens/internal/review"
)

// ReviewInput contains parameters for the Review operation.
type ReviewInput struct {
	Path string

	// Segments also returns the plain/match decomposition of the buffer
	Segments bool
}

// ReviewOutput contains the result of the Review operation.
type ReviewOutput struct {
	DocumentID string           `json:"document_id"`
	Name       string           `json:"name"`
	Candidates int              `json:"candidates"`
	Matches    []review.Match   `json:"matches"`
	Segments   []review.Segment `json:"segments,omitempty"`

	// Text is the buffer the offsets refer to; set with Segments
	Text string `json:"text,omitempty"`
}

// Review locates the document's candidates in its rendered text.
func Review(ctx context.Context, env *Env, input ReviewInput) (*ReviewOutput, error) {
	doc, res, err := workingSet(ctx, env, input.Path)
	if err != nil {
		return nil, err
	}

	out := &ReviewOutput{
		DocumentID: doc.ID,
		Name:       doc.Name,
		Candidates: len(res.Candidates),
	}
	if input.Segments {
		out.Matches, out.Segments = review.Decompose(doc.Text, res.Candidates)
		out.Text = doc.Text
	} else {
		out.Matches = review.FindMatches(doc.Text, res.Candidates)
	}
	if out.Matches == nil {
		out.Matches = []review.Match{}
	}
	return out, nil
}
