package ops

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQualityReview_Unavailable(t *testing.T) {
	env, dir := testEnv(t)
	path := writeDoc(t, dir, "sow.txt", sowText)

	out, err := QualityReview(context.Background(), env, QualityInput{Path: path})
	require.NoError(t, err)
	assert.Equal(t, NoChanges, out.Message)
	assert.Equal(t, "no_api_key", out.AIError)
	assert.Zero(t, out.Changed)
}

func TestQualityReview_MergesUpdates(t *testing.T) {
	ctx := context.Background()
	env, dir := testEnv(t)
	withAI(t, env, "```json\n"+`{"results": [{"sentence": "The valve must open in under 5 seconds.", "name": "Valve Opening Time Limit", "confidence": "high", "classification": "constraint", "flags": ["testable"], "review_priority": "low"}]}`+"\n```")
	path := writeDoc(t, dir, "sow.txt", sowText)

	out, err := QualityReview(ctx, env, QualityInput{Path: path})
	require.NoError(t, err)
	assert.Positive(t, out.Reviewed)
	assert.Equal(t, 1, out.Changed)
	assert.Equal(t, "1 candidates updated", out.Message)
	assert.Empty(t, out.AIError)

	cached, err := Extract(ctx, env, ExtractInput{Path: path})
	require.NoError(t, err)
	valve := candidateByText(t, cached.Candidates, valveText)
	assert.Equal(t, "Valve Opening Time Limit", valve.Name)
	assert.Equal(t, "constraint", valve.Classification)
	assert.True(t, valve.HasFlag("testable"))
	assert.True(t, valve.HasFlag("review:low"))
}

func TestQualityReview_BadReplyIsNoChanges(t *testing.T) {
	env, dir := testEnv(t)
	withAI(t, env, "Sorry, I can't do that.")
	path := writeDoc(t, dir, "sow.txt", sowText)

	out, err := QualityReview(context.Background(), env, QualityInput{Path: path})
	require.NoError(t, err)
	assert.Equal(t, NoChanges, out.Message)
	assert.NotEmpty(t, out.AIError)
}
