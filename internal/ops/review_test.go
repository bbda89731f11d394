package ops

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/reqlens/internal/review"
)

func TestReview(t *testing.T) {
	ctx := context.Background()
	env, dir := testEnv(t)
	path := writeDoc(t, dir, "sow.txt", sowText)

	out, err := Review(ctx, env, ReviewInput{Path: path})
	require.NoError(t, err)
	assert.Equal(t, 3, out.Candidates)
	require.Len(t, out.Matches, 3)
	assert.Nil(t, out.Segments)
	assert.Empty(t, out.Text)

	text := sowText
	assert.Equal(t, pumpText, text[out.Matches[0].Start:out.Matches[0].End])
	for i := 1; i < len(out.Matches); i++ {
		assert.LessOrEqual(t, out.Matches[i-1].End, out.Matches[i].Start)
	}
}

func TestReview_Segments(t *testing.T) {
	ctx := context.Background()
	env, dir := testEnv(t)
	path := writeDoc(t, dir, "sow.txt", sowText)

	out, err := Review(ctx, env, ReviewInput{Path: path, Segments: true})
	require.NoError(t, err)
	assert.Equal(t, sowText, out.Text)

	var rebuilt strings.Builder
	matches := 0
	for _, s := range out.Segments {
		rebuilt.WriteString(s.Text)
		if s.Kind == review.SegmentMatch {
			matches++
			require.NotNil(t, s.Match)
		}
	}
	assert.Equal(t, sowText, rebuilt.String())
	assert.Equal(t, 3, matches)
}

func TestReview_NoCandidates(t *testing.T) {
	env, dir := testEnv(t)
	path := writeDoc(t, dir, "notes.txt", "Background\nThis describes context.\n")

	out, err := Review(context.Background(), env, ReviewInput{Path: path})
	require.NoError(t, err)
	assert.Equal(t, 0, out.Candidates)
	assert.NotNil(t, out.Matches)
	assert.Empty(t, out.Matches)
}
