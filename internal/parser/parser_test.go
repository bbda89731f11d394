package parser

import (
	"context"
	"errors"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/hpungsan/reqlens/internal/requirement"
)

func shCommand(t *testing.T, script string) *Command {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("sidecar tests use sh")
	}
	return NewCommand([]string{"sh", "-c", script}, zaptest.NewLogger(t))
}

func TestNewRequest_DropsHeadings(t *testing.T) {
	blocks := requirement.Segment("3 Performance Requirements\nThe pump shall stop within 2 s.")
	req := NewRequest(blocks, "txt")

	require.Len(t, req.Blocks, 1)
	assert.Equal(t, requirement.SectionParagraph, req.Blocks[0].SectionType)
	assert.Equal(t, "txt", req.DocType)
}

func TestCommand_NotConfigured(t *testing.T) {
	c := NewCommand(nil, nil)
	assert.False(t, c.Available())

	_, err := c.Parse(context.Background(), Request{})
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestCommand_Parse(t *testing.T) {
	c := shCommand(t, `read line; echo "$line" | grep -q '"doc_type":"md"' || exit 3; `+
		`echo '{"results":[{"sentence":"The pump shall stop.","name":"Pump Stop","score":0.8,"confidence":"high","classification":"system","flags":["strong_modality"]}],"spacy_available":false}'`)

	resp, err := c.Parse(context.Background(), Request{DocType: "md"})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.False(t, resp.SpacyAvailable)

	cands := resp.Candidates()
	require.Len(t, cands, 1)
	assert.Equal(t, "Pump Stop", cands[0].Name)
	assert.Equal(t, 0.8, cands[0].Score)
	assert.Equal(t, requirement.ConfidenceHigh, cands[0].Confidence)
	assert.Equal(t, requirement.OriginParser, cands[0].Origin)
	assert.Equal(t, []string{"strong_modality"}, cands[0].Flags)
}

func TestCommand_ErrorField(t *testing.T) {
	c := shCommand(t, `cat >/dev/null; echo '{"error":"JSON parse error"}'`)

	resp, err := c.Parse(context.Background(), Request{})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, "JSON parse error", resp.Error)
}

func TestCommand_ProcessFailure(t *testing.T) {
	c := shCommand(t, `cat >/dev/null; echo boom >&2; exit 1`)

	_, err := c.Parse(context.Background(), Request{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnavailable))
	assert.Contains(t, err.Error(), "boom")
}

func TestCommand_Cancelled(t *testing.T) {
	c := shCommand(t, `sleep 5`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Parse(ctx, Request{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestResponse_CandidatesDefaults(t *testing.T) {
	resp := Response{Results: []Result{
		{Sentence: "  The system shall log   events. "},
		{Sentence: "The contractor shall deliver reports.", Confidence: "LOW"},
		{Sentence: "   "},
	}}

	cands := resp.Candidates()
	require.Len(t, cands, 2)

	assert.Equal(t, "The system shall log events.", cands[0].Text)
	assert.Equal(t, requirement.MediumThreshold, cands[0].Score)
	assert.Equal(t, requirement.ConfidenceMedium, cands[0].Confidence)
	assert.Equal(t, requirement.ClassSystem, cands[0].Classification)
	assert.Equal(t, "Log Events", cands[0].Name)

	assert.Equal(t, 0.25, cands[1].Score)
	assert.Equal(t, requirement.ConfidenceLow, cands[1].Confidence)
	assert.Equal(t, requirement.ClassContractual, cands[1].Classification)
}
