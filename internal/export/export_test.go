package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/reqlens/internal/errors"
	"github.com/hpungsan/reqlens/internal/requirement"
)

func sampleCandidates() []requirement.Candidate {
	return []requirement.Candidate{
		{
			ID:         "8f14e45f-ceea-467f-a0e6-2c7a2b3e0a11",
			Name:       "Pump Stop 2 Seconds",
			Text:       `The pump shall stop within 2 seconds, and report "fault".`,
			Confidence: requirement.ConfidenceHigh,
			Score:      0.7,
			Flags:      []string{"modal:shall", "numeric"},
		},
		{
			ID:         "c9f0f895-fb98-4b91-a0e6-9c3a1e2f0b22",
			Name:       "Valve Open",
			Text:       "The valve shall open.",
			Confidence: requirement.ConfidenceMedium,
			Score:      0.456,
			Duplicate:  true,
		},
	}
}

func TestCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatCSV, sampleCandidates(), "sow.md"))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, CSVHeader, rows[0])
	assert.Equal(t, []string{
		"REQ-001",
		"Pump Stop 2 Seconds",
		`The pump shall stop within 2 seconds, and report "fault".`,
		"high",
		"0.70",
		"modal:shall; numeric",
		"sow.md",
	}, rows[1])
	assert.Equal(t, "0.46", rows[2][4])
	assert.Equal(t, "", rows[2][5])
}

func TestJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatJSON, sampleCandidates(), "sow.md"))

	var doc Document
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "sow.md", doc.Source)
	require.Len(t, doc.Requirements, 2)
	assert.Equal(t, "8f14e45f-ceea-467f-a0e6-2c7a2b3e0a11", doc.Requirements[0].ID)
	assert.True(t, doc.Requirements[1].Duplicate)
	assert.Equal(t, "sow.md", doc.Requirements[1].Source)

	// nil flags serialize as an empty list
	assert.Contains(t, buf.String(), `"flags": []`)
}

func TestText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatText, sampleCandidates(), "ignored"))

	want := "REQ-001: Pump Stop 2 Seconds\n" +
		"The pump shall stop within 2 seconds, and report \"fault\".\n" +
		"\n" +
		"REQ-002: Valve Open\n" +
		"The valve shall open.\n"
	assert.Equal(t, want, buf.String())
}

func TestEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, CSV(&buf, nil, "x"))
	assert.Equal(t, "ID,Name,Full Text,Confidence,Score,Flags,Source\n", buf.String())

	buf.Reset()
	require.NoError(t, Text(&buf, nil))
	assert.Empty(t, buf.String())
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"CSV": FormatCSV, "json": FormatJSON, "txt": FormatText, " text ": FormatText} {
		got, err := ParseFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseFormat("xlsx")
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))
	assert.Equal(t, ".txt", FormatText.Extension())
}
