package ops

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/reqlens/internal/allocate"
	"github.com/hpungsan/reqlens/internal/errors"
	"github.com/hpungsan/reqlens/internal/requirement"
)

func suggestionFor(t *testing.T, out *AllocateOutput, id string) allocate.Suggestion {
	t.Helper()
	for _, s := range out.Suggestions {
		if s.CandidateID == id {
			return s
		}
	}
	t.Fatalf("no suggestion for %s", id)
	return allocate.Suggestion{}
}

func TestAllocate_Heuristic(t *testing.T) {
	ctx := context.Background()
	env, dir := testEnv(t)
	path := writeDoc(t, dir, "sow.txt", sowText)

	ext, err := Extract(ctx, env, ExtractInput{Path: path})
	require.NoError(t, err)

	out, err := Allocate(ctx, env, AllocateInput{Path: path})
	require.NoError(t, err)
	assert.Equal(t, SourceHeuristic, out.Source)
	assert.Empty(t, out.AIError)
	assert.Len(t, out.Subsystems, 2)
	require.Len(t, out.Suggestions, 3)

	pump := suggestionFor(t, out, candidateByText(t, ext.Candidates, pumpText).ID)
	require.NotNil(t, pump.Allocation)
	assert.Equal(t, "Pump", *pump.Allocation)
	assert.Equal(t, allocate.RuleExplicit, pump.Rule)
	assert.Equal(t, requirement.ConfidenceHigh, pump.Confidence)

	motor := suggestionFor(t, out, candidateByText(t, ext.Candidates, motorText).ID)
	assert.Equal(t, allocate.RuleNewSubsystem, motor.Rule)
	assert.Equal(t, "Propulsion System", motor.NewSubsystemName)
	assert.Equal(t, allocate.SystemLevel, *motor.Allocation)
}

func TestAllocate_NoCatalog(t *testing.T) {
	ctx := context.Background()
	env, dir := testEnv(t)
	env.Config.SubsystemsFile = ""
	path := writeDoc(t, dir, "sow.txt", sowText)

	out, err := Allocate(ctx, env, AllocateInput{Path: path})
	require.NoError(t, err)
	assert.NotNil(t, out.Subsystems)
	for _, s := range out.Suggestions {
		assert.Equal(t, allocate.SystemLevel, *s.Allocation)
	}

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("subsystems: [unclosed"), 0o600))
	_, err = Allocate(ctx, env, AllocateInput{Path: path, SubsystemsFile: bad})
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest), "err = %v", err)
}

func TestAllocate_AIUnavailableFallsBack(t *testing.T) {
	ctx := context.Background()
	env, dir := testEnv(t)
	path := writeDoc(t, dir, "sow.txt", sowText)

	out, err := Allocate(ctx, env, AllocateInput{Path: path, UseAI: true})
	require.NoError(t, err)
	assert.Equal(t, SourceHeuristic, out.Source)
	assert.Equal(t, "no_api_key", out.AIError)
	assert.Len(t, out.Suggestions, 3)
}

func TestAllocate_AIFillsGapsHeuristically(t *testing.T) {
	ctx := context.Background()
	env, dir := testEnv(t)
	withAI(t, env, `{"results": [{"sentence": "The valve must open in under 5 seconds.", "allocation": "flight software", "confidence": "high", "rationale": "valve logic"}]}`)
	path := writeDoc(t, dir, "sow.txt", sowText)

	ext, err := Extract(ctx, env, ExtractInput{Path: path})
	require.NoError(t, err)

	out, err := Allocate(ctx, env, AllocateInput{Path: path, UseAI: true})
	require.NoError(t, err)
	assert.Equal(t, SourceAI, out.Source)
	require.Len(t, out.Suggestions, 3)

	valve := suggestionFor(t, out, candidateByText(t, ext.Candidates, valveText).ID)
	assert.Equal(t, allocate.RuleAI, valve.Rule)
	assert.Equal(t, "Flight Software", *valve.Allocation)
	assert.Equal(t, "valve logic", valve.Rationale)

	pump := suggestionFor(t, out, candidateByText(t, ext.Candidates, pumpText).ID)
	assert.Equal(t, allocate.RuleExplicit, pump.Rule)
}

func TestAllocate_AIFailureFallsBack(t *testing.T) {
	ctx := context.Background()
	env, dir := testEnv(t)
	withAI(t, env, "I cannot help with that.")
	path := writeDoc(t, dir, "sow.txt", sowText)

	out, err := Allocate(ctx, env, AllocateInput{Path: path, UseAI: true})
	require.NoError(t, err)
	assert.Equal(t, SourceHeuristic, out.Source)
	assert.NotEmpty(t, out.AIError)
	assert.Len(t, out.Suggestions, 3)
}

func TestApplyAllocation(t *testing.T) {
	ctx := context.Background()
	env, dir := testEnv(t)
	path := writeDoc(t, dir, "sow.txt", sowText)

	ext, err := Extract(ctx, env, ExtractInput{Path: path})
	require.NoError(t, err)
	pumpID := candidateByText(t, ext.Candidates, pumpText).ID

	out, err := ApplyAllocation(ctx, env, ApplyInput{Path: path, CandidateID: pumpID})
	require.NoError(t, err)
	require.NotNil(t, out.Candidate.Allocation)
	assert.Equal(t, "Pump", *out.Candidate.Allocation)
	assert.True(t, out.Candidate.HasFlag("allocation:explicit"))
	assert.Nil(t, out.Created)

	cached, err := Extract(ctx, env, ExtractInput{Path: path})
	require.NoError(t, err)
	assert.Equal(t, "Pump", *candidateByText(t, cached.Candidates, pumpText).Allocation)
}

func TestApplyAllocation_CreatesSubsystem(t *testing.T) {
	ctx := context.Background()
	env, dir := testEnv(t)
	path := writeDoc(t, dir, "sow.txt", sowText)

	ext, err := Extract(ctx, env, ExtractInput{Path: path})
	require.NoError(t, err)
	motorID := candidateByText(t, ext.Candidates, motorText).ID

	// without Create the hint is not applied
	out, err := ApplyAllocation(ctx, env, ApplyInput{Path: path, CandidateID: motorID})
	require.NoError(t, err)
	assert.Equal(t, allocate.SystemLevel, *out.Candidate.Allocation)
	assert.Nil(t, out.Created)

	out, err = ApplyAllocation(ctx, env, ApplyInput{Path: path, CandidateID: motorID, Create: true})
	require.NoError(t, err)
	require.NotNil(t, out.Created)
	assert.Equal(t, "Propulsion System", out.Created.Name)
	assert.Equal(t, "Propulsion System", *out.Candidate.Allocation)
	assert.True(t, out.Candidate.HasFlag("allocation:new-subsystem"))

	subs, err := allocate.LoadCatalog(env.Config.SubsystemsFile)
	require.NoError(t, err)
	_, ok := allocate.Find(subs, "propulsion system")
	assert.True(t, ok, "catalog = %+v", subs)
	assert.Len(t, subs, 3)
}

func TestApplyAllocation_RejectsBadAISubsystemName(t *testing.T) {
	ctx := context.Background()
	env, dir := testEnv(t)
	withAI(t, env, `{"results": [{"sentence": "The motor shall deliver 40 N of thrust.", "allocation": "System Level", "confidence": "medium", "new_subsystem_name": "thrust_controller"}]}`)
	path := writeDoc(t, dir, "sow.txt", sowText)

	ext, err := Extract(ctx, env, ExtractInput{Path: path})
	require.NoError(t, err)
	motorID := candidateByText(t, ext.Candidates, motorText).ID

	_, err = ApplyAllocation(ctx, env, ApplyInput{Path: path, CandidateID: motorID, Create: true, UseAI: true})
	assert.True(t, errors.Is(err, errors.ErrInvalidSubsystemName), "err = %v", err)

	subs, err := allocate.LoadCatalog(env.Config.SubsystemsFile)
	require.NoError(t, err)
	assert.Len(t, subs, 2)
}

func TestApplyAllocation_Manual(t *testing.T) {
	ctx := context.Background()
	env, dir := testEnv(t)
	path := writeDoc(t, dir, "sow.txt", sowText)

	ext, err := Extract(ctx, env, ExtractInput{Path: path})
	require.NoError(t, err)
	valveID := candidateByText(t, ext.Candidates, valveText).ID

	name := "flight software"
	out, err := ApplyAllocation(ctx, env, ApplyInput{Path: path, CandidateID: valveID, Allocation: &name})
	require.NoError(t, err)
	assert.Equal(t, "Flight Software", *out.Candidate.Allocation)

	system := "system level"
	out, err = ApplyAllocation(ctx, env, ApplyInput{Path: path, CandidateID: valveID, Allocation: &system})
	require.NoError(t, err)
	assert.Equal(t, allocate.SystemLevel, *out.Candidate.Allocation)

	empty := ""
	out, err = ApplyAllocation(ctx, env, ApplyInput{Path: path, CandidateID: valveID, Allocation: &empty})
	require.NoError(t, err)
	assert.Nil(t, out.Candidate.Allocation)

	unknown := "Hydraulics"
	_, err = ApplyAllocation(ctx, env, ApplyInput{Path: path, CandidateID: valveID, Allocation: &unknown})
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestApplyAllocation_CreateNeedsCatalog(t *testing.T) {
	ctx := context.Background()
	env, dir := testEnv(t)
	env.Config.SubsystemsFile = ""
	path := writeDoc(t, dir, "sow.txt", sowText)

	ext, err := Extract(ctx, env, ExtractInput{Path: path})
	require.NoError(t, err)
	motorID := candidateByText(t, ext.Candidates, motorText).ID

	_, err = ApplyAllocation(ctx, env, ApplyInput{Path: path, CandidateID: motorID, Create: true})
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest), "err = %v", err)
}
