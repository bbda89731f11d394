package ai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/hpungsan/reqlens/internal/allocate"
	"github.com/hpungsan/reqlens/internal/metrics"
	"github.com/hpungsan/reqlens/internal/requirement"
)

// chatServer replies to chat completions with content, recording the last
// request body.
func chatServer(t *testing.T, content string, lastBody *string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		if lastBody != nil {
			*lastBody = string(body)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model":   "test",
			"choices": []map[string]any{{"message": map[string]string{"content": content}, "finish_reason": "stop"}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := NewClient(Options{
		Provider:          "ollama",
		BaseURL:           baseURL + "/v1",
		RequestsPerMinute: 6000,
		Logger:            zaptest.NewLogger(t),
		Metrics:           metrics.New(prometheus.NewRegistry()),
	})
	require.NoError(t, err)
	return c
}

func TestNewClient(t *testing.T) {
	c, err := NewClient(Options{})
	require.NoError(t, err)
	assert.False(t, c.Available())
	assert.Equal(t, "", c.ProviderName())

	_, err = NewClient(Options{Provider: "bogus"})
	assert.Error(t, err)

	c, err = NewClient(Options{Provider: "ollama"})
	require.NoError(t, err)
	assert.Equal(t, "llama3.1", c.model)
}

func TestComplete_Unavailable(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")

	var nilClient *Client
	_, err := nilClient.Complete(context.Background(), "x", nil, 0)
	assert.ErrorIs(t, err, ErrNoAPIKey)

	c, err := NewClient(Options{Provider: "anthropic"})
	require.NoError(t, err)
	_, err = c.QualityReview(context.Background(), []requirement.Candidate{{ID: "a"}}, "", "")
	assert.ErrorIs(t, err, ErrNoAPIKey)
	_, err = c.SuggestAllocations(context.Background(), []requirement.Candidate{{ID: "a"}}, nil, "", "")
	assert.ErrorIs(t, err, ErrNoAPIKey)
}

func TestComplete_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := testClient(t, srv.URL).Complete(context.Background(), "x", []Message{{Role: "user", Content: "hi"}}, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 503")
}

func TestComplete_ContextCancelled(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := testClient(t, srv.URL).Complete(ctx, "x", nil, 0)
	assert.Error(t, err)
	assert.Equal(t, int32(0), calls.Load())
}

func TestQualityReview(t *testing.T) {
	reply := "```json\n" + `{"results":[
		{"id":"c1","sentence":"The pump shall stop.","name":"Pump Emergency Stop","confidence":"HIGH","classification":"System","flags":[" compound_shall ",""],"review_priority":"urgent"},
		{"id":"","sentence":"  ","name":"ignored"}
	]}` + "\n```"
	var body string
	srv := chatServer(t, reply, &body)

	cands := []requirement.Candidate{
		{ID: "c1", Text: "The pump shall stop.", Name: "Pump Stop", Confidence: requirement.ConfidenceMedium},
		{ID: "c2", Text: "Imported one.", Imported: true},
	}
	updates, err := testClient(t, srv.URL).QualityReview(context.Background(), cands, "SOW", "sow.md")
	require.NoError(t, err)
	require.Len(t, updates, 1)

	u := updates[0]
	assert.Equal(t, "c1", u.ID)
	assert.Equal(t, "high", u.Confidence)
	assert.Equal(t, requirement.ClassSystem, u.Classification)
	assert.Equal(t, []string{"compound_shall"}, u.Flags)
	assert.Equal(t, "medium", u.ReviewPriority)

	assert.Contains(t, body, `Document: \"sow.md\" (type: SOW)`)
	assert.NotContains(t, body, "Imported one.")

	assert.Equal(t, 1, requirement.ApplyReview(cands, updates))
	assert.Equal(t, "Pump Emergency Stop", cands[0].Name)
	assert.Equal(t, requirement.ConfidenceHigh, cands[0].Confidence)
}

func TestQualityReview_NotJSON(t *testing.T) {
	srv := chatServer(t, "I cannot help with that.", nil)
	_, err := testClient(t, srv.URL).QualityReview(context.Background(), []requirement.Candidate{{ID: "c1", Text: "x"}}, "", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a JSON object")
}

func TestSuggestAllocations(t *testing.T) {
	reply := `{"results":[
		{"id":"c1","sentence":"The autopilot shall hold altitude.","allocation":"flight computer","confidence":"high","rationale":"autopilot"},
		{"id":"zz","sentence":"the  GPS shall fix.","allocation":"GPS","confidence":"?","new_subsystem_name":"GPS\nReceiver"},
		{"id":"c1","sentence":"duplicate","allocation":"Power"},
		{"id":"nope","sentence":"unknown sentence","allocation":"Power"}
	]}`
	var body string
	srv := chatServer(t, reply, &body)

	cands := []requirement.Candidate{
		{ID: "c1", Text: "The autopilot shall hold altitude."},
		{ID: "c2", Text: "The GPS shall fix."},
	}
	subs := []allocate.Subsystem{{Name: "Flight Computer"}, {Name: "Power"}}

	got, err := testClient(t, srv.URL).SuggestAllocations(context.Background(), cands, subs, "", "")
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "c1", got[0].CandidateID)
	assert.Equal(t, "Flight Computer", *got[0].Allocation)
	assert.Equal(t, requirement.ConfidenceHigh, got[0].Confidence)
	assert.Equal(t, allocate.RuleAI, got[0].Rule)

	assert.Equal(t, "c2", got[1].CandidateID)
	assert.Equal(t, allocate.SystemLevel, *got[1].Allocation)
	assert.Equal(t, requirement.ConfidenceMedium, got[1].Confidence)
	assert.Equal(t, "GPS Receiver", got[1].NewSubsystemName)
	assert.Equal(t, "model suggestion", got[1].Rationale)

	assert.True(t, strings.Contains(body, "Flight Computer"))
}

func TestSuggestAllocations_Caps(t *testing.T) {
	var body string
	srv := chatServer(t, `{"results":[]}`, &body)

	cands := make([]requirement.Candidate, MaxAllocationCandidates+5)
	for i := range cands {
		cands[i] = requirement.Candidate{ID: "id-" + strings.Repeat("x", i%3), Text: "t"}
	}
	subs := make([]allocate.Subsystem, MaxAllocationSubsystems+3)
	for i := range subs {
		subs[i] = allocate.Subsystem{Name: "S"}
	}

	_, err := testClient(t, srv.URL).SuggestAllocations(context.Background(), cands, subs, "", "")
	require.NoError(t, err)

	var req struct {
		Messages []Message `json:"messages"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &req))
	user := req.Messages[1].Content
	assert.Equal(t, MaxAllocationCandidates, strings.Count(user, `"sentence"`))
	assert.Equal(t, MaxAllocationSubsystems, strings.Count(user, `"name": "S"`))
}
