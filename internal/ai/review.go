package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hpungsan/reqlens/internal/allocate"
	"github.com/hpungsan/reqlens/internal/requirement"
)

// Request limits for the two review calls.
const (
	MaxAllocationCandidates = 120
	MaxAllocationSubsystems = 40

	reviewMaxTokens   = 2048
	allocateMaxTokens = 3072
)

const qualitySystemPrompt = `You review extracted system requirements for quality (IEEE 29148).
Never rewrite the requirement sentence. Improve only the short name.

Names: 3-7 words in Title Case built from the subject and its constraint or action,
for example "Uplink Data Rate 100 Mbps" or "Battery Reserve 72 Hour Minimum".
Reject filler such as "System Requirement" or "Performance Requirement".
Keep the current name when it is already specific.

Flags (any that apply): ambiguous, compound_shall, missing_measurement,
missing_verification_method, hedge_word, passive_voice, implicit_subject,
testable, performance, interface, safety, security.

Classification: system | contractual | verification | interface | constraint | unknown.

Reply with only this JSON object:
{"results":[{"id":"...","sentence":"...","name":"...","confidence":"high|medium|low","classification":"...","flags":["..."],"review_priority":"high|medium|low"}]}`

const allocationSystemPrompt = `You allocate requirements to physical or domain subsystems of a system architecture.
Subsystems are hardware units, major domain components or engineering disciplines
(Flight Controller, Power Distribution, GPS Receiver, Ground Control Station).
They are never software functions such as lock_account or user_authentication.

Rules:
1. Pick one subsystem from the provided list by its exact name, or "System Level".
2. Use "System Level" for cross-cutting, contractual or project-wide requirements.
3. When nothing listed fits but the requirement clearly belongs to one subsystem,
   keep "System Level" and set new_subsystem_name to a concise physical subsystem name.

Reply with only this JSON object:
{"results":[{"id":"...","sentence":"...","allocation":"System Level|<exact name>","confidence":"high|medium|low","rationale":"...","new_subsystem_name":"optional"}]}`

type qualityInput struct {
	ID             string   `json:"id"`
	Sentence       string   `json:"sentence"`
	Name           string   `json:"name"`
	Confidence     string   `json:"confidence"`
	Classification string   `json:"classification"`
	Flags          []string `json:"flags"`
	Score          float64  `json:"score"`
}

// QualityReview sends the weakest candidates to the model and returns
// normalized updates for requirement.ApplyReview.
func (c *Client) QualityReview(ctx context.Context, cands []requirement.Candidate, docType, docName string) ([]requirement.ReviewUpdate, error) {
	if !c.Available() {
		return nil, ErrNoAPIKey
	}
	picked := requirement.SelectForQualityReview(cands)
	if len(picked) == 0 {
		return nil, nil
	}

	in := make([]qualityInput, 0, len(picked))
	for _, p := range picked {
		in = append(in, qualityInput{
			ID:             p.ID,
			Sentence:       p.Text,
			Name:           p.Name,
			Confidence:     string(p.Confidence),
			Classification: p.Classification,
			Flags:          p.Flags,
			Score:          p.Score,
		})
	}
	payload, err := json.MarshalIndent(in, "", "  ")
	if err != nil {
		return nil, err
	}

	user := fmt.Sprintf("%s\nReview these extracted requirements and return the JSON object.\n\n%s", docHeader(docType, docName), payload)
	resp, err := c.Complete(ctx, "quality_review", []Message{
		{Role: "system", Content: qualitySystemPrompt},
		{Role: "user", Content: user},
	}, reviewMaxTokens)
	if err != nil {
		return nil, err
	}

	var out struct {
		Results []requirement.ReviewUpdate `json:"results"`
	}
	if err := decodeReply(resp.Content, &out); err != nil {
		return nil, fmt.Errorf("quality review: %w", err)
	}

	updates := make([]requirement.ReviewUpdate, 0, len(out.Results))
	for _, u := range out.Results {
		u.ID = strings.TrimSpace(u.ID)
		u.Sentence = strings.TrimSpace(u.Sentence)
		if u.Sentence == "" {
			continue
		}
		u.Name = strings.TrimSpace(u.Name)
		u.Confidence = normalizeTier(u.Confidence)
		u.ReviewPriority = normalizeTier(u.ReviewPriority)
		u.Classification = requirement.NormalizeClassification(u.Classification)
		u.Flags = cleanFlags(u.Flags)
		updates = append(updates, u)
	}
	return updates, nil
}

type allocationInput struct {
	ID             string `json:"id"`
	Sentence       string `json:"sentence"`
	Name           string `json:"name,omitempty"`
	Classification string `json:"classification,omitempty"`
}

type allocationResult struct {
	ID               string `json:"id"`
	Sentence         string `json:"sentence"`
	Allocation       string `json:"allocation"`
	Confidence       string `json:"confidence"`
	Rationale        string `json:"rationale"`
	NewSubsystemName string `json:"new_subsystem_name"`
}

// SuggestAllocations asks the model to allocate candidates to subsystems.
// Results are matched back to candidates by id, then by sentence; names
// outside subs resolve to allocate.SystemLevel.
func (c *Client) SuggestAllocations(ctx context.Context, cands []requirement.Candidate, subs []allocate.Subsystem, docType, docName string) ([]allocate.Suggestion, error) {
	if !c.Available() {
		return nil, ErrNoAPIKey
	}

	sent := cands[:min(len(cands), MaxAllocationCandidates)]
	if len(sent) == 0 {
		return nil, nil
	}
	subs = subs[:min(len(subs), MaxAllocationSubsystems)]

	in := make([]allocationInput, 0, len(sent))
	byID := make(map[string]bool, len(sent))
	byText := make(map[string]string, len(sent))
	for _, s := range sent {
		in = append(in, allocationInput{ID: s.ID, Sentence: s.Text, Name: s.Name, Classification: s.Classification})
		byID[s.ID] = true
		if key := requirement.NormalizedKey(s.Text); key != "" {
			if _, seen := byText[key]; !seen {
				byText[key] = s.ID
			}
		}
	}

	reqPayload, err := json.MarshalIndent(in, "", "  ")
	if err != nil {
		return nil, err
	}
	subsPayload, err := json.MarshalIndent(subs, "", "  ")
	if err != nil {
		return nil, err
	}

	user := fmt.Sprintf("%s\nSubsystems (use exact names):\n%s\n\nRequirements to allocate:\n%s",
		docHeader(docType, docName), subsPayload, reqPayload)
	resp, err := c.Complete(ctx, "allocate", []Message{
		{Role: "system", Content: allocationSystemPrompt},
		{Role: "user", Content: user},
	}, allocateMaxTokens)
	if err != nil {
		return nil, err
	}

	var out struct {
		Results []allocationResult `json:"results"`
	}
	if err := decodeReply(resp.Content, &out); err != nil {
		return nil, fmt.Errorf("allocation: %w", err)
	}

	suggestions := make([]allocate.Suggestion, 0, len(out.Results))
	seen := make(map[string]bool)
	for _, r := range out.Results {
		id := strings.TrimSpace(r.ID)
		if !byID[id] {
			id = byText[requirement.NormalizedKey(r.Sentence)]
		}
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true

		allocation := allocate.ResolveName(r.Allocation, subs)
		rationale := strings.TrimSpace(r.Rationale)
		if rationale == "" {
			rationale = "model suggestion"
		}
		conf, _ := requirement.ParseConfidence(normalizeTier(r.Confidence))
		suggestions = append(suggestions, allocate.Suggestion{
			CandidateID:      id,
			Allocation:       &allocation,
			Confidence:       conf,
			Rationale:        rationale,
			NewSubsystemName: allocate.CleanSubsystemName(r.NewSubsystemName),
			Rule:             allocate.RuleAI,
		})
	}
	return suggestions, nil
}

func docHeader(docType, docName string) string {
	if docType == "" {
		docType = "General"
	}
	if docName == "" {
		docName = "document"
	}
	return fmt.Sprintf("Document: %q (type: %s)", docName, docType)
}

func decodeReply(content string, v any) error {
	raw := ExtractJSON(content)
	if raw == "" {
		return fmt.Errorf("reply is not a JSON object: %s", truncate(strings.TrimSpace(content), 220))
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

// normalizeTier maps anything outside high/medium/low to medium.
func normalizeTier(s string) string {
	if c, ok := requirement.ParseConfidence(s); ok {
		return string(c)
	}
	return string(requirement.ConfidenceMedium)
}

func cleanFlags(flags []string) []string {
	var out []string
	for _, f := range flags {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
		if len(out) == requirement.MaxReviewFlags {
			break
		}
	}
	return out
}
