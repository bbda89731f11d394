// Package requirement holds the requirement-extraction data model together with
// the local, deterministic pipeline stages: block segmentation, heuristic
// scoring, classification and naming.
package requirement

import (
	"slices"
	"strings"

	"github.com/google/uuid"
)

// SectionType is the structural role of a TextBlock.
type SectionType string

const (
	SectionHeading   SectionType = "heading"
	SectionParagraph SectionType = "paragraph"
	SectionListItem  SectionType = "list_item"
)

// TextBlock is one structurally meaningful run of document text.
// Blocks are produced in document order and are never re-sorted.
type TextBlock struct {
	Text         string      `json:"text"`
	SectionTitle string      `json:"section_title"`
	SectionRef   string      `json:"section_ref"`
	SectionType  SectionType `json:"section_type"`
	LineIndex    int         `json:"line_index"`
}

// Confidence is the coarse tier attached to a candidate.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// ParseConfidence maps free-form confidence text onto a tier.
// Returns false when the text is not a known tier.
func ParseConfidence(s string) (Confidence, bool) {
	switch Confidence(strings.ToLower(strings.TrimSpace(s))) {
	case ConfidenceHigh:
		return ConfidenceHigh, true
	case ConfidenceMedium:
		return ConfidenceMedium, true
	case ConfidenceLow:
		return ConfidenceLow, true
	}
	return "", false
}

// Origin records which stage produced a candidate.
type Origin string

const (
	OriginHeuristic Origin = "heuristic"
	OriginParser    Origin = "parser"
	OriginManual    Origin = "manual"
)

// Candidate is a sentence that may be a formal requirement statement.
type Candidate struct {
	// ID is a random UUID assigned when the candidate is created
	ID string `json:"id"`

	// Text is the whitespace-normalized requirement sentence
	Text string `json:"text"`

	// Name is a short Title Case label
	Name string `json:"name"`

	// Score is the requirement likelihood in [0,1]
	Score float64 `json:"score"`

	Confidence     Confidence `json:"confidence"`
	Classification string     `json:"classification,omitempty"`

	// Flags is a sorted set of scoring and review tags
	Flags []string `json:"flags"`

	// Duplicate is true when the normalized text matches an accepted requirement
	Duplicate bool `json:"duplicate"`

	// Imported is set once the candidate has been accepted; imported candidates are read-only
	Imported bool `json:"imported"`

	Selected bool `json:"selected"`

	// Allocation is the subsystem the candidate is allocated to (nil when unallocated)
	Allocation *string `json:"allocation"`

	Origin       Origin `json:"origin,omitempty"`
	SectionTitle string `json:"section_title,omitempty"`
	SectionRef   string `json:"section_ref,omitempty"`
	LineIndex    int    `json:"line_index"`
}

// NewCandidate creates a candidate with a fresh UUID and normalized text.
func NewCandidate(text string, origin Origin) Candidate {
	return Candidate{
		ID:        uuid.NewString(),
		Text:      CollapseSpace(text),
		Origin:    origin,
		LineIndex: -1,
	}
}

// AddFlag inserts flag into the candidate's flag set.
func (c *Candidate) AddFlag(flag string) {
	c.Flags = UnionFlags(c.Flags, []string{flag})
}

// HasFlag reports whether flag is present.
func (c *Candidate) HasFlag(flag string) bool {
	_, found := slices.BinarySearch(c.Flags, flag)
	return found
}

// UnionFlags merges two flag sets into a new sorted, deduplicated slice.
// Empty and whitespace-only flags are dropped.
func UnionFlags(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	for _, f := range a {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	for _, f := range b {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// FindCandidate returns the index of the candidate with the given id, or -1.
func FindCandidate(cands []Candidate, id string) int {
	return slices.IndexFunc(cands, func(c Candidate) bool { return c.ID == id })
}
