package requirement

import (
	"math"
	"strings"
)

// Quality-review selection limits.
const (
	MaxQualityReview      = 40
	QualityReviewFallback = 20
	MaxReviewFlags        = 12

	minReviewNameWords = 3
	longSentenceChars  = 260
)

var weakFlagMarkers = []string{"compound", "hedge", "ambig", "implicit_constraint", "implicit-constraint"}

// NeedsQualityReview reports whether a candidate looks weak enough to send
// through the AI quality pass.
func NeedsQualityReview(c Candidate) bool {
	if c.Confidence != ConfidenceHigh {
		return true
	}
	if c.Classification == "" || c.Classification == ClassUnknown {
		return true
	}
	if len(strings.Fields(c.Name)) < minReviewNameWords {
		return true
	}
	if CountChars(c.Text) > longSentenceChars {
		return true
	}
	for _, f := range c.Flags {
		lower := strings.ToLower(f)
		for _, marker := range weakFlagMarkers {
			if strings.Contains(lower, marker) {
				return true
			}
		}
	}
	return false
}

// SelectForQualityReview picks the non-imported candidates worth reviewing,
// capped at MaxQualityReview. When none qualify the first
// QualityReviewFallback candidates are reviewed instead.
func SelectForQualityReview(cands []Candidate) []Candidate {
	var open, picked []Candidate
	for _, c := range cands {
		if c.Imported {
			continue
		}
		open = append(open, c)
		if NeedsQualityReview(c) && len(picked) < MaxQualityReview {
			picked = append(picked, c)
		}
	}
	if len(picked) == 0 {
		picked = open[:min(len(open), QualityReviewFallback)]
	}
	return picked
}

// ReviewUpdate is a partial update returned by the AI quality pass. It is
// matched to a candidate by ID first, then by normalized sentence text.
type ReviewUpdate struct {
	ID             string   `json:"id,omitempty"`
	Sentence       string   `json:"sentence,omitempty"`
	Name           string   `json:"name,omitempty"`
	Confidence     string   `json:"confidence,omitempty"`
	Score          *float64 `json:"score,omitempty"`
	Classification string   `json:"classification,omitempty"`
	Flags          []string `json:"flags,omitempty"`
	ReviewPriority string   `json:"review_priority,omitempty"`
}

// ApplyReview merges updates into cands in place and returns how many
// candidates changed. Flags are unioned, a name is replaced only by a
// non-generic one, and confidence and score are overwritten. Imported
// candidates are never touched.
func ApplyReview(cands []Candidate, updates []ReviewUpdate) int {
	byID := make(map[string]int, len(cands))
	byText := make(map[string]int, len(cands))
	for i, c := range cands {
		byID[c.ID] = i
		if key := NormalizedKey(c.Text); key != "" {
			if _, seen := byText[key]; !seen {
				byText[key] = i
			}
		}
	}

	changed := make(map[int]bool)
	for _, u := range updates {
		idx, ok := byID[u.ID]
		if !ok || u.ID == "" {
			idx, ok = byText[NormalizedKey(u.Sentence)]
		}
		if !ok || cands[idx].Imported {
			continue
		}
		if mergeReview(&cands[idx], u) {
			changed[idx] = true
		}
	}
	return len(changed)
}

func mergeReview(c *Candidate, u ReviewUpdate) bool {
	changed := false

	if name := CollapseSpace(u.Name); name != "" && name != c.Name && !IsGenericName(name) {
		c.Name = name
		changed = true
	}

	if conf, ok := ParseConfidence(u.Confidence); ok && conf != c.Confidence {
		c.Confidence = conf
		changed = true
	}

	if u.Score != nil && !math.IsNaN(*u.Score) {
		score := math.Max(0, math.Min(1, *u.Score))
		if score != c.Score {
			c.Score = score
			changed = true
		}
	}

	if u.Classification != "" {
		if class := NormalizeClassification(u.Classification); class != ClassUnknown && class != c.Classification {
			c.Classification = class
			changed = true
		}
	}

	flags := append([]string(nil), u.Flags[:min(len(u.Flags), MaxReviewFlags)]...)
	if p := strings.ToLower(strings.TrimSpace(u.ReviewPriority)); p != "" {
		if prio, ok := ParseConfidence(p); ok {
			flags = append(flags, "review:"+string(prio))
		}
	}
	if merged := UnionFlags(c.Flags, flags); len(merged) != len(c.Flags) {
		c.Flags = merged
		changed = true
	}

	return changed
}
