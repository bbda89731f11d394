package requirement

import (
	"regexp"
	"strings"
)

// Confidence tier and retention thresholds.
const (
	HighThreshold   = 0.70
	MediumThreshold = 0.45
	RetainThreshold = 0.35
)

// Score weights, in hundredths. Accumulating in integers keeps tier
// boundaries exact (0.45 + 0.10 + 0.10 + 0.05 is 0.70, not 0.69999).
const (
	weightModal           = 45
	weightNegation        = 8
	weightConstraint      = 8
	weightNumeric         = 10
	weightSectionPositive = 10
	weightListItem        = 5

	penaltySectionNegative = 15
	penaltyShort           = 15
	penaltyLong            = 10
	penaltyTrailingColon   = 20

	retainPoints = 35

	shortTextChars = 15
	longTextChars  = 320
)

// Flags emitted by the scorer.
const (
	FlagNegation       = "negation"
	FlagConstraint     = "constraint"
	FlagNumeric        = "numeric"
	FlagNonRequirement = "context:non-requirement"
	FlagListItem       = "list-item"
	FlagShort          = "short"
	FlagLong           = "long"
	FlagTrailingColon  = "trailing-colon"
)

var (
	modalRe = regexp.MustCompile(`(?i)\b(shall|must|will|should|is\s+required\s+to|required\s+to|needs?\s+to|is\s+to|are\s+to|has\s+to|have\s+to)\b`)

	strictModalRe = regexp.MustCompile(`(?i)\b(shall|must|will)\b`)

	negationRe = regexp.MustCompile(`(?i)\b(shall|must|will|should|may|can)\s+not\b|\b(shan't|mustn't|won't|cannot|can't)`)

	constraintRe = regexp.MustCompile(`(?i)\b(minimum|maximum|at\s+least|at\s+most|no\s+more\s+than|no\s+less\s+than|not\s+exceed|threshold|within|up\s+to|less\s+than|greater\s+than|between|limit)\b`)

	numericRe = regexp.MustCompile(`(?i)\d|\b(ms|sec|seconds?|minutes?|hours?|hz|khz|mhz|ghz|kbps|mbps|gbps|kb|mb|gb|tb|db|dbm|km|meters?|kg|watts?|volts?|amps?|psi|fps|percent)\b|%|°`)

	sectionPositiveRe = regexp.MustCompile(`(?i)\b(requirements?|performance|interfaces?|safety|security|functional|reliability|environmental|constraints?|specifications?|capabilit(y|ies)|design)\b`)

	sectionNegativeRe = regexp.MustCompile(`(?i)\b(background|overview|scope|introduction)\b`)
)

// ScoreResult is the heuristic scorer's output for one block.
type ScoreResult struct {
	Score      float64
	Confidence Confidence
	Flags      []string

	// Retain reports whether the block should become a candidate.
	Retain bool
}

// ConfidenceFor maps a score onto its tier.
func ConfidenceFor(score float64) Confidence {
	switch {
	case score >= HighThreshold:
		return ConfidenceHigh
	case score >= MediumThreshold:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// ScoreBlock scores a paragraph or list item. Headings are never scored and
// return false.
func ScoreBlock(b TextBlock) (ScoreResult, bool) {
	if b.SectionType == SectionHeading {
		return ScoreResult{}, false
	}

	text := CollapseSpace(b.Text)
	pts := 0
	var flags []string

	if m := modalRe.FindString(text); m != "" {
		pts += weightModal
		flags = append(flags, "modal:"+strings.ToLower(CollapseSpace(m)))
	}
	if negationRe.MatchString(text) {
		pts += weightNegation
		flags = append(flags, FlagNegation)
	}
	if constraintRe.MatchString(text) {
		pts += weightConstraint
		flags = append(flags, FlagConstraint)
	}
	if numericRe.MatchString(text) {
		pts += weightNumeric
		flags = append(flags, FlagNumeric)
	}

	if title := b.SectionTitle; title != "" {
		if sectionPositiveRe.MatchString(title) {
			pts += weightSectionPositive
			flags = append(flags, "section:"+title)
		}
		if sectionNegativeRe.MatchString(title) {
			pts -= penaltySectionNegative
			flags = append(flags, FlagNonRequirement)
		}
	}

	if b.SectionType == SectionListItem {
		pts += weightListItem
		flags = append(flags, FlagListItem)
	}

	n := CountChars(text)
	if n < shortTextChars {
		pts -= penaltyShort
		flags = append(flags, FlagShort)
	}
	if n > longTextChars {
		pts -= penaltyLong
		flags = append(flags, FlagLong)
	}
	if strings.HasSuffix(text, ":") {
		pts -= penaltyTrailingColon
		flags = append(flags, FlagTrailingColon)
	}

	pts = min(max(pts, 0), 100)
	score := float64(pts) / 100

	return ScoreResult{
		Score:      score,
		Confidence: ConfidenceFor(score),
		Flags:      UnionFlags(flags, nil),
		Retain:     pts >= retainPoints || strictModalRe.MatchString(text),
	}, true
}

// HeuristicCandidates runs the scorer over blocks and returns the retained
// blocks as classified, named candidates in document order.
func HeuristicCandidates(blocks []TextBlock) []Candidate {
	var out []Candidate
	for _, b := range blocks {
		res, ok := ScoreBlock(b)
		if !ok || !res.Retain {
			continue
		}
		c := NewCandidate(b.Text, OriginHeuristic)
		c.Score = res.Score
		c.Confidence = res.Confidence
		c.Flags = res.Flags
		c.Classification = Classify(c.Text, b.SectionTitle)
		c.Name = GenerateName(c.Text)
		c.SectionTitle = b.SectionTitle
		c.SectionRef = b.SectionRef
		c.LineIndex = b.LineIndex
		out = append(out, c)
	}
	return out
}
