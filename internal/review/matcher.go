// Package review locates requirement candidates inside a document buffer and
// decomposes the buffer into highlighted and plain runs.
package review

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/hpungsan/reqlens/internal/requirement"
)

// Matching limits.
const (
	MinSentenceChars   = 12
	MaxMatchesPerEntry = 8
)

// Match is a resolved, non-overlapping span inside one text buffer.
// Start and End are byte offsets into the buffer, End exclusive.
type Match struct {
	Key         string                 `json:"key"`
	CandidateID string                 `json:"candidate_id"`
	Start       int                    `json:"start"`
	End         int                    `json:"end"`
	Confidence  requirement.Confidence `json:"confidence"`
}

// Len returns the span length in bytes.
func (m Match) Len() int { return m.End - m.Start }

// SegmentKind distinguishes plain runs from highlighted runs.
type SegmentKind string

const (
	SegmentPlain SegmentKind = "plain"
	SegmentMatch SegmentKind = "match"
)

// Segment is one run of the buffer. Match is set only for SegmentMatch.
type Segment struct {
	Kind  SegmentKind `json:"kind"`
	Text  string      `json:"text"`
	Start int         `json:"start"`
	End   int         `json:"end"`
	Match *Match      `json:"match,omitempty"`
}

// Pattern builds the case-insensitive pattern that finds sentence in a
// buffer regardless of line wrapping. Every word is quoted so no part of the
// sentence is interpreted as regex syntax. Sentences shorter than
// MinSentenceChars are rejected.
func Pattern(sentence string) (*regexp.Regexp, error) {
	words := strings.Fields(sentence)
	if requirement.CountChars(strings.Join(words, " ")) < MinSentenceChars {
		return nil, fmt.Errorf("sentence shorter than %d characters", MinSentenceChars)
	}
	for i, w := range words {
		words[i] = regexp.QuoteMeta(w)
	}
	return regexp.Compile(`(?i)` + strings.Join(words, `\s+`))
}

// FindMatches returns the ordered, non-overlapping spans of cands inside
// buffer. Candidates whose pattern cannot be built are skipped.
//
// Raw matches from all candidates are sorted by start, longest first on
// ties, and accepted greedily so the earliest and longest span wins a
// contested region.
func FindMatches(buffer string, cands []requirement.Candidate) []Match {
	var raw []Match
	for _, c := range cands {
		re, err := Pattern(c.Text)
		if err != nil {
			continue
		}
		raw = append(raw, scan(buffer, re, c)...)
	}

	sort.SliceStable(raw, func(i, j int) bool {
		if raw[i].Start != raw[j].Start {
			return raw[i].Start < raw[j].Start
		}
		return raw[i].Len() > raw[j].Len()
	})

	var accepted []Match
	maxEnd := 0
	for _, m := range raw {
		// raw is sorted by start, so overlap with any accepted span implies
		// overlap with the furthest-reaching one
		if m.Start < maxEnd {
			continue
		}
		accepted = append(accepted, m)
		maxEnd = m.End
	}
	return accepted
}

func scan(buffer string, re *regexp.Regexp, c requirement.Candidate) []Match {
	var out []Match
	pos := 0
	for pos <= len(buffer) && len(out) < MaxMatchesPerEntry {
		loc := re.FindStringIndex(buffer[pos:])
		if loc == nil {
			break
		}
		start, end := pos+loc[0], pos+loc[1]
		if start == end {
			_, size := utf8.DecodeRuneInString(buffer[start:])
			pos = start + max(size, 1)
			continue
		}
		out = append(out, Match{
			Key:         fmt.Sprintf("%s:%d", c.ID, start),
			CandidateID: c.ID,
			Start:       start,
			End:         end,
			Confidence:  c.Confidence,
		})
		pos = end
	}
	return out
}

// Segments walks buffer and the ordered matches and emits the interleaved
// plain and match runs. Concatenating the Text of every segment yields buffer.
func Segments(buffer string, matches []Match) []Segment {
	var out []Segment
	pos := 0
	for i := range matches {
		m := matches[i]
		if m.Start > pos {
			out = append(out, Segment{Kind: SegmentPlain, Text: buffer[pos:m.Start], Start: pos, End: m.Start})
		}
		out = append(out, Segment{Kind: SegmentMatch, Text: buffer[m.Start:m.End], Start: m.Start, End: m.End, Match: &m})
		pos = m.End
	}
	if pos < len(buffer) {
		out = append(out, Segment{Kind: SegmentPlain, Text: buffer[pos:], Start: pos, End: len(buffer)})
	}
	return out
}

// Decompose is FindMatches followed by Segments.
func Decompose(buffer string, cands []requirement.Candidate) ([]Match, []Segment) {
	matches := FindMatches(buffer, cands)
	return matches, Segments(buffer, matches)
}
