package requirement

import (
	"strings"
	"unicode/utf8"
)

// CollapseSpace collapses every whitespace run (including NBSP) to a single
// space and trims the result. Case is preserved.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// NormalizedKey is the comparison key used for duplicate detection and for
// matching AI review updates by sentence:
// 1. Collapse whitespace and trim
// 2. Lowercase
func NormalizedKey(s string) string {
	return strings.ToLower(CollapseSpace(s))
}

// CountChars returns the character count as runes (not bytes).
func CountChars(text string) int {
	return utf8.RuneCountInString(text)
}

// MarkDuplicates recomputes the Duplicate flag of every candidate against the
// set of already accepted requirement texts. It must be rerun whenever either
// side changes. Imported candidates are read-only and keep their flag.
func MarkDuplicates(cands []Candidate, persisted []string) {
	known := make(map[string]struct{}, len(persisted))
	for _, text := range persisted {
		if key := NormalizedKey(text); key != "" {
			known[key] = struct{}{}
		}
	}
	for i := range cands {
		if cands[i].Imported {
			continue
		}
		_, dup := known[NormalizedKey(cands[i].Text)]
		cands[i].Duplicate = dup
	}
}
