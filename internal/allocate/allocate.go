// Package allocate proposes which subsystem a requirement candidate belongs to.
package allocate

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/hpungsan/reqlens/internal/requirement"
)

// SystemLevel is the allocation for requirements with no specific owner.
const SystemLevel = "System Level"

// Token overlap thresholds.
const (
	DefaultOverlapHigh   = 3
	DefaultOverlapMedium = 2
)

// Subsystem describes an allocation target.
type Subsystem struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// Rule identifies which decision rule produced a suggestion.
type Rule string

const (
	RuleExplicit       Rule = "explicit"
	RuleOverlap        Rule = "overlap"
	RuleClassification Rule = "classification"
	RuleNewSubsystem   Rule = "new-subsystem"
	RuleDefault        Rule = "default"
	RuleAI             Rule = "ai"
)

// Suggestion is a proposed allocation for one candidate.
type Suggestion struct {
	CandidateID      string                 `json:"candidate_id"`
	Allocation       *string                `json:"allocation"`
	Confidence       requirement.Confidence `json:"confidence"`
	Rationale        string                 `json:"rationale"`
	NewSubsystemName string                 `json:"new_subsystem_name,omitempty"`
	Rule             Rule                   `json:"rule"`
}

var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true, "of": true, "to": true,
	"in": true, "on": true, "at": true, "for": true, "with": true, "by": true, "from": true,
	"be": true, "is": true, "are": true, "as": true, "it": true, "its": true, "this": true,
	"that": true, "all": true, "any": true, "each": true,
	"shall": true, "must": true, "will": true, "should": true, "may": true, "can": true,
	"not": true, "required": true, "system": true, "systems": true,
}

// Engine applies the heuristic allocation rules. The zero value is not
// usable; call NewEngine.
type Engine struct {
	OverlapHigh   int
	OverlapMedium int
}

// NewEngine returns an Engine with the default overlap thresholds.
func NewEngine() *Engine {
	return &Engine{OverlapHigh: DefaultOverlapHigh, OverlapMedium: DefaultOverlapMedium}
}

// SuggestAll runs Suggest for every candidate.
func (e *Engine) SuggestAll(cands []requirement.Candidate, subs []Subsystem) []Suggestion {
	out := make([]Suggestion, 0, len(cands))
	for _, c := range cands {
		out = append(out, e.Suggest(c, subs))
	}
	return out
}

// Suggest applies the rules in order and returns the first that fires:
// explicit name reference, token overlap, cross-cutting classification,
// new-subsystem hint, then the System Level default. The result does not
// depend on the order of subs.
func (e *Engine) Suggest(c requirement.Candidate, subs []Subsystem) Suggestion {
	text := requirement.NormalizedKey(c.Text)

	if name, ok := explicitMatch(text, subs); ok {
		return suggestion(c.ID, name, requirement.ConfidenceHigh, "explicit reference", RuleExplicit)
	}

	if name, n := bestOverlap(Tokenize(c.Text), subs); n >= e.OverlapMedium {
		conf := requirement.ConfidenceMedium
		if n >= e.OverlapHigh {
			conf = requirement.ConfidenceHigh
		}
		return suggestion(c.ID, name, conf, fmt.Sprintf("token overlap (%d shared terms)", n), RuleOverlap)
	}

	switch c.Classification {
	case requirement.ClassContractual, requirement.ClassVerification, requirement.ClassInterface:
		return suggestion(c.ID, SystemLevel, requirement.ConfidenceMedium, "cross-cutting", RuleClassification)
	}

	if hint, ok := newSubsystemHint(text, subs); ok {
		s := suggestion(c.ID, SystemLevel, requirement.ConfidenceMedium,
			fmt.Sprintf("no existing subsystem covers this domain; consider %q", hint), RuleNewSubsystem)
		s.NewSubsystemName = hint
		return s
	}

	return suggestion(c.ID, SystemLevel, requirement.ConfidenceLow, "no strong subsystem signal", RuleDefault)
}

func suggestion(id, allocation string, conf requirement.Confidence, rationale string, rule Rule) Suggestion {
	return Suggestion{
		CandidateID: id,
		Allocation:  &allocation,
		Confidence:  conf,
		Rationale:   rationale,
		Rule:        rule,
	}
}

// explicitMatch returns the longest subsystem name that appears in text as a
// whole phrase. Ties go to the lexicographically smallest name.
func explicitMatch(text string, subs []Subsystem) (string, bool) {
	best, bestKey := "", ""
	for _, s := range subs {
		key := requirement.NormalizedKey(s.Name)
		if key == "" || !containsPhrase(text, key) {
			continue
		}
		if len(key) > len(bestKey) || (len(key) == len(bestKey) && (key < bestKey || (key == bestKey && s.Name < best))) {
			best, bestKey = s.Name, key
		}
	}
	return best, best != ""
}

// bestOverlap returns the subsystem sharing the most tokens with the
// candidate. Ties go to the lexicographically smallest name.
func bestOverlap(tokens map[string]bool, subs []Subsystem) (string, int) {
	type scored struct {
		name, key string
		n         int
	}
	var all []scored
	for _, s := range subs {
		n := 0
		for tok := range Tokenize(s.Name + " " + s.Description) {
			if tokens[tok] {
				n++
			}
		}
		all = append(all, scored{s.Name, requirement.NormalizedKey(s.Name), n})
	}
	if len(all) == 0 {
		return "", 0
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].n != all[j].n {
			return all[i].n > all[j].n
		}
		if all[i].key != all[j].key {
			return all[i].key < all[j].key
		}
		return all[i].name < all[j].name
	})
	return all[0].name, all[0].n
}

// Tokenize lowercases text and returns its alphanumeric tokens longer than
// one character, minus stop words.
func Tokenize(text string) map[string]bool {
	out := make(map[string]bool)
	for _, tok := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if requirement.CountChars(tok) > 1 && !stopWords[tok] {
			out[tok] = true
		}
	}
	return out
}

// containsPhrase reports whether phrase occurs in text bounded by
// non-alphanumeric characters on both sides.
func containsPhrase(text, phrase string) bool {
	for from := 0; from <= len(text)-len(phrase); {
		i := strings.Index(text[from:], phrase)
		if i < 0 {
			return false
		}
		start := from + i
		end := start + len(phrase)
		if boundaryBefore(text, start) && boundaryAfter(text, end) {
			return true
		}
		from = start + 1
	}
	return false
}

func boundaryBefore(s string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

func boundaryAfter(s string, i int) bool {
	if i >= len(s) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(s[i:])
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}
