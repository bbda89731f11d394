package requirement

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	maxNameWords       = 6
	maxNamePrefixWords = 4
	maxSubjectWords    = 3
	numberSearchTokens = 10
	maxNumberIndex     = 8
	fallbackNameWords  = 5
)

var (
	conditionClauseRe = regexp.MustCompile(`(?i)^(?:when|if|upon|after|once)\b[^,]{3,100},\s*`)
	genericSubjectRe  = regexp.MustCompile(`(?i)^(?:the\s+(?:system|device|software|application|platform|tool|module|component|interface|server|client|database|product|solution)|it)\s+(?:shall|must|should|will|required\s+to)\s+`)
	domainSubjectRe   = regexp.MustCompile(`(?i)^((?:the\s+)?\w[\w\s\-]{1,35}?)\s+(?:shall|must|should|will|required\s+to)\s+`)
	bareModalRe       = regexp.MustCompile(`(?i)\b(?:shall|must|should|will)\b\s*`)
	fillerAdverbRe    = regexp.MustCompile(`(?i)\b(?:automatically|immediately|properly|correctly|successfully|securely|efficiently|seamlessly|dynamically|continuously)\b\s*`)
	parentheticalRe   = regexp.MustCompile(`\s*\(.*?\)`)
	leadingArticleRe  = regexp.MustCompile(`(?i)^(?:a|an|the)\s+`)
	nameNumberRe      = regexp.MustCompile(`\b\d+(?:[.,]\d+)?`)
	unitTokenRe       = regexp.MustCompile(`(?i)^(?:ms|sec(?:ond)?s?|min(?:ute)?s?|hours?|fps|hz|mbps|gbps|kb|mb|gb|%|percent|degrees?|times?)$`)
)

var nameStopWords = map[string]bool{
	"a": true, "an": true, "the": true, "of": true, "in": true, "on": true, "at": true,
	"to": true, "for": true, "with": true, "within": true, "from": true, "into": true,
	"by": true, "between": true, "and": true, "or": true, "that": true, "which": true,
	"its": true, "their": true, "this": true, "these": true, "those": true, "upon": true,
	"when": true, "if": true, "as": true, "during": true, "under": true, "over": true,
	"above": true, "below": true, "per": true, "automatically": true, "immediately": true,
	"properly": true, "correctly": true, "successfully": true,
}

var coordinators = map[string]bool{"and": true, "or": true, "but": true, "nor": true}

const tokenTrimChars = ".,;:()[]\"'’‘“”"

// GenerateName derives a short Title Case label from a requirement sentence.
//
// The leading condition clause ("When X, ") and generic subjects ("the
// system shall") are dropped, domain subjects are kept (up to three words),
// and filler adverbs are removed. When a number appears early in the
// sentence the name is anchored on it together with its unit; otherwise the
// first six content words are used.
func GenerateName(text string) string {
	clean := strings.TrimRight(strings.TrimSpace(text), ".")

	if loc := conditionClauseRe.FindStringIndex(clean); loc != nil {
		clean = clean[loc[1]:]
	}

	subject := ""
	if loc := genericSubjectRe.FindStringIndex(clean); loc != nil {
		clean = clean[loc[1]:]
	} else if m := domainSubjectRe.FindStringSubmatchIndex(clean); m != nil {
		raw := parentheticalRe.ReplaceAllString(strings.TrimSpace(clean[m[2]:m[3]]), "")
		raw = strings.TrimSpace(leadingArticleRe.ReplaceAllString(raw, ""))
		words := strings.Fields(raw)
		if len(words) > maxSubjectWords {
			words = words[:maxSubjectWords]
		}
		subject = strings.Join(words, " ")
		clean = clean[m[1]:]
	} else if loc := bareModalRe.FindStringIndex(clean); loc != nil {
		clean = clean[loc[1]:]
	}

	clean = strings.TrimSpace(fillerAdverbRe.ReplaceAllString(clean, ""))
	if subject != "" {
		clean = subject + " " + clean
	}

	var tokens []string
	for _, w := range strings.Fields(clean) {
		if w = strings.Trim(w, tokenTrimChars); w != "" {
			tokens = append(tokens, w)
		}
	}

	numIdx := -1
	for i, tok := range tokens {
		if i >= numberSearchTokens {
			break
		}
		if nameNumberRe.MatchString(tok) {
			numIdx = i
			break
		}
	}

	var name []string
	if numIdx >= 0 && numIdx <= maxNumberIndex {
		for _, t := range tokens[:numIdx] {
			lower := strings.ToLower(t)
			if coordinators[lower] {
				break
			}
			if !nameStopWords[lower] {
				name = append(name, t)
			}
		}
		if len(name) > maxNamePrefixWords {
			name = name[:maxNamePrefixWords]
		}
		name = append(name, tokens[numIdx])
		if numIdx+1 < len(tokens) && unitTokenRe.MatchString(tokens[numIdx+1]) {
			name = append(name, tokens[numIdx+1])
		}
	} else {
		for _, t := range tokens {
			lower := strings.ToLower(t)
			if coordinators[lower] {
				break
			}
			if !nameStopWords[lower] {
				name = append(name, t)
			}
			if len(name) >= maxNameWords {
				break
			}
		}
	}

	for len(name) > 0 && nameStopWords[strings.ToLower(name[len(name)-1])] {
		name = name[:len(name)-1]
	}

	if len(name) == 0 {
		name = strings.Fields(text)
		if len(name) > fallbackNameWords {
			name = name[:fallbackNameWords]
		}
	}
	if len(name) == 0 {
		return ""
	}

	if first := strings.TrimSpace(leadingArticleRe.ReplaceAllString(name[0], "")); first != "" {
		name[0] = first
	}

	for i, w := range name {
		name[i] = titleWord(w)
	}
	return strings.Join(name, " ")
}

// titleWord upper-cases the first letter of w and leaves the rest alone so
// acronyms such as "GPS" or "AES-256" survive.
func titleWord(w string) string {
	r, size := utf8.DecodeRuneInString(w)
	if r == utf8.RuneError {
		return w
	}
	return string(unicode.ToUpper(r)) + w[size:]
}

var genericNames = map[string]bool{
	"requirement":             true,
	"requirements":            true,
	"new requirement":         true,
	"untitled":                true,
	"untitled requirement":    true,
	"system requirement":      true,
	"general requirement":     true,
	"functional requirement":  true,
	"performance requirement": true,
	"interface requirement":   true,
	"security requirement":    true,
	"data requirement":        true,
	"network requirement":     true,
	"high requirement":        true,
	"tbd":                     true,
	"n/a":                     true,
}

// IsGenericName reports whether name carries no information beyond "this is a
// requirement". Review updates never replace a name with a generic one.
func IsGenericName(name string) bool {
	key := NormalizedKey(name)
	if key == "" || genericNames[key] {
		return true
	}
	if strings.HasSuffix(key, " requirement") || strings.HasSuffix(key, " requirements") {
		return true
	}
	return len(strings.Fields(key)) < 2
}
