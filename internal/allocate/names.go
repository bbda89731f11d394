package allocate

import (
	"regexp"
	"strings"

	"github.com/hpungsan/reqlens/internal/errors"
	"github.com/hpungsan/reqlens/internal/requirement"
)

// Subsystem name limits.
const (
	MinSubsystemNameChars = 3
	MaxSubsystemNameChars = 64
)

var camelCaseRe = regexp.MustCompile(`(^|\s)[a-z]+[A-Z]`)

// Words that make a name read like a software function rather than a
// physical or logical subsystem when they come first.
var functionVerbs = map[string]bool{
	"handle": true, "manage": true, "validate": true, "send": true, "receive": true,
	"compute": true, "calculate": true, "check": true, "lock": true, "unlock": true,
	"get": true, "set": true, "update": true, "create": true, "delete": true,
	"generate": true, "fetch": true, "load": true, "save": true, "parse": true,
	"transmit": true, "verify": true, "authenticate": true, "encrypt": true,
	"decrypt": true, "log": true, "store": true, "read": true, "write": true,
	"perform": true, "execute": true, "run": true, "enable": true, "disable": true,
	"provide": true, "support": true, "ensure": true, "allow": true,
}

var placeholderWords = map[string]bool{
	"module": true, "service": true, "component": true, "subsystem": true,
	"system": true, "unit": true, "function": true, "feature": true,
	"misc": true, "other": true, "tbd": true, "new": true, "generic": true,
	"general": true, "unknown": true, "none": true, "n/a": true, "level": true,
}

// CleanSubsystemName flattens newlines, collapses whitespace and truncates a
// proposed name to MaxSubsystemNameChars. Names shorter than
// MinSubsystemNameChars become "".
func CleanSubsystemName(name string) string {
	name = requirement.CollapseSpace(strings.NewReplacer("\r", " ", "\n", " ").Replace(name))
	if r := []rune(name); len(r) > MaxSubsystemNameChars {
		name = strings.TrimSpace(string(r[:MaxSubsystemNameChars]))
	}
	if requirement.CountChars(name) < MinSubsystemNameChars {
		return ""
	}
	return name
}

// ValidateSubsystemName applies the domain-name sanity filter to a name
// proposed for a new subsystem. It rejects snake_case and camelCase
// identifiers, verb-first names, and names made only of placeholder words.
func ValidateSubsystemName(name string) error {
	trimmed := requirement.CollapseSpace(name)
	n := requirement.CountChars(trimmed)

	switch {
	case n < MinSubsystemNameChars:
		return errors.NewInvalidSubsystemName(name, "too short")
	case n > MaxSubsystemNameChars:
		return errors.NewInvalidSubsystemName(name, "too long")
	case strings.Contains(trimmed, "_"):
		return errors.NewInvalidSubsystemName(name, "snake_case identifier")
	case camelCaseRe.MatchString(trimmed):
		return errors.NewInvalidSubsystemName(name, "camelCase identifier")
	}

	words := strings.Fields(strings.ToLower(trimmed))
	if functionVerbs[words[0]] {
		return errors.NewInvalidSubsystemName(name, "reads like a software function")
	}

	allPlaceholder := true
	for _, w := range words {
		if !placeholderWords[w] {
			allPlaceholder = false
			break
		}
	}
	if allPlaceholder {
		return errors.NewInvalidSubsystemName(name, "generic placeholder")
	}
	return nil
}
