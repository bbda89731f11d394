package requirement

import (
	"regexp"
	"strings"
)

// Classification values.
const (
	ClassContractual  = "contractual"
	ClassInterface    = "interface"
	ClassVerification = "verification"
	ClassConstraint   = "constraint"
	ClassSystem       = "system"
	ClassUnknown      = "unknown"
)

var knownClassifications = map[string]bool{
	ClassContractual:  true,
	ClassInterface:    true,
	ClassVerification: true,
	ClassConstraint:   true,
	ClassSystem:       true,
	ClassUnknown:      true,
}

// NormalizeClassification lowercases c and maps anything outside the known
// vocabulary (including empty) to ClassUnknown.
func NormalizeClassification(c string) string {
	c = strings.ToLower(strings.TrimSpace(c))
	if knownClassifications[c] {
		return c
	}
	return ClassUnknown
}

var (
	subjectSystemRe   = regexp.MustCompile(`(?i)\b(the system|the software|the device|the platform|the application|the subsystem)\b`)
	subjectContractRe = regexp.MustCompile(`(?i)\b(the contractor|the vendor|the offeror|the supplier|the provider)\b`)

	subjectComponentRe = regexp.MustCompile(`(?i)\b(` +
		`(navigation|communications|compute|processing|vision|payload|sensor|eo|ir|eo/ir|rf|emcon)\s*(subsystem|system|module|pipeline|algorithm|payload)` +
		`|the\s+(gcs|ground\s+control\s+station|ground\s+station)` +
		`|the\s+(eo|ir)\s+sensor` +
		`|the\s+threat\s+detection\s+algorithm` +
		`|the\s+vision\s+processing\s+pipeline` +
		`|the\s+onboard\s+edge\s+ai\s+accelerator` +
		`)\b`)

	interfaceRe = regexp.MustCompile(`(?i)\b(interface|interoperate|compatible with|integrate with|connect to)\b`)
	verifyRe    = regexp.MustCompile(`(?i)\b(verify|verification|validated|validation|test|analysis|inspection|demonstration)\b`)

	measureRe = regexp.MustCompile(`(?i)(\bwithin\s+\d+(\.\d+)?\s*(ms|s|sec|seconds|minutes|hours)\b|<=|>=|<|>|±|` +
		`\b(accuracy|latency|throughput|range|mtbf|fps|hz|knots|tops|gb|ms|db|km|meters?)\b|\bm/s|°c)`)

	constraintWordRe = regexp.MustCompile(`(?i)\b(threshold|objective|parameter|constraint|limit|rate|frequency|latency|accuracy)\b`)
	modeSectionRe    = regexp.MustCompile(`(?i)\b(emcon|mode|modes|operating mode)\b`)
	modeWordRe       = regexp.MustCompile(`(?i)\b(enabled|disabled|active|inactive|autonomous|streaming|telemetry|video|radio|rf|emission|link)\b`)
)

// Classify assigns a coarse requirement category from subject and cue words.
// Contractor-subject sentences are contractual; system or component subjects
// are narrowed by interface, verification and measurement cues; everything
// else falls back to cue words alone, with mode vocabulary counting as a
// constraint inside mode sections.
func Classify(text, sectionTitle string) string {
	if subjectContractRe.MatchString(text) {
		return ClassContractual
	}

	measurable := measureRe.MatchString(text) || constraintWordRe.MatchString(text)

	if subjectSystemRe.MatchString(text) || subjectComponentRe.MatchString(text) {
		switch {
		case interfaceRe.MatchString(text):
			return ClassInterface
		case verifyRe.MatchString(text):
			return ClassVerification
		case measurable:
			return ClassConstraint
		}
		return ClassSystem
	}

	switch {
	case interfaceRe.MatchString(text):
		return ClassInterface
	case verifyRe.MatchString(text):
		return ClassVerification
	case modeSectionRe.MatchString(sectionTitle) && modeWordRe.MatchString(text):
		return ClassConstraint
	case measurable:
		return ClassConstraint
	}
	return ClassUnknown
}
