package requirement

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultParagraphFlushChars caps paragraph growth on documents without
// sentence punctuation.
const DefaultParagraphFlushChars = 240

// Segmentation limits.
const (
	MinBlockChars    = 10
	minHeadingTitle  = 3
	maxHeadingTitle  = 120
	maxLabelHeading  = 80
	minListItemChars = 3
)

var (
	numberedHeadingRe = regexp.MustCompile(`^(\d+(?:\.\d+)*)\s+(.+)$`)
	listItemRe        = regexp.MustCompile(`^(?:[-*+]\s+|[•◦▪▫‣●○■□–]\s*|\d+[.)]\s+)(.+)$`)
)

// Segmenter splits raw document text into typed blocks.
type Segmenter struct {
	// FlushChars is the paragraph length (in characters) past which the
	// paragraph buffer is emitted even without a terminal punctuation mark.
	FlushChars int
}

// NewSegmenter returns a Segmenter with the default flush limit.
func NewSegmenter() *Segmenter {
	return &Segmenter{FlushChars: DefaultParagraphFlushChars}
}

// Segment is shorthand for NewSegmenter().Segment(text).
func Segment(text string) []TextBlock {
	return NewSegmenter().Segment(text)
}

// Segment converts text into an ordered block list. Blocks whose normalized
// text is not longer than MinBlockChars are dropped.
func (s *Segmenter) Segment(text string) []TextBlock {
	flushAt := s.FlushChars
	if flushAt <= 0 {
		flushAt = DefaultParagraphFlushChars
	}

	var (
		blocks     []TextBlock
		title, ref string
		buf        strings.Builder
		bufChars   int
		bufStart   = -1
	)

	emit := func(text string, kind SectionType, line int) {
		text = CollapseSpace(text)
		if CountChars(text) <= MinBlockChars {
			return
		}
		blocks = append(blocks, TextBlock{
			Text:         text,
			SectionTitle: title,
			SectionRef:   ref,
			SectionType:  kind,
			LineIndex:    line,
		})
	}
	flush := func() {
		if buf.Len() > 0 {
			emit(buf.String(), SectionParagraph, bufStart)
		}
		buf.Reset()
		bufChars = 0
		bufStart = -1
	}

	for i, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			flush()
			continue
		}

		if t, r, ok := matchHeading(line); ok {
			flush()
			title, ref = t, r
			emit(line, SectionHeading, i)
			continue
		}

		if item, ok := matchListItem(line); ok {
			flush()
			emit(item, SectionListItem, i)
			continue
		}

		if buf.Len() > 0 {
			buf.WriteByte(' ')
			bufChars++
		} else {
			bufStart = i
		}
		buf.WriteString(line)
		bufChars += utf8.RuneCountInString(line)

		if endsSentence(line) || bufChars > flushAt {
			flush()
		}
	}
	flush()

	return blocks
}

// IsHeading reports whether line would be recognized as a heading.
func IsHeading(line string) bool {
	_, _, ok := matchHeading(strings.TrimSpace(line))
	return ok
}

// matchHeading applies the heading rules in order: numbered prefix,
// all-uppercase label, trailing colon label. It returns the section title and
// the section reference (only numbered headings carry one).
func matchHeading(line string) (title, ref string, ok bool) {
	if m := numberedHeadingRe.FindStringSubmatch(line); m != nil {
		t := CollapseSpace(m[2])
		if n := CountChars(t); n >= minHeadingTitle && n <= maxHeadingTitle {
			return t, m[1], true
		}
	}

	n := CountChars(line)
	if n <= maxLabelHeading && hasLetter(line) && strings.ToUpper(line) == line {
		return CollapseSpace(line), "", true
	}
	if n <= maxLabelHeading && strings.HasSuffix(line, ":") {
		return CollapseSpace(strings.TrimSuffix(line, ":")), "", true
	}
	return "", "", false
}

func matchListItem(line string) (string, bool) {
	m := listItemRe.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	item := strings.TrimSpace(m[1])
	if CountChars(item) < minListItemChars {
		return "", false
	}
	return item, true
}

func endsSentence(line string) bool {
	switch line[len(line)-1] {
	case '.', '!', '?':
		return true
	}
	return false
}

func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}
