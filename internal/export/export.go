// Package export formats candidate lists as CSV, JSON or plain text.
// Formatting is pure; writing files is left to the caller.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hpungsan/reqlens/internal/errors"
	"github.com/hpungsan/reqlens/internal/requirement"
)

// Format is an export format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// CSVHeader is the first row of every CSV export.
var CSVHeader = []string{"ID", "Name", "Full Text", "Confidence", "Score", "Flags", "Source"}

// ParseFormat validates a format name. "txt" is accepted for text.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	case "text", "txt":
		return FormatText, nil
	}
	return "", errors.NewInvalidRequest(fmt.Sprintf("unknown export format %q (want csv, json or text)", s))
}

// Extension returns the file extension for f, including the dot.
func (f Format) Extension() string {
	switch f {
	case FormatCSV:
		return ".csv"
	case FormatJSON:
		return ".json"
	default:
		return ".txt"
	}
}

// RequirementID is the sequential label used by CSV and text exports (1-based).
func RequirementID(n int) string {
	return fmt.Sprintf("REQ-%03d", n)
}

// Record is one requirement in a JSON export.
type Record struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Text       string   `json:"text"`
	Confidence string   `json:"confidence"`
	Score      float64  `json:"score"`
	Flags      []string `json:"flags"`
	Duplicate  bool     `json:"duplicate"`
	Source     string   `json:"source"`
}

// Document is the JSON export envelope.
type Document struct {
	Source       string   `json:"source"`
	Requirements []Record `json:"requirements"`
}

// Write formats cands in format f. source names the originating document.
func Write(w io.Writer, f Format, cands []requirement.Candidate, source string) error {
	switch f {
	case FormatCSV:
		return CSV(w, cands, source)
	case FormatJSON:
		return JSON(w, cands, source)
	case FormatText:
		return Text(w, cands)
	}
	return errors.NewInvalidRequest(fmt.Sprintf("unknown export format %q", f))
}

// CSV writes the header row followed by one row per candidate.
func CSV(w io.Writer, cands []requirement.Candidate, source string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for i, c := range cands {
		row := []string{
			RequirementID(i + 1),
			c.Name,
			c.Text,
			string(c.Confidence),
			fmt.Sprintf("%.2f", c.Score),
			strings.Join(c.Flags, "; "),
			source,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// JSON writes an indented export envelope.
func JSON(w io.Writer, cands []requirement.Candidate, source string) error {
	doc := Document{Source: source, Requirements: make([]Record, 0, len(cands))}
	for _, c := range cands {
		flags := c.Flags
		if flags == nil {
			flags = []string{}
		}
		doc.Requirements = append(doc.Requirements, Record{
			ID:         c.ID,
			Name:       c.Name,
			Text:       c.Text,
			Confidence: string(c.Confidence),
			Score:      c.Score,
			Flags:      flags,
			Duplicate:  c.Duplicate,
			Source:     source,
		})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// Text writes "REQ-NNN: name" / text blocks separated by blank lines.
func Text(w io.Writer, cands []requirement.Candidate) error {
	for i, c := range cands {
		if i > 0 {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, "%s: %s\n%s\n", RequirementID(i+1), c.Name, c.Text); err != nil {
			return err
		}
	}
	return nil
}
