// Package parser talks to the optional external requirement parser: a
// sidecar process that reads one JSON request line on stdin and answers with
// one JSON line on stdout.
package parser

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/reqlens/internal/requirement"
)

// ErrUnavailable is returned when no parser is configured or the process
// could not be run.
var ErrUnavailable = errors.New("external parser unavailable")

const maxStderrTail = 512

// Request is the sidecar input. Blocks never include headings.
type Request struct {
	Blocks  []requirement.TextBlock `json:"blocks"`
	DocType string                  `json:"doc_type"`
}

// NewRequest builds a request from segmented blocks, dropping headings.
func NewRequest(blocks []requirement.TextBlock, docType string) Request {
	req := Request{DocType: docType, Blocks: make([]requirement.TextBlock, 0, len(blocks))}
	for _, b := range blocks {
		if b.SectionType == requirement.SectionHeading {
			continue
		}
		req.Blocks = append(req.Blocks, b)
	}
	return req
}

// Result is one sentence the parser considers a requirement. Every field
// except Sentence is optional.
type Result struct {
	Sentence       string   `json:"sentence"`
	Name           string   `json:"name,omitempty"`
	Score          *float64 `json:"score,omitempty"`
	Confidence     string   `json:"confidence,omitempty"`
	Classification string   `json:"classification,omitempty"`
	Flags          []string `json:"flags,omitempty"`
	SectionTitle   string   `json:"section_title,omitempty"`
	SectionRef     string   `json:"section_ref,omitempty"`
}

// Response is the sidecar output.
type Response struct {
	Results        []Result `json:"results"`
	SpacyAvailable bool     `json:"spacy_available"`
	DocType        string   `json:"doc_type,omitempty"`
	Error          string   `json:"error,omitempty"`
}

// Parser is anything that can answer a parse request.
type Parser interface {
	Parse(ctx context.Context, req Request) (*Response, error)
}

// Command runs the sidecar as a subprocess, one process per request.
type Command struct {
	argv   []string
	logger *zap.Logger
}

// NewCommand returns a Command for argv. An empty argv yields a parser that
// always reports ErrUnavailable.
func NewCommand(argv []string, logger *zap.Logger) *Command {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Command{argv: argv, logger: logger.Named("parser")}
}

// Available reports whether a command is configured.
func (c *Command) Available() bool {
	return len(c.argv) > 0 && strings.TrimSpace(c.argv[0]) != ""
}

// Parse sends req to the sidecar and decodes its answer. There is no timeout
// beyond ctx; there are no retries. A response carrying an error field is
// returned together with a non-nil error.
func (c *Command) Parse(ctx context.Context, req Request) (*Response, error) {
	if !c.Available() {
		return nil, fmt.Errorf("%w: no parser command configured", ErrUnavailable)
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode parser request: %w", err)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.argv[0], c.argv[1:]...)
	cmd.Stdin = bytes.NewReader(append(payload, '\n'))
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	c.logger.Debug("parser call",
		zap.Strings("argv", c.argv),
		zap.Int("blocks", len(req.Blocks)),
		zap.Duration("elapsed", time.Since(start)),
		zap.Error(runErr))

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	line := firstLine(stdout.Bytes())
	if runErr != nil && len(line) == 0 {
		return nil, fmt.Errorf("%w: %v: %s", ErrUnavailable, runErr, tail(stderr.String()))
	}
	if len(line) == 0 {
		return nil, fmt.Errorf("%w: empty response", ErrUnavailable)
	}

	var resp Response
	if err := json.Unmarshal(line, &resp); err != nil {
		return nil, fmt.Errorf("decode parser response: %w", err)
	}
	if resp.Error != "" {
		return &resp, fmt.Errorf("parser error: %s", resp.Error)
	}
	return &resp, nil
}

func firstLine(out []byte) []byte {
	sc := bufio.NewScanner(bytes.NewReader(out))
	sc.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	for sc.Scan() {
		if line := bytes.TrimSpace(sc.Bytes()); len(line) > 0 {
			return line
		}
	}
	return nil
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxStderrTail {
		s = s[len(s)-maxStderrTail:]
	}
	return s
}

// Default scores for results that carry a confidence but no score.
var tierScores = map[requirement.Confidence]float64{
	requirement.ConfidenceHigh:   0.85,
	requirement.ConfidenceMedium: 0.55,
	requirement.ConfidenceLow:    0.25,
}

// Candidates normalizes parser results into candidates. Missing names are
// generated, missing scores come from the confidence tier, missing
// confidences from the score, and classifications outside the known
// vocabulary are recomputed locally.
func (r *Response) Candidates() []requirement.Candidate {
	var out []requirement.Candidate
	for _, res := range r.Results {
		text := requirement.CollapseSpace(res.Sentence)
		if text == "" {
			continue
		}
		c := requirement.NewCandidate(text, requirement.OriginParser)
		c.SectionTitle = res.SectionTitle
		c.SectionRef = res.SectionRef

		conf, hasConf := requirement.ParseConfidence(res.Confidence)
		switch {
		case res.Score != nil && !math.IsNaN(*res.Score):
			c.Score = math.Max(0, math.Min(1, *res.Score))
		case hasConf:
			c.Score = tierScores[conf]
		default:
			c.Score = requirement.MediumThreshold
		}
		if !hasConf {
			conf = requirement.ConfidenceFor(c.Score)
		}
		c.Confidence = conf

		if c.Classification = requirement.NormalizeClassification(res.Classification); c.Classification == requirement.ClassUnknown {
			c.Classification = requirement.Classify(text, res.SectionTitle)
		}

		c.Name = requirement.CollapseSpace(res.Name)
		if c.Name == "" {
			c.Name = requirement.GenerateName(text)
		}
		c.Flags = requirement.UnionFlags(res.Flags, nil)
		out = append(out, c)
	}
	return out
}
