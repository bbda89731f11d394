// Package extract runs the requirement extraction pipeline for one document
// at a time and arbitrates concurrent runs with per-document run tokens.
//
// Every run takes a fresh token from a process-wide sequence and cancels the
// context of the run it replaces. After each suspension point (the parser
// call, the persisted-text query) the run re-checks that its token is still
// current; a superseded run returns a discarded Result and never writes the
// cache. The final check and the cache write share the run-table lock.
package extract

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/hpungsan/reqlens/internal/cache"
	"github.com/hpungsan/reqlens/internal/document"
	"github.com/hpungsan/reqlens/internal/errors"
	"github.com/hpungsan/reqlens/internal/metrics"
	"github.com/hpungsan/reqlens/internal/parser"
	"github.com/hpungsan/reqlens/internal/requirement"
)

// sequence issues run tokens. It only grows.
var sequence atomic.Uint64

// PersistedFunc returns the texts of already accepted requirements.
type PersistedFunc func(ctx context.Context) ([]string, error)

// Options configures an Extractor. Store is required.
type Options struct {
	// Parser is the external parser; nil runs the heuristic pipeline only.
	Parser    parser.Parser
	Store     cache.Store
	Segmenter *requirement.Segmenter
	Persisted PersistedFunc
	Logger    *zap.Logger
	Metrics   *metrics.Metrics
}

// Result is the outcome of one extraction run.
type Result struct {
	RunID             string                  `json:"run_id"`
	DocumentID        string                  `json:"document_id"`
	Signature         string                  `json:"signature"`
	Candidates        []requirement.Candidate `json:"candidates"`
	ParserMode        cache.ParserMode        `json:"parser_mode"`
	ParserError       string                  `json:"parser_error,omitempty"`
	ExternalAvailable bool                    `json:"external_available"`

	// Cached is set when the result came from an unchanged cache entry
	Cached bool `json:"cached"`

	// Discarded is set when a newer run for the same document superseded
	// this one. Nothing else in the Result is meaningful then.
	Discarded bool `json:"discarded"`
}

type run struct {
	token  uint64
	cancel context.CancelFunc
}

// Extractor runs extractions. It is safe for concurrent use.
type Extractor struct {
	parser    parser.Parser
	store     cache.Store
	segmenter *requirement.Segmenter
	persisted PersistedFunc
	logger    *zap.Logger
	metrics   *metrics.Metrics

	mu   sync.Mutex
	runs map[string]run
}

// New builds an Extractor.
func New(opts Options) *Extractor {
	e := &Extractor{
		parser:    opts.Parser,
		store:     opts.Store,
		segmenter: opts.Segmenter,
		persisted: opts.Persisted,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		runs:      make(map[string]run),
	}
	if e.segmenter == nil {
		e.segmenter = requirement.NewSegmenter()
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	e.logger = e.logger.Named("extract")
	return e
}

// Store returns the cache backing the extractor.
func (e *Extractor) Store() cache.Store {
	return e.store
}

// Extract returns candidates for doc. An unchanged cache entry is returned
// as is unless force is set. Parser failures fall back to the heuristic
// pipeline and are reported in ParserError, never as an error.
func (e *Extractor) Extract(ctx context.Context, doc *document.Document, force bool) (*Result, error) {
	start := time.Now()
	token, runCtx, cancel := e.begin(ctx, doc.ID)
	defer cancel()
	defer e.finish(doc.ID, token)

	res := &Result{
		RunID:      ulid.Make().String(),
		DocumentID: doc.ID,
		Signature:  doc.Signature(),
	}
	log := e.logger.With(zap.String("run_id", res.RunID), zap.String("document", doc.Name))

	if !force {
		entry, err := e.store.Get(runCtx, doc.ID)
		if err != nil {
			return nil, err
		}
		switch {
		case entry == nil:
			e.metrics.CacheLookup("miss")
		case entry.Signature != res.Signature:
			e.metrics.CacheLookup("stale")
		default:
			e.metrics.CacheLookup("hit")
			res.Candidates = entry.Candidates
			res.ParserMode = entry.ParserMode
			res.ParserError = entry.ParserError
			res.ExternalAvailable = entry.ExternalAvailable
			res.Cached = true
			if err := e.markDuplicates(runCtx, res.Candidates); err != nil {
				return nil, err
			}
			log.Debug("cache hit", zap.Int("candidates", len(res.Candidates)))
			return res, nil
		}
	}

	blocks := e.segmenter.Segment(doc.Text)
	res.ParserMode = cache.ModeHeuristic

	if e.parserConfigured() {
		resp, err := e.parser.Parse(runCtx, parser.NewRequest(blocks, string(doc.Type)))
		if !e.current(doc.ID, token) {
			return e.discard(log), nil
		}
		if err != nil && ctx.Err() != nil {
			return nil, errors.NewCancelled("extract")
		}

		res.ExternalAvailable = resp != nil && resp.SpacyAvailable
		if err != nil {
			res.ParserError = err.Error()
			e.metrics.ParserFallback()
			log.Warn("parser failed, using heuristics", zap.Error(err))
		} else {
			res.Candidates = resp.Candidates()
			res.ParserMode = cache.ModePython
		}
	}

	if res.ParserMode == cache.ModeHeuristic {
		res.Candidates = requirement.HeuristicCandidates(blocks)
	}
	if res.Candidates == nil {
		res.Candidates = []requirement.Candidate{}
	}

	if err := e.markDuplicates(runCtx, res.Candidates); err != nil {
		if !e.current(doc.ID, token) {
			return e.discard(log), nil
		}
		return nil, err
	}

	ok, err := e.commit(runCtx, token, res)
	if err != nil {
		return nil, err
	}
	if !ok {
		return e.discard(log), nil
	}

	elapsed := time.Since(start)
	e.metrics.ObserveRun(string(res.ParserMode), elapsed)
	log.Info("extraction complete",
		zap.String("mode", string(res.ParserMode)),
		zap.Int("blocks", len(blocks)),
		zap.Int("candidates", len(res.Candidates)),
		zap.Duration("elapsed", elapsed))
	return res, nil
}

// Forget cancels any in-flight run for documentID and drops its cache entry.
func (e *Extractor) Forget(ctx context.Context, documentID string) error {
	e.mu.Lock()
	if r, ok := e.runs[documentID]; ok {
		r.cancel()
		delete(e.runs, documentID)
	}
	e.mu.Unlock()
	return e.store.Delete(ctx, documentID)
}

// Running reports whether a run for documentID is in flight.
func (e *Extractor) Running(documentID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.runs[documentID]
	return ok
}

func (e *Extractor) parserConfigured() bool {
	if e.parser == nil {
		return false
	}
	if a, ok := e.parser.(interface{ Available() bool }); ok {
		return a.Available()
	}
	return true
}

// begin registers a new run for documentID, cancelling the one it replaces.
func (e *Extractor) begin(ctx context.Context, documentID string) (uint64, context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithCancel(ctx)
	token := sequence.Add(1)

	e.mu.Lock()
	if prev, ok := e.runs[documentID]; ok {
		prev.cancel()
	}
	e.runs[documentID] = run{token: token, cancel: cancel}
	e.mu.Unlock()

	return token, runCtx, cancel
}

func (e *Extractor) current(documentID string, token uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.runs[documentID]
	return ok && r.token == token
}

// commit writes res to the cache if token is still the current run for the
// document. The check and the write happen under mu so a run superseded or
// forgotten in between cannot land a stale entry.
func (e *Extractor) commit(ctx context.Context, token uint64, res *Result) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if r, ok := e.runs[res.DocumentID]; !ok || r.token != token {
		return false, nil
	}
	err := cache.Put(ctx, e.store, res.DocumentID, res.Signature, res.Candidates, res.ParserMode, res.ParserError, res.ExternalAvailable)
	return err == nil, err
}

func (e *Extractor) finish(documentID string, token uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if r, ok := e.runs[documentID]; ok && r.token == token {
		delete(e.runs, documentID)
	}
}

func (e *Extractor) discard(log *zap.Logger) *Result {
	e.metrics.StaleRun()
	log.Debug("run superseded, discarding")
	return &Result{Discarded: true}
}

func (e *Extractor) markDuplicates(ctx context.Context, cands []requirement.Candidate) error {
	if e.persisted == nil {
		requirement.MarkDuplicates(cands, nil)
		return nil
	}
	texts, err := e.persisted(ctx)
	if err != nil {
		return err
	}
	requirement.MarkDuplicates(cands, texts)
	return nil
}
