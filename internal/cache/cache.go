// Package cache stores extraction results per document, keyed by a cheap
// content signature so unchanged documents skip re-extraction.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hpungsan/reqlens/internal/requirement"
)

// ParserMode records which pipeline produced a cache entry.
type ParserMode string

const (
	ModePython    ParserMode = "python"
	ModeHeuristic ParserMode = "heuristic"
)

// Entry is one document's cached extraction result.
type Entry struct {
	Signature         string                  `json:"signature"`
	Candidates        []requirement.Candidate `json:"candidates"`
	ParserMode        ParserMode              `json:"parser_mode"`
	ParserError       string                  `json:"parser_error,omitempty"`
	ExternalAvailable bool                    `json:"external_available"`
	UpdatedAt         time.Time               `json:"updated_at"`
}

// Store is the persistence contract for extraction results. Writes are
// last-write-wins per document id.
type Store interface {
	// Get returns the entry for documentID, or nil if none is stored.
	Get(ctx context.Context, documentID string) (*Entry, error)
	Put(ctx context.Context, documentID string, entry Entry) error
	Delete(ctx context.Context, documentID string) error
}

// Lookup returns the stored entry only when its signature equals signature.
// A missing entry and a stale entry are both reported as a miss.
func Lookup(ctx context.Context, s Store, documentID, signature string) (*Entry, error) {
	e, err := s.Get(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("cache get: %w", err)
	}
	if e == nil || e.Signature != signature {
		return nil, nil
	}
	return e, nil
}

// Put stores an extraction result, stamping UpdatedAt.
func Put(ctx context.Context, s Store, documentID, signature string, cands []requirement.Candidate, mode ParserMode, parserErr string, externalAvailable bool) error {
	return s.Put(ctx, documentID, Entry{
		Signature:         signature,
		Candidates:        cands,
		ParserMode:        mode,
		ParserError:       parserErr,
		ExternalAvailable: externalAvailable,
		UpdatedAt:         time.Now().UTC(),
	})
}

// Memory is a process-local Store.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]Entry)}
}

func (m *Memory) Get(_ context.Context, documentID string) (*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[documentID]
	if !ok {
		return nil, nil
	}
	e.Candidates = append([]requirement.Candidate(nil), e.Candidates...)
	return &e, nil
}

func (m *Memory) Put(_ context.Context, documentID string, entry Entry) error {
	entry.Candidates = append([]requirement.Candidate(nil), entry.Candidates...)
	m.mu.Lock()
	m.entries[documentID] = entry
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(_ context.Context, documentID string) error {
	m.mu.Lock()
	delete(m.entries, documentID)
	m.mu.Unlock()
	return nil
}

// Len returns the number of cached documents.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
