package requirement

import (
	"crypto/rand"
	"slices"
	"time"

	"github.com/oklog/ulid/v2"
)

// Record is an accepted requirement. Records are owned by the persistence
// layer; the pipeline only produces them from candidates.
type Record struct {
	// ID is a ULID, so records sort by acceptance time
	ID string `json:"id"`

	DocumentID     string     `json:"document_id"`
	CandidateID    string     `json:"candidate_id"`
	Name           string     `json:"name"`
	Text           string     `json:"text"`
	Confidence     Confidence `json:"confidence"`
	Score          float64    `json:"score"`
	Classification string     `json:"classification,omitempty"`
	Allocation     *string    `json:"allocation"`
	Flags          []string   `json:"flags"`

	// Source is the document name the requirement came from
	Source    string `json:"source"`
	CreatedAt int64  `json:"created_at"`
}

// NewRecordID returns a fresh ULID string.
func NewRecordID() string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// NewRecord snapshots c as an accepted requirement.
func NewRecord(c Candidate, documentID, source string) Record {
	var alloc *string
	if c.Allocation != nil {
		v := *c.Allocation
		alloc = &v
	}
	return Record{
		ID:             NewRecordID(),
		DocumentID:     documentID,
		CandidateID:    c.ID,
		Name:           c.Name,
		Text:           c.Text,
		Confidence:     c.Confidence,
		Score:          c.Score,
		Classification: c.Classification,
		Allocation:     alloc,
		Flags:          slices.Clone(c.Flags),
		Source:         source,
		CreatedAt:      time.Now().Unix(),
	}
}
