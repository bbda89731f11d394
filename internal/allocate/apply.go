package allocate

import (
	"strings"

	"github.com/hpungsan/reqlens/internal/errors"
	"github.com/hpungsan/reqlens/internal/requirement"
)

// Find returns the subsystem whose name matches name case-insensitively.
func Find(subs []Subsystem, name string) (Subsystem, bool) {
	key := requirement.NormalizedKey(name)
	for _, s := range subs {
		if requirement.NormalizedKey(s.Name) == key {
			return s, true
		}
	}
	return Subsystem{}, false
}

// ResolveName maps an externally proposed allocation onto a known subsystem.
// System-level spellings and unknown names resolve to SystemLevel.
func ResolveName(name string, subs []Subsystem) string {
	switch requirement.NormalizedKey(name) {
	case "", "system", "system-level", "system level":
		return SystemLevel
	}
	if s, ok := Find(subs, name); ok {
		return s.Name
	}
	return SystemLevel
}

// Apply merges a suggestion into the candidate. When create is true and the
// suggestion proposes a new subsystem, the name must pass
// ValidateSubsystemName; the new subsystem is returned so the caller can add
// it to the catalog. A proposed name that already exists is reused.
func Apply(c *requirement.Candidate, s Suggestion, subs []Subsystem, create bool) (*Subsystem, error) {
	if c.Imported {
		return nil, errors.NewConflict("candidate " + c.ID + " is already accepted")
	}
	if s.CandidateID != "" && s.CandidateID != c.ID {
		return nil, errors.NewInvalidRequest("suggestion is for candidate " + s.CandidateID)
	}

	var created *Subsystem
	allocation := s.Allocation

	if create && s.NewSubsystemName != "" {
		name := CleanSubsystemName(s.NewSubsystemName)
		if err := ValidateSubsystemName(name); err != nil {
			return nil, err
		}
		if existing, ok := Find(subs, name); ok {
			name = existing.Name
		} else {
			created = &Subsystem{Name: name}
		}
		allocation = &name
		c.AddFlag("allocation:new-subsystem")
	}

	if allocation == nil || strings.TrimSpace(*allocation) == "" {
		c.Allocation = nil
		return created, nil
	}

	value := *allocation
	c.Allocation = &value
	if s.Rule != "" {
		c.AddFlag("allocation:" + string(s.Rule))
	}
	return created, nil
}
