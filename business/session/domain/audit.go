// Package domain holds the session audit trail and notifications.
package domain

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fd1az/arbguard/internal/apperror"
)

// Entry kinds.
const (
	EntryScan      = "scan"
	EntryVeto      = "veto"
	EntryExecution = "execution"
	EntryBreaker   = "breaker"
	EntryControl   = "control"
)

// Entry is one recorded decision.
type Entry struct {
	ID            string
	UserID        string
	Kind          string
	OpportunityID string
	// Decision is the outcome: a guard name for vetoes, an execution
	// status, a breaker reason, or a control action.
	Decision string
	Code     apperror.Code
	Reason   string
	At       time.Time
}

// NewEntry assigns an id.
func NewEntry(userID, kind, decision string, at time.Time) Entry {
	return Entry{ID: uuid.NewString(), UserID: userID, Kind: kind, Decision: decision, At: at}
}

// Trail keeps the most recent entries. Once full, the oldest entry is
// dropped for every new one.
type Trail struct {
	mu      sync.Mutex
	entries []Entry
	max     int
}

func NewTrail(max int) *Trail {
	if max <= 0 {
		max = 1
	}
	return &Trail{entries: make([]Entry, 0, max), max: max}
}

func (t *Trail) Record(e Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.entries) >= t.max {
		copy(t.entries, t.entries[1:])
		t.entries[len(t.entries)-1] = e
		return
	}
	t.entries = append(t.entries, e)
}

// Entries returns a copy, oldest first.
func (t *Trail) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Query returns the entries about one opportunity.
func (t *Trail) Query(opportunityID string) []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []Entry
	for _, e := range t.entries {
		if e.OpportunityID == opportunityID {
			out = append(out, e)
		}
	}
	return out
}

func (t *Trail) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
