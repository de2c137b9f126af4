package reminder

import (
	"sort"
	"sync"
)

// ActiveSet is the authoritative id -> state map shared between the scheduler
// goroutine and readers (List). Every method holds the lock only for the map
// access itself.
type ActiveSet struct {
	mu      sync.Mutex
	entries map[string]Entry
}

func NewActiveSet() *ActiveSet {
	return &ActiveSet{entries: map[string]Entry{}}
}

// Upsert records r as scheduled. It returns false and leaves the set
// untouched when r.ID is already present (scheduled or tombstoned).
func (s *ActiveSet) Upsert(r Reminder) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[r.ID]; ok {
		return false
	}
	s.entries[r.ID] = Entry{State: StateScheduled, Owner: r.Owner, FireAt: r.FireAt, Origin: r.Origin}
	return true
}

// Cancel turns a scheduled entry owned by requester into a tombstone.
func (s *ActiveSet) Cancel(id string, requester Owner) CancelOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return CancelNotFound
	}
	if e.State == StateCancelled {
		return CancelAlreadyCancelled
	}
	if e.Owner.ID != requester.ID {
		return CancelNotOwner
	}
	e.State = StateCancelled
	s.entries[id] = e
	return CancelSuccess
}

// Snapshot returns the scheduled entries sorted by fire time, then id.
func (s *ActiveSet) Snapshot() []ListEntry {
	s.mu.Lock()
	out := make([]ListEntry, 0, len(s.entries))
	for id, e := range s.entries {
		if e.State != StateScheduled {
			continue
		}
		out = append(out, ListEntry{ID: id, Owner: e.Owner, FireAt: e.FireAt})
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].FireAt.Equal(out[j].FireAt) {
			return out[i].FireAt.Before(out[j].FireAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Consume removes id and returns the value it had.
func (s *ActiveSet) Consume(id string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if ok {
		delete(s.entries, id)
	}
	return e, ok
}

// Get returns the current value for id without mutating the set.
func (s *ActiveSet) Get(id string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	return e, ok
}

// Counts returns the number of scheduled and tombstoned entries.
func (s *ActiveSet) Counts() (scheduled, cancelled int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.State == StateCancelled {
			cancelled++
		} else {
			scheduled++
		}
	}
	return scheduled, cancelled
}

func (s *ActiveSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Filter keeps the entries visible to requester under scope. The input order
// is preserved.
func Filter(entries []ListEntry, requester Owner, scope Scope) []ListEntry {
	if scope == ScopeAll {
		return entries
	}
	out := make([]ListEntry, 0, len(entries))
	for _, e := range entries {
		if e.Owner.ID == requester.ID {
			out = append(out, e)
		}
	}
	return out
}
