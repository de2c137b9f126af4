package reminder

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestActiveSetCancelOutcomes(t *testing.T) {
	t.Parallel()
	now := time.Now()

	tests := []struct {
		name      string
		setup     func(s *ActiveSet)
		requester Owner
		want      CancelOutcome
		wantState EntryState
		wantFound bool
	}{
		{
			name:      "owner cancels",
			setup:     func(s *ActiveSet) { s.Upsert(newReminder("a", alice, now)) },
			requester: alice,
			want:      CancelSuccess,
			wantState: StateCancelled,
			wantFound: true,
		},
		{
			name:      "non owner",
			setup:     func(s *ActiveSet) { s.Upsert(newReminder("a", alice, now)) },
			requester: bob,
			want:      CancelNotOwner,
			wantState: StateScheduled,
			wantFound: true,
		},
		{
			name: "already cancelled",
			setup: func(s *ActiveSet) {
				s.Upsert(newReminder("a", alice, now))
				s.Cancel("a", alice)
			},
			requester: alice,
			want:      CancelAlreadyCancelled,
			wantState: StateCancelled,
			wantFound: true,
		},
		{
			name:      "not found",
			setup:     func(s *ActiveSet) {},
			requester: alice,
			want:      CancelNotFound,
		},
		{
			name:      "owner name is not identity",
			setup:     func(s *ActiveSet) { s.Upsert(newReminder("a", alice, now)) },
			requester: Owner{ID: alice.ID, Name: "renamed"},
			want:      CancelSuccess,
			wantState: StateCancelled,
			wantFound: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := NewActiveSet()
			tt.setup(s)
			if got := s.Cancel("a", tt.requester); got != tt.want {
				t.Fatalf("Cancel = %s, want %s", got, tt.want)
			}
			e, ok := s.Get("a")
			if ok != tt.wantFound {
				t.Fatalf("found = %v, want %v", ok, tt.wantFound)
			}
			if ok && e.State != tt.wantState {
				t.Fatalf("state = %s, want %s", e.State, tt.wantState)
			}
			if ok && (e.Owner.ID != alice.ID || e.Origin.MessageID != 42) {
				t.Fatalf("entry lost owner or origin: %+v", e)
			}
		})
	}
}

func TestActiveSetUpsertRejectsExisting(t *testing.T) {
	t.Parallel()
	s := NewActiveSet()
	now := time.Now()
	if !s.Upsert(newReminder("a", alice, now)) {
		t.Fatal("first upsert failed")
	}
	if s.Upsert(newReminder("a", bob, now.Add(time.Hour))) {
		t.Fatal("second upsert should be rejected")
	}
	e, _ := s.Get("a")
	if e.Owner != alice || !e.FireAt.Equal(now) {
		t.Fatalf("entry overwritten: %+v", e)
	}
}

func TestActiveSetConsume(t *testing.T) {
	t.Parallel()
	s := NewActiveSet()
	s.Upsert(newReminder("a", alice, time.Now()))
	s.Cancel("a", alice)

	e, ok := s.Consume("a")
	if !ok || e.State != StateCancelled {
		t.Fatalf("Consume = %+v, %v", e, ok)
	}
	if _, ok := s.Consume("a"); ok {
		t.Fatal("second consume should find nothing")
	}
}

func TestActiveSetSnapshot(t *testing.T) {
	t.Parallel()
	s := NewActiveSet()
	base := time.Now()
	s.Upsert(newReminder("c", alice, base.Add(2*time.Second)))
	s.Upsert(newReminder("b", bob, base.Add(time.Second)))
	s.Upsert(newReminder("a", alice, base.Add(time.Second)))
	s.Upsert(newReminder("x", alice, base))
	s.Cancel("x", alice)

	snap := s.Snapshot()
	if got := ids(snap); got != "a,b,c" {
		t.Fatalf("snapshot = %s", got)
	}
	if got := ids(Filter(snap, bob, ScopeMine)); got != "b" {
		t.Fatalf("mine(bob) = %s", got)
	}
	if got := ids(Filter(snap, bob, ScopeAll)); got != "a,b,c" {
		t.Fatalf("all = %s", got)
	}
	scheduled, cancelled := s.Counts()
	if scheduled != 3 || cancelled != 1 {
		t.Fatalf("counts = %d/%d", scheduled, cancelled)
	}
}

func TestActiveSetConcurrentCancel(t *testing.T) {
	t.Parallel()
	s := NewActiveSet()
	s.Upsert(newReminder("a", alice, time.Now()))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.Cancel("a", alice) == CancelSuccess {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	if wins.Load() != 1 {
		t.Fatalf("successful cancels = %d, want 1", wins.Load())
	}
}

func TestHeapOrder(t *testing.T) {
	t.Parallel()
	base := time.Now()
	var h reminderHeap
	in := []Reminder{
		{ID: "d", FireAt: base.Add(3 * time.Second)},
		{ID: "b", FireAt: base.Add(time.Second)},
		{ID: "a", FireAt: base.Add(time.Second)},
		{ID: "c", FireAt: base.Add(2 * time.Second)},
		{ID: "z", FireAt: base},
	}
	for _, r := range in {
		h.push(r)
	}
	if top, ok := h.peek(); !ok || top.ID != "z" {
		t.Fatalf("peek = %+v, %v", top, ok)
	}

	var got []string
	for h.Len() > 0 {
		got = append(got, h.pop().ID)
	}
	want := []string{"z", "a", "b", "c", "d"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("pop order = %v, want %v", got, want)
		}
	}
	if _, ok := h.peek(); ok {
		t.Fatal("peek on empty heap")
	}
}
