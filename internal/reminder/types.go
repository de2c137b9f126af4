package reminder

import (
	"context"
	"time"

	kit "timerbot/internal/transport"
)

// Owner identifies the user who created a reminder. Ownership checks compare
// ID only; Name is kept for rendering.
type Owner struct {
	ID   int64
	Name string
}

// Reminder is immutable once created.
type Reminder struct {
	ID          string
	FireAt      time.Time
	Payload     string
	Destination kit.ChatTarget
	Owner       Owner

	// Origin is the request message that created the reminder. Acknowledgements
	// (reactions) are attached to it.
	Origin kit.MessageRef
}

// before reports whether r sorts ahead of o: by fire time, then by id.
func (r Reminder) before(o Reminder) bool {
	if !r.FireAt.Equal(o.FireAt) {
		return r.FireAt.Before(o.FireAt)
	}
	return r.ID < o.ID
}

type EntryState int

const (
	StateScheduled EntryState = iota
	StateCancelled
)

func (s EntryState) String() string {
	switch s {
	case StateScheduled:
		return "scheduled"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Entry is the ActiveSet value for one reminder id. A tombstone keeps the
// owner and origin so late cancel requests can still be attributed.
type Entry struct {
	State  EntryState
	Owner  Owner
	FireAt time.Time
	Origin kit.MessageRef
}

type CancelOutcome int

const (
	CancelSuccess CancelOutcome = iota
	CancelNotOwner
	CancelAlreadyCancelled
	CancelNotFound
)

func (o CancelOutcome) String() string {
	switch o {
	case CancelSuccess:
		return "success"
	case CancelNotOwner:
		return "not_owner"
	case CancelAlreadyCancelled:
		return "already_cancelled"
	case CancelNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

type Scope int

const (
	ScopeMine Scope = iota
	ScopeAll
)

func (s Scope) String() string {
	if s == ScopeAll {
		return "all"
	}
	return "mine"
}

// ListEntry is one row of a List result.
type ListEntry struct {
	ID     string
	Owner  Owner
	FireAt time.Time
}

// Origin describes where a request came from, so replies can find their way
// back (chat + request message).
type Origin struct {
	Ref       kit.MessageRef
	Requester Owner
}

// CancelTarget is what the scheduler knew about a cancel target when the
// request arrived. Owner and Origin are zero when the id was not found.
type CancelTarget struct {
	ID     string
	Owner  Owner
	Origin kit.MessageRef
}

// Notifier receives every outward effect of the scheduler. Errors are logged
// by the scheduler and otherwise ignored; implementations must not block for
// long because they run on the scheduler goroutine.
type Notifier interface {
	OnFire(ctx context.Context, r Reminder) error
	OnRegistered(ctx context.Context, r Reminder) error
	OnCancelled(ctx context.Context, outcome CancelOutcome, origin Origin, target CancelTarget) error
	// OnCancelConsumed is called when a cancelled reminder reaches the heap head
	// and its tombstone is removed.
	OnCancelConsumed(ctx context.Context, r Reminder) error
	ListResult(ctx context.Context, origin Origin, scope Scope, entries []ListEntry) error
}

// NopNotifier ignores every call.
type NopNotifier struct{}

func (NopNotifier) OnFire(context.Context, Reminder) error       { return nil }
func (NopNotifier) OnRegistered(context.Context, Reminder) error { return nil }
func (NopNotifier) OnCancelled(context.Context, CancelOutcome, Origin, CancelTarget) error {
	return nil
}
func (NopNotifier) OnCancelConsumed(context.Context, Reminder) error { return nil }
func (NopNotifier) ListResult(context.Context, Origin, Scope, []ListEntry) error {
	return nil
}
