package reminder

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	kit "timerbot/internal/transport"
	logx "timerbot/pkg/logx"
)

type call struct {
	Kind    string
	ID      string
	Outcome CancelOutcome
	Scope   Scope
	Entries []ListEntry
	Target  CancelTarget
	At      time.Time
}

// recorder is a Notifier that records every call and signals on each one.
type recorder struct {
	mu    sync.Mutex
	calls []call
	ch    chan call

	// failWith makes every call return this error after recording it.
	failWith error
	// panicOn makes the named call kind panic after recording it.
	panicOn string
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan call, 256)}
}

func (r *recorder) record(c call) error {
	c.At = time.Now()
	r.mu.Lock()
	r.calls = append(r.calls, c)
	r.mu.Unlock()
	select {
	case r.ch <- c:
	default:
	}
	if r.panicOn == c.Kind {
		panic("boom: " + c.Kind)
	}
	return r.failWith
}

func (r *recorder) OnFire(_ context.Context, rm Reminder) error {
	return r.record(call{Kind: "fire", ID: rm.ID})
}

func (r *recorder) OnRegistered(_ context.Context, rm Reminder) error {
	return r.record(call{Kind: "registered", ID: rm.ID})
}

func (r *recorder) OnCancelled(_ context.Context, o CancelOutcome, _ Origin, target CancelTarget) error {
	return r.record(call{Kind: "cancelled", ID: target.ID, Outcome: o, Target: target})
}

func (r *recorder) OnCancelConsumed(_ context.Context, rm Reminder) error {
	return r.record(call{Kind: "cancel_consumed", ID: rm.ID})
}

func (r *recorder) ListResult(_ context.Context, _ Origin, scope Scope, entries []ListEntry) error {
	return r.record(call{Kind: "list", Scope: scope, Entries: entries})
}

func (r *recorder) snapshot() []call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]call(nil), r.calls...)
}

func (r *recorder) count(kind, id string) int {
	n := 0
	for _, c := range r.snapshot() {
		if c.Kind == kind && c.ID == id {
			n++
		}
	}
	return n
}

// wait blocks until a call of kind (and id, when non-empty) arrives.
func (r *recorder) wait(t *testing.T, kind, id string, timeout time.Duration) call {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case c := <-r.ch:
			if c.Kind == kind && (id == "" || c.ID == id) {
				return c
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s(%s); calls: %+v", kind, id, r.snapshot())
			return call{}
		}
	}
}

var errNotify = errors.New("notify failed")

type harness struct {
	t     *testing.T
	cmds  *Commands
	rec   *recorder
	sched *Scheduler
	done  chan error
	start time.Time
}

func startHarness(t *testing.T, rec *recorder) *harness {
	t.Helper()
	if rec == nil {
		rec = newRecorder()
	}
	cmds := NewCommands(16)
	h := &harness{
		t:     t,
		cmds:  cmds,
		rec:   rec,
		sched: New(cmds, NewActiveSet(), rec, logx.Nop(), nil),
		done:  make(chan error, 1),
		start: time.Now(),
	}
	go func() { h.done <- h.sched.Run(context.Background()) }()
	t.Cleanup(func() {
		cmds.Close()
		select {
		case <-h.done:
		case <-time.After(2 * time.Second):
			t.Error("scheduler did not stop")
		}
	})
	return h
}

func (h *harness) send(cmd Command) {
	h.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := h.cmds.Send(ctx, cmd); err != nil {
		h.t.Fatalf("send %s: %v", cmd.Kind, err)
	}
}

func (h *harness) add(id string, owner Owner, in time.Duration) {
	h.t.Helper()
	h.send(AddCommand(newReminder(id, owner, time.Now().Add(in))))
}

func (h *harness) cancel(id string, requester Owner) {
	h.t.Helper()
	h.send(CancelCommand(id, Origin{Requester: requester}))
}

var (
	alice = Owner{ID: 1, Name: "alice"}
	bob   = Owner{ID: 2, Name: "bob"}
)

func newReminder(id string, owner Owner, at time.Time) Reminder {
	return Reminder{
		ID:          id,
		FireAt:      at,
		Payload:     "ping " + id,
		Destination: kit.ChatTarget{ChatID: -100},
		Owner:       owner,
		Origin:      kit.MessageRef{ChatID: -100, MessageID: 42},
	}
}
