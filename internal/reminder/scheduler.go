package reminder

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"timerbot/internal/eventbus"
	logx "timerbot/pkg/logx"
)

// maxSleep caps a single wait so wall-clock steps (NTP, suspend/resume) are
// picked up within a bounded delay.
const maxSleep = time.Minute

// Scheduler owns the reminder heap. Run must be called from exactly one
// goroutine; List and Stats are safe from anywhere.
type Scheduler struct {
	log      logx.Logger
	bus      eventbus.Bus
	active   *ActiveSet
	cmds     *Commands
	notifier Notifier
	now      func() time.Time

	// h is touched only by the Run goroutine.
	h reminderHeap

	pending   atomic.Int64
	fired     atomic.Uint64
	cancelled atomic.Uint64
	running   atomic.Bool
}

// Stats is a point-in-time diagnostic view.
type Stats struct {
	Running    bool
	Pending    int // heap entries, including stale tombstones
	Scheduled  int
	Tombstones int
	Fired      uint64
	Cancelled  uint64
	QueueLen   int
	QueueCap   int
}

func New(cmds *Commands, active *ActiveSet, n Notifier, log logx.Logger, bus eventbus.Bus) *Scheduler {
	if log.IsZero() {
		log = logx.Nop()
	}
	if n == nil {
		n = NopNotifier{}
	}
	if active == nil {
		active = NewActiveSet()
	}
	return &Scheduler{
		log:      log,
		bus:      bus,
		active:   active,
		cmds:     cmds,
		notifier: n,
		now:      time.Now,
	}
}

// Run drives the scheduler until the command channel is closed (returns nil)
// or ctx is cancelled (returns ctx.Err()). Reminders still pending at that
// point are dropped; nothing is persisted.
func (s *Scheduler) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return fmt.Errorf("reminder scheduler already running")
	}
	defer s.running.Store(false)

	s.log.Info("scheduler started", logx.Int("queue_cap", s.cmds.Cap()))

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	recv := s.cmds.Recv()

	for {
		if err := ctx.Err(); err != nil {
			s.log.Info("scheduler stopped", logx.String("reason", "context"), logx.Int("pending", len(s.h)))
			return err
		}

		var timerC <-chan time.Time
		if next, ok := s.h.peek(); ok {
			wait := next.FireAt.Sub(s.now())
			if wait <= 0 {
				// Due items are drained before any wait is re-armed.
				s.consumeTop(ctx)
				continue
			}
			if wait > maxSleep {
				wait = maxSleep
			}
			if timer == nil {
				timer = time.NewTimer(wait)
			} else {
				timer.Reset(wait)
			}
			timerC = timer.C
		} else if timer != nil {
			timer.Stop()
		}

		select {
		case <-ctx.Done():
			continue
		case <-timerC:
			// Re-peek on the next iteration; the head may be due now.
		case cmd, ok := <-recv:
			if !ok {
				s.log.Info("scheduler stopped", logx.String("reason", "channel closed"), logx.Int("pending", len(s.h)))
				return nil
			}
			s.handle(ctx, cmd)
		}
	}
}

func (s *Scheduler) handle(ctx context.Context, cmd Command) {
	switch cmd.Kind {
	case CommandAdd:
		s.add(ctx, cmd.Reminder)
	case CommandCancel:
		s.cancel(ctx, cmd.TargetID, cmd.Origin)
	case CommandList:
		entries := s.List(cmd.Origin.Requester, cmd.Scope)
		s.call("list_result", "", func() error {
			return s.notifier.ListResult(ctx, cmd.Origin, cmd.Scope, entries)
		})
	default:
		s.log.Warn("unknown command kind", logx.Int("kind", int(cmd.Kind)))
	}
}

func (s *Scheduler) add(ctx context.Context, r Reminder) {
	if !s.active.Upsert(r) {
		// Ids are tied 1:1 to request messages; a repeat is a redelivered update.
		s.log.Warn("duplicate reminder id ignored", logx.String("id", r.ID))
		return
	}
	s.h.push(r)
	s.pending.Store(int64(len(s.h)))
	s.log.Debug("reminder added",
		logx.String("id", r.ID),
		logx.Int64("owner_id", r.Owner.ID),
		logx.Time("fire_at", r.FireAt),
		logx.Int("pending", len(s.h)),
	)
	s.publish(EventAdded, r, "", r.Owner)
	s.call("on_registered", r.ID, func() error { return s.notifier.OnRegistered(ctx, r) })
}

func (s *Scheduler) cancel(ctx context.Context, targetID string, origin Origin) {
	outcome := s.active.Cancel(targetID, origin.Requester)
	s.log.Debug("cancel requested",
		logx.String("id", targetID),
		logx.Int64("requester_id", origin.Requester.ID),
		logx.String("outcome", outcome.String()),
	)
	target := CancelTarget{ID: targetID}
	// Only Run mutates the set, so this read sees the state Cancel just decided on.
	if e, ok := s.active.Get(targetID); ok {
		target.Owner, target.Origin = e.Owner, e.Origin
	}
	ev := Reminder{ID: targetID, Owner: target.Owner, Destination: origin.Ref.Target()}
	if outcome == CancelSuccess {
		s.cancelled.Add(1)
		s.publish(EventCancelled, ev, outcome.String(), origin.Requester)
	} else {
		s.publish(EventCancelRejected, ev, outcome.String(), origin.Requester)
	}
	s.call("on_cancelled", targetID, func() error {
		return s.notifier.OnCancelled(ctx, outcome, origin, target)
	})
}

// consumeTop pops the heap head and resolves it against the ActiveSet.
func (s *Scheduler) consumeTop(ctx context.Context) {
	r := s.h.pop()
	s.pending.Store(int64(len(s.h)))

	e, ok := s.active.Consume(r.ID)
	switch {
	case !ok:
		s.log.Debug("popped reminder without active entry", logx.String("id", r.ID))
	case e.State == StateScheduled:
		s.fired.Add(1)
		s.log.Info("reminder fired",
			logx.String("id", r.ID),
			logx.Int64("chat_id", r.Destination.ChatID),
			logx.Duration("late", s.now().Sub(r.FireAt)),
		)
		s.publish(EventFired, r, "", Owner{})
		s.call("on_fire", r.ID, func() error { return s.notifier.OnFire(ctx, r) })
	default:
		s.log.Debug("cancelled reminder consumed", logx.String("id", r.ID))
		s.publish(EventCancelConsumed, r, "", Owner{})
		s.call("on_cancel_consumed", r.ID, func() error { return s.notifier.OnCancelConsumed(ctx, r) })
	}
}

// call runs one notifier callback. Errors and panics are logged and
// swallowed; scheduler state has already moved on.
func (s *Scheduler) call(name, id string, fn func() error) {
	defer func() {
		if p := recover(); p != nil {
			s.log.Error("notifier panicked",
				logx.String("call", name),
				logx.String("id", id),
				logx.Any("panic", p),
				logx.String("stack", string(debug.Stack())),
			)
		}
	}()
	if err := fn(); err != nil {
		s.log.Warn("notifier call failed", logx.String("call", name), logx.String("id", id), logx.Err(err))
	}
}

// List returns the live reminders visible to requester, ordered by fire time
// then id. It never mutates state.
func (s *Scheduler) List(requester Owner, scope Scope) []ListEntry {
	return Filter(s.active.Snapshot(), requester, scope)
}

func (s *Scheduler) Stats() Stats {
	scheduled, tombstones := s.active.Counts()
	return Stats{
		Running:    s.running.Load(),
		Pending:    int(s.pending.Load()),
		Scheduled:  scheduled,
		Tombstones: tombstones,
		Fired:      s.fired.Load(),
		Cancelled:  s.cancelled.Load(),
		QueueLen:   s.cmds.Len(),
		QueueCap:   s.cmds.Cap(),
	}
}

// publish emits a lifecycle event. requester is who asked for the change,
// zero for scheduler-driven transitions.
func (s *Scheduler) publish(typ string, r Reminder, outcome string, requester Owner) {
	if s.bus == nil {
		return
	}
	now := s.now()
	s.bus.Publish(eventbus.Event{Type: typ, Time: now, Data: Event{
		ID:      r.ID,
		OwnerID:     r.Owner.ID,
		Owner:       r.Owner.Name,
		RequesterID: requester.ID,
		ChatID:      r.Destination.ChatID,
		FireAt:      r.FireAt,
		Outcome:     outcome,
		At:          now,
	}})
}
