package reminder

import (
	"context"
	"time"

	"timerbot/internal/eventbus"
	"timerbot/internal/storage"
	logx "timerbot/pkg/logx"
)

// AuditSink is the slice of storage.Store the audit recorder needs.
type AuditSink interface {
	AppendAudit(ctx context.Context, e storage.AuditEntry) error
}

var auditActions = map[string]storage.Action{
	EventAdded:          storage.ActionAdded,
	EventFired:          storage.ActionFired,
	EventCancelled:      storage.ActionCancelled,
	EventCancelRejected: storage.ActionCancelDenied,
	EventCancelConsumed: storage.ActionCancelConsumed,
}

// AuditEntryFor maps a reminder bus event to an audit row. ok is false for
// events that are not reminder lifecycle steps.
func AuditEntryFor(ev eventbus.Event) (storage.AuditEntry, bool) {
	action, ok := auditActions[ev.Type]
	if !ok {
		return storage.AuditEntry{}, false
	}
	data, ok := ev.Data.(Event)
	if !ok {
		return storage.AuditEntry{}, false
	}
	return storage.AuditEntry{
		At:          data.At,
		Action:      action,
		ReminderID:  data.ID,
		OwnerID:     data.OwnerID,
		RequesterID: data.RequesterID,
		ChatID:      data.ChatID,
		FireAt:      data.FireAt,
		Detail:      data.Outcome,
	}, true
}

// RunAudit records reminder events into sink until ctx is done. Events are
// dropped by the bus when this falls behind; the audit trail is best-effort.
func RunAudit(ctx context.Context, bus eventbus.Bus, sink AuditSink, log logx.Logger) error {
	if bus == nil || sink == nil {
		<-ctx.Done()
		return nil
	}
	ch, unsub := bus.Subscribe(256)
	defer unsub()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			e, ok := AuditEntryFor(ev)
			if !ok {
				continue
			}
			wctx, cancel := context.WithTimeout(ctx, 2*time.Second)
			err := sink.AppendAudit(wctx, e)
			cancel()
			if err != nil {
				log.Warn("audit append failed", logx.String("id", e.ReminderID), logx.String("action", string(e.Action)), logx.Err(err))
			}
		}
	}
}
