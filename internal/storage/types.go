package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "file": JSON Lines file next to Path
//   - "sqlite": SQLite database file (modernc.org/sqlite, no cgo)
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

type Action string

const (
	ActionAdded          Action = "added"
	ActionFired          Action = "fired"
	ActionCancelled      Action = "cancelled"
	ActionCancelDenied   Action = "cancel_denied"
	ActionCancelConsumed Action = "cancel_consumed"
)

// AuditEntry records one reminder lifecycle step. OwnerID is who created the
// reminder; RequesterID is who issued the command behind the step.
type AuditEntry struct {
	At          time.Time `json:"at"`
	Action      Action    `json:"action"`
	ReminderID  string    `json:"reminder_id"`
	OwnerID     int64     `json:"owner_id"`
	RequesterID int64     `json:"requester_id,omitempty"`
	ChatID      int64     `json:"chat_id"`
	FireAt      time.Time `json:"fire_at,omitempty"`
	Detail      string    `json:"detail,omitempty"`
}
