// Package storage persists the reminder audit trail.
//
// The audit log is diagnostics only. Reminders themselves live in memory and
// are never restored from it.
package storage
