package reminder

import "time"

// Event types published on the event bus by the scheduler.
const (
	EventAdded          = "reminder.added"
	EventFired          = "reminder.fired"
	EventCancelled      = "reminder.cancelled"
	EventCancelRejected = "reminder.cancel_rejected"
	EventCancelConsumed = "reminder.cancel_consumed"
)

// Event is the Data payload of every reminder.* bus event. OwnerID is the
// reminder's creator (0 when a cancel names an unknown id); RequesterID is the
// user whose command caused the event.
type Event struct {
	ID          string    `json:"id"`
	OwnerID     int64     `json:"owner_id"`
	Owner       string    `json:"owner,omitempty"`
	RequesterID int64     `json:"requester_id,omitempty"`
	ChatID      int64     `json:"chat_id"`
	FireAt      time.Time `json:"fire_at,omitempty"`
	Outcome     string    `json:"outcome,omitempty"`
	At          time.Time `json:"at"`
}
