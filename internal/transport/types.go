package transport

import "context"

type UpdateKind string

const (
	UpdateMessage UpdateKind = "message"
)

type Update struct {
	Kind    UpdateKind
	Message *Message
}

type Message struct {
	ID           int
	ChatID       int64
	ThreadID     int // telegram forum topic thread id (0 if none)
	FromID       int64
	FromUsername string
	// FromName is the sender's display name (first and last name).
	FromName string
	FromBot      bool
	Text         string
	IsGroup      bool

	// ReplyToID is the id of the message this one replies to (0 if none).
	ReplyToID int
	// Mentioned is set by the adapter when the bot itself is @-mentioned.
	Mentioned bool
}

type ChatTarget struct {
	ChatID   int64
	ThreadID int
}

type MessageRef struct {
	ChatID    int64
	ThreadID  int
	MessageID int
}

func (r MessageRef) Target() ChatTarget { return ChatTarget{ChatID: r.ChatID, ThreadID: r.ThreadID} }

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
	// ReplyTo makes the message a reply to the given message id (0 = plain message).
	ReplyTo int
}

type NotificationKind string

const (
	NotifyText     NotificationKind = "text"
	NotifyReaction NotificationKind = "reaction"
)

// Notification is one outbound delivery handled by the async notifier.
//
// Text notifications send Text to Target. Reaction notifications set Reaction
// on the message Ref (an empty Reaction clears it).
type Notification struct {
	Kind     NotificationKind
	Channel  string // "telegram" now
	Key      string // optional caller key, used for logs/events
	Target   ChatTarget
	Text     string
	Options  *SendOptions
	Ref      MessageRef
	Reaction string

	// Priority jobs use a reserved lane that workers drain first, so a burst
	// of acknowledgements cannot crowd them out.
	Priority bool
}

type Adapter interface {
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error

	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
	React(ctx context.Context, ref MessageRef, emoji string) error
}
