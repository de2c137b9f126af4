package reminder

import (
	"context"
	"fmt"
	"html"
	"sync/atomic"
	"time"

	kit "timerbot/internal/transport"
)

// Enqueuer accepts outbound notifications without blocking.
// *notifier.Service satisfies it.
type Enqueuer interface {
	Notify(ctx context.Context, n kit.Notification) error
}

// Reactions are the emoji set on request messages as acknowledgements.
// An empty value disables that acknowledgement.
type Reactions struct {
	Registered string
	Fired      string
	Cancelled  string
}

// DefaultReactions mirrors the stamps the bot has always used.
var DefaultReactions = Reactions{Registered: "👍", Fired: "🔥", Cancelled: "👌"}

// Delivery is the production Notifier. Every callback only builds jobs and
// hands them to the async notifier, so the scheduler loop never waits on the
// chat API.
type Delivery struct {
	out       Enqueuer
	reactions atomic.Pointer[Reactions]
	now       func() time.Time
}

func NewDelivery(out Enqueuer, reactions Reactions) *Delivery {
	d := &Delivery{out: out, now: time.Now}
	d.SetReactions(reactions)
	return d
}

// SetReactions swaps the acknowledgement emoji at runtime.
func (d *Delivery) SetReactions(r Reactions) {
	d.reactions.Store(&r)
}

func (d *Delivery) OnFire(ctx context.Context, r Reminder) error {
	text := fmt.Sprintf("%s %s", Mention(r.Owner), html.EscapeString(r.Payload))
	var opt *kit.SendOptions
	if r.Origin.MessageID != 0 && r.Origin.ChatID == r.Destination.ChatID {
		opt = &kit.SendOptions{ParseMode: "HTML", ReplyTo: r.Origin.MessageID}
	} else {
		opt = &kit.SendOptions{ParseMode: "HTML"}
	}
	err := d.out.Notify(ctx, kit.Notification{
		Kind:     kit.NotifyText,
		Channel:  "telegram",
		Key:      "fire:" + r.ID,
		Target:   r.Destination,
		Text:     text,
		Options:  opt,
		Priority: true,
	})
	if rerr := d.react(ctx, "fired:"+r.ID, r.Origin, d.reactions.Load().Fired); err == nil {
		err = rerr
	}
	return err
}

func (d *Delivery) OnRegistered(ctx context.Context, r Reminder) error {
	return d.react(ctx, "registered:"+r.ID, r.Origin, d.reactions.Load().Registered)
}

// OnCancelled acknowledges a successful cancel on the remove request and
// restamps the original request so it no longer shows the registered mark.
// Rejections get a text reply.
func (d *Delivery) OnCancelled(ctx context.Context, outcome CancelOutcome, origin Origin, target CancelTarget) error {
	if outcome != CancelSuccess {
		return d.reply(ctx, "cancel:"+target.ID, origin, cancelText(outcome))
	}
	emoji := d.reactions.Load().Cancelled
	err := d.react(ctx, "cancelled:"+target.ID, origin.Ref, emoji)
	if target.Origin.MessageID == 0 || target.Origin == origin.Ref {
		return err
	}
	// An empty reaction clears the registered mark.
	rerr := d.out.Notify(ctx, kit.Notification{
		Kind:     kit.NotifyReaction,
		Channel:  "telegram",
		Key:      "unregistered:" + target.ID,
		Ref:      target.Origin,
		Reaction: emoji,
	})
	if err == nil {
		err = rerr
	}
	return err
}

// OnCancelConsumed has no user-visible effect: the cancel was acknowledged
// when it was accepted.
func (d *Delivery) OnCancelConsumed(context.Context, Reminder) error { return nil }

func (d *Delivery) ListResult(ctx context.Context, origin Origin, scope Scope, entries []ListEntry) error {
	return d.reply(ctx, "list", origin, RenderList(entries, scope, d.now()))
}

func cancelText(outcome CancelOutcome) string {
	switch outcome {
	case CancelNotOwner:
		return "You can only cancel your own reminders."
	case CancelAlreadyCancelled, CancelNotFound:
		return "Nothing to cancel."
	default:
		return "Cancelled."
	}
}

func (d *Delivery) reply(ctx context.Context, key string, origin Origin, text string) error {
	return d.out.Notify(ctx, kit.Notification{
		Kind:    kit.NotifyText,
		Channel: "telegram",
		Key:     key,
		Target:  origin.Ref.Target(),
		Text:    text,
		Options: &kit.SendOptions{ParseMode: "HTML", DisablePreview: true, ReplyTo: origin.Ref.MessageID},
	})
}

func (d *Delivery) react(ctx context.Context, key string, ref kit.MessageRef, emoji string) error {
	if emoji == "" || ref.MessageID == 0 {
		return nil
	}
	return d.out.Notify(ctx, kit.Notification{
		Kind:     kit.NotifyReaction,
		Channel:  "telegram",
		Key:      key,
		Ref:      ref,
		Reaction: emoji,
	})
}
