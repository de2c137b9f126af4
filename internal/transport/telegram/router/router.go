// Package router turns incoming Telegram messages into reminder commands.
//
// Messages are parsed on the poll goroutine; handlers run on a bounded
// worker pool behind a middleware chain (panic recovery, request log,
// timeout). Every reply goes out through the async notifier.
package router

import (
	"context"
	"errors"
	"slices"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"timerbot/internal/command"
	"timerbot/internal/reminder"
	rtsup "timerbot/internal/runtime/supervisor"
	kit "timerbot/internal/transport"
	logx "timerbot/pkg/logx"
)

const (
	MsgBusy         = "I'm busy right now, please try again."
	MsgUnauthorized = "Only bot owners can do that."
	MsgShuttingDown = "I'm shutting down, please try again later."
)

// CommandSink receives scheduler commands; *reminder.Commands satisfies it.
type CommandSink interface {
	Send(ctx context.Context, cmd reminder.Command) error
}

type NotifierPort interface {
	Notify(ctx context.Context, n kit.Notification) error
}

// Options are the hot-reloadable router settings.
type Options struct {
	BotUsername    string
	DefaultMessage string
	MaxDelay       time.Duration
	HandlerTimeout time.Duration
	Owners         []int64
}

type Request struct {
	Msg    *kit.Message
	Chat   kit.ChatTarget
	Origin reminder.Origin
	Parsed command.Request
	ReqID  string
	Logger logx.Logger
	// Received is when the message reached the router; add delays count from here.
	Received time.Time
}

type Router struct {
	log     logx.Logger
	sink    CommandSink
	out     NotifierPort
	status  func() string
	opts    atomic.Pointer[Options]
	workers int
	shards  []chan func()
	now     func() time.Time
}

// New builds a router. workers and queue bound concurrent handlers and the
// pending handler backlog. status renders the owner-only status reply.
func New(log logx.Logger, sink CommandSink, out NotifierPort, status func() string, workers, queue int, opts Options) *Router {
	if log.IsZero() {
		log = logx.Nop()
	}
	if workers <= 0 {
		workers = 4
	}
	if queue <= 0 {
		queue = 256
	}
	if status == nil {
		status = func() string { return "ok" }
	}
	r := &Router{
		log:     log,
		sink:    sink,
		out:     out,
		status:  status,
		workers: workers,
		shards:  newShards(workers, queue),
		now:     time.Now,
	}
	r.SetOptions(opts)
	return r
}

// SetOptions swaps the settings. Safe during hot reload.
func (r *Router) SetOptions(o Options) {
	o.Owners = slices.Clone(o.Owners)
	r.opts.Store(&o)
}

func (r *Router) options() Options { return *r.opts.Load() }

// DispatchLoop consumes updates until ctx ends or updates is closed, then
// drains the worker pool briefly.
func (r *Router) DispatchLoop(ctx context.Context, updates <-chan kit.Update) error {
	sup := rtsup.New(ctx, rtsup.WithLogger(r.log.With(logx.String("comp", "telegram.router"))))
	for i := 0; i < r.workers; i++ {
		jobs := r.shards[i]
		sup.GoRestart("router.worker."+strconv.Itoa(i), func(c context.Context) error {
			for {
				select {
				case <-c.Done():
					return nil
				case job, ok := <-jobs:
					if !ok {
						return nil
					}
					job()
				}
			}
		}, rtsup.WithRestartBackoff(200*time.Millisecond, 5*time.Second))
	}
	r.log.Info("command dispatcher started", logx.Int("workers", r.workers), logx.Int("shard_queue_cap", cap(r.shards[0])))

	defer func() {
		for _, ch := range r.shards {
			close(ch)
		}
		wctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		_ = sup.Wait(wctx)
		cancel()
		r.log.Info("command dispatcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			r.route(ctx, up)
		}
	}
}

func (r *Router) route(ctx context.Context, up kit.Update) {
	if up.Kind != kit.UpdateMessage || up.Message == nil || up.Message.FromBot {
		return
	}
	msg := up.Message
	opt := r.options()

	parsed, err := command.Parse(command.Input{
		Text:      msg.Text,
		Mentioned: msg.Mentioned,
		ReplyToID: msg.ReplyToID,
	}, command.Options{
		BotUsername:    opt.BotUsername,
		DefaultMessage: opt.DefaultMessage,
		MaxDelay:       opt.MaxDelay,
	})
	if errors.Is(err, command.ErrNotAddressed) {
		return
	}

	req := r.newRequest(msg, parsed)
	if err != nil {
		var pe *command.ParseError
		if errors.As(err, &pe) {
			req.Logger.Debug("command rejected", logx.String("reason", pe.Msg))
			r.reply(ctx, req, pe.Msg, "")
		}
		return
	}

	final := Chain(r.handle,
		MWPanicRecover(r.log),
		MWRequestLog(r.log),
		MWTimeout(opt.HandlerTimeout),
	)
	select {
	case r.shardFor(msg.ChatID) <- func() { _ = final(ctx, req) }:
	default:
		r.reply(ctx, req, MsgBusy, "")
	}
}

// newShards splits the queue budget across one channel per worker.
func newShards(workers, queue int) []chan func() {
	per := queue / workers
	if per < 16 {
		per = 16
	}
	out := make([]chan func(), workers)
	for i := range out {
		out[i] = make(chan func(), per)
	}
	return out
}

// shardFor pins a chat to one worker so its commands run in arrival order.
func (r *Router) shardFor(chatID int64) chan func() {
	return r.shards[uint64(chatID)%uint64(len(r.shards))]
}

func (r *Router) newRequest(msg *kit.Message, parsed command.Request) *Request {
	rid := uuid.NewString()
	chat := kit.ChatTarget{ChatID: msg.ChatID, ThreadID: msg.ThreadID}
	return &Request{
		Msg:    msg,
		Chat:   chat,
		Parsed: parsed,
		ReqID:  rid,
		Origin: reminder.Origin{
			Ref:       kit.MessageRef{ChatID: msg.ChatID, ThreadID: msg.ThreadID, MessageID: msg.ID},
			Requester: reminder.Owner{ID: msg.FromID, Name: msg.FromName},
		},
		Logger: r.log.With(
			logx.String("rid", rid),
			logx.Int64("chat_id", msg.ChatID),
			logx.Int64("from_id", msg.FromID),
		),
		Received: r.now(),
	}
}

func (r *Router) handle(ctx context.Context, req *Request) error {
	var cmd reminder.Command
	switch p := req.Parsed; p.Kind {
	case command.KindAdd:
		cmd = reminder.AddCommand(reminder.Reminder{
			ID:          command.ReminderID(req.Msg.ChatID, req.Msg.ID),
			FireAt:      req.Received.Add(p.Delay),
			Payload:     p.Message,
			Destination: req.Chat,
			Owner:       req.Origin.Requester,
			Origin:      req.Origin.Ref,
		})
	case command.KindRemove:
		chat := p.TargetChatID
		if chat == 0 {
			chat = req.Msg.ChatID
		}
		cmd = reminder.CancelCommand(command.ReminderID(chat, p.TargetMessageID), req.Origin)
	case command.KindList:
		scope := reminder.ScopeMine
		if p.All {
			scope = reminder.ScopeAll
		}
		cmd = reminder.ListCommand(scope, req.Origin)
	case command.KindHelp:
		r.reply(ctx, req, command.HelpText, "HTML")
		return nil
	case command.KindStatus:
		if !slices.Contains(r.options().Owners, req.Msg.FromID) {
			r.reply(ctx, req, MsgUnauthorized, "")
			return nil
		}
		r.reply(ctx, req, r.status(), "HTML")
		return nil
	default:
		return errors.New("unhandled command kind " + p.Kind.String())
	}

	if err := r.sink.Send(ctx, cmd); err != nil {
		if errors.Is(err, reminder.ErrClosed) {
			r.reply(ctx, req, MsgShuttingDown, "")
		}
		return err
	}
	return nil
}

func (r *Router) reply(ctx context.Context, req *Request, text, parseMode string) {
	err := r.out.Notify(ctx, kit.Notification{
		Kind:    kit.NotifyText,
		Channel: "telegram",
		Key:     "reply:" + req.ReqID,
		Target:  req.Chat,
		Text:    text,
		Options: &kit.SendOptions{ParseMode: parseMode, DisablePreview: true, ReplyTo: req.Msg.ID},
	})
	if err != nil {
		req.Logger.Warn("reply not queued", logx.Err(err))
	}
}
