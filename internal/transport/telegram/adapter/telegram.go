// Package adapter connects the bot to Telegram through telebot.
package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	tele "gopkg.in/telebot.v4"

	rtsup "timerbot/internal/runtime/supervisor"
	kit "timerbot/internal/transport"
	logx "timerbot/pkg/logx"
)

type Config struct {
	Token       string
	PollTimeout time.Duration
}

type Adapter struct {
	cfg Config
	log logx.Logger

	bot     *tele.Bot
	out     atomic.Pointer[chan<- kit.Update]
	runMu   sync.Mutex
	running bool

	// sup owns the poll loop and drop reporter; created on Start.
	sup *rtsup.Supervisor

	// droppedUpdates counts updates lost because the consumer was slower
	// than the poll loop. Reported periodically.
	droppedUpdates atomic.Uint64
}

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: timeout},
	})
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	a := &Adapter{cfg: cfg, log: log, bot: b}
	a.bot.Handle(tele.OnText, func(c tele.Context) error {
		if m := c.Message(); m != nil {
			a.sendUpdate(kit.Update{Kind: kit.UpdateMessage, Message: toKitMessage(m, a.Username(), a.botID())})
		}
		return nil
	})
	return a, nil
}

// Username is the bot's own @username without the @.
func (a *Adapter) Username() string {
	if a.bot == nil || a.bot.Me == nil {
		return ""
	}
	return a.bot.Me.Username
}

func (a *Adapter) botID() int64 {
	if a.bot == nil || a.bot.Me == nil {
		return 0
	}
	return a.bot.Me.ID
}

func toKitMessage(m *tele.Message, botUsername string, botID int64) *kit.Message {
	km := &kit.Message{
		ID:       m.ID,
		ThreadID: m.ThreadID,
		Text:     m.Text,
	}
	if m.Chat != nil {
		km.ChatID = m.Chat.ID
		km.IsGroup = m.Chat.Type == tele.ChatGroup || m.Chat.Type == tele.ChatSuperGroup
	}
	if u := m.Sender; u != nil {
		km.FromID = u.ID
		km.FromUsername = u.Username
		km.FromBot = u.IsBot
		km.FromName = strings.TrimSpace(u.FirstName + " " + u.LastName)
		if km.FromName == "" {
			km.FromName = u.Username
		}
	}
	if m.ReplyTo != nil {
		km.ReplyToID = m.ReplyTo.ID
	}
	km.Mentioned = mentionsBot(m, botUsername, botID)
	return km
}

func mentionsBot(m *tele.Message, username string, id int64) bool {
	for _, e := range m.Entities {
		switch e.Type {
		case tele.EntityMention:
			if username != "" && strings.EqualFold(strings.TrimPrefix(m.EntityText(e), "@"), username) {
				return true
			}
		case tele.EntityTMention:
			if e.User != nil && id != 0 && e.User.ID == id {
				return true
			}
		}
	}
	return false
}

func (a *Adapter) sendUpdate(up kit.Update) {
	p := a.out.Load()
	if p == nil || *p == nil {
		return
	}
	select {
	case *p <- up:
	default:
		a.droppedUpdates.Add(1)
	}
}

func (a *Adapter) Start(ctx context.Context, out chan<- kit.Update) error {
	a.runMu.Lock()
	if a.running {
		a.runMu.Unlock()
		return nil
	}
	a.running = true
	a.out.Store(&out)
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log.With(logx.String("comp", "telegram.adapter"))))
	sup := a.sup
	a.runMu.Unlock()

	sup.Go0("updates.drop_report", func(c context.Context) {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		report := func() {
			if n := a.droppedUpdates.Swap(0); n > 0 {
				a.log.Warn("incoming updates dropped (channel full)", logx.Uint64("count", n), logx.Int("chan_cap", cap(out)))
			}
		}
		for {
			select {
			case <-c.Done():
				report()
				return
			case <-ticker.C:
				report()
			}
		}
	})

	sup.Go0("telebot.stop_on_cancel", func(c context.Context) {
		<-c.Done()
		a.bot.Stop()
	})

	// telebot's Start can return unexpectedly; restart it while ctx is live.
	sup.GoRestart("telebot.poll", func(c context.Context) error {
		a.log.Info("polling started", logx.String("bot", a.Username()))
		a.bot.Start()
		a.log.Info("polling stopped")
		if c.Err() != nil {
			return nil
		}
		return errors.New("poller exited")
	}, rtsup.WithRestartBackoff(500*time.Millisecond, 10*time.Second))

	return nil
}

func (a *Adapter) Stop(ctx context.Context) error {
	a.runMu.Lock()
	sup := a.sup
	a.sup = nil
	wasRunning := a.running
	a.running = false
	a.out.Store(nil)
	a.runMu.Unlock()

	if !wasRunning {
		return nil
	}
	a.log.Info("stopping", logx.Uint64("dropped_updates_pending", a.droppedUpdates.Load()))
	sup.Cancel()
	go a.bot.Stop()

	// Keep shutdown snappy even if getUpdates is still long-polling.
	grace := 2 * time.Second
	if dl, ok := ctx.Deadline(); ok {
		if rem := time.Until(dl); rem > 0 && rem < grace {
			grace = rem
		}
	}
	wctx, cancel := context.WithTimeout(ctx, grace)
	defer cancel()
	if err := sup.Wait(wctx); err != nil {
		a.log.Warn("telegram stop incomplete", logx.Err(err))
	}
	return nil
}

const telegramTextLimit = 4000

// splitTelegramText splits long messages into chunks Telegram accepts,
// preferring newline boundaries and, for HTML, avoiding cuts inside a tag.
func splitTelegramText(s string, limit int, parseMode string) []string {
	if limit <= 0 {
		limit = telegramTextLimit
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return []string{s}
	}

	out := make([]string, 0, (len(rs)+limit-1)/limit)
	start := 0
	for start < len(rs) {
		end := min(start+limit, len(rs))

		if end < len(rs) {
			for i := end - 1; i > start; i-- {
				// avoid tiny chunks
				if rs[i] == '\n' && i-start >= limit/3 {
					end = i + 1
					break
				}
			}
		}

		if strings.EqualFold(parseMode, "HTML") && end < len(rs) {
			lastOpen, lastClose := -1, -1
			for i := start; i < end; i++ {
				switch rs[i] {
				case '<':
					lastOpen = i
				case '>':
					lastClose = i
				}
			}
			if lastOpen > lastClose && lastOpen > start+1 {
				end = lastOpen
			}
		}

		out = append(out, strings.TrimRight(string(rs[start:end]), "\n"))
		start = end
		for start < len(rs) && rs[start] == '\n' {
			start++
		}
	}
	return out
}

// SendText sends text, split into chunks if needed. Only the first chunk is
// a reply. The returned ref points at the first chunk.
func (a *Adapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	if opt == nil {
		opt = &kit.SendOptions{}
	}
	chat := &tele.Chat{ID: to.ChatID}

	var first kit.MessageRef
	for i, chunk := range splitTelegramText(text, telegramTextLimit, opt.ParseMode) {
		if err := ctx.Err(); err != nil {
			return first, err
		}
		sendOpt := &tele.SendOptions{
			ParseMode:             tele.ParseMode(opt.ParseMode),
			DisableWebPagePreview: opt.DisablePreview,
			ThreadID:              to.ThreadID,
		}
		if i == 0 && opt.ReplyTo != 0 {
			sendOpt.ReplyTo = &tele.Message{ID: opt.ReplyTo, Chat: chat}
			sendOpt.AllowWithoutReply = true
		}
		msg, err := a.bot.Send(chat, chunk, sendOpt)
		if err != nil {
			return first, err
		}
		if i == 0 {
			first = kit.MessageRef{ChatID: to.ChatID, ThreadID: to.ThreadID, MessageID: msg.ID}
		}
	}
	return first, nil
}

type reactionType struct {
	Type  string `json:"type"`
	Emoji string `json:"emoji"`
}

type setReactionParams struct {
	ChatID    int64          `json:"chat_id"`
	MessageID int            `json:"message_id"`
	Reaction  []reactionType `json:"reaction"`
}

func reactionPayload(ref kit.MessageRef, emoji string) setReactionParams {
	p := setReactionParams{ChatID: ref.ChatID, MessageID: ref.MessageID, Reaction: []reactionType{}}
	if emoji != "" {
		p.Reaction = append(p.Reaction, reactionType{Type: "emoji", Emoji: emoji})
	}
	return p
}

// React sets emoji as the bot's reaction on ref; an empty emoji clears it.
func (a *Adapter) React(ctx context.Context, ref kit.MessageRef, emoji string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := a.bot.Raw("setMessageReaction", reactionPayload(ref, emoji))
	if err != nil {
		return err
	}
	var resp struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	if err := json.Unmarshal(raw, &resp); err == nil && !resp.OK {
		return errors.New("setMessageReaction: " + resp.Description)
	}
	return nil
}
