package command

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

type Kind int

const (
	KindAdd Kind = iota + 1
	KindRemove
	KindList
	KindHelp
	// KindStatus is restricted to bot owners by the router.
	KindStatus
)

func (k Kind) String() string {
	switch k {
	case KindAdd:
		return "add"
	case KindRemove:
		return "remove"
	case KindList:
		return "list"
	case KindHelp:
		return "help"
	case KindStatus:
		return "status"
	default:
		return "unknown"
	}
}

// Request is a parsed chat command.
type Request struct {
	Kind Kind

	// Add
	Delay   time.Duration
	Message string

	// Remove. TargetChatID is 0 when the target lives in the requesting chat.
	TargetChatID    int64
	TargetMessageID int

	// List
	All bool
}

// ErrNotAddressed means the message was not meant for the bot and should be
// ignored silently.
var ErrNotAddressed = errors.New("message not addressed to the bot")

// ParseError is a user-facing validation failure.
type ParseError struct {
	Msg string
}

func (e *ParseError) Error() string { return e.Msg }

func parseErr(format string, args ...any) error {
	return &ParseError{Msg: fmt.Sprintf(format, args...)}
}

const (
	MsgCommandNotFound = "Command not found. Try /timer help."
	DefaultMessage     = "Time's up! ⏰"
)

// Options tune parsing. Zero values fall back to defaults.
type Options struct {
	// BotUsername without '@'; used to strip mentions and /timer@bot suffixes.
	BotUsername    string
	DefaultMessage string
	// MaxDelay caps add durations (0 = unlimited).
	MaxDelay time.Duration
}

// Input is the part of an incoming message the parser looks at.
type Input struct {
	Text      string
	Mentioned bool
	ReplyToID int
}

var (
	addWords    = []string{"+", "add", "a", "set", "s"}
	removeWords = []string{"-", "remove", "r", "delete", "d"}
	listWords   = []string{"list", "l", "ls"}
	helpWords   = []string{"help", "h", "?"}
	statusWords = []string{"status", "st"}
)

// Parse turns a chat message into a Request. It returns ErrNotAddressed for
// unrelated chatter and *ParseError for malformed commands.
func Parse(in Input, opt Options) (Request, error) {
	content, mentioned := stripMention(strings.TrimSpace(in.Text), opt.BotUsername)
	mentioned = mentioned || in.Mentioned

	fields := strings.Fields(content)
	if len(fields) > 0 && isTrigger(fields[0], opt.BotUsername) {
		content = strings.TrimSpace(content[len(fields[0]):])
		fields = fields[1:]
		mentioned = true
	}
	if !mentioned {
		return Request{}, ErrNotAddressed
	}
	if len(fields) == 0 {
		return Request{Kind: KindHelp}, nil
	}

	word := strings.ToLower(fields[0])
	rest := strings.TrimSpace(content[len(fields[0]):])
	switch {
	case contains(addWords, word):
		return parseAdd(fields[1:], rest, opt)
	case contains(removeWords, word):
		return parseRemove(rest, in.ReplyToID)
	case contains(listWords, word):
		return Request{Kind: KindList, All: hasFlag(fields[1:], "-a", "--all", "all")}, nil
	case contains(helpWords, word):
		return Request{Kind: KindHelp}, nil
	case contains(statusWords, word):
		return Request{Kind: KindStatus}, nil
	default:
		return Request{}, &ParseError{Msg: MsgCommandNotFound}
	}
}

func parseAdd(args []string, rest string, opt Options) (Request, error) {
	if len(args) == 0 {
		return Request{}, parseErr("Please specify a duration, e.g. /timer add 1h30m stretch.")
	}
	d, err := ParseDuration(args[0])
	if err != nil {
		return Request{}, err
	}
	if opt.MaxDelay > 0 && d > opt.MaxDelay {
		return Request{}, parseErr("Duration %s exceeds the maximum of %s.", FormatDuration(d), FormatDuration(opt.MaxDelay))
	}

	msg := strings.TrimSpace(rest[len(args[0]):])
	if msg == "" {
		msg = opt.DefaultMessage
	}
	if msg == "" {
		msg = DefaultMessage
	}
	return Request{Kind: KindAdd, Delay: d, Message: msg}, nil
}

var (
	// t.me/c/<internal id>/<msg> or t.me/c/<internal id>/<thread>/<msg>
	privateLinkRe = regexp.MustCompile(`(?:https?://)?t\.me/c/(\d+)/(?:\d+/)?(\d+)`)
	// t.me/<username>/<msg>
	publicLinkRe = regexp.MustCompile(`(?:https?://)?t\.me/([A-Za-z][A-Za-z0-9_]{3,})/(\d+)`)
	bareIDRe     = regexp.MustCompile(`^#?(\d+)$`)
)

func parseRemove(rest string, replyTo int) (Request, error) {
	type target struct {
		chat int64
		msg  int
	}
	var found []target

	for _, m := range privateLinkRe.FindAllStringSubmatch(rest, -1) {
		internal, err1 := strconv.ParseInt(m[1], 10, 64)
		msg, err2 := strconv.Atoi(m[2])
		if err1 != nil || err2 != nil {
			return Request{}, parseErr("Invalid message link.")
		}
		found = append(found, target{chat: supergroupChatID(internal), msg: msg})
	}
	rest = privateLinkRe.ReplaceAllString(rest, "")
	for _, m := range publicLinkRe.FindAllStringSubmatch(rest, -1) {
		msg, err := strconv.Atoi(m[2])
		if err != nil {
			return Request{}, parseErr("Invalid message link.")
		}
		// Public links carry a username, not an id; the target must be in this chat.
		found = append(found, target{msg: msg})
	}
	rest = publicLinkRe.ReplaceAllString(rest, "")
	for _, f := range strings.Fields(rest) {
		if m := bareIDRe.FindStringSubmatch(f); m != nil {
			msg, err := strconv.Atoi(m[1])
			if err != nil {
				return Request{}, parseErr("Invalid message id %q.", f)
			}
			found = append(found, target{msg: msg})
		}
	}

	switch {
	case len(found) > 1:
		return Request{}, parseErr("Please specify only one reminder to remove.")
	case len(found) == 1:
		return Request{Kind: KindRemove, TargetChatID: found[0].chat, TargetMessageID: found[0].msg}, nil
	case replyTo != 0:
		return Request{Kind: KindRemove, TargetMessageID: replyTo}, nil
	default:
		return Request{}, parseErr("Reply to the reminder request, or pass its message link or id.")
	}
}

// supergroupChatID converts the id used in t.me/c/ links back to a Bot API
// chat id.
func supergroupChatID(internal int64) int64 {
	return -1_000_000_000_000 - internal
}

// ReminderID is the identity of the reminder created by message msgID in
// chatID.
func ReminderID(chatID int64, msgID int) string {
	return strconv.FormatInt(chatID, 10) + ":" + strconv.Itoa(msgID)
}

func stripMention(text, bot string) (string, bool) {
	bot = strings.TrimPrefix(strings.TrimSpace(bot), "@")
	if bot == "" {
		return text, false
	}
	mention := "@" + strings.ToLower(bot)
	fields := strings.Fields(text)
	if len(fields) == 0 || strings.ToLower(fields[0]) != mention {
		return text, false
	}
	return strings.TrimSpace(text[len(fields[0]):]), true
}

func isTrigger(word, bot string) bool {
	w := strings.ToLower(word)
	if w == "timer" || w == "/timer" {
		return true
	}
	bot = strings.TrimPrefix(strings.TrimSpace(bot), "@")
	return bot != "" && w == "/timer@"+strings.ToLower(bot)
}

func contains(words []string, w string) bool {
	for _, x := range words {
		if x == w {
			return true
		}
	}
	return false
}

func hasFlag(args []string, flags ...string) bool {
	for _, a := range args {
		if contains(flags, strings.ToLower(a)) {
			return true
		}
	}
	return false
}
