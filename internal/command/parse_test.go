package command

import (
	"errors"
	"testing"
	"time"
)

func TestParseDuration(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw  string
		want time.Duration
		ok   bool
	}{
		{"5s", 5 * time.Second, true},
		{"1h30m", 90 * time.Minute, true},
		{"1w2d3h4m5s", 7*24*time.Hour + 2*24*time.Hour + 3*time.Hour + 4*time.Minute + 5*time.Second, true},
		{"2D", 48 * time.Hour, true},
		{"30m1h", 90 * time.Minute, true},
		{"0s", 0, false},
		{"1h1h", 0, false},
		{"1x", 0, false},
		{"h", 0, false},
		{"10", 0, false},
		{"1h 30m", 0, false},
		{"99999999999999999999w", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.raw, func(t *testing.T) {
			t.Parallel()
			got, err := ParseDuration(tt.raw)
			if tt.ok {
				if err != nil {
					t.Fatalf("ParseDuration(%q) error: %v", tt.raw, err)
				}
				if got != tt.want {
					t.Fatalf("ParseDuration(%q) = %v, want %v", tt.raw, got, tt.want)
				}
				return
			}
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("ParseDuration(%q) err = %v, want *ParseError", tt.raw, err)
			}
		})
	}
}

func TestFormatDuration(t *testing.T) {
	t.Parallel()
	for d, want := range map[time.Duration]string{
		90 * time.Minute:                 "1h30m",
		8*24*time.Hour + 5*time.Second:   "1w1d5s",
		1500 * time.Millisecond:          "1s",
		0:                                "0s",
		30*24*time.Hour + 12*time.Minute: "4w2d12m",
	} {
		if got := FormatDuration(d); got != want {
			t.Fatalf("FormatDuration(%v) = %q, want %q", d, got, want)
		}
	}
}

func TestParseAddressing(t *testing.T) {
	t.Parallel()
	opt := Options{BotUsername: "TimerBot"}
	tests := []struct {
		name string
		in   Input
		kind Kind
		err  error
	}{
		{name: "chatter", in: Input{Text: "see you in 5m"}, err: ErrNotAddressed},
		{name: "slash", in: Input{Text: "/timer list"}, kind: KindList},
		{name: "slash with bot", in: Input{Text: "/timer@timerbot ls"}, kind: KindList},
		{name: "word", in: Input{Text: "timer l"}, kind: KindList},
		{name: "mention text", in: Input{Text: "@TimerBot list"}, kind: KindList},
		{name: "mention flag", in: Input{Text: "list", Mentioned: true}, kind: KindList},
		{name: "mention plus trigger", in: Input{Text: "@timerbot timer ls"}, kind: KindList},
		{name: "bare trigger", in: Input{Text: "/timer"}, kind: KindHelp},
		{name: "help", in: Input{Text: "timer help"}, kind: KindHelp},
		{name: "status", in: Input{Text: "/timer st"}, kind: KindStatus},
		{name: "other bot", in: Input{Text: "/timer@otherbot list"}, err: ErrNotAddressed},
		{name: "unaddressed list word", in: Input{Text: "list"}, err: ErrNotAddressed},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Parse(tt.in, opt)
			if tt.err != nil {
				if !errors.Is(err, tt.err) {
					t.Fatalf("err = %v, want %v", err, tt.err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse error: %v", err)
			}
			if got.Kind != tt.kind {
				t.Fatalf("Kind = %s, want %s", got.Kind, tt.kind)
			}
		})
	}
}

func TestParseUnknownSubcommand(t *testing.T) {
	t.Parallel()
	_, err := Parse(Input{Text: "/timer frobnicate"}, Options{})
	var pe *ParseError
	if !errors.As(err, &pe) || pe.Msg != MsgCommandNotFound {
		t.Fatalf("err = %v, want command-not-found", err)
	}
}

func TestParseAdd(t *testing.T) {
	t.Parallel()
	opt := Options{DefaultMessage: "ding", MaxDelay: 24 * time.Hour}

	got, err := Parse(Input{Text: "/timer add 1h30m  stretch   your legs "}, opt)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got.Kind != KindAdd || got.Delay != 90*time.Minute || got.Message != "stretch   your legs" {
		t.Fatalf("got %+v", got)
	}

	for _, alias := range []string{"+", "a", "set", "s", "ADD"} {
		got, err := Parse(Input{Text: "timer " + alias + " 10s"}, opt)
		if err != nil {
			t.Fatalf("alias %q: %v", alias, err)
		}
		if got.Kind != KindAdd || got.Message != "ding" {
			t.Fatalf("alias %q: %+v", alias, got)
		}
	}

	if got, _ := Parse(Input{Text: "timer add 5m"}, Options{}); got.Message != DefaultMessage {
		t.Fatalf("fallback message = %q", got.Message)
	}

	for _, text := range []string{"timer add", "timer add soon", "timer add 2d", "timer add 1m1m hi"} {
		var pe *ParseError
		if _, err := Parse(Input{Text: text}, opt); !errors.As(err, &pe) {
			t.Fatalf("%q: err = %v, want *ParseError", text, err)
		}
	}
}

func TestParseRemove(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		in       Input
		wantChat int64
		wantMsg  int
		wantErr  bool
	}{
		{name: "reply", in: Input{Text: "/timer remove", ReplyToID: 77}, wantMsg: 77},
		{name: "bare id", in: Input{Text: "/timer - 123"}, wantMsg: 123},
		{name: "hash id", in: Input{Text: "/timer d #123"}, wantMsg: 123},
		{name: "private link", in: Input{Text: "timer r https://t.me/c/1234567890/55"}, wantChat: -1001234567890, wantMsg: 55},
		{name: "topic link", in: Input{Text: "timer r t.me/c/1234567890/9/56"}, wantChat: -1001234567890, wantMsg: 56},
		{name: "public link", in: Input{Text: "timer delete https://t.me/somegroup/88"}, wantMsg: 88},
		{name: "link beats reply", in: Input{Text: "timer r 5", ReplyToID: 9}, wantMsg: 5},
		{name: "nothing", in: Input{Text: "timer remove"}, wantErr: true},
		{name: "two targets", in: Input{Text: "timer remove 1 2"}, wantErr: true},
		{name: "link and id", in: Input{Text: "timer remove t.me/c/1/2 3"}, wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Parse(tt.in, Options{})
			if tt.wantErr {
				var pe *ParseError
				if !errors.As(err, &pe) {
					t.Fatalf("err = %v, want *ParseError", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if got.Kind != KindRemove || got.TargetChatID != tt.wantChat || got.TargetMessageID != tt.wantMsg {
				t.Fatalf("got %+v", got)
			}
		})
	}
}

func TestParseList(t *testing.T) {
	t.Parallel()
	for text, all := range map[string]bool{
		"/timer list":       false,
		"/timer ls -a":      true,
		"/timer l --all":    true,
		"/timer list all":   true,
		"/timer list later": false,
	} {
		got, err := Parse(Input{Text: text}, Options{})
		if err != nil {
			t.Fatalf("%q: %v", text, err)
		}
		if got.Kind != KindList || got.All != all {
			t.Fatalf("%q: got %+v", text, got)
		}
	}
}

func TestReminderID(t *testing.T) {
	t.Parallel()
	if got := ReminderID(-1001234, 56); got != "-1001234:56" {
		t.Fatalf("ReminderID = %q", got)
	}
}
