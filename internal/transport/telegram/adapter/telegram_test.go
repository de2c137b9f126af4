package adapter

import (
	"encoding/json"
	"strings"
	"testing"

	tele "gopkg.in/telebot.v4"

	kit "timerbot/internal/transport"
)

func TestSplitTelegramText(t *testing.T) {
	t.Parallel()
	if got := splitTelegramText("short", 10, ""); len(got) != 1 || got[0] != "short" {
		t.Fatalf("short = %q", got)
	}

	lines := strings.Repeat("line\n", 10)
	got := splitTelegramText(lines, 12, "")
	for _, c := range got {
		if len([]rune(c)) > 12 {
			t.Fatalf("chunk %q exceeds limit", c)
		}
		if strings.HasPrefix(c, "\n") || strings.HasSuffix(c, "\n") {
			t.Fatalf("chunk %q has edge newline", c)
		}
	}
	if strings.Join(got, "\n") != strings.TrimRight(lines, "\n") {
		t.Fatalf("rejoined = %q", strings.Join(got, "\n"))
	}

	html := "aaaaaaa<b>bold</b>"
	for _, c := range splitTelegramText(html, 10, "HTML") {
		if strings.Count(c, "<") != strings.Count(c, ">") {
			t.Fatalf("chunk %q splits a tag", c)
		}
	}
}

func TestMentionsBot(t *testing.T) {
	t.Parallel()
	m := &tele.Message{
		Text:     "@TimerBot list",
		Entities: tele.Entities{{Type: tele.EntityMention, Offset: 0, Length: 9}},
	}
	if !mentionsBot(m, "timerbot", 0) {
		t.Fatal("mention not detected")
	}
	if mentionsBot(m, "otherbot", 0) {
		t.Fatal("foreign mention detected")
	}
	tm := &tele.Message{
		Text:     "Timer list",
		Entities: tele.Entities{{Type: tele.EntityTMention, Offset: 0, Length: 5, User: &tele.User{ID: 77}}},
	}
	if !mentionsBot(tm, "", 77) {
		t.Fatal("text mention not detected")
	}
}

func TestToKitMessage(t *testing.T) {
	t.Parallel()
	m := &tele.Message{
		ID:      10,
		Text:    "/timer add 5m",
		Chat:    &tele.Chat{ID: -100, Type: tele.ChatSuperGroup},
		Sender:  &tele.User{ID: 1, FirstName: "Ada", LastName: "L", Username: "ada"},
		ReplyTo: &tele.Message{ID: 9},
	}
	km := toKitMessage(m, "timerbot", 5)
	if km.ID != 10 || km.ChatID != -100 || !km.IsGroup || km.FromID != 1 || km.FromName != "Ada L" || km.ReplyToID != 9 || km.FromBot {
		t.Fatalf("kit message = %+v", km)
	}
}

func TestReactionPayload(t *testing.T) {
	t.Parallel()
	ref := kit.MessageRef{ChatID: -1, MessageID: 3}
	b, _ := json.Marshal(reactionPayload(ref, "🔥"))
	if string(b) != `{"chat_id":-1,"message_id":3,"reaction":[{"type":"emoji","emoji":"🔥"}]}` {
		t.Fatalf("payload = %s", b)
	}
	b, _ = json.Marshal(reactionPayload(ref, ""))
	if string(b) != `{"chat_id":-1,"message_id":3,"reaction":[]}` {
		t.Fatalf("clear payload = %s", b)
	}
}
