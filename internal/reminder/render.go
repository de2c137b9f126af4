package reminder

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// RenderList formats a List result as Telegram HTML.
func RenderList(entries []ListEntry, scope Scope, now time.Time) string {
	if len(entries) == 0 {
		if scope == ScopeAll {
			return "No reminders scheduled."
		}
		return "You have no reminders scheduled."
	}

	var b strings.Builder
	title := "Your reminders"
	if scope == ScopeAll {
		title = "All reminders"
	}
	fmt.Fprintf(&b, "<b>%s</b> (%s)\n", title, humanize.Comma(int64(len(entries))))
	for i, e := range entries {
		fmt.Fprintf(&b, "%d. <code>%s</code> %s, %s",
			i+1,
			html.EscapeString(e.ID),
			humanize.RelTime(e.FireAt, now, "overdue", "from now"),
			e.FireAt.Format("2006-01-02 15:04:05"),
		)
		if scope == ScopeAll {
			fmt.Fprintf(&b, " by %s", html.EscapeString(ownerLabel(e.Owner)))
		}
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

func ownerLabel(o Owner) string {
	if o.Name != "" {
		return o.Name
	}
	return fmt.Sprintf("user %d", o.ID)
}

// Mention renders an HTML mention that pings o.
func Mention(o Owner) string {
	return fmt.Sprintf(`<a href="tg://user?id=%d">%s</a>`, o.ID, html.EscapeString(ownerLabel(o)))
}
