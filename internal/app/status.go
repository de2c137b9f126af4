package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"timerbot/internal/notifier"
	"timerbot/internal/reminder"
	logx "timerbot/pkg/logx"
)

const statusJobName = "reminders.status"

// statusSnapshot gathers what both the status reply and the periodic status
// log report.
type statusSnapshot struct {
	Started  time.Time
	Now      time.Time
	Sched    reminder.Stats
	Notifier notifier.Stats
	NextRun  time.Time
}

func (a *App) snapshot() statusSnapshot {
	s := statusSnapshot{
		Started:  a.started,
		Now:      time.Now(),
		Sched:    a.sched.Stats(),
		Notifier: a.notif.Stats(),
	}
	if next, ok := a.cron.Next(statusJobName); ok {
		s.NextRun = next
	}
	return s
}

func renderStatus(s statusSnapshot) string {
	var b strings.Builder
	b.WriteString("<b>Timer bot status</b>\n")
	fmt.Fprintf(&b, "Up since %s (%s)\n", s.Started.Format("2006-01-02 15:04:05"), humanize.RelTime(s.Started, s.Now, "ago", "from now"))
	running := "running"
	if !s.Sched.Running {
		running = "stopped"
	}
	fmt.Fprintf(&b, "Scheduler: %s, %s scheduled, %s cancelled awaiting cleanup\n",
		running, humanize.Comma(int64(s.Sched.Scheduled)), humanize.Comma(int64(s.Sched.Tombstones)))
	fmt.Fprintf(&b, "Fired: %s, cancelled: %s\n",
		humanize.Comma(int64(s.Sched.Fired)), humanize.Comma(int64(s.Sched.Cancelled)))
	fmt.Fprintf(&b, "Command queue: %d/%d\n", s.Sched.QueueLen, s.Sched.QueueCap)
	fmt.Fprintf(&b, "Deliveries: %s sent, %s failed, %s dropped",
		humanize.Comma(int64(s.Notifier.Sent)), humanize.Comma(int64(s.Notifier.Failed)), humanize.Comma(int64(s.Notifier.Dropped)))
	if !s.NextRun.IsZero() {
		fmt.Fprintf(&b, "\nNext housekeeping %s", humanize.RelTime(s.NextRun, s.Now, "ago", "from now"))
	}
	return b.String()
}

// runStatusJob logs scheduler health and prunes the audit log past its
// retention.
func (a *App) runStatusJob(ctx context.Context) error {
	s := a.snapshot()
	a.log.Info("reminder status",
		logx.Bool("running", s.Sched.Running),
		logx.Int("scheduled", s.Sched.Scheduled),
		logx.Int("tombstones", s.Sched.Tombstones),
		logx.Int("heap", s.Sched.Pending),
		logx.Uint64("fired", s.Sched.Fired),
		logx.Uint64("cancelled", s.Sched.Cancelled),
		logx.Int("queue_len", s.Sched.QueueLen),
		logx.Uint64("notify_failed", s.Notifier.Failed),
		logx.Uint64("notify_dropped", s.Notifier.Dropped),
	)

	if a.store == nil {
		return nil
	}
	retention := a.cfgm.Get().Storage.RetentionValue()
	if retention <= 0 {
		return nil
	}
	n, err := a.store.PruneAudit(ctx, s.Now.Add(-retention))
	if err != nil {
		return fmt.Errorf("prune audit: %w", err)
	}
	if n > 0 {
		a.log.Info("audit pruned", logx.Int("rows", n), logx.Duration("retention", retention))
	}
	return nil
}
