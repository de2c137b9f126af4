package config

import (
	"reflect"
	"strings"

	logx "timerbot/pkg/logx"
)

// SummarizeConfigChange returns a compact list of changed sections and safe
// structured attrs for logging. Tokens are never included.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 5)
	attrs := make([]logx.Field, 0, 16)

	ot, nt := oldCfg.Telegram, newCfg.Telegram
	if strings.TrimSpace(ot.PollTimeout) != strings.TrimSpace(nt.PollTimeout) ||
		!reflect.DeepEqual(ot.OwnerUserIDs, nt.OwnerUserIDs) ||
		strings.TrimSpace(ot.GroupLog) != strings.TrimSpace(nt.GroupLog) ||
		ot.Token != nt.Token {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.String("telegram.poll_timeout", strings.TrimSpace(nt.PollTimeout)),
			logx.Int("telegram.owner_count", len(nt.OwnerUserIDs)),
			logx.Bool("telegram.group_log_set", strings.TrimSpace(nt.GroupLog) != ""),
			logx.Bool("telegram.token_changed", ot.Token != nt.Token),
		)
	}

	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
			logx.Bool("logging.telegram_enabled", newCfg.Logging.Telegram.Enabled),
		)
	}

	if !reflect.DeepEqual(oldCfg.Reminders, newCfg.Reminders) {
		r := newCfg.Reminders
		changed = append(changed, "reminders")
		attrs = append(attrs,
			logx.String("reminders.max_delay", strings.TrimSpace(r.MaxDelay)),
			logx.String("reminders.status_cron", strings.TrimSpace(r.StatusCron)),
			logx.Bool("reminders.queue_size_changed", oldCfg.Reminders.QueueSize != r.QueueSize),
			logx.Bool("reminders.reactions_changed", oldCfg.Reminders.Reactions != r.Reactions),
		)
	}

	if !reflect.DeepEqual(oldCfg.Notifier, newCfg.Notifier) {
		changed = append(changed, "notifier")
		if n := newCfg.Notifier; n != nil {
			attrs = append(attrs,
				logx.Bool("notifier.enabled", n.Enabled),
				logx.Int("notifier.workers", n.Workers),
				logx.Int("notifier.rate_per_sec", n.RatePerSec),
			)
		} else {
			attrs = append(attrs, logx.Bool("notifier.defaults", true))
		}
	}

	if !reflect.DeepEqual(oldCfg.Storage, newCfg.Storage) {
		changed = append(changed, "storage")
		if s := newCfg.Storage; s != nil {
			attrs = append(attrs,
				logx.String("storage.driver", strings.TrimSpace(s.Driver)),
				logx.String("storage.retention", strings.TrimSpace(s.Retention)),
			)
		}
	}

	if !reflect.DeepEqual(oldCfg.Debug, newCfg.Debug) {
		changed = append(changed, "debug")
		if d := newCfg.Debug; d != nil {
			attrs = append(attrs,
				logx.Bool("debug.enabled", d.Enabled),
				logx.String("debug.addr", strings.TrimSpace(d.Addr)),
				logx.Bool("debug.pprof", d.Pprof),
				logx.Bool("debug.token_set", d.Token != ""),
			)
		}
	}

	return changed, attrs
}

// StorageChanged reports whether the storage backend itself differs.
// Retention alone is applied live; driver and path need a restart.
func StorageChanged(oldCfg, newCfg *Config) bool {
	var o, n StorageConfig
	if oldCfg != nil && oldCfg.Storage != nil {
		o = *oldCfg.Storage
	}
	if newCfg != nil && newCfg.Storage != nil {
		n = *newCfg.Storage
	}
	return !strings.EqualFold(strings.TrimSpace(o.Driver), strings.TrimSpace(n.Driver)) ||
		strings.TrimSpace(o.Path) != strings.TrimSpace(n.Path) ||
		strings.TrimSpace(o.BusyTimeout) != strings.TrimSpace(n.BusyTimeout)
}
