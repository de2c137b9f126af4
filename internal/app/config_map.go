package app

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"timerbot/internal/config"
	"timerbot/internal/notifier"
	"timerbot/internal/observability/debugsrv"
	"timerbot/internal/reminder"
	"timerbot/internal/storage"
	"timerbot/internal/transport/telegram/router"
	logx "timerbot/pkg/logx"
)

func mapStorageConfig(cfg *config.Config) (storage.Config, bool, error) {
	if cfg == nil || cfg.Storage == nil {
		return storage.Config{}, false, nil
	}
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	path := strings.TrimSpace(sc.Path)
	switch driver {
	case "", "none":
		return storage.Config{}, false, nil
	case "file":
		return storage.Config{Driver: "file", Path: path}, true, nil
	case "sqlite", "sqlite3":
		if path == "" {
			return storage.Config{}, false, fmt.Errorf("storage.path is required when storage.driver=sqlite")
		}
		busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
		if err != nil {
			return storage.Config{}, false, err
		}
		return storage.Config{Driver: driver, Path: path, BusyTimeout: busy}, true, nil
	default:
		return storage.Config{}, false, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
}

// mapNotifierConfig defaults to an enabled notifier when the section is
// omitted; reminders cannot be delivered without it.
func mapNotifierConfig(cfg *config.Config) (notifier.Config, error) {
	if cfg == nil || cfg.Notifier == nil {
		return notifier.Config{Enabled: true}, nil
	}
	n := cfg.Notifier
	base, err := config.ParseDurationField("notifier.retry_base", n.RetryBase)
	if err != nil {
		return notifier.Config{}, err
	}
	maxDelay, err := config.ParseDurationField("notifier.retry_max_delay", n.RetryMaxDelay)
	if err != nil {
		return notifier.Config{}, err
	}
	return notifier.Config{
		Enabled:       n.Enabled,
		Workers:       n.Workers,
		QueueSize:     n.QueueSize,
		RatePerSec:    n.RatePerSec,
		RetryMax:      n.RetryMax,
		RetryBase:     base,
		RetryMaxDelay: maxDelay,
	}, nil
}

func mapLogConfig(cfg *config.Config) logx.Config {
	l := cfg.Logging
	return logx.Config{
		Level:   l.Level,
		Console: l.Console,
		File:    logx.FileConfig{Enabled: l.File.Enabled, Path: l.File.Path},
		Telegram: logx.TelegramConfig{
			Enabled:    l.Telegram.Enabled,
			ThreadID:   l.Telegram.ThreadID,
			MinLevel:   l.Telegram.MinLevel,
			RatePerSec: l.Telegram.RatePerSec,
		},
	}
}

// groupLogTarget parses telegram.group_log; 0 means unset.
func groupLogTarget(cfg *config.Config) int64 {
	id, err := strconv.ParseInt(strings.TrimSpace(cfg.Telegram.GroupLog), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// mapReactions applies configured emoji over the defaults; "-" disables one.
func mapReactions(rc config.ReactionsConfig) reminder.Reactions {
	pick := func(v, def string) string {
		switch v = strings.TrimSpace(v); v {
		case "":
			return def
		case "-":
			return ""
		default:
			return v
		}
	}
	d := reminder.DefaultReactions
	return reminder.Reactions{
		Registered: pick(rc.Registered, d.Registered),
		Fired:      pick(rc.Fired, d.Fired),
		Cancelled:  pick(rc.Cancelled, d.Cancelled),
	}
}

func mapRouterOptions(cfg *config.Config, botUsername string) router.Options {
	return router.Options{
		BotUsername:    botUsername,
		DefaultMessage: cfg.Reminders.DefaultMessage,
		MaxDelay:       cfg.Reminders.MaxDelayValue(),
		HandlerTimeout: cfg.Reminders.HandlerTimeoutValue(),
		Owners:         cfg.Telegram.OwnerUserIDs,
	}
}

func mapDebugConfig(cfg *config.Config) (debugsrv.Config, error) {
	if cfg == nil || cfg.Debug == nil {
		return debugsrv.Config{}, nil
	}
	d := cfg.Debug
	rt, err := config.ParseDurationOrDefault("debug.read_timeout", d.ReadTimeout, 10*time.Second)
	if err != nil {
		return debugsrv.Config{}, err
	}
	// pprof profile/trace stream for up to 30s by default.
	wt, err := config.ParseDurationOrDefault("debug.write_timeout", d.WriteTimeout, 60*time.Second)
	if err != nil {
		return debugsrv.Config{}, err
	}
	return debugsrv.Config{
		Enabled:       d.Enabled,
		Addr:          strings.TrimSpace(d.Addr),
		Token:         strings.TrimSpace(d.Token),
		AllowInsecure: d.AllowInsecure,
		Pprof:         d.Pprof,
		ReadTimeout:   rt,
		WriteTimeout:  wt,
	}, nil
}
