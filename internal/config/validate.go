package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"timerbot/internal/task/scheduler"
)

const (
	DefaultQueueSize      = 400
	DefaultWorkers        = 4
	DefaultHandlerTimeout = 10 * time.Second
	DefaultRetention      = 720 * time.Hour
)

// Validate checks cfg for values that cannot be applied. It collects every
// problem instead of stopping at the first.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}
	dur := func(path, raw string) {
		_, err := ParseDurationField(path, raw)
		add(err)
	}

	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		add(errors.New("telegram.token: required (or set TELEGRAM_TOKEN)"))
	}
	dur("telegram.poll_timeout", cfg.Telegram.PollTimeout)

	r := cfg.Reminders
	if r.QueueSize < 0 {
		add(fmt.Errorf("reminders.queue_size: must be >= 0"))
	}
	if r.Workers < 0 {
		add(fmt.Errorf("reminders.workers: must be >= 0"))
	}
	dur("reminders.max_delay", r.MaxDelay)
	dur("reminders.handler_timeout", r.HandlerTimeout)
	if sc := strings.TrimSpace(r.StatusCron); sc != "" {
		if _, err := scheduler.ParseSchedule(sc); err != nil {
			add(fmt.Errorf("reminders.status_cron: %w", err))
		}
	}
	if tz := strings.TrimSpace(r.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			add(fmt.Errorf("reminders.timezone: %w", err))
		}
	}

	if n := cfg.Notifier; n != nil {
		if n.Workers < 0 || n.QueueSize < 0 || n.RatePerSec < 0 || n.RetryMax < 0 {
			add(errors.New("notifier: workers, queue_size, rate_per_sec and retry_max must be >= 0"))
		}
		dur("notifier.retry_base", n.RetryBase)
		dur("notifier.retry_max_delay", n.RetryMaxDelay)
	}

	if s := cfg.Storage; s != nil {
		switch strings.ToLower(strings.TrimSpace(s.Driver)) {
		case "", "none", "file", "sqlite", "sqlite3":
		default:
			add(fmt.Errorf("storage.driver: unknown driver %q", s.Driver))
		}
		dur("storage.busy_timeout", s.BusyTimeout)
		dur("storage.retention", s.Retention)
	}

	if d := cfg.Debug; d != nil {
		dur("debug.read_timeout", d.ReadTimeout)
		dur("debug.write_timeout", d.WriteTimeout)
	}

	return errors.Join(errs...)
}

// Location returns the timezone for scheduled housekeeping (local if unset).
func (r RemindersConfig) Location() *time.Location {
	if tz := strings.TrimSpace(r.Timezone); tz != "" {
		if loc, err := time.LoadLocation(tz); err == nil {
			return loc
		}
	}
	return time.Local
}

// QueueSizeOrDefault returns the command channel capacity.
func (r RemindersConfig) QueueSizeOrDefault() int {
	if r.QueueSize > 0 {
		return r.QueueSize
	}
	return DefaultQueueSize
}

func (r RemindersConfig) WorkersOrDefault() int {
	if r.Workers > 0 {
		return r.Workers
	}
	return DefaultWorkers
}

// MaxDelayValue returns the add limit; 0 means unlimited. Invalid values
// are rejected by Validate, so they read as unlimited here.
func (r RemindersConfig) MaxDelayValue() time.Duration {
	d, _ := ParseDurationField("reminders.max_delay", r.MaxDelay)
	return d
}

func (r RemindersConfig) HandlerTimeoutValue() time.Duration {
	d, err := ParseDurationOrDefault("reminders.handler_timeout", r.HandlerTimeout, DefaultHandlerTimeout)
	if err != nil {
		return DefaultHandlerTimeout
	}
	return d
}

// RetentionValue returns how long audit rows are kept; 0 keeps everything.
func (s *StorageConfig) RetentionValue() time.Duration {
	if s == nil || strings.TrimSpace(s.Retention) == "" {
		return DefaultRetention
	}
	d, err := ParseDurationField("storage.retention", s.Retention)
	if err != nil {
		return DefaultRetention
	}
	return d
}
