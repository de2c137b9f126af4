package config

type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Logging   LoggingConfig   `json:"logging"`
	Reminders RemindersConfig `json:"reminders"`

	Notifier *NotifierConfig `json:"notifier,omitempty"`
	Storage  *StorageConfig  `json:"storage,omitempty"`
	Debug    *DebugConfig    `json:"debug,omitempty"`
}

type TelegramConfig struct {
	Token        string  `json:"token"`
	OwnerUserIDs []int64 `json:"owner_user_ids"`
	GroupLog     string  `json:"group_log"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	ThreadID   int    `json:"thread_id"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// RemindersConfig controls the reminder scheduler and its chat surface.
//
// queue_size is read once at startup; the rest is hot-reloadable.
type RemindersConfig struct {
	// QueueSize bounds in-flight commands (default 400).
	QueueSize int `json:"queue_size,omitempty"`
	// DefaultMessage is used when "add" has no text.
	DefaultMessage string `json:"default_message,omitempty"`
	// MaxDelay is a duration such as "720h" or "30d"; "" or "0s" means unlimited.
	MaxDelay string `json:"max_delay,omitempty"`
	// StatusCron schedules the status log line and audit pruning
	// (cron, "@every 1h", "30m" or "HH:MM"). Empty disables it.
	StatusCron string `json:"status_cron,omitempty"`
	// Timezone for StatusCron (IANA name, default local).
	Timezone string `json:"timezone,omitempty"`
	// Workers is the number of concurrent update handlers (default 4).
	Workers int `json:"workers,omitempty"`
	// HandlerTimeout bounds one update handler (default "10s").
	HandlerTimeout string `json:"handler_timeout,omitempty"`

	Reactions ReactionsConfig `json:"reactions"`
}

// ReactionsConfig selects the emoji used as acknowledgements. Set a field to
// "-" to disable that acknowledgement; empty means the default.
type ReactionsConfig struct {
	Registered string `json:"registered,omitempty"`
	Fired      string `json:"fired,omitempty"`
	Cancelled  string `json:"cancelled,omitempty"`
}

// NotifierConfig controls the async notification pipeline.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
// If the whole section is omitted, the notifier defaults to enabled=true.
type NotifierConfig struct {
	Enabled       bool   `json:"enabled"`
	Workers       int    `json:"workers"`
	QueueSize     int    `json:"queue_size"`
	RatePerSec    int    `json:"rate_per_sec"`
	RetryMax      int    `json:"retry_max"`
	RetryBase     string `json:"retry_base"`
	RetryMaxDelay string `json:"retry_max_delay"`
}

// StorageConfig controls the audit log.
//
// Example:
//
//	storage: { driver: sqlite, path: ./timerbot.db, retention: 720h }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
	// Retention is how long audit rows are kept (default "30d"; "0s" keeps all).
	Retention string `json:"retention,omitempty"`
}

// DebugConfig controls the optional local HTTP endpoint serving /healthz,
// /status and pprof. Off unless enabled.
//
// A non-loopback addr needs a token unless allow_insecure is set.
type DebugConfig struct {
	Enabled       bool   `json:"enabled"`
	Addr          string `json:"addr"`
	Token         string `json:"token,omitempty"`
	AllowInsecure bool   `json:"allow_insecure,omitempty"`
	Pprof         bool   `json:"pprof"`

	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
}
