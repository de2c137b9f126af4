package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleYAML = `
telegram:
  token: abc
  owner_user_ids: [1, 2]
  poll_timeout: 10s
logging:
  level: info
  console: true
reminders:
  queue_size: 10
  max_delay: 720h
  reactions:
    fired: "-"
storage:
  driver: sqlite
  path: ./t.db
`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoadYAML(t *testing.T) {
	t.Parallel()
	m := NewConfigManager(writeFile(t, "config.yaml", sampleYAML))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.Token != "abc" || len(cfg.Telegram.OwnerUserIDs) != 2 {
		t.Fatalf("telegram = %+v", cfg.Telegram)
	}
	if cfg.Reminders.QueueSizeOrDefault() != 10 || cfg.Reminders.MaxDelayValue() != 720*time.Hour {
		t.Fatalf("reminders = %+v", cfg.Reminders)
	}
	if cfg.Reminders.Reactions.Fired != "-" {
		t.Fatalf("reactions = %+v", cfg.Reminders.Reactions)
	}
	if m.Get() != cfg {
		t.Fatal("Get did not return committed config")
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestDecodeStrict(t *testing.T) {
	t.Parallel()
	if _, err := Decode("c.yaml", []byte("telegram:\n  tokn: x\n")); err == nil {
		t.Fatal("unknown yaml field accepted")
	}
	if _, err := Decode("c.json", []byte(`{"telegram":{"token":"x"}} {}`)); err == nil {
		t.Fatal("trailing json accepted")
	}
	cfg, err := Decode("c.json", []byte(`{"telegram":{"token":"x"}}`))
	if err != nil || cfg.Telegram.Token != "x" {
		t.Fatalf("json decode: %v %+v", err, cfg)
	}
}

func TestDefaults(t *testing.T) {
	t.Parallel()
	var r RemindersConfig
	if r.QueueSizeOrDefault() != DefaultQueueSize || r.WorkersOrDefault() != DefaultWorkers {
		t.Fatal("queue/worker defaults")
	}
	if r.MaxDelayValue() != 0 || r.HandlerTimeoutValue() != DefaultHandlerTimeout {
		t.Fatal("duration defaults")
	}
	if r.Location() != time.Local {
		t.Fatal("location default")
	}
	var s *StorageConfig
	if s.RetentionValue() != DefaultRetention {
		t.Fatal("retention default")
	}
	if (&StorageConfig{Retention: "0s"}).RetentionValue() != 0 {
		t.Fatal("retention 0s should keep everything")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	cfg := &Config{
		Reminders: RemindersConfig{MaxDelay: "soon", Timezone: "Mars/Olympus", QueueSize: -1},
		Notifier:  &NotifierConfig{RetryBase: "x"},
		Storage:   &StorageConfig{Driver: "redis"},
	}
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected errors")
	}
	for _, want := range []string{"telegram.token", "reminders.max_delay", "reminders.timezone", "reminders.queue_size", "notifier.retry_base", "storage.driver"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("TELEGRAM_TOKEN", "")
	t.Setenv("BOT_ACCESS_TOKEN", "from-env")
	cfg := &Config{Telegram: TelegramConfig{Token: "file"}}
	ApplyEnv(cfg)
	if cfg.Telegram.Token != "from-env" {
		t.Fatalf("token = %q", cfg.Telegram.Token)
	}
	t.Setenv("TELEGRAM_TOKEN", "primary")
	ApplyEnv(cfg)
	if cfg.Telegram.Token != "primary" {
		t.Fatalf("token = %q", cfg.Telegram.Token)
	}
}

func TestLoadEnv(t *testing.T) {
	if err := LoadEnv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("missing file: %v", err)
	}
	t.Setenv("TIMERBOT_TEST_VAR", "")
	os.Unsetenv("TIMERBOT_TEST_VAR")
	p := writeFile(t, ".env", "TIMERBOT_TEST_VAR=hello\n")
	if err := LoadEnv(p); err != nil {
		t.Fatalf("LoadEnv: %v", err)
	}
	if got := os.Getenv("TIMERBOT_TEST_VAR"); got != "hello" {
		t.Fatalf("env = %q", got)
	}
}

func TestSummarizeConfigChange(t *testing.T) {
	t.Parallel()
	oldCfg := &Config{Telegram: TelegramConfig{Token: "a"}, Reminders: RemindersConfig{MaxDelay: "1h"}}
	newCfg := &Config{Telegram: TelegramConfig{Token: "a"}, Reminders: RemindersConfig{MaxDelay: "2h"},
		Storage: &StorageConfig{Driver: "file", Path: "x"}}
	changed, attrs := SummarizeConfigChange(oldCfg, newCfg)
	if strings.Join(changed, ",") != "reminders,storage" {
		t.Fatalf("changed = %v", changed)
	}
	if len(attrs) == 0 {
		t.Fatal("no attrs")
	}
	if !StorageChanged(oldCfg, newCfg) {
		t.Fatal("storage change not detected")
	}
	if StorageChanged(newCfg, &Config{Storage: &StorageConfig{Driver: "FILE", Path: "x", Retention: "1h"}}) {
		t.Fatal("retention-only change should not need restart")
	}
	if c, _ := SummarizeConfigChange(oldCfg, oldCfg); len(c) != 0 {
		t.Fatalf("identical configs changed = %v", c)
	}
}

func TestWatchPublishesChange(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "config.yaml", sampleYAML)
	m := NewConfigManager(path)
	if _, err := m.Load(); err != nil {
		t.Fatal(err)
	}
	sub := m.Subscribe(1)
	defer m.Unsubscribe(sub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- m.Watch(ctx) }()

	updated := strings.Replace(sampleYAML, "max_delay: 720h", "max_delay: 1h", 1)
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(300 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case cfg := <-sub:
			if cfg.Reminders.MaxDelayValue() != time.Hour {
				t.Fatalf("published max_delay = %q", cfg.Reminders.MaxDelay)
			}
			cancel()
			if err := <-done; err != nil {
				t.Fatalf("Watch: %v", err)
			}
			return
		case <-tick.C:
			// rewrite until the watcher is up
			_ = os.WriteFile(path, []byte(updated), 0o600)
		case <-deadline:
			t.Fatal("no config published")
		}
	}
}

func TestReloadRejectedByValidator(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "config.yaml", sampleYAML)
	m := NewConfigManager(path)
	if _, err := m.Load(); err != nil {
		t.Fatal(err)
	}
	m.SetValidator(func(ctx context.Context, cfg *Config) error { return Validate(cfg) })
	sub := m.Subscribe(1)

	if m.reload(context.Background()) {
		t.Fatal("unchanged file published")
	}
	bad := strings.Replace(sampleYAML, "max_delay: 720h", "max_delay: later", 1)
	if err := os.WriteFile(path, []byte(bad), 0o600); err != nil {
		t.Fatal(err)
	}
	if m.reload(context.Background()) {
		t.Fatal("invalid config published")
	}
	select {
	case <-sub:
		t.Fatal("subscriber received config")
	default:
	}
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw     string
		want    time.Duration
		wantErr bool
	}{
		{raw: "", want: 0},
		{raw: "  ", want: 0},
		{raw: "0", want: 0},
		{raw: "90s", want: 90 * time.Second},
		{raw: " 1h30m ", want: 90 * time.Minute},
		{raw: "30d", want: 720 * time.Hour},
		{raw: "1d12h", want: 36 * time.Hour},
		{raw: "d", wantErr: true},
		{raw: "1.5d", wantErr: true},
		{raw: "-1d", wantErr: true},
		{raw: "1d-1h", wantErr: true},
		{raw: "-5s", wantErr: true},
		{raw: "soon", wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.raw, func(t *testing.T) {
			t.Parallel()
			got, err := ParseDurationField("x.y", tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				if !strings.HasPrefix(err.Error(), "x.y:") {
					t.Fatalf("error %q does not name the field", err)
				}
				return
			}
			if got != tt.want {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseDurationOrDefault(t *testing.T) {
	t.Parallel()
	for raw, want := range map[string]time.Duration{"": time.Minute, "0s": time.Minute, "2d": 48 * time.Hour} {
		got, err := ParseDurationOrDefault("f", raw, time.Minute)
		if err != nil || got != want {
			t.Errorf("ParseDurationOrDefault(%q) = %v, %v; want %v", raw, got, err, want)
		}
	}
	if _, err := ParseDurationOrDefault("f", "later", time.Minute); err == nil {
		t.Error("expected error for bad value")
	}
}

func TestDecodeYAMLUnquotedScalars(t *testing.T) {
	t.Parallel()
	body := `
telegram:
  token: 12345
  group_log: -1001234567
reminders:
  max_delay: 0
  default_message: true
storage:
  driver: file
  path: a.jsonl
  retention: 7d
`
	cfg, err := Decode("c.yml", []byte(body))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if cfg.Telegram.Token != "12345" || cfg.Telegram.GroupLog != "-1001234567" {
		t.Fatalf("telegram = %+v", cfg.Telegram)
	}
	if cfg.Reminders.MaxDelay != "0" || cfg.Reminders.DefaultMessage != "true" {
		t.Fatalf("reminders = %+v", cfg.Reminders)
	}
	if cfg.Storage.RetentionValue() != 7*24*time.Hour {
		t.Fatalf("retention = %v", cfg.Storage.RetentionValue())
	}

	// Numeric fields stay numeric.
	if _, err := Decode("c.yml", []byte("reminders:\n  queue_size: \"ten\"\n")); err == nil {
		t.Fatal("string accepted for queue_size")
	}
}

func TestDecodeDetectsFormat(t *testing.T) {
	t.Parallel()
	tests := []struct {
		path, body string
	}{
		{"timerbot.conf", `{"telegram":{"token":"x"}}`},
		{"timerbot.conf", "telegram:\n  token: x\n"},
		{"timerbot", "  \n{\"telegram\":{\"token\":\"x\"}}"},
		{"c.YAML", "telegram: {token: x}"},
	}
	for _, tt := range tests {
		cfg, err := Decode(tt.path, []byte(tt.body))
		if err != nil || cfg.Telegram.Token != "x" {
			t.Errorf("Decode(%q, %q) = %+v, %v", tt.path, tt.body, cfg, err)
		}
	}
	if _, err := Decode("c.json", []byte("telegram:\n  token: x\n")); err == nil {
		t.Error(".json file parsed as yaml")
	}
}

func TestValidateStatusCron(t *testing.T) {
	t.Parallel()
	for sc, ok := range map[string]bool{
		"":            true,
		"@every 1h":   true,
		"30m":         true,
		"at:03:30":    true,
		"0 */6 * * *": true,
		"at:25:00":    false,
		"61 * * * *":  false,
		"whenever":    false,
	} {
		cfg := &Config{Telegram: TelegramConfig{Token: "x"}, Reminders: RemindersConfig{StatusCron: sc}}
		err := Validate(cfg)
		if (err == nil) != ok {
			t.Errorf("status_cron %q: err = %v, want ok=%v", sc, err, ok)
		}
		if err != nil && !strings.Contains(err.Error(), "reminders.status_cron") {
			t.Errorf("status_cron %q: error %q does not name the field", sc, err)
		}
	}
}
