package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Token environment variables, checked in order.
var tokenEnvVars = []string{"TELEGRAM_TOKEN", "BOT_ACCESS_TOKEN"}

const debugTokenEnvVar = "TIMERBOT_DEBUG_TOKEN"

// LoadEnv loads KEY=VALUE pairs from path into the process environment.
// Existing variables win. A missing file is not an error.
func LoadEnv(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	return nil
}

// ApplyEnv overrides secrets in cfg from the environment.
func ApplyEnv(cfg *Config) {
	if cfg == nil {
		return
	}
	for _, k := range tokenEnvVars {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			cfg.Telegram.Token = v
			break
		}
	}
	if v := strings.TrimSpace(os.Getenv(debugTokenEnvVar)); v != "" && cfg.Debug != nil {
		cfg.Debug.Token = v
	}
}
