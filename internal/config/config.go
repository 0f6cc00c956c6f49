// Package config loads telefetch configuration from a JSON file or the
// environment.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Config is the top-level telefetch configuration.
type Config struct {
	Telegram  TelegramConfig `json:"telegram"`
	Bot       BotConfig      `json:"bot"`
	Batch     BatchConfig    `json:"batch"`
	DataDir   string         `json:"data_dir"`
	Retention int            `json:"retention_days,omitempty"` // journal retention, days
}

// TelegramConfig holds MTProto user-session credentials.
type TelegramConfig struct {
	APIID       int    `json:"api_id"`
	APIHash     string `json:"api_hash"`
	Phone       string `json:"phone"` // with country code
	Password    string `json:"password,omitempty"`
	SessionFile string `json:"session_file,omitempty"`
}

// BotConfig holds the command front-end settings.
type BotConfig struct {
	Token    string `json:"token"`       // bot token from @BotFather
	Operator int64  `json:"operator_id"` // the only allowed user, also the delivery destination
}

// BatchConfig holds resend pacing settings.
type BatchConfig struct {
	Size         int `json:"size"`          // messages per chunk
	DelaySeconds int `json:"delay_seconds"` // pause between chunks
	MaxFetch     int `json:"max_fetch"`     // cap on messages per range fetch
}

// Load reads configuration from a JSON file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFromEnv builds the config from environment variables with a
// TELEFETCH_ prefix.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		Telegram: TelegramConfig{
			APIID:       getenvInt("TELEFETCH_API_ID", 0),
			APIHash:     os.Getenv("TELEFETCH_API_HASH"),
			Phone:       os.Getenv("TELEFETCH_PHONE"),
			Password:    os.Getenv("TELEFETCH_PASSWORD"),
			SessionFile: os.Getenv("TELEFETCH_SESSION_FILE"),
		},
		Bot: BotConfig{
			Token:    os.Getenv("TELEFETCH_BOT_TOKEN"),
			Operator: getenvInt64("TELEFETCH_OPERATOR_ID", 0),
		},
		Batch: BatchConfig{
			Size:         getenvInt("TELEFETCH_BATCH_SIZE", 0),
			DelaySeconds: getenvInt("TELEFETCH_BATCH_DELAY", 0),
			MaxFetch:     getenvInt("TELEFETCH_MAX_FETCH_LIMIT", 0),
		},
		DataDir:   os.Getenv("TELEFETCH_DATA_DIR"),
		Retention: getenvInt("TELEFETCH_RETENTION_DAYS", 0),
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	if c.Telegram.SessionFile == "" {
		c.Telegram.SessionFile = filepath.Join(c.DataDir, "telefetch.session")
	}
	if c.Batch.Size == 0 {
		c.Batch.Size = 10
	}
	if c.Batch.DelaySeconds == 0 {
		c.Batch.DelaySeconds = 3
	}
	if c.Batch.MaxFetch == 0 {
		c.Batch.MaxFetch = 1000
	}
	if c.Retention == 0 {
		c.Retention = 30
	}
}

// Validate checks for required fields.
func (c *Config) Validate() error {
	var errs []string

	if c.Telegram.APIID == 0 {
		errs = append(errs, "telegram.api_id is required")
	}
	if c.Telegram.APIHash == "" {
		errs = append(errs, "telegram.api_hash is required")
	}
	if c.Telegram.Phone == "" {
		errs = append(errs, "telegram.phone is required")
	}
	if c.Bot.Token == "" {
		errs = append(errs, "bot.token is required")
	}
	if c.Bot.Operator == 0 {
		errs = append(errs, "bot.operator_id is required")
	}
	if c.Batch.Size < 1 {
		errs = append(errs, "batch.size must be positive")
	}
	if c.Batch.DelaySeconds < 0 {
		errs = append(errs, "batch.delay_seconds must not be negative")
	}
	if c.Batch.MaxFetch < 1 {
		errs = append(errs, "batch.max_fetch must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func getenvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getenvInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}
