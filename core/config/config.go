// Package config holds the settings every bot shares: Telegram transport,
// logging and update rate limiting.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// TelegramConfig holds bot credentials and the update delivery mode.
type TelegramConfig struct {
	Token   string `yaml:"token" envconfig:"BOT_TOKEN"`
	AdminID int64  `yaml:"admin_id" envconfig:"TELEGRAM_ADMIN_ID"`
	RunMode string `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// LongPollTimeoutSeconds of 0 uses the poller default.
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
}

// WebhookConfig is required when RunMode is webhook.
type WebhookConfig struct {
	URL    string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Listen string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port   int    `yaml:"port" envconfig:"WEBHOOK_PORT"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level  string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format string `yaml:"format" envconfig:"LOG_FORMAT"`
	// DebugSample is "num/den" or "den"; it thins out per-update debug lines.
	DebugSample string `yaml:"debug_sample"`
	Dir         string `yaml:"dir"`
	BotFile     string `yaml:"bot_file"`
	// Profile such as "dev" or "prod"; dev profiles default to kv output.
	Profile string `yaml:"profile"`
}

// Update delivery modes.
const (
	RunModeWebhook  = "webhook"
	RunModeLongpoll = "longpoll"
)

// Update kinds that rate_limit.exclude_updates may name.
const (
	UpdateCallback = "callback"
	UpdateMessage  = "message"
)

var updateKinds = []string{UpdateCallback, UpdateMessage}

// RateLimitConfig throttles each user to one update per IntervalMS, except
// for the update kinds in ExcludeUpdates.
type RateLimitConfig struct {
	IntervalMS     int      `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
	ExcludeUpdates []string `yaml:"exclude_updates" envconfig:"RATE_LIMIT_EXCLUDE_UPDATES"`
}

// Config aggregates the core settings. Bots embed it inline in their own
// config struct.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// Load decodes path into a Config and validates it.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Decode fills out from the YAML file at path and then overlays environment
// variables. A .env file in the working directory, when present, is loaded
// into the process environment first; variables already set are kept.
func Decode(path string, out any) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("config: load .env: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := envconfig.Process("", out); err != nil {
		return fmt.Errorf("config: env overlay: %w", err)
	}
	return nil
}

// Normalize validates cfg and fills defaults in place.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return errors.New("config: nil config")
	}
	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		return errors.New("telegram.token is required (or BOT_TOKEN)")
	}
	if err := normalizeRunMode(cfg); err != nil {
		return err
	}
	return normalizeRateLimit(&cfg.RateLimit)
}

func normalizeRunMode(cfg *Config) error {
	mode := strings.ToLower(strings.TrimSpace(cfg.Telegram.RunMode))
	switch mode {
	case "", "polling":
		mode = RunModeLongpoll
	}

	switch mode {
	case RunModeLongpoll:
		if cfg.Telegram.LongPollTimeoutSeconds < 0 {
			return errors.New("telegram.longpoll_timeout_seconds must be >= 0")
		}
	case RunModeWebhook:
		wh := cfg.Webhook
		if strings.TrimSpace(wh.URL) == "" || strings.TrimSpace(wh.Listen) == "" || wh.Port <= 0 {
			return errors.New("webhook.url, webhook.listen and webhook.port are required in webhook mode")
		}
	default:
		return fmt.Errorf("invalid telegram.run_mode %q; allowed: webhook, longpoll", cfg.Telegram.RunMode)
	}
	cfg.Telegram.RunMode = mode
	return nil
}

func normalizeRateLimit(rl *RateLimitConfig) error {
	if rl.IntervalMS < 0 {
		return errors.New("rate_limit.interval_ms must be >= 0")
	}
	kinds := rl.ExcludeUpdates[:0]
	for _, v := range rl.ExcludeUpdates {
		kind := strings.ToLower(strings.TrimSpace(v))
		if kind == "" {
			continue
		}
		if !slices.Contains(updateKinds, kind) {
			return fmt.Errorf("invalid rate_limit.exclude_updates value %q; allowed: %s", v, strings.Join(updateKinds, ", "))
		}
		kinds = append(kinds, kind)
	}
	rl.ExcludeUpdates = kinds
	return nil
}
