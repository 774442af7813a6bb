package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestNormalizeDefaultsToLongpoll(t *testing.T) {
	cfg := &Config{Telegram: TelegramConfig{Token: "x", RunMode: " Polling "}}
	if err := Normalize(cfg); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if cfg.Telegram.RunMode != RunModeLongpoll {
		t.Fatalf("run mode = %q, want %q", cfg.Telegram.RunMode, RunModeLongpoll)
	}
}

func TestNormalizeRequiresToken(t *testing.T) {
	if err := Normalize(&Config{}); err == nil {
		t.Fatal("expected error for missing token")
	}
}

func TestNormalizeWebhookRequiresURL(t *testing.T) {
	cfg := &Config{Telegram: TelegramConfig{Token: "x", RunMode: "webhook"}}
	if err := Normalize(cfg); err == nil {
		t.Fatal("expected error for webhook without url")
	}
}

func TestNormalizeRejectsUnknownExclude(t *testing.T) {
	cfg := &Config{
		Telegram:  TelegramConfig{Token: "x"},
		RateLimit: RateLimitConfig{ExcludeUpdates: []string{" Callback ", "poll"}},
	}
	if err := Normalize(cfg); err == nil {
		t.Fatal("expected error for unknown exclude value")
	}
}

func TestLoadOverlaysEnv(t *testing.T) {
	path := writeConfig(t, "telegram:\n  token: from-file\nlogging:\n  level: debug\n")
	t.Setenv("BOT_TOKEN", "from-env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Telegram.Token != "from-env" {
		t.Fatalf("token = %q, want env value", cfg.Telegram.Token)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("level = %q", cfg.Logging.Level)
	}
	if cfg.Telegram.RunMode != RunModeLongpoll {
		t.Fatalf("run mode = %q", cfg.Telegram.RunMode)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
