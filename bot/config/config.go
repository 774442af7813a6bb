// Package config holds the satsbot configuration: the shared core settings
// plus payment, session storage, metrics and copy.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/m3rciful/satsbot/bot/flow"
	coreconfig "github.com/m3rciful/satsbot/core/config"
	coredatabase "github.com/m3rciful/satsbot/core/database"
	coreredis "github.com/m3rciful/satsbot/core/redis"
)

// Session backends.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// DefaultLNbitsURL is the public LNbits instance used when payment.base_url is empty.
const DefaultLNbitsURL = "https://legend.lnbits.com"

// PaymentConfig configures the LNbits wallet.
type PaymentConfig struct {
	BaseURL string `yaml:"base_url" envconfig:"LNBITS_URL"`
	APIKey  string `yaml:"api_key" envconfig:"LNBITS_API_KEY"`
	// ReadKey is accepted from the environment as an alias of APIKey.
	ReadKey        string `yaml:"-" envconfig:"READ_KEY"`
	TimeoutSeconds int    `yaml:"timeout_seconds" envconfig:"LNBITS_TIMEOUT_SECONDS"`
	VerifyPaid     bool   `yaml:"verify_paid" envconfig:"LNBITS_VERIFY_PAID"`
}

// Timeout returns the per-call API timeout.
func (p PaymentConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutSeconds) * time.Second
}

// SessionConfig selects where conversations live.
type SessionConfig struct {
	Backend       string `yaml:"backend" envconfig:"SESSION_BACKEND"`
	TTLMinutes    int    `yaml:"ttl_minutes" envconfig:"SESSION_TTL_MINUTES"`
	LockTimeoutMS int    `yaml:"lock_timeout_ms" envconfig:"SESSION_LOCK_TIMEOUT_MS"`
}

// TTL returns how long an idle conversation is kept.
func (s SessionConfig) TTL() time.Duration {
	return time.Duration(s.TTLMinutes) * time.Minute
}

// LockTimeout bounds the wait for a user's lock.
func (s SessionConfig) LockTimeout() time.Duration {
	return time.Duration(s.LockTimeoutMS) * time.Millisecond
}

// lockTTLMargin covers the store round trips around the payment call.
const lockTTLMargin = 5 * time.Second

// LockTTL is how long a shared per-user lock may be held before it expires.
// A holder can wait on LNbits for the whole payment timeout, so the TTL
// outlasts it; it is never shorter than twice the lock wait.
func (c *Config) LockTTL() time.Duration {
	ttl := c.Payment.Timeout() + lockTTLMargin
	if wait := 2 * c.Session.LockTimeout(); wait > ttl {
		ttl = wait
	}
	return ttl
}

// MetricsConfig configures the Prometheus endpoint; an empty Listen disables it.
type MetricsConfig struct {
	Listen string `yaml:"listen" envconfig:"METRICS_LISTEN"`
}

// Config is the full bot configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Payment  PaymentConfig       `yaml:"payment"`
	Session  SessionConfig       `yaml:"session"`
	Redis    coreredis.Config    `yaml:"redis"`
	Database coredatabase.Config `yaml:"database"`
	Metrics  MetricsConfig       `yaml:"metrics"`
	Texts    flow.Texts          `yaml:"texts"`
}

// CoreConfig exposes the embedded core configuration.
func (c *Config) CoreConfig() *coreconfig.Config {
	if c == nil {
		return nil
	}
	return &c.Config
}

// Load reads path, overlays the environment and validates the result.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := coreconfig.Normalize(&cfg.Config); err != nil {
		return nil, err
	}
	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates bot settings and fills defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	p := &cfg.Payment
	p.BaseURL = strings.TrimSpace(p.BaseURL)
	if p.BaseURL == "" {
		p.BaseURL = DefaultLNbitsURL
	}
	if strings.TrimSpace(p.APIKey) == "" {
		p.APIKey = strings.TrimSpace(p.ReadKey)
	}
	if p.APIKey == "" {
		return fmt.Errorf("payment.api_key is required (or LNBITS_API_KEY / READ_KEY)")
	}
	if p.TimeoutSeconds < 0 {
		return fmt.Errorf("payment.timeout_seconds must be >= 0")
	}
	if p.TimeoutSeconds == 0 {
		p.TimeoutSeconds = 10
	}

	s := &cfg.Session
	s.Backend = strings.ToLower(strings.TrimSpace(s.Backend))
	if s.Backend == "" {
		s.Backend = BackendMemory
	}
	switch s.Backend {
	case BackendMemory:
	case BackendRedis:
		if strings.TrimSpace(cfg.Redis.Addr) == "" {
			return fmt.Errorf("redis.addr is required when session.backend is 'redis'")
		}
	case BackendPostgres:
		if !cfg.Database.Enabled() {
			return fmt.Errorf("database.host and database.name are required when session.backend is 'postgres'")
		}
	default:
		return fmt.Errorf("invalid session.backend %q; allowed: memory, redis, postgres", s.Backend)
	}
	if s.TTLMinutes < 0 {
		return fmt.Errorf("session.ttl_minutes must be >= 0")
	}
	if s.TTLMinutes == 0 {
		s.TTLMinutes = 24 * 60
	}
	if s.LockTimeoutMS < 0 {
		return fmt.Errorf("session.lock_timeout_ms must be >= 0")
	}
	if s.LockTimeoutMS == 0 {
		s.LockTimeoutMS = 15000
	}

	cfg.Metrics.Listen = strings.TrimSpace(cfg.Metrics.Listen)
	cfg.Texts = cfg.Texts.WithDefaults()
	return nil
}
