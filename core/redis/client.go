// Package redis connects the shared go-redis client.
package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/m3rciful/satsbot/core/logger"
)

type Config struct {
	Addr     string `yaml:"addr" envconfig:"REDIS_ADDR"`
	Password string `yaml:"password" envconfig:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" envconfig:"REDIS_DB"`
}

// Connect returns a client once PING succeeds.
func Connect(ctx context.Context, cfg Config) (*redis.Client, error) {
	cli := redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	start := time.Now()
	if err := cli.Ping(ctx).Err(); err != nil {
		_ = cli.Close()
		logger.Error(ctx, "store", "redis.connect",
			slog.String("host", cfg.Addr),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	logger.Info(ctx, "store", "redis.connect",
		slog.String("status", "ok"),
		slog.String("host", cfg.Addr),
		slog.Int("db", cfg.DB),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	)
	return cli, nil
}
