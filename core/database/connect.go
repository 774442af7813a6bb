package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/m3rciful/satsbot/core/logger"
)

const (
	connectTimeout     = 5 * time.Second
	defaultMaxOpenConn = 5
)

// Connect opens a pooled postgres handle and pings it.
func Connect(ctx context.Context, cfg Config) (*sqlx.DB, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	target := []slog.Attr{
		slog.String("host", cfg.Host),
		slog.String("db", cfg.Name),
	}
	start := time.Now()
	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.DSN())
	if err != nil {
		logger.Error(ctx, "db", "connect", append(target, slog.String("err", err.Error()))...)
		return nil, fmt.Errorf("db connect: %w", err)
	}

	pool := cfg.MaxConnections
	if pool <= 0 {
		pool = defaultMaxOpenConn
	}
	db.SetMaxOpenConns(pool)
	db.SetMaxIdleConns(pool)

	logger.Info(ctx, "db", "connect", append(target,
		slog.String("status", "ok"),
		slog.Int("pool_open", pool),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	)...)
	return db, nil
}
