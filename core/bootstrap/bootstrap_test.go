package bootstrap

import (
	"context"
	"errors"
	"testing"

	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/satsbot/core/config"
	coredatabase "github.com/m3rciful/satsbot/core/database"
	coreredis "github.com/m3rciful/satsbot/core/redis"
)

func noLogger(*coreconfig.Config) error { return nil }

func lazyDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := sqlx.Open("postgres", "postgres://u:p@127.0.0.1:1/x?sslmode=disable")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return db
}

func TestRunSkipsUnrequestedBackends(t *testing.T) {
	opts := Options{
		Config:     &coreconfig.Config{},
		LoggerInit: noLogger,
		Connect: func(context.Context, coredatabase.Config) (*sqlx.DB, error) {
			t.Fatal("database should not be touched")
			return nil, nil
		},
		ConnectRedis: func(context.Context, coreredis.Config) (*redis.Client, error) {
			t.Fatal("redis should not be touched")
			return nil, nil
		},
	}
	res, err := Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.DB != nil || res.Redis != nil {
		t.Fatalf("unexpected backends: %+v", res)
	}
	if err := res.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestRunConnectsAndMigrates(t *testing.T) {
	var migrated bool
	db := lazyDB(t)
	opts := Options{
		Config:      &coreconfig.Config{},
		Database:    coredatabase.Config{Host: "db", Name: "satsbot"},
		UseDatabase: true,
		LoggerInit:  noLogger,
		Connect: func(_ context.Context, cfg coredatabase.Config) (*sqlx.DB, error) {
			if cfg.Name != "satsbot" {
				t.Fatalf("unexpected config %+v", cfg)
			}
			return db, nil
		},
		Migrate: func(context.Context, coredatabase.Config) error {
			migrated = true
			return nil
		},
	}
	res, err := Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !migrated || res.DB != db {
		t.Fatalf("migrated=%v db=%v", migrated, res.DB)
	}
	_ = res.Close()
}

func TestRunFailures(t *testing.T) {
	boom := errors.New("boom")

	if _, err := Run(context.Background(), Options{}); err == nil {
		t.Fatal("nil config should fail")
	}

	_, err := Run(context.Background(), Options{
		Config:     &coreconfig.Config{},
		LoggerInit: func(*coreconfig.Config) error { return boom },
	})
	if !errors.Is(err, boom) {
		t.Fatalf("logger failure not propagated: %v", err)
	}

	_, err = Run(context.Background(), Options{
		Config:      &coreconfig.Config{},
		UseDatabase: true,
		LoggerInit:  noLogger,
		Connect:     func(context.Context, coredatabase.Config) (*sqlx.DB, error) { return lazyDB(t), nil },
		Migrate:     func(context.Context, coredatabase.Config) error { return boom },
	})
	if !errors.Is(err, boom) {
		t.Fatalf("migration failure not propagated: %v", err)
	}

	_, err = Run(context.Background(), Options{
		Config:     &coreconfig.Config{},
		UseRedis:   true,
		LoggerInit: noLogger,
		ConnectRedis: func(context.Context, coreredis.Config) (*redis.Client, error) {
			return nil, boom
		},
	})
	if !errors.Is(err, boom) {
		t.Fatalf("redis failure not propagated: %v", err)
	}
}
