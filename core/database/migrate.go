package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/m3rciful/satsbot/core/logger"
)

// RunMigrations applies every pending up migration from cfg.MigrationsDir.
func RunMigrations(ctx context.Context, cfg Config) error {
	dir, err := resolveMigrationsDir(cfg.MigrationsDir)
	if err != nil {
		return fmt.Errorf("db migrate: %w", err)
	}
	m, err := migrate.New("file://"+filepath.ToSlash(dir), cfg.DSN())
	if err != nil {
		logger.Error(ctx, "db", "migrate", slog.String("path", dir), slog.String("err", err.Error()))
		return fmt.Errorf("db migrate: init: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	from, _, _ := m.Version()
	start := time.Now()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Error(ctx, "db", "migrate", slog.String("err", err.Error()))
		return fmt.Errorf("db migrate: up: %w", err)
	}
	to, _, _ := m.Version()

	logger.Info(ctx, "db", "migrate",
		slog.String("status", "ok"),
		slog.Uint64("from_ver", uint64(from)),
		slog.Uint64("to_ver", uint64(to)),
		slog.Int("files", countApplied(listMigrationFiles(dir), uint64(from), uint64(to))),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	)
	return nil
}

func resolveMigrationsDir(dir string) (string, error) {
	if dir == "" {
		dir = "migrations"
	}
	return filepath.Abs(dir)
}

// listMigrationFiles returns the sorted *.up.sql names in dir.
func listMigrationFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".up.sql") {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)
	return names
}

// countApplied counts files whose version lies in (from, to].
func countApplied(files []string, from, to uint64) int {
	n := 0
	for _, f := range files {
		prefix, _, _ := strings.Cut(f, "_")
		if v, err := strconv.ParseUint(prefix, 10, 64); err == nil && v > from && v <= to {
			n++
		}
	}
	return n
}
