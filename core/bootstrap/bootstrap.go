package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/satsbot/core/config"
	coredatabase "github.com/m3rciful/satsbot/core/database"
	"github.com/m3rciful/satsbot/core/logger"
	coreredis "github.com/m3rciful/satsbot/core/redis"
)

// Options control the generic bootstrap pipeline shared between bots.
type Options struct {
	Config   *coreconfig.Config
	Database coredatabase.Config
	Redis    coreredis.Config

	// UseDatabase connects to postgres and applies migrations.
	UseDatabase bool
	// UseRedis connects to redis.
	UseRedis bool

	LoggerInit   func(*coreconfig.Config) error
	Connect      func(context.Context, coredatabase.Config) (*sqlx.DB, error)
	Migrate      func(context.Context, coredatabase.Config) error
	ConnectRedis func(context.Context, coreredis.Config) (*redis.Client, error)
}

// Result exposes infrastructure initialized by the bootstrap pipeline.
// Fields for backends that were not requested stay nil.
type Result struct {
	DB    *sqlx.DB
	Redis *redis.Client
}

// Close releases every connection held by the result.
func (r *Result) Close() error {
	if r == nil {
		return nil
	}
	var errs []error
	if r.Redis != nil {
		errs = append(errs, r.Redis.Close())
	}
	if r.DB != nil {
		errs = append(errs, r.DB.Close())
	}
	return errors.Join(errs...)
}

// Run initializes the logger and then the backends requested by opts.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("bootstrap: nil config provided")
	}

	loggerInit := opts.LoggerInit
	if loggerInit == nil {
		loggerInit = logger.InitLogger
	}
	if err := loggerInit(opts.Config); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}

	res := &Result{}

	if opts.UseDatabase {
		connect := opts.Connect
		if connect == nil {
			connect = coredatabase.Connect
		}
		db, err := connect(ctx, opts.Database)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: database initialization failed: %w", err)
		}
		res.DB = db

		migrate := opts.Migrate
		if migrate == nil {
			migrate = coredatabase.RunMigrations
		}
		if err := migrate(ctx, opts.Database); err != nil {
			_ = res.Close()
			return nil, fmt.Errorf("bootstrap: migrations failed: %w", err)
		}
	}

	if opts.UseRedis {
		connectRedis := opts.ConnectRedis
		if connectRedis == nil {
			connectRedis = coreredis.Connect
		}
		cli, err := connectRedis(ctx, opts.Redis)
		if err != nil {
			_ = res.Close()
			return nil, fmt.Errorf("bootstrap: redis initialization failed: %w", err)
		}
		res.Redis = cli
	}

	return res, nil
}
