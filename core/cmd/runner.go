// Package cmd is the process entry shared by bot binaries: config, bootstrap,
// signal handling and the Telegram run loop.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	coreconfig "github.com/m3rciful/satsbot/core/config"
	"github.com/m3rciful/satsbot/core/logger"
	coretelegram "github.com/m3rciful/satsbot/core/telegram"
)

// ConfigCarrier is a bot config that embeds the core settings.
type ConfigCarrier interface {
	CoreConfig() *coreconfig.Config
}

// TelegramApp supplies the run options of a bootstrapped bot.
type TelegramApp interface {
	TelegramRunOptions() (coretelegram.RunOptions, error)
}

// Options wires a bot binary. RunTelegram defaults to coretelegram.RunTelegram.
type Options struct {
	// ConfigEnvVar names the variable holding the config path; "CONFIG_PATH"
	// when empty. DefaultConfigPath is used when the variable is unset.
	ConfigEnvVar      string
	DefaultConfigPath string

	LoadConfig  func(path string) (ConfigCarrier, error)
	Bootstrap   func(ctx context.Context, cfg ConfigCarrier) (TelegramApp, error)
	RunTelegram func(ctx context.Context, opts coretelegram.RunOptions) error
}

// Run blocks until SIGINT or SIGTERM, or until the bot stops on its own.
func Run(opts Options) error {
	if opts.LoadConfig == nil || opts.Bootstrap == nil {
		return errors.New("cmd: LoadConfig and Bootstrap are required")
	}
	path := configPath(opts)
	if path == "" {
		return errors.New("cmd: no config path")
	}

	log.Printf("loading config: %s", path)
	cfg, err := opts.LoadConfig(path)
	if err != nil {
		return fmt.Errorf("cmd: load config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	started := time.Now()
	app, err := opts.Bootstrap(ctx, cfg)
	defer func() {
		if err := logger.Shutdown(); err != nil {
			log.Printf("logger shutdown: %v", err)
		}
	}()
	if err != nil {
		return fmt.Errorf("cmd: bootstrap: %w", err)
	}

	runOpts, err := app.TelegramRunOptions()
	if err != nil {
		return fmt.Errorf("cmd: run options: %w", err)
	}
	runOpts.OnStart = announce(runOpts.OnStart, func(ctx context.Context) {
		logger.Info(ctx, "app", "ready", slog.Duration("startup", logger.RoundMS(time.Since(started))))
	})
	stop := runOpts.OnStop
	runOpts.OnStop = func(ctx context.Context) error {
		logger.Info(ctx, "app", "shutdown")
		if stop != nil {
			return stop(ctx)
		}
		return nil
	}

	run := opts.RunTelegram
	if run == nil {
		run = coretelegram.RunTelegram
	}
	return run(ctx, runOpts)
}

func configPath(opts Options) string {
	env := opts.ConfigEnvVar
	if env == "" {
		env = "CONFIG_PATH"
	}
	if p := os.Getenv(env); p != "" {
		return p
	}
	return opts.DefaultConfigPath
}

// announce chains after behind hook; after is skipped when hook fails.
func announce(hook coretelegram.Hook, after func(context.Context)) coretelegram.Hook {
	return func(ctx context.Context) error {
		if hook != nil {
			if err := hook(ctx); err != nil {
				return err
			}
		}
		after(ctx)
		return nil
	}
}
