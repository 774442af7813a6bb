package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	coreconfig "github.com/m3rciful/satsbot/core/config"
	"github.com/m3rciful/satsbot/core/logger"
	tghelpers "github.com/m3rciful/satsbot/core/telegram/helpers"
	tgsender "github.com/m3rciful/satsbot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

// Middleware is a global middleware installed with bot.Use.
type Middleware struct {
	Name string
	Use  tele.MiddlewareFunc
}

// Route binds a handler to an endpoint accepted by tele.Bot.Handle.
type Route struct {
	Endpoint any
	Handler  tele.HandlerFunc
}

// Hook runs around the bot lifetime.
type Hook func(ctx context.Context) error

// RunOptions controls RunTelegram.
type RunOptions struct {
	Config   *coreconfig.Config
	Registry *Registry
	Sender   tgsender.Options

	Middlewares []Middleware
	Routes      []Route

	OnStart Hook
	OnStop  Hook
}

// RunTelegram builds the bot from opts and serves updates until ctx is done.
func RunTelegram(ctx context.Context, opts RunOptions) error {
	cfg := opts.Config
	if cfg == nil {
		return errors.New("telegram: nil config")
	}
	reg := opts.Registry
	if reg == nil {
		reg = NewRegistry()
	}

	started := time.Now()
	bot, err := tele.NewBot(tele.Settings{
		Token:   cfg.Telegram.Token,
		Poller:  newPoller(cfg),
		Client:  newAPIClient(),
		OnError: logHandlerError,
	})
	if err != nil {
		return fmt.Errorf("telegram: init bot: %w", err)
	}
	logger.Info(ctx, "tg", "mode",
		slog.String("mode", cfg.Telegram.RunMode),
		slog.Duration("duration", logger.RoundMS(time.Since(started))),
	)
	if cfg.Telegram.RunMode == coreconfig.RunModeLongpoll {
		// getUpdates is refused while a webhook is set.
		if err := bot.RemoveWebhook(); err != nil {
			logger.Warn(ctx, "tg", "webhook.delete", slog.String("err", err.Error()))
		}
	}

	for _, mw := range opts.Middlewares {
		if mw.Use != nil {
			bot.Use(mw.Use)
		}
	}
	for _, r := range opts.Routes {
		if r.Endpoint != nil && r.Handler != nil {
			bot.Handle(r.Endpoint, r.Handler)
		}
	}
	InitBotCommands(bot, reg)

	dispatcher := tgsender.NewDispatcher(opts.Sender)
	tghelpers.SetDispatcher(dispatcher)
	defer func() {
		tghelpers.SetDispatcher(nil)
		dispatcher.Close()
		logger.Info(context.Background(), "tg", "sender.stopped",
			slog.Uint64("failed_sends", dispatcher.ErrorCount()),
		)
	}()

	if opts.OnStart != nil {
		if err := opts.OnStart(ctx); err != nil {
			return err
		}
	}

	done := make(chan struct{})
	go func() {
		bot.Start()
		close(done)
	}()
	select {
	case <-ctx.Done():
		bot.Stop()
		<-done
	case <-done:
	}

	if opts.OnStop != nil {
		return opts.OnStop(ctx)
	}
	return nil
}

// logHandlerError replaces telebot's stderr printer. Handler summaries
// already carry handler errors, so those get a debug line only; errors
// without an update come from the poller.
func logHandlerError(err error, c tele.Context) {
	if err == nil {
		return
	}
	msg := slog.String("err", logger.SanitizeLimit(err.Error(), 256))
	if c == nil {
		logger.Warn(context.Background(), "tg", "poll.error", msg)
		return
	}
	logger.Debug(tghelpers.BuildContext(c), "tg", "handler.error", msg)
}
