// Package telegram adapts the payment flow to Telegram updates.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/m3rciful/satsbot/bot/config"
	"github.com/m3rciful/satsbot/bot/flow"
	"github.com/m3rciful/satsbot/bot/lnbits"
	"github.com/m3rciful/satsbot/core/bootstrap"
	"github.com/m3rciful/satsbot/core/cmd"
	"github.com/m3rciful/satsbot/core/logger"
	"github.com/m3rciful/satsbot/core/metrics"
	coretelegram "github.com/m3rciful/satsbot/core/telegram"
	"github.com/m3rciful/satsbot/core/telegram/callbacks"
	"github.com/m3rciful/satsbot/core/telegram/commands"
	tghelpers "github.com/m3rciful/satsbot/core/telegram/helpers"
	"github.com/m3rciful/satsbot/core/telegram/keyboard"
	"github.com/m3rciful/satsbot/core/telegram/router"
	"github.com/m3rciful/satsbot/core/telegram/state"

	tele "gopkg.in/telebot.v4"
)

const (
	inProgressTimeout = 3 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// App holds everything the bot needs at runtime.
type App struct {
	cfg   *config.Config
	svc   *flow.Service
	infra *bootstrap.Result

	metricsSrv *metrics.Server
}

// New builds an App around an already wired service. infra may be nil.
func New(cfg *config.Config, svc *flow.Service, infra *bootstrap.Result) (*App, error) {
	if cfg == nil {
		return nil, errors.New("telegram: nil config")
	}
	if svc == nil {
		return nil, errors.New("telegram: nil service")
	}
	return &App{cfg: cfg, svc: svc, infra: infra}, nil
}

// Bootstrap initializes logging and the session backend selected in the
// config, then builds the LNbits client, the flow and the App.
func Bootstrap(ctx context.Context, carrier cmd.ConfigCarrier) (cmd.TelegramApp, error) {
	cfg, ok := carrier.(*config.Config)
	if !ok {
		return nil, fmt.Errorf("telegram: unexpected config type %T", carrier)
	}

	infra, err := bootstrap.Run(ctx, bootstrap.Options{
		Config:      cfg.CoreConfig(),
		Database:    cfg.Database,
		Redis:       cfg.Redis,
		UseDatabase: cfg.Session.Backend == config.BackendPostgres,
		UseRedis:    cfg.Session.Backend == config.BackendRedis,
	})
	if err != nil {
		return nil, err
	}

	app, err := build(cfg, infra)
	if err != nil {
		_ = infra.Close()
		return nil, err
	}
	return app, nil
}

func build(cfg *config.Config, infra *bootstrap.Result) (*App, error) {
	client, err := lnbits.New(lnbits.Config{
		BaseURL: cfg.Payment.BaseURL,
		APIKey:  cfg.Payment.APIKey,
		Timeout: cfg.Payment.Timeout(),
	})
	if err != nil {
		return nil, err
	}

	ctrl, err := flow.NewController(flow.Options{
		Invoices:   client,
		Payments:   client,
		VerifyPaid: cfg.Payment.VerifyPaid,
		Texts:      cfg.Texts,
	})
	if err != nil {
		return nil, err
	}

	store, locker, err := sessionBackend(cfg, infra)
	if err != nil {
		return nil, err
	}

	svc, err := flow.NewService(ctrl, store, locker, cfg.Session.LockTimeout())
	if err != nil {
		return nil, err
	}

	logger.Info(context.Background(), "app", "session.backend",
		slog.String("backend", cfg.Session.Backend),
		slog.Duration("ttl", cfg.Session.TTL()),
		slog.String("lnbits", cfg.Payment.BaseURL),
		slog.Bool("verify_paid", cfg.Payment.VerifyPaid),
	)
	return New(cfg, svc, infra)
}

// sessionBackend picks the conversation store and the per-user lock. Redis
// backs both so several bot replicas can share users; postgres keeps the
// lock in process.
func sessionBackend(cfg *config.Config, infra *bootstrap.Result) (state.Store, state.Locker, error) {
	ttl := cfg.Session.TTL()
	switch cfg.Session.Backend {
	case config.BackendRedis:
		if infra == nil || infra.Redis == nil {
			return nil, nil, errors.New("telegram: redis backend selected but no client connected")
		}
		kv := state.NewRedisKV(infra.Redis)
		return state.NewRedisStore(kv, ttl), state.NewRedisLocker(kv, cfg.LockTTL()), nil
	case config.BackendPostgres:
		if infra == nil || infra.DB == nil {
			return nil, nil, errors.New("telegram: postgres backend selected but no database connected")
		}
		return state.NewPostgresStore(infra.DB, ttl), state.NewMemoryLocker(), nil
	default:
		return state.NewMemoryStore(ttl), state.NewMemoryLocker(), nil
	}
}

// TelegramRunOptions registers the commands and routes of the bot.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	core := a.cfg.CoreConfig()
	reg := coretelegram.NewRegistry()

	reg.RegisterCommand("/start", commands.Command{
		Handler:     a.handleStart,
		Description: "Start",
	})
	if core.Telegram.AdminID != 0 {
		reg.RegisterCommand("/reset", commands.Command{
			Handler:     a.handleReset,
			Description: "Clear a user's conversation",
			AdminOnly:   true,
			Hidden:      true,
		})
	}

	if err := a.registerCallbacks(reg); err != nil {
		return coretelegram.RunOptions{}, err
	}

	routes := router.CommandRoutes(reg, router.CommandRouteOptions{AdminID: core.Telegram.AdminID})
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{NotFoundName: "flow"}))
	routes = append(routes, router.TextRoutes(a)...)

	return coretelegram.RunOptions{
		Config:      core,
		Registry:    reg,
		Middlewares: coretelegram.DefaultMiddlewares(core),
		Routes:      routes,
		OnStart:     a.onStart,
		OnStop:      a.onStop,
	}, nil
}

// registerCallbacks maps the rail buttons to their handler. Paid buttons carry
// a per-invoice reference, so they reach the flow through the not-found hook.
func (a *App) registerCallbacks(reg *coretelegram.Registry) error {
	for _, rail := range []string{flow.RailOnchain, flow.RailLightning} {
		if err := reg.RegisterCallback(rail, a.handleRail); err != nil {
			return err
		}
	}
	reg.SetCallbackNotFound(a.handleCallback)
	return nil
}

// InProgress reports whether userID has an open conversation. Store errors
// count as in progress so the user gets an error reply instead of silence.
func (a *App) InProgress(userID int64) bool {
	ctx, cancel := context.WithTimeout(context.Background(), inProgressTimeout)
	defer cancel()
	ok, err := a.svc.InProgress(ctx, userID)
	if err != nil {
		logger.Warn(ctx, "flow", "in_progress.failed",
			slog.Int64("user_id", userID),
			slog.String("err", err.Error()),
		)
		return true
	}
	return ok
}

// ManagerHandler feeds free text into the flow.
func (a *App) ManagerHandler(c tele.Context) error {
	return a.dispatch(c, flow.AmountEntered(c.Text()))
}

func (a *App) handleStart(c tele.Context) error {
	return a.dispatch(c, flow.StartCommand())
}

func (a *App) handleRail(c tele.Context) error {
	return a.dispatch(c, flow.RailSelected(callbacks.CallbackKey(c)))
}

func (a *App) handleCallback(c tele.Context) error {
	cb := c.Callback()
	if cb == nil {
		return nil
	}
	return a.dispatch(c, flow.ParseCallback(cb.Data))
}

func (a *App) handleReset(c tele.Context) error {
	args := c.Args()
	if len(args) != 1 {
		return tghelpers.SendText(c, "usage: /reset <user_id>")
	}
	userID, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
	if err != nil || userID <= 0 {
		return tghelpers.SendText(c, "invalid user id: "+args[0])
	}
	if err := a.svc.Reset(tghelpers.BuildContext(c), userID); err != nil {
		return err
	}
	return tghelpers.SendText(c, fmt.Sprintf("conversation of %d cleared", userID))
}

func (a *App) dispatch(c tele.Context, ev flow.Event) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	ctx := tghelpers.BuildContext(c)

	res, err := a.svc.Dispatch(ctx, sender.ID, ev)
	if err != nil {
		logger.Error(ctx, "flow", "dispatch.failed",
			slog.String("event", string(ev.Kind)),
			slog.String("err", err.Error()),
		)
		_ = tghelpers.SendText(c, a.svc.Controller().Texts().GenericError)
		return err
	}

	for _, act := range res.Actions {
		if err := render(c, act); err != nil {
			return err
		}
	}
	return res.Err
}

func render(c tele.Context, act flow.Action) error {
	markup := buildMarkup(act.Buttons)
	if act.Edit && c.Callback() != nil {
		return tghelpers.EditOrSendText(c, act.Text, markup)
	}
	return tghelpers.SendMarkup(c, act.Text, markup)
}

func buildMarkup(rows [][]flow.Button) *tele.ReplyMarkup {
	if len(rows) == 0 {
		return nil
	}
	kb := make([][]keyboard.InlineBtn, 0, len(rows))
	for _, row := range rows {
		r := make([]keyboard.InlineBtn, 0, len(row))
		for _, b := range row {
			r = append(r, keyboard.InlineBtn{Text: b.Label, Data: b.Data})
		}
		kb = append(kb, r)
	}
	return keyboard.InlineButtonsRows(kb...)
}

func (a *App) onStart(context.Context) error {
	listen := a.cfg.Metrics.Listen
	if listen == "" {
		return nil
	}
	metrics.MustRegister()
	a.metricsSrv = metrics.NewServer(listen)
	return a.metricsSrv.Start()
}

func (a *App) onStop(ctx context.Context) error {
	var errs []error
	if a.metricsSrv != nil {
		// ctx is already cancelled when shutdown was triggered by a signal.
		shCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		errs = append(errs, a.metricsSrv.Shutdown(shCtx))
		cancel()
	}
	errs = append(errs, a.infra.Close())
	return errors.Join(errs...)
}
