package router

import (
	"log/slog"

	"github.com/m3rciful/satsbot/core/logger"
	tg "github.com/m3rciful/satsbot/core/telegram"
	"github.com/m3rciful/satsbot/core/telegram/callbacks"

	tele "gopkg.in/telebot.v4"
)

// CallbackOptions names the not-found branch in summaries.
type CallbackOptions struct {
	// NotFoundName defaults to "fallback".
	NotFoundName string
}

// CallbackRoute answers every button press and routes it by key through reg.
// Keys without a registered handler go to reg.CallbackNotFound.
func CallbackRoute(reg *tg.Registry, opts CallbackOptions) tg.Route {
	notFoundName := "callback.fallback"
	if opts.NotFoundName != "" {
		notFoundName = "callback." + normalizeHandlerName(opts.NotFoundName)
	}

	return tg.Route{
		Endpoint: tele.OnCallback,
		Handler: func(c tele.Context) error {
			if c.Callback() == nil {
				return nil
			}
			_ = c.Respond()

			key := callbacks.CallbackKey(c)
			if h, ok := reg.GetCallback(key); ok {
				return run(c, "callback."+normalizeHandlerName(key), h, slog.String("cb_key", key))
			}
			return run(c, notFoundName, reg.CallbackNotFound(),
				slog.String("cb_key", logger.SanitizeLimit(key, 64)),
				slog.String("reason", "not_found"),
			)
		},
	}
}
