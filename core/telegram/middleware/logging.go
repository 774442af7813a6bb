package middleware

import (
	"log/slog"

	"github.com/m3rciful/satsbot/core/logger"
	"github.com/m3rciful/satsbot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/satsbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// LoggerMiddleware attaches the log context to the update and writes a
// sampled debug line on receipt.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := tghelpers.BuildContext(c)
		if !logger.ShouldSampleDebug() {
			return next(c)
		}

		var attrs []slog.Attr
		if u := c.Sender(); u != nil && u.Username != "" {
			attrs = append(attrs, slog.String("username", logger.SanitizeLimit(u.Username, 64)))
		}
		if ch := c.Chat(); ch != nil {
			attrs = append(attrs, slog.String("chat_type", string(ch.Type)))
		}
		switch upd := c.Update(); {
		case upd.Callback != nil:
			key, payload := callbacks.ParseCallbackData(upd.Callback)
			attrs = append(attrs, slog.String("cb_key", logger.SanitizeLimit(key, 128)))
			if payload != "" {
				attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(payload, 256)))
			}
		case upd.Message != nil:
			// Text may carry card details; log its length only.
			attrs = append(attrs, slog.Int("text_len", len(upd.Message.Text)))
		}
		logger.Debug(ctx, "tg", "update.received", attrs...)
		return next(c)
	}
}
