package middleware

import (
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/m3rciful/satsbot/core/logger"
	tghelpers "github.com/m3rciful/satsbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// RecoverMiddleware turns a handler panic into a logged error.
func RecoverMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) (err error) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			logger.Error(tghelpers.BuildContext(c), "tg", "panic",
				slog.String("status", "fail"),
				slog.String("err", fmt.Sprint(r)),
				slog.String("stack", string(debug.Stack())),
			)
			err = fmt.Errorf("telegram: handler panic: %v", r)
		}()
		return next(c)
	}
}
