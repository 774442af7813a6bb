package helpers

import (
	"context"

	"github.com/m3rciful/satsbot/core/logger"

	tele "gopkg.in/telebot.v4"
)

const ctxKey = "log_ctx"

// BuildContext returns the log context of the update in c: its rid plus
// update, user and chat ids. It is built once and cached on c.
func BuildContext(c tele.Context) context.Context {
	if ctx, ok := c.Get(ctxKey).(context.Context); ok {
		return ctx
	}

	var userID, chatID int64
	if u := c.Sender(); u != nil {
		userID = u.ID
	}
	if ch := c.Chat(); ch != nil {
		chatID = ch.ID
	}
	updateID := c.Update().ID

	ctx := logger.WithRID(context.Background(), logger.BuildRID(updateID, chatID, userID))
	ctx = logger.WithUpdateMeta(ctx, updateID, userID, chatID)
	c.Set(ctxKey, ctx)
	return ctx
}

// WithHandler tags the cached context with the handler name.
func WithHandler(c tele.Context, handler string) context.Context {
	ctx := logger.WithHandler(BuildContext(c), handler)
	c.Set(ctxKey, ctx)
	return ctx
}
