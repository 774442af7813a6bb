// Package helpers carries per-update log context and the reply helpers that
// route sends through the shared dispatcher.
package helpers

import (
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/m3rciful/satsbot/core/logger"
	"github.com/m3rciful/satsbot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

var dispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher installs d for the send helpers; nil makes them send inline.
func SetDispatcher(d *sender.Dispatcher) { dispatcher.Store(d) }

// submit queues send, or runs it inline when there is no dispatcher or the
// queue refuses the job.
func submit(c tele.Context, action, endpoint string, send func() error) error {
	d := dispatcher.Load()
	if d == nil {
		return send()
	}
	ctx := BuildContext(c)
	err := d.Enqueue(ctx, action, endpoint, send)
	if errors.Is(err, sender.ErrQueueFull) || errors.Is(err, sender.ErrQueueClosed) {
		logger.Warn(ctx, "tg.sender", "queue.bypass",
			slog.String("action", action),
			slog.String("err", err.Error()),
		)
		return send()
	}
	return err
}

// SendText sends plain text to the chat of the update.
func SendText(c tele.Context, text string) error {
	return submit(c, "send.text", "sendMessage", func() error { return c.Send(text) })
}

// SendMarkup sends text with markup attached; a nil markup sends text only.
func SendMarkup(c tele.Context, text string, markup *tele.ReplyMarkup) error {
	if markup == nil {
		return SendText(c, text)
	}
	return submit(c, "send.text", "sendMessage", func() error {
		return c.Send(text, &tele.SendOptions{ReplyMarkup: markup})
	})
}

// EditOrSendText replaces the message that carried the pressed button, or
// sends a new one when there is nothing to edit.
func EditOrSendText(c tele.Context, text string, markup *tele.ReplyMarkup) error {
	return submit(c, "edit.text", "editMessageText", func() error {
		if markup == nil {
			return c.EditOrSend(text)
		}
		return c.EditOrSend(text, &tele.SendOptions{ReplyMarkup: markup})
	})
}
