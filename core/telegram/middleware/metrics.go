package middleware

import (
	"slices"

	"github.com/m3rciful/satsbot/core/metrics"

	tele "gopkg.in/telebot.v4"
)

const (
	keyMessages = "messages"
	keyKeyboard = "kb"
)

// countingContext counts the messages a handler sends or edits.
type countingContext struct{ tele.Context }

func (c countingContext) Send(what any, opts ...any) error {
	return c.count(c.Context.Send(what, opts...), opts)
}

func (c countingContext) EditOrSend(what any, opts ...any) error {
	return c.count(c.Context.EditOrSend(what, opts...), opts)
}

func (c countingContext) count(err error, opts []any) error {
	if err != nil {
		return err
	}
	n, _ := c.Get(keyMessages).(int)
	c.Set(keyMessages, n+1)
	metrics.AddMessages(1)
	if slices.ContainsFunc(opts, hasMarkup) {
		c.Set(keyKeyboard, true)
	}
	return nil
}

func hasMarkup(opt any) bool {
	switch v := opt.(type) {
	case *tele.SendOptions:
		return v != nil && v.ReplyMarkup != nil
	case *tele.ReplyMarkup:
		return v != nil
	}
	return false
}

// MessageMetricsMiddleware resets the per-update counters and wraps c so
// sends are counted.
func MessageMetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		c.Set(keyMessages, 0)
		c.Set(keyKeyboard, false)
		return next(countingContext{Context: c})
	}
}

// GetCounters returns how many messages the update produced and whether any
// carried a keyboard.
func GetCounters(c tele.Context) (int, bool) {
	n, _ := c.Get(keyMessages).(int)
	kb, _ := c.Get(keyKeyboard).(bool)
	return n, kb
}
