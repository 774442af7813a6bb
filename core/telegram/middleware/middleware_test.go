package middleware

import (
	"errors"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"
)

// updateContext is a minimal tele.Context carrying one update.
type updateContext struct {
	tele.Context

	upd       tele.Update
	vals      map[string]any
	sent      int
	responded int
	sendErr   error
}

func newMessageContext(userID int64) *updateContext {
	return &updateContext{upd: tele.Update{Message: &tele.Message{Sender: &tele.User{ID: userID}}}}
}

func newButtonContext(userID int64) *updateContext {
	return &updateContext{upd: tele.Update{Callback: &tele.Callback{Sender: &tele.User{ID: userID}}}}
}

func (c *updateContext) Update() tele.Update      { return c.upd }
func (c *updateContext) Chat() *tele.Chat         { return nil }
func (c *updateContext) Callback() *tele.Callback { return c.upd.Callback }

func (c *updateContext) Sender() *tele.User {
	if c.upd.Callback != nil {
		return c.upd.Callback.Sender
	}
	return c.upd.Message.Sender
}

func (c *updateContext) Get(key string) any { return c.vals[key] }

func (c *updateContext) Set(key string, v any) {
	if c.vals == nil {
		c.vals = make(map[string]any)
	}
	c.vals[key] = v
}

func (c *updateContext) Send(any, ...any) error {
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent++
	return nil
}

func (c *updateContext) EditOrSend(what any, opts ...any) error { return c.Send(what, opts...) }

func (c *updateContext) Respond(...*tele.CallbackResponse) error {
	c.responded++
	return nil
}

func TestRateLimitPerUser(t *testing.T) {
	var passed int
	h := RateLimitMiddleware(time.Hour, []string{"callback"})(func(tele.Context) error {
		passed++
		return nil
	})

	_ = h(newMessageContext(1))
	_ = h(newMessageContext(1))
	_ = h(newMessageContext(2))
	if passed != 2 {
		t.Fatalf("passed = %d, want one per user", passed)
	}

	btn := newButtonContext(1)
	_ = h(btn)
	if passed != 3 {
		t.Fatal("excluded kinds must pass")
	}
}

func TestRateLimitAnswersDroppedButtons(t *testing.T) {
	h := RateLimitMiddleware(time.Hour, nil)(func(tele.Context) error { return nil })
	_ = h(newButtonContext(5))
	dropped := newButtonContext(5)
	_ = h(dropped)
	if dropped.responded != 1 {
		t.Fatalf("dropped button answered %d times", dropped.responded)
	}
}

func TestUserLimiterPrunesIdleUsers(t *testing.T) {
	lim := newUserLimiter(time.Second)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for id := int64(1); id <= 3; id++ {
		lim.allow(id, now)
	}
	if !lim.allow(4, now.Add(2*time.Minute)) {
		t.Fatal("new user must pass")
	}
	if n := len(lim.lastSeen); n != 1 {
		t.Fatalf("idle users kept: %d", n)
	}
}

func TestMessageMetricsCountsSends(t *testing.T) {
	c := newMessageContext(1)
	h := MessageMetricsMiddleware(func(c tele.Context) error {
		_ = c.Send("plain")
		_ = c.EditOrSend("with kb", &tele.SendOptions{ReplyMarkup: &tele.ReplyMarkup{}})
		return nil
	})
	if err := h(c); err != nil {
		t.Fatal(err)
	}
	if n, kb := GetCounters(c); n != 2 || !kb {
		t.Fatalf("counters = %d, %v", n, kb)
	}

	failing := newMessageContext(1)
	failing.sendErr = errors.New("blocked by user")
	_ = MessageMetricsMiddleware(func(c tele.Context) error { return c.Send("x") })(failing)
	if n, _ := GetCounters(failing); n != 0 {
		t.Fatalf("failed sends counted: %d", n)
	}
}

func TestRecoverReturnsPanicAsError(t *testing.T) {
	c := newMessageContext(1)
	c.upd.ID = 3
	h := RecoverMiddleware(func(tele.Context) error { panic("boom") })
	if err := h(c); err == nil {
		t.Fatal("expected error from recovered panic")
	}
}
