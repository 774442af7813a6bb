package middleware

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/m3rciful/satsbot/core/logger"
	"github.com/m3rciful/satsbot/core/metrics"

	tele "gopkg.in/telebot.v4"
)

// userLimiter remembers when each user last got an update through.
type userLimiter struct {
	interval time.Duration

	mu        sync.Mutex
	lastSeen  map[int64]time.Time
	lastPrune time.Time
}

func newUserLimiter(interval time.Duration) *userLimiter {
	return &userLimiter{interval: interval, lastSeen: make(map[int64]time.Time)}
}

// allow reports whether userID may pass at now and records the pass.
// Entries older than the interval are pruned at most once per minute.
func (l *userLimiter) allow(userID int64, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if now.Sub(l.lastPrune) >= time.Minute {
		for id, t := range l.lastSeen {
			if now.Sub(t) >= l.interval {
				delete(l.lastSeen, id)
			}
		}
		l.lastPrune = now
	}
	if last, ok := l.lastSeen[userID]; ok && now.Sub(last) < l.interval {
		return false
	}
	l.lastSeen[userID] = now
	return true
}

// updateKind names the update for rate_limit.exclude_updates.
func updateKind(u tele.Update) string {
	switch {
	case u.Callback != nil:
		return "callback"
	case u.Message != nil:
		return "message"
	}
	return "other"
}

// RateLimitMiddleware drops updates from a user that arrive within interval
// of their previous accepted update. Kinds listed in exclude always pass.
// Dropped button presses are still answered.
func RateLimitMiddleware(interval time.Duration, exclude []string) tele.MiddlewareFunc {
	lim := newUserLimiter(interval)
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			kind := updateKind(c.Update())
			if user == nil || interval <= 0 || slices.Contains(exclude, kind) {
				return next(c)
			}
			if lim.allow(user.ID, time.Now()) {
				return next(c)
			}

			metrics.IncRateLimited(kind)
			logger.Warn(context.Background(), "tg", "rate_limit",
				slog.String("status", "skip"),
				slog.Int64("user_id", user.ID),
				slog.String("update_kind", kind),
			)
			if c.Callback() != nil {
				_ = c.Respond()
			}
			return nil
		}
	}
}
