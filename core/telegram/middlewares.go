package telegram

import (
	"time"

	coreconfig "github.com/m3rciful/satsbot/core/config"
	"github.com/m3rciful/satsbot/core/telegram/middleware"
)

// DefaultMiddlewares returns the global chain in the order it is installed.
func DefaultMiddlewares(cfg *coreconfig.Config) []Middleware {
	mws := []Middleware{{Name: "recover", Use: middleware.RecoverMiddleware}}
	if cfg != nil && cfg.RateLimit.IntervalMS > 0 {
		interval := time.Duration(cfg.RateLimit.IntervalMS) * time.Millisecond
		mws = append(mws, Middleware{
			Name: "rate_limit",
			Use:  middleware.RateLimitMiddleware(interval, cfg.RateLimit.ExcludeUpdates),
		})
	}
	return append(mws,
		Middleware{Name: "logger", Use: middleware.LoggerMiddleware},
		Middleware{Name: "metrics", Use: middleware.MessageMetricsMiddleware},
	)
}
