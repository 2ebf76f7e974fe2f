package telegram

import (
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/taskbot/core/config"
	"github.com/m3rciful/taskbot/core/telegram/middleware"
)

// DefaultMiddlewares builds the global chain: panic recovery, request logging
// and, when configured, the per-user rate limit.
func DefaultMiddlewares(cfg *config.Config, onLimited tele.HandlerFunc) []Middleware {
	mws := []Middleware{
		{Name: "recover", Use: middleware.RecoverMiddleware},
		{Name: "logger", Use: middleware.LoggerMiddleware},
	}
	if cfg == nil || cfg.RateLimit.PerSecond <= 0 {
		return mws
	}

	ex := make(map[string]struct{}, len(cfg.RateLimit.ExcludeUpdates))
	for _, kind := range cfg.RateLimit.ExcludeUpdates {
		ex[kind] = struct{}{}
	}
	return append(mws, Middleware{
		Name: "rate_limit",
		Use: middleware.RateLimitMiddleware(middleware.RateLimitOptions{
			PerSecond: cfg.RateLimit.PerSecond,
			Burst:     cfg.RateLimit.Burst,
			Exclude:   ex,
			OnLimited: onLimited,
		}),
	})
}
