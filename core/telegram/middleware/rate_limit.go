package middleware

import (
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/taskbot/core/logger"
	"github.com/m3rciful/taskbot/core/telegram/helpers"
)

// RateLimitOptions configures the per-user token bucket.
type RateLimitOptions struct {
	PerSecond float64
	Burst     int
	// Exclude lists update kinds, as returned by Kind, that bypass limiting.
	Exclude   map[string]struct{}
	OnLimited tele.HandlerFunc
	// IdleTTL drops buckets of users silent for longer; 0 means ten minutes.
	IdleTTL time.Duration
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

type userLimiter struct {
	opts      RateLimitOptions
	mu        sync.Mutex
	buckets   map[int64]*bucket
	lastPrune time.Time
}

func (l *userLimiter) allow(userID int64, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastPrune) > l.opts.IdleTTL {
		for id, b := range l.buckets {
			if now.Sub(b.seen) > l.opts.IdleTTL {
				delete(l.buckets, id)
			}
		}
		l.lastPrune = now
	}

	b, ok := l.buckets[userID]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(rate.Limit(l.opts.PerSecond), l.opts.Burst)}
		l.buckets[userID] = b
	}
	b.seen = now
	return b.lim.AllowN(now, 1)
}

// RateLimitMiddleware drops updates from users exceeding their token bucket.
func RateLimitMiddleware(opts RateLimitOptions) tele.MiddlewareFunc {
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = 10 * time.Minute
	}
	l := &userLimiter{opts: opts, buckets: make(map[int64]*bucket), lastPrune: time.Now()}

	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil || opts.PerSecond <= 0 {
				return next(c)
			}
			if _, skip := opts.Exclude[Kind(c.Update())]; skip {
				return next(c)
			}
			if l.allow(user.ID, time.Now()) {
				return next(c)
			}

			logger.Warn(helpers.BuildContext(c), "tg", "tg.rate_limit",
				slog.Int64("user_id", user.ID),
				slog.String("kind", Kind(c.Update())),
			)
			if opts.OnLimited != nil {
				_ = opts.OnLimited(c)
			}
			return nil
		}
	}
}
