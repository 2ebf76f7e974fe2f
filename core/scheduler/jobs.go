package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/m3rciful/taskbot/core/logger"
)

// JobPurgeDialogs is the name of the stale dialog cleanup job.
const JobPurgeDialogs = "purge-dialog-states"

// Purger removes dialog states idle for longer than ttl.
type Purger interface {
	PurgeExpired(ctx context.Context, ttl time.Duration) (int64, error)
}

// PurgeDialogs returns the job body deleting states idle longer than ttl.
func PurgeDialogs(p Purger, ttl time.Duration) func(context.Context) {
	return func(ctx context.Context) {
		start := time.Now()
		n, err := p.PurgeExpired(ctx, ttl)
		if err != nil {
			logger.Error(ctx, component, "dialog.purge_failed", slog.String("err", err.Error()))
			return
		}
		logger.Debug(ctx, component, "dialog.purged",
			slog.Int64("removed", n),
			slog.Duration("ttl", ttl),
			slog.Duration("duration", logger.Took(start)),
		)
	}
}

// SchedulePurge registers the purge job unless ttl is negative.
func (s *Scheduler) SchedulePurge(p Purger, ttl time.Duration, cronExpr string) error {
	if ttl < 0 {
		logger.Info(s.ctx, component, "job.disabled", slog.String("job", JobPurgeDialogs))
		return nil
	}
	return s.AddJob(JobPurgeDialogs, cronExpr, PurgeDialogs(p, ttl))
}
