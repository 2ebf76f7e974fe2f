// Package scheduler runs periodic maintenance jobs on cron expressions.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/m3rciful/taskbot/core/logger"
)

const component = "scheduler"

// Scheduler wraps a gocron scheduler running in UTC.
type Scheduler struct {
	s   gocron.Scheduler
	ctx context.Context
}

// New creates a stopped scheduler. Jobs receive ctx, which should outlive the scheduler.
func New(ctx context.Context) (*Scheduler, error) {
	s, err := gocron.NewScheduler(
		gocron.WithLocation(time.UTC),
		gocron.WithLogger(newCronLogger()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	return &Scheduler{s: s, ctx: ctx}, nil
}

// AddJob registers job under name. Runs of the same job never overlap.
func (s *Scheduler) AddJob(name, cronExpr string, job func(context.Context)) error {
	_, err := s.s.NewJob(
		gocron.CronJob(cronExpr, false),
		gocron.NewTask(func() { job(s.ctx) }),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		logger.Error(s.ctx, component, "job.add_failed",
			slog.String("job", name),
			slog.String("cron", cronExpr),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("failed to schedule job %q: %w", name, err)
	}
	logger.Info(s.ctx, component, "job.scheduled",
		slog.String("job", name),
		slog.String("cron", cronExpr),
	)
	return nil
}

// Jobs returns the names of registered jobs.
func (s *Scheduler) Jobs() []string {
	jobs := s.s.Jobs()
	names := make([]string, 0, len(jobs))
	for _, j := range jobs {
		names = append(names, j.Name())
	}
	return names
}

// Start begins running jobs in the background.
func (s *Scheduler) Start() { s.s.Start() }

// Stop waits for running jobs and shuts the scheduler down.
func (s *Scheduler) Stop() error {
	if err := s.s.Shutdown(); err != nil {
		return fmt.Errorf("failed to shutdown scheduler: %w", err)
	}
	return nil
}
