// Package jobs runs periodic housekeeping tasks on a gocron scheduler.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
)

type Scheduler struct {
	sched  gocron.Scheduler
	logger *slog.Logger
}

func New(logger *slog.Logger) (*Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("creating scheduler: %w", err)
	}
	return &Scheduler{sched: sched, logger: logger}, nil
}

// Every registers fn to run every d. Runs never overlap; a failing run is
// logged and the job keeps its schedule.
func (s *Scheduler) Every(name string, d time.Duration, fn func(ctx context.Context) error) error {
	_, err := s.sched.NewJob(
		gocron.DurationJob(d),
		gocron.NewTask(func(ctx context.Context) {
			start := time.Now()
			if err := fn(ctx); err != nil {
				s.logger.Error("job failed", "job", name, "error", err)
				return
			}
			s.logger.Debug("job finished", "job", name, "duration_ms", time.Since(start).Milliseconds())
		}),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("registering job %s: %w", name, err)
	}
	return nil
}

// Run starts the scheduler and blocks until ctx is cancelled, then waits
// for running jobs to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	s.sched.Start()
	<-ctx.Done()
	if err := s.sched.Shutdown(); err != nil {
		return fmt.Errorf("stopping scheduler: %w", err)
	}
	return nil
}
