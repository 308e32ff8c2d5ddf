// Package scheduler provides cron-based background jobs for Yard.
//
// Its main duty is the periodic purge of expired sessions and idempotency
// records from SQL backends, which have no native TTLs.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/findhomeng/yard/internal/store"
	"github.com/robfig/cron/v3"
)

// DefaultCleanupSchedule runs the expiry sweep hourly.
const DefaultCleanupSchedule = "0 * * * *"

// DefaultJobTimeout bounds one background job run.
const DefaultJobTimeout = 5 * time.Minute

// Scheduler provides cron-based job scheduling.
type Scheduler struct {
	cron *cron.Cron
}

// NewScheduler creates and starts a cron scheduler.
func NewScheduler() *Scheduler {
	// Standard 5-field cron parser (min, hour, dom, month, dow) with panic recovery
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	c := cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(cron.DefaultLogger)))
	c.Start()
	return &Scheduler{cron: c}
}

// AddJob schedules a task using the provided cron expression.
// It returns an error if the expression is invalid.
func (s *Scheduler) AddJob(expr string, task func()) error {
	_, err := s.cron.AddFunc(expr, task)
	return err
}

// ScheduleCleanup registers the periodic expiry sweep against the given
// purger. An empty expression uses DefaultCleanupSchedule.
func (s *Scheduler) ScheduleCleanup(expr string, p store.Purger) error {
	if expr == "" {
		expr = DefaultCleanupSchedule
	}
	return s.AddJob(expr, func() {
		ctx, cancel := context.WithTimeout(context.Background(), DefaultJobTimeout)
		defer cancel()
		n, err := p.PurgeExpired(ctx)
		if err != nil {
			slog.Error("Expiry sweep failed", "error", err)
			return
		}
		if n > 0 {
			slog.Info("Expiry sweep removed records", "count", n)
		}
	})
}

// Stop stops the cron scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}
