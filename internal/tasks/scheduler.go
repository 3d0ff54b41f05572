package tasks

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/tbonnin/mediatheque/internal/shared"
	"golang.org/x/time/rate"
)

// Scheduler triggers periodic merge runs.
//
// A rate limiter with burst 1 backs the ticker, so a manual trigger and a
// scheduled tick can never stack runs against the destination store.
type Scheduler struct {
	engine   *Engine
	interval time.Duration
	limiter  *rate.Limiter
	logger   *log.Logger
}

// NewScheduler creates a Scheduler merging every interval.
func NewScheduler(engine *Engine, interval time.Duration, logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Scheduler{
		engine:   engine,
		interval: interval,
		limiter:  rate.NewLimiter(rate.Every(interval), 1),
		logger:   logger,
	}
}

// TryRun executes a run immediately if the limiter allows one, reporting
// whether it ran. Used for manual triggers sharing the scheduler's budget.
func (s *Scheduler) TryRun(ctx context.Context) (bool, error) {
	if !s.limiter.Allow() {
		return false, nil
	}
	_, err := s.engine.Run(ctx, nil)
	return true, err
}

// Start blocks, merging every interval until ctx is cancelled. A run is
// never cancelled mid-flight; cancellation takes effect between runs.
func (s *Scheduler) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if !s.limiter.Allow() {
				s.logger.Debug("merge tick throttled")
				continue
			}
			summary, err := s.engine.Run(ctx, nil)
			if err != nil {
				s.logger.Error("scheduled merge failed", "error", err)
				continue
			}
			if summary.Skipped {
				s.logger.Info("scheduled merge deferred", "reason", summary.SkipReason)
				continue
			}
			s.logger.Info("scheduled merge finished", "merged", summary.Merged, "inserted", summary.TotalInserted())
		}
	}
}
