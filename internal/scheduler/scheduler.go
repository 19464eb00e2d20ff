package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/ademelnik/jobsieve/internal/poller"
)

// Scheduler owns the ingest loop: ticks on an interval and runs one poll
// cycle per tick.
type Scheduler struct {
	poller   *poller.Poller
	interval time.Duration
	logger   *slog.Logger
}

// NewScheduler creates a scheduler that polls the source at the given interval.
func NewScheduler(p *poller.Poller, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		poller:   p,
		interval: interval,
		logger:   logger,
	}
}

// Run starts the polling loop. It runs one immediate cycle, then ticks on the
// configured interval. It returns nil when ctx is cancelled (graceful shutdown).
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("starting scheduler", "interval", s.interval.String())

	if err := s.poller.Poll(ctx); err != nil {
		s.logger.Error("poll failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("shutting down scheduler")
			return nil
		case <-time.After(s.interval):
			if err := s.poller.Poll(ctx); err != nil {
				// One bad cycle never stops the loop.
				s.logger.Error("poll failed", "error", err)
			}
		}
	}
}
