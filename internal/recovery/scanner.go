package recovery

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ademelnik/jobsieve/internal/model"
)

// Enqueuer is the slice of the processing queue the scanner needs.
type Enqueuer interface {
	Enqueue(id string, postedAt time.Time) bool
}

// Report summarizes one recovery pass.
type Report struct {
	Recovered            int // skipped vacancies re-queued for classification
	Deleted              int // vacancies that now violate the content policy
	SkippedIntentionally int // left alone: already judged irrelevant by content
}

// Scanner periodically resurrects transiently-failed vacancies. Only skipped
// vacancies whose last transition falls within the recovery window are
// candidates; older ones are considered abandoned and left alone to bound scan
// cost. A vacancy with a persisted accepted=false verdict is never re-queued —
// it was judged irrelevant by content, not felled by transport.
type Scanner struct {
	store     model.VacancyStore
	validator model.Validator
	queue     Enqueuer
	window    time.Duration
	interval  time.Duration
	logger    *slog.Logger
}

// NewScanner creates a scanner that sweeps every interval over skipped
// vacancies no older than window.
func NewScanner(
	store model.VacancyStore,
	validator model.Validator,
	queue Enqueuer,
	window time.Duration,
	interval time.Duration,
	logger *slog.Logger,
) *Scanner {
	return &Scanner{
		store:     store,
		validator: validator,
		queue:     queue,
		window:    window,
		interval:  interval,
		logger:    logger,
	}
}

// Run executes recovery passes on the configured interval until ctx is
// cancelled. A failed pass is logged and retried on the next tick.
func (s *Scanner) Run(ctx context.Context) {
	s.logger.Info("starting recovery scanner",
		"interval", s.interval.String(),
		"window", s.window.String(),
	)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("shutting down recovery scanner")
			return
		case <-ticker.C:
			report, err := s.RunPass()
			if err != nil {
				s.logger.Error("recovery pass failed", "error", err)
				continue
			}
			if report.Recovered > 0 || report.Deleted > 0 {
				s.logger.Info("recovery pass complete",
					"recovered", report.Recovered,
					"deleted", report.Deleted,
					"skipped_intentionally", report.SkippedIntentionally,
				)
			}
		}
	}
}

// RunPass executes one recovery sweep and reports what it did. Callable on
// demand as well as from the timer loop. A vacancy is either fully
// transitioned and re-queued or left untouched; there is no partial commit.
func (s *Scanner) RunPass() (Report, error) {
	cutoff := time.Now().Add(-s.window)
	candidates, err := s.store.FindSkippedSince(cutoff)
	if err != nil {
		return Report{}, fmt.Errorf("listing skipped vacancies: %w", err)
	}

	var report Report
	for _, v := range candidates {
		// Already judged irrelevant by content. Re-queuing would loop the
		// classifier on the same rejection forever.
		if v.Classification != nil && !v.Classification.Accepted {
			report.SkippedIntentionally++
			continue
		}

		// Policy may have changed since the vacancy was stored; re-check.
		if ok, reason := s.validator.Validate(*v); !ok {
			if err := s.store.Delete(v.ID); err != nil {
				return report, fmt.Errorf("deleting invalid vacancy %s: %w", v.ID, err)
			}
			s.logger.Info("skipped vacancy now violates content policy, deleted",
				"vacancy", v.ID, "reason", reason)
			report.Deleted++
			continue
		}

		if err := v.Transition(model.StatusQueued); err != nil {
			return report, fmt.Errorf("re-queuing vacancy %s: %w", v.ID, err)
		}
		if err := s.store.Save(v); err != nil {
			return report, fmt.Errorf("saving re-queued vacancy %s: %w", v.ID, err)
		}
		if !s.queue.Enqueue(v.ID, v.PostedAt) {
			s.logger.Warn("recovered vacancy already in queue", "vacancy", v.ID)
		}
		report.Recovered++
	}

	return report, nil
}
