package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ademelnik/jobsieve/internal/model"
	"github.com/ademelnik/jobsieve/internal/queue"
)

// Enqueuer is the slice of the processing queue the poller needs.
type Enqueuer interface {
	Enqueue(id string, postedAt time.Time) bool
	EnqueueBatch(entries []queue.Entry) int
}

// EnrichmentSubmitter is the slice of the enrichment queue used on resume.
type EnrichmentSubmitter interface {
	Enqueue(id string) bool
}

// Poller owns the ingest pipeline: fetch vacancies from the source, persist
// the ones we have not seen, and hand them to the processing queue.
type Poller struct {
	fetcher model.VacancyFetcher
	store   model.VacancyStore
	queue   Enqueuer
	logger  *slog.Logger
}

// NewPoller creates a poller wired with its dependencies.
func NewPoller(fetcher model.VacancyFetcher, store model.VacancyStore, queue Enqueuer, logger *slog.Logger) *Poller {
	return &Poller{
		fetcher: fetcher,
		store:   store,
		queue:   queue,
		logger:  logger,
	}
}

// Poll runs one ingest cycle: fetch, dedup against the store, persist new
// vacancies as queued, and submit them for processing.
func (p *Poller) Poll(ctx context.Context) error {
	vacancies, err := p.fetcher.FetchVacancies(ctx)
	if err != nil {
		return fmt.Errorf("polling source: %w", err)
	}

	now := time.Now()
	var entries []queue.Entry
	for _, v := range vacancies {
		_, err := p.store.Load(v.ID)
		if err == nil {
			continue // already tracked
		}
		if !errors.Is(err, model.ErrNotFound) {
			return fmt.Errorf("polling source: checking vacancy %s: %w", v.ID, err)
		}

		v.Status = model.StatusQueued
		v.CreatedAt = now
		v.TransitionedAt = now
		if err := p.store.Save(&v); err != nil {
			return fmt.Errorf("polling source: saving vacancy %s: %w", v.ID, err)
		}
		entries = append(entries, queue.Entry{ID: v.ID, PostedAt: v.PostedAt})
	}

	added := p.queue.EnqueueBatch(entries)

	p.logger.Info("polled source",
		"fetched", len(vacancies),
		"new", len(entries),
		"enqueued", added,
	)
	return nil
}

// Resume reloads every non-terminal vacancy after a restart: queued ones go
// back to the processing queue, accepted ones back to the enrichment queue.
// Skipped ones are the recovery scanner's business, delivered ones await the
// user's verdict.
func (p *Poller) Resume(enrichment EnrichmentSubmitter) error {
	vacancies, err := p.store.FindNonTerminal()
	if err != nil {
		return fmt.Errorf("resuming: %w", err)
	}

	var requeued, resubmitted int
	for _, v := range vacancies {
		switch v.Status {
		case model.StatusQueued:
			if p.queue.Enqueue(v.ID, v.PostedAt) {
				requeued++
			}
		case model.StatusAccepted:
			if enrichment != nil && enrichment.Enqueue(v.ID) {
				resubmitted++
			}
		}
	}

	if requeued > 0 || resubmitted > 0 {
		p.logger.Info("resumed unfinished vacancies",
			"requeued", requeued,
			"resubmitted_for_enrichment", resubmitted,
		)
	}
	return nil
}
