package enrichment

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ademelnik/jobsieve/internal/model"
)

// ReadyEvent announces that an accepted vacancy is ready for delivery.
// Letter is empty when every generation attempt failed — delivery happens
// regardless, the letter is an enhancement, not a gate.
type ReadyEvent struct {
	Vacancy        model.Vacancy
	Classification model.Classification
	Letter         string
}

// RetryQueue is the secondary, best-effort pipeline: it generates cover
// letters for vacancies the classifier accepted, with bounded retries. It
// emits exactly one ReadyEvent per vacancy whatever the outcome, and never
// touches the vacancy's primary status.
type RetryQueue struct {
	store      model.VacancyStore
	generator  model.LetterGenerator
	maxRetries int
	backoff    time.Duration

	tasks   chan string
	mu      sync.Mutex
	pending map[string]struct{} // ids submitted but not yet resolved

	onReady func(ReadyEvent)

	workers int
	logger  *slog.Logger
	wg      sync.WaitGroup
}

// NewRetryQueue creates the enrichment queue. maxRetries bounds generation
// attempts per vacancy; backoff is the base delay between attempts, doubled
// each retry.
func NewRetryQueue(
	store model.VacancyStore,
	generator model.LetterGenerator,
	maxRetries int,
	backoff time.Duration,
	workers int,
	logger *slog.Logger,
) *RetryQueue {
	if maxRetries < 1 {
		maxRetries = 1
	}
	if workers < 1 {
		workers = 1
	}
	return &RetryQueue{
		store:      store,
		generator:  generator,
		maxRetries: maxRetries,
		backoff:    backoff,
		tasks:      make(chan string, 256),
		pending:    make(map[string]struct{}),
		workers:    workers,
		logger:     logger,
	}
}

// OnReady registers the single consumer of ready events. Must be set before Run.
func (rq *RetryQueue) OnReady(fn func(ReadyEvent)) {
	rq.onReady = fn
}

// Enqueue submits an accepted vacancy for letter generation. Duplicate
// submissions while a vacancy is pending are no-ops. Returns false when the
// vacancy was already pending or the queue is full.
func (rq *RetryQueue) Enqueue(id string) bool {
	rq.mu.Lock()
	if _, ok := rq.pending[id]; ok {
		rq.mu.Unlock()
		return false
	}
	rq.pending[id] = struct{}{}
	rq.mu.Unlock()

	select {
	case rq.tasks <- id:
		return true
	default:
		rq.mu.Lock()
		delete(rq.pending, id)
		rq.mu.Unlock()
		rq.logger.Error("enrichment queue full, dropping submission", "vacancy", id)
		return false
	}
}

// Run starts the workers and blocks until ctx is cancelled and workers exit.
func (rq *RetryQueue) Run(ctx context.Context) {
	rq.logger.Info("starting enrichment queue",
		"workers", rq.workers,
		"max_retries", rq.maxRetries,
	)

	for i := 0; i < rq.workers; i++ {
		rq.wg.Add(1)
		go func() {
			defer rq.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case id := <-rq.tasks:
					rq.enrich(ctx, id)
				}
			}
		}()
	}
	rq.wg.Wait()
	rq.logger.Info("enrichment queue stopped")
}

// enrich runs the bounded attempt loop for one vacancy and fires exactly one
// ready event at the end.
func (rq *RetryQueue) enrich(ctx context.Context, id string) {
	defer func() {
		rq.mu.Lock()
		delete(rq.pending, id)
		rq.mu.Unlock()
	}()

	v, err := rq.store.Load(id)
	if err != nil {
		rq.logger.Error("loading vacancy for enrichment", "vacancy", id, "error", err)
		return
	}
	if v.Classification == nil {
		rq.logger.Error("vacancy submitted for enrichment without classification", "vacancy", id)
		return
	}

	v.Classification.Enrichment = model.EnrichmentRetryQueued
	if err := rq.store.Save(v); err != nil {
		rq.logger.Error("persisting enrichment state", "vacancy", id, "error", err)
	}

	delay := rq.backoff
	for attempt := 1; attempt <= rq.maxRetries; attempt++ {
		now := time.Now()
		v.Classification.Attempts++
		v.Classification.LastTried = &now

		letter, err := rq.generator.Generate(ctx, *v)
		if err == nil {
			v.Classification.Enrichment = model.EnrichmentSuccess
			v.Classification.Letter = letter
			if err := rq.store.Save(v); err != nil {
				rq.logger.Error("persisting generated letter", "vacancy", id, "error", err)
			}
			rq.ready(*v, letter)
			return
		}

		rq.logger.Warn("letter generation failed",
			"vacancy", id,
			"attempt", attempt,
			"max_retries", rq.maxRetries,
			"error", err,
		)
		if err := rq.store.Save(v); err != nil {
			rq.logger.Error("persisting enrichment attempt", "vacancy", id, "error", err)
		}

		if attempt == rq.maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			// Shutdown mid-retry: the startup resubmission of accepted
			// vacancies picks this up again.
			return
		case <-time.After(delay):
		}
		delay *= 2
	}

	// Out of attempts. The vacancy is still delivered — a classifier accept
	// is never withheld just because the letter failed.
	v.Classification.Enrichment = model.EnrichmentFailed
	if err := rq.store.Save(v); err != nil {
		rq.logger.Error("persisting enrichment failure", "vacancy", id, "error", err)
	}
	rq.ready(*v, "")
}

func (rq *RetryQueue) ready(v model.Vacancy, letter string) {
	if rq.onReady == nil {
		return
	}
	rq.onReady(ReadyEvent{
		Vacancy:        v,
		Classification: *v.Classification,
		Letter:         letter,
	})
}
