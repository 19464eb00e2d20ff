package queue

import (
	"container/heap"
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/ademelnik/jobsieve/internal/breaker"
	"github.com/ademelnik/jobsieve/internal/model"
)

// Entry is the in-memory handle the queue keeps per vacancy: the ID and the
// priority key. The store owns everything else.
type Entry struct {
	ID       string
	PostedAt time.Time
}

// ItemInfo describes one queue member for introspection.
type ItemInfo struct {
	ID       string
	PostedAt time.Time
	State    string // "queued" or "processing"
}

// ProcessingQueue orders vacancies by publication time (oldest first) and runs
// each through existence check → validation → classification under a bounded
// worker pool. A vacancy ID lives in at most one of the queued/processing sets
// at any instant, so the same vacancy is never scheduled twice concurrently.
type ProcessingQueue struct {
	mu         sync.Mutex
	heap       entryHeap
	queued     map[string]struct{}
	processing map[string]struct{}
	wake       chan struct{}

	store      model.VacancyStore
	checker    model.ExistenceChecker
	validator  model.Validator
	classifier model.Classifier
	brk        *breaker.Breaker

	workers int
	gate    chan struct{} // permits bounding concurrent classifier calls

	onAccepted func(v model.Vacancy) // called after a vacancy reaches accepted

	logger *slog.Logger
	wg     sync.WaitGroup
}

// New creates a queue with the given worker count and classification
// concurrency ceiling. The ceiling is distinct from the classifier's own rate
// limit: it bounds in-flight calls, not calls per second.
func New(
	store model.VacancyStore,
	checker model.ExistenceChecker,
	validator model.Validator,
	classifier model.Classifier,
	brk *breaker.Breaker,
	workers int,
	maxClassify int,
	logger *slog.Logger,
) *ProcessingQueue {
	if workers < 1 {
		workers = 1
	}
	if maxClassify < 1 {
		maxClassify = 1
	}
	return &ProcessingQueue{
		queued:     make(map[string]struct{}),
		processing: make(map[string]struct{}),
		wake:       make(chan struct{}, 1),
		store:      store,
		checker:    checker,
		validator:  validator,
		classifier: classifier,
		brk:        brk,
		workers:    workers,
		gate:       make(chan struct{}, maxClassify),
		logger:     logger,
	}
}

// OnAccepted registers a hook invoked for every vacancy the classifier
// accepts. Used to feed the enrichment queue. Must be set before Run.
func (q *ProcessingQueue) OnAccepted(fn func(v model.Vacancy)) {
	q.onAccepted = fn
}

// Enqueue adds a vacancy ID unless it is already queued or processing.
// Returns true if the ID was newly added.
func (q *ProcessingQueue) Enqueue(id string, postedAt time.Time) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.queued[id]; ok {
		return false
	}
	if _, ok := q.processing[id]; ok {
		return false
	}

	heap.Push(&q.heap, Entry{ID: id, PostedAt: postedAt})
	q.queued[id] = struct{}{}
	q.signal()
	return true
}

// EnqueueBatch enqueues many entries in one pass and returns the count
// actually added.
func (q *ProcessingQueue) EnqueueBatch(entries []Entry) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	added := 0
	for _, e := range entries {
		if _, ok := q.queued[e.ID]; ok {
			continue
		}
		if _, ok := q.processing[e.ID]; ok {
			continue
		}
		heap.Push(&q.heap, e)
		q.queued[e.ID] = struct{}{}
		added++
	}
	if added > 0 {
		q.signal()
	}
	return added
}

// Size returns the number of vacancies currently queued or processing.
func (q *ProcessingQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queued) + len(q.processing)
}

// Items returns a snapshot of queue membership for introspection. It never
// mutates queue state.
func (q *ProcessingQueue) Items() []ItemInfo {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]ItemInfo, 0, len(q.heap)+len(q.processing))
	for _, e := range q.heap {
		out = append(out, ItemInfo{ID: e.ID, PostedAt: e.PostedAt, State: "queued"})
	}
	for id := range q.processing {
		out = append(out, ItemInfo{ID: id, State: "processing"})
	}
	return out
}

// Run starts the worker pool and blocks until ctx is cancelled and all
// in-flight work has wound down.
func (q *ProcessingQueue) Run(ctx context.Context) {
	q.logger.Info("starting processing queue",
		"workers", q.workers,
		"max_classify", cap(q.gate),
	)

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			q.workerLoop(ctx)
		}()
	}
	q.wg.Wait()
	q.logger.Info("processing queue stopped")
}

func (q *ProcessingQueue) workerLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-q.wake:
		}

		for {
			if ctx.Err() != nil {
				return
			}
			e, ok := q.pop()
			if !ok {
				break
			}
			q.process(ctx, e)
		}
	}
}

// pop moves the earliest-posted entry from the queued set to the processing
// set. Both membership changes happen under one lock acquisition.
func (q *ProcessingQueue) pop() (Entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.heap.Len() == 0 {
		return Entry{}, false
	}
	e := heap.Pop(&q.heap).(Entry)
	delete(q.queued, e.ID)
	q.processing[e.ID] = struct{}{}

	// Other workers may still have work to drain.
	if q.heap.Len() > 0 {
		q.signal()
	}
	return e, true
}

// finish removes the ID from the processing set. Always the final step of
// processing, whatever the outcome, so no ID leaks and blocks re-enqueues.
func (q *ProcessingQueue) finish(id string) {
	q.mu.Lock()
	delete(q.processing, id)
	q.mu.Unlock()
}

func (q *ProcessingQueue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// process runs the per-vacancy pipeline under one concurrency permit:
// breaker fail-fast → existence check → validation → classification.
// Transient failures park the vacancy as skipped for the recovery scanner;
// content violations delete it; everything else reaches a terminal or
// accepted state. Errors never propagate — one vacancy's failure must not
// abort its siblings.
func (q *ProcessingQueue) process(ctx context.Context, e Entry) {
	q.gate <- struct{}{}
	defer func() {
		<-q.gate
		q.finish(e.ID)
	}()

	v, err := q.store.Load(e.ID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			q.logger.Warn("queued vacancy missing from store, dropping", "vacancy", e.ID)
		} else {
			q.logger.Error("loading vacancy", "vacancy", e.ID, "error", err)
		}
		return
	}

	// Fail fast while the breaker is open: park the vacancy without even
	// forming the outbound request.
	if q.brk.State() == breaker.Open {
		q.skip(v, "circuit breaker open")
		return
	}

	exists, err := q.checker.Exists(ctx, v.ID)
	if err != nil {
		q.skip(v, "existence check failed: "+err.Error())
		return
	}
	if !exists {
		q.transition(v, model.StatusInArchive)
		q.logger.Info("vacancy gone from source, archived", "vacancy", v.ID)
		return
	}

	if ok, reason := q.validator.Validate(*v); !ok {
		// Hard exclusion policy: the record itself has no value, remove it.
		if err := q.store.Delete(v.ID); err != nil {
			q.logger.Error("deleting invalid vacancy", "vacancy", v.ID, "error", err)
			return
		}
		q.logger.Info("vacancy violates content policy, deleted", "vacancy", v.ID, "reason", reason)
		return
	}

	var cls *model.Classification
	err = q.brk.Do(ctx, func(ctx context.Context) error {
		var cerr error
		cls, cerr = q.classifier.Classify(ctx, *v)
		return cerr
	})
	if err != nil {
		// Transport failure, timeout, or a half-open probe slot already
		// taken. All retryable within the recovery window.
		q.skip(v, err.Error())
		return
	}

	v.Classification = cls
	if cls.Accepted {
		q.transition(v, model.StatusAccepted)
		q.logger.Info("vacancy accepted", "vacancy", v.ID, "score", cls.Score)
		if q.onAccepted != nil {
			q.onAccepted(*v)
		}
	} else {
		// Application-level rejection is a normal outcome, kept for stats.
		q.transition(v, model.StatusRejected)
		q.logger.Info("vacancy rejected", "vacancy", v.ID, "score", cls.Score)
	}
}

// skip parks the vacancy as a retryable transient failure.
func (q *ProcessingQueue) skip(v *model.Vacancy, reason string) {
	q.logger.Warn("vacancy skipped", "vacancy", v.ID, "reason", reason)
	q.transition(v, model.StatusSkipped)
}

func (q *ProcessingQueue) transition(v *model.Vacancy, to model.Status) {
	if err := v.Transition(to); err != nil {
		q.logger.Error("illegal status transition", "vacancy", v.ID, "error", err)
		return
	}
	if err := q.store.Save(v); err != nil {
		q.logger.Error("persisting status transition", "vacancy", v.ID, "to", to, "error", err)
	}
}

// entryHeap is a min-heap ordered by PostedAt, earliest first.
type entryHeap []Entry

func (h entryHeap) Len() int           { return len(h) }
func (h entryHeap) Less(i, j int) bool { return h[i].PostedAt.Before(h[j].PostedAt) }
func (h entryHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *entryHeap) Push(x any) {
	*h = append(*h, x.(Entry))
}

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}
