package queue

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ademelnik/jobsieve/internal/breaker"
	"github.com/ademelnik/jobsieve/internal/model"
	"github.com/ademelnik/jobsieve/internal/store"
)

// --- Fakes ---

type fakeChecker struct {
	exists bool
	err    error
	calls  atomic.Int32
}

func (c *fakeChecker) Exists(_ context.Context, _ string) (bool, error) {
	c.calls.Add(1)
	return c.exists, c.err
}

type fakeValidator struct {
	ok     bool
	reason string
}

func (v *fakeValidator) Validate(_ model.Vacancy) (bool, string) { return v.ok, v.reason }

type fakeClassifier struct {
	mu      sync.Mutex
	cls     *model.Classification
	err     error
	calls   atomic.Int32
	order   []string
	release chan struct{} // if non-nil, Classify blocks until closed
}

func (c *fakeClassifier) Classify(_ context.Context, v model.Vacancy) (*model.Classification, error) {
	c.calls.Add(1)
	c.mu.Lock()
	c.order = append(c.order, v.ID)
	c.mu.Unlock()
	if c.release != nil {
		<-c.release
	}
	if c.err != nil {
		return nil, c.err
	}
	cp := *c.cls
	return &cp, nil
}

func (c *fakeClassifier) classified() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.order...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func acceptedCls(score float64) *model.Classification {
	return &model.Classification{
		Accepted:   true,
		Score:      score,
		Reason:     "fit",
		Enrichment: model.EnrichmentNotAttempted,
	}
}

func seedVacancy(t *testing.T, st model.VacancyStore, id string, postedAt time.Time) {
	t.Helper()
	now := time.Now()
	err := st.Save(&model.Vacancy{
		ID:             id,
		Title:          "Go Engineer",
		Description:    "pipelines",
		PostedAt:       postedAt,
		Status:         model.StatusQueued,
		CreatedAt:      now,
		TransitionedAt: now,
	})
	if err != nil {
		t.Fatalf("seeding vacancy %s: %v", id, err)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func startQueue(t *testing.T, q *ProcessingQueue) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		q.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func newBreaker() *breaker.Breaker {
	return breaker.New(10, 0.5, time.Minute)
}

// --- Tests ---

func TestEnqueueIdempotent(t *testing.T) {
	q := New(store.NewMemoryStore(), &fakeChecker{exists: true}, &fakeValidator{ok: true},
		&fakeClassifier{cls: acceptedCls(0.9)}, newBreaker(), 1, 1, discardLogger())

	now := time.Now()
	if !q.Enqueue("v1", now) {
		t.Fatal("first enqueue should add")
	}
	if q.Enqueue("v1", now) {
		t.Error("duplicate enqueue should be a no-op")
	}
	if q.Size() != 1 {
		t.Errorf("Size() = %d, want 1", q.Size())
	}
}

func TestEnqueueBatchReportsAdded(t *testing.T) {
	q := New(store.NewMemoryStore(), &fakeChecker{exists: true}, &fakeValidator{ok: true},
		&fakeClassifier{cls: acceptedCls(0.9)}, newBreaker(), 1, 1, discardLogger())

	now := time.Now()
	q.Enqueue("v1", now)

	added := q.EnqueueBatch([]Entry{
		{ID: "v1", PostedAt: now}, // already queued
		{ID: "v2", PostedAt: now},
		{ID: "v3", PostedAt: now},
	})
	if added != 2 {
		t.Errorf("EnqueueBatch added %d, want 2", added)
	}
}

func TestEnqueueRefusedWhileProcessing(t *testing.T) {
	st := store.NewMemoryStore()
	seedVacancy(t, st, "v1", time.Now())

	cls := &fakeClassifier{cls: acceptedCls(0.9), release: make(chan struct{})}
	q := New(st, &fakeChecker{exists: true}, &fakeValidator{ok: true}, cls, newBreaker(), 1, 1, discardLogger())
	startQueue(t, q)

	q.Enqueue("v1", time.Now())
	waitFor(t, "classification to start", func() bool { return cls.calls.Load() == 1 })

	// v1 is mid-classification: it is in the processing set, not the queued set.
	if q.Enqueue("v1", time.Now()) {
		t.Error("enqueue must be refused while the vacancy is processing")
	}

	close(cls.release)
	waitFor(t, "queue to drain", func() bool { return q.Size() == 0 })
}

func TestProcessesOldestFirst(t *testing.T) {
	st := store.NewMemoryStore()
	t0 := time.Now().Add(-3 * time.Hour)
	for i, id := range []string{"newest", "middle", "oldest"} {
		seedVacancy(t, st, id, t0.Add(time.Duration(2-i)*time.Hour))
	}

	cls := &fakeClassifier{cls: acceptedCls(0.9)}
	q := New(st, &fakeChecker{exists: true}, &fakeValidator{ok: true}, cls, newBreaker(), 1, 1, discardLogger())

	// Enqueue everything before starting workers so ordering is deterministic.
	q.EnqueueBatch([]Entry{
		{ID: "newest", PostedAt: t0.Add(2 * time.Hour)},
		{ID: "middle", PostedAt: t0.Add(time.Hour)},
		{ID: "oldest", PostedAt: t0},
	})
	startQueue(t, q)
	waitFor(t, "queue to drain", func() bool { return q.Size() == 0 })

	got := cls.classified()
	want := []string{"oldest", "middle", "newest"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("classification order = %v, want %v", got, want)
		}
	}
}

func TestAcceptedEndToEnd(t *testing.T) {
	st := store.NewMemoryStore()
	posted := time.Now().Add(-time.Hour)
	seedVacancy(t, st, "v1", posted)

	var acceptedIDs []string
	var mu sync.Mutex

	q := New(st, &fakeChecker{exists: true}, &fakeValidator{ok: true},
		&fakeClassifier{cls: acceptedCls(0.85)}, newBreaker(), 2, 2, discardLogger())
	q.OnAccepted(func(v model.Vacancy) {
		mu.Lock()
		acceptedIDs = append(acceptedIDs, v.ID)
		mu.Unlock()
	})
	startQueue(t, q)

	q.Enqueue("v1", posted)
	waitFor(t, "queue to drain", func() bool { return q.Size() == 0 })

	v, err := st.Load("v1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if v.Status != model.StatusAccepted {
		t.Errorf("status = %s, want accepted", v.Status)
	}
	if v.Classification == nil || v.Classification.Score != 0.85 {
		t.Errorf("classification not persisted: %+v", v.Classification)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(acceptedIDs) != 1 || acceptedIDs[0] != "v1" {
		t.Errorf("accepted hook fired %v, want exactly [v1]", acceptedIDs)
	}
}

func TestRejectedIsTerminalAndRetained(t *testing.T) {
	st := store.NewMemoryStore()
	seedVacancy(t, st, "v1", time.Now())

	cls := &fakeClassifier{cls: &model.Classification{Accepted: false, Score: 0.1, Reason: "not a fit"}}
	q := New(st, &fakeChecker{exists: true}, &fakeValidator{ok: true}, cls, newBreaker(), 1, 1, discardLogger())
	startQueue(t, q)

	q.Enqueue("v1", time.Now())
	waitFor(t, "queue to drain", func() bool { return q.Size() == 0 })

	v, err := st.Load("v1")
	if err != nil {
		t.Fatalf("rejected vacancy must be retained: %v", err)
	}
	if v.Status != model.StatusRejected {
		t.Errorf("status = %s, want rejected", v.Status)
	}
	if v.Classification == nil || v.Classification.Accepted {
		t.Errorf("rejection verdict not persisted: %+v", v.Classification)
	}
}

func TestGoneVacancyArchived(t *testing.T) {
	st := store.NewMemoryStore()
	seedVacancy(t, st, "v1", time.Now())

	cls := &fakeClassifier{cls: acceptedCls(0.9)}
	q := New(st, &fakeChecker{exists: false}, &fakeValidator{ok: true}, cls, newBreaker(), 1, 1, discardLogger())
	startQueue(t, q)

	q.Enqueue("v1", time.Now())
	waitFor(t, "queue to drain", func() bool { return q.Size() == 0 })

	v, err := st.Load("v1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if v.Status != model.StatusInArchive {
		t.Errorf("status = %s, want in_archive", v.Status)
	}
	if cls.calls.Load() != 0 {
		t.Error("classifier must not run for a vacancy that is gone")
	}
}

func TestInvalidVacancyDeleted(t *testing.T) {
	st := store.NewMemoryStore()
	seedVacancy(t, st, "v1", time.Now())

	cls := &fakeClassifier{cls: acceptedCls(0.9)}
	q := New(st, &fakeChecker{exists: true}, &fakeValidator{ok: false, reason: "excluded keyword"},
		cls, newBreaker(), 1, 1, discardLogger())
	startQueue(t, q)

	q.Enqueue("v1", time.Now())
	waitFor(t, "queue to drain", func() bool { return q.Size() == 0 })

	if _, err := st.Load("v1"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("invalid vacancy should be deleted, Load = %v", err)
	}
	if cls.calls.Load() != 0 {
		t.Error("classifier must not run for an invalid vacancy")
	}
}

func TestTransportFailureSkips(t *testing.T) {
	st := store.NewMemoryStore()
	seedVacancy(t, st, "v1", time.Now())

	cls := &fakeClassifier{err: errors.New("connection reset")}
	q := New(st, &fakeChecker{exists: true}, &fakeValidator{ok: true}, cls, newBreaker(), 1, 1, discardLogger())
	startQueue(t, q)

	q.Enqueue("v1", time.Now())
	waitFor(t, "queue to drain", func() bool { return q.Size() == 0 })

	v, err := st.Load("v1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if v.Status != model.StatusSkipped {
		t.Errorf("status = %s, want skipped", v.Status)
	}
	if v.Classification != nil {
		t.Error("transport failure must not persist a classification")
	}
}

func TestBreakerOpenFailsFastWithoutClassifying(t *testing.T) {
	st := store.NewMemoryStore()
	seedVacancy(t, st, "v1", time.Now())

	brk := breaker.New(2, 0.4, time.Minute)
	for i := 0; i < 2; i++ {
		gen, err := brk.Allow()
		if err != nil {
			t.Fatalf("Allow: %v", err)
		}
		brk.Record(gen, errors.New("down"))
	}
	if brk.State() != breaker.Open {
		t.Fatal("breaker should be open")
	}

	cls := &fakeClassifier{cls: acceptedCls(0.9)}
	checker := &fakeChecker{exists: true}
	q := New(st, checker, &fakeValidator{ok: true}, cls, brk, 1, 1, discardLogger())
	startQueue(t, q)

	q.Enqueue("v1", time.Now())
	waitFor(t, "queue to drain", func() bool { return q.Size() == 0 })

	v, err := st.Load("v1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if v.Status != model.StatusSkipped {
		t.Errorf("status = %s, want skipped", v.Status)
	}
	if cls.calls.Load() != 0 {
		t.Error("classifier invoked while breaker open")
	}
	if checker.calls.Load() != 0 {
		t.Error("no outbound call should be formed while breaker open")
	}
}

func TestItemsSnapshot(t *testing.T) {
	q := New(store.NewMemoryStore(), &fakeChecker{exists: true}, &fakeValidator{ok: true},
		&fakeClassifier{cls: acceptedCls(0.9)}, newBreaker(), 1, 1, discardLogger())

	now := time.Now()
	q.Enqueue("v1", now)
	q.Enqueue("v2", now.Add(time.Minute))

	items := q.Items()
	if len(items) != 2 {
		t.Fatalf("Items() returned %d, want 2", len(items))
	}
	for _, it := range items {
		if it.State != "queued" {
			t.Errorf("item %s state = %s, want queued", it.ID, it.State)
		}
	}
}
