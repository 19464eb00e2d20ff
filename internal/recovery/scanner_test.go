package recovery

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
	"github.com/ademelnik/jobsieve/internal/queue"
	"github.com/ademelnik/jobsieve/internal/store"
)

type recordingQueue struct {
	mu  sync.Mutex
	ids []string
}

func (q *recordingQueue) Enqueue(id string, _ time.Time) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ids = append(q.ids, id)
	return true
}

type passAllValidator struct{}

func (passAllValidator) Validate(_ model.Vacancy) (bool, string) { return true, "" }

type rejectAllValidator struct{}

func (rejectAllValidator) Validate(_ model.Vacancy) (bool, string) {
	return false, "policy changed"
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func skippedVacancy(id string, transitionedAt time.Time) *model.Vacancy {
	return &model.Vacancy{
		ID:             id,
		Title:          "Go Engineer",
		PostedAt:       transitionedAt.Add(-time.Hour),
		Status:         model.StatusSkipped,
		CreatedAt:      transitionedAt,
		TransitionedAt: transitionedAt,
	}
}

func newScanner(st model.VacancyStore, v model.Validator, q Enqueuer) *Scanner {
	return NewScanner(st, v, q, 48*time.Hour, time.Minute, discardLogger())
}

func TestRecoversSkippedWithinWindow(t *testing.T) {
	st := store.NewMemoryStore()
	q := &recordingQueue{}
	if err := st.Save(skippedVacancy("v1", time.Now().Add(-time.Hour))); err != nil {
		t.Fatalf("Save: %v", err)
	}

	report, err := newScanner(st, passAllValidator{}, q).RunPass()
	if err != nil {
		t.Fatalf("RunPass: %v", err)
	}
	if report.Recovered != 1 {
		t.Errorf("Recovered = %d, want 1", report.Recovered)
	}

	v, err := st.Load("v1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if v.Status != model.StatusQueued {
		t.Errorf("status = %s, want queued", v.Status)
	}
	if len(q.ids) != 1 || q.ids[0] != "v1" {
		t.Errorf("enqueued = %v, want [v1]", q.ids)
	}
}

func TestWindowBoundary(t *testing.T) {
	st := store.NewMemoryStore()
	q := &recordingQueue{}

	// One second inside the 48h window vs one second outside.
	inside := skippedVacancy("inside", time.Now().Add(-48*time.Hour).Add(time.Second))
	outside := skippedVacancy("outside", time.Now().Add(-48*time.Hour).Add(-time.Second))
	for _, v := range []*model.Vacancy{inside, outside} {
		if err := st.Save(v); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	report, err := newScanner(st, passAllValidator{}, q).RunPass()
	if err != nil {
		t.Fatalf("RunPass: %v", err)
	}
	if report.Recovered != 1 {
		t.Fatalf("Recovered = %d, want 1", report.Recovered)
	}
	if len(q.ids) != 1 || q.ids[0] != "inside" {
		t.Errorf("enqueued = %v, want [inside]", q.ids)
	}

	stale, err := st.Load("outside")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if stale.Status != model.StatusSkipped {
		t.Errorf("out-of-window vacancy status = %s, want skipped untouched", stale.Status)
	}
}

func TestNeverRequeuesJudgedIrrelevant(t *testing.T) {
	st := store.NewMemoryStore()
	q := &recordingQueue{}

	v := skippedVacancy("v1", time.Now().Add(-time.Hour))
	v.Classification = &model.Classification{Accepted: false, Score: 0.1, Reason: "not a fit"}
	if err := st.Save(v); err != nil {
		t.Fatalf("Save: %v", err)
	}

	report, err := newScanner(st, passAllValidator{}, q).RunPass()
	if err != nil {
		t.Fatalf("RunPass: %v", err)
	}
	if report.SkippedIntentionally != 1 || report.Recovered != 0 {
		t.Errorf("report = %+v, want 1 skipped-intentionally", report)
	}
	if len(q.ids) != 0 {
		t.Errorf("judged-irrelevant vacancy re-queued: %v", q.ids)
	}

	got, err := st.Load("v1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Status != model.StatusSkipped {
		t.Errorf("status = %s, want skipped untouched", got.Status)
	}
}

func TestDeletesNowInvalidVacancies(t *testing.T) {
	st := store.NewMemoryStore()
	q := &recordingQueue{}
	if err := st.Save(skippedVacancy("v1", time.Now().Add(-time.Hour))); err != nil {
		t.Fatalf("Save: %v", err)
	}

	report, err := newScanner(st, rejectAllValidator{}, q).RunPass()
	if err != nil {
		t.Fatalf("RunPass: %v", err)
	}
	if report.Deleted != 1 || report.Recovered != 0 {
		t.Errorf("report = %+v, want 1 deleted", report)
	}
	if _, err := st.Load("v1"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("Load after delete = %v, want ErrNotFound", err)
	}
}

func TestTerminalStatusesUntouched(t *testing.T) {
	st := store.NewMemoryStore()
	q := &recordingQueue{}

	now := time.Now()
	for id, status := range map[string]model.Status{
		"rejected": model.StatusRejected,
		"archived": model.StatusInArchive,
		"ua":       model.StatusUserAccepted,
		"ur":       model.StatusUserRejected,
	} {
		v := skippedVacancy(id, now.Add(-time.Hour))
		v.Status = status
		if err := st.Save(v); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	report, err := newScanner(st, passAllValidator{}, q).RunPass()
	if err != nil {
		t.Fatalf("RunPass: %v", err)
	}
	if report.Recovered != 0 || report.Deleted != 0 {
		t.Errorf("report = %+v, want all zero", report)
	}
	for _, id := range []string{"rejected", "archived", "ua", "ur"} {
		v, err := st.Load(id)
		if err != nil {
			t.Fatalf("Load %s: %v", id, err)
		}
		if model.IsTerminal(v.Status) == false {
			t.Errorf("terminal vacancy %s mutated to %s", id, v.Status)
		}
	}
}

type steadyChecker struct{}

func (steadyChecker) Exists(_ context.Context, _ string) (bool, error) { return true, nil }

// flakyClassifier fails the first N calls, then accepts.
type flakyClassifier struct {
	calls    atomic.Int32
	failures int32
}

func (c *flakyClassifier) Classify(_ context.Context, _ model.Vacancy) (*model.Classification, error) {
	if c.calls.Add(1) <= c.failures {
		return nil, errors.New("llm unreachable")
	}
	return &model.Classification{Accepted: true, Score: 0.9, Reason: "fit"}, nil
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

// Full loop against a live processing queue: two transport failures park the
// vacancy as skipped, each recovery pass resurrects it, the third
// classification lands and the vacancy reaches accepted.
func TestRequeuedVacancyReachesAcceptance(t *testing.T) {
	st := store.NewMemoryStore()
	cls := &flakyClassifier{failures: 2}
	brk := breaker.New(10, 0.5, time.Minute)
	pq := queue.New(st, steadyChecker{}, passAllValidator{}, cls, brk, 1, 1, discardLogger())
	s := newScanner(st, passAllValidator{}, pq)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		pq.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	now := time.Now()
	seed := &model.Vacancy{
		ID:             "v1",
		Title:          "Go Engineer",
		PostedAt:       now.Add(-time.Hour),
		Status:         model.StatusQueued,
		CreatedAt:      now,
		TransitionedAt: now,
	}
	if err := st.Save(seed); err != nil {
		t.Fatalf("Save: %v", err)
	}
	pq.Enqueue(seed.ID, seed.PostedAt)

	for pass := 1; pass <= 2; pass++ {
		waitFor(t, "vacancy to be skipped", func() bool {
			if pq.Size() != 0 {
				return false
			}
			v, err := st.Load("v1")
			return err == nil && v.Status == model.StatusSkipped
		})

		report, err := s.RunPass()
		if err != nil {
			t.Fatalf("RunPass %d: %v", pass, err)
		}
		if report.Recovered != 1 {
			t.Fatalf("pass %d Recovered = %d, want 1", pass, report.Recovered)
		}
	}

	waitFor(t, "vacancy to be accepted", func() bool {
		v, err := st.Load("v1")
		return err == nil && v.Status == model.StatusAccepted
	})
	if got := cls.calls.Load(); got != 3 {
		t.Errorf("classifier calls = %d, want 3", got)
	}
}

type failingStore struct {
	*store.MemoryStore
}

func (s *failingStore) FindSkippedSince(_ time.Time) ([]*model.Vacancy, error) {
	return nil, errors.New("store unavailable")
}

func TestStoreFailureSurfacesError(t *testing.T) {
	st := &failingStore{store.NewMemoryStore()}
	q := &recordingQueue{}

	_, err := newScanner(st, passAllValidator{}, q).RunPass()
	if err == nil {
		t.Fatal("expected error when the store is unavailable")
	}
}
