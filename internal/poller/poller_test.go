package poller

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ademelnik/jobsieve/internal/model"
	"github.com/ademelnik/jobsieve/internal/queue"
	"github.com/ademelnik/jobsieve/internal/store"
)

type fakeFetcher struct {
	vacancies []model.Vacancy
	err       error
}

func (f *fakeFetcher) FetchVacancies(_ context.Context) ([]model.Vacancy, error) {
	return f.vacancies, f.err
}

type recordingQueue struct {
	single []string
	batch  []string
}

func (q *recordingQueue) Enqueue(id string, _ time.Time) bool {
	q.single = append(q.single, id)
	return true
}

func (q *recordingQueue) EnqueueBatch(entries []queue.Entry) int {
	for _, e := range entries {
		q.batch = append(q.batch, e.ID)
	}
	return len(entries)
}

type recordingEnrichment struct {
	ids []string
}

func (e *recordingEnrichment) Enqueue(id string) bool {
	e.ids = append(e.ids, id)
	return true
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fetchedVacancy(id string) model.Vacancy {
	return model.Vacancy{
		ID:       id,
		Title:    "Go Engineer",
		PostedAt: time.Now().Add(-time.Hour),
		Status:   model.StatusQueued,
	}
}

func TestPollPersistsAndEnqueuesNewVacancies(t *testing.T) {
	st := store.NewMemoryStore()
	q := &recordingQueue{}
	p := NewPoller(&fakeFetcher{vacancies: []model.Vacancy{fetchedVacancy("v1"), fetchedVacancy("v2")}},
		st, q, discardLogger())

	if err := p.Poll(context.Background()); err != nil {
		t.Fatalf("Poll: %v", err)
	}

	if len(q.batch) != 2 {
		t.Errorf("enqueued %v, want 2 entries", q.batch)
	}
	for _, id := range []string{"v1", "v2"} {
		v, err := st.Load(id)
		if err != nil {
			t.Fatalf("Load %s: %v", id, err)
		}
		if v.Status != model.StatusQueued {
			t.Errorf("%s status = %s, want queued", id, v.Status)
		}
		if v.CreatedAt.IsZero() {
			t.Errorf("%s CreatedAt not stamped", id)
		}
	}
}

func TestPollSkipsKnownVacancies(t *testing.T) {
	st := store.NewMemoryStore()
	known := fetchedVacancy("v1")
	known.Status = model.StatusRejected
	if err := st.Save(&known); err != nil {
		t.Fatalf("Save: %v", err)
	}

	q := &recordingQueue{}
	p := NewPoller(&fakeFetcher{vacancies: []model.Vacancy{fetchedVacancy("v1"), fetchedVacancy("v2")}},
		st, q, discardLogger())

	if err := p.Poll(context.Background()); err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if len(q.batch) != 1 || q.batch[0] != "v2" {
		t.Errorf("enqueued %v, want only v2", q.batch)
	}

	// The terminal vacancy must not be resurrected by a later fetch.
	v, _ := st.Load("v1")
	if v.Status != model.StatusRejected {
		t.Errorf("known vacancy status = %s, want rejected untouched", v.Status)
	}
}

func TestPollPropagatesFetchError(t *testing.T) {
	p := NewPoller(&fakeFetcher{err: errors.New("api down")},
		store.NewMemoryStore(), &recordingQueue{}, discardLogger())

	if err := p.Poll(context.Background()); err == nil {
		t.Fatal("expected fetch error")
	}
}

func TestResumeRoutesByStatus(t *testing.T) {
	st := store.NewMemoryStore()
	now := time.Now()
	for id, status := range map[string]model.Status{
		"queued1":   model.StatusQueued,
		"queued2":   model.StatusQueued,
		"accepted":  model.StatusAccepted,
		"skipped":   model.StatusSkipped,
		"delivered": model.StatusDelivered,
		"rejected":  model.StatusRejected,
	} {
		v := fetchedVacancy(id)
		v.Status = status
		v.CreatedAt = now
		v.TransitionedAt = now
		if status == model.StatusAccepted {
			v.Classification = &model.Classification{Accepted: true, Score: 0.9}
		}
		if err := st.Save(&v); err != nil {
			t.Fatalf("Save %s: %v", id, err)
		}
	}

	q := &recordingQueue{}
	enr := &recordingEnrichment{}
	p := NewPoller(&fakeFetcher{}, st, q, discardLogger())

	if err := p.Resume(enr); err != nil {
		t.Fatalf("Resume: %v", err)
	}

	if len(q.single) != 2 {
		t.Errorf("requeued %v, want the 2 queued vacancies", q.single)
	}
	if len(enr.ids) != 1 || enr.ids[0] != "accepted" {
		t.Errorf("resubmitted %v, want [accepted]", enr.ids)
	}
}
