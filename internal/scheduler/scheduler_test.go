package scheduler

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ademelnik/jobsieve/internal/model"
	"github.com/ademelnik/jobsieve/internal/poller"
	"github.com/ademelnik/jobsieve/internal/queue"
	"github.com/ademelnik/jobsieve/internal/store"
)

type countingFetcher struct {
	calls atomic.Int32
}

func (f *countingFetcher) FetchVacancies(_ context.Context) ([]model.Vacancy, error) {
	f.calls.Add(1)
	return nil, nil
}

type nopQueue struct{}

func (nopQueue) Enqueue(_ string, _ time.Time) bool        { return true }
func (nopQueue) EnqueueBatch(_ []queue.Entry) int          { return 0 }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunPollsImmediatelyThenOnInterval(t *testing.T) {
	f := &countingFetcher{}
	p := poller.NewPoller(f, store.NewMemoryStore(), nopQueue{}, discardLogger())
	s := NewScheduler(p, 20*time.Millisecond, discardLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 70*time.Millisecond)
	defer cancel()

	if err := s.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// One immediate poll plus at least two ticks.
	if got := f.calls.Load(); got < 3 {
		t.Errorf("fetcher called %d times, want >= 3", got)
	}
}

func TestRunReturnsNilOnCancel(t *testing.T) {
	f := &countingFetcher{}
	p := poller.NewPoller(f, store.NewMemoryStore(), nopQueue{}, discardLogger())
	s := NewScheduler(p, time.Hour, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.Run(ctx); err != nil {
		t.Fatalf("Run after cancel = %v, want nil", err)
	}
}
