package store

import (
	"sync"
	"time"

	"github.com/ademelnik/jobsieve/internal/model"
)

// MemoryStore is an in-memory VacancyStore used in check mode and tests.
// Nothing survives process exit.
type MemoryStore struct {
	mu        sync.Mutex
	vacancies map[string]*model.Vacancy
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{vacancies: make(map[string]*model.Vacancy)}
}

// clone deep-copies a vacancy. A shallow copy would still share the
// Classification pointer and its Tags slice with stored state, letting callers
// mutate the store without Save.
func clone(v *model.Vacancy) *model.Vacancy {
	cp := *v
	if v.DeliveredAt != nil {
		at := *v.DeliveredAt
		cp.DeliveredAt = &at
	}
	if v.Classification != nil {
		c := *v.Classification
		c.Tags = append([]string(nil), v.Classification.Tags...)
		if v.Classification.LastTried != nil {
			at := *v.Classification.LastTried
			c.LastTried = &at
		}
		cp.Classification = &c
	}
	return &cp
}

func (s *MemoryStore) Load(id string) (*model.Vacancy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vacancies[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return clone(v), nil
}

func (s *MemoryStore) Save(v *model.Vacancy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vacancies[v.ID] = clone(v)
	return nil
}

func (s *MemoryStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.vacancies, id)
	return nil
}

func (s *MemoryStore) FindByStatus(status model.Status) ([]*model.Vacancy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Vacancy
	for _, v := range s.vacancies {
		if v.Status == status {
			out = append(out, clone(v))
		}
	}
	return out, nil
}

func (s *MemoryStore) FindSkippedSince(cutoff time.Time) ([]*model.Vacancy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Vacancy
	for _, v := range s.vacancies {
		if v.Status == model.StatusSkipped && !v.TransitionedAt.Before(cutoff) {
			out = append(out, clone(v))
		}
	}
	return out, nil
}

func (s *MemoryStore) FindNonTerminal() ([]*model.Vacancy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Vacancy
	for _, v := range s.vacancies {
		if !model.IsTerminal(v.Status) {
			out = append(out, clone(v))
		}
	}
	return out, nil
}
