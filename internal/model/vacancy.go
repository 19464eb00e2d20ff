package model

import (
	"context"
	"time"
)

// Vacancy is the unified representation of a job posting flowing through the
// pipeline. The store owns the durable record; the queue holds only the ID and
// the priority key.
type Vacancy struct {
	ID          string    // unique per source
	Title       string    // job title
	Employer    string    // company name
	Location    string    // location string
	URL         string    // direct link to the posting
	Description string    // full text, input to the classifier
	PostedAt    time.Time // publication time; earlier = higher priority
	Status      Status    // current lifecycle state

	CreatedAt      time.Time  // first time we stored the vacancy
	TransitionedAt time.Time  // last status change (our clock)
	DeliveredAt    *time.Time // set when the notifier accepted it

	Classification *Classification // nil until the classifier has run
}

// VacancyFetcher lists fresh vacancies from the source API.
type VacancyFetcher interface {
	FetchVacancies(ctx context.Context) ([]Vacancy, error)
}

// ExistenceChecker reports whether a vacancy is still published at the source.
// A clean "gone" answer is (false, nil); transport problems are errors.
type ExistenceChecker interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// Validator applies the content exclusion policy. Invalid vacancies are
// deleted outright, so Validate must never be probabilistic.
type Validator interface {
	Validate(v Vacancy) (ok bool, reason string)
}

// Classifier judges whether a vacancy is worth the user's attention.
type Classifier interface {
	Classify(ctx context.Context, v Vacancy) (*Classification, error)
}

// LetterGenerator produces a cover letter for an accepted vacancy.
// Best effort: failures here never block delivery.
type LetterGenerator interface {
	Generate(ctx context.Context, v Vacancy) (string, error)
}

// VacancyStore is the single source of truth for persisted vacancy state.
type VacancyStore interface {
	Load(id string) (*Vacancy, error)
	Save(v *Vacancy) error
	Delete(id string) error
	FindByStatus(status Status) ([]*Vacancy, error)
	// FindSkippedSince returns SKIPPED vacancies whose last transition is at
	// or after cutoff, i.e. the recovery-eligible set.
	FindSkippedSince(cutoff time.Time) ([]*Vacancy, error)
	// FindNonTerminal returns every vacancy that can still make progress,
	// used to reload the queue on startup.
	FindNonTerminal() ([]*Vacancy, error)
}

// Notifier delivers an accepted vacancy downstream. letter is empty when the
// secondary enrichment did not produce one.
type Notifier interface {
	Notify(v Vacancy, c Classification, letter string) error
}
