package model

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by VacancyStore.Load for an unknown ID.
var ErrNotFound = errors.New("vacancy not found")

// HTTPError wraps an HTTP status code so callers can distinguish a 404
// (vacancy gone) from transport trouble, and retry logic can honor Retry-After.
type HTTPError struct {
	StatusCode int
	RetryAfter time.Duration // from Retry-After header, zero if absent
	Err        error
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("HTTP %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}
