package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/ademelnik/jobsieve/internal/model"
)

// ErrRateLimited is returned when the bucket stays empty for the whole wait
// timeout. Callers generally treat it as a transient failure.
var ErrRateLimited = errors.New("rate limit exceeded")

// TokenBucket throttles outbound calls to a rate-limited external surface.
// It refills at a sustained rate and allows bursts up to its capacity.
type TokenBucket struct {
	mu       sync.Mutex
	rate     float64 // tokens per second
	capacity float64 // burst ceiling, >= rate
	tokens   float64
	used     int64 // tokens consumed since creation or last Reset
	last     time.Time

	waitTimeout time.Duration // max time Consume blocks waiting for refill
}

// NewTokenBucket creates a bucket that refills at rate tokens/second with the
// given burst capacity. The bucket starts full. waitTimeout bounds how long
// Consume waits for a token before giving up.
func NewTokenBucket(rate float64, capacity float64, waitTimeout time.Duration) *TokenBucket {
	if capacity < rate {
		capacity = rate
	}
	return &TokenBucket{
		rate:        rate,
		capacity:    capacity,
		tokens:      capacity,
		last:        time.Now(),
		waitTimeout: waitTimeout,
	}
}

// Consume takes one token, waiting up to the configured timeout for a refill.
// It returns ErrRateLimited if no token became available in time, or the
// context error if ctx was cancelled while waiting.
func (b *TokenBucket) Consume(ctx context.Context) error {
	deadline := time.Now().Add(b.waitTimeout)

	for {
		b.mu.Lock()
		b.refillLocked()
		if b.tokens >= 1.0 {
			b.tokens -= 1.0
			b.used++
			b.mu.Unlock()
			return nil
		}
		// Time until one full token accrues.
		wait := time.Duration((1.0 - b.tokens) / b.rate * float64(time.Second))
		b.mu.Unlock()

		if time.Now().Add(wait).After(deadline) {
			return ErrRateLimited
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("rate limiter wait: %w", ctx.Err())
		case <-time.After(wait):
		}
	}
}

// refillLocked credits tokens for the time elapsed since the last refill.
// Caller must hold mu.
func (b *TokenBucket) refillLocked() {
	now := time.Now()
	elapsed := now.Sub(b.last).Seconds()
	if elapsed > 0 {
		b.tokens = math.Min(b.capacity, b.tokens+elapsed*b.rate)
		b.last = now
	}
}

// Available returns the number of whole tokens currently in the bucket.
func (b *TokenBucket) Available() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refillLocked()
	return int(b.tokens)
}

// Used returns the number of tokens consumed since creation or the last Reset.
func (b *TokenBucket) Used() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.used
}

// Reset refills the bucket to capacity and zeroes the usage counter.
func (b *TokenBucket) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokens = b.capacity
	b.used = 0
	b.last = time.Now()
}

// LimitedFetcher is a decorator that takes a token before delegating to the
// wrapped VacancyFetcher. All callers of the same API should share one bucket.
type LimitedFetcher struct {
	inner  model.VacancyFetcher
	bucket *TokenBucket
}

// NewLimitedFetcher wraps a VacancyFetcher with token-bucket rate limiting.
func NewLimitedFetcher(inner model.VacancyFetcher, bucket *TokenBucket) *LimitedFetcher {
	return &LimitedFetcher{inner: inner, bucket: bucket}
}

// FetchVacancies consumes a token, then delegates to the wrapped fetcher.
func (f *LimitedFetcher) FetchVacancies(ctx context.Context) ([]model.Vacancy, error) {
	if err := f.bucket.Consume(ctx); err != nil {
		return nil, err
	}
	return f.inner.FetchVacancies(ctx)
}

// LimitedChecker wraps an ExistenceChecker so per-vacancy existence checks
// draw from the same budget as search requests. This is the chattiest path:
// one call per queued vacancy.
type LimitedChecker struct {
	inner  model.ExistenceChecker
	bucket *TokenBucket
}

// NewLimitedChecker wraps an ExistenceChecker with token-bucket rate limiting.
func NewLimitedChecker(inner model.ExistenceChecker, bucket *TokenBucket) *LimitedChecker {
	return &LimitedChecker{inner: inner, bucket: bucket}
}

// Exists consumes a token, then delegates to the wrapped checker.
func (c *LimitedChecker) Exists(ctx context.Context, id string) (bool, error) {
	if err := c.bucket.Consume(ctx); err != nil {
		return false, err
	}
	return c.inner.Exists(ctx, id)
}
