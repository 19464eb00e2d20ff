package breaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned when the breaker refuses a call without reaching the
// backend. Callers treat it as a transient failure.
var ErrOpen = errors.New("circuit breaker is open")

// State is the breaker's position.
type State int

const (
	Closed State = iota // calls pass through, failures counted
	Open                // calls fail fast for the cooldown duration
	HalfOpen            // one probe call allowed
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Breaker wraps calls to a failure-prone backend. It tracks outcomes of the
// last windowSize calls; when the failure ratio exceeds the threshold it opens
// and fails fast until the cooldown elapses, then allows a single probe.
type Breaker struct {
	mu sync.Mutex

	windowSize int
	threshold  float64 // failure ratio in (0,1] that trips the breaker
	cooldown   time.Duration

	outcomes []bool // ring buffer of call results, true = failure
	next     int
	filled   bool

	state    State
	openedAt time.Time
	probing  bool   // a half-open probe is in flight
	gen      uint64 // bumped on trip and reset so stale outcomes are discarded
}

// New creates a closed breaker. It trips when the failure ratio over the last
// windowSize calls exceeds threshold, and stays open for cooldown.
func New(windowSize int, threshold float64, cooldown time.Duration) *Breaker {
	return &Breaker{
		windowSize: windowSize,
		threshold:  threshold,
		cooldown:   cooldown,
		outcomes:   make([]bool, windowSize),
	}
}

// State returns the breaker's current position, promoting Open to HalfOpen
// once the cooldown has elapsed.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.promoteLocked()
	return b.state
}

// Allow reports whether a call may proceed right now. It returns ErrOpen when
// the breaker is open, or when it is half-open and the probe slot is taken.
// A nil error in the half-open state claims the probe slot. The caller must
// follow up with Record, passing the returned generation back.
func (b *Breaker) Allow() (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.promoteLocked()

	switch b.state {
	case Open:
		return 0, ErrOpen
	case HalfOpen:
		if b.probing {
			return 0, ErrOpen
		}
		b.probing = true
		return b.gen, nil
	default:
		return b.gen, nil
	}
}

// Record feeds a call outcome back into the breaker. err == nil counts as
// success. A half-open probe result decides between Closed and Open. Outcomes
// of calls admitted before the last trip or reset carry a stale generation and
// are discarded, so a slow pre-trip success cannot masquerade as the probe.
func (b *Breaker) Record(gen uint64, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if gen != b.gen {
		return
	}

	if b.state == HalfOpen {
		b.probing = false
		if err == nil {
			b.resetLocked()
		} else {
			b.tripLocked()
		}
		return
	}

	b.outcomes[b.next] = err != nil
	b.next = (b.next + 1) % b.windowSize
	if b.next == 0 {
		b.filled = true
	}

	if b.filled && b.failureRatioLocked() > b.threshold {
		b.tripLocked()
	}
}

// Do runs fn through the breaker: fail fast when open, otherwise call and
// record the outcome.
func (b *Breaker) Do(ctx context.Context, fn func(context.Context) error) error {
	gen, err := b.Allow()
	if err != nil {
		return err
	}
	err = fn(ctx)
	b.Record(gen, err)
	return err
}

func (b *Breaker) failureRatioLocked() float64 {
	failures := 0
	for _, failed := range b.outcomes {
		if failed {
			failures++
		}
	}
	return float64(failures) / float64(b.windowSize)
}

func (b *Breaker) promoteLocked() {
	if b.state == Open && time.Since(b.openedAt) >= b.cooldown {
		b.state = HalfOpen
		b.probing = false
	}
}

func (b *Breaker) tripLocked() {
	b.state = Open
	b.openedAt = time.Now()
	b.probing = false
	b.gen++
}

func (b *Breaker) resetLocked() {
	b.state = Closed
	b.outcomes = make([]bool, b.windowSize)
	b.next = 0
	b.filled = false
	b.probing = false
	b.gen++
}
