// Package breaker implements a sliding-window circuit breaker used to
// short-circuit calls to failing external dependencies.
package breaker

import (
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned when the circuit is open and calls are short-circuited.
var ErrOpen = errors.New("circuit breaker is open")

// State represents the circuit breaker state.
type State int

const (
	// StateClosed is the normal state where requests are allowed.
	StateClosed State = iota
	// StateOpen is when the circuit is tripped and requests are blocked.
	StateOpen
	// StateHalfOpen is when the circuit is testing if the dependency recovered.
	StateHalfOpen
)

// String returns a string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

type outcome struct {
	at time.Time
	ok bool
}

// Breaker trips when the failure rate over a sliding window crosses a
// threshold, then short-circuits until a cool-off elapses. The first call
// after cool-off probes the dependency (half-open); its outcome decides
// whether the circuit closes again.
type Breaker struct {
	name       string
	window     time.Duration
	threshold  float64
	minSamples int
	cooloff    time.Duration

	mu       sync.Mutex
	state    State
	outcomes []outcome
	openedAt time.Time

	now func() time.Time
}

// Option configures a Breaker.
type Option func(*Breaker)

// WithWindow sets the sliding window length.
func WithWindow(d time.Duration) Option {
	return func(b *Breaker) { b.window = d }
}

// WithThreshold sets the failure-rate threshold in (0,1].
func WithThreshold(rate float64) Option {
	return func(b *Breaker) { b.threshold = rate }
}

// WithMinSamples sets how many outcomes the window needs before the rate
// is considered meaningful.
func WithMinSamples(n int) Option {
	return func(b *Breaker) { b.minSamples = n }
}

// WithCooloff sets how long the circuit stays open before probing.
func WithCooloff(d time.Duration) Option {
	return func(b *Breaker) { b.cooloff = d }
}

// withClock overrides the time source for tests.
func withClock(now func() time.Time) Option {
	return func(b *Breaker) { b.now = now }
}

// New creates a breaker. Defaults: 30s window, 0.5 failure rate,
// 5 minimum samples, 15s cool-off.
func New(name string, opts ...Option) *Breaker {
	b := &Breaker{
		name:       name,
		window:     30 * time.Second,
		threshold:  0.5,
		minSamples: 5,
		cooloff:    15 * time.Second,
		state:      StateClosed,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name returns the breaker name.
func (b *Breaker) Name() string { return b.name }

// State returns the current state, accounting for cool-off expiry.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentState()
}

// currentState must be called with the lock held.
func (b *Breaker) currentState() State {
	if b.state == StateOpen && b.now().Sub(b.openedAt) > b.cooloff {
		return StateHalfOpen
	}
	return b.state
}

// Allow reports whether a call may proceed.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentState() != StateOpen
}

// Record registers a call outcome and re-evaluates the window.
func (b *Breaker) Record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	state := b.currentState()

	if state == StateHalfOpen {
		if err == nil {
			b.state = StateClosed
			b.outcomes = b.outcomes[:0]
		} else {
			b.state = StateOpen
			b.openedAt = now
		}
		return
	}

	b.outcomes = append(b.outcomes, outcome{at: now, ok: err == nil})
	b.trim(now)

	if len(b.outcomes) < b.minSamples {
		return
	}
	failures := 0
	for _, o := range b.outcomes {
		if !o.ok {
			failures++
		}
	}
	if float64(failures)/float64(len(b.outcomes)) >= b.threshold {
		b.state = StateOpen
		b.openedAt = now
		b.outcomes = b.outcomes[:0]
	}
}

// trim drops outcomes older than the window. Must be called with the lock held.
func (b *Breaker) trim(now time.Time) {
	cutoff := now.Add(-b.window)
	i := 0
	for ; i < len(b.outcomes); i++ {
		if b.outcomes[i].at.After(cutoff) {
			break
		}
	}
	if i > 0 {
		b.outcomes = append(b.outcomes[:0], b.outcomes[i:]...)
	}
}

// Execute runs fn through the breaker, returning ErrOpen without calling fn
// when the circuit is open.
func (b *Breaker) Execute(fn func() error) error {
	if !b.Allow() {
		return ErrOpen
	}
	err := fn()
	b.Record(err)
	return err
}
