// Package circuitbreaker guards optional backing services (the Redis snapshot
// cache) so that repeated failures short-circuit to the fallback path
// instead of paying a timeout on every request.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State represents the current state of the breaker.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

// String returns the string representation of the state.
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

// ErrOpen is returned while the breaker rejects calls.
var ErrOpen = errors.New("circuit breaker is open")

// Settings configures a Breaker.
type Settings struct {
	Name string

	// FailureThreshold consecutive failures open the circuit.
	FailureThreshold int

	// Cooldown is how long the circuit stays open before a probe call.
	Cooldown time.Duration

	// IsFailure classifies errors, nil counts every error.
	IsFailure func(error) bool

	// OnStateChange is invoked with the lock released.
	OnStateChange func(name string, from, to State)
}

// DefaultSettings returns 5 failures / 30s cooldown.
func DefaultSettings(name string) Settings {
	return Settings{
		Name:             name,
		FailureThreshold: 5,
		Cooldown:         30 * time.Second,
	}
}

// Breaker is a consecutive-failure circuit breaker with a single
// half-open probe.
type Breaker struct {
	settings Settings
	now      func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool
}

// New creates a Breaker.
func New(settings Settings) *Breaker {
	if settings.FailureThreshold <= 0 {
		settings.FailureThreshold = 5
	}
	if settings.Cooldown <= 0 {
		settings.Cooldown = 30 * time.Second
	}
	return &Breaker{settings: settings, now: time.Now}
}

// Execute runs fn if the circuit allows it and records the outcome.
func (b *Breaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := b.allow(); err != nil {
		return err
	}
	err := fn(ctx)
	b.record(err)
	return err
}

// ExecuteWithFallback calls fallback when the circuit is open or fn fails.
func (b *Breaker) ExecuteWithFallback(ctx context.Context, fn func(context.Context) error, fallback func(error) error) error {
	if err := b.Execute(ctx, fn); err != nil {
		return fallback(err)
	}
	return nil
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Name returns the breaker name.
func (b *Breaker) Name() string { return b.settings.Name }

func (b *Breaker) allow() error {
	b.mu.Lock()
	var from State
	transition := false
	defer func() {
		b.mu.Unlock()
		if transition {
			b.notify(from, StateHalfOpen)
		}
	}()

	switch b.state {
	case StateClosed:
		return nil
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.settings.Cooldown {
			return ErrOpen
		}
		from, transition = b.state, true
		b.state = StateHalfOpen
		b.probing = true
		return nil
	default:
		if b.probing {
			return ErrOpen
		}
		b.probing = true
		return nil
	}
}

func (b *Breaker) record(err error) {
	failed := err != nil
	if failed && b.settings.IsFailure != nil {
		failed = b.settings.IsFailure(err)
	}

	b.mu.Lock()
	from := b.state
	switch {
	case !failed:
		b.failures = 0
		b.state = StateClosed
	case b.state == StateHalfOpen:
		b.state = StateOpen
		b.openedAt = b.now()
	default:
		b.failures++
		if b.failures >= b.settings.FailureThreshold {
			b.state = StateOpen
			b.openedAt = b.now()
		}
	}
	b.probing = false
	to := b.state
	b.mu.Unlock()

	if from != to {
		b.notify(from, to)
	}
}

func (b *Breaker) notify(from, to State) {
	if b.settings.OnStateChange != nil {
		b.settings.OnStateChange(b.settings.Name, from, to)
	}
}
