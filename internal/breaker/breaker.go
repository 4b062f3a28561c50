// Package breaker implements a per-source circuit breaker.
package breaker

import (
	"errors"
	"sync"
	"time"
)

// State is the breaker state.
type State int

const (
	// Closed lets calls through.
	Closed State = iota
	// Open short-circuits calls until the cooldown elapses.
	Open
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	default:
		return "unknown"
	}
}

// ErrOpen is returned by callers that short-circuit on an open breaker.
var ErrOpen = errors.New("circuit breaker is open")

// Config configures a Breaker.
type Config struct {
	// FailureThreshold is the number of failures within Window that opens the breaker.
	FailureThreshold int
	// Window restarts the failure count when the previous failure is older than it.
	Window time.Duration
	// Cooldown is how long the breaker stays open.
	Cooldown time.Duration
	// OnStateChange is called outside the lock after every transition.
	OnStateChange func(from, to State)
}

// DefaultConfig returns threshold 5, window 60s, cooldown 30s.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		Window:           60 * time.Second,
		Cooldown:         30 * time.Second,
	}
}

// Breaker opens after repeated failures and closes again once the cooldown elapses.
type Breaker struct {
	mu sync.Mutex

	config Config
	now    func() time.Time

	state       State
	failures    int
	lastFailure time.Time
	openUntil   time.Time
}

// New creates a closed breaker. Zero config fields take their defaults.
func New(config Config) *Breaker {
	def := DefaultConfig()
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = def.FailureThreshold
	}
	if config.Window <= 0 {
		config.Window = def.Window
	}
	if config.Cooldown <= 0 {
		config.Cooldown = def.Cooldown
	}
	return &Breaker{config: config, now: time.Now}
}

// WithClock replaces the time source.
func (b *Breaker) WithClock(now func() time.Time) *Breaker {
	b.mu.Lock()
	b.now = now
	b.mu.Unlock()
	return b
}

// Allow reports whether a call may proceed. An open breaker whose cooldown elapsed resets to closed.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	if b.state == Closed {
		b.mu.Unlock()
		return true
	}
	if b.now().Before(b.openUntil) {
		b.mu.Unlock()
		return false
	}
	from := b.reset()
	b.mu.Unlock()
	b.notify(from, Closed)
	return true
}

// Success resets the failure count.
func (b *Breaker) Success() {
	b.mu.Lock()
	from := b.state
	b.reset()
	b.mu.Unlock()
	if from != Closed {
		b.notify(from, Closed)
	}
}

// Failure records one failed call.
func (b *Breaker) Failure() {
	b.mu.Lock()
	now := b.now()
	if b.failures > 0 && now.Sub(b.lastFailure) > b.config.Window {
		b.failures = 0
	}
	b.failures++
	b.lastFailure = now

	opened := false
	if b.state == Closed && b.failures >= b.config.FailureThreshold {
		b.state = Open
		b.openUntil = now.Add(b.config.Cooldown)
		opened = true
	}
	b.mu.Unlock()

	if opened {
		b.notify(Closed, Open)
	}
}

// State returns the current state without applying the cooldown.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Failures returns the current failure count.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// reset must be called with mu held.
func (b *Breaker) reset() State {
	from := b.state
	b.state = Closed
	b.failures = 0
	b.openUntil = time.Time{}
	return from
}

func (b *Breaker) notify(from, to State) {
	if b.config.OnStateChange != nil && from != to {
		b.config.OnStateChange(from, to)
	}
}
