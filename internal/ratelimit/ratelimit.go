// Package ratelimit limits requests per provider credential over a sliding
// window: no span of Window.Size ever holds more than MaxRequests grants.
package ratelimit

import (
	"sync"
	"time"

	"github.com/spigell/jobradar/internal/clock"
)

const DefaultWindow = time.Hour

// Window configures the quota of a single credential.
type Window struct {
	MaxRequests int           `mapstructure:"max-requests" validate:"gte=0"`
	Size        time.Duration `mapstructure:"size"`
}

// Config maps credential ids to their windows. Credentials without an entry
// use Default.
type Config struct {
	Default     Window            `mapstructure:"default"`
	Credentials map[string]Window `mapstructure:"credentials"`
}

// Decision is the outcome of TryAcquire. A denial is a normal result, not an error.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// State is a snapshot of a credential's current window. WindowStart is the
// oldest grant still inside it.
type State struct {
	WindowStart  time.Time
	RequestCount int
	WindowSize   time.Duration
	MaxRequests  int
}

type bucket struct {
	// granted holds the grant times inside the current window, oldest first.
	granted []time.Time
	// blockedUntil is set when the provider answered 429.
	blockedUntil time.Time
}

type Limiter struct {
	mu      sync.Mutex
	cfg     Config
	clock   clock.Clock
	buckets map[string]*bucket
}

func New(cfg Config, c clock.Clock) *Limiter {
	if cfg.Default.Size <= 0 {
		cfg.Default.Size = DefaultWindow
	}
	return &Limiter{
		cfg:     cfg,
		clock:   clock.OrSystem(c),
		buckets: make(map[string]*bucket),
	}
}

func (l *Limiter) window(credentialID string) Window {
	w, ok := l.cfg.Credentials[credentialID]
	if !ok {
		return l.cfg.Default
	}
	if w.Size <= 0 {
		w.Size = l.cfg.Default.Size
	}
	return w
}

// current returns the bucket for the credential with grants older than the
// window dropped. Callers hold l.mu.
func (l *Limiter) current(credentialID string, w Window, now time.Time) *bucket {
	b, ok := l.buckets[credentialID]
	if !ok {
		b = &bucket{}
		l.buckets[credentialID] = b
		return b
	}
	expired := 0
	for expired < len(b.granted) && now.Sub(b.granted[expired]) >= w.Size {
		expired++
	}
	b.granted = b.granted[expired:]
	return b
}

// TryAcquire consumes one request from the credential's window if available.
// A zero MaxRequests means the credential is unlimited.
func (l *Limiter) TryAcquire(credentialID string) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	w := l.window(credentialID)
	b := l.current(credentialID, w, now)

	if now.Before(b.blockedUntil) {
		return Decision{RetryAfter: b.blockedUntil.Sub(now)}
	}

	if w.MaxRequests <= 0 {
		return Decision{Allowed: true}
	}
	if len(b.granted) >= w.MaxRequests {
		// The slot frees up when the oldest grant leaves the window.
		return Decision{RetryAfter: b.granted[0].Add(w.Size).Sub(now)}
	}

	b.granted = append(b.granted, now)
	return Decision{Allowed: true}
}

// Penalize records a provider-side throttle. No request is allowed for the
// credential until retryAfter has passed. A non-positive retryAfter blocks it
// for a whole window.
func (l *Limiter) Penalize(credentialID string, retryAfter time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	w := l.window(credentialID)
	b := l.current(credentialID, w, now)

	if retryAfter <= 0 {
		retryAfter = w.Size
	}
	if until := now.Add(retryAfter); until.After(b.blockedUntil) {
		b.blockedUntil = until
	}
}

func (l *Limiter) State(credentialID string) State {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	w := l.window(credentialID)
	b := l.current(credentialID, w, now)

	start := now
	if len(b.granted) > 0 {
		start = b.granted[0]
	}
	return State{
		WindowStart:  start,
		RequestCount: len(b.granted),
		WindowSize:   w.Size,
		MaxRequests:  w.MaxRequests,
	}
}
