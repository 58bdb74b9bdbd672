// Package clock abstracts time so rate windows and cache expiry can be driven by tests.
package clock

import (
	"sync"
	"time"
)

// Clock is the time source shared by the limiter, caches and the notification gate.
type Clock interface {
	Now() time.Time
}

// System reads the process clock. Values returned by time.Now carry a
// monotonic reading, so durations computed with Sub are not affected by wall
// clock adjustments.
type System struct{}

func (System) Now() time.Time { return time.Now() }

// Fake is a manually advanced clock.
type Fake struct {
	mu  sync.Mutex
	now time.Time
}

func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Advance moves the clock forward by d.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

// OrSystem returns c, or the system clock when c is nil.
func OrSystem(c Clock) Clock {
	if c == nil {
		return System{}
	}
	return c
}
