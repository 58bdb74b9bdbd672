// Package retry runs an operation under a retry policy. Only errors classified
// as transient by apperrors are retried.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/spigell/jobradar/internal/apperrors"
)

var sleep = time.Sleep

// Policy describes how often and how patiently an operation is retried.
type Policy struct {
	MaxAttempts int           `mapstructure:"max-attempts" validate:"gte=1"`
	Base        time.Duration `mapstructure:"base"`
	// Jitter adds up to this fraction of the computed delay.
	Jitter float64 `mapstructure:"jitter" validate:"gte=0,lte=1"`
	// AttemptTimeout bounds every single attempt. Zero disables it.
	AttemptTimeout time.Duration `mapstructure:"attempt-timeout"`

	// Rand returns values in [0,1). Defaults to math/rand.
	Rand func() float64 `mapstructure:"-"`
	// OnRetry is called before waiting for the next attempt.
	OnRetry func(attempt int, delay time.Duration, err error) `mapstructure:"-"`
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    3,
		Base:           time.Second,
		Jitter:         0.25,
		AttemptTimeout: 15 * time.Second,
	}
}

// Backoff returns the wait before attempt+1, where attempt counts from 1.
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := p.Base << (attempt - 1)
	if p.Jitter > 0 {
		r := p.Rand
		if r == nil {
			r = rand.Float64
		}
		delay += time.Duration(float64(delay) * p.Jitter * r())
	}
	return delay
}

// MaxBackoff is the longest wait the policy schedules between two attempts,
// without jitter.
func (p Policy) MaxBackoff() time.Duration {
	waits := p.MaxAttempts - 1
	if waits < 1 {
		waits = 1
	}
	return p.Base << (waits - 1)
}

// Hinted is implemented by errors that carry a server supplied wait, such as a
// Retry-After header.
type Hinted interface {
	RetryAfter() time.Duration
}

// Do calls fn until it succeeds, returns a non-transient error, the attempts
// are exhausted or ctx is done. A server hint longer than MaxBackoff ends the
// loop with a RATE_LIMITED error instead of blocking the caller.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context, attempt int) error) error {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}

	var last error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		err := runAttempt(ctx, p, attempt, fn)
		if err == nil {
			return nil
		}
		last = err

		if ctx.Err() != nil {
			return fmt.Errorf("attempt %d: %w", attempt, ctx.Err())
		}
		if !apperrors.Retryable(err) || attempt == p.MaxAttempts {
			break
		}

		delay := p.Backoff(attempt)
		var hinted Hinted
		if errors.As(err, &hinted) && hinted.RetryAfter() > delay {
			wait := hinted.RetryAfter()
			if wait > p.MaxBackoff() {
				cause, _ := hinted.(error)
				return apperrors.RateLimited(fmt.Sprintf("server asked to retry after %s", wait), cause)
			}
			delay = wait
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, delay, err)
		}
		if err := WaitFor(ctx, delay); err != nil {
			return fmt.Errorf("waiting for attempt %d: %w", attempt+1, err)
		}
	}

	return last
}

func runAttempt(ctx context.Context, p Policy, attempt int, fn func(context.Context, int) error) error {
	if p.AttemptTimeout <= 0 {
		return fn(ctx, attempt)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, p.AttemptTimeout)
	defer cancel()

	err := fn(attemptCtx, attempt)
	if err != nil && ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && !apperrors.Retryable(err) {
		return apperrors.Transient("attempt timed out", err)
	}
	return err
}

// WaitFor blocks for d or until ctx is done.
func WaitFor(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		sleep(d)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}
