package httpclient

import (
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spigell/jobradar/internal/apperrors"
	"github.com/spigell/jobradar/internal/clock"
	"github.com/spigell/jobradar/internal/ratelimit"
	"github.com/spigell/jobradar/internal/retry"
)

func fastPolicy() retry.Policy {
	return retry.Policy{MaxAttempts: 3, Base: time.Millisecond}
}

func TestDoRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		if r.URL.Query().Get("what") != "go" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := New(nil, fastPolicy(), nil)
	resp, err := c.Do(context.Background(), Request{URL: srv.URL, Query: map[string][]string{"what": {"go"}}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(resp.Body) != "[]" || hits.Load() != 3 {
		t.Fatalf("unexpected response %q after %d hits", resp.Body, hits.Load())
	}
}

func TestDoClassifiesClientErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		expect apperrors.ErrorType
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, expect: apperrors.TypeAuth},
		{name: "forbidden", status: http.StatusForbidden, expect: apperrors.TypeAuth},
		{name: "bad request", status: http.StatusBadRequest, expect: apperrors.TypeFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				hits.Add(1)
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			_, err := New(nil, fastPolicy(), nil).Do(context.Background(), Request{URL: srv.URL})
			if got := apperrors.TypeOf(err); got != tt.expect {
				t.Fatalf("expected %s, got %s (%v)", tt.expect, got, err)
			}
			if hits.Load() != 1 {
				t.Fatalf("4xx must not be retried, got %d hits", hits.Load())
			}
		})
	}
}

func TestTooManyRequestsFeedsLimiter(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	fake := clock.NewFake(time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC))
	limiter := ratelimit.New(ratelimit.Config{Default: ratelimit.Window{MaxRequests: 100, Size: time.Hour}}, fake)

	_, err := New(limiter, fastPolicy(), nil).Do(context.Background(), Request{URL: srv.URL, Credential: "adzuna"})
	if !apperrors.Is(err, apperrors.TypeRateLimited) {
		t.Fatalf("expected rate limited error after 429, got %v", err)
	}
	if !IsDenied(err) {
		t.Fatalf("expected IsDenied to detect limiter denial")
	}
	if hits.Load() != 1 {
		t.Fatalf("limiter should block the retry, got %d hits", hits.Load())
	}
	if d := limiter.TryAcquire("adzuna"); d.Allowed {
		t.Fatalf("credential should stay blocked for the window")
	}
}

func TestLongRetryAfterReturnsRateLimited(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.Header().Set("Retry-After", "3600")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	limiter := ratelimit.New(ratelimit.Config{Default: ratelimit.Window{MaxRequests: 100, Size: time.Hour}}, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	started := time.Now()
	_, err := New(limiter, retry.DefaultPolicy(), nil).Do(ctx, Request{URL: srv.URL, Credential: "adzuna"})
	if elapsed := time.Since(started); elapsed > time.Second {
		t.Fatalf("client blocked on the retry-after for %s", elapsed)
	}
	if apperrors.TypeOf(err) != apperrors.TypeRateLimited || !IsDenied(err) {
		t.Fatalf("expected RATE_LIMITED, got %v", err)
	}
	if hits.Load() != 1 {
		t.Fatalf("expected a single request, got %d", hits.Load())
	}
	if d := limiter.TryAcquire("adzuna"); d.Allowed || d.RetryAfter < 59*time.Minute {
		t.Fatalf("expected the credential blocked for the hinted hour, got %+v", d)
	}
}

func TestOversizedBodyIsTransient(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{"results": [1, 2, 3]}`))
	}))
	defer srv.Close()

	c := New(nil, fastPolicy(), nil)
	c.MaxBodyBytes = 8

	_, err := c.Do(context.Background(), Request{URL: srv.URL})
	if !errors.Is(err, ErrBodyTooLarge) || !apperrors.Retryable(err) {
		t.Fatalf("expected a transient size error, got %v", err)
	}
	if hits.Load() != 3 {
		t.Fatalf("expected the oversized reply to be retried, got %d hits", hits.Load())
	}
}

func TestLimiterDenialSkipsHTTP(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	limiter := ratelimit.New(ratelimit.Config{Default: ratelimit.Window{MaxRequests: 1, Size: time.Hour}}, nil)
	c := New(limiter, fastPolicy(), nil)

	if _, err := c.Do(context.Background(), Request{URL: srv.URL, Credential: "hh"}); err != nil {
		t.Fatalf("first request should pass: %v", err)
	}
	_, err := c.Do(context.Background(), Request{URL: srv.URL, Credential: "hh"})
	if apperrors.TypeOf(err) != apperrors.TypeRateLimited {
		t.Fatalf("expected RATE_LIMITED, got %v", err)
	}
	if hits.Load() != 1 {
		t.Fatalf("denied request must not reach the provider, got %d hits", hits.Load())
	}
}

func TestGzipBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		gz := gzip.NewWriter(w)
		_, _ = gz.Write([]byte(`{"ok":true}`))
		_ = gz.Close()
	}))
	defer srv.Close()

	c := New(nil, fastPolicy(), nil)
	// Disable transparent decompression so the client sees the raw encoding.
	c.HTTPClient = &http.Client{Transport: &http.Transport{DisableCompression: true}}

	resp, err := c.Do(context.Background(), Request{URL: srv.URL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(resp.Body) != `{"ok":true}` {
		t.Fatalf("unexpected body: %q", resp.Body)
	}
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	if got := parseRetryAfter("120", now); got != 2*time.Minute {
		t.Fatalf("expected 2m, got %s", got)
	}
	if got := parseRetryAfter(now.Add(30*time.Second).Format(http.TimeFormat), now); got != 30*time.Second {
		t.Fatalf("expected 30s, got %s", got)
	}
	if got := parseRetryAfter("soon", now); got != 0 {
		t.Fatalf("expected 0 for garbage, got %s", got)
	}
}
