package ratelimit

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spigell/jobradar/internal/clock"
)

var epoch = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func TestTryAcquireWindowBoundary(t *testing.T) {
	fake := clock.NewFake(epoch)
	l := New(Config{Default: Window{MaxRequests: 2, Size: time.Hour}}, fake)

	for i := 0; i < 2; i++ {
		if d := l.TryAcquire("adzuna"); !d.Allowed {
			t.Fatalf("request %d should be allowed", i)
		}
	}

	fake.Advance(10 * time.Minute)
	d := l.TryAcquire("adzuna")
	if d.Allowed {
		t.Fatalf("third request should be denied")
	}
	if d.RetryAfter != 50*time.Minute {
		t.Fatalf("expected retry after 50m, got %s", d.RetryAfter)
	}

	fake.Advance(50 * time.Minute)
	if d := l.TryAcquire("adzuna"); !d.Allowed {
		t.Fatalf("request in the next window should be allowed")
	}

	state := l.State("adzuna")
	if state.RequestCount != 1 || !state.WindowStart.Equal(epoch.Add(time.Hour)) {
		t.Fatalf("unexpected state: %+v", state)
	}
}

func TestCredentialsAreIndependent(t *testing.T) {
	fake := clock.NewFake(epoch)
	l := New(Config{
		Default:     Window{MaxRequests: 1},
		Credentials: map[string]Window{"indeed": {MaxRequests: 3, Size: time.Minute}},
	}, fake)

	if !l.TryAcquire("adzuna").Allowed || l.TryAcquire("adzuna").Allowed {
		t.Fatalf("default window should allow exactly one request")
	}

	for i := 0; i < 3; i++ {
		if !l.TryAcquire("indeed").Allowed {
			t.Fatalf("indeed request %d should be allowed", i)
		}
	}

	if got := l.State("indeed"); got.WindowSize != time.Minute || got.MaxRequests != 3 {
		t.Fatalf("unexpected indeed state: %+v", got)
	}
	if got := l.State("adzuna"); got.WindowSize != DefaultWindow {
		t.Fatalf("expected default window size, got %s", got.WindowSize)
	}
}

func TestPenalizeBlocksUntilRetryAfter(t *testing.T) {
	fake := clock.NewFake(epoch)
	l := New(Config{Default: Window{MaxRequests: 100, Size: time.Hour}}, fake)

	l.Penalize("hh", 2*time.Minute)

	d := l.TryAcquire("hh")
	if d.Allowed || d.RetryAfter != 2*time.Minute {
		t.Fatalf("expected denial with 2m retry, got %+v", d)
	}

	fake.Advance(2 * time.Minute)
	if !l.TryAcquire("hh").Allowed {
		t.Fatalf("expected request to be allowed once the retry-after passed")
	}

	// Without a hint the credential rests for a whole window.
	l.Penalize("hh", 0)
	fake.Advance(59 * time.Minute)
	if l.TryAcquire("hh").Allowed {
		t.Fatalf("expected the credential to stay blocked for the window")
	}
	fake.Advance(time.Minute)
	if !l.TryAcquire("hh").Allowed {
		t.Fatalf("expected request to be allowed after the window")
	}
}

func TestBurstAcrossWindowBoundaryIsLimited(t *testing.T) {
	fake := clock.NewFake(epoch)
	l := New(Config{Default: Window{MaxRequests: 5, Size: time.Hour}}, fake)

	if !l.TryAcquire("adzuna").Allowed {
		t.Fatalf("first request should be allowed")
	}

	// Spend the rest of the quota just before the hour mark, then try again
	// just after it.
	fake.Advance(59 * time.Minute)
	allowed := 0
	for i := 0; i < 5; i++ {
		if l.TryAcquire("adzuna").Allowed {
			allowed++
		}
	}
	fake.Advance(2 * time.Minute)
	for i := 0; i < 5; i++ {
		if l.TryAcquire("adzuna").Allowed {
			allowed++
		}
	}

	// The first grant left the window, so exactly one more slot opened.
	if allowed != 5 {
		t.Fatalf("expected 5 grants within the 2-minute span, got %d", allowed)
	}

	d := l.TryAcquire("adzuna")
	if d.Allowed || d.RetryAfter != 58*time.Minute {
		t.Fatalf("expected the next slot when the 59m grants expire, got %+v", d)
	}
}

func TestUnlimitedCredential(t *testing.T) {
	l := New(Config{}, clock.NewFake(epoch))
	for i := 0; i < 1000; i++ {
		if !l.TryAcquire("free").Allowed {
			t.Fatalf("unlimited credential denied at %d", i)
		}
	}
}

func TestConcurrentCallersNeverExceedQuota(t *testing.T) {
	const quota = 25
	l := New(Config{Default: Window{MaxRequests: quota, Size: time.Hour}}, clock.NewFake(epoch))

	var allowed atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.TryAcquire("shared").Allowed {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := allowed.Load(); got != quota {
		t.Fatalf("expected exactly %d allowed requests, got %d", quota, got)
	}
}
