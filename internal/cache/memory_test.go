package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spigell/jobradar/internal/clock"
)

var epoch = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func TestMemoryTTLBoundary(t *testing.T) {
	ctx := context.Background()
	fake := clock.NewFake(epoch)
	m := NewMemory(fake)

	if err := m.Put(ctx, "k", []byte("listings"), time.Hour); err != nil {
		t.Fatalf("put: %v", err)
	}

	fake.Advance(time.Hour - time.Nanosecond)
	got, ok, err := m.Get(ctx, "k")
	if err != nil || !ok || string(got) != "listings" {
		t.Fatalf("expected hit just before expiry, got %q ok=%v err=%v", got, ok, err)
	}

	fake.Advance(time.Nanosecond)
	if _, ok, _ := m.Get(ctx, "k"); ok {
		t.Fatalf("expected miss at expiry")
	}
	if m.Len() != 0 {
		t.Fatalf("expected lazy eviction on lookup, len=%d", m.Len())
	}
}

func TestMemoryDefaultTTLAndCopy(t *testing.T) {
	ctx := context.Background()
	fake := clock.NewFake(epoch)
	m := NewMemory(fake)

	value := []byte("abc")
	if err := m.Put(ctx, "k", value, 0); err != nil {
		t.Fatalf("put: %v", err)
	}
	value[0] = 'z'

	got, ok, _ := m.Get(ctx, "k")
	if !ok || string(got) != "abc" {
		t.Fatalf("stored value must not alias caller slice, got %q", got)
	}

	fake.Advance(ListingTTL - time.Minute)
	if _, ok, _ := m.Get(ctx, "k"); !ok {
		t.Fatalf("expected default listing ttl to apply")
	}
}

func TestMemorySweep(t *testing.T) {
	ctx := context.Background()
	fake := clock.NewFake(epoch)
	m := NewMemory(fake)

	_ = m.Put(ctx, "short", []byte("1"), time.Minute)
	_ = m.Put(ctx, "long", []byte("2"), time.Hour)

	fake.Advance(2 * time.Minute)
	if removed := m.Sweep(); removed != 1 {
		t.Fatalf("expected 1 removed entry, got %d", removed)
	}
	if m.Len() != 1 {
		t.Fatalf("expected 1 remaining entry, got %d", m.Len())
	}
}

func TestMemoryRejectsEmptyKey(t *testing.T) {
	m := NewMemory(nil)
	if err := m.Put(context.Background(), " ", nil, time.Hour); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
	if _, _, err := m.Get(context.Background(), ""); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint("adzuna", "Go Developer", "Berlin")
	b := Fingerprint(" ADZUNA", "go developer ", "berlin")
	if a != b {
		t.Fatalf("expected case and whitespace insensitive fingerprint")
	}

	if Fingerprint("ab", "c") == Fingerprint("a", "bc") {
		t.Fatalf("part boundaries must affect the fingerprint")
	}
	if len(a) != 64 {
		t.Fatalf("expected hex sha256, got %d chars", len(a))
	}
}
