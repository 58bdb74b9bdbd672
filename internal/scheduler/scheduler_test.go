package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spigell/jobradar/internal/clock"
	"github.com/spigell/jobradar/internal/model"
	"github.com/spigell/jobradar/internal/pipeline"
	"github.com/spigell/jobradar/internal/store"
)

type fakeRunner struct {
	mu      sync.Mutex
	runs    []string
	manual  map[string]bool
	active  atomic.Int32
	peak    atomic.Int32
	release chan struct{}
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{manual: make(map[string]bool)}
}

func (r *fakeRunner) Run(ctx context.Context, userID string, opts ...pipeline.RunOption) pipeline.Report {
	n := r.active.Add(1)
	for {
		p := r.peak.Load()
		if n <= p || r.peak.CompareAndSwap(p, n) {
			break
		}
	}

	if r.release != nil {
		<-r.release
	} else {
		time.Sleep(2 * time.Millisecond)
	}
	r.active.Add(-1)

	r.mu.Lock()
	r.runs = append(r.runs, userID)
	r.manual[userID] = len(opts) > 0
	r.mu.Unlock()

	return pipeline.Report{RunID: "run-" + userID, UserID: userID, State: pipeline.StateDone}
}

func (r *fakeRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.runs)
}

type staticUsers []store.Subscription

func (u staticUsers) ListAutoSearchUsers(context.Context) ([]store.Subscription, error) {
	return u, nil
}

func TestRunAllRespectsPoolSize(t *testing.T) {
	var users staticUsers
	for i := 0; i < 25; i++ {
		users = append(users, store.Subscription{UserID: fmt.Sprintf("u%02d", i), Cadence: model.CadenceDaily})
	}

	runner := newFakeRunner()
	s, err := New(Config{Workers: 3}, runner, users, nil, nil)
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}

	reports, err := s.RunAll(context.Background())
	if err != nil {
		t.Fatalf("run all: %v", err)
	}
	if len(reports) != 25 || runner.count() != 25 {
		t.Fatalf("expected 25 runs, got %d reports and %d runs", len(reports), runner.count())
	}
	for i, r := range reports {
		if r.UserID != users[i].UserID {
			t.Fatalf("reports out of order at %d: %s", i, r.UserID)
		}
	}
	if peak := runner.peak.Load(); peak > 3 {
		t.Fatalf("pool of 3 ran %d users at once", peak)
	}
}

func TestDue(t *testing.T) {
	monday := time.Date(2024, 6, 3, 6, 0, 0, 0, time.UTC)
	tuesday := monday.Add(24 * time.Hour)

	tests := []struct {
		cadence model.Cadence
		now     time.Time
		expect  bool
	}{
		{model.CadenceDaily, tuesday, true},
		{model.CadenceWeekly, monday, true},
		{model.CadenceWeekly, tuesday, false},
		{model.CadenceManual, monday, false},
	}

	for _, tt := range tests {
		if got := Due(tt.cadence, time.Monday, tt.now); got != tt.expect {
			t.Fatalf("%s on %s: expected %v", tt.cadence, tt.now.Weekday(), tt.expect)
		}
	}
}

func TestTickQueuesDueUsers(t *testing.T) {
	users := staticUsers{
		{UserID: "daily", Cadence: model.CadenceDaily},
		{UserID: "weekly", Cadence: model.CadenceWeekly},
		{UserID: "manual", Cadence: model.CadenceManual},
	}
	tuesday := time.Date(2024, 6, 4, 6, 0, 0, 0, time.UTC)

	runner := newFakeRunner()
	s, err := New(Config{Workers: 2, Spec: "@every 1h"}, runner, users, clock.NewFake(tuesday), nil)
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	s.tick(context.Background())

	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if runner.count() != 1 || runner.runs[0] != "daily" {
		t.Fatalf("expected only the daily user on a tuesday, got %v", runner.runs)
	}
	if runner.manual["daily"] {
		t.Fatalf("timer runs must respect the auto search flag")
	}
}

func TestTriggerDeduplicatesQueuedUsers(t *testing.T) {
	runner := newFakeRunner()
	runner.release = make(chan struct{})

	s, err := New(Config{Workers: 1}, runner, staticUsers{}, nil, nil)
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}

	if _, err := s.Trigger("u1", true); err != ErrNotRunning {
		t.Fatalf("expected ErrNotRunning before start, got %v", err)
	}

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	queued, err := s.Trigger("u1", true)
	if err != nil || !queued {
		t.Fatalf("expected first trigger to queue: %v %v", queued, err)
	}
	queued, err = s.Trigger("u1", true)
	if err != nil || queued {
		t.Fatalf("expected duplicate trigger to be ignored: %v %v", queued, err)
	}

	close(runner.release)
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if runner.count() != 1 || !runner.manual["u1"] {
		t.Fatalf("expected one manual run, got %v", runner.runs)
	}

	if _, err := s.Trigger("u1", true); err != ErrNotRunning {
		t.Fatalf("expected ErrNotRunning after stop, got %v", err)
	}
}

func TestNewRejectsUnknownWeekday(t *testing.T) {
	if _, err := New(Config{WeeklyDay: "someday"}, newFakeRunner(), staticUsers{}, nil, nil); err == nil {
		t.Fatalf("expected invalid weekday to be rejected")
	}
}
