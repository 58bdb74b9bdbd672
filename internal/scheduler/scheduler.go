// Package scheduler decides when users are searched and runs them through a
// bounded worker pool fed by a user-id queue.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/spigell/jobradar/internal/clock"
	"github.com/spigell/jobradar/internal/logger"
	"github.com/spigell/jobradar/internal/model"
	"github.com/spigell/jobradar/internal/pipeline"
	"github.com/spigell/jobradar/internal/store"
)

const (
	DefaultWorkers   = 10
	DefaultQueueSize = 1024
	DefaultSpec      = "0 6 * * *"
	DefaultWeeklyDay = "monday"
)

var (
	ErrNotRunning = errors.New("scheduler is not running")
	ErrQueueFull  = errors.New("run queue is full")
)

type Config struct {
	Workers   int    `mapstructure:"workers" validate:"gte=0"`
	QueueSize int    `mapstructure:"queue-size" validate:"gte=0"`
	Spec      string `mapstructure:"spec"`
	WeeklyDay string `mapstructure:"weekly-day" validate:"omitempty,oneof=sunday monday tuesday wednesday thursday friday saturday"`
}

// Runner executes one pipeline run.
type Runner interface {
	Run(ctx context.Context, userID string, opts ...pipeline.RunOption) pipeline.Report
}

// Lister returns the users the timer may run.
type Lister interface {
	ListAutoSearchUsers(ctx context.Context) ([]store.Subscription, error)
}

type request struct {
	userID string
	manual bool
}

type Scheduler struct {
	cfg       Config
	weeklyDay time.Weekday
	runner    Runner
	users     Lister
	clock     clock.Clock
	logger    *zap.Logger
	cron      *cron.Cron

	mu      sync.Mutex
	running bool
	queue   chan request
	pending map[string]struct{}
	wg      sync.WaitGroup
}

func New(cfg Config, runner Runner, users Lister, c clock.Clock, log *zap.Logger) (*Scheduler, error) {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.Spec == "" {
		cfg.Spec = DefaultSpec
	}
	if cfg.WeeklyDay == "" {
		cfg.WeeklyDay = DefaultWeeklyDay
	}
	day, err := parseWeekday(cfg.WeeklyDay)
	if err != nil {
		return nil, err
	}

	log = logger.OrNop(log)
	return &Scheduler{
		cfg:       cfg,
		weeklyDay: day,
		runner:    runner,
		users:     users,
		clock:     clock.OrSystem(c),
		logger:    log,
		cron:      cron.New(cron.WithLocation(time.UTC), cron.WithLogger(cronLogger{log.Sugar()})),
		pending:   make(map[string]struct{}),
	}, nil
}

func parseWeekday(s string) (time.Weekday, error) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(d.String(), strings.TrimSpace(s)) {
			return d, nil
		}
	}
	return time.Sunday, fmt.Errorf("unknown weekday %q", s)
}

// Due reports whether a user with the cadence is run by the timer at now.
// Manual users are never run by the timer.
func Due(cadence model.Cadence, weeklyDay time.Weekday, now time.Time) bool {
	switch cadence {
	case model.CadenceDaily, "":
		return true
	case model.CadenceWeekly:
		return now.Weekday() == weeklyDay
	default:
		return false
	}
}

// Start launches the workers and registers the timer. Runs use ctx, so
// cancelling it aborts in-flight runs; Stop lets them finish.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	if _, err := s.cron.AddFunc(s.cfg.Spec, func() { s.tick(ctx) }); err != nil {
		return fmt.Errorf("register schedule %q: %w", s.cfg.Spec, err)
	}

	s.queue = make(chan request, s.cfg.QueueSize)
	s.startWorkers(ctx, s.queue)
	s.cron.Start()
	s.running = true

	s.logger.Info("scheduler started", zap.String("spec", s.cfg.Spec), zap.Int("workers", s.cfg.Workers))
	return nil
}

// Stop halts the timer, stops accepting triggers and waits for queued and
// in-flight runs to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.queue)
	s.mu.Unlock()

	cronDone := s.cron.Stop()

	done := make(chan struct{})
	go func() {
		<-cronDone.Done()
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for runs: %w", ctx.Err())
	}
}

// Trigger queues a run for the user. A user already queued or running is
// not queued twice; the return value reports whether a run was queued.
// Manual runs ignore the auto search flag.
func (s *Scheduler) Trigger(userID string, manual bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return false, ErrNotRunning
	}
	if _, ok := s.pending[userID]; ok {
		return false, nil
	}

	select {
	case s.queue <- request{userID: userID, manual: manual}:
		s.pending[userID] = struct{}{}
		return true, nil
	default:
		return false, ErrQueueFull
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	now := s.clock.Now().UTC()
	subs, err := s.users.ListAutoSearchUsers(ctx)
	if err != nil {
		s.logger.Error("list auto search users failed", zap.Error(err))
		return
	}

	queued := 0
	for _, sub := range subs {
		if !Due(sub.Cadence, s.weeklyDay, now) {
			continue
		}
		ok, err := s.Trigger(sub.UserID, false)
		if err != nil {
			s.logger.Warn("could not queue run", zap.String(logger.FieldUserID, sub.UserID), zap.Error(err))
			continue
		}
		if ok {
			queued++
		}
	}
	s.logger.Info("scheduled runs queued", zap.Int("users", len(subs)), zap.Int("queued", queued))
}

// RunAll runs every auto search user once through a pool of the configured
// size and returns the reports in user order. It does not need Start.
func (s *Scheduler) RunAll(ctx context.Context) ([]pipeline.Report, error) {
	subs, err := s.users.ListAutoSearchUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list auto search users: %w", err)
	}

	ids := make([]string, len(subs))
	for i, sub := range subs {
		ids[i] = sub.UserID
	}
	return s.runPool(ctx, ids), nil
}
