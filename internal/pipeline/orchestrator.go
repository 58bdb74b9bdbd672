// Package pipeline runs one user's search: load preferences, query every
// enabled source concurrently, normalize and merge, score, persist and
// notify. A run only moves forward and ends in Done or Failed.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/jobradar/internal/apperrors"
	"github.com/spigell/jobradar/internal/clock"
	"github.com/spigell/jobradar/internal/filtering"
	"github.com/spigell/jobradar/internal/logger"
	"github.com/spigell/jobradar/internal/model"
	"github.com/spigell/jobradar/internal/normalize"
	"github.com/spigell/jobradar/internal/notify"
	"github.com/spigell/jobradar/internal/scoring"
	"github.com/spigell/jobradar/internal/source"
	"github.com/spigell/jobradar/internal/store"
)

const (
	DefaultPostedWithin = 7 * 24 * time.Hour
	DefaultScoreWorkers = 4
)

type Config struct {
	PostedWithin time.Duration `mapstructure:"posted-within"`
	Limit        int           `mapstructure:"limit" validate:"gte=0"`
	ScoreWorkers int           `mapstructure:"score-workers" validate:"gte=0"`

	// DisabledFilters names filter steps kept in the chain but not applied.
	DisabledFilters []string `mapstructure:"disabled-filters"`
}

type ProviderStatus string

const (
	ProviderOK          ProviderStatus = "ok"
	ProviderRateLimited ProviderStatus = "rate_limited"
	ProviderAuthError   ProviderStatus = "auth_error"
	ProviderError       ProviderStatus = "error"
	ProviderSkipped     ProviderStatus = "skipped"
)

type SourceReport struct {
	Provider string         `json:"provider"`
	Status   ProviderStatus `json:"status"`
	Listings int            `json:"listings"`
	Error    string         `json:"error,omitempty"`
}

// Report summarizes a run. Err is set when State is Failed.
type Report struct {
	RunID         string             `json:"run_id"`
	UserID        string             `json:"user_id"`
	State         State              `json:"state"`
	Transitions   []State            `json:"transitions"`
	Skipped       bool               `json:"skipped,omitempty"`
	Sources       []SourceReport     `json:"sources"`
	Filters       []filtering.Status `json:"filters,omitempty"`
	Fetched       int                `json:"fetched"`
	Dropped       int                `json:"dropped"`
	Filtered      int                `json:"filtered"`
	Merged        int                `json:"merged"`
	Scored        int                `json:"scored"`
	ModelScored   int                `json:"model_scored"`
	Notifications notify.Result      `json:"notifications"`
	StartedAt     time.Time          `json:"started_at"`
	FinishedAt    time.Time          `json:"finished_at"`
	Error         string             `json:"error,omitempty"`
	Err           error              `json:"-"`
}

type Orchestrator struct {
	cfg        Config
	store      store.Store
	connectors []source.Connector
	normalizer *normalize.Normalizer
	scorer     *scoring.Scorer
	notifier   *notify.Notifier
	filters    func() []filtering.Filter
	clock      clock.Clock
	logger     *zap.Logger
	tracer     trace.Tracer
}

type Deps struct {
	Store      store.Store
	Connectors []source.Connector
	Normalizer *normalize.Normalizer
	Scorer     *scoring.Scorer
	Notifier   *notify.Notifier
	// Filters builds a fresh filter chain per run. Nil uses filtering.Default.
	Filters func() []filtering.Filter
	Clock   clock.Clock
	Logger  *zap.Logger
}

func New(cfg Config, deps Deps) *Orchestrator {
	if cfg.PostedWithin <= 0 {
		cfg.PostedWithin = DefaultPostedWithin
	}
	if cfg.ScoreWorkers <= 0 {
		cfg.ScoreWorkers = DefaultScoreWorkers
	}
	filters := deps.Filters
	if filters == nil {
		filters = filtering.Default
	}
	normalizer := deps.Normalizer
	if normalizer == nil {
		normalizer = normalize.New(nil, deps.Clock)
	}
	return &Orchestrator{
		cfg:        cfg,
		store:      deps.Store,
		connectors: deps.Connectors,
		normalizer: normalizer,
		scorer:     deps.Scorer,
		notifier:   deps.Notifier,
		filters:    filters,
		clock:      clock.OrSystem(deps.Clock),
		logger:     logger.OrNop(deps.Logger),
		tracer:     otel.Tracer("github.com/spigell/jobradar/internal/pipeline"),
	}
}

type runOptions struct {
	manual bool
}

type RunOption func(*runOptions)

// Manual runs the user even when auto search is disabled.
func Manual() RunOption {
	return func(o *runOptions) { o.manual = true }
}

type run struct {
	report *Report
	log    *zap.Logger
}

func (r *run) advance(next State) error {
	if !CanTransition(r.report.State, next) {
		return apperrors.Internal("advance run", transitionError{from: r.report.State, to: next})
	}
	r.report.State = next
	r.report.Transitions = append(r.report.Transitions, next)
	r.log.Debug("run state", zap.String(logger.FieldRunState, string(next)))
	return nil
}

func (r *run) fail(err error) Report {
	if de, ok := err.(*apperrors.DomainError); ok && de.UserID == "" {
		err = de.WithUser(r.report.UserID)
	}
	r.report.Err = err
	r.report.Error = err.Error()
	_ = r.advance(StateFailed)
	r.log.Error("run failed", zap.Error(err))
	return *r.report
}

// Run executes one pipeline run for the user and always returns a report.
func (o *Orchestrator) Run(ctx context.Context, userID string, opts ...RunOption) Report {
	var options runOptions
	for _, opt := range opts {
		opt(&options)
	}

	report := &Report{
		RunID:       uuid.NewString(),
		UserID:      userID,
		State:       StateIdle,
		Transitions: []State{StateIdle},
		StartedAt:   o.clock.Now().UTC(),
	}
	r := &run{report: report, log: logger.WithFields(o.logger, logger.RunFields(userID, report.RunID)...)}

	ctx, span := o.tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("user_id", userID),
		attribute.String("run_id", report.RunID),
	))
	defer span.End()

	final := o.execute(ctx, r, options)
	final.FinishedAt = o.clock.Now().UTC()

	span.SetAttributes(attribute.String("state", string(final.State)))
	if final.Err != nil {
		span.RecordError(final.Err)
		span.SetStatus(codes.Error, final.Error)
	}

	r.log.Info("run finished",
		zap.String(logger.FieldRunState, string(final.State)),
		zap.Int("fetched", final.Fetched),
		zap.Int("merged", final.Merged),
		zap.Int("scored", final.Scored),
		zap.Duration("elapsed", final.FinishedAt.Sub(final.StartedAt)),
	)
	return final
}

func (o *Orchestrator) execute(ctx context.Context, r *run, options runOptions) Report {
	userID := r.report.UserID

	if err := r.advance(StateFetchingPreferences); err != nil {
		return r.fail(err)
	}
	prefs, err := o.store.GetPreferences(ctx, userID)
	if err != nil {
		return r.fail(err)
	}
	if !prefs.AutoSearchEnabled && !options.manual {
		r.report.Skipped = true
		r.log.Info("auto search disabled, skipping run")
		_ = r.advance(StateDone)
		return *r.report
	}
	profile, err := o.store.GetProfile(ctx, userID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return r.fail(err)
		}
		profile = &model.Profile{UserID: userID}
	}

	if err := r.advance(StateQueryingSources); err != nil {
		return r.fail(err)
	}
	batches, err := o.query(ctx, r, prefs)
	if err != nil {
		return r.fail(err)
	}

	if err := r.advance(StateNormalizing); err != nil {
		return r.fail(err)
	}
	jobs, err := o.normalize(ctx, r, prefs, batches)
	if err != nil {
		return r.fail(err)
	}

	if err := r.advance(StateScoring); err != nil {
		return r.fail(err)
	}
	results, err := o.score(ctx, r, scoring.User{Profile: profile, Preferences: prefs}, jobs)
	if err != nil {
		return r.fail(err)
	}

	if err := r.advance(StatePersisting); err != nil {
		return r.fail(err)
	}
	if err := o.store.ReplaceResults(ctx, userID, results); err != nil {
		if apperrors.TypeOf(err) != apperrors.TypePersistence {
			err = apperrors.Persistence("replace results", err)
		}
		return r.fail(err)
	}

	if err := r.advance(StateNotifying); err != nil {
		return r.fail(err)
	}
	if o.notifier != nil {
		res, err := o.notifier.Process(ctx, prefs, results)
		r.report.Notifications = res
		if err != nil {
			return r.fail(err)
		}
	}

	_ = r.advance(StateDone)
	return *r.report
}

type batch struct {
	provider  string
	producers []normalize.Producer
}

// query fans out to every enabled connector at once. Each connector pages
// sequentially, so there is one in-flight request per connector per user.
func (o *Orchestrator) query(ctx context.Context, r *run, prefs *model.Preferences) ([]batch, error) {
	criteria := source.CriteriaFromPreferences(*prefs, o.cfg.PostedWithin, o.cfg.Limit)

	reports := make([]SourceReport, len(o.connectors))
	batches := make([]batch, len(o.connectors))
	errs := make([]error, len(o.connectors))

	var g errgroup.Group
	for i, c := range o.connectors {
		name := c.Name()
		reports[i] = SourceReport{Provider: name}
		if !prefs.SourceEnabled(name) {
			reports[i].Status = ProviderSkipped
			continue
		}

		g.Go(func() error {
			producers, err := c.Search(ctx, criteria)
			if err != nil {
				err = source.Annotate(err, name)
				errs[i] = err
				reports[i].Status = statusOf(err)
				reports[i].Error = err.Error()
				o.logSourceFailure(r.log, name, reports[i].Status, err)
				return nil
			}
			reports[i].Status = ProviderOK
			reports[i].Listings = len(producers)
			batches[i] = batch{provider: name, producers: producers}
			return nil
		})
	}
	_ = g.Wait()

	r.report.Sources = reports

	var (
		ok     []batch
		failed []error
	)
	for i, rep := range reports {
		switch rep.Status {
		case ProviderOK:
			ok = append(ok, batches[i])
			r.report.Fetched += rep.Listings
		case ProviderSkipped:
		default:
			failed = append(failed, errs[i])
		}
	}

	if len(ok) == 0 {
		if len(failed) == 0 {
			return nil, apperrors.InvalidInput("no enabled sources", nil)
		}
		return nil, apperrors.Fatal(fmt.Sprintf("all %d sources failed", len(failed)), errors.Join(failed...))
	}
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Transient("run cancelled", err)
	}
	return ok, nil
}

func statusOf(err error) ProviderStatus {
	switch {
	case apperrors.Is(err, apperrors.TypeRateLimited):
		return ProviderRateLimited
	case apperrors.Is(err, apperrors.TypeAuth):
		return ProviderAuthError
	default:
		return ProviderError
	}
}

func (o *Orchestrator) logSourceFailure(log *zap.Logger, provider string, status ProviderStatus, err error) {
	log = log.With(zap.String(logger.FieldProvider, provider), zap.String("status", string(status)))
	switch status {
	case ProviderRateLimited:
		log.Info("source rate limited, continuing without it", zap.Error(err))
	case ProviderAuthError:
		log.Error("source credentials rejected, disabled for this run", zap.Error(err))
	default:
		log.Warn("source failed", zap.Error(err))
	}
}

func (o *Orchestrator) normalize(ctx context.Context, r *run, prefs *model.Preferences, batches []batch) ([]model.Job, error) {
	var jobs []model.Job
	for _, b := range batches {
		for _, produce := range b.producers {
			job, err := o.normalizer.Normalize(produce, b.provider)
			if err != nil {
				r.report.Dropped++
				r.log.Debug("listing dropped", zap.String(logger.FieldProvider, b.provider), zap.Error(err))
				continue
			}
			jobs = append(jobs, job)
		}
	}
	if r.report.Dropped > 0 {
		r.log.Warn("listings dropped during normalization", zap.Int("dropped", r.report.Dropped))
	}

	merged := normalize.Merge(jobs)

	steps := o.filters()
	for _, name := range o.cfg.DisabledFilters {
		filtering.DisableByName(steps, name, "disabled by configuration")
	}
	kept, err := filtering.Run(ctx, filtering.Deps{Logger: r.log, Prefs: prefs}, steps, merged)
	r.report.Filters = filtering.Describe(steps)
	if err != nil {
		return nil, apperrors.InvalidInput("filter listings", err)
	}

	r.report.Merged = len(merged)
	r.report.Filtered = len(merged) - len(kept)
	return kept, nil
}

// score runs the scorer over a bounded worker set and returns results
// ordered by final score, best first.
func (o *Orchestrator) score(ctx context.Context, r *run, user scoring.User, jobs []model.Job) ([]model.ScoredJob, error) {
	results := make([]model.ScoredJob, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.ScoreWorkers)

	var mu sync.Mutex
	for i := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			b := o.scorer.Score(gctx, user, &jobs[i])
			results[i] = model.ScoredJob{Job: jobs[i], Breakdown: b}
			if b.ModelScore != nil {
				mu.Lock()
				r.report.ModelScored++
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, apperrors.Transient("scoring cancelled", err)
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Breakdown.FinalScore != results[j].Breakdown.FinalScore {
			return results[i].Breakdown.FinalScore > results[j].Breakdown.FinalScore
		}
		return results[i].Job.ID < results[j].Job.ID
	})

	r.report.Scored = len(results)
	return results, nil
}
