// Package gateway puts a shared cache in front of the model matcher so a
// profile and job pair is scored by the model at most once per TTL.
package gateway

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/jobradar/internal/ai"
	"github.com/spigell/jobradar/internal/apperrors"
	"github.com/spigell/jobradar/internal/cache"
	"github.com/spigell/jobradar/internal/logger"
	"github.com/spigell/jobradar/internal/model"
	"github.com/spigell/jobradar/internal/retry"
)

const DefaultTimeout = 30 * time.Second

type Gateway struct {
	matcher ai.Matcher
	store   cache.Store
	ttl     time.Duration
	timeout time.Duration
	policy  retry.Policy
	logger  *zap.Logger
}

type Option func(*Gateway)

func WithTTL(ttl time.Duration) Option {
	return func(g *Gateway) { g.ttl = ttl }
}

// WithTimeout bounds every single model call.
func WithTimeout(d time.Duration) Option {
	return func(g *Gateway) { g.timeout = d }
}

// WithRetry sets the policy for transient model failures. Its attempt
// timeout is replaced by the gateway timeout.
func WithRetry(p retry.Policy) Option {
	return func(g *Gateway) { g.policy = p }
}

func New(matcher ai.Matcher, store cache.Store, log *zap.Logger, opts ...Option) *Gateway {
	g := &Gateway{
		matcher: matcher,
		store:   store,
		ttl:     cache.ModelTTL,
		timeout: DefaultTimeout,
		policy:  retry.DefaultPolicy(),
		logger:  logger.OrNop(log),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// ProfileFingerprint changes whenever a profile field used for scoring changes.
func ProfileFingerprint(p *model.Profile) string {
	skills := model.SkillSet(p.Skills)
	return cache.Fingerprint(
		strings.Join(skills, ","),
		string(p.ExperienceLevel),
		p.Location,
		p.Headline,
		p.Summary,
	)
}

// Key is the cache key of a model assessment.
func Key(profile *model.Profile, jobID string) string {
	return "model:" + cache.Fingerprint(ProfileFingerprint(profile), jobID)
}

// Evaluate returns a cached assessment when present. When the cache is
// unreachable the matcher is called directly and nothing is written back.
func (g *Gateway) Evaluate(ctx context.Context, profile *model.Profile, job *model.Job) (*ai.Assessment, error) {
	if profile == nil || job == nil {
		return nil, apperrors.ModelScoring("profile and job are required", nil)
	}

	key := Key(profile, job.ID)
	log := g.logger.With(zap.String(logger.FieldJobID, job.ID), zap.String(logger.FieldUserID, profile.UserID))

	reachable := g.store != nil
	if reachable {
		body, ok, err := g.store.Get(ctx, key)
		switch {
		case err != nil:
			reachable = false
			log.Warn("model cache unreachable, calling model directly", zap.Error(err))
		case ok:
			var cached ai.Assessment
			if err := json.Unmarshal(body, &cached); err == nil {
				log.Debug("model cache hit")
				return &cached, nil
			}
			log.Warn("ignoring undecodable model cache entry")
		}
	}

	policy := g.policy
	policy.AttemptTimeout = g.timeout
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		log.Debug("retrying model call", zap.Int("attempt", attempt), zap.Duration("delay", delay), zap.Error(err))
	}

	var assessment *ai.Assessment
	err := retry.Do(ctx, policy, func(ctx context.Context, _ int) error {
		var err error
		assessment, err = g.matcher.Evaluate(ctx, profile, job)
		return err
	})
	if err != nil {
		if apperrors.TypeOf(err) != apperrors.TypeModelScoring {
			err = apperrors.ModelScoring("model evaluation failed", err)
		}
		return nil, err
	}

	if reachable {
		body, err := json.Marshal(assessment)
		if err == nil {
			err = g.store.Put(ctx, key, body, g.ttl)
		}
		if err != nil {
			log.Warn("model cache store failed", zap.Error(err))
		}
	}

	return assessment, nil
}
