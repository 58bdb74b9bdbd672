// Package scoring computes the blended fit score of a job for a user: a
// deterministic weighted score, optionally refined by a model assessment
// when the deterministic score clears the gate.
package scoring

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/jobradar/internal/ai"
	"github.com/spigell/jobradar/internal/clock"
	"github.com/spigell/jobradar/internal/logger"
	"github.com/spigell/jobradar/internal/model"
)

const (
	DefaultGateThreshold    = 70
	DefaultAlgorithmicBlend = 0.6
	DefaultModelBlend       = 0.4
)

type Config struct {
	Weights          model.Weights `mapstructure:"weights"`
	GateThreshold    float64       `mapstructure:"gate-threshold" validate:"gte=0,lte=100"`
	AlgorithmicBlend float64       `mapstructure:"algorithmic-blend" validate:"gte=0,lte=1"`
	ModelBlend       float64       `mapstructure:"model-blend" validate:"gte=0,lte=1"`
}

func DefaultConfig() Config {
	return Config{
		Weights:          model.DefaultWeights(),
		GateThreshold:    DefaultGateThreshold,
		AlgorithmicBlend: DefaultAlgorithmicBlend,
		ModelBlend:       DefaultModelBlend,
	}
}

// User is what the scorer knows about the person a job is scored for.
type User struct {
	Profile     *model.Profile
	Preferences *model.Preferences
}

type Scorer struct {
	cfg     Config
	matcher ai.Matcher
	clock   clock.Clock
	logger  *zap.Logger
}

// New builds a Scorer. A nil matcher disables the model stage. Zero weights
// or blends fall back to the defaults.
func New(cfg Config, matcher ai.Matcher, c clock.Clock, log *zap.Logger) *Scorer {
	if cfg.Weights == (model.Weights{}) {
		cfg.Weights = model.DefaultWeights()
	}
	if cfg.AlgorithmicBlend == 0 && cfg.ModelBlend == 0 {
		cfg.AlgorithmicBlend = DefaultAlgorithmicBlend
		cfg.ModelBlend = DefaultModelBlend
	}
	return &Scorer{
		cfg:     cfg,
		matcher: matcher,
		clock:   clock.OrSystem(c),
		logger:  logger.OrNop(log),
	}
}

// Score never fails: a model error is recorded in the provenance and the
// final score falls back to the algorithmic score.
func (s *Scorer) Score(ctx context.Context, user User, job *model.Job) model.ScoreBreakdown {
	profile := user.Profile
	if profile == nil {
		profile = &model.Profile{}
	}

	level := profile.ExperienceLevel
	if level == "" && user.Preferences != nil {
		level = user.Preferences.ExperienceLevel
	}

	skills, matched, missing := SkillsScore(profile.Skills, job.Skills)
	components := model.ComponentScores{
		Skills:     round2(skills),
		Experience: ExperienceScore(level, job.ExperienceLevel),
		Location:   LocationScore(user.Preferences, profile, job),
		Salary:     round2(SalaryScore(user.Preferences, job)),
	}

	algorithmic := round2(s.weighted(components))
	breakdown := model.ScoreBreakdown{
		JobID:            job.ID,
		AlgorithmicScore: algorithmic,
		FinalScore:       algorithmic,
		Components:       components,
		Provenance: model.Provenance{
			Weights:          s.cfg.Weights,
			GateThreshold:    s.cfg.GateThreshold,
			AlgorithmicBlend: s.cfg.AlgorithmicBlend,
			ModelBlend:       s.cfg.ModelBlend,
		},
		ScoredAt: s.clock.Now().UTC(),
	}

	rationale := []string{describe(components, matched, missing)}

	if s.matcher != nil && algorithmic >= s.cfg.GateThreshold {
		assessment, err := s.matcher.Evaluate(ctx, profile, job)
		if err != nil {
			breakdown.Provenance.ModelError = err.Error()
			s.logger.Warn("model scoring failed, using algorithmic score",
				zap.String(logger.FieldUserID, profile.UserID),
				zap.String(logger.FieldJobID, job.ID),
				zap.Error(err),
			)
		} else {
			modelScore := round2(clamp(assessment.Score))
			breakdown.ModelScore = &modelScore
			breakdown.Provenance.ModelUsed = true
			breakdown.FinalScore = round2(s.blend(algorithmic, modelScore))
			if reason := strings.TrimSpace(assessment.Reason); reason != "" {
				rationale = append(rationale, "model: "+reason)
			}
		}
	}

	breakdown.FinalScore = clamp(breakdown.FinalScore)
	breakdown.Label = model.LabelFor(breakdown.FinalScore)
	breakdown.Rationale = strings.Join(rationale, "; ")

	return breakdown
}

func (s *Scorer) weighted(c model.ComponentScores) float64 {
	w := s.cfg.Weights
	total := w.Skills + w.Experience + w.Location + w.Salary
	if total <= 0 {
		return 0
	}
	sum := c.Skills*w.Skills + c.Experience*w.Experience + c.Location*w.Location + c.Salary*w.Salary
	return clamp(sum / total)
}

func (s *Scorer) blend(algorithmic, modelScore float64) float64 {
	total := s.cfg.AlgorithmicBlend + s.cfg.ModelBlend
	return clamp((algorithmic*s.cfg.AlgorithmicBlend + modelScore*s.cfg.ModelBlend) / total)
}

func describe(c model.ComponentScores, matched, missing []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "skills %.0f", c.Skills)
	if len(matched) > 0 {
		fmt.Fprintf(&b, " (matched %s", strings.Join(matched, ", "))
		if len(missing) > 0 {
			fmt.Fprintf(&b, "; missing %s", strings.Join(missing, ", "))
		}
		b.WriteString(")")
	}
	fmt.Fprintf(&b, ", experience %.0f, location %.0f, salary %.0f", c.Experience, c.Location, c.Salary)
	return b.String()
}
