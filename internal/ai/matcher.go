// Package ai defines the model-assisted fit assessment used by the hybrid scorer.
package ai

import (
	"context"

	"github.com/spigell/jobradar/internal/model"
)

// Assessment is a model's opinion on how well a job fits a profile.
type Assessment struct {
	// Score is in [0,100].
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`
	Raw    string  `json:"raw,omitempty"`
}

type Matcher interface {
	Evaluate(ctx context.Context, profile *model.Profile, job *model.Job) (*Assessment, error)
}

// MatcherFunc adapts a function to the Matcher interface.
type MatcherFunc func(ctx context.Context, profile *model.Profile, job *model.Job) (*Assessment, error)

func (f MatcherFunc) Evaluate(ctx context.Context, profile *model.Profile, job *model.Job) (*Assessment, error) {
	return f(ctx, profile, job)
}
