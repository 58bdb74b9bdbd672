package gemini

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/jobradar/internal/apperrors"
	"github.com/spigell/jobradar/internal/logger"
	"github.com/spigell/jobradar/internal/model"
)

type stubGenerator struct {
	response   string
	err        error
	lastPrompt string
}

func (s *stubGenerator) GenerateContent(_ context.Context, prompt string) (string, error) {
	s.lastPrompt = prompt
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func (s *stubGenerator) Model() string {
	return "stub-model"
}

func sample() (*model.Profile, *model.Job) {
	profile := &model.Profile{UserID: "u1", Skills: []string{"go", "sql"}, ExperienceLevel: model.LevelMid}
	job := &model.Job{ID: "job_1", Title: "Go Developer", Skills: []string{"go", "aws"}}
	return profile, job
}

func TestMatcherEvaluate(t *testing.T) {
	core, observed := observer.New(zapcore.DebugLevel)
	stub := &stubGenerator{response: "```json\n{\"score\": \"82\", \"reason\": \"Strong Go overlap\"}\n```"}
	matcher := NewMatcher(stub, zap.New(core), 0)

	profile, job := sample()
	assessment, err := matcher.Evaluate(context.Background(), profile, job)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if assessment.Score != 82 {
		t.Fatalf("expected score 82, got %v", assessment.Score)
	}
	if assessment.Reason != "Strong Go overlap" {
		t.Fatalf("unexpected reason: %s", assessment.Reason)
	}
	if assessment.Raw == "" {
		t.Fatalf("expected raw response to be kept")
	}

	if !strings.Contains(stub.lastPrompt, `"title": "Go Developer"`) || !strings.Contains(stub.lastPrompt, `"experience_level": "mid"`) {
		t.Fatalf("expected profile and job in prompt, got %s", stub.lastPrompt)
	}
	if strings.Contains(stub.lastPrompt, "{{") {
		t.Fatalf("placeholders left in prompt")
	}

	entries := observed.FilterMessage("gemini generate content request").All()
	if len(entries) != 1 {
		t.Fatalf("expected request log, got %d", len(entries))
	}
	ctx := entries[0].ContextMap()
	if ctx[logger.FieldModel] != "stub-model" || ctx[logger.FieldJobID] != "job_1" {
		t.Fatalf("unexpected log context: %v", ctx)
	}
}

func TestMatcherClampsScore(t *testing.T) {
	matcher := NewMatcher(&stubGenerator{response: `{"score": 140, "rationale": "too eager"}`}, nil, 0)
	profile, job := sample()

	assessment, err := matcher.Evaluate(context.Background(), profile, job)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if assessment.Score != 100 || assessment.Reason != "too eager" {
		t.Fatalf("unexpected assessment: %+v", assessment)
	}
}

func TestMatcherErrorsAreModelScoring(t *testing.T) {
	profile, job := sample()

	tests := []struct {
		name string
		gen  *stubGenerator
	}{
		{name: "generator error", gen: &stubGenerator{err: errors.New("quota exceeded")}},
		{name: "not json", gen: &stubGenerator{response: "I think it fits"}},
		{name: "missing score", gen: &stubGenerator{response: `{"reason": "?"}`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewMatcher(tt.gen, nil, 0).Evaluate(context.Background(), profile, job)
			if apperrors.TypeOf(err) != apperrors.TypeModelScoring {
				t.Fatalf("expected MODEL_SCORING, got %v", err)
			}
		})
	}

	if _, err := NewMatcher(&stubGenerator{}, nil, 0).Evaluate(context.Background(), nil, job); err == nil {
		t.Fatalf("expected error without profile")
	}
}
