package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/spigell/jobradar/internal/ai"
	"github.com/spigell/jobradar/internal/apperrors"
	"github.com/spigell/jobradar/internal/logger"
	"github.com/spigell/jobradar/internal/model"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
	Model() string
}

type Matcher struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int
}

//go:embed prompt.md
var promptTemplate string

const (
	providerName        = "gemini"
	defaultMaxLogLength = 200
	maxDescriptionRunes = 4000
)

func NewMatcher(generator contentGenerator, log *zap.Logger, maxLogLength int) *Matcher {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	return &Matcher{
		generator: generator,
		logger:    logger.WithFields(log, logger.ModelFields(providerName, generator.Model())...),
		maxLogLen: maxLogLength,
	}
}

type profilePayload struct {
	Headline        string   `json:"headline,omitempty"`
	Summary         string   `json:"summary,omitempty"`
	Skills          []string `json:"skills"`
	ExperienceLevel string   `json:"experience_level,omitempty"`
	Location        string   `json:"location,omitempty"`
}

type jobPayload struct {
	Title          string   `json:"title"`
	Company        string   `json:"company,omitempty"`
	Location       string   `json:"location,omitempty"`
	Remote         string   `json:"remote,omitempty"`
	EmploymentType string   `json:"employment_type,omitempty"`
	SalaryMin      *float64 `json:"salary_min,omitempty"`
	SalaryMax      *float64 `json:"salary_max,omitempty"`
	Skills         []string `json:"skills,omitempty"`
	Description    string   `json:"description,omitempty"`
}

// Evaluate asks the model to rate the job. Every failure is a MODEL_SCORING error.
func (m *Matcher) Evaluate(ctx context.Context, profile *model.Profile, job *model.Job) (*ai.Assessment, error) {
	if profile == nil {
		return nil, apperrors.ModelScoring("profile is required", nil)
	}
	if job == nil {
		return nil, apperrors.ModelScoring("job is required", nil)
	}

	profileJSON, err := json.MarshalIndent(profilePayload{
		Headline:        profile.Headline,
		Summary:         profile.Summary,
		Skills:          profile.Skills,
		ExperienceLevel: string(profile.ExperienceLevel),
		Location:        profile.Location,
	}, "", "  ")
	if err != nil {
		return nil, apperrors.ModelScoring("marshal profile payload", err)
	}

	jobJSON, err := json.MarshalIndent(jobPayload{
		Title:          job.Title,
		Company:        job.Company,
		Location:       job.Location,
		Remote:         string(job.Remote),
		EmploymentType: string(job.EmploymentType),
		SalaryMin:      job.SalaryMin,
		SalaryMax:      job.SalaryMax,
		Skills:         job.Skills,
		Description:    logger.Truncate(job.Description, maxDescriptionRunes),
	}, "", "  ")
	if err != nil {
		return nil, apperrors.ModelScoring("marshal job payload", err)
	}

	prompt := buildPrompt(string(profileJSON), string(jobJSON))

	m.logger.Debug("gemini generate content request",
		zap.String(logger.FieldJobID, job.ID),
		zap.String(logger.FieldUserID, profile.UserID),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", logger.Truncate(prompt, m.maxLogLen)),
	)

	raw, err := m.generator.GenerateContent(ctx, prompt)
	if err != nil {
		return nil, apperrors.ModelScoring("generate content", err)
	}

	m.logger.Debug("gemini generate content response",
		zap.String(logger.FieldJobID, job.ID),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", logger.Truncate(raw, m.maxLogLen)),
	)

	assessment, err := parseResponse(raw)
	if err != nil {
		return nil, apperrors.ModelScoring("parse model response", err)
	}

	assessment.Raw = raw
	return assessment, nil
}

func buildPrompt(profileJSON, jobJSON string) string {
	template := promptTemplate
	if strings.TrimSpace(template) == "" {
		template = "Profile:\n{{PROFILE_JSON}}\n\nJob:\n{{JOB_JSON}}\n\nJSON Response:"
	}
	prompt := strings.ReplaceAll(template, "{{PROFILE_JSON}}", profileJSON)
	prompt = strings.ReplaceAll(prompt, "{{JOB_JSON}}", jobJSON)
	return prompt
}

func parseResponse(raw string) (*ai.Assessment, error) {
	cleaned := extractJSON(raw)

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, fmt.Errorf("parse gemini response: %w", err)
	}

	score := coerceFloat(data["score"])
	if math.IsNaN(score) {
		return nil, fmt.Errorf("gemini response has no numeric score")
	}

	reason := coerceString(data["reason"])
	if reason == "" {
		reason = coerceString(data["rationale"])
	}

	return &ai.Assessment{
		Score:  math.Max(0, math.Min(100, score)),
		Reason: reason,
	}, nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

func coerceFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case string:
		trimmed := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(val), "%"))
		if trimmed == "" {
			return math.NaN()
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case fmt.Stringer:
		return strings.TrimSpace(val.String())
	default:
		if v == nil {
			return ""
		}
		bytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(bytes)
	}
}
