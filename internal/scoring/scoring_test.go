package scoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/jobradar/internal/ai"
	"github.com/spigell/jobradar/internal/clock"
	"github.com/spigell/jobradar/internal/model"
)

var scoredAt = time.Date(2024, 6, 3, 8, 0, 0, 0, time.UTC)

func scenarioUser() User {
	return User{
		Profile: &model.Profile{
			UserID:          "u1",
			Skills:          []string{"Go", "SQL"},
			ExperienceLevel: model.LevelMid,
			Location:        "Remote",
		},
		Preferences: &model.Preferences{
			UserID:      "u1",
			Remote:      model.RemotePreference(model.RemoteFull),
			SalaryFloor: model.Float(100000),
		},
	}
}

func scenarioJob() *model.Job {
	return &model.Job{
		ID:              "job_a",
		Title:           "Backend Engineer",
		Skills:          []string{"go", "sql", "aws"},
		ExperienceLevel: model.LevelMid,
		Remote:          model.RemoteFull,
		SalaryMin:       model.Float(110000),
		SalaryMax:       model.Float(130000),
	}
}

func fixedMatcher(score float64, calls *int) ai.Matcher {
	return ai.MatcherFunc(func(context.Context, *model.Profile, *model.Job) (*ai.Assessment, error) {
		*calls++
		return &ai.Assessment{Score: score, Reason: "strong backend overlap"}, nil
	})
}

func TestScoreBlendsModelAboveGate(t *testing.T) {
	calls := 0
	s := New(DefaultConfig(), fixedMatcher(90, &calls), clock.NewFake(scoredAt), nil)

	b := s.Score(context.Background(), scenarioUser(), scenarioJob())

	assert.InDelta(t, 66.67, b.Components.Skills, 0.01)
	assert.Equal(t, 100.0, b.Components.Experience)
	assert.Equal(t, 100.0, b.Components.Location)
	assert.Equal(t, 100.0, b.Components.Salary)
	assert.InDelta(t, 88.33, b.AlgorithmicScore, 0.01)

	require.Equal(t, 1, calls)
	require.NotNil(t, b.ModelScore)
	assert.Equal(t, 90.0, *b.ModelScore)
	assert.InDelta(t, 0.6*88.33+0.4*90, b.FinalScore, 0.01)
	assert.Equal(t, model.LabelExcellent, b.Label)

	assert.True(t, b.Provenance.ModelUsed)
	assert.Equal(t, model.DefaultWeights(), b.Provenance.Weights)
	assert.Equal(t, 70.0, b.Provenance.GateThreshold)
	assert.Equal(t, scoredAt, b.ScoredAt)
	assert.Contains(t, b.Rationale, "missing aws")
	assert.Contains(t, b.Rationale, "strong backend overlap")
}

func TestScoreSkipsModelBelowGate(t *testing.T) {
	calls := 0
	s := New(DefaultConfig(), fixedMatcher(100, &calls), nil, nil)

	job := scenarioJob()
	job.Skills = []string{"java", "spring"}
	job.ExperienceLevel = model.LevelLead
	job.Remote = model.RemoteOnsite
	job.Location = "Paris, France"

	b := s.Score(context.Background(), scenarioUser(), job)

	assert.Less(t, b.AlgorithmicScore, 70.0)
	assert.Equal(t, 0, calls)
	assert.Nil(t, b.ModelScore)
	assert.Equal(t, b.AlgorithmicScore, b.FinalScore)
	assert.False(t, b.Provenance.ModelUsed)
}

func TestScoreFallsBackOnModelFailure(t *testing.T) {
	failing := ai.MatcherFunc(func(context.Context, *model.Profile, *model.Job) (*ai.Assessment, error) {
		return nil, errors.New("deadline exceeded")
	})
	s := New(DefaultConfig(), failing, nil, nil)

	b := s.Score(context.Background(), scenarioUser(), scenarioJob())

	assert.Nil(t, b.ModelScore)
	assert.Equal(t, b.AlgorithmicScore, b.FinalScore)
	assert.False(t, b.Provenance.ModelUsed)
	assert.Contains(t, b.Provenance.ModelError, "deadline exceeded")
}

func TestScoreStaysInBounds(t *testing.T) {
	calls := 0
	s := New(Config{
		Weights:          model.Weights{Skills: 5},
		GateThreshold:    0,
		AlgorithmicBlend: 0.5,
		ModelBlend:       0.5,
	}, fixedMatcher(250, &calls), nil, nil)

	job := scenarioJob()
	job.Skills = []string{"go", "sql"}
	b := s.Score(context.Background(), scenarioUser(), job)
	assert.Equal(t, 100.0, b.FinalScore)
	require.NotNil(t, b.ModelScore)
	assert.Equal(t, 100.0, *b.ModelScore)

	s = New(Config{Weights: model.Weights{Skills: 1}, GateThreshold: 0}, fixedMatcher(-40, &calls), nil, nil)
	job.Skills = []string{"cobol"}
	b = s.Score(context.Background(), scenarioUser(), job)
	assert.Equal(t, 0.0, b.FinalScore)
	assert.Equal(t, model.LabelWeak, b.Label)
}

func TestScoreWithoutMatcher(t *testing.T) {
	s := New(DefaultConfig(), nil, nil, nil)
	b := s.Score(context.Background(), User{}, scenarioJob())

	assert.Nil(t, b.ModelScore)
	assert.Equal(t, 0.0, b.Components.Skills)
	assert.Equal(t, 60.0, b.Components.Experience)
}

func TestSkillsScoreUsesAliases(t *testing.T) {
	score, matched, missing := SkillsScore([]string{"Golang", "K8s", "Postgres"}, []string{"go", "kubernetes", "postgresql", "aws"})

	assert.InDelta(t, 75.0, score, 0.01)
	assert.ElementsMatch(t, []string{"go", "kubernetes", "postgresql"}, matched)
	assert.Equal(t, []string{"aws"}, missing)

	score, matched, _ = SkillsScore(nil, nil)
	assert.Equal(t, 0.0, score)
	assert.Empty(t, matched)
}

func TestExperienceScore(t *testing.T) {
	tests := []struct {
		user, job model.ExperienceLevel
		expect    float64
	}{
		{model.LevelSenior, model.LevelSenior, 100},
		{model.LevelSenior, model.LevelLead, 60},
		{model.LevelMid, model.LevelJunior, 60},
		{model.LevelJunior, model.LevelLead, 20},
		{"", model.LevelMid, 60},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expect, ExperienceScore(tt.user, tt.job), "%s vs %s", tt.user, tt.job)
	}
}

func TestLocationScore(t *testing.T) {
	prefs := &model.Preferences{Locations: []string{"Berlin, Germany"}, Remote: model.RemoteAny}

	tests := []struct {
		name   string
		prefs  *model.Preferences
		job    model.Job
		expect float64
	}{
		{name: "remote accepted", prefs: prefs, job: model.Job{Location: "Lisbon, Portugal", Remote: model.RemoteFull}, expect: 100},
		{name: "same city", prefs: prefs, job: model.Job{Location: "berlin, germany", Remote: model.RemoteOnsite}, expect: 100},
		{name: "same region", prefs: prefs, job: model.Job{Location: "Munich, Germany", Remote: model.RemoteOnsite}, expect: 70},
		{name: "elsewhere hybrid", prefs: prefs, job: model.Job{Location: "Paris, France", Remote: model.RemoteHybrid}, expect: 20},
		{name: "elsewhere onsite", prefs: prefs, job: model.Job{Location: "Paris, France", Remote: model.RemoteOnsite}, expect: 0},
		{
			name:   "remote rejected by onsite preference",
			prefs:  &model.Preferences{Locations: []string{"Paris"}, Remote: model.RemotePreference(model.RemoteOnsite)},
			job:    model.Job{Location: "Lyon, France", Remote: model.RemoteFull},
			expect: 40,
		},
		{
			name:   "remote only",
			prefs:  &model.Preferences{Remote: model.RemotePreference(model.RemoteFull)},
			job:    model.Job{Location: "Berlin, Germany", Remote: model.RemoteOnsite},
			expect: 0,
		},
		{name: "no constraint", prefs: &model.Preferences{}, job: model.Job{Location: "Anywhere"}, expect: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := tt.job
			assert.Equal(t, tt.expect, LocationScore(tt.prefs, nil, &job))
		})
	}
}

func TestSalaryScore(t *testing.T) {
	prefs := &model.Preferences{SalaryFloor: model.Float(100000)}

	assert.Equal(t, 100.0, SalaryScore(prefs, &model.Job{SalaryMin: model.Float(90000), SalaryMax: model.Float(120000)}))
	assert.Equal(t, 100.0, SalaryScore(prefs, &model.Job{SalaryMin: model.Float(150000)}))
	assert.InDelta(t, 60.0, SalaryScore(prefs, &model.Job{SalaryMax: model.Float(80000)}), 0.001)
	assert.Equal(t, 0.0, SalaryScore(prefs, &model.Job{SalaryMax: model.Float(40000)}))
	assert.Equal(t, 50.0, SalaryScore(prefs, &model.Job{}))
	assert.Equal(t, 100.0, SalaryScore(&model.Preferences{}, &model.Job{}))
}

func TestSalaryScoreUsesCeiling(t *testing.T) {
	prefs := &model.Preferences{SalaryFloor: model.Float(100000), SalaryCeiling: model.Float(150000)}

	assert.Equal(t, 100.0, SalaryScore(prefs, &model.Job{SalaryMin: model.Float(140000), SalaryMax: model.Float(200000)}))
	assert.Equal(t, 100.0, SalaryScore(prefs, &model.Job{SalaryMin: model.Float(150000)}))
	// A posting that only states a minimum above the ceiling is outside the band.
	assert.InDelta(t, 60.0, SalaryScore(prefs, &model.Job{SalaryMin: model.Float(180000)}), 0.001)
	assert.Equal(t, 0.0, SalaryScore(prefs, &model.Job{SalaryMin: model.Float(300000)}))

	ceilingOnly := &model.Preferences{SalaryCeiling: model.Float(150000)}
	assert.Equal(t, 100.0, SalaryScore(ceilingOnly, &model.Job{SalaryMax: model.Float(50000)}))
	assert.Equal(t, 50.0, SalaryScore(ceilingOnly, &model.Job{}))
}
