package model

import "time"

type ComponentScores struct {
	Skills     float64 `json:"skills"`
	Experience float64 `json:"experience"`
	Location   float64 `json:"location"`
	Salary     float64 `json:"salary"`
}

type Weights struct {
	Skills     float64 `json:"skills" mapstructure:"skills" validate:"gte=0"`
	Experience float64 `json:"experience" mapstructure:"experience" validate:"gte=0"`
	Location   float64 `json:"location" mapstructure:"location" validate:"gte=0"`
	Salary     float64 `json:"salary" mapstructure:"salary" validate:"gte=0"`
}

func DefaultWeights() Weights {
	return Weights{Skills: 0.35, Experience: 0.25, Location: 0.20, Salary: 0.20}
}

// Provenance records the configuration a score was produced with.
type Provenance struct {
	Weights          Weights `json:"weights"`
	GateThreshold    float64 `json:"gate_threshold"`
	AlgorithmicBlend float64 `json:"algorithmic_blend"`
	ModelBlend       float64 `json:"model_blend"`
	ModelUsed        bool    `json:"model_used"`
	ModelError       string  `json:"model_error,omitempty"`
}

// ScoreBreakdown is superseded whenever the job is scored again.
type ScoreBreakdown struct {
	JobID            string          `json:"job_id"`
	AlgorithmicScore float64         `json:"algorithmic_score"`
	ModelScore       *float64        `json:"model_score,omitempty"`
	FinalScore       float64         `json:"final_score"`
	Components       ComponentScores `json:"components"`
	Rationale        string          `json:"rationale"`
	Label            MatchLabel      `json:"label"`
	Provenance       Provenance      `json:"provenance"`
	ScoredAt         time.Time       `json:"scored_at"`
}

type ScoredJob struct {
	Job       Job            `json:"job"`
	Breakdown ScoreBreakdown `json:"breakdown"`
}

type MatchLabel string

const (
	LabelExcellent MatchLabel = "excellent"
	LabelGood      MatchLabel = "good"
	LabelPotential MatchLabel = "potential"
	LabelWeak      MatchLabel = "weak"
)

func LabelFor(score float64) MatchLabel {
	switch {
	case score >= 85:
		return LabelExcellent
	case score >= 70:
		return LabelGood
	case score >= 60:
		return LabelPotential
	default:
		return LabelWeak
	}
}
