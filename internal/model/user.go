package model

import "strings"

type Cadence string

const (
	CadenceDaily  Cadence = "daily"
	CadenceWeekly Cadence = "weekly"
	CadenceManual Cadence = "manual"
)

// RemotePreference accepts the RemoteArrangement values plus "any".
type RemotePreference string

const RemoteAny RemotePreference = "any"

type ExperienceLevel string

const (
	LevelIntern    ExperienceLevel = "intern"
	LevelJunior    ExperienceLevel = "junior"
	LevelMid       ExperienceLevel = "mid"
	LevelSenior    ExperienceLevel = "senior"
	LevelLead      ExperienceLevel = "lead"
	LevelExecutive ExperienceLevel = "executive"
)

var levelBands = map[ExperienceLevel]int{
	LevelIntern:    0,
	LevelJunior:    1,
	LevelMid:       2,
	LevelSenior:    3,
	LevelLead:      4,
	LevelExecutive: 5,
}

// Band returns the ordinal of the level, or -1 when it is unknown.
func (l ExperienceLevel) Band() int {
	b, ok := levelBands[ExperienceLevel(strings.ToLower(strings.TrimSpace(string(l))))]
	if !ok {
		return -1
	}
	return b
}

// Preferences are the user's search settings. The pipeline only reads them.
type Preferences struct {
	UserID                string           `json:"user_id"`
	Titles                []string         `json:"titles"`
	Locations             []string         `json:"locations"`
	SalaryFloor           *float64         `json:"salary_floor,omitempty"`
	SalaryCeiling         *float64         `json:"salary_ceiling,omitempty"`
	Remote                RemotePreference `json:"remote"`
	EmploymentTypes       []EmploymentType `json:"employment_types"`
	ExperienceLevel       ExperienceLevel  `json:"experience_level"`
	Industries            []string         `json:"industries"`
	CompanySizes          []string         `json:"company_sizes"`
	CompanyBlacklist      []string         `json:"company_blacklist"`
	KeywordBlacklist      []string         `json:"keyword_blacklist"`
	EnabledSources        []string         `json:"enabled_sources"`
	Cadence               Cadence          `json:"cadence"`
	NotificationThreshold int              `json:"notification_threshold"`
	AutoSearchEnabled     bool             `json:"auto_search_enabled"`
}

// SourceEnabled reports whether provider is allowed. An empty list enables every source.
func (p *Preferences) SourceEnabled(provider string) bool {
	if len(p.EnabledSources) == 0 {
		return true
	}
	for _, s := range p.EnabledSources {
		if strings.EqualFold(strings.TrimSpace(s), provider) {
			return true
		}
	}
	return false
}

// Profile is the part of the user's profile used for scoring.
type Profile struct {
	UserID          string          `json:"user_id"`
	Headline        string          `json:"headline"`
	Summary         string          `json:"summary"`
	Skills          []string        `json:"skills"`
	ExperienceLevel ExperienceLevel `json:"experience_level"`
	Location        string          `json:"location"`
}
