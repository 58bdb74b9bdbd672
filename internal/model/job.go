// Package model holds the canonical types shared by connectors, the scorer,
// the notification gate and persistence.
package model

import (
	"sort"
	"strings"
	"time"
)

type EmploymentType string

const (
	EmploymentFullTime   EmploymentType = "full_time"
	EmploymentPartTime   EmploymentType = "part_time"
	EmploymentContract   EmploymentType = "contract"
	EmploymentTemporary  EmploymentType = "temporary"
	EmploymentInternship EmploymentType = "internship"
	EmploymentUnknown    EmploymentType = "unknown"
)

// ParseEmploymentType maps provider spellings onto the canonical enum.
func ParseEmploymentType(s string) EmploymentType {
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.NewReplacer("-", "_", " ", "_").Replace(v)
	switch v {
	case "full_time", "fulltime", "full", "permanent":
		return EmploymentFullTime
	case "part_time", "parttime", "part":
		return EmploymentPartTime
	case "contract", "contractor", "freelance", "project":
		return EmploymentContract
	case "temporary", "temp", "probation":
		return EmploymentTemporary
	case "internship", "intern", "volunteer":
		return EmploymentInternship
	default:
		return EmploymentUnknown
	}
}

type RemoteArrangement string

const (
	RemoteFull    RemoteArrangement = "remote"
	RemoteHybrid  RemoteArrangement = "hybrid"
	RemoteOnsite  RemoteArrangement = "onsite"
	RemoteUnknown RemoteArrangement = "unknown"
)

// Job is a normalized listing. ID is stable across providers for the same posting.
type Job struct {
	ID              string            `json:"id"`
	Title           string            `json:"title"`
	Company         string            `json:"company"`
	Location        string            `json:"location"`
	Description     string            `json:"description"`
	SalaryMin       *float64          `json:"salary_min,omitempty"`
	SalaryMax       *float64          `json:"salary_max,omitempty"`
	EmploymentType  EmploymentType    `json:"employment_type"`
	Remote          RemoteArrangement `json:"remote"`
	Skills          []string          `json:"skills"`
	ExperienceLevel ExperienceLevel   `json:"experience_level,omitempty"`
	SourceProvider  string            `json:"source_provider"`
	SourceURL       string            `json:"source_url"`
	ExternalID      string            `json:"external_id,omitempty"`
	PostedAt        time.Time         `json:"posted_at"`
	FetchedAt       time.Time         `json:"fetched_at"`
	// DedupKey is the content key used by the similarity fallback.
	DedupKey string `json:"dedup_key,omitempty"`
	// AliasIDs are other ids the same posting is known under.
	AliasIDs []string `json:"alias_ids,omitempty"`
}

// LedgerIDs returns ID followed by AliasIDs.
func (j *Job) LedgerIDs() []string {
	return append([]string{j.ID}, j.AliasIDs...)
}

// Completeness counts populated optional fields. Merge keeps the most complete record.
func (j *Job) Completeness() int {
	n := 0
	for _, s := range []string{j.Title, j.Company, j.Location, j.Description, j.SourceURL} {
		if strings.TrimSpace(s) != "" {
			n++
		}
	}
	if j.SalaryMin != nil {
		n++
	}
	if j.SalaryMax != nil {
		n++
	}
	if j.EmploymentType != "" && j.EmploymentType != EmploymentUnknown {
		n++
	}
	if j.Remote != "" && j.Remote != RemoteUnknown {
		n++
	}
	if len(j.Skills) > 0 {
		n++
	}
	if !j.PostedAt.IsZero() {
		n++
	}
	return n
}

// SkillSet lower-cases, trims, dedups and sorts skills.
func SkillSet(skills ...[]string) []string {
	seen := make(map[string]struct{})
	for _, list := range skills {
		for _, s := range list {
			s = strings.ToLower(strings.TrimSpace(s))
			if s == "" {
				continue
			}
			seen[s] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func Float(v float64) *float64 {
	return &v
}
