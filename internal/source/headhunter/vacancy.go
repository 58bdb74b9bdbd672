package headhunter

import (
	"fmt"
	"strings"
	"time"

	"github.com/spigell/jobradar/internal/normalize"
)

const publishedLayout = "2006-01-02T15:04:05-0700"

var experienceLevels = map[string]string{
	"noExperience": "junior",
	"between1And3": "mid",
	"between3And6": "senior",
	"moreThan6":    "lead",
}

// Vacancy is the raw hh.ru search item.
type Vacancy struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
	Area struct {
		ID   string `json:"id,omitempty"`
		Name string `json:"name,omitempty"`
	} `json:"area,omitempty"`
	Salary *struct {
		From     *float64 `json:"from,omitempty"`
		To       *float64 `json:"to,omitempty"`
		Currency string   `json:"currency,omitempty"`
		Gross    bool     `json:"gross,omitempty"`
	} `json:"salary,omitempty"`
	Schedule struct {
		ID   string `json:"id,omitempty"`
		Name string `json:"name,omitempty"`
	} `json:"schedule,omitempty"`
	Employer struct {
		ID   string `json:"id,omitempty"`
		Name string `json:"name,omitempty"`
	} `json:"employer,omitempty"`
	AlternateURL string `json:"alternate_url,omitempty"`
	Employment   struct {
		ID   string `json:"id,omitempty"`
		Name string `json:"name,omitempty"`
	} `json:"employment,omitempty"`
	Experience struct {
		ID string `json:"id,omitempty"`
	} `json:"experience,omitempty"`
	KeySkills []struct {
		Name string `json:"name,omitempty"`
	} `json:"key_skills,omitempty"`
	Snipet struct {
		Requirement    string `json:"requirement,omitempty"`
		Responsibility string `json:"responsibility,omitempty"`
	} `json:"snippet,omitempty"`
	PublishedAt string `json:"published_at,omitempty"`
}

func (v *Vacancy) producer() normalize.Producer {
	return func() (normalize.Fields, error) {
		f := normalize.Fields{
			ExternalID:      v.ID,
			Title:           v.Name,
			Company:         v.Employer.Name,
			Location:        v.Area.Name,
			Description:     strings.TrimSpace(v.Snipet.Responsibility + "\n" + v.Snipet.Requirement),
			EmploymentType:  v.Employment.ID,
			RemoteHint:      v.Schedule.ID,
			ExperienceLevel: experienceLevels[v.Experience.ID],
			URL:             v.AlternateURL,
		}

		if v.Salary != nil {
			f.SalaryMin = v.Salary.From
			f.SalaryMax = v.Salary.To
		}

		for _, s := range v.KeySkills {
			f.Skills = append(f.Skills, s.Name)
		}

		if v.PublishedAt != "" {
			posted, err := time.Parse(publishedLayout, v.PublishedAt)
			if err != nil {
				return normalize.Fields{}, fmt.Errorf("parse published_at %q: %w", v.PublishedAt, err)
			}
			f.PostedAt = posted
		}

		return f, nil
	}
}
