package scrapesvc

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/jobradar/internal/normalize"
	"github.com/spigell/jobradar/internal/source"
)

const IndeedName = "indeed"

// indeedPosting is the raw Indeed record as returned by the service.
type indeedPosting struct {
	JobKey     string   `mapstructure:"jobkey"`
	Title      string   `mapstructure:"title"`
	Company    string   `mapstructure:"company"`
	City       string   `mapstructure:"city"`
	State      string   `mapstructure:"state"`
	Country    string   `mapstructure:"country"`
	Snippet    string   `mapstructure:"snippet"`
	Remote     bool     `mapstructure:"remote"`
	JobTypes   []string `mapstructure:"job_types"`
	URL        string   `mapstructure:"url"`
	PubDate    string   `mapstructure:"pub_date"`
	SalaryMin  *float64 `mapstructure:"salary_min"`
	SalaryMax  *float64 `mapstructure:"salary_max"`
	SalaryUnit string   `mapstructure:"salary_unit"`
}

func NewIndeed(fetcher *source.Fetcher, cfg Config, log *zap.Logger) source.Connector {
	return newConnector(IndeedName, "indeed", fetcher, cfg, mapIndeed, log)
}

// Hourly figures are annualized assuming a 2080 hour year.
const hoursPerYear = 2080

func mapIndeed(record map[string]any) normalize.Producer {
	return func() (normalize.Fields, error) {
		var p indeedPosting
		if err := decode(record, &p); err != nil {
			return normalize.Fields{}, fmt.Errorf("decode indeed posting: %w", err)
		}

		var location []string
		for _, part := range []string{p.City, p.State, p.Country} {
			if part = strings.TrimSpace(part); part != "" {
				location = append(location, part)
			}
		}

		f := normalize.Fields{
			ExternalID:  p.JobKey,
			Title:       p.Title,
			Company:     p.Company,
			Location:    strings.Join(location, ", "),
			Description: p.Snippet,
			URL:         p.URL,
			SalaryMin:   annualize(p.SalaryMin, p.SalaryUnit),
			SalaryMax:   annualize(p.SalaryMax, p.SalaryUnit),
		}
		if p.Remote {
			f.RemoteHint = "remote"
		}
		if len(p.JobTypes) > 0 {
			f.EmploymentType = p.JobTypes[0]
		}
		if p.PubDate != "" {
			posted, err := time.Parse(time.RFC1123Z, p.PubDate)
			if err != nil {
				return normalize.Fields{}, fmt.Errorf("parse pub_date %q: %w", p.PubDate, err)
			}
			f.PostedAt = posted
		}
		return f, nil
	}
}

func annualize(v *float64, unit string) *float64 {
	if v == nil || !strings.EqualFold(unit, "hour") {
		return v
	}
	annual := *v * hoursPerYear
	return &annual
}
