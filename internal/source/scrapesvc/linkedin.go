package scrapesvc

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/jobradar/internal/normalize"
	"github.com/spigell/jobradar/internal/source"
)

const LinkedInName = "linkedin"

// linkedInPosting is the raw LinkedIn record as returned by the service.
type linkedInPosting struct {
	JobID           string   `mapstructure:"job_id"`
	Title           string   `mapstructure:"title"`
	CompanyName     string   `mapstructure:"company_name"`
	FormattedPlace  string   `mapstructure:"formatted_location"`
	DescriptionHTML string   `mapstructure:"description_html"`
	WorkplaceType   string   `mapstructure:"workplace_type"`
	EmploymentType  string   `mapstructure:"employment_type"`
	Skills          []string `mapstructure:"skills"`
	JobURL          string   `mapstructure:"job_url"`
	// ListedAt is epoch milliseconds.
	ListedAt int64 `mapstructure:"listed_at"`
	Salary   *struct {
		Min *float64 `mapstructure:"min"`
		Max *float64 `mapstructure:"max"`
	} `mapstructure:"salary"`
}

func NewLinkedIn(fetcher *source.Fetcher, cfg Config, log *zap.Logger) source.Connector {
	return newConnector(LinkedInName, "linkedin", fetcher, cfg, mapLinkedIn, log)
}

func mapLinkedIn(record map[string]any) normalize.Producer {
	return func() (normalize.Fields, error) {
		var p linkedInPosting
		if err := decode(record, &p); err != nil {
			return normalize.Fields{}, fmt.Errorf("decode linkedin posting: %w", err)
		}

		f := normalize.Fields{
			ExternalID:     p.JobID,
			Title:          p.Title,
			Company:        p.CompanyName,
			Location:       p.FormattedPlace,
			Description:    p.DescriptionHTML,
			EmploymentType: p.EmploymentType,
			RemoteHint:     workplaceHint(p.WorkplaceType),
			Skills:         p.Skills,
			URL:            p.JobURL,
		}
		if p.Salary != nil {
			f.SalaryMin, f.SalaryMax = p.Salary.Min, p.Salary.Max
		}
		if p.ListedAt > 0 {
			f.PostedAt = time.UnixMilli(p.ListedAt).UTC()
		}
		return f, nil
	}
}

// LinkedIn workplace types are 1 on-site, 2 remote, 3 hybrid.
func workplaceHint(v string) string {
	switch v {
	case "1", "on_site", "onsite":
		return "onsite"
	case "2", "remote":
		return "remote"
	case "3", "hybrid":
		return "hybrid"
	default:
		return ""
	}
}
