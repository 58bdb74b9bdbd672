// Package adzuna searches the Adzuna aggregated listings API.
package adzuna

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/jobradar/internal/apperrors"
	"github.com/spigell/jobradar/internal/httpclient"
	"github.com/spigell/jobradar/internal/logger"
	"github.com/spigell/jobradar/internal/model"
	"github.com/spigell/jobradar/internal/normalize"
	"github.com/spigell/jobradar/internal/source"
)

const (
	Name       = "adzuna"
	apiURL     = "https://api.adzuna.com/v1/api/jobs"
	maxPerPage = 50
)

type Config struct {
	Enabled bool   `mapstructure:"enabled"`
	AppID   string `mapstructure:"app-id"`
	AppKey  string `mapstructure:"app-key"`
	Country string `mapstructure:"country"`
	APIURL  string `mapstructure:"api-url"`
}

type Connector struct {
	fetcher *source.Fetcher
	cfg     Config
	logger  *zap.Logger
}

func New(fetcher *source.Fetcher, cfg Config, log *zap.Logger) *Connector {
	if cfg.APIURL == "" {
		cfg.APIURL = apiURL
	}
	if cfg.Country == "" {
		cfg.Country = "gb"
	}
	return &Connector{fetcher: fetcher, cfg: cfg, logger: logger.OrNop(log)}
}

func (c *Connector) Name() string { return Name }

// Search pages through results until criteria.Limit listings are collected or
// the provider runs out.
func (c *Connector) Search(ctx context.Context, criteria source.Criteria) ([]normalize.Producer, error) {
	if c.cfg.AppID == "" || c.cfg.AppKey == "" {
		return nil, apperrors.Auth("adzuna credentials are not configured", nil).WithProvider(Name)
	}

	limit := criteria.EffectiveLimit()
	var producers []normalize.Producer

	for page := 1; len(producers) < limit; page++ {
		perPage := min(maxPerPage, limit-len(producers))
		var resp searchResponse
		_, err := c.fetcher.Fetch(ctx, source.Call{
			Provider: Name,
			Criteria: criteria,
			Page:     page,
			Request: httpclient.Request{
				URL:        fmt.Sprintf("%s/%s/search/%d", strings.TrimRight(c.cfg.APIURL, "/"), c.cfg.Country, page),
				Query:      c.query(criteria, perPage),
				Credential: Name,
			},
			Decode: func(body []byte) error {
				resp = searchResponse{}
				if err := json.Unmarshal(body, &resp); err != nil {
					return apperrors.Fatal("decode adzuna response", err)
				}
				return nil
			},
		})
		if err != nil {
			return nil, err
		}

		c.logger.Debug("got response from adzuna", zap.Int("page", page), zap.Int("results", len(resp.Results)), zap.Int("count", resp.Count))

		for _, r := range resp.Results {
			if len(producers) == limit {
				break
			}
			producers = append(producers, r.producer())
		}

		if len(resp.Results) < perPage || page*perPage >= resp.Count {
			break
		}
	}

	return producers, nil
}

func (c *Connector) query(criteria source.Criteria, perPage int) url.Values {
	q := url.Values{}
	q.Set("app_id", c.cfg.AppID)
	q.Set("app_key", c.cfg.AppKey)
	q.Set("results_per_page", strconv.Itoa(perPage))
	q.Set("content-type", "application/json")
	if criteria.Keywords != "" {
		q.Set("what_or", strings.ReplaceAll(criteria.Keywords, " OR ", " "))
	}
	if criteria.Location != "" {
		q.Set("where", criteria.Location)
	}
	if days := criteria.PostedDays(); days > 0 {
		q.Set("max_days_old", strconv.Itoa(days))
	}
	if criteria.RemoteOnly {
		q.Set("what_and", "remote")
	}
	switch criteria.EmploymentType {
	case model.EmploymentFullTime:
		q.Set("full_time", "1")
	case model.EmploymentPartTime:
		q.Set("part_time", "1")
	case model.EmploymentContract:
		q.Set("contract", "1")
	case model.EmploymentTemporary, model.EmploymentInternship:
		q.Set("permanent", "0")
	}
	return q
}

type searchResponse struct {
	Count   int      `json:"count"`
	Results []result `json:"results"`
}

// result is the raw Adzuna listing.
type result struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Created     string   `json:"created"`
	RedirectURL string   `json:"redirect_url"`
	SalaryMin   *float64 `json:"salary_min"`
	SalaryMax   *float64 `json:"salary_max"`
	// ContractTime is full_time or part_time.
	ContractTime string `json:"contract_time"`
	// ContractType is permanent or contract.
	ContractType string `json:"contract_type"`
	Company      struct {
		DisplayName string `json:"display_name"`
	} `json:"company"`
	Location struct {
		DisplayName string   `json:"display_name"`
		Area        []string `json:"area"`
	} `json:"location"`
	Category struct {
		Label string `json:"label"`
	} `json:"category"`
}

func (r result) producer() normalize.Producer {
	return func() (normalize.Fields, error) {
		f := normalize.Fields{
			ExternalID:  r.ID,
			Title:       r.Title,
			Company:     r.Company.DisplayName,
			Location:    r.Location.DisplayName,
			Description: r.Description,
			SalaryMin:   r.SalaryMin,
			SalaryMax:   r.SalaryMax,
			URL:         r.RedirectURL,
		}

		f.EmploymentType = r.ContractTime
		if r.ContractType == "contract" {
			f.EmploymentType = r.ContractType
		}

		if r.Created != "" {
			posted, err := time.Parse(time.RFC3339, r.Created)
			if err != nil {
				return normalize.Fields{}, fmt.Errorf("parse created %q: %w", r.Created, err)
			}
			f.PostedAt = posted
		}

		return f, nil
	}
}
