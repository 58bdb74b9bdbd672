// Package headhunter searches vacancies through the HeadHunter (hh.ru) API.
package headhunter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/spigell/jobradar/internal/apperrors"
	"github.com/spigell/jobradar/internal/httpclient"
	"github.com/spigell/jobradar/internal/logger"
	"github.com/spigell/jobradar/internal/normalize"
	"github.com/spigell/jobradar/internal/source"
)

const (
	Name   = "headhunter"
	apiURL = "https://api.hh.ru"
	// Max value for search per page.
	maxPerPage = 100
)

type Config struct {
	Enabled bool   `mapstructure:"enabled"`
	Token   string `mapstructure:"token"`
	APIURL  string `mapstructure:"api-url"`
	// Areas maps location names to hh.ru area ids.
	Areas map[string]int `mapstructure:"areas"`
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
	return &Connector{fetcher: fetcher, cfg: cfg, logger: logger.OrNop(log)}
}

func (c *Connector) Name() string { return Name }

type itemResponse struct {
	Items   []item
	Found   int
	Pages   int
	Page    int
	PerPage int `json:"per_page"`
}

type item interface{}

// Search returns vacancies from all pages up to criteria.Limit.
func (c *Connector) Search(ctx context.Context, criteria source.Criteria) ([]normalize.Producer, error) {
	limit := criteria.EffectiveLimit()
	params := c.searchParams(criteria, min(limit, maxPerPage))

	var items []item
	for page := 0; ; page++ {
		params.Page = page
		response, err := c.getItems(ctx, criteria, params)
		if err != nil {
			return nil, err
		}

		c.logger.Debug("got response from HH.ru", zap.Int("pages", response.Pages), zap.Int("max items per page", response.PerPage))

		items = append(items, response.Items...)
		if len(items) >= limit || response.Page >= response.Pages-1 || len(response.Items) == 0 {
			break
		}

		c.logger.Debug("additional request needed", zap.String("reason", fmt.Sprintf(
			"current page (%d) < all page count (%d)", response.Page+1, response.Pages),
		))
	}

	if len(items) > limit {
		items = items[:limit]
	}

	var vacancies []*Vacancy
	cfg := &mapstructure.DecoderConfig{
		Metadata:         nil,
		Result:           &vacancies,
		TagName:          "json",
		WeaklyTypedInput: true,
	}
	decoder, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return nil, apperrors.Internal("build vacancy decoder", err).WithProvider(Name)
	}
	if err := decoder.Decode(items); err != nil {
		return nil, apperrors.Fatal("decode vacancies", err).WithProvider(Name)
	}

	producers := make([]normalize.Producer, 0, len(vacancies))
	for _, v := range vacancies {
		producers = append(producers, v.producer())
	}
	return producers, nil
}

func (c *Connector) getItems(ctx context.Context, criteria source.Criteria, params *SearchParams) (*itemResponse, error) {
	header := http.Header{}
	header.Set("Content-Type", "application/json")
	if c.cfg.Token != "" {
		header.Set("Authorization", fmt.Sprintf("Bearer %s", c.cfg.Token))
	}

	var response itemResponse
	_, err := c.fetcher.Fetch(ctx, source.Call{
		Provider: Name,
		Criteria: criteria,
		Page:     params.Page,
		Request: httpclient.Request{
			URL:        fmt.Sprintf("%s%s", strings.TrimRight(c.cfg.APIURL, "/"), SearchPath),
			Query:      buildParams(params),
			Header:     header,
			Credential: Name,
		},
		Decode: func(body []byte) error {
			response = itemResponse{}
			if err := json.Unmarshal(body, &response); err != nil {
				return apperrors.Fatal("decode hh.ru response", err)
			}
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	return &response, nil
}

func (c *Connector) searchParams(criteria source.Criteria, perPage int) *SearchParams {
	params := &SearchParams{
		Text:    criteria.Keywords,
		OrderBy: "publication_time",
		PerPage: strconv.Itoa(perPage),
		Period:  uint(criteria.PostedDays()),
	}
	if criteria.Location != "" {
		for name, id := range c.cfg.Areas {
			if strings.EqualFold(name, criteria.Location) {
				params.Areas = append(params.Areas, id)
			}
		}
	}
	if criteria.RemoteOnly {
		params.Schedules = []string{"remote"}
	}
	if e, ok := employmentIDs[criteria.EmploymentType]; ok {
		params.Employment = []string{e}
	}
	return params
}
