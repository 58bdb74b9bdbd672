// Package scrapesvc reads LinkedIn and Indeed listings through a scraping
// service that exposes both sites behind one paginated JSON API.
package scrapesvc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
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

const maxPerPage = 25

type Config struct {
	Enabled bool   `mapstructure:"enabled"`
	BaseURL string `mapstructure:"base-url"`
	APIKey  string `mapstructure:"api-key"`
}

type page struct {
	Data       []map[string]any `json:"data"`
	NextOffset *int             `json:"next_offset"`
}

// mapper turns one raw record of a site into a producer.
type mapper func(record map[string]any) normalize.Producer

type connector struct {
	name    string
	site    string
	fetcher *source.Fetcher
	cfg     Config
	mapRaw  mapper
	logger  *zap.Logger
}

func newConnector(name, site string, fetcher *source.Fetcher, cfg Config, m mapper, log *zap.Logger) *connector {
	return &connector{
		name:    name,
		site:    site,
		fetcher: fetcher,
		cfg:     cfg,
		mapRaw:  m,
		logger:  logger.OrNop(log),
	}
}

func (c *connector) Name() string { return c.name }

func (c *connector) Search(ctx context.Context, criteria source.Criteria) ([]normalize.Producer, error) {
	if strings.TrimSpace(c.cfg.BaseURL) == "" {
		return nil, apperrors.Fatal("scraping service url is not configured", nil).WithProvider(c.name)
	}
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return nil, apperrors.Auth("scraping service api key is not configured", nil).WithProvider(c.name)
	}

	limit := criteria.EffectiveLimit()
	var producers []normalize.Producer

	offset := 0
	for pageNo := 0; len(producers) < limit; pageNo++ {
		perPage := min(maxPerPage, limit-len(producers))

		header := http.Header{}
		header.Set("X-API-Key", c.cfg.APIKey)
		header.Set("Accept", "application/json")

		var p page
		_, err := c.fetcher.Fetch(ctx, source.Call{
			Provider: c.name,
			Criteria: criteria,
			Page:     pageNo,
			Request: httpclient.Request{
				URL:        fmt.Sprintf("%s/v1/%s/jobs", strings.TrimRight(c.cfg.BaseURL, "/"), c.site),
				Query:      query(criteria, perPage, offset),
				Header:     header,
				Credential: c.name,
			},
			Decode: func(body []byte) error {
				p = page{}
				if err := json.Unmarshal(body, &p); err != nil {
					return apperrors.Fatal("decode scraping service response", err)
				}
				return nil
			},
		})
		if err != nil {
			return nil, err
		}

		c.logger.Debug("got response from scraping service", zap.String("site", c.site), zap.Int("records", len(p.Data)))

		for _, record := range p.Data {
			if len(producers) == limit {
				break
			}
			producers = append(producers, c.mapRaw(record))
		}

		if p.NextOffset == nil || len(p.Data) == 0 {
			break
		}
		offset = *p.NextOffset
	}

	return producers, nil
}

func query(criteria source.Criteria, perPage, offset int) url.Values {
	q := url.Values{}
	q.Set("keywords", criteria.Keywords)
	q.Set("limit", strconv.Itoa(perPage))
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	if criteria.Location != "" {
		q.Set("location", criteria.Location)
	}
	if days := criteria.PostedDays(); days > 0 {
		q.Set("posted_within_days", strconv.Itoa(days))
	}
	if criteria.RemoteOnly {
		q.Set("remote", "true")
	}
	if criteria.EmploymentType != "" {
		q.Set("job_type", string(criteria.EmploymentType))
	}
	return q
}

func decode(record map[string]any, target any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(record)
}
