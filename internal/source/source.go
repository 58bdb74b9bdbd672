// Package source defines the connector contract and the cached, rate limited
// fetch path every connector goes through.
package source

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/spigell/jobradar/internal/cache"
	"github.com/spigell/jobradar/internal/model"
	"github.com/spigell/jobradar/internal/normalize"
)

const DefaultLimit = 50

// Criteria is the semantic query sent to every provider.
type Criteria struct {
	Keywords       string
	Location       string
	PostedWithin   time.Duration
	RemoteOnly     bool
	EmploymentType model.EmploymentType
	// Limit caps the number of listings a connector returns.
	Limit int
}

// Fingerprint is the cache key of the query for a provider and result page.
func (c Criteria) Fingerprint(provider string, page int) string {
	return cache.Fingerprint(
		provider,
		c.Keywords,
		c.Location,
		strconv.Itoa(c.PostedDays()),
		strconv.FormatBool(c.RemoteOnly),
		string(c.EmploymentType),
		strconv.Itoa(c.EffectiveLimit()),
		strconv.Itoa(page),
	)
}

// PostedDays rounds PostedWithin up to whole days. Zero means no restriction.
func (c Criteria) PostedDays() int {
	if c.PostedWithin <= 0 {
		return 0
	}
	days := int(c.PostedWithin / (24 * time.Hour))
	if c.PostedWithin%(24*time.Hour) != 0 {
		days++
	}
	return days
}

func (c Criteria) EffectiveLimit() int {
	if c.Limit <= 0 {
		return DefaultLimit
	}
	return c.Limit
}

// CriteriaFromPreferences derives the query for a user.
func CriteriaFromPreferences(p model.Preferences, postedWithin time.Duration, limit int) Criteria {
	c := Criteria{
		Keywords:     strings.Join(trimAll(p.Titles), " OR "),
		PostedWithin: postedWithin,
		RemoteOnly:   p.Remote == model.RemotePreference(model.RemoteFull),
		Limit:        limit,
	}
	for _, loc := range trimAll(p.Locations) {
		if strings.EqualFold(loc, "remote") {
			continue
		}
		c.Location = loc
		break
	}
	if len(p.EmploymentTypes) == 1 {
		c.EmploymentType = p.EmploymentTypes[0]
	}
	return c
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Connector talks to one listing provider. Search returns listings in
// provider order, each as a producer mapping the provider's raw record.
type Connector interface {
	Name() string
	Search(ctx context.Context, criteria Criteria) ([]normalize.Producer, error)
}
