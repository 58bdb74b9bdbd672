package headhunter

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spigell/jobradar/internal/cache"
	"github.com/spigell/jobradar/internal/httpclient"
	"github.com/spigell/jobradar/internal/model"
	"github.com/spigell/jobradar/internal/normalize"
	"github.com/spigell/jobradar/internal/retry"
	"github.com/spigell/jobradar/internal/source"
)

const vacancyJSON = `{
  "id": "%d",
  "name": "Go разработчик",
  "area": {"id": "1", "name": "Москва"},
  "salary": {"from": 250000, "to": null, "currency": "RUR"},
  "schedule": {"id": "remote"},
  "employment": {"id": "full"},
  "employer": {"id": "e1", "name": "Acme"},
  "alternate_url": "https://hh.ru/vacancy/%d?from=search",
  "snippet": {"requirement": "Опыт с <highlighttext>Go</highlighttext> и Kafka", "responsibility": "Разработка"},
  "key_skills": [{"name": "PostgreSQL"}],
  "published_at": "2024-04-30T10:00:00+0300"
}`

func pageJSON(page, pages int, ids ...int) string {
	items := ""
	for i, id := range ids {
		if i > 0 {
			items += ","
		}
		items += fmt.Sprintf(vacancyJSON, id, id)
	}
	return fmt.Sprintf(`{"items":[%s],"found":%d,"pages":%d,"page":%d,"per_page":2}`, items, pages*2, pages, page)
}

func newConnector(t *testing.T, handler http.HandlerFunc, cfg Config) *Connector {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg.APIURL = srv.URL

	fetcher := source.NewFetcher(cache.NewMemory(nil), httpclient.New(nil, retry.Policy{MaxAttempts: 1}, nil), 0, nil)
	return New(fetcher, cfg, nil)
}

func TestSearchFollowsPagesUntilLimit(t *testing.T) {
	var hits atomic.Int32
	c := newConnector(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != SearchPath {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("missing bearer token")
		}
		switch r.URL.Query().Get("page") {
		case "":
			_, _ = w.Write([]byte(pageJSON(0, 3, 1, 2)))
		case "1":
			_, _ = w.Write([]byte(pageJSON(1, 3, 3, 4)))
		default:
			t.Errorf("limit should stop paging before page %s", r.URL.Query().Get("page"))
		}
	}, Config{Token: "secret"})

	producers, err := c.Search(context.Background(), source.Criteria{Keywords: "golang", Limit: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(producers) != 3 || hits.Load() != 2 {
		t.Fatalf("expected 3 producers from 2 pages, got %d from %d", len(producers), hits.Load())
	}

	job, err := normalize.New(nil, nil).Normalize(producers[0], Name)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if job.Remote != model.RemoteFull || job.EmploymentType != model.EmploymentFullTime {
		t.Fatalf("unexpected enums: %s %s", job.Remote, job.EmploymentType)
	}
	if job.SalaryMin == nil || *job.SalaryMin != 250000 || job.SalaryMax != nil {
		t.Fatalf("unexpected salary: %v %v", job.SalaryMin, job.SalaryMax)
	}
	if !reflect.DeepEqual(job.Skills, []string{"go", "kafka", "postgresql"}) {
		t.Fatalf("unexpected skills: %v", job.Skills)
	}
	if job.Description != "Разработка\nОпыт с Go и Kafka" {
		t.Fatalf("unexpected description: %q", job.Description)
	}
	if !job.PostedAt.Equal(time.Date(2024, 4, 30, 7, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected posted at: %s", job.PostedAt)
	}
}

func TestSearchStopsOnLastPage(t *testing.T) {
	var hits atomic.Int32
	c := newConnector(t, func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(pageJSON(0, 1, 1)))
	}, Config{})

	producers, err := c.Search(context.Background(), source.Criteria{Keywords: "sre"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(producers) != 1 || hits.Load() != 1 {
		t.Fatalf("expected single page, got %d producers from %d calls", len(producers), hits.Load())
	}
}

func TestBuildParams(t *testing.T) {
	c := New(nil, Config{Areas: map[string]int{"Moscow": 1}}, nil)
	params := c.searchParams(source.Criteria{
		Keywords:       "go",
		Location:       "moscow",
		RemoteOnly:     true,
		EmploymentType: model.EmploymentContract,
		PostedWithin:   72 * time.Hour,
	}, 50)

	q := buildParams(params)
	expected := map[string]string{
		"text":       "go",
		"area":       "1",
		"schedule":   "remote",
		"employment": "project",
		"per_page":   "50",
		"period":     "3",
		"order_by":   "publication_time",
	}
	for key, want := range expected {
		if got := q.Get(key); got != want {
			t.Fatalf("%s: expected %q, got %q", key, want, got)
		}
	}
	if q.Has("page") {
		t.Fatalf("first page must be omitted")
	}
}
