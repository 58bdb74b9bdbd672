package scrapesvc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spigell/jobradar/internal/apperrors"
	"github.com/spigell/jobradar/internal/cache"
	"github.com/spigell/jobradar/internal/httpclient"
	"github.com/spigell/jobradar/internal/model"
	"github.com/spigell/jobradar/internal/normalize"
	"github.com/spigell/jobradar/internal/retry"
	"github.com/spigell/jobradar/internal/source"
)

const linkedInPage1 = `{
  "data": [
    {
      "job_id": "li-1",
      "title": "Staff Backend Engineer",
      "company_name": "Initech",
      "formatted_location": "Austin, TX",
      "description_html": "<p>Go, gRPC and AWS</p>",
      "workplace_type": "3",
      "employment_type": "FULL_TIME",
      "skills": ["Distributed Systems"],
      "job_url": "https://www.linkedin.com/jobs/view/li-1/?trackingId=abc",
      "listed_at": 1714557600000,
      "salary": {"min": 150000, "max": 190000}
    }
  ],
  "next_offset": 1
}`

const linkedInPage2 = `{"data": [{"job_id": "li-2", "title": "SRE", "company_name": "Initech"}], "next_offset": null}`

const indeedPage = `{
  "data": [
    {
      "jobkey": "in-1",
      "title": "Go Developer",
      "company": "Hooli",
      "city": "Denver",
      "state": "CO",
      "snippet": "Kubernetes &amp; Terraform",
      "remote": true,
      "job_types": ["contract"],
      "url": "https://www.indeed.com/viewjob?jk=in-1",
      "pub_date": "Wed, 01 May 2024 10:00:00 +0000",
      "salary_min": 60,
      "salary_max": 80,
      "salary_unit": "hour"
    }
  ]
}`

func newFetcher() *source.Fetcher {
	return source.NewFetcher(cache.NewMemory(nil), httpclient.New(nil, retry.Policy{MaxAttempts: 1}, nil), 0, nil)
}

func TestLinkedInSearch(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != "/v1/linkedin/jobs" || r.Header.Get("X-API-Key") != "k" {
			t.Errorf("unexpected request: %s %v", r.URL.Path, r.Header)
		}
		if r.URL.Query().Get("offset") == "1" {
			_, _ = w.Write([]byte(linkedInPage2))
			return
		}
		_, _ = w.Write([]byte(linkedInPage1))
	}))
	defer srv.Close()

	c := NewLinkedIn(newFetcher(), Config{BaseURL: srv.URL, APIKey: "k"}, nil)
	producers, err := c.Search(context.Background(), source.Criteria{Keywords: "backend", Limit: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(producers) != 2 || hits.Load() != 2 {
		t.Fatalf("expected 2 producers over 2 pages, got %d over %d", len(producers), hits.Load())
	}

	job, err := normalize.New(nil, nil).Normalize(producers[0], c.Name())
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if job.Remote != model.RemoteHybrid || job.EmploymentType != model.EmploymentFullTime {
		t.Fatalf("unexpected enums: %s %s", job.Remote, job.EmploymentType)
	}
	if job.SourceURL != "https://linkedin.com/jobs/view/li-1?trackingid=abc" {
		t.Fatalf("unexpected url: %s", job.SourceURL)
	}
	if !job.PostedAt.Equal(time.UnixMilli(1714557600000).UTC()) || *job.SalaryMin != 150000 {
		t.Fatalf("unexpected posted or salary: %+v", job)
	}
}

func TestIndeedSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("remote") != "true" || r.URL.Query().Get("job_type") != "contract" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(indeedPage))
	}))
	defer srv.Close()

	c := NewIndeed(newFetcher(), Config{BaseURL: srv.URL, APIKey: "k"}, nil)
	producers, err := c.Search(context.Background(), source.Criteria{
		Keywords:       "go",
		RemoteOnly:     true,
		EmploymentType: model.EmploymentContract,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(producers) != 1 {
		t.Fatalf("expected 1 producer, got %d", len(producers))
	}

	job, err := normalize.New(nil, nil).Normalize(producers[0], c.Name())
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if job.Location != "Denver, CO" || job.Remote != model.RemoteFull || job.EmploymentType != model.EmploymentContract {
		t.Fatalf("unexpected job: %+v", job)
	}
	if *job.SalaryMin != 60*hoursPerYear || *job.SalaryMax != 80*hoursPerYear {
		t.Fatalf("expected annualized salary, got %v-%v", *job.SalaryMin, *job.SalaryMax)
	}
	if job.Description != "Kubernetes & Terraform" {
		t.Fatalf("unexpected description: %q", job.Description)
	}
}

func TestSearchRequiresConfiguration(t *testing.T) {
	_, err := NewIndeed(newFetcher(), Config{BaseURL: "http://localhost"}, nil).Search(context.Background(), source.Criteria{})
	if apperrors.TypeOf(err) != apperrors.TypeAuth {
		t.Fatalf("expected auth error without api key, got %v", err)
	}

	_, err = NewLinkedIn(newFetcher(), Config{APIKey: "k"}, nil).Search(context.Background(), source.Criteria{})
	if apperrors.TypeOf(err) != apperrors.TypeFatal {
		t.Fatalf("expected fatal error without base url, got %v", err)
	}
}
