// Package normalize maps connector output onto model.Job and merges listings
// that describe the same posting.
package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/spigell/jobradar/internal/apperrors"
	"github.com/spigell/jobradar/internal/clock"
	"github.com/spigell/jobradar/internal/model"
)

// Fields is the provider-neutral shape a connector produces from its own raw
// payload type. Text fields may still contain markup.
type Fields struct {
	ExternalID     string
	Title          string
	Company        string
	Location       string
	Description    string
	SalaryMin      *float64
	SalaryMax      *float64
	EmploymentType string
	// RemoteHint is a provider field such as a schedule id. Optional.
	RemoteHint string
	// ExperienceLevel is the provider's level when it publishes one.
	ExperienceLevel string
	Skills          []string
	URL             string
	PostedAt        time.Time
}

// Producer yields the fields of a single listing.
type Producer func() (Fields, error)

var ErrMissingTitle = errors.New("listing has no title")

type Normalizer struct {
	vocabulary []string
	clock      clock.Clock
}

// New builds a Normalizer. An empty vocabulary uses DefaultVocabulary.
func New(vocabulary []string, c clock.Clock) *Normalizer {
	if len(vocabulary) == 0 {
		vocabulary = DefaultVocabulary
	}
	return &Normalizer{
		vocabulary: model.SkillSet(vocabulary),
		clock:      clock.OrSystem(c),
	}
}

// Normalize turns a producer into a canonical Job. Failures are
// NORMALIZATION errors; the caller drops and counts the record.
func (n *Normalizer) Normalize(produce Producer, provider string) (model.Job, error) {
	if produce == nil {
		return model.Job{}, apperrors.Normalization("nil producer", nil).WithProvider(provider)
	}

	f, err := produce()
	if err != nil {
		return model.Job{}, apperrors.Normalization("map provider payload", err).WithProvider(provider)
	}

	title := StripMarkup(f.Title)
	if title == "" {
		return model.Job{}, apperrors.Normalization("validate listing", ErrMissingTitle).WithProvider(provider)
	}

	if f.SalaryMin != nil && f.SalaryMax != nil && *f.SalaryMin > *f.SalaryMax {
		f.SalaryMin, f.SalaryMax = f.SalaryMax, f.SalaryMin
	}

	job := model.Job{
		Title:          title,
		Company:        StripMarkup(f.Company),
		Location:       StripMarkup(f.Location),
		Description:    StripMarkup(f.Description),
		SalaryMin:      f.SalaryMin,
		SalaryMax:      f.SalaryMax,
		EmploymentType: model.ParseEmploymentType(f.EmploymentType),
		SourceProvider: strings.ToLower(strings.TrimSpace(provider)),
		SourceURL:      CanonicalURL(f.URL),
		ExternalID:     strings.TrimSpace(f.ExternalID),
		PostedAt:       f.PostedAt.UTC(),
		FetchedAt:      n.clock.Now().UTC(),
	}

	job.Remote = InferRemote(f.RemoteHint, job.Title, job.Location, job.Description)
	job.ExperienceLevel = InferLevel(f.ExperienceLevel, job.Title)
	job.Skills = model.SkillSet(f.Skills, ExtractSkills(job.Title+"\n"+job.Description, n.vocabulary))
	job.DedupKey = ContentKey(job.Title, job.Company, job.Location)
	job.ID = JobID(job)

	return job, nil
}

// JobID prefers the canonical URL, then provider plus external id, then the
// content key.
func JobID(j model.Job) string {
	switch {
	case j.SourceURL != "":
		return hashID("url", j.SourceURL)
	case j.ExternalID != "":
		return hashID("ext", j.SourceProvider, j.ExternalID)
	default:
		return ContentID(j)
	}
}

func hashID(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	return "job_" + hex.EncodeToString(sum[:])[:20]
}
