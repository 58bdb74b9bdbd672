package filtering

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/jobradar/internal/model"
)

// toggle carries the enabled flag shared by every step.
type toggle struct {
	disabled bool
	reason   string
}

func (t *toggle) Disable(reason string) {
	t.disabled = true
	t.reason = reason
}

func (t *toggle) IsEnabled() bool { return !t.disabled }

func (t *toggle) status(name string, details map[string]string) Status {
	return Status{Name: name, Enabled: !t.disabled, Reason: t.reason, Details: details}
}

func lowerAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
			out = append(out, v)
		}
	}
	return out
}

type companyBlacklistFilter struct {
	toggle
	companies []string
}

// NewCompanyBlacklist creates a filter that removes jobs by blacklisted companies.
func NewCompanyBlacklist() Filter {
	return &companyBlacklistFilter{}
}

func (f *companyBlacklistFilter) Name() string { return "company_blacklist" }

func (f *companyBlacklistFilter) Validate(prefs *model.Preferences) error {
	f.companies = lowerAll(prefs.CompanyBlacklist)
	return nil
}

func (f *companyBlacklistFilter) Apply(_ context.Context, deps Deps, jobs []model.Job) ([]model.Job, Step, error) {
	initial := len(jobs)
	if len(f.companies) == 0 {
		return jobs, Step{Initial: initial, Left: initial}, nil
	}

	kept, dropped := keep(jobs, func(j model.Job) bool {
		company := strings.ToLower(strings.TrimSpace(j.Company))
		for _, c := range f.companies {
			if company == c {
				return true
			}
		}
		return false
	})

	if deps.Logger != nil && len(dropped) > 0 {
		deps.Logger.Info("excluding jobs by company",
			zap.Strings("excluded_companies", f.companies),
			zap.Strings("excluded_jobs", dropped),
			zap.Int("jobs_left", len(kept)),
		)
	}

	return kept, Step{Initial: initial, Dropped: len(dropped), Left: len(kept)}, nil
}

func (f *companyBlacklistFilter) Status() Status {
	details := map[string]string{}
	if len(f.companies) > 0 {
		details["companies"] = strings.Join(f.companies, ",")
	}
	return f.status(f.Name(), details)
}

type keywordBlacklistFilter struct {
	toggle
	keywords []string
}

// NewKeywordBlacklist creates a filter that removes jobs mentioning a blacklisted keyword
// in the title, company or description.
func NewKeywordBlacklist() Filter {
	return &keywordBlacklistFilter{}
}

func (f *keywordBlacklistFilter) Name() string { return "keyword_blacklist" }

func (f *keywordBlacklistFilter) Validate(prefs *model.Preferences) error {
	f.keywords = lowerAll(prefs.KeywordBlacklist)
	return nil
}

func (f *keywordBlacklistFilter) Apply(_ context.Context, deps Deps, jobs []model.Job) ([]model.Job, Step, error) {
	initial := len(jobs)
	if len(f.keywords) == 0 {
		return jobs, Step{Initial: initial, Left: initial}, nil
	}

	kept, dropped := keep(jobs, func(j model.Job) bool {
		text := strings.ToLower(j.Title + "\n" + j.Company + "\n" + j.Description)
		for _, k := range f.keywords {
			if strings.Contains(text, k) {
				return true
			}
		}
		return false
	})

	if deps.Logger != nil && len(dropped) > 0 {
		deps.Logger.Info("excluding jobs by keywords",
			zap.Strings("excluded_jobs", dropped),
			zap.Int("jobs_left", len(kept)),
		)
	}

	return kept, Step{Initial: initial, Dropped: len(dropped), Left: len(kept)}, nil
}

func (f *keywordBlacklistFilter) Status() Status {
	return f.status(f.Name(), map[string]string{"keywords": strings.Join(f.keywords, ",")})
}

type employmentTypesFilter struct {
	toggle
	allowed map[model.EmploymentType]struct{}
}

// NewEmploymentTypes creates a filter that keeps only the employment types the
// user asked for. Jobs of unknown type are kept.
func NewEmploymentTypes() Filter {
	return &employmentTypesFilter{}
}

func (f *employmentTypesFilter) Name() string { return "employment_types" }

func (f *employmentTypesFilter) Validate(prefs *model.Preferences) error {
	f.allowed = make(map[model.EmploymentType]struct{}, len(prefs.EmploymentTypes))
	for _, t := range prefs.EmploymentTypes {
		f.allowed[t] = struct{}{}
	}
	return nil
}

func (f *employmentTypesFilter) Apply(_ context.Context, _ Deps, jobs []model.Job) ([]model.Job, Step, error) {
	initial := len(jobs)
	if len(f.allowed) == 0 {
		return jobs, Step{Initial: initial, Left: initial}, nil
	}

	kept, dropped := keep(jobs, func(j model.Job) bool {
		if j.EmploymentType == "" || j.EmploymentType == model.EmploymentUnknown {
			return false
		}
		_, ok := f.allowed[j.EmploymentType]
		return !ok
	})

	return kept, Step{Initial: initial, Dropped: len(dropped), Left: len(kept)}, nil
}

func (f *employmentTypesFilter) Status() Status {
	types := make([]string, 0, len(f.allowed))
	for t := range f.allowed {
		types = append(types, string(t))
	}
	return f.status(f.Name(), map[string]string{"allowed": strings.Join(types, ",")})
}
