package scoring

import (
	"math"
	"sort"
	"strings"

	"github.com/spigell/jobradar/internal/model"
)

// SalaryFalloff is the relative distance outside the user's salary band at
// which the salary component reaches zero.
const SalaryFalloff = 0.5

// unknownSalary scores a listing that publishes no salary at all.
const unknownSalary = 50

var skillAliases = map[string]string{
	"golang":     "go",
	"go lang":    "go",
	"js":         "javascript",
	"ts":         "typescript",
	"k8s":        "kubernetes",
	"postgres":   "postgresql",
	"nodejs":     "node.js",
	"reactjs":    "react",
	"react.js":   "react",
	"vuejs":      "vue",
	"vue.js":     "vue",
	"ml":         "machine learning",
	"gcloud":     "gcp",
	"amazon aws": "aws",
}

func canonicalSkill(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if c, ok := skillAliases[s]; ok {
		return c
	}
	return s
}

func skillSet(skills []string) map[string]struct{} {
	set := make(map[string]struct{}, len(skills))
	for _, s := range skills {
		if c := canonicalSkill(s); c != "" {
			set[c] = struct{}{}
		}
	}
	return set
}

// SkillsScore is the Jaccard index of the two skill sets scaled to 0..100,
// together with the matched and missing job skills.
func SkillsScore(userSkills, jobSkills []string) (score float64, matched, missing []string) {
	user := skillSet(userSkills)
	job := skillSet(jobSkills)

	union := len(user)
	for s := range job {
		if _, ok := user[s]; ok {
			matched = append(matched, s)
			continue
		}
		missing = append(missing, s)
		union++
	}
	sort.Strings(matched)
	sort.Strings(missing)

	if union == 0 {
		return 0, nil, nil
	}
	return 100 * float64(len(matched)) / float64(union), matched, missing
}

// ExperienceScore compares experience bands: exact 100, one band apart 60,
// further apart 20. An unknown level on either side counts as one band apart.
func ExperienceScore(user, job model.ExperienceLevel) float64 {
	ub, jb := user.Band(), job.Band()
	if ub < 0 || jb < 0 {
		return 60
	}

	switch d := ub - jb; {
	case d == 0:
		return 100
	case d == 1 || d == -1:
		return 60
	default:
		return 20
	}
}

// LocationScore matches the job location against the user's locations and
// remote preference. A remote job the user accepts, or the same city, is 100.
// The same region (the last comma separated part) is 70. Anything else
// lands in 0..40 depending on how workable the arrangement is.
func LocationScore(prefs *model.Preferences, profile *model.Profile, job *model.Job) float64 {
	var remotePref model.RemotePreference
	var wants []string
	if prefs != nil {
		remotePref = model.RemotePreference(strings.ToLower(string(prefs.Remote)))
		wants = append(wants, prefs.Locations...)
	}
	if profile != nil && profile.Location != "" {
		wants = append(wants, profile.Location)
	}

	var places []string
	wantsRemote := remotePref == model.RemotePreference(model.RemoteFull)
	for _, w := range wants {
		w = strings.ToLower(strings.TrimSpace(w))
		switch {
		case w == "":
		case w == "remote" || w == "anywhere":
			wantsRemote = true
		default:
			places = append(places, w)
		}
	}
	acceptsRemote := wantsRemote || remotePref != model.RemotePreference(model.RemoteOnsite)
	remoteOnly := remotePref == model.RemotePreference(model.RemoteFull)

	if job.Remote == model.RemoteFull && acceptsRemote {
		return 100
	}
	if remoteOnly {
		if job.Remote == model.RemoteHybrid {
			return 20
		}
		return 0
	}
	if len(places) == 0 {
		if wantsRemote {
			return fallbackLocation(job.Remote)
		}
		return 100
	}

	jobCity, jobRegion := splitLocation(job.Location)
	best := fallbackLocation(job.Remote)
	for _, p := range places {
		city, region := splitLocation(p)
		switch {
		case jobCity == "":
		case jobCity == city:
			return 100
		case jobRegion == region || jobRegion == city || jobCity == region:
			best = math.Max(best, 70)
		}
	}
	return best
}

func fallbackLocation(r model.RemoteArrangement) float64 {
	switch r {
	case model.RemoteFull:
		return 40
	case model.RemoteHybrid:
		return 20
	default:
		return 0
	}
}

func splitLocation(loc string) (city, region string) {
	parts := strings.Split(strings.ToLower(loc), ",")
	city = strings.TrimSpace(parts[0])
	region = strings.TrimSpace(parts[len(parts)-1])
	return city, region
}

// SalaryScore is 100 when the job range overlaps the user's floor..ceiling
// band. Below the floor it falls linearly to 0 as the best published figure
// drops SalaryFalloff under it; above the ceiling it falls the same way as the
// lowest figure climbs over it. Missing bounds impose nothing.
func SalaryScore(prefs *model.Preferences, job *model.Job) float64 {
	if prefs == nil {
		return 100
	}
	floor := positive(prefs.SalaryFloor)
	ceiling := positive(prefs.SalaryCeiling)
	if floor == 0 && ceiling == 0 {
		return 100
	}
	if job.SalaryMin == nil && job.SalaryMax == nil {
		return unknownSalary
	}

	low, high := job.SalaryMin, job.SalaryMax
	if low == nil {
		low = high
	}
	if high == nil {
		high = low
	}

	switch {
	case floor > 0 && *high < floor:
		return clamp(100 * (1 - (floor-*high)/floor/SalaryFalloff))
	case ceiling > 0 && *low > ceiling:
		return clamp(100 * (1 - (*low-ceiling)/ceiling/SalaryFalloff))
	default:
		return 100
	}
}

func positive(v *float64) float64 {
	if v == nil || *v <= 0 {
		return 0
	}
	return *v
}

func clamp(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
