package normalize

import (
	"strings"
	"unicode"

	"github.com/spigell/jobradar/internal/model"
)

// DefaultVocabulary is the controlled skill vocabulary matched against titles
// and descriptions.
var DefaultVocabulary = []string{
	"go", "golang", "python", "java", "kotlin", "scala", "rust", "c++", "c#", ".net",
	"javascript", "typescript", "node.js", "react", "vue", "angular", "ruby", "rails",
	"php", "swift", "sql", "postgresql", "mysql", "mongodb", "redis", "kafka",
	"rabbitmq", "nats", "elasticsearch", "clickhouse", "graphql", "grpc",
	"docker", "kubernetes", "helm", "terraform", "ansible", "aws", "gcp", "azure",
	"linux", "git", "ci/cd", "prometheus", "grafana", "spark", "airflow",
	"machine learning", "pytorch", "tensorflow", "microservices",
}

var remoteHints = map[string]model.RemoteArrangement{
	"remote":   model.RemoteFull,
	"flexible": model.RemoteHybrid,
	"hybrid":   model.RemoteHybrid,
	"fullday":  model.RemoteOnsite,
	"shift":    model.RemoteOnsite,
	"onsite":   model.RemoteOnsite,
	"on_site":  model.RemoteOnsite,
	"office":   model.RemoteOnsite,
}

var (
	hybridPhrases = []string{"hybrid", "partially remote", "гибрид"}
	remotePhrases = []string{"remote", "work from home", "wfh", "anywhere", "distributed team", "удален", "удалён"}
	onsitePhrases = []string{"on-site", "onsite", "on site", "in-office", "in office", "в офисе"}
)

// InferRemote resolves the remote arrangement from a provider hint, falling
// back to phrases in the title, location and description in that order.
func InferRemote(hint string, texts ...string) model.RemoteArrangement {
	if r, ok := remoteHints[strings.ToLower(strings.TrimSpace(hint))]; ok {
		return r
	}

	for _, text := range texts {
		lower := strings.ToLower(text)
		switch {
		case containsAny(lower, hybridPhrases):
			return model.RemoteHybrid
		case containsAny(lower, remotePhrases):
			return model.RemoteFull
		case containsAny(lower, onsitePhrases):
			return model.RemoteOnsite
		}
	}
	return model.RemoteUnknown
}

// levelPhrases are checked in order, so "senior lead" resolves to lead.
var levelPhrases = []struct {
	level   model.ExperienceLevel
	phrases []string
}{
	{model.LevelExecutive, []string{"director", "vp", "head of", "cto", "chief"}},
	{model.LevelLead, []string{"lead", "principal", "staff", "architect", "тимлид", "ведущий"}},
	{model.LevelSenior, []string{"senior", "sr", "старший"}},
	{model.LevelIntern, []string{"intern", "internship", "trainee", "стажер", "стажёр"}},
	{model.LevelJunior, []string{"junior", "jr", "entry level", "graduate", "младший"}},
	{model.LevelMid, []string{"middle", "mid-level", "mid level", "intermediate"}},
}

// InferLevel uses the provider's level when it is recognized and otherwise
// looks for seniority words in the title. Titles without any marker are
// treated as mid level.
func InferLevel(hint, title string) model.ExperienceLevel {
	if l := model.ExperienceLevel(strings.ToLower(strings.TrimSpace(hint))); l.Band() >= 0 {
		return l
	}

	lower := strings.ToLower(title)
	for _, lp := range levelPhrases {
		for _, p := range lp.phrases {
			if containsWord(lower, p) {
				return lp.level
			}
		}
	}
	return model.LevelMid
}

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

// ExtractSkills returns the vocabulary terms that occur in text as whole words.
func ExtractSkills(text string, vocabulary []string) []string {
	lower := strings.ToLower(text)
	var found []string
	for _, term := range vocabulary {
		term = strings.ToLower(strings.TrimSpace(term))
		if term != "" && containsWord(lower, term) {
			found = append(found, term)
		}
	}
	return model.SkillSet(found)
}

func containsWord(s, term string) bool {
	for offset := 0; offset < len(s); {
		idx := strings.Index(s[offset:], term)
		if idx < 0 {
			return false
		}
		start := offset + idx
		end := start + len(term)
		if boundaryBefore(s, start) && boundaryAfter(s, end) {
			return true
		}
		offset = start + 1
	}
	return false
}

func boundaryBefore(s string, i int) bool {
	if i == 0 {
		return true
	}
	r := rune(s[i-1])
	return !isWordRune(r)
}

func boundaryAfter(s string, i int) bool {
	if i >= len(s) {
		return true
	}
	r := rune(s[i])
	return !isWordRune(r) && r != '+' && r != '#'
}

func isWordRune(r rune) bool {
	return r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r))
}
