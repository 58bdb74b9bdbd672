package normalize

import (
	"sort"
	"strings"
	"unicode"

	"github.com/spigell/jobradar/internal/model"
)

// TitleSimilarity is the minimum token Jaccard for two titles at the same
// company to count as one posting.
const TitleSimilarity = 0.8

var companySuffixes = map[string]struct{}{
	"inc": {}, "llc": {}, "ltd": {}, "gmbh": {}, "corp": {}, "corporation": {},
	"co": {}, "plc": {}, "ag": {}, "sa": {}, "ooo": {}, "limited": {}, "company": {},
}

// Merge collapses jobs that share an id or describe the same posting. Every
// cluster keeps its most complete record (ties go to the latest FetchedAt).
// A cluster whose members agree on one id keeps it; a cluster joined by
// similarity is renamed to the content id of its record. AliasIDs collects
// every member id and content id, so the notification ledger recognises the
// posting whichever providers returned it in a run. The result is sorted by
// id and Merge is idempotent.
func Merge(jobs []model.Job) []model.Job {
	if len(jobs) == 0 {
		return nil
	}

	parent := make([]int, len(jobs))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[rb] = ra
		}
	}

	keys := make([]similarityKey, len(jobs))
	for i := range jobs {
		keys[i] = keyOf(jobs[i])
	}

	for i := 0; i < len(jobs); i++ {
		for j := i + 1; j < len(jobs); j++ {
			if jobs[i].ID == jobs[j].ID || samePosting(keys[i], keys[j]) {
				union(i, j)
			}
		}
	}

	clusters := make(map[int][]int)
	for i := range jobs {
		root := find(i)
		clusters[root] = append(clusters[root], i)
	}

	out := make([]model.Job, 0, len(clusters))
	for _, members := range clusters {
		best := members[0]
		ids := make(map[string]struct{})
		for _, m := range members {
			if better(jobs[m], jobs[best]) {
				best = m
			}
			ids[jobs[m].ID] = struct{}{}
			ids[ContentID(jobs[m])] = struct{}{}
			for _, alias := range jobs[m].AliasIDs {
				ids[alias] = struct{}{}
			}
		}

		merged := jobs[best]
		if !sameID(jobs, members) {
			merged.ID = ContentID(merged)
		}
		delete(ids, merged.ID)
		delete(ids, "")

		merged.AliasIDs = nil
		for id := range ids {
			merged.AliasIDs = append(merged.AliasIDs, id)
		}
		sort.Strings(merged.AliasIDs)
		out = append(out, merged)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func sameID(jobs []model.Job, members []int) bool {
	for _, m := range members[1:] {
		if jobs[m].ID != jobs[members[0]].ID {
			return false
		}
	}
	return true
}

// ContentID is the id a posting gets from its title, company and location
// alone, independent of the provider that listed it.
func ContentID(j model.Job) string {
	key := j.DedupKey
	if key == "" {
		key = ContentKey(j.Title, j.Company, j.Location)
	}
	return hashID("content", key)
}

func better(a, b model.Job) bool {
	ca, cb := a.Completeness(), b.Completeness()
	if ca != cb {
		return ca > cb
	}
	if !a.FetchedAt.Equal(b.FetchedAt) {
		return a.FetchedAt.After(b.FetchedAt)
	}
	// Deterministic choice between otherwise equal records.
	return a.SourceProvider < b.SourceProvider
}

type similarityKey struct {
	title    string
	tokens   map[string]struct{}
	company  string
	location string
	remote   bool
}

func keyOf(j model.Job) similarityKey {
	tokens := tokenize(j.Title)
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return similarityKey{
		title:    strings.Join(tokens, " "),
		tokens:   set,
		company:  companyKey(j.Company),
		location: strings.Join(tokenize(j.Location), " "),
		remote:   j.Remote == model.RemoteFull,
	}
}

func samePosting(a, b similarityKey) bool {
	if a.company == "" || a.company != b.company {
		return false
	}
	if a.title != b.title && jaccard(a.tokens, b.tokens) < TitleSimilarity {
		return false
	}
	return a.location == "" || b.location == "" || a.location == b.location || a.remote || b.remote
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	inter := 0
	for t := range a {
		if _, ok := b[t]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// ContentKey identifies a posting by normalized title, company and location.
func ContentKey(title, company, location string) string {
	return strings.Join([]string{
		strings.Join(tokenize(title), " "),
		companyKey(company),
		strings.Join(tokenize(location), " "),
	}, "|")
}

func companyKey(company string) string {
	tokens := tokenize(company)
	for len(tokens) > 1 {
		if _, ok := companySuffixes[tokens[len(tokens)-1]]; !ok {
			break
		}
		tokens = tokens[:len(tokens)-1]
	}
	return strings.Join(tokens, " ")
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '+' && r != '#'
	})
}
