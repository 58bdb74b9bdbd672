package model

import "testing"

func TestLabelFor(t *testing.T) {
	tests := []struct {
		score  float64
		expect MatchLabel
	}{
		{score: 92, expect: LabelExcellent},
		{score: 85, expect: LabelExcellent},
		{score: 84.9, expect: LabelGood},
		{score: 70, expect: LabelGood},
		{score: 60, expect: LabelPotential},
		{score: 59.99, expect: LabelWeak},
	}

	for _, tt := range tests {
		if got := LabelFor(tt.score); got != tt.expect {
			t.Fatalf("score %.2f: expected %s, got %s", tt.score, tt.expect, got)
		}
	}
}

func TestParseEmploymentType(t *testing.T) {
	tests := map[string]EmploymentType{
		"Full-Time": EmploymentFullTime,
		"full":      EmploymentFullTime,
		"contract":  EmploymentContract,
		"part time": EmploymentPartTime,
		"probation": EmploymentTemporary,
		"gig":       EmploymentUnknown,
	}

	for in, want := range tests {
		if got := ParseEmploymentType(in); got != want {
			t.Fatalf("%q: expected %s, got %s", in, want, got)
		}
	}
}

func TestSkillSet(t *testing.T) {
	got := SkillSet([]string{"Go", " kubernetes"}, []string{"go", "", "AWS"})
	want := []string{"aws", "go", "kubernetes"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestExperienceBands(t *testing.T) {
	if LevelSenior.Band()-LevelMid.Band() != 1 {
		t.Fatalf("expected adjacent bands")
	}
	if ExperienceLevel("Senior").Band() != LevelSenior.Band() {
		t.Fatalf("band lookup should be case-insensitive")
	}
	if ExperienceLevel("wizard").Band() != -1 {
		t.Fatalf("unknown level should map to -1")
	}
}

func TestSourceEnabled(t *testing.T) {
	p := Preferences{}
	if !p.SourceEnabled("adzuna") {
		t.Fatalf("empty list should enable all sources")
	}
	p.EnabledSources = []string{"Indeed"}
	if p.SourceEnabled("adzuna") || !p.SourceEnabled("indeed") {
		t.Fatalf("unexpected source filtering")
	}
}

func TestCompleteness(t *testing.T) {
	sparse := Job{Title: "Go Developer"}
	rich := Job{Title: "Go Developer", Company: "Acme", SalaryMin: Float(100), Skills: []string{"go"}}
	if rich.Completeness() <= sparse.Completeness() {
		t.Fatalf("expected richer record to be more complete")
	}
}
