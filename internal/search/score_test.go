package search

import "testing"

func TestHighIntent(t *testing.T) {
	for q, want := range map[string]bool{
		"best crm for startups":        true,
		"HubSpot vs Salesforce":        true,
		"crm pricing comparison":       true,
		"what is a crm":                false,
		"how to clean a customer list": false,
		"marketing agency near me":     true,
		"":                             false,
	} {
		if got := HighIntent(q); got != want {
			t.Errorf("HighIntent(%q)=%v want %v", q, got, want)
		}
	}
}

func TestPerformance(t *testing.T) {
	base := PerformanceInput{Query: "crm pricing", Answers: []string{"unrelated", "text"}}
	if got := Performance(base); got != MinPerformance {
		t.Fatalf("no signal: got %d", got)
	}

	full := PerformanceInput{
		Query:          "crm pricing",
		Link:           "https://acme.io/pricing",
		Answers:        []string{"CRM Pricing at Acme [https://acme.io/pricing]", "Acme is cheap"},
		BrandMentioned: true,
	}
	if got := Performance(full); got != MaxPerformance {
		t.Fatalf("all signals: got %d", got)
	}

	half := PerformanceInput{Query: "crm pricing", Answers: []string{"a crm"}}
	if got := Performance(half); got != 70 {
		t.Fatalf("half coverage: got %d want 70", got)
	}

	for _, in := range []PerformanceInput{base, full, half, {}} {
		if p := Performance(in); p < MinPerformance || p > MaxPerformance {
			t.Fatalf("out of range: %d", p)
		}
	}
}
