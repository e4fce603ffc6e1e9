package cycle

import (
	"encoding/json"
	"reflect"
	"testing"
)

func competitorRows(t *testing.T, raw string) []CompetitorRow {
	t.Helper()
	var rows []CompetitorRow
	if err := json.Unmarshal([]byte(raw), &rows); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return rows
}

func TestSafeKey(t *testing.T) {
	got := SafeKey("https://a.b/c#d$e[f]")
	if got != "https:__a_b_c_d_e_f_" {
		t.Fatalf("SafeKey=%q", got)
	}
}

func TestParseKeywordValue(t *testing.T) {
	cases := []struct {
		raw  string
		kind KeywordKind
		text string
	}{
		{`"plain"`, KindString, "plain"},
		{`{"text":"from text"}`, KindText, "from text"},
		{`{"value":"from value"}`, KindValue, "from value"},
		{`{"text":"t","value":"v"}`, KindText, "t"},
		{`{"label":"x"}`, KindUnknown, ""},
		{`42`, KindUnknown, ""},
		{`null`, KindUnknown, ""},
	}
	for _, tc := range cases {
		kv := ParseKeywordValue([]byte(tc.raw))
		if kv.Kind != tc.kind || kv.Text != tc.text {
			t.Fatalf("%s: got kind=%d text=%q", tc.raw, kv.Kind, kv.Text)
		}
		b, _ := json.Marshal(kv)
		if string(b) != tc.raw {
			t.Fatalf("%s: raw not preserved, got %s", tc.raw, b)
		}
	}
}

func TestAggregate_UnionDedupAndShapes(t *testing.T) {
	var warned []string
	src := Sources{
		ICPs: []ICPGroup{
			{Name: "Founders", Rows: []ICPRow{
				{Keyword: "best crm for startups", Targeted: true},
				{Keyword: "untargeted", Targeted: false},
			}},
		},
		Competitors: map[string][]CompetitorRow{
			"rival.com": competitorRows(t, `[
				{"keyword":"best crm for startups","targeted":true},
				{"keyword":{"text":"crm pricing comparison"},"targeted":true},
				{"keyword":{"value":"crm for agencies"},"targeted":true},
				{"keyword":{"label":"broken"},"targeted":true},
				{"keyword":{"text":"ignored"},"targeted":false}
			]`),
		},
		PerformanceBlogs: map[string]PerformanceTargets{
			"blog": {
				FlatQueries: []string{"how to pick a crm.", "not targeted"},
				Targets:     map[string]bool{"how to pick a crm_": true},
			},
		},
		ReportTargets: map[string]ReportTarget{
			"r1": {Keyword: "legacy implicit"},
			"r2": {Keyword: "legacy off", Targeted: ptr(false)},
			"r3": {Keyword: "crm pricing comparison", Targeted: ptr(true)},
		},
	}

	got := Aggregate(src, func(domain string, raw []byte) {
		warned = append(warned, domain+":"+string(raw))
	})
	want := []string{
		"best crm for startups",
		"crm pricing comparison",
		"crm for agencies",
		"legacy implicit",
		"how to pick a crm.",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v\nwant %v", got, want)
	}
	if len(warned) != 1 || warned[0] != `rival.com:{"label":"broken"}` {
		t.Fatalf("warnings=%v", warned)
	}
}

func TestAggregate_EmptySources(t *testing.T) {
	if got := Aggregate(Sources{}, nil); len(got) != 0 {
		t.Fatalf("expected empty, got %v", got)
	}
}
