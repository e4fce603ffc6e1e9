package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"github.com/tbourn/go-icp-dashboard/internal/cycle"
	"github.com/tbourn/go-icp-dashboard/internal/llm"
	"github.com/tbourn/go-icp-dashboard/internal/repo"
	"github.com/tbourn/go-icp-dashboard/internal/serp"
)

func newSourceSvc(t *testing.T, m *stubLLM, r *stubRanker) *SourceService {
	t.Helper()
	return &SourceService{
		DB:       newSvcDB(t),
		Analysis: &AnalysisService{Scraper: &stubScraper{}, LLM: m, Ranker: r},
		Workers:  3,
	}
}

func TestAddCompetitor_RanksDedupedProblems(t *testing.T) {
	var problems []string
	for i := 0; i < 50; i++ {
		problems = append(problems, fmt.Sprintf("problem %02d", i))
	}
	m := &stubLLM{analysis: &llm.Analysis{ICPs: []llm.ICP{
		{Name: "A", Problems: append([]string{"crm onboarding", " "}, problems[:20]...)},
		{Name: "B", Problems: append([]string{"crm onboarding"}, problems...)},
	}}}
	r := &stubRanker{google: []string{"onboarding"}, bing: []string{"problem 01"}}
	s := newSourceSvc(t, m, r)
	ctx := context.Background()

	c, err := s.AddCompetitor(ctx, "u1", "https://www.Rival.com/pricing")
	if err != nil {
		t.Fatalf("AddCompetitor: %v", err)
	}
	if c.Domain != "rival.com" {
		t.Fatalf("domain = %q", c.Domain)
	}
	if len(c.Rows) != MaxCompetitorQueries {
		t.Fatalf("rows = %d, want %d", len(c.Rows), MaxCompetitorQueries)
	}
	first := c.Rows[0]
	if kw, _ := first.Keyword.Normalize(); kw != "crm onboarding" {
		t.Fatalf("first row = %q", kw)
	}
	if !first.Google.Ranked || !first.Perplexity.Ranked || first.ChatGPT.Ranked {
		t.Fatalf("google hit must map to google+perplexity only: %+v", first)
	}
	if first.Ranked == nil || !*first.Ranked || first.URL == nil {
		t.Fatalf("ranked summary missing: %+v", first)
	}
	second := c.Rows[2] // "problem 01"
	if !second.ChatGPT.Ranked || second.Google.Ranked {
		t.Fatalf("bing hit must map to chatgpt: %+v", second)
	}
	if got := r.calls.Load(); got != 2*MaxCompetitorQueries {
		t.Fatalf("rank calls = %d", got)
	}

	if _, err := s.AddCompetitor(ctx, "u1", "rival.com"); !errors.Is(err, ErrCompetitorExists) {
		t.Fatalf("want ErrCompetitorExists, got %v", err)
	}
}

func TestAddCompetitor_RankFailureLeavesRowUnranked(t *testing.T) {
	m := &stubLLM{analysis: &llm.Analysis{ICPs: []llm.ICP{{Name: "A", Problems: []string{"crm a", "crm b"}}}}}
	r := &stubRanker{google: []string{"crm"}, fail: map[string]error{"crm b": serp.ErrTimeout}}
	s := newSourceSvc(t, m, r)

	c, err := s.AddCompetitor(context.Background(), "u1", "rival.com")
	if err != nil {
		t.Fatalf("AddCompetitor: %v", err)
	}
	if !c.Rows[0].Google.Ranked {
		t.Fatalf("crm a should rank: %+v", c.Rows[0])
	}
	if c.Rows[1].Google.Ranked || c.Rows[1].URL != nil || *c.Rows[1].Ranked {
		t.Fatalf("failed lookup should be unranked: %+v", c.Rows[1])
	}
}

func TestAddCompetitor_InvalidInput(t *testing.T) {
	s := newSourceSvc(t, &stubLLM{}, &stubRanker{})
	ctx := context.Background()
	if _, err := s.AddCompetitor(ctx, "u1", ""); !errors.Is(err, ErrInvalidURL) {
		t.Fatalf("empty url: %v", err)
	}
	if _, err := s.AddCompetitor(ctx, "u1", "ftp://rival.com"); !errors.Is(err, ErrInvalidURL) {
		t.Fatalf("ftp url: %v", err)
	}
}

func TestSetCompetitorTarget_AllShapes(t *testing.T) {
	s := newSourceSvc(t, &stubLLM{}, &stubRanker{})
	ctx := context.Background()
	rows := `[
		{"keyword":"plain kw","targeted":false},
		{"keyword":{"text":"text kw"},"targeted":true},
		{"keyword":{"value":"value kw"},"targeted":true},
		{"keyword":{"label":"odd kw"},"targeted":true}
	]`
	if _, err := repo.CreateCompetitor(ctx, s.DB, "u1", "rival.com", "https://rival.com", datatypes.JSON(rows)); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if err := s.SetCompetitorTarget(ctx, "u1", "rival.com", "plain kw", true); err != nil {
		t.Fatalf("SetCompetitorTarget: %v", err)
	}
	got := s.Targets(ctx, "u1")
	want := []string{"plain kw", "text kw", "value kw"}
	if !slices.Equal(got, want) {
		t.Fatalf("targets = %v, want %v", got, want)
	}

	// Stored shapes survive the rewrite.
	c, err := repo.GetCompetitor(ctx, s.DB, "u1", "rival.com")
	if err != nil {
		t.Fatal(err)
	}
	for _, frag := range []string{`{"text":"text kw"}`, `{"value":"value kw"}`, `{"label":"odd kw"}`} {
		if !strings.Contains(string(c.Rows), frag) {
			t.Fatalf("rows lost %s: %s", frag, c.Rows)
		}
	}

	if err := s.SetCompetitorTarget(ctx, "u1", "rival.com", "missing", true); !errors.Is(err, ErrKeywordNotFound) {
		t.Fatalf("missing keyword: %v", err)
	}
	if err := s.SetCompetitorTarget(ctx, "u1", "other.com", "x", true); !errors.Is(err, ErrCompetitorNotFound) {
		t.Fatalf("missing competitor: %v", err)
	}
}

func TestICPs_ReplaceAndTarget(t *testing.T) {
	s := newSourceSvc(t, &stubLLM{}, &stubRanker{})
	ctx := context.Background()

	err := s.ReplaceICPs(ctx, "u1", []cycle.ICPGroup{
		{Name: "Founders", Rows: []cycle.ICPRow{{Keyword: " best crm "}, {Keyword: ""}, {Keyword: "crm pricing", Targeted: true}}},
		{Name: "  "},
	})
	if err != nil {
		t.Fatalf("ReplaceICPs: %v", err)
	}
	groups, err := s.ICPs(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(groups) != 1 || len(groups[0].Rows) != 2 || groups[0].Rows[0].Keyword != "best crm" {
		t.Fatalf("groups = %+v", groups)
	}

	if err := s.SetICPTarget(ctx, "u1", "Founders", "best crm", true); err != nil {
		t.Fatalf("SetICPTarget: %v", err)
	}
	if got := s.Targets(ctx, "u1"); !slices.Equal(got, []string{"best crm", "crm pricing"}) {
		t.Fatalf("targets = %v", got)
	}
	if err := s.SetICPTarget(ctx, "u1", "Nobody", "best crm", true); !errors.Is(err, ErrGroupNotFound) {
		t.Fatalf("unknown group: %v", err)
	}
	if err := s.SetICPTarget(ctx, "u1", "Founders", "nope", true); !errors.Is(err, ErrKeywordNotFound) {
		t.Fatalf("unknown keyword: %v", err)
	}
}

func TestTargets_DedupAcrossSources(t *testing.T) {
	s := newSourceSvc(t, &stubLLM{}, &stubRanker{})
	ctx := context.Background()

	if err := s.ReplaceICPs(ctx, "u1", []cycle.ICPGroup{
		{Name: "A", Rows: []cycle.ICPRow{{Keyword: "best crm", Targeted: true}}},
	}); err != nil {
		t.Fatal(err)
	}
	if err := s.SetReportTarget(ctx, "u1", "best crm", nil); err != nil {
		t.Fatal(err)
	}
	off := false
	if err := s.SetReportTarget(ctx, "u1", "crm.pricing", &off); err != nil {
		t.Fatal(err)
	}
	if err := s.SetReportTarget(ctx, "u1", "Best CRM", nil); err != nil {
		t.Fatal(err)
	}

	got := s.Targets(ctx, "u1")
	want := []string{"best crm", "Best CRM"}
	if !slices.Equal(got, want) {
		t.Fatalf("targets = %v, want %v (exact-string dedup)", got, want)
	}
}

func TestWarnKeywordShape_EmitsValidJSON(t *testing.T) {
	cases := []struct {
		name string
		raw  []byte
		want any
	}{
		{"object", []byte(`{"kw":1}`), map[string]any{"kw": float64(1)}},
		{"nil", nil, ""},
		{"empty", []byte{}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := zerolog.New(&buf)
			warnKeywordShape(&logger, "acme.io", tc.raw)

			var line map[string]any
			if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
				t.Fatalf("log line is not JSON: %v: %s", err, buf.String())
			}
			if line["competitor"] != "acme.io" {
				t.Fatalf("competitor=%v", line["competitor"])
			}
			if fmt.Sprint(line["keyword"]) != fmt.Sprint(tc.want) {
				t.Fatalf("keyword=%v want %v", line["keyword"], tc.want)
			}
		})
	}
}
