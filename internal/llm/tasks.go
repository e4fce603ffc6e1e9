package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// Input limits, in runes, for the markdown sent with each request kind.
const (
	AnalyseLimit   = 30000
	QueriesLimit   = 15000
	OutlineLimit   = 12000
	BlogPlanLimit  = 30000
	GapReportLimit = 20000
)

// ICP is one ideal customer profile with the searches it would run.
type ICP struct {
	Name     string   `json:"name"`
	Problems []string `json:"problems"`
}

// Analysis is the structured result of AnalyseContent.
type Analysis struct {
	ProductDescription string `json:"productDescription"`
	ICPs               []ICP  `json:"icps"`
}

// PlanGroup is one must-phrase and its long-tail queries.
type PlanGroup struct {
	Must      string   `json:"must"`
	LongTails []string `json:"longTails"`
}

// BlogPlan is the keyword plan derived from a published article.
type BlogPlan struct {
	MustPhrases []string    `json:"mustPhrases"`
	Groups      []PlanGroup `json:"groups"`
}

// GapICP is a selected ICP and its queries, as passed to GapReport.
type GapICP struct {
	Name    string   `json:"name"`
	Queries []string `json:"queries"`
}

// GapInput collects what GapReport needs.
type GapInput struct {
	CompanyMarkdown string
	SelectedICPs    []GapICP
	Ranked          []string
	NotRanked       []string
}

// Idea is one content suggestion in a gap report.
type Idea struct {
	Title   string   `json:"title"`
	Type    string   `json:"type"`
	Angle   string   `json:"angle"`
	Outline []string `json:"outline"`
}

// GapReport summarises ranked and unranked queries with content ideas.
type GapReport struct {
	SummaryRanked string `json:"summaryRanked"`
	SummaryGap    string `json:"summaryGap"`
	Ideas         []Idea `json:"ideas"`
}

// AnalyseContent derives a product description and ICP keyword sets from a
// site's markdown and its blog titles.
func (c *Client) AnalyseContent(ctx context.Context, markdown string, blogTitles []string) (*Analysis, error) {
	user := fmt.Sprintf("\n## PRODUCT / ABOUT MARKDOWN\n%s\n\n## BLOG TITLES\n%s\n",
		clip(markdown, AnalyseLimit), strings.Join(blogTitles, "\n"))

	out, err := c.complete(ctx, "analyse", c.prompts.Analyse, user, chatOptions{temperature: temp(0.3), jsonMode: true})
	if err != nil {
		return nil, err
	}
	if !gjson.Valid(out) || !gjson.Get(out, "productDescription").Exists() || !gjson.Get(out, "icps").IsArray() {
		return nil, fmt.Errorf("%w: analyse", ErrBadResponse)
	}
	var a Analysis
	if err := json.Unmarshal([]byte(out), &a); err != nil {
		return nil, fmt.Errorf("%w: analyse: %v", ErrBadResponse, err)
	}
	for i := range a.ICPs {
		if a.ICPs[i].Problems == nil {
			a.ICPs[i].Problems = []string{}
		}
	}
	if a.ICPs == nil {
		a.ICPs = []ICP{}
	}
	return &a, nil
}

// GenerateQueries asks for long-tail queries an ICP would search for.
// icpName may already carry a description suffix.
func (c *Client) GenerateQueries(ctx context.Context, companyMarkdown, icpName string) ([]string, error) {
	user := fmt.Sprintf("\nCompany info:\n<<<%s>>>\n\nICP: %s\nGive 6-8 ultra-specific long-tail queries this ICP would Google.",
		clip(companyMarkdown, QueriesLimit), icpName)

	out, err := c.complete(ctx, "queries", c.prompts.Queries, user, chatOptions{jsonMode: true})
	if err != nil {
		return nil, err
	}
	q := gjson.Get(out, "queries")
	if !gjson.Valid(out) || !q.IsArray() {
		return nil, fmt.Errorf("%w: queries", ErrBadResponse)
	}
	queries := []string{}
	q.ForEach(func(_, v gjson.Result) bool {
		if s := strings.TrimSpace(v.String()); s != "" {
			queries = append(queries, s)
		}
		return true
	})
	return queries, nil
}

// Outline returns a markdown outline for a blog post targeting keyword.
func (c *Client) Outline(ctx context.Context, keyword, companyMarkdown string) (string, error) {
	user := fmt.Sprintf("Company context (may help):\n<<<%s>>>\n\nKeyword: \"%s\"",
		clip(companyMarkdown, OutlineLimit), keyword)
	return c.complete(ctx, "outline", c.prompts.Outline, user, chatOptions{temperature: temp(0.3)})
}

// BlogPlan derives must-have phrases and long-tail queries from an article.
// An empty model reply yields an empty plan.
func (c *Client) BlogPlan(ctx context.Context, markdown string) (*BlogPlan, error) {
	out, err := c.complete(ctx, "blog plan", c.prompts.BlogPlan, clip(markdown, BlogPlanLimit), chatOptions{temperature: temp(0.3), jsonMode: true})
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(out) == "" {
		out = `{"mustPhrases":[],"groups":[]}`
	}
	var p BlogPlan
	if err := json.Unmarshal([]byte(out), &p); err != nil {
		return nil, fmt.Errorf("%w: blog plan: %v", ErrBadResponse, err)
	}
	if p.MustPhrases == nil {
		p.MustPhrases = []string{}
	}
	if p.Groups == nil {
		p.Groups = []PlanGroup{}
	}
	return &p, nil
}

// GapReport summarises ranking gaps and proposes five content ideas.
func (c *Client) GapReport(ctx context.Context, in GapInput) (*GapReport, error) {
	icps := in.SelectedICPs
	if icps == nil {
		icps = []GapICP{}
	}
	sel, err := json.MarshalIndent(icps, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("gap report: %w", err)
	}
	user := fmt.Sprintf("\nCOMPANY MARKDOWN:\n<<<%s>>>\n\nSELECTED ICPs & QUERIES:\n%s\n\nRANKED QUERIES:\n%s\n\nNOT-RANKED QUERIES:\n%s\n\nGive exactly 5 detailed content ideas.",
		clip(in.CompanyMarkdown, GapReportLimit), sel,
		strings.Join(in.Ranked, "\n"), strings.Join(in.NotRanked, "\n"))

	out, err := c.complete(ctx, "gap report", c.prompts.GapReport, user, chatOptions{jsonMode: true})
	if err != nil {
		return nil, err
	}
	var r GapReport
	if err := json.Unmarshal([]byte(out), &r); err != nil {
		return nil, fmt.Errorf("%w: gap report: %v", ErrBadResponse, err)
	}
	if r.Ideas == nil {
		r.Ideas = []Idea{}
	}
	return &r, nil
}

// AnswerPrompt builds the web-search prompt for query, optionally asking
// for link to be cited.
func AnswerPrompt(query, link string) string {
	how := "using reputable sources you find"
	if link != "" {
		how = "and cite this exact page once in brackets: " + link
	}
	return fmt.Sprintf("Answer the user query below %s.\n\nUser query: \"%s\"", how, query)
}

// Answer runs prompt through the Responses API with web search enabled.
func (c *Client) Answer(ctx context.Context, prompt string) (string, error) {
	return c.respond(ctx, "answer", prompt)
}
