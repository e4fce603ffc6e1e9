// Package services – AnalysisService
//
// AnalysisService backs the stateless analysis endpoints: site scraping and
// ICP derivation, outlines, ICP queries, SERP rank checks, blog keyword
// plans, gap reports and multi-answer reports. Nothing here is persisted.
package services

import (
	"context"
	"strings"
	"sync"

	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/cases"

	"github.com/tbourn/go-icp-dashboard/internal/llm"
	"github.com/tbourn/go-icp-dashboard/internal/search"
	"github.com/tbourn/go-icp-dashboard/internal/serp"
)

// AnalysisService coordinates the scraper, the language model and the rank
// checker.
type AnalysisService struct {
	Scraper Scraper
	LLM     LanguageModel
	Ranker  RankChecker
}

// SiteAnalysis is the product description and ICPs of a site together with
// the scraped product markdown.
type SiteAnalysis struct {
	ProductDescription string    `json:"productDescription"`
	ICPs               []llm.ICP `json:"icps"`
	ProductMarkdown    string    `json:"productMarkdown"`
}

// ScrapeRequest selects between a single-page scrape and a site analysis.
type ScrapeRequest struct {
	URL          string
	BlogURL      string
	Mode         string // page|site
	OnlyMarkdown bool
}

// PageMode reports whether the request asks for page markdown only. This is
// the default whenever no blog URL is given.
func (r ScrapeRequest) PageMode() bool {
	return r.OnlyMarkdown || r.Mode == "page" || r.BlogURL == ""
}

// ScrapeResult holds exactly one of Markdown (page mode) or Site.
type ScrapeResult struct {
	Markdown *string
	Site     *SiteAnalysis
}

// RankResult is the citation status of a query on both engines.
type RankResult struct {
	Google serp.Result `json:"google"`
	Bing   serp.Result `json:"bing"`
}

// Plan is a blog keyword plan with its long-tails flattened and deduplicated.
type Plan struct {
	MustPhrases []string        `json:"mustPhrases"`
	Groups      []llm.PlanGroup `json:"groups"`
	FlatQueries []string        `json:"flatQueries"`
}

// Report is the multi-answer report for one query.
type Report struct {
	ChatGPTAnswer    string `json:"chatgptAnswer"`
	PerplexityAnswer string `json:"perplexityAnswer"`
	GoogleAIAnswer   string `json:"googleAIAnswer"`
	BrandMentioned   bool   `json:"brandMentioned"`
	IntentHigh       bool   `json:"intentHigh"`
	Performance      int    `json:"performance"`
}

func tracer() trace.Tracer { return otel.Tracer("services") }

// Keywords scrapes url (and blogURL for titles) and derives ICPs from it.
func (s *AnalysisService) Keywords(ctx context.Context, url, blogURL string) (*SiteAnalysis, error) {
	ctx, span := tracer().Start(ctx, "AnalysisService.Keywords",
		trace.WithAttributes(attribute.String("url", url), attribute.Bool("blog", blogURL != "")))
	defer span.End()

	site, err := s.Scraper.ScrapeSite(ctx, url, blogURL)
	if err != nil {
		return nil, noteUpstream("firecrawl", err)
	}
	a, err := s.LLM.AnalyseContent(ctx, site.ProductMarkdown, site.BlogTitles)
	if err != nil {
		return nil, noteUpstream("openai", err)
	}
	return &SiteAnalysis{
		ProductDescription: a.ProductDescription,
		ICPs:               a.ICPs,
		ProductMarkdown:    site.ProductMarkdown,
	}, nil
}

// Scrape returns page markdown or a full site analysis depending on req.
func (s *AnalysisService) Scrape(ctx context.Context, req ScrapeRequest) (*ScrapeResult, error) {
	if req.PageMode() {
		ctx, span := tracer().Start(ctx, "AnalysisService.ScrapePage",
			trace.WithAttributes(attribute.String("url", req.URL)))
		defer span.End()
		md, err := s.Scraper.ScrapePage(ctx, req.URL)
		if err != nil {
			return nil, noteUpstream("firecrawl", err)
		}
		return &ScrapeResult{Markdown: &md}, nil
	}
	site, err := s.Keywords(ctx, req.URL, req.BlogURL)
	if err != nil {
		return nil, err
	}
	return &ScrapeResult{Site: site}, nil
}

// Outline drafts a markdown outline for keyword. Long company context is
// narrowed to the paragraphs closest to the keyword.
func (s *AnalysisService) Outline(ctx context.Context, keyword, companyMarkdown string) (string, error) {
	ctx, span := tracer().Start(ctx, "AnalysisService.Outline",
		trace.WithAttributes(attribute.String("keyword", keyword)))
	defer span.End()

	md := search.Focus(companyMarkdown, keyword, llm.OutlineLimit)
	out, err := s.LLM.Outline(ctx, keyword, md)
	return out, noteUpstream("openai", err)
}

// Queries generates long-tail queries for one ICP. A description is
// appended to the ICP name as " — description".
func (s *AnalysisService) Queries(ctx context.Context, companyMarkdown, icpName, description string) ([]string, error) {
	ctx, span := tracer().Start(ctx, "AnalysisService.Queries",
		trace.WithAttributes(attribute.String("icp", icpName)))
	defer span.End()

	name := icpName
	if description != "" {
		name += " — " + description
	}
	md := search.Focus(companyMarkdown, icpName+" "+description, llm.QueriesLimit)
	qs, err := s.LLM.GenerateQueries(ctx, md, name)
	if err != nil {
		return nil, noteUpstream("openai", err)
	}
	return qs, nil
}

// Rank checks query against domain on Google and Bing concurrently. Either
// failure fails the whole check.
func (s *AnalysisService) Rank(ctx context.Context, query, domain string) (*RankResult, error) {
	ctx, span := tracer().Start(ctx, "AnalysisService.Rank",
		trace.WithAttributes(attribute.String("query", query), attribute.String("domain", domain)))
	defer span.End()

	res, err := rankBoth(ctx, s.Ranker, query, domain)
	return res, noteUpstream("serpapi", err)
}

func rankBoth(ctx context.Context, r RankChecker, query, domain string) (*RankResult, error) {
	var (
		wg         sync.WaitGroup
		out        RankResult
		gErr, bErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		out.Google, gErr = r.CheckGoogle(ctx, query, domain)
		rankOutcome("google", out.Google, gErr)
	}()
	go func() {
		defer wg.Done()
		out.Bing, bErr = r.CheckBing(ctx, query, domain)
		rankOutcome("bing", out.Bing, bErr)
	}()
	wg.Wait()
	if gErr != nil {
		return nil, gErr
	}
	if bErr != nil {
		return nil, bErr
	}
	return &out, nil
}

// BlogPlan derives a keyword plan from an article's markdown.
func (s *AnalysisService) BlogPlan(ctx context.Context, markdown string) (*Plan, error) {
	ctx, span := tracer().Start(ctx, "AnalysisService.BlogPlan")
	defer span.End()

	p, err := s.LLM.BlogPlan(ctx, markdown)
	if err != nil {
		return nil, noteUpstream("openai", err)
	}
	plan := FlattenPlan(p)
	return &plan, nil
}

// FlattenPlan adds the deduplicated union of every group's long-tails.
func FlattenPlan(p *llm.BlogPlan) Plan {
	out := Plan{MustPhrases: []string{}, Groups: []llm.PlanGroup{}, FlatQueries: []string{}}
	if p == nil {
		return out
	}
	if p.MustPhrases != nil {
		out.MustPhrases = p.MustPhrases
	}
	if p.Groups != nil {
		out.Groups = p.Groups
	}
	var flat []string
	for _, g := range p.Groups {
		for _, lt := range g.LongTails {
			if strings.TrimSpace(lt) != "" {
				flat = append(flat, lt)
			}
		}
	}
	if len(flat) > 0 {
		out.FlatQueries = lo.Uniq(flat)
	}
	return out
}

// GapReport summarises ranked and unranked queries into content ideas.
func (s *AnalysisService) GapReport(ctx context.Context, in llm.GapInput) (*llm.GapReport, error) {
	ctx, span := tracer().Start(ctx, "AnalysisService.GapReport",
		trace.WithAttributes(attribute.Int("ranked", len(in.Ranked)), attribute.Int("not_ranked", len(in.NotRanked))))
	defer span.End()

	r, err := s.LLM.GapReport(ctx, in)
	if err != nil {
		return nil, noteUpstream("openai", err)
	}
	return r, nil
}

// GenReport asks for three web-search answers to query concurrently and
// scores them. brand is matched case-insensitively in the first two answers.
func (s *AnalysisService) GenReport(ctx context.Context, query, link, brand string) (*Report, error) {
	ctx, span := tracer().Start(ctx, "AnalysisService.GenReport",
		trace.WithAttributes(attribute.String("query", query), attribute.Bool("link", link != "")))
	defer span.End()

	prompt := llm.AnswerPrompt(query, link)
	var (
		wg      sync.WaitGroup
		answers [3]string
		errs    [3]error
	)
	for i := range answers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			answers[i], errs[i] = s.LLM.Answer(ctx, prompt)
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return nil, noteUpstream("openai", err)
		}
	}

	r := &Report{
		ChatGPTAnswer:    answers[0],
		PerplexityAnswer: answers[1],
		GoogleAIAnswer:   answers[2],
		BrandMentioned:   mentions(answers[0]+"\n"+answers[1], brand),
		IntentHigh:       search.HighIntent(query),
	}
	r.Performance = search.Performance(search.PerformanceInput{
		Query:          query,
		Link:           link,
		Answers:        answers[:],
		BrandMentioned: r.BrandMentioned,
	})
	return r, nil
}

// mentions reports whether brand occurs in text under Unicode case folding.
func mentions(text, brand string) bool {
	if brand == "" {
		return false
	}
	fold := cases.Fold()
	return strings.Contains(fold.String(text), fold.String(brand))
}
