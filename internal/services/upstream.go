package services

import (
	"context"

	"github.com/tbourn/go-icp-dashboard/internal/llm"
	"github.com/tbourn/go-icp-dashboard/internal/observability"
	"github.com/tbourn/go-icp-dashboard/internal/scrape"
	"github.com/tbourn/go-icp-dashboard/internal/serp"
)

// Scraper turns pages into markdown. Implemented by *scrape.Client.
type Scraper interface {
	ScrapePage(ctx context.Context, url string) (string, error)
	ScrapeSite(ctx context.Context, url, blogURL string) (*scrape.Site, error)
}

// LanguageModel covers the model-backed operations. Implemented by
// *llm.Client.
type LanguageModel interface {
	AnalyseContent(ctx context.Context, markdown string, blogTitles []string) (*llm.Analysis, error)
	GenerateQueries(ctx context.Context, companyMarkdown, icpName string) ([]string, error)
	Outline(ctx context.Context, keyword, companyMarkdown string) (string, error)
	BlogPlan(ctx context.Context, markdown string) (*llm.BlogPlan, error)
	GapReport(ctx context.Context, in llm.GapInput) (*llm.GapReport, error)
	Answer(ctx context.Context, prompt string) (string, error)
}

// RankChecker looks queries up on search engines. Implemented by
// *serp.Client.
type RankChecker interface {
	CheckGoogle(ctx context.Context, query, domain string) (serp.Result, error)
	CheckBing(ctx context.Context, query, domain string) (serp.Result, error)
}

var (
	_ Scraper       = (*scrape.Client)(nil)
	_ LanguageModel = (*llm.Client)(nil)
	_ RankChecker   = (*serp.Client)(nil)
)

// noteUpstream records a failed upstream call and returns err unchanged.
func noteUpstream(upstream string, err error) error {
	if err == nil {
		return nil
	}
	kind := "error"
	if IsTimeout(err) {
		kind = "timeout"
	}
	observability.UpstreamErrors.WithLabelValues(upstream, kind).Inc()
	return err
}

// rankOutcome labels a rank lookup for metrics.
func rankOutcome(engine string, r serp.Result, err error) {
	outcome := "unranked"
	switch {
	case err != nil:
		outcome = "error"
	case r.Ranked:
		outcome = "ranked"
	}
	observability.RankChecks.WithLabelValues(engine, outcome).Inc()
}
