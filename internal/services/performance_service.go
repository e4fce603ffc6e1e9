// Package services – PerformanceService
//
// PerformanceService tracks published articles. For each blog it scrapes the
// article once, derives a keyword plan once, ranks every planned query on the
// search engines and keeps citation aggregates. A run is skipped while the
// stored results are fresh or another run holds the blog.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tbourn/go-icp-dashboard/internal/cache"
	"github.com/tbourn/go-icp-dashboard/internal/cycle"
	"github.com/tbourn/go-icp-dashboard/internal/domain"
	"github.com/tbourn/go-icp-dashboard/internal/observability"
	"github.com/tbourn/go-icp-dashboard/internal/repo"
)

// Pipeline defaults.
const (
	DefaultRankWorkers = 5
	DefaultFlushEvery  = 15
	DefaultFreshFor    = 7 * 24 * time.Hour
	// brandShare is the share of planned queries assumed to mention the brand
	// when it is cited.
	brandShare = 0.2
)

// Aggregates summarises a blog's channel hits.
type Aggregates struct {
	ChatGPTCitations        int   `json:"chatgptCitations"`
	PerplexityCitations     int   `json:"perplexityCitations"`
	GoogleFirstPage         int   `json:"googleFirstPage"`
	BrandMentionsChatGPT    int   `json:"brandMentionsChatGPT"`
	BrandMentionsPerplexity int   `json:"brandMentionsPerplexity"`
	UpdatedAt               int64 `json:"updatedAt"`
}

// BlogView is a tracked blog as returned to clients.
type BlogView struct {
	URL        string                 `json:"url"`
	Key        string                 `json:"key"`
	Processing bool                   `json:"processing"`
	ScrapedAt  *int64                 `json:"scrapedAt,omitempty"`
	Plan       *Plan                  `json:"plan,omitempty"`
	Serp       map[string]ChannelHits `json:"serp,omitempty"`
	Targets    map[string]bool        `json:"targets,omitempty"`
	Aggregates *Aggregates            `json:"aggregates,omitempty"`
}

// PerformanceService runs the performance-blog pipeline.
type PerformanceService struct {
	DB       *gorm.DB
	Analysis *AnalysisService
	// Guard, when set, is the cross-instance processing guard. The database
	// claim is always taken as well.
	Guard cache.Store

	Workers    int
	FlushEvery int
	FreshFor   time.Duration
	// RunTimeout bounds a background run started by Start.
	RunTimeout time.Duration

	now func() time.Time
}

func (s *PerformanceService) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

func (s *PerformanceService) freshFor() time.Duration {
	if s.FreshFor > 0 {
		return s.FreshFor
	}
	return DefaultFreshFor
}

// AddBlog starts tracking url for the user.
func (s *PerformanceService) AddBlog(ctx context.Context, username, rawURL string) (*BlogView, error) {
	u, err := normalizeURL(rawURL)
	if err != nil {
		return nil, err
	}
	b, err := repo.CreatePerformanceBlog(ctx, s.DB, username, cycle.SafeKey(u.String()), u.String())
	if errors.Is(err, repo.ErrDuplicate) {
		return nil, ErrBlogExists
	}
	if err != nil {
		return nil, err
	}
	return toBlogView(ctx, *b), nil
}

// List returns the user's tracked blogs.
func (s *PerformanceService) List(ctx context.Context, username string) ([]BlogView, error) {
	blogs, err := repo.ListPerformanceBlogs(ctx, s.DB, username)
	if err != nil {
		return nil, err
	}
	out := make([]BlogView, 0, len(blogs))
	for _, b := range blogs {
		out = append(out, *toBlogView(ctx, b))
	}
	return out, nil
}

// SetTarget flips the targeted flag of keyword on the blog at url. The flag
// is stored under SafeKey(keyword).
func (s *PerformanceService) SetTarget(ctx context.Context, username, rawURL, keyword string, targeted bool) error {
	u, err := normalizeURL(rawURL)
	if err != nil {
		return err
	}
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		b, err := repo.GetPerformanceBlog(ctx, tx, username, cycle.SafeKey(u.String()))
		if errors.Is(err, repo.ErrNotFound) {
			return ErrBlogNotFound
		}
		if err != nil {
			return err
		}
		targets := map[string]bool{}
		if len(b.Targets) > 0 {
			if err := json.Unmarshal(b.Targets, &targets); err != nil {
				return err
			}
		}
		targets[cycle.SafeKey(keyword)] = targeted
		raw, err := json.Marshal(targets)
		if err != nil {
			return err
		}
		return repo.UpdatePerformanceBlog(ctx, tx, b.ID, map[string]any{"targets": datatypes.JSON(raw)})
	})
}

// Start runs Process in the background, detached from the request but
// carrying its logger and trace.
func (s *PerformanceService) Start(ctx context.Context, username, url string) {
	ctx = context.WithoutCancel(ctx)
	go func() {
		if s.RunTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.RunTimeout)
			defer cancel()
		}
		if _, err := s.Process(ctx, username, url); err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Str("blog", url).Msg("performance pipeline failed")
		}
	}()
}

// Process runs the pipeline for one blog and reports whether it ran. The
// processing flag is cleared whatever the outcome.
func (s *PerformanceService) Process(ctx context.Context, username, rawURL string) (ran bool, err error) {
	u, err := normalizeURL(rawURL)
	if err != nil {
		return false, err
	}
	ctx, span := tracer().Start(ctx, "PerformanceService.Process",
		trace.WithAttributes(attribute.String("blog", u.String())))
	defer span.End()

	b, err := repo.GetPerformanceBlog(ctx, s.DB, username, cycle.SafeKey(u.String()))
	if errors.Is(err, repo.ErrNotFound) {
		return false, ErrBlogNotFound
	}
	if err != nil {
		return false, err
	}
	if b.Processing || s.fresh(b) {
		observability.BlogPipelineRuns.WithLabelValues("skipped").Inc()
		return false, nil
	}

	if s.Guard != nil {
		key := "perf:processing:" + b.ID
		ok, err := s.Guard.SetNX(ctx, key, username, s.guardTTL())
		if err != nil {
			return false, err
		}
		if !ok {
			observability.BlogPipelineRuns.WithLabelValues("skipped").Inc()
			return false, nil
		}
		defer func() { _ = s.Guard.Del(context.WithoutCancel(ctx), key) }()
	}

	claimed, err := repo.ClaimPerformanceBlog(ctx, s.DB, b.ID)
	if err != nil {
		return false, err
	}
	if !claimed {
		observability.BlogPipelineRuns.WithLabelValues("skipped").Inc()
		return false, nil
	}
	defer func() {
		if rerr := repo.ReleasePerformanceBlog(context.WithoutCancel(ctx), s.DB, b.ID); rerr != nil {
			zerolog.Ctx(ctx).Error().Err(rerr).Str("blog", b.URL).Msg("release processing flag")
		}
		result := "done"
		if err != nil {
			result = "failed"
		}
		observability.BlogPipelineRuns.WithLabelValues(result).Inc()
	}()

	return true, s.run(ctx, b, u.Hostname())
}

func (s *PerformanceService) run(ctx context.Context, b *domain.PerformanceBlog, host string) error {
	logger := zerolog.Ctx(ctx).With().Str("blog", b.URL).Logger()

	markdown := b.Markdown
	if markdown == "" {
		md, err := s.Analysis.Scraper.ScrapePage(ctx, b.URL)
		if err != nil {
			return noteUpstream("firecrawl", err)
		}
		markdown = md
		if err := repo.UpdatePerformanceBlog(ctx, s.DB, b.ID, map[string]any{
			"markdown":   markdown,
			"scraped_at": s.clock().UTC(),
		}); err != nil {
			return err
		}
	}

	plan, err := decodePlan(b.Plan)
	if err != nil {
		return err
	}
	if plan == nil {
		if plan, err = s.Analysis.BlogPlan(ctx, markdown); err != nil {
			return err
		}
		raw, err := json.Marshal(plan)
		if err != nil {
			return err
		}
		if err := repo.UpdatePerformanceBlog(ctx, s.DB, b.ID, map[string]any{"plan": datatypes.JSON(raw)}); err != nil {
			return err
		}
	}

	hits := map[string]ChannelHits{}
	if len(b.Serp) > 0 {
		if err := json.Unmarshal(b.Serp, &hits); err != nil {
			return err
		}
	}
	var missing []string
	for _, q := range plan.FlatQueries {
		if _, ok := hits[q]; !ok {
			missing = append(missing, q)
		}
	}

	domainName := host
	if d, err := siteDomain(b.URL); err == nil {
		domainName = d
	}
	flushEvery := s.FlushEvery
	if flushEvery < 1 {
		flushEvery = DefaultFlushEvery
	}
	workers := s.Workers
	if workers < 1 {
		workers = DefaultRankWorkers
	}
	since := 0
	rankPool(ctx, s.Analysis.Ranker, missing, domainName, workers, func(q string, h ChannelHits) {
		hits[q] = h
		since++
		if since >= flushEvery {
			since = 0
			if err := s.saveSerp(ctx, b.ID, hits); err != nil {
				logger.Warn().Err(err).Msg("flush serp results")
			}
		}
	})
	if err := ctx.Err(); err != nil {
		_ = s.saveSerp(context.WithoutCancel(ctx), b.ID, hits)
		return err
	}

	now := s.clock().UTC()
	agg := aggregate(hits, len(plan.FlatQueries), now)
	serpRaw, err := json.Marshal(hits)
	if err != nil {
		return err
	}
	aggRaw, err := json.Marshal(agg)
	if err != nil {
		return err
	}
	if err := repo.UpdatePerformanceBlog(ctx, s.DB, b.ID, map[string]any{
		"serp":          datatypes.JSON(serpRaw),
		"aggregates":    datatypes.JSON(aggRaw),
		"aggregated_at": now,
	}); err != nil {
		return err
	}
	logger.Info().
		Int("queries", len(plan.FlatQueries)).
		Int("ranked_now", len(missing)).
		Int("google_first_page", agg.GoogleFirstPage).
		Msg("performance blog analysed")
	return nil
}

func (s *PerformanceService) saveSerp(ctx context.Context, id string, hits map[string]ChannelHits) error {
	raw, err := json.Marshal(hits)
	if err != nil {
		return err
	}
	return repo.UpdatePerformanceBlog(ctx, s.DB, id, map[string]any{"serp": datatypes.JSON(raw)})
}

// fresh reports whether b has a plan, SERP results and aggregates younger
// than FreshFor.
func (s *PerformanceService) fresh(b *domain.PerformanceBlog) bool {
	if len(b.Plan) == 0 || len(b.Serp) == 0 || b.AggregatedAt == nil {
		return false
	}
	return s.clock().Sub(*b.AggregatedAt) < s.freshFor()
}

func (s *PerformanceService) guardTTL() time.Duration {
	if s.RunTimeout > 0 {
		return s.RunTimeout
	}
	return 30 * time.Minute
}

// RefreshStale re-runs the pipeline for up to limit blogs of any user whose
// aggregates are missing or older than FreshFor. It returns how many ran.
func (s *PerformanceService) RefreshStale(ctx context.Context, limit int) (int, error) {
	blogs, err := repo.ListStalePerformanceBlogs(ctx, s.DB, s.clock().UTC().Add(-s.freshFor()), limit)
	if err != nil {
		return 0, err
	}
	ran := 0
	for _, b := range blogs {
		if ctx.Err() != nil {
			return ran, ctx.Err()
		}
		ok, err := s.Process(ctx, b.Username, b.URL)
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("user", b.Username).Str("blog", b.URL).Msg("refresh failed")
			continue
		}
		if ok {
			ran++
		}
	}
	return ran, nil
}

func aggregate(hits map[string]ChannelHits, totalQueries int, now time.Time) Aggregates {
	var a Aggregates
	for _, h := range hits {
		if h.ChatGPT.Ranked {
			a.ChatGPTCitations++
		}
		if h.Perplexity.Ranked {
			a.PerplexityCitations++
		}
		if h.Google.Ranked {
			a.GoogleFirstPage++
		}
	}
	proposed := int(math.Round(float64(totalQueries) * brandShare))
	a.BrandMentionsChatGPT = clampMentions(a.ChatGPTCitations, proposed)
	a.BrandMentionsPerplexity = clampMentions(a.PerplexityCitations, proposed)
	a.UpdatedAt = now.UnixMilli()
	return a
}

// clampMentions bounds brand mentions by the citation count.
func clampMentions(citations, proposed int) int {
	if citations == 0 || proposed < 0 {
		return 0
	}
	return min(citations, proposed)
}

func toBlogView(ctx context.Context, b domain.PerformanceBlog) *BlogView {
	v := &BlogView{URL: b.URL, Key: b.Key, Processing: b.Processing}
	if b.ScrapedAt != nil {
		ms := b.ScrapedAt.UnixMilli()
		v.ScrapedAt = &ms
	}
	logger := zerolog.Ctx(ctx)
	if p, err := decodePlan(b.Plan); err != nil {
		logger.Warn().Err(err).Str("blog", b.URL).Msg("undecodable plan")
	} else {
		v.Plan = p
	}
	decode := func(raw datatypes.JSON, into any, what string) {
		if len(raw) == 0 || string(raw) == "null" {
			return
		}
		if err := json.Unmarshal(raw, into); err != nil {
			logger.Warn().Err(err).Str("blog", b.URL).Msgf("undecodable %s", what)
		}
	}
	decode(b.Serp, &v.Serp, "serp")
	decode(b.Targets, &v.Targets, "targets")
	decode(b.Aggregates, &v.Aggregates, "aggregates")
	return v
}
