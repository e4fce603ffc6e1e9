package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-icp-dashboard/internal/llm"
	"github.com/tbourn/go-icp-dashboard/internal/repo"
	"github.com/tbourn/go-icp-dashboard/internal/scrape"
	"github.com/tbourn/go-icp-dashboard/internal/serp"
)

// ---------- test helpers ----------

func newSvcDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Exec("PRAGMA foreign_keys=ON;")
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func strp(s string) *string { return &s }

// ---------- upstream stubs ----------

type stubScraper struct {
	pages     map[string]string
	site      *scrape.Site
	err       error
	pageCalls atomic.Int32
	siteCalls atomic.Int32
	lastBlog  string
}

func (s *stubScraper) ScrapePage(_ context.Context, url string) (string, error) {
	s.pageCalls.Add(1)
	if s.err != nil {
		return "", s.err
	}
	return s.pages[url], nil
}

func (s *stubScraper) ScrapeSite(_ context.Context, url, blogURL string) (*scrape.Site, error) {
	s.siteCalls.Add(1)
	s.lastBlog = blogURL
	if s.err != nil {
		return nil, s.err
	}
	if s.site != nil {
		return s.site, nil
	}
	return &scrape.Site{ProductMarkdown: "# " + url, BlogTitles: []string{}}, nil
}

type stubLLM struct {
	analysis  *llm.Analysis
	queries   []string
	outline   string
	plan      *llm.BlogPlan
	gap       *llm.GapReport
	answers   []string
	err       error
	planCalls atomic.Int32

	mu         sync.Mutex
	lastTitles []string
	lastICP    string
	lastPrompt string
	answerIdx  int
}

func (s *stubLLM) AnalyseContent(_ context.Context, _ string, titles []string) (*llm.Analysis, error) {
	s.mu.Lock()
	s.lastTitles = titles
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.analysis, nil
}

func (s *stubLLM) GenerateQueries(_ context.Context, _ string, icpName string) ([]string, error) {
	s.mu.Lock()
	s.lastICP = icpName
	s.mu.Unlock()
	return s.queries, s.err
}

func (s *stubLLM) Outline(context.Context, string, string) (string, error) {
	return s.outline, s.err
}

func (s *stubLLM) BlogPlan(context.Context, string) (*llm.BlogPlan, error) {
	s.planCalls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return s.plan, nil
}

func (s *stubLLM) GapReport(context.Context, llm.GapInput) (*llm.GapReport, error) {
	return s.gap, s.err
}

func (s *stubLLM) Answer(_ context.Context, prompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastPrompt = prompt
	if s.err != nil {
		return "", s.err
	}
	if len(s.answers) == 0 {
		return "", nil
	}
	a := s.answers[s.answerIdx%len(s.answers)]
	s.answerIdx++
	return a, nil
}

// stubRanker ranks a query when it contains one of the configured words.
// Queries listed in fail return err.
type stubRanker struct {
	google []string
	bing   []string
	fail   map[string]error
	calls  atomic.Int32

	inflight atomic.Int32
	peak     atomic.Int32
	block    chan struct{}
}

func (s *stubRanker) check(words []string, query, domain string) (serp.Result, error) {
	s.calls.Add(1)
	n := s.inflight.Add(1)
	defer s.inflight.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if s.block != nil {
		<-s.block
	}
	if err := s.fail[query]; err != nil {
		return serp.Result{}, err
	}
	for _, w := range words {
		if strings.Contains(query, w) {
			return serp.Result{Ranked: true, URL: strp("https://" + domain + "/hit")}, nil
		}
	}
	return serp.Result{}, nil
}

func (s *stubRanker) CheckGoogle(_ context.Context, query, domain string) (serp.Result, error) {
	return s.check(s.google, query, domain)
}

func (s *stubRanker) CheckBing(_ context.Context, query, domain string) (serp.Result, error) {
	return s.check(s.bing, query, domain)
}
