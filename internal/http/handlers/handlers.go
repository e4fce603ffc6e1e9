// Package handlers exposes the dashboard's REST endpoints.
//
// Handlers are transport-thin: they validate input, resolve the session from
// the request context, call application services and translate results and
// errors into HTTP responses.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-icp-dashboard/internal/cycle"
	"github.com/tbourn/go-icp-dashboard/internal/domain"
	"github.com/tbourn/go-icp-dashboard/internal/llm"
	"github.com/tbourn/go-icp-dashboard/internal/services"
	"github.com/tbourn/go-icp-dashboard/internal/session"
	"github.com/tbourn/go-icp-dashboard/internal/utils"
)

//
// Service contracts (context-aware)
//

// AnalysisService covers the stateless analysis endpoints.
type AnalysisService interface {
	Keywords(ctx context.Context, url, blogURL string) (*services.SiteAnalysis, error)
	Scrape(ctx context.Context, req services.ScrapeRequest) (*services.ScrapeResult, error)
	Outline(ctx context.Context, keyword, companyMarkdown string) (string, error)
	Queries(ctx context.Context, companyMarkdown, icpName, description string) ([]string, error)
	Rank(ctx context.Context, query, domain string) (*services.RankResult, error)
	BlogPlan(ctx context.Context, markdown string) (*services.Plan, error)
	GapReport(ctx context.Context, in llm.GapInput) (*llm.GapReport, error)
	GenReport(ctx context.Context, query, link, brand string) (*services.Report, error)
}

// AuthService verifies and creates accounts.
type AuthService interface {
	Login(ctx context.Context, username, password string) (*domain.User, error)
	CreateUser(ctx context.Context, username, password, websiteURL string) (*domain.User, error)
}

// CycleService runs the blog-request cycle.
type CycleService interface {
	View(ctx context.Context, username string, q services.ViewQuery) (*services.CycleView, error)
	EnsureBatch(ctx context.Context, username string) (int64, error)
	AddToBatch(ctx context.Context, username string, candidates []string) ([]string, *cycle.Batch, error)
	RemoveFromBatch(ctx context.Context, username, kw string) (bool, error)
	Submit(ctx context.Context, username, kw string) (cycle.RequestedItem, bool, error)
	SubmitBatch(ctx context.Context, username string) ([]cycle.RequestedItem, bool, error)
	EditItem(ctx context.Context, username, password string, id int, p cycle.ItemPatch) (cycle.RequestedItem, error)
	Unlock(ctx context.Context, username, password string) (*services.ArchiveView, error)
	Archives(ctx context.Context, username string, page int) ([]services.ArchiveView, utils.Page, error)
}

// SourceService manages ICPs, competitors and report targets.
type SourceService interface {
	ICPs(ctx context.Context, username string) ([]cycle.ICPGroup, error)
	ReplaceICPs(ctx context.Context, username string, groups []cycle.ICPGroup) error
	SetICPTarget(ctx context.Context, username, group, keyword string, targeted bool) error
	Competitors(ctx context.Context, username string) ([]services.CompetitorView, error)
	AddCompetitor(ctx context.Context, username, rawURL string) (*services.CompetitorView, error)
	SetCompetitorTarget(ctx context.Context, username, domainName, keyword string, targeted bool) error
	SetReportTarget(ctx context.Context, username, keyword string, targeted *bool) error
}

// PerformanceService tracks published blogs.
type PerformanceService interface {
	AddBlog(ctx context.Context, username, rawURL string) (*services.BlogView, error)
	List(ctx context.Context, username string) ([]services.BlogView, error)
	SetTarget(ctx context.Context, username, rawURL, keyword string, targeted bool) error
	Start(ctx context.Context, username, url string)
}

// UserDataService reads a user's full record.
type UserDataService interface {
	ETag(ctx context.Context, username string) (string, error)
	MyData(ctx context.Context, username string) (*services.UserData, error)
}

//
// Handler wiring
//

// Deps lists the services the handlers depend on.
type Deps struct {
	Analysis    AnalysisService
	Auth        AuthService
	Cycle       CycleService
	Sources     SourceService
	Performance PerformanceService
	UserData    UserDataService

	// Cookie settings for /login.
	Cookie CookieOptions
}

// Handlers groups every HTTP endpoint of the dashboard.
type Handlers struct {
	analysis AnalysisService
	auth     AuthService
	cycle    CycleService
	sources  SourceService
	perf     PerformanceService
	userData UserDataService
	cookie   CookieOptions
}

// New constructs Handlers bound to the given services.
func New(d Deps) *Handlers {
	return &Handlers{
		analysis: d.Analysis,
		auth:     d.Auth,
		cycle:    d.Cycle,
		sources:  d.Sources,
		perf:     d.Performance,
		userData: d.UserData,
		cookie:   d.Cookie.withDefaults(),
	}
}

// username returns the session user or writes a 401 and returns false.
func username(c *gin.Context) (string, bool) {
	s, err := session.Require(c.Request.Context())
	if err != nil {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "Not authenticated")
		return "", false
	}
	return s.Username, true
}

// bind decodes the JSON body into dst or writes a 400.
func bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, msgInvalidJSON)
		return false
	}
	return true
}
