// Analysis HTTP handlers.
//
// Stateless endpoints that scrape, ask the language model or look queries up
// on search engines. Nothing here is persisted; a session is optional.
//   - POST /keywords     site analysis (ICPs + product markdown)
//   - POST /scrape       page markdown or site analysis
//   - POST /outline      blog outline for a keyword
//   - POST /queries      long-tail queries for an ICP
//   - POST /rank         Google/Bing citation check
//   - POST /blog-plan    keyword plan of a published article
//   - POST /gen-report   multi-answer report
//   - POST /gap-report   ranked vs. gap summary with content ideas
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-icp-dashboard/internal/llm"
	"github.com/tbourn/go-icp-dashboard/internal/services"
)

//
// DTOs
//

// KeywordsRequest is the payload of POST /keywords.
type KeywordsRequest struct {
	URL     string `json:"url" example:"https://acme.io"`
	BlogURL string `json:"blogUrl" example:"https://acme.io/blog"`
}

// ScrapeRequest is the payload of POST /scrape.
type ScrapeRequest struct {
	URL          string `json:"url" example:"https://acme.io/pricing"`
	BlogURL      string `json:"blogUrl"`
	Mode         string `json:"mode" enums:"page,site"`
	OnlyMarkdown bool   `json:"onlyMarkdown"`
}

// OutlineRequest is the payload of POST /outline.
type OutlineRequest struct {
	Keyword         string `json:"keyword" example:"best crm for startups"`
	CompanyMarkdown string `json:"companyMarkdown"`
}

// QueriesRequest is the payload of POST /queries.
type QueriesRequest struct {
	CompanyMarkdown string `json:"companyMarkdown"`
	ICPName         string `json:"icpName" example:"Seed-stage founders"`
	Description     string `json:"description"`
}

// RankRequest is the payload of POST /rank.
type RankRequest struct {
	Query  string `json:"query" example:"best crm for startups"`
	Domain string `json:"domain" example:"acme.io"`
}

// BlogPlanRequest is the payload of POST /blog-plan.
type BlogPlanRequest struct {
	Markdown string `json:"markdown"`
}

// GenReportRequest is the payload of POST /gen-report.
type GenReportRequest struct {
	Query string `json:"query" example:"best crm for startups"`
	Link  string `json:"link"`
	Brand string `json:"brand" example:"Acme"`
}

// GapReportRequest is the payload of POST /gap-report.
type GapReportRequest struct {
	CompanyMarkdown string       `json:"companyMarkdown"`
	SelectedICPs    []llm.GapICP `json:"selectedIcps"`
	Ranked          []string     `json:"ranked"`
	NotRanked       []string     `json:"notRanked"`
}

//
// Handlers
//

// Keywords godoc
// @ID          keywords
// @Summary     Analyse a site
// @Description Scrapes the site (and optional blog index) and derives ICPs with the language model.
// @Tags        Analysis
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.KeywordsRequest  true  "Site"
// @Success     200   {object}  handlers.Envelope{data=services.SiteAnalysis}
// @Failure     400   {object}  handlers.ErrorResponse  "Missing URL"
// @Failure     500   {object}  handlers.ErrorResponse  "Upstream failure"
// @Router      /keywords [post]
func (h *Handlers) Keywords(c *gin.Context) {
	var req KeywordsRequest
	if !bind(c, &req) {
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, msgMissingURL)
		return
	}
	res, err := h.analysis.Keywords(c.Request.Context(), strings.TrimSpace(req.URL), strings.TrimSpace(req.BlogURL))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, res)
}

// Scrape godoc
// @ID          scrape
// @Summary     Scrape a page or analyse a site
// @Description Page mode (default without blogUrl, or mode=page, or onlyMarkdown) returns {markdown}; site mode returns the site analysis.
// @Tags        Analysis
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.ScrapeRequest  true  "Scrape options"
// @Success     200   {object}  handlers.Envelope
// @Failure     400   {object}  handlers.ErrorResponse  "Missing URL"
// @Failure     500   {object}  handlers.ErrorResponse  "Upstream failure"
// @Router      /scrape [post]
func (h *Handlers) Scrape(c *gin.Context) {
	var req ScrapeRequest
	if !bind(c, &req) {
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, msgMissingURL)
		return
	}
	res, err := h.analysis.Scrape(c.Request.Context(), services.ScrapeRequest{
		URL:          strings.TrimSpace(req.URL),
		BlogURL:      strings.TrimSpace(req.BlogURL),
		Mode:         strings.ToLower(strings.TrimSpace(req.Mode)),
		OnlyMarkdown: req.OnlyMarkdown,
	})
	if err != nil {
		failErr(c, err)
		return
	}
	if res.Markdown != nil {
		ok(c, http.StatusOK, gin.H{"markdown": *res.Markdown})
		return
	}
	ok(c, http.StatusOK, res.Site)
}

// Outline godoc
// @ID          outline
// @Summary     Draft a blog outline
// @Tags        Analysis
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.OutlineRequest  true  "Keyword and company context"
// @Success     200   {object}  handlers.Envelope
// @Failure     400   {object}  handlers.ErrorResponse  "Missing keyword"
// @Failure     500   {object}  handlers.ErrorResponse  "Upstream failure"
// @Router      /outline [post]
func (h *Handlers) Outline(c *gin.Context) {
	var req OutlineRequest
	if !bind(c, &req) {
		return
	}
	kw := strings.TrimSpace(req.Keyword)
	if kw == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, msgMissingKeyword)
		return
	}
	out, err := h.analysis.Outline(c.Request.Context(), kw, req.CompanyMarkdown)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"outline": out})
}

// Queries godoc
// @ID          queries
// @Summary     Generate ICP queries
// @Tags        Analysis
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.QueriesRequest  true  "ICP"
// @Success     200   {object}  handlers.Envelope
// @Failure     400   {object}  handlers.ErrorResponse  "Missing params"
// @Failure     500   {object}  handlers.ErrorResponse  "Upstream failure"
// @Router      /queries [post]
func (h *Handlers) Queries(c *gin.Context) {
	var req QueriesRequest
	if !bind(c, &req) {
		return
	}
	if strings.TrimSpace(req.CompanyMarkdown) == "" || strings.TrimSpace(req.ICPName) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, msgMissingParams)
		return
	}
	qs, err := h.analysis.Queries(c.Request.Context(), req.CompanyMarkdown, strings.TrimSpace(req.ICPName), strings.TrimSpace(req.Description))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"queries": qs})
}

// Rank godoc
// @ID          rank
// @Summary     Check search citations
// @Description Looks the query up on Google and Bing and reports whether domain is among the organic results.
// @Tags        Analysis
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.RankRequest  true  "Query and domain"
// @Success     200   {object}  handlers.Envelope{data=services.RankResult}
// @Failure     400   {object}  handlers.ErrorResponse  "Missing data"
// @Failure     500   {object}  handlers.ErrorResponse  "Upstream failure"
// @Router      /rank [post]
func (h *Handlers) Rank(c *gin.Context) {
	var req RankRequest
	if !bind(c, &req) {
		return
	}
	q, d := strings.TrimSpace(req.Query), strings.TrimSpace(req.Domain)
	if q == "" || d == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, msgMissingData)
		return
	}
	res, err := h.analysis.Rank(c.Request.Context(), q, d)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, res)
}

// BlogPlan godoc
// @ID          blogPlan
// @Summary     Derive a keyword plan
// @Tags        Analysis
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.BlogPlanRequest  true  "Article markdown"
// @Success     200   {object}  handlers.Envelope{data=services.Plan}
// @Failure     400   {object}  handlers.ErrorResponse  "Missing markdown"
// @Failure     500   {object}  handlers.ErrorResponse  "Upstream failure"
// @Router      /blog-plan [post]
func (h *Handlers) BlogPlan(c *gin.Context) {
	var req BlogPlanRequest
	if !bind(c, &req) {
		return
	}
	if strings.TrimSpace(req.Markdown) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, msgMissingMarkdown)
		return
	}
	plan, err := h.analysis.BlogPlan(c.Request.Context(), req.Markdown)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, plan)
}

// GenReport godoc
// @ID          genReport
// @Summary     Multi-answer report
// @Tags        Analysis
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.GenReportRequest  true  "Query, link and brand"
// @Success     200   {object}  handlers.Envelope{data=services.Report}
// @Failure     400   {object}  handlers.ErrorResponse  "Missing query"
// @Failure     500   {object}  handlers.ErrorResponse  "Upstream failure"
// @Router      /gen-report [post]
func (h *Handlers) GenReport(c *gin.Context) {
	var req GenReportRequest
	if !bind(c, &req) {
		return
	}
	q := strings.TrimSpace(req.Query)
	if q == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, msgMissingQuery)
		return
	}
	rep, err := h.analysis.GenReport(c.Request.Context(), q, strings.TrimSpace(req.Link), strings.TrimSpace(req.Brand))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, rep)
}

// GapReport godoc
// @ID          gapReport
// @Summary     Content gap report
// @Tags        Analysis
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.GapReportRequest  true  "Ranked and unranked queries"
// @Success     200   {object}  handlers.Envelope{data=llm.GapReport}
// @Failure     400   {object}  handlers.ErrorResponse  "Missing params"
// @Failure     500   {object}  handlers.ErrorResponse  "Upstream failure"
// @Router      /gap-report [post]
func (h *Handlers) GapReport(c *gin.Context) {
	var req GapReportRequest
	if !bind(c, &req) {
		return
	}
	if len(req.Ranked) == 0 && len(req.NotRanked) == 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, msgMissingParams)
		return
	}
	rep, err := h.analysis.GapReport(c.Request.Context(), llm.GapInput{
		CompanyMarkdown: req.CompanyMarkdown,
		SelectedICPs:    req.SelectedICPs,
		Ranked:          req.Ranked,
		NotRanked:       req.NotRanked,
	})
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, rep)
}
