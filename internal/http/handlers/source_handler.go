// Keyword-source HTTP handlers.
//
//   - GET/PUT /icps                 ICP groups
//   - POST    /icps/targets         toggle an ICP keyword
//   - GET     /competitors          tracked competitors
//   - POST    /competitors          track and rank a competitor
//   - POST    /competitors/targets  toggle a competitor keyword
//   - GET     /performance-blogs    tracked blogs
//   - POST    /performance-blogs    track a blog, analysis runs async (202)
//   - POST    /performance-blogs/targets
//   - POST    /report-targets       legacy report target
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-icp-dashboard/internal/cycle"
)

// ReplaceICPsRequest is the payload of PUT /icps.
type ReplaceICPsRequest struct {
	ICPs []cycle.ICPGroup `json:"icps"`
}

// ICPTargetRequest is the payload of POST /icps/targets.
type ICPTargetRequest struct {
	Group    string `json:"group" example:"Seed-stage founders"`
	Keyword  string `json:"keyword"`
	Targeted bool   `json:"targeted"`
}

// URLRequest carries a single URL.
type URLRequest struct {
	URL string `json:"url" example:"https://rival.com"`
}

// CompetitorTargetRequest is the payload of POST /competitors/targets.
type CompetitorTargetRequest struct {
	Domain   string `json:"domain" example:"rival.com"`
	Keyword  string `json:"keyword"`
	Targeted bool   `json:"targeted"`
}

// BlogTargetRequest is the payload of POST /performance-blogs/targets.
type BlogTargetRequest struct {
	URL      string `json:"url"`
	Keyword  string `json:"keyword"`
	Targeted bool   `json:"targeted"`
}

// ReportTargetRequest is the payload of POST /report-targets. A missing
// targeted flag counts as targeted.
type ReportTargetRequest struct {
	Keyword  string `json:"keyword"`
	Targeted *bool  `json:"targeted"`
}

// ICPs godoc
// @ID          listICPs
// @Summary     ICP groups
// @Tags        Sources
// @Produce     json
// @Success     200  {object}  handlers.Envelope
// @Router      /icps [get]
func (h *Handlers) ICPs(c *gin.Context) {
	user, okSession := username(c)
	if !okSession {
		return
	}
	groups, err := h.sources.ICPs(c.Request.Context(), user)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"icps": groups})
}

// ReplaceICPs godoc
// @ID          replaceICPs
// @Summary     Replace ICP groups
// @Tags        Sources
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.ReplaceICPsRequest  true  "Groups"
// @Success     200   {object}  handlers.Envelope
// @Router      /icps [put]
func (h *Handlers) ReplaceICPs(c *gin.Context) {
	user, okSession := username(c)
	if !okSession {
		return
	}
	var req ReplaceICPsRequest
	if !bind(c, &req) {
		return
	}
	ctx := c.Request.Context()
	if err := h.sources.ReplaceICPs(ctx, user, req.ICPs); err != nil {
		failErr(c, err)
		return
	}
	groups, err := h.sources.ICPs(ctx, user)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"icps": groups})
}

// SetICPTarget godoc
// @ID          setICPTarget
// @Summary     Toggle an ICP keyword
// @Tags        Sources
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.ICPTargetRequest  true  "Target"
// @Success     204   {string}  string  "No Content"
// @Failure     404   {object}  handlers.ErrorResponse  "Group or keyword not found"
// @Router      /icps/targets [post]
func (h *Handlers) SetICPTarget(c *gin.Context) {
	user, okSession := username(c)
	if !okSession {
		return
	}
	var req ICPTargetRequest
	if !bind(c, &req) {
		return
	}
	if strings.TrimSpace(req.Group) == "" || strings.TrimSpace(req.Keyword) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, msgMissingParams)
		return
	}
	if err := h.sources.SetICPTarget(c.Request.Context(), user, req.Group, req.Keyword, req.Targeted); err != nil {
		failErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Competitors godoc
// @ID          listCompetitors
// @Summary     Tracked competitors
// @Tags        Sources
// @Produce     json
// @Success     200  {object}  handlers.Envelope
// @Router      /competitors [get]
func (h *Handlers) Competitors(c *gin.Context) {
	user, okSession := username(c)
	if !okSession {
		return
	}
	list, err := h.sources.Competitors(c.Request.Context(), user)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"competitors": list})
}

// AddCompetitor godoc
// @ID          addCompetitor
// @Summary     Track a competitor
// @Description Scrapes the competitor, derives up to 40 keywords and ranks each of them.
// @Tags        Sources
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.URLRequest  true  "Competitor URL"
// @Success     201   {object}  handlers.Envelope{data=services.CompetitorView}
// @Failure     400   {object}  handlers.ErrorResponse  "Missing URL"
// @Failure     409   {object}  handlers.ErrorResponse  "Already tracked"
// @Router      /competitors [post]
func (h *Handlers) AddCompetitor(c *gin.Context) {
	user, okSession := username(c)
	if !okSession {
		return
	}
	var req URLRequest
	if !bind(c, &req) {
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, msgMissingURL)
		return
	}
	v, err := h.sources.AddCompetitor(c.Request.Context(), user, req.URL)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, v)
}

// SetCompetitorTarget godoc
// @ID          setCompetitorTarget
// @Summary     Toggle a competitor keyword
// @Tags        Sources
// @Accept      json
// @Param       body  body      handlers.CompetitorTargetRequest  true  "Target"
// @Success     204   {string}  string  "No Content"
// @Failure     404   {object}  handlers.ErrorResponse
// @Router      /competitors/targets [post]
func (h *Handlers) SetCompetitorTarget(c *gin.Context) {
	user, okSession := username(c)
	if !okSession {
		return
	}
	var req CompetitorTargetRequest
	if !bind(c, &req) {
		return
	}
	if strings.TrimSpace(req.Domain) == "" || strings.TrimSpace(req.Keyword) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, msgMissingParams)
		return
	}
	if err := h.sources.SetCompetitorTarget(c.Request.Context(), user, req.Domain, req.Keyword, req.Targeted); err != nil {
		failErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// PerformanceBlogs godoc
// @ID          listPerformanceBlogs
// @Summary     Tracked blogs
// @Tags        Sources
// @Produce     json
// @Success     200  {object}  handlers.Envelope
// @Router      /performance-blogs [get]
func (h *Handlers) PerformanceBlogs(c *gin.Context) {
	user, okSession := username(c)
	if !okSession {
		return
	}
	list, err := h.perf.List(c.Request.Context(), user)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"blogs": list})
}

// AddPerformanceBlog godoc
// @ID          addPerformanceBlog
// @Summary     Track a published blog
// @Description Stores the blog and starts the scrape, plan and rank pipeline in the background.
// @Tags        Sources
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.URLRequest  true  "Blog URL"
// @Success     202   {object}  handlers.Envelope{data=services.BlogView}
// @Failure     400   {object}  handlers.ErrorResponse  "Missing URL"
// @Failure     409   {object}  handlers.ErrorResponse  "Already tracked"
// @Router      /performance-blogs [post]
func (h *Handlers) AddPerformanceBlog(c *gin.Context) {
	user, okSession := username(c)
	if !okSession {
		return
	}
	var req URLRequest
	if !bind(c, &req) {
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, msgMissingURL)
		return
	}
	ctx := c.Request.Context()
	v, err := h.perf.AddBlog(ctx, user, req.URL)
	if err != nil {
		failErr(c, err)
		return
	}
	h.perf.Start(ctx, user, v.URL)
	ok(c, http.StatusAccepted, v)
}

// SetBlogTarget godoc
// @ID          setBlogTarget
// @Summary     Toggle a blog keyword
// @Tags        Sources
// @Accept      json
// @Param       body  body      handlers.BlogTargetRequest  true  "Target"
// @Success     204   {string}  string  "No Content"
// @Failure     404   {object}  handlers.ErrorResponse  "Blog not found"
// @Router      /performance-blogs/targets [post]
func (h *Handlers) SetBlogTarget(c *gin.Context) {
	user, okSession := username(c)
	if !okSession {
		return
	}
	var req BlogTargetRequest
	if !bind(c, &req) {
		return
	}
	if strings.TrimSpace(req.URL) == "" || strings.TrimSpace(req.Keyword) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, msgMissingParams)
		return
	}
	if err := h.perf.SetTarget(c.Request.Context(), user, req.URL, req.Keyword, req.Targeted); err != nil {
		failErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SetReportTarget godoc
// @ID          setReportTarget
// @Summary     Set a legacy report target
// @Tags        Sources
// @Accept      json
// @Param       body  body      handlers.ReportTargetRequest  true  "Target"
// @Success     204   {string}  string  "No Content"
// @Router      /report-targets [post]
func (h *Handlers) SetReportTarget(c *gin.Context) {
	user, okSession := username(c)
	if !okSession {
		return
	}
	var req ReportTargetRequest
	if !bind(c, &req) {
		return
	}
	if strings.TrimSpace(req.Keyword) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, msgMissingKeyword)
		return
	}
	if err := h.sources.SetReportTarget(c.Request.Context(), user, req.Keyword, req.Targeted); err != nil {
		failErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
