// Blog-request cycle HTTP handlers.
//
//   - GET   /targets          targets panel (search, sort, page)
//   - POST  /batch            ensure an active batch
//   - POST  /batch/keywords   stage keywords into the batch
//   - POST  /batch/remove     drop a keyword from the batch
//   - POST  /requests         submit one batch keyword
//   - POST  /requests/batch   submit the whole batch
//   - PATCH /requests/{id}    edit a scheduled card (edit password)
//   - POST  /cycle/unlock     archive and reopen the cycle (unlock password)
//   - GET   /archives         past cycles, newest first
package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-icp-dashboard/internal/cycle"
	"github.com/tbourn/go-icp-dashboard/internal/services"
	"github.com/tbourn/go-icp-dashboard/internal/utils"
)

// KeywordRequest carries a single keyword.
type KeywordRequest struct {
	Keyword string `json:"keyword" example:"best crm for startups"`
}

// AddKeywordsRequest is the payload of POST /batch/keywords.
type AddKeywordsRequest struct {
	Keywords []string `json:"keywords"`
}

// AddKeywordsResponse reports what was staged. Keywords beyond the
// remaining room are dropped silently.
type AddKeywordsResponse struct {
	Added []string     `json:"added"`
	Batch *cycle.Batch `json:"batch"`
}

// SubmitResponse is returned by the submission endpoints.
type SubmitResponse struct {
	Items  []cycle.RequestedItem `json:"items"`
	Locked bool                  `json:"locked"`
}

// EditItemRequest is the payload of PATCH /requests/{id}.
type EditItemRequest struct {
	Password string `json:"password"`
	cycle.ItemPatch
}

// PasswordRequest carries a gate password.
type PasswordRequest struct {
	Password string `json:"password"`
}

// ArchivesResponse is a page of past cycles.
type ArchivesResponse struct {
	Archives []services.ArchiveView `json:"archives"`
	Page     utils.Page             `json:"pagination"`
}

// Targets godoc
// @ID          targets
// @Summary     Targets panel
// @Description All aggregated targets, the requested page of available ones, the batch and the current cards.
// @Tags        Cycle
// @Produce     json
// @Param       search  query     string  false  "Case-insensitive substring filter"
// @Param       sort    query     string  false  "alpha or length"  Enums(alpha,length)
// @Param       page    query     int     false  "Page number"      minimum(1) default(1)
// @Success     200     {object}  handlers.Envelope{data=services.CycleView}
// @Failure     401     {object}  handlers.ErrorResponse
// @Router      /targets [get]
func (h *Handlers) Targets(c *gin.Context) {
	user, okSession := username(c)
	if !okSession {
		return
	}
	view, err := h.cycle.View(c.Request.Context(), user, services.ViewQuery{
		Search: c.Query("search"),
		Sort:   c.DefaultQuery("sort", services.SortAlpha),
		Page:   utils.AtoiDefault(c.Query("page"), 1),
	})
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, view)
}

// EnsureBatch godoc
// @ID          ensureBatch
// @Summary     Ensure an active batch
// @Description Returns the active batch id, creating the batch if needed. Calling it twice yields the same id.
// @Tags        Cycle
// @Produce     json
// @Success     200  {object}  handlers.Envelope
// @Failure     401  {object}  handlers.ErrorResponse
// @Failure     409  {object}  handlers.ErrorResponse  "Concurrent update"
// @Router      /batch [post]
func (h *Handlers) EnsureBatch(c *gin.Context) {
	user, okSession := username(c)
	if !okSession {
		return
	}
	id, err := h.cycle.EnsureBatch(c.Request.Context(), user)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"batchId": id})
}

// AddToBatch godoc
// @ID          addToBatch
// @Summary     Stage keywords
// @Tags        Cycle
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.AddKeywordsRequest  true  "Keywords"
// @Success     200   {object}  handlers.Envelope{data=handlers.AddKeywordsResponse}
// @Failure     400   {object}  handlers.ErrorResponse  "Missing keyword"
// @Failure     409   {object}  handlers.ErrorResponse  "Locked or quota reached"
// @Router      /batch/keywords [post]
func (h *Handlers) AddToBatch(c *gin.Context) {
	user, okSession := username(c)
	if !okSession {
		return
	}
	var req AddKeywordsRequest
	if !bind(c, &req) {
		return
	}
	if len(req.Keywords) == 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, msgMissingKeyword)
		return
	}
	added, batch, err := h.cycle.AddToBatch(c.Request.Context(), user, req.Keywords)
	if err != nil {
		failErr(c, err)
		return
	}
	if added == nil {
		added = []string{}
	}
	ok(c, http.StatusOK, AddKeywordsResponse{Added: added, Batch: batch})
}

// RemoveFromBatch godoc
// @ID          removeFromBatch
// @Summary     Drop a staged keyword
// @Tags        Cycle
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.KeywordRequest  true  "Keyword"
// @Success     200   {object}  handlers.Envelope
// @Failure     409   {object}  handlers.ErrorResponse  "Cycle locked"
// @Router      /batch/remove [post]
func (h *Handlers) RemoveFromBatch(c *gin.Context) {
	user, okSession := username(c)
	if !okSession {
		return
	}
	var req KeywordRequest
	if !bind(c, &req) {
		return
	}
	if strings.TrimSpace(req.Keyword) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, msgMissingKeyword)
		return
	}
	removed, err := h.cycle.RemoveFromBatch(c.Request.Context(), user, req.Keyword)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"removed": removed})
}

// Submit godoc
// @ID          submitKeyword
// @Summary     Submit a keyword
// @Description Moves a batch keyword into the scheduled cards. Honours Idempotency-Key.
// @Tags        Cycle
// @Accept      json
// @Produce     json
// @Param       Idempotency-Key  header    string                   false  "Replay protection"
// @Param       body             body      handlers.KeywordRequest  true   "Keyword"
// @Success     200              {object}  handlers.Envelope{data=handlers.SubmitResponse}
// @Failure     400              {object}  handlers.ErrorResponse  "Not in batch"
// @Failure     409              {object}  handlers.ErrorResponse  "Locked, quota reached or concurrent update"
// @Router      /requests [post]
func (h *Handlers) Submit(c *gin.Context) {
	user, okSession := username(c)
	if !okSession {
		return
	}
	var req KeywordRequest
	if !bind(c, &req) {
		return
	}
	if strings.TrimSpace(req.Keyword) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, msgMissingKeyword)
		return
	}
	item, locked, err := h.cycle.Submit(c.Request.Context(), user, req.Keyword)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, SubmitResponse{Items: []cycle.RequestedItem{item}, Locked: locked})
}

// SubmitBatch godoc
// @ID          submitBatch
// @Summary     Submit the whole batch
// @Description All batch keywords are submitted or none is. Honours Idempotency-Key.
// @Tags        Cycle
// @Produce     json
// @Param       Idempotency-Key  header    string  false  "Replay protection"
// @Success     200              {object}  handlers.Envelope{data=handlers.SubmitResponse}
// @Failure     400              {object}  handlers.ErrorResponse  "Empty batch"
// @Failure     409              {object}  handlers.ErrorResponse  "Quota reached"
// @Router      /requests/batch [post]
func (h *Handlers) SubmitBatch(c *gin.Context) {
	user, okSession := username(c)
	if !okSession {
		return
	}
	items, locked, err := h.cycle.SubmitBatch(c.Request.Context(), user)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, SubmitResponse{Items: items, Locked: locked})
}

// EditItem godoc
// @ID          editItem
// @Summary     Edit a scheduled card
// @Tags        Cycle
// @Accept      json
// @Produce     json
// @Param       id    path      int                       true  "Card id"
// @Param       body  body      handlers.EditItemRequest  true  "Password and changed fields"
// @Success     200   {object}  handlers.Envelope{data=cycle.RequestedItem}
// @Failure     400   {object}  handlers.ErrorResponse  "Invalid update"
// @Failure     403   {object}  handlers.ErrorResponse  "Bad password"
// @Failure     404   {object}  handlers.ErrorResponse  "Card not found"
// @Router      /requests/{id} [patch]
func (h *Handlers) EditItem(c *gin.Context) {
	user, okSession := username(c)
	if !okSession {
		return
	}
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id < 1 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "id must be a positive integer")
		return
	}
	var req EditItemRequest
	if !bind(c, &req) {
		return
	}
	item, err := h.cycle.EditItem(c.Request.Context(), user, req.Password, id, req.ItemPatch)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, item)
}

// Unlock godoc
// @ID          unlockCycle
// @Summary     Archive and reopen the cycle
// @Tags        Cycle
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.PasswordRequest  true  "Unlock password"
// @Success     200   {object}  handlers.Envelope{data=services.ArchiveView}
// @Failure     403   {object}  handlers.ErrorResponse  "Bad password"
// @Failure     409   {object}  handlers.ErrorResponse  "Concurrent update"
// @Router      /cycle/unlock [post]
func (h *Handlers) Unlock(c *gin.Context) {
	user, okSession := username(c)
	if !okSession {
		return
	}
	var req PasswordRequest
	if !bind(c, &req) {
		return
	}
	a, err := h.cycle.Unlock(c.Request.Context(), user, req.Password)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, a)
}

// Archives godoc
// @ID          archives
// @Summary     Past cycles
// @Tags        Cycle
// @Produce     json
// @Param       page  query     int  false  "Page number"  minimum(1) default(1)
// @Success     200   {object}  handlers.Envelope{data=handlers.ArchivesResponse}
// @Router      /archives [get]
func (h *Handlers) Archives(c *gin.Context) {
	user, okSession := username(c)
	if !okSession {
		return
	}
	list, page, err := h.cycle.Archives(c.Request.Context(), user, utils.AtoiDefault(c.Query("page"), 1))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, ArchivesResponse{Archives: list, Page: page})
}
