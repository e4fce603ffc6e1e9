package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-icp-dashboard/internal/services"
	"github.com/tbourn/go-icp-dashboard/internal/session"
)

// MyDataResponse is the body of GET /my-data. It keeps its own {ok}
// envelope for the dashboard front end.
type MyDataResponse struct {
	OK    bool               `json:"ok"`
	Data  *services.UserData `json:"data,omitempty"`
	Error string             `json:"error,omitempty"`
}

// MyData godoc
// @ID          myData
// @Summary     Full user record
// @Description Returns every persisted document of the session user. Supports weak ETag via If-None-Match.
// @Tags        Data
// @Produce     json
// @Param       If-None-Match  header    string  false  "Return 304 if ETag matches"
// @Success     200            {object}  handlers.MyDataResponse
// @Header      200            {string}  ETag  "Weak ETag for current record"
// @Success     304            {string}  string  "Not Modified"
// @Failure     401            {object}  handlers.MyDataResponse  "Not authenticated"
// @Router      /my-data [get]
func (h *Handlers) MyData(c *gin.Context) {
	ctx := c.Request.Context()
	s, err := session.Require(ctx)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, MyDataResponse{Error: "Not authenticated"})
		return
	}

	// ETag pre-check (best effort).
	if etag, err := h.userData.ETag(ctx, s.Username); err == nil {
		c.Header("ETag", etag)
		if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}

	data, err := h.userData.MyData(ctx, s.Username)
	switch {
	case errors.Is(err, services.ErrInvalidCredentials):
		c.AbortWithStatusJSON(http.StatusUnauthorized, MyDataResponse{Error: "Not authenticated"})
		return
	case err != nil:
		c.AbortWithStatusJSON(http.StatusInternalServerError, MyDataResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, MyDataResponse{OK: true, Data: data})
}
