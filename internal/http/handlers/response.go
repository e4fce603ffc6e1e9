// Package handlers provides HTTP handler implementations for the public API.
//
// This file defines the response envelopes shared by every endpoint and the
// helpers that write them. Success bodies wrap the payload as
// {"success": true, "data": ...}; failures carry a human-readable error plus
// a stable machine code and the request's correlation id.
//
// Example error response:
//
//	HTTP/1.1 400 Bad Request
//	{
//	  "success": false,
//	  "error": "Missing URL",
//	  "code": "bad_request",
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000"
//	}
//
// Example success response:
//
//	HTTP/1.1 200 OK
//	{ "success": true, "data": { "outline": "# Best CRM ..." } }
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-icp-dashboard/internal/http/middleware"
)

// ErrorResponse is the error envelope returned by all API endpoints.
type ErrorResponse struct {
	Success bool `json:"success" example:"false"`
	// Human-readable message. Upstream failures are passed through verbatim.
	Error string `json:"error" example:"Missing URL"`
	// Stable, machine-readable code (see errors.go constants)
	Code string `json:"code" example:"bad_request"`
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
}

// Envelope is the success wrapper.
type Envelope struct {
	Success bool `json:"success" example:"true"`
	Data    any  `json:"data"`
}

// fail aborts the request with a structured error and logs server-side errors.
func fail(c *gin.Context, status int, code, msg string) {
	resp := ErrorResponse{
		Success:   false,
		Error:     msg,
		Code:      code,
		RequestID: c.Writer.Header().Get("X-Request-ID"),
	}

	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}

	c.AbortWithStatusJSON(status, resp)
}

// Fail is the exported variant of fail() for the router's fallbacks.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// failErr maps a service error onto a status and code.
func failErr(c *gin.Context, err error) {
	status, code := classify(err)
	fail(c, status, code, err.Error())
}

// ok writes data inside the success envelope.
func ok(c *gin.Context, status int, data any) {
	c.JSON(status, Envelope{Success: true, Data: data})
}
