// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// Codes are lowercase snake_case. Generic codes mirror HTTP status semantics;
// domain codes name the cycle rule or upstream failure that rejected the
// request so clients can branch without parsing messages.
package handlers

import (
	"errors"
	"net/http"

	"github.com/tbourn/go-icp-dashboard/internal/cycle"
	"github.com/tbourn/go-icp-dashboard/internal/http/middleware"
	"github.com/tbourn/go-icp-dashboard/internal/services"
	"github.com/tbourn/go-icp-dashboard/internal/session"
)

const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = middleware.CodeUnauthorized
	ErrCodeNotFound     = "not_found"
	ErrCodeConflict     = "conflict"

	// Domain-specific:
	ErrCodeUpstreamFailed   = "upstream_failed"
	ErrCodeUpstreamTimeout  = "upstream_timeout"
	ErrCodeCycleLocked      = "cycle_locked"
	ErrCodeQuotaReached     = "quota_reached"
	ErrCodeEmptyBatch       = "empty_batch"
	ErrCodeNotInBatch       = "not_in_batch"
	ErrCodeBadPassword      = "bad_password"
	ErrCodeConcurrentUpdate = "concurrent_update"
	ErrCodeMethodNotAllowed = "method_not_allowed"
)

// Validation messages.
const (
	msgMissingURL      = "Missing URL"
	msgMissingKeyword  = "Missing keyword"
	msgMissingParams   = "Missing params"
	msgMissingData     = "Missing data"
	msgMissingMarkdown = "Missing markdown"
	msgMissingQuery    = "Missing query"
	msgInvalidJSON     = "invalid JSON body"
)

type errMapping struct {
	err    error
	status int
	code   string
}

var errTable = []errMapping{
	{session.ErrNoSession, http.StatusUnauthorized, ErrCodeUnauthorized},
	{services.ErrInvalidCredentials, http.StatusUnauthorized, ErrCodeUnauthorized},
	{cycle.ErrBadPassword, http.StatusForbidden, ErrCodeBadPassword},
	{cycle.ErrLocked, http.StatusConflict, ErrCodeCycleLocked},
	{cycle.ErrQuotaReached, http.StatusConflict, ErrCodeQuotaReached},
	{cycle.ErrEmptyBatch, http.StatusBadRequest, ErrCodeEmptyBatch},
	{cycle.ErrNotInBatch, http.StatusBadRequest, ErrCodeNotInBatch},
	{cycle.ErrInvalidPatch, http.StatusBadRequest, ErrCodeBadRequest},
	{cycle.ErrItemNotFound, http.StatusNotFound, ErrCodeNotFound},
	{services.ErrConcurrentUpdate, http.StatusConflict, ErrCodeConcurrentUpdate},
	{services.ErrUserExists, http.StatusConflict, ErrCodeConflict},
	{services.ErrCompetitorExists, http.StatusConflict, ErrCodeConflict},
	{services.ErrBlogExists, http.StatusConflict, ErrCodeConflict},
	{services.ErrCompetitorNotFound, http.StatusNotFound, ErrCodeNotFound},
	{services.ErrBlogNotFound, http.StatusNotFound, ErrCodeNotFound},
	{services.ErrGroupNotFound, http.StatusNotFound, ErrCodeNotFound},
	{services.ErrKeywordNotFound, http.StatusNotFound, ErrCodeNotFound},
	{services.ErrInvalidURL, http.StatusBadRequest, ErrCodeBadRequest},
	{services.ErrInvalidDomain, http.StatusBadRequest, ErrCodeBadRequest},
	{services.ErrInvalidUsername, http.StatusBadRequest, ErrCodeBadRequest},
	{services.ErrWeakPassword, http.StatusBadRequest, ErrCodeBadRequest},
}

// classify returns the status and code for err. Upstream failures, timeouts
// included, are reported as 500 with the upstream message; the code tells a
// timeout apart from other failures.
func classify(err error) (int, string) {
	for _, m := range errTable {
		if errors.Is(err, m.err) {
			return m.status, m.code
		}
	}
	if services.IsTimeout(err) {
		return http.StatusInternalServerError, ErrCodeUpstreamTimeout
	}
	return http.StatusInternalServerError, ErrCodeUpstreamFailed
}
