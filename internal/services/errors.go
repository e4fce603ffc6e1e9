// Package services defines the business logic of the dashboard: site
// analysis, accounts, keyword sources, the performance-blog pipeline, the
// blog-request cycle and the per-user data export.
//
// This file centralizes service-level error values. Translation into HTTP
// status codes is done by the handlers.
package services

import (
	"errors"

	"github.com/tbourn/go-icp-dashboard/internal/llm"
	"github.com/tbourn/go-icp-dashboard/internal/scrape"
	"github.com/tbourn/go-icp-dashboard/internal/serp"
)

// Account errors.
var (
	// ErrInvalidCredentials is returned by Login for an unknown user or a
	// wrong password; the two cases are not distinguished.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrUserExists is returned when creating a user whose name is taken.
	ErrUserExists = errors.New("user already exists")

	// ErrInvalidUsername is returned for empty or malformed usernames.
	ErrInvalidUsername = errors.New("username must be 1-64 characters of letters, digits, '.', '_' or '-'")

	// ErrWeakPassword is returned for passwords shorter than MinPasswordLen.
	ErrWeakPassword = errors.New("password too short")
)

// Source errors.
var (
	ErrInvalidURL         = errors.New("invalid URL")
	ErrInvalidDomain      = errors.New("invalid domain")
	ErrCompetitorExists   = errors.New("competitor already tracked")
	ErrCompetitorNotFound = errors.New("competitor not found")
	ErrBlogExists         = errors.New("blog already tracked")
	ErrBlogNotFound       = errors.New("blog not found")
	ErrGroupNotFound      = errors.New("ICP group not found")
	ErrKeywordNotFound    = errors.New("keyword not found")
)

// Cycle errors.
var (
	// ErrConcurrentUpdate is returned when another request changed the cycle
	// between load and write. The caller may retry.
	ErrConcurrentUpdate = errors.New("cycle was modified concurrently, retry")
)

// IsTimeout reports whether err is a deadline expiry of any upstream.
func IsTimeout(err error) bool {
	return errors.Is(err, llm.ErrTimeout) ||
		errors.Is(err, scrape.ErrTimeout) ||
		errors.Is(err, serp.ErrTimeout)
}
