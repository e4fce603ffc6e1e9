// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file resolves the dashboard session. The "session" cookie is read once
// per request; when it names an existing account a session.Session is
// attached to the request context and the username is stored under the
// "userID" Gin key so the logger and the rate limiter can key on it.
package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-icp-dashboard/internal/session"
)

// HeaderAdminKey gates account creation.
const HeaderAdminKey = "X-Admin-Key"

// Error codes written by middleware. The handlers package reuses
// CodeUnauthorized for its own 401s.
const (
	CodeUnauthorized      = "unauthorized"
	CodeForbidden         = "forbidden"
	CodeTooManyRequests   = "too_many_requests"
	CodeInternal          = "internal_error"
	CodeBadIdempotencyKey = "bad_idempotency_key"
)

// SessionResolver reports whether username names an existing account.
type SessionResolver func(ctx context.Context, username string) (bool, error)

// Session attaches the session of the cookie's user, if any. Requests without
// a valid cookie continue anonymously; handlers decide whether that is
// acceptable. Resolver failures are logged and treated as anonymous.
func Session(resolve SessionResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		name, err := c.Cookie(session.CookieName)
		name = strings.TrimSpace(name)
		if err != nil || name == "" || resolve == nil {
			c.Next()
			return
		}
		exists, err := resolve(c.Request.Context(), name)
		if err != nil {
			LoggerFrom(c).Warn().Err(err).Msg("session lookup failed")
		}
		if exists {
			c.Set("userID", name)
			c.Request = c.Request.WithContext(session.With(c.Request.Context(), session.Session{Username: name}))
		}
		c.Next()
	}
}

// RequireLogin redirects page requests without a session to loginPath with
// the original path in ?next=.
func RequireLogin(loginPath string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := session.From(c.Request.Context()); ok {
			c.Next()
			return
		}
		target := loginPath + "?next=" + url.QueryEscape(c.Request.URL.Path)
		c.Redirect(http.StatusFound, target)
		c.Abort()
	}
}

// RequireSession rejects API requests without a session with 401.
func RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := session.From(c.Request.Context()); ok {
			c.Next()
			return
		}
		abortJSON(c, http.StatusUnauthorized, CodeUnauthorized, "Not authenticated")
	}
}

// AdminKey admits requests whose X-Admin-Key equals key. An empty key
// disables the guarded routes entirely.
func AdminKey(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		given := c.GetHeader(HeaderAdminKey)
		if key == "" || subtle.ConstantTimeCompare([]byte(key), []byte(given)) != 1 {
			abortJSON(c, http.StatusForbidden, CodeForbidden, "admin key required")
			return
		}
		c.Next()
	}
}

// abortJSON writes the API error envelope. It mirrors handlers.ErrorResponse,
// which middleware cannot import.
func abortJSON(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success":    false,
		"error":      msg,
		"code":       code,
		"request_id": c.Writer.Header().Get(requestIDHeader),
	})
}
