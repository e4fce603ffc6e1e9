// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements idempotency for the submission endpoints.
// IdempotencyValidator runs globally: it validates an Idempotency-Key header,
// stashes the key and, when a stored response for (user, route, key)
// exists, marks the request as a replay so the rate limiter lets it through.
// Idempotent runs per route: it answers replays with the stored response and
// records the first successful response of a new key.
package middleware

import (
	"bytes"
	"context"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey is the request header carrying the client's key.
const HeaderIdempotencyKey = "Idempotency-Key"

// HeaderIdempotentReplay is set on responses served from the store.
const HeaderIdempotentReplay = "Idempotent-Replayed"

const (
	ctxKeyIdemKey    = "idem.key"
	ctxKeyIdemReplay = "idem.replay" // *StoredResponse
	ctxKeyRateBypass = "rate.bypass" // bool
)

// StoredResponse is a previously recorded response.
type StoredResponse struct {
	Status int
	Body   []byte
}

// IdempotencyStore persists responses by (username, scope, key). Scope is the
// route template. Get returns (nil, nil) when nothing live is stored.
type IdempotencyStore interface {
	Get(ctx context.Context, username, scope, key string, now time.Time) (*StoredResponse, error)
	Save(ctx context.Context, username, scope, key string, resp StoredResponse) error
}

// IdempotencyOptions configures header validation.
type IdempotencyOptions struct {
	// MaxLen caps the accepted key length. Values <= 0 default to 200.
	MaxLen int
	// Pattern restricts allowed characters; defaults to ^[A-Za-z0-9._~\-:]+$.
	Pattern *regexp.Regexp
}

// GetIdempotencyKey returns the validated key stashed by IdempotencyValidator.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxKeyIdemKey)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, s != ""
}

// IsReplay reports whether a stored response exists for this request.
func IsReplay(c *gin.Context) bool {
	_, ok := replayOf(c)
	return ok
}

func replayOf(c *gin.Context) (*StoredResponse, bool) {
	v, ok := c.Get(ctxKeyIdemReplay)
	if !ok {
		return nil, false
	}
	r, ok := v.(*StoredResponse)
	return r, ok && r != nil
}

// IdempotencyValidator validates the Idempotency-Key header when present and
// looks up a stored response through store (which may be nil). Requests
// without the header pass untouched; a malformed key is answered with 400.
// Lookup failures do not block the request.
func IdempotencyValidator(opts IdempotencyOptions, store IdempotencyStore) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = 200
	}
	pat := opts.Pattern
	if pat == nil {
		pat = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)
	}

	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxLen || !pat.MatchString(key) {
			abortJSON(c, http.StatusBadRequest, CodeBadIdempotencyKey, "invalid Idempotency-Key")
			return
		}
		c.Set(ctxKeyIdemKey, key)

		if store != nil && c.FullPath() != "" {
			uid := sessionUser(c)
			resp, err := store.Get(c.Request.Context(), uid, c.FullPath(), key, time.Now().UTC())
			if err != nil {
				LoggerFrom(c).Warn().Err(err).Msg("idempotency lookup failed")
			}
			if resp != nil {
				c.Set(ctxKeyIdemReplay, resp)
				c.Set(ctxKeyRateBypass, true)
			}
		}
		c.Next()
	}
}

// Idempotent serves replays from the stash and records 2xx responses of
// keyed requests. Mount it on the routes whose side effects must not repeat.
func Idempotent(store IdempotencyStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		key, keyed := GetIdempotencyKey(c)
		if !keyed || store == nil {
			c.Next()
			return
		}
		if resp, ok := replayOf(c); ok {
			c.Header(HeaderIdempotentReplay, "true")
			c.Data(resp.Status, "application/json; charset=utf-8", resp.Body)
			c.Abort()
			return
		}

		rec := &bodyRecorder{ResponseWriter: c.Writer}
		c.Writer = rec
		c.Next()

		status := rec.Status()
		if status < 200 || status >= 300 {
			return
		}
		uid := sessionUser(c)
		err := store.Save(c.Request.Context(), uid, c.FullPath(), key, StoredResponse{Status: status, Body: rec.buf.Bytes()})
		if err != nil {
			LoggerFrom(c).Warn().Err(err).Msg("idempotency save failed")
		}
	}
}

// bodyRecorder tees the response body.
type bodyRecorder struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (r *bodyRecorder) Write(b []byte) (int, error) {
	r.buf.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *bodyRecorder) WriteString(s string) (int, error) {
	r.buf.WriteString(s)
	return r.ResponseWriter.WriteString(s)
}

func sessionUser(c *gin.Context) string {
	v, _ := c.Get("userID")
	return asString(v)
}
