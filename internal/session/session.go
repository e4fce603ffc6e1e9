// Package session carries the authenticated dashboard user through a request.
//
// The HTTP layer resolves the "session" cookie once and attaches a Session to
// the request context. Services receive the username explicitly; nothing reads
// the cookie after the middleware.
package session

import (
	"context"
	"errors"
	"strings"
)

// CookieName is the cookie that holds the username of a logged-in user.
const CookieName = "session"

// ErrNoSession is returned by Require when the context carries no session.
var ErrNoSession = errors.New("not authenticated")

// Session identifies the user a request acts for.
type Session struct {
	Username string
}

type ctxKey struct{}

// With returns a copy of ctx carrying s.
func With(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// From returns the session stored in ctx, if any.
func From(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(Session)
	if !ok || strings.TrimSpace(s.Username) == "" {
		return Session{}, false
	}
	return s, true
}

// Require is From that reports a missing session as ErrNoSession.
func Require(ctx context.Context) (Session, error) {
	s, ok := From(ctx)
	if !ok {
		return Session{}, ErrNoSession
	}
	return s, nil
}
