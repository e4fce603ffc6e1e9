// Account HTTP handlers.
//
//   - POST /login         verify credentials and set the session cookie
//   - POST /logout        clear the session cookie
//   - POST /admin/users   create an account (X-Admin-Key)
//   - GET  /              landing, requires a session
package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-icp-dashboard/internal/session"
)

// CookieOptions configures the session cookie.
type CookieOptions struct {
	MaxAge time.Duration
	Secure bool
	Domain string
}

func (o CookieOptions) withDefaults() CookieOptions {
	if o.MaxAge <= 0 {
		o.MaxAge = 30 * 24 * time.Hour
	}
	return o
}

// LoginRequest is the payload of POST /login.
type LoginRequest struct {
	Username string `json:"username" example:"acme"`
	Password string `json:"password" example:"s3cret"`
}

// CreateUserRequest is the payload of POST /admin/users.
type CreateUserRequest struct {
	Username   string `json:"username" example:"acme"`
	Password   string `json:"password" example:"s3cret"`
	WebsiteURL string `json:"websiteUrl" example:"https://acme.io"`
}

// UserResponse is the public view of an account.
type UserResponse struct {
	Username   string `json:"username"`
	WebsiteURL string `json:"websiteUrl"`
}

// Login godoc
// @ID          login
// @Summary     Log in
// @Description Verifies credentials and sets the HttpOnly session cookie.
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.LoginRequest  true  "Credentials"
// @Success     200   {object}  handlers.Envelope{data=handlers.UserResponse}
// @Failure     400   {object}  handlers.ErrorResponse  "Missing params"
// @Failure     401   {object}  handlers.ErrorResponse  "Invalid credentials"
// @Router      /login [post]
func (h *Handlers) Login(c *gin.Context) {
	var req LoginRequest
	if !bind(c, &req) {
		return
	}
	name := strings.TrimSpace(req.Username)
	if name == "" || req.Password == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, msgMissingParams)
		return
	}
	u, err := h.auth.Login(c.Request.Context(), name, req.Password)
	if err != nil {
		failErr(c, err)
		return
	}
	h.setCookie(c, u.Username, int(h.cookie.MaxAge.Seconds()))
	ok(c, http.StatusOK, UserResponse{Username: u.Username, WebsiteURL: u.WebsiteURL})
}

// Logout godoc
// @ID          logout
// @Summary     Log out
// @Tags        Auth
// @Success     204  {string}  string  "No Content"
// @Router      /logout [post]
func (h *Handlers) Logout(c *gin.Context) {
	h.setCookie(c, "", -1)
	c.Status(http.StatusNoContent)
}

func (h *Handlers) setCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(session.CookieName, value, maxAge, "/", h.cookie.Domain, h.cookie.Secure, true)
}

// CreateUser godoc
// @ID          createUser
// @Summary     Create an account
// @Tags        Admin
// @Accept      json
// @Produce     json
// @Param       X-Admin-Key  header    string                        true  "Admin key"
// @Param       body         body      handlers.CreateUserRequest    true  "Account"
// @Success     201          {object}  handlers.Envelope{data=handlers.UserResponse}
// @Failure     400          {object}  handlers.ErrorResponse  "Invalid input"
// @Failure     403          {object}  handlers.ErrorResponse  "Bad admin key"
// @Failure     409          {object}  handlers.ErrorResponse  "User exists"
// @Router      /admin/users [post]
func (h *Handlers) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if !bind(c, &req) {
		return
	}
	u, err := h.auth.CreateUser(c.Request.Context(), req.Username, req.Password, req.WebsiteURL)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, UserResponse{Username: u.Username, WebsiteURL: u.WebsiteURL})
}

// Landing godoc
// @ID          landing
// @Summary     Dashboard landing
// @Description Redirects to /login?next=/ without a session.
// @Tags        Auth
// @Produce     json
// @Success     200  {object}  handlers.Envelope
// @Success     302  {string}  string  "Redirect to login"
// @Router      / [get]
func (h *Handlers) Landing(c *gin.Context) {
	name, okSession := username(c)
	if !okSession {
		return
	}
	ok(c, http.StatusOK, gin.H{"username": name})
}
