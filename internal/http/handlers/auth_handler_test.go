package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-icp-dashboard/internal/session"
)

func authRouter(cookie CookieOptions) (*gin.Engine, stubAuth) {
	auth := stubAuth{users: map[string]string{"acme": "s3cret"}}
	h := New(Deps{Auth: auth, Cookie: cookie})
	r := gin.New()
	r.POST("/login", h.Login)
	r.POST("/logout", h.Logout)
	r.POST("/admin/users", h.CreateUser)
	return r, auth
}

func TestLogin_SetsSessionCookie(t *testing.T) {
	r, _ := authRouter(CookieOptions{MaxAge: time.Hour, Secure: true, Domain: "acme.io"})

	w := serve(r, http.MethodPost, "/login", gin.H{"username": " acme ", "password": "s3cret"})
	var u UserResponse
	dataOf(t, w, &u)
	if u.Username != "acme" || u.WebsiteURL != "https://acme.io" {
		t.Fatalf("user = %+v", u)
	}

	cookies := w.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("cookies = %v", cookies)
	}
	ck := cookies[0]
	if ck.Name != session.CookieName || ck.Value != "acme" || ck.MaxAge != 3600 {
		t.Fatalf("cookie = %+v", ck)
	}
	if !ck.HttpOnly || !ck.Secure || ck.SameSite != http.SameSiteLaxMode || ck.Domain != "acme.io" || ck.Path != "/" {
		t.Fatalf("cookie attributes = %+v", ck)
	}
}

func TestLogin_Rejections(t *testing.T) {
	r, _ := authRouter(CookieOptions{})

	w := serve(r, http.MethodPost, "/login", gin.H{"username": "acme"})
	if w.Code != http.StatusBadRequest || errBody(t, w).Error != msgMissingParams {
		t.Fatalf("missing password: %d %s", w.Code, w.Body.String())
	}

	w = serve(r, http.MethodPost, "/login", gin.H{"username": "acme", "password": "wrong"})
	if w.Code != http.StatusUnauthorized || errBody(t, w).Code != ErrCodeUnauthorized {
		t.Fatalf("bad password: %d %s", w.Code, w.Body.String())
	}
	if len(w.Result().Cookies()) != 0 {
		t.Fatal("cookie set on failed login")
	}
}

func TestLogout_ExpiresCookie(t *testing.T) {
	r, _ := authRouter(CookieOptions{})
	w := serve(r, http.MethodPost, "/logout", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d", w.Code)
	}
	ck := w.Result().Cookies()
	if len(ck) != 1 || ck[0].Value != "" || ck[0].MaxAge >= 0 {
		t.Fatalf("cookie = %+v", ck)
	}
}

func TestCreateUser(t *testing.T) {
	r, auth := authRouter(CookieOptions{})

	w := serve(r, http.MethodPost, "/admin/users", gin.H{"username": "beta", "password": "pw1234", "websiteUrl": "https://beta.dev"})
	var u UserResponse
	dataOf(t, w, &u)
	if w.Code != http.StatusCreated || u.Username != "beta" || auth.users["beta"] != "pw1234" {
		t.Fatalf("create: %d %+v", w.Code, u)
	}

	w = serve(r, http.MethodPost, "/admin/users", gin.H{"username": "beta", "password": "pw1234"})
	if w.Code != http.StatusConflict || errBody(t, w).Code != ErrCodeConflict {
		t.Fatalf("duplicate: %d %s", w.Code, w.Body.String())
	}

	w = serve(r, http.MethodPost, "/admin/users", gin.H{"username": "gamma", "password": "pw"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("weak password: %d %s", w.Code, w.Body.String())
	}
}

func TestLanding(t *testing.T) {
	h := New(Deps{})
	r := gin.New()
	r.GET("/", h.Landing)
	if w := serve(r, http.MethodGet, "/", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous: %d", w.Code)
	}

	r = gin.New()
	r.Use(asUser("acme"))
	r.GET("/", h.Landing)
	var got map[string]string
	dataOf(t, serve(r, http.MethodGet, "/", nil), &got)
	if got["username"] != "acme" {
		t.Fatalf("got %v", got)
	}
}
