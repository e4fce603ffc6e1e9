// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, sessions, logging/redaction, panic recovery,
// metrics, CORS, security headers, idempotency, and rate limiting.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/go-icp-dashboard/internal/cache"
	"github.com/tbourn/go-icp-dashboard/internal/config"
	"github.com/tbourn/go-icp-dashboard/internal/docs"
	"github.com/tbourn/go-icp-dashboard/internal/http/handlers"
	"github.com/tbourn/go-icp-dashboard/internal/http/middleware"
	"github.com/tbourn/go-icp-dashboard/internal/repo"
	"github.com/tbourn/go-icp-dashboard/internal/services"
)

// maxBodyBytes caps request bodies. Company markdown posted to the outline
// and gap-report endpoints can be large.
const maxBodyBytes = 2 << 20

// Clients are the upstream integrations the services call.
type Clients struct {
	Scraper services.Scraper
	LLM     services.LanguageModel
	Ranker  services.RankChecker
	// Guard is the optional cross-instance processing guard.
	Guard cache.Store
}

// Services is the application layer built from a database, configuration and
// upstream clients. The scheduler shares it with the router.
type Services struct {
	Analysis    *services.AnalysisService
	Auth        *services.AuthService
	Sources     *services.SourceService
	Cycle       *services.CycleService
	Performance *services.PerformanceService
	UserData    *services.UserDataService
}

// NewServices builds the service graph.
func NewServices(db *gorm.DB, cfg config.Config, cl Clients) *Services {
	analysis := &services.AnalysisService{Scraper: cl.Scraper, LLM: cl.LLM, Ranker: cl.Ranker}
	sources := &services.SourceService{DB: db, Analysis: analysis, Workers: cfg.Performance.Workers}
	perf := &services.PerformanceService{
		DB:         db,
		Analysis:   analysis,
		Guard:      cl.Guard,
		Workers:    cfg.Performance.Workers,
		FlushEvery: cfg.Performance.FlushEvery,
		FreshFor:   cfg.Performance.FreshFor,
		RunTimeout: 30 * time.Minute,
	}
	return &Services{
		Analysis: analysis,
		Auth:     &services.AuthService{DB: db},
		Sources:  sources,
		Cycle: &services.CycleService{
			DB:             db,
			Sources:        sources,
			EditPassword:   cfg.Cycle.EditPassword,
			UnlockPassword: cfg.Cycle.UnlockPassword,
			PageSize:       cfg.Cycle.PageSize,
		},
		Performance: perf,
		UserData:    &services.UserDataService{DB: db, Sources: sources, Performance: perf},
	}
}

// idempotencyStore adapts the repository free functions to
// middleware.IdempotencyStore.
type idempotencyStore struct {
	db  *gorm.DB
	ttl time.Duration
}

func (s idempotencyStore) Get(ctx context.Context, username, scope, key string, now time.Time) (*middleware.StoredResponse, error) {
	rec, err := repo.GetIdempotency(ctx, s.db, username, scope, key, now)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &middleware.StoredResponse{Status: rec.Status, Body: rec.Response}, nil
}

// Save keeps the first stored response when two requests race on a key.
func (s idempotencyStore) Save(ctx context.Context, username, scope, key string, resp middleware.StoredResponse) error {
	_, err := repo.CreateIdempotency(ctx, s.db, username, scope, key, resp.Status, resp.Body, s.ttl)
	if errors.Is(err, repo.ErrDuplicate) {
		return nil
	}
	return err
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Session: resolve the cookie before anything logs or rate limits
//  4. Logger + RedactingLogger: scoped logger and access log
//  5. Recovery: capture panics after logger
//  6. Body size limiter and gzip
//  7. Metrics
//  8. Idempotency validator (before rate limiter to allow bypass on replay)
//  9. Rate limiter (per user/IP, bypass on replay)
//  10. CORS and Security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, svc *Services, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.Session(svc.Auth.Exists))
	r.Use(middleware.Logger())
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{"X-Api-Key"},
	}))
	r.Use(middleware.Recovery())
	r.Use(limitBody(maxBodyBytes))
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	store := idempotencyStore{db: db, ttl: cfg.IdempotencyTTL}
	r.Use(middleware.IdempotencyValidator(middleware.IdempotencyOptions{MaxLen: 200}, store))

	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	r.Use(rl.Handler())

	r.Use(cors.New(corsConfig(cfg.CORS.AllowedOrigins)))
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		EnablePolicy: true,
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	if cfg.SwaggerEnabled {
		docs.SwaggerInfo.BasePath = cfg.APIBasePath
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	h := handlers.New(handlers.Deps{
		Analysis:    svc.Analysis,
		Auth:        svc.Auth,
		Cycle:       svc.Cycle,
		Sources:     svc.Sources,
		Performance: svc.Performance,
		UserData:    svc.UserData,
		Cookie: handlers.CookieOptions{
			MaxAge: cfg.Session.MaxAge,
			Secure: cfg.Session.Secure,
			Domain: cfg.Session.Domain,
		},
	})

	r.GET("/", middleware.RequireLogin("/login"), h.Landing)

	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		api.POST("/login", h.Login)
		api.POST("/logout", h.Logout)
		api.POST("/admin/users", middleware.AdminKey(cfg.AdminKey), h.CreateUser)

		// Analysis endpoints are stateless and open.
		api.POST("/keywords", h.Keywords)
		api.POST("/scrape", h.Scrape)
		api.POST("/outline", h.Outline)
		api.POST("/queries", h.Queries)
		api.POST("/rank", h.Rank)
		api.POST("/blog-plan", h.BlogPlan)
		api.POST("/gen-report", h.GenReport)
		api.POST("/gap-report", h.GapReport)

		// my-data answers its own 401 body.
		api.GET("/my-data", h.MyData)
	}

	authed := api.Group("", middleware.RequireSession())
	{
		authed.GET("/targets", h.Targets)

		authed.POST("/batch", h.EnsureBatch)
		authed.POST("/batch/keywords", h.AddToBatch)
		authed.POST("/batch/remove", h.RemoveFromBatch)

		authed.POST("/requests", middleware.Idempotent(store), h.Submit)
		authed.POST("/requests/batch", middleware.Idempotent(store), h.SubmitBatch)
		authed.PATCH("/requests/:id", h.EditItem)

		authed.POST("/cycle/unlock", h.Unlock)
		authed.GET("/archives", h.Archives)

		authed.GET("/icps", h.ICPs)
		authed.PUT("/icps", h.ReplaceICPs)
		authed.POST("/icps/targets", h.SetICPTarget)

		authed.GET("/competitors", h.Competitors)
		authed.POST("/competitors", h.AddCompetitor)
		authed.POST("/competitors/targets", h.SetCompetitorTarget)

		authed.GET("/performance-blogs", h.PerformanceBlogs)
		authed.POST("/performance-blogs", h.AddPerformanceBlog)
		authed.POST("/performance-blogs/targets", h.SetBlogTarget)

		authed.POST("/report-targets", h.SetReportTarget)
	}
}

// corsConfig allows credentials only for an explicit origin allowlist. With
// no allowlist every origin is accepted and cookies are not.
func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", middleware.HeaderIdempotencyKey, middleware.HeaderAdminKey},
		ExposeHeaders: []string{"X-Request-ID", "Content-Length", "ETag", middleware.HeaderIdempotentReplay},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		c.AllowAllOrigins = true
		return c
	}
	c.AllowOrigins = origins
	c.AllowCredentials = true
	return c
}

// limitBody caps the request body at maxBytes; reads past the cap fail.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
