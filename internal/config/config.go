// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, storage, upstream API credentials, the
// request-cycle passwords, rate limiting, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "icp-dashboard")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// OpenAIConfig defines the language-model backend.
type OpenAIConfig struct {
	APIKey      string        // OPENAI_API_KEY
	BaseURL     string        // OPENAI_BASE_URL
	Model       string        // OPENAI_MODEL
	Timeout     time.Duration // OPENAI_TIMEOUT
	PromptsPath string        // PROMPTS_PATH (optional YAML overrides)
}

// FirecrawlConfig defines the scraping backend.
type FirecrawlConfig struct {
	APIKey   string        // FIRECRAWL_API_KEY (empty -> direct HTML fetch)
	BaseURL  string        // FIRECRAWL_BASE_URL
	Timeout  time.Duration // FIRECRAWL_TIMEOUT, client side; must exceed the 60s scrape budget
	RetryMax int           // FIRECRAWL_RETRY_MAX, transport-level retries
}

// SerpConfig defines the rank-checking backend.
type SerpConfig struct {
	APIKey       string        // SERP_API_KEY
	BaseURL      string        // SERP_BASE_URL
	Location     string        // SERP_LOCATION
	HL           string        // SERP_HL
	GL           string        // SERP_GL
	GoogleDomain string        // SERP_GOOGLE_DOMAIN
	Timeout      time.Duration // SERP_TIMEOUT
	RPS          float64       // SERP_RPS, outbound pacing
	CacheTTL     time.Duration // SERP_CACHE_TTL, 0 disables caching
}

// CycleConfig defines the blog-request cycle gates.
type CycleConfig struct {
	EditPassword   string // EDIT_PASSWORD
	UnlockPassword string // UNLOCK_PASSWORD
	PageSize       int    // TARGETS_PAGE_SIZE
}

// PerformanceConfig tunes the performance-blog pipeline.
type PerformanceConfig struct {
	Workers    int           // RANK_WORKERS
	FlushEvery int           // RANK_FLUSH_EVERY
	FreshFor   time.Duration // PERF_TTL
}

// SessionConfig defines the session cookie.
type SessionConfig struct {
	MaxAge time.Duration // SESSION_MAX_AGE
	Secure bool          // SESSION_SECURE
	Domain string        // SESSION_DOMAIN
}

// CronConfig defines maintenance schedules (robfig/cron spec strings).
type CronConfig struct {
	Enabled          bool   // CRON_ENABLED
	PurgeIdempotency string // CRON_PURGE_IDEMPOTENCY
	RefreshBlogs     string // CRON_REFRESH_BLOGS
	RefreshBatch     int    // CRON_REFRESH_BATCH
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// Storage
	DBDriver    string // sqlite|postgres
	DBPath      string // SQLite path
	DatabaseURL string // PostgreSQL DSN
	RedisURL    string // optional; enables shared cache and processing guard

	// Upstreams
	OpenAI    OpenAIConfig
	Firecrawl FirecrawlConfig
	Serp      SerpConfig

	// Domain
	Cycle       CycleConfig
	Performance PerformanceConfig
	Session     SessionConfig
	AdminKey    string // ADMIN_KEY, gates user creation
	Cron        CronConfig

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration // how long a given Idempotency-Key is valid

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api")),

		// Storage
		DBDriver:    strings.ToLower(getenv("DB_DRIVER", "sqlite")),
		DBPath:      getenv("DB_PATH", "app.db"),
		DatabaseURL: getenv("DATABASE_URL", ""),
		RedisURL:    getenv("REDIS_URL", ""),

		// Upstreams
		OpenAI: OpenAIConfig{
			APIKey:      getenv("OPENAI_API_KEY", ""),
			BaseURL:     strings.TrimRight(getenv("OPENAI_BASE_URL", "https://api.openai.com/v1"), "/"),
			Model:       getenv("OPENAI_MODEL", "gpt-4.1"),
			Timeout:     getdur("OPENAI_TIMEOUT", 120*time.Second),
			PromptsPath: getenv("PROMPTS_PATH", ""),
		},
		Firecrawl: FirecrawlConfig{
			APIKey:   getenv("FIRECRAWL_API_KEY", ""),
			BaseURL:  strings.TrimRight(getenv("FIRECRAWL_BASE_URL", "https://api.firecrawl.dev"), "/"),
			Timeout:  getdur("FIRECRAWL_TIMEOUT", 75*time.Second),
			RetryMax: getint("FIRECRAWL_RETRY_MAX", 2),
		},
		Serp: SerpConfig{
			APIKey:       getenv("SERP_API_KEY", ""),
			BaseURL:      getenv("SERP_BASE_URL", "https://serpapi.com/search.json"),
			Location:     getenv("SERP_LOCATION", "Singapore"),
			HL:           getenv("SERP_HL", "en"),
			GL:           getenv("SERP_GL", "sg"),
			GoogleDomain: getenv("SERP_GOOGLE_DOMAIN", "google.com.sg"),
			Timeout:      getdur("SERP_TIMEOUT", 30*time.Second),
			RPS:          getfloat("SERP_RPS", 5.0),
			CacheTTL:     getdur("SERP_CACHE_TTL", 6*time.Hour),
		},

		// Domain
		Cycle: CycleConfig{
			EditPassword:   getenv("EDIT_PASSWORD", "0000"),
			UnlockPassword: getenv("UNLOCK_PASSWORD", "0000"),
			PageSize:       getint("TARGETS_PAGE_SIZE", 20),
		},
		Performance: PerformanceConfig{
			Workers:    getint("RANK_WORKERS", 5),
			FlushEvery: getint("RANK_FLUSH_EVERY", 15),
			FreshFor:   getdur("PERF_TTL", 7*24*time.Hour),
		},
		Session: SessionConfig{
			MaxAge: getdur("SESSION_MAX_AGE", 30*24*time.Hour),
			Secure: getbool("SESSION_SECURE", false),
			Domain: getenv("SESSION_DOMAIN", ""),
		},
		AdminKey: getenv("ADMIN_KEY", ""),
		Cron: CronConfig{
			Enabled:          getbool("CRON_ENABLED", true),
			PurgeIdempotency: getenv("CRON_PURGE_IDEMPOTENCY", "@hourly"),
			RefreshBlogs:     getenv("CRON_REFRESH_BLOGS", "0 3 * * *"),
			RefreshBatch:     getint("CRON_REFRESH_BATCH", 20),
		},

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Idempotency
		IdempotencyTTL: getdur("IDEMPOTENCY_TTL", 24*time.Hour),

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "icp-dashboard"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	if cfg.DBDriver == "postgresql" {
		cfg.DBDriver = "postgres"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	switch cfg.DBDriver {
	case "sqlite":
		if strings.TrimSpace(cfg.DBPath) == "" {
			return cfg, errors.New("DB_PATH must not be empty")
		}
	case "postgres":
		if strings.TrimSpace(cfg.DatabaseURL) == "" {
			return cfg, errors.New("DATABASE_URL must be set when DB_DRIVER=postgres")
		}
	default:
		return cfg, errors.New("DB_DRIVER must be one of: sqlite, postgres")
	}
	if cfg.OpenAI.Timeout <= 0 || cfg.Firecrawl.Timeout <= 0 || cfg.Serp.Timeout <= 0 {
		return cfg, errors.New("upstream timeouts must be positive durations")
	}
	if cfg.Firecrawl.RetryMax < 0 {
		return cfg, errors.New("FIRECRAWL_RETRY_MAX must be >= 0")
	}
	if cfg.Serp.RPS <= 0 {
		return cfg, errors.New("SERP_RPS must be > 0")
	}
	if cfg.Serp.CacheTTL < 0 {
		return cfg, errors.New("SERP_CACHE_TTL must be >= 0")
	}
	if cfg.Cycle.EditPassword == "" || cfg.Cycle.UnlockPassword == "" {
		return cfg, errors.New("EDIT_PASSWORD and UNLOCK_PASSWORD must not be empty")
	}
	if cfg.Cycle.PageSize < 1 {
		return cfg, errors.New("TARGETS_PAGE_SIZE must be >= 1")
	}
	if cfg.Performance.Workers < 1 || cfg.Performance.FlushEvery < 1 {
		return cfg, errors.New("RANK_WORKERS and RANK_FLUSH_EVERY must be >= 1")
	}
	if cfg.Performance.FreshFor <= 0 {
		return cfg, errors.New("PERF_TTL must be > 0")
	}
	if cfg.Session.MaxAge <= 0 {
		return cfg, errors.New("SESSION_MAX_AGE must be > 0")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.IdempotencyTTL <= 0 {
		return cfg, errors.New("IDEMPOTENCY_TTL must be > 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}
	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
