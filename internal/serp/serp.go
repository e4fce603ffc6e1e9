// Package serp checks whether a domain appears in the organic results of a
// search engine query, using SerpAPI for both Google and Bing.
package serp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/tbourn/go-icp-dashboard/internal/cache"
)

var (
	// ErrTimeout is returned when a lookup exceeds its deadline.
	ErrTimeout = errors.New("serp: request timed out")
	// ErrNotConfigured is returned when no API key is set.
	ErrNotConfigured = errors.New("serp: SERP_API_KEY is not set")
)

// Engine names a search engine.
type Engine string

const (
	Google Engine = "google"
	Bing   Engine = "bing"
)

// Result reports whether the domain ranked and, if so, the first matching
// link. URL is nil when not ranked so it encodes as JSON null.
type Result struct {
	Ranked bool    `json:"ranked"`
	URL    *string `json:"url"`
}

// Config configures a Client.
type Config struct {
	APIKey       string
	BaseURL      string
	Location     string
	HL           string
	GL           string
	GoogleDomain string
	Timeout      time.Duration
	RPS          float64
	CacheTTL     time.Duration
	Cache        cache.Store // optional
	HTTPClient   *http.Client
}

// Client performs rank lookups. It is safe for concurrent use.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	cache   cache.Store
}

// New builds a Client. Outbound requests are paced at cfg.RPS; a zero RPS
// disables pacing.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://serpapi.com/search.json"
	}
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	lim := rate.NewLimiter(rate.Inf, 1)
	if cfg.RPS > 0 {
		lim = rate.NewLimiter(rate.Limit(cfg.RPS), 1)
	}
	c := &Client{cfg: cfg, http: hc, limiter: lim}
	if cfg.Cache != nil && cfg.CacheTTL > 0 {
		c.cache = cfg.Cache
	}
	return c
}

// CheckGoogle looks the query up on Google.
func (c *Client) CheckGoogle(ctx context.Context, query, domain string) (Result, error) {
	return c.Check(ctx, Google, query, domain)
}

// CheckBing looks the query up on Bing.
func (c *Client) CheckBing(ctx context.Context, query, domain string) (Result, error) {
	return c.Check(ctx, Bing, query, domain)
}

// Check reports whether domain appears, case-insensitively, in any organic
// result link for query on engine.
func (c *Client) Check(ctx context.Context, engine Engine, query, domain string) (Result, error) {
	links, err := c.organicLinks(ctx, engine, query)
	if err != nil {
		return Result{}, err
	}
	return Match(links, domain), nil
}

// Match returns the first link containing domain.
func Match(links []string, domain string) Result {
	d := strings.ToLower(domain)
	for _, l := range links {
		if strings.Contains(strings.ToLower(l), d) {
			u := l
			return Result{Ranked: true, URL: &u}
		}
	}
	return Result{}
}

func (c *Client) cacheKey(engine Engine, query string) string {
	return "serp:" + string(engine) + ":" + c.cfg.GL + ":" + query
}

func (c *Client) organicLinks(ctx context.Context, engine Engine, query string) ([]string, error) {
	if c.cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}
	key := c.cacheKey(engine, query)
	if c.cache != nil {
		// Cache errors degrade to a live lookup.
		if v, ok, err := c.cache.Get(ctx, key); err == nil && ok {
			var links []string
			if json.Unmarshal([]byte(v), &links) == nil {
				return links, nil
			}
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, classify(string(engine), err)
	}
	body, err := c.fetch(ctx, engine, query)
	if err != nil {
		return nil, err
	}
	links := []string{}
	gjson.GetBytes(body, "organic_results").ForEach(func(_, r gjson.Result) bool {
		if l := r.Get("link").String(); l != "" {
			links = append(links, l)
		}
		return true
	})

	if c.cache != nil {
		if raw, err := json.Marshal(links); err == nil {
			_ = c.cache.Set(ctx, key, string(raw), c.cfg.CacheTTL)
		}
	}
	return links, nil
}

func (c *Client) fetch(ctx context.Context, engine Engine, query string) ([]byte, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("location", c.cfg.Location)
	params.Set("hl", c.cfg.HL)
	params.Set("gl", c.cfg.GL)
	params.Set("google_domain", c.cfg.GoogleDomain)
	params.Set("api_key", c.cfg.APIKey)
	if engine == Bing {
		params.Set("engine", "bing")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%s: new request: %w", engine, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classify(string(engine), redact(err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, classify(string(engine), err)
	}
	if msg := gjson.GetBytes(body, "error").String(); msg != "" {
		return nil, fmt.Errorf("%s: %s", engine, msg)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: upstream returned HTTP %d", engine, resp.StatusCode)
	}
	return body, nil
}

// redact drops the request URL, which carries the API key, from transport
// errors.
func redact(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return ue.Err
	}
	return err
}

// classify maps deadline and network timeouts to ErrTimeout.
func classify(op string, err error) error {
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return fmt.Errorf("%w: %s: %v", ErrTimeout, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
