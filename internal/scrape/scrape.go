// Package scrape turns web pages into markdown. Pages go through Firecrawl
// when an API key is configured; otherwise they are fetched directly and
// flattened with goquery. Blog titles are taken from the markdown links of a
// blog index page, or from the entries of an RSS/Atom feed.
package scrape

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/mmcdole/gofeed"
	"github.com/samber/lo"
	"github.com/tidwall/gjson"
)

var (
	// ErrTimeout is returned when a scrape exceeds its deadline.
	ErrTimeout = errors.New("scrape: request timed out")
	// ErrFailed is returned when the scraper reports an unsuccessful scrape.
	ErrFailed = errors.New("Firecrawl scrape failed")
)

// firecrawlTimeoutMS is the page budget sent to Firecrawl.
const firecrawlTimeoutMS = 60000

// blogLink matches markdown links whose target contains /blog/.
var blogLink = regexp.MustCompile(`(?i)\[([^\]]+?)\]\(([^)]+?/blog/[^)]+?)\)`)

// Config configures a Client.
type Config struct {
	APIKey   string
	BaseURL  string
	Timeout  time.Duration
	RetryMax int
}

// Site is the result of ScrapeSite.
type Site struct {
	ProductMarkdown string
	BlogTitles      []string
}

// Client scrapes pages and blog indexes.
type Client struct {
	apiKey  string
	baseURL string
	http    *retryablehttp.Client
	feeds   *gofeed.Parser
}

// New builds a Client from cfg.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 75 * time.Second
	}
	rc := retryablehttp.NewClient()
	rc.Logger = log.New(io.Discard, "", 0)
	rc.RetryMax = cfg.RetryMax
	rc.HTTPClient.Timeout = timeout
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = "https://api.firecrawl.dev"
	}
	fp := gofeed.NewParser()
	fp.Client = rc.StandardClient()
	return &Client{
		apiKey:  strings.TrimSpace(cfg.APIKey),
		baseURL: base,
		http:    rc,
		feeds:   fp,
	}
}

// ScrapePage returns the markdown of one page. Unlike the site scrape, a
// failed page scrape is always an error.
func (c *Client) ScrapePage(ctx context.Context, pageURL string) (string, error) {
	if c.apiKey == "" {
		return c.fetchDirect(ctx, pageURL)
	}
	return c.firecrawl(ctx, pageURL)
}

// ScrapeSite scrapes the product page and, when blogURL is set, collects
// the titles of the posts it links to.
func (c *Client) ScrapeSite(ctx context.Context, pageURL, blogURL string) (*Site, error) {
	md, err := c.ScrapePage(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	site := &Site{ProductMarkdown: md, BlogTitles: []string{}}
	if blogURL == "" {
		return site, nil
	}
	if isFeedURL(blogURL) {
		site.BlogTitles, err = c.FeedTitles(ctx, blogURL)
		return site, err
	}
	blogMD, err := c.ScrapePage(ctx, blogURL)
	if err != nil {
		return nil, err
	}
	site.BlogTitles = BlogTitles(blogMD)
	return site, nil
}

// FeedTitles returns the distinct, non-empty item titles of a feed.
func (c *Client) FeedTitles(ctx context.Context, feedURL string) ([]string, error) {
	feed, err := c.feeds.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, classify("feed", err)
	}
	titles := make([]string, 0, len(feed.Items))
	for _, it := range feed.Items {
		if t := strings.TrimSpace(it.Title); t != "" {
			titles = append(titles, t)
		}
	}
	return lo.Uniq(titles), nil
}

// BlogTitles extracts the link texts of every markdown link pointing at a
// /blog/ path, trimmed and without duplicates, in first-seen order.
func BlogTitles(markdown string) []string {
	var titles []string
	for _, m := range blogLink.FindAllStringSubmatch(markdown, -1) {
		if t := strings.TrimSpace(m[1]); t != "" {
			titles = append(titles, t)
		}
	}
	if titles == nil {
		return []string{}
	}
	return lo.Uniq(titles)
}

type firecrawlRequest struct {
	URL     string   `json:"url"`
	Formats []string `json:"formats"`
	Timeout int      `json:"timeout"`
}

func (c *Client) firecrawl(ctx context.Context, pageURL string) (string, error) {
	raw, err := json.Marshal(firecrawlRequest{
		URL:     pageURL,
		Formats: []string{"markdown"},
		Timeout: firecrawlTimeoutMS,
	})
	if err != nil {
		return "", err
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/scrape", bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("firecrawl: new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", classify("firecrawl", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return "", classify("firecrawl", err)
	}
	if !gjson.GetBytes(body, "success").Bool() || resp.StatusCode >= http.StatusMultipleChoices {
		if msg := gjson.GetBytes(body, "error").String(); msg != "" {
			return "", fmt.Errorf("%w: %s", ErrFailed, msg)
		}
		return "", ErrFailed
	}
	return gjson.GetBytes(body, "data.markdown").String(), nil
}

func (c *Client) fetchDirect(ctx context.Context, pageURL string) (string, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("fetch: new request: %w", err)
	}
	req.Header.Set("User-Agent", "icp-dashboard/1.0")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", classify("fetch", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: %s returned %s", ErrFailed, pageURL, resp.Status)
	}
	md, err := HTMLToMarkdown(resp.Body, resp.Request.URL)
	if err != nil {
		return "", classify("fetch", err)
	}
	return md, nil
}

func isFeedURL(u string) bool {
	low := strings.ToLower(u)
	if i := strings.IndexAny(low, "?#"); i >= 0 {
		low = low[:i]
	}
	low = strings.TrimRight(low, "/")
	for _, suf := range []string{".xml", ".rss", ".atom", "/feed", "/rss", "/atom"} {
		if strings.HasSuffix(low, suf) {
			return true
		}
	}
	return false
}

// classify maps deadline and network timeouts to ErrTimeout.
func classify(op string, err error) error {
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return fmt.Errorf("%w: %s: %v", ErrTimeout, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
