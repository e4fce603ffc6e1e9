package scrape

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
)

func TestBlogTitles(t *testing.T) {
	md := `
# Blog
[ Best CRM for startups ](https://acme.io/blog/best-crm)
[About](https://acme.io/about)
[CRM pricing](/BLOG/pricing) and again [Best CRM for startups](https://acme.io/blog/best-crm?x=1)
[   ](https://acme.io/blog/empty)
`
	got := BlogTitles(md)
	want := []string{"Best CRM for startups", "CRM pricing"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("titles=%q want %q", got, want)
	}
	if got := BlogTitles("no links"); got == nil || len(got) != 0 {
		t.Fatalf("want empty non-nil slice, got %#v", got)
	}
}

func firecrawlStub(t *testing.T, pages map[string]string, calls *[]map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/scrape" || r.Header.Get("Authorization") != "Bearer fc" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var body map[string]any
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		if calls != nil {
			*calls = append(*calls, body)
		}
		md, ok := pages[body["url"].(string)]
		w.Header().Set("Content-Type", "application/json")
		if !ok {
			w.WriteHeader(http.StatusPaymentRequired)
			_, _ = io.WriteString(w, `{"success":false,"error":"Insufficient credits"}`)
			return
		}
		out, _ := json.Marshal(map[string]any{"success": true, "data": map[string]any{"markdown": md}})
		_, _ = w.Write(out)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestScrapeSite_Firecrawl(t *testing.T) {
	var calls []map[string]any
	srv := firecrawlStub(t, map[string]string{
		"https://acme.io":      "# Acme CRM",
		"https://acme.io/blog": "[Post one](https://acme.io/blog/one)\n[Post one](https://acme.io/blog/one)",
	}, &calls)
	c := New(Config{APIKey: "fc", BaseURL: srv.URL})

	site, err := c.ScrapeSite(context.Background(), "https://acme.io", "https://acme.io/blog")
	if err != nil {
		t.Fatal(err)
	}
	if site.ProductMarkdown != "# Acme CRM" || len(site.BlogTitles) != 1 || site.BlogTitles[0] != "Post one" {
		t.Fatalf("site=%+v", site)
	}
	if len(calls) != 2 {
		t.Fatalf("calls=%d", len(calls))
	}
	if calls[0]["timeout"] != float64(60000) || calls[0]["formats"].([]any)[0] != "markdown" {
		t.Fatalf("request body=%v", calls[0])
	}
}

func TestScrapePage_FailureMessage(t *testing.T) {
	srv := firecrawlStub(t, map[string]string{}, nil)
	c := New(Config{APIKey: "fc", BaseURL: srv.URL})
	_, err := c.ScrapePage(context.Background(), "https://nope.io")
	if !errors.Is(err, ErrFailed) || !strings.Contains(err.Error(), "Insufficient credits") {
		t.Fatalf("err=%v", err)
	}
}

func TestScrapeSite_NoBlog(t *testing.T) {
	srv := firecrawlStub(t, map[string]string{"https://acme.io": "md"}, nil)
	c := New(Config{APIKey: "fc", BaseURL: srv.URL})
	site, err := c.ScrapeSite(context.Background(), "https://acme.io", "")
	if err != nil || site.BlogTitles == nil || len(site.BlogTitles) != 0 {
		t.Fatalf("site=%+v err=%v", site, err)
	}
}

func TestScrapePage_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()
	c := New(Config{APIKey: "fc", BaseURL: srv.URL})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := c.ScrapePage(ctx, "https://acme.io"); !errors.Is(err, ErrTimeout) {
		t.Fatalf("want ErrTimeout, got %v", err)
	}
}

const page = `<html><head><title>x</title><script>var a = 1;</script></head>
<body>
<nav><ul><li><a href="/blog/first-post">First   post</a></li></ul></nav>
<h1>Acme CRM</h1>
<p>CRM for <b>startups</b>. See <a href="https://acme.io/pricing">pricing</a>.</p>
<style>.x{}</style>
</body></html>`

func TestHTMLToMarkdown(t *testing.T) {
	base, _ := url.Parse("https://acme.io/")
	md, err := HTMLToMarkdown(strings.NewReader(page), base)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"- [First post](https://acme.io/blog/first-post)",
		"# Acme CRM",
		"CRM for startups. See [pricing](https://acme.io/pricing).",
	} {
		if !strings.Contains(md, want) {
			t.Fatalf("missing %q in:\n%s", want, md)
		}
	}
	if strings.Contains(md, "var a") || strings.Contains(md, ".x{}") {
		t.Fatalf("script/style leaked:\n%s", md)
	}
}

func TestScrapePage_DirectFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = io.WriteString(w, page)
	}))
	defer srv.Close()
	c := New(Config{})

	md, err := c.ScrapePage(context.Background(), srv.URL+"/")
	if err != nil {
		t.Fatal(err)
	}
	if titles := BlogTitles(md); len(titles) != 1 || titles[0] != "First post" {
		t.Fatalf("titles=%q from:\n%s", titles, md)
	}
}

const rss = `<?xml version="1.0"?>
<rss version="2.0"><channel><title>Acme</title>
<item><title>Post A</title><link>https://acme.io/blog/a</link></item>
<item><title> Post B </title><link>https://acme.io/blog/b</link></item>
<item><title>Post A</title><link>https://acme.io/blog/a2</link></item>
</channel></rss>`

func TestScrapeSite_Feed(t *testing.T) {
	feed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = io.WriteString(w, rss)
	}))
	defer feed.Close()
	srv := firecrawlStub(t, map[string]string{"https://acme.io": "md"}, nil)
	c := New(Config{APIKey: "fc", BaseURL: srv.URL})

	site, err := c.ScrapeSite(context.Background(), "https://acme.io", feed.URL+"/feed")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(site.BlogTitles, "|") != "Post A|Post B" {
		t.Fatalf("titles=%q", site.BlogTitles)
	}
}

func TestIsFeedURL(t *testing.T) {
	cases := map[string]bool{
		"https://a.io/feed":         true,
		"https://a.io/blog/rss.xml": true,
		"https://a.io/atom/?x=1":    true,
		"https://a.io/blog":         false,
		"https://a.io/feedback":     false,
	}
	for u, want := range cases {
		if got := isFeedURL(u); got != want {
			t.Errorf("isFeedURL(%q)=%v want %v", u, got, want)
		}
	}
}
