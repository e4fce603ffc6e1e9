package scrape

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// HTMLToMarkdown flattens an HTML document into a rough markdown rendering:
// headings keep their # prefix, links become [text](absolute-url) and
// scripts, styles and navigation chrome are dropped. base resolves relative
// links and may be nil.
func HTMLToMarkdown(r io.Reader, base *url.URL) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", fmt.Errorf("parse document: %w", err)
	}
	doc.Find("script, style, noscript, svg, iframe, template").Remove()

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		text := collapse(s.Text())
		href, _ := s.Attr("href")
		if text == "" || href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
			return
		}
		if base != nil {
			if ref, err := url.Parse(href); err == nil {
				href = base.ResolveReference(ref).String()
			}
		}
		s.ReplaceWithHtml(escape("[" + text + "](" + href + ")"))
	})

	var b strings.Builder
	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}
	root.Find("h1, h2, h3, h4, h5, h6, p, li, td, th, blockquote, pre").Each(func(_ int, s *goquery.Selection) {
		// Nested matches are emitted through their innermost block only.
		if s.Find("p, li, h1, h2, h3, h4, h5, h6, blockquote, pre").Length() > 0 {
			return
		}
		text := collapse(s.Text())
		if text == "" {
			return
		}
		switch tag := goquery.NodeName(s); tag {
		case "h1", "h2", "h3", "h4", "h5", "h6":
			b.WriteString(strings.Repeat("#", int(tag[1]-'0')) + " ")
		case "li":
			b.WriteString("- ")
		case "blockquote":
			b.WriteString("> ")
		}
		b.WriteString(text)
		b.WriteString("\n\n")
	})
	return strings.TrimSpace(b.String()), nil
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func escape(s string) string {
	return strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;").Replace(s)
}
