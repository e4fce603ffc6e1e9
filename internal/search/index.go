// Package search scores text against keywords. It holds a small in-memory
// paragraph index used to keep the parts of a long company page that matter
// for a keyword, plus the deterministic heuristics behind answer reports.
//
// Scoring uses Jaccard similarity between the query token set and each
// paragraph's token set: score = |Q ∩ P| / |Q ∪ P|. Indices are read-only
// after construction and safe for concurrent use.
package search

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// Result is a ranked paragraph with its similarity score.
type Result struct {
	Snippet string
	Score   float64
	Pos     int // position of the paragraph in the source document
}

// Index is implemented by all search indices.
type Index interface {
	TopK(query string, k int) []Result
	Len() int
}

// Option configures index construction.
type Option func(*config)

type config struct {
	minParagraphRunes int
	stopwords         map[string]struct{}
	maxDocs           int
}

func defaultConfig() config {
	return config{minParagraphRunes: 20, stopwords: defaultStopwords}
}

// WithMinParagraphRunes drops paragraphs shorter than n runes.
func WithMinParagraphRunes(n int) Option {
	return func(c *config) {
		if n >= 0 {
			c.minParagraphRunes = n
		}
	}
}

// WithStopwords replaces the built-in English stopword list.
func WithStopwords(words []string) Option {
	return func(c *config) {
		m := make(map[string]struct{}, len(words))
		for _, w := range words {
			w = strings.ToLower(strings.TrimSpace(w))
			if w != "" {
				m[w] = struct{}{}
			}
		}
		c.stopwords = m
	}
}

// WithMaxDocs caps the number of indexed paragraphs.
func WithMaxDocs(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxDocs = n
		}
	}
}

type doc struct {
	pos    int
	text   string
	tokens map[string]struct{}
}

type index struct {
	cfg  config
	docs []doc
}

// NewIndex builds an Index over the paragraphs of a markdown document.
// Tables are flattened first so each row is a paragraph of its own.
func NewIndex(markdown string, opts ...Option) Index {
	return NewIndexFromStrings(Paragraphs(Flatten(markdown)), opts...)
}

// NewIndexFromStrings builds an Index directly from paragraphs.
func NewIndexFromStrings(paragraphs []string, opts ...Option) Index {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	docs := make([]doc, 0, len(paragraphs))
	for pos, raw := range paragraphs {
		t := strings.TrimSpace(normalizeWhitespace(raw))
		if t == "" {
			continue
		}
		if cfg.minParagraphRunes > 0 && utf8.RuneCountInString(t) < cfg.minParagraphRunes {
			continue
		}
		toks := tokenize(t, cfg.stopwords)
		if len(toks) == 0 {
			continue
		}
		docs = append(docs, doc{pos: pos, text: t, tokens: toks})
		if cfg.maxDocs > 0 && len(docs) >= cfg.maxDocs {
			break
		}
	}
	return &index{cfg: cfg, docs: docs}
}

func (i *index) Len() int { return len(i.docs) }

// TopK returns up to k paragraphs with a positive score, best first. Ties go
// to the shorter paragraph, then to the earlier one.
func (i *index) TopK(q string, k int) []Result {
	if len(i.docs) == 0 || k <= 0 {
		return nil
	}
	qTokens := tokenize(q, i.cfg.stopwords)
	if len(qTokens) == 0 {
		return nil
	}

	type scored struct {
		Result
		runes int
	}
	buf := make([]scored, 0, len(i.docs))
	for _, d := range i.docs {
		s := jaccard(qTokens, d.tokens)
		if s <= 0 {
			continue
		}
		buf = append(buf, scored{Result{Snippet: d.text, Score: s, Pos: d.pos}, utf8.RuneCountInString(d.text)})
	}
	sort.SliceStable(buf, func(a, b int) bool {
		if buf[a].Score != buf[b].Score {
			return buf[a].Score > buf[b].Score
		}
		if buf[a].runes != buf[b].runes {
			return buf[a].runes < buf[b].runes
		}
		return buf[a].Pos < buf[b].Pos
	})
	if k > len(buf) {
		k = len(buf)
	}
	out := make([]Result, k)
	for j := range out {
		out[j] = buf[j].Result
	}
	return out
}

// Focus shortens markdown to at most limit runes. Text that already fits is
// returned unchanged. Otherwise the paragraphs most similar to query are kept,
// in document order, after the opening paragraph; when nothing matches the
// text is simply cut at limit.
func Focus(markdown, query string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(markdown) <= limit {
		return markdown
	}
	paras := Paragraphs(Flatten(markdown))
	idx := NewIndexFromStrings(paras, WithMinParagraphRunes(0))
	hits := idx.TopK(query, idx.Len())
	if len(hits) == 0 || len(paras) == 0 {
		return clip(markdown, limit)
	}

	keep := map[int]bool{0: true}
	budget := limit - utf8.RuneCountInString(paras[0])
	for _, h := range hits {
		if h.Pos == 0 {
			continue
		}
		n := utf8.RuneCountInString(paras[h.Pos]) + 2
		if n > budget {
			continue
		}
		keep[h.Pos] = true
		budget -= n
	}
	var out []string
	for pos, p := range paras {
		if keep[pos] {
			out = append(out, p)
		}
	}
	return clip(strings.Join(out, "\n\n"), limit)
}

// Paragraphs splits text on blank lines, dropping empty chunks.
func Paragraphs(s string) []string {
	chunks := paraSplitRE.Split(s, -1)
	out := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if t := strings.TrimSpace(c); t != "" {
			out = append(out, t)
		}
	}
	return out
}

var (
	wordRE      = regexp.MustCompile(`[\p{L}\p{N}]+`)
	paraSplitRE = regexp.MustCompile(`\n\s*\n`)
)

// Tokens returns the distinct lowercase words of s minus stopwords.
func Tokens(s string) map[string]struct{} {
	return tokenize(s, defaultStopwords)
}

func tokenize(s string, stop map[string]struct{}) map[string]struct{} {
	words := wordRE.FindAllString(strings.ToLower(s), -1)
	if len(words) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		if _, skip := stop[w]; skip {
			continue
		}
		out[w] = struct{}{}
	}
	return out
}

func overlap(a, b map[string]struct{}) int {
	if len(a) > len(b) {
		a, b = b, a
	}
	n := 0
	for k := range a {
		if _, ok := b[k]; ok {
			n++
		}
	}
	return n
}

func jaccard(a, b map[string]struct{}) float64 {
	over := overlap(a, b)
	if over == 0 {
		return 0
	}
	return float64(over) / float64(len(a)+len(b)-over)
}

func normalizeWhitespace(s string) string {
	return strings.Join(strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\r'
	}), " ")
}

func clip(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

var defaultStopwords = func() map[string]struct{} {
	words := strings.Fields(`a an and are as at be by for from how i in is it of on or
		that the this to was what when where which who why with you your`)
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}()
