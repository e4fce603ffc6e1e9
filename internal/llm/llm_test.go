package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type captured struct {
	path string
	auth string
	body map[string]any
}

func newServer(t *testing.T, status int, reply string, got *captured) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got != nil {
			got.path = r.URL.Path
			got.auth = r.Header.Get("Authorization")
			raw, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(raw, &got.body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func chatReply(content string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []any{map[string]any{"message": map[string]any{"role": "assistant", "content": content}}},
	})
	return string(b)
}

func userContent(t *testing.T, body map[string]any) string {
	t.Helper()
	msgs, _ := body["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("messages=%v", body["messages"])
	}
	m, _ := msgs[1].(map[string]any)
	s, _ := m["content"].(string)
	return s
}

func TestNew_Defaults(t *testing.T) {
	c := New(Config{APIKey: " k ", BaseURL: "http://x/v1/"})
	if c.apiKey != "k" || c.baseURL != "http://x/v1" || c.model != defaultModel {
		t.Fatalf("unexpected client: %+v", c)
	}
	if c.prompts.Outline == "" {
		t.Fatal("default prompts not applied")
	}
}

func TestNotConfigured(t *testing.T) {
	c := New(Config{})
	if _, err := c.Outline(context.Background(), "kw", ""); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("want ErrNotConfigured, got %v", err)
	}
}

func TestAnalyseContent(t *testing.T) {
	var got captured
	reply := chatReply(`{"productDescription":"CRM","icps":[{"name":"Founders","problems":["best crm for startups"]},{"name":"Ops"}]}`)
	srv := newServer(t, 200, reply, &got)
	c := New(Config{APIKey: "k", BaseURL: srv.URL})

	md := strings.Repeat("é", AnalyseLimit+50)
	a, err := c.AnalyseContent(context.Background(), md, []string{"Post A", "Post B"})
	if err != nil {
		t.Fatal(err)
	}
	if a.ProductDescription != "CRM" || len(a.ICPs) != 2 || a.ICPs[0].Problems[0] != "best crm for startups" {
		t.Fatalf("analysis=%+v", a)
	}
	if a.ICPs[1].Problems == nil {
		t.Fatal("nil problems should become empty")
	}
	if got.path != "/chat/completions" || got.auth != "Bearer k" {
		t.Fatalf("path=%s auth=%s", got.path, got.auth)
	}
	if got.body["model"] != "gpt-4.1" || got.body["temperature"] != 0.3 {
		t.Fatalf("body=%v", got.body)
	}
	if rf, _ := got.body["response_format"].(map[string]any); rf["type"] != "json_object" {
		t.Fatalf("response_format=%v", got.body["response_format"])
	}
	u := userContent(t, got.body)
	if strings.Count(u, "é") != AnalyseLimit {
		t.Fatalf("markdown not clipped to %d runes", AnalyseLimit)
	}
	if !strings.Contains(u, "## BLOG TITLES\nPost A\nPost B") {
		t.Fatalf("titles missing: %q", u[len(u)-40:])
	}
}

func TestAnalyseContent_BadShape(t *testing.T) {
	srv := newServer(t, 200, chatReply(`{"foo":1}`), nil)
	c := New(Config{APIKey: "k", BaseURL: srv.URL})
	if _, err := c.AnalyseContent(context.Background(), "md", nil); !errors.Is(err, ErrBadResponse) {
		t.Fatalf("want ErrBadResponse, got %v", err)
	}
}

func TestGenerateQueries(t *testing.T) {
	var got captured
	srv := newServer(t, 200, chatReply(`{"queries":["a b c"," ","d e f"]}`), &got)
	c := New(Config{APIKey: "k", BaseURL: srv.URL})

	qs, err := c.GenerateQueries(context.Background(), "company", "Founders — early stage")
	if err != nil {
		t.Fatal(err)
	}
	if len(qs) != 2 || qs[0] != "a b c" || qs[1] != "d e f" {
		t.Fatalf("queries=%v", qs)
	}
	if _, ok := got.body["temperature"]; ok {
		t.Fatal("queries should use the default temperature")
	}
	u := userContent(t, got.body)
	if !strings.Contains(u, "ICP: Founders — early stage\nGive 6-8") {
		t.Fatalf("user prompt=%q", u)
	}
}

func TestOutline(t *testing.T) {
	var got captured
	srv := newServer(t, 200, chatReply("## Intro"), &got)
	c := New(Config{APIKey: "k", BaseURL: srv.URL})

	out, err := c.Outline(context.Background(), "crm pricing", "ctx")
	if err != nil || out != "## Intro" {
		t.Fatalf("out=%q err=%v", out, err)
	}
	if _, ok := got.body["response_format"]; ok {
		t.Fatal("outline is plain markdown")
	}
	if u := userContent(t, got.body); u != "Company context (may help):\n<<<ctx>>>\n\nKeyword: \"crm pricing\"" {
		t.Fatalf("user prompt=%q", u)
	}
}

func TestBlogPlan_EmptyReply(t *testing.T) {
	srv := newServer(t, 200, chatReply(""), nil)
	c := New(Config{APIKey: "k", BaseURL: srv.URL})
	p, err := c.BlogPlan(context.Background(), "article")
	if err != nil {
		t.Fatal(err)
	}
	if p.MustPhrases == nil || p.Groups == nil || len(p.Groups) != 0 {
		t.Fatalf("plan=%+v", p)
	}
}

func TestGapReport(t *testing.T) {
	var got captured
	srv := newServer(t, 200, chatReply(`{"summaryRanked":"ok","summaryGap":"gap","ideas":[{"title":"T","type":"blog","angle":"A","outline":["x"]}]}`), &got)
	c := New(Config{APIKey: "k", BaseURL: srv.URL})
	r, err := c.GapReport(context.Background(), GapInput{
		CompanyMarkdown: "md",
		SelectedICPs:    []GapICP{{Name: "Founders", Queries: []string{"q1"}}},
		Ranked:          []string{"q1"},
		NotRanked:       []string{"q2", "q3"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if r.SummaryGap != "gap" || len(r.Ideas) != 1 || r.Ideas[0].Type != "blog" {
		t.Fatalf("report=%+v", r)
	}
	u := userContent(t, got.body)
	if !strings.Contains(u, "NOT-RANKED QUERIES:\nq2\nq3") || !strings.HasSuffix(u, "Give exactly 5 detailed content ideas.") {
		t.Fatalf("user prompt=%q", u)
	}
}

func TestAnswer_OutputItems(t *testing.T) {
	var got captured
	reply := `{"output":[
		{"type":"web_search_call","status":"completed"},
		{"type":"message","content":[{"type":"output_text","text":"Hello "},{"type":"refusal","text":"x"},{"type":"output_text","text":"world"}]}
	]}`
	srv := newServer(t, 200, reply, &got)
	c := New(Config{APIKey: "k", BaseURL: srv.URL})

	out, err := c.Answer(context.Background(), AnswerPrompt("best crm", ""))
	if err != nil {
		t.Fatal(err)
	}
	if out != "Hello world" {
		t.Fatalf("out=%q", out)
	}
	if got.path != "/responses" {
		t.Fatalf("path=%s", got.path)
	}
	tools, _ := got.body["tools"].([]any)
	if len(tools) != 1 || tools[0].(map[string]any)["type"] != "web_search_preview" {
		t.Fatalf("tools=%v", got.body["tools"])
	}
}

func TestAnswerPrompt(t *testing.T) {
	if p := AnswerPrompt("q", "https://a.io/x"); p != "Answer the user query below and cite this exact page once in brackets: https://a.io/x.\n\nUser query: \"q\"" {
		t.Fatalf("with link: %q", p)
	}
	if p := AnswerPrompt("q", ""); !strings.HasPrefix(p, "Answer the user query below using reputable sources you find.") {
		t.Fatalf("without link: %q", p)
	}
}

func TestUpstreamErrorMessage(t *testing.T) {
	srv := newServer(t, 429, `{"error":{"message":"Rate limit reached"}}`, nil)
	c := New(Config{APIKey: "k", BaseURL: srv.URL})
	_, err := c.Outline(context.Background(), "kw", "")
	if err == nil || !strings.Contains(err.Error(), "Rate limit reached") {
		t.Fatalf("err=%v", err)
	}
}

func TestTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()
	c := New(Config{APIKey: "k", BaseURL: srv.URL})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.Answer(ctx, "q")
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("want ErrTimeout, got %v", err)
	}
}

func TestLoadPrompts_Override(t *testing.T) {
	p := filepath.Join(t.TempDir(), "prompts.yaml")
	if err := os.WriteFile(p, []byte("outline: custom outline\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	got, err := LoadPrompts(p)
	if err != nil {
		t.Fatal(err)
	}
	def := DefaultPrompts()
	if got.Outline != "custom outline" || got.Analyse != def.Analyse || got.GapReport != def.GapReport {
		t.Fatalf("prompts=%+v", got)
	}
	if _, err := LoadPrompts(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("want error for missing file")
	}
	if d, err := LoadPrompts(""); err != nil || d != def {
		t.Fatalf("empty path: %v", err)
	}
}
