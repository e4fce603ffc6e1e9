// Package llm is a small client for an OpenAI-compatible API. It covers the
// chat-completions calls used to analyse sites, plan keywords, draft outlines
// and gap reports, plus the Responses API with web search used by answer
// reports.
//
// Calls are not retried. A request that runs out of time fails with an error
// matching ErrTimeout.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tidwall/gjson"
)

var (
	// ErrTimeout is returned when a call exceeds its deadline.
	ErrTimeout = errors.New("llm: request timed out")
	// ErrNotConfigured is returned when no API key is set.
	ErrNotConfigured = errors.New("llm: OPENAI_API_KEY is not set")
	// ErrBadResponse is returned when the model output does not match the
	// expected JSON shape.
	ErrBadResponse = errors.New("llm: unexpected response shape")
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "gpt-4.1"
)

// Config configures a Client.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	Prompts    Prompts
	HTTPClient *http.Client
}

// Client talks to the chat-completions and responses endpoints.
type Client struct {
	apiKey  string
	baseURL string
	model   string
	prompts Prompts
	http    *http.Client
}

// New builds a Client. A missing API key is not an error here; calls fail
// with ErrNotConfigured instead so the server can start without credentials.
func New(cfg Config) *Client {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = defaultBaseURL
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 120 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	p := cfg.Prompts
	if p == (Prompts{}) {
		p = DefaultPrompts()
	}
	return &Client{
		apiKey:  strings.TrimSpace(cfg.APIKey),
		baseURL: base,
		model:   model,
		prompts: p,
		http:    hc,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    *float64        `json:"temperature,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type tool struct {
	Type string `json:"type"`
}

type responsesRequest struct {
	Model string `json:"model"`
	Tools []tool `json:"tools"`
	Input string `json:"input"`
}

// chatOptions tunes a single completion.
type chatOptions struct {
	temperature *float64
	jsonMode    bool
}

func temp(v float64) *float64 { return &v }

// complete sends one system+user exchange and returns the first choice.
func (c *Client) complete(ctx context.Context, op, system, user string, o chatOptions) (string, error) {
	req := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: o.temperature,
	}
	if o.jsonMode {
		req.ResponseFormat = &responseFormat{Type: "json_object"}
	}
	body, err := c.post(ctx, op, "/chat/completions", req)
	if err != nil {
		return "", err
	}
	return gjson.GetBytes(body, "choices.0.message.content").String(), nil
}

// respond calls the Responses API with the web search tool enabled and
// returns the concatenated output text.
func (c *Client) respond(ctx context.Context, op, input string) (string, error) {
	body, err := c.post(ctx, op, "/responses", responsesRequest{
		Model: c.model,
		Tools: []tool{{Type: "web_search_preview"}},
		Input: input,
	})
	if err != nil {
		return "", err
	}
	return outputText(body), nil
}

// outputText mirrors the SDK's output_text helper: every output_text part of
// every message item, in order.
func outputText(body []byte) string {
	if v := gjson.GetBytes(body, "output_text"); v.Type == gjson.String {
		return v.String()
	}
	var b strings.Builder
	gjson.GetBytes(body, "output").ForEach(func(_, item gjson.Result) bool {
		if item.Get("type").String() != "message" {
			return true
		}
		item.Get("content").ForEach(func(_, part gjson.Result) bool {
			if part.Get("type").String() == "output_text" {
				b.WriteString(part.Get("text").String())
			}
			return true
		})
		return true
	})
	return b.String()
}

func (c *Client) post(ctx context.Context, op, path string, payload any) ([]byte, error) {
	if c.apiKey == "" {
		return nil, ErrNotConfigured
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%s: marshal: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%s: new request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classify(op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, classify(op, err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		if msg := gjson.GetBytes(body, "error.message").String(); msg != "" {
			return nil, fmt.Errorf("%s: %s", op, msg)
		}
		return nil, fmt.Errorf("%s: upstream returned HTTP %d", op, resp.StatusCode)
	}
	return body, nil
}

// classify maps deadline and network timeouts to ErrTimeout.
func classify(op string, err error) error {
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return fmt.Errorf("%w: %s: %v", ErrTimeout, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// clip returns at most n runes of s.
func clip(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
