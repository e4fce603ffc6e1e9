package llm

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Prompts holds the system prompts sent with each request kind. Any field
// left empty in an override file keeps its built-in default.
type Prompts struct {
	Analyse   string `yaml:"analyse"`
	Queries   string `yaml:"queries"`
	Outline   string `yaml:"outline"`
	BlogPlan  string `yaml:"blog_plan"`
	GapReport string `yaml:"gap_report"`
}

// DefaultPrompts returns the built-in prompt set.
func DefaultPrompts() Prompts {
	return Prompts{
		Analyse:   defaultAnalysePrompt,
		Queries:   `You are an SEO strategist. Return ONLY JSON: {"queries":[ "...", ... ]}`,
		Outline:   "You are an SEO copywriter. Return ONLY a Markdown outline (bullet list with H2/H3 headings) for a blog post that targets the given keyword.",
		BlogPlan:  defaultBlogPlanPrompt,
		GapReport: defaultGapReportPrompt,
	}
}

// LoadPrompts returns the defaults overlaid with the YAML file at path.
// An empty path yields the defaults.
func LoadPrompts(path string) (Prompts, error) {
	p := DefaultPrompts()
	if path == "" {
		return p, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("read prompts: %w", err)
	}
	var over Prompts
	if err := yaml.Unmarshal(b, &over); err != nil {
		return p, fmt.Errorf("parse prompts %s: %w", path, err)
	}
	p.merge(over)
	return p, nil
}

func (p *Prompts) merge(o Prompts) {
	for _, f := range []struct {
		dst *string
		src string
	}{
		{&p.Analyse, o.Analyse},
		{&p.Queries, o.Queries},
		{&p.Outline, o.Outline},
		{&p.BlogPlan, o.BlogPlan},
		{&p.GapReport, o.GapReport},
	} {
		if f.src != "" {
			*f.dst = f.src
		}
	}
}

const defaultAnalysePrompt = `
You are a senior SaaS marketing analyst.
Return **ONLY** valid JSON matching this schema:

{
  "productDescription": string,
  "icps": [
    {
      "name": string,
      "problems": string[]  // long-tail phrases they actually Google
    }
  ]
}

Make the ICP list as exhaustive as possible (at least 3 ICPS).
Ensure each "problems" array contains ≥ 4 high-intent, dumb-but-specific
search queries (long-tail, not generic single words).`

const defaultBlogPlanPrompt = `
You are an elite SEO strategist.

TASK → From the supplied article (markdown), first infer 3–8 SHORT "must-have" phrases
(think of them as mandatory seed phrases representing the article's main, title-level topic).
Then, for EACH must-phrase, produce 5–10 **long-tail search queries** (3–7 words each)
that real users would type into Google when looking specifically for this article's main topic
(ignore sub-topics).

Requirements
• Natural, conversational phrasing — no jargon unless clearly present in title-level topic.
• No duplicates, no minor re-phrasings, no section headings.
• Each long-tail must strongly imply the user intention matches this article.
• Return STRICT JSON only, exactly matching:
{
  "mustPhrases": string[],
  "groups": [
    { "must": string, "longTails": string[] }
  ]
}`

const defaultGapReportPrompt = `
You help companies rank via blogs/whitepapers.
Return ONLY JSON:
{
  "summaryRanked": string,
  "summaryGap": string,
  "ideas": [
    { "title": string, "type": "blog" | "whitepaper", "angle": string, "outline": string[] }
  ]
}`
