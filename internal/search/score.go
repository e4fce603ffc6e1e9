package search

import "strings"

// intentTerms are query words that signal a reader close to a purchase or a
// shortlist decision.
var intentTerms = map[string]struct{}{
	"best": {}, "top": {}, "buy": {}, "price": {}, "pricing": {}, "cost": {},
	"cheap": {}, "vs": {}, "versus": {}, "compare": {}, "comparison": {},
	"alternative": {}, "alternatives": {}, "review": {}, "reviews": {},
	"software": {}, "tool": {}, "tools": {}, "platform": {}, "service": {},
	"services": {}, "provider": {}, "providers": {}, "agency": {}, "vendor": {},
	"hire": {}, "demo": {}, "trial": {}, "quote": {}, "near": {},
}

// HighIntent reports whether query carries a commercial or transactional
// modifier.
func HighIntent(query string) bool {
	for w := range tokenize(query, nil) {
		if _, ok := intentTerms[w]; ok {
			return true
		}
	}
	return false
}

// Report scoring bounds.
const (
	MinPerformance = 60
	MaxPerformance = 100
)

// PerformanceInput is what Performance scores.
type PerformanceInput struct {
	Query          string
	Link           string
	Answers        []string
	BrandMentioned bool
}

// Performance rates how well the answers serve the query on a 60..100 scale.
// Half the range comes from how many query words the answers cover, the rest
// from a brand mention and from the requested link being cited.
func Performance(in PerformanceInput) int {
	joined := strings.Join(in.Answers, "\n")
	q := Tokens(in.Query)
	coverage := 0.0
	if len(q) > 0 {
		coverage = float64(overlap(q, Tokens(joined))) / float64(len(q))
	}
	score := 0.5 * coverage
	if in.BrandMentioned {
		score += 0.3
	}
	if in.Link != "" && strings.Contains(joined, in.Link) {
		score += 0.2
	}
	p := MinPerformance + int(score*float64(MaxPerformance-MinPerformance)+0.5)
	if p > MaxPerformance {
		p = MaxPerformance
	}
	return p
}
