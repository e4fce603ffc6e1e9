package cycle

import (
	"sort"
	"strings"

	"github.com/samber/lo"
)

// ICPRow is one keyword row of an ICP group.
type ICPRow struct {
	Keyword  string `json:"keyword"`
	Targeted bool   `json:"targeted"`
}

// ICPGroup is a named ICP with its keyword rows.
type ICPGroup struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Rows        []ICPRow `json:"rows"`
}

// CompetitorRow is one keyword row of a competitor table.
type CompetitorRow struct {
	Keyword  KeywordValue `json:"keyword"`
	Targeted bool         `json:"targeted"`
	Ranked   *bool        `json:"ranked,omitempty"`
	URL      *string      `json:"url,omitempty"`
}

// PerformanceTargets is the targeting view of a performance blog: its plan's
// flat queries and the SafeKey-indexed target map.
type PerformanceTargets struct {
	FlatQueries []string        `json:"flatQueries"`
	Targets     map[string]bool `json:"targets"`
}

// ReportTarget is a legacy report target. A nil Targeted with a non-empty
// keyword counts as targeted.
type ReportTarget struct {
	Keyword  string `json:"keyword"`
	Targeted *bool  `json:"targeted,omitempty"`
}

// Sources groups every collection that can mark a keyword as targeted.
// Nil members are treated as empty.
type Sources struct {
	ICPs             []ICPGroup
	Competitors      map[string][]CompetitorRow
	PerformanceBlogs map[string]PerformanceTargets
	ReportTargets    map[string]ReportTarget
}

// WarnFunc is called for competitor rows whose keyword shape is unknown.
type WarnFunc func(competitor string, raw []byte)

// Aggregate returns every targeted keyword across all sources, deduplicated
// by exact string, in first-seen order (ICPs, competitors, report targets,
// performance blogs; map sources in key order).
func Aggregate(src Sources, warn WarnFunc) []string {
	var all []string
	add := func(kw string) {
		if kw = strings.TrimSpace(kw); kw != "" {
			all = append(all, kw)
		}
	}

	for _, g := range src.ICPs {
		for _, r := range g.Rows {
			if r.Targeted {
				add(r.Keyword)
			}
		}
	}

	for _, domain := range sortedKeys(src.Competitors) {
		for _, r := range src.Competitors[domain] {
			if !r.Targeted {
				continue
			}
			kw, ok := r.Keyword.Normalize()
			if !ok {
				if r.Keyword.Kind == KindUnknown && warn != nil {
					warn(domain, r.Keyword.Raw)
				}
				continue
			}
			add(kw)
		}
	}

	for _, k := range sortedKeys(src.ReportTargets) {
		t := src.ReportTargets[k]
		targeted := t.Keyword != ""
		if t.Targeted != nil {
			targeted = *t.Targeted
		}
		if targeted {
			add(t.Keyword)
		}
	}

	for _, k := range sortedKeys(src.PerformanceBlogs) {
		b := src.PerformanceBlogs[k]
		for _, q := range b.FlatQueries {
			if b.Targets[SafeKey(q)] {
				add(q)
			}
		}
	}

	return lo.Uniq(all)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
