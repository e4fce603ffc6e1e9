// Package services – SourceService
//
// SourceService owns the four keyword sources that can mark a keyword as
// targeted: ICP groups, competitor tables, performance-blog targets and the
// legacy report targets. Sources loads all of them for the aggregator.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tbourn/go-icp-dashboard/internal/cycle"
	"github.com/tbourn/go-icp-dashboard/internal/domain"
	"github.com/tbourn/go-icp-dashboard/internal/repo"
	"github.com/tbourn/go-icp-dashboard/internal/serp"
)

// MaxCompetitorQueries caps how many ICP problems are tracked per competitor.
const MaxCompetitorQueries = 40

// CompetitorRow is a stored competitor keyword with its channel hits. Rows
// written before channel hits existed only carry Ranked and URL.
type CompetitorRow struct {
	Keyword    cycle.KeywordValue `json:"keyword"`
	Targeted   bool               `json:"targeted"`
	Ranked     *bool              `json:"ranked,omitempty"`
	URL        *string            `json:"url,omitempty"`
	ChatGPT    *serp.Result       `json:"chatgpt,omitempty"`
	Perplexity *serp.Result       `json:"perplexity,omitempty"`
	Google     *serp.Result       `json:"google,omitempty"`
}

// CompetitorView is a competitor with decoded rows.
type CompetitorView struct {
	Domain string          `json:"domain"`
	URL    string          `json:"url"`
	Rows   []CompetitorRow `json:"rows"`
}

// SourceService manages the keyword sources of a user.
type SourceService struct {
	DB       *gorm.DB
	Analysis *AnalysisService
	// Workers bounds concurrent rank checks when adding a competitor.
	Workers int
}

// ---- ICPs ----

// ICPs returns the user's ICP groups in display order.
func (s *SourceService) ICPs(ctx context.Context, username string) ([]cycle.ICPGroup, error) {
	rows, err := repo.ListICPGroups(ctx, s.DB, username)
	if err != nil {
		return nil, err
	}
	out := make([]cycle.ICPGroup, 0, len(rows))
	for _, g := range rows {
		cg := cycle.ICPGroup{Name: g.Name, Description: g.Description, Rows: make([]cycle.ICPRow, 0, len(g.Rows))}
		for _, r := range g.Rows {
			cg.Rows = append(cg.Rows, cycle.ICPRow{Keyword: r.Keyword, Targeted: r.Targeted})
		}
		out = append(out, cg)
	}
	return out, nil
}

// ReplaceICPs stores groups as the user's complete ICP list. Empty keywords
// are dropped and the rest trimmed.
func (s *SourceService) ReplaceICPs(ctx context.Context, username string, groups []cycle.ICPGroup) error {
	ctx, span := tracer().Start(ctx, "SourceService.ReplaceICPs",
		trace.WithAttributes(attribute.Int("groups", len(groups))))
	defer span.End()

	rows := make([]domain.ICPGroup, 0, len(groups))
	for _, g := range groups {
		dg := domain.ICPGroup{Name: strings.TrimSpace(g.Name), Description: strings.TrimSpace(g.Description)}
		if dg.Name == "" {
			continue
		}
		for _, r := range g.Rows {
			kw := strings.TrimSpace(r.Keyword)
			if kw == "" {
				continue
			}
			dg.Rows = append(dg.Rows, domain.ICPRow{Keyword: kw, Targeted: r.Targeted})
		}
		rows = append(rows, dg)
	}
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return repo.ReplaceICPGroups(ctx, tx, username, rows)
	})
}

// SetICPTarget flips the targeted flag of keyword in the named group.
func (s *SourceService) SetICPTarget(ctx context.Context, username, group, keyword string, targeted bool) error {
	groups, err := repo.ListICPGroups(ctx, s.DB, username)
	if err != nil {
		return err
	}
	if !lo.ContainsBy(groups, func(g domain.ICPGroup) bool { return g.Name == group }) {
		return ErrGroupNotFound
	}
	err = repo.SetICPTargeted(ctx, s.DB, username, group, keyword, targeted)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrKeywordNotFound
	}
	return err
}

// ---- Competitors ----

// Competitors returns the user's competitors with decoded rows. Rows that
// fail to decode are logged and left out.
func (s *SourceService) Competitors(ctx context.Context, username string) ([]CompetitorView, error) {
	list, err := repo.ListCompetitors(ctx, s.DB, username)
	if err != nil {
		return nil, err
	}
	out := make([]CompetitorView, 0, len(list))
	for _, c := range list {
		out = append(out, CompetitorView{Domain: c.Domain, URL: c.URL, Rows: decodeCompetitorRows(ctx, c)})
	}
	return out, nil
}

// AddCompetitor derives ICP problems from the competitor's site, ranks the
// first MaxCompetitorQueries of them for the competitor's domain and stores
// the resulting table. Rank failures leave that row unranked.
func (s *SourceService) AddCompetitor(ctx context.Context, username, rawURL string) (*CompetitorView, error) {
	u, err := normalizeURL(rawURL)
	if err != nil {
		return nil, err
	}
	host, err := siteDomain(u.String())
	if err != nil {
		return nil, err
	}
	ctx, span := tracer().Start(ctx, "SourceService.AddCompetitor",
		trace.WithAttributes(attribute.String("domain", host)))
	defer span.End()

	if _, err := repo.GetCompetitor(ctx, s.DB, username, host); err == nil {
		return nil, ErrCompetitorExists
	} else if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}

	site, err := s.Analysis.Keywords(ctx, u.String(), "")
	if err != nil {
		return nil, err
	}
	var problems []string
	for _, icp := range site.ICPs {
		for _, p := range icp.Problems {
			if p = strings.TrimSpace(p); p != "" {
				problems = append(problems, p)
			}
		}
	}
	problems = lo.Uniq(problems)
	if len(problems) > MaxCompetitorQueries {
		problems = problems[:MaxCompetitorQueries]
	}

	hits := make(map[string]ChannelHits, len(problems))
	rankPool(ctx, s.Analysis.Ranker, problems, host, s.Workers, func(q string, h ChannelHits) {
		hits[q] = h
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows := make([]CompetitorRow, 0, len(problems))
	for _, q := range problems {
		rows = append(rows, competitorRow(q, hits[q]))
	}
	raw, err := json.Marshal(rows)
	if err != nil {
		return nil, err
	}
	c, err := repo.CreateCompetitor(ctx, s.DB, username, host, u.String(), datatypes.JSON(raw))
	if errors.Is(err, repo.ErrDuplicate) {
		return nil, ErrCompetitorExists
	}
	if err != nil {
		return nil, err
	}
	zerolog.Ctx(ctx).Info().Str("domain", host).Int("queries", len(rows)).Msg("competitor added")
	return &CompetitorView{Domain: c.Domain, URL: c.URL, Rows: rows}, nil
}

func competitorRow(q string, h ChannelHits) CompetitorRow {
	ranked, url := h.Any()
	chatgpt, perplexity, google := h.ChatGPT, h.Perplexity, h.Google
	return CompetitorRow{
		Keyword:    cycle.StringKeyword(q),
		Ranked:     &ranked,
		URL:        url,
		ChatGPT:    &chatgpt,
		Perplexity: &perplexity,
		Google:     &google,
	}
}

// SetCompetitorTarget flips the targeted flag of every row of the competitor
// whose normalised keyword equals keyword. Unknown row shapes are kept as-is.
func (s *SourceService) SetCompetitorTarget(ctx context.Context, username, domainName, keyword string, targeted bool) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c, err := repo.GetCompetitor(ctx, tx, username, strings.ToLower(strings.TrimSpace(domainName)))
		if errors.Is(err, repo.ErrNotFound) {
			return ErrCompetitorNotFound
		}
		if err != nil {
			return err
		}
		var rows []CompetitorRow
		if len(c.Rows) > 0 {
			if err := json.Unmarshal(c.Rows, &rows); err != nil {
				return err
			}
		}
		found := false
		for i := range rows {
			if kw, ok := rows[i].Keyword.Normalize(); ok && kw == keyword {
				rows[i].Targeted = targeted
				found = true
			}
		}
		if !found {
			return ErrKeywordNotFound
		}
		raw, err := json.Marshal(rows)
		if err != nil {
			return err
		}
		return repo.UpdateCompetitorRows(ctx, tx, c.ID, datatypes.JSON(raw))
	})
}

func decodeCompetitorRows(ctx context.Context, c domain.Competitor) []CompetitorRow {
	rows := []CompetitorRow{}
	if len(c.Rows) == 0 {
		return rows
	}
	if err := json.Unmarshal(c.Rows, &rows); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("competitor", c.Domain).Msg("undecodable competitor rows")
		return []CompetitorRow{}
	}
	return rows
}

// ---- Report targets ----

// SetReportTarget records keyword in the legacy report targets. A nil
// targeted marks the keyword as targeted by presence.
func (s *SourceService) SetReportTarget(ctx context.Context, username, keyword string, targeted *bool) error {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return ErrKeywordNotFound
	}
	return repo.UpsertReportTarget(ctx, s.DB, username, cycle.SafeKey(keyword), keyword, targeted)
}

// ---- Aggregation ----

// Sources loads every keyword source of the user. A source that fails to
// load is logged and treated as empty so the others still count.
func (s *SourceService) Sources(ctx context.Context, username string) cycle.Sources {
	ctx, span := tracer().Start(ctx, "SourceService.Sources")
	defer span.End()
	logger := zerolog.Ctx(ctx)

	var src cycle.Sources
	if icps, err := s.ICPs(ctx, username); err != nil {
		logger.Warn().Err(err).Str("source", "icps").Msg("keyword source unavailable")
	} else {
		src.ICPs = icps
	}

	if list, err := repo.ListCompetitors(ctx, s.DB, username); err != nil {
		logger.Warn().Err(err).Str("source", "competitors").Msg("keyword source unavailable")
	} else {
		src.Competitors = make(map[string][]cycle.CompetitorRow, len(list))
		for _, c := range list {
			rows := decodeCompetitorRows(ctx, c)
			cr := make([]cycle.CompetitorRow, 0, len(rows))
			for _, r := range rows {
				cr = append(cr, cycle.CompetitorRow{Keyword: r.Keyword, Targeted: r.Targeted, Ranked: r.Ranked, URL: r.URL})
			}
			src.Competitors[c.Domain] = cr
		}
	}

	if blogs, err := repo.ListPerformanceBlogs(ctx, s.DB, username); err != nil {
		logger.Warn().Err(err).Str("source", "performanceBlogs").Msg("keyword source unavailable")
	} else {
		src.PerformanceBlogs = make(map[string]cycle.PerformanceTargets, len(blogs))
		for _, b := range blogs {
			var pt cycle.PerformanceTargets
			if plan, err := decodePlan(b.Plan); err == nil && plan != nil {
				pt.FlatQueries = plan.FlatQueries
			}
			if len(b.Targets) > 0 {
				if err := json.Unmarshal(b.Targets, &pt.Targets); err != nil {
					logger.Warn().Err(err).Str("blog", b.URL).Msg("undecodable blog targets")
				}
			}
			src.PerformanceBlogs[b.Key] = pt
		}
	}

	if rts, err := repo.ListReportTargets(ctx, s.DB, username); err != nil {
		logger.Warn().Err(err).Str("source", "targetsFromReport").Msg("keyword source unavailable")
	} else {
		src.ReportTargets = make(map[string]cycle.ReportTarget, len(rts))
		for _, rt := range rts {
			src.ReportTargets[rt.Key] = cycle.ReportTarget{Keyword: rt.Keyword, Targeted: rt.Targeted}
		}
	}
	return src
}

// Targets returns the aggregated, deduplicated targeted keywords of the user.
func (s *SourceService) Targets(ctx context.Context, username string) []string {
	logger := zerolog.Ctx(ctx)
	return cycle.Aggregate(s.Sources(ctx, username), func(competitor string, raw []byte) {
		warnKeywordShape(logger, competitor, raw)
	})
}

// warnKeywordShape logs a competitor keyword that matched no known shape.
// RawJSON is only valid for a non-empty document.
func warnKeywordShape(logger *zerolog.Logger, competitor string, raw []byte) {
	ev := logger.Warn().Str("competitor", competitor)
	if len(raw) > 0 {
		ev = ev.RawJSON("keyword", raw)
	} else {
		ev = ev.Str("keyword", "")
	}
	ev.Msg("unrecognised competitor keyword shape")
}

func decodePlan(raw datatypes.JSON) (*Plan, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var p Plan
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
