// Package services – UserDataService
//
// UserDataService assembles the complete record of one user in the document
// layout the dashboard front end consumes, and fingerprints it for
// conditional GETs.
package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"gorm.io/gorm"

	"github.com/tbourn/go-icp-dashboard/internal/cycle"
	"github.com/tbourn/go-icp-dashboard/internal/repo"
)

// UserData is the per-user record. Timestamp-keyed maps use unix millis.
type UserData struct {
	WebsiteURL          string                                    `json:"websiteUrl"`
	ICPs                []cycle.ICPGroup                          `json:"icps"`
	Competitors         map[string]CompetitorView                 `json:"competitors"`
	PerformanceBlogs    map[string]BlogView                       `json:"performanceBlogs"`
	RequestedBlogs      map[string]cycle.RequestedItem            `json:"requestedBlogs"`
	BlogRequests        map[string]cycle.Batch                    `json:"blogRequests"`
	PastRequests        map[string]*cycle.Batch                   `json:"pastRequests"`
	PastTargets         map[string][]string                       `json:"pastTargets"`
	PastScheduledBlogs  map[string]map[string]cycle.RequestedItem `json:"pastScheduledBlogs"`
	BlogRequestUnlocked bool                                      `json:"blogRequestUnlocked"`
	TargetsFromReport   map[string]cycle.ReportTarget             `json:"targetsFromReport"`
}

// UserDataService reads a user's full record.
type UserDataService struct {
	DB          *gorm.DB
	Sources     *SourceService
	Performance *PerformanceService
}

// ETag returns a weak validator that changes whenever any part of the
// user's record changes.
func (s *UserDataService) ETag(ctx context.Context, username string) (string, error) {
	version, latest, err := repo.UserDataStats(ctx, s.DB, username)
	if err != nil {
		return "", err
	}
	var ts int64
	if latest != nil {
		ts = latest.UnixNano()
	}
	return fmt.Sprintf(`W/"my-data:%s:%d:%d"`, username, version, ts), nil
}

// MyData returns the user's record. Unknown users get ErrInvalidCredentials.
func (s *UserDataService) MyData(ctx context.Context, username string) (*UserData, error) {
	ctx, span := tracer().Start(ctx, "UserDataService.MyData")
	defer span.End()

	u, err := repo.GetUser(ctx, s.DB, username)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	out := &UserData{
		WebsiteURL:         u.WebsiteURL,
		Competitors:        map[string]CompetitorView{},
		PerformanceBlogs:   map[string]BlogView{},
		RequestedBlogs:     map[string]cycle.RequestedItem{},
		BlogRequests:       map[string]cycle.Batch{},
		PastRequests:       map[string]*cycle.Batch{},
		PastTargets:        map[string][]string{},
		PastScheduledBlogs: map[string]map[string]cycle.RequestedItem{},
		TargetsFromReport:  map[string]cycle.ReportTarget{},
	}

	if out.ICPs, err = s.Sources.ICPs(ctx, username); err != nil {
		return nil, err
	}
	comps, err := s.Sources.Competitors(ctx, username)
	if err != nil {
		return nil, err
	}
	for _, c := range comps {
		out.Competitors[cycle.SafeKey(c.Domain)] = c
	}
	blogs, err := s.Performance.List(ctx, username)
	if err != nil {
		return nil, err
	}
	for _, b := range blogs {
		out.PerformanceBlogs[b.Key] = b
	}
	rts, err := repo.ListReportTargets(ctx, s.DB, username)
	if err != nil {
		return nil, err
	}
	for _, rt := range rts {
		out.TargetsFromReport[rt.Key] = cycle.ReportTarget{Keyword: rt.Keyword, Targeted: rt.Targeted}
	}

	st, err := repo.LoadCycle(ctx, s.DB, username)
	if err != nil {
		return nil, err
	}
	out.BlogRequestUnlocked = st.Unlocked
	for _, it := range st.Requested {
		out.RequestedBlogs[cycle.SafeKey(it.Keyword)] = it
	}
	if st.Batch != nil {
		out.BlogRequests[strconv.FormatInt(st.Batch.CreatedAt, 10)] = *st.Batch
	}

	rows, err := repo.ListArchives(ctx, s.DB, username, 0, 0)
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		a, err := toArchiveView(r)
		if err != nil {
			return nil, err
		}
		ts := strconv.FormatInt(a.ArchivedAt, 10)
		out.PastRequests[ts] = a.Batch
		out.PastTargets[ts] = a.Keywords
		out.PastScheduledBlogs[ts] = a.Scheduled
	}
	return out, nil
}
