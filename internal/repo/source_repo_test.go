package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/datatypes"

	"github.com/tbourn/go-icp-dashboard/internal/domain"
)

func TestICPGroups_ReplaceListAndTarget(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	groups := []domain.ICPGroup{
		{Name: "Founders", Rows: []domain.ICPRow{{Keyword: "crm for startups"}, {Keyword: "cheap crm"}}},
		{Name: "Agencies", Rows: []domain.ICPRow{{Keyword: "agency crm"}}},
	}
	if err := ReplaceICPGroups(ctx, db, "alice", groups); err != nil {
		t.Fatalf("ReplaceICPGroups: %v", err)
	}
	got, err := ListICPGroups(ctx, db, "alice")
	if err != nil || len(got) != 2 || got[0].Name != "Founders" || len(got[0].Rows) != 2 {
		t.Fatalf("ListICPGroups: err=%v got=%+v", err, got)
	}
	if got[0].Rows[1].Keyword != "cheap crm" {
		t.Fatalf("row order not kept: %+v", got[0].Rows)
	}

	if err := SetICPTargeted(ctx, db, "alice", "Founders", "cheap crm", true); err != nil {
		t.Fatalf("SetICPTargeted: %v", err)
	}
	if err := SetICPTargeted(ctx, db, "alice", "Founders", "missing", true); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	if err := SetICPTargeted(ctx, db, "alice", "Nope", "cheap crm", true); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound for missing group, got %v", err)
	}
	got, _ = ListICPGroups(ctx, db, "alice")
	if !got[0].Rows[1].Targeted {
		t.Fatal("expected row to be targeted")
	}

	// Replacing drops old rows.
	if err := ReplaceICPGroups(ctx, db, "alice", []domain.ICPGroup{{Name: "Only"}}); err != nil {
		t.Fatal(err)
	}
	var rows int64
	db.Model(&domain.ICPRow{}).Count(&rows)
	if rows != 0 {
		t.Fatalf("expected old rows deleted, found %d", rows)
	}
}

func TestCompetitors_CreateDuplicateUpdate(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	c, err := CreateCompetitor(ctx, db, "alice", "rival.com", "https://rival.com", datatypes.JSON(`[]`))
	if err != nil {
		t.Fatalf("CreateCompetitor: %v", err)
	}
	if _, err := CreateCompetitor(ctx, db, "alice", "rival.com", "https://rival.com", nil); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("want ErrDuplicate, got %v", err)
	}
	if err := UpdateCompetitorRows(ctx, db, c.ID, datatypes.JSON(`[{"keyword":"x","targeted":true}]`)); err != nil {
		t.Fatal(err)
	}
	got, err := GetCompetitor(ctx, db, "alice", "rival.com")
	if err != nil || string(got.Rows) != `[{"keyword":"x","targeted":true}]` {
		t.Fatalf("GetCompetitor: %v %s", err, got.Rows)
	}
	if err := UpdateCompetitorRows(ctx, db, "nope", nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	list, _ := ListCompetitors(ctx, db, "alice")
	if len(list) != 1 {
		t.Fatalf("ListCompetitors=%d", len(list))
	}
}

func TestPerformanceBlogs_ClaimReleaseAndStale(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	b, err := CreatePerformanceBlog(ctx, db, "alice", "k", "https://x.io/blog/a")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := CreatePerformanceBlog(ctx, db, "alice", "k", "https://x.io/blog/a"); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("want ErrDuplicate, got %v", err)
	}

	ok, err := ClaimPerformanceBlog(ctx, db, b.ID)
	if err != nil || !ok {
		t.Fatalf("first claim: ok=%v err=%v", ok, err)
	}
	if ok, _ := ClaimPerformanceBlog(ctx, db, b.ID); ok {
		t.Fatal("second claim must fail while processing")
	}
	stale, _ := ListStalePerformanceBlogs(ctx, db, time.Now(), 10)
	if len(stale) != 0 {
		t.Fatal("processing blogs are not stale")
	}
	if err := ReleasePerformanceBlog(ctx, db, b.ID); err != nil {
		t.Fatal(err)
	}
	stale, _ = ListStalePerformanceBlogs(ctx, db, time.Now(), 10)
	if len(stale) != 1 {
		t.Fatalf("expected never-aggregated blog to be stale, got %d", len(stale))
	}

	now := time.Now().UTC()
	if err := UpdatePerformanceBlog(ctx, db, b.ID, map[string]any{"aggregated_at": now}); err != nil {
		t.Fatal(err)
	}
	stale, _ = ListStalePerformanceBlogs(ctx, db, now.Add(-time.Hour), 10)
	if len(stale) != 0 {
		t.Fatal("fresh blog must not be stale")
	}
	got, err := GetPerformanceBlog(ctx, db, "alice", "k")
	if err != nil || got.AggregatedAt == nil {
		t.Fatalf("GetPerformanceBlog: %v %+v", err, got)
	}
}

func TestReportTargets_Upsert(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	yes, no := true, false
	if err := UpsertReportTarget(ctx, db, "alice", "k", "kw", &yes); err != nil {
		t.Fatal(err)
	}
	if err := UpsertReportTarget(ctx, db, "alice", "k", "kw", &no); err != nil {
		t.Fatal(err)
	}
	list, _ := ListReportTargets(ctx, db, "alice")
	if len(list) != 1 || list[0].Targeted == nil || *list[0].Targeted {
		t.Fatalf("upsert did not update: %+v", list)
	}
}
