package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/go-icp-dashboard/internal/domain"
)

var t0 = time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)

func TestLoadCycle_FreshUser(t *testing.T) {
	db := newTestDB(t)
	st, err := LoadCycle(context.Background(), db, "alice")
	if err != nil {
		t.Fatalf("LoadCycle: %v", err)
	}
	if st.Locked() || st.Batch != nil || st.Version != 0 || len(st.Requested) != 0 {
		t.Fatalf("unexpected fresh state: %+v", st)
	}
}

func TestSaveCycle_RoundTripAndVersioning(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	st, _ := LoadCycle(ctx, db, "alice")
	_, _ = st.AddKeywords([]string{"a", "b"}, t0)
	if _, err := st.SubmitKeyword("a", t0); err != nil {
		t.Fatal(err)
	}
	if err := SaveCycle(ctx, db, "alice", st); err != nil {
		t.Fatalf("SaveCycle: %v", err)
	}
	if st.Version != 1 {
		t.Fatalf("version=%d, want 1", st.Version)
	}

	got, err := LoadCycle(ctx, db, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if got.Version != 1 || got.Batch == nil || len(got.Batch.Keywords) != 1 || got.Batch.Keywords[0] != "b" {
		t.Fatalf("batch not persisted: %+v", got.Batch)
	}
	if len(got.Requested) != 1 || got.Requested[0] != st.Requested[0] {
		t.Fatalf("requested not persisted: %+v", got.Requested)
	}

	// Two writers loaded version 1: the first wins, the second conflicts.
	stale, _ := LoadCycle(ctx, db, "alice")
	got.RemoveKeyword("b")
	if err := SaveCycle(ctx, db, "alice", got); err != nil {
		t.Fatalf("SaveCycle: %v", err)
	}
	stale.RemoveKeyword("b")
	if err := SaveCycle(ctx, db, "alice", stale); !errors.Is(err, ErrConflict) {
		t.Fatalf("want ErrConflict, got %v", err)
	}
}

func TestSaveCycle_ConcurrentFirstWriteConflicts(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	a, _ := LoadCycle(ctx, db, "alice")
	b, _ := LoadCycle(ctx, db, "alice")
	a.EnsureActiveBatch(t0)
	b.EnsureActiveBatch(t0)
	if err := SaveCycle(ctx, db, "alice", a); err != nil {
		t.Fatal(err)
	}
	if err := SaveCycle(ctx, db, "alice", b); !errors.Is(err, ErrConflict) {
		t.Fatalf("want ErrConflict, got %v", err)
	}
}

func TestArchive_InsertListAndExclusion(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	st, _ := LoadCycle(ctx, db, "alice")
	_, _ = st.AddKeywords([]string{"a", "b"}, t0)
	_, _ = st.SubmitKeyword("a", t0)
	_ = SaveCycle(ctx, db, "alice", st)

	arch := st.Unlock(t0.Add(time.Hour))
	if _, err := InsertArchive(ctx, db, "alice", arch); err != nil {
		t.Fatalf("InsertArchive: %v", err)
	}
	if err := SaveCycle(ctx, db, "alice", st); err != nil {
		t.Fatalf("SaveCycle: %v", err)
	}
	if _, err := InsertArchive(ctx, db, "alice", arch); !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate timestamp: want ErrConflict, got %v", err)
	}

	got, _ := LoadCycle(ctx, db, "alice")
	if got.Batch != nil || len(got.Requested) != 0 || got.Locked() {
		t.Fatalf("state not cleared: %+v", got)
	}
	if got.LastArchiveAt != arch.ArchivedAt {
		t.Fatalf("LastArchiveAt=%d", got.LastArchiveAt)
	}
	if _, ok := got.Archived["a"]; !ok {
		t.Fatal("submitted keyword should be archived")
	}
	if _, ok := got.Archived["b"]; !ok {
		t.Fatal("batch remnant should be archived")
	}

	list, err := ListArchives(ctx, db, "alice", 0, 10)
	if err != nil || len(list) != 1 {
		t.Fatalf("ListArchives: %v %d", err, len(list))
	}
	if n, _ := CountArchives(ctx, db, "alice"); n != 1 {
		t.Fatalf("CountArchives=%d", n)
	}
	if n, _ := CountArchives(ctx, db, "bob"); n != 0 {
		t.Fatalf("archives must be per user, got %d", n)
	}
}

func TestSaveCycle_ClearsRemovedItems(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	st, _ := LoadCycle(ctx, db, "alice")
	_, _ = st.AddKeywords([]string{"a"}, t0)
	_, _ = st.SubmitKeyword("a", t0)
	_ = SaveCycle(ctx, db, "alice", st)

	st.Unlock(t0)
	if err := SaveCycle(ctx, db, "alice", st); err != nil {
		t.Fatal(err)
	}
	var n int64
	db.Model(&domain.RequestedItem{}).Where("username = ?", "alice").Count(&n)
	if n != 0 {
		t.Fatalf("expected requested items to be cleared, found %d", n)
	}
}
