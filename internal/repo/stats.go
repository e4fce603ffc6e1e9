// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides a small aggregate query used for
// conditional responses (ETag generation) on the user data endpoint.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-icp-dashboard/internal/domain"
)

// UserDataStats returns the cycle version of the user and the latest change
// timestamp across every table that contributes to the user's record. When
// nothing is stored, version is 0 and latest is nil.
func UserDataStats(ctx context.Context, db *gorm.DB, username string) (version int64, latest *time.Time, err error) {
	tx := db.WithContext(ctx)

	var st domain.CycleState
	if err = tx.Select("version").Where("username = ?", username).Limit(1).Find(&st).Error; err != nil {
		return 0, nil, err
	}
	version = st.Version

	sources := []struct {
		model  any
		column string
	}{
		{&domain.User{}, "updated_at"},
		{&domain.ICPGroup{}, "updated_at"},
		{&domain.Competitor{}, "updated_at"},
		{&domain.PerformanceBlog{}, "updated_at"},
		{&domain.ReportTarget{}, "updated_at"},
		{&domain.CycleState{}, "updated_at"},
		{&domain.CycleArchive{}, "created_at"},
	}
	for _, s := range sources {
		// Latest row via ORDER BY (avoid MAX() -> TEXT in SQLite)
		var ts []time.Time
		if err = tx.Model(s.model).
			Where("username = ?", username).
			Order(s.column+" DESC").
			Limit(1).
			Pluck(s.column, &ts).Error; err != nil {
			return 0, nil, err
		}
		if len(ts) == 1 && (latest == nil || ts[0].After(*latest)) {
			t := ts[0]
			latest = &t
		}
	}
	return version, latest, nil
}
