// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the keyword
// sources: ICP groups, competitors, performance blogs and report targets.
//
// All functions accept a *gorm.DB so they compose inside transactions.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tbourn/go-icp-dashboard/internal/domain"
)

// ---- ICP groups ----

// ListICPGroups returns the user's ICP groups with rows, in display order.
func ListICPGroups(ctx context.Context, db *gorm.DB, username string) ([]domain.ICPGroup, error) {
	var out []domain.ICPGroup
	err := db.WithContext(ctx).
		Preload("Rows", func(tx *gorm.DB) *gorm.DB { return tx.Order("position ASC") }).
		Where("username = ?", username).
		Order("position ASC").
		Find(&out).Error
	return out, err
}

// ReplaceICPGroups deletes every ICP group of the user and inserts groups.
// IDs and positions are assigned here.
func ReplaceICPGroups(ctx context.Context, db *gorm.DB, username string, groups []domain.ICPGroup) error {
	tx := db.WithContext(ctx)
	var ids []string
	if err := tx.Model(&domain.ICPGroup{}).Where("username = ?", username).Pluck("id", &ids).Error; err != nil {
		return err
	}
	if len(ids) > 0 {
		// Rows first: sqlite only cascades with foreign_keys enabled.
		if err := tx.Where("group_id IN ?", ids).Delete(&domain.ICPRow{}).Error; err != nil {
			return err
		}
		if err := tx.Where("id IN ?", ids).Delete(&domain.ICPGroup{}).Error; err != nil {
			return err
		}
	}
	now := time.Now().UTC()
	for i := range groups {
		g := &groups[i]
		g.ID = uuid.NewString()
		g.Username = username
		g.Position = i
		g.CreatedAt, g.UpdatedAt = now, now
		for j := range g.Rows {
			g.Rows[j].ID = uuid.NewString()
			g.Rows[j].GroupID = g.ID
			g.Rows[j].Position = j
		}
	}
	if len(groups) == 0 {
		return nil
	}
	return tx.Create(&groups).Error
}

// SetICPTargeted flips the targeted flag of every row matching keyword in the
// named group. It returns ErrNotFound when nothing matched.
func SetICPTargeted(ctx context.Context, db *gorm.DB, username, group, keyword string, targeted bool) error {
	tx := db.WithContext(ctx)
	var g domain.ICPGroup
	if err := tx.Where("username = ? AND name = ?", username, group).First(&g).Error; err != nil {
		return err
	}
	res := tx.Model(&domain.ICPRow{}).
		Where("group_id = ? AND keyword = ?", g.ID, keyword).
		Update("targeted", targeted)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return tx.Model(&g).Update("updated_at", time.Now().UTC()).Error
}

// ---- Competitors ----

// ListCompetitors returns the user's competitors ordered by domain.
func ListCompetitors(ctx context.Context, db *gorm.DB, username string) ([]domain.Competitor, error) {
	var out []domain.Competitor
	err := db.WithContext(ctx).Where("username = ?", username).Order("domain ASC").Find(&out).Error
	return out, err
}

// GetCompetitor fetches a competitor by domain, or ErrNotFound.
func GetCompetitor(ctx context.Context, db *gorm.DB, username, domainName string) (*domain.Competitor, error) {
	var c domain.Competitor
	if err := db.WithContext(ctx).Where("username = ? AND domain = ?", username, domainName).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateCompetitor inserts a competitor, returning ErrDuplicate if the domain
// is already tracked.
func CreateCompetitor(ctx context.Context, db *gorm.DB, username, domainName, url string, rows datatypes.JSON) (*domain.Competitor, error) {
	now := time.Now().UTC()
	c := &domain.Competitor{
		ID:        uuid.NewString(),
		Username:  username,
		Domain:    domainName,
		URL:       url,
		Rows:      rows,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return c, nil
}

// UpdateCompetitorRows replaces the stored rows document.
func UpdateCompetitorRows(ctx context.Context, db *gorm.DB, id string, rows datatypes.JSON) error {
	res := db.WithContext(ctx).Model(&domain.Competitor{}).Where("id = ?", id).
		Updates(map[string]any{"rows": rows, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ---- Performance blogs ----

// ListPerformanceBlogs returns the user's tracked blogs, oldest first.
func ListPerformanceBlogs(ctx context.Context, db *gorm.DB, username string) ([]domain.PerformanceBlog, error) {
	var out []domain.PerformanceBlog
	err := db.WithContext(ctx).Where("username = ?", username).Order("created_at ASC, id ASC").Find(&out).Error
	return out, err
}

// GetPerformanceBlog fetches a blog by its SafeKey, or ErrNotFound.
func GetPerformanceBlog(ctx context.Context, db *gorm.DB, username, key string) (*domain.PerformanceBlog, error) {
	var b domain.PerformanceBlog
	if err := db.WithContext(ctx).Where("username = ? AND key = ?", username, key).First(&b).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

// CreatePerformanceBlog inserts a blog row, returning ErrDuplicate when the
// key already exists for the user.
func CreatePerformanceBlog(ctx context.Context, db *gorm.DB, username, key, url string) (*domain.PerformanceBlog, error) {
	now := time.Now().UTC()
	b := &domain.PerformanceBlog{
		ID:        uuid.NewString(),
		Username:  username,
		Key:       key,
		URL:       url,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := db.WithContext(ctx).Create(b).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return b, nil
}

// UpdatePerformanceBlog applies a column map to the blog with the given id.
func UpdatePerformanceBlog(ctx context.Context, db *gorm.DB, id string, fields map[string]any) error {
	fields["updated_at"] = time.Now().UTC()
	res := db.WithContext(ctx).Model(&domain.PerformanceBlog{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ClaimPerformanceBlog sets processing=true if it was false and reports
// whether this caller won the claim.
func ClaimPerformanceBlog(ctx context.Context, db *gorm.DB, id string) (bool, error) {
	res := db.WithContext(ctx).Model(&domain.PerformanceBlog{}).
		Where("id = ? AND processing = ?", id, false).
		Updates(map[string]any{"processing": true, "updated_at": time.Now().UTC()})
	return res.RowsAffected == 1, res.Error
}

// ReleasePerformanceBlog clears the processing flag.
func ReleasePerformanceBlog(ctx context.Context, db *gorm.DB, id string) error {
	return db.WithContext(ctx).Model(&domain.PerformanceBlog{}).
		Where("id = ?", id).
		Update("processing", false).Error
}

// ListStalePerformanceBlogs returns idle blogs never aggregated or aggregated
// before the cutoff, across all users.
func ListStalePerformanceBlogs(ctx context.Context, db *gorm.DB, before time.Time, limit int) ([]domain.PerformanceBlog, error) {
	var out []domain.PerformanceBlog
	q := db.WithContext(ctx).
		Where("processing = ? AND (aggregated_at IS NULL OR aggregated_at < ?)", false, before).
		Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// ---- Report targets ----

// ListReportTargets returns the user's legacy report targets.
func ListReportTargets(ctx context.Context, db *gorm.DB, username string) ([]domain.ReportTarget, error) {
	var out []domain.ReportTarget
	err := db.WithContext(ctx).Where("username = ?", username).Order("key ASC").Find(&out).Error
	return out, err
}

// UpsertReportTarget creates or updates the report target stored under key.
func UpsertReportTarget(ctx context.Context, db *gorm.DB, username, key, keyword string, targeted *bool) error {
	tx := db.WithContext(ctx)
	var rt domain.ReportTarget
	err := tx.Where("username = ? AND key = ?", username, key).First(&rt).Error
	switch {
	case err == nil:
		return tx.Model(&rt).Updates(map[string]any{
			"keyword":    keyword,
			"targeted":   targeted,
			"updated_at": time.Now().UTC(),
		}).Error
	case errors.Is(err, gorm.ErrRecordNotFound):
		return tx.Create(&domain.ReportTarget{
			ID:        uuid.NewString(),
			Username:  username,
			Key:       key,
			Keyword:   keyword,
			Targeted:  targeted,
			UpdatedAt: time.Now().UTC(),
		}).Error
	default:
		return err
	}
}
