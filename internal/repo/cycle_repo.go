// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file maps the blog-request cycle between its pure
// in-memory form (cycle.State) and the cycle_states, requested_items and
// cycle_archives tables.
//
// Writes are conditional: SaveCycle only succeeds if the stored version still
// equals the version that was loaded, otherwise it returns ErrConflict. Call
// LoadCycle, SaveCycle and InsertArchive inside one transaction so that
// archive, clear and unlock commit together.
package repo

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tbourn/go-icp-dashboard/internal/cycle"
	"github.com/tbourn/go-icp-dashboard/internal/domain"
)

// LoadCycle reads the user's cycle state. Users without a stored row get a
// fresh, unlocked state with version 0.
func LoadCycle(ctx context.Context, db *gorm.DB, username string) (*cycle.State, error) {
	tx := db.WithContext(ctx)
	st := cycle.NewState()

	var row domain.CycleState
	err := tx.First(&row, "username = ?", username).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
	case err != nil:
		return nil, err
	default:
		st.Unlocked = row.Unlocked
		st.Version = row.Version
		st.LastArchiveAt = row.LastArchiveAt
		b, err := decodeBatch(row.Batch)
		if err != nil {
			return nil, err
		}
		st.Batch = b
	}

	var items []domain.RequestedItem
	if err := tx.Where("username = ?", username).Order("seq ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	for _, it := range items {
		st.Requested = append(st.Requested, toCycleItem(it))
	}

	archived, err := ArchivedKeywords(ctx, db, username)
	if err != nil {
		return nil, err
	}
	st.Archived = archived
	return st, nil
}

// SaveCycle persists st if the stored version still matches st.Version and
// bumps the version on success. Requested items are replaced wholesale.
func SaveCycle(ctx context.Context, db *gorm.DB, username string, st *cycle.State) error {
	tx := db.WithContext(ctx)
	batch, err := encodeBatch(st.Batch)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	if st.Version == 0 {
		row := domain.CycleState{
			Username:      username,
			Unlocked:      st.Unlocked,
			Version:       1,
			Batch:         batch,
			LastArchiveAt: st.LastArchiveAt,
			UpdatedAt:     now,
		}
		if err := tx.Create(&row).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrConflict
			}
			return err
		}
	} else {
		res := tx.Model(&domain.CycleState{}).
			Where("username = ? AND version = ?", username, st.Version).
			Updates(map[string]any{
				"unlocked":        st.Unlocked,
				"batch":           batch,
				"last_archive_at": st.LastArchiveAt,
				"version":         gorm.Expr("version + 1"),
				"updated_at":      now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrConflict
		}
	}

	if err := tx.Where("username = ?", username).Delete(&domain.RequestedItem{}).Error; err != nil {
		return err
	}
	if len(st.Requested) > 0 {
		rows := make([]domain.RequestedItem, 0, len(st.Requested))
		for _, it := range st.Requested {
			rows = append(rows, fromCycleItem(username, it, now))
		}
		if err := tx.Create(&rows).Error; err != nil {
			return err
		}
	}
	st.Version++
	return nil
}

// InsertArchive appends an archive snapshot. A clashing timestamp is reported
// as ErrConflict.
func InsertArchive(ctx context.Context, db *gorm.DB, username string, a cycle.Archive) (*domain.CycleArchive, error) {
	batch, err := encodeBatch(a.Batch)
	if err != nil {
		return nil, err
	}
	kws, err := json.Marshal(a.Keywords)
	if err != nil {
		return nil, err
	}
	sched, err := json.Marshal(a.Scheduled)
	if err != nil {
		return nil, err
	}
	row := &domain.CycleArchive{
		ID:         uuid.NewString(),
		Username:   username,
		ArchivedAt: a.ArchivedAt,
		Batch:      batch,
		Keywords:   datatypes.JSON(kws),
		Scheduled:  datatypes.JSON(sched),
		CreatedAt:  time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(row).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrConflict
		}
		return nil, err
	}
	return row, nil
}

// ListArchives returns a page of archives, newest first.
func ListArchives(ctx context.Context, db *gorm.DB, username string, offset, limit int) ([]domain.CycleArchive, error) {
	var out []domain.CycleArchive
	q := db.WithContext(ctx).Where("username = ?", username).Order("archived_at DESC")
	if limit > 0 {
		q = q.Offset(offset).Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// CountArchives returns the number of archives of the user.
func CountArchives(ctx context.Context, db *gorm.DB, username string) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.CycleArchive{}).Where("username = ?", username).Count(&n).Error
	return n, err
}

// ArchivedKeywords returns every keyword that was submitted or left in a
// batch in any archived cycle.
func ArchivedKeywords(ctx context.Context, db *gorm.DB, username string) (map[string]struct{}, error) {
	var rows []domain.CycleArchive
	if err := db.WithContext(ctx).
		Select("keywords", "batch").
		Where("username = ?", username).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := map[string]struct{}{}
	for _, r := range rows {
		var kws []string
		if len(r.Keywords) > 0 {
			if err := json.Unmarshal(r.Keywords, &kws); err != nil {
				return nil, err
			}
		}
		b, err := decodeBatch(r.Batch)
		if err != nil {
			return nil, err
		}
		if b != nil {
			kws = append(kws, b.Keywords...)
		}
		for _, k := range kws {
			out[k] = struct{}{}
		}
	}
	return out, nil
}

func encodeBatch(b *cycle.Batch) (datatypes.JSON, error) {
	if b == nil {
		return nil, nil
	}
	raw, err := json.Marshal(b)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

func decodeBatch(raw datatypes.JSON) (*cycle.Batch, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var b cycle.Batch
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, err
	}
	if b.Keywords == nil {
		b.Keywords = []string{}
	}
	return &b, nil
}

func toCycleItem(it domain.RequestedItem) cycle.RequestedItem {
	return cycle.RequestedItem{
		Keyword:     it.Keyword,
		Submitted:   it.Submitted,
		SubmittedAt: it.SubmittedAt,
		ID:          it.Seq,
		Title:       it.Title,
		Excerpt:     it.Excerpt,
		ImageURL:    it.ImageURL,
		Date:        it.Date,
		ReadTime:    it.ReadTime,
		URL:         it.URL,
		Status:      cycle.Status(it.Status),
	}
}

func fromCycleItem(username string, it cycle.RequestedItem, now time.Time) domain.RequestedItem {
	return domain.RequestedItem{
		ID:          uuid.NewString(),
		Username:    username,
		Keyword:     it.Keyword,
		Seq:         it.ID,
		Submitted:   it.Submitted,
		SubmittedAt: it.SubmittedAt,
		Title:       it.Title,
		Excerpt:     it.Excerpt,
		ImageURL:    it.ImageURL,
		Date:        it.Date,
		ReadTime:    it.ReadTime,
		URL:         it.URL,
		Status:      string(it.Status),
		CreatedAt:   now,
	}
}
