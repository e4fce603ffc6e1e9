// Package services – CycleService
//
// CycleService runs the blog-request cycle: staging targeted keywords into a
// batch, submitting them against the per-cycle quota, editing scheduled
// cards and archiving a finished cycle on unlock.
//
// Every mutation loads the cycle, applies one pure cycle.State operation and
// writes it back conditionally on the loaded version, all inside a single
// transaction. A lost race surfaces as ErrConcurrentUpdate and leaves the
// stored cycle untouched.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/cases"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/tbourn/go-icp-dashboard/internal/cycle"
	"github.com/tbourn/go-icp-dashboard/internal/domain"
	"github.com/tbourn/go-icp-dashboard/internal/observability"
	"github.com/tbourn/go-icp-dashboard/internal/repo"
	"github.com/tbourn/go-icp-dashboard/internal/utils"
)

// Sort orders for the available-targets list.
const (
	SortAlpha  = "alpha"
	SortLength = "length"
)

// DefaultPageSize is the number of available targets per page.
const DefaultPageSize = 20

// ViewQuery filters, sorts and pages the available targets.
type ViewQuery struct {
	Search string
	Sort   string
	Page   int
}

// CycleView is the targets panel: all targets, the requested page of
// available ones, the batch and the current cycle's cards.
type CycleView struct {
	Targets        []string              `json:"targets"`
	Available      []string              `json:"available"`
	Page           utils.Page            `json:"page"`
	Batch          *cycle.Batch          `json:"batch"`
	Requested      []cycle.RequestedItem `json:"requested"`
	SubmittedCount int                   `json:"submittedCount"`
	MaxRequested   int                   `json:"maxRequested"`
	Locked         bool                  `json:"locked"`
	Version        int64                 `json:"version"`
}

// CycleService coordinates the request cycle of each user.
type CycleService struct {
	DB      *gorm.DB
	Sources *SourceService

	EditPassword   string
	UnlockPassword string
	PageSize       int

	now func() time.Time
}

func (s *CycleService) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

// mutate applies fn to the user's cycle inside one transaction and saves the
// result if the stored version is unchanged. fn reports whether it changed
// the state; an unchanged state is not written and keeps its version. fn
// returning an error aborts without writing.
func (s *CycleService) mutate(ctx context.Context, op, username string, fn func(tx *gorm.DB, st *cycle.State) (bool, error)) error {
	ctx, span := tracer().Start(ctx, "CycleService."+op,
		trace.WithAttributes(attribute.String("user", username)))
	defer span.End()

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		st, err := repo.LoadCycle(ctx, tx, username)
		if err != nil {
			return err
		}
		changed, err := fn(tx, st)
		if err != nil || !changed {
			return err
		}
		return repo.SaveCycle(ctx, tx, username, st)
	})

	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, repo.ErrConflict):
		err, result = ErrConcurrentUpdate, "conflict"
	case isCycleRejection(err):
		result = "rejected"
	default:
		result = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	observability.CycleOps.WithLabelValues(op, result).Inc()
	return err
}

func isCycleRejection(err error) bool {
	for _, e := range []error{
		cycle.ErrLocked, cycle.ErrNotInBatch, cycle.ErrQuotaReached, cycle.ErrEmptyBatch,
		cycle.ErrItemNotFound, cycle.ErrBadPassword, cycle.ErrInvalidPatch,
	} {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}

// View returns the targets panel for the user.
func (s *CycleService) View(ctx context.Context, username string, q ViewQuery) (*CycleView, error) {
	ctx, span := tracer().Start(ctx, "CycleService.View")
	defer span.End()

	st, err := repo.LoadCycle(ctx, s.DB, username)
	if err != nil {
		return nil, err
	}
	targets := s.Sources.Targets(ctx, username)
	available := filterKeywords(st.Available(targets), q.Search)
	sortKeywords(available, q.Sort)

	size := s.PageSize
	if size < 1 {
		size = DefaultPageSize
	}
	pageItems, page := utils.Paginate(available, q.Page, size)

	requested := st.Requested
	if requested == nil {
		requested = []cycle.RequestedItem{}
	}
	return &CycleView{
		Targets:        targets,
		Available:      pageItems,
		Page:           page,
		Batch:          st.Batch,
		Requested:      requested,
		SubmittedCount: st.SubmittedCount(),
		MaxRequested:   cycle.MaxRequested,
		Locked:         st.Locked(),
		Version:        st.Version,
	}, nil
}

// filterKeywords keeps keywords containing search under case folding.
func filterKeywords(kws []string, search string) []string {
	search = strings.TrimSpace(search)
	if search == "" {
		return kws
	}
	fold := cases.Fold()
	needle := fold.String(search)
	out := make([]string, 0, len(kws))
	for _, kw := range kws {
		if strings.Contains(fold.String(kw), needle) {
			out = append(out, kw)
		}
	}
	return out
}

// sortKeywords orders kws in place: by locale collation (default) or by
// length in runes. Ties keep their aggregated order.
func sortKeywords(kws []string, order string) {
	if order == SortLength {
		slices.SortStableFunc(kws, func(a, b string) int {
			return utf8.RuneCountInString(a) - utf8.RuneCountInString(b)
		})
		return
	}
	col := collate.New(language.English)
	slices.SortStableFunc(kws, func(a, b string) int { return col.CompareString(a, b) })
}

// EnsureBatch creates the active batch if needed and returns its identity.
func (s *CycleService) EnsureBatch(ctx context.Context, username string) (int64, error) {
	var id int64
	err := s.mutate(ctx, "ensure_batch", username, func(_ *gorm.DB, st *cycle.State) (bool, error) {
		created := st.Batch == nil
		id = st.EnsureActiveBatch(s.clock())
		return created, nil
	})
	return id, err
}

// AddToBatch stages candidates into the batch as room allows and returns
// the keywords that were added and the resulting batch.
func (s *CycleService) AddToBatch(ctx context.Context, username string, candidates []string) ([]string, *cycle.Batch, error) {
	var (
		added []string
		batch *cycle.Batch
	)
	err := s.mutate(ctx, "add_to_batch", username, func(_ *gorm.DB, st *cycle.State) (bool, error) {
		created := st.Batch == nil
		var err error
		if added, err = st.AddKeywords(candidates, s.clock()); err != nil {
			return false, err
		}
		batch = st.Batch
		return created || len(added) > 0, nil
	})
	if err != nil {
		return nil, nil, err
	}
	return added, batch, nil
}

// RemoveFromBatch drops kw from the batch. Locked cycles reject the call;
// an absent keyword is not an error.
func (s *CycleService) RemoveFromBatch(ctx context.Context, username, kw string) (bool, error) {
	var removed bool
	err := s.mutate(ctx, "remove_from_batch", username, func(_ *gorm.DB, st *cycle.State) (bool, error) {
		if st.Locked() {
			return false, cycle.ErrLocked
		}
		removed = st.RemoveKeyword(kw)
		return removed, nil
	})
	return removed, err
}

// Submit moves kw from the batch into the scheduled cards. The returned bool
// reports whether this submission locked the cycle.
func (s *CycleService) Submit(ctx context.Context, username, kw string) (cycle.RequestedItem, bool, error) {
	var (
		item   cycle.RequestedItem
		locked bool
	)
	err := s.mutate(ctx, "submit", username, func(_ *gorm.DB, st *cycle.State) (bool, error) {
		var err error
		if item, err = st.SubmitKeyword(strings.TrimSpace(kw), s.clock()); err != nil {
			return false, err
		}
		locked = st.Locked()
		return true, nil
	})
	return item, locked, err
}

// SubmitBatch submits every batch keyword in order. Either all of them are
// submitted or none is.
func (s *CycleService) SubmitBatch(ctx context.Context, username string) ([]cycle.RequestedItem, bool, error) {
	var (
		items  []cycle.RequestedItem
		locked bool
	)
	err := s.mutate(ctx, "submit_batch", username, func(_ *gorm.DB, st *cycle.State) (bool, error) {
		var err error
		if items, err = st.SubmitBatch(s.clock()); err != nil {
			return false, err
		}
		locked = st.Locked()
		return true, nil
	})
	if err != nil {
		return nil, false, err
	}
	return items, locked, nil
}

// EditItem applies a card edit gated by the edit password.
func (s *CycleService) EditItem(ctx context.Context, username, password string, id int, p cycle.ItemPatch) (cycle.RequestedItem, error) {
	if err := cycle.CheckPassword(s.EditPassword, password); err != nil {
		observability.CycleOps.WithLabelValues("edit_item", "rejected").Inc()
		return cycle.RequestedItem{}, err
	}
	var item cycle.RequestedItem
	err := s.mutate(ctx, "edit_item", username, func(_ *gorm.DB, st *cycle.State) (bool, error) {
		var err error
		item, err = st.EditItem(id, p)
		return err == nil, err
	})
	return item, err
}

// Unlock archives the current cycle and reopens it. The archive row, the
// cleared cards and the reset state commit together.
func (s *CycleService) Unlock(ctx context.Context, username, password string) (*ArchiveView, error) {
	if err := cycle.CheckPassword(s.UnlockPassword, password); err != nil {
		observability.CycleOps.WithLabelValues("unlock", "rejected").Inc()
		return nil, err
	}
	var row *domain.CycleArchive
	err := s.mutate(ctx, "unlock", username, func(tx *gorm.DB, st *cycle.State) (bool, error) {
		a := st.Unlock(s.clock())
		var err error
		row, err = repo.InsertArchive(ctx, tx, username, a)
		return err == nil, err
	})
	if err != nil {
		return nil, err
	}
	return toArchiveView(*row)
}

// ArchiveView is a past cycle.
type ArchiveView struct {
	ID string `json:"id"`
	cycle.Archive
}

// Archives returns a page of past cycles, newest first.
func (s *CycleService) Archives(ctx context.Context, username string, page int) ([]ArchiveView, utils.Page, error) {
	total, err := repo.CountArchives(ctx, s.DB, username)
	if err != nil {
		return nil, utils.Page{}, err
	}
	size := s.PageSize
	if size < 1 {
		size = DefaultPageSize
	}
	p := utils.NewPage(page, size, int(total))
	rows, err := repo.ListArchives(ctx, s.DB, username, p.Offset(), p.PageSize)
	if err != nil {
		return nil, utils.Page{}, err
	}
	out := make([]ArchiveView, 0, len(rows))
	for _, r := range rows {
		v, err := toArchiveView(r)
		if err != nil {
			return nil, utils.Page{}, err
		}
		out = append(out, *v)
	}
	return out, p, nil
}

func toArchiveView(r domain.CycleArchive) (*ArchiveView, error) {
	v := &ArchiveView{ID: r.ID}
	v.ArchivedAt = r.ArchivedAt
	v.Keywords = []string{}
	v.Scheduled = map[string]cycle.RequestedItem{}
	if len(r.Batch) > 0 && string(r.Batch) != "null" {
		v.Batch = &cycle.Batch{}
		if err := json.Unmarshal(r.Batch, v.Batch); err != nil {
			return nil, err
		}
	}
	if len(r.Keywords) > 0 {
		if err := json.Unmarshal(r.Keywords, &v.Keywords); err != nil {
			return nil, err
		}
	}
	if len(r.Scheduled) > 0 {
		if err := json.Unmarshal(r.Scheduled, &v.Scheduled); err != nil {
			return nil, err
		}
	}
	return v, nil
}
