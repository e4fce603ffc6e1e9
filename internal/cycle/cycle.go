// Package cycle implements the blog-request cycle: aggregating targeted
// keywords, staging them in a batch, submitting them under a per-cycle quota,
// and archiving a completed cycle on manual unlock.
//
// Everything here is pure. Callers load a State, apply one operation with an
// explicit timestamp, and persist the result in a single conditional write.
package cycle

import (
	"errors"
	"time"
)

// MaxRequested is the number of keywords that may be submitted per cycle.
const MaxRequested = 4

// Card defaults applied when a keyword is submitted.
const (
	DefaultExcerpt  = "Blog outline"
	DefaultImageURL = "/blog-outline.png"
	DefaultReadTime = "N/A"
	DefaultURL      = "#"

	// DateLayout is the format of RequestedItem.Date.
	DateLayout = "2006-01-02"
)

var (
	ErrLocked       = errors.New("cycle is locked")
	ErrNotInBatch   = errors.New("keyword is not in the batch")
	ErrQuotaReached = errors.New("request quota reached")
	ErrEmptyBatch   = errors.New("batch is empty")
	ErrItemNotFound = errors.New("requested item not found")
	ErrBadPassword  = errors.New("incorrect password")
	ErrInvalidPatch = errors.New("invalid card update")
)

// Status is the publication state of a requested card.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPublished Status = "published"
)

// ParseStatus validates a status string.
func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusPending, StatusPublished:
		return Status(s), true
	}
	return "", false
}

// Batch is the in-progress selection of the current cycle.
type Batch struct {
	CreatedAt int64    `json:"createdAt"`
	Keywords  []string `json:"keywords"`
}

// Contains reports whether kw is staged in the batch.
func (b *Batch) Contains(kw string) bool {
	if b == nil {
		return false
	}
	for _, k := range b.Keywords {
		if k == kw {
			return true
		}
	}
	return false
}

// RequestedItem is a submitted keyword together with its scheduled card.
type RequestedItem struct {
	Keyword     string `json:"keyword"`
	Submitted   bool   `json:"submitted"`
	SubmittedAt int64  `json:"submittedAt"`
	ID          int    `json:"id"`
	Title       string `json:"title"`
	Excerpt     string `json:"excerpt"`
	ImageURL    string `json:"imageUrl"`
	Date        string `json:"date"`
	ReadTime    string `json:"readTime"`
	URL         string `json:"url"`
	Status      Status `json:"status"`
}

// Archive is the immutable snapshot written when a cycle is closed.
// Scheduled is keyed by the verbatim keyword, which is unique within a cycle.
type Archive struct {
	ArchivedAt int64                    `json:"archivedAt"`
	Batch      *Batch                   `json:"batch"`
	Keywords   []string                 `json:"keywords"`
	Scheduled  map[string]RequestedItem `json:"scheduled"`
}

// State is the per-user cycle state.
//
// Invariants held by every operation:
//   - len(Batch.Keywords) + len(Requested) <= MaxRequested
//   - a keyword is in at most one of Batch, Requested, Archived
//   - Unlocked is false whenever len(Requested) >= MaxRequested
type State struct {
	Batch         *Batch
	Requested     []RequestedItem
	Unlocked      bool
	Archived      map[string]struct{}
	LastArchiveAt int64
	Version       int64
}

// NewState returns the state of a user who never requested anything.
func NewState() *State {
	return &State{Unlocked: true, Archived: map[string]struct{}{}}
}

// Locked reports whether the cycle refuses batch and submission mutations.
func (s *State) Locked() bool { return !s.Unlocked }

// SubmittedCount returns the number of submitted items of the current cycle.
func (s *State) SubmittedCount() int {
	n := 0
	for _, it := range s.Requested {
		if it.Submitted {
			n++
		}
	}
	return n
}

func (s *State) batchLen() int {
	if s.Batch == nil {
		return 0
	}
	return len(s.Batch.Keywords)
}

// room is the number of keywords that can still be staged.
func (s *State) room() int {
	r := MaxRequested - s.SubmittedCount() - s.batchLen()
	if r < 0 {
		return 0
	}
	return r
}

func (s *State) isRequested(kw string) bool {
	for _, it := range s.Requested {
		if it.Keyword == kw {
			return true
		}
	}
	return false
}

func (s *State) isArchived(kw string) bool {
	_, ok := s.Archived[kw]
	return ok
}

// Available returns targets that are neither staged, submitted nor archived,
// preserving the order of targets.
func (s *State) Available(targets []string) []string {
	out := make([]string, 0, len(targets))
	for _, kw := range targets {
		if s.Batch.Contains(kw) || s.isRequested(kw) || s.isArchived(kw) {
			continue
		}
		out = append(out, kw)
	}
	return out
}

func millis(t time.Time) int64 { return t.UnixMilli() }
