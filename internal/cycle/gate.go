package cycle

import (
	"strings"
	"time"
)

// scheduleDate returns the publication date of the n-th card (1-based):
// 4 days after submission, then every 5 days.
func scheduleDate(submitted time.Time, n int) string {
	days := 4 + 5*(n-1)
	return submitted.UTC().AddDate(0, 0, days).Format(DateLayout)
}

// SubmitKeyword moves kw from the batch into the submitted set with default
// card fields. When the submitted count reaches MaxRequested the cycle locks
// in the same transition.
func (s *State) SubmitKeyword(kw string, now time.Time) (RequestedItem, error) {
	if s.Locked() {
		return RequestedItem{}, ErrLocked
	}
	if !s.Batch.Contains(kw) {
		return RequestedItem{}, ErrNotInBatch
	}
	if s.SubmittedCount() >= MaxRequested {
		return RequestedItem{}, ErrQuotaReached
	}

	s.RemoveKeyword(kw)
	n := s.SubmittedCount() + 1
	item := RequestedItem{
		Keyword:     kw,
		Submitted:   true,
		SubmittedAt: millis(now),
		ID:          n,
		Title:       kw,
		Excerpt:     DefaultExcerpt,
		ImageURL:    DefaultImageURL,
		Date:        scheduleDate(now, n),
		ReadTime:    DefaultReadTime,
		URL:         DefaultURL,
		Status:      StatusPending,
	}
	s.Requested = append(s.Requested, item)

	if s.SubmittedCount() >= MaxRequested {
		s.Unlocked = false
	}
	return item, nil
}

// SubmitBatch submits every staged keyword in batch order.
func (s *State) SubmitBatch(now time.Time) ([]RequestedItem, error) {
	if s.Locked() {
		return nil, ErrLocked
	}
	if s.batchLen() == 0 {
		return nil, ErrEmptyBatch
	}
	kws := append([]string(nil), s.Batch.Keywords...)
	out := make([]RequestedItem, 0, len(kws))
	for _, kw := range kws {
		it, err := s.SubmitKeyword(kw, now)
		if err != nil {
			return out, err
		}
		out = append(out, it)
	}
	return out, nil
}

// ItemPatch carries the editable card fields. Nil fields are left unchanged.
type ItemPatch struct {
	Title    *string `json:"title,omitempty"`
	Excerpt  *string `json:"excerpt,omitempty"`
	ImageURL *string `json:"imageUrl,omitempty"`
	Date     *string `json:"date,omitempty"`
	ReadTime *string `json:"readTime,omitempty"`
	URL      *string `json:"url,omitempty"`
	Status   *string `json:"status,omitempty"`
}

// EditItem applies p to the submitted card with the given id. Cards can be
// edited regardless of the lock; only batch and submission are gated.
func (s *State) EditItem(id int, p ItemPatch) (RequestedItem, error) {
	idx := -1
	for i := range s.Requested {
		if s.Requested[i].ID == id && s.Requested[i].Submitted {
			idx = i
			break
		}
	}
	if idx < 0 {
		return RequestedItem{}, ErrItemNotFound
	}

	it := s.Requested[idx]
	if p.Title != nil {
		t := strings.TrimSpace(*p.Title)
		if t == "" {
			return RequestedItem{}, ErrInvalidPatch
		}
		it.Title = t
	}
	if p.Excerpt != nil {
		it.Excerpt = *p.Excerpt
	}
	if p.ImageURL != nil {
		it.ImageURL = strings.TrimSpace(*p.ImageURL)
		if it.ImageURL == "" {
			it.ImageURL = DefaultImageURL
		}
	}
	if p.Date != nil {
		if _, err := time.Parse(DateLayout, *p.Date); err != nil {
			return RequestedItem{}, ErrInvalidPatch
		}
		it.Date = *p.Date
	}
	if p.ReadTime != nil {
		it.ReadTime = *p.ReadTime
	}
	if p.URL != nil {
		it.URL = *p.URL
	}
	if p.Status != nil {
		st, ok := ParseStatus(*p.Status)
		if !ok {
			return RequestedItem{}, ErrInvalidPatch
		}
		it.Status = st
	}
	s.Requested[idx] = it
	return it, nil
}
