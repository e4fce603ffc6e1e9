package cycle

import (
	"strings"
	"time"
)

// EnsureActiveBatch creates an empty batch if none exists and returns its
// identifying timestamp. Calling it again without a reset returns the same id.
func (s *State) EnsureActiveBatch(now time.Time) int64 {
	if s.Batch == nil {
		s.Batch = &Batch{CreatedAt: millis(now), Keywords: []string{}}
	}
	return s.Batch.CreatedAt
}

// AddKeywords stages as many candidates as the remaining room allows and
// returns the keywords actually added. Overflow is dropped without error.
// Empty candidates and keywords already staged, submitted or archived are
// skipped and do not consume room.
func (s *State) AddKeywords(candidates []string, now time.Time) ([]string, error) {
	if s.Locked() {
		return nil, ErrLocked
	}
	s.EnsureActiveBatch(now)

	room := s.room()
	added := make([]string, 0, room)
	for _, c := range candidates {
		if room == 0 {
			break
		}
		kw := strings.TrimSpace(c)
		if kw == "" || s.Batch.Contains(kw) || s.isRequested(kw) || s.isArchived(kw) {
			continue
		}
		s.Batch.Keywords = append(s.Batch.Keywords, kw)
		added = append(added, kw)
		room--
	}
	return added, nil
}

// RemoveKeyword unstages kw. It reports whether anything was removed.
// The lock is not consulted here; callers gate on Locked first.
func (s *State) RemoveKeyword(kw string) bool {
	if s.Batch == nil {
		return false
	}
	for i, k := range s.Batch.Keywords {
		if k == kw {
			s.Batch.Keywords = append(s.Batch.Keywords[:i], s.Batch.Keywords[i+1:]...)
			return true
		}
	}
	return false
}
