package cycle

import (
	"crypto/subtle"
	"time"
)

// CheckPassword compares given against expected in constant time.
func CheckPassword(expected, given string) error {
	if expected == "" || subtle.ConstantTimeCompare([]byte(expected), []byte(given)) != 1 {
		return ErrBadPassword
	}
	return nil
}

// Unlock closes the current cycle: it snapshots the batch and every submitted
// card into an Archive, clears the current state and reopens the cycle.
// Archive timestamps are strictly increasing per state even if the clock
// stalls or moves backwards.
func (s *State) Unlock(now time.Time) Archive {
	ts := millis(now)
	if ts <= s.LastArchiveAt {
		ts = s.LastArchiveAt + 1
	}

	a := Archive{
		ArchivedAt: ts,
		Keywords:   make([]string, 0, len(s.Requested)),
		Scheduled:  make(map[string]RequestedItem, len(s.Requested)),
	}
	if s.Batch != nil {
		b := *s.Batch
		b.Keywords = append([]string{}, s.Batch.Keywords...)
		a.Batch = &b
	}
	for _, it := range s.Requested {
		if it.Submitted {
			a.Keywords = append(a.Keywords, it.Keyword)
		}
		a.Scheduled[it.Keyword] = it
	}

	if s.Archived == nil {
		s.Archived = map[string]struct{}{}
	}
	for _, kw := range a.Keywords {
		s.Archived[kw] = struct{}{}
	}
	if a.Batch != nil {
		for _, kw := range a.Batch.Keywords {
			s.Archived[kw] = struct{}{}
		}
	}

	s.Batch = nil
	s.Requested = nil
	s.Unlocked = true
	s.LastArchiveAt = ts
	return a
}
