package cycle

import (
	"errors"
	"math/rand/v2"
	"testing"
	"time"
)

// checkInvariants asserts the State invariants and fails with the op history.
func checkInvariants(t *testing.T, s *State, history []string) {
	t.Helper()
	fail := func(format string, args ...any) {
		t.Helper()
		t.Fatalf(format+"\nops: %v", append(args, history)...)
	}

	if got := s.batchLen() + s.SubmittedCount(); got > MaxRequested {
		fail("batch+submitted=%d > %d", got, MaxRequested)
	}
	if s.SubmittedCount() >= MaxRequested && !s.Locked() {
		fail("quota reached but cycle unlocked")
	}

	where := map[string]int{}
	if s.Batch != nil {
		for _, kw := range s.Batch.Keywords {
			where[kw]++
		}
	}
	for _, it := range s.Requested {
		where[it.Keyword]++
	}
	for kw := range s.Archived {
		where[kw]++
	}
	for kw, n := range where {
		if n > 1 {
			fail("keyword %q held in %d places", kw, n)
		}
	}

	ids := map[int]bool{}
	for _, it := range s.Requested {
		if ids[it.ID] {
			fail("duplicate card id %d", it.ID)
		}
		ids[it.ID] = true
	}
}

func TestRandomSequences_HoldInvariants(t *testing.T) {
	pool := []string{"crm", "crm pricing", "CRM Pricing", "crm 2.0", "crm 2_0", "best crm", "cheap crm", "crm/api", "sales", "pipeline"}
	rng := rand.New(rand.NewPCG(7, 11))

	for seq := 0; seq < 2000; seq++ {
		s := NewState()
		now := t0
		var history []string

		for step := 0; step < 40; step++ {
			now = now.Add(time.Duration(rng.IntN(3)-1) * time.Minute)
			kw := pool[rng.IntN(len(pool))]

			switch rng.IntN(7) {
			case 0:
				n := 1 + rng.IntN(5)
				cands := make([]string, n)
				for i := range cands {
					cands[i] = pool[rng.IntN(len(pool))]
				}
				history = append(history, "add")
				wasLocked := s.Locked()
				before := s.batchLen()
				added, err := s.AddKeywords(cands, now)
				if wasLocked != errors.Is(err, ErrLocked) {
					t.Fatalf("add: locked=%v err=%v", wasLocked, err)
				}
				if err == nil && s.batchLen() != before+len(added) {
					t.Fatalf("added %v but batch grew %d -> %d", added, before, s.batchLen())
				}
			case 1:
				history = append(history, "remove "+kw)
				s.RemoveKeyword(kw)
			case 2:
				history = append(history, "submit "+kw)
				wasLocked := s.Locked()
				before := s.SubmittedCount()
				_, err := s.SubmitKeyword(kw, now)
				if wasLocked && !errors.Is(err, ErrLocked) {
					t.Fatalf("submit while locked: err=%v", err)
				}
				if err != nil && s.SubmittedCount() != before {
					t.Fatalf("rejected submit changed the count")
				}
			case 3:
				history = append(history, "submit-batch")
				_, _ = s.SubmitBatch(now)
			case 4:
				history = append(history, "ensure")
				id := s.EnsureActiveBatch(now)
				if again := s.EnsureActiveBatch(now.Add(time.Hour)); again != id {
					t.Fatalf("EnsureActiveBatch not idempotent: %d vs %d", id, again)
				}
			case 5:
				history = append(history, "edit")
				if len(s.Requested) > 0 {
					it := s.Requested[rng.IntN(len(s.Requested))]
					title := "edited " + it.Keyword
					got, err := s.EditItem(it.ID, ItemPatch{Title: &title})
					if err != nil || got.Title != title || got.Keyword != it.Keyword {
						t.Fatalf("edit %d: %+v %v", it.ID, got, err)
					}
				}
			case 6:
				if rng.IntN(3) != 0 {
					continue
				}
				history = append(history, "unlock")
				submitted := s.SubmittedCount()
				last := s.LastArchiveAt
				a := s.Unlock(now)
				if len(a.Scheduled) != submitted || len(a.Keywords) != submitted {
					t.Fatalf("archive kept %d cards, %d keywords of %d submitted", len(a.Scheduled), len(a.Keywords), submitted)
				}
				if a.ArchivedAt <= last {
					t.Fatalf("archive timestamp %d not after %d", a.ArchivedAt, last)
				}
				if s.Locked() || s.Batch != nil || len(s.Requested) != 0 {
					t.Fatalf("unlock did not reset: %+v", s)
				}
			}
			checkInvariants(t, s, history)
		}
	}
}
