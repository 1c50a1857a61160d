package audit

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"chronos/pkg/domain"
)

// MemoryStore keeps the audit log in process memory, newest entry first.
// It is the default backend when no Postgres DSN is configured.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Insert(_ context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append([]Entry{e}, s.entries...)
	return nil
}

func (s *MemoryStore) List(_ context.Context, f Filters) ([]Entry, int, error) {
	s.mu.RLock()
	matched := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		if matches(e, f) {
			matched = append(matched, e)
		}
	}
	s.mu.RUnlock()

	sortEntries(matched, f.SortBy, f.SortDir)

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}
	total := len(matched)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func (s *MemoryStore) Since(_ context.Context, t time.Time) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, 0)
	for _, e := range s.entries {
		if !e.At.Before(t) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *MemoryStore) ByEntity(_ context.Context, entityType, entityID string) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, 0)
	for _, e := range s.entries {
		if e.Entity != nil && e.Entity.Type == entityType && e.Entity.ID == entityID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *MemoryStore) ByUser(_ context.Context, userID domain.UserID, since time.Time) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, 0)
	for _, e := range s.entries {
		if e.Actor.ID == userID && !e.At.Before(since) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *MemoryStore) CountByUser(_ context.Context, userID domain.UserID, since time.Time, failedOnly bool) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, e := range s.entries {
		if e.Actor.ID != userID || e.At.Before(since) {
			continue
		}
		if failedOnly && e.Success {
			continue
		}
		n++
	}
	return n, nil
}

func (s *MemoryStore) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.entries[:0]
	var removed int64
	for _, e := range s.entries {
		if e.At.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	s.entries = kept
	return removed, nil
}

func matches(e Entry, f Filters) bool {
	if f.UserID != "" && e.Actor.ID != f.UserID {
		return false
	}
	if f.Module != "" && e.Module != f.Module {
		return false
	}
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if f.Severity != "" && e.Severity != f.Severity {
		return false
	}
	if f.AccountID != "" && (e.Finance == nil || e.Finance.AccountID != f.AccountID) {
		return false
	}
	if f.EntityType != "" && (e.Entity == nil || e.Entity.Type != f.EntityType) {
		return false
	}
	if f.EntityID != "" && (e.Entity == nil || e.Entity.ID != f.EntityID) {
		return false
	}
	if f.Success != nil && e.Success != *f.Success {
		return false
	}
	if !f.From.IsZero() && e.At.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && e.At.After(f.To) {
		return false
	}
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		hit := strings.Contains(strings.ToLower(e.Description), q) ||
			strings.Contains(strings.ToLower(e.Actor.Name), q) ||
			(e.Entity != nil && strings.Contains(strings.ToLower(e.Entity.Name), q))
		if !hit {
			return false
		}
	}
	if len(f.Tags) > 0 && !anyTag(e.Tags, f.Tags) {
		return false
	}
	return true
}

func anyTag(have, want []string) bool {
	for _, w := range want {
		for _, h := range have {
			if h == w {
				return true
			}
		}
	}
	return false
}

func sortEntries(entries []Entry, by, dir string) {
	asc := dir == "asc"
	less := func(a, b Entry) bool { return a.At.Before(b.At) }
	switch by {
	case SortByModule:
		less = func(a, b Entry) bool { return a.Module < b.Module }
	case SortByUser:
		less = func(a, b Entry) bool { return a.Actor.Name < b.Actor.Name }
	case SortBySeverity:
		less = func(a, b Entry) bool { return a.Severity < b.Severity }
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if asc {
			return less(entries[i], entries[j])
		}
		return less(entries[j], entries[i])
	})
}
