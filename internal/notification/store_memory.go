package notification

import (
	"context"
	"sync"

	"chronos/pkg/domain"
	dErrors "chronos/pkg/domain-errors"
)

// MemoryStore keeps feeds and preferences in process memory, the default
// backend when no redis URL is configured.
type MemoryStore struct {
	mu    sync.RWMutex
	feeds map[domain.UserID][]Message
	prefs map[domain.UserID]Prefs
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		feeds: make(map[domain.UserID][]Message),
		prefs: make(map[domain.UserID]Prefs),
	}
}

func (s *MemoryStore) Insert(_ context.Context, m Message) error {
	if m.UserID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "message user id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.feeds[m.UserID] = append([]Message{m}, s.feeds[m.UserID]...)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, userID domain.UserID, id domain.MessageID) (*Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.feeds[userID] {
		if m.ID == id {
			out := m
			return &out, nil
		}
	}
	return nil, dErrors.Newf(dErrors.CodeNotFound, "notification %s not found", id)
}

func (s *MemoryStore) Update(_ context.Context, m Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	feed := s.feeds[m.UserID]
	for i := range feed {
		if feed[i].ID == m.ID {
			feed[i] = m
			return nil
		}
	}
	return dErrors.Newf(dErrors.CodeNotFound, "notification %s not found", m.ID)
}

func (s *MemoryStore) Delete(_ context.Context, userID domain.UserID, id domain.MessageID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	feed := s.feeds[userID]
	for i := range feed {
		if feed[i].ID == id {
			s.feeds[userID] = append(feed[:i], feed[i+1:]...)
			return nil
		}
	}
	return dErrors.Newf(dErrors.CodeNotFound, "notification %s not found", id)
}

func (s *MemoryStore) ListByUser(_ context.Context, userID domain.UserID) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	feed := s.feeds[userID]
	out := make([]Message, len(feed))
	copy(out, feed)
	return out, nil
}

func (s *MemoryStore) DeleteArchived(_ context.Context, userID domain.UserID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	feed := s.feeds[userID]
	kept := feed[:0]
	removed := 0
	for _, m := range feed {
		if m.Archived {
			removed++
			continue
		}
		kept = append(kept, m)
	}
	s.feeds[userID] = kept
	return removed, nil
}

func (s *MemoryStore) GetPrefs(_ context.Context, userID domain.UserID) (*Prefs, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.prefs[userID]
	if !ok {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "preferences for %s not found", userID)
	}
	out := p
	return &out, nil
}

func (s *MemoryStore) PutPrefs(_ context.Context, p Prefs) error {
	if p.UserID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "preferences user id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs[p.UserID] = p
	return nil
}
