package permission

import (
	"context"
	"sync"

	"chronos/pkg/domain"
	dErrors "chronos/pkg/domain-errors"
)

// MemoryStore is the in-process role/user store. All state is lost on restart.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[domain.UserID]*User
	roles map[domain.RoleID]*Role
	// order preserves insertion order for ListRoles so seeded roles come
	// back the way they were defined.
	order []domain.RoleID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[domain.UserID]*User),
		roles: make(map[domain.RoleID]*Role),
	}
}

func (s *MemoryStore) GetUser(_ context.Context, id domain.UserID) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "user not found")
	}
	cp := *u
	return &cp, nil
}

func (s *MemoryStore) PutUser(_ context.Context, user *User) error {
	if user == nil || user.ID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "user id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

func (s *MemoryStore) GetRole(_ context.Context, id domain.RoleID) (*Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.roles[id]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "role not found")
	}
	cp := *r
	return &cp, nil
}

func (s *MemoryStore) PutRole(_ context.Context, role *Role) error {
	if role == nil || role.ID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "role id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.roles[role.ID]; !exists {
		s.order = append(s.order, role.ID)
	}
	cp := *role
	s.roles[role.ID] = &cp
	return nil
}

func (s *MemoryStore) RolesByIDs(_ context.Context, ids []domain.RoleID) ([]Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Role, 0, len(ids))
	for _, id := range ids {
		if r, ok := s.roles[id]; ok {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (s *MemoryStore) ListRoles(_ context.Context) ([]Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Role, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.roles[id])
	}
	return out, nil
}
