package workflow

import (
	"context"
	"sync"

	"chronos/pkg/domain"
	dErrors "chronos/pkg/domain-errors"
)

// MemoryStore keeps definitions and instances in process memory.
type MemoryStore struct {
	mu          sync.RWMutex
	definitions map[domain.DefinitionID]*Definition
	defOrder    []domain.DefinitionID
	instances   map[domain.InstanceID]*Instance
	instOrder   []domain.InstanceID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		definitions: make(map[domain.DefinitionID]*Definition),
		instances:   make(map[domain.InstanceID]*Instance),
	}
}

func (s *MemoryStore) GetDefinition(_ context.Context, id domain.DefinitionID) (*Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.definitions[id]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "workflow definition not found")
	}
	cp := *d
	return &cp, nil
}

func (s *MemoryStore) PutDefinition(_ context.Context, def *Definition) error {
	if def == nil || def.ID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "definition id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.definitions[def.ID]; !exists {
		s.defOrder = append(s.defOrder, def.ID)
	}
	cp := *def
	s.definitions[def.ID] = &cp
	return nil
}

func (s *MemoryStore) ListDefinitions(_ context.Context) ([]Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Definition, 0, len(s.defOrder))
	for _, id := range s.defOrder {
		out = append(out, *s.definitions[id])
	}
	return out, nil
}

func (s *MemoryStore) DefinitionsByModule(_ context.Context, module string) ([]Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Definition
	for _, id := range s.defOrder {
		d := s.definitions[id]
		if d.Module == module && d.Active {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (s *MemoryStore) GetInstance(_ context.Context, id domain.InstanceID) (*Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inst, ok := s.instances[id]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "workflow instance not found")
	}
	return inst.Clone(), nil
}

func (s *MemoryStore) PutInstance(_ context.Context, inst *Instance) error {
	if inst == nil || inst.ID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "instance id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.instances[inst.ID]; !exists {
		s.instOrder = append(s.instOrder, inst.ID)
	}
	s.instances[inst.ID] = inst.Clone()
	return nil
}

func (s *MemoryStore) ListInstances(_ context.Context) ([]Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Instance, 0, len(s.instOrder))
	for _, id := range s.instOrder {
		out = append(out, *s.instances[id].Clone())
	}
	return out, nil
}
