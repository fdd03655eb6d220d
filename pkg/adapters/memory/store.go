package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/aretw0/chatflow/pkg/ports"
)

// Store implements ports.FlowRepository in memory.
// Safe for concurrent use.
type Store struct {
	flows  map[string]*domain.Flow
	active string
	mu     sync.RWMutex
}

// NewStore creates a new in-memory store, optionally seeded with flows.
func NewStore(seed ...*domain.Flow) *Store {
	s := &Store{
		flows: make(map[string]*domain.Flow),
	}
	for _, f := range seed {
		s.flows[f.ID] = f.Clone()
	}
	return s
}

// List returns all flows ordered by creation time, then id.
func (s *Store) List(ctx context.Context) ([]*domain.Flow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	flows := make([]*domain.Flow, 0, len(s.flows))
	for _, f := range s.flows {
		flows = append(flows, s.view(f))
	}
	SortFlows(flows)
	return flows, nil
}

// Get retrieves a flow by id.
func (s *Store) Get(ctx context.Context, id string) (*domain.Flow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.flows[id]
	if !ok {
		return nil, fmt.Errorf("flow %s: %w", id, domain.ErrNotFound)
	}
	return s.view(f), nil
}

// Put creates or replaces a flow.
func (s *Store) Put(ctx context.Context, flow *domain.Flow) error {
	// Deep copy to ensure isolation, similar to serialization
	stored := flow.Clone()
	stored.IsActive = false

	s.mu.Lock()
	defer s.mu.Unlock()
	s.flows[flow.ID] = stored
	return nil
}

// Delete removes a flow.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.flows[id]; !ok {
		return fmt.Errorf("flow %s: %w", id, domain.ErrNotFound)
	}
	delete(s.flows, id)
	if s.active == id {
		s.active = ""
	}
	return nil
}

// ActiveID returns the id of the active flow.
func (s *Store) ActiveID(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active, nil
}

// Activate swaps the active pointer under the write lock.
func (s *Store) Activate(ctx context.Context, id string, guard ports.ActivationGuard) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.flows[id]
	if !ok {
		return fmt.Errorf("flow %s: %w", id, domain.ErrNotFound)
	}
	if guard != nil {
		if err := guard(s.view(f)); err != nil {
			return err
		}
	}
	s.active = id
	return nil
}

// view returns a copy of f with IsActive derived from the pointer. Callers hold the lock.
func (s *Store) view(f *domain.Flow) *domain.Flow {
	out := f.Clone()
	out.IsActive = f.ID == s.active
	return out
}

// SortFlows orders flows by creation time, then id.
func SortFlows(flows []*domain.Flow) {
	sort.SliceStable(flows, func(i, j int) bool {
		if !flows[i].CreatedAt.Equal(flows[j].CreatedAt) {
			return flows[i].CreatedAt.Before(flows[j].CreatedAt)
		}
		return flows[i].ID < flows[j].ID
	})
}
