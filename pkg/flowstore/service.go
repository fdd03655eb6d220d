package flowstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/chatflow/internal/logging"
	"github.com/aretw0/chatflow/internal/validator"
	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/aretw0/chatflow/pkg/ports"
	"github.com/google/uuid"
)

// DefaultLockTTL bounds how long a crashed replica can hold a flow lock.
const DefaultLockTTL = 30 * time.Second

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// FlowPatch is a partial update. Nil fields are left unchanged.
type FlowPatch struct {
	Name  *string        `json:"name,omitempty"`
	Nodes *[]domain.Node `json:"nodes,omitempty"`
	Edges *[]domain.Edge `json:"edges,omitempty"`
}

// Service is the Flow Store.
// It uses reference counting to garbage collect unused locks.
type Service struct {
	repo ports.FlowRepository

	mu    sync.Mutex
	locks map[string]*lockEntry

	locker  ports.DistributedLocker
	lockTTL time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures the Service.
type Option func(*Service)

// WithLocker enables distributed locking of admin writes.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(s *Service) {
		s.locker = locker
	}
}

// WithLockTTL sets the lease of distributed locks.
func WithLockTTL(ttl time.Duration) Option {
	return func(s *Service) {
		s.lockTTL = ttl
	}
}

// WithLogger configures a logger for the Service.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// New creates a Flow Store on top of repo.
func New(repo ports.FlowRepository, opts ...Option) *Service {
	s := &Service{
		repo:    repo,
		locks:   make(map[string]*lockEntry),
		lockTTL: DefaultLockTTL,
		logger:  logging.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Repository returns the underlying repository.
func (s *Service) Repository() ports.FlowRepository {
	return s.repo
}

// GetActiveFlow returns the active flow, or nil when none is active.
func (s *Service) GetActiveFlow(ctx context.Context) (*domain.Flow, error) {
	id, err := s.repo.ActiveID(ctx)
	if err != nil {
		return nil, err
	}
	if id == "" {
		return nil, nil
	}

	f, err := s.repo.Get(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		// Deleted after the pointer was read.
		return nil, nil
	}
	return f, err
}

// GetFlowByID returns a flow or domain.ErrNotFound.
func (s *Service) GetFlowByID(ctx context.Context, id string) (*domain.Flow, error) {
	return s.repo.Get(ctx, id)
}

// GetAllFlows lists every flow.
func (s *Service) GetAllFlows(ctx context.Context) ([]*domain.Flow, error) {
	return s.repo.List(ctx)
}

var errNilFlow = fmt.Errorf("%w: no flow given", domain.ErrValidationFailed)

// SaveFlow stores a new flow. An empty id is replaced by a random uuid.
// The flow starts inactive at version 1.
func (s *Service) SaveFlow(ctx context.Context, partial *domain.Flow) (*domain.Flow, error) {
	if partial == nil {
		return nil, errNilFlow
	}
	flow := partial.Clone()
	if flow.ID == "" {
		flow.ID = uuid.NewString()
	}

	err := s.WithLock(ctx, flow.ID, func(ctx context.Context) error {
		if _, err := s.repo.Get(ctx, flow.ID); err == nil {
			return fmt.Errorf("flow %s: %w", flow.ID, domain.ErrAlreadyExists)
		} else if !errors.Is(err, domain.ErrNotFound) {
			return err
		}

		now := s.timestamp()
		flow.Version = 1
		flow.IsActive = false
		flow.CreatedAt = now
		flow.UpdatedAt = now
		return s.repo.Put(ctx, flow)
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "flow saved", "flow_id", flow.ID, "name", flow.Name)
	return flow, nil
}

// UpdateFlow applies patch, bumping the version.
// The active flow must stay activatable, so an update introducing blocking
// violations to it fails with domain.ErrValidationFailed.
func (s *Service) UpdateFlow(ctx context.Context, id string, patch FlowPatch) (*domain.Flow, error) {
	var updated *domain.Flow
	err := s.WithLock(ctx, id, func(ctx context.Context) error {
		current, err := s.repo.Get(ctx, id)
		if err != nil {
			return err
		}

		next := current.Clone()
		if patch.Name != nil {
			next.Name = *patch.Name
		}
		if patch.Nodes != nil {
			next.Nodes = (&domain.Flow{Nodes: *patch.Nodes}).Clone().Nodes
		}
		if patch.Edges != nil {
			next.Edges = (&domain.Flow{Edges: *patch.Edges}).Clone().Edges
		}
		next.Version = current.Version + 1
		next.UpdatedAt = s.timestamp()

		if current.IsActive {
			if err := validator.Guard(next); err != nil {
				return err
			}
		}

		if err := s.repo.Put(ctx, next); err != nil {
			return err
		}
		updated = next
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "flow updated", "flow_id", id, "version", updated.Version)
	return updated, nil
}

// ImportFlow creates the flow or replaces the definition of an existing one,
// keeping its creation time and bumping its version.
func (s *Service) ImportFlow(ctx context.Context, flow *domain.Flow) (*domain.Flow, error) {
	if flow == nil {
		return nil, errNilFlow
	}
	if flow.ID == "" {
		return s.SaveFlow(ctx, flow)
	}

	if _, err := s.repo.Get(ctx, flow.ID); errors.Is(err, domain.ErrNotFound) {
		return s.SaveFlow(ctx, flow)
	} else if err != nil {
		return nil, err
	}

	name := flow.Name
	nodes := flow.Nodes
	edges := flow.Edges
	return s.UpdateFlow(ctx, flow.ID, FlowPatch{Name: &name, Nodes: &nodes, Edges: &edges})
}

// DeleteFlow removes a flow. Deleting the active flow leaves no active flow.
func (s *Service) DeleteFlow(ctx context.Context, id string) error {
	err := s.WithLock(ctx, id, func(ctx context.Context) error {
		return s.repo.Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "flow deleted", "flow_id", id)
	return nil
}

// SetActiveFlow validates the flow and makes it the only active one.
// It fails with domain.ErrValidationFailed carrying every blocking violation.
func (s *Service) SetActiveFlow(ctx context.Context, id string) error {
	var warnings []domain.Violation
	guard := func(f *domain.Flow) error {
		report := validator.Validate(f)
		warnings = report.Warnings()
		return report.Err()
	}

	err := s.WithLock(ctx, id, func(ctx context.Context) error {
		return s.repo.Activate(ctx, id, guard)
	})
	if err != nil {
		return err
	}

	for _, w := range warnings {
		s.logger.WarnContext(ctx, "active flow has warnings", "flow_id", id, "violation", w.String())
	}
	s.logger.InfoContext(ctx, "flow activated", "flow_id", id)
	return nil
}

// WithLock executes fn while holding the lock for the flow.
func (s *Service) WithLock(ctx context.Context, flowID string, fn func(context.Context) error) error {
	entry := s.acquire(flowID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		s.release(flowID)
	}()

	if s.locker != nil {
		unlock, err := s.locker.Lock(ctx, "flow:"+flowID, s.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				s.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"flow_id", flowID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(flowID) after unlocking.
func (s *Service) acquire(flowID string) *lockEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.locks[flowID]
	if !exists {
		entry = &lockEntry{}
		s.locks[flowID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (s *Service) release(flowID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.locks[flowID]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(s.locks, flowID)
	}
}

// timestamp truncates to milliseconds so every backend round-trips it exactly.
func (s *Service) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}
