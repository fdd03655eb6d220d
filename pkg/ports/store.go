package ports

import (
	"context"

	"github.com/aretw0/chatflow/pkg/domain"
)

// ActivationGuard vets a flow right before it becomes active.
// A non-nil error aborts the activation and is returned unchanged.
type ActivationGuard func(flow *domain.Flow) error

// FlowRepository persists flow definitions and the single active-flow pointer.
//
// Repositories own the IsActive field: it is derived from the pointer on every read
// and ignored on writes. Returned flows are copies the caller may mutate.
type FlowRepository interface {
	// List returns all flows ordered by creation time, then id.
	List(ctx context.Context) ([]*domain.Flow, error)

	// Get returns the flow with the given id or domain.ErrNotFound.
	Get(ctx context.Context, id string) (*domain.Flow, error)

	// Put creates or replaces a flow.
	Put(ctx context.Context, flow *domain.Flow) error

	// Delete removes a flow, clearing the active pointer if it referenced it.
	// Returns domain.ErrNotFound if the flow does not exist.
	Delete(ctx context.Context, id string) error

	// ActiveID returns the id of the active flow, or "" when none is active.
	ActiveID(ctx context.Context) (string, error)

	// Activate loads the flow, runs guard on it and swaps the active pointer,
	// all inside one critical section or transaction. At most one flow is
	// active at any time, and a rejected activation leaves the previous one in place.
	Activate(ctx context.Context, id string, guard ActivationGuard) error
}
