package ports

import (
	"context"

	"github.com/aretw0/chatflow/pkg/domain"
)

// Executor is the stateless conversation state machine.
// Callers hold the cursor between calls; the executor keeps nothing.
type Executor interface {
	// Start renders the entry node of flow.
	Start(ctx context.Context, flow *domain.Flow) (*domain.Turn, error)

	// Step follows optionID from the node under cursor and renders exactly one node.
	Step(ctx context.Context, flow *domain.Flow, cursor domain.Cursor, optionID string) (*domain.Turn, error)
}
