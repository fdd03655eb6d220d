package ports

import (
	"context"

	"github.com/aretw0/chatflow/pkg/domain"
)

// FlowSource reads flow definitions from an authoring format.
// Sources are read-only; importing into a FlowRepository is the caller's job.
type FlowSource interface {
	// Flows returns every flow the source describes.
	Flows(ctx context.Context) ([]*domain.Flow, error)
}
