package ports

import "github.com/aretw0/chatflow/pkg/domain"

// ActionDispatcher translates a compiled node into the directive the presentation channel performs.
// Implementations must be pure: the channel, not the dispatcher, opens chats or URLs.
// A nil directive means the node has no effect (pure menu).
type ActionDispatcher interface {
	Dispatch(b domain.Behavior) (*domain.Directive, error)
}
