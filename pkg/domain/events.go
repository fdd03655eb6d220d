package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventNodeEnter EventType = "node_enter"
	EventDirective EventType = "directive"
	EventStepError EventType = "step_error"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	FlowID    string    `json:"flow_id"`
}

// NodeEvent is emitted when a session lands on a node.
type NodeEvent struct {
	EventBase
	NodeID   string `json:"node_id"`
	NodeType string `json:"node_type"`
	OptionID string `json:"option_id,omitempty"` // empty on session start
}

// DirectiveEvent is emitted when a node produces a directive.
type DirectiveEvent struct {
	EventBase
	NodeID    string     `json:"node_id"`
	Directive *Directive `json:"directive"`
}

// ErrorEvent is emitted when Start or Step fails.
type ErrorEvent struct {
	EventBase
	NodeID   string `json:"node_id,omitempty"`
	OptionID string `json:"option_id,omitempty"`
	Err      error  `json:"-"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnNodeEnter func(context.Context, *NodeEvent)
	OnDirective func(context.Context, *DirectiveEvent)
	OnStepError func(context.Context, *ErrorEvent)
}
