// Package runtime drives visitor sessions through a flow graph.
//
// The Engine is stateless: every call is a pure function of the flow, the cursor
// held by the caller and the selected option. Each call visits exactly one node,
// so cycles in the graph only affect how many round trips a visitor makes.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/chatflow/internal/logging"
	"github.com/aretw0/chatflow/pkg/dispatch"
	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/aretw0/chatflow/pkg/ports"
)

// Engine is the flow executor.
type Engine struct {
	dispatcher ports.ActionDispatcher
	hooks      domain.LifecycleHooks
	logger     *slog.Logger
	now        func() time.Time
}

// Option configures the Engine.
type Option func(*Engine)

// WithDispatcher overrides the action dispatcher.
func WithDispatcher(d ports.ActionDispatcher) Option {
	return func(e *Engine) {
		e.dispatcher = d
	}
}

// WithLifecycleHooks registers observability callbacks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger configures a logger for the Engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// NewEngine creates an Engine with the default dispatcher.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		dispatcher: dispatch.New(),
		logger:     logging.NewNop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start opens a session on the entry node of flow.
func (e *Engine) Start(ctx context.Context, flow *domain.Flow) (*domain.Turn, error) {
	if flow == nil {
		return nil, e.fail(ctx, "", "", "", fmt.Errorf("%w: no flow", domain.ErrEmptyFlow))
	}

	entry, err := flow.EntryNode()
	if err != nil {
		return nil, e.fail(ctx, flow.ID, "", "", fmt.Errorf("%w: flow %s: %v", domain.ErrEmptyFlow, flow.ID, err))
	}

	return e.enter(ctx, flow, entry, "")
}

// Step consumes one selected option and moves the cursor to exactly one node.
func (e *Engine) Step(ctx context.Context, flow *domain.Flow, cursor domain.Cursor, optionID string) (*domain.Turn, error) {
	fail := func(err error) (*domain.Turn, error) {
		flowID := cursor.FlowID
		if flow != nil {
			flowID = flow.ID
		}
		return nil, e.fail(ctx, flowID, cursor.CurrentNodeID, optionID, err)
	}

	if cursor.Ended {
		return fail(fmt.Errorf("%w: node %s concluded the session", domain.ErrSessionEnded, cursor.CurrentNodeID))
	}
	if flow == nil {
		return fail(fmt.Errorf("%w: flow %s is gone", domain.ErrBrokenTraversal, cursor.FlowID))
	}
	if cursor.FlowID != flow.ID {
		return fail(fmt.Errorf("%w: cursor belongs to flow %q, not %q", domain.ErrBrokenTraversal, cursor.FlowID, flow.ID))
	}

	current, err := flow.NodeByID(cursor.CurrentNodeID)
	if err != nil {
		return fail(fmt.Errorf("%w: %v", domain.ErrBrokenTraversal, err))
	}

	behavior, err := current.Behavior()
	if err != nil {
		return fail(fmt.Errorf("%w: %v", domain.ErrBrokenTraversal, err))
	}
	if behavior.Concludes() {
		return fail(fmt.Errorf("%w: node %s is terminal", domain.ErrSessionEnded, current.ID))
	}

	option, ok := current.OptionByID(optionID)
	if !ok {
		return fail(fmt.Errorf("%w: %q on node %s", domain.ErrInvalidOption, optionID, current.ID))
	}

	targetID := option.TargetNodeID
	if targetID == "" {
		edge, ok := flow.EdgeForOption(current.ID, option.ID)
		if !ok {
			return fail(fmt.Errorf("%w: option %s on node %s leads nowhere", domain.ErrBrokenTraversal, option.ID, current.ID))
		}
		targetID = edge.Target
	}

	next, err := flow.NodeByID(targetID)
	if err != nil {
		return fail(fmt.Errorf("%w: option %s: %v", domain.ErrBrokenTraversal, option.ID, err))
	}

	return e.enter(ctx, flow, next, option.ID)
}

// enter renders node and resolves its directive.
func (e *Engine) enter(ctx context.Context, flow *domain.Flow, node *domain.Node, optionID string) (*domain.Turn, error) {
	behavior, err := node.Behavior()
	if err != nil {
		return nil, e.fail(ctx, flow.ID, node.ID, optionID, fmt.Errorf("%w: %v", domain.ErrBrokenTraversal, err))
	}

	e.logger.DebugContext(ctx, "node enter", "flow_id", flow.ID, "node_id", node.ID, "option_id", optionID)
	if e.hooks.OnNodeEnter != nil {
		e.hooks.OnNodeEnter(ctx, &domain.NodeEvent{
			EventBase: e.event(domain.EventNodeEnter, flow.ID),
			NodeID:    node.ID,
			NodeType:  node.Type,
			OptionID:  optionID,
		})
	}

	turn := &domain.Turn{
		Cursor: domain.Cursor{
			FlowID:        flow.ID,
			CurrentNodeID: node.ID,
			Ended:         behavior.Concludes(),
		},
	}

	switch b := behavior.(type) {
	case domain.Menu:
		turn.Payload = &domain.Payload{NodeID: b.ID, Text: b.Text, Options: domain.Choices(b.Options)}
	case domain.Message:
		turn.Payload = &domain.Payload{NodeID: b.ID, Text: b.Text, Options: domain.Choices(b.Options)}
	}

	directive, err := e.dispatcher.Dispatch(behavior)
	if err != nil {
		return nil, e.fail(ctx, flow.ID, node.ID, optionID, fmt.Errorf("%w: dispatch node %s: %v", domain.ErrBrokenTraversal, node.ID, err))
	}
	turn.Directive = directive

	if directive != nil && e.hooks.OnDirective != nil {
		e.hooks.OnDirective(ctx, &domain.DirectiveEvent{
			EventBase: e.event(domain.EventDirective, flow.ID),
			NodeID:    node.ID,
			Directive: directive,
		})
	}

	return turn, nil
}

func (e *Engine) fail(ctx context.Context, flowID, nodeID, optionID string, err error) error {
	e.logger.DebugContext(ctx, "step failed", "flow_id", flowID, "node_id", nodeID, "option_id", optionID, "err", err)
	if e.hooks.OnStepError != nil {
		e.hooks.OnStepError(ctx, &domain.ErrorEvent{
			EventBase: e.event(domain.EventStepError, flowID),
			NodeID:    nodeID,
			OptionID:  optionID,
			Err:       err,
		})
	}
	return err
}

func (e *Engine) event(t domain.EventType, flowID string) domain.EventBase {
	return domain.EventBase{Timestamp: e.now(), Type: t, FlowID: flowID}
}
