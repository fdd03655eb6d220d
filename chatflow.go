package chatflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/chatflow/internal/logging"
	"github.com/aretw0/chatflow/internal/runtime"
	"github.com/aretw0/chatflow/pkg/dispatch"
	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/aretw0/chatflow/pkg/ports"
)

// FlowStore is the part of the Flow Store the engine reads from.
// *flowstore.Service satisfies it.
type FlowStore interface {
	GetActiveFlow(ctx context.Context) (*domain.Flow, error)
	GetFlowByID(ctx context.Context, id string) (*domain.Flow, error)
}

// Session is what a presentation channel receives after each call.
// Payload is set for nodes that show text and options; Directive for
// action-bearing nodes. A message node sets both.
type Session struct {
	// Token is the opaque cursor the channel sends back with the next choice.
	Token     string            `json:"token"`
	Cursor    domain.Cursor     `json:"cursor"`
	Payload   *domain.Payload   `json:"payload,omitempty"`
	Directive *domain.Directive `json:"directive,omitempty"`
}

// Ended reports whether the session is concluded.
func (s *Session) Ended() bool {
	return s.Cursor.Ended
}

// Engine is the high-level entry point for presentation channels.
type Engine struct {
	store      FlowStore
	runtime    *runtime.Engine
	codec      cursorCodec
	dispatcher ports.ActionDispatcher
	hooks      domain.LifecycleHooks
	logger     *slog.Logger
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithCursorSecret signs cursor tokens so visitors cannot forge positions.
func WithCursorSecret(secret []byte) Option {
	return func(e *Engine) {
		e.codec.secret = secret
	}
}

// WithDispatcher overrides the action dispatcher.
func WithDispatcher(d ports.ActionDispatcher) Option {
	return func(e *Engine) {
		e.dispatcher = d
	}
}

// WithWhatsAppTemplate sets the pre-filled WhatsApp message ({{text}} is the node text).
func WithWhatsAppTemplate(tmpl string) Option {
	return func(e *Engine) {
		e.dispatcher = dispatch.New(dispatch.WithWhatsAppTemplate(tmpl))
	}
}

// New creates an Engine reading flows from store.
func New(store FlowStore, opts ...Option) *Engine {
	eng := &Engine{
		store:      store,
		dispatcher: dispatch.New(),
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(eng)
	}

	eng.runtime = runtime.NewEngine(
		runtime.WithDispatcher(eng.dispatcher),
		runtime.WithLifecycleHooks(eng.hooks),
		runtime.WithLogger(eng.logger),
	)
	return eng
}

// StartSession opens a session on the active flow.
// It fails with domain.ErrNotFound when no flow is active.
func (e *Engine) StartSession(ctx context.Context) (*Session, error) {
	flow, err := e.store.GetActiveFlow(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load active flow: %w", err)
	}
	if flow == nil {
		return nil, fmt.Errorf("no active flow: %w", domain.ErrNotFound)
	}

	turn, err := e.runtime.Start(ctx, flow)
	if err != nil {
		return nil, err
	}
	return e.session(turn)
}

// Advance applies the visitor's choice to the session identified by token.
// The flow named by the cursor is used, even if another flow has been
// activated since, so running conversations are not cut short.
func (e *Engine) Advance(ctx context.Context, token, optionID string) (*Session, error) {
	cursor, err := e.codec.decode(token)
	if err != nil {
		return nil, err
	}

	flow, err := e.store.GetFlowByID(ctx, cursor.FlowID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: flow %s was deleted", domain.ErrBrokenTraversal, cursor.FlowID)
		}
		return nil, fmt.Errorf("failed to load flow %s: %w", cursor.FlowID, err)
	}

	turn, err := e.runtime.Step(ctx, flow, cursor, optionID)
	if err != nil {
		return nil, err
	}
	return e.session(turn)
}

// Executor exposes the underlying stateless executor.
func (e *Engine) Executor() ports.Executor {
	return e.runtime
}

func (e *Engine) session(turn *domain.Turn) (*Session, error) {
	token, err := e.codec.encode(turn.Cursor)
	if err != nil {
		return nil, err
	}
	return &Session{
		Token:     token,
		Cursor:    turn.Cursor,
		Payload:   turn.Payload,
		Directive: turn.Directive,
	}, nil
}
