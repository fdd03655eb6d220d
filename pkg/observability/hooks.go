package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/chatflow/pkg/domain"
)

// LogHooks logs every lifecycle event. Node entries and directives go to
// Info, step errors to Warn.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeEnter: func(ctx context.Context, e *domain.NodeEvent) {
			logger.InfoContext(ctx, "node_enter",
				"flow_id", e.FlowID,
				"node_id", e.NodeID,
				"type", e.NodeType,
				"option_id", e.OptionID,
			)
		},
		OnDirective: func(ctx context.Context, e *domain.DirectiveEvent) {
			logger.InfoContext(ctx, "directive",
				"flow_id", e.FlowID,
				"node_id", e.NodeID,
				"type", e.Directive.Type,
			)
		},
		OnStepError: func(ctx context.Context, e *domain.ErrorEvent) {
			logger.WarnContext(ctx, "step_error",
				"flow_id", e.FlowID,
				"node_id", e.NodeID,
				"option_id", e.OptionID,
				"err", e.Err,
			)
		},
	}
}

// Chain fans each event out to every non-nil callback, in order.
func Chain(hooks ...domain.LifecycleHooks) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeEnter: func(ctx context.Context, e *domain.NodeEvent) {
			for _, h := range hooks {
				if h.OnNodeEnter != nil {
					h.OnNodeEnter(ctx, e)
				}
			}
		},
		OnDirective: func(ctx context.Context, e *domain.DirectiveEvent) {
			for _, h := range hooks {
				if h.OnDirective != nil {
					h.OnDirective(ctx, e)
				}
			}
		},
		OnStepError: func(ctx context.Context, e *domain.ErrorEvent) {
			for _, h := range hooks {
				if h.OnStepError != nil {
					h.OnStepError(ctx, e)
				}
			}
		},
	}
}
