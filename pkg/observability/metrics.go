package observability

import (
	"context"
	"errors"

	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the engine collectors.
type Metrics struct {
	NodeVisits *prometheus.CounterVec
	Directives *prometheus.CounterVec
	StepErrors *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg.
// A nil registerer skips registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		NodeVisits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatflow_node_visits_total",
				Help: "Total number of node visits",
			},
			[]string{"flow_id", "node_id"},
		),
		Directives: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatflow_directives_total",
				Help: "Directives returned to the presentation channel",
			},
			[]string{"flow_id", "type"},
		),
		StepErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatflow_step_errors_total",
				Help: "Failed Start or Step calls by reason",
			},
			[]string{"reason"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.NodeVisits, m.Directives, m.StepErrors)
	}
	return m
}

// Hooks returns lifecycle hooks that record into m.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeEnter: func(_ context.Context, e *domain.NodeEvent) {
			m.NodeVisits.WithLabelValues(e.FlowID, e.NodeID).Inc()
		},
		OnDirective: func(_ context.Context, e *domain.DirectiveEvent) {
			m.Directives.WithLabelValues(e.FlowID, string(e.Directive.Type)).Inc()
		},
		OnStepError: func(_ context.Context, e *domain.ErrorEvent) {
			m.StepErrors.WithLabelValues(Reason(e.Err)).Inc()
		},
	}
}

// Reason maps an engine error to a low-cardinality label.
func Reason(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidOption):
		return "invalid_option"
	case errors.Is(err, domain.ErrSessionEnded):
		return "session_ended"
	case errors.Is(err, domain.ErrBrokenTraversal):
		return "broken_traversal"
	case errors.Is(err, domain.ErrEmptyFlow):
		return "empty_flow"
	default:
		return "other"
	}
}
