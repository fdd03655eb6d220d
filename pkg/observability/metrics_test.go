package observability_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/aretw0/chatflow/internal/logging"
	"github.com/aretw0/chatflow/internal/runtime"
	"github.com/aretw0/chatflow/internal/testutils"
	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/aretw0/chatflow/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_RecordsConversation(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)
	eng := runtime.NewEngine(runtime.WithLifecycleHooks(metrics.Hooks()))

	ctx := context.Background()
	flow := testutils.PlantShopFlow()

	turn, err := eng.Start(ctx, flow)
	require.NoError(t, err)
	turn, err = eng.Step(ctx, flow, turn.Cursor, "o-care")
	require.NoError(t, err)
	_, err = eng.Step(ctx, flow, turn.Cursor, "nope")
	require.ErrorIs(t, err, domain.ErrInvalidOption)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.NodeVisits.WithLabelValues("plant-shop", "menu")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.NodeVisits.WithLabelValues("plant-shop", "care")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Directives.WithLabelValues("plant-shop", "message")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.StepErrors.WithLabelValues("invalid_option")))

	count, err := testutil.GatherAndCount(reg, "chatflow_node_visits_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestNewMetrics_NilRegisterer(t *testing.T) {
	assert.NotPanics(t, func() {
		observability.NewMetrics(nil)
		observability.NewMetrics(nil)
	})
}

func TestReason(t *testing.T) {
	assert.Equal(t, "session_ended", observability.Reason(domain.ErrSessionEnded))
	assert.Equal(t, "broken_traversal", observability.Reason(domain.ErrBrokenTraversal))
	assert.Equal(t, "empty_flow", observability.Reason(domain.ErrEmptyFlow))
	assert.Equal(t, "other", observability.Reason(context.Canceled))
}

func TestChain_LogsAndCounts(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWriter(&buf, slog.LevelInfo)
	metrics := observability.NewMetrics(nil)

	var entered []string
	hooks := observability.Chain(
		observability.LogHooks(logger),
		metrics.Hooks(),
		domain.LifecycleHooks{
			OnNodeEnter: func(_ context.Context, e *domain.NodeEvent) { entered = append(entered, e.NodeID) },
		},
	)

	eng := runtime.NewEngine(runtime.WithLifecycleHooks(hooks))
	flow := testutils.WhatsAppFlow()
	turn, err := eng.Start(context.Background(), flow)
	require.NoError(t, err)
	_, err = eng.Step(context.Background(), flow, turn.Cursor, "o1")
	require.NoError(t, err)

	assert.Equal(t, []string{"n1", "n2"}, entered)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Directives.WithLabelValues("wa", "whatsapp")))
	assert.Contains(t, buf.String(), "msg=node_enter")
	assert.Contains(t, buf.String(), "msg=directive")
}
