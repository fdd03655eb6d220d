package flowstore_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/chatflow/internal/testutils"
	"github.com/aretw0/chatflow/pkg/adapters/memory"
	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/aretw0/chatflow/pkg/flowstore"
	"github.com/aretw0/chatflow/pkg/ports"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)

func newService(opts ...flowstore.Option) *flowstore.Service {
	opts = append([]flowstore.Option{flowstore.WithClock(func() time.Time { return fixedNow })}, opts...)
	return flowstore.New(memory.NewStore(), opts...)
}

func TestService_SaveFlow(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	input := testutils.PlantShopFlow()
	input.ID = ""
	input.Version = 7
	input.IsActive = true

	saved, err := svc.SaveFlow(ctx, input)
	require.NoError(t, err)

	_, err = uuid.Parse(saved.ID)
	assert.NoError(t, err, "empty id should be replaced by a uuid")
	assert.Equal(t, 1, saved.Version)
	assert.False(t, saved.IsActive)
	assert.Equal(t, fixedNow, saved.CreatedAt)
	assert.Equal(t, fixedNow, saved.UpdatedAt)
	assert.Empty(t, input.ID, "input should not be mutated")

	loaded, err := svc.GetFlowByID(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, saved.Nodes, loaded.Nodes)
}

func TestService_SaveFlowDuplicate(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	_, err := svc.SaveFlow(ctx, testutils.PlantShopFlow())
	require.NoError(t, err)

	_, err = svc.SaveFlow(ctx, testutils.PlantShopFlow())
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
}

func TestService_UpdateFlow(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	_, err := svc.SaveFlow(ctx, testutils.PlantShopFlow())
	require.NoError(t, err)

	name := "Spring catalogue"
	updated, err := svc.UpdateFlow(ctx, "plant-shop", flowstore.FlowPatch{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, name, updated.Name)
	assert.Equal(t, 2, updated.Version)
	assert.Len(t, updated.Nodes, 5, "nil patch fields are unchanged")

	_, err = svc.UpdateFlow(ctx, "missing", flowstore.FlowPatch{Name: &name})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestService_UpdateActiveFlowMustStayValid(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	_, err := svc.SaveFlow(ctx, testutils.PlantShopFlow())
	require.NoError(t, err)
	require.NoError(t, svc.SetActiveFlow(ctx, "plant-shop"))

	edges := []domain.Edge{{ID: "e1", Source: "menu", Target: "ghost"}}
	_, err = svc.UpdateFlow(ctx, "plant-shop", flowstore.FlowPatch{Edges: &edges})
	require.ErrorIs(t, err, domain.ErrValidationFailed)

	violations := domain.Violations(err)
	require.NotEmpty(t, violations)
	assert.Equal(t, domain.KindDanglingReference, violations[0].Kind)

	current, err := svc.GetActiveFlow(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, current.Version, "rejected update must not be stored")

	// Inactive flows may hold drafts with problems.
	_, err = svc.SaveFlow(ctx, testutils.LoopFlow())
	require.NoError(t, err)
	_, err = svc.UpdateFlow(ctx, "loop", flowstore.FlowPatch{Edges: &edges})
	assert.NoError(t, err)
}

func TestService_SetActiveFlow(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	active, err := svc.GetActiveFlow(ctx)
	require.NoError(t, err)
	assert.Nil(t, active, "no flow is active initially")

	for _, f := range []*domain.Flow{testutils.PlantShopFlow(), testutils.WhatsAppFlow()} {
		_, err := svc.SaveFlow(ctx, f)
		require.NoError(t, err)
	}

	require.NoError(t, svc.SetActiveFlow(ctx, "plant-shop"))
	require.NoError(t, svc.SetActiveFlow(ctx, "wa"))

	active, err = svc.GetActiveFlow(ctx)
	require.NoError(t, err)
	assert.Equal(t, "wa", active.ID)
	assert.True(t, active.IsActive)

	flows, err := svc.GetAllFlows(ctx)
	require.NoError(t, err)
	activeCount := 0
	for _, f := range flows {
		if f.IsActive {
			activeCount++
		}
	}
	assert.Equal(t, 1, activeCount)
}

func TestService_SetActiveFlowRejectsInvalid(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	_, err := svc.SaveFlow(ctx, testutils.WhatsAppFlow())
	require.NoError(t, err)
	require.NoError(t, svc.SetActiveFlow(ctx, "wa"))

	broken := testutils.PlantShopFlow()
	broken.Nodes[4].Data.Options = []domain.Option{{ID: "x", Label: "Again", TargetNodeID: "menu"}}
	broken.Nodes[2].Data.ActionValue = ""
	_, err = svc.SaveFlow(ctx, broken)
	require.NoError(t, err)

	err = svc.SetActiveFlow(ctx, "plant-shop")
	require.ErrorIs(t, err, domain.ErrValidationFailed)

	kinds := map[domain.ViolationKind]bool{}
	for _, v := range domain.Violations(err) {
		kinds[v.Kind] = true
	}
	assert.True(t, kinds[domain.KindInvalidTerminal])
	assert.True(t, kinds[domain.KindMissingActionValue])

	active, err := svc.GetActiveFlow(ctx)
	require.NoError(t, err)
	assert.Equal(t, "wa", active.ID, "previous active flow stays in place")

	assert.ErrorIs(t, svc.SetActiveFlow(ctx, "missing"), domain.ErrNotFound)
}

func TestService_SetActiveFlowRejectsUnplayableFlows(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(f *domain.Flow)
		want   domain.ViolationKind
	}{
		{
			name: "Option leading nowhere",
			mutate: func(f *domain.Flow) {
				f.Nodes[0].Data.Options = append(f.Nodes[0].Data.Options, domain.Option{ID: "o2", Label: "Later"})
			},
			want: domain.KindDanglingReference,
		},
		{
			name: "Menu without options",
			mutate: func(f *domain.Flow) {
				f.Nodes[1].Data = domain.NodeData{Text: "Chat with us"}
			},
			want: domain.KindDeadEnd,
		},
		{
			name: "WhatsApp without a number",
			mutate: func(f *domain.Flow) {
				f.Nodes[1].Data.ActionValue = "call us"
			},
			want: domain.KindMissingActionValue,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			svc := newService()

			flow := testutils.WhatsAppFlow()
			tt.mutate(flow)
			_, err := svc.SaveFlow(ctx, flow)
			require.NoError(t, err)

			err = svc.SetActiveFlow(ctx, "wa")
			require.ErrorIs(t, err, domain.ErrValidationFailed)
			violations := domain.Violations(err)
			require.Len(t, violations, 1)
			assert.Equal(t, tt.want, violations[0].Kind)

			active, err := svc.GetActiveFlow(ctx)
			require.NoError(t, err)
			assert.Nil(t, active)
		})
	}
}

func TestService_NilFlow(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	_, err := svc.SaveFlow(ctx, nil)
	assert.ErrorIs(t, err, domain.ErrValidationFailed)

	_, err = svc.ImportFlow(ctx, nil)
	assert.ErrorIs(t, err, domain.ErrValidationFailed)

	flows, err := svc.GetAllFlows(ctx)
	require.NoError(t, err)
	assert.Empty(t, flows)
}

func TestService_DeleteActiveFlow(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	_, err := svc.SaveFlow(ctx, testutils.WhatsAppFlow())
	require.NoError(t, err)
	require.NoError(t, svc.SetActiveFlow(ctx, "wa"))

	require.NoError(t, svc.DeleteFlow(ctx, "wa"))

	active, err := svc.GetActiveFlow(ctx)
	require.NoError(t, err)
	assert.Nil(t, active)

	assert.ErrorIs(t, svc.DeleteFlow(ctx, "wa"), domain.ErrNotFound)
}

func TestService_ImportFlow(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	created, err := svc.ImportFlow(ctx, testutils.PlantShopFlow())
	require.NoError(t, err)
	assert.Equal(t, 1, created.Version)

	again := testutils.PlantShopFlow()
	again.Name = "Re-imported"
	replaced, err := svc.ImportFlow(ctx, again)
	require.NoError(t, err)
	assert.Equal(t, 2, replaced.Version)
	assert.Equal(t, "Re-imported", replaced.Name)
	assert.Equal(t, created.CreatedAt, replaced.CreatedAt)
}

// countingLocker records lock usage.
type countingLocker struct {
	mu      sync.Mutex
	held    map[string]bool
	locks   int
	unlocks int
}

func (l *countingLocker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		panic("lock held twice: " + key)
	}
	l.held[key] = true
	l.locks++
	return func(ctx context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, key)
		l.unlocks++
		return nil
	}, nil
}

func TestService_DistributedLocker(t *testing.T) {
	ctx := context.Background()
	locker := &countingLocker{held: map[string]bool{}}
	svc := newService(flowstore.WithLocker(locker))

	_, err := svc.SaveFlow(ctx, testutils.WhatsAppFlow())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, svc.SetActiveFlow(ctx, "wa"))
		}()
	}
	wg.Wait()

	assert.Equal(t, 11, locker.locks)
	assert.Equal(t, 11, locker.unlocks)
}
