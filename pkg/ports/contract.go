package ports

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunFlowRepositoryContract runs a suite of tests to verify that a FlowRepository
// implementation adheres to the defined interface contract.
// newRepo must return an empty repository on every call.
func RunFlowRepositoryContract(t *testing.T, newRepo func(t *testing.T) FlowRepository) {
	ctx := context.Background()

	t.Run("Put and Get", func(t *testing.T) {
		repo := newRepo(t)
		flow := contractFlow("f1", 0)

		require.NoError(t, repo.Put(ctx, flow), "Put should not return error")

		loaded, err := repo.Get(ctx, "f1")
		require.NoError(t, err, "Get should not return error")
		assert.Equal(t, flow.Name, loaded.Name)
		assert.Equal(t, flow.Version, loaded.Version)
		assert.Equal(t, flow.Nodes, loaded.Nodes)
		assert.Equal(t, flow.Edges, loaded.Edges)
		assert.True(t, flow.CreatedAt.Equal(loaded.CreatedAt), "CreatedAt should round-trip")
		assert.True(t, flow.UpdatedAt.Equal(loaded.UpdatedAt), "UpdatedAt should round-trip")
		assert.False(t, loaded.IsActive)
	})

	t.Run("Put replaces", func(t *testing.T) {
		repo := newRepo(t)
		flow := contractFlow("f1", 0)
		require.NoError(t, repo.Put(ctx, flow))

		flow.Name = "Renamed"
		flow.Version = 2
		flow.Nodes = flow.Nodes[:1]
		flow.Nodes[0].Data.Options = nil
		flow.Edges = nil
		require.NoError(t, repo.Put(ctx, flow))

		loaded, err := repo.Get(ctx, "f1")
		require.NoError(t, err)
		assert.Equal(t, "Renamed", loaded.Name)
		assert.Equal(t, 2, loaded.Version)
		assert.Len(t, loaded.Nodes, 1)
		assert.Empty(t, loaded.Edges)
	})

	t.Run("Returned flows are copies", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Put(ctx, contractFlow("f1", 0)))

		loaded, err := repo.Get(ctx, "f1")
		require.NoError(t, err)
		loaded.Nodes[0].Data.Text = "mutated"

		again, err := repo.Get(ctx, "f1")
		require.NoError(t, err)
		assert.Equal(t, "Hello", again.Nodes[0].Data.Text)
	})

	t.Run("Get Non-Existent", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.Get(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("List", func(t *testing.T) {
		repo := newRepo(t)
		flows, err := repo.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, flows)

		require.NoError(t, repo.Put(ctx, contractFlow("b", 1)))
		require.NoError(t, repo.Put(ctx, contractFlow("a", 2)))
		require.NoError(t, repo.Put(ctx, contractFlow("c", 1)))

		flows, err = repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, flows, 3)
		assert.Equal(t, []string{"b", "c", "a"}, flowIDs(flows), "List should order by creation time, then id")
	})

	t.Run("Delete", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Put(ctx, contractFlow("f1", 0)))

		require.NoError(t, repo.Delete(ctx, "f1"), "Delete should not return error")

		_, err := repo.Get(ctx, "f1")
		assert.ErrorIs(t, err, domain.ErrNotFound, "Get after Delete should return ErrNotFound")

		err = repo.Delete(ctx, "f1")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("Activate", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Put(ctx, contractFlow("a", 0)))
		require.NoError(t, repo.Put(ctx, contractFlow("b", 1)))

		id, err := repo.ActiveID(ctx)
		require.NoError(t, err)
		assert.Empty(t, id)

		var guarded []string
		guard := func(f *domain.Flow) error {
			guarded = append(guarded, f.ID)
			return nil
		}

		require.NoError(t, repo.Activate(ctx, "a", guard))
		require.NoError(t, repo.Activate(ctx, "b", guard))
		assert.Equal(t, []string{"a", "b"}, guarded)

		id, err = repo.ActiveID(ctx)
		require.NoError(t, err)
		assert.Equal(t, "b", id)

		a, err := repo.Get(ctx, "a")
		require.NoError(t, err)
		assert.False(t, a.IsActive)
		b, err := repo.Get(ctx, "b")
		require.NoError(t, err)
		assert.True(t, b.IsActive)

		assertSingleActive(t, repo, "b")
	})

	t.Run("Activate rejected by guard", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Put(ctx, contractFlow("a", 0)))
		require.NoError(t, repo.Put(ctx, contractFlow("b", 1)))
		require.NoError(t, repo.Activate(ctx, "a", nil))

		rejected := errors.New("rejected")
		err := repo.Activate(ctx, "b", func(*domain.Flow) error { return rejected })
		assert.ErrorIs(t, err, rejected)

		assertSingleActive(t, repo, "a")
	})

	t.Run("Activate Non-Existent", func(t *testing.T) {
		repo := newRepo(t)
		err := repo.Activate(ctx, "missing", nil)
		assert.ErrorIs(t, err, domain.ErrNotFound)

		id, err := repo.ActiveID(ctx)
		require.NoError(t, err)
		assert.Empty(t, id)
	})

	t.Run("Put keeps activation", func(t *testing.T) {
		repo := newRepo(t)
		flow := contractFlow("a", 0)
		require.NoError(t, repo.Put(ctx, flow))
		require.NoError(t, repo.Activate(ctx, "a", nil))

		flow.IsActive = false
		flow.Name = "Edited"
		require.NoError(t, repo.Put(ctx, flow))

		assertSingleActive(t, repo, "a")
	})

	t.Run("Delete active", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Put(ctx, contractFlow("a", 0)))
		require.NoError(t, repo.Activate(ctx, "a", nil))

		require.NoError(t, repo.Delete(ctx, "a"))

		id, err := repo.ActiveID(ctx)
		require.NoError(t, err)
		assert.Empty(t, id, "Deleting the active flow should leave no active flow")
	})

	t.Run("Concurrent activation", func(t *testing.T) {
		repo := newRepo(t)
		ids := []string{"a", "b", "c", "d"}
		for i, id := range ids {
			require.NoError(t, repo.Put(ctx, contractFlow(id, i)))
		}

		var wg sync.WaitGroup
		errs := make(chan error, len(ids)*5)
		for i := 0; i < 5; i++ {
			for _, id := range ids {
				wg.Add(1)
				go func(id string) {
					defer wg.Done()
					errs <- repo.Activate(ctx, id, nil)
				}(id)
			}
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		active, err := repo.ActiveID(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, active)
		assertSingleActive(t, repo, active)
	})
}

func assertSingleActive(t *testing.T, repo FlowRepository, want string) {
	t.Helper()

	id, err := repo.ActiveID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, id)

	flows, err := repo.List(context.Background())
	require.NoError(t, err)

	var active []string
	for _, f := range flows {
		if f.IsActive {
			active = append(active, f.ID)
		}
	}
	assert.Equal(t, []string{want}, active, "exactly one flow should be active")
}

func flowIDs(flows []*domain.Flow) []string {
	ids := make([]string, len(flows))
	for i, f := range flows {
		ids[i] = f.ID
	}
	return ids
}

// contractFlow builds a small valid flow. Flows with a higher age are created later.
func contractFlow(id string, age int) *domain.Flow {
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC).Add(time.Duration(age) * time.Hour)
	return &domain.Flow{
		ID:        id,
		Name:      fmt.Sprintf("Flow %s", id),
		Version:   1,
		CreatedAt: created,
		UpdatedAt: created.Add(time.Minute),
		Nodes: []domain.Node{
			{
				ID:       "start",
				Type:     "greeting",
				Position: domain.Position{X: 10, Y: 20},
				Data: domain.NodeData{
					Text: "Hello",
					Options: []domain.Option{
						{ID: "o1", Label: "Care tips"},
						{ID: "o2", Label: "Bye", TargetNodeID: "bye"},
					},
				},
			},
			{
				ID:   "tips",
				Type: "message",
				Data: domain.NodeData{Text: "Water weekly", ActionType: domain.ActionMessage},
			},
			{
				ID:   "bye",
				Type: "end",
				Data: domain.NodeData{Text: "Bye", ActionType: domain.ActionEnd},
			},
		},
		Edges: []domain.Edge{
			{ID: "e1", Source: "start", Target: "tips", Data: domain.EdgeData{OptionID: "o1", OptionLabel: "Care tips"}},
		},
	}
}
