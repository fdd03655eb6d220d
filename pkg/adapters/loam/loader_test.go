package loam_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/chatflow/internal/runtime"
	"github.com/aretw0/chatflow/internal/testutils"
	"github.com/aretw0/chatflow/internal/validator"
	"github.com/aretw0/chatflow/pkg/adapters/loam"
	"github.com/aretw0/chatflow/pkg/domain"
	loamlib "github.com/aretw0/loam"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
}

func TestLoader_Flow(t *testing.T) {
	tmpDir, repo := testutils.SetupTestRepo(t)

	seed(t, tmpDir, map[string]string{
		"menu.md": `---
order: 1
entry: true
position: [10, 20]
options:
  - id: o-care
    label: Care tips
    via: care
  - id: o-talk
    label: Talk to us
    to: talk.md
---
Welcome to the **nursery**!
`,
		"care.md": `---
order: 2
type: message
action: message
position:
  x: 300
  y: "40"
options:
  - id: o-back
    label: Back
    to: menu
---
Water weekly.
`,
		"talk.md": `---
order: 3
type: action
action: WhatsApp
value: "+1 555 0100"
---
A gardener will answer.
`,
	})

	loader := loam.New(loamlib.NewTypedRepository[loam.NodeMetadata](repo), "nursery")
	flow, err := loader.Flow(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "nursery", flow.ID)
	require.Len(t, flow.Nodes, 3)
	assert.Equal(t, "menu", flow.Nodes[0].ID)
	assert.Equal(t, "Welcome to the **nursery**!", flow.Nodes[0].Data.Text)
	assert.Equal(t, domain.Position{X: 10, Y: 20}, flow.Nodes[0].Position)
	assert.Equal(t, domain.Position{X: 300, Y: 40}, flow.Nodes[1].Position)
	assert.Equal(t, "talk", flow.Nodes[0].Data.Options[1].TargetNodeID)
	assert.Equal(t, domain.ActionWhatsApp, flow.Nodes[2].Data.ActionType)

	require.Len(t, flow.Edges, 1)
	assert.Equal(t, domain.Edge{
		ID:     "menu:o-care",
		Source: "menu",
		Target: "care",
		Data:   domain.EdgeData{OptionID: "o-care", OptionLabel: "Care tips"},
	}, flow.Edges[0])

	assert.True(t, validator.Validate(flow).Valid())

	ctx := context.Background()
	engine := runtime.NewEngine()
	turn, err := engine.Start(ctx, flow)
	require.NoError(t, err)
	turn, err = engine.Step(ctx, flow, turn.Cursor, "o-care")
	require.NoError(t, err)
	assert.Equal(t, "care", turn.Cursor.CurrentNodeID)
}

func TestLoader_DetectsCollisions(t *testing.T) {
	tmpDir, repo := testutils.SetupTestRepo(t)

	seed(t, tmpDir, map[string]string{
		"foo.md": `---
id: foo
---
Explicit ID`,
		"bar.md": `---
id: foo
---
Same ID`,
	})

	loader := loam.New(loamlib.NewTypedRepository[loam.NodeMetadata](repo), "f")
	_, err := loader.Flows(context.Background())
	assert.ErrorContains(t, err, "collision detected")
}

func TestLoader_RejectsToAndVia(t *testing.T) {
	tmpDir, repo := testutils.SetupTestRepo(t)

	seed(t, tmpDir, map[string]string{
		"a.md": `---
options:
  - id: o
    label: Both
    to: b
    via: b
---
A`,
	})

	loader := loam.New(loamlib.NewTypedRepository[loam.NodeMetadata](repo), "f")
	_, err := loader.Flow(context.Background())
	assert.ErrorContains(t, err, "both to and via")
}
