package flowfile_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/chatflow/internal/testutils"
	"github.com/aretw0/chatflow/internal/validator"
	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/aretw0/chatflow/pkg/flowfile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadFile_YAML(t *testing.T) {
	flow, err := flowfile.ReadFile(filepath.Join("testdata", "plant-shop.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "plant-shop", flow.ID, "id defaults to the file name")
	assert.Equal(t, "Plant shop assistant", flow.Name)
	require.Len(t, flow.Nodes, 4)
	assert.True(t, flow.Nodes[0].Data.IsEntry)
	assert.Equal(t, domain.ActionWhatsApp, flow.Nodes[2].Data.ActionType)
	assert.Equal(t, "o-talk", flow.Edges[1].Data.OptionID)
	assert.True(t, validator.Validate(flow).Valid())
}

func TestReadFile_JSONIgnoresEditorFields(t *testing.T) {
	flow, err := flowfile.ReadFile(filepath.Join("testdata", "handoff.json"))
	require.NoError(t, err)

	assert.Equal(t, "handoff", flow.ID)
	assert.Equal(t, domain.Position{X: 100, Y: 50}, flow.Nodes[0].Position)
	assert.Equal(t, "n2", flow.Nodes[0].Data.Options[0].TargetNodeID)
}

func TestParse_YAMLIsStrict(t *testing.T) {
	_, err := flowfile.Parse([]byte("id: x\nnodes:\n  - id: a\n    dta: {}\n"), flowfile.FormatYAML)
	assert.Error(t, err)
}

func TestWriteRead_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	original := testutils.PlantShopFlow()

	for _, name := range []string{"shop.json", "shop.yaml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, flowfile.WriteFile(path, original))

			loaded, err := flowfile.ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, original.ID, loaded.ID)
			assert.Equal(t, original.Nodes, loaded.Nodes)
			assert.Equal(t, original.Edges, loaded.Edges)
		})
	}
}

func TestFormatFromPath(t *testing.T) {
	_, err := flowfile.FormatFromPath("flow.toml")
	assert.Error(t, err)

	f, err := flowfile.FormatFromPath("FLOW.YML")
	require.NoError(t, err)
	assert.Equal(t, flowfile.FormatYAML, f)
}

func TestSource_Flows(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, flowfile.WriteFile(filepath.Join(dir, "b.json"), testutils.WhatsAppFlow()))
	require.NoError(t, flowfile.WriteFile(filepath.Join(dir, "a.yaml"), testutils.LoopFlow()))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644))

	flows, err := flowfile.NewSource(dir, filepath.Join("testdata", "handoff.json")).Flows(context.Background())
	require.NoError(t, err)
	require.Len(t, flows, 3)
	assert.Equal(t, "loop", flows[0].ID)
	assert.Equal(t, "wa", flows[1].ID)
	assert.Equal(t, "handoff", flows[2].ID)
}
