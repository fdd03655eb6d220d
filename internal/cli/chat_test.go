package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aretw0/chatflow/internal/config"
	"github.com/aretw0/chatflow/internal/logging"
	"github.com/aretw0/chatflow/internal/testutils"
	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/aretw0/chatflow/pkg/flowfile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMemory(t *testing.T) *App {
	t.Helper()
	app, err := Open(testConfig(t, config.DriverMemory), logging.NewNop())
	require.NoError(t, err)
	return app
}

func TestRunChat_ActiveFlow(t *testing.T) {
	app := openMemory(t)
	ctx := context.Background()
	_, err := app.Store.SaveFlow(ctx, testutils.PlantShopFlow())
	require.NoError(t, err)
	require.NoError(t, app.Store.SetActiveFlow(ctx, "plant-shop"))

	var out bytes.Buffer
	session, err := RunChat(ctx, app, ChatOptions{In: strings.NewReader("4\n"), Out: &out})
	require.NoError(t, err)
	assert.True(t, session.Ended())
	assert.Contains(t, out.String(), "Happy planting!")
}

func TestRunChat_FlowFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wa.yaml")
	require.NoError(t, flowfile.WriteFile(path, testutils.WhatsAppFlow()))

	var out bytes.Buffer
	session, err := RunChat(context.Background(), openMemory(t), ChatOptions{
		FlowPath: path,
		JSON:     true,
		In:       strings.NewReader(`{"optionId":"o1"}` + "\n"),
		Out:      &out,
	})
	require.NoError(t, err)
	assert.True(t, session.Ended())
	assert.Contains(t, out.String(), `"type":"whatsapp"`)
}

func TestRunChat_InvalidFlowFile(t *testing.T) {
	broken := &domain.Flow{
		ID:    "broken",
		Nodes: []domain.Node{{ID: "a", Data: domain.NodeData{Text: "Shop", ActionType: domain.ActionURL}}},
	}
	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, flowfile.WriteFile(path, broken))

	_, err := RunChat(context.Background(), openMemory(t), ChatOptions{FlowPath: path, In: strings.NewReader(""), Out: &bytes.Buffer{}})
	assert.ErrorIs(t, err, domain.ErrValidationFailed)
}

func TestLoadFlows_Directories(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, flowfile.WriteFile(filepath.Join(dir, "a.json"), testutils.WhatsAppFlow()))
	require.NoError(t, flowfile.WriteFile(filepath.Join(dir, "b.yaml"), testutils.LoopFlow()))

	flows, err := LoadFlows(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, flows, 2)
	assert.Equal(t, "wa", flows[0].ID)
	assert.Equal(t, "loop", flows[1].ID)

	_, err = LoadFlows(context.Background(), filepath.Join(dir, "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
