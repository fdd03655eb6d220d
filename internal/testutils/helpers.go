package testutils

import (
	"path/filepath"
	"testing"

	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/aretw0/loam"
	"github.com/aretw0/loam/pkg/core"
	"github.com/stretchr/testify/require"
)

// SetupTestRepo creates a temporary directory and initializes a Loam repository in it.
// It returns the absolute path to the temp dir and the initialized repository.
// It fails the test immediately on error.
func SetupTestRepo(t *testing.T, opts ...loam.Option) (string, core.Repository) {
	t.Helper()

	tmpDir := t.TempDir()

	absPath, err := filepath.Abs(tmpDir)
	require.NoError(t, err, "Failed to get absolute path for temp dir")

	repo, err := loam.Init(absPath, opts...)
	require.NoError(t, err, "Failed to init loam repo")

	return absPath, repo
}

// WhatsAppFlow is the smallest hand-off flow: a greeting whose only option
// jumps straight to a WhatsApp node.
func WhatsAppFlow() *domain.Flow {
	return &domain.Flow{
		ID:   "wa",
		Name: "WhatsApp hand-off",
		Nodes: []domain.Node{
			{
				ID:   "n1",
				Type: "greeting",
				Data: domain.NodeData{
					Text: "Hi! How can I help?",
					Options: []domain.Option{
						{ID: "o1", Label: "Buy a plant", TargetNodeID: "n2"},
					},
				},
			},
			{
				ID:   "n2",
				Type: "action",
				Data: domain.NodeData{
					Text:        "Chat with us on WhatsApp",
					ActionType:  domain.ActionWhatsApp,
					ActionValue: "+911234567890",
				},
			},
		},
	}
}

// PlantShopFlow is a storefront assistant exercising every action type, edge-driven
// options, option shortcuts and a loop back to the main menu. Because of that loop
// the menu is flagged as entry explicitly.
//
//	menu --o-care--> care (message) --o-back--> menu
//	menu --o-buy---> shop (url)
//	menu --o-talk--> talk (whatsapp)
//	menu --o-bye---> bye (end)
func PlantShopFlow() *domain.Flow {
	return &domain.Flow{
		ID:   "plant-shop",
		Name: "Plant shop assistant",
		Nodes: []domain.Node{
			{
				ID:   "menu",
				Type: "menu",
				Data: domain.NodeData{
					Text:    "Welcome to the nursery! What would you like to do?",
					IsEntry: true,
					Options: []domain.Option{
						{ID: "o-care", Label: "Plant care tips"},
						{ID: "o-buy", Label: "Browse the shop"},
						{ID: "o-talk", Label: "Talk to a gardener"},
						{ID: "o-bye", Label: "Nothing, thanks", TargetNodeID: "bye"},
					},
				},
			},
			{
				ID:   "care",
				Type: "message",
				Data: domain.NodeData{
					Text:       "Water succulents once every two weeks.",
					ActionType: domain.ActionMessage,
					Options: []domain.Option{
						{ID: "o-back", Label: "Back to menu", TargetNodeID: "menu"},
					},
				},
			},
			{
				ID:   "shop",
				Type: "action",
				Data: domain.NodeData{
					Text:        "Opening the shop...",
					ActionType:  domain.ActionURL,
					ActionValue: "https://example.com/shop",
				},
			},
			{
				ID:   "talk",
				Type: "action",
				Data: domain.NodeData{
					Text:        "A gardener will answer on WhatsApp.",
					ActionType:  domain.ActionWhatsApp,
					ActionValue: "+91 12345 67890",
				},
			},
			{
				ID:   "bye",
				Type: "end",
				Data: domain.NodeData{
					Text:       "Happy planting!",
					ActionType: domain.ActionEnd,
				},
			},
		},
		// Stored deliberately out of option order.
		Edges: []domain.Edge{
			{ID: "e-talk", Source: "menu", Target: "talk", Data: domain.EdgeData{OptionID: "o-talk"}},
			{ID: "e-care", Source: "menu", Target: "care", Data: domain.EdgeData{OptionID: "o-care"}},
			{ID: "e-buy", Source: "menu", Target: "shop", Data: domain.EdgeData{OptionID: "o-buy"}},
		},
	}
}

// LoopFlow has a menu whose option points back to itself.
func LoopFlow() *domain.Flow {
	return &domain.Flow{
		ID:   "loop",
		Name: "Loop",
		Nodes: []domain.Node{
			{
				ID: "a",
				Data: domain.NodeData{
					Text: "Again?",
					Options: []domain.Option{
						{ID: "again", Label: "Again", TargetNodeID: "a"},
						{ID: "stop", Label: "Stop", TargetNodeID: "end"},
					},
				},
			},
			{
				ID:   "end",
				Data: domain.NodeData{Text: "Done", ActionType: domain.ActionEnd},
			},
		},
	}
}
