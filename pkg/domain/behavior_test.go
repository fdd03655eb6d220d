package domain_test

import (
	"testing"

	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNode_Behavior(t *testing.T) {
	opts := []domain.Option{{ID: "o1", Label: "One"}}

	tests := []struct {
		name      string
		data      domain.NodeData
		want      domain.Behavior
		concludes bool
		wantKind  domain.ViolationKind
	}{
		{
			name: "Menu",
			data: domain.NodeData{Text: "pick", Options: opts},
			want: domain.Menu{ID: "n", Text: "pick", Options: opts},
		},
		{
			name: "Message with options",
			data: domain.NodeData{Text: "hi", Options: opts, ActionType: domain.ActionMessage},
			want: domain.Message{ID: "n", Text: "hi", Options: opts},
		},
		{
			name:      "Message without options concludes",
			data:      domain.NodeData{Text: "thanks", ActionType: domain.ActionMessage},
			want:      domain.Message{ID: "n", Text: "thanks"},
			concludes: true,
		},
		{
			name:      "WhatsApp",
			data:      domain.NodeData{ActionType: domain.ActionWhatsApp, ActionValue: "+1"},
			want:      domain.WhatsApp{ID: "n", Phone: "+1"},
			concludes: true,
		},
		{
			name:      "URL",
			data:      domain.NodeData{ActionType: domain.ActionURL, ActionValue: "https://x"},
			want:      domain.Link{ID: "n", URL: "https://x"},
			concludes: true,
		},
		{
			name:      "End",
			data:      domain.NodeData{Text: "bye", ActionType: domain.ActionEnd},
			want:      domain.End{ID: "n", Text: "bye"},
			concludes: true,
		},
		{
			name:     "Menu without options is a dead end",
			data:     domain.NodeData{Text: "stuck"},
			wantKind: domain.KindDeadEnd,
		},
		{
			name:     "End with options is unrepresentable",
			data:     domain.NodeData{ActionType: domain.ActionEnd, Options: opts},
			wantKind: domain.KindInvalidTerminal,
		},
		{
			name:     "URL without value",
			data:     domain.NodeData{ActionType: domain.ActionURL},
			wantKind: domain.KindMissingActionValue,
		},
		{
			name:     "Unknown action",
			data:     domain.NodeData{ActionType: "sms"},
			wantKind: domain.KindUnknownActionType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node := domain.Node{ID: "n", Data: tt.data}
			got, err := node.Behavior()
			if tt.wantKind != "" {
				require.ErrorIs(t, err, domain.ErrValidationFailed)
				violations := domain.Violations(err)
				require.Len(t, violations, 1)
				assert.Equal(t, tt.wantKind, violations[0].Kind)
				assert.Equal(t, "n", violations[0].NodeID)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.concludes, got.Concludes())
		})
	}
}
