package dispatch_test

import (
	"testing"

	"github.com/aretw0/chatflow/pkg/dispatch"
	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcher_Dispatch(t *testing.T) {
	d := dispatch.New()

	tests := []struct {
		name     string
		behavior domain.Behavior
		want     *domain.Directive
	}{
		{
			name:     "Menu has no directive",
			behavior: domain.Menu{ID: "m", Text: "pick"},
			want:     nil,
		},
		{
			name:     "Message",
			behavior: domain.Message{ID: "m", Text: "Water weekly"},
			want:     &domain.Directive{Type: domain.DirectiveMessage, Text: "Water weekly"},
		},
		{
			name:     "WhatsApp",
			behavior: domain.WhatsApp{ID: "w", Text: "Buy a fern", Phone: "+91 12345-67890"},
			want: &domain.Directive{
				Type:    domain.DirectiveWhatsApp,
				Text:    "Buy a fern",
				Phone:   "+91 12345-67890",
				Message: "Buy a fern",
				Link:    "https://wa.me/911234567890?text=Buy+a+fern",
			},
		},
		{
			name:     "URL",
			behavior: domain.Link{ID: "u", URL: "https://example.com"},
			want:     &domain.Directive{Type: domain.DirectiveURL, URL: "https://example.com"},
		},
		{
			name:     "End",
			behavior: domain.End{ID: "e", Text: "Bye"},
			want:     &domain.Directive{Type: domain.DirectiveEnd, Text: "Bye"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := d.Dispatch(tt.behavior)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDispatcher_WhatsAppTemplate(t *testing.T) {
	d := dispatch.New(
		dispatch.WithWhatsAppTemplate("Hello! {{text}}"),
		dispatch.WithWhatsAppBaseURL("https://api.whatsapp.com/send"),
	)

	got, err := d.Dispatch(domain.WhatsApp{ID: "w", Text: "I want a cactus", Phone: "+1 555"})
	require.NoError(t, err)
	assert.Equal(t, "Hello! I want a cactus", got.Message)
	assert.Equal(t, "https://api.whatsapp.com/send/1555?text=Hello%21+I+want+a+cactus", got.Link)
	assert.True(t, got.Terminal())
}

func TestDispatcher_WhatsAppWithoutDigits(t *testing.T) {
	_, err := dispatch.New().Dispatch(domain.WhatsApp{ID: "w", Phone: "call us"})
	assert.Error(t, err)
}

func TestDispatcher_EmptyMessageOmitsText(t *testing.T) {
	got, err := dispatch.New().Dispatch(domain.WhatsApp{ID: "w", Phone: "+1 555"})
	require.NoError(t, err)
	assert.Equal(t, "https://wa.me/1555", got.Link)
}
