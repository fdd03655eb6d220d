package runner

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/aretw0/chatflow"
	"github.com/aretw0/chatflow/pkg/domain"
)

func TestTextHandler_Output(t *testing.T) {
	outBuf := &bytes.Buffer{}
	handler := NewTextHandler(strings.NewReader(""), outBuf, WithTextHandlerRenderer(func(s string) (string, error) {
		return "Rendered: " + s, nil
	}))

	err := handler.Output(context.Background(), &chatflow.Session{
		Payload: &domain.Payload{
			Text:    "Hello World",
			Options: []domain.Choice{{ID: "o1", Label: "First"}},
		},
	})
	if err != nil {
		t.Fatalf("Output failed: %v", err)
	}

	output := outBuf.String()
	for _, want := range []string{"Rendered: Hello World", "1) First"} {
		if !strings.Contains(output, want) {
			t.Errorf("Expected output to contain '%s', got '%s'", want, output)
		}
	}
}

func TestTextHandler_OutputURLDirective(t *testing.T) {
	outBuf := &bytes.Buffer{}
	handler := NewTextHandler(strings.NewReader(""), outBuf)

	err := handler.Output(context.Background(), &chatflow.Session{
		Directive: &domain.Directive{Type: domain.DirectiveURL, Text: "Opening the shop", URL: "https://example.com"},
	})
	if err != nil {
		t.Fatalf("Output failed: %v", err)
	}

	output := outBuf.String()
	for _, want := range []string{"Opening the shop", "Open: https://example.com"} {
		if !strings.Contains(output, want) {
			t.Errorf("Expected output to contain '%s', got '%s'", want, output)
		}
	}
}

func TestTextHandler_Input(t *testing.T) {
	handler := NewTextHandler(strings.NewReader("  my choice\x07 \n"), &bytes.Buffer{})

	val, err := handler.Input(context.Background())
	if err != nil {
		t.Fatalf("Input failed: %v", err)
	}
	if val != "my choice" {
		t.Errorf("Expected 'my choice', got '%s'", val)
	}

	if _, err := handler.Input(context.Background()); err != io.EOF {
		t.Errorf("Expected io.EOF, got %v", err)
	}
}

func TestTextHandler_InputCancelled(t *testing.T) {
	r, _ := io.Pipe()
	handler := NewTextHandler(r, &bytes.Buffer{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := handler.Input(ctx); err != context.Canceled {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}
