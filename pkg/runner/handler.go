package runner

import (
	"context"

	"github.com/aretw0/chatflow"
)

// IOHandler defines the strategy for interacting with the visitor.
// This allows switching between Text (CLI/TUI) and JSON (Structured) modes.
type IOHandler interface {
	// Output presents a turn: node text, options and any directive.
	Output(ctx context.Context, session *chatflow.Session) error

	// Input reads the visitor's next choice.
	Input(ctx context.Context) (string, error)

	// SystemOutput presents a meta-message (e.g. an unknown choice).
	SystemOutput(ctx context.Context, msg string) error
}

// ContentRenderer transforms node text before it is printed.
// This allows for TUI rendering (markdown to ANSI) without coupling the core package.
type ContentRenderer func(string) (string, error)
