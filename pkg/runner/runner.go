package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/aretw0/chatflow"
	"github.com/aretw0/chatflow/internal/logging"
	"github.com/aretw0/chatflow/pkg/domain"
)

// Conversation is the session API the runner drives. *chatflow.Engine satisfies it.
type Conversation interface {
	StartSession(ctx context.Context) (*chatflow.Session, error)
	Advance(ctx context.Context, token, optionID string) (*chatflow.Session, error)
}

// Runner handles the conversation loop using an IOHandler strategy.
type Runner struct {
	Handler IOHandler
	Logger  *slog.Logger
}

// Option defines a functional option for configuring the Runner.
type Option func(*Runner)

// WithInputHandler configures a custom IOHandler.
func WithInputHandler(handler IOHandler) Option {
	return func(r *Runner) {
		r.Handler = handler
	}
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.Logger = logger
	}
}

// NewRunner creates a Runner. Without a handler it talks over Stdin/Stdout.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{Logger: logging.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	if r.Handler == nil {
		r.Handler = NewTextHandler(os.Stdin, os.Stdout)
	}
	return r
}

// Run plays one session until it ends, input is exhausted or ctx is done.
// It returns the last session shown. Running out of input is not an error.
func (r *Runner) Run(ctx context.Context, conv Conversation) (*chatflow.Session, error) {
	session, err := conv.StartSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}

	for {
		if err := r.Handler.Output(ctx, session); err != nil {
			return session, fmt.Errorf("output error: %w", err)
		}
		if session.Ended() {
			r.Logger.Debug("session ended", "flow_id", session.Cursor.FlowID, "node_id", session.Cursor.CurrentNodeID)
			return session, nil
		}
		if session.Payload == nil || len(session.Payload.Options) == 0 {
			r.Logger.Warn("node has no options", "flow_id", session.Cursor.FlowID, "node_id", session.Cursor.CurrentNodeID)
			return session, nil
		}

		next, err := r.choose(ctx, conv, session)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return session, nil
			}
			return session, err
		}
		session = next
	}
}

// choose reads input until it names a valid option, then advances.
func (r *Runner) choose(ctx context.Context, conv Conversation, session *chatflow.Session) (*chatflow.Session, error) {
	for {
		input, err := r.Handler.Input(ctx)
		if err != nil {
			return nil, err
		}

		optionID, ok := Resolve(session.Payload, input)
		if !ok {
			if err := r.Handler.SystemOutput(ctx, fmt.Sprintf("Unknown choice %q. Pick one of the options above.", input)); err != nil {
				return nil, err
			}
			continue
		}

		next, err := conv.Advance(ctx, session.Token, optionID)
		if errors.Is(err, domain.ErrInvalidOption) {
			if err := r.Handler.SystemOutput(ctx, err.Error()); err != nil {
				return nil, err
			}
			continue
		}
		return next, err
	}
}

// Resolve maps visitor input to an option id. It accepts the 1-based option
// number, the option id or its label (case-insensitive).
func Resolve(payload *domain.Payload, input string) (string, bool) {
	if payload == nil {
		return "", false
	}
	input = strings.TrimSpace(input)
	if n, err := strconv.Atoi(input); err == nil {
		if n >= 1 && n <= len(payload.Options) {
			return payload.Options[n-1].ID, true
		}
	}
	for _, opt := range payload.Options {
		if opt.ID == input {
			return opt.ID, true
		}
	}
	for _, opt := range payload.Options {
		if strings.EqualFold(opt.Label, input) {
			return opt.ID, true
		}
	}
	return "", false
}
