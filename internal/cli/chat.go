package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/aretw0/chatflow"
	"github.com/aretw0/chatflow/internal/presentation/tui"
	"github.com/aretw0/chatflow/pkg/adapters/memory"
	"github.com/aretw0/chatflow/pkg/flowstore"
	"github.com/aretw0/chatflow/pkg/runner"
	"github.com/muesli/termenv"
)

// ChatOptions configures a terminal conversation.
type ChatOptions struct {
	// FlowPath plays a flow file or directory instead of the store's active flow.
	FlowPath string
	// JSON switches to JSON-Lines I/O.
	JSON bool
	// Interactive enables markdown rendering and colors.
	Interactive bool
	In          io.Reader
	Out         io.Writer
}

// RunChat plays one conversation in the terminal.
func RunChat(ctx context.Context, app *App, opts ChatOptions) (*chatflow.Session, error) {
	eng, err := chatEngine(ctx, app, opts.FlowPath)
	if err != nil {
		return nil, err
	}

	var handler runner.IOHandler
	switch {
	case opts.JSON:
		handler = runner.NewJSONHandler(opts.In, opts.Out)
	case opts.Interactive:
		handler = runner.NewTextHandler(opts.In, opts.Out,
			runner.WithTextHandlerRenderer(tui.NewRenderer()),
			runner.WithTextHandlerProfile(termenv.ColorProfile()),
		)
	default:
		handler = runner.NewTextHandler(opts.In, opts.Out)
	}

	r := runner.NewRunner(runner.WithInputHandler(handler), runner.WithLogger(app.Logger))
	return r.Run(ctx, eng)
}

// chatEngine returns an engine on the store, or on a scratch store holding the
// flow read from path. The scratch flow must pass validation like any activation.
func chatEngine(ctx context.Context, app *App, path string) (*chatflow.Engine, error) {
	if path == "" {
		return app.Engine(app.Hooks()), nil
	}

	flows, err := LoadFlows(ctx, path)
	if err != nil {
		return nil, err
	}
	if len(flows) != 1 {
		return nil, fmt.Errorf("%s holds %d flows, chat needs exactly one", path, len(flows))
	}

	scratch := &App{Config: app.Config, Logger: app.Logger, Store: flowstore.New(memory.NewStore(), flowstore.WithLogger(app.Logger))}
	flow, err := scratch.Store.ImportFlow(ctx, flows[0])
	if err != nil {
		return nil, err
	}
	if err := scratch.Store.SetActiveFlow(ctx, flow.ID); err != nil {
		return nil, err
	}
	return scratch.Engine(app.Hooks()), nil
}
