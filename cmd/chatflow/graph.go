package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aretw0/chatflow/internal/cli"
	"github.com/aretw0/chatflow/internal/presentation/graph"
	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/aretw0/chatflow/pkg/flowstore"
	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph [flow-id|flow-file]",
	Short: "Export the flow graph visualization",
	Long: `Outputs a Mermaid diagram (graph TD) of a flow file, a stored flow, or the
active flow when no argument is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ref := ""
		if len(args) > 0 {
			ref = args[0]
		}

		var flow *domain.Flow
		if _, err := os.Stat(ref); ref != "" && err == nil {
			flows, err := cli.LoadFlows(cmd.Context(), ref)
			if err != nil {
				return err
			}
			if len(flows) != 1 {
				return fmt.Errorf("%s holds %d flows, graph needs exactly one", ref, len(flows))
			}
			flow = flows[0]
		} else {
			app, err := openApp()
			if err != nil {
				return err
			}
			defer app.Close()
			if flow, err = lookupFlow(cmd.Context(), app.Store, ref); err != nil {
				return err
			}
		}

		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(flow, nil))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
}

// lookupFlow resolves a stored flow by id; an empty id means the active flow.
func lookupFlow(ctx context.Context, store *flowstore.Service, id string) (*domain.Flow, error) {
	if id != "" {
		return store.GetFlowByID(ctx, id)
	}
	flow, err := store.GetActiveFlow(ctx)
	if err != nil {
		return nil, err
	}
	if flow == nil {
		return nil, fmt.Errorf("no active flow: %w", domain.ErrNotFound)
	}
	return flow, nil
}
