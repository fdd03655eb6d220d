package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/aretw0/chatflow/internal/cli"
	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/aretw0/chatflow/pkg/flowfile"
	"github.com/aretw0/chatflow/pkg/flowstore"
	"github.com/spf13/cobra"
)

var flowsCmd = &cobra.Command{
	Use:   "flows",
	Short: "Manage stored flows",
}

var flowsListCmd = &cobra.Command{
	Use:     "ls",
	Aliases: []string{"list"},
	Short:   "List stored flows",
	Args:    cobra.NoArgs,
	RunE: withStore(func(cmd *cobra.Command, store *flowstore.Service, args []string) error {
		flows, err := store.GetAllFlows(cmd.Context())
		if err != nil {
			return err
		}
		return printFlows(cmd.OutOrStdout(), flows)
	}),
}

var flowsShowCmd = &cobra.Command{
	Use:   "show [flow-id]",
	Short: "Print a stored flow (the active flow by default)",
	Args:  cobra.MaximumNArgs(1),
	RunE: withStore(func(cmd *cobra.Command, store *flowstore.Service, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		id := ""
		if len(args) > 0 {
			id = args[0]
		}
		flow, err := lookupFlow(cmd.Context(), store, id)
		if err != nil {
			return err
		}
		data, err := flowfile.Marshal(flow, flowfile.Format(format))
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}),
}

var flowsImportCmd = &cobra.Command{
	Use:   "import <path...>",
	Short: "Import flows from JSON/YAML files or markdown directories",
	Long: `Creates each flow, or replaces the graph of a stored flow with the same id.
With --activate the single imported flow is validated and made active.`,
	Args: cobra.MinimumNArgs(1),
	RunE: withStore(func(cmd *cobra.Command, store *flowstore.Service, args []string) error {
		activate, _ := cmd.Flags().GetBool("activate")
		return importFlows(cmd.Context(), cmd.OutOrStdout(), store, args, activate)
	}),
}

var flowsExportCmd = &cobra.Command{
	Use:   "export <flow-id> <file>",
	Short: "Write a stored flow to a JSON or YAML file",
	Args:  cobra.ExactArgs(2),
	RunE: withStore(func(cmd *cobra.Command, store *flowstore.Service, args []string) error {
		flow, err := store.GetFlowByID(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if err := flowfile.WriteFile(args[1], flow); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "exported %s to %s\n", flow.ID, args[1])
		return nil
	}),
}

var flowsActivateCmd = &cobra.Command{
	Use:   "activate <flow-id>",
	Short: "Validate a flow and make it the active one",
	Args:  cobra.ExactArgs(1),
	RunE: withStore(func(cmd *cobra.Command, store *flowstore.Service, args []string) error {
		if err := store.SetActiveFlow(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s is now active\n", args[0])
		return nil
	}),
}

var flowsRemoveCmd = &cobra.Command{
	Use:     "rm <flow-id...>",
	Aliases: []string{"delete"},
	Short:   "Delete stored flows",
	Args:    cobra.MinimumNArgs(1),
	RunE: withStore(func(cmd *cobra.Command, store *flowstore.Service, args []string) error {
		for _, id := range args {
			if err := store.DeleteFlow(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", id)
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(flowsCmd)
	flowsCmd.AddCommand(flowsListCmd, flowsShowCmd, flowsImportCmd, flowsExportCmd, flowsActivateCmd, flowsRemoveCmd)

	flowsShowCmd.Flags().String("format", string(flowfile.FormatYAML), "Output format: yaml or json")
	flowsImportCmd.Flags().Bool("activate", false, "Activate the imported flow (requires exactly one)")
}

func withStore(fn func(*cobra.Command, *flowstore.Service, []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		app, err := openApp()
		if err != nil {
			return err
		}
		defer app.Close()
		return fn(cmd, app.Store, args)
	}
}

func printFlows(w io.Writer, flows []*domain.Flow) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tVERSION\tNODES\tACTIVE\tUPDATED")
	for _, f := range flows {
		active := ""
		if f.IsActive {
			active = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%s\n",
			f.ID, f.Name, f.Version, len(f.Nodes), active, f.UpdatedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}

func importFlows(ctx context.Context, w io.Writer, store *flowstore.Service, paths []string, activate bool) error {
	flows, err := cli.LoadFlows(ctx, paths...)
	if err != nil {
		return err
	}
	if activate && len(flows) != 1 {
		return fmt.Errorf("--activate needs exactly one flow, got %d", len(flows))
	}

	var imported *domain.Flow
	for _, f := range flows {
		if imported, err = store.ImportFlow(ctx, f); err != nil {
			return fmt.Errorf("failed to import %s: %w", f.ID, err)
		}
		fmt.Fprintf(w, "imported %s (version %d)\n", imported.ID, imported.Version)
	}

	if !activate {
		return nil
	}
	if err := store.SetActiveFlow(ctx, imported.ID); err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			for _, v := range verr.Violations {
				fmt.Fprintf(w, "   %s\n", v)
			}
		}
		return err
	}
	fmt.Fprintf(w, "%s is now active\n", imported.ID)
	return nil
}
