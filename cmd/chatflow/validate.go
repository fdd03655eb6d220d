package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/chatflow/internal/cli"
	"github.com/aretw0/chatflow/internal/validator"
	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/spf13/cobra"
)

var errInvalidFlows = errors.New("some flows are invalid")

var validateCmd = &cobra.Command{
	Use:   "validate [flow-file...]",
	Short: "Check flows for consistency",
	Long: `Reports dangling references, duplicate ids, entry point problems, unreachable
nodes and malformed action nodes. Without arguments every stored flow is checked.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var flows []*domain.Flow
		var err error
		if len(args) > 0 {
			flows, err = cli.LoadFlows(ctx, args...)
		} else {
			flows, err = storedFlows(ctx)
		}
		if err != nil {
			return err
		}
		return runValidate(cmd.OutOrStdout(), flows)
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func storedFlows(ctx context.Context) ([]*domain.Flow, error) {
	app, err := openApp()
	if err != nil {
		return nil, err
	}
	defer app.Close()
	return app.Store.GetAllFlows(ctx)
}

// runValidate prints one report per flow. Warnings never fail the run.
func runValidate(w io.Writer, flows []*domain.Flow) error {
	failed := 0
	for _, flow := range flows {
		report := validator.Validate(flow)
		if report.Valid() {
			fmt.Fprintf(w, "✅ %s is valid\n", flow.ID)
		} else {
			failed++
			fmt.Fprintf(w, "❌ %s has %d blocking violations\n", flow.ID, len(report.Blocking()))
		}
		for _, v := range report.Violations {
			fmt.Fprintf(w, "   %-7s %s\n", v.Severity, v)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d", errInvalidFlows, failed, len(flows))
	}
	return nil
}
