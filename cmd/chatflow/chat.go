package main

import (
	"os"

	"github.com/aretw0/chatflow/internal/cli"
	"github.com/aretw0/chatflow/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat [flow-file]",
	Short: "Play a conversation in the terminal",
	Long: `Plays the active flow, or the flow read from a JSON/YAML file or markdown
directory, one step at a time. Pick options by number, id or label.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonMode, _ := cmd.Flags().GetBool("json")

		app, err := openApp()
		if err != nil {
			return err
		}
		defer app.Close()

		opts := cli.ChatOptions{
			JSON:        jsonMode,
			Interactive: !jsonMode && tui.IsTerminal(os.Stdout),
			In:          os.Stdin,
			Out:         os.Stdout,
		}
		if len(args) > 0 {
			opts.FlowPath = args[0]
		}
		if opts.Interactive {
			tui.PrintBanner(os.Stdout)
		}

		ctx, stop := signalContext()
		defer stop()

		session, err := cli.RunChat(ctx, app, opts)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if !session.Ended() {
			logger.Debug("conversation left open", "flow", session.Cursor.FlowID, "node", session.Cursor.CurrentNodeID)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().Bool("json", false, "Exchange JSON Lines on stdin/stdout")
}
