package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/chatflow/internal/cli"
	"github.com/aretw0/chatflow/internal/config"
	"github.com/aretw0/chatflow/internal/logging"
	"github.com/spf13/cobra"
)

var (
	cfg    *config.Config
	logger = logging.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "chatflow",
	Short: "chatflow is a conversational flow engine for storefront chatbots",
	Long: `chatflow stores chatbot flows as node graphs, validates them and plays them
one step at a time for the storefront widget, the terminal or MCP agents.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		loaded, err := config.Load(config.Options{File: path})
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") {
			loaded.Log.Level, _ = cmd.Flags().GetString("log-level")
		}
		if cmd.Flags().Changed("store") {
			loaded.Store.Driver, _ = cmd.Flags().GetString("store")
			if err := loaded.Validate(); err != nil {
				return err
			}
		}

		level, err := logging.ParseLevel(loaded.Log.Level)
		if err != nil {
			return err
		}
		cfg = loaded
		logger = logging.New(level)
		slog.SetDefault(logger)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "YAML config file (env: "+config.EnvPrefix+"*)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("store", "", "Override store.driver: memory, file, redis, sqlite, postgres")
}

// openApp opens the configured Flow Store. Callers must Close it.
func openApp() (*cli.App, error) {
	return cli.Open(cfg, logger)
}

// signalContext is canceled on interrupt or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
