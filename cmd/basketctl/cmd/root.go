package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/basketwatch/backend/config"
	"github.com/basketwatch/backend/internal/bootstrap"
	"github.com/basketwatch/backend/internal/logging"
)

var (
	configPath string
	verbose    bool
	cfg        *config.Config
	logger     *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "basketctl",
	Short: "CLI for BasketWatch grocery price ingestion",
	Long: `basketctl runs BasketWatch price ingestion from the command line.

It reads the same config.yaml and BASKETWATCH_* environment variables as
the server, and can run a one-shot ingestion, look up a single price, or
list the tracked staples.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip initialization for help commands
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}

		loaded, err := config.LoadFile(configPath)
		if err != nil {
			return err
		}
		cfg = loaded

		level := cfg.Log.Level
		if verbose {
			level = "debug"
		} else if level == "info" {
			level = "warn"
		}
		logger, err = logging.New(cfg.Server.Environment, level)
		return err
	},
}

// Execute runs the root command
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a config file (default: search for config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")
}

// openApp wires the services; the caller must Close the returned app
func openApp(ctx context.Context) (*bootstrap.App, error) {
	return bootstrap.New(ctx, cfg, logger)
}
