package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "harvester",
		Short: "Harvests courthouse facility directories into a normalized dataset.",
		Long: `harvester discovers courthouse records from sitemaps, paginated listings
and JSON APIs, extracts name, address and contact details, and writes a
deduplicated, deterministically ordered JSON dataset.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().String("config", "", "config file (YAML, JSON or TOML)")
	cmd.AddCommand(newHarvestCmd())
	return cmd
}

// Execute runs the CLI and returns the process exit status. SIGINT and
// SIGTERM cancel the run; the partial dataset is still written.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "harvester: %v\n", err)
		return 1
	}
	return 0
}
