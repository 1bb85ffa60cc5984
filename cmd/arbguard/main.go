// Package main is the entry point for arbguard.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

// options are the persistent flags shared by every command.
type options struct {
	configPath string
	userID     string
}

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "arbguard",
		Short:         "Arbitrage discovery with execution safety rails",
		Long:          "arbguard discovers cyclic and cross-chain arbitrage routes, vets every opportunity through a safety gateway and executes under a persistent per-user risk ledger.",
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default is ./config.yaml)")
	root.PersistentFlags().StringVar(&opts.userID, "user", "default", "user the session and risk ledger belong to")

	root.AddCommand(
		newRunCmd(opts),
		newScanCmd(opts),
		newRiskCmd(opts),
	)
	return root
}
