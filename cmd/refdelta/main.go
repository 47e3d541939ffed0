// Package main provides the entry point for the refdelta CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/refdelta/cmd/refdelta/commands"
	"github.com/Sumatoshi-tech/refdelta/pkg/version"
)

func main() {
	version.InitBinaryVersion()

	opts := &commands.Options{}

	rootCmd := &cobra.Command{
		Use:   "refdelta",
		Short: "Refactoring and code smell analysis for agentic and human commits",
		Long: `refdelta mines refactorings from agentic pull request commits and a human
baseline, measures how each refactoring commit moves the code smell count of
the files it touched, and aggregates both into comparison tables.

Commands:
  prepare    Build commit metadata from repository, PR and commit tables
  detect     Run the refactoring detector over commit metadata
  reconcile  Join detector output with commit metadata
  normalize  Add zero-refactoring placeholders to a commit table
  deltas     Measure smell deltas of refactoring commits
  summary    Aggregate deltas, rates and refactoring types`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.ConfigPath, "config", "", "config file (default: refdelta.yaml in ., ./config or /etc/refdelta)")
	flags.StringVar(&opts.EnvFile, "env-file", "", "dotenv file loaded before configuration (default: ./.env when present)")
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	flags.BoolVarP(&opts.Quiet, "quiet", "q", false, "suppress output")
	flags.BoolVar(&opts.LogJSON, "log-json", false, "log as JSON")

	rootCmd.AddCommand(
		commands.NewPrepareCommand(opts),
		commands.NewDetectCommand(opts),
		commands.NewReconcileCommand(opts),
		commands.NewNormalizeCommand(opts),
		commands.NewDeltasCommand(opts),
		commands.NewSummaryCommand(opts),
		commands.NewVersionCommand(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := rootCmd.ExecuteContext(ctx)

	stop()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
