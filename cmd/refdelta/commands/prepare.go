package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/refdelta/pkg/dataset"
	"github.com/Sumatoshi-tech/refdelta/pkg/observability"
	"github.com/Sumatoshi-tech/refdelta/pkg/reconcile"
)

const defaultPrepareOutput = "agentic_pr_commits.parquet"

type prepareCommand struct {
	opts       *Options
	newRuntime runtimeFactory

	repositories string
	pullRequests string
	commits      string
	language     string
	output       string
}

// NewPrepareCommand creates the prepare subcommand.
func NewPrepareCommand(opts *Options) *cobra.Command {
	return newPrepareCommand(opts, NewRuntime)
}

func newPrepareCommand(opts *Options, newRuntime runtimeFactory) *cobra.Command {
	pc := &prepareCommand{opts: opts, newRuntime: newRuntime}

	cmd := &cobra.Command{
		Use:   "prepare",
		Short: "Join repositories, pull requests and PR commits into commit metadata",
		Long: `Keep repositories written in the configured language, join their pull
requests and PR commits, drop rows without an agent and write one metadata row
per (sha, PR).`,
		Args: cobra.NoArgs,
		RunE: pc.run,
	}

	cmd.Flags().StringVar(&pc.repositories, "repositories", "", "Repositories table (parquet, csv, json)")
	cmd.Flags().StringVar(&pc.pullRequests, "pull-requests", "", "Pull requests table")
	cmd.Flags().StringVar(&pc.commits, "commits", "", "PR commits table")
	cmd.Flags().StringVar(&pc.language, "language", "", "Repository language (default: pipeline.language)")
	cmd.Flags().StringVarP(&pc.output, "output", "o", "", "Output table (default: <data_dir>/"+defaultPrepareOutput+")")

	for _, name := range []string{"repositories", "pull-requests", "commits"} {
		_ = cmd.MarkFlagRequired(name)
	}

	return cmd
}

func (pc *prepareCommand) run(cmd *cobra.Command, _ []string) error {
	return withRuntime(cmd, pc.opts, pc.newRuntime, observability.ModeCLI, func(ctx context.Context, rt *Runtime) error {
		language := pc.language
		if language == "" {
			language = rt.Config.Pipeline.Language
		}

		output := pc.output
		if output == "" {
			output = dataPath(rt, defaultPrepareOutput)
		}

		var src reconcile.Sources

		for _, in := range []struct {
			path string
			dst  **dataset.Table
		}{
			{pc.repositories, &src.Repositories},
			{pc.pullRequests, &src.PullRequests},
			{pc.commits, &src.Commits},
		} {
			t, err := dataset.ReadTable(in.path)
			if err != nil {
				return err
			}

			*in.dst = t
		}

		rows, err := reconcile.Prepare(src, language)
		if err != nil {
			return fmt.Errorf("prepare: %w", err)
		}

		err = dataset.Write(output, rows)
		if err != nil {
			return err
		}

		rt.Logger.InfoContext(ctx, "commit metadata written", "rows", len(rows), "language", language, "path", output)
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s commits (%s) to %s\n", count(len(rows)), language, output)

		return nil
	})
}
