package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/refdelta/pkg/config"
	"github.com/Sumatoshi-tech/refdelta/pkg/dataset"
	"github.com/Sumatoshi-tech/refdelta/pkg/observability"
	"github.com/Sumatoshi-tech/refdelta/pkg/summary"
)

type summaryCommand struct {
	opts       *Options
	newRuntime runtimeFactory

	deltas         string
	agenticCommits string
	humanCommits   string
	agenticEvents  string
	humanEvents    string
	format         string
	tablesDir      string
	noWrite        bool
}

// NewSummaryCommand creates the summary subcommand.
func NewSummaryCommand(opts *Options) *cobra.Command {
	return newSummaryCommand(opts, NewRuntime)
}

func newSummaryCommand(opts *Options, newRuntime runtimeFactory) *cobra.Command {
	sc := &summaryCommand{opts: opts, newRuntime: newRuntime}

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Aggregate smell deltas and refactoring rates into summary tables",
		Long: `Compute per-agent smell statistics, agent-versus-human tests, per-project
and per-agent refactoring rates and refactoring type shares. Every input is
optional; sections without input are omitted.`,
		Args: cobra.NoArgs,
		RunE: sc.run,
	}

	cmd.Flags().StringVar(&sc.deltas, "deltas", "", "Per-commit smell deltas")
	cmd.Flags().StringVar(&sc.agenticCommits, "agentic-commits", "", "Normalized agentic commit table")
	cmd.Flags().StringVar(&sc.humanCommits, "human-commits", "", "Normalized human commit table")
	cmd.Flags().StringVar(&sc.agenticEvents, "agentic-events", "", "Agentic refactoring events")
	cmd.Flags().StringVar(&sc.humanEvents, "human-events", "", "Human refactoring events")
	cmd.Flags().StringVar(&sc.format, "format", summary.FormatText, "Output format: text, json, yaml")
	cmd.Flags().StringVar(&sc.tablesDir, "tables-dir", "", "CSV output directory (default: paths.tables_dir)")
	cmd.Flags().BoolVar(&sc.noWrite, "no-write", false, "Print only, do not write CSV tables")

	return cmd
}

func (sc *summaryCommand) run(cmd *cobra.Command, _ []string) error {
	return withRuntime(cmd, sc.opts, sc.newRuntime, observability.ModeCLI, func(ctx context.Context, rt *Runtime) error {
		in, err := sc.input()
		if err != nil {
			return err
		}

		report, err := summary.Build(in)
		if err != nil {
			return err
		}

		for _, w := range report.Warnings {
			rt.Logger.WarnContext(ctx, "summary incomplete", "reason", w)
		}

		err = summary.Render(cmd.OutOrStdout(), report, sc.format)
		if err != nil {
			return err
		}

		if sc.noWrite {
			return nil
		}

		dir := sc.tablesDir
		if dir == "" {
			dir = rt.Config.Paths.TablesDir
		}

		written, err := report.WriteTables(dir)
		if err != nil {
			return err
		}

		rt.Logger.InfoContext(ctx, "summary tables written", "dir", dir, "tables", len(written))

		for _, path := range written {
			fmt.Fprintf(cmd.ErrOrStderr(), "Saved %s\n", path)
		}

		return nil
	})
}

func (sc *summaryCommand) input() (summary.Input, error) {
	var in summary.Input

	if sc.deltas != "" {
		rows, err := readDeltas(sc.deltas)
		if err != nil {
			return in, err
		}

		in.Deltas = rows
	}

	for _, c := range []struct{ path, label string }{
		{sc.agenticCommits, config.DatasetAgentic},
		{sc.humanCommits, config.DatasetHuman},
	} {
		if c.path == "" {
			continue
		}

		rows, err := readCommits(c.path, dataset.ReconciledCommitSchema, c.label)
		if err != nil {
			return in, err
		}

		in.Commits = append(in.Commits, rows...)
	}

	for _, e := range []struct{ path, label string }{
		{sc.agenticEvents, config.DatasetAgentic},
		{sc.humanEvents, config.DatasetHuman},
	} {
		if e.path == "" {
			continue
		}

		events, err := readEvents(e.path, e.label)
		if err != nil {
			return in, err
		}

		in.Events = append(in.Events, events...)
	}

	return in, nil
}
