package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/refdelta/pkg/config"
	"github.com/Sumatoshi-tech/refdelta/pkg/dataset"
	"github.com/Sumatoshi-tech/refdelta/pkg/observability"
	"github.com/Sumatoshi-tech/refdelta/pkg/reconcile"
	"github.com/Sumatoshi-tech/refdelta/pkg/refminer"
	"github.com/Sumatoshi-tech/refdelta/pkg/summary"
)

// ErrUnknownMode is returned for a --mode other than agentic or baseline.
var ErrUnknownMode = errors.New("unknown reconcile mode")

// Reconcile modes.
const (
	modeAgentic  = "agentic"
	modeBaseline = "baseline"
)

type reconcileCommand struct {
	opts       *Options
	newRuntime runtimeFactory

	metadata    string
	detector    string
	mode        string
	commitsOut  string
	eventsOut   string
	dedupByRepo bool
	format      string
}

// NewReconcileCommand creates the reconcile subcommand.
func NewReconcileCommand(opts *Options) *cobra.Command {
	return newReconcileCommand(opts, NewRuntime)
}

func newReconcileCommand(opts *Options, newRuntime runtimeFactory) *cobra.Command {
	rc := &reconcileCommand{opts: opts, newRuntime: newRuntime}

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Join commit metadata with detector output",
		Long: `Merge per-commit refactoring aggregates into commit metadata, flatten the
detector output into refactoring events, and deduplicate on (sha, agent).

agentic mode keeps every metadata commit and appends detector-only commits;
baseline mode keeps only commits the detector reported and labels them Human.`,
		Args: cobra.NoArgs,
		RunE: rc.run,
	}

	cmd.Flags().StringVar(&rc.metadata, "metadata", "", "Commit metadata table")
	cmd.Flags().StringVar(&rc.detector, "detector", "", "Combined detector JSON")
	cmd.Flags().StringVar(&rc.mode, "mode", modeAgentic, "Join mode: agentic or baseline")
	cmd.Flags().StringVar(&rc.commitsOut, "commits-out", "", "Reconciled commits output (default: <data_dir>/<mode>_refactoring_commits.parquet)")
	cmd.Flags().StringVar(&rc.eventsOut, "events-out", "", "Refactoring events output (default: <data_dir>/<mode>_refactorings.parquet)")
	cmd.Flags().BoolVar(&rc.dedupByRepo, "dedup-by-repo", false, "Include the repository in the dedup key (default: pipeline.dedup_by_repo)")
	cmd.Flags().StringVar(&rc.format, "format", summary.FormatText, "Summary format: text, json, yaml")

	_ = cmd.MarkFlagRequired("metadata")
	_ = cmd.MarkFlagRequired("detector")

	return cmd
}

func (rc *reconcileCommand) run(cmd *cobra.Command, _ []string) error {
	mode := strings.ToLower(rc.mode)
	if mode != modeAgentic && mode != modeBaseline {
		return fmt.Errorf("%w: %q", ErrUnknownMode, rc.mode)
	}

	return withRuntime(cmd, rc.opts, rc.newRuntime, observability.ModeCLI, func(ctx context.Context, rt *Runtime) error {
		label := config.DatasetAgentic
		if mode == modeBaseline {
			label = config.DatasetHuman
		}

		meta, err := readCommits(rc.metadata, dataset.CommitMetadataSchema, "")
		if err != nil {
			return err
		}

		out, err := refminer.Load(rc.detector)
		if err != nil {
			return err
		}

		opts := reconcile.Options{
			Dataset:     label,
			DedupByRepo: rc.dedupByRepo || rt.Config.Pipeline.DedupByRepo,
			Logger:      rt.Logger,
		}

		var res reconcile.Result
		if mode == modeBaseline {
			res = reconcile.Baseline(meta, out, opts)
		} else {
			res = reconcile.Agentic(meta, out, opts)
		}

		commitsOut := rc.commitsOut
		if commitsOut == "" {
			commitsOut = dataPath(rt, mode+"_refactoring_commits.parquet")
		}

		eventsOut := rc.eventsOut
		if eventsOut == "" {
			eventsOut = dataPath(rt, mode+"_refactorings.parquet")
		}

		err = dataset.Write(commitsOut, res.Commits)
		if err != nil {
			return err
		}

		err = dataset.Write(eventsOut, res.Events)
		if err != nil {
			return err
		}

		rt.Logger.InfoContext(ctx, "reconciled",
			"mode", mode,
			"rows_before_dedup", res.RowsBeforeDedup,
			"commits", len(res.Commits),
			"events", len(res.Events),
			"commits_out", commitsOut,
			"events_out", eventsOut,
		)

		return renderReconcileSummary(cmd.OutOrStdout(), reconcile.Summarize(res.Commits, out.Events()), rc.format)
	})
}

func renderReconcileSummary(w io.Writer, s reconcile.Summary, format string) error {
	if format != "" && !strings.EqualFold(format, summary.FormatText) {
		return summary.RenderValue(w, s, format)
	}

	fmt.Fprintf(w, "Total commits: %s\n", count(s.Commits))
	fmt.Fprintf(w, "Commits with refactoring: %s (%.2f%%)\n", count(s.RefactoringCommits), s.RefactoringPct)
	fmt.Fprintf(w, "Mean refactorings per refactoring commit: %.2f\n", s.MeanPerRefCommit)
	fmt.Fprintf(w, "Refactoring events: %s across %s commits\n", count(s.Events), count(s.EventCommits))

	if len(s.TopTypes) > 0 {
		fmt.Fprintln(w, "Top refactoring types:")

		for _, tc := range s.TopTypes {
			fmt.Fprintf(w, "  %-40s %s\n", tc.Type, count(tc.Count))
		}
	}

	return nil
}
