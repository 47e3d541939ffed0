package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/refdelta/pkg/checkpoint"
	"github.com/Sumatoshi-tech/refdelta/pkg/config"
	"github.com/Sumatoshi-tech/refdelta/pkg/dataset"
	"github.com/Sumatoshi-tech/refdelta/pkg/delta"
	"github.com/Sumatoshi-tech/refdelta/pkg/gitlib"
	"github.com/Sumatoshi-tech/refdelta/pkg/observability"
	"github.com/Sumatoshi-tech/refdelta/pkg/smells"
	"github.com/Sumatoshi-tech/refdelta/pkg/snapshot"
)

const (
	defaultDeltasOutput = "smell_deltas_per_commit.csv"
	snapshotsDir        = "snapshots"
	reportsDir          = "reports"
)

// ErrNoDeltaInput is returned when neither --agentic nor --human is given.
var ErrNoDeltaInput = errors.New("at least one of --agentic or --human is required")

type deltasCommand struct {
	opts       *Options
	newRuntime runtimeFactory

	agentic       string
	human         string
	output        string
	checkpoint    bool
	checkpointDir string
	noProgress    bool
}

// NewDeltasCommand creates the deltas subcommand.
func NewDeltasCommand(opts *Options) *cobra.Command {
	return newDeltasCommand(opts, NewRuntime)
}

func newDeltasCommand(opts *Options, newRuntime runtimeFactory) *cobra.Command {
	dc := &deltasCommand{opts: opts, newRuntime: newRuntime}

	cmd := &cobra.Command{
		Use:   "deltas",
		Short: "Measure smell counts before and after every refactoring commit",
		Long: `For each reconciled commit with at least one refactoring, copy the commit's
changed source files at the parent and at the commit, run the smell analyzer on
both snapshots and record the difference.`,
		Args: cobra.NoArgs,
		RunE: dc.run,
	}

	cmd.Flags().StringVar(&dc.agentic, "agentic", "", "Reconciled agentic commit table")
	cmd.Flags().StringVar(&dc.human, "human", "", "Reconciled human commit table")
	cmd.Flags().StringVarP(&dc.output, "output", "o", "", "Per-commit deltas (default: <data_dir>/"+defaultDeltasOutput+")")
	cmd.Flags().BoolVar(&dc.checkpoint, "checkpoint", false, "Resume from and save checkpoints (default: pipeline.checkpoint)")
	cmd.Flags().StringVar(&dc.checkpointDir, "checkpoint-dir", "", "Checkpoint root (default: pipeline.checkpoint_dir)")
	cmd.Flags().BoolVar(&dc.noProgress, "no-progress", false, "Disable the progress bar")

	return cmd
}

func (dc *deltasCommand) run(cmd *cobra.Command, _ []string) error {
	if dc.agentic == "" && dc.human == "" {
		return ErrNoDeltaInput
	}

	return withRuntime(cmd, dc.opts, dc.newRuntime, observability.ModeBatch, func(ctx context.Context, rt *Runtime) error {
		var commits []dataset.CommitRecord

		for _, in := range []struct{ path, label string }{
			{dc.agentic, config.DatasetAgentic},
			{dc.human, config.DatasetHuman},
		} {
			if in.path == "" {
				continue
			}

			rows, err := readCommits(in.path, dataset.ReconciledCommitSchema, in.label)
			if err != nil {
				return err
			}

			commits = append(commits, rows...)
		}

		selected := delta.SelectRefactoringCommits(commits)

		rt.Logger.InfoContext(ctx, "commits selected for measurement",
			"commits", len(commits), "with_refactoring", len(selected))

		output := dc.output
		if output == "" {
			output = dataPath(rt, defaultDeltasOutput)
		}

		onProgress, finish := progressCallback(cmd.ErrOrStderr(), dc.noProgress || dc.opts.Quiet)

		pipeline := dc.pipeline(rt, output)
		pipeline.OnProgress = onProgress

		res, runErr := pipeline.Run(ctx, selected)

		finish()

		writeErr := dataset.Write(output, res.Records)
		if writeErr != nil {
			return errors.Join(runErr, writeErr)
		}

		printDeltaResult(cmd.OutOrStdout(), res, len(selected), output)

		return runErr
	})
}

func (dc *deltasCommand) pipeline(rt *Runtime, output string) *delta.Pipeline {
	cfg := rt.Config

	snapshots := snapshot.New(filepath.Join(cfg.Paths.TempDir, snapshotsDir), rt.Logger)
	if cfg.Pipeline.MaxPathLength > 0 {
		snapshots.MaxPathLength = cfg.Pipeline.MaxPathLength
	}

	if cfg.Pipeline.FlattenSegments > 0 {
		snapshots.FlattenSegments = cfg.Pipeline.FlattenSegments
	}

	p := &delta.Pipeline{
		Repos: &gitlib.Materializer{
			Runner:       rt.Runner,
			Policy:       rt.Policy,
			Logger:       rt.Logger,
			GitBinary:    cfg.Tools.Git,
			GitTimeout:   cfg.Timeouts.Git,
			CloneTimeout: cfg.Timeouts.Clone,
			CloneURL:     cfg.CloneURL,
		},
		Files: &gitlib.Extractor{
			Filter: gitlib.NewSourceFilter(cfg.Pipeline.Language, cfg.Pipeline.Extensions),
			Logger: rt.Logger,
		},
		Snapshots: snapshots,
		Smells: &smells.Analyzer{
			Runner:  rt.Runner,
			Policy:  rt.Policy,
			Logger:  rt.Logger,
			Java:    cfg.Tools.Java,
			Jar:     cfg.Tools.AnalyzerJar,
			Heap:    cfg.Tools.AnalyzerHeap,
			Timeout: cfg.Timeouts.Analyzer,
		},
		Policy:   rt.Policy,
		RepoRoot: cfg.RepoRoot,
		WorkDir:  filepath.Join(cfg.Paths.TempDir, reportsDir),
		Logger:   rt.Logger,
		Tracer:   rt.Tracer,
		Metrics:  rt.Metrics,
	}

	if dc.checkpoint || cfg.Pipeline.Checkpoint {
		dir := dc.checkpointDir
		if dir == "" {
			dir = cfg.Pipeline.CheckpointDir
		}

		if dir == "" {
			dir = checkpoint.DefaultDir(cfg.Paths.DataDir)
		}

		fp := checkpoint.Fingerprint(dc.agentic, dc.human, output, cfg.Pipeline.Language)
		p.Checkpoint = checkpoint.NewManager(dir, fp, rt.RunID)
		p.CheckpointInterval = cfg.Pipeline.CheckpointInterval
	}

	return p
}

func printDeltaResult(w io.Writer, res *delta.Result, selected int, output string) {
	fmt.Fprintf(w, "Measured %s of %s refactoring commits", count(res.Completed), count(selected))

	if res.Resumed > 0 {
		fmt.Fprintf(w, " (%s resumed from checkpoint)", count(res.Resumed))
	}

	fmt.Fprintln(w)

	if len(res.Skipped) > 0 {
		reasons := make([]string, 0, len(res.Skipped))
		for reason := range res.Skipped {
			reasons = append(reasons, reason)
		}

		sort.Strings(reasons)

		parts := make([]string, 0, len(reasons))
		for _, reason := range reasons {
			parts = append(parts, fmt.Sprintf("%s=%s", reason, count(res.Skipped[reason])))
		}

		fmt.Fprintf(w, "Skipped: %s\n", strings.Join(parts, ", "))
	}

	fmt.Fprintf(w, "Deltas saved to %s\n", output)
}
