package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/refdelta/pkg/dataset"
	"github.com/Sumatoshi-tech/refdelta/pkg/observability"
	"github.com/Sumatoshi-tech/refdelta/pkg/refminer"
)

const (
	defaultDetectOutput = "refminer_all.json"
	failureExamples     = 10
	tempDirPerm         = 0o750
)

type detectCommand struct {
	opts       *Options
	newRuntime runtimeFactory

	commits    string
	dataset    string
	output     string
	noProgress bool
}

// NewDetectCommand creates the detect subcommand.
func NewDetectCommand(opts *Options) *cobra.Command {
	return newDetectCommand(opts, NewRuntime)
}

func newDetectCommand(opts *Options, newRuntime runtimeFactory) *cobra.Command {
	dc := &detectCommand{opts: opts, newRuntime: newRuntime}

	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Run the refactoring detector over every metadata commit",
		Long: `Run the refactoring detector for each commit whose repository is cloned
under the dataset's repository root and write the combined detector JSON.`,
		Args: cobra.NoArgs,
		RunE: dc.run,
	}

	cmd.Flags().StringVar(&dc.commits, "commits", "", "Commit metadata table")
	cmd.Flags().StringVar(&dc.dataset, "dataset", "agentic", "Dataset: agentic or human")
	cmd.Flags().StringVarP(&dc.output, "output", "o", "", "Combined JSON (default: <data_dir>/"+defaultDetectOutput+")")
	cmd.Flags().BoolVar(&dc.noProgress, "no-progress", false, "Disable the progress bar")

	_ = cmd.MarkFlagRequired("commits")

	return cmd
}

func (dc *detectCommand) run(cmd *cobra.Command, _ []string) error {
	label, err := datasetLabel(dc.dataset)
	if err != nil {
		return err
	}

	return withRuntime(cmd, dc.opts, dc.newRuntime, observability.ModeBatch, func(ctx context.Context, rt *Runtime) error {
		commits, err := readCommits(dc.commits, dataset.CommitMetadataSchema, label)
		if err != nil {
			return err
		}

		output := dc.output
		if output == "" {
			output = dataPath(rt, defaultDetectOutput)
		}

		cfg := rt.Config

		err = os.MkdirAll(cfg.Paths.TempDir, tempDirPerm)
		if err != nil {
			return fmt.Errorf("create temp dir: %w", err)
		}

		onProgress, finish := progressCallback(cmd.ErrOrStderr(), dc.noProgress || dc.opts.Quiet)

		batch := &refminer.Batch{
			Detector: &refminer.Detector{
				Runner:  rt.Runner,
				Policy:  rt.Policy,
				Logger:  rt.Logger,
				Java:    cfg.Tools.Java,
				Home:    cfg.Tools.DetectorHome,
				Main:    cfg.Tools.DetectorMain,
				Timeout: cfg.Timeouts.Detector,
				TempDir: cfg.Paths.TempDir,
			},
			RepoRoot:   cfg.RepoRoot(label),
			Logger:     rt.Logger,
			Metrics:    rt.Metrics,
			Dataset:    label,
			OnProgress: onProgress,
		}

		rt.Logger.InfoContext(ctx, "running detector", "commits", len(commits), "dataset", label)

		report, runErr := batch.Run(ctx, commits)

		finish()

		saveErr := refminer.Save(output, report.Output)
		if saveErr != nil {
			return errors.Join(runErr, saveErr)
		}

		out := cmd.OutOrStdout()
		fmt.Fprint(out, report.Summary(failureExamples))
		fmt.Fprintf(out, "Results saved to %s\n", output)

		return runErr
	})
}
