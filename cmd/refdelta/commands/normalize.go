package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/refdelta/pkg/config"
	"github.com/Sumatoshi-tech/refdelta/pkg/dataset"
	"github.com/Sumatoshi-tech/refdelta/pkg/observability"
	"github.com/Sumatoshi-tech/refdelta/pkg/reconcile"
)

type normalizeCommand struct {
	opts       *Options
	newRuntime runtimeFactory

	population string
	subset     string
	agent      string
	dataset    string
	output     string
}

// NewNormalizeCommand creates the normalize subcommand.
func NewNormalizeCommand(opts *Options) *cobra.Command {
	return newNormalizeCommand(opts, NewRuntime)
}

func newNormalizeCommand(opts *Options, newRuntime runtimeFactory) *cobra.Command {
	nc := &normalizeCommand{opts: opts, newRuntime: newRuntime}

	cmd := &cobra.Command{
		Use:   "normalize",
		Short: "Add zero-refactoring placeholders for commits the detector never reported",
		Long: `Complete a reconciled commit table against its full commit population so
that rate denominators count every observed commit. Population commits absent
from the subset are appended with has_refactoring=false.`,
		Args: cobra.NoArgs,
		RunE: nc.run,
	}

	cmd.Flags().StringVar(&nc.population, "population", "", "Commit metadata table for every observed commit")
	cmd.Flags().StringVar(&nc.subset, "subset", "", "Reconciled commit table")
	cmd.Flags().StringVar(&nc.agent, "agent", config.DatasetHuman, "Agent for placeholders whose population row has none")
	cmd.Flags().StringVar(&nc.dataset, "dataset", "human", "Dataset: agentic or human")
	cmd.Flags().StringVarP(&nc.output, "output", "o", "", "Output table (default: overwrite --subset)")

	_ = cmd.MarkFlagRequired("population")
	_ = cmd.MarkFlagRequired("subset")

	return cmd
}

func (nc *normalizeCommand) run(cmd *cobra.Command, _ []string) error {
	label, err := datasetLabel(nc.dataset)
	if err != nil {
		return err
	}

	return withRuntime(cmd, nc.opts, nc.newRuntime, observability.ModeCLI, func(ctx context.Context, rt *Runtime) error {
		population, err := readCommits(nc.population, dataset.CommitMetadataSchema, "")
		if err != nil {
			return err
		}

		subset, err := readCommits(nc.subset, dataset.ReconciledCommitSchema, label)
		if err != nil {
			return err
		}

		rows, added := reconcile.Normalize(population, subset, nc.agent, label)

		output := nc.output
		if output == "" {
			output = nc.subset
		}

		err = dataset.Write(output, rows)
		if err != nil {
			return err
		}

		rt.Logger.InfoContext(ctx, "commit table normalized",
			"population", len(population), "subset", len(subset), "placeholders", added, "path", output)
		fmt.Fprintf(cmd.OutOrStdout(), "Added %s placeholder commits, %s rows written to %s\n",
			count(added), count(len(rows)), output)

		return nil
	})
}
