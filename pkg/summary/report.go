// Package summary turns smell deltas, reconciled commits and refactoring
// events into the grouped statistics reported after a run.
package summary

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/Sumatoshi-tech/refdelta/pkg/dataset"
	"github.com/Sumatoshi-tech/refdelta/pkg/reconcile"
)

// Input holds the tables a report is built from. Any of them may be empty;
// the sections that depend on it are then left out.
type Input struct {
	Deltas  []dataset.DeltaRecord
	Commits []dataset.CommitRecord
	Events  []dataset.Event
}

// Report is the full set of summary statistics.
type Report struct {
	Smells        []SmellStats           `json:"smells,omitempty"                yaml:"smells,omitempty"`
	Changes       []ChangeShare          `json:"changes,omitempty"               yaml:"changes,omitempty"`
	Comparisons   []Comparison           `json:"comparisons,omitempty"           yaml:"comparisons,omitempty"`
	ProjectRates  []ProjectRate          `json:"project_rates,omitempty"         yaml:"project_rates,omitempty"`
	ProjectStats  []ProjectStats         `json:"project_stats,omitempty"         yaml:"project_stats,omitempty"`
	AgentRates    []AgentRate            `json:"agent_rates,omitempty"           yaml:"agent_rates,omitempty"`
	Distributions []RefactorDistribution `json:"refactor_distribution,omitempty" yaml:"refactor_distribution,omitempty"`
	TypesByAgent  []TypeShare            `json:"types_by_agent,omitempty"        yaml:"types_by_agent,omitempty"`
	TypesByGroup  []TypeShare            `json:"types_by_group,omitempty"        yaml:"types_by_group,omitempty"`
	TypesOverall  []reconcile.TypeCount  `json:"types_overall,omitempty"         yaml:"types_overall,omitempty"`
	Warnings      []string               `json:"warnings,omitempty"              yaml:"warnings,omitempty"`
}

// Build computes every section the input supports. A missing human sample
// is reported as a warning rather than an error.
func Build(in Input) (*Report, error) {
	r := &Report{}

	if len(in.Deltas) > 0 {
		r.Smells = SmellSummary(in.Deltas)
		r.Changes = ChangeCategories(in.Deltas)

		comparisons, err := CompareWithHuman(in.Deltas)

		switch {
		case errors.Is(err, ErrNoHumanSample):
			r.Warnings = append(r.Warnings, err.Error())
		case err != nil:
			return nil, fmt.Errorf("compare with human: %w", err)
		default:
			r.Comparisons = comparisons
		}
	}

	if len(in.Commits) > 0 {
		r.ProjectRates = ProjectRates(in.Commits)
		r.ProjectStats = AgentProjectStats(r.ProjectRates)
		r.AgentRates, r.Distributions = AgentRates(in.Commits)
	}

	if len(in.Events) > 0 {
		r.TypesByAgent = TypeSharesByAgent(in.Events)
		r.TypesByGroup = TypeSharesByGroup(in.Events)
		r.TypesOverall = OverallTypeCounts(in.Events)
	}

	return r, nil
}

// Output file names.
const (
	FileSmellSummary      = "smell_summary_stats_by_agent.csv"
	FileSmellChanges      = "smell_change_categories_by_agent.csv"
	FileAgentVsHuman      = "smell_delta_agent_vs_human_tests.csv"
	FileProjectRates      = "per_project_refactoring_rate.csv"
	FileProjectStats      = "per_agent_refactoring_stats.csv"
	FileAgentRates        = "per_agent_commit_and_refactoring_rate.csv"
	FileRefactorsPerRef   = "per_agent_refactors_per_ref_commit.csv"
	FileTypesByAgent      = "refactor_types_by_agent_counts_and_share.csv"
	FileTypesHumanVsAgent = "refactor_types_humans_vs_agents.csv"
	FileTypesOverall      = "refactor_types_overall_counts.csv"
)

// NamedTable is a report section laid out as a flat table.
type NamedTable struct {
	Name  string
	Table *dataset.Table
}

// Tables lays out every non-empty section.
func (r *Report) Tables() []NamedTable {
	candidates := []NamedTable{
		{FileSmellSummary, smellTable(r.Smells)},
		{FileSmellChanges, changeTable(r.Changes)},
		{FileAgentVsHuman, comparisonTable(r.Comparisons)},
		{FileProjectRates, projectRateTable(r.ProjectRates)},
		{FileProjectStats, projectStatsTable(r.ProjectStats)},
		{FileAgentRates, agentRateTable(r.AgentRates)},
		{FileRefactorsPerRef, distributionTable(r.Distributions)},
		{FileTypesByAgent, shareTable("agent", "agent_total", r.TypesByAgent)},
		{FileTypesHumanVsAgent, shareTable("group", "group_total", r.TypesByGroup)},
		{FileTypesOverall, overallTable(r.TypesOverall)},
	}

	out := make([]NamedTable, 0, len(candidates))

	for _, c := range candidates {
		if len(c.Table.Rows) > 0 {
			out = append(out, c)
		}
	}

	return out
}

// WriteTables writes every non-empty section as CSV under dir and returns the
// written paths.
func (r *Report) WriteTables(dir string) ([]string, error) {
	var paths []string

	for _, nt := range r.Tables() {
		path := filepath.Join(dir, nt.Name)

		err := dataset.WriteTable(path, nt.Table)
		if err != nil {
			return paths, err
		}

		paths = append(paths, path)
	}

	return paths, nil
}
