package summary

import (
	"github.com/Sumatoshi-tech/refdelta/pkg/dataset"
	"github.com/Sumatoshi-tech/refdelta/pkg/reconcile"
)

var distColumns = []string{"mean", "median", "std", "min", "max"}

// distCells flattens d into prefix_mean ... prefix_max, and prefix_count when
// withCount is set.
func distCells(row dataset.Row, prefix string, d Dist, withCount bool) {
	values := []Number{d.Mean, d.Median, d.Std, d.Min, d.Max}
	for i, name := range distColumns {
		row[prefix+"_"+name] = float64(values[i])
	}

	if withCount {
		row[prefix+"_count"] = d.Count
	}
}

func distHeader(prefix string, withCount bool) []string {
	out := make([]string, 0, len(distColumns)+1)
	if withCount {
		out = append(out, prefix+"_count")
	}

	for _, name := range distColumns {
		out = append(out, prefix+"_"+name)
	}

	return out
}

func smellTable(rows []SmellStats) *dataset.Table {
	t := &dataset.Table{Columns: []string{"dataset", "agent", "n"}}
	for _, prefix := range []string{"smells_before", "smells_after", "delta"} {
		t.Columns = append(t.Columns, distHeader(prefix, false)...)
	}

	for _, s := range rows {
		row := dataset.Row{"dataset": s.Dataset, "agent": s.Agent, "n": s.Delta.Count}
		distCells(row, "smells_before", s.Before, false)
		distCells(row, "smells_after", s.After, false)
		distCells(row, "delta", s.Delta, false)
		t.Rows = append(t.Rows, row)
	}

	return t
}

func changeTable(rows []ChangeShare) *dataset.Table {
	t := &dataset.Table{Columns: []string{"agent", "commits", "decreased_pct", "unchanged_pct", "increased_pct"}}

	for _, c := range rows {
		t.Rows = append(t.Rows, dataset.Row{
			"agent":         c.Agent,
			"commits":       c.Commits,
			"decreased_pct": float64(c.Decreased),
			"unchanged_pct": float64(c.Unchanged),
			"increased_pct": float64(c.Increased),
		})
	}

	return t
}

func comparisonTable(rows []Comparison) *dataset.Table {
	t := &dataset.Table{Columns: []string{
		"agent", "u_statistic", "p_value", "method", "cliffs_delta", "effect_size",
		"human_median", "agent_median", "human_mean", "agent_mean", "n_human", "n_agent",
	}}

	for _, c := range rows {
		t.Rows = append(t.Rows, dataset.Row{
			"agent":        c.Agent,
			"u_statistic":  c.U,
			"p_value":      c.P,
			"method":       string(c.Method),
			"cliffs_delta": c.CliffsDelta,
			"effect_size":  c.Effect,
			"human_median": c.HumanMedian,
			"agent_median": c.AgentMedian,
			"human_mean":   c.HumanMean,
			"agent_mean":   c.AgentMean,
			"n_human":      c.NHuman,
			"n_agent":      c.NAgent,
		})
	}

	return t
}

func projectRateTable(rows []ProjectRate) *dataset.Table {
	t := &dataset.Table{Columns: []string{
		"agent", "full_name", "total_commits", "refactoring_commits", "total_refactorings",
		"mean_refactorings", "median_refactorings", "refactoring_rate_%",
		"refactors_per_all_commits", "refactors_per_refactoring_commit", "denominator",
	}}

	for _, p := range rows {
		t.Rows = append(t.Rows, dataset.Row{
			"agent":                            p.Agent,
			"full_name":                        p.FullName,
			"total_commits":                    p.TotalCommits,
			"refactoring_commits":              p.RefactoringCommits,
			"total_refactorings":               p.TotalRefactorings,
			"mean_refactorings":                p.MeanRefactorings,
			"median_refactorings":              p.MedianRefactorings,
			"refactoring_rate_%":               p.RatePct,
			"refactors_per_all_commits":        p.PerAllCommits,
			"refactors_per_refactoring_commit": p.PerRefactoringCommit,
			"denominator":                      p.Denominator,
		})
	}

	return t
}

func projectStatsTable(rows []ProjectStats) *dataset.Table {
	prefixes := []string{"refactoring_rate_%", "refactors_per_all_commits", "refactors_per_refactoring_commit"}

	t := &dataset.Table{Columns: []string{"agent"}}
	for _, prefix := range prefixes {
		t.Columns = append(t.Columns, distHeader(prefix, true)...)
	}

	for _, s := range rows {
		row := dataset.Row{"agent": s.Agent}
		distCells(row, prefixes[0], s.RatePct, true)
		distCells(row, prefixes[1], s.PerAllCommits, true)
		distCells(row, prefixes[2], s.PerRefactoringCommit, true)
		t.Rows = append(t.Rows, row)
	}

	return t
}

func agentRateTable(rows []AgentRate) *dataset.Table {
	t := &dataset.Table{Columns: []string{
		"agent", "total_commits", "refactoring_commits", "total_refactorings",
		"refactoring_rate_%", "mean_refactors_per_ref_commit",
	}}

	for _, a := range rows {
		t.Rows = append(t.Rows, dataset.Row{
			"agent":                         a.Agent,
			"total_commits":                 a.TotalCommits,
			"refactoring_commits":           a.RefactoringCommits,
			"total_refactorings":            a.TotalRefactorings,
			"refactoring_rate_%":            a.RatePct,
			"mean_refactors_per_ref_commit": a.MeanPerRefactoringCommit,
		})
	}

	return t
}

func distributionTable(rows []RefactorDistribution) *dataset.Table {
	t := &dataset.Table{Columns: []string{
		"agent",
		"mean_refactors_per_ref_commit", "median_refactors_per_ref_commit", "std_refactors_per_ref_commit",
		"min_refactors_per_ref_commit", "max_refactors_per_ref_commit", "num_refactoring_commits",
	}}

	for _, d := range rows {
		t.Rows = append(t.Rows, dataset.Row{
			"agent":                           d.Agent,
			"mean_refactors_per_ref_commit":   float64(d.Dist.Mean),
			"median_refactors_per_ref_commit": float64(d.Dist.Median),
			"std_refactors_per_ref_commit":    float64(d.Dist.Std),
			"min_refactors_per_ref_commit":    float64(d.Dist.Min),
			"max_refactors_per_ref_commit":    float64(d.Dist.Max),
			"num_refactoring_commits":         d.Dist.Count,
		})
	}

	return t
}

func shareTable(keyColumn, totalColumn string, rows []TypeShare) *dataset.Table {
	t := &dataset.Table{Columns: []string{keyColumn, "refactoring_type", "count", totalColumn, "share_pct"}}

	for _, s := range rows {
		t.Rows = append(t.Rows, dataset.Row{
			keyColumn:          s.Key,
			"refactoring_type": s.Type,
			"count":            s.Count,
			totalColumn:        s.Total,
			"share_pct":        s.SharePct,
		})
	}

	return t
}

func overallTable(rows []reconcile.TypeCount) *dataset.Table {
	t := &dataset.Table{Columns: []string{"refactoring_type", "count"}}

	for _, tc := range rows {
		t.Rows = append(t.Rows, dataset.Row{"refactoring_type": tc.Type, "count": tc.Count})
	}

	return t
}
