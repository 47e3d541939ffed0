package summary

import (
	"cmp"
	"slices"

	"github.com/Sumatoshi-tech/refdelta/pkg/config"
	"github.com/Sumatoshi-tech/refdelta/pkg/dataset"
	"github.com/Sumatoshi-tech/refdelta/pkg/stats"
)

const rateDecimals = 3

// Denominator labels of per-project rates.
const (
	DenominatorAgentic = "Observed agentic commits"
	DenominatorHuman   = "Observed human commits"
)

// ProjectRate is the refactoring activity of one agent in one project.
type ProjectRate struct {
	Agent                string  `json:"agent"                            yaml:"agent"`
	FullName             string  `json:"full_name"                        yaml:"full_name"`
	TotalCommits         int     `json:"total_commits"                    yaml:"total_commits"`
	RefactoringCommits   int     `json:"refactoring_commits"              yaml:"refactoring_commits"`
	TotalRefactorings    int     `json:"total_refactorings"               yaml:"total_refactorings"`
	MeanRefactorings     float64 `json:"mean_refactorings"                yaml:"mean_refactorings"`
	MedianRefactorings   float64 `json:"median_refactorings"              yaml:"median_refactorings"`
	RatePct              float64 `json:"refactoring_rate_pct"             yaml:"refactoring_rate_pct"`
	PerAllCommits        float64 `json:"refactors_per_all_commits"        yaml:"refactors_per_all_commits"`
	PerRefactoringCommit float64 `json:"refactors_per_refactoring_commit" yaml:"refactors_per_refactoring_commit"`
	Denominator          string  `json:"denominator"                      yaml:"denominator"`
}

// commitGroup accumulates the commit rows of one group.
type commitGroup struct {
	shas       map[string]struct{}
	refCommits int
	refactors  int
	counts     []float64
	refCounts  []float64
}

func newCommitGroup() *commitGroup {
	return &commitGroup{shas: map[string]struct{}{}}
}

func (g *commitGroup) add(c dataset.CommitRecord) {
	g.shas[c.SHA] = struct{}{}
	g.refactors += c.RefactoringCount
	g.counts = append(g.counts, float64(c.RefactoringCount))

	if c.HasRefactoring {
		g.refCommits++
		g.refCounts = append(g.refCounts, float64(c.RefactoringCount))
	}
}

func (g *commitGroup) perRefactoringCommit() float64 {
	if g.refCommits == 0 {
		return 0
	}

	return float64(g.refactors) / float64(g.refCommits)
}

// ProjectRates computes per-project rates, agentic commits first and human
// commits second, each ordered by agent and project.
func ProjectRates(commits []dataset.CommitRecord) []ProjectRate {
	agentic := make([]dataset.CommitRecord, 0, len(commits))
	human := make([]dataset.CommitRecord, 0, len(commits))

	for _, c := range commits {
		if c.Dataset == config.DatasetHuman {
			human = append(human, c)
		} else {
			agentic = append(agentic, c)
		}
	}

	return append(projectRates(agentic, DenominatorAgentic), projectRates(human, DenominatorHuman)...)
}

func projectRates(commits []dataset.CommitRecord, denominator string) []ProjectRate {
	type key struct{ agent, project string }

	groups := map[key]*commitGroup{}

	for _, c := range commits {
		k := key{c.Agent, c.FullName}

		g, ok := groups[k]
		if !ok {
			g = newCommitGroup()
			groups[k] = g
		}

		g.add(c)
	}

	out := make([]ProjectRate, 0, len(groups))

	for k, g := range groups {
		total := len(g.shas)

		out = append(out, ProjectRate{
			Agent:                k.agent,
			FullName:             k.project,
			TotalCommits:         total,
			RefactoringCommits:   g.refCommits,
			TotalRefactorings:    g.refactors,
			MeanRefactorings:     stats.Mean(g.counts),
			MedianRefactorings:   stats.Median(g.counts),
			RatePct:              float64(g.refCommits) / float64(total) * 100,
			PerAllCommits:        float64(g.refactors) / float64(total),
			PerRefactoringCommit: g.perRefactoringCommit(),
			Denominator:          denominator,
		})
	}

	slices.SortFunc(out, func(a, b ProjectRate) int {
		return cmp.Or(cmp.Compare(a.Agent, b.Agent), cmp.Compare(a.FullName, b.FullName))
	})

	return out
}

// ProjectStats describes one agent's per-project rates.
type ProjectStats struct {
	Agent                string `json:"agent"                            yaml:"agent"`
	RatePct              Dist   `json:"refactoring_rate_pct"             yaml:"refactoring_rate_pct"`
	PerAllCommits        Dist   `json:"refactors_per_all_commits"        yaml:"refactors_per_all_commits"`
	PerRefactoringCommit Dist   `json:"refactors_per_refactoring_commit" yaml:"refactors_per_refactoring_commit"`
}

// AgentProjectStats aggregates project rates per agent, sorted by agent.
func AgentProjectStats(rates []ProjectRate) []ProjectStats {
	type series struct{ rate, all, perRef []float64 }

	groups := map[string]*series{}

	for _, r := range rates {
		s, ok := groups[r.Agent]
		if !ok {
			s = &series{}
			groups[r.Agent] = s
		}

		s.rate = append(s.rate, r.RatePct)
		s.all = append(s.all, r.PerAllCommits)
		s.perRef = append(s.perRef, r.PerRefactoringCommit)
	}

	out := make([]ProjectStats, 0, len(groups))

	for agent, s := range groups {
		out = append(out, ProjectStats{
			Agent:                agent,
			RatePct:              describe(s.rate, rateDecimals),
			PerAllCommits:        describe(s.all, rateDecimals),
			PerRefactoringCommit: describe(s.perRef, rateDecimals),
		})
	}

	slices.SortFunc(out, func(a, b ProjectStats) int { return cmp.Compare(a.Agent, b.Agent) })

	return out
}

// AgentRate is the commit-level refactoring rate of one agent.
type AgentRate struct {
	Agent                    string  `json:"agent"                         yaml:"agent"`
	TotalCommits             int     `json:"total_commits"                 yaml:"total_commits"`
	RefactoringCommits       int     `json:"refactoring_commits"           yaml:"refactoring_commits"`
	TotalRefactorings        int     `json:"total_refactorings"            yaml:"total_refactorings"`
	RatePct                  float64 `json:"refactoring_rate_pct"          yaml:"refactoring_rate_pct"`
	MeanPerRefactoringCommit float64 `json:"mean_refactors_per_ref_commit" yaml:"mean_refactors_per_ref_commit"`
}

// RefactorDistribution describes the refactoring counts of one agent's
// refactoring commits.
type RefactorDistribution struct {
	Agent string `json:"agent"                    yaml:"agent"`
	Dist  Dist   `json:"refactors_per_ref_commit" yaml:"refactors_per_ref_commit"`
}

// AgentRates computes commit and refactoring rates per agent together with
// the distribution of refactorings over refactoring commits, both sorted by
// agent and rounded to three decimals.
func AgentRates(commits []dataset.CommitRecord) ([]AgentRate, []RefactorDistribution) {
	groups := map[string]*commitGroup{}

	for _, c := range commits {
		g, ok := groups[c.Agent]
		if !ok {
			g = newCommitGroup()
			groups[c.Agent] = g
		}

		g.add(c)
	}

	agents := make([]string, 0, len(groups))
	for agent := range groups {
		agents = append(agents, agent)
	}

	slices.Sort(agents)

	rates := make([]AgentRate, 0, len(agents))
	dists := make([]RefactorDistribution, 0, len(agents))

	for _, agent := range agents {
		g := groups[agent]
		total := len(g.shas)

		rates = append(rates, AgentRate{
			Agent:                    agent,
			TotalCommits:             total,
			RefactoringCommits:       g.refCommits,
			TotalRefactorings:        g.refactors,
			RatePct:                  float64(round(float64(g.refCommits)/float64(total)*100, rateDecimals)),
			MeanPerRefactoringCommit: float64(round(g.perRefactoringCommit(), rateDecimals)),
		})

		if g.refCommits > 0 {
			dists = append(dists, RefactorDistribution{Agent: agent, Dist: describe(g.refCounts, rateDecimals)})
		}
	}

	return rates, dists
}
