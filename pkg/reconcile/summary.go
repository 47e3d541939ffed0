package reconcile

import (
	"sort"

	"github.com/Sumatoshi-tech/refdelta/pkg/dataset"
)

// topTypesLimit is the number of refactoring types listed in a Summary.
const topTypesLimit = 10

// TypeCount is a refactoring type with its number of events.
type TypeCount struct {
	Type  string `json:"refactoring_type" yaml:"refactoring_type"`
	Count int    `json:"count"            yaml:"count"`
}

// Summary describes a reconciled dataset.
type Summary struct {
	Commits            int         `json:"commits"                  yaml:"commits"`
	RefactoringCommits int         `json:"refactoring_commits"      yaml:"refactoring_commits"`
	RefactoringPct     float64     `json:"refactoring_pct"          yaml:"refactoring_pct"`
	MeanPerRefCommit   float64     `json:"mean_per_ref_commit"      yaml:"mean_per_ref_commit"`
	Events             int         `json:"events"                   yaml:"events"`
	EventCommits       int         `json:"event_commits"            yaml:"event_commits"`
	TopTypes           []TypeCount `json:"top_types"                yaml:"top_types"`
}

// Summarize computes totals, the refactoring share and the most frequent
// refactoring types.
func Summarize(commits []dataset.CommitRecord, events []dataset.Event) Summary {
	s := Summary{Commits: len(commits)}

	total := 0

	for _, c := range commits {
		if c.HasRefactoring {
			s.RefactoringCommits++
			total += c.RefactoringCount
		}
	}

	if s.Commits > 0 {
		s.RefactoringPct = float64(s.RefactoringCommits) / float64(s.Commits) * 100
	}

	if s.RefactoringCommits > 0 {
		s.MeanPerRefCommit = float64(total) / float64(s.RefactoringCommits)
	}

	s.Events = len(events)
	s.TopTypes = TopTypes(events, topTypesLimit)

	shas := make(map[string]struct{}, len(events))
	for _, ev := range events {
		shas[ev.SHA] = struct{}{}
	}

	s.EventCommits = len(shas)

	return s
}

// TopTypes returns up to limit types ordered by descending count, ties
// broken by name.
func TopTypes(events []dataset.Event, limit int) []TypeCount {
	counts := make(map[string]int)

	for _, ev := range events {
		if ev.Type != "" {
			counts[ev.Type]++
		}
	}

	out := make([]TypeCount, 0, len(counts))
	for t, n := range counts {
		out = append(out, TypeCount{Type: t, Count: n})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}

		return out[i].Type < out[j].Type
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}

	return out
}
