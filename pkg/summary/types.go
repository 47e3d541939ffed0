package summary

import (
	"cmp"
	"slices"

	"github.com/Sumatoshi-tech/refdelta/pkg/config"
	"github.com/Sumatoshi-tech/refdelta/pkg/dataset"
	"github.com/Sumatoshi-tech/refdelta/pkg/reconcile"
)

// GroupAgentic labels every non-human agent in group shares.
const GroupAgentic = "Agentic"

// TypeShare is how often a refactoring type occurs within one agent or group.
type TypeShare struct {
	Key      string  `json:"key"              yaml:"key"`
	Type     string  `json:"refactoring_type" yaml:"refactoring_type"`
	Count    int     `json:"count"            yaml:"count"`
	Total    int     `json:"total"            yaml:"total"`
	SharePct float64 `json:"share_pct"        yaml:"share_pct"`
}

// eventAgent attributes an event to an agent; events from the human dataset
// always belong to the human label.
func eventAgent(ev dataset.Event) string {
	if ev.Dataset == config.DatasetHuman {
		return config.DatasetHuman
	}

	return ev.Agent
}

// TypeSharesByAgent counts types per agent. Events without an agent are left
// out. Rows are ordered by agent, then by descending share.
func TypeSharesByAgent(events []dataset.Event) []TypeShare {
	return typeShares(events, eventAgent)
}

// TypeSharesByGroup counts types for humans against all agents combined.
func TypeSharesByGroup(events []dataset.Event) []TypeShare {
	return typeShares(events, func(ev dataset.Event) string {
		if eventAgent(ev) == config.DatasetHuman {
			return config.DatasetHuman
		}

		return GroupAgentic
	})
}

// OverallTypeCounts counts every type across all events.
func OverallTypeCounts(events []dataset.Event) []reconcile.TypeCount {
	return reconcile.TopTypes(events, 0)
}

func typeShares(events []dataset.Event, keyOf func(dataset.Event) string) []TypeShare {
	type key struct{ group, typ string }

	counts := map[key]int{}
	totals := map[string]int{}

	for _, ev := range events {
		group := keyOf(ev)
		if ev.Type == "" || group == "" {
			continue
		}

		counts[key{group, ev.Type}]++
		totals[group]++
	}

	out := make([]TypeShare, 0, len(counts))

	for k, n := range counts {
		out = append(out, TypeShare{
			Key:      k.group,
			Type:     k.typ,
			Count:    n,
			Total:    totals[k.group],
			SharePct: float64(n) / float64(totals[k.group]) * 100,
		})
	}

	slices.SortFunc(out, func(a, b TypeShare) int {
		return cmp.Or(
			cmp.Compare(a.Key, b.Key),
			cmp.Compare(b.Count, a.Count),
			cmp.Compare(a.Type, b.Type),
		)
	})

	return out
}
