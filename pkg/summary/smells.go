package summary

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/Sumatoshi-tech/refdelta/pkg/config"
	"github.com/Sumatoshi-tech/refdelta/pkg/dataset"
	"github.com/Sumatoshi-tech/refdelta/pkg/stats"
)

// ErrNoHumanSample is returned when agents cannot be compared because no
// human deltas were measured.
var ErrNoHumanSample = errors.New("no human deltas to compare against")

const smellDecimals = 2

// SmellStats describes the smell counts of one (dataset, agent) group.
type SmellStats struct {
	Dataset string `json:"dataset"       yaml:"dataset"`
	Agent   string `json:"agent"         yaml:"agent"`
	Before  Dist   `json:"smells_before" yaml:"smells_before"`
	After   Dist   `json:"smells_after"  yaml:"smells_after"`
	Delta   Dist   `json:"delta"         yaml:"delta"`
}

// SmellSummary groups deltas by dataset and agent, sorted by both.
func SmellSummary(records []dataset.DeltaRecord) []SmellStats {
	type key struct{ dataset, agent string }

	groups := map[key][]dataset.DeltaRecord{}

	for _, r := range records {
		k := key{r.Dataset, r.Agent}
		groups[k] = append(groups[k], r)
	}

	out := make([]SmellStats, 0, len(groups))

	for k, rows := range groups {
		before := make([]float64, len(rows))
		after := make([]float64, len(rows))
		deltas := make([]float64, len(rows))

		for i, r := range rows {
			before[i] = float64(r.SmellsBefore)
			after[i] = float64(r.SmellsAfter)
			deltas[i] = float64(r.Delta)
		}

		out = append(out, SmellStats{
			Dataset: k.dataset,
			Agent:   k.agent,
			Before:  describe(before, smellDecimals),
			After:   describe(after, smellDecimals),
			Delta:   describe(deltas, smellDecimals),
		})
	}

	slices.SortFunc(out, func(a, b SmellStats) int {
		return cmp.Or(cmp.Compare(a.Dataset, b.Dataset), cmp.Compare(a.Agent, b.Agent))
	})

	return out
}

// ChangeShare is the percentage of an agent's commits whose smell count
// went down, stayed put or went up.
type ChangeShare struct {
	Agent     string `json:"agent"         yaml:"agent"`
	Commits   int    `json:"commits"       yaml:"commits"`
	Decreased Number `json:"decreased_pct" yaml:"decreased_pct"`
	Unchanged Number `json:"unchanged_pct" yaml:"unchanged_pct"`
	Increased Number `json:"increased_pct" yaml:"increased_pct"`
}

// ChangeCategories classifies each delta by sign, per agent in order of
// first appearance.
func ChangeCategories(records []dataset.DeltaRecord) []ChangeShare {
	type tally struct{ down, same, up int }

	var order []string

	tallies := map[string]*tally{}

	for _, r := range records {
		t, ok := tallies[r.Agent]
		if !ok {
			t = &tally{}
			tallies[r.Agent] = t
			order = append(order, r.Agent)
		}

		switch {
		case r.Delta < 0:
			t.down++
		case r.Delta > 0:
			t.up++
		default:
			t.same++
		}
	}

	out := make([]ChangeShare, 0, len(order))

	for _, agent := range order {
		t := tallies[agent]
		n := t.down + t.same + t.up
		pct := func(v int) Number { return round(float64(v)/float64(n)*100, smellDecimals) }

		out = append(out, ChangeShare{
			Agent:     agent,
			Commits:   n,
			Decreased: pct(t.down),
			Unchanged: pct(t.same),
			Increased: pct(t.up),
		})
	}

	return out
}

// Comparison is one agent's smell deltas tested against the human deltas.
type Comparison struct {
	Agent       string       `json:"agent"        yaml:"agent"`
	U           float64      `json:"u_statistic"  yaml:"u_statistic"`
	P           float64      `json:"p_value"      yaml:"p_value"`
	Method      stats.Method `json:"method"       yaml:"method"`
	CliffsDelta float64      `json:"cliffs_delta" yaml:"cliffs_delta"`
	Effect      string       `json:"effect_size"  yaml:"effect_size"`
	HumanMedian float64      `json:"human_median" yaml:"human_median"`
	AgentMedian float64      `json:"agent_median" yaml:"agent_median"`
	HumanMean   float64      `json:"human_mean"   yaml:"human_mean"`
	AgentMean   float64      `json:"agent_mean"   yaml:"agent_mean"`
	NHuman      int          `json:"n_human"      yaml:"n_human"`
	NAgent      int          `json:"n_agent"      yaml:"n_agent"`
}

// CompareWithHuman runs a two-sided Mann-Whitney U test (human against
// agent, U reported for the human sample) and Cliff's delta (agent against
// human) for every non-human agent, in order of first appearance.
func CompareWithHuman(records []dataset.DeltaRecord) ([]Comparison, error) {
	var (
		human  []float64
		order  []string
		agents = map[string][]float64{}
	)

	for _, r := range records {
		if r.Agent == config.DatasetHuman {
			human = append(human, float64(r.Delta))

			continue
		}

		if _, ok := agents[r.Agent]; !ok {
			order = append(order, r.Agent)
		}

		agents[r.Agent] = append(agents[r.Agent], float64(r.Delta))
	}

	if len(order) == 0 {
		return nil, nil
	}

	if len(human) == 0 {
		return nil, ErrNoHumanSample
	}

	out := make([]Comparison, 0, len(order))

	for _, agent := range order {
		sample := agents[agent]

		mw, err := stats.MannWhitneyU(human, sample)
		if err != nil {
			return nil, fmt.Errorf("mann-whitney %s: %w", agent, err)
		}

		delta, err := stats.CliffsDelta(sample, human)
		if err != nil {
			return nil, fmt.Errorf("cliff's delta %s: %w", agent, err)
		}

		out = append(out, Comparison{
			Agent:       agent,
			U:           mw.U,
			P:           mw.P,
			Method:      mw.Method,
			CliffsDelta: delta,
			Effect:      stats.InterpretEffect(delta),
			HumanMedian: stats.Median(human),
			AgentMedian: stats.Median(sample),
			HumanMean:   stats.Mean(human),
			AgentMean:   stats.Mean(sample),
			NHuman:      len(human),
			NAgent:      len(sample),
		})
	}

	return out, nil
}
