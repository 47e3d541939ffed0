package reconcile

import (
	"github.com/Sumatoshi-tech/refdelta/pkg/dataset"
)

// Normalize appends a placeholder for every population commit whose hash is
// absent from subset. Placeholders carry the population row's identity with
// zero aggregates. defaultAgent and label fill agent and dataset when the
// population row has none.
func Normalize(population, subset []dataset.CommitRecord, defaultAgent, label string) ([]dataset.CommitRecord, int) {
	present := make(map[string]struct{}, len(subset))
	for _, c := range subset {
		present[c.SHA] = struct{}{}
	}

	out := make([]dataset.CommitRecord, 0, len(subset)+len(population))

	for _, c := range subset {
		if c.UniqueTypes == nil {
			c.UniqueTypes = []string{}
		}

		out = append(out, c)
	}

	added := 0

	for _, p := range population {
		if _, ok := present[p.SHA]; ok {
			continue
		}

		placeholder := dataset.CommitRecord{
			SHA:         p.SHA,
			PRID:        p.PRID,
			Number:      p.Number,
			RepoURL:     p.RepoURL,
			FullName:    p.FullName,
			Language:    p.Language,
			Agent:       p.Agent,
			Owner:       p.Owner,
			Repo:        p.Repo,
			Dataset:     p.Dataset,
			UniqueTypes: []string{},
		}

		if placeholder.Agent == "" {
			placeholder.Agent = defaultAgent
		}

		if placeholder.Dataset == "" {
			placeholder.Dataset = label
		}

		out = append(out, placeholder)
		added++
	}

	return out, added
}
