// Package checkpoint persists the progress of a long delta run so an
// interrupted run can resume where it stopped.
package checkpoint

import (
	"github.com/Sumatoshi-tech/refdelta/pkg/dataset"
)

// Metadata identifies the run a checkpoint belongs to.
type Metadata struct {
	Version     int    `json:"version"`
	RunID       string `json:"run_id"`
	Fingerprint string `json:"fingerprint"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
	Total       int    `json:"total"`
	Processed   int    `json:"processed"`
}

// Progress is the resumable state: the records produced so far and the keys
// of every commit that reached a terminal state.
type Progress struct {
	Records   []dataset.DeltaRecord `json:"records"`
	Processed []string              `json:"processed"`
}

// ProcessedSet returns Processed as a set.
func (p *Progress) ProcessedSet() map[string]struct{} {
	set := make(map[string]struct{}, len(p.Processed))
	for _, k := range p.Processed {
		set[k] = struct{}{}
	}

	return set
}
