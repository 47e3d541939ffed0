// Package reconcile joins PR commit metadata with refactoring detector output
// into one record per commit, and fills in commits the detector never saw.
package reconcile

import (
	"log/slog"

	"github.com/Sumatoshi-tech/refdelta/pkg/config"
	"github.com/Sumatoshi-tech/refdelta/pkg/dataset"
	"github.com/Sumatoshi-tech/refdelta/pkg/refminer"
)

// Options controls how commits are labelled and collapsed.
type Options struct {
	// Dataset is written into every produced commit and event.
	Dataset string
	// DedupByRepo adds the repository full name to the dedup key.
	DedupByRepo bool
	Logger      *slog.Logger
}

// Result is the reconciled output.
type Result struct {
	Commits []dataset.CommitRecord
	Events  []dataset.Event
	// RowsBeforeDedup is the number of commit rows prior to deduplication.
	RowsBeforeDedup int
}

// Agentic left-joins detector aggregates onto metadata. Metadata commits
// without detector rows get zero aggregates. Detector commits missing from
// the metadata are appended without PR context, so the commit set is the
// union of both sources. Rows are deduplicated on (sha, agent).
func Agentic(meta []dataset.CommitRecord, out *refminer.Output, opts Options) Result {
	aggs := out.Aggregates()
	rows := make([]dataset.CommitRecord, 0, len(meta)+len(aggs))
	known := make(map[string]struct{}, len(meta))

	for _, m := range uniqueMetadata(meta) {
		rec := withAggregate(m, aggs[m.SHA])
		rec.Owner, rec.Repo = splitOwner(rec.FullName)
		rec.Dataset = opts.Dataset

		known[rec.SHA] = struct{}{}
		rows = append(rows, rec)
	}

	appended := 0

	for _, sha := range out.CommitOrder() {
		if _, ok := known[sha]; ok {
			continue
		}

		rec := withAggregate(dataset.CommitRecord{SHA: sha}, aggs[sha])
		rec.Dataset = opts.Dataset
		rows = append(rows, rec)
		appended++
	}

	if appended > 0 && opts.Logger != nil {
		opts.Logger.Info("detector commits missing from metadata appended", "count", appended)
	}

	events := enrich(out.Events(), rows, opts.Dataset)

	return Result{
		Commits:         Dedup(rows, opts.DedupByRepo),
		Events:          events,
		RowsBeforeDedup: len(rows),
	}
}

// Baseline inner-joins metadata with the detector's analyzed commits, labels
// every row with the human agent and deduplicates on (sha, pr_id, agent).
func Baseline(meta []dataset.CommitRecord, out *refminer.Output, opts Options) Result {
	aggs := out.Aggregates()
	rows := make([]dataset.CommitRecord, 0, len(meta))

	for _, m := range meta {
		agg, ok := aggs[m.SHA]
		if !ok {
			continue
		}

		rec := withAggregate(m, agg)
		rec.Owner, rec.Repo = splitOwner(rec.FullName)
		rec.Agent = config.DatasetHuman
		rec.Dataset = opts.Dataset
		rows = append(rows, rec)
	}

	deduped := dedupBy(rows, func(c dataset.CommitRecord) string {
		return c.SHA + "\x00" + c.PRID + "\x00" + c.Agent
	})

	return Result{
		Commits:         deduped,
		Events:          enrich(out.Events(), deduped, opts.Dataset),
		RowsBeforeDedup: len(rows),
	}
}

// Dedup keeps the first row per (sha, agent), or per (sha, agent, full_name)
// when withRepo is set. Applying it twice changes nothing.
func Dedup(rows []dataset.CommitRecord, withRepo bool) []dataset.CommitRecord {
	return dedupBy(rows, func(c dataset.CommitRecord) string {
		return c.DedupKey(withRepo)
	})
}

func dedupBy(rows []dataset.CommitRecord, key func(dataset.CommitRecord) string) []dataset.CommitRecord {
	seen := make(map[string]struct{}, len(rows))
	out := make([]dataset.CommitRecord, 0, len(rows))

	for _, row := range rows {
		k := key(row)
		if _, ok := seen[k]; ok {
			continue
		}

		seen[k] = struct{}{}
		out = append(out, row)
	}

	return out
}

// uniqueMetadata drops exact duplicate metadata rows.
func uniqueMetadata(meta []dataset.CommitRecord) []dataset.CommitRecord {
	type metaKey struct {
		sha, prID, repoURL, fullName, language, agent string
		number                                        int64
	}

	seen := make(map[metaKey]struct{}, len(meta))
	out := make([]dataset.CommitRecord, 0, len(meta))

	for _, m := range meta {
		k := metaKey{m.SHA, m.PRID, m.RepoURL, m.FullName, m.Language, m.Agent, m.Number}
		if _, ok := seen[k]; ok {
			continue
		}

		seen[k] = struct{}{}
		out = append(out, m)
	}

	return out
}

func withAggregate(rec dataset.CommitRecord, agg refminer.Aggregate) dataset.CommitRecord {
	rec.RefactoringCount = agg.Count
	rec.HasRefactoring = agg.Has()
	rec.UniqueTypes = agg.Types

	if rec.UniqueTypes == nil {
		rec.UniqueTypes = []string{}
	}

	return rec
}

func splitOwner(fullName string) (string, string) {
	if fullName == "" {
		return "", ""
	}

	return dataset.SplitFullName(fullName)
}

// enrich left-joins events with commit context. An event whose commit matches
// several rows is repeated once per row; unmatched events keep empty context.
func enrich(events []dataset.Event, commits []dataset.CommitRecord, label string) []dataset.Event {
	bySHA := make(map[string][]dataset.CommitRecord, len(commits))
	for _, c := range commits {
		bySHA[c.SHA] = append(bySHA[c.SHA], c)
	}

	out := make([]dataset.Event, 0, len(events))

	for _, ev := range events {
		ev.Dataset = label

		matches := bySHA[ev.SHA]
		if len(matches) == 0 {
			out = append(out, ev)

			continue
		}

		for _, c := range matches {
			joined := ev
			joined.PRID = c.PRID
			joined.Number = c.Number
			joined.FullName = c.FullName
			joined.Owner = c.Owner
			joined.Repo = c.Repo
			joined.Agent = c.Agent
			out = append(out, joined)
		}
	}

	return out
}
