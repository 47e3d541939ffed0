package commands

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Sumatoshi-tech/refdelta/pkg/config"
	"github.com/Sumatoshi-tech/refdelta/pkg/dataset"
)

// ErrUnknownDataset is returned for a --dataset value other than agentic or
// human.
var ErrUnknownDataset = errors.New("unknown dataset")

// readCommits loads a commit table and labels rows that carry no dataset.
func readCommits(path string, schema dataset.Schema, label string) ([]dataset.CommitRecord, error) {
	t, err := dataset.ReadTable(path)
	if err != nil {
		return nil, err
	}

	rows, err := dataset.DecodeCommits(t, schema)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	if label != "" {
		for i := range rows {
			if rows[i].Dataset == "" {
				rows[i].Dataset = label
			}
		}
	}

	return rows, nil
}

// readEvents loads an event table, labelling rows like readCommits.
func readEvents(path, label string) ([]dataset.Event, error) {
	t, err := dataset.ReadTable(path)
	if err != nil {
		return nil, err
	}

	events, err := dataset.DecodeEvents(t)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	for i := range events {
		if events[i].Dataset == "" {
			events[i].Dataset = label
		}
	}

	return events, nil
}

func readDeltas(path string) ([]dataset.DeltaRecord, error) {
	t, err := dataset.ReadTable(path)
	if err != nil {
		return nil, err
	}

	rows, err := dataset.DecodeDeltas(t)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	return rows, nil
}

// dataPath joins name onto the configured data directory.
func dataPath(rt *Runtime, name string) string {
	return filepath.Join(rt.Config.Paths.DataDir, name)
}

// datasetLabel canonicalizes a --dataset flag value.
func datasetLabel(name string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "agentic", "":
		return config.DatasetAgentic, nil
	case "human", "baseline":
		return config.DatasetHuman, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownDataset, name)
	}
}
