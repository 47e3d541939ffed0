// Package refminer models the refactoring detector's JSON output, validates
// it, flattens it into per-refactoring events and drives the detector over a
// list of commits.
package refminer

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/Sumatoshi-tech/refdelta/pkg/dataset"
)

//go:embed detector-schema.json
var outputSchema []byte

// ErrInvalidOutput is returned when detector JSON cannot be read, does not
// match the schema or does not decode.
var ErrInvalidOutput = errors.New("invalid detector output")

// maxSchemaErrors caps how many violations are quoted in ErrInvalidOutput.
const maxSchemaErrors = 5

// Output is the detector's top-level document.
type Output struct {
	Commits []Commit `json:"commits"`
}

// Commit is one analyzed commit.
type Commit struct {
	Repository   string        `json:"repository"`
	SHA1         string        `json:"sha1"`
	URL          string        `json:"url"`
	Refactorings []Refactoring `json:"refactorings"`
}

// Refactoring is one detected refactoring.
type Refactoring struct {
	Type               string             `json:"type"`
	Description        string             `json:"description"`
	LeftSideLocations  []dataset.Location `json:"leftSideLocations"`
	RightSideLocations []dataset.Location `json:"rightSideLocations"`
}

// Aggregate is the per-commit refactoring summary.
type Aggregate struct {
	Count int
	Types []string
}

// Has reports whether the commit has at least one refactoring.
func (a Aggregate) Has() bool {
	return a.Count > 0
}

// Validate checks raw detector JSON against the embedded schema.
func Validate(data []byte) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(outputSchema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidOutput, err)
	}

	if result.Valid() {
		return nil
	}

	errs := result.Errors()
	msgs := make([]string, 0, maxSchemaErrors)

	for i, verr := range errs {
		if i == maxSchemaErrors {
			msgs = append(msgs, fmt.Sprintf("and %d more", len(errs)-maxSchemaErrors))

			break
		}

		msgs = append(msgs, verr.String())
	}

	return fmt.Errorf("%w: %s", ErrInvalidOutput, strings.Join(msgs, "; "))
}

// Parse validates and decodes detector JSON.
func Parse(data []byte) (*Output, error) {
	validateErr := Validate(data)
	if validateErr != nil {
		return nil, validateErr
	}

	var out Output

	dec := json.NewDecoder(bytes.NewReader(data))

	decodeErr := dec.Decode(&out)
	if decodeErr != nil {
		return nil, fmt.Errorf("%w: decode: %w", ErrInvalidOutput, decodeErr)
	}

	return &out, nil
}

// Load reads and parses a detector JSON file.
func Load(path string) (*Output, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read: %w", ErrInvalidOutput, err)
	}

	out, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return out, nil
}

// Save writes out as indented JSON, creating parent directories.
func Save(path string, out *Output) error {
	if out.Commits == nil {
		out = &Output{Commits: []Commit{}}
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("encode detector output: %w", err)
	}

	mkErr := os.MkdirAll(filepath.Dir(path), 0o755)
	if mkErr != nil {
		return fmt.Errorf("create output dir: %w", mkErr)
	}

	writeErr := os.WriteFile(path, data, 0o644)
	if writeErr != nil {
		return fmt.Errorf("write detector output: %w", writeErr)
	}

	return nil
}

// NormalizeRepoName reduces a repository URL to "owner/repo". Both web URLs
// and API URLs containing "/repos/" are accepted. Unrecognized input yields "".
func NormalizeRepoName(url string) string {
	u := strings.TrimRight(strings.TrimSpace(url), "/")
	if u == "" {
		return ""
	}

	var parts []string

	if _, rest, ok := strings.Cut(u, "/repos/"); ok {
		parts = strings.Split(rest, "/")
	} else {
		parts = strings.Split(strings.ReplaceAll(u, "https://github.com/", ""), "/")
	}

	if len(parts) < 2 {
		return ""
	}

	return parts[0] + "/" + strings.ReplaceAll(parts[1], ".git", "")
}

// Events flattens every refactoring into one event. Commits without a hash
// are skipped.
func (o *Output) Events() []dataset.Event {
	var events []dataset.Event

	for _, c := range o.Commits {
		sha := dataset.NormalizeSHA(c.SHA1)
		if sha == "" {
			continue
		}

		for _, ref := range c.Refactorings {
			events = append(events, dataset.Event{
				SHA:             sha,
				DetectorRepoURL: c.Repository,
				DetectorRepo:    NormalizeRepoName(c.Repository),
				CommitURL:       c.URL,
				Type:            ref.Type,
				Description:     ref.Description,
				LeftLocations:   nonNilLocations(ref.LeftSideLocations),
				RightLocations:  nonNilLocations(ref.RightSideLocations),
				LeftElements:    codeElements(ref.LeftSideLocations),
				RightElements:   codeElements(ref.RightSideLocations),
			})
		}
	}

	return events
}

// Aggregates summarizes every analyzed commit, including commits the detector
// reported without refactorings. Repeated hashes keep their first entry.
func (o *Output) Aggregates() map[string]Aggregate {
	aggs := make(map[string]Aggregate, len(o.Commits))

	for _, c := range o.Commits {
		sha := dataset.NormalizeSHA(c.SHA1)
		if sha == "" {
			continue
		}

		if _, seen := aggs[sha]; seen {
			continue
		}

		types := make([]string, 0, len(c.Refactorings))
		for _, ref := range c.Refactorings {
			if ref.Type != "" {
				types = append(types, ref.Type)
			}
		}

		aggs[sha] = Aggregate{Count: len(c.Refactorings), Types: SortedUnique(types)}
	}

	return aggs
}

// CommitOrder returns the distinct normalized hashes in document order.
func (o *Output) CommitOrder() []string {
	seen := make(map[string]struct{}, len(o.Commits))
	order := make([]string, 0, len(o.Commits))

	for _, c := range o.Commits {
		sha := dataset.NormalizeSHA(c.SHA1)
		if sha == "" {
			continue
		}

		if _, ok := seen[sha]; ok {
			continue
		}

		seen[sha] = struct{}{}
		order = append(order, sha)
	}

	return order
}

// SortedUnique returns the distinct values of in, sorted.
func SortedUnique(in []string) []string {
	set := make(map[string]struct{}, len(in))
	for _, s := range in {
		set[s] = struct{}{}
	}

	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}

	sort.Strings(out)

	return out
}

func nonNilLocations(locs []dataset.Location) []dataset.Location {
	if locs == nil {
		return []dataset.Location{}
	}

	return locs
}

func codeElements(locs []dataset.Location) []string {
	out := []string{}

	for _, loc := range locs {
		if loc.CodeElement != "" {
			out = append(out, loc.CodeElement)
		}
	}

	return out
}
