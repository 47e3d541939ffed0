// Package smells runs the external design-smell analyzer over a snapshot and
// reduces its CSV reports to a single smell count.
package smells

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Sumatoshi-tech/refdelta/pkg/procexec"
)

// excludedMarkers name report families that describe metrics or totals rather
// than individual smells.
var excludedMarkers = []string{"Metric", "Summary"}

const (
	reportGlob    = "*.csv"
	reasonExcerpt = 300
)

// Analyzer invokes the smell analyzer jar.
type Analyzer struct {
	Runner  procexec.Runner
	Policy  procexec.FailurePolicy
	Logger  *slog.Logger
	Java    string
	Jar     string
	Heap    string
	Timeout time.Duration
}

// Spec builds the analyzer invocation for one input/output pair.
func (a *Analyzer) Spec(inputDir, outputDir string) procexec.Spec {
	java := a.Java
	if java == "" {
		java = "java"
	}

	args := make([]string, 0, 10)
	if a.Heap != "" {
		args = append(args, "-Xmx"+a.Heap)
	}

	args = append(args, "-jar", a.Jar, "-i", inputDir, "-o", outputDir, "-d", "-f", "csv")

	return procexec.Spec{Tool: "analyzer", Name: java, Args: args, Timeout: a.Timeout}
}

// Count runs the analyzer on inputDir, writing reports to outputDir, and
// returns the number of smell rows reported. A failed or timed-out run counts
// as zero; under a strict policy it also returns an error.
func (a *Analyzer) Count(ctx context.Context, inputDir, outputDir string) (int, error) {
	mkErr := os.MkdirAll(outputDir, 0o755)
	if mkErr != nil {
		return 0, fmt.Errorf("create analyzer output: %w", mkErr)
	}

	spec := a.Spec(inputDir, outputDir)

	res := a.Runner.Run(ctx, spec)
	if !res.OK() {
		a.Logger.WarnContext(ctx, "smell analyzer failed",
			"input", inputDir, "outcome", res.Outcome, "reason", res.Excerpt(reasonExcerpt))

		return 0, a.Policy.Coerce(spec, res)
	}

	return CountReports(ctx, outputDir, a.Logger), nil
}

// Excluded reports whether a report file name is left out of the count.
func Excluded(name string) bool {
	for _, marker := range excludedMarkers {
		if strings.Contains(name, marker) {
			return true
		}
	}

	return false
}

// CountReports sums the data rows of every CSV report directly inside dir,
// skipping metric and summary reports. A report that cannot be read is
// logged and contributes zero.
func CountReports(ctx context.Context, dir string, logger *slog.Logger) int {
	paths, err := filepath.Glob(filepath.Join(dir, reportGlob))
	if err != nil {
		logger.WarnContext(ctx, "cannot list analyzer reports", "dir", dir, "error", err)

		return 0
	}

	sort.Strings(paths)

	total := 0

	for _, path := range paths {
		if Excluded(filepath.Base(path)) {
			continue
		}

		rows, rowErr := countRows(path)
		if rowErr != nil {
			logger.WarnContext(ctx, "cannot read analyzer report", "file", path, "error", rowErr)

			continue
		}

		total += rows
	}

	return total
}

// ErrEmptyReport is returned for a report without even a header row.
var ErrEmptyReport = errors.New("empty report")

// countRows returns the number of records after the header.
func countRows(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true
	reader.LazyQuotes = true

	records := 0

	for {
		_, readErr := reader.Read()
		if errors.Is(readErr, io.EOF) {
			break
		}

		if readErr != nil {
			return 0, fmt.Errorf("parse: %w", readErr)
		}

		records++
	}

	if records == 0 {
		return 0, ErrEmptyReport
	}

	return records - 1, nil
}
