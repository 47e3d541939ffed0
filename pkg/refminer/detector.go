package refminer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Sumatoshi-tech/refdelta/pkg/dataset"
	"github.com/Sumatoshi-tech/refdelta/pkg/observability"
	"github.com/Sumatoshi-tech/refdelta/pkg/procexec"
)

const (
	toolDetector  = "detector"
	shortSHA      = 8
	reasonExcerpt = 300

	reasonInvalidOutput = "invalid_output"
)

// Detector invokes the refactoring detector for single commits.
type Detector struct {
	Runner  procexec.Runner
	Policy  procexec.FailurePolicy
	Logger  *slog.Logger
	Java    string
	Home    string
	Main    string
	Timeout time.Duration
	// TempDir receives the per-commit JSON file. Empty means os.TempDir.
	TempDir string
}

// Spec builds the detector invocation for one commit.
func (d *Detector) Spec(repoPath, sha, outFile string) procexec.Spec {
	java := d.Java
	if java == "" {
		java = "java"
	}

	classpath := filepath.Join(d.Home, "bin") + string(os.PathListSeparator) + filepath.Join(d.Home, "lib", "*")

	return procexec.Spec{
		Tool:    toolDetector,
		Name:    java,
		Args:    []string{"-cp", classpath, d.Main, "-c", repoPath, sha, "-json", outFile},
		Timeout: d.Timeout,
	}
}

// Detect analyzes one commit and returns the commit entries it produced. A
// failed run yields procexec's outcome in the returned Result so callers can
// count it; the error is non-nil only under a strict policy or when the
// produced file is malformed, in which case it wraps ErrInvalidOutput.
func (d *Detector) Detect(ctx context.Context, repoPath, sha string) ([]Commit, procexec.Result, error) {
	tmp, err := os.CreateTemp(d.TempDir, "detector_*.json")
	if err != nil {
		return nil, procexec.Result{}, fmt.Errorf("create detector output: %w", err)
	}

	outFile := tmp.Name()
	tmp.Close()
	os.Remove(outFile)

	defer os.Remove(outFile)

	spec := d.Spec(repoPath, sha, outFile)

	res := d.Runner.Run(ctx, spec)
	if !res.OK() {
		d.Logger.WarnContext(ctx, "refactoring detector failed",
			"repo", repoPath, "sha", sha, "outcome", res.Outcome, "reason", res.Excerpt(reasonExcerpt))

		return nil, res, d.Policy.Coerce(spec, res)
	}

	if _, statErr := os.Stat(outFile); errors.Is(statErr, os.ErrNotExist) {
		return nil, res, nil
	}

	out, err := Load(outFile)
	if err != nil {
		return nil, res, err
	}

	return out.Commits, res, nil
}

// Failure names a commit the detector could not analyze.
type Failure struct {
	Repo string
	SHA  string
}

// Report is the outcome of a detector batch.
type Report struct {
	Output    *Output
	Succeeded int
	Missing   int
	Repos     map[string]struct{}
	Failed    []Failure
}

// Batch runs a Detector over a list of commits whose repositories live under
// RepoRoot.
type Batch struct {
	Detector *Detector
	RepoRoot string
	Logger   *slog.Logger
	Metrics  *observability.PipelineMetrics
	Dataset  string

	// OnProgress is called after each commit with the number processed so far.
	OnProgress func(done, total int, label string)
}

// Run analyzes each commit in order. Commits whose repository is not cloned
// are skipped. Failed runs and rejected output are recorded in Failed unless
// the detector's policy is strict. Cancelling ctx stops the loop and returns what was collected
// together with the context error.
func (b *Batch) Run(ctx context.Context, commits []dataset.CommitRecord) (*Report, error) {
	report := &Report{Output: &Output{Commits: []Commit{}}, Repos: map[string]struct{}{}}

	for i, commit := range commits {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}

		repoName := dataset.RepoDirName(commit.FullName)
		repoPath := filepath.Join(b.RepoRoot, repoName)
		label := repoName + "@" + abbrev(commit.SHA)

		err := b.runOne(ctx, commit, repoName, repoPath, report)
		if err != nil {
			return report, err
		}

		if b.OnProgress != nil {
			b.OnProgress(i+1, len(commits), label)
		}
	}

	return report, nil
}

func (b *Batch) runOne(ctx context.Context, commit dataset.CommitRecord, repoName, repoPath string, report *Report) error {
	if _, err := os.Stat(repoPath); err != nil {
		b.Logger.InfoContext(ctx, "repository missing, skipping commit", "repo", repoName, "sha", abbrev(commit.SHA))
		b.Metrics.RecordCommit(ctx, b.Dataset, "skipped", "missing_repo")

		report.Missing++

		return nil
	}

	produced, res, err := b.Detector.Detect(ctx, repoPath, commit.SHA)
	if errors.Is(err, ErrInvalidOutput) && b.Detector.Policy != procexec.Strict {
		b.Logger.WarnContext(ctx, "refactoring detector output rejected",
			"repo", repoName, "sha", abbrev(commit.SHA), "error", err)
		b.Metrics.RecordCommit(ctx, b.Dataset, "failed", reasonInvalidOutput)

		report.Failed = append(report.Failed, Failure{Repo: repoName, SHA: commit.SHA})

		return nil
	}

	if err != nil {
		return fmt.Errorf("detect %s@%s: %w", repoName, commit.SHA, err)
	}

	if !res.OK() {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		report.Failed = append(report.Failed, Failure{Repo: repoName, SHA: commit.SHA})
		b.Metrics.RecordCommit(ctx, b.Dataset, "failed", string(res.Outcome))

		return nil
	}

	report.Output.Commits = append(report.Output.Commits, produced...)
	report.Succeeded++
	report.Repos[repoName] = struct{}{}

	b.Logger.DebugContext(ctx, "analyzed commit", "repo", repoName, "sha", abbrev(commit.SHA), "entries", len(produced))
	b.Metrics.RecordCommit(ctx, b.Dataset, "completed", "")

	return nil
}

// Summary renders the end-of-run report lines, quoting at most limit
// failures.
func (r *Report) Summary(limit int) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Total successful commits: %d\n", r.Succeeded)
	fmt.Fprintf(&sb, "Total repositories analyzed: %d\n", len(r.Repos))
	fmt.Fprintf(&sb, "Total failed commits: %d\n", len(r.Failed))

	if r.Missing > 0 {
		fmt.Fprintf(&sb, "Commits skipped (repository missing): %d\n", r.Missing)
	}

	if len(r.Failed) > 0 {
		sb.WriteString("Some failed examples:\n")

		for i, f := range r.Failed {
			if i == limit {
				break
			}

			fmt.Fprintf(&sb, " - %s (%s)\n", f.Repo, abbrev(f.SHA))
		}
	}

	return sb.String()
}

func abbrev(sha string) string {
	if len(sha) > shortSHA {
		return sha[:shortSHA]
	}

	return sha
}
