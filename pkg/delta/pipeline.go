// Package delta measures how the smell count of a commit's changed files
// moves between the commit's parent and the commit itself.
package delta

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/Sumatoshi-tech/refdelta/pkg/checkpoint"
	"github.com/Sumatoshi-tech/refdelta/pkg/dataset"
	"github.com/Sumatoshi-tech/refdelta/pkg/gitlib"
	"github.com/Sumatoshi-tech/refdelta/pkg/observability"
	"github.com/Sumatoshi-tech/refdelta/pkg/procexec"
	"github.com/Sumatoshi-tech/refdelta/pkg/snapshot"
)

// Terminal commit states.
const (
	StateCompleted = "completed"
	StateSkipped   = "skipped"
)

// Skip reasons.
const (
	ReasonMaterializeFailed = "materialize_failed"
	ReasonNoChangedFiles    = "no_changed_files"
)

// Measured phases.
const (
	PhaseBefore = "before"
	PhaseAfter  = "after"
)

const shortSHA = 8

// Materializer makes a repository available and checks out revisions.
type Materializer interface {
	Ensure(ctx context.Context, repoPath, fullName string) (bool, error)
	Checkout(ctx context.Context, repoPath, ref string) (bool, error)
}

// FileLister lists the source files a commit changed.
type FileLister interface {
	ChangedFiles(ctx context.Context, repoPath, sha string) []string
}

// Snapshotter copies files into a disposable directory.
type Snapshotter interface {
	Acquire(ctx context.Context, repoPath string, files []string) (*snapshot.Snapshot, error)
}

// SmellCounter runs the analyzer over a directory.
type SmellCounter interface {
	Count(ctx context.Context, inputDir, outputDir string) (int, error)
}

// Pipeline processes commits one at a time.
type Pipeline struct {
	Repos     Materializer
	Files     FileLister
	Snapshots Snapshotter
	Smells    SmellCounter
	Policy    procexec.FailurePolicy

	// RepoRoot maps a dataset label to the directory holding its clones.
	RepoRoot func(dataset string) string
	// WorkDir receives analyzer report directories, removed after counting.
	WorkDir string

	Logger  *slog.Logger
	Tracer  trace.Tracer
	Metrics *observability.PipelineMetrics

	// Checkpoint, when set, persists progress every CheckpointInterval
	// terminal commits and is cleared after a complete run.
	Checkpoint         *checkpoint.Manager
	CheckpointInterval int

	// OnProgress is called after each commit with the number handled so far.
	OnProgress func(done, total int, label string)

	now func() time.Time
}

// Outcome is the terminal state of one commit.
type Outcome struct {
	State  string
	Reason string
	Record *dataset.DeltaRecord
}

// Result collects a run's records and counters.
type Result struct {
	Records   []dataset.DeltaRecord
	Completed int
	Skipped   map[string]int
	// Resumed counts commits restored from a checkpoint.
	Resumed int
}

// SelectRefactoringCommits keeps commits with at least one detected
// refactoring, preserving order.
func SelectRefactoringCommits(commits []dataset.CommitRecord) []dataset.CommitRecord {
	out := make([]dataset.CommitRecord, 0, len(commits))

	for _, c := range commits {
		if c.HasRefactoring {
			out = append(out, c)
		}
	}

	return out
}

// CommitKey identifies a commit across runs.
func CommitKey(c dataset.CommitRecord) string {
	return c.Dataset + "\x00" + c.SHA + "\x00" + c.Agent + "\x00" + c.FullName
}

// Run processes commits sequentially. When ctx is cancelled the loop stops,
// the records gathered so far are returned together with ctx's error, and the
// commit in flight is dropped. Under a strict failure policy the first tool
// failure ends the run the same way.
func (p *Pipeline) Run(ctx context.Context, commits []dataset.CommitRecord) (*Result, error) {
	p.defaults()

	res := &Result{Skipped: map[string]int{}}
	processed := map[string]struct{}{}

	var keys []string

	if p.Checkpoint != nil && p.Checkpoint.Exists() {
		_, progress, err := p.Checkpoint.Load()
		if err != nil {
			p.Logger.WarnContext(ctx, "ignoring unusable checkpoint", "dir", p.Checkpoint.Dir(), "error", err)
		} else {
			res.Records = progress.Records
			keys = progress.Processed
			processed = progress.ProcessedSet()
			res.Resumed = len(processed)

			p.Logger.InfoContext(ctx, "resuming from checkpoint",
				"processed", res.Resumed, "records", len(res.Records))
		}
	}

	sinceSave := 0

	for i, commit := range commits {
		key := CommitKey(commit)
		if _, done := processed[key]; done {
			p.progress(i+1, len(commits), commit)

			continue
		}

		if ctx.Err() != nil {
			return res, p.interrupted(ctx, res, keys, len(commits))
		}

		outcome, err := p.Process(ctx, commit)
		if ctx.Err() != nil {
			return res, p.interrupted(ctx, res, keys, len(commits))
		}

		if err != nil {
			return res, errors.Join(err, p.save(ctx, res, keys, len(commits)))
		}

		switch outcome.State {
		case StateCompleted:
			res.Completed++
			res.Records = append(res.Records, *outcome.Record)
		case StateSkipped:
			res.Skipped[outcome.Reason]++
		}

		processed[key] = struct{}{}
		keys = append(keys, key)
		sinceSave++

		if p.Checkpoint != nil && sinceSave >= p.CheckpointInterval {
			saveErr := p.save(ctx, res, keys, len(commits))
			if saveErr != nil {
				return res, saveErr
			}

			sinceSave = 0
		}

		p.progress(i+1, len(commits), commit)
	}

	if p.Checkpoint != nil {
		clearErr := p.Checkpoint.Clear()
		if clearErr != nil {
			p.Logger.WarnContext(ctx, "failed to clear checkpoint", "error", clearErr)
		}
	}

	return res, nil
}

// Process runs the parent/commit measurement for one commit.
func (p *Pipeline) Process(ctx context.Context, commit dataset.CommitRecord) (Outcome, error) {
	p.defaults()

	repoName := dataset.RepoDirName(commit.FullName)
	repoPath := filepath.Join(p.RepoRoot(commit.Dataset), repoName)
	label := fmt.Sprintf("%s/%s/%s@%s", commit.Dataset, commit.Agent, repoName, abbrev(commit.SHA))

	ctx, span := p.Tracer.Start(ctx, "refdelta.delta.commit",
		trace.WithAttributes(
			attribute.String("refdelta.dataset", commit.Dataset),
			attribute.String("refdelta.agent", commit.Agent),
			attribute.String("refdelta.repo", commit.FullName),
			attribute.String("refdelta.sha", commit.SHA),
		),
	)
	defer span.End()

	outcome, err := p.process(ctx, commit, repoName, repoPath, label)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "commit failed")

		return outcome, fmt.Errorf("%s: %w", label, err)
	}

	span.SetAttributes(attribute.String("refdelta.state", outcome.State))

	if ctx.Err() == nil {
		p.Metrics.RecordCommit(ctx, commit.Dataset, outcome.State, outcome.Reason)
	}

	return outcome, nil
}

func (p *Pipeline) process(ctx context.Context, commit dataset.CommitRecord, repoName, repoPath, label string) (Outcome, error) {
	ok, err := p.Repos.Ensure(ctx, repoPath, commit.FullName)
	if err != nil {
		return Outcome{}, err
	}

	if !ok {
		p.Logger.WarnContext(ctx, "skipping commit, repository unavailable", "commit", label)

		return Outcome{State: StateSkipped, Reason: ReasonMaterializeFailed}, nil
	}

	files := p.Files.ChangedFiles(ctx, repoPath, commit.SHA)
	p.Logger.InfoContext(ctx, "changed files", "commit", label, "files", len(files))

	if len(files) == 0 {
		p.Logger.InfoContext(ctx, "skipping commit, no changed files", "commit", label)

		return Outcome{State: StateSkipped, Reason: ReasonNoChangedFiles}, nil
	}

	start := p.now()

	before, err := p.measure(ctx, repoPath, gitlib.ParentRef(commit.SHA), files, repoName, commit.SHA, PhaseBefore)
	if err != nil {
		return Outcome{}, err
	}

	after, err := p.measure(ctx, repoPath, commit.SHA, files, repoName, commit.SHA, PhaseAfter)
	if err != nil {
		return Outcome{}, err
	}

	elapsed := p.now().Sub(start)
	record := dataset.NewDeltaRecord(commit.Dataset, commit.Agent, repoName, commit.SHA, before, after, elapsed.Seconds())

	p.Logger.InfoContext(ctx, "commit measured",
		"commit", label,
		"delta", record.Delta,
		"before", record.SmellsBefore,
		"after", record.SmellsAfter,
		"runtime_sec", record.RuntimeSec,
	)

	return Outcome{State: StateCompleted, Record: &record}, nil
}

// measure checks out ref, snapshots the changed files and counts smells. A
// failed checkout measures as zero.
func (p *Pipeline) measure(ctx context.Context, repoPath, ref string, files []string, repoName, sha, phase string) (int, error) {
	ctx, span := p.Tracer.Start(ctx, "refdelta.delta.measure", trace.WithAttributes(attribute.String("refdelta.phase", phase)))
	defer span.End()

	start := p.now()
	defer func() { p.Metrics.RecordPhase(ctx, phase, p.now().Sub(start)) }()

	ok, err := p.Repos.Checkout(ctx, repoPath, ref)
	if err != nil {
		return 0, err
	}

	if !ok {
		return 0, nil
	}

	snap, err := p.Snapshots.Acquire(ctx, repoPath, files)
	if err != nil {
		p.Logger.WarnContext(ctx, "snapshot unavailable", "ref", ref, "error", err)

		if p.Policy == procexec.Strict {
			return 0, err
		}

		return 0, nil
	}

	defer func() {
		closeErr := snap.Close()
		if closeErr != nil {
			p.Logger.WarnContext(ctx, "snapshot cleanup failed", "error", closeErr)
		}
	}()

	outDir, err := p.reportDir(repoName, sha, phase)
	if err != nil {
		return 0, err
	}

	defer os.RemoveAll(outDir)

	count, err := p.Smells.Count(ctx, snap.Dir, outDir)
	if err != nil {
		return 0, err
	}

	span.SetAttributes(attribute.Int("refdelta.smells", count), attribute.Int("refdelta.files", snap.Copied))
	p.Metrics.RecordSmells(ctx, phase, count)

	return count, nil
}

func (p *Pipeline) reportDir(repoName, sha, phase string) (string, error) {
	mkErr := os.MkdirAll(p.WorkDir, 0o755)
	if mkErr != nil {
		return "", fmt.Errorf("create work dir: %w", mkErr)
	}

	dir, err := os.MkdirTemp(p.WorkDir, fmt.Sprintf("%s_%s_%s_", repoName, abbrev(sha), phase))
	if err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}

	return dir, nil
}

func (p *Pipeline) interrupted(ctx context.Context, res *Result, keys []string, total int) error {
	p.Logger.WarnContext(ctx, "run interrupted, keeping partial results",
		"completed", res.Completed, "records", len(res.Records))

	return errors.Join(ctx.Err(), p.save(ctx, res, keys, total))
}

func (p *Pipeline) save(ctx context.Context, res *Result, keys []string, total int) error {
	if p.Checkpoint == nil {
		return nil
	}

	err := p.Checkpoint.Save(&checkpoint.Progress{Records: res.Records, Processed: keys}, total)
	if err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}

	p.Logger.DebugContext(ctx, "checkpoint saved", "processed", len(keys), "dir", p.Checkpoint.Dir())

	return nil
}

func (p *Pipeline) progress(done, total int, commit dataset.CommitRecord) {
	if p.OnProgress != nil {
		p.OnProgress(done, total, dataset.RepoDirName(commit.FullName)+"@"+abbrev(commit.SHA))
	}
}

func (p *Pipeline) defaults() {
	if p.Tracer == nil {
		p.Tracer = nooptrace.NewTracerProvider().Tracer("")
	}

	if p.Logger == nil {
		p.Logger = slog.New(slog.DiscardHandler)
	}

	if p.now == nil {
		p.now = time.Now
	}

	if p.CheckpointInterval <= 0 {
		p.CheckpointInterval = 1
	}

	if p.WorkDir == "" {
		p.WorkDir = os.TempDir()
	}
}

func abbrev(sha string) string {
	if len(sha) > shortSHA {
		return sha[:shortSHA]
	}

	return sha
}
