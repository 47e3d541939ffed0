package refminer_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/refdelta/pkg/dataset"
	"github.com/Sumatoshi-tech/refdelta/pkg/procexec"
	"github.com/Sumatoshi-tech/refdelta/pkg/refminer"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeDetector writes a one-commit document to the -json target unless the
// sha is listed in failing.
func fakeDetector(t *testing.T, failing map[string]bool) procexec.Runner {
	t.Helper()

	return procexec.RunnerFunc(func(_ context.Context, spec procexec.Spec) procexec.Result {
		sha := spec.Args[len(spec.Args)-3]
		if failing[sha] {
			return procexec.Result{Outcome: procexec.ToolFailure, ExitCode: 1, Stderr: "boom"}
		}

		doc := `{"commits":[{"repository":"r","sha1":"` + sha + `","refactorings":[{"type":"Rename Method"}]}]}`
		if err := os.WriteFile(spec.Args[len(spec.Args)-1], []byte(doc), 0o600); err != nil {
			t.Errorf("write fake output: %v", err)
		}

		return procexec.Result{Outcome: procexec.Success}
	})
}

func newDetector(t *testing.T, runner procexec.Runner, policy procexec.FailurePolicy) *refminer.Detector {
	t.Helper()

	return &refminer.Detector{
		Runner:  runner,
		Policy:  policy,
		Logger:  discardLogger(),
		Home:    "/opt/rm",
		Main:    "org.refactoringminer.RefactoringMiner",
		TempDir: t.TempDir(),
	}
}

func TestDetectorSpec(t *testing.T) {
	t.Parallel()

	d := &refminer.Detector{Home: "/opt/rm", Main: "org.refactoringminer.RefactoringMiner"}
	spec := d.Spec("/repos/demo", "abc123", "/tmp/out.json")

	assert.Equal(t, "java", spec.Name)
	assert.Equal(t, "-cp", spec.Args[0])
	assert.Equal(t, "/opt/rm/bin"+string(os.PathListSeparator)+"/opt/rm/lib/*", spec.Args[1])
	assert.Equal(t, []string{"org.refactoringminer.RefactoringMiner", "-c", "/repos/demo", "abc123", "-json", "/tmp/out.json"}, spec.Args[2:])
}

func TestBatchRun(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "demo"), 0o755))

	var progress []string

	batch := &refminer.Batch{
		Detector: newDetector(t, fakeDetector(t, map[string]bool{"bad000001": true}), procexec.Degrade),
		RepoRoot: root,
		Logger:   discardLogger(),
		Dataset:  "Agentic",
		OnProgress: func(done, total int, label string) {
			progress = append(progress, label)
			assert.Equal(t, 4, total)
			assert.LessOrEqual(t, done, total)
		},
	}

	commits := []dataset.CommitRecord{
		{SHA: "abc123", FullName: "octo/demo"},
		{SHA: "bad000001", FullName: "octo/demo"},
		{SHA: "fff999", FullName: "octo/absent"},
		{SHA: "def456", FullName: "octo/demo"},
	}

	report, err := batch.Run(context.Background(), commits)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, 1, report.Missing)
	assert.Len(t, report.Repos, 1)
	assert.Equal(t, []refminer.Failure{{Repo: "demo", SHA: "bad000001"}}, report.Failed)
	require.Len(t, report.Output.Commits, 2)
	assert.Equal(t, "def456", report.Output.Commits[1].SHA1)
	assert.Equal(t, []string{"demo@abc123", "demo@bad00000", "absent@fff999", "demo@def456"}, progress)

	summary := report.Summary(10)
	assert.Contains(t, summary, "Total successful commits: 2")
	assert.Contains(t, summary, " - demo (bad00000)")
}

func TestBatchRun_StrictPolicyStops(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "demo"), 0o755))

	batch := &refminer.Batch{
		Detector: newDetector(t, fakeDetector(t, map[string]bool{"abc123": true}), procexec.Strict),
		RepoRoot: root,
		Logger:   discardLogger(),
	}

	report, err := batch.Run(context.Background(), []dataset.CommitRecord{
		{SHA: "abc123", FullName: "octo/demo"},
		{SHA: "def456", FullName: "octo/demo"},
	})
	require.ErrorIs(t, err, procexec.ErrToolFailed)
	assert.Zero(t, report.Succeeded)
}

// garbledDetector succeeds but writes output the schema rejects for the shas
// in garbled, and a valid document otherwise.
func garbledDetector(t *testing.T, garbled map[string]bool) procexec.Runner {
	t.Helper()

	valid := fakeDetector(t, nil)

	return procexec.RunnerFunc(func(ctx context.Context, spec procexec.Spec) procexec.Result {
		sha := spec.Args[len(spec.Args)-3]
		if !garbled[sha] {
			return valid.Run(ctx, spec)
		}

		if err := os.WriteFile(spec.Args[len(spec.Args)-1], []byte(`{"commits":"nope"}`), 0o600); err != nil {
			t.Errorf("write fake output: %v", err)
		}

		return procexec.Result{Outcome: procexec.Success}
	})
}

func TestBatchRun_InvalidOutputIsRecordedAsFailure(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "demo"), 0o755))

	batch := &refminer.Batch{
		Detector: newDetector(t, garbledDetector(t, map[string]bool{"abc123": true}), procexec.Degrade),
		RepoRoot: root,
		Logger:   discardLogger(),
	}

	report, err := batch.Run(context.Background(), []dataset.CommitRecord{
		{SHA: "abc123", FullName: "octo/demo"},
		{SHA: "def456", FullName: "octo/demo"},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, []refminer.Failure{{Repo: "demo", SHA: "abc123"}}, report.Failed)
	require.Len(t, report.Output.Commits, 1)
	assert.Equal(t, "def456", report.Output.Commits[0].SHA1)
}

func TestBatchRun_InvalidOutputStopsStrictRun(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "demo"), 0o755))

	batch := &refminer.Batch{
		Detector: newDetector(t, garbledDetector(t, map[string]bool{"abc123": true}), procexec.Strict),
		RepoRoot: root,
		Logger:   discardLogger(),
	}

	report, err := batch.Run(context.Background(), []dataset.CommitRecord{
		{SHA: "abc123", FullName: "octo/demo"},
		{SHA: "def456", FullName: "octo/demo"},
	})
	require.ErrorIs(t, err, refminer.ErrInvalidOutput)
	assert.Zero(t, report.Succeeded)
	assert.Empty(t, report.Failed)
}

func TestBatchRun_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	batch := &refminer.Batch{
		Detector: newDetector(t, fakeDetector(t, nil), procexec.Degrade),
		RepoRoot: t.TempDir(),
		Logger:   discardLogger(),
	}

	report, err := batch.Run(ctx, []dataset.CommitRecord{{SHA: "abc123", FullName: "octo/demo"}})
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, report.Succeeded+report.Missing)
}

func TestDetect_NoOutputFileYieldsNothing(t *testing.T) {
	t.Parallel()

	runner := procexec.RunnerFunc(func(_ context.Context, spec procexec.Spec) procexec.Result {
		assert.True(t, strings.HasSuffix(spec.Args[len(spec.Args)-1], ".json"))

		return procexec.Result{Outcome: procexec.Success}
	})

	commits, res, err := newDetector(t, runner, procexec.Degrade).Detect(context.Background(), "/repo", "abc")
	require.NoError(t, err)
	assert.True(t, res.OK())
	assert.Empty(t, commits)
}
