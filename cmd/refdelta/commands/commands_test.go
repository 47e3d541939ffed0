package commands

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/Sumatoshi-tech/refdelta/pkg/config"
	"github.com/Sumatoshi-tech/refdelta/pkg/dataset"
	"github.com/Sumatoshi-tech/refdelta/pkg/observability"
	"github.com/Sumatoshi-tech/refdelta/pkg/procexec"
	"github.com/Sumatoshi-tech/refdelta/pkg/summary"
	"github.com/Sumatoshi-tech/refdelta/pkg/version"
)

// testRuntime returns a factory whose Runtime keeps every path under dir and
// sends external tools to runner.
func testRuntime(t *testing.T, dir string, runner procexec.Runner) runtimeFactory {
	t.Helper()

	cfgPath := filepath.Join(dir, "refdelta.yaml")
	cfgDoc := fmt.Sprintf(`paths:
  data_dir: %[1]s/data
  tables_dir: %[1]s/tables
  logs_dir: %[1]s/logs
  temp_dir: %[1]s/tmp
  agentic_repo_dir: %[1]s/repos/agentic
  human_repo_dir: %[1]s/repos/human
`, dir)
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfgDoc), 0o600))

	return func(_ context.Context, _ *Options, _ observability.AppMode) (*Runtime, error) {
		cfg, err := config.LoadConfig(cfgPath)
		if err != nil {
			return nil, err
		}

		return &Runtime{
			Config: cfg,
			Logger: slog.New(slog.DiscardHandler),
			Tracer: nooptrace.NewTracerProvider().Tracer(""),
			Runner: runner,
			Policy: procexec.Degrade,
			RunID:  "test-run",
		}, nil
	}
}

func failingRunner(t *testing.T) procexec.Runner {
	t.Helper()

	return procexec.RunnerFunc(func(context.Context, procexec.Spec) procexec.Result {
		return procexec.Result{Outcome: procexec.ToolFailure, ExitCode: 128, Stderr: "fatal: repository not found"}
	})
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

// run executes cmd with args and returns stdout and stderr.
func run(t *testing.T, cmd *cobra.Command, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer

	cmd.SetArgs(args)
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)

	err := cmd.ExecuteContext(context.Background())

	return stdout.String(), stderr.String(), err
}

func TestVersionCommand(t *testing.T) {
	t.Parallel()

	stdout, _, err := run(t, NewVersionCommand())
	require.NoError(t, err)
	assert.Equal(t, "refdelta "+version.String()+"\n", stdout)
}

func TestPrepareCommand(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	repos := writeFile(t, filepath.Join(dir, "in", "repos.csv"),
		"id,full_name,language,url\n1,octo/demo,Java,https://github.com/octo/demo\n2,octo/web,TypeScript,https://github.com/octo/web\n")
	prs := writeFile(t, filepath.Join(dir, "in", "prs.csv"),
		"id,repo_id,number,agent\n10,1,7,Codex\n11,2,8,Devin\n12,1,9,\n")
	commits := writeFile(t, filepath.Join(dir, "in", "commits.csv"),
		"sha,pr_id\naaa111,10\nbbb222,11\nccc333,12\n")
	output := filepath.Join(dir, "out", "meta.csv")

	stdout, _, err := run(t, newPrepareCommand(&Options{}, testRuntime(t, dir, failingRunner(t))),
		"--repositories", repos, "--pull-requests", prs, "--commits", commits, "-o", output)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Wrote 1 commits (Java) to "+output)

	rows, err := readCommits(output, dataset.CommitMetadataSchema, "")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "aaa111", rows[0].SHA)
	assert.Equal(t, "Codex", rows[0].Agent)
	assert.Equal(t, "octo/demo", rows[0].FullName)
}

func TestPrepareCommand_RequiresInputs(t *testing.T) {
	t.Parallel()

	_, _, err := run(t, newPrepareCommand(&Options{}, testRuntime(t, t.TempDir(), failingRunner(t))))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

func TestDetectCommand(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "repos", "agentic", "demo"), 0o750))

	meta := writeFile(t, filepath.Join(dir, "meta.csv"),
		"sha,full_name,agent\naaa111,octo/demo,Codex\nbbb222,octo/gone,Devin\n")
	output := filepath.Join(dir, "out", "detector.json")

	runner := procexec.RunnerFunc(func(_ context.Context, spec procexec.Spec) procexec.Result {
		sha := spec.Args[len(spec.Args)-3]
		doc := `{"commits":[{"repository":"https://github.com/octo/demo.git","sha1":"` + sha +
			`","refactorings":[{"type":"Extract Method"}]}]}`

		if err := os.WriteFile(spec.Args[len(spec.Args)-1], []byte(doc), 0o600); err != nil {
			t.Errorf("write detector output: %v", err)
		}

		return procexec.Result{Outcome: procexec.Success}
	})

	stdout, _, err := run(t, newDetectCommand(&Options{}, testRuntime(t, dir, runner)),
		"--commits", meta, "-o", output, "--no-progress")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Total successful commits: 1")
	assert.Contains(t, stdout, "Commits skipped (repository missing): 1")
	assert.Contains(t, stdout, "Results saved to "+output)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Contains(t, string(data), "aaa111")
	assert.NotContains(t, string(data), "bbb222")
}

func TestDetectCommand_UnknownDataset(t *testing.T) {
	t.Parallel()

	_, _, err := run(t, newDetectCommand(&Options{}, testRuntime(t, t.TempDir(), failingRunner(t))),
		"--commits", "meta.csv", "--dataset", "robots")
	require.ErrorIs(t, err, ErrUnknownDataset)
}

const reconcileDetectorDoc = `{"commits": [
  {"repository": "https://github.com/octo/demo.git", "sha1": "aaa111", "refactorings": [
    {"type": "Rename Method"}, {"type": "Extract Method"}, {"type": "Rename Method"}
  ]}
]}`

func TestReconcileCommand_Agentic(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	meta := writeFile(t, filepath.Join(dir, "meta.csv"),
		"sha,pr_id,number,full_name,agent\naaa111,1,7,octo/demo,Codex\naaa111,2,8,octo/demo,Codex\nbbb222,3,9,octo/demo,Devin\n")
	detector := writeFile(t, filepath.Join(dir, "detector.json"), reconcileDetectorDoc)
	commitsOut := filepath.Join(dir, "out", "commits.csv")
	eventsOut := filepath.Join(dir, "out", "events.csv")

	stdout, _, err := run(t, newReconcileCommand(&Options{}, testRuntime(t, dir, failingRunner(t))),
		"--metadata", meta, "--detector", detector, "--commits-out", commitsOut, "--events-out", eventsOut)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Total commits: 2")
	assert.Contains(t, stdout, "Commits with refactoring: 1 (50.00%)")
	assert.Contains(t, stdout, "Rename Method")

	commits, err := readCommits(commitsOut, dataset.ReconciledCommitSchema, "")
	require.NoError(t, err)
	require.Len(t, commits, 2)

	for _, c := range commits {
		assert.Equal(t, config.DatasetAgentic, c.Dataset)
	}

	// Events repeat once per metadata row of their commit (PRs 1 and 2).
	events, err := readEvents(eventsOut, "")
	require.NoError(t, err)
	assert.Len(t, events, 6)
}

func TestReconcileCommand_BaselineJSON(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	meta := writeFile(t, filepath.Join(dir, "meta.csv"),
		"sha,full_name\naaa111,octo/demo\nbbb222,octo/demo\n")
	detector := writeFile(t, filepath.Join(dir, "detector.json"), reconcileDetectorDoc)

	stdout, _, err := run(t, newReconcileCommand(&Options{}, testRuntime(t, dir, failingRunner(t))),
		"--metadata", meta, "--detector", detector, "--mode", "baseline", "--format", "json",
		"--commits-out", filepath.Join(dir, "c.csv"), "--events-out", filepath.Join(dir, "e.csv"))
	require.NoError(t, err)
	assert.Contains(t, stdout, `"commits": 1`)
	assert.Contains(t, stdout, `"refactoring_commits": 1`)

	commits, err := readCommits(filepath.Join(dir, "c.csv"), dataset.ReconciledCommitSchema, "")
	require.NoError(t, err)
	require.Len(t, commits, 1)
	assert.Equal(t, config.DatasetHuman, commits[0].Dataset)
}

func TestReconcileCommand_UnknownMode(t *testing.T) {
	t.Parallel()

	_, _, err := run(t, newReconcileCommand(&Options{}, testRuntime(t, t.TempDir(), failingRunner(t))),
		"--metadata", "m.csv", "--detector", "d.json", "--mode", "sideways")
	require.ErrorIs(t, err, ErrUnknownMode)
}

func TestNormalizeCommand(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	population := writeFile(t, filepath.Join(dir, "population.csv"),
		"sha,full_name\naaa111,octo/demo\nbbb222,octo/demo\nccc333,octo/web\n")
	subset := writeFile(t, filepath.Join(dir, "subset.csv"),
		"sha,full_name,agent,dataset,has_refactoring,refactoring_count,unique_types\naaa111,octo/demo,Human,Human,true,2,\"[\"\"Move Class\"\"]\"\n")
	output := filepath.Join(dir, "normalized.csv")

	stdout, _, err := run(t, newNormalizeCommand(&Options{}, testRuntime(t, dir, failingRunner(t))),
		"--population", population, "--subset", subset, "-o", output)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Added 2 placeholder commits, 3 rows written")

	rows, err := readCommits(output, dataset.ReconciledCommitSchema, "")
	require.NoError(t, err)
	require.Len(t, rows, 3)

	refactoring := 0

	for _, r := range rows {
		assert.Equal(t, config.DatasetHuman, r.Agent)
		assert.Equal(t, config.DatasetHuman, r.Dataset)

		if r.HasRefactoring {
			refactoring++
		}
	}

	assert.Equal(t, 1, refactoring)
}

func TestDeltasCommand_RequiresInput(t *testing.T) {
	t.Parallel()

	_, _, err := run(t, newDeltasCommand(&Options{}, testRuntime(t, t.TempDir(), failingRunner(t))))
	require.ErrorIs(t, err, ErrNoDeltaInput)
}

func TestDeltasCommand_SkipsUnavailableRepositories(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	agentic := writeFile(t, filepath.Join(dir, "agentic.csv"),
		"sha,full_name,agent,has_refactoring,refactoring_count\n"+
			"aaa111,octo/demo,Codex,true,2\n"+
			"bbb222,octo/demo,Codex,false,0\n")

	var specs []procexec.Spec

	runner := procexec.RunnerFunc(func(_ context.Context, spec procexec.Spec) procexec.Result {
		specs = append(specs, spec)

		return procexec.Result{Outcome: procexec.ToolFailure, ExitCode: 128, Stderr: "fatal: repository not found"}
	})

	stdout, _, err := run(t, newDeltasCommand(&Options{}, testRuntime(t, dir, runner)),
		"--agentic", agentic, "--no-progress")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Measured 0 of 1 refactoring commits")
	assert.Contains(t, stdout, "Skipped: materialize_failed=1")

	require.Len(t, specs, 1)
	assert.Contains(t, specs[0].Args, "clone")

	output := filepath.Join(dir, "data", defaultDeltasOutput)
	assert.FileExists(t, output)
}

func TestDeltasCommand_CheckpointIsClearedAfterCompleteRun(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	agentic := writeFile(t, filepath.Join(dir, "agentic.csv"),
		"sha,full_name,agent,has_refactoring\naaa111,octo/demo,Codex,true\n")
	checkpoints := filepath.Join(dir, "checkpoints")

	_, _, err := run(t, newDeltasCommand(&Options{}, testRuntime(t, dir, failingRunner(t))),
		"--agentic", agentic, "--checkpoint", "--checkpoint-dir", checkpoints, "--no-progress")
	require.NoError(t, err)

	entries, err := os.ReadDir(checkpoints)
	if err == nil {
		for _, e := range entries {
			sub, subErr := os.ReadDir(filepath.Join(checkpoints, e.Name()))
			require.NoError(t, subErr)
			assert.Empty(t, sub)
		}
	}
}

const deltasCSV = `dataset,agent,repo,commit,smells_before,smells_after,delta,runtime_sec
Agentic,Codex,octo_demo,a1,5,3,-2,1.5
Agentic,Codex,octo_demo,a2,4,4,0,1.0
Agentic,Codex,octo_web,a3,2,5,3,2.0
Human,Human,apache_x,h1,6,6,0,1.1
Human,Human,apache_x,h2,3,4,1,0.9
Human,Human,apache_y,h3,7,7,0,1.3
`

func TestSummaryCommand_WritesTables(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	deltas := writeFile(t, filepath.Join(dir, "deltas.csv"), deltasCSV)
	tables := filepath.Join(dir, "out")

	stdout, stderr, err := run(t, newSummaryCommand(&Options{}, testRuntime(t, dir, failingRunner(t))),
		"--deltas", deltas, "--tables-dir", tables, "--format", "json")
	require.NoError(t, err)
	assert.Contains(t, stdout, `"smells"`)
	assert.Contains(t, stderr, "Saved ")

	assert.FileExists(t, filepath.Join(tables, summary.FileSmellSummary))
	assert.FileExists(t, filepath.Join(tables, summary.FileAgentVsHuman))
	assert.NoFileExists(t, filepath.Join(tables, summary.FileProjectRates))
}

func TestSummaryCommand_NoWrite(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	deltas := writeFile(t, filepath.Join(dir, "deltas.csv"), deltasCSV)

	stdout, stderr, err := run(t, newSummaryCommand(&Options{}, testRuntime(t, dir, failingRunner(t))),
		"--deltas", deltas, "--no-write")
	require.NoError(t, err)
	assert.Contains(t, strings.ToLower(stdout), "codex")
	assert.Empty(t, stderr)
	assert.NoDirExists(t, filepath.Join(dir, "tables"))
}

func TestSummaryCommand_UnknownFormat(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	deltas := writeFile(t, filepath.Join(dir, "deltas.csv"), deltasCSV)

	_, _, err := run(t, newSummaryCommand(&Options{}, testRuntime(t, dir, failingRunner(t))),
		"--deltas", deltas, "--format", "xml", "--no-write")
	require.ErrorIs(t, err, summary.ErrUnknownFormat)
}
