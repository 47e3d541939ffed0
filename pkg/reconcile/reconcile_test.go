package reconcile_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/refdelta/pkg/dataset"
	"github.com/Sumatoshi-tech/refdelta/pkg/reconcile"
	"github.com/Sumatoshi-tech/refdelta/pkg/refminer"
)

func detectorOutput(t *testing.T, doc string) *refminer.Output {
	t.Helper()

	out, err := refminer.Parse([]byte(doc))
	require.NoError(t, err)

	return out
}

const agenticDoc = `{"commits": [
  {"repository": "https://github.com/octo/demo.git", "sha1": "AAA111", "refactorings": [
    {"type": "Rename Method"}, {"type": "Extract Method"}, {"type": "Rename Method"}
  ]},
  {"repository": "https://github.com/octo/other.git", "sha1": "ccc333", "refactorings": [{"type": "Move Class"}]},
  {"repository": "https://github.com/octo/demo.git", "sha1": "eee555", "refactorings": []}
]}`

func agenticMeta() []dataset.CommitRecord {
	return []dataset.CommitRecord{
		{SHA: "aaa111", PRID: "1", Number: 7, FullName: "octo/demo", Agent: "Codex"},
		{SHA: "aaa111", PRID: "1", Number: 7, FullName: "octo/demo", Agent: "Codex"},
		{SHA: "aaa111", PRID: "2", Number: 8, FullName: "octo/demo", Agent: "Codex"},
		{SHA: "bbb222", PRID: "3", Number: 9, FullName: "octo/demo", Agent: "Devin"},
	}
}

func bySHA(commits []dataset.CommitRecord) map[string]dataset.CommitRecord {
	out := make(map[string]dataset.CommitRecord, len(commits))
	for _, c := range commits {
		if _, ok := out[c.SHA]; !ok {
			out[c.SHA] = c
		}
	}

	return out
}

func TestAgentic_JoinsAggregatesAndDefaults(t *testing.T) {
	t.Parallel()

	res := reconcile.Agentic(agenticMeta(), detectorOutput(t, agenticDoc), reconcile.Options{Dataset: "Agentic"})
	commits := bySHA(res.Commits)

	matched := commits["aaa111"]
	assert.True(t, matched.HasRefactoring)
	assert.Equal(t, 3, matched.RefactoringCount)
	assert.Equal(t, []string{"Extract Method", "Rename Method"}, matched.UniqueTypes)
	assert.Equal(t, "octo", matched.Owner)
	assert.Equal(t, "demo", matched.Repo)
	assert.Equal(t, "Agentic", matched.Dataset)

	unmatched := commits["bbb222"]
	assert.False(t, unmatched.HasRefactoring)
	assert.Zero(t, unmatched.RefactoringCount)
	assert.NotNil(t, unmatched.UniqueTypes)
	assert.Empty(t, unmatched.UniqueTypes)
	assert.Equal(t, "Devin", unmatched.Agent)
}

func TestAgentic_CommitSetIsUnion(t *testing.T) {
	t.Parallel()

	res := reconcile.Agentic(agenticMeta(), detectorOutput(t, agenticDoc), reconcile.Options{Dataset: "Agentic"})

	shas := make([]string, 0, len(res.Commits))
	for _, c := range res.Commits {
		shas = append(shas, c.SHA)
	}

	assert.ElementsMatch(t, []string{"aaa111", "bbb222", "ccc333", "eee555"}, shas)

	orphan := bySHA(res.Commits)["ccc333"]
	assert.Empty(t, orphan.Agent)
	assert.Empty(t, orphan.FullName)
	assert.Equal(t, 1, orphan.RefactoringCount)
	assert.Equal(t, 5, res.RowsBeforeDedup)
}

func TestAgentic_EventsJoinContext(t *testing.T) {
	t.Parallel()

	res := reconcile.Agentic(agenticMeta(), detectorOutput(t, agenticDoc), reconcile.Options{Dataset: "Agentic"})

	// three events of aaa111 joined to two metadata rows, plus the orphan's event
	require.Len(t, res.Events, 7)

	var prIDs []string

	for _, ev := range res.Events {
		if ev.SHA == "aaa111" {
			prIDs = append(prIDs, ev.PRID)
			assert.Equal(t, "Codex", ev.Agent)
		}
	}

	assert.ElementsMatch(t, []string{"1", "2", "1", "2", "1", "2"}, prIDs)

	last := res.Events[len(res.Events)-1]
	assert.Equal(t, "ccc333", last.SHA)
	assert.Equal(t, "octo/other", last.DetectorRepo)
	assert.Empty(t, last.PRID)
	assert.Equal(t, "Agentic", last.Dataset)
}

func TestDedup_Idempotent(t *testing.T) {
	t.Parallel()

	rows := []dataset.CommitRecord{
		{SHA: "a", Agent: "Codex", FullName: "o/r1", PRID: "1"},
		{SHA: "a", Agent: "Codex", FullName: "o/r2", PRID: "2"},
		{SHA: "a", Agent: "Devin", FullName: "o/r1"},
		{SHA: "b", Agent: "Codex"},
	}

	once := reconcile.Dedup(rows, false)
	assert.Len(t, once, 3)
	assert.Equal(t, "1", once[0].PRID)
	assert.Equal(t, once, reconcile.Dedup(once, false))

	byRepo := reconcile.Dedup(rows, true)
	assert.Len(t, byRepo, 4)
	assert.Equal(t, byRepo, reconcile.Dedup(byRepo, true))
}

func TestBaseline_InnerJoinAsHuman(t *testing.T) {
	t.Parallel()

	doc := `{"commits": [
	  {"sha1": "h1", "refactorings": [{"type": "Move Method"}]},
	  {"sha1": "h2", "refactorings": []},
	  {"sha1": "h9", "refactorings": [{"type": "Move Method"}]}
	]}`

	meta := []dataset.CommitRecord{
		{SHA: "h1", PRID: "10", FullName: "acme/core"},
		{SHA: "h1", PRID: "10", FullName: "acme/core"},
		{SHA: "h1", PRID: "11", FullName: "acme/core"},
		{SHA: "h2", PRID: "12", FullName: "acme/core"},
		{SHA: "h3", PRID: "13", FullName: "acme/core"},
	}

	res := reconcile.Baseline(meta, detectorOutput(t, doc), reconcile.Options{Dataset: "Human"})
	require.Len(t, res.Commits, 3)

	for _, c := range res.Commits {
		assert.Equal(t, "Human", c.Agent)
		assert.Equal(t, "acme", c.Owner)
		assert.NotEqual(t, "h3", c.SHA)
		assert.NotEqual(t, "h9", c.SHA)
	}

	assert.True(t, res.Commits[0].HasRefactoring)
	assert.False(t, res.Commits[2].HasRefactoring)
	assert.Equal(t, 4, res.RowsBeforeDedup)
}

func TestNormalize_AppendsPlaceholders(t *testing.T) {
	t.Parallel()

	population := []dataset.CommitRecord{
		{SHA: "h1", PRID: "10", FullName: "acme/core"},
		{SHA: "h2", PRID: "12", FullName: "acme/core", Number: 4},
		{SHA: "h3", PRID: "13", FullName: "acme/core", Language: "Java"},
	}
	subset := []dataset.CommitRecord{
		{SHA: "h1", PRID: "10", FullName: "acme/core", Agent: "Human", HasRefactoring: true, RefactoringCount: 2, UniqueTypes: []string{"Move Method"}},
	}

	out, added := reconcile.Normalize(population, subset, "Human", "Human")
	require.Len(t, out, 3)
	assert.Equal(t, 2, added)

	assert.Equal(t, subset[0], out[0])

	placeholder := out[2]
	assert.Equal(t, "h3", placeholder.SHA)
	assert.Equal(t, "Java", placeholder.Language)
	assert.Equal(t, "Human", placeholder.Agent)
	assert.Equal(t, "Human", placeholder.Dataset)
	assert.False(t, placeholder.HasRefactoring)
	assert.Zero(t, placeholder.RefactoringCount)
	assert.Equal(t, []string{}, placeholder.UniqueTypes)
	assert.Equal(t, int64(4), out[1].Number)

	again, addedAgain := reconcile.Normalize(population, out, "Human", "Human")
	assert.Zero(t, addedAgain)
	assert.Equal(t, out, again)
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	out := detectorOutput(t, agenticDoc)
	res := reconcile.Agentic(agenticMeta(), out, reconcile.Options{Dataset: "Agentic"})

	s := reconcile.Summarize(res.Commits, out.Events())
	assert.Equal(t, 4, s.Commits)
	assert.Equal(t, 2, s.RefactoringCommits)
	assert.InDelta(t, 50.0, s.RefactoringPct, 1e-9)
	assert.InDelta(t, 2.0, s.MeanPerRefCommit, 1e-9)
	assert.Equal(t, 4, s.Events)
	assert.Equal(t, 2, s.EventCommits)
	assert.Equal(t, []reconcile.TypeCount{
		{Type: "Rename Method", Count: 2},
		{Type: "Extract Method", Count: 1},
		{Type: "Move Class", Count: 1},
	}, s.TopTypes)
}
