package dataset_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/refdelta/pkg/dataset"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestReadTable_CSV(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "commits.csv",
		"\ufeffsha,pr_id,full_name,agent,has_refactoring,refactoring_count,unique_types\n"+
			"ABC123,11,octo/demo,Codex,True,2,\"['Extract Method', 'Rename Variable']\"\n"+
			"def456,12,octo/demo,Codex,False,0,[]\n")

	table, err := dataset.ReadTable(path)
	require.NoError(t, err)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "sha", table.Columns[0])

	commits, err := dataset.DecodeCommits(table, dataset.ReconciledCommitSchema)
	require.NoError(t, err)

	assert.Equal(t, "abc123", commits[0].SHA)
	assert.True(t, commits[0].HasRefactoring)
	assert.Equal(t, 2, commits[0].RefactoringCount)
	assert.Equal(t, []string{"Extract Method", "Rename Variable"}, commits[0].UniqueTypes)
	assert.Equal(t, "octo", commits[0].Owner)
	assert.Equal(t, "demo", commits[0].Repo)
	assert.False(t, commits[1].HasRefactoring)
	assert.Empty(t, commits[1].UniqueTypes)
}

func TestReadTable_JSONAndJSONL(t *testing.T) {
	t.Parallel()

	jsonPath := writeFile(t, "meta.json", `[{"sha":"a1","pr_id":5,"number":17,"agent":"Devin"},{"sha":"b2","pr_id":6,"extra":true}]`)

	table, err := dataset.ReadTable(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"agent", "number", "pr_id", "sha", "extra"}, table.Columns)

	commits, err := dataset.DecodeCommits(table, dataset.CommitMetadataSchema)
	require.NoError(t, err)
	assert.Equal(t, "5", commits[0].PRID)
	assert.Equal(t, int64(17), commits[0].Number)
	assert.Equal(t, "Devin", commits[0].Agent)

	linesPath := writeFile(t, "meta.jsonl", "{\"sha\":\"a1\",\"agent\":\"Devin\"}\n\n{\"sha\":\"b2\",\"agent\":\"Codex\"}\n")

	table, err = dataset.ReadTable(linesPath)
	require.NoError(t, err)
	assert.Len(t, table.Rows, 2)
}

func TestReadTable_Unsupported(t *testing.T) {
	t.Parallel()

	_, err := dataset.ReadTable(writeFile(t, "data.xlsx", ""))
	require.ErrorIs(t, err, dataset.ErrUnsupportedFormat)
}

func TestWrite_ParquetRoundTripThroughGenericReader(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out", "commits.parquet")
	rows := []dataset.CommitRecord{
		{SHA: "abc123", PRID: "11", Number: 3, FullName: "octo/demo", Agent: "Codex", HasRefactoring: true, RefactoringCount: 2, UniqueTypes: []string{"Extract Method", "Rename Variable"}},
		{SHA: "def456", PRID: "12", FullName: "octo/demo", Agent: "Codex", UniqueTypes: []string{}},
	}

	require.NoError(t, dataset.Write(path, rows))

	typed, err := dataset.ReadParquetRecords[dataset.CommitRecord](path)
	require.NoError(t, err)
	require.Len(t, typed, 2)
	assert.Equal(t, rows[0].UniqueTypes, typed[0].UniqueTypes)

	table, err := dataset.ReadTable(path)
	require.NoError(t, err)

	decoded, err := dataset.DecodeCommits(table, dataset.ReconciledCommitSchema)
	require.NoError(t, err)
	require.Len(t, decoded, 2)

	assert.Equal(t, "abc123", decoded[0].SHA)
	assert.Equal(t, int64(3), decoded[0].Number)
	assert.True(t, decoded[0].HasRefactoring)
	assert.Equal(t, []string{"Extract Method", "Rename Variable"}, decoded[0].UniqueTypes)
	assert.Empty(t, decoded[1].UniqueTypes)
}

func TestWrite_CSVDeltas(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "smell_deltas_per_commit.csv")
	rows := []dataset.DeltaRecord{
		dataset.NewDeltaRecord("Agentic", "Codex", "octo/demo", "abc123", 5, 3, 4.321),
		dataset.NewDeltaRecord("Human", "Human", "octo/base", "def456", 0, 7, 1),
	}

	require.NoError(t, dataset.Write(path, rows))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t,
		"dataset,agent,repo,commit,smells_before,smells_after,delta,runtime_sec\n"+
			"Agentic,Codex,octo/demo,abc123,5,3,-2,4.32\n"+
			"Human,Human,octo/base,def456,0,7,7,1\n",
		string(content))

	table, err := dataset.ReadTable(path)
	require.NoError(t, err)

	decoded, err := dataset.DecodeDeltas(table)
	require.NoError(t, err)
	assert.Equal(t, rows, decoded)
}

func TestWriteTable_CSVAndJSON(t *testing.T) {
	t.Parallel()

	table := &dataset.Table{
		Columns: []string{"agent", "mean"},
		Rows:    []dataset.Row{{"agent": "Codex", "mean": 1.25}, {"agent": "Human"}},
	}

	csvPath := filepath.Join(t.TempDir(), "t.csv")
	require.NoError(t, dataset.WriteTable(csvPath, table))

	content, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	assert.Equal(t, "agent,mean\nCodex,1.25\nHuman,\n", string(content))

	jsonPath := filepath.Join(t.TempDir(), "t.json")
	require.NoError(t, dataset.WriteTable(jsonPath, table))

	back, err := dataset.ReadTable(jsonPath)
	require.NoError(t, err)
	assert.Len(t, back.Rows, 2)

	require.ErrorIs(t, dataset.WriteTable(filepath.Join(t.TempDir(), "t.parquet"), table), dataset.ErrUnsupportedFormat)
}
