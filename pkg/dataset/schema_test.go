package dataset_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/refdelta/pkg/dataset"
)

func TestSchemaBind_Aliases(t *testing.T) {
	t.Parallel()

	b, err := dataset.CommitMetadataSchema.Bind([]string{"Commit", "pr_id", "full_name", "agent"})
	require.NoError(t, err)

	assert.True(t, b.Has(dataset.FieldSHA))
	assert.Equal(t, "Commit", b.Column(dataset.FieldSHA))
	assert.False(t, b.Has(dataset.FieldLanguage))

	row := dataset.Row{"Commit": "ABC", "pr_id": "9", "full_name": "octo/demo", "agent": "Codex"}
	assert.Equal(t, "ABC", b.String(row, dataset.FieldSHA))
	assert.Nil(t, b.Get(row, dataset.FieldLanguage))
}

func TestSchemaBind_PrefersCanonicalName(t *testing.T) {
	t.Parallel()

	b, err := dataset.CommitMetadataSchema.Bind([]string{"commit", "sha"})
	require.NoError(t, err)
	assert.Equal(t, "sha", b.Column(dataset.FieldSHA))
}

func TestSchemaBind_MissingRequired(t *testing.T) {
	t.Parallel()

	_, err := dataset.CommitMetadataSchema.Bind([]string{"pr_id", "agent"})
	require.ErrorIs(t, err, dataset.ErrMissingColumn)
	assert.Contains(t, err.Error(), "sha")

	_, err = dataset.DeltaSchema.Bind([]string{"dataset", "agent", "commit"})
	require.ErrorIs(t, err, dataset.ErrMissingColumn)
}
