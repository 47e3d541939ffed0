package dataset_test

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Sumatoshi-tech/refdelta/pkg/dataset"
)

func TestAsString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"  abc ", "abc"},
		{"NaN", ""},
		{"<NA>", ""},
		{math.NaN(), ""},
		{float64(1234567), "1234567"},
		{1.5, "1.5"},
		{int64(42), "42"},
		{json.Number("7"), "7"},
		{true, "true"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, dataset.AsString(tt.in), "%#v", tt.in)
	}
}

func TestAsIntAndBool(t *testing.T) {
	t.Parallel()

	n, ok := dataset.AsInt("12")
	assert.True(t, ok)
	assert.Equal(t, int64(12), n)

	n, ok = dataset.AsInt("3.0")
	assert.True(t, ok)
	assert.Equal(t, int64(3), n)

	_, ok = dataset.AsInt("")
	assert.False(t, ok)

	_, ok = dataset.AsInt("abc")
	assert.False(t, ok)

	assert.True(t, dataset.AsBool("True"))
	assert.True(t, dataset.AsBool(true))
	assert.True(t, dataset.AsBool(int64(1)))
	assert.False(t, dataset.AsBool("False"))
	assert.False(t, dataset.AsBool(nil))
	assert.False(t, dataset.AsBool(float64(0)))
}

func TestAsStringList(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   any
		want []string
	}{
		{"nil", nil, []string{}},
		{"json", `["Extract Method","Rename Variable"]`, []string{"Extract Method", "Rename Variable"}},
		{"python", `['Extract Method', 'Rename Variable']`, []string{"Extract Method", "Rename Variable"}},
		{"numpy", `['Extract Method' 'Move Class']`, []string{"Extract Method", "Move Class"}},
		{"empty literal", "[]", []string{}},
		{"slice", []any{"A", nil, "B"}, []string{"A", "B"}},
		{"strings", []string{"X"}, []string{"X"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, dataset.AsStringList(tt.in))
		})
	}
}

func TestNamesAndRounding(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "abc123", dataset.NormalizeSHA("  ABC123\n"))

	owner, repo := dataset.SplitFullName("octo/demo")
	assert.Equal(t, "octo", owner)
	assert.Equal(t, "demo", repo)

	owner, repo = dataset.SplitFullName("solo")
	assert.Equal(t, "solo", owner)
	assert.Equal(t, "solo", repo)

	assert.Equal(t, "demo", dataset.RepoDirName("octo/demo"))
	assert.Equal(t, "demo", dataset.RepoDirName("demo"))

	assert.InDelta(t, 12.35, dataset.Round(12.345678, 2), 1e-9)
	assert.InDelta(t, -1.5, dataset.Round(-1.499, 2), 1e-9)

	rec := dataset.NewDeltaRecord("Agentic", "Codex", "octo/demo", "abc123", 5, 3, 12.3456)
	assert.Equal(t, -2, rec.Delta)
	assert.InDelta(t, 12.35, rec.RuntimeSec, 1e-9)
}
