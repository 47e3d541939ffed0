package persist

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testState struct {
	Name   string         `json:"name"`
	Count  int            `json:"count"`
	Values map[string]int `json:"values"`
}

func TestJSONCodec_RoundTrip(t *testing.T) {
	t.Parallel()

	codec := NewJSONCodec()
	original := testState{Name: "run", Count: 42, Values: map[string]int{"a": 1, "b": 2}}

	var buf bytes.Buffer

	require.NoError(t, codec.Encode(&buf, original))
	assert.Contains(t, buf.String(), "\n  \"name\"")

	var decoded testState

	require.NoError(t, codec.Decode(&buf, &decoded))
	assert.Equal(t, original, decoded)
	assert.Equal(t, ".json", codec.Extension())
}

func TestLZ4Codec_RoundTrip(t *testing.T) {
	t.Parallel()

	codec := NewLZ4JSONCodec()
	original := testState{Name: strings.Repeat("abc", 500), Count: 7}

	var buf bytes.Buffer

	require.NoError(t, codec.Encode(&buf, original))
	assert.Less(t, buf.Len(), len(original.Name))

	var decoded testState

	require.NoError(t, codec.Decode(&buf, &decoded))
	assert.Equal(t, original, decoded)
	assert.Equal(t, ".json.lz4", codec.Extension())
}

func TestLZ4Codec_DecodeGarbage(t *testing.T) {
	t.Parallel()

	var decoded testState

	err := NewLZ4JSONCodec().Decode(strings.NewReader("not an lz4 frame"), &decoded)
	require.Error(t, err)
}

func TestSaveLoadState(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	codec := NewLZ4JSONCodec()

	require.NoError(t, SaveState(dir, "state", codec, testState{Name: "x", Count: 3}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "state.json.lz4", entries[0].Name())

	var loaded testState

	require.NoError(t, LoadState(dir, "state", codec, &loaded))
	assert.Equal(t, 3, loaded.Count)
}

func TestSaveState_EncodeFailureLeavesNoFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	err := SaveState(dir, "state", NewJSONCodec(), map[string]any{"bad": make(chan int)})
	require.Error(t, err)

	_, statErr := os.Stat(filepath.Join(dir, "state.json"))
	assert.True(t, os.IsNotExist(statErr))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLoadState_Missing(t *testing.T) {
	t.Parallel()

	var loaded testState

	err := LoadState(t.TempDir(), "absent", NewJSONCodec(), &loaded)
	require.ErrorIs(t, err, os.ErrNotExist)
}
