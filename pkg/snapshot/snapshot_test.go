package snapshot_test

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

	"github.com/Sumatoshi-tech/refdelta/pkg/snapshot"
)

func writeRepoFile(t *testing.T, repo, rel, content string) {
	t.Helper()

	path := filepath.Join(repo, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newSnapshotter(root string) *snapshot.Snapshotter {
	return snapshot.New(root, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestAcquire_CopiesChangedFilesAndSkipsMissing(t *testing.T) {
	t.Parallel()

	repo := t.TempDir()
	root := filepath.Join(t.TempDir(), "temp")

	writeRepoFile(t, repo, "src/main/A.java", "class A {}")
	writeRepoFile(t, repo, "src/main/B.java", "class B {}")
	writeRepoFile(t, repo, "src/main/Other.java", "class Other {}")

	snap, err := newSnapshotter(root).Acquire(context.Background(), repo,
		[]string{"src/main/A.java", "src/main/B.java", "src/main/Deleted.java"})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(filepath.Base(snap.Dir), "subset_"))
	assert.Equal(t, root, filepath.Dir(snap.Dir))
	assert.Equal(t, 2, snap.Copied)
	assert.Equal(t, 1, snap.Skipped)

	got, err := os.ReadFile(filepath.Join(snap.Dir, "src", "main", "A.java"))
	require.NoError(t, err)
	assert.Equal(t, "class A {}", string(got))
	assert.NoFileExists(t, filepath.Join(snap.Dir, "src", "main", "Other.java"))

	require.NoError(t, snap.Close())
	assert.NoDirExists(t, snap.Dir)
	require.NoError(t, snap.Close())
}

func TestAcquire_UniqueDirectories(t *testing.T) {
	t.Parallel()

	repo := t.TempDir()
	s := newSnapshotter(t.TempDir())

	a, err := s.Acquire(context.Background(), repo, nil)
	require.NoError(t, err)

	b, err := s.Acquire(context.Background(), repo, nil)
	require.NoError(t, err)

	assert.NotEqual(t, a.Dir, b.Dir)
	require.NoError(t, a.Close())
	require.NoError(t, b.Close())
}

func TestAcquire_FlattensLongPaths(t *testing.T) {
	t.Parallel()

	repo := t.TempDir()
	root := t.TempDir()

	segments := make([]string, 0, 30)
	for i := range 30 {
		segments = append(segments, "package"+strings.Repeat("x", i%5))
	}

	rel := strings.Join(append(segments, "Deep.java"), "/")
	writeRepoFile(t, repo, rel, "class Deep {}")

	s := newSnapshotter(root)

	snap, err := s.Acquire(context.Background(), repo, []string{rel})
	require.NoError(t, err)

	t.Cleanup(func() { _ = snap.Close() })

	require.Equal(t, 1, snap.Copied)

	want := filepath.Join(snap.Dir, snapshot.FlattenName(rel, snapshot.DefaultFlattenSegments))
	assert.FileExists(t, want)
	assert.LessOrEqual(t, len(want), snapshot.DefaultMaxPathLength)

	err = filepath.WalkDir(snap.Dir, func(path string, _ os.DirEntry, walkErr error) error {
		require.NoError(t, walkErr)
		assert.LessOrEqual(t, len(path), snapshot.DefaultMaxPathLength)

		return nil
	})
	require.NoError(t, err)
}

func TestAcquire_TrimsFlattenedNameToLimit(t *testing.T) {
	t.Parallel()

	repo := t.TempDir()
	long := strings.Repeat("n", 120)
	rel := long + "/" + long + "/Z.java"
	writeRepoFile(t, repo, rel, "class Z {}")

	s := newSnapshotter(t.TempDir())
	s.MaxPathLength = 200

	snap, err := s.Acquire(context.Background(), repo, []string{rel})
	require.NoError(t, err)

	t.Cleanup(func() { _ = snap.Close() })

	entries, err := os.ReadDir(snap.Dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	name := entries[0].Name()
	assert.True(t, strings.HasSuffix(name, "_Z.java"))
	assert.LessOrEqual(t, len(filepath.Join(snap.Dir, name)), 200)
}

func TestAcquire_RejectsEscapingPaths(t *testing.T) {
	t.Parallel()

	snap, err := newSnapshotter(t.TempDir()).Acquire(context.Background(), t.TempDir(), []string{"../secret.java"})
	require.NoError(t, err)

	t.Cleanup(func() { _ = snap.Close() })

	assert.Equal(t, 0, snap.Copied)
	assert.Equal(t, 1, snap.Skipped)
}

func TestFlattenName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		rel      string
		segments int
		want     string
	}{
		{"a/b/c/d/e/f/g.java", 5, "c_d_e_f_g.java"},
		{"x/y.java", 5, "x_y.java"},
		{"y.java", 5, "y.java"},
		{"a/b/c.java", 0, "a_b_c.java"},
		{"a/b/c.java", 2, "b_c.java"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, snapshot.FlattenName(tt.rel, tt.segments), tt.rel)
	}
}
