package gitlib_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/refdelta/pkg/gitlib"
)

func TestSourceFilter(t *testing.T) {
	t.Parallel()

	byExt := gitlib.NewSourceFilter("", []string{"java", " .KT "})
	assert.True(t, byExt.Match("src/Main.java"))
	assert.True(t, byExt.Match("src/App.kt"))
	assert.False(t, byExt.Match("README.md"))

	byLang := gitlib.NewSourceFilter("Java", nil)
	assert.True(t, byLang.Match("src/main/java/Foo.java"))
	assert.False(t, byLang.Match("build.gradle"))
	assert.False(t, byLang.Match("Foo.py"))

	all := gitlib.NewSourceFilter("", nil)
	assert.True(t, all.Match("anything.txt"))
}

func TestChangedSourceFiles(t *testing.T) {
	t.Parallel()

	tr := newTestRepo(t)
	tr.createFile("src/A.java", "class A {}")
	tr.createFile("src/B.java", "class B {}")
	tr.createFile("pom.xml", "<project/>")
	tr.commit("init")

	tr.createFile("src/A.java", "class A { int x; }")
	tr.deleteFile("src/B.java")
	tr.createFile("src/C.java", "class C {}")
	tr.createFile("pom.xml", "<project><v/></project>")
	head := tr.commit("change")

	filter := gitlib.NewSourceFilter("Java", nil)

	files, err := gitlib.ChangedSourceFiles(tr.path, head.String(), filter)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"src/A.java", "src/B.java", "src/C.java"}, files)
}

func TestChangedSourceFiles_RootAndMergeYieldNothing(t *testing.T) {
	t.Parallel()

	tr := newTestRepo(t)
	tr.createFile("A.java", "class A {}")
	root := tr.commit("root")

	tr.createFile("B.java", "class B {}")
	side := tr.commit("side")

	tr.createFile("C.java", "class C {}")
	merge := tr.commit("merge", root)

	filter := gitlib.NewSourceFilter("", []string{".java"})

	files, err := gitlib.ChangedSourceFiles(tr.path, root.String(), filter)
	require.NoError(t, err)
	assert.Empty(t, files)

	files, err = gitlib.ChangedSourceFiles(tr.path, merge.String(), filter)
	require.NoError(t, err)
	assert.Empty(t, files)

	files, err = gitlib.ChangedSourceFiles(tr.path, side.String(), filter)
	require.NoError(t, err)
	assert.Equal(t, []string{"B.java"}, files)
}

func TestExtractor_FailureIsEmpty(t *testing.T) {
	t.Parallel()

	var logs bytes.Buffer

	ex := &gitlib.Extractor{
		Filter: gitlib.NewSourceFilter("Java", nil),
		Logger: slog.New(slog.NewTextHandler(&logs, nil)),
	}

	assert.Empty(t, ex.ChangedFiles(context.Background(), t.TempDir(), "0123456789abcdef0123456789abcdef01234567"))
	assert.Empty(t, ex.ChangedFiles(context.Background(), t.TempDir(), "not-a-hash"))
	assert.Contains(t, logs.String(), "changed files unavailable")
}

func TestChangedSourceFiles_AbbreviatedHash(t *testing.T) {
	t.Parallel()

	tr := newTestRepo(t)
	tr.createFile("A.java", "class A {}")
	tr.commit("root")

	tr.createFile("A.java", "class A { int x; }")
	head := tr.commit("change")

	filter := gitlib.NewSourceFilter("Java", nil)

	files, err := gitlib.ChangedSourceFiles(tr.path, head.String()[:7], filter)
	require.NoError(t, err)
	assert.Equal(t, []string{"A.java"}, files)

	_, err = gitlib.ChangedSourceFiles(tr.path, "fffffff", filter)
	require.ErrorIs(t, err, gitlib.ErrUnknownRevision)
}
