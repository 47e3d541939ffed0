// Package snapshot copies the files touched by one commit into a private
// temporary directory so the smell analyzer only sees that subset.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

const (
	dirPrefix = "subset_"

	// DefaultMaxPathLength keeps destinations usable on filesystems and tools
	// with short path limits.
	DefaultMaxPathLength = 240
	// DefaultFlattenSegments is how many trailing path segments a flattened
	// name keeps.
	DefaultFlattenSegments = 5
)

// Snapshotter creates snapshots under a fixed root directory.
type Snapshotter struct {
	Root            string
	MaxPathLength   int
	FlattenSegments int
	Logger          *slog.Logger
}

// New returns a Snapshotter rooted at root with default path limits.
func New(root string, logger *slog.Logger) *Snapshotter {
	return &Snapshotter{
		Root:            root,
		MaxPathLength:   DefaultMaxPathLength,
		FlattenSegments: DefaultFlattenSegments,
		Logger:          logger,
	}
}

// Snapshot is a directory holding copies of one commit's changed files at one
// tree state. Close removes it.
type Snapshot struct {
	Dir     string
	Copied  int
	Skipped int

	closed bool
}

// Close removes the snapshot directory. It is safe to call more than once.
func (s *Snapshot) Close() error {
	if s == nil || s.closed {
		return nil
	}

	s.closed = true

	err := os.RemoveAll(s.Dir)
	if err != nil {
		return fmt.Errorf("remove snapshot %s: %w", s.Dir, err)
	}

	return nil
}

// Acquire creates a uniquely named directory under Root and copies each file
// (relative to repoPath) into it, keeping its relative path. Missing sources
// are skipped silently and copy failures are logged and skipped; only failing
// to create the directory returns an error.
func (s *Snapshotter) Acquire(ctx context.Context, repoPath string, files []string) (*Snapshot, error) {
	mkErr := os.MkdirAll(s.Root, 0o755)
	if mkErr != nil {
		return nil, fmt.Errorf("create snapshot root: %w", mkErr)
	}

	dir, err := os.MkdirTemp(s.Root, dirPrefix)
	if err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}

	snap := &Snapshot{Dir: dir}

	for _, rel := range files {
		if !filepath.IsLocal(filepath.FromSlash(rel)) {
			s.Logger.WarnContext(ctx, "skipping non-local path", "file", rel)

			snap.Skipped++

			continue
		}

		src := filepath.Join(repoPath, filepath.FromSlash(rel))

		info, statErr := os.Stat(src)
		if statErr != nil || !info.Mode().IsRegular() {
			snap.Skipped++

			continue
		}

		dst, ok := s.destination(dir, rel)
		if !ok {
			s.Logger.WarnContext(ctx, "no destination fits path limit", "file", rel, "limit", s.MaxPathLength)

			snap.Skipped++

			continue
		}

		copyErr := copyFile(src, dst, info)
		if copyErr != nil {
			s.Logger.WarnContext(ctx, "copy failed", "file", rel, "error", copyErr)

			snap.Skipped++

			continue
		}

		snap.Copied++
	}

	return snap, nil
}

// destination picks where rel is written inside dir. Paths over the length
// limit are flattened; a flattened name that still does not fit is trimmed
// from the left so the file name and extension survive.
func (s *Snapshotter) destination(dir, rel string) (string, bool) {
	limit := s.MaxPathLength
	if limit <= 0 {
		limit = DefaultMaxPathLength
	}

	dst := filepath.Join(dir, filepath.FromSlash(rel))
	if len(dst) <= limit {
		return dst, true
	}

	name := FlattenName(rel, s.FlattenSegments)

	room := limit - len(dir) - 1
	if room <= 0 {
		return "", false
	}

	if len(name) > room {
		name = name[len(name)-room:]
	}

	return filepath.Join(dir, name), true
}

// FlattenName joins the last segments of a slash-separated path with "_".
func FlattenName(rel string, segments int) string {
	if segments <= 0 {
		segments = DefaultFlattenSegments
	}

	parts := strings.FieldsFunc(filepath.ToSlash(rel), func(r rune) bool { return r == '/' })
	if len(parts) > segments {
		parts = parts[len(parts)-segments:]
	}

	return strings.Join(parts, "_")
}

func copyFile(src, dst string, info fs.FileInfo) (err error) {
	mkErr := os.MkdirAll(filepath.Dir(dst), 0o755)
	if mkErr != nil {
		return fmt.Errorf("create parent: %w", mkErr)
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("create destination: %w", err)
	}

	defer func() {
		err = errors.Join(err, out.Close())
	}()

	_, err = io.Copy(out, in)
	if err != nil {
		return fmt.Errorf("copy: %w", err)
	}

	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}
