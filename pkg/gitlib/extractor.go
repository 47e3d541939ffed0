package gitlib

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/src-d/enry/v2"
)

// SourceFilter selects the paths that count as source files.
type SourceFilter struct {
	extensions []string
	language   string
}

// NewSourceFilter matches paths by explicit extensions when any are given and
// by enry's extension-based language detection otherwise.
func NewSourceFilter(language string, extensions []string) SourceFilter {
	normalized := make([]string, 0, len(extensions))

	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}

		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}

		normalized = append(normalized, ext)
	}

	return SourceFilter{extensions: normalized, language: language}
}

// Match reports whether path is a source file.
func (f SourceFilter) Match(path string) bool {
	if len(f.extensions) > 0 {
		ext := strings.ToLower(filepath.Ext(path))
		for _, want := range f.extensions {
			if ext == want {
				return true
			}
		}

		return false
	}

	if f.language == "" {
		return true
	}

	lang, _ := enry.GetLanguageByExtension(path)

	return strings.EqualFold(lang, f.language)
}

// ChangedSourceFiles lists the source paths a commit touched relative to its
// sole parent, in diff order. commitHash may be any revision git accepts,
// abbreviated ids included. Root and merge commits yield no paths.
func ChangedSourceFiles(repoPath, commitHash string, filter SourceFilter) ([]string, error) {
	repo, err := OpenRepository(repoPath)
	if err != nil {
		return nil, err
	}
	defer repo.Free()

	hash, err := repo.ResolveCommit(commitHash)
	if err != nil {
		return nil, err
	}

	changes, err := repo.CommitChanges(hash)
	if err != nil {
		return nil, err
	}

	var files []string

	for _, change := range changes {
		if filter.Match(change.Path) {
			files = append(files, change.Path)
		}
	}

	return files, nil
}

// Extractor lists changed source files and reports failures as an empty list.
type Extractor struct {
	Filter SourceFilter
	Logger *slog.Logger
}

// ChangedFiles returns the commit's changed source files, or an empty list
// when the repository or commit cannot be read.
func (e *Extractor) ChangedFiles(ctx context.Context, repoPath, commitHash string) []string {
	files, err := ChangedSourceFiles(repoPath, commitHash, e.Filter)
	if err != nil {
		e.Logger.WarnContext(ctx, "changed files unavailable",
			"repo", repoPath, "commit", commitHash, "error", err)

		return nil
	}

	return files
}
