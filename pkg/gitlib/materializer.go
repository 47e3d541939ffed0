package gitlib

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/Sumatoshi-tech/refdelta/pkg/procexec"
)

// Materializer keeps local clones present and switches their working trees.
type Materializer struct {
	Runner       procexec.Runner
	Policy       procexec.FailurePolicy
	Logger       *slog.Logger
	GitBinary    string
	GitTimeout   time.Duration
	CloneTimeout time.Duration

	// CloneURL maps a repository full name ("owner/repo") to a remote URL.
	CloneURL func(fullName string) string
}

// Ensure clones fullName into repoPath when the path does not exist and
// otherwise fetches all remotes. A failed clone returns false; a failed fetch
// is logged and ignored. Under a strict policy a failed clone also returns an
// error.
func (m *Materializer) Ensure(ctx context.Context, repoPath, fullName string) (bool, error) {
	_, statErr := os.Stat(repoPath)

	switch {
	case errors.Is(statErr, fs.ErrNotExist):
		return m.clone(ctx, repoPath, fullName)
	case statErr != nil:
		m.Logger.WarnContext(ctx, "repository path unreadable", "path", repoPath, "error", statErr)

		return false, nil
	}

	spec := m.gitSpec(m.GitTimeout, "-C", repoPath, "fetch", "--all")

	res := m.Runner.Run(ctx, spec)
	if !res.OK() {
		m.Logger.DebugContext(ctx, "fetch failed, using existing clone",
			"repo", fullName, "reason", res.Excerpt(reasonExcerpt))
	}

	return true, nil
}

func (m *Materializer) clone(ctx context.Context, repoPath, fullName string) (bool, error) {
	mkErr := os.MkdirAll(filepath.Dir(repoPath), 0o755)
	if mkErr != nil {
		m.Logger.WarnContext(ctx, "cannot create clone parent", "path", repoPath, "error", mkErr)

		return false, nil
	}

	url := m.CloneURL(fullName)
	m.Logger.InfoContext(ctx, "cloning repository", "repo", fullName, "url", url)

	spec := m.gitSpec(m.CloneTimeout, "clone", url, repoPath)

	res := m.Runner.Run(ctx, spec)
	if res.OK() {
		return true, nil
	}

	m.Logger.WarnContext(ctx, "clone failed", "repo", fullName, "reason", res.Excerpt(reasonExcerpt))

	return false, m.Policy.Coerce(spec, res)
}

// Checkout force-checks out ref ("<hash>" or "<hash>^") in repoPath.
func (m *Materializer) Checkout(ctx context.Context, repoPath, ref string) (bool, error) {
	spec := m.gitSpec(m.GitTimeout, "-C", repoPath, "checkout", "-f", ref)

	res := m.Runner.Run(ctx, spec)
	if res.OK() {
		return true, nil
	}

	m.Logger.WarnContext(ctx, "checkout failed", "path", repoPath, "ref", ref, "reason", res.Excerpt(reasonExcerpt))

	return false, m.Policy.Coerce(spec, res)
}

func (m *Materializer) gitSpec(timeout time.Duration, args ...string) procexec.Spec {
	binary := m.GitBinary
	if binary == "" {
		binary = "git"
	}

	return procexec.Spec{Tool: "git", Name: binary, Args: args, Timeout: timeout}
}

// ParentRef returns the revision naming the first parent of hash.
func ParentRef(hash string) string {
	return hash + "^"
}

const reasonExcerpt = 300
