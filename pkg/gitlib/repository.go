package gitlib

import (
	"fmt"
	"strings"

	git2go "github.com/libgit2/git2go/v34"
)

// ChangeAction classifies a path in a commit's diff.
type ChangeAction int

// Change actions. Renames and copies count as modifications because rename
// detection is off.
const (
	Added ChangeAction = iota
	Deleted
	Modified
)

// Change is one path a commit touched. Deleted files report their old path.
type Change struct {
	Action ChangeAction
	Path   string
}

// Repository is a read-only libgit2 handle.
type Repository struct {
	native *git2go.Repository
}

// OpenRepository opens the repository at path.
func OpenRepository(path string) (*Repository, error) {
	native, err := git2go.OpenRepository(path)
	if err != nil {
		return nil, fmt.Errorf("open repository %s: %w", path, err)
	}

	return &Repository{native: native}, nil
}

// Free releases the libgit2 handle.
func (r *Repository) Free() {
	if r.native != nil {
		r.native.Free()
		r.native = nil
	}
}

// ResolveCommit resolves a revision such as a full or abbreviated commit id
// to the commit it names.
func (r *Repository) ResolveCommit(rev string) (Hash, error) {
	if hash, err := ParseHash(rev); err == nil {
		return hash, nil
	}

	rev = strings.TrimSpace(rev)
	if rev == "" {
		return Hash{}, fmt.Errorf("%w: empty revision", ErrUnknownRevision)
	}

	obj, err := r.native.RevparseSingle(rev)
	if err != nil {
		return Hash{}, fmt.Errorf("%w %q: %w", ErrUnknownRevision, rev, err)
	}
	defer obj.Free()

	commit, err := obj.Peel(git2go.ObjectCommit)
	if err != nil {
		return Hash{}, fmt.Errorf("%w %q: %w", ErrUnknownRevision, rev, err)
	}
	defer commit.Free()

	return HashFromOid(commit.Id()), nil
}

// CommitChanges diffs the commit's tree against its sole parent. Root and
// merge commits yield nil, matching `git diff-tree` without --root or -m.
func (r *Repository) CommitChanges(hash Hash) ([]Change, error) {
	commit, err := r.native.LookupCommit(hash.ToOid())
	if err != nil {
		return nil, fmt.Errorf("lookup commit %s: %w", hash, err)
	}
	defer commit.Free()

	if commit.ParentCount() != 1 {
		return nil, nil
	}

	parent := commit.Parent(0)
	if parent == nil {
		return nil, fmt.Errorf("lookup parent of %s: %w", hash, ErrParentNotFound)
	}
	defer parent.Free()

	before, err := parent.Tree()
	if err != nil {
		return nil, fmt.Errorf("parent tree of %s: %w", hash, err)
	}
	defer before.Free()

	after, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("tree of %s: %w", hash, err)
	}
	defer after.Free()

	if before.Id().Equal(after.Id()) {
		return []Change{}, nil
	}

	return r.diffTrees(before, after)
}

func (r *Repository) diffTrees(before, after *git2go.Tree) ([]Change, error) {
	opts, err := git2go.DefaultDiffOptions()
	if err != nil {
		return nil, fmt.Errorf("diff options: %w", err)
	}

	diff, err := r.native.DiffTreeToTree(before, after, &opts)
	if err != nil {
		return nil, fmt.Errorf("diff trees: %w", err)
	}
	defer diff.Free()

	n, err := diff.NumDeltas()
	if err != nil {
		return nil, fmt.Errorf("count deltas: %w", err)
	}

	changes := make([]Change, 0, n)

	for i := range n {
		d, deltaErr := diff.Delta(i)
		if deltaErr != nil {
			return nil, fmt.Errorf("read delta %d: %w", i, deltaErr)
		}

		switch d.Status {
		case git2go.DeltaAdded:
			changes = append(changes, Change{Action: Added, Path: d.NewFile.Path})
		case git2go.DeltaDeleted:
			changes = append(changes, Change{Action: Deleted, Path: d.OldFile.Path})
		case git2go.DeltaModified, git2go.DeltaTypeChange, git2go.DeltaRenamed, git2go.DeltaCopied:
			changes = append(changes, Change{Action: Modified, Path: d.NewFile.Path})
		default:
			continue
		}
	}

	return changes, nil
}
