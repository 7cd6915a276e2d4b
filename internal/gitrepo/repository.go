// Package gitrepo is cxfinder's view of a git repository.
//
// Reads (branches, merge-bases, trees, blobs) go through go-git. The only
// writes are blob, tree and commit objects for a simulated merge; no ref,
// index or working-tree file is ever touched. The package also provides
// the command executor used to run `git merge-file`, the default content
// merge primitive.
package gitrepo

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Iron-Ham/cxfinder/internal/errors"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/filesystem"
)

// Branch is a local branch and its tip commit.
type Branch struct {
	Name string
	Hash plumbing.Hash
	// When is the tip's committer timestamp.
	When time.Time
}

// Commit identifies a commit and its committer timestamp.
type Commit struct {
	Hash plumbing.Hash
	When time.Time
}

// Repository wraps a go-git repository. Handles are not shared between
// goroutines; open one per worker.
type Repository struct {
	repo *git.Repository
	path string
}

// Open opens the repository containing dir, searching parent directories
// for the .git directory.
func Open(dir string) (*Repository, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{
		DetectDotGit: true,
	})
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, errors.NewGitError("failed to open repository", errors.ErrNotGitRepository).
			WithRepository(dir)
	}
	if err != nil {
		return nil, errors.NewGitError("failed to open repository", err).WithRepository(dir)
	}

	path := dir
	if wt, err := repo.Worktree(); err == nil {
		path = wt.Filesystem.Root()
	}

	return &Repository{repo: repo, path: path}, nil
}

// New wraps an already opened go-git repository.
func New(repo *git.Repository, path string) *Repository {
	return &Repository{repo: repo, path: path}
}

// Path returns the repository's top-level directory.
func (r *Repository) Path() string {
	return r.path
}

// GitDir returns the path of the .git directory, or "" for storages that
// are not on disk.
func (r *Repository) GitDir() string {
	if fs, ok := r.repo.Storer.(*filesystem.Storage); ok {
		return fs.Filesystem().Root()
	}
	return ""
}

// Branches lists local branches ordered by name, the order `git branch`
// prints them in.
func (r *Repository) Branches(ctx context.Context) ([]Branch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	iter, err := r.repo.Branches()
	if err != nil {
		return nil, r.gitError("failed to list branches", err)
	}
	defer iter.Close()

	var branches []Branch
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		commit, err := r.repo.CommitObject(ref.Hash())
		if err != nil {
			return errors.NewGitError("failed to read branch tip", err).
				WithBranch(ref.Name().Short())
		}
		branches = append(branches, Branch{
			Name: ref.Name().Short(),
			Hash: ref.Hash(),
			When: commit.Committer.When,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(branches, func(i, j int) bool {
		return branches[i].Name < branches[j].Name
	})
	return branches, nil
}

// ResolveBranch looks up a local branch by short name.
func (r *Repository) ResolveBranch(ctx context.Context, name string) (Branch, error) {
	if err := ctx.Err(); err != nil {
		return Branch{}, err
	}

	ref, err := r.repo.Reference(plumbing.NewBranchReferenceName(name), true)
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return Branch{}, errors.NewNotFoundError("branch", name).WithCause(errors.ErrBranchNotFound)
	}
	if err != nil {
		return Branch{}, r.gitError("failed to resolve branch", err).WithBranch(name)
	}

	commit, err := r.repo.CommitObject(ref.Hash())
	if err != nil {
		return Branch{}, r.gitError("failed to read branch tip", err).WithBranch(name)
	}

	return Branch{Name: name, Hash: ref.Hash(), When: commit.Committer.When}, nil
}

// HasBranch reports whether a local branch exists.
func (r *Repository) HasBranch(name string) bool {
	_, err := r.repo.Reference(plumbing.NewBranchReferenceName(name), false)
	return err == nil
}

// CurrentBranch returns the short name of the checked-out branch.
func (r *Repository) CurrentBranch() (string, error) {
	head, err := r.repo.Reference(plumbing.HEAD, false)
	if err != nil {
		return "", r.gitError("failed to read HEAD", err)
	}
	if head.Type() != plumbing.SymbolicReference || !head.Target().IsBranch() {
		return "", r.gitError("no current branch", errors.ErrDetachedHead)
	}
	return head.Target().Short(), nil
}

// MergeBase returns the best common ancestor of a and b. When several
// exist, the most recently committed one is returned (ties broken by hash)
// so that repeated calls agree. It fails with errors.ErrNoMergeBase when
// the histories are disjoint.
func (r *Repository) MergeBase(ctx context.Context, a, b plumbing.Hash) (Commit, error) {
	if err := ctx.Err(); err != nil {
		return Commit{}, err
	}

	ca, err := r.repo.CommitObject(a)
	if err != nil {
		return Commit{}, r.gitError(fmt.Sprintf("failed to read commit %s", a), err)
	}
	cb, err := r.repo.CommitObject(b)
	if err != nil {
		return Commit{}, r.gitError(fmt.Sprintf("failed to read commit %s", b), err)
	}

	bases, err := ca.MergeBase(cb)
	if err != nil {
		return Commit{}, r.gitError("failed to compute merge base", err)
	}
	if len(bases) == 0 {
		return Commit{}, r.gitError(fmt.Sprintf("no merge base between %s and %s", a, b), errors.ErrNoMergeBase)
	}

	best := bases[0]
	for _, c := range bases[1:] {
		if c.Committer.When.After(best.Committer.When) ||
			(c.Committer.When.Equal(best.Committer.When) && c.Hash.String() < best.Hash.String()) {
			best = c
		}
	}

	return Commit{Hash: best.Hash, When: best.Committer.When}, nil
}

// CommitInfo reads a commit object.
func (r *Repository) CommitInfo(hash plumbing.Hash) (*object.Commit, error) {
	c, err := r.repo.CommitObject(hash)
	if err != nil {
		return nil, r.gitError(fmt.Sprintf("failed to read commit %s", hash), err)
	}
	return c, nil
}

// Refs snapshots every reference in the repository. Symbolic references
// are recorded as "ref: <target>".
func (r *Repository) Refs() (map[plumbing.ReferenceName]string, error) {
	iter, err := r.repo.References()
	if err != nil {
		return nil, r.gitError("failed to list references", err)
	}
	defer iter.Close()

	refs := make(map[plumbing.ReferenceName]string)
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		if ref.Type() == plumbing.SymbolicReference {
			refs[ref.Name()] = "ref: " + ref.Target().String()
		} else {
			refs[ref.Name()] = ref.Hash().String()
		}
		return nil
	})
	if err != nil {
		return nil, r.gitError("failed to list references", err)
	}

	// HEAD is not always yielded by the iterator.
	if head, err := r.repo.Reference(plumbing.HEAD, false); err == nil {
		if head.Type() == plumbing.SymbolicReference {
			refs[plumbing.HEAD] = "ref: " + head.Target().String()
		} else {
			refs[plumbing.HEAD] = head.Hash().String()
		}
	}
	return refs, nil
}

func (r *Repository) gitError(msg string, cause error) *errors.GitError {
	return errors.NewGitError(msg, cause).WithRepository(r.path)
}
