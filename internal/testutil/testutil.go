// Package testutil provides testing utilities for cxfinder tests.
//
// Fixture repositories are built with go-git so that commit timestamps are
// exact and tests do not depend on a git binary. Helpers that do shell out
// to git call SkipIfNoGit first.
package testutil

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// DefaultBranch is the branch fixture repositories are initialized on.
const DefaultBranch = "main"

// Deleted, used as a file's content in Commit, removes the file.
const Deleted = "\x00deleted\x00"

// Author signs every fixture commit.
var Author = object.Signature{Name: "cxfinder test", Email: "test@cxfinder.dev"}

// Repo is a fixture repository on disk with a working tree.
type Repo struct {
	t    testing.TB
	Path string
	Git  *git.Repository
}

// NewRepo initializes an empty repository whose HEAD points at the
// unborn DefaultBranch.
func NewRepo(t testing.TB) *Repo {
	t.Helper()

	dir := t.TempDir()
	repo, err := git.PlainInitWithOptions(dir, &git.PlainInitOptions{
		InitOptions: git.InitOptions{
			DefaultBranch: plumbing.NewBranchReferenceName(DefaultBranch),
		},
	})
	if err != nil {
		t.Fatalf("failed to init git repo: %v", err)
	}

	return &Repo{t: t, Path: dir, Git: repo}
}

// Ago returns now minus d, truncated to the second precision git stores.
func Ago(d time.Duration) time.Time {
	return time.Now().Add(-d).Truncate(time.Second)
}

// Days is shorthand for Ago(n days).
func Days(n int) time.Time {
	return Ago(time.Duration(n) * 24 * time.Hour)
}

// Commit checks out branch, applies files (path to content; Deleted removes
// the path) and commits with the given timestamp as both author and
// committer time. The first commit of a fresh repository must be made on
// DefaultBranch.
func (r *Repo) Commit(branch string, when time.Time, files map[string]string) plumbing.Hash {
	r.t.Helper()
	return r.commit(branch, when, files, nil)
}

// CommitMode is like Commit for a single path but sets its file mode.
// Only filemode.Regular and filemode.Executable are supported.
func (r *Repo) CommitMode(branch string, when time.Time, path, content string, mode filemode.FileMode) plumbing.Hash {
	r.t.Helper()
	return r.commit(branch, when, map[string]string{path: content}, map[string]filemode.FileMode{path: mode})
}

func (r *Repo) commit(branch string, when time.Time, files map[string]string, modes map[string]filemode.FileMode) plumbing.Hash {
	r.t.Helper()

	wt, err := r.Git.Worktree()
	if err != nil {
		r.t.Fatalf("failed to open worktree: %v", err)
	}
	r.checkout(wt, branch)

	for path, content := range files {
		full := filepath.Join(r.Path, filepath.FromSlash(path))
		if content == Deleted {
			if _, err := wt.Remove(path); err != nil {
				r.t.Fatalf("failed to remove %s: %v", path, err)
			}
			continue
		}

		perm := os.FileMode(0644)
		if modes[path] == filemode.Executable {
			perm = 0755
		}
		if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
			r.t.Fatalf("failed to create directory for %s: %v", path, err)
		}
		if err := os.WriteFile(full, []byte(content), perm); err != nil {
			r.t.Fatalf("failed to write file %s: %v", path, err)
		}
		if err := os.Chmod(full, perm); err != nil {
			r.t.Fatalf("failed to chmod %s: %v", path, err)
		}
		if _, err := wt.Add(path); err != nil {
			r.t.Fatalf("failed to stage %s: %v", path, err)
		}
	}

	sig := Author
	sig.When = when
	hash, err := wt.Commit("update "+branch, &git.CommitOptions{
		Author:    &sig,
		Committer: &sig,
	})
	if err != nil {
		r.t.Fatalf("failed to commit on %s: %v", branch, err)
	}
	return hash
}

// checkout switches the worktree to branch unless it is already current.
func (r *Repo) checkout(wt *git.Worktree, branch string) {
	r.t.Helper()

	head, err := r.Git.Reference(plumbing.HEAD, false)
	if err != nil {
		r.t.Fatalf("failed to read HEAD: %v", err)
	}
	if head.Type() == plumbing.SymbolicReference && head.Target().Short() == branch {
		return
	}

	if err := wt.Checkout(&git.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName(branch),
		Force:  true,
	}); err != nil {
		r.t.Fatalf("failed to checkout %s: %v", branch, err)
	}
}

// Branch creates branch at the tip of from without checking it out.
func (r *Repo) Branch(name, from string) plumbing.Hash {
	r.t.Helper()

	tip := r.Tip(from)
	ref := plumbing.NewHashReference(plumbing.NewBranchReferenceName(name), tip)
	if err := r.Git.Storer.SetReference(ref); err != nil {
		r.t.Fatalf("failed to create branch %s: %v", name, err)
	}
	return tip
}

// Checkout switches HEAD and the working tree to branch.
func (r *Repo) Checkout(branch string) {
	r.t.Helper()

	wt, err := r.Git.Worktree()
	if err != nil {
		r.t.Fatalf("failed to open worktree: %v", err)
	}
	r.checkout(wt, branch)
}

// Tip returns the commit a branch points at.
func (r *Repo) Tip(branch string) plumbing.Hash {
	r.t.Helper()

	ref, err := r.Git.Reference(plumbing.NewBranchReferenceName(branch), true)
	if err != nil {
		r.t.Fatalf("failed to resolve branch %s: %v", branch, err)
	}
	return ref.Hash()
}

// Orphan creates branch as a parentless commit holding top-level files,
// sharing no history with the rest of the repository. The working tree is
// left alone.
func (r *Repo) Orphan(branch string, when time.Time, files map[string]string) plumbing.Hash {
	r.t.Helper()

	var entries []object.TreeEntry
	for name, content := range files {
		if strings.Contains(name, "/") {
			r.t.Fatalf("Orphan supports top-level files only, got %s", name)
		}
		entries = append(entries, object.TreeEntry{
			Name: name,
			Mode: filemode.Regular,
			Hash: r.store(plumbing.BlobObject, []byte(content)),
		})
	}
	sortEntries(entries)

	tree := object.Tree{Entries: entries}
	treeObj := r.Git.Storer.NewEncodedObject()
	if err := tree.Encode(treeObj); err != nil {
		r.t.Fatalf("failed to encode tree: %v", err)
	}
	treeHash, err := r.Git.Storer.SetEncodedObject(treeObj)
	if err != nil {
		r.t.Fatalf("failed to store tree: %v", err)
	}

	sig := Author
	sig.When = when
	commit := object.Commit{Author: sig, Committer: sig, Message: "orphan " + branch, TreeHash: treeHash}
	commitObj := r.Git.Storer.NewEncodedObject()
	if err := commit.Encode(commitObj); err != nil {
		r.t.Fatalf("failed to encode commit: %v", err)
	}
	hash, err := r.Git.Storer.SetEncodedObject(commitObj)
	if err != nil {
		r.t.Fatalf("failed to store commit: %v", err)
	}

	ref := plumbing.NewHashReference(plumbing.NewBranchReferenceName(branch), hash)
	if err := r.Git.Storer.SetReference(ref); err != nil {
		r.t.Fatalf("failed to create branch %s: %v", branch, err)
	}
	return hash
}

func (r *Repo) store(typ plumbing.ObjectType, content []byte) plumbing.Hash {
	r.t.Helper()

	obj := r.Git.Storer.NewEncodedObject()
	obj.SetType(typ)
	w, err := obj.Writer()
	if err != nil {
		r.t.Fatalf("failed to open object writer: %v", err)
	}
	if _, err := w.Write(content); err != nil {
		r.t.Fatalf("failed to write object: %v", err)
	}
	_ = w.Close()

	hash, err := r.Git.Storer.SetEncodedObject(obj)
	if err != nil {
		r.t.Fatalf("failed to store object: %v", err)
	}
	return hash
}

func sortEntries(entries []object.TreeEntry) {
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && entries[j].Name < entries[j-1].Name; j-- {
			entries[j], entries[j-1] = entries[j-1], entries[j]
		}
	}
}

// WorktreeClean reports whether the working tree and index match HEAD.
func (r *Repo) WorktreeClean() bool {
	r.t.Helper()

	wt, err := r.Git.Worktree()
	if err != nil {
		r.t.Fatalf("failed to open worktree: %v", err)
	}
	status, err := wt.Status()
	if err != nil {
		r.t.Fatalf("failed to read status: %v", err)
	}
	return status.IsClean()
}

// SkipIfNoGit skips the test if git is not installed.
func SkipIfNoGit(t testing.TB) {
	t.Helper()

	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not found in PATH, skipping test")
	}
}

// Git runs the git binary in dir and returns its trimmed stdout, failing
// the test on error.
func Git(t testing.TB, dir string, args ...string) string {
	t.Helper()

	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME=cxfinder test",
		"GIT_AUTHOR_EMAIL=test@cxfinder.dev",
		"GIT_COMMITTER_NAME=cxfinder test",
		"GIT_COMMITTER_EMAIL=test@cxfinder.dev",
	)
	output, err := cmd.Output()
	if err != nil {
		var stderr string
		if exitErr, ok := err.(*exec.ExitError); ok {
			stderr = string(exitErr.Stderr)
		}
		t.Fatalf("git %s: %v\n%s", strings.Join(args, " "), err, stderr)
	}
	return strings.TrimSpace(string(output))
}
