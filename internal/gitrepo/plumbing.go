package gitrepo

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Entry is a non-directory tree entry: a blob, symlink or gitlink.
type Entry struct {
	Mode filemode.FileMode
	Hash plumbing.Hash
}

// Equal reports whether two optional entries are identical. Two nil
// entries are equal.
func (e *Entry) Equal(o *Entry) bool {
	if e == nil || o == nil {
		return e == nil && o == nil
	}
	return e.Mode == o.Mode && e.Hash == o.Hash
}

// Entries flattens the tree of a commit into slash-separated paths.
func (r *Repository) Entries(ctx context.Context, commit plumbing.Hash) (map[string]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c, err := r.repo.CommitObject(commit)
	if err != nil {
		return nil, r.gitError(fmt.Sprintf("failed to read commit %s", commit), err)
	}
	tree, err := c.Tree()
	if err != nil {
		return nil, r.gitError(fmt.Sprintf("failed to read tree of %s", commit), err)
	}

	entries := make(map[string]Entry)
	if err := r.flatten(tree, "", entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *Repository) flatten(tree *object.Tree, prefix string, out map[string]Entry) error {
	for _, te := range tree.Entries {
		p := path.Join(prefix, te.Name)
		if te.Mode == filemode.Dir {
			sub, err := r.repo.TreeObject(te.Hash)
			if err != nil {
				return r.gitError(fmt.Sprintf("failed to read tree %s", p), err)
			}
			if err := r.flatten(sub, p, out); err != nil {
				return err
			}
			continue
		}
		out[p] = Entry{Mode: te.Mode, Hash: te.Hash}
	}
	return nil
}

// ReadBlob returns the content of a blob.
func (r *Repository) ReadBlob(hash plumbing.Hash) ([]byte, error) {
	blob, err := r.repo.BlobObject(hash)
	if err != nil {
		return nil, r.gitError(fmt.Sprintf("failed to find blob %s", hash), err)
	}

	reader, err := blob.Reader()
	if err != nil {
		return nil, r.gitError("failed to open blob reader", err)
	}
	defer func() { _ = reader.Close() }()

	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(reader); err != nil {
		return nil, r.gitError("failed to read blob content", err)
	}
	return buf.Bytes(), nil
}

// WriteBlob stores content in the object database.
func (r *Repository) WriteBlob(content []byte) (plumbing.Hash, error) {
	obj := r.repo.Storer.NewEncodedObject()
	obj.SetType(plumbing.BlobObject)
	obj.SetSize(int64(len(content)))

	writer, err := obj.Writer()
	if err != nil {
		return plumbing.ZeroHash, r.gitError("failed to create object writer", err)
	}
	if _, err := writer.Write(content); err != nil {
		_ = writer.Close()
		return plumbing.ZeroHash, r.gitError("failed to write blob content", err)
	}
	if err := writer.Close(); err != nil {
		return plumbing.ZeroHash, r.gitError("failed to write blob content", err)
	}

	hash, err := r.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, r.gitError("failed to store blob", err)
	}
	return hash, nil
}

// HasObject reports whether the object database holds hash.
func (r *Repository) HasObject(hash plumbing.Hash) bool {
	return r.repo.Storer.HasEncodedObject(hash) == nil
}

// dirNode is one directory level of a tree being written.
type dirNode struct {
	children map[string]*dirNode
	entry    *Entry // set for leaves
}

func newDirNode() *dirNode {
	return &dirNode{children: make(map[string]*dirNode)}
}

func (d *dirNode) insert(p string, e Entry) error {
	parts := strings.Split(p, "/")
	current := d
	for i, part := range parts {
		if part == "" {
			return fmt.Errorf("invalid path %q", p)
		}
		child, exists := current.children[part]
		if i == len(parts)-1 {
			if exists {
				return fmt.Errorf("path %q collides with a directory", p)
			}
			current.children[part] = &dirNode{entry: &e}
			return nil
		}
		if !exists {
			child = newDirNode()
			current.children[part] = child
		} else if child.entry != nil {
			return fmt.Errorf("path %q is nested under a file", p)
		}
		current = child
	}
	return nil
}

// WriteTree writes nested tree objects for a flat path map and returns the
// root tree hash. Empty directories are never produced.
func (r *Repository) WriteTree(entries map[string]Entry) (plumbing.Hash, error) {
	root := newDirNode()
	for p, e := range entries {
		if err := root.insert(p, e); err != nil {
			return plumbing.ZeroHash, r.gitError("failed to build tree", err)
		}
	}
	return r.writeDirNode(root)
}

func (r *Repository) writeDirNode(d *dirNode) (plumbing.Hash, error) {
	treeEntries := make([]object.TreeEntry, 0, len(d.children))
	for name, node := range d.children {
		if node.entry != nil {
			treeEntries = append(treeEntries, object.TreeEntry{
				Name: name,
				Mode: node.entry.Mode,
				Hash: node.entry.Hash,
			})
			continue
		}
		hash, err := r.writeDirNode(node)
		if err != nil {
			return plumbing.ZeroHash, err
		}
		treeEntries = append(treeEntries, object.TreeEntry{
			Name: name,
			Mode: filemode.Dir,
			Hash: hash,
		})
	}

	// git orders tree entries by name, comparing directories as if they
	// ended in '/'.
	sort.Slice(treeEntries, func(i, j int) bool {
		return sortKey(treeEntries[i]) < sortKey(treeEntries[j])
	})

	tree := object.Tree{Entries: treeEntries}
	obj := r.repo.Storer.NewEncodedObject()
	if err := tree.Encode(obj); err != nil {
		return plumbing.ZeroHash, r.gitError("failed to encode tree", err)
	}
	hash, err := r.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, r.gitError("failed to store tree", err)
	}
	return hash, nil
}

func sortKey(e object.TreeEntry) string {
	if e.Mode == filemode.Dir {
		return e.Name + "/"
	}
	return e.Name
}

// Signature names the author or committer of a written commit.
type Signature struct {
	Name  string
	Email string
	When  time.Time
}

// CommitRequest describes a commit object to write.
type CommitRequest struct {
	Tree      plumbing.Hash
	Parents   []plumbing.Hash
	Author    Signature
	Committer Signature
	Message   string
}

// CommitTree writes a commit object and returns its hash. No reference is
// created or moved; the commit is reachable only through the returned hash.
func (r *Repository) CommitTree(ctx context.Context, req CommitRequest) (plumbing.Hash, error) {
	if err := ctx.Err(); err != nil {
		return plumbing.ZeroHash, err
	}

	commit := object.Commit{
		Author: object.Signature{
			Name:  req.Author.Name,
			Email: req.Author.Email,
			When:  req.Author.When,
		},
		Committer: object.Signature{
			Name:  req.Committer.Name,
			Email: req.Committer.Email,
			When:  req.Committer.When,
		},
		Message:      req.Message,
		TreeHash:     req.Tree,
		ParentHashes: req.Parents,
	}

	obj := r.repo.Storer.NewEncodedObject()
	if err := commit.Encode(obj); err != nil {
		return plumbing.ZeroHash, r.gitError("failed to encode commit", err)
	}
	hash, err := r.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, r.gitError("failed to store commit", err)
	}
	return hash, nil
}

// TreeOf returns the root tree hash of a commit.
func (r *Repository) TreeOf(commit plumbing.Hash) (plumbing.Hash, error) {
	c, err := r.repo.CommitObject(commit)
	if err != nil {
		return plumbing.ZeroHash, r.gitError(fmt.Sprintf("failed to read commit %s", commit), err)
	}
	return c.TreeHash, nil
}
