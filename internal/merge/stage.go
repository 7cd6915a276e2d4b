package merge

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Iron-Ham/cxfinder/internal/gitrepo"
	"github.com/go-git/go-git/v5/plumbing"
)

// BlobReader reads blob contents from the object store.
type BlobReader interface {
	ReadBlob(hash plumbing.Hash) ([]byte, error)
}

// stageFiles owns the scratch directory holding the three materialized
// stages of one path. Close must be called on every exit path; it is safe
// to call more than once.
type stageFiles struct {
	dir      string
	ancestor string
	ours     string
	theirs   string
	closed   bool
}

// newStageFiles writes the three stages of e into a fresh directory under
// root (os.TempDir when empty). On failure nothing is left behind.
func newStageFiles(blobs BlobReader, e IndexEntry, root string) (_ *stageFiles, err error) {
	dir, err := os.MkdirTemp(root, "cxfinder-stage-")
	if err != nil {
		return nil, fmt.Errorf("failed to create stage directory: %w", err)
	}

	s := &stageFiles{
		dir:      dir,
		ancestor: filepath.Join(dir, "ancestor"),
		ours:     filepath.Join(dir, "ours"),
		theirs:   filepath.Join(dir, "theirs"),
	}
	defer func() {
		if err != nil {
			_ = s.Close()
		}
	}()

	targets := [3]string{StageAncestor: s.ancestor, StageOurs: s.ours, StageTheirs: s.theirs}
	for i, stage := range e.Stages {
		if stage == nil {
			return nil, fmt.Errorf("stage %d of %s is missing", i+1, e.Path)
		}
		content, err := blobs.ReadBlob(stage.Hash)
		if err != nil {
			return nil, err
		}
		if err := os.WriteFile(targets[i], content, 0600); err != nil {
			return nil, fmt.Errorf("failed to write stage %d of %s: %w", i+1, e.Path, err)
		}
	}
	return s, nil
}

// input describes the staged files to a content merger.
func (s *stageFiles) input(path, oursLabel, theirsLabel string) gitrepo.MergeInput {
	return gitrepo.MergeInput{
		Path:        path,
		Dir:         s.dir,
		Ancestor:    s.ancestor,
		Ours:        s.ours,
		Theirs:      s.theirs,
		OursLabel:   oursLabel,
		BaseLabel:   "merge-base",
		TheirsLabel: theirsLabel,
	}
}

// Dir returns the scratch directory.
func (s *stageFiles) Dir() string {
	return s.dir
}

// Close removes the scratch directory and everything in it.
func (s *stageFiles) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if err := os.RemoveAll(s.dir); err != nil {
		return fmt.Errorf("failed to remove stage directory %s: %w", s.dir, err)
	}
	return nil
}
