package merge

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/Iron-Ham/cxfinder/internal/gitrepo"
	"github.com/go-git/go-git/v5/plumbing"
)

// memBlobs serves blobs from memory, failing for unknown hashes.
type memBlobs map[plumbing.Hash][]byte

func (m memBlobs) ReadBlob(h plumbing.Hash) ([]byte, error) {
	if b, ok := m[h]; ok {
		return b, nil
	}
	return nil, fmt.Errorf("object %s not found", h)
}

func (m memBlobs) add(content string) *gitrepo.Entry {
	e := blob(content)
	m[e.Hash] = []byte(content)
	return &e
}

func TestStageFiles(t *testing.T) {
	blobs := memBlobs{}
	e := IndexEntry{Path: "src/f.go", Stages: [3]*gitrepo.Entry{blobs.add("base"), blobs.add("ours"), blobs.add("theirs")}}
	root := t.TempDir()

	s, err := newStageFiles(blobs, e, root)
	if err != nil {
		t.Fatalf("newStageFiles() error = %v", err)
	}

	in := s.input(e.Path, "main", "feature")
	for path, want := range map[string]string{in.Ancestor: "base", in.Ours: "ours", in.Theirs: "theirs"} {
		got, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("ReadFile(%s) error = %v", path, err)
		}
		if string(got) != want {
			t.Errorf("%s = %q, want %q", filepath.Base(path), got, want)
		}
	}
	if in.Dir != s.Dir() || filepath.Dir(s.Dir()) != root {
		t.Errorf("stage dir %s not under %s", s.Dir(), root)
	}
	if in.OursLabel != "main" || in.TheirsLabel != "feature" {
		t.Errorf("labels = %q/%q, want main/feature", in.OursLabel, in.TheirsLabel)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, err := os.Stat(s.Dir()); !os.IsNotExist(err) {
		t.Errorf("stage dir still exists after Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestStageFiles_FailureLeavesNothing(t *testing.T) {
	blobs := memBlobs{}
	missing := blob("not stored")
	e := IndexEntry{Path: "f", Stages: [3]*gitrepo.Entry{blobs.add("base"), blobs.add("ours"), &missing}}
	root := t.TempDir()

	if _, err := newStageFiles(blobs, e, root); err == nil {
		t.Fatal("newStageFiles() expected error for unreadable blob")
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("stage root not empty after failure: %v", entries)
	}
}
