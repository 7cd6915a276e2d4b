package merge

import (
	"reflect"
	"testing"

	"github.com/Iron-Ham/cxfinder/internal/gitrepo"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
)

func blob(s string) gitrepo.Entry {
	return gitrepo.Entry{Mode: filemode.Regular, Hash: plumbing.ComputeHash(plumbing.BlobObject, []byte(s))}
}

func withMode(e gitrepo.Entry, m filemode.FileMode) gitrepo.Entry {
	e.Mode = m
	return e
}

func TestBuildIndex(t *testing.T) {
	a, b, c := blob("a"), blob("b"), blob("c")

	ancestor := map[string]gitrepo.Entry{
		"same":           a,
		"ours-changed":   a,
		"theirs-changed": a,
		"both-same":      a,
		"both-differ":    a,
		"ours-deleted":   a,
		"theirs-deleted": a,
		"both-deleted":   a,
		"modify-delete":  a,
		"mode-change":    a,
	}
	ours := map[string]gitrepo.Entry{
		"same":           a,
		"ours-changed":   b,
		"theirs-changed": a,
		"both-same":      b,
		"both-differ":    b,
		"theirs-deleted": a,
		"modify-delete":  b,
		"mode-change":    withMode(a, filemode.Executable),
		"ours-added":     c,
		"add-add":        b,
		"add-add-same":   c,
	}
	theirs := map[string]gitrepo.Entry{
		"same":           a,
		"ours-changed":   a,
		"theirs-changed": b,
		"both-same":      b,
		"both-differ":    c,
		"ours-deleted":   a,
		"mode-change":    a,
		"theirs-added":   c,
		"add-add":        c,
		"add-add-same":   c,
	}

	idx := BuildIndex(ancestor, ours, theirs)

	wantResolved := map[string]gitrepo.Entry{
		"same":           a,
		"ours-changed":   b,
		"theirs-changed": b,
		"both-same":      b,
		"mode-change":    withMode(a, filemode.Executable),
		"ours-added":     c,
		"theirs-added":   c,
		"add-add-same":   c,
	}
	if !reflect.DeepEqual(idx.Resolved, wantResolved) {
		t.Errorf("Resolved = %v\nwant %v", idx.Resolved, wantResolved)
	}

	wantUnmerged := map[string]int{
		"add-add":       2,
		"both-differ":   3,
		"modify-delete": 2,
	}
	if len(idx.Unmerged) != len(wantUnmerged) {
		t.Fatalf("got %d unmerged paths, want %d: %v", len(idx.Unmerged), len(wantUnmerged), idx.Unmerged)
	}
	for i, e := range idx.Unmerged {
		if i > 0 && idx.Unmerged[i-1].Path >= e.Path {
			t.Errorf("unmerged paths not sorted: %s before %s", idx.Unmerged[i-1].Path, e.Path)
		}
		want, ok := wantUnmerged[e.Path]
		if !ok {
			t.Errorf("unexpected unmerged path %s", e.Path)
			continue
		}
		if got := e.StageCount(); got != want {
			t.Errorf("%s: StageCount() = %d, want %d", e.Path, got, want)
		}
	}

	for _, gone := range []string{"ours-deleted", "theirs-deleted", "both-deleted"} {
		if _, ok := idx.Resolved[gone]; ok {
			t.Errorf("%s should be deleted from the merge result", gone)
		}
	}
}

func TestBuildIndex_StageSlots(t *testing.T) {
	a, b, c := blob("a"), blob("b"), blob("c")
	idx := BuildIndex(
		map[string]gitrepo.Entry{"f": a},
		map[string]gitrepo.Entry{"f": b},
		map[string]gitrepo.Entry{"f": c},
	)
	if len(idx.Unmerged) != 1 {
		t.Fatalf("got %d unmerged, want 1", len(idx.Unmerged))
	}
	s := idx.Unmerged[0].Stages
	if *s[StageAncestor] != a || *s[StageOurs] != b || *s[StageTheirs] != c {
		t.Errorf("stages = %v %v %v, want ancestor/ours/theirs in order", s[0], s[1], s[2])
	}
}

func TestMergedMode(t *testing.T) {
	reg, exe := filemode.Regular, filemode.Executable

	tests := []struct {
		name     string
		o, a, b  filemode.FileMode
		wantMode filemode.FileMode
		wantOK   bool
	}{
		{"unchanged", reg, reg, reg, reg, true},
		{"ours made executable", reg, exe, reg, exe, true},
		{"theirs made executable", reg, reg, exe, exe, true},
		{"both made executable", reg, exe, exe, exe, true},
		{"symlink stage", reg, filemode.Symlink, reg, filemode.Empty, false},
		{"submodule stage", filemode.Submodule, filemode.Submodule, filemode.Submodule, filemode.Empty, false},
		{"both changed differently", filemode.Deprecated, exe, reg, filemode.Empty, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, a, b := withMode(blob("o"), tt.o), withMode(blob("a"), tt.a), withMode(blob("b"), tt.b)
			mode, ok := mergedMode(IndexEntry{Path: "f", Stages: [3]*gitrepo.Entry{&o, &a, &b}})
			if ok != tt.wantOK || mode != tt.wantMode {
				t.Errorf("mergedMode() = (%v, %v), want (%v, %v)", mode, ok, tt.wantMode, tt.wantOK)
			}
		})
	}
}

func TestDirFileCollisions(t *testing.T) {
	e := blob("x")
	got := dirFileCollisions(map[string]gitrepo.Entry{
		"a":       e,
		"a/b":     e,
		"a/c":     e,
		"dir/sub": e,
		"dir/s":   e,
		"x/y":     e,
		"x/y/z":   e,
		"plain":   e,
	})
	want := []string{"a", "x/y"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("dirFileCollisions() = %v, want %v", got, want)
	}
}
