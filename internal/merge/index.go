package merge

import (
	"sort"

	"github.com/Iron-Ham/cxfinder/internal/gitrepo"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/samber/lo"
)

// Stage slots of an IndexEntry.
const (
	StageAncestor = 0 // stage 1: the merge-base version
	StageOurs     = 1 // stage 2: the base branch version
	StageTheirs   = 2 // stage 3: the candidate branch version
)

// IndexEntry is a path the trivial rules could not resolve. A nil stage
// means the path is absent on that side.
type IndexEntry struct {
	Path   string
	Stages [3]*gitrepo.Entry
}

// StageCount returns how many of the three stages are present.
func (e IndexEntry) StageCount() int {
	return lo.CountBy(e.Stages[:], func(s *gitrepo.Entry) bool { return s != nil })
}

// Index is the result of a three-way read of ancestor, ours and theirs.
type Index struct {
	// Resolved maps every trivially merged path to its entry. Paths deleted
	// by the merge are absent.
	Resolved map[string]gitrepo.Entry
	// Unmerged lists the remaining paths, sorted by path.
	Unmerged []IndexEntry
}

// BuildIndex performs the trivial part of a three-way merge:
//
//   - ours == theirs: take it (including both deleted)
//   - ancestor == ours: take theirs
//   - ancestor == theirs: take ours
//
// Entries compare equal when both mode and blob match. Every other path is
// left unmerged with whichever stages exist.
func BuildIndex(ancestor, ours, theirs map[string]gitrepo.Entry) *Index {
	paths := lo.Uniq(append(append(lo.Keys(ancestor), lo.Keys(ours)...), lo.Keys(theirs)...))
	sort.Strings(paths)

	idx := &Index{Resolved: make(map[string]gitrepo.Entry, len(paths))}
	for _, p := range paths {
		o, a, b := lookup(ancestor, p), lookup(ours, p), lookup(theirs, p)

		switch {
		case a.Equal(b):
			take(idx.Resolved, p, a)
		case o.Equal(a):
			take(idx.Resolved, p, b)
		case o.Equal(b):
			take(idx.Resolved, p, a)
		default:
			idx.Unmerged = append(idx.Unmerged, IndexEntry{Path: p, Stages: [3]*gitrepo.Entry{o, a, b}})
		}
	}
	return idx
}

func lookup(m map[string]gitrepo.Entry, path string) *gitrepo.Entry {
	if e, ok := m[path]; ok {
		return &e
	}
	return nil
}

func take(resolved map[string]gitrepo.Entry, path string, e *gitrepo.Entry) {
	if e != nil {
		resolved[path] = *e
	}
}

// mergedMode decides the file mode of a three-stage path. It fails when a
// stage is not a regular file or when both sides changed the mode
// differently; such paths cannot be handed to a line-based merge tool.
func mergedMode(e IndexEntry) (filemode.FileMode, bool) {
	o, a, b := e.Stages[StageAncestor], e.Stages[StageOurs], e.Stages[StageTheirs]
	for _, s := range e.Stages {
		if s == nil || !textMode(s.Mode) {
			return filemode.Empty, false
		}
	}

	switch {
	case a.Mode == b.Mode:
		return a.Mode, true
	case o.Mode == a.Mode:
		return b.Mode, true
	case o.Mode == b.Mode:
		return a.Mode, true
	default:
		return filemode.Empty, false
	}
}

func textMode(m filemode.FileMode) bool {
	return m == filemode.Regular || m == filemode.Executable || m == filemode.Deprecated
}

// dirFileCollisions returns paths of resolved entries that also appear as
// a directory prefix of another resolved entry. Such a tree cannot be
// written.
func dirFileCollisions(resolved map[string]gitrepo.Entry) []string {
	var out []string
	for p := range resolved {
		for i := 0; i < len(p); i++ {
			if p[i] != '/' {
				continue
			}
			if _, ok := resolved[p[:i]]; ok {
				out = append(out, p[:i])
			}
		}
	}
	out = lo.Uniq(out)
	sort.Strings(out)
	return out
}
