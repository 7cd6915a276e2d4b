package branch

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Iron-Ham/cxfinder/internal/config"
	"github.com/Iron-Ham/cxfinder/internal/errors"
	"github.com/Iron-Ham/cxfinder/internal/gitrepo"
	"github.com/Iron-Ham/cxfinder/internal/testutil"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/samber/lo"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func hash(n int) plumbing.Hash {
	return plumbing.NewHash(fmt.Sprintf("%040x", n))
}

func br(name string, n int, when time.Time) gitrepo.Branch {
	return gitrepo.Branch{Name: name, Hash: hash(n), When: when}
}

// fakeGraph answers MergeBase from a table keyed by the unordered pair.
type fakeGraph struct {
	bases map[[2]plumbing.Hash]gitrepo.Commit
	err   error
	calls int
}

func newFakeGraph() *fakeGraph {
	return &fakeGraph{bases: make(map[[2]plumbing.Hash]gitrepo.Commit)}
}

func pairKey(a, b plumbing.Hash) [2]plumbing.Hash {
	if b.String() < a.String() {
		a, b = b, a
	}
	return [2]plumbing.Hash{a, b}
}

func (g *fakeGraph) set(a, b gitrepo.Branch, when time.Time) {
	g.bases[pairKey(a.Hash, b.Hash)] = gitrepo.Commit{Hash: hash(int(when.Unix())), When: when}
}

func (g *fakeGraph) MergeBase(_ context.Context, a, b plumbing.Hash) (gitrepo.Commit, error) {
	g.calls++
	if g.err != nil {
		return gitrepo.Commit{}, g.err
	}
	if c, ok := g.bases[pairKey(a, b)]; ok {
		return c, nil
	}
	return gitrepo.Commit{}, errors.NewGitError("no merge base", errors.ErrNoMergeBase)
}

func names(branches []gitrepo.Branch) []string {
	return lo.Map(branches, func(b gitrepo.Branch, _ int) string { return b.Name })
}

func rules(patterns ...string) []config.ExclusionRule {
	return lo.Map(patterns, func(p string, _ int) config.ExclusionRule { return config.MustCompileRule(p) })
}

func equalNames(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestFirstPass(t *testing.T) {
	cutoff := t0.Add(-7 * 24 * time.Hour)
	opts := Options{BaseBranch: "main", Cutoff: cutoff, Rules: rules("wip/", "glob:release/*")}

	tests := []struct {
		name       string
		branch     gitrepo.Branch
		wantReason Reason
		wantBy     string
	}{
		{"base by name", br("main", 1, t0), ReasonBase, ""},
		{"base even when stale", br("main", 1, cutoff.Add(-time.Hour)), ReasonBase, ""},
		{"stale", br("feature/old", 2, cutoff.Add(-time.Second)), ReasonStale, ""},
		{"exactly at cutoff is kept", br("feature/edge", 3, cutoff), ReasonKept, ""},
		{"stale wins over pattern", br("wip/old", 4, cutoff.Add(-time.Hour)), ReasonStale, ""},
		{"regex pattern", br("wip/foo", 5, t0), ReasonPattern, "wip/"},
		{"glob pattern", br("release/1.0", 6, t0), ReasonPattern, "glob:release/*"},
		{"regex is anchored at start only", br("feature/wip/x", 7, t0), ReasonKept, ""},
		{"glob does not cross separators", br("release/1.0/hotfix", 8, t0), ReasonKept, ""},
		{"ordinary branch", br("feature/bar", 9, t0), ReasonKept, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := firstPass(tt.branch, opts)
			if d.Reason != tt.wantReason {
				t.Errorf("Reason = %v, want %v", d.Reason, tt.wantReason)
			}
			if d.ExcludedBy != tt.wantBy {
				t.Errorf("ExcludedBy = %q, want %q", d.ExcludedBy, tt.wantBy)
			}
		})
	}
}

func TestReason_String(t *testing.T) {
	tests := map[Reason]string{
		ReasonKept:    "kept",
		ReasonBase:    "base",
		ReasonStale:   "stale",
		ReasonPattern: "pattern",
		ReasonLineage: "lineage",
		Reason(42):    "Reason(42)",
	}
	for r, want := range tests {
		if got := r.String(); got != want {
			t.Errorf("Reason(%d).String() = %q, want %q", int(r), got, want)
		}
	}
}

func TestExplain_Lineage(t *testing.T) {
	main := br("main", 1, t0)
	wip := br("wip/foo", 2, t0)
	child := br("feature/bar", 3, t0)
	sibling := br("feature/ok", 4, t0)
	tie := br("feature/tie", 5, t0)

	g := newFakeGraph()
	old := t0.Add(-10 * 24 * time.Hour)
	g.set(child, main, old)
	g.set(child, wip, old.Add(time.Hour))
	g.set(sibling, main, old.Add(2*time.Hour))
	g.set(sibling, wip, old)
	g.set(tie, main, old)
	g.set(tie, wip, old)

	decisions, err := Explain(context.Background(), g, []gitrepo.Branch{main, wip, child, sibling, tie}, Options{
		BaseBranch: "main",
		Cutoff:     t0.Add(-30 * 24 * time.Hour),
		Rules:      rules("^wip/"),
	})
	if err != nil {
		t.Fatalf("Explain() error = %v", err)
	}

	want := []struct {
		reason Reason
		by     string
	}{
		{ReasonBase, ""},
		{ReasonPattern, "^wip/"},
		{ReasonLineage, "wip/foo"},
		{ReasonKept, ""},
		{ReasonKept, ""}, // equal merge-base times do not exclude
	}
	if len(decisions) != len(want) {
		t.Fatalf("got %d decisions, want %d", len(decisions), len(want))
	}
	for i, w := range want {
		d := decisions[i]
		if d.Reason != w.reason || d.ExcludedBy != w.by {
			t.Errorf("%s: got (%v, %q), want (%v, %q)", d.Branch.Name, d.Reason, d.ExcludedBy, w.reason, w.by)
		}
	}
}

func TestFilter_NoExcludedSkipsGraph(t *testing.T) {
	g := newFakeGraph()
	g.err = fmt.Errorf("graph must not be queried")

	branches := []gitrepo.Branch{br("main", 1, t0), br("b", 2, t0), br("a", 3, t0)}
	got, err := Filter(context.Background(), g, branches, Options{BaseBranch: "main"})
	if err != nil {
		t.Fatalf("Filter() error = %v", err)
	}
	if !equalNames(names(got), []string{"b", "a"}) {
		t.Errorf("Filter() = %v, want input order [b a]", names(got))
	}
	if g.calls != 0 {
		t.Errorf("graph queried %d times, want 0", g.calls)
	}
}

func TestFilter_OrderIndependent(t *testing.T) {
	main := br("main", 1, t0)
	exA := br("wip/a", 2, t0)
	exB := br("wip/b", 3, t0)
	cand := br("feature/x", 4, t0)

	g := newFakeGraph()
	old := t0.Add(-48 * time.Hour)
	g.set(cand, main, old)
	g.set(cand, exA, old.Add(-time.Hour)) // says keep
	g.set(cand, exB, old.Add(time.Hour))  // says exclude

	opts := Options{BaseBranch: "main", Rules: rules("wip/")}
	orders := [][]gitrepo.Branch{
		{main, exA, exB, cand},
		{main, exB, exA, cand},
		{cand, exB, exA, main},
	}
	for i, order := range orders {
		decisions, err := Explain(context.Background(), g, order, opts)
		if err != nil {
			t.Fatalf("order %d: Explain() error = %v", i, err)
		}
		d, _ := lo.Find(decisions, func(d Decision) bool { return d.Branch.Name == "feature/x" })
		if d.Reason != ReasonLineage || d.ExcludedBy != "wip/b" {
			t.Errorf("order %d: got (%v, %q), want (lineage, wip/b)", i, d.Reason, d.ExcludedBy)
		}
	}
}

func TestFilter_MostRecentAncestorNamed(t *testing.T) {
	main := br("main", 1, t0)
	exA := br("wip/a", 2, t0)
	exB := br("wip/b", 3, t0)
	cand := br("feature/x", 4, t0)

	g := newFakeGraph()
	old := t0.Add(-48 * time.Hour)
	g.set(cand, main, old)
	g.set(cand, exA, old.Add(2*time.Hour))
	g.set(cand, exB, old.Add(time.Hour))

	decisions, err := Explain(context.Background(), g, []gitrepo.Branch{main, exB, exA, cand}, Options{
		BaseBranch: "main",
		Rules:      rules("wip/"),
	})
	if err != nil {
		t.Fatalf("Explain() error = %v", err)
	}
	if got := decisions[3].ExcludedBy; got != "wip/a" {
		t.Errorf("ExcludedBy = %q, want wip/a", got)
	}
}

func TestFilter_MissingMergeBases(t *testing.T) {
	main := br("main", 1, t0)
	ex := br("wip/x", 2, t0)
	old := t0.Add(-24 * time.Hour)

	tests := []struct {
		name  string
		setup func(g *fakeGraph, cand gitrepo.Branch)
		want  Reason
	}{
		{
			name: "no ancestor with excluded branch",
			setup: func(g *fakeGraph, cand gitrepo.Branch) {
				g.set(cand, main, old)
			},
			want: ReasonKept,
		},
		{
			name: "no ancestor with base but shared with excluded",
			setup: func(g *fakeGraph, cand gitrepo.Branch) {
				g.set(cand, ex, old)
			},
			want: ReasonLineage,
		},
		{
			name:  "disjoint from everything",
			setup: func(*fakeGraph, gitrepo.Branch) {},
			want:  ReasonKept,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cand := br("feature/c", 3, t0)
			g := newFakeGraph()
			tt.setup(g, cand)

			decisions, err := Explain(context.Background(), g, []gitrepo.Branch{main, ex, cand}, Options{
				BaseBranch: "main",
				Rules:      rules("wip/"),
			})
			if err != nil {
				t.Fatalf("Explain() error = %v", err)
			}
			if decisions[2].Reason != tt.want {
				t.Errorf("Reason = %v, want %v", decisions[2].Reason, tt.want)
			}
		})
	}
}

func TestFilter_Errors(t *testing.T) {
	main := br("main", 1, t0)
	ex := br("wip/x", 2, t0)
	cand := br("feature/c", 3, t0)
	opts := Options{BaseBranch: "main", Rules: rules("wip/")}

	t.Run("backend failure", func(t *testing.T) {
		g := newFakeGraph()
		g.err = errors.NewGitError("object store corrupt", nil)
		_, err := Filter(context.Background(), g, []gitrepo.Branch{main, ex, cand}, opts)
		var gitErr *errors.GitError
		if !errors.As(err, &gitErr) {
			t.Fatalf("Filter() error = %v, want *GitError", err)
		}
	})

	t.Run("base branch missing", func(t *testing.T) {
		_, err := Filter(context.Background(), newFakeGraph(), []gitrepo.Branch{ex, cand}, opts)
		if !errors.Is(err, errors.ErrBranchNotFound) {
			t.Errorf("Filter() error = %v, want ErrBranchNotFound", err)
		}
	})

	t.Run("canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := Filter(ctx, newFakeGraph(), []gitrepo.Branch{main, cand}, opts)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Filter() error = %v, want context.Canceled", err)
		}
	})
}

func TestFilter_MonotonicInPatterns(t *testing.T) {
	main := br("main", 1, t0)
	branches := []gitrepo.Branch{
		main,
		br("wip/a", 2, t0),
		br("feature/from-wip", 3, t0),
		br("release/1", 4, t0),
		br("feature/from-release", 5, t0),
		br("feature/plain", 6, t0),
		br("spike/x", 7, t0),
	}

	// Each non-base branch forks from main at `old`; the two "from-*"
	// branches fork later from their parent branch.
	g := newFakeGraph()
	old := t0.Add(-72 * time.Hour)
	for _, a := range branches {
		for _, b := range branches {
			if a.Name != b.Name {
				g.set(a, b, old)
			}
		}
	}
	g.set(branches[2], branches[1], old.Add(time.Hour))
	g.set(branches[4], branches[3], old.Add(time.Hour))

	patternSets := [][]string{
		{},
		{"wip/"},
		{"wip/", "release/"},
		{"wip/", "release/", "spike/"},
		{"wip/", "release/", "spike/", "feature/plain"},
	}

	var prev []string
	for i, patterns := range patternSets {
		got, err := Filter(context.Background(), g, branches, Options{BaseBranch: "main", Rules: rules(patterns...)})
		if err != nil {
			t.Fatalf("patterns %v: Filter() error = %v", patterns, err)
		}
		cur := names(got)
		if i > 0 && !lo.Every(prev, cur) {
			t.Errorf("adding patterns %v grew the surviving set: %v -> %v", patterns, prev, cur)
		}
		prev = cur
	}

	if len(prev) != 0 {
		t.Errorf("final surviving set = %v, want empty", prev)
	}
}

func TestFilter_Scenarios(t *testing.T) {
	t.Run("single candidate", func(t *testing.T) {
		fx := testutil.NewRepo(t)
		fx.Commit("main", testutil.Days(3), map[string]string{"x": "1"})
		fx.Branch("candidate", "main")
		fx.Commit("candidate", testutil.Ago(time.Minute), map[string]string{"x": "2"})

		repo, err := gitrepo.Open(fx.Path)
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		all, err := repo.Branches(context.Background())
		if err != nil {
			t.Fatalf("Branches() error = %v", err)
		}

		got, err := Filter(context.Background(), repo, all, Options{
			BaseBranch: "main",
			Cutoff:     time.Now().Add(-30 * 24 * time.Hour),
		})
		if err != nil {
			t.Fatalf("Filter() error = %v", err)
		}
		if !equalNames(names(got), []string{"candidate"}) {
			t.Errorf("Filter() = %v, want [candidate]", names(got))
		}
	})

	t.Run("lineage from wip branch", func(t *testing.T) {
		fx := testutil.NewRepo(t)
		fx.Commit("main", testutil.Days(10), map[string]string{"base.txt": "base"})
		fx.Branch("wip/foo", "main")
		fx.Branch("feature/ok", "main")
		fx.Commit("wip/foo", testutil.Days(4), map[string]string{"wip.txt": "1"})
		fx.Branch("feature/bar", "wip/foo")
		fx.Commit("feature/bar", testutil.Days(1), map[string]string{"bar.txt": "1"})
		fx.Commit("wip/foo", testutil.Days(2), map[string]string{"wip.txt": "2"})
		fx.Commit("feature/ok", testutil.Days(1), map[string]string{"ok.txt": "1"})

		repo, err := gitrepo.Open(fx.Path)
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		all, err := repo.Branches(context.Background())
		if err != nil {
			t.Fatalf("Branches() error = %v", err)
		}

		decisions, err := Explain(context.Background(), repo, all, Options{
			BaseBranch: "main",
			Cutoff:     time.Now().Add(-30 * 24 * time.Hour),
			Rules:      rules("^wip/"),
		})
		if err != nil {
			t.Fatalf("Explain() error = %v", err)
		}

		got := lo.SliceToMap(decisions, func(d Decision) (string, Reason) { return d.Branch.Name, d.Reason })
		want := map[string]Reason{
			"feature/bar": ReasonLineage,
			"feature/ok":  ReasonKept,
			"main":        ReasonBase,
			"wip/foo":     ReasonPattern,
		}
		for name, reason := range want {
			if got[name] != reason {
				t.Errorf("%s: Reason = %v, want %v", name, got[name], reason)
			}
		}
	})
}
