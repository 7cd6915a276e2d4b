// Package merge simulates merging a candidate branch into a base branch
// without touching refs, the index or the working tree.
//
// A simulation flattens the trees of both tips and their merge-base,
// resolves the paths the trivial three-way rules can settle, and hands
// every remaining path that exists on all three sides to a ContentMerger.
// Paths missing a stage are reported as structural conflicts. When nothing
// conflicts, the merged tree is written as a detached commit whose only
// parent is the base tip.
package merge

import (
	"context"
	"fmt"
	"time"

	"github.com/Iron-Ham/cxfinder/internal/errors"
	"github.com/Iron-Ham/cxfinder/internal/gitrepo"
	"github.com/Iron-Ham/cxfinder/internal/logging"
	"github.com/go-git/go-git/v5/plumbing"
)

// Backend is the repository surface a simulation needs.
// *gitrepo.Repository satisfies it.
type Backend interface {
	BlobReader
	ResolveBranch(ctx context.Context, name string) (gitrepo.Branch, error)
	MergeBase(ctx context.Context, a, b plumbing.Hash) (gitrepo.Commit, error)
	Entries(ctx context.Context, commit plumbing.Hash) (map[string]gitrepo.Entry, error)
	WriteBlob(content []byte) (plumbing.Hash, error)
	WriteTree(entries map[string]gitrepo.Entry) (plumbing.Hash, error)
	CommitTree(ctx context.Context, req gitrepo.CommitRequest) (plumbing.Hash, error)
}

// Status is the overall outcome of a simulation.
type Status int

const (
	// StatusClean means every path merged and a commit was produced.
	StatusClean Status = iota
	// StatusConflicted means at least one path conflicts; no commit exists.
	StatusConflicted
)

func (s Status) String() string {
	if s == StatusClean {
		return "clean"
	}
	return "conflicted"
}

// MarshalText renders the status by name in JSON output.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ConflictKind distinguishes why a path could not be merged.
type ConflictKind string

const (
	// KindStructural covers paths missing a stage (modify/delete, add/add,
	// delete/delete against a changed ancestor) and paths whose type or
	// mode cannot be reconciled.
	KindStructural ConflictKind = "structural"
	// KindContent covers paths the content merger left with conflicts.
	KindContent ConflictKind = "content"
)

// Conflict is one entry of a ConflictReport.
type Conflict struct {
	Path string       `json:"path"`
	Kind ConflictKind `json:"kind"`
}

// ConflictReport lists conflicting paths in path order. An empty report
// means the merge is clean.
type ConflictReport []Conflict

// Empty reports whether no conflicts were found.
func (r ConflictReport) Empty() bool {
	return len(r) == 0
}

// Paths returns the conflicting paths.
func (r ConflictReport) Paths() []string {
	out := make([]string, len(r))
	for i, c := range r {
		out[i] = c.Path
	}
	return out
}

// PathState is where an unmerged path ended up.
type PathState int

const (
	StatePending PathState = iota
	StateResolved
	StateStructural
	StateContent
	StateAborted
)

func (s PathState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateResolved:
		return "resolved"
	case StateStructural:
		return "structural"
	case StateContent:
		return "content"
	case StateAborted:
		return "aborted"
	default:
		return fmt.Sprintf("PathState(%d)", int(s))
	}
}

// MarshalText renders the state by name in JSON output.
func (s PathState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// PathOutcome records the final state of one unmerged path.
type PathOutcome struct {
	Path   string    `json:"path"`
	Stages int       `json:"stages"`
	State  PathState `json:"state"`
}

// SyntheticCommit is a commit object written for a clean simulation. No
// ref points at it.
type SyntheticCommit struct {
	Hash     plumbing.Hash
	TreeHash plumbing.Hash
	Parent   plumbing.Hash
	When     time.Time
}

// Result is the outcome of Simulate. Exactly one of Report (non-empty) and
// Commit is set.
type Result struct {
	Status    Status
	Base      gitrepo.Branch
	Candidate gitrepo.Branch
	MergeBase gitrepo.Commit
	Report    ConflictReport
	Commit    *SyntheticCommit
	// Paths holds every path that needed more than a trivial resolution.
	Paths []PathOutcome
}

// Config configures a Simulator.
type Config struct {
	// AuthorName and AuthorEmail sign synthetic commits.
	AuthorName  string
	AuthorEmail string
	// ConflictLimit overrides the merger's own limit when positive.
	ConflictLimit int
	// KeepTemp leaves per-path stage directories in place after a clean or
	// conflicting merge. They are always removed when a run aborts.
	KeepTemp bool
	// TempDir is where stage directories are created; os.TempDir when empty.
	TempDir string
	Logger  *logging.Logger
}

// Simulator runs merge simulations against one repository. A Simulator is
// not safe for concurrent use; create one per worker.
type Simulator struct {
	repo   Backend
	merger ContentMerger
	cfg    Config
	logger *logging.Logger
}

// NewSimulator creates a Simulator.
func NewSimulator(repo Backend, merger ContentMerger, cfg Config) *Simulator {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NopLogger()
	}
	if cfg.AuthorName == "" {
		cfg.AuthorName = "cxfinder"
	}
	if cfg.AuthorEmail == "" {
		cfg.AuthorEmail = "cxfinder@localhost"
	}
	return &Simulator{repo: repo, merger: merger, cfg: cfg, logger: logger}
}

func (s *Simulator) conflictLimit() int {
	if s.cfg.ConflictLimit > 0 {
		return s.cfg.ConflictLimit
	}
	return s.merger.ConflictLimit()
}

// Simulate merges candidate into base. Conflicts are reported in the
// Result; the error is reserved for failures that stop the simulation: a
// missing branch, unrelated histories, a content merger failure or
// cancellation.
func (s *Simulator) Simulate(ctx context.Context, base, candidate string) (*Result, error) {
	logger := s.logger.WithBranch(candidate).With("base", base)

	baseTip, err := s.repo.ResolveBranch(ctx, base)
	if err != nil {
		return nil, err
	}
	candTip, err := s.repo.ResolveBranch(ctx, candidate)
	if err != nil {
		return nil, err
	}

	lca, err := s.repo.MergeBase(ctx, baseTip.Hash, candTip.Hash)
	if err != nil {
		return nil, err
	}
	logger.Debug("merge base found", "merge_base", lca.Hash.String())

	ancestor, err := s.repo.Entries(ctx, lca.Hash)
	if err != nil {
		return nil, err
	}
	ours, err := s.repo.Entries(ctx, baseTip.Hash)
	if err != nil {
		return nil, err
	}
	theirs, err := s.repo.Entries(ctx, candTip.Hash)
	if err != nil {
		return nil, err
	}

	idx := BuildIndex(ancestor, ours, theirs)
	res := &Result{
		Base:      baseTip,
		Candidate: candTip,
		MergeBase: lca,
		Paths:     make([]PathOutcome, len(idx.Unmerged)),
	}
	for i, e := range idx.Unmerged {
		res.Paths[i] = PathOutcome{Path: e.Path, Stages: e.StageCount(), State: StatePending}
	}

	var kept stageSet
	for i, e := range idx.Unmerged {
		if err := ctx.Err(); err != nil {
			kept.release(logger)
			return nil, err
		}

		state, merged, err := s.resolvePath(ctx, e, base, candidate, &kept)
		res.Paths[i].State = state
		if err != nil {
			logger.Error("simulation aborted", "path", e.Path, "error", err.Error())
			kept.release(logger)
			return nil, err
		}

		switch state {
		case StateResolved:
			idx.Resolved[e.Path] = merged
		case StateStructural:
			res.Report = append(res.Report, Conflict{Path: e.Path, Kind: KindStructural})
		case StateContent:
			res.Report = append(res.Report, Conflict{Path: e.Path, Kind: KindContent})
		}
		logger.Debug("path merged", "path", e.Path, "state", state.String())
	}

	// A file on one side and a directory on the other survive the trivial
	// rules individually but cannot share a tree.
	if res.Report.Empty() {
		for _, p := range dirFileCollisions(idx.Resolved) {
			res.Report = append(res.Report, Conflict{Path: p, Kind: KindStructural})
			res.Paths = append(res.Paths, PathOutcome{Path: p, Stages: 2, State: StateStructural})
		}
	}

	if !res.Report.Empty() {
		res.Status = StatusConflicted
		logger.Info("merge conflicts found", "conflicts", len(res.Report))
		return res, nil
	}

	commit, err := s.commit(ctx, idx.Resolved, baseTip, candTip)
	if err != nil {
		kept.release(logger)
		return nil, err
	}
	res.Status = StatusClean
	res.Commit = commit
	logger.Info("merge is clean", "commit", commit.Hash.String())
	return res, nil
}

// stageSet holds the stage directories kept with Config.KeepTemp until the
// run either finishes or aborts.
type stageSet []*stageFiles

func (k stageSet) release(logger *logging.Logger) {
	for _, files := range k {
		if err := files.Close(); err != nil {
			logger.Warn("failed to clean up stage files", "dir", files.Dir(), "error", err.Error())
		}
	}
}

// resolvePath drives one unmerged path from pending to its final state.
// Stage directories kept for debugging are appended to kept.
func (s *Simulator) resolvePath(ctx context.Context, e IndexEntry, base, candidate string, kept *stageSet) (PathState, gitrepo.Entry, error) {
	if e.StageCount() < 3 {
		return StateStructural, gitrepo.Entry{}, nil
	}
	mode, ok := mergedMode(e)
	if !ok {
		return StateStructural, gitrepo.Entry{}, nil
	}

	files, err := newStageFiles(s.repo, e, s.cfg.TempDir)
	if err != nil {
		return StateAborted, gitrepo.Entry{}, err
	}
	aborted := true
	defer func() {
		if s.cfg.KeepTemp && !aborted {
			s.logger.Debug("kept stage files", "path", e.Path, "dir", files.Dir())
			*kept = append(*kept, files)
			return
		}
		if err := files.Close(); err != nil {
			s.logger.Warn("failed to clean up stage files", "path", e.Path, "error", err.Error())
		}
	}()

	out, err := s.merger.Merge(ctx, files.input(e.Path, base, candidate))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return StateAborted, gitrepo.Entry{}, ctxErr
		}
		return StateAborted, gitrepo.Entry{}, errors.NewMergeToolError(e.Path, out.ExitCode).
			WithTool(s.merger.Name()).
			WithStderr(out.Stderr).
			WithCause(err)
	}

	switch {
	case out.ExitCode == 0:
		hash, err := s.repo.WriteBlob(out.Merged)
		if err != nil {
			return StateAborted, gitrepo.Entry{}, err
		}
		aborted = false
		return StateResolved, gitrepo.Entry{Mode: mode, Hash: hash}, nil
	case out.ExitCode >= 1 && out.ExitCode <= s.conflictLimit():
		aborted = false
		return StateContent, gitrepo.Entry{}, nil
	default:
		return StateAborted, gitrepo.Entry{}, errors.NewMergeToolError(e.Path, out.ExitCode).
			WithTool(s.merger.Name()).
			WithStderr(out.Stderr)
	}
}

// commit writes the merged tree and a commit on top of the base tip. The
// timestamp is the later of the two tips so that repeated runs over the
// same history produce the same commit.
func (s *Simulator) commit(ctx context.Context, entries map[string]gitrepo.Entry, base, candidate gitrepo.Branch) (*SyntheticCommit, error) {
	tree, err := s.repo.WriteTree(entries)
	if err != nil {
		return nil, err
	}

	when := base.When
	if candidate.When.After(when) {
		when = candidate.When
	}
	sig := gitrepo.Signature{Name: s.cfg.AuthorName, Email: s.cfg.AuthorEmail, When: when}

	hash, err := s.repo.CommitTree(ctx, gitrepo.CommitRequest{
		Tree:      tree,
		Parents:   []plumbing.Hash{base.Hash},
		Author:    sig,
		Committer: sig,
		Message:   commitMessage(base.Name, candidate.Name),
	})
	if err != nil {
		return nil, err
	}

	return &SyntheticCommit{Hash: hash, TreeHash: tree, Parent: base.Hash, When: when}, nil
}

func commitMessage(base, candidate string) string {
	return fmt.Sprintf("Simulated merge of '%s' into '%s'\n", candidate, base)
}
