// Package branch selects the candidate branches worth checking for conflicts.
//
// Selection runs in two passes. The first pass looks at each branch on its
// own: the base branch, stale branches and branches matching an exclusion
// rule are dropped. The second pass drops survivors that descend from a
// pattern-excluded branch, judged by comparing merge-base timestamps: a
// branch forked from an excluded branch shares a more recent ancestor with
// it than with the base branch.
package branch

import (
	"context"
	"fmt"
	"time"

	"github.com/Iron-Ham/cxfinder/internal/config"
	"github.com/Iron-Ham/cxfinder/internal/errors"
	"github.com/Iron-Ham/cxfinder/internal/gitrepo"
	"github.com/Iron-Ham/cxfinder/internal/logging"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/samber/lo"
)

// Graph is the commit-graph query the lineage pass needs.
// *gitrepo.Repository satisfies it.
type Graph interface {
	MergeBase(ctx context.Context, a, b plumbing.Hash) (gitrepo.Commit, error)
}

// Options controls a filter run.
type Options struct {
	// BaseBranch is the branch candidates would merge into. It must appear
	// among the enumerated branches when the lineage pass runs.
	BaseBranch string
	// Cutoff is the age threshold; tips committed strictly before it are stale.
	Cutoff time.Time
	// Rules are the compiled exclusion patterns.
	Rules []config.ExclusionRule
	// Logger receives one debug record per decision. Nil disables logging.
	Logger *logging.Logger
}

// Reason records why a branch was kept or dropped.
type Reason int

const (
	// ReasonKept marks a surviving branch.
	ReasonKept Reason = iota
	// ReasonBase marks the base branch itself.
	ReasonBase
	// ReasonStale marks a branch whose tip is older than the cutoff.
	ReasonStale
	// ReasonPattern marks a branch matched by an exclusion rule.
	ReasonPattern
	// ReasonLineage marks a branch descended from a pattern-excluded branch.
	ReasonLineage
)

// String returns the reason as shown by `cxfinder list --all`.
func (r Reason) String() string {
	switch r {
	case ReasonKept:
		return "kept"
	case ReasonBase:
		return "base"
	case ReasonStale:
		return "stale"
	case ReasonPattern:
		return "pattern"
	case ReasonLineage:
		return "lineage"
	default:
		return fmt.Sprintf("Reason(%d)", int(r))
	}
}

// MarshalText lets reasons appear by name in JSON output.
func (r Reason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// Decision is the outcome of filtering one branch.
type Decision struct {
	Branch gitrepo.Branch
	Reason Reason
	// ExcludedBy names the rule (ReasonPattern) or the excluded branch
	// (ReasonLineage) responsible for dropping the branch.
	ExcludedBy string
}

// Kept reports whether the branch survived filtering.
func (d Decision) Kept() bool {
	return d.Reason == ReasonKept
}

// Filter returns the candidate branches, in the order they were given.
func Filter(ctx context.Context, graph Graph, branches []gitrepo.Branch, opts Options) ([]gitrepo.Branch, error) {
	decisions, err := Explain(ctx, graph, branches, opts)
	if err != nil {
		return nil, err
	}
	return lo.FilterMap(decisions, func(d Decision, _ int) (gitrepo.Branch, bool) {
		return d.Branch, d.Kept()
	}), nil
}

// Explain returns one Decision per input branch, in input order.
func Explain(ctx context.Context, graph Graph, branches []gitrepo.Branch, opts Options) ([]Decision, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NopLogger()
	}

	decisions := make([]Decision, len(branches))
	var excluded []gitrepo.Branch

	for i, b := range branches {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		decisions[i] = firstPass(b, opts)
		if decisions[i].Reason == ReasonPattern {
			excluded = append(excluded, b)
		}
	}

	if len(excluded) > 0 {
		base, ok := lo.Find(branches, func(b gitrepo.Branch) bool {
			return b.Name == opts.BaseBranch
		})
		if !ok {
			return nil, errors.NewNotFoundError("branch", opts.BaseBranch).WithCause(errors.ErrBranchNotFound)
		}

		for i := range decisions {
			if !decisions[i].Kept() {
				continue
			}
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			by, err := descendsFrom(ctx, graph, decisions[i].Branch, base, excluded)
			if err != nil {
				return nil, err
			}
			if by != "" {
				decisions[i].Reason = ReasonLineage
				decisions[i].ExcludedBy = by
			}
		}
	}

	for _, d := range decisions {
		logger.WithBranch(d.Branch.Name).Debug("branch filtered",
			"reason", d.Reason.String(),
			"excluded_by", d.ExcludedBy,
		)
	}
	return decisions, nil
}

// firstPass applies the per-branch checks in order, stopping at the first hit.
func firstPass(b gitrepo.Branch, opts Options) Decision {
	if b.Name == opts.BaseBranch {
		return Decision{Branch: b, Reason: ReasonBase}
	}
	if b.When.Before(opts.Cutoff) {
		return Decision{Branch: b, Reason: ReasonStale}
	}
	for _, rule := range opts.Rules {
		if rule.Match(b.Name) {
			return Decision{Branch: b, Reason: ReasonPattern, ExcludedBy: rule.String()}
		}
	}
	return Decision{Branch: b, Reason: ReasonKept}
}

// descendsFrom returns the name of the excluded branch whose merge-base with
// candidate is strictly more recent than candidate's merge-base with base,
// or "" if there is none. Every excluded branch is compared; when several
// qualify the one sharing the most recent ancestor wins, earlier input order
// breaking ties. A missing merge-base with base counts as older than any
// real ancestor; a missing merge-base with an excluded branch never excludes.
func descendsFrom(ctx context.Context, graph Graph, candidate, base gitrepo.Branch, excluded []gitrepo.Branch) (string, error) {
	lcaBase, err := graph.MergeBase(ctx, candidate.Hash, base.Hash)
	hasBase := true
	if errors.Is(err, errors.ErrNoMergeBase) {
		hasBase = false
	} else if err != nil {
		return "", err
	}

	var (
		by     string
		byWhen time.Time
	)
	for _, ex := range excluded {
		lcaEx, err := graph.MergeBase(ctx, candidate.Hash, ex.Hash)
		if errors.Is(err, errors.ErrNoMergeBase) {
			continue
		}
		if err != nil {
			return "", err
		}
		if hasBase && !lcaEx.When.After(lcaBase.When) {
			continue
		}
		if by == "" || lcaEx.When.After(byWhen) {
			by, byWhen = ex.Name, lcaEx.When
		}
	}
	return by, nil
}
