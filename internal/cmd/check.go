package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/Iron-Ham/cxfinder/internal/errors"
	"github.com/Iron-Ham/cxfinder/internal/gitrepo"
	"github.com/Iron-Ham/cxfinder/internal/merge"
	"github.com/Iron-Ham/cxfinder/internal/report"
	"github.com/Iron-Ham/cxfinder/internal/tui/picker"
	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var checkCmd = &cobra.Command{
	Use:   "check [branch]",
	Short: "Simulate merging a branch into the base branch",
	Long: `Simulate a three-way merge of a branch into the base branch and report
every conflicting file. Nothing is written except unreferenced git objects:
no branch moves, HEAD stays put and the working tree is untouched.

Without arguments the current branch is checked.

Exit status is 0 when every merge is clean, 1 when any merge conflicts and
2 when a simulation could not be completed.

Examples:
  # Check the current branch against main
  cxfinder check

  # Check a named branch against develop
  cxfinder check feature/login --base develop

  # Pick the branch from the active candidates
  cxfinder check -i

  # Check every active candidate
  cxfinder check --all`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCheck,
}

var (
	checkInteractive bool
	checkAll         bool
	checkJSON        bool
	checkParallel    int
)

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().BoolVarP(&checkInteractive, "interactive", "i", false, "Choose the branch from a list")
	checkCmd.Flags().BoolVar(&checkAll, "all", false, "Check every active candidate branch")
	checkCmd.Flags().BoolVar(&checkJSON, "json", false, "Output as JSON")
	checkCmd.Flags().IntVarP(&checkParallel, "parallel", "p", 0, "Simulations to run at once with --all (default merge.parallel)")
}

func runCheck(cmd *cobra.Command, args []string) error {
	if checkAll && (checkInteractive || len(args) > 0) {
		return errors.NewValidationError("--all cannot be combined with a branch or --interactive")
	}
	if checkInteractive && len(args) > 0 {
		return errors.NewValidationError("--interactive cannot be combined with a branch argument")
	}

	a, err := newApp(repoPath)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	ctx := cmd.Context()
	if checkAll {
		return checkCandidates(ctx, cmd, a)
	}

	name, err := chooseBranch(ctx, cmd, a, args)
	if err != nil {
		return err
	}
	return checkOne(ctx, cmd, a, name)
}

// chooseBranch resolves which branch a single check runs against.
func chooseBranch(ctx context.Context, cmd *cobra.Command, a *app, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}

	if checkInteractive {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			return "", errors.NewValidationError("--interactive needs a terminal")
		}
		candidates, err := a.candidates(ctx)
		if err != nil {
			return "", err
		}
		return picker.Run(candidates, a.base, cmd.InOrStdin(), cmd.ErrOrStderr())
	}

	current, err := a.repo.CurrentBranch()
	if err != nil {
		return "", err
	}
	if current == a.base {
		return "", errors.NewValidationError(
			fmt.Sprintf("current branch is the base branch %q; name a branch to check", a.base))
	}
	return current, nil
}

func checkOne(ctx context.Context, cmd *cobra.Command, a *app, name string) error {
	sim, err := a.simulator(a.repo, a.logger)
	if err != nil {
		return err
	}

	res, err := sim.Simulate(ctx, a.base, name)
	if err != nil {
		logFailure(a.logger, "simulation failed", err, "branch", name)
		return err
	}

	if err := a.renderer(cmd, checkJSON).Result(res); err != nil {
		return err
	}
	if res.Status == merge.StatusConflicted {
		return errors.ErrConflictsFound
	}
	return nil
}

// checkCandidates simulates every candidate with a bounded worker pool.
// A failed simulation is reported for its branch and does not stop the
// others.
func checkCandidates(ctx context.Context, cmd *cobra.Command, a *app) error {
	candidates, err := a.candidates(ctx)
	if err != nil {
		return err
	}

	outcomes, err := simulateAll(ctx, a, candidates, parallelism(a))
	if err != nil {
		return err
	}

	if err := a.renderer(cmd, checkJSON).Batch(a.base, outcomes); err != nil {
		return err
	}
	return batchError(outcomes)
}

func parallelism(a *app) int {
	if checkParallel > 0 {
		return checkParallel
	}
	return a.cfg.Merge.Parallel
}

// simulateAll runs one simulation per candidate, at most parallel at a
// time. Outcomes are returned in candidate order. Each worker opens its
// own repository handle.
func simulateAll(ctx context.Context, a *app, candidates []gitrepo.Branch, parallel int) ([]report.Outcome, error) {
	type indexed struct {
		i int
		report.Outcome
	}

	p := pool.NewWithResults[indexed]().WithMaxGoroutines(max(parallel, 1))
	for i, c := range candidates {
		i, c := i, c
		p.Go(func() indexed {
			return indexed{i: i, Outcome: simulateBranch(ctx, a, c.Name)}
		})
	}

	results := p.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	outcomes := make([]report.Outcome, len(candidates))
	for _, r := range results {
		outcomes[r.i] = r.Outcome
	}
	return outcomes, nil
}

func simulateBranch(ctx context.Context, a *app, name string) report.Outcome {
	logger := a.logger.WithBranch(name)

	repo, err := gitrepo.Open(a.repo.Path())
	if err != nil {
		return report.Outcome{Branch: name, Err: err}
	}
	sim, err := a.simulator(repo, logger)
	if err != nil {
		return report.Outcome{Branch: name, Err: err}
	}

	res, err := sim.Simulate(ctx, a.base, name)
	if err != nil {
		logFailure(logger, "simulation failed", err)
		return report.Outcome{Branch: name, Err: err}
	}
	return report.Outcome{Branch: name, Result: res}
}

// batchError turns batch outcomes into the command's exit status: any
// failure is fatal, otherwise any conflict is ErrConflictsFound.
func batchError(outcomes []report.Outcome) error {
	s := report.Summarize(outcomes)
	switch {
	case s.Failed > 0:
		return fmt.Errorf("%d of %d simulations failed", s.Failed, s.Total)
	case s.Conflicted > 0:
		return errors.ErrConflictsFound
	default:
		return nil
	}
}
