package cmd

import (
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list [repository]",
	Short: "List active candidate branches",
	Long: `List the branches that would be checked for conflicts.

A branch is listed unless it is the base branch, its last commit is older
than --max-age, it matches an exclude_branches pattern in .cxfinderrc, or
it was forked from a branch that matches one.

Examples:
  # Candidates in the current repository
  cxfinder list

  # Every branch with the reason it was kept or skipped
  cxfinder list --all

  # Another repository, as JSON
  cxfinder list ~/src/project --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runList,
}

var (
	listAll  bool
	listJSON bool
)

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().BoolVarP(&listAll, "all", "a", false, "Show every branch with its status")
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output as JSON")
}

func runList(cmd *cobra.Command, args []string) error {
	path := repoPath
	if len(args) == 1 {
		path = args[0]
	}

	a, err := newApp(path)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	decisions, err := a.explain(cmd.Context())
	if err != nil {
		a.logger.Error("branch filtering failed", "error", err)
		return err
	}

	a.logger.Info("listed branches", "total", len(decisions))
	return a.renderer(cmd, listJSON).Branches(decisions, listAll)
}
