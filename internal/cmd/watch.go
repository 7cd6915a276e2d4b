package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Iron-Ham/cxfinder/internal/errors"
	"github.com/Iron-Ham/cxfinder/internal/watch"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-check candidate branches whenever branch tips move",
	Long: `Check every active candidate branch, then keep watching the repository's
refs and check again each time a branch is committed to, created, deleted
or fetched. Stop with Ctrl+C.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

var watchDebounce time.Duration

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", watch.DefaultDebounce, "Quiet period before re-checking")
}

func runWatch(cmd *cobra.Command, args []string) error {
	a, err := newApp(repoPath)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	w, err := watch.New(a.repo.GitDir(), watch.Options{
		Debounce: watchDebounce,
		Logger:   a.logger,
	})
	if err != nil {
		return err
	}

	round := func(ctx context.Context, reason string) {
		// Ages are measured from the start of each round.
		a.now = time.Now()
		fmt.Fprintf(cmd.OutOrStdout(), "\n[%s] %s\n", a.now.Format("15:04:05"), reason)

		err := checkCandidates(ctx, cmd, a)
		switch {
		case err == nil, errors.Is(err, errors.ErrConflictsFound):
		case ctx.Err() != nil:
		default:
			logFailure(a.logger, "watch round failed", err)
			fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		}
	}

	ctx := cmd.Context()
	round(ctx, "checking candidates against "+a.base)

	a.logger.Info("watching refs", "dirs", len(w.WatchedDirs()))
	err = w.Run(ctx, func(ctx context.Context, changed []string) {
		round(ctx, "changed: "+strings.Join(changed, ", "))
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
