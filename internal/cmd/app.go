package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/Iron-Ham/cxfinder/internal/branch"
	"github.com/Iron-Ham/cxfinder/internal/config"
	"github.com/Iron-Ham/cxfinder/internal/errors"
	"github.com/Iron-Ham/cxfinder/internal/gitrepo"
	"github.com/Iron-Ham/cxfinder/internal/logging"
	"github.com/Iron-Ham/cxfinder/internal/merge"
	"github.com/Iron-Ham/cxfinder/internal/report"
	"github.com/spf13/cobra"
)

// app bundles what every repository command needs: validated config, a
// run-scoped logger, the opened repository, the resolved base branch and
// the compiled exclusion rules.
type app struct {
	cfg    *config.Config
	logger *logging.Logger
	repo   *gitrepo.Repository
	base   string
	rules  []config.ExclusionRule
	// now anchors the age cutoff for the whole invocation.
	now time.Time
}

// newApp loads configuration and opens the repository at path.
func newApp(path string) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := createLogger(cfg).WithRun(logging.NewRunID())

	repo, err := gitrepo.Open(path)
	if err != nil {
		_ = logger.Close()
		return nil, err
	}
	logger = logger.WithRepo(repo.Path())

	base, err := resolveBase(repo, cfg.Base.Branch)
	if err != nil {
		_ = logger.Close()
		return nil, err
	}

	rc, err := config.LoadRepoConfig(repo.Path(), cfg.Filter.ConfigFile)
	if err != nil {
		_ = logger.Close()
		return nil, err
	}

	logger.Debug("command started",
		"base", base,
		"max_age", cfg.Filter.MaxAge.String(),
		"rules", len(rc.Rules),
	)

	return &app{
		cfg:    cfg,
		logger: logger,
		repo:   repo,
		base:   base,
		rules:  rc.Rules,
		now:    time.Now(),
	}, nil
}

// createLogger creates a logger based on configuration.
// Returns a NopLogger if creation fails; logging never blocks a command.
func createLogger(cfg *config.Config) *logging.Logger {
	logFile := cfg.Logging.File
	if logFile == "" {
		logFile = config.DefaultLogFile()
	}

	rotation := logging.RotationConfig{
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		Compress:   cfg.Logging.Compress,
	}
	logger, err := logging.NewLogger(logFile, cfg.Logging.Level, rotation)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to create logger: %v\n", err)
		return logging.NopLogger()
	}
	return logger
}

// logFailure logs err at the level its severity calls for. A missing
// branch or a bad flag is a warning; everything else is an error.
func logFailure(logger *logging.Logger, msg string, err error, args ...any) {
	severity := errors.GetSeverity(err)
	args = append(args, "error", err.Error(), "severity", severity.String())
	if severity <= errors.SeverityWarning {
		logger.Warn(msg, args...)
		return
	}
	logger.Error(msg, args...)
}

// resolveBase returns name when the branch exists. The default base "main"
// falls back to "master" for repositories that predate the rename.
func resolveBase(repo *gitrepo.Repository, name string) (string, error) {
	if repo.HasBranch(name) {
		return name, nil
	}
	if name == config.DefaultBaseBranch && repo.HasBranch(config.FallbackBaseBranch) {
		return config.FallbackBaseBranch, nil
	}
	return "", errors.NewNotFoundError("base branch", name).WithCause(errors.ErrBranchNotFound)
}

func (a *app) Close() error {
	return a.logger.Close()
}

func (a *app) filterOptions() branch.Options {
	return branch.Options{
		BaseBranch: a.base,
		Cutoff:     a.cfg.Filter.Cutoff(a.now),
		Rules:      a.rules,
		Logger:     a.logger,
	}
}

// explain classifies every local branch.
func (a *app) explain(ctx context.Context) ([]branch.Decision, error) {
	branches, err := a.repo.Branches(ctx)
	if err != nil {
		return nil, err
	}
	return branch.Explain(ctx, a.repo, branches, a.filterOptions())
}

// candidates returns the branches that survive filtering.
func (a *app) candidates(ctx context.Context) ([]gitrepo.Branch, error) {
	branches, err := a.repo.Branches(ctx)
	if err != nil {
		return nil, err
	}
	return branch.Filter(ctx, a.repo, branches, a.filterOptions())
}

// simulator builds a Simulator over repo. Batch workers pass their own
// repository handle.
func (a *app) simulator(repo *gitrepo.Repository, logger *logging.Logger) (*merge.Simulator, error) {
	merger, err := merge.NewContentMerger(a.cfg.Merge.Tool)
	if err != nil {
		return nil, err
	}
	return merge.NewSimulator(repo, merger, merge.Config{
		AuthorName:    a.cfg.Merge.AuthorName,
		AuthorEmail:   a.cfg.Merge.AuthorEmail,
		ConflictLimit: a.cfg.Merge.ConflictLimit,
		KeepTemp:      a.cfg.Merge.KeepTemp,
		Logger:        logger,
	}), nil
}

// renderer writes to the command's stdout, honoring output.color and the
// --json override.
func (a *app) renderer(cmd *cobra.Command, jsonOut bool) *report.Renderer {
	format := a.cfg.Output.Format
	if jsonOut {
		format = report.FormatJSON
	}

	out := cmd.OutOrStdout()
	f, _ := out.(*os.File)
	return report.New(out, report.Options{
		Format: format,
		Color:  report.ColorEnabled(a.cfg.Output.Color, f),
		Now:    func() time.Time { return a.now },
	})
}
