package gitrepo

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/Iron-Ham/cxfinder/internal/errors"
)

// MergeFileConflictLimit is the highest exit status git merge-file uses to
// count conflicts. Larger statuses (255 in practice) are errors.
const MergeFileConflictLimit = 127

// MergeInput names the three materialized stages of one path.
type MergeInput struct {
	// Path is the repository path being merged, for diagnostics.
	Path string
	// Dir is the scratch directory holding the stage files.
	Dir string

	Ancestor string
	Ours     string
	Theirs   string

	// Labels used in conflict markers. Empty labels default to the stage names.
	OursLabel   string
	BaseLabel   string
	TheirsLabel string
}

// MergeOutput is what a content merger produced for one path.
type MergeOutput struct {
	// ExitCode follows the git merge-file contract: 0 clean, 1..limit the
	// number of conflicts, anything else an error.
	ExitCode int
	// Merged holds the merge result. It carries conflict markers when
	// ExitCode is in the conflict range.
	Merged []byte
	Stderr string
}

// MergeFileTool runs `git merge-file -p` as the content merge primitive.
type MergeFileTool struct {
	executor CommandExecutor
}

// NewMergeFileTool creates a MergeFileTool that runs the git binary.
func NewMergeFileTool() *MergeFileTool {
	return &MergeFileTool{executor: NewCLICommandExecutor()}
}

// NewMergeFileToolWithExecutor creates a MergeFileTool with a custom executor.
// This is primarily useful for testing.
func NewMergeFileToolWithExecutor(executor CommandExecutor) *MergeFileTool {
	return &MergeFileTool{executor: executor}
}

// Name identifies the tool in errors and logs.
func (t *MergeFileTool) Name() string {
	return "git merge-file"
}

// ConflictLimit returns the highest exit status that still means "conflict".
func (t *MergeFileTool) ConflictLimit() int {
	return MergeFileConflictLimit
}

// Merge runs a three-way merge of in.Ours and in.Theirs against in.Ancestor,
// writing the result to stdout. The returned error is non-nil only when git
// could not be run; every exit status is reported in MergeOutput.
func (t *MergeFileTool) Merge(ctx context.Context, in MergeInput) (MergeOutput, error) {
	args := []string{
		"merge-file", "-p",
		"-L", labelOr(in.OursLabel, "ours"),
		"-L", labelOr(in.BaseLabel, "base"),
		"-L", labelOr(in.TheirsLabel, "theirs"),
		in.Ours, in.Ancestor, in.Theirs,
	}

	res, err := t.executor.Run(ctx, in.Dir, "git", args...)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return MergeOutput{ExitCode: -1}, fmt.Errorf("%w: %v", errors.ErrMergeToolMissing, err)
		}
		return MergeOutput{ExitCode: -1, Stderr: string(res.Stderr)}, err
	}

	return MergeOutput{
		ExitCode: res.ExitCode,
		Merged:   res.Stdout,
		Stderr:   string(res.Stderr),
	}, nil
}

func labelOr(label, fallback string) string {
	if label == "" {
		return fallback
	}
	return label
}
