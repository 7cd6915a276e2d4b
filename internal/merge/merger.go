package merge

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/Iron-Ham/cxfinder/internal/errors"
	"github.com/Iron-Ham/cxfinder/internal/gitrepo"
	"github.com/epiclabs-io/diff3"
)

// Content merger names accepted by NewContentMerger.
const (
	ToolGit   = "git"
	ToolDiff3 = "diff3"
)

// ContentMerger merges the three staged versions of one file.
//
// Merge reports the outcome through MergeOutput.ExitCode using the
// git merge-file convention: 0 is clean, 1..ConflictLimit counts conflicts
// and any other value is a tool failure. A non-nil error means the merger
// could not be run at all.
type ContentMerger interface {
	Name() string
	ConflictLimit() int
	Merge(ctx context.Context, in gitrepo.MergeInput) (gitrepo.MergeOutput, error)
}

// NewContentMerger returns the merger registered under name.
func NewContentMerger(name string) (ContentMerger, error) {
	switch name {
	case ToolGit, "":
		return gitrepo.NewMergeFileTool(), nil
	case ToolDiff3:
		return NewDiff3Merger(), nil
	default:
		return nil, errors.NewValidationError(fmt.Sprintf("unknown merge tool %q", name)).
			WithField("merge.tool").
			WithValue(name)
	}
}

// diff3FailureCode mirrors the status git merge-file exits with on error.
const diff3FailureCode = 255

// Diff3Merger is an in-process ContentMerger built on a diff3
// implementation. It never counts conflicts: any conflict is reported as 1.
type Diff3Merger struct{}

// NewDiff3Merger creates a Diff3Merger.
func NewDiff3Merger() *Diff3Merger {
	return &Diff3Merger{}
}

// Name identifies the merger in errors and logs.
func (m *Diff3Merger) Name() string {
	return "diff3"
}

// ConflictLimit returns 1, the only conflict status Merge produces.
func (m *Diff3Merger) ConflictLimit() int {
	return 1
}

// Merge reads the staged files and merges them with conflict markers.
func (m *Diff3Merger) Merge(ctx context.Context, in gitrepo.MergeInput) (gitrepo.MergeOutput, error) {
	if err := ctx.Err(); err != nil {
		return gitrepo.MergeOutput{ExitCode: -1}, err
	}

	var stages [3][]byte
	for i, path := range []string{in.Ours, in.Ancestor, in.Theirs} {
		data, err := os.ReadFile(path)
		if err != nil {
			return gitrepo.MergeOutput{
				ExitCode: diff3FailureCode,
				Stderr:   err.Error(),
			}, nil
		}
		stages[i] = data
	}

	result, err := diff3.Merge(
		bytes.NewReader(stages[0]),
		bytes.NewReader(stages[1]),
		bytes.NewReader(stages[2]),
		true,
		labelOr(in.OursLabel, "ours"),
		labelOr(in.TheirsLabel, "theirs"),
	)
	if err != nil {
		return gitrepo.MergeOutput{ExitCode: diff3FailureCode, Stderr: err.Error()}, nil
	}

	merged, err := io.ReadAll(result.Result)
	if err != nil {
		return gitrepo.MergeOutput{ExitCode: diff3FailureCode, Stderr: err.Error()}, nil
	}

	out := gitrepo.MergeOutput{Merged: restoreLineEndings(merged, stages)}
	if result.Conflicts {
		out.ExitCode = 1
	}
	return out, nil
}

// restoreLineEndings puts back what the line-based diff3 drops: CRLF line
// breaks and the final newline. stages is ours, ancestor, theirs. The final
// newline follows the same three-way rule as file contents.
func restoreLineEndings(merged []byte, stages [3][]byte) []byte {
	eol := []byte("\n")
	if bytes.Contains(stages[0], []byte("\r\n")) || bytes.Contains(stages[2], []byte("\r\n")) {
		eol = []byte("\r\n")
	}

	ours, ancestor, theirs := endsWithNewline(stages[0]), endsWithNewline(stages[1]), endsWithNewline(stages[2])
	final := ours
	if ours == ancestor {
		final = theirs
	}

	lines := bytes.Split(merged, []byte("\n"))
	out := bytes.Join(lines, eol)
	if final && len(merged) > 0 {
		out = append(out, eol...)
	}
	return out
}

func endsWithNewline(b []byte) bool {
	return len(b) > 0 && b[len(b)-1] == '\n'
}

func labelOr(label, fallback string) string {
	if label == "" {
		return fallback
	}
	return label
}
