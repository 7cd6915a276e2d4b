package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

// -----------------------------------------------------------------------------
// Severity Tests
// -----------------------------------------------------------------------------

func TestSeverity_String(t *testing.T) {
	tests := []struct {
		severity Severity
		want     string
	}{
		{SeverityDebug, "debug"},
		{SeverityInfo, "info"},
		{SeverityWarning, "warning"},
		{SeverityError, "error"},
		{SeverityCritical, "critical"},
		{Severity(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.severity.String(); got != tt.want {
				t.Errorf("Severity.String() = %q, want %q", got, tt.want)
			}
		})
	}
}

// -----------------------------------------------------------------------------
// GitError Tests
// -----------------------------------------------------------------------------

func TestNewGitError(t *testing.T) {
	err := NewGitError("resolve failed", ErrBranchNotFound)

	if err.Severity() != SeverityError {
		t.Errorf("Severity() = %v, want %v", err.Severity(), SeverityError)
	}
	if !errors.Is(err, ErrBranchNotFound) {
		t.Error("errors.Is(err, ErrBranchNotFound) = false, want true")
	}
}

func TestGitError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *GitError
		want string
	}{
		{
			name: "message only",
			err:  NewGitError("merge-base failed", nil),
			want: "git error: merge-base failed",
		},
		{
			name: "with cause and branch",
			err:  NewGitError("merge-base failed", ErrNoMergeBase).WithBranch("feature/x"),
			want: "git error [branch=feature/x]: merge-base failed: no common ancestor",
		},
		{
			name: "with repository",
			err:  NewGitError("open failed", ErrNotGitRepository).WithRepository("/tmp/repo"),
			want: "git error [repo=/tmp/repo]: open failed: not a git repository",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGitError_Is(t *testing.T) {
	err := NewGitError("x", ErrNoMergeBase)
	wrapped := fmt.Errorf("simulate: %w", err)

	if !errors.Is(wrapped, &GitError{}) {
		t.Error("wrapped error should match *GitError")
	}
	if !errors.Is(wrapped, ErrNoMergeBase) {
		t.Error("wrapped error should match ErrNoMergeBase")
	}
	if errors.Is(wrapped, ErrBranchNotFound) {
		t.Error("wrapped error should not match ErrBranchNotFound")
	}
}

// -----------------------------------------------------------------------------
// MergeToolError Tests
// -----------------------------------------------------------------------------

func TestMergeToolError(t *testing.T) {
	err := NewMergeToolError("src/a.go", 255).WithTool("git merge-file").WithStderr("fatal: bad input\n")

	if err.Severity() != SeverityCritical {
		t.Errorf("Severity() = %v, want %v", err.Severity(), SeverityCritical)
	}
	if !errors.Is(err, ErrMergeToolFailed) {
		t.Error("MergeToolError should match ErrMergeToolFailed")
	}
	if !IsToolFailure(fmt.Errorf("wrap: %w", err)) {
		t.Error("IsToolFailure() = false, want true")
	}

	var toolErr *MergeToolError
	if !errors.As(fmt.Errorf("wrap: %w", err), &toolErr) {
		t.Fatal("errors.As failed for *MergeToolError")
	}
	if toolErr.ExitCode != 255 || toolErr.Path != "src/a.go" {
		t.Errorf("got path=%q exit=%d", toolErr.Path, toolErr.ExitCode)
	}

	msg := err.Error()
	for _, want := range []string{"tool=git merge-file", "path=src/a.go", "exit=255", "tool output: fatal: bad input"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, missing %q", msg, want)
		}
	}
}

func TestMergeToolError_WithCause(t *testing.T) {
	cause := New("exec: not found")
	err := NewMergeToolError("a", -1).WithCause(cause)

	if !errors.Is(err, cause) {
		t.Error("should match replaced cause")
	}
	if !errors.Is(err, ErrMergeToolFailed) {
		t.Error("should still match ErrMergeToolFailed")
	}
	if !strings.Contains(err.Error(), "exec: not found") {
		t.Errorf("Error() = %q, want cause in message", err.Error())
	}
}

// -----------------------------------------------------------------------------
// ConfigError Tests
// -----------------------------------------------------------------------------

func TestConfigError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *ConfigError
		want string
	}{
		{
			name: "bare",
			err:  NewConfigError("unreadable", nil),
			want: "config error: unreadable",
		},
		{
			name: "file and key",
			err:  NewConfigError("invalid pattern", New("missing )")).WithFile(".cxfinderrc").WithKey("exclude_branches[1]"),
			want: "config error [file=.cxfinderrc, key=exclude_branches[1]]: invalid pattern: missing )",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
			if !errors.Is(tt.err, ErrInvalidConfig) {
				t.Error("ConfigError should match ErrInvalidConfig")
			}
		})
	}
}

// -----------------------------------------------------------------------------
// Semantic Error Tests
// -----------------------------------------------------------------------------

func TestNotFoundError(t *testing.T) {
	err := NewNotFoundError("branch", "feature/x").WithCause(ErrBranchNotFound)

	if got, want := err.Error(), "branch 'feature/x' not found: branch not found"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, ErrBranchNotFound) {
		t.Error("should match ErrBranchNotFound")
	}
	if !errors.Is(err, &NotFoundError{}) {
		t.Error("should match *NotFoundError")
	}
	if GetSeverity(err) != SeverityWarning {
		t.Errorf("GetSeverity() = %v, want warning", GetSeverity(err))
	}
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("branch name cannot be empty").WithField("branch").WithValue("")

	if !errors.Is(err, ErrInvalidInput) {
		t.Error("ValidationError should match ErrInvalidInput")
	}
	if got := err.Error(); !strings.HasPrefix(got, "validation error [field=branch, value=]") {
		t.Errorf("Error() = %q", got)
	}
}

// -----------------------------------------------------------------------------
// Helper Tests
// -----------------------------------------------------------------------------

func TestClassificationHelpers(t *testing.T) {
	plain := New("plain")

	if GetSeverity(nil) != SeverityDebug {
		t.Error("nil severity should be debug")
	}
	if GetSeverity(plain) != SeverityError {
		t.Error("plain severity should default to error")
	}
	if IsToolFailure(nil) || IsToolFailure(plain) {
		t.Error("IsToolFailure should be false for nil and plain errors")
	}
	if GetSeverity(Wrap(NewNotFoundError("branch", "x"), "resolve")) != SeverityWarning {
		t.Error("wrapped NotFoundError should keep its severity")
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, "ctx") != nil {
		t.Error("Wrap(nil) should be nil")
	}
	if Wrapf(nil, "ctx %d", 1) != nil {
		t.Error("Wrapf(nil) should be nil")
	}

	err := Wrapf(ErrNoMergeBase, "branch %s", "a")
	if err.Error() != "branch a: no common ancestor" {
		t.Errorf("Wrapf() = %q", err.Error())
	}
	if !errors.Is(err, ErrNoMergeBase) {
		t.Error("Wrapf should preserve the chain")
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"conflicts", ErrConflictsFound, ExitConflicts},
		{"wrapped conflicts", Wrap(ErrConflictsFound, "check"), ExitConflicts},
		{"tool failure", NewMergeToolError("a.txt", 255), ExitFatal},
		{"plain", errors.New("boom"), ExitFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}
