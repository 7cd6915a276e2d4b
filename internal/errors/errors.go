// Package errors provides centralized error definitions and error handling utilities
// for cxfinder. It defines domain-specific errors, semantic error types,
// error constructors with context wrapping, and error classification helpers.
//
// # Error Types
//
// Domain-specific errors represent errors from specific subsystems:
//   - GitError: errors from the repository backend (refs, objects, merge-base)
//   - MergeToolError: the three-way content merge tool failed outright
//   - ConfigError: a configuration file could not be read or is malformed
//
// Semantic errors represent common error conditions:
//   - NotFoundError: resource not found
//   - ValidationError: invalid input or state
//
// Merge conflicts are not errors. The merge simulator reports them as data in
// its result; only conditions that stop a simulation are surfaced here.
//
// # Usage
//
//	err := errors.NewGitError("no common ancestor", errors.ErrNoMergeBase).
//		WithBranch("feature/x")
//
//	if errors.Is(err, errors.ErrNoMergeBase) { ... }
//
//	var toolErr *errors.MergeToolError
//	if errors.As(err, &toolErr) {
//		fmt.Println(toolErr.ExitCode)
//	}
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Git-related sentinel errors
var (
	// ErrNotGitRepository indicates that the directory is not a git repository.
	ErrNotGitRepository = New("not a git repository")
	// ErrBranchNotFound indicates that a branch could not be found.
	ErrBranchNotFound = New("branch not found")
	// ErrNoMergeBase indicates that two commits share no history.
	ErrNoMergeBase = New("no common ancestor")
	// ErrDetachedHead indicates that HEAD does not point at a branch.
	ErrDetachedHead = New("HEAD is detached")
)

// Merge-related sentinel errors
var (
	// ErrMergeToolFailed indicates the content merge tool exited outside
	// its clean/conflict range.
	ErrMergeToolFailed = New("merge tool failed")
	// ErrMergeToolMissing indicates the content merge tool could not be started.
	ErrMergeToolMissing = New("merge tool not available")
	// ErrConflictsFound reports that at least one simulated merge conflicted.
	// Commands return it after printing their results so the process exits 1.
	ErrConflictsFound = New("conflicts found")
)

// Configuration sentinel errors
var (
	// ErrInvalidConfig indicates that a configuration file is malformed.
	ErrInvalidConfig = New("invalid configuration")
)

// General sentinel errors
var (
	// ErrCanceled indicates that an operation was canceled.
	ErrCanceled = New("operation canceled")
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// FinderError is the base interface for all cxfinder errors.
type FinderError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Is reports whether this error matches the target error.
	Is(target error) bool

	// Severity returns the severity level of this error.
	Severity() Severity
}

// baseError provides common functionality for all error types.
type baseError struct {
	message  string
	cause    error
	severity Severity
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// GitError represents errors related to repository operations.
//
// Example:
//
//	err := errors.NewGitError("failed to resolve branch", errors.ErrBranchNotFound)
//	err = err.WithBranch("feature-x").WithRepository("/path/to/repo")
type GitError struct {
	baseError
	Branch     string
	Repository string
}

// NewGitError creates a new GitError.
func NewGitError(message string, cause error) *GitError {
	return &GitError{
		baseError: baseError{
			message:  message,
			cause:    cause,
			severity: SeverityError,
		},
	}
}

// WithBranch adds a branch name to the error context.
func (e *GitError) WithBranch(branch string) *GitError {
	e.Branch = branch
	return e
}

// WithRepository adds a repository path to the error context.
func (e *GitError) WithRepository(path string) *GitError {
	e.Repository = path
	return e
}

// Error returns the formatted error message.
func (e *GitError) Error() string {
	var parts []string
	if e.Branch != "" {
		parts = append(parts, fmt.Sprintf("branch=%s", e.Branch))
	}
	if e.Repository != "" {
		parts = append(parts, fmt.Sprintf("repo=%s", e.Repository))
	}

	prefix := "git error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("git error [%s]", strings.Join(parts, ", "))
	}

	msg := e.message
	if e.cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.cause)
	}

	return fmt.Sprintf("%s: %s", prefix, msg)
}

// Is checks if this error matches the target.
func (e *GitError) Is(target error) bool {
	if _, ok := target.(*GitError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// MergeToolError reports a content merge tool that exited with a status
// outside its clean/conflict range. It always aborts the simulation.
//
// Example:
//
//	err := errors.NewMergeToolError("src/main.go", 255).WithStderr("fatal: ...")
type MergeToolError struct {
	baseError
	Tool     string
	Path     string
	ExitCode int
	Stderr   string
}

// NewMergeToolError creates a new MergeToolError for the given path and exit code.
func NewMergeToolError(path string, exitCode int) *MergeToolError {
	return &MergeToolError{
		baseError: baseError{
			message:  "content merge tool failed",
			cause:    ErrMergeToolFailed,
			severity: SeverityCritical,
		},
		Path:     path,
		ExitCode: exitCode,
	}
}

// WithTool records the tool name.
func (e *MergeToolError) WithTool(tool string) *MergeToolError {
	e.Tool = tool
	return e
}

// WithStderr records the tool's diagnostic output.
func (e *MergeToolError) WithStderr(stderr string) *MergeToolError {
	e.Stderr = stderr
	return e
}

// WithCause replaces the cause, keeping ErrMergeToolFailed matchable.
func (e *MergeToolError) WithCause(cause error) *MergeToolError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *MergeToolError) Error() string {
	parts := []string{fmt.Sprintf("path=%s", e.Path), fmt.Sprintf("exit=%d", e.ExitCode)}
	if e.Tool != "" {
		parts = append([]string{fmt.Sprintf("tool=%s", e.Tool)}, parts...)
	}

	msg := fmt.Sprintf("merge tool error [%s]: %s", strings.Join(parts, ", "), e.message)
	if e.cause != nil && e.cause != ErrMergeToolFailed {
		msg = fmt.Sprintf("%s: %v", msg, e.cause)
	}
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		msg = fmt.Sprintf("%s\ntool output: %s", msg, stderr)
	}
	return msg
}

// Is checks if this error matches the target.
func (e *MergeToolError) Is(target error) bool {
	if _, ok := target.(*MergeToolError); ok {
		return true
	}
	if target == ErrMergeToolFailed {
		return true
	}
	return e.baseError.Is(target)
}

// ConfigError represents a configuration file that could not be loaded.
//
// Example:
//
//	err := errors.NewConfigError("invalid exclusion pattern", reErr).
//		WithFile(".cxfinderrc").WithKey("exclude_branches[2]")
type ConfigError struct {
	baseError
	File string
	Key  string
}

// NewConfigError creates a new ConfigError.
func NewConfigError(message string, cause error) *ConfigError {
	return &ConfigError{
		baseError: baseError{
			message:  message,
			cause:    cause,
			severity: SeverityError,
		},
	}
}

// WithFile adds the configuration file path to the error context.
func (e *ConfigError) WithFile(path string) *ConfigError {
	e.File = path
	return e
}

// WithKey adds the offending key to the error context.
func (e *ConfigError) WithKey(key string) *ConfigError {
	e.Key = key
	return e
}

// Error returns the formatted error message.
func (e *ConfigError) Error() string {
	var parts []string
	if e.File != "" {
		parts = append(parts, fmt.Sprintf("file=%s", e.File))
	}
	if e.Key != "" {
		parts = append(parts, fmt.Sprintf("key=%s", e.Key))
	}

	prefix := "config error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("config error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *ConfigError) Is(target error) bool {
	if _, ok := target.(*ConfigError); ok {
		return true
	}
	if target == ErrInvalidConfig {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// NotFoundError represents a resource that could not be found.
//
// Example:
//
//	err := errors.NewNotFoundError("branch", "feature-x")
//	fmt.Println(err) // "branch 'feature-x' not found"
type NotFoundError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resourceType, resourceID string) *NotFoundError {
	return &NotFoundError{
		baseError: baseError{
			message:  fmt.Sprintf("%s '%s' not found", resourceType, resourceID),
			severity: SeverityWarning,
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// WithCause adds a cause to the error.
func (e *NotFoundError) WithCause(cause error) *NotFoundError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *NotFoundError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s '%s' not found: %v", e.ResourceType, e.ResourceID, e.cause)
	}
	return fmt.Sprintf("%s '%s' not found", e.ResourceType, e.ResourceID)
}

// Is checks if this error matches the target.
func (e *NotFoundError) Is(target error) bool {
	if _, ok := target.(*NotFoundError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ValidationError represents invalid input or state.
//
// Example:
//
//	err := errors.NewValidationError("branch name cannot be empty").WithField("branch")
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:  message,
			severity: SeverityWarning,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}

	prefix := "validation error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("validation error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	if errors.Is(target, ErrInvalidInput) {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement FinderError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}

	var finderErr FinderError
	if As(err, &finderErr) {
		return finderErr.Severity()
	}

	return SeverityError
}

// IsToolFailure returns true if err reports a failed content merge tool.
func IsToolFailure(err error) bool {
	return err != nil && Is(err, ErrMergeToolFailed)
}

// Process exit statuses.
const (
	ExitOK        = 0
	ExitConflicts = 1
	ExitFatal     = 2
)

// ExitCode maps a command error to the process exit status: 0 for nil,
// 1 when merges conflicted, 2 for everything else.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case Is(err, ErrConflictsFound):
		return ExitConflicts
	default:
		return ExitFatal
	}
}

// Wrap wraps an error with additional context message.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
