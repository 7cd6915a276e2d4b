package config

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "merge.parallel")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// ValidMergeTools returns the list of valid content merger names
func ValidMergeTools() []string {
	return []string{"git", "diff3"}
}

// ValidOutputFormats returns the list of valid output formats
func ValidOutputFormats() []string {
	return []string{"text", "json"}
}

// ValidColorModes returns the list of valid color modes
func ValidColorModes() []string {
	return []string{"auto", "always", "never"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateBase()...)
	errors = append(errors, c.validateFilter()...)
	errors = append(errors, c.validateMerge()...)
	errors = append(errors, c.validateLogging()...)
	errors = append(errors, c.validateOutput()...)

	return errors
}

func (c *Config) validateBase() []ValidationError {
	var errors []ValidationError

	name := c.Base.Branch
	if name == "" {
		errors = append(errors, ValidationError{
			Field:   "base.branch",
			Value:   name,
			Message: "must not be empty",
		})
	} else if !isValidBranchName(name) {
		errors = append(errors, ValidationError{
			Field:   "base.branch",
			Value:   name,
			Message: "is not a valid branch name",
		})
	}

	return errors
}

// isValidBranchName applies the subset of git-check-ref-format rules that
// matter for a name typed into a config file.
func isValidBranchName(name string) bool {
	if strings.HasPrefix(name, "-") || strings.HasPrefix(name, "/") ||
		strings.HasSuffix(name, "/") || strings.HasSuffix(name, ".lock") ||
		strings.HasSuffix(name, ".") {
		return false
	}
	if strings.Contains(name, "..") || strings.Contains(name, "//") || strings.Contains(name, "@{") {
		return false
	}
	for _, r := range name {
		if r < 0x20 || r == 0x7f || strings.ContainsRune(" ~^:?*[\\", r) {
			return false
		}
	}
	return true
}

func (c *Config) validateFilter() []ValidationError {
	var errors []ValidationError

	if c.Filter.MaxAge <= 0 {
		errors = append(errors, ValidationError{
			Field:   "filter.max_age",
			Value:   c.Filter.MaxAge,
			Message: "must be a positive duration",
		})
	}

	// Ten years covers any sane cutoff and keeps now-MaxAge far from overflow.
	const maxAge = 10 * 365 * 24 * time.Hour
	if c.Filter.MaxAge > maxAge {
		errors = append(errors, ValidationError{
			Field:   "filter.max_age",
			Value:   c.Filter.MaxAge,
			Message: fmt.Sprintf("exceeds maximum of %s", maxAge),
		})
	}

	if strings.TrimSpace(c.Filter.ConfigFile) == "" {
		errors = append(errors, ValidationError{
			Field:   "filter.config_file",
			Value:   c.Filter.ConfigFile,
			Message: "must not be empty",
		})
	}

	return errors
}

func (c *Config) validateMerge() []ValidationError {
	var errors []ValidationError

	if !slices.Contains(ValidMergeTools(), c.Merge.Tool) {
		errors = append(errors, ValidationError{
			Field:   "merge.tool",
			Value:   c.Merge.Tool,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidMergeTools(), ", ")),
		})
	}

	// Exit statuses above 255 cannot be observed.
	if c.Merge.ConflictLimit < 1 || c.Merge.ConflictLimit > 254 {
		errors = append(errors, ValidationError{
			Field:   "merge.conflict_limit",
			Value:   c.Merge.ConflictLimit,
			Message: "must be between 1 and 254",
		})
	}

	if c.Merge.Parallel < 1 || c.Merge.Parallel > 64 {
		errors = append(errors, ValidationError{
			Field:   "merge.parallel",
			Value:   c.Merge.Parallel,
			Message: "must be between 1 and 64",
		})
	}

	if strings.TrimSpace(c.Merge.AuthorName) == "" {
		errors = append(errors, ValidationError{
			Field:   "merge.author_name",
			Value:   c.Merge.AuthorName,
			Message: "must not be empty",
		})
	}

	if strings.ContainsAny(c.Merge.AuthorEmail, "<>\n") {
		errors = append(errors, ValidationError{
			Field:   "merge.author_email",
			Value:   c.Merge.AuthorEmail,
			Message: "must not contain '<', '>' or newlines",
		})
	}

	return errors
}

func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	if c.Logging.MaxSizeMB <= 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be positive",
		})
	}

	const maxLogSizeMB = 1000
	if c.Logging.MaxSizeMB > maxLogSizeMB {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: fmt.Sprintf("exceeds maximum of %dMB", maxLogSizeMB),
		})
	}

	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	if strings.ContainsRune(c.Logging.File, '\x00') {
		errors = append(errors, ValidationError{
			Field:   "logging.file",
			Value:   c.Logging.File,
			Message: "contains invalid null character",
		})
	}

	return errors
}

func (c *Config) validateOutput() []ValidationError {
	var errors []ValidationError

	if !slices.Contains(ValidOutputFormats(), c.Output.Format) {
		errors = append(errors, ValidationError{
			Field:   "output.format",
			Value:   c.Output.Format,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidOutputFormats(), ", ")),
		})
	}

	if !slices.Contains(ValidColorModes(), c.Output.Color) {
		errors = append(errors, ValidationError{
			Field:   "output.color",
			Value:   c.Output.Color,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidColorModes(), ", ")),
		})
	}

	return errors
}
