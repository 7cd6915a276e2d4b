package config

import (
	"strings"
	"testing"
	"time"
)

func TestValidationError_Error(t *testing.T) {
	err := ValidationError{
		Field:   "test.field",
		Value:   123,
		Message: "must be greater than zero",
	}

	expected := "test.field: must be greater than zero (got: 123)"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestValidationErrors_Error(t *testing.T) {
	t.Run("empty errors", func(t *testing.T) {
		var errs ValidationErrors
		if errs.Error() != "" {
			t.Errorf("Error() for empty = %q, want empty string", errs.Error())
		}
	})

	t.Run("single error", func(t *testing.T) {
		errs := ValidationErrors{
			{Field: "test.field", Value: 123, Message: "is invalid"},
		}
		expected := "test.field: is invalid (got: 123)"
		if errs.Error() != expected {
			t.Errorf("Error() = %q, want %q", errs.Error(), expected)
		}
	})

	t.Run("multiple errors", func(t *testing.T) {
		errs := ValidationErrors{
			{Field: "field1", Value: "bad", Message: "is invalid"},
			{Field: "field2", Value: -1, Message: "must be positive"},
		}
		result := errs.Error()
		if !strings.Contains(result, "2 validation errors") {
			t.Errorf("Error() should mention 2 errors: %s", result)
		}
		if !strings.Contains(result, "1. field1") || !strings.Contains(result, "2. field2") {
			t.Errorf("Error() should number both fields: %s", result)
		}
	})
}

func TestConfig_Validate_DefaultConfig(t *testing.T) {
	if errs := Default().Validate(); len(errs) != 0 {
		t.Errorf("Default config should be valid, got %d errors: %v", len(errs), errs)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{"empty base branch", func(c *Config) { c.Base.Branch = "" }, "base.branch"},
		{"base branch with space", func(c *Config) { c.Base.Branch = "my branch" }, "base.branch"},
		{"base branch with dotdot", func(c *Config) { c.Base.Branch = "a..b" }, "base.branch"},
		{"base branch lock suffix", func(c *Config) { c.Base.Branch = "main.lock" }, "base.branch"},
		{"zero max age", func(c *Config) { c.Filter.MaxAge = 0 }, "filter.max_age"},
		{"negative max age", func(c *Config) { c.Filter.MaxAge = -time.Hour }, "filter.max_age"},
		{"huge max age", func(c *Config) { c.Filter.MaxAge = 20 * 365 * 24 * time.Hour }, "filter.max_age"},
		{"empty config file", func(c *Config) { c.Filter.ConfigFile = " " }, "filter.config_file"},
		{"unknown tool", func(c *Config) { c.Merge.Tool = "meld" }, "merge.tool"},
		{"zero conflict limit", func(c *Config) { c.Merge.ConflictLimit = 0 }, "merge.conflict_limit"},
		{"conflict limit too high", func(c *Config) { c.Merge.ConflictLimit = 255 }, "merge.conflict_limit"},
		{"zero parallel", func(c *Config) { c.Merge.Parallel = 0 }, "merge.parallel"},
		{"empty author", func(c *Config) { c.Merge.AuthorName = "" }, "merge.author_name"},
		{"bad email", func(c *Config) { c.Merge.AuthorEmail = "a<b" }, "merge.author_email"},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
		{"zero log size", func(c *Config) { c.Logging.MaxSizeMB = 0 }, "logging.max_size_mb"},
		{"huge log size", func(c *Config) { c.Logging.MaxSizeMB = 5000 }, "logging.max_size_mb"},
		{"negative backups", func(c *Config) { c.Logging.MaxBackups = -1 }, "logging.max_backups"},
		{"null in log file", func(c *Config) { c.Logging.File = "a\x00b" }, "logging.file"},
		{"bad format", func(c *Config) { c.Output.Format = "yaml" }, "output.format"},
		{"bad color", func(c *Config) { c.Output.Color = "sometimes" }, "output.color"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			errs := cfg.Validate()
			if len(errs) != 1 {
				t.Fatalf("expected 1 error, got %d: %v", len(errs), errs)
			}
			if errs[0].Field != tt.wantField {
				t.Errorf("Field = %q, want %q", errs[0].Field, tt.wantField)
			}
		})
	}
}

func TestConfig_Validate_AcceptsVariants(t *testing.T) {
	cfg := Default()
	cfg.Base.Branch = "release/2.x"
	cfg.Merge.Tool = "diff3"
	cfg.Logging.Level = "DEBUG"
	cfg.Output.Format = "json"
	cfg.Output.Color = "never"

	if errs := cfg.Validate(); len(errs) != 0 {
		t.Errorf("expected valid config, got %v", errs)
	}
}
