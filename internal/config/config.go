package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete cxfinder configuration
type Config struct {
	Base    BaseConfig    `mapstructure:"base"`
	Filter  FilterConfig  `mapstructure:"filter"`
	Merge   MergeConfig   `mapstructure:"merge"`
	Logging LoggingConfig `mapstructure:"logging"`
	Output  OutputConfig  `mapstructure:"output"`
}

// BaseConfig selects the branch candidates are compared against
type BaseConfig struct {
	// Branch is the base branch name. When the configured name does not
	// exist and is the default "main", "master" is tried instead.
	Branch string `mapstructure:"branch"`
}

// FilterConfig controls branch selection
type FilterConfig struct {
	// MaxAge drops branches whose tip commit is older than now minus MaxAge
	MaxAge time.Duration `mapstructure:"max_age"`
	// ConfigFile is the repository-relative path of the exclusion file
	ConfigFile string `mapstructure:"config_file"`
}

// MergeConfig controls merge simulation
type MergeConfig struct {
	// Tool selects the content merger.
	// Options: "git" (git merge-file), "diff3" (in-process)
	Tool string `mapstructure:"tool"`
	// ConflictLimit is the highest tool exit status still counted as a
	// content conflict. Anything above it is a tool failure.
	ConflictLimit int `mapstructure:"conflict_limit"`
	// Parallel bounds how many branches `check --all` simulates at once
	Parallel int `mapstructure:"parallel"`
	// AuthorName and AuthorEmail sign the synthetic merge commit
	AuthorName  string `mapstructure:"author_name"`
	AuthorEmail string `mapstructure:"author_email"`
	// KeepTemp leaves per-path stage directories behind for debugging.
	// They are still removed when the simulation aborts.
	KeepTemp bool `mapstructure:"keep_temp"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error"
	Level string `mapstructure:"level"`
	// File is the log file path. Empty uses DefaultLogFile.
	File string `mapstructure:"file"`
	// MaxSizeMB is the maximum log file size before rotation
	MaxSizeMB int `mapstructure:"max_size_mb"`
	// MaxBackups is the number of rotated files to keep
	MaxBackups int `mapstructure:"max_backups"`
	// Compress gzips rotated files
	Compress bool `mapstructure:"compress"`
}

// OutputConfig controls result rendering
type OutputConfig struct {
	// Format is "text" or "json"
	Format string `mapstructure:"format"`
	// Color is "auto", "always" or "never"
	Color string `mapstructure:"color"`
}

// Default values shared by Default and the CLI
const (
	DefaultBaseBranch     = "main"
	FallbackBaseBranch    = "master"
	DefaultRepoConfigFile = ".cxfinderrc"
	DefaultMaxAge         = 7 * 24 * time.Hour

	// GitMergeFileConflictLimit is git merge-file's largest conflict count;
	// higher statuses signal errors.
	GitMergeFileConflictLimit = 127
)

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Base: BaseConfig{
			Branch: DefaultBaseBranch,
		},
		Filter: FilterConfig{
			MaxAge:     DefaultMaxAge,
			ConfigFile: DefaultRepoConfigFile,
		},
		Merge: MergeConfig{
			Tool:          "git",
			ConflictLimit: GitMergeFileConflictLimit,
			Parallel:      4,
			AuthorName:    "cxfinder",
			AuthorEmail:   "cxfinder@localhost",
			KeepTemp:      false,
		},
		Logging: LoggingConfig{
			Level:      "info",
			File:       "",
			MaxSizeMB:  10,
			MaxBackups: 3,
			Compress:   false,
		},
		Output: OutputConfig{
			Format: "text",
			Color:  "auto",
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("base.branch", defaults.Base.Branch)

	viper.SetDefault("filter.max_age", defaults.Filter.MaxAge)
	viper.SetDefault("filter.config_file", defaults.Filter.ConfigFile)

	viper.SetDefault("merge.tool", defaults.Merge.Tool)
	viper.SetDefault("merge.conflict_limit", defaults.Merge.ConflictLimit)
	viper.SetDefault("merge.parallel", defaults.Merge.Parallel)
	viper.SetDefault("merge.author_name", defaults.Merge.AuthorName)
	viper.SetDefault("merge.author_email", defaults.Merge.AuthorEmail)
	viper.SetDefault("merge.keep_temp", defaults.Merge.KeepTemp)

	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.file", defaults.Logging.File)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
	viper.SetDefault("logging.compress", defaults.Logging.Compress)

	viper.SetDefault("output.format", defaults.Output.Format)
	viper.SetDefault("output.color", defaults.Output.Color)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration, falling back to defaults when it
// cannot be loaded.
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Cutoff returns the age cutoff for a run started at now.
func (c *FilterConfig) Cutoff(now time.Time) time.Time {
	return now.Add(-c.MaxAge)
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "cxfinder")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".cxfinder"
	}
	return filepath.Join(home, ".config", "cxfinder")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// DefaultLogFile returns where `cxfinder logs` looks when logging.file is unset.
func DefaultLogFile() string {
	return filepath.Join(ConfigDir(), "logs", "cxfinder.log")
}
