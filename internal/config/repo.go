package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/Iron-Ham/cxfinder/internal/errors"
	"github.com/gobwas/glob"
	"gopkg.in/yaml.v3"
)

// GlobPrefix marks an exclusion pattern as a glob instead of a regular expression.
const GlobPrefix = "glob:"

// RepoConfig is the repository-local configuration read from .cxfinderrc.
type RepoConfig struct {
	// ExcludeBranches lists the raw patterns in file order.
	ExcludeBranches []string `yaml:"exclude_branches"`

	// Rules holds the compiled form of ExcludeBranches.
	Rules []ExclusionRule `yaml:"-"`
}

// ExclusionRule is a compiled branch-name pattern. Regular expressions match
// when they match at the start of the name; the rest of the name is free.
// Patterns prefixed with "glob:" must match the whole name, with '/' as
// the segment separator.
type ExclusionRule struct {
	pattern string
	re      *regexp.Regexp
	g       glob.Glob
}

// CompileRule compiles a single exclusion pattern.
func CompileRule(pattern string) (ExclusionRule, error) {
	if rest, ok := strings.CutPrefix(pattern, GlobPrefix); ok {
		g, err := glob.Compile(rest, '/')
		if err != nil {
			return ExclusionRule{}, fmt.Errorf("invalid glob %q: %w", rest, err)
		}
		return ExclusionRule{pattern: pattern, g: g}, nil
	}

	re, err := regexp.Compile(`^(?:` + pattern + `)`)
	if err != nil {
		return ExclusionRule{}, fmt.Errorf("invalid regular expression %q: %w", pattern, err)
	}
	return ExclusionRule{pattern: pattern, re: re}, nil
}

// MustCompileRule is like CompileRule but panics on error. Intended for tests.
func MustCompileRule(pattern string) ExclusionRule {
	r, err := CompileRule(pattern)
	if err != nil {
		panic(err)
	}
	return r
}

// Match reports whether the branch name is excluded by this rule.
func (r ExclusionRule) Match(name string) bool {
	switch {
	case r.g != nil:
		return r.g.Match(name)
	case r.re != nil:
		return r.re.MatchString(name)
	default:
		return false
	}
}

// String returns the pattern as written in the configuration.
func (r ExclusionRule) String() string {
	return r.pattern
}

// CompileRules compiles patterns in order. The returned error names the
// index of the first invalid pattern.
func CompileRules(patterns []string) ([]ExclusionRule, error) {
	rules := make([]ExclusionRule, 0, len(patterns))
	for i, p := range patterns {
		r, err := CompileRule(p)
		if err != nil {
			return nil, errors.NewConfigError("invalid exclusion pattern", err).
				WithKey(fmt.Sprintf("exclude_branches[%d]", i))
		}
		rules = append(rules, r)
	}
	return rules, nil
}

// LoadRepoConfig reads fileName relative to repoRoot (or as given, when
// absolute). A missing or empty file yields an empty configuration and keys
// other than exclude_branches are ignored. A file that cannot be parsed or
// holds an invalid pattern is reported as an *errors.ConfigError.
func LoadRepoConfig(repoRoot, fileName string) (*RepoConfig, error) {
	path := fileName
	if !filepath.IsAbs(path) {
		path = filepath.Join(repoRoot, fileName)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &RepoConfig{}, nil
		}
		return nil, errors.NewConfigError("failed to read repository config", err).WithFile(path)
	}

	cfg, err := ParseRepoConfig(data)
	if err != nil {
		var cfgErr *errors.ConfigError
		if errors.As(err, &cfgErr) {
			return nil, cfgErr.WithFile(path)
		}
		return nil, err
	}
	return cfg, nil
}

// ParseRepoConfig decodes and compiles repository configuration from YAML.
func ParseRepoConfig(data []byte) (*RepoConfig, error) {
	var cfg RepoConfig

	dec := yaml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.NewConfigError("malformed repository config", err)
	}

	rules, err := CompileRules(cfg.ExcludeBranches)
	if err != nil {
		return nil, err
	}
	cfg.Rules = rules
	return &cfg, nil
}

// Marshal renders the configuration in the on-disk format.
func (c *RepoConfig) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
