package config

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

type yamlField struct {
	key     string
	comment string
	value   any
}

type yamlSection struct {
	key     string
	comment string
	fields  []yamlField
}

// sections lists the config file layout in the order it is written.
func (c *Config) sections() []yamlSection {
	return []yamlSection{
		{"base", "Branch that candidates are merged into", []yamlField{
			{"branch", "\"main\" falls back to \"master\" when main does not exist", c.Base.Branch},
		}},
		{"filter", "Which branches are candidates", []yamlField{
			{"max_age", "Skip branches whose last commit is older than this", c.Filter.MaxAge.String()},
			{"config_file", "Repository file holding exclude_branches patterns", c.Filter.ConfigFile},
		}},
		{"merge", "Merge simulation", []yamlField{
			{"tool", "Content merger: git (git merge-file) or diff3 (built in)", c.Merge.Tool},
			{"conflict_limit", "Highest merger exit status still counted as a conflict", c.Merge.ConflictLimit},
			{"parallel", "Branches simulated at once by check --all", c.Merge.Parallel},
			{"author_name", "Signature of the unreferenced merge commit", c.Merge.AuthorName},
			{"author_email", "", c.Merge.AuthorEmail},
			{"keep_temp", "Keep per-file stage directories for debugging", c.Merge.KeepTemp},
		}},
		{"logging", "Debug log (view with: cxfinder logs)", []yamlField{
			{"level", "debug, info, warn or error", c.Logging.Level},
			{"file", "Empty uses " + DefaultLogFile(), c.Logging.File},
			{"max_size_mb", "Rotate after this many megabytes", c.Logging.MaxSizeMB},
			{"max_backups", "Rotated files to keep", c.Logging.MaxBackups},
			{"compress", "Gzip rotated files", c.Logging.Compress},
		}},
		{"output", "Result rendering", []yamlField{
			{"format", "text or json", c.Output.Format},
			{"color", "auto, always or never", c.Output.Color},
		}},
	}
}

// WriteYAML writes c in config file form. With comments set every key
// carries a short description, which is what `cxfinder config init` writes.
func (c *Config) WriteYAML(w io.Writer, comments bool) error {
	doc := &yaml.Node{Kind: yaml.MappingNode}

	for _, s := range c.sections() {
		key := &yaml.Node{Kind: yaml.ScalarNode, Value: s.key}
		body := &yaml.Node{Kind: yaml.MappingNode}
		if comments {
			key.HeadComment = s.comment
		}

		for _, f := range s.fields {
			fk := &yaml.Node{Kind: yaml.ScalarNode, Value: f.key}
			if comments {
				fk.HeadComment = f.comment
			}
			fv := &yaml.Node{}
			if err := fv.Encode(f.value); err != nil {
				return fmt.Errorf("failed to encode %s.%s: %w", s.key, f.key, err)
			}
			body.Content = append(body.Content, fk, fv)
		}
		doc.Content = append(doc.Content, key, body)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return enc.Close()
}
