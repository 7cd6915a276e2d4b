package merge

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Iron-Ham/cxfinder/internal/errors"
	"github.com/Iron-Ham/cxfinder/internal/gitrepo"
)

func TestNewContentMerger(t *testing.T) {
	tests := []struct {
		name     string
		wantName string
		wantErr  bool
	}{
		{"git", "git merge-file", false},
		{"", "git merge-file", false},
		{"diff3", "diff3", false},
		{"kdiff3", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewContentMerger(tt.name)
			if tt.wantErr {
				if !errors.Is(err, errors.ErrInvalidInput) {
					t.Errorf("NewContentMerger(%q) error = %v, want ErrInvalidInput", tt.name, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewContentMerger(%q) error = %v", tt.name, err)
			}
			if m.Name() != tt.wantName {
				t.Errorf("Name() = %q, want %q", m.Name(), tt.wantName)
			}
		})
	}
}

func stageInput(t *testing.T, base, ours, theirs string) gitrepo.MergeInput {
	t.Helper()
	dir := t.TempDir()
	in := gitrepo.MergeInput{
		Path:     "f.txt",
		Dir:      dir,
		Ancestor: filepath.Join(dir, "ancestor"),
		Ours:     filepath.Join(dir, "ours"),
		Theirs:   filepath.Join(dir, "theirs"),
	}
	for path, content := range map[string]string{in.Ancestor: base, in.Ours: ours, in.Theirs: theirs} {
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
	}
	return in
}

func TestDiff3Merger(t *testing.T) {
	m := NewDiff3Merger()
	ctx := context.Background()

	t.Run("clean", func(t *testing.T) {
		in := stageInput(t,
			"one\ntwo\nthree\nfour\nfive\n",
			"ONE\ntwo\nthree\nfour\nfive\n",
			"one\ntwo\nthree\nfour\nFIVE\n",
		)
		out, err := m.Merge(ctx, in)
		if err != nil {
			t.Fatalf("Merge() error = %v", err)
		}
		if out.ExitCode != 0 {
			t.Fatalf("ExitCode = %d, want 0; merged:\n%s", out.ExitCode, out.Merged)
		}
		if want := "ONE\ntwo\nthree\nfour\nFIVE\n"; string(out.Merged) != want {
			t.Errorf("Merged = %q, want %q", out.Merged, want)
		}
	})

	t.Run("line endings", func(t *testing.T) {
		tests := []struct {
			name               string
			base, ours, theirs string
			want               string
		}{
			{"final newline kept", "a\nb\nc\n", "A\nb\nc\n", "a\nb\nC\n", "A\nb\nC\n"},
			{"crlf kept", "a\r\nb\r\nc\r\n", "A\r\nb\r\nc\r\n", "a\r\nb\r\nC\r\n", "A\r\nb\r\nC\r\n"},
			{"no final newline on any side", "a\nb\nc", "A\nb\nc", "a\nb\nC", "A\nb\nC"},
			{"one side drops final newline", "a\nb\nc\n", "A\nb\nc\n", "a\nb\nc", "A\nb\nc"},
			{"one side adds final newline", "a\nb\nc", "a\nb\nc\n", "a\nB\nc", "a\nB\nc\n"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				out, err := m.Merge(ctx, stageInput(t, tt.base, tt.ours, tt.theirs))
				if err != nil {
					t.Fatalf("Merge() error = %v", err)
				}
				if out.ExitCode != 0 {
					t.Fatalf("ExitCode = %d, want 0; merged:\n%s", out.ExitCode, out.Merged)
				}
				if string(out.Merged) != tt.want {
					t.Errorf("Merged = %q, want %q", out.Merged, tt.want)
				}
			})
		}
	})

	t.Run("conflict", func(t *testing.T) {
		in := stageInput(t, "A\n", "B\n", "C\n")
		in.OursLabel, in.TheirsLabel = "main", "feature"
		out, err := m.Merge(ctx, in)
		if err != nil {
			t.Fatalf("Merge() error = %v", err)
		}
		if out.ExitCode != 1 {
			t.Errorf("ExitCode = %d, want 1", out.ExitCode)
		}
		if !strings.Contains(string(out.Merged), "main") {
			t.Errorf("conflict markers missing ours label: %q", out.Merged)
		}
		if out.ExitCode > m.ConflictLimit() {
			t.Errorf("ExitCode %d above ConflictLimit %d", out.ExitCode, m.ConflictLimit())
		}
	})

	t.Run("unreadable stage is a tool failure", func(t *testing.T) {
		in := stageInput(t, "A\n", "B\n", "C\n")
		in.Ancestor = filepath.Join(in.Dir, "missing")
		out, err := m.Merge(ctx, in)
		if err != nil {
			t.Fatalf("Merge() error = %v", err)
		}
		if out.ExitCode <= m.ConflictLimit() {
			t.Errorf("ExitCode = %d, want above %d", out.ExitCode, m.ConflictLimit())
		}
		if out.Stderr == "" {
			t.Error("Stderr should describe the failure")
		}
	})

	t.Run("canceled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		if _, err := m.Merge(cctx, stageInput(t, "", "", "")); !errors.Is(err, context.Canceled) {
			t.Errorf("Merge() error = %v, want context.Canceled", err)
		}
	})
}
