package logging

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"
)

// LogEntry represents a parsed log line.
type LogEntry struct {
	Timestamp time.Time      `json:"time"`
	Level     string         `json:"level"`
	Message   string         `json:"msg"`
	RunID     string         `json:"run_id,omitempty"`
	Repo      string         `json:"repo,omitempty"`
	Branch    string         `json:"branch,omitempty"`
	Attrs     map[string]any `json:"attrs,omitempty"`
}

// LogFilter defines criteria for filtering log entries. Zero-valued fields
// do not filter. All set criteria must match.
type LogFilter struct {
	// Level keeps entries at or above this level (DEBUG < INFO < WARN < ERROR).
	Level string
	// Since keeps entries at or after this time.
	Since time.Time
	// RunID keeps entries from one invocation.
	RunID string
	// Branch keeps entries tagged with this branch.
	Branch string
	// Contains keeps entries whose message contains this substring.
	Contains string
}

var levelOrder = map[string]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

// ReadLogs parses the log at path and, when withBackups is set, every
// rotated backup next to it (compressed or not). Unparseable lines are
// skipped. Entries are returned in timestamp order.
func ReadLogs(path string, withBackups bool, maxBackups int) ([]LogEntry, error) {
	entries, err := readLogFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no log file at %s: %w", path, err)
		}
		return nil, err
	}

	if withBackups {
		for i := 1; i <= maxBackups; i++ {
			backup := BackupPath(path, i)
			more, err := readLogFile(backup + ".gz")
			if os.IsNotExist(err) {
				more, err = readLogFile(backup)
			}
			if os.IsNotExist(err) {
				continue
			}
			if err != nil {
				return nil, err
			}
			entries = append(entries, more...)
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})
	return entries, nil
}

func readLogFile(path string) ([]LogEntry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()

	var r io.Reader = file
	if strings.HasSuffix(path, ".gz") {
		zr, err := gzip.NewReader(file)
		if err != nil {
			return nil, fmt.Errorf("failed to open compressed log %s: %w", path, err)
		}
		defer func() { _ = zr.Close() }()
		r = zr
	}

	return ParseLogs(r)
}

// ParseLogs reads JSON log lines from r.
func ParseLogs(r io.Reader) ([]LogEntry, error) {
	var entries []LogEntry
	scanner := bufio.NewScanner(r)

	const maxLine = 1024 * 1024
	scanner.Buffer(make([]byte, 64*1024), maxLine)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		entry, err := parseLogEntry(line)
		if err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading log: %w", err)
	}
	return entries, nil
}

func parseLogEntry(line string) (LogEntry, error) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return LogEntry{}, fmt.Errorf("invalid JSON: %w", err)
	}

	entry := LogEntry{Attrs: make(map[string]any)}
	for k, v := range raw {
		s, _ := v.(string)
		switch k {
		case "time":
			if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
				entry.Timestamp = t
			}
		case "level":
			entry.Level = s
		case "msg":
			entry.Message = s
		case KeyRunID:
			entry.RunID = s
		case KeyRepo:
			entry.Repo = s
		case KeyBranch:
			entry.Branch = s
		default:
			entry.Attrs[k] = v
		}
	}
	return entry, nil
}

// FilterLogs returns the entries matching filter.
func FilterLogs(entries []LogEntry, filter LogFilter) []LogEntry {
	if filter == (LogFilter{}) {
		return entries
	}

	var filtered []LogEntry
	for _, entry := range entries {
		if matchesFilter(entry, filter) {
			filtered = append(filtered, entry)
		}
	}
	return filtered
}

func matchesFilter(entry LogEntry, filter LogFilter) bool {
	if filter.Level != "" {
		want, wantOK := levelOrder[strings.ToUpper(filter.Level)]
		got, gotOK := levelOrder[entry.Level]
		if wantOK && gotOK && got < want {
			return false
		}
	}
	if !filter.Since.IsZero() && entry.Timestamp.Before(filter.Since) {
		return false
	}
	if filter.RunID != "" && entry.RunID != filter.RunID {
		return false
	}
	if filter.Branch != "" && entry.Branch != filter.Branch {
		return false
	}
	if filter.Contains != "" && !strings.Contains(entry.Message, filter.Contains) {
		return false
	}
	return true
}

// Tail returns the last n entries. n <= 0 returns all of them.
func Tail(entries []LogEntry, n int) []LogEntry {
	if n <= 0 || n >= len(entries) {
		return entries
	}
	return entries[len(entries)-n:]
}

// WriteEntries writes entries to w as "json" (one object per line) or "text".
func WriteEntries(w io.Writer, entries []LogEntry, format string) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		for _, entry := range entries {
			if err := enc.Encode(entry); err != nil {
				return fmt.Errorf("failed to write entry: %w", err)
			}
		}
		return nil
	case "", "text":
		for _, entry := range entries {
			if _, err := fmt.Fprintln(w, FormatEntry(entry)); err != nil {
				return fmt.Errorf("failed to write entry: %w", err)
			}
		}
		return nil
	default:
		return fmt.Errorf("unsupported log format: %s (supported: json, text)", format)
	}
}

// FormatEntry renders an entry as a single human-readable line:
//
//	[TIMESTAMP] LEVEL - MESSAGE (context) {attrs}
func FormatEntry(entry LogEntry) string {
	parts := []string{
		fmt.Sprintf("[%s]", entry.Timestamp.Format("2006-01-02 15:04:05.000")),
		entry.Level,
		"-",
		entry.Message,
	}

	var ctx []string
	if entry.RunID != "" {
		ctx = append(ctx, "run="+shortRunID(entry.RunID))
	}
	if entry.Branch != "" {
		ctx = append(ctx, "branch="+entry.Branch)
	}
	if len(ctx) > 0 {
		parts = append(parts, fmt.Sprintf("(%s)", strings.Join(ctx, ", ")))
	}

	if len(entry.Attrs) > 0 {
		// json.Marshal sorts map keys, so output is stable.
		attrs, _ := json.Marshal(entry.Attrs)
		parts = append(parts, string(attrs))
	}
	return strings.Join(parts, " ")
}

func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
