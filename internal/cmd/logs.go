package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/Iron-Ham/cxfinder/internal/config"
	"github.com/Iron-Ham/cxfinder/internal/errors"
	"github.com/Iron-Ham/cxfinder/internal/logging"
	"github.com/spf13/cobra"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "View cxfinder's debug log",
	Long: `View and filter the JSON debug log written by cxfinder commands.

The log lives at logging.file, or in the config directory when that is
unset. Every command invocation has its own run id.

Examples:
  # Show the last 50 entries
  cxfinder logs

  # Everything logged about one branch, including rotated files
  cxfinder logs --branch feature/login --backups -n 0

  # Warnings and errors from the last hour
  cxfinder logs --level warn --since 1h

  # Follow the log while another terminal runs cxfinder watch
  cxfinder logs -f`,
	Args: cobra.NoArgs,
	RunE: runLogs,
}

var (
	logsTail    int
	logsFollow  bool
	logsLevel   string
	logsSince   string
	logsRun     string
	logsBranch  string
	logsGrep    string
	logsBackups bool
	logsJSON    bool
)

func init() {
	rootCmd.AddCommand(logsCmd)

	logsCmd.Flags().IntVarP(&logsTail, "tail", "n", 50, "Number of entries to show (0 for all)")
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "Follow log output (like tail -f)")
	logsCmd.Flags().StringVar(&logsLevel, "level", "", "Filter by minimum level (debug/info/warn/error)")
	logsCmd.Flags().StringVar(&logsSince, "since", "", "Show logs since duration ago (e.g., 1h, 30m)")
	logsCmd.Flags().StringVar(&logsRun, "run", "", "Show one run id")
	logsCmd.Flags().StringVar(&logsBranch, "branch", "", "Show entries about one branch")
	logsCmd.Flags().StringVar(&logsGrep, "grep", "", "Show entries whose message contains this text")
	logsCmd.Flags().BoolVar(&logsBackups, "backups", false, "Include rotated log files")
	logsCmd.Flags().BoolVar(&logsJSON, "json", false, "Output raw JSON lines")
}

func logFilePath(cfg *config.Config) string {
	if cfg.Logging.File != "" {
		return cfg.Logging.File
	}
	return config.DefaultLogFile()
}

func runLogs(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logPath := logFilePath(cfg)

	filter := logging.LogFilter{
		RunID:    logsRun,
		Branch:   logsBranch,
		Contains: logsGrep,
	}
	if logsLevel != "" {
		filter.Level = logging.ParseLevel(logsLevel)
	}
	if logsSince != "" {
		duration, err := time.ParseDuration(logsSince)
		if err != nil {
			return fmt.Errorf("invalid duration format: %w", err)
		}
		filter.Since = time.Now().Add(-duration)
	}

	format := "text"
	if logsJSON {
		format = "json"
	}

	out := cmd.OutOrStdout()
	if logsFollow {
		return followLogs(cmd.Context(), out, logPath, filter, format)
	}

	entries, err := logging.ReadLogs(logPath, logsBackups, cfg.Logging.MaxBackups)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(out, "No logs found at %s\n", logPath)
			return nil
		}
		return err
	}

	entries = logging.Tail(logging.FilterLogs(entries, filter), logsTail)
	if len(entries) == 0 {
		fmt.Fprintln(out, "No matching log entries found.")
		return nil
	}
	return logging.WriteEntries(out, entries, format)
}

// followLogs implements tail -f behavior for the log file
func followLogs(ctx context.Context, out io.Writer, logPath string, filter logging.LogFilter, format string) error {
	file, err := os.Open(logPath)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer file.Close()

	// Seek to end of file
	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("failed to seek to end: %w", err)
	}

	fmt.Fprintf(out, "Following %s... (Ctrl+C to stop)\n\n", logPath)

	reader := bufio.NewReader(file)
	var partial strings.Builder
	for {
		chunk, err := reader.ReadString('\n')
		partial.WriteString(chunk)
		if err == io.EOF {
			// No new data, wait briefly and try again
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(100 * time.Millisecond):
			}
			continue
		}
		if err != nil {
			return fmt.Errorf("error reading log file: %w", err)
		}

		line := partial.String()
		partial.Reset()

		entries, err := logging.ParseLogs(strings.NewReader(line))
		if err != nil || len(entries) == 0 {
			continue
		}
		if err := logging.WriteEntries(out, logging.FilterLogs(entries, filter), format); err != nil {
			return err
		}
	}
}
