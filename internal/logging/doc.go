// Package logging provides structured logging for cxfinder runs.
//
// This package wraps Go's log/slog to write JSON-formatted logs that can be
// read back and filtered by the `cxfinder logs` command. Every invocation
// gets a run ID so that entries from concurrent `check --all` workers and
// from successive `watch` iterations can be told apart.
//
// # Features
//
//   - JSON-formatted structured logging via slog
//   - Configurable log levels (DEBUG, INFO, WARN, ERROR)
//   - Context propagation (run ID, repository, branch)
//   - Size-based rotation with optional gzip compression of backups
//   - Reading, filtering and tailing of the log including rotated backups
//
// # Basic Usage
//
//	logger, err := logging.NewLogger(cfg.Logging.File, cfg.Logging.Level, logging.RotationConfig{
//	    MaxSizeMB:  cfg.Logging.MaxSizeMB,
//	    MaxBackups: cfg.Logging.MaxBackups,
//	})
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	runLogger := logger.WithRun(logging.NewRunID()).WithRepo(repoPath)
//	runLogger.WithBranch("feature/x").Info("simulation finished", "status", "clean")
//
// Output:
//
//	{"time":"...","level":"INFO","msg":"simulation finished","run_id":"...","repo":"/src/app","branch":"feature/x","status":"clean"}
//
// # Reading Logs
//
//	entries, err := logging.ReadLogs(path)
//	entries = logging.FilterLogs(entries, logging.LogFilter{Level: "WARN", Branch: "feature/x"})
//	err = logging.WriteEntries(os.Stdout, logging.Tail(entries, 50), "text")
//
// # Thread Safety
//
// All types in this package are safe for concurrent use. Child loggers
// created via With* methods share the underlying writer.
package logging
