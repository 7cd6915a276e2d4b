package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Iron-Ham/cxfinder/internal/cmd"
	"github.com/Iron-Ham/cxfinder/internal/errors"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cmd.Execute(ctx)
	stop()

	// Conflicts were already reported on stdout.
	if err != nil && !errors.Is(err, errors.ErrConflictsFound) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(errors.ExitCode(err))
}
