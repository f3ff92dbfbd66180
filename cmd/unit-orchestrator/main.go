package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/akrishnanDG/unit-orchestrator/internal/cli"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// The first signal cancels the run; in-flight batches finish and reports
	// for the partial session are still written.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	err := cli.NewRootCmd(Version, BuildTime).ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
