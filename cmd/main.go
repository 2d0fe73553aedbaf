package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/okian/filmport/internal/cli"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run executes the CLI with a context cancelled on SIGINT/SIGTERM and
// returns the process exit code.
func run(args []string) int {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return cli.Execute(ctx, args)
}
