package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/logvision/backend/internal/cli"
)

// Version is set during build.
var Version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := cli.NewRootCommand(Version).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
