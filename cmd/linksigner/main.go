// Command linksigner signs and checks links from the shell. The secret comes
// from LINKSIGNER_SECRET or a .env file, never from flags.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/dharsanguruparan/linksigner/internal/clock"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCommand(clock.System{})
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "linksigner: %v\n", err)
		os.Exit(1)
	}
}
