package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cangjie-tools/cangjie-mcp/internal/config"
	"github.com/cangjie-tools/cangjie-mcp/internal/errs"
)

func fatalf(format string, args ...any) {
	log.Printf(format, args...)
	os.Exit(1)
}

// newRootCmd builds the cangjie-mcp command tree: serve, index, and the
// prebuilt archive subcommands.
func newRootCmd(cfg *config.Config) *cobra.Command {
	root := &cobra.Command{
		Use:     "cangjie-mcp",
		Short:   "Documentation and language-server MCP tool surface for Cangjie",
		Version: cfg.Server.Version,
	}

	root.AddCommand(newServeCmd(cfg))
	root.AddCommand(newIndexCmd(cfg))
	root.AddCommand(newPrebuiltCmd(cfg))
	return root
}

// signalContext cancels on SIGINT/SIGTERM so long-running commands (serve,
// index) shut down cleanly instead of dying mid-write.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("received shutdown signal...")
		cancel()
	}()
	return ctx, cancel
}

// wrapCancellation reports a RunE failure as errs.Cancelled (exit code 2)
// when it surfaces after ctx was torn down by signalContext, instead of the
// generic exit code 1 an initialization or runtime failure gets.
func wrapCancellation(ctx context.Context, err error) error {
	if err == nil || ctx.Err() == nil {
		return err
	}
	return errs.NewCancelled("interrupted", err)
}
