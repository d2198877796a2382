// Command cangjie-mcp serves Cangjie documentation and language-server
// operations as an MCP tool surface, over stdio or multi-index HTTP.
package main

import (
	"os"

	"github.com/cangjie-tools/cangjie-mcp/internal/config"
	"github.com/cangjie-tools/cangjie-mcp/internal/errs"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fatalf("failed to load configuration: %v", err)
	}

	logCloser, err := setupLogging(cfg)
	if err != nil {
		fatalf("failed to set up logging: %v", err)
	}
	if logCloser != nil {
		defer logCloser.Close()
	}

	if err := newRootCmd(cfg).Execute(); err != nil {
		os.Exit(errs.ExitCode(err))
	}
}
