// Package mcpserver exposes the documentation and language-server
// operations as an MCP tool surface, over stdio or as a multi-index HTTP
// server mounting one peer per (version, lang).
package mcpserver

import (
	"context"
	"fmt"
	"log"

	"github.com/cangjie-tools/cangjie-mcp/internal/config"
	"github.com/cangjie-tools/cangjie-mcp/internal/depresolve"
	"github.com/cangjie-tools/cangjie-mcp/internal/docsource"
	"github.com/cangjie-tools/cangjie-mcp/internal/errs"
	"github.com/cangjie-tools/cangjie-mcp/internal/lifecycle"
	"github.com/cangjie-tools/cangjie-mcp/internal/lspclient"
	"github.com/cangjie-tools/cangjie-mcp/internal/rerank"
	"github.com/cangjie-tools/cangjie-mcp/internal/retriever"
)

// Peer bundles one (version, lang) index's query-time collaborators: the
// documentation source, the hybrid retriever, and (when a language server
// binary is configured) the LSP client. The tool surface is generalized
// over any number of these so several corpora can be served at once.
type Peer struct {
	Version string
	Lang    string

	cfg       *config.Config
	docs      docsource.Source
	retriever *retriever.Retriever
	lsp       *lspclient.Client
}

// BuildPeer initializes (or reuses) the index for cfg's configured
// (version, lang), mounts a git-backed document source over the same
// clone, and starts the bundled language server when one is configured.
// A partial failure building the LSP client does not fail the whole peer:
// the peer is built without an LSP client, documentation tools keep
// working, and the LSP tools are not registered for it.
func BuildPeer(ctx context.Context, cfg *config.Config, embedder lifecycle.Embedder, reranker rerank.Provider) (*Peer, error) {
	mgr := lifecycle.New(cfg)
	idx, err := mgr.InitializeAndIndex(ctx, embedder)
	if err != nil {
		return nil, err
	}

	repo, err := mgr.Git().EnsureCloned(ctx)
	if err != nil {
		return nil, err
	}
	docs, err := docsource.NewGitSource(repo, mgr.Git(), idx.Version, idx.Lang)
	if err != nil {
		return nil, err
	}

	r := retriever.New(idx.Dense, idx.BM25, embedder, reranker, &cfg.Search)

	peer := &Peer{
		Version:   idx.Version,
		Lang:      idx.Lang,
		cfg:       cfg,
		docs:      docs,
		retriever: r,
	}

	if cfg.LSP.ServerPath != "" {
		lsp, err := startLSPClient(ctx, cfg)
		if err != nil {
			log.Printf("language server unavailable for %s: %v", peer.Key(), err)
		} else {
			peer.lsp = lsp
		}
	}

	return peer, nil
}

func startLSPClient(ctx context.Context, cfg *config.Config) (*lspclient.Client, error) {
	resolver, err := depresolve.New(cfg.LSP.WorkspacePath)
	if err != nil {
		return nil, err
	}
	result := resolver.Resolve()

	opts := lspclient.Options{
		ServerPath:    cfg.LSP.ServerPath,
		WorkspacePath: cfg.LSP.WorkspacePath,
		InitOptions: map[string]any{
			"multiModuleOption": result.MultiModuleOption,
		},
		InitTimeout:     millisToDuration(cfg.LSP.InitTimeoutMS, 45000),
		ShutdownGrace:   millisToDuration(cfg.LSP.ShutdownGraceMS, 500),
		StderrTailLines: cfg.LSP.StderrTailLines,
	}
	if result.RequirePath != "" {
		opts.Env = append(opts.Env, "LD_LIBRARY_PATH="+result.RequirePath)
	}

	client := lspclient.New(opts)
	if err := client.Start(ctx); err != nil {
		return nil, err
	}
	return client, nil
}

// requireLSP returns the peer's language server client, or a
// SourceUnavailable error when none is configured or it has exited.
func (p *Peer) requireLSP() (*lspclient.Client, error) {
	if p.lsp == nil {
		return nil, errs.NewSourceUnavailable("no language server configured for this peer", nil)
	}
	if !p.lsp.IsAlive() {
		return nil, errs.NewSourceUnavailable("language server process is not running", nil)
	}
	return p.lsp, nil
}

// Close shuts down the peer's language server, if any.
func (p *Peer) Close(ctx context.Context) error {
	if p.lsp == nil {
		return nil
	}
	return p.lsp.Shutdown(ctx)
}

// Key identifies the peer in log messages and HTTP mount paths.
func (p *Peer) Key() string {
	return fmt.Sprintf("%s/%s", p.Version, p.Lang)
}
