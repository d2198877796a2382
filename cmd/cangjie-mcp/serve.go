package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/cangjie-tools/cangjie-mcp/internal/config"
	"github.com/cangjie-tools/cangjie-mcp/internal/embeddings"
	"github.com/cangjie-tools/cangjie-mcp/internal/mcpserver"
	"github.com/cangjie-tools/cangjie-mcp/internal/rerank"
)

// newServeCmd builds the configured (version, lang) peer plus any --peer
// additions, then serves them over stdio (the default, single peer only)
// or as a multi-index HTTP server.
func newServeCmd(cfg *config.Config) *cobra.Command {
	var useHTTP bool
	var extraPeers []string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the documentation and language-server tool surface",
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if !useHTTP && len(extraPeers) > 0 {
				return fmt.Errorf("--peer requires --http: stdio serves exactly one index")
			}

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()
			defer func() { err = wrapCancellation(ctx, err) }()

			embedder := embeddings.NewClient(&cfg.Embeddings)
			reranker, err := rerank.New(&cfg.Rerank)
			if err != nil {
				return fmt.Errorf("failed to build reranker: %w", err)
			}

			primary, err := mcpserver.BuildPeer(ctx, cfg, embedder, reranker)
			if err != nil {
				return fmt.Errorf("failed to build index peer %s/%s: %w", cfg.Docs.Version, cfg.Docs.Lang, err)
			}

			if !useHTTP {
				server := mcpserver.NewServer(cfg, primary)
				defer server.Close(ctx)
				log.Printf("serving %s/%s over stdio", primary.Version, primary.Lang)
				return server.Start(ctx)
			}

			peers := []*mcpserver.Peer{primary}
			for _, spec := range extraPeers {
				version, lang, ok := splitVersionLang(spec)
				if !ok {
					return fmt.Errorf("invalid --peer value %q, expected version:lang", spec)
				}
				peerCfg := *cfg
				peerCfg.Docs.Version, peerCfg.Docs.Lang = version, lang
				p, err := mcpserver.BuildPeer(ctx, &peerCfg, embedder, reranker)
				if err != nil {
					return fmt.Errorf("failed to build index peer %s/%s: %w", version, lang, err)
				}
				peers = append(peers, p)
			}

			return mcpserver.NewHTTPServer(cfg, peers).ListenAndServe()
		},
	}

	cmd.Flags().BoolVar(&useHTTP, "http", false, "serve over streamable HTTP instead of stdio")
	cmd.Flags().StringArrayVar(&extraPeers, "peer", nil, "additional version:lang index to mount (HTTP only, repeatable)")
	return cmd
}

func splitVersionLang(spec string) (version, lang string, ok bool) {
	for i := len(spec) - 1; i >= 0; i-- {
		if spec[i] == ':' {
			return spec[:i], spec[i+1:], true
		}
	}
	return "", "", false
}
