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

// newIndexCmd builds or refreshes one (version, lang) index without
// starting a server, for use in a build step ahead of `prebuilt build`.
func newIndexCmd(cfg *config.Config) *cobra.Command {
	var version, lang string

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build or refresh a documentation index",
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			cfg.Docs.Version, cfg.Docs.Lang = version, lang

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()
			defer func() { err = wrapCancellation(ctx, err) }()

			embedder := embeddings.NewClient(&cfg.Embeddings)
			reranker, err := rerank.New(&cfg.Rerank)
			if err != nil {
				return fmt.Errorf("failed to build reranker: %w", err)
			}

			log.Printf("indexing %s/%s", cfg.Docs.Version, cfg.Docs.Lang)
			peer, err := mcpserver.BuildPeer(ctx, cfg, embedder, reranker)
			if err != nil {
				return fmt.Errorf("indexing failed: %w", err)
			}
			defer peer.Close(ctx)
			log.Printf("index ready: %s/%s", peer.Version, peer.Lang)
			return nil
		},
	}

	cmd.Flags().StringVar(&version, "version", cfg.Docs.Version, "documentation version tag to index")
	cmd.Flags().StringVar(&lang, "lang", cfg.Docs.Lang, "documentation language (zh or en)")
	return cmd
}
