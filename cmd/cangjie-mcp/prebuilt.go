package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/cangjie-tools/cangjie-mcp/internal/config"
	"github.com/cangjie-tools/cangjie-mcp/internal/prebuilt"
)

// newPrebuiltCmd groups the archive build/install/list subcommands under a
// single "prebuilt" command.
func newPrebuiltCmd(cfg *config.Config) *cobra.Command {
	root := &cobra.Command{
		Use:   "prebuilt",
		Short: "Build, install, and list prebuilt index archives",
	}

	root.AddCommand(newPrebuiltBuildCmd(cfg))
	root.AddCommand(newPrebuiltInstallCmd(cfg))
	root.AddCommand(newPrebuiltListLocalCmd(cfg))
	root.AddCommand(newPrebuiltListRemoteCmd(cfg))
	return root
}

func newPrebuiltBuildCmd(cfg *config.Config) *cobra.Command {
	var version, lang, model, out string

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Package a built index into a distributable archive",
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" {
				return fmt.Errorf("--out is required")
			}
			path, err := prebuilt.New(cfg).Build(version, lang, model, out)
			if err != nil {
				return fmt.Errorf("build failed: %w", err)
			}
			log.Printf("wrote prebuilt archive: %s", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&version, "version", cfg.Docs.Version, "documentation version tag")
	cmd.Flags().StringVar(&lang, "lang", cfg.Docs.Lang, "documentation language")
	cmd.Flags().StringVar(&model, "model", cfg.Embeddings.Model, "embedding model the index was built with")
	cmd.Flags().StringVar(&out, "out", "", "output archive path")
	return cmd
}

func newPrebuiltInstallCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "install <archive-path>",
		Short: "Install a prebuilt archive into the data directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			meta, err := prebuilt.New(cfg).Install(args[0])
			if err != nil {
				return fmt.Errorf("install failed: %w", err)
			}
			log.Printf("installed %s/%s (model %s)", meta.Version, meta.Lang, meta.EmbeddingModel)
			return nil
		},
	}
}

func newPrebuiltListLocalCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "list-local",
		Short: "List locally built prebuilt archives",
		RunE: func(cmd *cobra.Command, args []string) error {
			archives, err := prebuilt.New(cfg).ListLocal()
			if err != nil {
				return fmt.Errorf("list-local failed: %w", err)
			}
			for _, a := range archives {
				fmt.Printf("%s\t%s/%s\t%s\n", a.Path, a.Version, a.Lang, a.EmbeddingModel)
			}
			return nil
		},
	}
}

func newPrebuiltListRemoteCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "list-remote",
		Short: "List archives available at the configured prebuilt URL",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Docs.PrebuiltURL == "" {
				return fmt.Errorf("no prebuilt_url configured")
			}
			for _, meta := range prebuilt.New(cfg).ListAvailable(cmd.Context(), cfg.Docs.PrebuiltURL) {
				fmt.Printf("%s\t%s\t%s\n", meta.Version, meta.Lang, meta.EmbeddingModel)
			}
			return nil
		},
	}
}
