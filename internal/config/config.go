// Package config loads and layers application configuration for the
// Cangjie documentation server: defaults, an optional YAML file on disk,
// then environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the documentation query server.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Docs       DocsConfig       `yaml:"docs"`
	Chunking   ChunkingConfig   `yaml:"chunking"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	Rerank     RerankConfig     `yaml:"rerank"`
	DenseStore DenseStoreConfig `yaml:"dense_store"`
	BM25Store  BM25StoreConfig  `yaml:"bm25_store"`
	Search     SearchConfig     `yaml:"search"`
	LSP        LSPConfig        `yaml:"lsp"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ServerConfig identifies this server instance and configures the
// streamable HTTP transport.
type ServerConfig struct {
	Name     string `yaml:"name"`
	Version  string `yaml:"version"`
	HTTPHost string `yaml:"http_host"`
	HTTPPort int    `yaml:"http_port"`
}

// DocsConfig describes the documentation corpus to serve.
type DocsConfig struct {
	Version     string `yaml:"version"`      // git tag, or "latest"
	Lang        string `yaml:"lang"`         // "zh" or "en"
	RepoURL     string `yaml:"repo_url"`      // git clone URL for the docs repo
	DataDir     string `yaml:"data_dir"`      // root of all persisted state
	PrebuiltURL string `yaml:"prebuilt_url"` // optional prebuilt-archive distribution URL
}

// ChunkingConfig tunes the semantic chunker and its fallback splitter.
type ChunkingConfig struct {
	BufferSize                int     `yaml:"buffer_size"`
	BreakpointPercentile      float64 `yaml:"breakpoint_percentile"`
	ChunkMaxSizeChars         int     `yaml:"chunk_max_size_chars"`
	FallbackChunkSizeChars    int     `yaml:"fallback_chunk_size_chars"`
	FallbackChunkOverlapChars int     `yaml:"fallback_chunk_overlap_chars"`
	FallbackMaxTokens         int     `yaml:"fallback_max_tokens"`
}

// EmbeddingsConfig selects and configures the embedding provider.
type EmbeddingsConfig struct {
	Provider      string `yaml:"provider"` // "ollama" or "openai"
	BaseURL       string `yaml:"base_url"`
	Model         string `yaml:"model"`
	APIKey        string `yaml:"api_key"`
	BatchSize     int    `yaml:"batch_size"`
	Dimensions    int    `yaml:"dimensions"`     // target MRL dimension, 0 disables truncation
	FullDimension int    `yaml:"full_dimension"` // dimension returned by the model
	Normalize     bool   `yaml:"normalize"`
	UseMRL        bool   `yaml:"use_mrl"`
}

// RerankConfig selects and configures the optional reranker.
type RerankConfig struct {
	Type    string `yaml:"type"` // "none", "local", "api"
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
}

// DenseStoreConfig configures the vector-database collection.
type DenseStoreConfig struct {
	Address        string `yaml:"address"` // host:port of the vector-DB engine
	CollectionName string `yaml:"collection_name"`
	DistanceMetric string `yaml:"distance_metric"`
	OnDiskPayload  bool   `yaml:"on_disk_payload"`
}

// BM25StoreConfig configures the lexical index.
type BM25StoreConfig struct {
	DirName string `yaml:"dir_name"`
}

// SearchConfig tunes the hybrid retriever.
type SearchConfig struct {
	DefaultTopK  int `yaml:"default_top_k"`
	InitialKMult int `yaml:"initial_k_multiplier"`
	RRFK         int `yaml:"rrf_k"`
}

// LSPConfig configures the bundled language-server subprocess.
type LSPConfig struct {
	ServerPath       string `yaml:"server_path"`
	WorkspacePath    string `yaml:"workspace_path"`
	InitTimeoutMS    int    `yaml:"init_timeout_ms"`
	DiagnosticsMS    int    `yaml:"diagnostics_timeout_ms"`
	StderrTailLines  int    `yaml:"stderr_tail_lines"`
	ShutdownGraceMS  int    `yaml:"shutdown_grace_ms"`
}

// LoggingConfig configures file-rotating structured logging.
type LoggingConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Directory  string `yaml:"directory"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Debug      bool   `yaml:"debug"` // also copy log output to stderr; stdio traffic is not logged
}

// DocsRepoDir is the shared git clone directory for the documentation repo.
func (c *Config) DocsRepoDir() string {
	return filepath.Join(c.Docs.DataDir, "docs_repo")
}

// IndexDir is the version-and-language-isolated directory for one index.
func (c *Config) IndexDir(version, lang string) string {
	return filepath.Join(c.Docs.DataDir, "indexes", version+"-"+lang)
}

// DenseStoreDir is the dense collection's on-disk directory for one index.
func (c *Config) DenseStoreDir(version, lang string) string {
	return filepath.Join(c.IndexDir(version, lang), "dense_store")
}

// BM25IndexDir is the BM25 posting-list directory for one index.
func (c *Config) BM25IndexDir(version, lang string) string {
	return filepath.Join(c.IndexDir(version, lang), "bm25_index")
}

// IndexMetadataPath is the metadata sidecar path for one index.
func (c *Config) IndexMetadataPath(version, lang string) string {
	return filepath.Join(c.IndexDir(version, lang), "index_metadata.json")
}

// PrebuiltDir holds downloaded/installed prebuilt archives.
func (c *Config) PrebuiltDir() string {
	return filepath.Join(c.Docs.DataDir, "prebuilt")
}

// DocsSourceSubdir resolves the language-specific subdirectory inside the
// cloned docs repo's dev-guide tree.
func DocsSourceSubdir(lang string) string {
	if lang == "en" {
		return "source_en"
	}
	return "source_zh_cn"
}

// Load builds a Config from defaults, an optional on-disk YAML file, and
// environment variable overrides, in that order.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	if path := getConfigPath(); path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	cfg.Docs.DataDir = expandPath(cfg.Docs.DataDir)
	cfg.Logging.Directory = expandPath(cfg.Logging.Directory)

	return cfg, nil
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Name:     "cangjie-mcp",
			Version:  "0.1.0",
			HTTPHost: "0.0.0.0",
			HTTPPort: 8765,
		},
		Docs: DocsConfig{
			Version: "latest",
			Lang:    "zh",
			RepoURL: "https://gitcode.com/Cangjie/cangjie_docs.git",
			DataDir: "~/.cangjie-mcp",
		},
		Chunking: ChunkingConfig{
			BufferSize:                1,
			BreakpointPercentile:      95,
			ChunkMaxSizeChars:         4000,
			FallbackChunkSizeChars:    1024,
			FallbackChunkOverlapChars: 200,
			FallbackMaxTokens:         300,
		},
		Embeddings: EmbeddingsConfig{
			Provider:      "ollama",
			BaseURL:       "http://localhost:11434",
			Model:         "nomic-embed-text",
			BatchSize:     16,
			Dimensions:    256,
			FullDimension: 768,
			Normalize:     true,
			UseMRL:        false,
		},
		Rerank: RerankConfig{
			Type: "none",
		},
		DenseStore: DenseStoreConfig{
			Address:        "localhost:6334",
			CollectionName: "cangjie_docs",
			DistanceMetric: "cosine",
			OnDiskPayload:  true,
		},
		BM25Store: BM25StoreConfig{
			DirName: "bm25_index",
		},
		Search: SearchConfig{
			DefaultTopK:  5,
			InitialKMult: 4,
			RRFK:         60,
		},
		LSP: LSPConfig{
			ServerPath:      "",
			InitTimeoutMS:   45000,
			DiagnosticsMS:   3000,
			StderrTailLines: 20,
			ShutdownGraceMS: 500,
		},
		Logging: LoggingConfig{
			Enabled:    true,
			Directory:  "~/.cangjie-mcp/logs",
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
	}
}

func getConfigPath() string {
	if path := os.Getenv("CANGJIE_MCP_CONFIG"); path != "" {
		return path
	}

	if _, err := os.Stat("config.yaml"); err == nil {
		return "config.yaml"
	}

	home, err := os.UserHomeDir()
	if err == nil {
		path := filepath.Join(home, ".cangjie-mcp", "config.yaml")
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CANGJIE_DOCS_VERSION"); v != "" {
		cfg.Docs.Version = v
	}
	if v := os.Getenv("CANGJIE_DOCS_LANG"); v != "" {
		cfg.Docs.Lang = v
	}
	if v := os.Getenv("CANGJIE_DATA_DIR"); v != "" {
		cfg.Docs.DataDir = v
	}
	if v := os.Getenv("CANGJIE_PREBUILT_URL"); v != "" {
		cfg.Docs.PrebuiltURL = v
	}
	if v := os.Getenv("CANGJIE_EMBEDDING_TYPE"); v != "" {
		cfg.Embeddings.Provider = v
	}
	if v := os.Getenv("CANGJIE_CHUNK_MAX_SIZE"); v != "" {
		if n, err := parsePositiveInt(v); err == nil {
			cfg.Chunking.ChunkMaxSizeChars = n
		}
	}
	if v := os.Getenv("CANGJIE_RERANK_MODEL"); v != "" {
		cfg.Rerank.Model = v
	}
	if v := os.Getenv("CANGJIE_DEBUG"); v == "1" || v == "true" {
		cfg.Logging.Debug = true
	}
	if v := os.Getenv("CANGJIE_SERVER_PORT"); v != "" {
		if n, err := parsePositiveInt(v); err == nil {
			cfg.Server.HTTPPort = n
		}
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" && cfg.Embeddings.Provider == "openai" {
		cfg.Embeddings.APIKey = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" && cfg.Embeddings.Provider == "openai" {
		cfg.Embeddings.BaseURL = v
	}
	if v := os.Getenv("OPENAI_MODEL"); v != "" && cfg.Embeddings.Provider == "openai" {
		cfg.Embeddings.Model = v
	}
}

func parsePositiveInt(s string) (int, error) {
	var n int
	_, err := fmt.Sscanf(s, "%d", &n)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("value must be positive: %q", s)
	}
	return n, nil
}

func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

// WorkerCount returns a sensible default worker-pool size for CPU-bound
// pipeline stages (chunking, tokenization).
func WorkerCount() int {
	n := runtime.NumCPU()
	if n < 1 {
		return 1
	}
	return n
}
