package prebuilt

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/cangjie-tools/cangjie-mcp/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Docs.DataDir = t.TempDir()
	return cfg
}

func seedIndexDir(t *testing.T, cfg *config.Config, version, lang string) {
	t.Helper()
	dir := cfg.IndexDir(version, lang)
	if err := os.MkdirAll(filepath.Join(dir, "dense_store"), 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "index_metadata.json"), []byte(`{"version":"v1.0.0","lang":"zh"}`), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
}

func TestBuildAndInstallRoundTrip(t *testing.T) {
	cfg := testConfig(t)
	seedIndexDir(t, cfg, "v1.0.0", "zh")

	m := New(cfg)
	archivePath, err := m.Build("v1.0.0", "zh", "nomic-embed-text", "")
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if _, err := os.Stat(archivePath); err != nil {
		t.Fatalf("expected archive to exist: %v", err)
	}

	// Install into a fresh config pointing at a different data dir, to
	// prove install reconstructs the index location purely from the
	// archive's embedded metadata.
	installCfg := testConfig(t)
	installMgr := New(installCfg)
	metadata, err := installMgr.Install(archivePath)
	if err != nil {
		t.Fatalf("Install failed: %v", err)
	}
	if metadata.Version != "v1.0.0" || metadata.Lang != "zh" || metadata.EmbeddingModel != "nomic-embed-text" {
		t.Fatalf("unexpected metadata: %+v", metadata)
	}

	installedDir := installCfg.IndexDir("v1.0.0", "zh")
	if _, err := os.Stat(filepath.Join(installedDir, "dense_store")); err != nil {
		t.Fatalf("expected dense_store to be installed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(installedDir, "index_metadata.json")); err != nil {
		t.Fatalf("expected index_metadata.json to be installed: %v", err)
	}
}

func TestBuildMissingIndexDirErrors(t *testing.T) {
	cfg := testConfig(t)
	m := New(cfg)
	if _, err := m.Build("v1.0.0", "zh", "model", ""); err == nil {
		t.Fatal("expected error when index directory does not exist")
	}
}

func TestInstallMissingArchiveErrors(t *testing.T) {
	cfg := testConfig(t)
	m := New(cfg)
	if _, err := m.Install(filepath.Join(t.TempDir(), "missing.tar.gz")); err == nil {
		t.Fatal("expected error for missing archive")
	}
}

func TestListLocalFindsBuiltArchive(t *testing.T) {
	cfg := testConfig(t)
	seedIndexDir(t, cfg, "v1.0.0", "zh")
	m := New(cfg)
	if _, err := m.Build("v1.0.0", "zh", "nomic-embed-text", ""); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	archives, err := m.ListLocal()
	if err != nil {
		t.Fatalf("ListLocal failed: %v", err)
	}
	if len(archives) != 1 {
		t.Fatalf("expected 1 archive, got %d", len(archives))
	}
	if archives[0].Version != "v1.0.0" || archives[0].Lang != "zh" {
		t.Fatalf("unexpected archive info: %+v", archives[0])
	}
}

func TestListLocalEmptyWhenNoPrebuiltDir(t *testing.T) {
	cfg := testConfig(t)
	m := New(cfg)
	archives, err := m.ListLocal()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if archives != nil {
		t.Fatalf("expected nil, got %v", archives)
	}
}

func TestDownloadWritesArchiveFile(t *testing.T) {
	cfg := testConfig(t)
	seedIndexDir(t, cfg, "v1.0.0", "zh")
	builder := New(cfg)
	archivePath, err := builder.Build("v1.0.0", "zh", "nomic-embed-text", "")
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	archiveBytes, err := os.ReadFile(archivePath)
	if err != nil {
		t.Fatalf("reading archive failed: %v", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(archiveBytes)
	}))
	defer srv.Close()

	downloadCfg := testConfig(t)
	m := New(downloadCfg)
	downloaded, err := m.Download(context.Background(), srv.URL+"/cangjie-index-v1.0.0-zh.tar.gz", "", "")
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	if _, err := os.Stat(downloaded); err != nil {
		t.Fatalf("expected downloaded file to exist: %v", err)
	}
}

func TestListAvailableReturnsNilOnUnreachableServer(t *testing.T) {
	cfg := testConfig(t)
	m := New(cfg)
	items := m.ListAvailable(context.Background(), "http://127.0.0.1:1")
	if items != nil {
		t.Fatalf("expected nil, got %v", items)
	}
}
