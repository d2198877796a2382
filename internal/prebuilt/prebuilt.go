// Package prebuilt builds, distributes, and installs prebuilt index
// archives, so a deployment can skip the build step (git clone, chunk,
// embed, index) and instead download a ready-made (version, lang) index.
package prebuilt

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cangjie-tools/cangjie-mcp/internal/config"
	"github.com/cangjie-tools/cangjie-mcp/internal/errs"
)

// archiveMetadataFile is the fixed member name holding an archive's
// metadata, kept at the archive root for list/install to read without
// extracting the full index payload.
const archiveMetadataFile = "prebuilt_metadata.json"

// indexMemberPrefix is the tar member prefix under which the index
// directory's contents are stored.
const indexMemberPrefix = "index/"

// ArchiveMetadata identifies the (version, lang, embedding_model) an
// archive was built with.
type ArchiveMetadata struct {
	Version        string `json:"version"`
	Lang           string `json:"lang"`
	EmbeddingModel string `json:"embedding_model"`
	FormatVersion  string `json:"format_version"`
}

// ArchiveInfo describes a prebuilt archive found on local disk.
type ArchiveInfo struct {
	Version        string `json:"version"`
	Lang           string `json:"lang"`
	EmbeddingModel string `json:"embedding_model"`
	Path           string `json:"path"`
}

// Manager builds, downloads, installs, and lists prebuilt index archives
// relative to one configuration's data directory layout.
type Manager struct {
	cfg *config.Config
}

// New returns a Manager rooted at cfg's data directory.
func New(cfg *config.Config) *Manager {
	return &Manager{cfg: cfg}
}

// Build packages the built index for (version, lang) into a .tar.gz
// archive under the prebuilt directory (or outputPath if given) and
// returns the archive's path.
func (m *Manager) Build(version, lang, embeddingModel, outputPath string) (string, error) {
	indexDir := m.cfg.IndexDir(version, lang)
	if info, err := os.Stat(indexDir); err != nil || !info.IsDir() {
		return "", errs.NewConfigError("index directory not found: "+indexDir, err)
	}

	prebuiltDir := m.cfg.PrebuiltDir()
	if err := os.MkdirAll(prebuiltDir, 0o755); err != nil {
		return "", errs.NewBackendError("creating prebuilt directory", err)
	}

	archiveName := fmt.Sprintf("cangjie-index-%s-%s.tar.gz", version, lang)
	output := outputPath
	if output == "" {
		output = filepath.Join(prebuiltDir, archiveName)
	} else if info, err := os.Stat(output); err == nil && info.IsDir() {
		output = filepath.Join(output, archiveName)
	}

	metadata := ArchiveMetadata{Version: version, Lang: lang, EmbeddingModel: embeddingModel, FormatVersion: "1.0"}

	f, err := os.Create(output)
	if err != nil {
		return "", errs.NewBackendError("creating archive file", err)
	}
	defer f.Close()

	if err := writeArchive(f, indexDir, metadata); err != nil {
		os.Remove(output)
		return "", err
	}
	return output, nil
}

// Download fetches a prebuilt archive from url, constructing the full
// per-(version, lang) filename when both are given and url is a base
// directory URL rather than a direct archive link.
func (m *Manager) Download(ctx context.Context, url, version, lang string) (string, error) {
	if version != "" && lang != "" && !strings.HasSuffix(url, ".tar.gz") {
		archiveName := fmt.Sprintf("cangjie-index-%s-%s.tar.gz", version, lang)
		url = strings.TrimRight(url, "/") + "/" + archiveName
	}

	prebuiltDir := m.cfg.PrebuiltDir()
	if err := os.MkdirAll(prebuiltDir, 0o755); err != nil {
		return "", errs.NewBackendError("creating prebuilt directory", err)
	}

	parts := strings.Split(url, "/")
	archiveName := parts[len(parts)-1]
	output := filepath.Join(prebuiltDir, archiveName)

	client := &http.Client{Timeout: 5 * time.Minute}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", errs.NewSourceUnavailable("building download request", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", errs.NewSourceUnavailable("downloading prebuilt archive", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", errs.NewSourceUnavailable(fmt.Sprintf("prebuilt archive download returned status %d", resp.StatusCode), nil)
	}

	f, err := os.Create(output)
	if err != nil {
		return "", errs.NewBackendError("creating downloaded archive file", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		os.Remove(output)
		return "", errs.NewSourceUnavailable("writing downloaded prebuilt archive", err)
	}
	return output, nil
}

// Install extracts archivePath's index payload into the version/lang
// isolated index directory it declares, replacing anything already
// there. The extraction lands in a sibling temp directory first and is
// only renamed into place once fully unpacked, so a failed or
// interrupted install never leaves a half-written index live.
func (m *Manager) Install(archivePath string) (*ArchiveMetadata, error) {
	if _, err := os.Stat(archivePath); err != nil {
		return nil, errs.NewNotFound("archive not found: "+archivePath, err)
	}

	if err := os.MkdirAll(m.cfg.PrebuiltDir(), 0o755); err != nil {
		return nil, errs.NewBackendError("creating prebuilt directory", err)
	}
	extractDir, err := os.MkdirTemp(m.cfg.PrebuiltDir(), "install-*")
	if err != nil {
		return nil, errs.NewBackendError("creating extraction directory", err)
	}
	defer os.RemoveAll(extractDir)

	f, err := os.Open(archivePath)
	if err != nil {
		return nil, errs.NewBackendError("opening archive", err)
	}
	defer f.Close()

	metadata, err := extractArchive(f, extractDir)
	if err != nil {
		return nil, err
	}
	if metadata == nil {
		return nil, errs.NewIntegrityError("invalid archive: missing "+archiveMetadataFile, nil)
	}

	extractedIndex := filepath.Join(extractDir, "index")
	if info, err := os.Stat(extractedIndex); err != nil || !info.IsDir() {
		return nil, errs.NewIntegrityError("invalid archive: missing index directory", nil)
	}

	target := m.cfg.IndexDir(metadata.Version, metadata.Lang)
	if err := os.RemoveAll(target); err != nil {
		return nil, errs.NewBackendError("removing existing index directory", err)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return nil, errs.NewBackendError("creating index parent directory", err)
	}
	if err := os.Rename(extractedIndex, target); err != nil {
		return nil, errs.NewBackendError("installing extracted index", err)
	}

	return metadata, nil
}

// ListAvailable lists the prebuilt archives advertised by a remote
// index.json under baseURL. Per the source this describes, a server
// that doesn't publish one (or is unreachable) yields an empty list
// rather than an error: listing availability is advisory.
func (m *Manager) ListAvailable(ctx context.Context, baseURL string) []ArchiveMetadata {
	indexURL := strings.TrimRight(baseURL, "/") + "/index.json"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, indexURL, nil)
	if err != nil {
		return nil
	}
	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil
	}

	var items []ArchiveMetadata
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil
	}
	return items
}

// ListLocal lists archives already present in the prebuilt directory.
func (m *Manager) ListLocal() ([]ArchiveInfo, error) {
	prebuiltDir := m.cfg.PrebuiltDir()
	entries, err := os.ReadDir(prebuiltDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errs.NewBackendError("listing prebuilt directory", err)
	}

	var archives []ArchiveInfo
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".tar.gz") {
			continue
		}
		path := filepath.Join(prebuiltDir, entry.Name())
		metadata, err := readArchiveMetadata(path)
		if err != nil || metadata == nil {
			continue
		}
		archives = append(archives, ArchiveInfo{
			Version:        metadata.Version,
			Lang:           metadata.Lang,
			EmbeddingModel: metadata.EmbeddingModel,
			Path:           path,
		})
	}
	return archives, nil
}
