// Package lifecycle implements the Index Lifecycle Manager: given a
// configured (version, lang), it decides whether a prebuilt archive,
// an already-built index, or a fresh build from the documentation
// repository satisfies the request, and drives whichever path applies.
package lifecycle

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/cangjie-tools/cangjie-mcp/internal/bm25index"
	"github.com/cangjie-tools/cangjie-mcp/internal/chunking"
	"github.com/cangjie-tools/cangjie-mcp/internal/config"
	"github.com/cangjie-tools/cangjie-mcp/internal/denseindex"
	"github.com/cangjie-tools/cangjie-mcp/internal/docsource"
	"github.com/cangjie-tools/cangjie-mcp/internal/embeddings"
	"github.com/cangjie-tools/cangjie-mcp/internal/errs"
	"github.com/cangjie-tools/cangjie-mcp/internal/gitrepo"
	"github.com/cangjie-tools/cangjie-mcp/internal/prebuilt"
)

// Index is the set of per-(version, lang) collaborators an initialized
// index makes available to the retriever.
type Index struct {
	Version string
	Lang    string
	Dense   *denseindex.Store
	BM25    *bm25index.Store
}

// Embedder is the embedding collaborator the lifecycle manager needs: it
// names the model (for index metadata comparisons) and can embed chunks
// in bulk during a build.
type Embedder interface {
	embeddings.Generator
	ModelName() string
}

// Manager drives the documentation-repository and index setup sequence
// described for server startup.
type Manager struct {
	cfg      *config.Config
	git      *gitrepo.Manager
	prebuilt *prebuilt.Manager
}

// New builds a Manager from cfg.
func New(cfg *config.Config) *Manager {
	return &Manager{
		cfg:      cfg,
		git:      gitrepo.New(cfg.DocsRepoDir(), cfg.Docs.RepoURL),
		prebuilt: prebuilt.New(cfg),
	}
}

// Git returns the documentation repository manager this Manager builds
// indexes from, so callers can open the same clone for query-time reads
// (e.g. mounting a docsource.GitSource for the tool surface).
func (m *Manager) Git() *gitrepo.Manager { return m.git }

// prebuiltMarker records the (version, lang) of whatever prebuilt archive
// was installed most recently, so a restart can answer "is a prebuilt
// index already installed" before the version is known — mirroring the
// original's single fixed-path installed-metadata file, which is trusted
// whenever present regardless of which URL produced it. This generalizes
// that single-slot check: every index here lives in a version-and-lang-
// isolated directory rather than one global install directory, so the
// marker is what lets presence alone (not a URL match) drive reuse.
type prebuiltMarker struct {
	URL     string `json:"url"`
	Version string `json:"version"`
	Lang    string `json:"lang"`
}

func (m *Manager) markerPath() string {
	return m.cfg.PrebuiltDir() + "/.installed_from_url.json"
}

func (m *Manager) readMarker() (*prebuiltMarker, bool) {
	data, err := os.ReadFile(m.markerPath())
	if err != nil {
		return nil, false
	}
	var marker prebuiltMarker
	if err := json.Unmarshal(data, &marker); err != nil {
		return nil, false
	}
	return &marker, true
}

func (m *Manager) writeMarker(marker prebuiltMarker) {
	data, err := json.MarshalIndent(marker, "", "  ")
	if err != nil {
		return
	}
	if err := os.MkdirAll(m.cfg.PrebuiltDir(), 0o755); err != nil {
		return
	}
	_ = os.WriteFile(m.markerPath(), data, 0o644)
}

// InitializeAndIndex runs the lifecycle decision tree:
//
//  1. If a prebuilt URL is configured, reuse whatever prebuilt index is
//     already installed — regardless of which URL produced it — as long
//     as it still reports as built and version-matched; otherwise
//     download and install the archive the configured URL points at.
//     Any configured docs version/lang/embedding settings are ignored
//     (and warned about) once a prebuilt URL is set, since the archive
//     determines its own.
//  2. Otherwise, open the stores for the configured (version, lang) and
//     reuse them if they already report as built and version-matched —
//     this covers both "built locally before" and "installed from a
//     prebuilt archive before" with the same check, since a finished
//     index looks the same regardless of how it got there.
//  3. Otherwise, build the index from the documentation repository.
func (m *Manager) InitializeAndIndex(ctx context.Context, embedder Embedder) (*Index, error) {
	if m.cfg.Docs.PrebuiltURL != "" {
		return m.initializeFromPrebuilt(ctx, embedder)
	}
	return m.initializeFromVersion(ctx, m.cfg.Docs.Version, m.cfg.Docs.Lang, embedder)
}

func (m *Manager) initializeFromPrebuilt(ctx context.Context, embedder Embedder) (*Index, error) {
	url := m.cfg.Docs.PrebuiltURL
	warnIgnoredSettings(m.cfg)

	if marker, ok := m.readMarker(); ok {
		if idx, err := m.openIfReady(ctx, marker.Version, marker.Lang, embedder); err == nil && idx != nil {
			log.Printf("using prebuilt index (version: %s, lang: %s)", marker.Version, marker.Lang)
			return idx, nil
		}
	}

	archivePath, err := m.prebuilt.Download(ctx, url, "", "")
	if err != nil {
		return nil, err
	}
	metadata, err := m.prebuilt.Install(archivePath)
	if err != nil {
		return nil, err
	}
	m.writeMarker(prebuiltMarker{URL: url, Version: metadata.Version, Lang: metadata.Lang})

	return m.initializeFromVersion(ctx, metadata.Version, metadata.Lang, embedder)
}

// initializeFromVersion opens the (version, lang) index if it already
// exists and matches, building it from the documentation repository
// otherwise.
func (m *Manager) initializeFromVersion(ctx context.Context, version, lang string, embedder Embedder) (*Index, error) {
	if idx, err := m.openIfReady(ctx, version, lang, embedder); err == nil && idx != nil {
		log.Printf("index already exists (version: %s, lang: %s)", version, lang)
		return idx, nil
	}
	return m.buildIndex(ctx, version, lang, embedder)
}

// openIfReady opens the dense and BM25 stores for (version, lang) and
// returns them only if both already report a built, version-matched
// index. It returns (nil, nil) — not an error — when the index isn't
// ready yet, so the caller knows to build it.
func (m *Manager) openIfReady(ctx context.Context, version, lang string, embedder Embedder) (*Index, error) {
	dense, bm25, err := m.openStores(version, lang)
	if err != nil {
		return nil, err
	}

	denseIndexed, err := dense.IsIndexed(ctx)
	if err != nil || !denseIndexed {
		return nil, nil
	}
	matches, err := dense.VersionMatches(version, lang, embedder.ModelName())
	if err != nil || !matches {
		return nil, nil
	}
	if !bm25.IsIndexed() {
		return nil, nil
	}
	if _, err := bm25.Load(); err != nil {
		return nil, nil
	}

	return &Index{Version: version, Lang: lang, Dense: dense, BM25: bm25}, nil
}

func (m *Manager) openStores(version, lang string) (*denseindex.Store, *bm25index.Store, error) {
	denseCfg := m.cfg.DenseStore
	denseCfg.CollectionName = collectionNameFor(denseCfg.CollectionName, version, lang)

	dense, err := denseindex.New(&denseCfg, m.cfg.IndexMetadataPath(version, lang))
	if err != nil {
		return nil, nil, err
	}
	bm25 := bm25index.New(m.cfg.BM25IndexDir(version, lang))
	return dense, bm25, nil
}

// buildIndex clones/opens the documentation repository, reads the
// (version, lang) tree without checking it out, chunks every document,
// embeds and indexes the chunks into both stores, and records index
// metadata.
func (m *Manager) buildIndex(ctx context.Context, version, lang string, embedder Embedder) (*Index, error) {
	log.Printf("ensuring documentation repository...")
	repo, err := m.git.EnsureCloned(ctx)
	if err != nil {
		return nil, err
	}

	log.Printf("loading documents for version %s (%s)...", version, lang)
	source, err := docsource.NewGitSource(repo, m.git, version, lang)
	if err != nil {
		return nil, err
	}
	documents, err := source.LoadAllDocuments()
	if err != nil {
		return nil, err
	}
	if len(documents) == 0 {
		return nil, errs.NewIntegrityError(fmt.Sprintf("no documents found for version %s (%s)", version, lang), nil)
	}
	log.Printf("loaded %d documents", len(documents))

	log.Printf("chunking documents...")
	chunker, err := chunking.New(&m.cfg.Chunking, embedder)
	if err != nil {
		return nil, err
	}
	chunks, err := chunker.ChunkDocuments(documents, true)
	if err != nil {
		return nil, err
	}
	log.Printf("created %d chunks", len(chunks))

	log.Printf("embedding and indexing chunks...")
	batcher := embeddings.NewBatcher(embedder, m.cfg.Embeddings.BatchSize, config.WorkerCount())
	embeddedChunks, err := batcher.ProcessChunks(chunks)
	if err != nil {
		return nil, err
	}

	dense, bm25, err := m.openStores(version, lang)
	if err != nil {
		return nil, err
	}
	if err := dense.IndexChunks(ctx, embeddedChunks); err != nil {
		return nil, err
	}
	if err := dense.SaveMetadata(ctx, version, lang, embedder.ModelName()); err != nil {
		return nil, err
	}
	if err := bm25.Build(chunks); err != nil {
		return nil, err
	}

	log.Printf("index built successfully")
	return &Index{Version: version, Lang: lang, Dense: dense, BM25: bm25}, nil
}

// warnIgnoredSettings logs which configured settings are ignored because a
// prebuilt archive determines its own version, lang, and embedding model.
func warnIgnoredSettings(cfg *config.Config) {
	defaults := config.DefaultConfig()

	var ignored []string
	if cfg.Docs.Version != defaults.Docs.Version {
		ignored = append(ignored, "docs.version")
	}
	if cfg.Docs.Lang != defaults.Docs.Lang {
		ignored = append(ignored, "docs.lang")
	}
	if cfg.Embeddings.Provider != defaults.Embeddings.Provider {
		ignored = append(ignored, "embeddings.provider")
	}
	if cfg.Embeddings.Model != defaults.Embeddings.Model {
		ignored = append(ignored, "embeddings.model")
	}

	if len(ignored) > 0 {
		log.Printf("prebuilt_url is set, %s will be ignored — these values are determined by the prebuilt archive", strings.Join(ignored, ", "))
	}
}

func collectionNameFor(base, version, lang string) string {
	return fmt.Sprintf("%s_%s_%s", base, sanitizeIdentifier(version), sanitizeIdentifier(lang))
}

func sanitizeIdentifier(s string) string {
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}
