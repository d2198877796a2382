// Package models defines the data types shared across the documentation
// query server: documents, chunks, search results, and index metadata.
package models

import "time"

// DocumentMetadata carries the attributes a Document Source derives from a
// document's location in the corpus tree.
type DocumentMetadata struct {
	FilePath       string `json:"file_path"`
	Category       string `json:"category"`
	Topic          string `json:"topic"`
	Title          string `json:"title"`
	CodeBlockCount int    `json:"code_block_count"`
	Source         string `json:"source"`
}

// Document is one documentation page, identified by its repo-relative path.
// Immutable once constructed by a Document Source.
type Document struct {
	DocID    string
	Text     string
	Metadata DocumentMetadata
}

// Chunk is a passage of text produced by the Chunker from a Document; it
// inherits the source document's metadata unmodified.
type Chunk struct {
	ID       string
	Text     string
	Metadata DocumentMetadata
}

// EmbeddedChunk is a Chunk plus the fixed-dimension vector produced by the
// embedding collaborator, ready for the Dense Store.
type EmbeddedChunk struct {
	Chunk
	Vector []float32
}

// SearchResultMetadata is the metadata surfaced on a SearchResult; it adds
// a derived HasCode flag to DocumentMetadata's CodeBlockCount.
type SearchResultMetadata struct {
	FilePath string `json:"file_path"`
	Category string `json:"category"`
	Topic    string `json:"topic"`
	Title    string `json:"title"`
	HasCode  bool   `json:"has_code"`
}

// SearchResult is one ranked hit returned by a retrieval source, by Fusion,
// or by the Reranker.
type SearchResult struct {
	Text     string               `json:"text"`
	Score    float64              `json:"score"`
	Metadata SearchResultMetadata `json:"metadata"`
}

// IndexMetadata is the sidecar persisted alongside an Index, recording the
// (version, lang, embedding_model) triple an index was built with.
type IndexMetadata struct {
	Version        string `json:"version"`
	Lang           string `json:"lang"`
	EmbeddingModel string `json:"embedding_model"`
	DocumentCount  int    `json:"document_count"`
}

// Matches reports whether this metadata satisfies a requested
// (version, lang, embeddingModel) triple.
func (m IndexMetadata) Matches(version, lang, embeddingModel string) bool {
	return m.Version == version && m.Lang == lang && m.EmbeddingModel == embeddingModel
}

// PrebuiltMetadata is embedded inside a Prebuilt Archive.
type PrebuiltMetadata struct {
	Version        string `json:"version"`
	Lang           string `json:"lang"`
	EmbeddingModel string `json:"embedding_model"`
	FormatVersion  string `json:"format_version"`
}

// InstalledMetadata is written into an installed prebuilt index's directory
// after a successful install, so the lifecycle manager can recognize it on
// a later run without re-reading the archive.
type InstalledMetadata struct {
	Version        string    `json:"version"`
	Lang           string    `json:"lang"`
	EmbeddingModel string    `json:"embedding_model"`
	InstalledAt    time.Time `json:"installed_at"`
}

// Topic is a lightweight (name, title) pair used when listing the contents
// of a category.
type Topic struct {
	Name  string `json:"name"`
	Title string `json:"title"`
}
