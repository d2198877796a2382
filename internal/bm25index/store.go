// Package bm25index implements the lexical half of the hybrid retrieval
// engine: a BM25 full-text index over chunk text, backed by bleve and
// analyzed with the same CJK/Latin-aware tokenizer used for queries.
package bm25index

import (
	"fmt"
	"os"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/cangjie-tools/cangjie-mcp/internal/errs"
	"github.com/cangjie-tools/cangjie-mcp/internal/models"
)

// Store is a bleve-backed BM25 index for one (version, lang) pair.
type Store struct {
	indexDir string
	index    bleve.Index
}

// New constructs a Store bound to indexDir. It does not open or create the
// underlying bleve index; call Build or Load first.
func New(indexDir string) *Store {
	return &Store{indexDir: indexDir}
}

// IsIndexed reports whether a bleve index already exists on disk at
// indexDir.
func (s *Store) IsIndexed() bool {
	_, err := os.Stat(s.indexDir)
	return err == nil
}

// Build tokenizes and indexes every chunk, replacing any existing index at
// indexDir.
func (s *Store) Build(chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return errs.NewIntegrityError("no chunks provided for BM25 indexing", nil)
	}

	if err := s.closeAndRemove(); err != nil {
		return err
	}

	idx, err := bleve.New(s.indexDir, buildIndexMapping())
	if err != nil {
		return errs.NewBackendError("creating BM25 index", err)
	}
	s.index = idx

	batch := idx.NewBatch()
	for _, chunk := range chunks {
		if err := batch.Index(chunk.ID, bm25Doc(chunk)); err != nil {
			return errs.NewBackendError("indexing chunk into BM25 batch", err)
		}
	}
	if err := idx.Batch(batch); err != nil {
		return errs.NewBackendError("committing BM25 batch", err)
	}

	return nil
}

// Load opens a previously built index at indexDir. It returns (false, nil)
// if no index exists there yet.
func (s *Store) Load() (bool, error) {
	if !s.IsIndexed() {
		return false, nil
	}

	idx, err := bleve.Open(s.indexDir)
	if err != nil {
		return false, errs.NewIntegrityError("opening BM25 index", err)
	}
	s.index = idx
	return true, nil
}

// Search runs a BM25 query against the text field, optionally restricted to
// an exact category match.
func (s *Store) Search(q string, topK int, category string) ([]models.SearchResult, error) {
	if s.index == nil {
		return nil, errs.NewIntegrityError("BM25 index not loaded", nil)
	}
	if topK <= 0 {
		return []models.SearchResult{}, nil
	}

	matchQuery := bleve.NewMatchQuery(q)
	matchQuery.SetField("text")

	var searchQuery query.Query = matchQuery
	if category != "" {
		categoryQuery := bleve.NewTermQuery(category)
		categoryQuery.SetField("category")
		searchQuery = bleve.NewConjunctionQuery(matchQuery, categoryQuery)
	}

	req := bleve.NewSearchRequestOptions(searchQuery, topK, 0, false)
	req.Fields = []string{"text", "file_path", "category", "topic", "title", "has_code"}

	result, err := s.index.Search(req)
	if err != nil {
		return nil, errs.NewBackendError("searching BM25 index", err)
	}

	results := make([]models.SearchResult, len(result.Hits))
	for i, hit := range result.Hits {
		results[i] = models.SearchResult{
			Text:  fieldString(hit.Fields, "text"),
			Score: hit.Score,
			Metadata: models.SearchResultMetadata{
				FilePath: fieldString(hit.Fields, "file_path"),
				Category: fieldString(hit.Fields, "category"),
				Topic:    fieldString(hit.Fields, "topic"),
				Title:    fieldString(hit.Fields, "title"),
				HasCode:  fieldBool(hit.Fields, "has_code"),
			},
		}
	}
	return results, nil
}

// Clear removes the index from disk entirely.
func (s *Store) Clear() error {
	return s.closeAndRemove()
}

func (s *Store) closeAndRemove() error {
	if s.index != nil {
		if err := s.index.Close(); err != nil {
			return errs.NewBackendError("closing BM25 index", err)
		}
		s.index = nil
	}
	if err := os.RemoveAll(s.indexDir); err != nil {
		return errs.NewIntegrityError("removing BM25 index directory", err)
	}
	return nil
}

func bm25Doc(chunk models.Chunk) map[string]interface{} {
	return map[string]interface{}{
		"text":      chunk.Text,
		"file_path": chunk.Metadata.FilePath,
		"category":  chunk.Metadata.Category,
		"topic":     chunk.Metadata.Topic,
		"title":     chunk.Metadata.Title,
		"has_code":  chunk.Metadata.CodeBlockCount > 0,
	}
}

func fieldString(fields map[string]interface{}, key string) string {
	v, ok := fields[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return fmt.Sprintf("%v", v)
	}
	return s
}

func fieldBool(fields map[string]interface{}, key string) bool {
	v, ok := fields[key]
	if !ok {
		return false
	}
	b, ok := v.(bool)
	if ok {
		return b
	}
	return fmt.Sprintf("%v", v) == "true"
}
