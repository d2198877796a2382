// Package docsource provides a unified interface for reading the Cangjie
// documentation corpus, whether from a local git clone at a pinned
// version or by browsing a remote cangjie-mcp server's HTTP endpoints.
package docsource

import "github.com/cangjie-tools/cangjie-mcp/internal/models"

// Source abstracts over where documentation pages come from, so the tool
// surface and the index builder can share one set of query operations.
type Source interface {
	// IsAvailable reports whether the source is ready to read documents.
	IsAvailable() bool

	// Categories lists the top-level category directories.
	Categories() ([]string, error)

	// TopicsInCategory lists topic names (file stems) within category.
	TopicsInCategory(category string) ([]string, error)

	// DocumentByTopic returns the document named topic, optionally
	// narrowed to one category. It returns (nil, nil) if not found.
	DocumentByTopic(topic, category string) (*models.Document, error)

	// LoadAllDocuments loads every document in the corpus. Remote sources
	// do not support this operation.
	LoadAllDocuments() ([]models.Document, error)
}
