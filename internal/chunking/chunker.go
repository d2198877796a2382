// Package chunking splits documents into retrieval-sized text chunks,
// preferring an embedding-driven semantic splitter and falling back to a
// token-budgeted sentence splitter when semantic splitting is unavailable,
// disabled, or fails.
package chunking

import (
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/pkoukk/tiktoken-go"

	"github.com/cangjie-tools/cangjie-mcp/internal/config"
	"github.com/cangjie-tools/cangjie-mcp/internal/embeddings"
	"github.com/cangjie-tools/cangjie-mcp/internal/models"
)

// Chunker turns Documents into Chunks.
type Chunker struct {
	embedder embeddings.Generator
	tokenizer *tiktoken.Tiktoken

	bufferSize                int
	breakpointPercentile      float64
	chunkMaxSizeChars         int
	fallbackChunkOverlapChars int
	fallbackMaxTokens         int
}

// New constructs a Chunker. embedder is used only when semantic splitting is
// requested; it may be nil if callers always pass useSemantic=false.
func New(cfg *config.ChunkingConfig, embedder embeddings.Generator) (*Chunker, error) {
	tokenizer, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("failed to load tokenizer: %w", err)
	}

	return &Chunker{
		embedder:                  embedder,
		tokenizer:                 tokenizer,
		bufferSize:                cfg.BufferSize,
		breakpointPercentile:      cfg.BreakpointPercentile,
		chunkMaxSizeChars:         cfg.ChunkMaxSizeChars,
		fallbackChunkOverlapChars: cfg.FallbackChunkOverlapChars,
		fallbackMaxTokens:         cfg.FallbackMaxTokens,
	}, nil
}

// ChunkDocuments splits every document into Chunks, attaching a fresh ID and
// the source document's metadata to each one.
func (c *Chunker) ChunkDocuments(documents []models.Document, useSemantic bool) ([]models.Chunk, error) {
	if len(documents) == 0 {
		return nil, nil
	}

	var chunks []models.Chunk
	for _, doc := range documents {
		texts, err := c.chunkText(doc.Text, useSemantic)
		if err != nil {
			return nil, fmt.Errorf("chunking document %q: %w", doc.Metadata.FilePath, err)
		}
		for _, text := range texts {
			chunks = append(chunks, models.Chunk{
				ID:       uuid.New().String(),
				Text:     text,
				Metadata: doc.Metadata,
			})
		}
	}

	return chunks, nil
}

// chunkText splits a single document's text, enforcing chunkMaxSizeChars on
// every resulting piece regardless of which splitter produced it.
func (c *Chunker) chunkText(text string, useSemantic bool) ([]string, error) {
	var pieces []string

	if useSemantic {
		semantic, err := c.semanticSplit(text)
		if err != nil {
			log.Printf("semantic splitting failed, falling back to sentence splitting: %v", err)
			pieces = c.fallbackSplit(text)
		} else {
			pieces = semantic
		}
	} else {
		pieces = c.fallbackSplit(text)
	}

	var out []string
	for _, p := range pieces {
		out = append(out, splitOversizedByChars(p, c.chunkMaxSizeChars)...)
	}
	return out, nil
}

func (c *Chunker) countTokens(text string) int {
	return len(c.tokenizer.Encode(text, nil, nil))
}
