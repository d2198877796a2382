package embeddings

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/cangjie-tools/cangjie-mcp/internal/models"
)

// Generator is the embed(texts) -> vectors collaborator contract.
type Generator interface {
	GenerateEmbedding(text string) ([]float32, error)
	GenerateEmbeddings(texts []string) ([][]float32, error)
}

// Batcher embeds chunks in parallel batches, bounded by a worker count.
type Batcher struct {
	client    Generator
	batchSize int
	workers   int
}

// NewBatcher constructs a Batcher over the given generator.
func NewBatcher(client Generator, batchSize, workers int) *Batcher {
	if workers <= 0 {
		workers = 1
	}
	if batchSize <= 0 {
		batchSize = 1
	}
	return &Batcher{client: client, batchSize: batchSize, workers: workers}
}

// ProcessChunks embeds every chunk's text, returning EmbeddedChunks in the
// same order as the input. Any batch failure aborts the whole call — the
// caller (the Dense Store's index operation) must not partially apply the
// results of a failed embedding pass.
func (b *Batcher) ProcessChunks(chunks []models.Chunk) ([]models.EmbeddedChunk, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	log.Printf("generating embeddings for %d chunks using %d workers", len(chunks), b.workers)
	start := time.Now()

	batches := b.createBatches(chunks)

	results := make([][]models.EmbeddedChunk, len(batches))
	errs := make([]error, len(batches))

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, b.workers)

	for i, batch := range batches {
		wg.Add(1)
		go func(idx int, batch []models.Chunk) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			processed, err := b.processBatch(batch, idx)
			results[idx] = processed
			errs[idx] = err
		}(i, batch)
	}

	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("batch %d failed: %w", i, err)
		}
	}

	var embedded []models.EmbeddedChunk
	for _, batch := range results {
		embedded = append(embedded, batch...)
	}

	duration := time.Since(start)
	log.Printf("embedded %d chunks in %v", len(chunks), duration)

	return embedded, nil
}

func (b *Batcher) processBatch(chunks []models.Chunk, batchIdx int) ([]models.EmbeddedChunk, error) {
	texts := make([]string, len(chunks))
	for i := range chunks {
		texts[i] = chunks[i].Text
	}

	vectors, err := b.client.GenerateEmbeddings(texts)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embeddings for batch %d: %w", batchIdx, err)
	}

	out := make([]models.EmbeddedChunk, len(chunks))
	for i := range chunks {
		out[i] = models.EmbeddedChunk{Chunk: chunks[i], Vector: vectors[i]}
	}
	return out, nil
}

func (b *Batcher) createBatches(chunks []models.Chunk) [][]models.Chunk {
	var batches [][]models.Chunk
	for i := 0; i < len(chunks); i += b.batchSize {
		end := i + b.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batches = append(batches, chunks[i:end])
	}
	return batches
}
