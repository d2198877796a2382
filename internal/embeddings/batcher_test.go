package embeddings

import (
	"fmt"
	"testing"

	"github.com/cangjie-tools/cangjie-mcp/internal/models"
)

type mockGenerator struct {
	callCount int
	failOn    string
}

func (m *mockGenerator) GenerateEmbedding(text string) ([]float32, error) {
	m.callCount++
	if text == m.failOn {
		return nil, fmt.Errorf("mock failure for %q", text)
	}
	return []float32{float32(len(text)), 0.5, 0.3}, nil
}

func (m *mockGenerator) GenerateEmbeddings(texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := m.GenerateEmbedding(text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func chunksOf(texts ...string) []models.Chunk {
	chunks := make([]models.Chunk, len(texts))
	for i, t := range texts {
		chunks[i] = models.Chunk{ID: fmt.Sprintf("c%d", i), Text: t}
	}
	return chunks
}

func TestCreateBatches(t *testing.T) {
	tests := []struct {
		name          string
		chunks        []models.Chunk
		batchSize     int
		expectedBatch int
	}{
		{"exact batch size", chunksOf("a", "b", "c", "d"), 2, 2},
		{"partial last batch", chunksOf("a", "b", "c"), 2, 2},
		{"single chunk", chunksOf("a"), 10, 1},
		{"empty chunks", nil, 10, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBatcher(&mockGenerator{}, tt.batchSize, 2)
			batches := b.createBatches(tt.chunks)

			if len(batches) != tt.expectedBatch {
				t.Fatalf("expected %d batches, got %d", tt.expectedBatch, len(batches))
			}

			total := 0
			for _, batch := range batches {
				total += len(batch)
				if len(batch) > tt.batchSize {
					t.Errorf("batch size %d exceeds max %d", len(batch), tt.batchSize)
				}
			}
			if total != len(tt.chunks) {
				t.Errorf("expected %d total chunks, got %d", len(tt.chunks), total)
			}
		})
	}
}

func TestProcessChunksPreservesOrderAndText(t *testing.T) {
	gen := &mockGenerator{}
	batcher := NewBatcher(gen, 2, 2)

	chunks := chunksOf("test1", "test2", "test3")

	result, err := batcher.ProcessChunks(chunks)
	if err != nil {
		t.Fatalf("ProcessChunks failed: %v", err)
	}

	if len(result) != len(chunks) {
		t.Fatalf("expected %d results, got %d", len(chunks), len(result))
	}

	for i, ec := range result {
		if len(ec.Vector) == 0 {
			t.Errorf("chunk %d missing vector", i)
		}
		if ec.Chunk.ID != chunks[i].ID {
			t.Errorf("chunk ID mismatch: expected %s, got %s", chunks[i].ID, ec.Chunk.ID)
		}
		if ec.Chunk.Text != chunks[i].Text {
			t.Errorf("chunk text mismatch: expected %s, got %s", chunks[i].Text, ec.Chunk.Text)
		}
	}
}

func TestProcessChunksEmpty(t *testing.T) {
	batcher := NewBatcher(&mockGenerator{}, 10, 2)
	result, err := batcher.ProcessChunks(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result) != 0 {
		t.Fatalf("expected no results, got %d", len(result))
	}
}

func TestProcessChunksAbortsOnBatchFailure(t *testing.T) {
	gen := &mockGenerator{failOn: "bad"}
	batcher := NewBatcher(gen, 1, 2)

	_, err := batcher.ProcessChunks(chunksOf("good", "bad", "also-good"))
	if err == nil {
		t.Fatal("expected error when one batch fails")
	}
}

func TestNewBatcherClampsInvalidSizes(t *testing.T) {
	b := NewBatcher(&mockGenerator{}, 0, 0)
	if b.workers != 1 {
		t.Errorf("expected workers clamped to 1, got %d", b.workers)
	}
	if b.batchSize != 1 {
		t.Errorf("expected batchSize clamped to 1, got %d", b.batchSize)
	}
}

func TestNewBatcherWorkerCounts(t *testing.T) {
	tests := []struct {
		name    string
		workers int
		want    int
	}{
		{"default workers", 4, 4},
		{"single worker", 1, 1},
		{"many workers", 16, 16},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBatcher(&mockGenerator{}, 10, tt.workers)
			if b.workers != tt.want {
				t.Errorf("expected %d workers, got %d", tt.want, b.workers)
			}
		})
	}
}
