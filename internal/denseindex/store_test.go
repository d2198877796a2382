package denseindex

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/qdrant/go-client/qdrant"

	"github.com/cangjie-tools/cangjie-mcp/internal/models"
)

func TestQdrantDistanceMapping(t *testing.T) {
	tests := []struct {
		metric string
		want   qdrant.Distance
	}{
		{"cosine", qdrant.Distance_Cosine},
		{"dot", qdrant.Distance_Dot},
		{"euclidean", qdrant.Distance_Euclid},
		{"unknown", qdrant.Distance_Cosine},
		{"", qdrant.Distance_Cosine},
	}

	for _, tt := range tests {
		s := &Store{distanceMetric: tt.metric}
		if got := s.qdrantDistance(); got != tt.want {
			t.Errorf("metric %q: got %v, want %v", tt.metric, got, tt.want)
		}
	}
}

func TestChunkPayloadCarriesMetadata(t *testing.T) {
	chunk := models.EmbeddedChunk{
		Chunk: models.Chunk{
			Text: "hello",
			Metadata: models.DocumentMetadata{
				FilePath:       "a.md",
				Category:       "syntax",
				Topic:          "functions",
				Title:          "Functions",
				CodeBlockCount: 2,
			},
		},
		Vector: []float32{0.1, 0.2},
	}

	payload := chunkPayload(chunk)
	if payload["text"].GetStringValue() != "hello" {
		t.Errorf("expected text payload, got %v", payload["text"])
	}
	if payload["category"].GetStringValue() != "syntax" {
		t.Errorf("expected category payload, got %v", payload["category"])
	}
	if !payload["has_code"].GetBoolValue() {
		t.Error("expected has_code true when CodeBlockCount > 0")
	}
}

func TestChunkPayloadHasCodeFalseWhenNoCodeBlocks(t *testing.T) {
	chunk := models.EmbeddedChunk{Chunk: models.Chunk{Metadata: models.DocumentMetadata{CodeBlockCount: 0}}}
	payload := chunkPayload(chunk)
	if payload["has_code"].GetBoolValue() {
		t.Error("expected has_code false when CodeBlockCount == 0")
	}
}

func TestMetadataRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index_metadata.json")

	meta := models.IndexMetadata{Version: "v1", Lang: "zh", EmbeddingModel: "nomic-embed-text", DocumentCount: 42}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	s := &Store{metadataPath: path}
	got, err := s.GetMetadata()
	if err != nil {
		t.Fatalf("GetMetadata failed: %v", err)
	}
	if got == nil || !got.Matches("v1", "zh", "nomic-embed-text") {
		t.Fatalf("expected matching metadata, got %+v", got)
	}
}

func TestGetMetadataMissingFileReturnsNil(t *testing.T) {
	s := &Store{metadataPath: filepath.Join(t.TempDir(), "missing.json")}
	meta, err := s.GetMetadata()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if meta != nil {
		t.Fatalf("expected nil metadata, got %+v", meta)
	}
}

func TestSearchWithZeroTopKReturnsEmptyWithoutQuerying(t *testing.T) {
	s := &Store{}
	results, err := s.Search(context.Background(), []float32{0.1}, 0, "")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected top_k=0 to return no results, got %d", len(results))
	}
}

func TestParentDir(t *testing.T) {
	if got := parentDir("/a/b/c.json"); got != "/a/b" {
		t.Errorf("expected /a/b, got %s", got)
	}
	if got := parentDir("c.json"); got != "." {
		t.Errorf("expected ., got %s", got)
	}
}
