package chunking

import (
	"fmt"
	"strings"
	"testing"

	"github.com/cangjie-tools/cangjie-mcp/internal/config"
	"github.com/cangjie-tools/cangjie-mcp/internal/models"
)

// fakeEmbedder maps text containing TOPIC_B to [0,1,0] and any other text to
// [1,0,0], so a switch between topics produces a large cosine distance,
// letting tests exercise the breakpoint logic deterministically.
type fakeEmbedder struct {
	calls int
}

func (f *fakeEmbedder) GenerateEmbedding(text string) ([]float32, error) {
	vecs, err := f.GenerateEmbeddings([]string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (f *fakeEmbedder) GenerateEmbeddings(texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if strings.Contains(t, "TOPIC_B") {
			out[i] = []float32{0, 1, 0}
		} else {
			out[i] = []float32{1, 0, 0}
		}
		f.calls++
	}
	return out, nil
}

func testConfig() *config.ChunkingConfig {
	return &config.ChunkingConfig{
		BufferSize:                0,
		BreakpointPercentile:      50,
		ChunkMaxSizeChars:         4000,
		FallbackChunkSizeChars:    1024,
		FallbackChunkOverlapChars: 20,
		FallbackMaxTokens:         50,
	}
}

func TestChunkDocumentsEmpty(t *testing.T) {
	c, err := New(testConfig(), &fakeEmbedder{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	chunks, err := c.ChunkDocuments(nil, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 0 {
		t.Fatalf("expected no chunks for empty input, got %d", len(chunks))
	}
}

func TestChunkDocumentsSemanticSplitsOnTopicShift(t *testing.T) {
	c, err := New(testConfig(), &fakeEmbedder{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	text := "TOPIC_A sentence one. TOPIC_A sentence two. TOPIC_B sentence three. TOPIC_B sentence four."
	docs := []models.Document{
		{DocID: "d1", Text: text, Metadata: models.DocumentMetadata{FilePath: "a.md"}},
	}

	chunks, err := c.ChunkDocuments(docs, true)
	if err != nil {
		t.Fatalf("ChunkDocuments failed: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected the topic shift to produce at least 2 chunks, got %d: %+v", len(chunks), chunks)
	}
	for _, ch := range chunks {
		if ch.ID == "" {
			t.Error("expected a non-empty chunk ID")
		}
		if ch.Metadata.FilePath != "a.md" {
			t.Errorf("expected metadata carried over, got %+v", ch.Metadata)
		}
	}
}

func TestChunkDocumentsFallbackWhenSemanticDisabled(t *testing.T) {
	c, err := New(testConfig(), &fakeEmbedder{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	docs := []models.Document{
		{DocID: "d1", Text: "One. Two. Three.", Metadata: models.DocumentMetadata{FilePath: "b.md"}},
	}

	chunks, err := c.ChunkDocuments(docs, false)
	if err != nil {
		t.Fatalf("ChunkDocuments failed: %v", err)
	}
	if len(chunks) == 0 {
		t.Fatal("expected at least one chunk")
	}
}

func TestChunkDocumentsEnforcesMaxSizeChars(t *testing.T) {
	cfg := testConfig()
	cfg.ChunkMaxSizeChars = 40

	c, err := New(cfg, &fakeEmbedder{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	var sb strings.Builder
	for i := 0; i < 50; i++ {
		fmt.Fprintf(&sb, "This is sentence number %d in a long document. ", i)
	}

	docs := []models.Document{{DocID: "d1", Text: sb.String(), Metadata: models.DocumentMetadata{FilePath: "c.md"}}}

	chunks, err := c.ChunkDocuments(docs, false)
	if err != nil {
		t.Fatalf("ChunkDocuments failed: %v", err)
	}
	for _, ch := range chunks {
		if len(ch.Text) > cfg.ChunkMaxSizeChars {
			t.Errorf("chunk exceeds max size: %d > %d", len(ch.Text), cfg.ChunkMaxSizeChars)
		}
	}
}

func TestSplitSentencesHandlesParagraphsAndCJK(t *testing.T) {
	text := "First sentence. Second sentence.\n\n中文句子一。中文句子二。"
	sentences := splitSentences(text)
	if len(sentences) != 4 {
		t.Fatalf("expected 4 sentences, got %d: %v", len(sentences), sentences)
	}
}

func TestCosineDistanceIdenticalVectorsIsZero(t *testing.T) {
	a := []float32{1, 2, 3}
	d := cosineDistance(a, a)
	if d > 1e-9 || d < -1e-9 {
		t.Fatalf("expected ~0 distance for identical vectors, got %v", d)
	}
}

func TestCosineDistanceOrthogonalVectorsIsOne(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{0, 1}
	d := cosineDistance(a, b)
	if d < 0.999 || d > 1.001 {
		t.Fatalf("expected ~1 distance for orthogonal vectors, got %v", d)
	}
}

func TestPercentileLinearInterpolation(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}
	if p := percentile(values, 50); p != 3 {
		t.Fatalf("expected median 3, got %v", p)
	}
	if p := percentile(values, 0); p != 1 {
		t.Fatalf("expected min 1, got %v", p)
	}
	if p := percentile(values, 100); p != 5 {
		t.Fatalf("expected max 5, got %v", p)
	}
}

func TestPercentileEmpty(t *testing.T) {
	if p := percentile(nil, 50); p != 0 {
		t.Fatalf("expected 0 for empty input, got %v", p)
	}
}
