package fusion

import (
	"testing"

	"github.com/cangjie-tools/cangjie-mcp/internal/models"
)

func result(path, text string, score float64) models.SearchResult {
	return models.SearchResult{
		Text:     text,
		Score:    score,
		Metadata: models.SearchResultMetadata{FilePath: path},
	}
}

func TestReciprocalRanksAgreementHigher(t *testing.T) {
	dense := []models.SearchResult{
		result("a.md", "alpha content", 0.9),
		result("b.md", "beta content", 0.8),
	}
	bm25 := []models.SearchResult{
		result("a.md", "alpha content", 5.0),
		result("c.md", "gamma content", 4.0),
	}

	fused := Reciprocal([][]models.SearchResult{dense, bm25}, DefaultK, 10)

	if len(fused) != 3 {
		t.Fatalf("expected 3 unique results, got %d", len(fused))
	}
	if fused[0].Metadata.FilePath != "a.md" {
		t.Fatalf("expected a.md (appears in both lists) ranked first, got %s", fused[0].Metadata.FilePath)
	}
}

func TestReciprocalDedupesByPathAndPrefix(t *testing.T) {
	lists := [][]models.SearchResult{
		{result("a.md", "same passage text", 0.5)},
		{result("a.md", "same passage text", 0.9)},
	}
	fused := Reciprocal(lists, DefaultK, 10)
	if len(fused) != 1 {
		t.Fatalf("expected duplicates collapsed into 1 result, got %d", len(fused))
	}
	if fused[0].Score <= 0 {
		t.Fatalf("expected positive fused score, got %v", fused[0].Score)
	}
}

func TestReciprocalTopKTruncates(t *testing.T) {
	lists := [][]models.SearchResult{
		{result("a.md", "a", 1), result("b.md", "b", 1), result("c.md", "c", 1)},
	}
	fused := Reciprocal(lists, DefaultK, 2)
	if len(fused) != 2 {
		t.Fatalf("expected topK=2 truncation, got %d", len(fused))
	}
}

func TestReciprocalDefaultsKWhenNonPositive(t *testing.T) {
	lists := [][]models.SearchResult{{result("a.md", "a", 1)}}
	fused := Reciprocal(lists, 0, 10)
	if len(fused) != 1 {
		t.Fatalf("expected 1 result, got %d", len(fused))
	}
	want := 1.0 / float64(DefaultK+1)
	if fused[0].Score != want {
		t.Fatalf("expected score %v using DefaultK, got %v", want, fused[0].Score)
	}
}

func TestReciprocalEmptyInput(t *testing.T) {
	fused := Reciprocal(nil, DefaultK, 10)
	if len(fused) != 0 {
		t.Fatalf("expected no results for empty input, got %d", len(fused))
	}
}
