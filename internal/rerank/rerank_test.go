package rerank

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cangjie-tools/cangjie-mcp/internal/config"
	"github.com/cangjie-tools/cangjie-mcp/internal/models"
)

func result(text string, score float64) models.SearchResult {
	return models.SearchResult{Text: text, Score: score}
}

func TestNewNoOpForEmptyOrNoneType(t *testing.T) {
	for _, typ := range []string{"", "none"} {
		p, err := New(&config.RerankConfig{Type: typ})
		if err != nil {
			t.Fatalf("unexpected error for type %q: %v", typ, err)
		}
		if p.ModelName() != "none" {
			t.Errorf("expected none model for type %q, got %s", typ, p.ModelName())
		}
	}
}

func TestNewAPIRequiresKey(t *testing.T) {
	_, err := New(&config.RerankConfig{Type: "api"})
	if err == nil {
		t.Fatal("expected error when api type has no key")
	}
}

func TestNewUnknownTypeErrors(t *testing.T) {
	_, err := New(&config.RerankConfig{Type: "bogus"})
	if err == nil {
		t.Fatal("expected error for unknown rerank type")
	}
}

func TestNoOpRerankTruncatesToTopK(t *testing.T) {
	var n NoOp
	results := []models.SearchResult{result("a", 1), result("b", 2), result("c", 3)}
	out, err := n.Rerank("q", results, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 results, got %d", len(out))
	}
}

func TestHTTPRerankerReordersByRelevance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rerankRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode failed: %v", err)
		}
		resp := rerankResponse{}
		resp.Results = []struct {
			Index          int     `json:"index"`
			RelevanceScore float64 `json:"relevance_score"`
		}{
			{Index: 1, RelevanceScore: 0.9},
			{Index: 0, RelevanceScore: 0.3},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	r := &httpReranker{httpClient: srv.Client(), baseURL: srv.URL, model: "test-model", kind: "api"}

	results := []models.SearchResult{result("first", 0.5), result("second", 0.4)}
	out, err := r.Rerank("query", results, 2)
	if err != nil {
		t.Fatalf("Rerank failed: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 results, got %d", len(out))
	}
	if out[0].Text != "second" || out[0].Score != 0.9 {
		t.Errorf("expected second ranked first with score 0.9, got %+v", out[0])
	}
}

func TestHTTPRerankerEmptyResultsShortCircuits(t *testing.T) {
	r := &httpReranker{}
	out, err := r.Rerank("q", nil, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != nil {
		t.Fatalf("expected nil results, got %v", out)
	}
}
