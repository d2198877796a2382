package mcpserver

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/cangjie-tools/cangjie-mcp/internal/config"
	"github.com/cangjie-tools/cangjie-mcp/internal/models"
	"github.com/cangjie-tools/cangjie-mcp/internal/rerank"
	"github.com/cangjie-tools/cangjie-mcp/internal/retriever"
	"github.com/mark3labs/mcp-go/mcp"
)

type fakeDocs struct {
	categories map[string][]string
	docs       map[string]*models.Document
}

func (f *fakeDocs) IsAvailable() bool { return true }

func (f *fakeDocs) Categories() ([]string, error) {
	out := make([]string, 0, len(f.categories))
	for cat := range f.categories {
		out = append(out, cat)
	}
	return out, nil
}

func (f *fakeDocs) TopicsInCategory(category string) ([]string, error) {
	return f.categories[category], nil
}

func (f *fakeDocs) DocumentByTopic(topic, category string) (*models.Document, error) {
	key := category + "/" + topic
	if category == "" {
		for k, doc := range f.docs {
			if strings.HasSuffix(k, "/"+topic) {
				return doc, nil
			}
		}
		return nil, nil
	}
	return f.docs[key], nil
}

func (f *fakeDocs) LoadAllDocuments() ([]models.Document, error) { return nil, nil }

type fakeDense struct{}

func (fakeDense) Search(_ context.Context, _ []float32, topK int, _ string) ([]models.SearchResult, error) {
	return []models.SearchResult{{Text: "dense result", Score: 0.9}}, nil
}

type fakeLexical struct{}

func (fakeLexical) Search(_ string, topK int, _ string) ([]models.SearchResult, error) {
	return []models.SearchResult{{Text: "bm25 result", Score: 0.8}}, nil
}

type fakeEmbedder struct{}

func (fakeEmbedder) GenerateEmbedding(string) ([]float32, error) { return []float32{0.1}, nil }

func newTestPeer() *Peer {
	docs := &fakeDocs{
		categories: map[string][]string{
			"guide": {"installation", "getting-started"},
		},
		docs: map[string]*models.Document{
			"guide/installation": {
				DocID: "guide/installation",
				Text:  "install steps",
				Metadata: models.DocumentMetadata{
					FilePath: "guide/installation.md",
					Category: "guide",
					Topic:    "installation",
					Title:    "Installation",
				},
			},
		},
	}
	r := retriever.New(fakeDense{}, fakeLexical{}, fakeEmbedder{}, rerank.NoOp{}, &config.SearchConfig{DefaultTopK: 5, InitialKMult: 4, RRFK: 60})
	return &Peer{Version: "1.0", Lang: "en", docs: docs, retriever: r}
}

func TestHandleSearchDocsReturnsFusedResults(t *testing.T) {
	p := newTestPeer()
	result, err := p.handleSearchDocs(context.Background(), map[string]interface{}{"query": "install"})
	if err != nil {
		t.Fatalf("handleSearchDocs failed: %v", err)
	}
	if result.IsError {
		t.Fatalf("expected success, got error result: %+v", result.Content)
	}
}

func TestHandleSearchDocsRequiresQuery(t *testing.T) {
	p := newTestPeer()
	result, err := p.handleSearchDocs(context.Background(), map[string]interface{}{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result for missing query")
	}
}

func TestHandleSearchDocsWithZeroTopKReturnsEmpty(t *testing.T) {
	p := newTestPeer()
	result, err := p.handleSearchDocs(context.Background(), map[string]interface{}{"query": "install", "top_k": 0})
	if err != nil {
		t.Fatalf("handleSearchDocs failed: %v", err)
	}
	if result.IsError {
		t.Fatalf("expected success, got error result: %+v", result.Content)
	}
	text := contentText(t, result)
	var body map[string]interface{}
	if err := json.Unmarshal([]byte(text), &body); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if body["total"].(float64) != 0 {
		t.Fatalf("expected top_k=0 to return no results, got %+v", body)
	}
}

func TestHandleGetTopicFindsDocument(t *testing.T) {
	p := newTestPeer()
	result, err := p.handleGetTopic(map[string]interface{}{"topic": "installation", "category": "guide"})
	if err != nil {
		t.Fatalf("handleGetTopic failed: %v", err)
	}
	text := contentText(t, result)
	var doc models.Document
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if doc.Metadata.Title != "Installation" {
		t.Fatalf("unexpected document: %+v", doc)
	}
}

func TestHandleGetTopicSuggestsOnMiss(t *testing.T) {
	p := newTestPeer()
	result, err := p.handleGetTopic(map[string]interface{}{"topic": "instalation", "category": "guide"})
	if err != nil {
		t.Fatalf("handleGetTopic failed: %v", err)
	}
	text := contentText(t, result)
	var body map[string]interface{}
	if err := json.Unmarshal([]byte(text), &body); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	suggestions, ok := body["suggestions"].([]interface{})
	if !ok || len(suggestions) == 0 {
		t.Fatalf("expected suggestions, got %+v", body)
	}
}

func TestHandleListTopicsAllCategories(t *testing.T) {
	p := newTestPeer()
	result, err := p.handleListTopics(map[string]interface{}{})
	if err != nil {
		t.Fatalf("handleListTopics failed: %v", err)
	}
	text := contentText(t, result)
	var body map[string][]string
	if err := json.Unmarshal([]byte(text), &body); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if len(body["guide"]) != 2 {
		t.Fatalf("expected 2 topics in guide, got %+v", body)
	}
}

func TestHandleLSPPositionErrorsWithoutLanguageServer(t *testing.T) {
	p := newTestPeer()
	result, err := p.handleLSPPosition(context.Background(), map[string]interface{}{"path": "a.cj", "line": 1.0, "character": 2.0}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result when no language server is configured")
	}
}

func TestIntArgFallsBackToDefault(t *testing.T) {
	if n := intArg(map[string]interface{}{}, "top_k", 5); n != 5 {
		t.Fatalf("expected default 5, got %d", n)
	}
	if n := intArg(map[string]interface{}{"top_k": float64(7)}, "top_k", 5); n != 7 {
		t.Fatalf("expected 7, got %d", n)
	}
}

func TestExtractCodeBlocksFindsFences(t *testing.T) {
	text := "intro\n```cj\nfunc main() {}\n```\nmore text"
	blocks := extractCodeBlocks(text)
	if len(blocks) != 1 {
		t.Fatalf("expected 1 code block, got %d", len(blocks))
	}
}

func contentText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("expected result content")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return text.Text
}
