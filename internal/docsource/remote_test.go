package docsource

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/topics", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(topicsResponse{
			Categories: map[string][]topicEntry{
				"syntax": {{Name: "functions"}, {Name: "pattern"}},
				"types":  {{Name: "inference"}},
			},
		})
	})
	mux.HandleFunc("/topics/syntax/functions", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(topicDocResponse{
			Content:  "# Functions\nbody",
			FilePath: "syntax/functions.md",
			Category: "syntax",
			Topic:    "functions",
			Title:    "Functions",
		})
	})
	mux.HandleFunc("/topics/syntax/missing", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	return httptest.NewServer(mux)
}

func TestRemoteSourceIsAvailable(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()
	s := NewRemoteSource(srv.URL)
	if !s.IsAvailable() {
		t.Fatal("expected remote source to be available")
	}
}

func TestRemoteSourceCategoriesAndTopics(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()
	s := NewRemoteSource(srv.URL)

	categories, err := s.Categories()
	if err != nil {
		t.Fatalf("Categories failed: %v", err)
	}
	if len(categories) != 2 {
		t.Fatalf("expected 2 categories, got %v", categories)
	}

	topics, err := s.TopicsInCategory("syntax")
	if err != nil {
		t.Fatalf("TopicsInCategory failed: %v", err)
	}
	if len(topics) != 2 {
		t.Fatalf("expected 2 topics, got %v", topics)
	}
}

func TestRemoteSourceDocumentByTopicResolvesCategory(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()
	s := NewRemoteSource(srv.URL)

	doc, err := s.DocumentByTopic("functions", "")
	if err != nil {
		t.Fatalf("DocumentByTopic failed: %v", err)
	}
	if doc == nil {
		t.Fatal("expected a document")
	}
	if doc.Metadata.Category != "syntax" {
		t.Errorf("expected category syntax, got %s", doc.Metadata.Category)
	}
}

func TestRemoteSourceDocumentByTopicNotFound(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()
	s := NewRemoteSource(srv.URL)

	doc, err := s.DocumentByTopic("missing", "syntax")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc != nil {
		t.Fatalf("expected nil document, got %+v", doc)
	}
}

func TestRemoteSourceLoadAllDocumentsUnsupported(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()
	s := NewRemoteSource(srv.URL)

	if _, err := s.LoadAllDocuments(); err == nil {
		t.Fatal("expected error for unsupported LoadAllDocuments")
	}
}
