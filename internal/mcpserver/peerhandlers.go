package mcpserver

import (
	"encoding/json"
	"net/http"
)

func peerHealth(_ *Peer, w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func peerInfo(p *Peer, w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"version": p.Version,
		"lang":    p.Lang,
	})
}

type searchRequest struct {
	Query    string `json:"query"`
	TopK     *int   `json:"top_k"`
	Category string `json:"category"`
	Rerank   *bool  `json:"rerank"`
}

func peerSearch(p *Peer, w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid request body"})
		return
	}
	if req.Query == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "query is required"})
		return
	}
	// An omitted top_k defaults to 5; an explicit "top_k": 0 is a request
	// for zero results and must reach the retriever unchanged.
	topK := 5
	if req.TopK != nil {
		topK = *req.TopK
	}
	useRerank := true
	if req.Rerank != nil {
		useRerank = *req.Rerank
	}

	results, err := p.retriever.Query(r.Context(), req.Query, topK, req.Category, useRerank)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func peerTopics(p *Peer, w http.ResponseWriter, _ *http.Request) {
	categories, err := p.docs.Categories()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}

	out := make(map[string][]map[string]string, len(categories))
	for _, cat := range categories {
		names, err := p.docs.TopicsInCategory(cat)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
			return
		}
		entries := make([]map[string]string, 0, len(names))
		for _, name := range names {
			entry := map[string]string{"name": name}
			if doc, err := p.docs.DocumentByTopic(name, cat); err == nil && doc != nil {
				entry["title"] = doc.Metadata.Title
			}
			entries = append(entries, entry)
		}
		out[cat] = entries
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": out})
}

func peerTopic(p *Peer, w http.ResponseWriter, r *http.Request) {
	category := r.PathValue("category")
	topic := r.PathValue("topic")

	doc, err := p.docs.DocumentByTopic(topic, category)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	if doc == nil {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"error":    "topic not found",
			"category": category,
			"topic":    topic,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"content":   doc.Text,
		"file_path": doc.Metadata.FilePath,
		"category":  doc.Metadata.Category,
		"topic":     doc.Metadata.Topic,
		"title":     doc.Metadata.Title,
	})
}
