// Package rerank implements the optional reranking stage that runs after
// fusion: a cross-encoder scores each fused result against the query and
// the hybrid retriever re-sorts by that score.
package rerank

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cangjie-tools/cangjie-mcp/internal/config"
	"github.com/cangjie-tools/cangjie-mcp/internal/errs"
	"github.com/cangjie-tools/cangjie-mcp/internal/models"
)

// Provider reranks a fused result list against a query, returning at most
// topK results sorted by relevance.
type Provider interface {
	Rerank(query string, results []models.SearchResult, topK int) ([]models.SearchResult, error)
	ModelName() string
}

// New builds the reranker configured by cfg. An empty or "none" Type
// yields NoOp ("rerank disabled"); an unrecognized Type is a ConfigError.
func New(cfg *config.RerankConfig) (Provider, error) {
	switch cfg.Type {
	case "", "none":
		return NoOp{}, nil
	case "local", "api":
		if cfg.Type == "api" && cfg.APIKey == "" {
			return nil, errs.NewConfigError("rerank type \"api\" requires an API key", nil)
		}
		return &httpReranker{
			httpClient: &http.Client{Timeout: 30 * time.Second},
			baseURL:    cfg.BaseURL,
			model:      cfg.Model,
			apiKey:     cfg.APIKey,
			kind:       cfg.Type,
		}, nil
	default:
		return nil, errs.NewConfigError(fmt.Sprintf("unknown rerank type %q", cfg.Type), nil)
	}
}

// NoOp passes results through unchanged aside from truncating to topK, used
// when reranking is disabled.
type NoOp struct{}

func (NoOp) Rerank(_ string, results []models.SearchResult, topK int) ([]models.SearchResult, error) {
	if topK > 0 && topK < len(results) {
		return results[:topK], nil
	}
	return results, nil
}

func (NoOp) ModelName() string { return "none" }

// httpReranker calls a cross-encoder reranking endpoint shaped like
// SiliconFlow's /rerank API: POST {query, documents, top_n} -> ranked
// indices with relevance scores. A "local" kind targets a self-hosted
// instance of the same API shape instead of a hosted one.
type httpReranker struct {
	httpClient *http.Client
	baseURL    string
	model      string
	apiKey     string
	kind       string
}

type rerankRequest struct {
	Model           string   `json:"model"`
	Query           string   `json:"query"`
	Documents       []string `json:"documents"`
	TopN            int      `json:"top_n"`
	ReturnDocuments bool     `json:"return_documents"`
}

type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

func (r *httpReranker) Rerank(query string, results []models.SearchResult, topK int) ([]models.SearchResult, error) {
	if len(results) == 0 {
		return nil, nil
	}
	if topK <= 0 {
		topK = len(results)
	}

	documents := make([]string, len(results))
	for i, res := range results {
		documents[i] = res.Text
	}

	reqBody, err := json.Marshal(rerankRequest{
		Model:     r.model,
		Query:     query,
		Documents: documents,
		TopN:      topK,
	})
	if err != nil {
		return nil, errs.NewBackendError("marshaling rerank request", err)
	}

	req, err := http.NewRequest(http.MethodPost, r.baseURL+"/rerank", bytes.NewReader(reqBody))
	if err != nil {
		return nil, errs.NewBackendError("building rerank request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, errs.NewBackendError("calling reranker", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, errs.NewBackendError(fmt.Sprintf("reranker returned status %d: %s", resp.StatusCode, string(body)), nil)
	}

	var parsed rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, errs.NewBackendError("decoding rerank response", err)
	}

	reranked := make([]models.SearchResult, 0, len(parsed.Results))
	for _, item := range parsed.Results {
		if item.Index < 0 || item.Index >= len(results) {
			continue
		}
		res := results[item.Index]
		res.Score = item.RelevanceScore
		reranked = append(reranked, res)
	}
	return reranked, nil
}

func (r *httpReranker) ModelName() string {
	return fmt.Sprintf("%s:%s", r.kind, r.model)
}
