// Package retriever implements the Hybrid Retriever: it launches dense and
// BM25 search concurrently, fuses the two ranked lists with Reciprocal Rank
// Fusion, and optionally reranks the fused candidates before returning the
// final top-k.
package retriever

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/cangjie-tools/cangjie-mcp/internal/config"
	"github.com/cangjie-tools/cangjie-mcp/internal/errs"
	"github.com/cangjie-tools/cangjie-mcp/internal/fusion"
	"github.com/cangjie-tools/cangjie-mcp/internal/models"
	"github.com/cangjie-tools/cangjie-mcp/internal/rerank"
)

// DenseSearcher is the Dense Store's search surface as the retriever needs
// it.
type DenseSearcher interface {
	Search(ctx context.Context, vector []float32, topK int, category string) ([]models.SearchResult, error)
}

// LexicalSearcher is the BM25 Store's search surface as the retriever needs
// it.
type LexicalSearcher interface {
	Search(query string, topK int, category string) ([]models.SearchResult, error)
}

// Embedder embeds a single query string into the Dense Store's vector
// space.
type Embedder interface {
	GenerateEmbedding(text string) ([]float32, error)
}

// Retriever wires the dense and lexical sources, RRF fusion, and the
// optional reranker into the single query(...) operation the tool surface
// calls.
type Retriever struct {
	dense    DenseSearcher
	bm25     LexicalSearcher
	embedder Embedder
	reranker rerank.Provider

	rrfK         int
	initialKMult int
}

// New constructs a Retriever. reranker may be rerank.NoOp{} when reranking
// is disabled.
func New(dense DenseSearcher, bm25 LexicalSearcher, embedder Embedder, reranker rerank.Provider, cfg *config.SearchConfig) *Retriever {
	mult := cfg.InitialKMult
	if mult <= 0 {
		mult = 4
	}
	k := cfg.RRFK
	if k <= 0 {
		k = fusion.DefaultK
	}
	return &Retriever{
		dense:        dense,
		bm25:         bm25,
		embedder:     embedder,
		reranker:     reranker,
		rrfK:         k,
		initialKMult: mult,
	}
}

// Query runs the hybrid search pipeline: concurrent dense + BM25 retrieval
// at initial_k, RRF fusion, and an optional rerank pass down to topK.
//
// topK == 0 returns an empty result set without touching either store;
// callers are responsible for turning an omitted top_k into whatever
// default applies before calling Query, since the zero value is
// indistinguishable from an explicit request for no results once it
// reaches here.
func (r *Retriever) Query(ctx context.Context, query string, topK int, category string, useRerank bool) ([]models.SearchResult, error) {
	if topK <= 0 {
		return []models.SearchResult{}, nil
	}
	initialK := topK * r.initialKMult

	vector, err := r.embedder.GenerateEmbedding(query)
	if err != nil {
		return nil, errs.NewBackendError("embedding query", err)
	}

	var (
		wg                   sync.WaitGroup
		denseResults, bm25Results []models.SearchResult
		denseErr, bm25Err    error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		denseResults, denseErr = r.dense.Search(ctx, vector, initialK, category)
	}()
	go func() {
		defer wg.Done()
		bm25Results, bm25Err = r.bm25.Search(query, initialK, category)
	}()
	wg.Wait()

	if denseErr != nil && bm25Err != nil {
		return nil, errs.NewBackendError("both dense and BM25 search failed", fmt.Errorf("dense: %v, bm25: %v", denseErr, bm25Err))
	}
	if denseErr != nil {
		log.Printf("dense search failed, continuing with BM25 only: %v", denseErr)
		denseResults = nil
	}
	if bm25Err != nil {
		log.Printf("BM25 search failed, continuing with dense only: %v", bm25Err)
		bm25Results = nil
	}

	fused := fusion.Reciprocal([][]models.SearchResult{denseResults, bm25Results}, r.rrfK, initialK)

	if !useRerank {
		if topK < len(fused) {
			return fused[:topK], nil
		}
		return fused, nil
	}

	reranked, err := r.reranker.Rerank(query, fused, topK)
	if err != nil {
		return nil, errs.NewBackendError("reranking fused results", err)
	}
	return reranked, nil
}
