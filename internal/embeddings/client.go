// Package embeddings implements the embedding-provider collaborator: an
// HTTP client against either a local Ollama-compatible endpoint or an
// OpenAI-compatible embeddings API, with optional MRL dimension truncation
// and L2 normalization.
package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/cangjie-tools/cangjie-mcp/internal/config"
)

// maxConcurrentRequests bounds how many embedding requests are in flight at
// once during a batch call, so a large chunk set doesn't overwhelm the
// provider.
const maxConcurrentRequests = 10

// maxTextChars is a safety net truncating any single text before it is
// sent to the provider, independent of whatever budget the chunker used.
const maxTextChars = 4000

// Client is an embedding-provider HTTP client. It is the one concrete
// implementation of the embed(texts) -> vectors collaborator this system
// ships; the model behind the endpoint is external.
type Client struct {
	cfg        *config.EmbeddingsConfig
	httpClient *http.Client
	baseURL    string
}

// NewClient constructs an embedding client for the configured provider.
func NewClient(cfg *config.EmbeddingsConfig) *Client {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 100,
		MaxConnsPerHost:     100,
		IdleConnTimeout:     90 * time.Second,
		DisableKeepAlives:   false,
		ForceAttemptHTTP2:   false,
	}

	client := &Client{
		cfg:     cfg,
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout:   60 * time.Second,
			Transport: transport,
		},
	}

	client.logMRLConfig()

	return client
}

// ollamaEmbedRequest is the request body for Ollama's /api/embeddings.
type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// openAIEmbedRequest is the request body for an OpenAI-compatible
// /v1/embeddings endpoint.
type openAIEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type openAIEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// GenerateEmbedding generates an embedding for a single text.
func (c *Client) GenerateEmbedding(text string) ([]float32, error) {
	if len(text) > maxTextChars {
		text = text[:maxTextChars]
	}

	var embedding []float32
	var err error
	if c.cfg.Provider == "openai" {
		embedding, err = c.embedOpenAI(text)
	} else {
		embedding, err = c.embedOllama(text)
	}
	if err != nil {
		return nil, err
	}

	fullDim := c.cfg.FullDimension
	if fullDim == 0 {
		fullDim = len(embedding)
	}
	if len(embedding) != fullDim {
		return nil, fmt.Errorf("expected %d dimensions from model, got %d", fullDim, len(embedding))
	}

	if c.cfg.UseMRL && c.cfg.Dimensions > 0 && c.cfg.Dimensions < fullDim {
		embedding = applyMRL(embedding, c.cfg.Dimensions)
	}

	if c.cfg.Normalize {
		embedding = normalize(embedding)
	}

	return embedding, nil
}

func (c *Client) embedOllama(text string) ([]float32, error) {
	request := ollamaEmbedRequest{Model: c.cfg.Model, Prompt: text}

	reqBody, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/api/embeddings", c.baseURL)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embedding provider returned status %d: %s", resp.StatusCode, string(body))
	}

	var response ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return response.Embedding, nil
}

func (c *Client) embedOpenAI(text string) ([]float32, error) {
	request := openAIEmbedRequest{Model: c.cfg.Model, Input: []string{text}}

	reqBody, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/embeddings", c.baseURL)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embedding provider returned status %d: %s", resp.StatusCode, string(body))
	}

	var response openAIEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(response.Data) == 0 {
		return nil, fmt.Errorf("embedding provider returned no data")
	}

	return response.Data[0].Embedding, nil
}

// GenerateEmbeddings embeds multiple texts concurrently, bounded by
// maxConcurrentRequests, cancelling remaining work on the first error.
func (c *Client) GenerateEmbeddings(texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	if len(texts) == 1 {
		embedding, err := c.GenerateEmbedding(texts[0])
		if err != nil {
			return nil, err
		}
		return [][]float32{embedding}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	embeddings := make([][]float32, len(texts))
	errs := make([]error, len(texts))

	semaphore := make(chan struct{}, maxConcurrentRequests)
	var wg sync.WaitGroup
	var firstError sync.Once

	for i, text := range texts {
		wg.Add(1)
		go func(idx int, txt string) {
			defer wg.Done()

			select {
			case semaphore <- struct{}{}:
			case <-ctx.Done():
				return
			}
			defer func() { <-semaphore }()

			select {
			case <-ctx.Done():
				return
			default:
			}

			embedding, err := c.GenerateEmbedding(txt)
			if err != nil {
				errs[idx] = fmt.Errorf("failed to generate embedding for item %d: %w", idx, err)
				firstError.Do(cancel)
				return
			}
			embeddings[idx] = embedding
		}(i, text)
	}

	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("batch embedding failed at index %d: %w", i, err)
		}
	}

	return embeddings, nil
}

// HealthCheck verifies the provider is reachable and returns well-formed
// embeddings.
func (c *Client) HealthCheck() error {
	if _, err := c.GenerateEmbedding("test"); err != nil {
		return fmt.Errorf("embedding provider health check failed: %w", err)
	}
	return nil
}

// ModelName identifies the embedding model for index metadata comparisons.
func (c *Client) ModelName() string {
	return c.cfg.Model
}

func normalize(vec []float32) []float32 {
	var sum float32
	for _, v := range vec {
		sum += v * v
	}
	if sum == 0 {
		return vec
	}

	magnitude := float32(1.0) / float32(sqrt64(float64(sum)))

	normalized := make([]float32, len(vec))
	for i, v := range vec {
		normalized[i] = v * magnitude
	}
	return normalized
}

// sqrt64 avoids pulling in math for a single call site, matching this
// codebase's existing habit of hand-rolling simple numeric helpers.
func sqrt64(x float64) float64 {
	if x < 0 {
		return 0
	}
	z := x
	for i := 0; i < 10; i++ {
		z = z - (z*z-x)/(2*z)
	}
	return z
}

var validMRLDims = []int{64, 128, 256, 512, 768, 1024, 1536}

// applyMRL truncates a Matryoshka-trained embedding to a smaller dimension,
// snapping to the nearest dimension the model is known to have been
// trained at if targetDim isn't one of them.
func applyMRL(embedding []float32, targetDim int) []float32 {
	isValid := false
	for _, dim := range validMRLDims {
		if targetDim == dim {
			isValid = true
			break
		}
	}

	if !isValid {
		closest := validMRLDims[0]
		for _, dim := range validMRLDims {
			if abs(targetDim-dim) < abs(targetDim-closest) {
				closest = dim
			}
		}
		targetDim = closest
	}

	if targetDim > len(embedding) {
		targetDim = len(embedding)
	}

	sliced := make([]float32, targetDim)
	copy(sliced, embedding[:targetDim])
	return sliced
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func (c *Client) logMRLConfig() {
	fullDim := c.cfg.FullDimension
	if fullDim == 0 {
		return
	}
	if c.cfg.UseMRL {
		reduction := float64(fullDim-c.cfg.Dimensions) / float64(fullDim) * 100
		log.Printf("MRL enabled: %dd -> %dd (%.0f%% smaller)", fullDim, c.cfg.Dimensions, reduction)
	}
}
