// Package denseindex implements the dense (vector similarity) half of the
// hybrid retrieval engine on top of Qdrant.
package denseindex

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/qdrant/go-client/qdrant"

	"github.com/cangjie-tools/cangjie-mcp/internal/config"
	"github.com/cangjie-tools/cangjie-mcp/internal/errs"
	"github.com/cangjie-tools/cangjie-mcp/internal/models"
)

const upsertBatchSize = 256

// Store is a Qdrant-backed dense vector index for one (version, lang) pair.
type Store struct {
	client         *qdrant.Client
	collection     string
	distanceMetric string
	metadataPath   string
}

// New connects to the Qdrant instance at cfg.Address and returns a Store
// scoped to cfg.CollectionName. metadataPath is the sidecar file this Store
// uses to track which documentation version and embedding model the
// collection currently holds.
func New(cfg *config.DenseStoreConfig, metadataPath string) (*Store, error) {
	host, portStr, err := net.SplitHostPort(cfg.Address)
	if err != nil {
		return nil, errs.NewConfigError(fmt.Sprintf("invalid dense store address %q", cfg.Address), err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, errs.NewConfigError(fmt.Sprintf("invalid dense store port %q", portStr), err)
	}

	client, err := qdrant.NewClient(&qdrant.Config{Host: host, Port: port, UseTLS: false})
	if err != nil {
		return nil, errs.NewBackendError("failed to connect to dense store", err)
	}

	return &Store{
		client:         client,
		collection:     cfg.CollectionName,
		distanceMetric: cfg.DistanceMetric,
		metadataPath:   metadataPath,
	}, nil
}

// IsIndexed reports whether the collection exists and holds at least one
// point.
func (s *Store) IsIndexed(ctx context.Context) (bool, error) {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return false, errs.NewBackendError("checking collection existence", err)
	}
	if !exists {
		return false, nil
	}

	count, err := s.client.Count(ctx, &qdrant.CountPoints{CollectionName: s.collection})
	if err != nil {
		return false, errs.NewBackendError("counting collection points", err)
	}
	return count > 0, nil
}

// GetMetadata reads the sidecar metadata file, returning nil if it does not
// exist yet.
func (s *Store) GetMetadata() (*models.IndexMetadata, error) {
	data, err := os.ReadFile(s.metadataPath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.NewIntegrityError("reading index metadata", err)
	}

	var meta models.IndexMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, errs.NewIntegrityError("parsing index metadata", err)
	}
	return &meta, nil
}

// SaveMetadata persists the sidecar metadata file describing what the
// collection currently holds.
func (s *Store) SaveMetadata(ctx context.Context, version, lang, embeddingModel string) error {
	count, err := s.client.Count(ctx, &qdrant.CountPoints{CollectionName: s.collection})
	if err != nil {
		return errs.NewBackendError("counting collection points", err)
	}

	meta := models.IndexMetadata{
		Version:        version,
		Lang:           lang,
		EmbeddingModel: embeddingModel,
		DocumentCount:  int(count),
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return errs.NewIntegrityError("marshaling index metadata", err)
	}

	if err := os.MkdirAll(parentDir(s.metadataPath), 0o755); err != nil {
		return errs.NewIntegrityError("creating index directory", err)
	}
	if err := os.WriteFile(s.metadataPath, data, 0o644); err != nil {
		return errs.NewIntegrityError("writing index metadata", err)
	}
	return nil
}

// VersionMatches reports whether the persisted metadata matches the
// requested version, language, and embedding model.
func (s *Store) VersionMatches(version, lang, embeddingModel string) (bool, error) {
	meta, err := s.GetMetadata()
	if err != nil {
		return false, err
	}
	if meta == nil {
		return false, nil
	}
	return meta.Matches(version, lang, embeddingModel), nil
}

// ResetCollection drops and recreates the collection with the given vector
// dimension, discarding any previously indexed points.
func (s *Store) ResetCollection(ctx context.Context, vectorSize int) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return errs.NewBackendError("checking collection existence", err)
	}
	if exists {
		if err := s.client.DeleteCollection(ctx, s.collection); err != nil {
			return errs.NewBackendError("deleting existing collection", err)
		}
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: &qdrant.VectorsConfig{
			Config: &qdrant.VectorsConfig_Params{
				Params: &qdrant.VectorParams{
					Size:     uint64(vectorSize),
					Distance: s.qdrantDistance(),
				},
			},
		},
	})
	if err != nil {
		return errs.NewBackendError("creating collection", err)
	}
	return nil
}

// IndexChunks resets the collection and upserts every embedded chunk in
// batches.
func (s *Store) IndexChunks(ctx context.Context, chunks []models.EmbeddedChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	if err := s.ResetCollection(ctx, len(chunks[0].Vector)); err != nil {
		return err
	}

	for start := 0; start < len(chunks); start += upsertBatchSize {
		end := start + upsertBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		if err := s.upsertBatch(ctx, chunks[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) upsertBatch(ctx context.Context, chunks []models.EmbeddedChunk) error {
	points := make([]*qdrant.PointStruct, len(chunks))
	for i, chunk := range chunks {
		vector := make([]float32, len(chunk.Vector))
		copy(vector, chunk.Vector)

		points[i] = &qdrant.PointStruct{
			Id: &qdrant.PointId{
				PointIdOptions: &qdrant.PointId_Uuid{Uuid: chunk.ID},
			},
			Vectors: &qdrant.Vectors{
				VectorsOptions: &qdrant.Vectors_Vector{
					Vector: &qdrant.Vector{Data: vector},
				},
			},
			Payload: chunkPayload(chunk),
		}
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points:         points,
	})
	if err != nil {
		return errs.NewBackendError("upserting points", err)
	}
	return nil
}

func chunkPayload(chunk models.EmbeddedChunk) map[string]*qdrant.Value {
	return map[string]*qdrant.Value{
		"text":      qdrant.NewValueString(chunk.Text),
		"file_path": qdrant.NewValueString(chunk.Metadata.FilePath),
		"category":  qdrant.NewValueString(chunk.Metadata.Category),
		"topic":     qdrant.NewValueString(chunk.Metadata.Topic),
		"title":     qdrant.NewValueString(chunk.Metadata.Title),
		"has_code":  valueBool(chunk.Metadata.CodeBlockCount > 0),
	}
}

func valueBool(b bool) *qdrant.Value {
	return &qdrant.Value{Kind: &qdrant.Value_BoolValue{BoolValue: b}}
}

// Search runs a kNN query against the collection, optionally restricted to
// a single category.
func (s *Store) Search(ctx context.Context, vector []float32, topK int, category string) ([]models.SearchResult, error) {
	if topK <= 0 {
		return []models.SearchResult{}, nil
	}
	limit := uint64(topK)

	query := &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limit,
		WithPayload:    &qdrant.WithPayloadSelector{SelectorOptions: &qdrant.WithPayloadSelector_Enable{Enable: true}},
	}
	if category != "" {
		query.Filter = &qdrant.Filter{
			Must: []*qdrant.Condition{
				{
					ConditionOneOf: &qdrant.Condition_Field{
						Field: &qdrant.FieldCondition{
							Key: "category",
							Match: &qdrant.Match{
								MatchValue: &qdrant.Match_Keyword{Keyword: category},
							},
						},
					},
				},
			},
		}
	}

	points, err := s.client.Query(ctx, query)
	if err != nil {
		return nil, errs.NewBackendError("querying dense store", err)
	}

	results := make([]models.SearchResult, len(points))
	for i, p := range points {
		payload := p.Payload
		results[i] = models.SearchResult{
			Text:  payload["text"].GetStringValue(),
			Score: float64(p.Score),
			Metadata: models.SearchResultMetadata{
				FilePath: payload["file_path"].GetStringValue(),
				Category: payload["category"].GetStringValue(),
				Topic:    payload["topic"].GetStringValue(),
				Title:    payload["title"].GetStringValue(),
				HasCode:  payload["has_code"].GetBoolValue(),
			},
		}
	}
	return results, nil
}

// Clear drops the collection and removes the metadata sidecar.
func (s *Store) Clear(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return errs.NewBackendError("checking collection existence", err)
	}
	if exists {
		if err := s.client.DeleteCollection(ctx, s.collection); err != nil {
			return errs.NewBackendError("deleting collection", err)
		}
	}

	if err := os.Remove(s.metadataPath); err != nil && !os.IsNotExist(err) {
		return errs.NewIntegrityError("removing index metadata", err)
	}
	return nil
}

// Close releases the underlying gRPC connection.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) qdrantDistance() qdrant.Distance {
	switch s.distanceMetric {
	case "dot":
		return qdrant.Distance_Dot
	case "euclidean":
		return qdrant.Distance_Euclid
	default:
		return qdrant.Distance_Cosine
	}
}

func parentDir(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return "."
}
