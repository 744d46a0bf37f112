package weaviate

import (
	"context"
	"fmt"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"docuchat/internal/index"
	"docuchat/internal/vector"
)

type Store struct {
	client *weaviate.Client
}

func NewStore(client *weaviate.Client) *Store {
	return &Store{client: client}
}

// AddBatch writes a batch of embedded chunks in one request. Weaviate
// reports per-object outcomes, so a partial failure surfaces as an error
// even when the batch call itself succeeds.
func (s *Store) AddBatch(ctx context.Context, chunks []index.IndexedChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	batcher := s.client.Batch().ObjectsBatcher()
	for _, c := range chunks {
		batcher = batcher.WithObjects(&models.Object{
			Class: vector.ClassName,
			Properties: map[string]interface{}{
				"content":     c.Chunk.Content,
				"documentId":  c.DocumentID,
				"pageNumber":  c.Chunk.PageNumber,
				"chunkIndex":  c.Chunk.Index,
				"startOffset": c.Chunk.StartOffset,
				"endOffset":   c.Chunk.EndOffset,
			},
			Vector: c.Vector,
		})
	}

	resp, err := batcher.Do(ctx)
	if err != nil {
		return err
	}
	for _, obj := range resp {
		if obj.Result != nil && obj.Result.Errors != nil && len(obj.Result.Errors.Error) > 0 {
			return fmt.Errorf("batch insert: %s", obj.Result.Errors.Error[0].Message)
		}
	}
	return nil
}

// Search runs a nearVector query scoped to one document. minScore maps to
// Weaviate's certainty threshold, so filtering happens server-side.
func (s *Store) Search(ctx context.Context, documentID string, queryVector []float32, topK int, minScore float64) ([]index.RetrievedChunk, error) {
	nearVector := s.client.GraphQL().NearVectorArgBuilder().
		WithVector(queryVector).
		WithCertainty(float32(minScore))

	where := filters.Where().
		WithPath([]string{"documentId"}).
		WithOperator(filters.Equal).
		WithValueString(documentID)

	fields := []graphql.Field{
		{Name: "content"},
		{Name: "pageNumber"},
		{Name: "chunkIndex"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "certainty"}}},
	}

	res, err := s.client.GraphQL().Get().
		WithClassName(vector.ClassName).
		WithNearVector(nearVector).
		WithWhere(where).
		WithLimit(topK).
		WithFields(fields...).
		Do(ctx)
	if err != nil {
		return nil, err
	}
	if len(res.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %v", res.Errors)
	}

	var results []index.RetrievedChunk
	if data, ok := res.Data["Get"].(map[string]interface{}); ok {
		if rawChunks, ok := data[vector.ClassName].([]interface{}); ok {
			for _, c := range rawChunks {
				props, ok := c.(map[string]interface{})
				if !ok {
					continue
				}
				result := index.RetrievedChunk{}
				if content, ok := props["content"].(string); ok {
					result.Content = content
				}
				if pageNumber, ok := props["pageNumber"].(float64); ok {
					result.PageNumber = int(pageNumber)
				}
				if chunkIndex, ok := props["chunkIndex"].(float64); ok {
					result.ChunkIndex = int(chunkIndex)
				}
				if additional, ok := props["_additional"].(map[string]interface{}); ok {
					// Certainty arrives as a float in current versions, as
					// a string in some older ones.
					if certainty, ok := additional["certainty"].(float64); ok {
						result.Score = certainty
					} else if certainty, ok := additional["certainty"].(string); ok {
						fmt.Sscanf(certainty, "%f", &result.Score)
					}
				}
				results = append(results, result)
			}
		}
	}

	return results, nil
}

// DeleteAll removes every chunk of one document. Any failed object makes
// the whole call fail so the caller never proceeds past a partial delete.
func (s *Store) DeleteAll(ctx context.Context, documentID string) error {
	resp, err := s.client.Batch().ObjectsBatchDeleter().
		WithClassName(vector.ClassName).
		WithOutput("minimal").
		WithWhere(filters.Where().
			WithPath([]string{"documentId"}).
			WithOperator(filters.Equal).
			WithValueString(documentID)).
		Do(ctx)
	if err != nil {
		return err
	}
	if resp != nil && resp.Results != nil && resp.Results.Failed > 0 {
		return fmt.Errorf("vector delete: %d objects failed", resp.Results.Failed)
	}
	return nil
}
