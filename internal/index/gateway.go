package index

import (
	"context"
	"fmt"
	"log/slog"

	"docuchat/internal/text"
)

// IndexedChunk pairs a text chunk with its embedding, ready for storage.
type IndexedChunk struct {
	DocumentID string
	Chunk      text.Chunk
	Vector     []float32
}

// RetrievedChunk is a search hit. Score is the store's certainty for the
// match, in [0,1].
type RetrievedChunk struct {
	Content    string
	PageNumber int
	ChunkIndex int
	Score      float64
}

type Embedder interface {
	Embed(ctx context.Context, content string) ([]float32, error)
}

type VectorStore interface {
	AddBatch(ctx context.Context, chunks []IndexedChunk) error
	Search(ctx context.Context, documentID string, vector []float32, topK int, minScore float64) ([]RetrievedChunk, error)
	DeleteAll(ctx context.Context, documentID string) error
}

const embedBatchSize = 10

// Gateway embeds chunks and moves them in and out of the vector store.
type Gateway struct {
	embedder Embedder
	store    VectorStore
}

func NewGateway(embedder Embedder, store VectorStore) *Gateway {
	return &Gateway{embedder: embedder, store: store}
}

// Index embeds every chunk and writes them to the store in batches.
// Batches run sequentially and the first failure aborts the whole
// operation, leaving the document to be marked FAILED by the caller.
func (g *Gateway) Index(ctx context.Context, documentID string, chunks []text.Chunk) error {
	for start := 0; start < len(chunks); start += embedBatchSize {
		end := min(start+embedBatchSize, len(chunks))

		batch := make([]IndexedChunk, 0, end-start)
		for _, chunk := range chunks[start:end] {
			vector, err := g.embedder.Embed(ctx, chunk.Content)
			if err != nil {
				return fmt.Errorf("embed chunk %d: %w", chunk.Index, err)
			}
			batch = append(batch, IndexedChunk{
				DocumentID: documentID,
				Chunk:      chunk,
				Vector:     vector,
			})
		}

		if err := g.store.AddBatch(ctx, batch); err != nil {
			return fmt.Errorf("store batch starting at chunk %d: %w", start, err)
		}

		slog.DebugContext(ctx, "indexed batch", "document_id", documentID, "from", start, "to", end)
	}
	return nil
}

// Search embeds the query and returns the document's nearest chunks at or
// above minScore, most similar first.
func (g *Gateway) Search(ctx context.Context, documentID, query string, topK int, minScore float64) ([]RetrievedChunk, error) {
	vector, err := g.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return g.store.Search(ctx, documentID, vector, topK, minScore)
}

func (g *Gateway) DeleteAll(ctx context.Context, documentID string) error {
	return g.store.DeleteAll(ctx, documentID)
}
