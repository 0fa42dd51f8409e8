package query

import (
	"context"

	"github.com/kailas-cloud/reviewqa/internal/domain"
)

// Counter records that a query was received.
type Counter interface {
	Increment(ctx context.Context) error
	Get(ctx context.Context) (int64, error)
}

// Embedder vectorizes the query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Retriever returns the chunks nearest to a query vector.
type Retriever interface {
	Search(ctx context.Context, vector []float32, k int) ([]domain.SearchHit, error)
}

// Generator answers a query from retrieved chunks.
type Generator interface {
	Generate(ctx context.Context, query string, hits []domain.SearchHit) (string, error)
}
