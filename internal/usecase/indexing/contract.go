package indexing

import (
	"context"

	"github.com/kailas-cloud/reviewqa/internal/domain"
)

// Source loads the raw review rows.
type Source interface {
	Load(ctx context.Context) ([]domain.Review, error)
}

// Splitter cuts normalized documents into chunks.
type Splitter interface {
	SplitDocuments(docs []domain.Document) []domain.Chunk
}

// Index receives the chunk vectors once per process.
type Index interface {
	Build(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) error
}
