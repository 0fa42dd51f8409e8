// Package memory is an in-process vector index using a brute-force cosine scan.
package memory

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sync"

	"github.com/kailas-cloud/reviewqa/internal/domain"
)

// Index holds chunk vectors in memory. Build replaces the contents;
// Search is safe for concurrent use.
type Index struct {
	mu      sync.RWMutex
	built   bool
	dim     int
	chunks  []domain.Chunk
	vectors [][]float32
	norms   []float64
}

// New creates an empty index.
func New() *Index {
	return &Index{}
}

// Build loads chunks and their vectors, replacing anything stored before.
func (i *Index) Build(_ context.Context, chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks and vectors length mismatch: %d != %d", len(chunks), len(vectors))
	}

	dim := 0
	norms := make([]float64, len(vectors))
	for j, v := range vectors {
		if j == 0 {
			dim = len(v)
		}
		if len(v) == 0 || len(v) != dim {
			return fmt.Errorf("vector %d: %w", j, domain.ErrVectorDimMismatch)
		}
		norms[j] = norm(v)
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	i.chunks = slices.Clone(chunks)
	i.vectors = vectors
	i.norms = norms
	i.dim = dim
	i.built = true
	return nil
}

// Search returns up to k chunks ordered by descending cosine similarity.
// Ties keep insertion order.
func (i *Index) Search(_ context.Context, vector []float32, k int) ([]domain.SearchHit, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}

	i.mu.RLock()
	defer i.mu.RUnlock()

	if !i.built {
		return nil, domain.ErrIndexNotBuilt
	}
	if len(i.vectors) == 0 {
		return nil, nil
	}
	if len(vector) != i.dim {
		return nil, fmt.Errorf("query has %d dims, index has %d: %w", len(vector), i.dim, domain.ErrVectorDimMismatch)
	}

	qn := norm(vector)
	hits := make([]domain.SearchHit, len(i.vectors))
	for j, v := range i.vectors {
		hits[j] = domain.SearchHit{Chunk: i.chunks[j], Score: cosine(v, vector, i.norms[j], qn)}
	}

	slices.SortStableFunc(hits, func(a, b domain.SearchHit) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return 0
		}
	})

	return hits[:min(k, len(hits))], nil
}

// Len returns the number of indexed chunks.
func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.chunks)
}

func cosine(a, b []float32, na, nb float64) float64 {
	if na == 0 || nb == 0 {
		return 0
	}
	var sum float64
	for j := range a {
		sum += float64(a[j]) * float64(b[j])
	}
	return sum / (na * nb)
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}
