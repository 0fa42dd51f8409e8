// Package redis is a vector index backed by a Redis FT (RediSearch) HNSW index.
package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/kailas-cloud/reviewqa/internal/db"
	dbredis "github.com/kailas-cloud/reviewqa/internal/db/redis"
	"github.com/kailas-cloud/reviewqa/internal/domain"
)

const (
	fieldChunkID = "chunk_id"
	fieldText    = "text"
	fieldPark    = "park"
	fieldCountry = "country"
	fieldRating  = "rating"
	fieldDate    = "date"
	fieldVector  = "__vector"
	vectorAlias  = "vector"

	defaultBatchSize = 256
	hnswM            = 16
	hnswEFConstruct  = 200
)

var returnFields = []string{fieldChunkID, fieldText, fieldPark, fieldCountry, fieldRating, fieldDate}

// IndexName is the FT index holding review chunks.
var IndexName = domain.KeyPrefix + "idx:chunks"

// store is the consumer interface for the index (ISP).
type store interface {
	CreateVectorIndex(ctx context.Context, spec *db.VectorIndexSpec) error
	DropIndex(ctx context.Context, name string, deleteDocs bool) error
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	SearchKNN(ctx context.Context, q *db.KNNQuery) ([]db.KNNHit, error)
}

// Index stores chunks as HASH documents under a per-build key prefix.
type Index struct {
	store     store
	prefix    string
	batchSize int
	logger    *zap.Logger

	mu    sync.RWMutex
	built bool
	dim   int
}

// New creates a Redis-backed index. runID namespaces the chunk keys of this build.
func New(s store, runID string, batchSize int, logger *zap.Logger) *Index {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Index{
		store:     s,
		prefix:    domain.KeyPrefix + "chunk:" + runID + ":",
		batchSize: batchSize,
		logger:    logger,
	}
}

// Build drops any previous index with its documents, recreates it for the
// vectors' dimension and writes every chunk.
func (i *Index) Build(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks and vectors length mismatch: %d != %d", len(chunks), len(vectors))
	}
	if len(vectors) == 0 {
		return errors.New("nothing to index")
	}
	dim := len(vectors[0])
	for j, v := range vectors {
		if len(v) == 0 || len(v) != dim {
			return fmt.Errorf("vector %d: %w", j, domain.ErrVectorDimMismatch)
		}
	}

	if err := i.store.DropIndex(ctx, IndexName, true); err != nil && !errors.Is(err, db.ErrIndexNotFound) {
		return fmt.Errorf("drop index: %w", err)
	}

	spec := &db.VectorIndexSpec{
		Name:           IndexName,
		Prefix:         i.prefix,
		TextFields:     []string{fieldText},
		TagFields:      []string{fieldChunkID, fieldPark, fieldCountry, fieldRating, fieldDate},
		VectorField:    fieldVector,
		VectorAlias:    vectorAlias,
		Dim:            dim,
		M:              hnswM,
		EFConstruction: hnswEFConstruct,
	}
	if err := i.store.CreateVectorIndex(ctx, spec); err != nil {
		return fmt.Errorf("create index: %w", err)
	}

	for start := 0; start < len(chunks); start += i.batchSize {
		end := min(start+i.batchSize, len(chunks))
		items := make([]db.HashSetItem, 0, end-start)
		for j := start; j < end; j++ {
			items = append(items, i.item(chunks[j], vectors[j]))
		}
		if err := i.store.HSetMulti(ctx, items); err != nil {
			return fmt.Errorf("store chunks %d-%d: %w", start, end, err)
		}
	}

	i.mu.Lock()
	i.built = true
	i.dim = dim
	i.mu.Unlock()

	i.logger.Info("redis vector index built",
		zap.String("index", IndexName),
		zap.String("prefix", i.prefix),
		zap.Int("chunks", len(chunks)),
		zap.Int("dimensions", dim),
	)
	return nil
}

// Search returns up to k chunks nearest to vector, most similar first.
func (i *Index) Search(ctx context.Context, vector []float32, k int) ([]domain.SearchHit, error) {
	i.mu.RLock()
	built, dim := i.built, i.dim
	i.mu.RUnlock()

	if !built {
		return nil, domain.ErrIndexNotBuilt
	}
	if len(vector) != dim {
		return nil, fmt.Errorf("query has %d dims, index has %d: %w", len(vector), dim, domain.ErrVectorDimMismatch)
	}

	entries, err := i.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    IndexName,
		VectorField:  vectorAlias,
		Vector:       vector,
		K:            k,
		ReturnFields: returnFields,
	})
	if err != nil {
		return nil, fmt.Errorf("knn search: %w", err)
	}

	hits := make([]domain.SearchHit, 0, len(entries))
	for _, e := range entries {
		hits = append(hits, domain.SearchHit{
			Chunk: domain.Chunk{
				ID:   e.Fields[fieldChunkID],
				Text: e.Fields[fieldText],
				Metadata: domain.Metadata{
					Park:    e.Fields[fieldPark],
					Country: e.Fields[fieldCountry],
					Rating:  e.Fields[fieldRating],
					Date:    e.Fields[fieldDate],
				},
			},
			Score: e.Score,
		})
	}
	return hits, nil
}

func (i *Index) item(c domain.Chunk, v []float32) db.HashSetItem {
	return db.HashSetItem{
		Key: i.prefix + c.ID,
		Fields: map[string]string{
			fieldChunkID: c.ID,
			fieldText:    c.Text,
			fieldPark:    c.Metadata.Park,
			fieldCountry: c.Metadata.Country,
			fieldRating:  c.Metadata.Rating,
			fieldDate:    c.Metadata.Date,
			fieldVector:  dbredis.EncodeVector(v),
		},
	}
}
