// Package indexing builds the vector index from the review corpus at startup.
package indexing

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/reviewqa/internal/domain"
	"github.com/kailas-cloud/reviewqa/internal/metrics"
	"github.com/kailas-cloud/reviewqa/internal/review"
)

const (
	// DefaultBatchSize is the number of chunks embedded per request.
	DefaultBatchSize = 64
	// DefaultWorkers bounds concurrent embedding requests.
	DefaultWorkers = 4
)

// Config controls corpus size and embedding fan-out.
type Config struct {
	// Limit keeps only the first Limit documents; 0 keeps all.
	Limit     int
	BatchSize int
	Workers   int
	// RunID tags log lines of this build.
	RunID string
}

// Stats describes a completed build.
type Stats struct {
	Documents  int
	Chunks     int
	Dimensions int
	Duration   time.Duration
}

// Service runs load → normalize → chunk → embed → index.
type Service struct {
	source   Source
	splitter Splitter
	embedder domain.Embedder
	index    Index
	cfg      Config
	logger   *zap.Logger
}

// New creates an indexing service.
func New(
	source Source, splitter Splitter, embedder domain.Embedder, index Index,
	cfg Config, logger *zap.Logger,
) *Service {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	return &Service{
		source:   source,
		splitter: splitter,
		embedder: embedder,
		index:    index,
		cfg:      cfg,
		logger:   logger.With(zap.String("run_id", cfg.RunID)),
	}
}

// Build indexes the corpus. Any failure leaves the index unbuilt.
func (s *Service) Build(ctx context.Context) (Stats, error) {
	start := time.Now()

	s.logger.Info("Loading reviews")
	rows, err := s.source.Load(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("load reviews: %w", err)
	}
	s.logger.Info("Reviews loaded", zap.Int("rows", len(rows)))

	docs := review.NormalizeAll(rows)
	if s.cfg.Limit > 0 && len(docs) > s.cfg.Limit {
		docs = docs[:s.cfg.Limit]
	}

	s.logger.Info("Creating document chunks from reviews")
	chunks := s.splitter.SplitDocuments(docs)
	s.logger.Info("Created document chunks",
		zap.Int("chunks", len(chunks)),
		zap.Int("documents", len(docs)),
	)
	if len(chunks) == 0 {
		return Stats{}, fmt.Errorf("corpus produced no chunks: %w", domain.ErrDataSourceUnavailable)
	}

	s.logger.Info("Embedding chunks",
		zap.Int("batch_size", s.cfg.BatchSize),
		zap.Int("workers", s.cfg.Workers),
	)
	vectors, err := s.embed(ctx, chunks)
	if err != nil {
		return Stats{}, fmt.Errorf("embed chunks: %w", err)
	}

	s.logger.Info("Building vector index")
	if err := s.index.Build(ctx, chunks, vectors); err != nil {
		return Stats{}, fmt.Errorf("build index: %w", err)
	}

	stats := Stats{
		Documents:  len(docs),
		Chunks:     len(chunks),
		Dimensions: len(vectors[0]),
		Duration:   time.Since(start),
	}
	metrics.IndexChunks.Set(float64(stats.Chunks))
	metrics.IndexBuildDuration.Set(stats.Duration.Seconds())

	s.logger.Info("Vector index built",
		zap.Int("documents", stats.Documents),
		zap.Int("chunks", stats.Chunks),
		zap.Int("dimensions", stats.Dimensions),
		zap.Duration("duration", stats.Duration),
	)
	return stats, nil
}

// embed vectorizes chunks in batches with bounded parallelism, preserving order.
func (s *Service) embed(ctx context.Context, chunks []domain.Chunk) ([][]float32, error) {
	vectors := make([][]float32, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)

	for offset := 0; offset < len(chunks); offset += s.cfg.BatchSize {
		end := min(offset+s.cfg.BatchSize, len(chunks))
		g.Go(func() error {
			texts := make([]string, 0, end-offset)
			for _, c := range chunks[offset:end] {
				texts = append(texts, c.Text)
			}
			res, err := domain.EmbedAll(gctx, s.embedder, texts)
			if err != nil {
				return fmt.Errorf("chunks %d-%d: %w", offset, end, err)
			}
			if len(res.Embeddings) != len(texts) {
				return fmt.Errorf("chunks %d-%d: got %d vectors: %w",
					offset, end, len(res.Embeddings), domain.ErrEmbeddingProviderError)
			}
			copy(vectors[offset:end], res.Embeddings)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err //nolint:wrapcheck // wrapped per batch
	}
	for i, v := range vectors {
		if len(v) == 0 {
			return nil, fmt.Errorf("chunk %d has an empty vector: %w", i, domain.ErrEmbeddingProviderError)
		}
	}
	return vectors, nil
}
