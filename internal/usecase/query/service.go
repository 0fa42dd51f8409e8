// Package query answers questions about the review corpus: count, embed, retrieve, generate.
package query

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/kailas-cloud/reviewqa/internal/domain"
	"github.com/kailas-cloud/reviewqa/internal/logger"
	"github.com/kailas-cloud/reviewqa/internal/metrics"
)

// EmptyQueryAnswer is returned for a blank query without calling any provider.
const EmptyQueryAnswer = "Query cannot be empty."

// DefaultTopK is the number of chunks placed in the prompt.
const DefaultTopK = 5

// Query outcomes.
const (
	OutcomeCompleted   = "completed"
	OutcomeRejected    = "rejected"
	OutcomeUnavailable = "unavailable"
	OutcomeFailed      = "failed"
)

// Config tunes retrieval and admission.
type Config struct {
	TopK int
	// MaxConcurrent bounds in-flight embed/search/generate runs; 0 means unbounded.
	MaxConcurrent int64
}

// Service is the retrieve-then-generate pipeline, assembled once at startup.
// It rejects queries with ErrPipelineUnavailable until MarkReady is called.
type Service struct {
	counter   Counter
	embedder  Embedder
	retriever Retriever
	generator Generator
	topK      int
	sem       *semaphore.Weighted
	logger    *zap.Logger

	ready    atomic.Bool
	buildErr atomic.Pointer[error]
}

// New creates a query service.
func New(
	counter Counter, embedder Embedder, retriever Retriever, generator Generator,
	cfg Config, logger *zap.Logger,
) *Service {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	s := &Service{
		counter:   counter,
		embedder:  embedder,
		retriever: retriever,
		generator: generator,
		topK:      cfg.TopK,
		logger:    logger,
	}
	if cfg.MaxConcurrent > 0 {
		s.sem = semaphore.NewWeighted(cfg.MaxConcurrent)
	}
	return s
}

// MarkReady enables answering after the index has been built.
func (s *Service) MarkReady() {
	s.buildErr.Store(nil)
	s.ready.Store(true)
}

// MarkUnavailable records why the pipeline could not be built.
func (s *Service) MarkUnavailable(err error) {
	s.buildErr.Store(&err)
	s.ready.Store(false)
}

// Ready reports whether queries can be answered.
func (s *Service) Ready() bool {
	return s.ready.Load()
}

// BuildError returns the startup failure, if any.
func (s *Service) BuildError() error {
	if p := s.buildErr.Load(); p != nil {
		return *p
	}
	return nil
}

// Answer counts the request and answers query.
// A blank query returns EmptyQueryAnswer. Provider calls are not cancelled when
// the caller goes away.
func (s *Service) Answer(ctx context.Context, query string) (string, error) {
	ctx = context.WithoutCancel(ctx)
	log := logger.FromContextOr(ctx, s.logger)

	if err := s.counter.Increment(ctx); err != nil {
		return "", s.fail(log, "count", err)
	}
	// Separate read: under concurrency this may include other requests' increments.
	count, err := s.counter.Get(ctx)
	if err != nil {
		return "", s.fail(log, "count", err)
	}

	if strings.TrimSpace(query) == "" {
		metrics.QueryRequestsTotal.WithLabelValues(OutcomeRejected).Inc()
		return EmptyQueryAnswer, nil
	}

	if !s.Ready() {
		metrics.QueryRequestsTotal.WithLabelValues(OutcomeUnavailable).Inc()
		if cause := s.BuildError(); cause != nil {
			return "", fmt.Errorf("%w: %w", domain.ErrPipelineUnavailable, cause)
		}
		return "", domain.ErrPipelineUnavailable
	}

	if s.sem != nil {
		if err := s.sem.Acquire(ctx, 1); err != nil {
			return "", s.fail(log, "admit", err)
		}
		defer s.sem.Release(1)
	}

	start := time.Now()
	emb, err := s.embedder.Embed(ctx, query)
	observe("embed", start)
	if err != nil {
		return "", s.fail(log, "embed", err)
	}
	domain.UsageFromContext(ctx).AddEmbedding(emb.TotalTokens)

	start = time.Now()
	hits, err := s.retriever.Search(ctx, emb.Embedding, s.topK)
	observe("retrieve", start)
	if err != nil {
		return "", s.fail(log, "retrieve", err)
	}

	start = time.Now()
	answer, err := s.generator.Generate(ctx, query, hits)
	latency := time.Since(start)
	metrics.QueryStageDuration.WithLabelValues("generate").Observe(latency.Seconds())
	if err != nil {
		return "", s.fail(log, "generate", err)
	}

	metrics.QueryRequestsTotal.WithLabelValues(OutcomeCompleted).Inc()
	log.Info("Query answered",
		zap.Int64("request_counter", count),
		zap.Duration("llm_invoke_latency", latency),
		zap.Int("retrieved", len(hits)),
	)
	return answer, nil
}

func (s *Service) fail(log *zap.Logger, stage string, err error) error {
	metrics.QueryRequestsTotal.WithLabelValues(OutcomeFailed).Inc()
	log.Error("Error handling query", zap.String("stage", stage), zap.Error(err))
	if errors.Is(err, domain.ErrPipelineFailed) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", stage, domain.ErrPipelineFailed, err)
}

func observe(stage string, start time.Time) {
	metrics.QueryStageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}
