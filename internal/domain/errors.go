package domain

import "errors"

var (
	// ErrDataSourceUnavailable signals a missing or unreadable review corpus.
	ErrDataSourceUnavailable = errors.New("data source unavailable")
	// ErrPipelineUnavailable signals that the retrieval pipeline failed to build at startup.
	ErrPipelineUnavailable = errors.New("pipeline unavailable")
	// ErrPipelineFailed signals a failure while answering a query.
	ErrPipelineFailed = errors.New("pipeline failed")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrGenerationProviderError signals a language model provider failure.
	ErrGenerationProviderError = errors.New("generation provider error")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrIndexNotBuilt signals a search against an index that was never built.
	ErrIndexNotBuilt = errors.New("index not built")
)
