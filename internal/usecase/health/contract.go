package health

import "context"

// CounterPinger checks request counter storage availability.
type CounterPinger interface {
	Ping(ctx context.Context) error
}

// PipelineState reports whether the retrieval pipeline was built.
type PipelineState interface {
	Ready() bool
}

// EmbeddingChecker checks embedding provider availability.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}
