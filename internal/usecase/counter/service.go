// Package counter counts answered queries in durable storage.
package counter

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/reviewqa/internal/metrics"
)

// Service wraps a Store and mirrors the last observed value into a gauge.
type Service struct {
	store Store
}

// New creates a counter service.
func New(store Store) *Service {
	return &Service{store: store}
}

// Increment adds one to the counter.
func (s *Service) Increment(ctx context.Context) error {
	if err := s.store.Increment(ctx); err != nil {
		return fmt.Errorf("increment: %w", err)
	}
	return nil
}

// Get reads the counter fresh from the store.
func (s *Service) Get(ctx context.Context) (int64, error) {
	v, err := s.store.Get(ctx)
	if err != nil {
		return 0, fmt.Errorf("get: %w", err)
	}
	metrics.RequestCounterValue.Set(float64(v))
	return v, nil
}

// Reset sets the counter to zero.
func (s *Service) Reset(ctx context.Context) error {
	if err := s.store.Reset(ctx); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	metrics.RequestCounterValue.Set(0)
	return nil
}

// Ping checks the store.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx) //nolint:wrapcheck // transparent
}
