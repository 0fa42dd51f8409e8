// Package redis keeps the request counter in a single Redis string key.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/kailas-cloud/reviewqa/internal/db"
	"github.com/kailas-cloud/reviewqa/internal/domain"
)

// Key holds the counter value.
const Key = domain.KeyPrefix + "counter:requests"

// store is the consumer interface (ISP).
type store interface {
	db.Pinger
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetNX(ctx context.Context, key string, value []byte) (bool, error)
	Incr(ctx context.Context, key string) (int64, error)
}

// Store is a request counter backed by Redis INCR.
type Store struct {
	store store
}

// NewStore seeds the counter with 0 unless it already exists.
func NewStore(ctx context.Context, s store) (*Store, error) {
	if _, err := s.SetNX(ctx, Key, []byte("0")); err != nil {
		return nil, fmt.Errorf("seed counter: %w", err)
	}
	return &Store{store: s}, nil
}

// Increment adds one to the counter.
func (s *Store) Increment(ctx context.Context) error {
	if _, err := s.store.Incr(ctx, Key); err != nil {
		return fmt.Errorf("increment counter: %w", err)
	}
	return nil
}

// Get reads the counter. A missing key reads as 0.
func (s *Store) Get(ctx context.Context) (int64, error) {
	raw, err := s.store.Get(ctx, Key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("read counter: %w", err)
	}
	v, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse counter %q: %w", raw, err)
	}
	return v, nil
}

// Reset sets the counter to zero.
func (s *Store) Reset(ctx context.Context) error {
	if err := s.store.Set(ctx, Key, []byte("0")); err != nil {
		return fmt.Errorf("reset counter: %w", err)
	}
	return nil
}

// Ping checks Redis availability.
func (s *Store) Ping(ctx context.Context) error {
	return s.store.Ping(ctx) //nolint:wrapcheck // transparent
}
