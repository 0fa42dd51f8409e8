// Package db declares the storage facade shared by the Redis-backed
// counter, embedding cache and vector index.
package db

import (
	"context"
	"time"
)

// Store is the full Redis facade opened once by the composition root.
type Store interface {
	Pinger
	KVStore
	VectorStore
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// KVStore provides the string-key operations used by the counter and the cache.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetNX(ctx context.Context, key string, value []byte) (bool, error)
	Incr(ctx context.Context, key string) (int64, error)
}

// VectorStore manages one FT vector index and the hashes it covers.
type VectorStore interface {
	CreateVectorIndex(ctx context.Context, spec *VectorIndexSpec) error
	DropIndex(ctx context.Context, name string, deleteDocs bool) error
	HSetMulti(ctx context.Context, items []HashSetItem) error
	SearchKNN(ctx context.Context, q *KNNQuery) ([]KNNHit, error)
}

// HashSetItem holds a single key+fields pair for pipelined HSET.
type HashSetItem struct {
	Key    string
	Fields map[string]string
}
