package counter

import "context"

// Store persists the request counter.
type Store interface {
	Increment(ctx context.Context) error
	Get(ctx context.Context) (int64, error)
	Reset(ctx context.Context) error
	Ping(ctx context.Context) error
}
