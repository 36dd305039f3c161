package cache

import (
	"context"
	"time"
)

// Store carries cache entries across restarts. Implementations must be safe
// for concurrent use.
type Store interface {
	Load(ctx context.Context) ([]Entry, error)
	Save(ctx context.Context, entries []Entry) error
	DeleteExpired(ctx context.Context, cutoff time.Time) error
	Clear(ctx context.Context) error
	Close() error
}
