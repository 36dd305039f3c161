package cache

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Flusher runs the cache's periodic maintenance until the context is
// canceled, then performs one final flush so pending entries survive
// shutdown.
type Flusher struct {
	Cache    *Cache
	Interval time.Duration
	Logger   zerolog.Logger
}

const defaultFlushInterval = 5 * time.Minute

func (f *Flusher) interval() time.Duration {
	if f.Interval > 0 {
		return f.Interval
	}
	return defaultFlushInterval
}

func (f *Flusher) Run(ctx context.Context) {
	ticker := time.NewTicker(f.interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := f.Cache.Flush(flushCtx); err != nil {
				f.Logger.Error().Err(err).Msg("final cache flush failed")
			}
			cancel()
			return
		case <-ticker.C:
			if err := f.Cache.Flush(ctx); err != nil {
				f.Logger.Error().Err(err).Msg("cache flush failed")
			}
		}
	}
}
