// Package cache is the content-addressed translation cache. Identical
// (document, target language) pairs within the retention window are served
// without another round of model calls. Entries live in memory; an optional
// durable store carries them across restarts.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultTTL is the retention window for a cached translation.
const DefaultTTL = 7 * 24 * time.Hour

// Entry is one cached whole-document translation.
type Entry struct {
	Key       string
	Language  string
	Payload   []byte
	CreatedAt time.Time
}

// Stats summarizes the live cache contents.
type Stats struct {
	Count          int            `json:"count"`
	PerLanguage    map[string]int `json:"perLanguage"`
	TotalSizeBytes int            `json:"totalSizeBytes"`
}

// Cache is safe for concurrent use. Expiry is lazy: stale entries are
// dropped when read, and swept in bulk by the periodic Flush.
type Cache struct {
	mu      sync.Mutex
	entries map[string]Entry
	dirty   map[string]struct{}

	ttl    time.Duration
	store  Store
	logger zerolog.Logger
	now    func() time.Time
}

// New builds a cache. store may be nil, in which case entries live only in
// memory for the life of the process.
func New(ttl time.Duration, store Store, logger zerolog.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		entries: make(map[string]Entry),
		dirty:   make(map[string]struct{}),
		ttl:     ttl,
		store:   store,
		logger:  logger,
		now:     time.Now,
	}
}

// Key derives the content-addressed identity of a (document, language)
// pair: a rolling polynomial hash over the serialized document and the
// language, rendered as fixed-width hex.
func Key(document []byte, language string) string {
	var h uint64 = 5381
	for _, b := range document {
		h = h*33 ^ uint64(b)
	}
	h = h*33 ^ 0
	for i := 0; i < len(language); i++ {
		h = h*33 ^ uint64(language[i])
	}
	return fmt.Sprintf("%016x", h)
}

// Warm loads persisted entries into memory. Entries already past the
// retention window are skipped.
func (c *Cache) Warm(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	persisted, err := c.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load cache entries: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	cutoff := c.now().Add(-c.ttl)
	loaded := 0
	for _, entry := range persisted {
		if entry.CreatedAt.Before(cutoff) {
			continue
		}
		c.entries[entry.Key] = entry
		loaded++
	}
	c.logger.Info().Int("entries", loaded).Msg("translation cache warmed from store")
	return nil
}

// Get returns the cached payload for the pair, or false when absent or
// expired.
func (c *Cache) Get(document []byte, language string) ([]byte, bool) {
	key := Key(document, language)

	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(entry.CreatedAt) > c.ttl {
		delete(c.entries, key)
		delete(c.dirty, key)
		return nil, false
	}
	return entry.Payload, true
}

// Put stores a translation, replacing any previous entry for the same pair.
// Durable persistence happens on the next Flush.
func (c *Cache) Put(document []byte, language string, payload []byte) {
	key := Key(document, language)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = Entry{
		Key:       key,
		Language:  language,
		Payload:   payload,
		CreatedAt: c.now(),
	}
	c.dirty[key] = struct{}{}
}

// Clear drops every entry, in memory and in the durable store.
func (c *Cache) Clear(ctx context.Context) error {
	c.mu.Lock()
	c.entries = make(map[string]Entry)
	c.dirty = make(map[string]struct{})
	c.mu.Unlock()

	if c.store == nil {
		return nil
	}
	if err := c.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear cache store: %w", err)
	}
	return nil
}

// Stats reports live entry counts grouped by target language.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := Stats{PerLanguage: make(map[string]int)}
	cutoff := c.now().Add(-c.ttl)
	for _, entry := range c.entries {
		if entry.CreatedAt.Before(cutoff) {
			continue
		}
		stats.Count++
		stats.PerLanguage[entry.Language]++
		stats.TotalSizeBytes += len(entry.Payload)
	}
	return stats
}

// Flush is the periodic maintenance pass: expired entries are swept from
// memory, dirty entries are written to the durable store, and rows past the
// retention window are deleted from it.
func (c *Cache) Flush(ctx context.Context) error {
	c.mu.Lock()
	cutoff := c.now().Add(-c.ttl)
	for key, entry := range c.entries {
		if entry.CreatedAt.Before(cutoff) {
			delete(c.entries, key)
			delete(c.dirty, key)
		}
	}

	var batch []Entry
	if c.store != nil {
		batch = make([]Entry, 0, len(c.dirty))
		for key := range c.dirty {
			if entry, ok := c.entries[key]; ok {
				batch = append(batch, entry)
			}
		}
		c.dirty = make(map[string]struct{})
	}
	c.mu.Unlock()

	if c.store == nil {
		return nil
	}

	if len(batch) > 0 {
		if err := c.store.Save(ctx, batch); err != nil {
			// Put the batch back so the next flush retries it.
			c.mu.Lock()
			for _, entry := range batch {
				c.dirty[entry.Key] = struct{}{}
			}
			c.mu.Unlock()
			return fmt.Errorf("save cache entries: %w", err)
		}
	}

	if err := c.store.DeleteExpired(ctx, cutoff); err != nil {
		return fmt.Errorf("delete expired cache entries: %w", err)
	}
	return nil
}
