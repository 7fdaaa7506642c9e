package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// Lookup finds the stored report id for a content hash.
type Lookup func(ctx context.Context, hash string) (string, error)

// ErrNotFound is returned by a Lookup that has no report for the hash.
var ErrNotFound = errors.New("report not found")

// ReportCache remembers which file contents already have a stored report,
// so unchanged files are not stored twice.
type ReportCache struct {
	lookup Lookup
	mu     sync.RWMutex
	memory map[string]string // content hash → report id
}

// NewReportCache creates a cache backed by the extraction_reports table.
func NewReportCache(pool *pgxpool.Pool) *ReportCache {
	return NewReportCacheWith(func(ctx context.Context, hash string) (string, error) {
		var id string
		err := pool.QueryRow(ctx,
			`SELECT id::text FROM extraction_reports WHERE content_hash = $1 ORDER BY created_at DESC LIMIT 1`,
			hash).Scan(&id)
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return id, err
	})
}

// NewReportCacheWith creates a cache over an arbitrary lookup.
func NewReportCacheWith(lookup Lookup) *ReportCache {
	return &ReportCache{lookup: lookup, memory: make(map[string]string)}
}

// Get returns the report id for hash. Lookup errors other than not found are
// logged and treated as a miss.
func (c *ReportCache) Get(ctx context.Context, hash string) (string, bool) {
	// Check in-memory cache first.
	c.mu.RLock()
	if v, ok := c.memory[hash]; ok {
		c.mu.RUnlock()
		return v, true
	}
	c.mu.RUnlock()

	id, err := c.lookup(ctx, hash)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			log.Warn().Err(err).Str("hash", hash).Msg("Report cache lookup failed")
		}
		return "", false
	}

	c.mu.Lock()
	c.memory[hash] = id
	c.mu.Unlock()

	return id, true
}

// Set records a stored report.
func (c *ReportCache) Set(hash, id string) {
	c.mu.Lock()
	c.memory[hash] = id
	c.mu.Unlock()
}

// Len returns the number of hashes held in memory.
func (c *ReportCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.memory)
}

// Preload loads every stored hash into memory.
func Preload(ctx context.Context, pool *pgxpool.Pool, c *ReportCache) error {
	rows, err := pool.Query(ctx, `SELECT DISTINCT ON (content_hash) content_hash, id::text FROM extraction_reports ORDER BY content_hash, created_at DESC`)
	if err != nil {
		return fmt.Errorf("preload cache: %w", err)
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		var hash, id string
		if err := rows.Scan(&hash, &id); err != nil {
			return fmt.Errorf("preload cache: %w", err)
		}
		c.Set(hash, id)
		n++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("preload cache: %w", err)
	}

	log.Info().Int("count", n).Msg("Preloaded report cache")
	return nil
}
