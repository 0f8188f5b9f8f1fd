package cache

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/FocuswithJustin/Scribe/core/ir"
)

// ResultCache holds encoded parse results keyed by format, options and
// source content. The memory tier is consulted first; disk hits are
// promoted into it.
type ResultCache struct {
	mem  *TTLCache[string, []byte]
	disk *Store
	ttl  time.Duration
}

// NewResultCache creates a cache. disk may be nil for a memory-only cache.
func NewResultCache(ttl time.Duration, size int, disk *Store) *ResultCache {
	return &ResultCache{mem: New[string, []byte](ttl, size), disk: disk, ttl: ttl}
}

// Key identifies a parse of source as format under opts.
func Key(format string, opts ir.ParseOptions, source []byte) string {
	return ir.HashString(fmt.Sprintf("%s\x00%t\x00%t\x00%d\x00%s",
		format, opts.PreserveSourceInfo, opts.EmbedResources, opts.MaxDepth, ir.HashBytes(source)))
}

// Get returns the cached bytes for key.
func (c *ResultCache) Get(key string) ([]byte, bool) {
	if v, ok := c.mem.Get(key); ok {
		return v, true
	}
	if c.disk == nil {
		return nil, false
	}
	v, ok, err := c.disk.Get(key)
	if err != nil {
		slog.Warn("cache read failed", "key", key, "error", err)
		return nil, false
	}
	if ok {
		c.mem.Set(key, v)
	}
	return v, ok
}

// Put stores value in both tiers. A disk failure is logged and
// otherwise ignored.
func (c *ResultCache) Put(key string, value []byte) {
	c.mem.Set(key, value)
	if c.disk == nil {
		return
	}
	if err := c.disk.Put(key, value, c.ttl); err != nil {
		slog.Warn("cache write failed", "key", key, "error", err)
	}
}

// Stats reports memory tier statistics.
func (c *ResultCache) Stats() Stats {
	return c.mem.Stats()
}

// Close closes the disk tier, if any.
func (c *ResultCache) Close() error {
	if c.disk == nil {
		return nil
	}
	return c.disk.Close()
}
