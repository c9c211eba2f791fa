package ocr

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"strconv"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// ResultCache is a TTL store of recognition results owned by one Engine.
type ResultCache struct {
	store  *gocache.Cache
	hits   atomic.Int64
	misses atomic.Int64
}

// NewResultCache creates a cache whose entries expire after ttl and are swept every sweep.
func NewResultCache(ttl, sweep time.Duration) *ResultCache {
	return &ResultCache{store: gocache.New(ttl, sweep)}
}

// CacheKey hashes the image identity with the normalized options.
// Size and modification time make a rewritten file a different key.
func CacheKey(path string, info os.FileInfo, opts Options) string {
	h := sha256.New()
	h.Write([]byte(path))
	h.Write([]byte{0})
	if info != nil {
		h.Write([]byte(strconv.FormatInt(info.Size(), 10)))
		h.Write([]byte{0})
		h.Write([]byte(strconv.FormatInt(info.ModTime().UnixNano(), 10)))
		h.Write([]byte{0})
	}
	h.Write([]byte(opts.normalized()))
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the stored result and counts the lookup.
func (c *ResultCache) Get(key string) (*Result, bool) {
	if v, ok := c.store.Get(key); ok {
		c.hits.Add(1)
		return v.(*Result), true
	}
	c.misses.Add(1)
	return nil, false
}

// Set stores a result with the default TTL.
func (c *ResultCache) Set(key string, r *Result) {
	c.store.SetDefault(key, r)
}

// Flush drops every entry.
func (c *ResultCache) Flush() {
	c.store.Flush()
}

// CacheStats is a snapshot of cache counters.
type CacheStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Keys   int   `json:"keys"`
}

// Stats reports counters without touching entries.
func (c *ResultCache) Stats() CacheStats {
	return CacheStats{Hits: c.hits.Load(), Misses: c.misses.Load(), Keys: c.store.ItemCount()}
}
