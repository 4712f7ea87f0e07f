package store

import (
	"sync/atomic"

	"github.com/dgraph-io/ristretto/v2"
)

// ValueCache caches raw value bytes by key. Each entry remembers the file
// generation and log location it was read from and is only served while the
// index still points there, so neither a racing insert nor a GC can make Get
// return a superseded value.
type ValueCache struct {
	cache  *ristretto.Cache[string, *cachedValue]
	hits   uint64
	misses uint64
}

type cachedValue struct {
	gen  uint64
	loc  Location
	data []byte
}

// NewValueCache creates a cache holding up to maxBytes of value data.
func NewValueCache(maxBytes int64) (*ValueCache, error) {
	// Assume ~64 byte values for the admission counters, 10x as recommended.
	numCounters := maxBytes / 64 * 10
	if numCounters < 1000 {
		numCounters = 1000
	}
	cache, err := ristretto.NewCache(&ristretto.Config[string, *cachedValue]{
		NumCounters: numCounters,
		MaxCost:     maxBytes,
		BufferItems: 64,
		Cost: func(v *cachedValue) int64 {
			return int64(len(v.data)) + 32
		},
	})
	if err != nil {
		return nil, err
	}
	return &ValueCache{cache: cache}, nil
}

// Get returns the cached bytes for key if they were read from loc in
// generation gen.
func (c *ValueCache) Get(key string, gen uint64, loc Location) ([]byte, bool) {
	v, ok := c.cache.Get(key)
	if ok && v.gen == gen && v.loc == loc {
		atomic.AddUint64(&c.hits, 1)
		return v.data, true
	}
	atomic.AddUint64(&c.misses, 1)
	return nil, false
}

// Put records data as the value of key at loc in generation gen. Admission
// is asynchronous and may be refused by the cache policy.
func (c *ValueCache) Put(key string, gen uint64, loc Location, data []byte) {
	c.cache.Set(key, &cachedValue{gen: gen, loc: loc, data: data}, 0)
}

// Invalidate drops key from the cache.
func (c *ValueCache) Invalidate(key string) {
	c.cache.Del(key)
}

// Stats returns hit and miss counts.
func (c *ValueCache) Stats() (hits, misses uint64) {
	return atomic.LoadUint64(&c.hits), atomic.LoadUint64(&c.misses)
}

// Clear empties the cache.
func (c *ValueCache) Clear() {
	c.cache.Clear()
}

// Wait blocks until buffered writes have been applied.
func (c *ValueCache) Wait() {
	c.cache.Wait()
}

// Close stops the cache's background goroutines.
func (c *ValueCache) Close() {
	c.cache.Close()
}
