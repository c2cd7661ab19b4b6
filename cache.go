package reqflow

import (
	"context"
	"hash/fnv"
	"sync"
	"time"
)

const defaultShardCount = 16

// MemoryCache is a sharded in-process ResponseCache. Entries expire after the
// TTL derived from the response's Cache-Control header, or the default TTL.
type MemoryCache struct {
	shards     []*cacheShard
	numShards  int
	defaultTTL time.Duration
}

type cacheShard struct {
	mu    sync.RWMutex
	store map[string]*memoryEntry
}

type memoryEntry struct {
	result    *CachedResult
	expiresAt time.Time
}

// NewMemoryCache creates a MemoryCache whose entries live for ttl unless the
// response says otherwise.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	shards := make([]*cacheShard, defaultShardCount)
	for i := range shards {
		shards[i] = &cacheShard{
			store: make(map[string]*memoryEntry),
		}
	}
	return &MemoryCache{
		shards:     shards,
		numShards:  defaultShardCount,
		defaultTTL: ttl,
	}
}

func (c *MemoryCache) getShard(key string) *cacheShard {
	hash := fnv.New32a()
	hash.Write([]byte(key))
	return c.shards[hash.Sum32()%uint32(c.numShards)]
}

// Get returns the entry for key or ErrCacheMiss.
func (c *MemoryCache) Get(_ context.Context, key string) (*CachedResult, error) {
	shard := c.getShard(key)
	shard.mu.RLock()
	entry, exists := shard.store[key]
	shard.mu.RUnlock()

	if !exists {
		return nil, ErrCacheMiss
	}

	if time.Now().After(entry.expiresAt) {
		shard.mu.Lock()
		if shard.store[key] == entry {
			delete(shard.store, key)
		}
		shard.mu.Unlock()
		return nil, ErrCacheMiss
	}

	return entry.result, nil
}

// Set stores result under key. Responses marked no-store are skipped.
func (c *MemoryCache) Set(_ context.Context, key string, result *CachedResult) error {
	ttl, ok := resultTTL(result, c.defaultTTL)
	if !ok {
		return nil
	}

	shard := c.getShard(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	shard.store[key] = &memoryEntry{
		result:    result,
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}

// Delete removes the entry for key.
func (c *MemoryCache) Delete(key string) {
	shard := c.getShard(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	delete(shard.store, key)
}

// Clear removes all entries.
func (c *MemoryCache) Clear() {
	for _, shard := range c.shards {
		shard.mu.Lock()
		shard.store = make(map[string]*memoryEntry)
		shard.mu.Unlock()
	}
}

// Len returns the number of stored entries, expired ones included.
func (c *MemoryCache) Len() int {
	total := 0
	for _, shard := range c.shards {
		shard.mu.RLock()
		total += len(shard.store)
		shard.mu.RUnlock()
	}
	return total
}
