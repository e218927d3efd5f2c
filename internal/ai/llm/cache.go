package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ResponseCache stores completions keyed by (vendor, serialized messages) so
// identical prompts within the TTL do not spend quota twice.
type ResponseCache interface {
	Get(ctx context.Context, key string) (*Completion, bool)
	Set(ctx context.Context, key string, completion *Completion)
}

// CacheKey derives the cache key from the vendor and message list.
func CacheKey(vendor Vendor, systemPrompt, userPrompt string) string {
	payload, _ := json.Marshal([]Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userPrompt},
	})
	sum := sha256.Sum256(append([]byte(vendor), payload...))
	return "ai:response:" + hex.EncodeToString(sum[:])
}

// MemoryCache is the default in-process TTL cache.
type MemoryCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	completion Completion
	expiresAt  time.Time
}

// NewMemoryCache creates an in-memory cache with the given TTL.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &MemoryCache{
		ttl:     ttl,
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// Get returns the cached completion when present and unexpired.
func (c *MemoryCache) Get(_ context.Context, key string) (*Completion, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || c.now().After(entry.expiresAt) {
		return nil, false
	}
	completion := entry.completion
	return &completion, true
}

// Set stores the completion, evicting expired entries opportunistically.
func (c *MemoryCache) Set(_ context.Context, key string, completion *Completion) {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
		}
	}
	c.entries[key] = memoryEntry{completion: *completion, expiresAt: now.Add(c.ttl)}
}

// RedisCache backs the response cache with Redis so multiple processes share
// one spend budget. Errors degrade to cache misses.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache creates a Redis-backed response cache.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, key string) (*Completion, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var completion Completion
	if err := json.Unmarshal(data, &completion); err != nil {
		return nil, false
	}
	return &completion, true
}

func (c *RedisCache) Set(ctx context.Context, key string, completion *Completion) {
	data, err := json.Marshal(completion)
	if err != nil {
		return
	}
	c.client.Set(ctx, key, data, c.ttl)
}
