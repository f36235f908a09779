package wallet

import (
	"context"
	"sync"
)

// CacheStore persists the id of the last wallet option the user connected with.
type CacheStore interface {
	// CachedProvider returns "" when nothing is cached.
	CachedProvider(ctx context.Context) (string, error)
	SetCachedProvider(ctx context.Context, id string) error
	ClearCachedProvider(ctx context.Context) error
}

var _ CacheStore = (*MemoryCache)(nil)

// MemoryCache keeps the cached provider for the life of the process.
type MemoryCache struct {
	mu sync.RWMutex
	id string
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{}
}

func (c *MemoryCache) CachedProvider(context.Context) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.id, nil
}

func (c *MemoryCache) SetCachedProvider(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.id = id
	return nil
}

func (c *MemoryCache) ClearCachedProvider(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.id = ""
	return nil
}
