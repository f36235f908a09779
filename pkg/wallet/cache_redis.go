package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

var _ CacheStore = (*RedisCache)(nil)

// RedisCache stores the cached provider under "<prefix><profile>".
type RedisCache struct {
	client redis.Cmdable
	key    string
}

func NewRedisCache(client redis.Cmdable, profile string) *RedisCache {
	return &RedisCache{
		client: client,
		key:    "signet:cached-provider:" + profile,
	}
}

func (c *RedisCache) CachedProvider(ctx context.Context) (string, error) {
	id, err := c.client.Get(ctx, c.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	} else if err != nil {
		return "", fmt.Errorf("failed to read cached provider: %w", err)
	}
	return id, nil
}

func (c *RedisCache) SetCachedProvider(ctx context.Context, id string) error {
	if err := c.client.Set(ctx, c.key, id, 0).Err(); err != nil {
		return fmt.Errorf("failed to cache provider: %w", err)
	}
	return nil
}

func (c *RedisCache) ClearCachedProvider(ctx context.Context) error {
	if err := c.client.Del(ctx, c.key).Err(); err != nil {
		return fmt.Errorf("failed to clear cached provider: %w", err)
	}
	return nil
}
