package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/annfeed/internal/logging"
	"github.com/dmitrijs2005/annfeed/internal/server/models"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultRedisPrefix = "annfeed:ann:"
	scanCount          = 100
)

// RedisClient is the subset of *redis.Client the cache uses.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd
}

// RedisCache shares entries between service replicas. Values are JSON
// encoded and expire server-side, so Expired and Entries stay zero.
type RedisCache struct {
	client RedisClient
	prefix string
	ttl    time.Duration
	log    logging.Logger

	hits   atomic.Uint64
	misses atomic.Uint64
}

func NewRedisCache(client RedisClient, prefix string, ttl time.Duration, log logging.Logger) *RedisCache {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	if log == nil {
		log = logging.Nop{}
	}
	return &RedisCache{client: client, prefix: prefix, ttl: ttl, log: log.With("module", "cache")}
}

func (c *RedisCache) key(k Key) string {
	return c.prefix + k.String()
}

func (c *RedisCache) Get(ctx context.Context, key Key) ([]models.AnnouncementView, bool) {
	raw, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn(ctx, "cache read failed", "key", key.String(), "error", err)
		}
		c.misses.Add(1)
		return nil, false
	}

	var data []models.AnnouncementView
	if err := json.Unmarshal(raw, &data); err != nil {
		c.log.Warn(ctx, "cache entry corrupt", "key", key.String(), "error", err)
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return data, true
}

func (c *RedisCache) Set(ctx context.Context, key Key, data []models.AnnouncementView) {
	raw, err := json.Marshal(data)
	if err != nil {
		c.log.Warn(ctx, "cache encode failed", "key", key.String(), "error", err)
		return
	}
	if err := c.client.Set(ctx, c.key(key), raw, c.ttl).Err(); err != nil {
		c.log.Warn(ctx, "cache write failed", "key", key.String(), "error", err)
	}
}

func (c *RedisCache) Invalidate(ctx context.Context, key Key) {
	if err := c.client.Del(ctx, c.key(key)).Err(); err != nil {
		c.log.Warn(ctx, "cache invalidate failed", "key", key.String(), "error", err)
	}
}

func (c *RedisCache) InvalidateGame(ctx context.Context, game string) {
	c.deleteMatching(ctx, c.prefix+game+":*")
}

func (c *RedisCache) InvalidateAll(ctx context.Context) {
	c.deleteMatching(ctx, c.prefix+"*")
}

func (c *RedisCache) deleteMatching(ctx context.Context, pattern string) {
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, scanCount).Result()
		if err != nil {
			c.log.Warn(ctx, "cache scan failed", "pattern", pattern, "error", err)
			return
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				c.log.Warn(ctx, "cache invalidate failed", "pattern", pattern, "error", err)
			}
		}
		if next == 0 {
			return
		}
		cursor = next
	}
}

func (c *RedisCache) Stats() Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load()}
}
