package aggregation

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RedisCache shares the result cache across engine replicas. Failures are
// treated as cache misses so Redis never becomes a hard dependency of a
// read path.
type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisCache wraps rdb with the given TTL. A nil client yields a cache
// that always misses.
func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl}
}

const redisKeyPrefix = "unimon:aggcache:"

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	if c.rdb == nil {
		return nil, false
	}
	val, err := c.rdb.Get(ctx, redisKeyPrefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Debug().Err(err).Str("key", key).Msg("redis cache get failed")
		}
		return nil, false
	}
	return val, true
}

func (c *RedisCache) Set(ctx context.Context, key string, val []byte) {
	if c.rdb == nil {
		return
	}
	if err := c.rdb.Set(ctx, redisKeyPrefix+key, val, c.ttl).Err(); err != nil {
		log.Debug().Err(err).Str("key", key).Msg("redis cache set failed")
	}
}

func (c *RedisCache) Invalidate(ctx context.Context, key string) {
	if c.rdb == nil {
		return
	}
	if err := c.rdb.Del(ctx, redisKeyPrefix+key).Err(); err != nil {
		log.Debug().Err(err).Str("key", key).Msg("redis cache del failed")
	}
}
