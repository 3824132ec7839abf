package holidays

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"smflab/internal/metrics"
)

// RedisCache stores holiday sets per region and year in Redis.
// Cache failures fall through to the wrapped provider.
type RedisCache struct {
	next   Provider
	redis  *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewRedisCache wraps next with a Redis cache.
func NewRedisCache(next Provider, client *redis.Client, ttl time.Duration, logger *zerolog.Logger) *RedisCache {
	return &RedisCache{
		next:   next,
		redis:  client,
		ttl:    ttl,
		logger: logger.With().Str("component", "holiday_cache").Logger(),
	}
}

func cacheKey(region string, year int) string {
	return fmt.Sprintf("smflab:holidays:%s:%d", strings.ToUpper(region), year)
}

// Holidays implements Provider.
func (c *RedisCache) Holidays(ctx context.Context, region string, years []int) (Set, error) {
	out := NewSet()
	var missing []int
	for _, year := range years {
		var dates []string
		if c.readCache(ctx, cacheKey(region, year), &dates) {
			metrics.IncHolidayCache(true)
			for _, d := range dates {
				out[d] = struct{}{}
			}
			continue
		}
		metrics.IncHolidayCache(false)
		missing = append(missing, year)
	}
	if len(missing) == 0 {
		return out, nil
	}

	for _, year := range missing {
		fresh, err := c.next.Holidays(ctx, region, []int{year})
		if err != nil {
			return nil, err
		}
		c.writeCache(ctx, cacheKey(region, year), fresh.Sorted())
		out.Merge(fresh)
	}
	return out, nil
}

func (c *RedisCache) readCache(ctx context.Context, key string, out interface{}) bool {
	if c.redis == nil || c.ttl <= 0 {
		return false
	}
	val, err := c.redis.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn().Err(err).Str("key", key).Msg("holiday cache read failed")
		}
		return false
	}
	if err := json.Unmarshal([]byte(val), out); err != nil {
		return false
	}
	return true
}

func (c *RedisCache) writeCache(ctx context.Context, key string, val interface{}) {
	if c.redis == nil || c.ttl <= 0 {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("holiday cache write failed")
	}
}
