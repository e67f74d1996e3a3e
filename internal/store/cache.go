package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Cache keys. The adviser roster is a single hot entry refreshed from the
// CRM; global-closure entries are keyed per projection range under a
// common prefix so an admin write can sweep every cached range at once.
const (
	adviserRosterKey   = "alloc:advisers:roster"
	closureRangePrefix = "alloc:closures:global:"

	scanBatch = 100
)

func closureRangeKey(from, to time.Time) string {
	return fmt.Sprintf("%s%s:%s", closureRangePrefix,
		from.Format("2006-01-02"), to.Format("2006-01-02"))
}

// Cache is the TTL-bounded read cache in front of the store's hot lookups.
// Every entry carries a TTL; there are no indefinite entries, so admin
// writes only have to invalidate for freshness, never for correctness.
type Cache interface {
	// GetJSON decodes the entry at key into out, reporting whether a
	// usable entry existed.
	GetJSON(ctx context.Context, key string, out any) bool
	SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error
	// InvalidatePrefix removes every entry under prefix.
	InvalidatePrefix(ctx context.Context, prefix string) error
}

// RedisCache implements Cache on a Redis client.
type RedisCache struct {
	c *redis.Client
}

func NewRedisCache(c *redis.Client) *RedisCache { return &RedisCache{c: c} }

func (r *RedisCache) GetJSON(ctx context.Context, key string, out any) bool {
	raw, err := r.c.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	// A corrupt entry is treated as a miss; the TTL will retire it.
	return json.Unmarshal(raw, out) == nil
}

func (r *RedisCache) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode cache entry %s: %w", key, err)
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return r.c.Set(ctx, key, raw, ttl).Err()
}

// InvalidatePrefix walks the keyspace in batches so sweeping a large
// closure cache cannot block Redis.
func (r *RedisCache) InvalidatePrefix(ctx context.Context, prefix string) error {
	var cursor uint64
	for {
		keys, next, err := r.c.Scan(ctx, cursor, prefix+"*", scanBatch).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := r.c.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}
