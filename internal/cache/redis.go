package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/introslabs/intros/internal/config"
)

// seenTTL bounds how stale a cached seen set can get if invalidation is
// missed; the visits table remains the source of truth.
const seenTTL = 24 * time.Hour

type RedisCache struct {
	Client *redis.Client
}

// NewRedisCache initializes the Redis client from config. Only Addr is
// mandatory, Password/DB are optional.
func NewRedisCache(cfg *config.Config) *RedisCache {
	opts := &redis.Options{
		Addr: cfg.Redis.Addr,
	}
	if cfg.Redis.Password != "" {
		opts.Password = cfg.Redis.Password
	}
	if cfg.Redis.DB != 0 {
		opts.DB = cfg.Redis.DB
	}
	return &RedisCache{Client: redis.NewClient(opts)}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

// KeyForSeenSet generates the Redis key for a viewer's seen set.
func (c *RedisCache) KeyForSeenSet(viewer string) string {
	return fmt.Sprintf("seen:%s", viewer)
}

// GetSeenSet returns the cached seen set for a viewer. A missing key
// returns (nil, false, nil): cache miss, fall back to the store.
func (c *RedisCache) GetSeenSet(ctx context.Context, viewer string) (map[string]bool, bool, error) {
	key := c.KeyForSeenSet(viewer)
	exists, err := c.Client.Exists(ctx, key).Result()
	if err != nil {
		return nil, false, err
	}
	if exists == 0 {
		return nil, false, nil
	}

	members, err := c.Client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, false, err
	}
	// refresh TTL on access
	_ = c.Client.Expire(ctx, key, seenTTL).Err()

	set := make(map[string]bool, len(members))
	for _, m := range members {
		if m == "" { // placeholder for an empty set
			continue
		}
		set[m] = true
	}
	return set, true, nil
}

// SetSeenSet replaces the cached seen set for a viewer. An empty set is
// cached with a placeholder member so emptiness is distinguishable from
// a miss.
func (c *RedisCache) SetSeenSet(ctx context.Context, viewer string, handles []string) error {
	key := c.KeyForSeenSet(viewer)

	pipe := c.Client.TxPipeline()
	pipe.Del(ctx, key)
	members := make([]interface{}, 0, len(handles)+1)
	members = append(members, "")
	for _, h := range handles {
		members = append(members, h)
	}
	pipe.SAdd(ctx, key, members...)
	pipe.Expire(ctx, key, seenTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// AddSeen appends one handle to a cached seen set, if present. The write
// is skipped on a miss; the next read repopulates from the store.
func (c *RedisCache) AddSeen(ctx context.Context, viewer, viewed string) error {
	key := c.KeyForSeenSet(viewer)
	exists, err := c.Client.Exists(ctx, key).Result()
	if err != nil || exists == 0 {
		return err
	}
	if err := c.Client.SAdd(ctx, key, viewed).Err(); err != nil {
		return err
	}
	return c.Client.Expire(ctx, key, seenTTL).Err()
}

// InvalidateSeen drops a viewer's cached seen set.
func (c *RedisCache) InvalidateSeen(ctx context.Context, viewer string) error {
	return c.Client.Del(ctx, c.KeyForSeenSet(viewer)).Err()
}
