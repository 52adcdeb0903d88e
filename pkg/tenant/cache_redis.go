package tenant

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisRecord is the wire shape stored in Redis. The encrypted connection
// target is persisted explicitly since Record excludes it from JSON.
type redisRecord struct {
	Tenant                    Tenant `json:"tenant"`
	EncryptedConnectionTarget string `json:"enc_target"`
}

// RedisCache is a Redis-backed directory cache for multi-instance
// deployments where an in-process cache would be resolved independently
// per replica.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache creates a directory cache on top of an existing Redis client.
// The prefix namespaces keys; it defaults to "tenant:" when empty.
func NewRedisCache(client *redis.Client, prefix string) *RedisCache {
	if prefix == "" {
		prefix = "tenant:"
	}
	return &RedisCache{client: client, prefix: prefix}
}

func (c *RedisCache) key(subdomain string) string {
	return c.prefix + subdomain
}

// Get retrieves a cached record. Redis or decoding failures are treated as
// cache misses so a degraded cache never blocks resolution.
func (c *RedisCache) Get(ctx context.Context, subdomain string) (*Record, bool) {
	payload, err := c.client.Get(ctx, c.key(subdomain)).Bytes()
	if err != nil {
		return nil, false
	}

	var rr redisRecord
	if err := json.Unmarshal(payload, &rr); err != nil {
		return nil, false
	}

	return &Record{
		Tenant:                    rr.Tenant,
		EncryptedConnectionTarget: rr.EncryptedConnectionTarget,
	}, true
}

// Set stores a record with the given TTL. Failures are ignored; the next
// request falls through to the directory.
func (c *RedisCache) Set(ctx context.Context, subdomain string, rec *Record, ttl time.Duration) {
	if rec == nil {
		return
	}
	payload, err := json.Marshal(redisRecord{
		Tenant:                    rec.Tenant,
		EncryptedConnectionTarget: rec.EncryptedConnectionTarget,
	})
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, c.key(subdomain), payload, ttl).Err()
}

// Delete removes a record from the cache.
func (c *RedisCache) Delete(ctx context.Context, subdomain string) {
	_ = c.client.Del(ctx, c.key(subdomain)).Err()
}

// Close is a no-op; the Redis client is owned by the caller.
func (c *RedisCache) Close() error { return nil }
