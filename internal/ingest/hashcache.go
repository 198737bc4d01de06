package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// HashCache is a best-effort Redis front for recently seen content hashes.
// It lets a scrape run skip the database round-trip for content observed in
// the recent past. The UNIQUE constraint on content_hash remains the source
// of truth: a cache miss or a Redis outage costs an extra insert attempt,
// never a duplicate row.
type HashCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewHashCache connects to Redis at the given URL. The TTL bounds how long a
// hash stays cached.
func NewHashCache(redisURL string, ttl time.Duration, logger *slog.Logger) (*HashCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	return &HashCache{
		client: redis.NewClient(opts),
		ttl:    ttl,
		logger: logger,
	}, nil
}

// Ping verifies connectivity.
func (c *HashCache) Ping(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.client.Ping(ctx).Err()
}

// Seen reports whether the hash was marked recently. A nil cache or a Redis
// error reads as unseen, which falls through to the database.
func (c *HashCache) Seen(ctx context.Context, hash string) bool {
	if c == nil {
		return false
	}

	n, err := c.client.Exists(ctx, c.key(hash)).Result()
	if err != nil {
		c.logger.Debug("hash cache lookup failed", "error", err)
		return false
	}

	return n > 0
}

// Mark records a hash as seen. Failures are logged and ignored.
func (c *HashCache) Mark(ctx context.Context, hash string) {
	if c == nil {
		return
	}

	if err := c.client.Set(ctx, c.key(hash), 1, c.ttl).Err(); err != nil {
		c.logger.Debug("hash cache write failed", "error", err)
	}
}

// Close releases the Redis connection.
func (c *HashCache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}

func (c *HashCache) key(hash string) string {
	return "driftline:seen:" + hash
}
