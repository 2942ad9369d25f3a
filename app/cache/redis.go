package cache

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultSeenTTL is how long an ingested article URL is remembered.
const DefaultSeenTTL = 7 * 24 * time.Hour

// Cache wraps a Redis client and remembers which article URLs are already
// stored, so repeated ingest runs skip the database lookup.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache creates a new Redis cache client
func NewCache(ctx context.Context, addr, password string, db int) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	slog.Info("Connected to Redis", "addr", addr, "db", db)

	return &Cache{
		client: client,
		ttl:    DefaultSeenTTL,
	}, nil
}

// GenerateURLKey generates a consistent cache key for an article URL
func (c *Cache) GenerateURLKey(url string) string {
	hash := sha256.Sum256([]byte(url))
	return fmt.Sprintf("article:url:%x", hash[:8])
}

// IsSeen reports whether url was marked within the TTL.
func (c *Cache) IsSeen(ctx context.Context, url string) (bool, error) {
	key := c.GenerateURLKey(url)
	count, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check existence of key %s: %w", key, err)
	}
	return count > 0, nil
}

func (c *Cache) MarkSeen(ctx context.Context, url string) error {
	key := c.GenerateURLKey(url)
	if err := c.client.Set(ctx, key, 1, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}
	return nil
}

// Health returns cache health information
func (c *Cache) Health(ctx context.Context) map[string]interface{} {
	health := map[string]interface{}{
		"status": "healthy",
		"type":   "redis",
	}

	if err := c.client.Ping(ctx).Err(); err != nil {
		health["status"] = "unhealthy"
		health["error"] = err.Error()
		return health
	}

	if size, err := c.client.DBSize(ctx).Result(); err == nil {
		health["key_count"] = size
	}

	return health
}

// Close closes the Redis connection
func (c *Cache) Close() error {
	return c.client.Close()
}
