package redis

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// ViewCache is a JSON-backed Redis cache for a single value type. Keys are
// namespaced by prefix; a zero ttl keeps keys forever.
type ViewCache[T any] struct {
	client *goredis.Client
	logger *slog.Logger
	prefix string
	ttl    time.Duration
}

func NewViewCache[T any](client *goredis.Client, logger *slog.Logger, prefix string, ttl time.Duration) *ViewCache[T] {
	return &ViewCache[T]{client: client, logger: logger, prefix: prefix, ttl: ttl}
}

func (c *ViewCache[T]) key(k string) string {
	return c.prefix + k
}

// Get returns (nil, false) on any miss or decode error.
func (c *ViewCache[T]) Get(ctx context.Context, key string) (*T, bool) {
	data, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		if err != goredis.Nil {
			c.logger.Warn("view cache read failed", "key", c.key(key), "error", err)
		}
		return nil, false
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		c.logger.Warn("view cache decode failed", "key", c.key(key), "error", err)
		return nil, false
	}
	return &v, true
}

// Set logs failures instead of returning them; a missed write only costs a
// later store read.
func (c *ViewCache[T]) Set(ctx context.Context, key string, value *T) {
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("view cache encode failed", "key", c.key(key), "error", err)
		return
	}
	if err := c.client.Set(ctx, c.key(key), data, c.ttl).Err(); err != nil {
		c.logger.Warn("view cache write failed", "key", c.key(key), "error", err)
	}
}

func (c *ViewCache[T]) Delete(ctx context.Context, key string) {
	if err := c.client.Del(ctx, c.key(key)).Err(); err != nil {
		c.logger.Warn("view cache delete failed", "key", c.key(key), "error", err)
	}
}
