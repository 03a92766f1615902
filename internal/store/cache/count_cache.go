// Package cache decorates a crud.Store with a Redis cache for Count.
// Every write bumps a per-collection generation, so cached counts of the
// previous generation are never read again and expire by TTL.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"YcrudAPI/internal/crud"
	"YcrudAPI/internal/logger"

	"github.com/redis/go-redis/v9"
)

type CountCache struct {
	crud.Store
	rdb *redis.Client
	ttl time.Duration
}

func NewCountCache(next crud.Store, rdb *redis.Client, ttl time.Duration) *CountCache {
	return &CountCache{Store: next, rdb: rdb, ttl: ttl}
}

// Ping checks Redis and the wrapped store when it can be pinged.
func (c *CountCache) Ping(ctx context.Context) error {
	if p, ok := c.Store.(interface{ Ping(context.Context) error }); ok {
		if err := p.Ping(ctx); err != nil {
			return err
		}
	}
	return c.rdb.Ping(ctx).Err()
}

func (c *CountCache) Count(ctx context.Context, collection string, filter crud.Filter) (int64, error) {
	key, err := c.countKey(ctx, collection, filter)
	if err != nil {
		logger.Warn("count_cache_key_failed", map[string]any{"collection": collection, "error": err.Error()})
		return c.Store.Count(ctx, collection, filter)
	}

	cached, err := c.rdb.Get(ctx, key).Result()
	if err == nil {
		if n, convErr := strconv.ParseInt(cached, 10, 64); convErr == nil {
			logger.Debug("count_cache_hit", map[string]any{"key": key})
			return n, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		logger.Warn("count_cache_get_failed", map[string]any{"key": key, "error": err.Error()})
	}

	n, err := c.Store.Count(ctx, collection, filter)
	if err != nil {
		return 0, err
	}
	if err := c.rdb.Set(ctx, key, n, c.ttl).Err(); err != nil {
		logger.Warn("count_cache_set_failed", map[string]any{"key": key, "error": err.Error()})
	}
	return n, nil
}

func (c *CountCache) Create(ctx context.Context, collection string, docs ...crud.Document) ([]crud.Document, error) {
	out, err := c.Store.Create(ctx, collection, docs...)
	c.bump(ctx, collection, err)
	return out, err
}

func (c *CountCache) FindOneAndUpdate(ctx context.Context, collection string, filter crud.Filter, set crud.Document) (crud.Document, error) {
	out, err := c.Store.FindOneAndUpdate(ctx, collection, filter, set)
	c.bump(ctx, collection, err)
	return out, err
}

func (c *CountCache) FindOneAndDelete(ctx context.Context, collection string, filter crud.Filter) (crud.Document, error) {
	out, err := c.Store.FindOneAndDelete(ctx, collection, filter)
	c.bump(ctx, collection, err)
	return out, err
}

func (c *CountCache) ReplaceOne(ctx context.Context, collection string, filter crud.Filter, doc crud.Document) error {
	err := c.Store.ReplaceOne(ctx, collection, filter, doc)
	c.bump(ctx, collection, err)
	return err
}

// Flush drops every cached count of the collection.
func (c *CountCache) Flush(ctx context.Context, collection string) error {
	return c.rdb.Incr(ctx, generationKey(collection)).Err()
}

func (c *CountCache) bump(ctx context.Context, collection string, writeErr error) {
	if writeErr != nil {
		return
	}
	if err := c.Flush(ctx, collection); err != nil {
		logger.Warn("count_cache_bump_failed", map[string]any{"collection": collection, "error": err.Error()})
	}
}

func (c *CountCache) countKey(ctx context.Context, collection string, filter crud.Filter) (string, error) {
	gen, err := c.rdb.Get(ctx, generationKey(collection)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", err
	}
	hash, err := FilterHash(filter)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("count:%s:%d:%s", collection, gen, hash), nil
}

func generationKey(collection string) string {
	return "count:" + collection + ":gen"
}

// FilterHash is a stable digest of a filter; encoding/json sorts map keys.
func FilterHash(filter crud.Filter) (string, error) {
	raw, err := json.Marshal(filter)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}
