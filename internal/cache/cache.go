// Package cache keeps course rating aggregates in Redis so rating reads do
// not hit the document store.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/lilylongbay/kiwispark/internal/domain"
)

const keyPrefix = "course:rating:"

// RedisCache stores one JSON value per course with a TTL.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

type entry struct {
	Average float64 `json:"average"`
	Count   int64   `json:"count"`
}

// NewRedisCache wraps client. A zero ttl keeps entries until overwritten.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func key(courseID string) string { return keyPrefix + courseID }

// Get returns the cached aggregate and whether it was present.
func (c *RedisCache) Get(ctx context.Context, courseID string) (domain.RatingAggregate, bool, error) {
	raw, err := c.client.Get(ctx, key(courseID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.RatingAggregate{}, false, nil
	}
	if err != nil {
		return domain.RatingAggregate{}, false, fmt.Errorf("redis get %s: %w", courseID, err)
	}

	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		// a corrupt entry is a miss; the next Set overwrites it
		return domain.RatingAggregate{}, false, nil
	}
	return domain.RatingAggregate{Average: e.Average, Count: e.Count}, true, nil
}

// maxSetAttempts bounds the optimistic WATCH loop in Set.
const maxSetAttempts = 3

// Set stores agg for courseID unless the cached entry already reflects more
// reviews. Aggregates only grow, so a lower count is always older.
func (c *RedisCache) Set(ctx context.Context, courseID string, agg domain.RatingAggregate) error {
	raw, err := json.Marshal(entry{Average: agg.Average, Count: agg.Count})
	if err != nil {
		return fmt.Errorf("encode aggregate: %w", err)
	}
	k := key(courseID)

	txf := func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, k).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if err == nil {
			var e entry
			if json.Unmarshal(cur, &e) == nil && e.Count > agg.Count {
				return nil
			}
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, k, raw, c.ttl)
			return nil
		})
		return err
	}

	for i := 0; i < maxSetAttempts; i++ {
		err = c.client.Watch(ctx, txf, k)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	if err != nil {
		return fmt.Errorf("redis set %s: %w", courseID, err)
	}
	return nil
}

// Fill stores agg only when no entry exists. Readers use it so a value read
// before a concurrent commit never replaces the committed one.
func (c *RedisCache) Fill(ctx context.Context, courseID string, agg domain.RatingAggregate) error {
	raw, err := json.Marshal(entry{Average: agg.Average, Count: agg.Count})
	if err != nil {
		return fmt.Errorf("encode aggregate: %w", err)
	}
	if err := c.client.SetNX(ctx, key(courseID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis setnx %s: %w", courseID, err)
	}
	return nil
}

// Invalidate drops the entry for courseID.
func (c *RedisCache) Invalidate(ctx context.Context, courseID string) error {
	if err := c.client.Del(ctx, key(courseID)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", courseID, err)
	}
	return nil
}

// Ping checks connectivity.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
