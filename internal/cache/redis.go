package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"tokocart/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	defaultTTL = 15 * time.Minute
	maxJitter  = 5 * time.Minute
)

var errStaleVersion = errors.New("cart invalidated during load")

// RedisCache is a CartCache backed by Redis. Entries live for the base TTL
// plus up to five minutes of jitter so carts written together do not expire
// together. Each cart has a version key that Delete increments; Set runs
// under WATCH on it, so a load that raced with a write is never stored.
type RedisCache struct {
	client  redis.UniversalClient
	baseTTL time.Duration
}

// NewRedisCache creates a RedisCache. A non-positive ttl means 15 minutes.
func NewRedisCache(client redis.UniversalClient, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisCache{
		client:  client,
		baseTTL: ttl,
	}
}

func (r *RedisCache) Get(ctx context.Context, userID string) ([]models.CartLine, error) {
	data, err := r.client.Get(ctx, cacheKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var lines []models.CartLine
	if err := json.Unmarshal(data, &lines); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}
	return lines, nil
}

func (r *RedisCache) Version(ctx context.Context, userID string) (int64, error) {
	v, err := readVersion(ctx, r.client, userID)
	if err != nil {
		return 0, fmt.Errorf("redis get version failed: %w", err)
	}
	return v, nil
}

func (r *RedisCache) Set(ctx context.Context, userID string, version int64, lines []models.CartLine) error {
	rows := make([]models.CartLine, len(lines))
	for i, l := range lines {
		l.Product = nil
		rows[i] = l
	}
	data, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}

	ttl := r.baseTTL + rand.N(maxJitter)
	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := readVersion(ctx, tx, userID)
		if err != nil {
			return err
		}
		if current != version {
			return errStaleVersion
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, cacheKey(userID), data, ttl)
			return nil
		})
		return err
	}, versionKey(userID))
	if errors.Is(err, errStaleVersion) || errors.Is(err, redis.TxFailedErr) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisCache) Delete(ctx context.Context, userID string) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, versionKey(userID))
		pipe.Expire(ctx, versionKey(userID), 2*(r.baseTTL+maxJitter))
		pipe.Del(ctx, cacheKey(userID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

// readVersion treats a missing version key as version 0.
func readVersion(ctx context.Context, c redis.Cmdable, userID string) (int64, error) {
	v, err := c.Get(ctx, versionKey(userID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

func cacheKey(userID string) string {
	return fmt.Sprintf("cart:%s", userID)
}

func versionKey(userID string) string {
	return fmt.Sprintf("cartver:%s", userID)
}
