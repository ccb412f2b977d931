package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("NewRedisClient: ping: %w", err)
	}
	return rdb, nil
}

// Entry is one cached command response, replayed verbatim when the same
// account retries the same idempotency key.
type Entry struct {
	RequestHash string `json:"request_hash"`
	StatusCode  int    `json:"status_code"`
	Body        []byte `json:"body"`
}

// IdempotencyCache stores HTTP responses keyed by account and
// Idempotency-Key. Domain-level idempotency lives on the transactions
// table; this cache only short-circuits transport retries.
type IdempotencyCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewIdempotencyCache(rdb *redis.Client, ttl time.Duration) *IdempotencyCache {
	return &IdempotencyCache{rdb: rdb, ttl: ttl}
}

func (c *IdempotencyCache) Get(ctx context.Context, accountID uuid.UUID, key string) (*Entry, error) {
	raw, err := c.rdb.Get(ctx, cacheKey(accountID, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}

	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("Get: decode: %w", err)
	}
	return &e, nil
}

func (c *IdempotencyCache) Set(ctx context.Context, accountID uuid.UUID, key string, e *Entry) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("Set: encode: %w", err)
	}
	if err := c.rdb.Set(ctx, cacheKey(accountID, key), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("Set: %w", err)
	}
	return nil
}

func cacheKey(accountID uuid.UUID, key string) string {
	return "idem:" + accountID.String() + ":" + key
}
