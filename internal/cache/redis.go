package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/voyagehq/bookingcore/config"
	"github.com/voyagehq/bookingcore/internal/repository"
)

// RedisCache backs two concerns: idempotency-key deduplication for retryable
// commands (webhook deliveries, payment callbacks) and a short-lived cache of
// the statistics aggregation.
type RedisCache struct {
	client     *redis.Client
	reserveTTL time.Duration
	resultTTL  time.Duration
	statsTTL   time.Duration
}

func NewRedisCache(cfg config.RedisConfig, reserveTTL, resultTTL, statsTTL time.Duration) *RedisCache {
	return &RedisCache{
		client:     redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}),
		reserveTTL: reserveTTL,
		resultTTL:  resultTTL,
		statsTTL:   statsTTL,
	}
}

// Reserve claims an idempotency key. The first caller wins and proceeds to
// execute the command; replays get claimed=false and should return the stored
// result instead of re-executing. The reservation carries its own short TTL:
// a process that crashes before storing or releasing only blocks retries of
// the key until the reservation lapses, not for the whole result window.
func (c *RedisCache) Reserve(ctx context.Context, key string) (bool, error) {
	return c.client.SetNX(ctx, idemKey(key), "in_flight", c.reserveTTL).Result()
}

// StoreResult records the command outcome under the idempotency key so a
// replay within the TTL window observes the original result.
func (c *RedisCache) StoreResult(ctx context.Context, key string, result any) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, idemKey(key), payload, c.resultTTL).Err()
}

// Result returns the stored outcome for a replayed key. ok is false while the
// first execution is still in flight or the key is unknown.
func (c *RedisCache) Result(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := c.client.Get(ctx, idemKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if string(data) == "in_flight" {
		return nil, false, nil
	}
	return data, true, nil
}

// Release drops a reservation after a failed execution so the caller may
// retry with the same key.
func (c *RedisCache) Release(ctx context.Context, key string) error {
	return c.client.Del(ctx, idemKey(key)).Err()
}

func (c *RedisCache) GetStats(ctx context.Context) (*repository.Statistics, error) {
	data, err := c.client.Get(ctx, statsKey()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var stats repository.Statistics
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (c *RedisCache) SetStats(ctx context.Context, stats *repository.Statistics) error {
	payload, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, statsKey(), payload, c.statsTTL).Err()
}

func idemKey(key string) string {
	return "idem:" + key
}

func statsKey() string {
	return "cache:stats"
}
