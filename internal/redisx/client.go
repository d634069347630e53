package redisx

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr})
}

func Exists(ctx context.Context, rdb *redis.Client, key string) (bool, error) {
	n, err := rdb.Exists(ctx, key).Result()
	return n > 0, err
}

// MarkDone records a processed event id. Called after the handler succeeded,
// so a redelivery of a half-processed event is retried, not dropped.
func MarkDone(ctx context.Context, rdb *redis.Client, key string, ttl time.Duration) {
	_ = rdb.Set(ctx, key, "1", ttl).Err()
}
