package refund

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Guard prevents the same cancellation record from being dispatched to the
// processor twice, no matter which process retries.
type Guard interface {
	Acquire(ctx context.Context, key string) (bool, error)
}

type redisGuard struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisGuard(rdb *redis.Client) Guard {
	return &redisGuard{rdb: rdb, ttl: 24 * time.Hour}
}

func (g *redisGuard) Acquire(ctx context.Context, key string) (bool, error) {
	return g.rdb.SetNX(ctx, key, "1", g.ttl).Result()
}
