package credentials

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// LimitedRedisClient is the limited set of functionality expected from the redis client by the durable medium.
// This allows for easy swapping of the client. The universal redis client interface is way too big.
type LimitedRedisClient interface {
	// GET key
	Get(ctx context.Context, key string) *redis.StringCmd
	// SET key value [PX milliseconds]
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	// DEL key [key ...]
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	// PTTL key
	PTTL(ctx context.Context, key string) *redis.DurationCmd
}
