// Package idempotency guards order creation against replayed requests.
package idempotency

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
)

// DefaultTTL is how long a claimed key blocks replays.
const DefaultTTL = 24 * time.Hour

const keyPrefix = "idempotency:order:"

// Guard claims request keys so that a request is processed at most once.
type Guard interface {
	// Claim reports whether key was free and is now held by the caller.
	Claim(ctx context.Context, key string) (bool, error)
	// Release frees a claimed key so the request may be retried.
	Release(ctx context.Context, key string) error
}

// Nop is a Guard that lets every request through.
type Nop struct{}

// Claim always succeeds.
func (Nop) Claim(context.Context, string) (bool, error) { return true, nil }

// Release is a no-op.
func (Nop) Release(context.Context, string) error { return nil }

var _ Guard = (*RedisGuard)(nil)

// RedisGuard implements Guard with SET NX and a TTL.
type RedisGuard struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisGuard returns a RedisGuard. A non-positive ttl means DefaultTTL.
func NewRedisGuard(client redis.UniversalClient, ttl time.Duration) *RedisGuard {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisGuard{client: client, ttl: ttl}
}

// Claim sets the key if it does not exist yet.
func (g *RedisGuard) Claim(ctx context.Context, key string) (bool, error) {
	ok, err := g.client.SetNX(ctx, keyPrefix+key, 1, g.ttl).Result()
	if err != nil {
		return false, errors.Wrapf(err, "claim %q", key)
	}
	return ok, nil
}

// Release deletes the key.
func (g *RedisGuard) Release(ctx context.Context, key string) error {
	if err := g.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		return errors.Wrapf(err, "release %q", key)
	}
	return nil
}

// Ping checks that Redis is reachable.
func (g *RedisGuard) Ping(ctx context.Context) error {
	return g.client.Ping(ctx).Err()
}
