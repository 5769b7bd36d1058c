package limiter

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	failsPrefix = "login:fails:"
	blockPrefix = "login:block:"
)

// Redis keeps counters in Redis so lockouts hold across replicas.
// Failure counters expire after the window; blocks expire after BlockFor.
type Redis struct {
	client redis.UniversalClient
	policy Policy
}

var _ Limiter = (*Redis)(nil)

// NewRedis constructs a Redis-backed limiter.
func NewRedis(client redis.UniversalClient, p Policy) *Redis {
	return &Redis{client: client, policy: p}
}

// Allow reports whether login is currently allowed and a retry-after duration.
func (r *Redis) Allow(ctx context.Context, email, client string) (bool, time.Duration, error) {
	if r.policy.MaxFails <= 0 {
		return true, 0, nil
	}
	ttl, err := r.client.PTTL(ctx, blockPrefix+key(email, client)).Result()
	if err != nil {
		return false, 0, err
	}
	// PTTL is negative when the key is absent.
	if ttl > 0 {
		return false, ttl, nil
	}
	return true, 0, nil
}

// Success resets counters for (email, client).
func (r *Redis) Success(ctx context.Context, email, client string) error {
	k := key(email, client)
	return r.client.Del(ctx, failsPrefix+k, blockPrefix+k).Err()
}

// Failure records a failed attempt; may set a block until a future time.
func (r *Redis) Failure(ctx context.Context, email, client string) (bool, time.Duration, error) {
	if r.policy.MaxFails <= 0 {
		return false, 0, nil
	}
	k := key(email, client)
	var incr *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, failsPrefix+k)
		p.ExpireNX(ctx, failsPrefix+k, r.policy.Window)
		return nil
	})
	if err != nil {
		return false, 0, err
	}
	if incr.Val() < int64(r.policy.MaxFails) {
		return false, 0, nil
	}
	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, blockPrefix+k, 1, r.policy.BlockFor)
		p.Del(ctx, failsPrefix+k)
		return nil
	})
	if err != nil {
		return false, 0, err
	}
	return true, r.policy.BlockFor, nil
}
