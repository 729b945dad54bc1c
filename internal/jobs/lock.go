package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// Locker provides best-effort mutual exclusion between overlapping worker
// invocations. It is a deployment choice: single-instance deployments run
// with NoopLocker, multi-instance deployments back it with Redis.
type Locker interface {
	// Acquire returns false when another holder owns the lock.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// NoopLocker always grants the lock.
type NoopLocker struct{}

func (NoopLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return true, nil
}

func (NoopLocker) Release(ctx context.Context, key string) error { return nil }

// RedisLocker implements a lease lock with SET NX PX. Release only deletes
// the key when this instance still holds it; an expired lease is left for
// the next holder. The check-then-delete is not atomic, which is accepted
// for a best-effort lock guarding idempotent batch processing.
type RedisLocker struct {
	client *redis.Client
	token  string
}

// NewRedisLocker creates a locker identified by a per-process token.
func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client, token: uuid.NewString()}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, key, l.token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lock %q: %w", key, err)
	}
	return ok, nil
}

func (l *RedisLocker) Release(ctx context.Context, key string) error {
	holder, err := l.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil
		}
		return fmt.Errorf("inspect lock %q: %w", key, err)
	}
	if holder != l.token {
		return nil
	}
	if err := l.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("release lock %q: %w", key, err)
	}
	return nil
}

var (
	_ Locker = NoopLocker{}
	_ Locker = (*RedisLocker)(nil)
)
