package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/court-booking/internal/model"
)

// releaseScript deletes the lock only when it still holds our token, so a
// holder whose TTL expired cannot release someone else's lock.
var releaseScript = redis.NewScript(`
    if redis.call('GET', KEYS[1]) == ARGV[1] then
        return redis.call('DEL', KEYS[1])
    end
    return 0
`)

// RedisLocker is a per-key mutual exclusion lock with a TTL. It makes
// concurrent roster mutations of the same reservation fail fast with
// model.ErrLocked instead of overwriting each other.
type RedisLocker struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
	wait   time.Duration
}

// NewRedisLocker returns a locker. wait is how long Acquire retries before
// giving up; zero means a single attempt.
func NewRedisLocker(rdb *redis.Client, prefix string, ttl, wait time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &RedisLocker{rdb: rdb, prefix: prefix, ttl: ttl, wait: wait}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	key = l.prefix + ":" + key
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)
	for {
		ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, model.Upstream("lock store", err)
		}
		if ok {
			return func() {
				// Release even when the request context is gone.
				ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
				defer cancel()
				releaseScript.Run(ctx, l.rdb, []string{key}, token)
			}, nil
		}
		if time.Now().After(deadline) {
			return nil, model.ErrLocked
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}
