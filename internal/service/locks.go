package service

import (
	"context"
	"time"

	"github.com/nutrifact/console/internal/database"
)

// redisLocker implements Locker over redis SetNX. Locks are best effort:
// the TTL bounds how long a crashed holder can block others.
type redisLocker struct {
	r *database.Redis
}

// NewRedisLocker creates a redis-backed locker.
func NewRedisLocker(r *database.Redis) Locker {
	return &redisLocker{r: r}
}

func (l *redisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return l.r.SetNX(ctx, "lock:"+key, "1", ttl)
}

func (l *redisLocker) Release(ctx context.Context, key string) error {
	return l.r.Delete(ctx, "lock:"+key)
}
