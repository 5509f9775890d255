package adapter

import (
	"context"
	"time"
)

// Locker guards work that must run on one replica at a time, such as the
// expiry sweep. TryLock returns domain.ErrLockNotAcquired when another
// holder owns key.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}
