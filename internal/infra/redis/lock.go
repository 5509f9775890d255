// File: internal/infra/redis/lock.go
package redis

import (
	"context"
	"time"

	"sports-tips-subscription/internal/domain"
	"sports-tips-subscription/internal/domain/ports/adapter"

	"github.com/google/uuid"
)

var (
	_ adapter.Locker = (*RedisLocker)(nil)
	_ adapter.Locker = (*LocalLocker)(nil)
)

type RedisLocker struct {
	cli     RedisClient
	retries int
	backoff time.Duration
}

func NewLocker(c RedisClient) *RedisLocker {
	return &RedisLocker{cli: c, retries: 5, backoff: 50 * time.Millisecond}
}

// TryLock returns domain.ErrLockNotAcquired when another holder keeps the key
// through every retry.
func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	var lastErr error
	for i := 0; i < l.retries; i++ {
		ok, err := l.cli.SetNX(ctx, key, token, ttl)
		if err == nil && ok {
			return token, nil
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(l.backoff):
		}
	}
	if lastErr != nil {
		return "", lastErr
	}
	return "", domain.ErrLockNotAcquired
}

func (l *RedisLocker) Unlock(ctx context.Context, key, token string) error {
	_, err := l.cli.DelIfEquals(ctx, key, token)
	return err
}

// LocalLocker is the single-process fallback used when Redis is not configured.
type LocalLocker struct {
	held chan struct{}
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(chan struct{}, 1)}
}

func (l *LocalLocker) TryLock(_ context.Context, _ string, _ time.Duration) (string, error) {
	select {
	case l.held <- struct{}{}:
		return "local", nil
	default:
		return "", domain.ErrLockNotAcquired
	}
}

func (l *LocalLocker) Unlock(_ context.Context, _, _ string) error {
	select {
	case <-l.held:
	default:
	}
	return nil
}
