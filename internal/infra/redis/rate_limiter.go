package redis

import (
	"context"
	"fmt"
	"time"
)

// RateLimiter counts hits per key in a fixed window that opens on the first
// hit. The admin API feeds it failed authentication attempts per address.
type RateLimiter struct {
	client RedisClient
}

func NewRateLimiter(client RedisClient) *RateLimiter {
	return &RateLimiter{client: client}
}

// Allow records a hit and reports whether key is still within limit.
func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	hits, err := r.client.Incr(ctx, key)
	if err != nil {
		return false, fmt.Errorf("limiter incr %s: %w", key, err)
	}
	if hits == 1 {
		if err := r.client.Expire(ctx, key, window); err != nil {
			// a counter without a TTL would lock the address out for good
			_ = r.client.Del(ctx, key)
			return false, fmt.Errorf("limiter window %s: %w", key, err)
		}
	}
	return hits <= int64(limit), nil
}

// AuthFailureKey scopes failed-auth counters by remote address.
func AuthFailureKey(remote string) string {
	return "rate_limit:auth:" + remote
}
