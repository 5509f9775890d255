package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"sports-tips-subscription/internal/domain/model"
	"sports-tips-subscription/internal/domain/ports/repository"
	"sports-tips-subscription/internal/infra/metrics"
)

var _ repository.UserRepository = (*userRepoCacheDecorator)(nil)

// userRepoCacheDecorator caches user lookups by id. Pricing reads the owner of
// every subscription during revenue reports, which makes FindByID hot.
type userRepoCacheDecorator struct {
	inner repository.UserRepository
	cache RedisClient
	ttl   time.Duration
}

func NewUserRepoCacheDecorator(inner repository.UserRepository, cache RedisClient, ttl time.Duration) repository.UserRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &userRepoCacheDecorator{inner: inner, cache: cache, ttl: ttl}
}

func userKey(id string) string { return fmt.Sprintf("user:id:%s", id) }

// Writes invalidate before delegating.
func (d *userRepoCacheDecorator) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	if u.ID != "" {
		_ = d.cache.Del(ctx, userKey(u.ID))
	}
	return d.inner.Save(ctx, tx, u)
}

func (d *userRepoCacheDecorator) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	key := userKey(id)
	val, err := d.cache.Get(ctx, key)
	if err == nil {
		var user model.User
		if json.Unmarshal([]byte(val), &user) == nil {
			metrics.IncCacheRequest("user", "hit")
			return &user, nil
		}
	} else if !errors.Is(err, Nil) {
		metrics.IncCacheRequest("user", "error")
	}

	metrics.IncCacheRequest("user", "miss")
	user, err := d.inner.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if user != nil {
		b, _ := json.Marshal(user)
		_ = d.cache.Set(ctx, key, b, d.ttl)
	}
	return user, nil
}

// List always reads through.
func (d *userRepoCacheDecorator) List(ctx context.Context, tx repository.Tx) ([]*model.User, error) {
	metrics.IncCacheRequest("user_list", "bypass")
	return d.inner.List(ctx, tx)
}
