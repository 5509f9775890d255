//go:build !integration

package redis

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"sports-tips-subscription/internal/domain"
	"sports-tips-subscription/internal/domain/model"
	"sports-tips-subscription/internal/domain/ports/repository"
)

func TestUserRepoCacheDecorator(t *testing.T) {
	ctx := context.Background()
	user := &model.User{ID: "user-123", Email: "a@b.co", Country: "Ghana"}

	t.Run("FindByID should fetch from the store and set cache on miss", func(t *testing.T) {
		innerCalls := 0
		var cacheSets sync.Map
		mockRedis := &mockRedisClient{
			SetFunc: func(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
				cacheSets.Store(key, value)
				return nil
			},
		}
		inner := &mockInnerUserRepo{
			FindByIDFunc: func(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
				innerCalls++
				return user, nil
			},
		}

		got, err := NewUserRepoCacheDecorator(inner, mockRedis, time.Minute).FindByID(ctx, nil, "user-123")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if innerCalls != 1 {
			t.Errorf("inner repository should be called once on a miss, got %d", innerCalls)
		}
		if _, ok := cacheSets.Load("user:id:user-123"); !ok {
			t.Error("cache was not warmed")
		}
		if got.Country != "Ghana" {
			t.Errorf("wrong user returned: %+v", got)
		}
	})

	t.Run("FindByID should serve hits without the store", func(t *testing.T) {
		b, _ := json.Marshal(user)
		mockRedis := &mockRedisClient{
			GetFunc: func(ctx context.Context, key string) (string, error) { return string(b), nil },
		}
		inner := &mockInnerUserRepo{
			FindByIDFunc: func(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
				t.Fatal("inner repository must not be called on a hit")
				return nil, nil
			},
		}
		got, err := NewUserRepoCacheDecorator(inner, mockRedis, 0).FindByID(ctx, nil, "user-123")
		if err != nil || got.Email != "a@b.co" {
			t.Fatalf("hit: %v %+v", err, got)
		}
	})

	t.Run("Save should invalidate the id key", func(t *testing.T) {
		var deleted []string
		mockRedis := &mockRedisClient{
			DelFunc: func(ctx context.Context, keys ...string) error {
				deleted = append(deleted, keys...)
				return nil
			},
		}
		inner := &mockInnerUserRepo{
			SaveFunc: func(ctx context.Context, tx repository.Tx, u *model.User) error { return nil },
		}
		if err := NewUserRepoCacheDecorator(inner, mockRedis, 0).Save(ctx, nil, user); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(deleted) != 1 || deleted[0] != "user:id:user-123" {
			t.Fatalf("unexpected invalidation: %v", deleted)
		}
	})
}

func TestRedisLocker(t *testing.T) {
	ctx := context.Background()

	t.Run("acquires and releases with the same token", func(t *testing.T) {
		var held string
		cli := &mockRedisClient{
			SetNXFunc: func(ctx context.Context, key string, value interface{}, _ time.Duration) (bool, error) {
				if held != "" {
					return false, nil
				}
				held = value.(string)
				return true, nil
			},
			DelIfEqualsFunc: func(ctx context.Context, key, value string) (bool, error) {
				if value != held {
					return false, nil
				}
				held = ""
				return true, nil
			},
		}
		l := NewLocker(cli)
		l.backoff = time.Millisecond

		tok, err := l.TryLock(ctx, "lock:sweep", time.Minute)
		if err != nil || tok == "" {
			t.Fatalf("first lock: %q %v", tok, err)
		}
		if _, err := l.TryLock(ctx, "lock:sweep", time.Minute); !errors.Is(err, domain.ErrLockNotAcquired) {
			t.Fatalf("want ErrLockNotAcquired, got %v", err)
		}
		if err := l.Unlock(ctx, "lock:sweep", tok); err != nil {
			t.Fatalf("unlock: %v", err)
		}
		if held != "" {
			t.Fatal("lock should be released")
		}
	})

	t.Run("local locker is exclusive", func(t *testing.T) {
		l := NewLocalLocker()
		if _, err := l.TryLock(ctx, "k", 0); err != nil {
			t.Fatal(err)
		}
		if _, err := l.TryLock(ctx, "k", 0); !errors.Is(err, domain.ErrLockNotAcquired) {
			t.Fatalf("want ErrLockNotAcquired, got %v", err)
		}
		_ = l.Unlock(ctx, "k", "")
		if _, err := l.TryLock(ctx, "k", 0); err != nil {
			t.Fatalf("relock: %v", err)
		}
	})
}

func TestRateLimiter(t *testing.T) {
	var count int64
	expires := 0
	cli := &mockRedisClient{
		IncrFunc: func(ctx context.Context, key string) (int64, error) {
			count++
			return count, nil
		},
		ExpireFunc: func(ctx context.Context, key string, _ time.Duration) error {
			expires++
			return nil
		},
	}
	rl := NewRateLimiter(cli)
	key := AuthFailureKey("10.0.0.1")
	for i := 1; i <= 4; i++ {
		ok, err := rl.Allow(context.Background(), key, 3, time.Minute)
		if err != nil {
			t.Fatal(err)
		}
		if want := i <= 3; ok != want {
			t.Fatalf("request %d: want %v, got %v", i, want, ok)
		}
	}
	if expires != 1 {
		t.Fatalf("window should be set once, got %d", expires)
	}
}

func TestRateSnapshotStore(t *testing.T) {
	ctx := context.Background()
	var stored string
	cli := &mockRedisClient{
		GetFunc: func(ctx context.Context, key string) (string, error) {
			if stored == "" {
				return "", Nil
			}
			return stored, nil
		},
		SetFunc: func(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
			if expiration != 0 {
				t.Errorf("snapshot must not expire, got %v", expiration)
			}
			stored = string(value.([]byte))
			return nil
		},
	}
	s := NewRateSnapshotStore(cli)

	if _, err := s.Load(ctx); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("empty: want ErrNotFound, got %v", err)
	}
	in := []model.ExchangeRate{{Currency: "NGN", Rate: 1500}, {Currency: "GHS", Rate: 12.5}}
	if err := s.Store(ctx, in); err != nil {
		t.Fatal(err)
	}
	out, err := s.Load(ctx)
	if err != nil || len(out) != 2 || out[0].Rate != 1500 {
		t.Fatalf("load: %v %+v", err, out)
	}

	stored = "{not json"
	if _, err := s.Load(ctx); !errors.Is(err, domain.ErrMalformedDocument) {
		t.Fatalf("want ErrMalformedDocument, got %v", err)
	}
}

func TestRateLimiter_WindowFailureClearsCounter(t *testing.T) {
	var deleted []string
	cli := &mockRedisClient{
		IncrFunc: func(ctx context.Context, key string) (int64, error) { return 1, nil },
		ExpireFunc: func(ctx context.Context, key string, _ time.Duration) error {
			return errors.New("readonly replica")
		},
		DelFunc: func(ctx context.Context, keys ...string) error {
			deleted = append(deleted, keys...)
			return nil
		},
	}
	ok, err := NewRateLimiter(cli).Allow(context.Background(), AuthFailureKey("10.0.0.2"), 3, time.Minute)
	if err == nil || ok {
		t.Fatalf("want error and deny, got ok=%v err=%v", ok, err)
	}
	if len(deleted) != 1 || deleted[0] != "rate_limit:auth:10.0.0.2" {
		t.Fatalf("counter not cleared: %v", deleted)
	}
}
