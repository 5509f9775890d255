package redis

import (
	"context"
	"encoding/json"
	"errors"

	"sports-tips-subscription/internal/domain"
	"sports-tips-subscription/internal/domain/model"
	"sports-tips-subscription/internal/domain/ports/repository"
)

var _ repository.RateSnapshotStore = (*RateSnapshotStore)(nil)

const rateSnapshotKey = "rates:snapshot"

// RateSnapshotStore keeps the last good rate table without expiry, so a
// restarted process can price in local currency before its first refresh.
type RateSnapshotStore struct {
	client RedisClient
}

func NewRateSnapshotStore(client RedisClient) *RateSnapshotStore {
	return &RateSnapshotStore{client: client}
}

// Load returns domain.ErrNotFound when no snapshot was ever stored.
func (s *RateSnapshotStore) Load(ctx context.Context) ([]model.ExchangeRate, error) {
	raw, err := s.client.Get(ctx, rateSnapshotKey)
	if errors.Is(err, Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var rates []model.ExchangeRate
	if err := json.Unmarshal([]byte(raw), &rates); err != nil {
		return nil, domain.ErrMalformedDocument
	}
	return rates, nil
}

func (s *RateSnapshotStore) Store(ctx context.Context, rates []model.ExchangeRate) error {
	b, err := json.Marshal(rates)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, rateSnapshotKey, b, 0)
}
