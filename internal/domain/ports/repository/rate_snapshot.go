package repository

import (
	"context"

	"sports-tips-subscription/internal/domain/model"
)

// RateSnapshotStore persists the last good exchange-rate table so a restart
// does not start from an empty cache.
type RateSnapshotStore interface {
	Load(ctx context.Context) ([]model.ExchangeRate, error)
	Store(ctx context.Context, rates []model.ExchangeRate) error
}
