package adapter

import (
	"context"

	"sports-tips-subscription/internal/domain/model"
)

// RateFetcher pulls the current exchange-rate table from an upstream API.
type RateFetcher interface {
	FetchRates(ctx context.Context) ([]model.ExchangeRate, error)
}
