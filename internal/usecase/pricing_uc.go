package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"sports-tips-subscription/internal/domain/model"
	"sports-tips-subscription/internal/domain/ports/repository"
	"sports-tips-subscription/internal/domain/pricing"
)

// Compile-time check
var _ PricingUseCase = (*pricingUC)(nil)

// RateSource is the exchange-rate table the pricing flows read from.
type RateSource interface {
	pricing.RateLookup
	Rates() []model.ExchangeRate
	FetchedAt() time.Time
	RefreshIfStale(ctx context.Context) error
}

// RateTable is the public view of the cached rates.
type RateTable struct {
	Base      string               `json:"base"`
	FetchedAt time.Time            `json:"fetchedAt"`
	Rates     []model.ExchangeRate `json:"rates"`
}

type PricingUseCase interface {
	// Quote prices a checkout in the currency of country.
	Quote(ctx context.Context, t model.SubscriptionType, durationDays int, country string) (model.PriceQuote, error)
	// QuoteForUser prices a checkout for the user's own country.
	QuoteForUser(ctx context.Context, userID string, t model.SubscriptionType, durationDays int) (model.PriceQuote, error)
	Rates(ctx context.Context) RateTable
}

type pricingUC struct {
	engine *pricing.Engine
	rates  RateSource
	users  repository.UserRepository
	log    *zerolog.Logger
}

func NewPricingUseCase(engine *pricing.Engine, rates RateSource, users repository.UserRepository, logger *zerolog.Logger) *pricingUC {
	l := logger.With().Str("component", "PricingUseCase").Logger()
	return &pricingUC{engine: engine, rates: rates, users: users, log: &l}
}

// freshRates tries a refresh when the table is stale. A failed refresh is
// not fatal: the engine falls back to the cached table or to a rate of 1.
func (uc *pricingUC) freshRates(ctx context.Context) pricing.RateLookup {
	if err := uc.rates.RefreshIfStale(ctx); err != nil {
		uc.log.Warn().Err(err).Msg("quoting with stale rates")
	}
	return uc.rates
}

func (uc *pricingUC) Quote(ctx context.Context, t model.SubscriptionType, durationDays int, country string) (model.PriceQuote, error) {
	return uc.engine.Quote(t, durationDays, country, uc.freshRates(ctx))
}

func (uc *pricingUC) QuoteForUser(ctx context.Context, userID string, t model.SubscriptionType, durationDays int) (model.PriceQuote, error) {
	u, err := uc.users.FindByID(ctx, repository.NoTX, userID)
	if err != nil {
		return model.PriceQuote{}, err
	}
	return uc.Quote(ctx, t, durationDays, u.Country)
}

func (uc *pricingUC) Rates(ctx context.Context) RateTable {
	uc.freshRates(ctx)
	return RateTable{Base: model.BaseCurrency, FetchedAt: uc.rates.FetchedAt(), Rates: uc.rates.Rates()}
}
