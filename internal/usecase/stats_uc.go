package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"sports-tips-subscription/internal/domain"
	"sports-tips-subscription/internal/domain/lifecycle"
	"sports-tips-subscription/internal/domain/model"
	"sports-tips-subscription/internal/domain/ports/repository"
	"sports-tips-subscription/internal/domain/pricing"
	"sports-tips-subscription/internal/infra/metrics"
)

// Compile-time check
var _ StatsUseCase = (*statsUC)(nil)

// RevenueReport sums the discounted USD value of every stored subscription.
type RevenueReport struct {
	TotalUSD float64            `json:"totalUsd"`
	ByType   map[string]float64 `json:"byType"`
	Counted  int                `json:"counted"`
	Skipped  int                `json:"skipped"`
}

type StatsUseCase interface {
	Revenue(ctx context.Context) (*RevenueReport, error)
	CountByState(ctx context.Context) (map[model.SubscriptionState]int, error)
}

type statsUC struct {
	subs      repository.SubscriptionRepository
	users     repository.UserRepository
	pricing   *pricing.Engine
	lifecycle *lifecycle.Engine
	rates     pricing.RateLookup
	now       func() time.Time
	log       *zerolog.Logger
}

func NewStatsUseCase(subs repository.SubscriptionRepository, users repository.UserRepository, pe *pricing.Engine, le *lifecycle.Engine, rates pricing.RateLookup, logger *zerolog.Logger) *statsUC {
	l := logger.With().Str("component", "StatsUseCase").Logger()
	return &statsUC{subs: subs, users: users, pricing: pe, lifecycle: le, rates: rates, now: time.Now, log: &l}
}

// Revenue skips records it cannot price instead of failing the report.
// An owner that is missing or malformed prices at the default currency
// without discount.
func (s *statsUC) Revenue(ctx context.Context) (*RevenueReport, error) {
	subs, skipped, err := s.subs.ListAll(ctx, repository.NoTX)
	if err != nil {
		return nil, err
	}
	owners := map[string]*model.User{}
	report := &RevenueReport{ByType: map[string]float64{}, Skipped: skipped}
	for _, sub := range subs {
		owner, seen := owners[sub.UserID]
		if !seen {
			owner, err = s.users.FindByID(ctx, repository.NoTX, sub.UserID)
			switch {
			case err == nil, errors.Is(err, domain.ErrNotFound):
			case errors.Is(err, domain.ErrMalformedDocument):
				s.log.Warn().Err(err).Str("user_id", sub.UserID).Msg("owner unreadable; pricing without country")
				owner = nil
			default:
				return nil, err
			}
			owners[sub.UserID] = owner
		}
		usd, err := s.pricing.DiscountedPriceInUSD(sub, owner, s.rates)
		if err != nil {
			s.log.Warn().Err(err).Str("subscription_id", sub.ID).Msg("subscription not priced")
			report.Skipped++
			continue
		}
		report.TotalUSD += usd
		report.ByType[string(sub.Type)] += usd
		report.Counted++
	}
	if report.Skipped > 0 {
		metrics.AddMalformedSkipped(report.Skipped)
	}
	metrics.SetRevenueUSD(report.TotalUSD)
	return report, nil
}

func (s *statsUC) CountByState(ctx context.Context) (map[model.SubscriptionState]int, error) {
	subs, skipped, err := s.subs.ListAll(ctx, repository.NoTX)
	if err != nil {
		return nil, err
	}
	if skipped > 0 {
		metrics.AddMalformedSkipped(skipped)
	}
	now := s.now()
	counts := make(map[model.SubscriptionState]int, len(model.AllSubscriptionStates))
	for _, st := range model.AllSubscriptionStates {
		counts[st] = 0
	}
	for _, sub := range subs {
		counts[s.lifecycle.ComputeStatus(sub, now)]++
	}
	metrics.SetSubscriptionsTotal(counts)
	return counts, nil
}
