// Package rates owns the exchange-rate table used for checkout quotes and
// revenue reporting.
package rates

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"sports-tips-subscription/internal/domain"
	"sports-tips-subscription/internal/domain/model"
	"sports-tips-subscription/internal/domain/ports/adapter"
	"sports-tips-subscription/internal/domain/ports/repository"
	"sports-tips-subscription/internal/domain/pricing"
	"sports-tips-subscription/internal/infra/metrics"
)

var _ pricing.RateLookup = (*Cache)(nil)

var ErrNoRates = errors.New("upstream returned no rates")

// Cache holds the last good rate table. Lookups never block on the network;
// Refresh is driven by the scheduler. A stale table keeps serving until a
// refresh succeeds.
type Cache struct {
	fetcher  adapter.RateFetcher
	snapshot repository.RateSnapshotStore // optional
	ttl      time.Duration
	now      func() time.Time
	log      *zerolog.Logger

	mu        sync.RWMutex
	rates     map[string]model.ExchangeRate
	fetchedAt time.Time
}

type Option func(*Cache)

// WithClock injects the time source.
func WithClock(now func() time.Time) Option { return func(c *Cache) { c.now = now } }

// WithSnapshot persists every good table and seeds the cache on Warm.
func WithSnapshot(s repository.RateSnapshotStore) Option {
	return func(c *Cache) { c.snapshot = s }
}

func NewCache(fetcher adapter.RateFetcher, ttl time.Duration, logger *zerolog.Logger, opts ...Option) *Cache {
	l := logger.With().Str("component", "RateCache").Logger()
	c := &Cache{
		fetcher: fetcher,
		ttl:     ttl,
		now:     time.Now,
		log:     &l,
		rates:   map[string]model.ExchangeRate{},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// GetRate returns units of currency per 1 USD; 1 for USD, unknown codes and
// unusable rates.
func (c *Cache) GetRate(currency string) float64 {
	cur := model.NormalizeCurrency(currency)
	if cur == "" || cur == model.BaseCurrency {
		return 1
	}
	c.mu.RLock()
	r, ok := c.rates[cur]
	c.mu.RUnlock()
	if !ok || r.Rate <= 0 {
		return 1
	}
	return r.Rate
}

// Rates returns the table sorted by currency code.
func (c *Cache) Rates() []model.ExchangeRate {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.ExchangeRate, 0, len(c.rates))
	for _, r := range c.rates {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Currency < out[j].Currency })
	return out
}

func (c *Cache) FetchedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fetchedAt
}

// Stale reports whether the table is empty or older than the TTL.
func (c *Cache) Stale() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.rates) == 0 || c.now().Sub(c.fetchedAt) >= c.ttl
}

// Refresh fetches a new table. On failure the previous table is kept.
func (c *Cache) Refresh(ctx context.Context) error {
	list, err := c.fetcher.FetchRates(ctx)
	if err == nil && len(list) == 0 {
		err = ErrNoRates
	}
	metrics.IncRateRefresh("upstream", err)
	if err != nil {
		c.log.Warn().Err(err).Msg("rate refresh failed; keeping previous table")
		return err
	}
	c.replace(list)
	if c.snapshot != nil {
		if err := c.snapshot.Store(ctx, list); err != nil {
			c.log.Warn().Err(err).Msg("rate snapshot not stored")
		}
	}
	c.log.Debug().Int("currencies", len(list)).Msg("rates refreshed")
	return nil
}

// RefreshIfStale refreshes only when the TTL has elapsed.
func (c *Cache) RefreshIfStale(ctx context.Context) error {
	if !c.Stale() {
		return nil
	}
	return c.Refresh(ctx)
}

// Warm seeds an empty cache from the snapshot. The snapshot's age is kept so
// the next RefreshIfStale still goes upstream.
func (c *Cache) Warm(ctx context.Context) error {
	if c.snapshot == nil {
		return nil
	}
	list, err := c.snapshot.Load(ctx)
	metrics.IncRateRefresh("snapshot", err)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.rates) > 0 {
		return nil
	}
	var oldest time.Time
	for _, r := range list {
		c.rates[model.NormalizeCurrency(r.Currency)] = r
		if oldest.IsZero() || r.LastUpdated.Before(oldest) {
			oldest = r.LastUpdated
		}
	}
	c.fetchedAt = oldest
	return nil
}

func (c *Cache) replace(list []model.ExchangeRate) {
	next := make(map[string]model.ExchangeRate, len(list))
	for _, r := range list {
		next[model.NormalizeCurrency(r.Currency)] = r
	}
	now := c.now()
	c.mu.Lock()
	c.rates = next
	c.fetchedAt = now
	c.mu.Unlock()
	metrics.SetRateTable(len(next), now.Unix())
}
