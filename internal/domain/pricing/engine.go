// Package pricing computes subscription prices from injected tables.
package pricing

import (
	"fmt"
	"strings"

	"sports-tips-subscription/internal/domain"
	"sports-tips-subscription/internal/domain/model"
)

// RateLookup returns units of currency per 1 USD.
type RateLookup interface {
	GetRate(currency string) float64
}

// RateFunc adapts a plain function to RateLookup.
type RateFunc func(currency string) float64

func (f RateFunc) GetRate(currency string) float64 { return f(currency) }

// Tables is the pricing configuration. Country keys are matched lower-cased.
type Tables struct {
	BasePriceUSD        float64
	PlanMultipliers     map[model.PlanToken]float64
	DurationMultipliers map[int]float64
	CountryCurrencies   map[string]string
	CountryDiscounts    map[string]float64
}

// DefaultTables mirrors the shipped configuration.
func DefaultTables() Tables {
	return Tables{
		BasePriceUSD: 30,
		PlanMultipliers: map[model.PlanToken]float64{
			model.PlanInvestment: 1,
			model.PlanVIP:        1.5,
			model.PlanMega:       2,
		},
		DurationMultipliers: map[int]float64{10: 1, 20: 1.8, 30: 2.5},
		CountryCurrencies: map[string]string{
			"nigeria":        "NGN",
			"ghana":          "GHS",
			"kenya":          "KES",
			"south africa":   "ZAR",
			"united kingdom": "GBP",
			"united states":  "USD",
		},
		CountryDiscounts: map[string]float64{},
	}
}

// Engine is stateless once built; it is safe for concurrent use.
type Engine struct {
	base       float64
	plans      map[model.PlanToken]float64
	durations  map[int]float64
	currencies map[string]string
	discounts  map[string]float64
}

// NewEngine validates t and copies it. Discounts outside [0,1) and negative
// multipliers are configuration errors.
func NewEngine(t Tables) (*Engine, error) {
	if t.BasePriceUSD < 0 {
		return nil, fmt.Errorf("base price %v: %w", t.BasePriceUSD, domain.ErrInvalidArgument)
	}
	e := &Engine{
		base:       t.BasePriceUSD,
		plans:      make(map[model.PlanToken]float64, len(t.PlanMultipliers)),
		durations:  make(map[int]float64, len(t.DurationMultipliers)),
		currencies: make(map[string]string, len(t.CountryCurrencies)),
		discounts:  make(map[string]float64, len(t.CountryDiscounts)),
	}
	for p, m := range t.PlanMultipliers {
		if !p.Valid() {
			return nil, fmt.Errorf("plan %q: %w", p, domain.ErrUnknownPlan)
		}
		if m < 0 {
			return nil, fmt.Errorf("plan %q multiplier %v: %w", p, m, domain.ErrInvalidArgument)
		}
		e.plans[p] = m
	}
	for d, m := range t.DurationMultipliers {
		if d <= 0 || m < 0 {
			return nil, fmt.Errorf("duration %d multiplier %v: %w", d, m, domain.ErrInvalidArgument)
		}
		e.durations[d] = m
	}
	for c, cur := range t.CountryCurrencies {
		e.currencies[normCountry(c)] = model.NormalizeCurrency(cur)
	}
	for c, d := range t.CountryDiscounts {
		if d < 0 || d >= 1 {
			return nil, fmt.Errorf("country %q discount %v: %w", c, d, domain.ErrInvalidDiscount)
		}
		e.discounts[normCountry(c)] = d
	}
	return e, nil
}

// BasePriceUSD is the configured flat base price.
func (e *Engine) BasePriceUSD() float64 { return e.base }

// Durations returns the configured duration brackets.
func (e *Engine) Durations() []int {
	out := make([]int, 0, len(e.durations))
	for d := range e.durations {
		out = append(out, d)
	}
	return out
}

// SubscriptionPrice returns the undiscounted USD price for a plan type and
// duration: base * sum(plan multipliers) * duration multiplier.
func (e *Engine) SubscriptionPrice(baseUSD float64, t model.SubscriptionType, durationDays int) (float64, error) {
	plans, err := t.Plans()
	if err != nil {
		return 0, fmt.Errorf("subscription type %q: %w", t, err)
	}
	dm, ok := e.durations[durationDays]
	if !ok {
		return 0, fmt.Errorf("%d days: %w", durationDays, domain.ErrMissingPrice)
	}
	var pm float64
	for _, p := range plans {
		m, ok := e.plans[p]
		if !ok {
			return 0, fmt.Errorf("plan %q: %w", p, domain.ErrMissingPrice)
		}
		pm += m
	}
	if baseUSD < 0 {
		baseUSD = 0
	}
	return baseUSD * pm * dm, nil
}

// DiscountFor returns the configured discount for country, 0 if absent.
func (e *Engine) DiscountFor(country string) float64 {
	return e.discounts[normCountry(country)]
}

// ApplyCountryDiscount returns priceUSD * (1 - discount). Never negative.
func (e *Engine) ApplyCountryDiscount(priceUSD float64, country string) float64 {
	out := priceUSD * (1 - e.DiscountFor(country))
	if out < 0 {
		return 0
	}
	return out
}

// CurrencyForCountry maps a country to its currency, USD when unknown.
func (e *Engine) CurrencyForCountry(country string) string {
	if c, ok := e.currencies[normCountry(country)]; ok && c != "" {
		return c
	}
	return model.BaseCurrency
}

// USDToLocal quotes a USD amount in currency (checkout direction).
func (e *Engine) USDToLocal(amountUSD float64, currency string, rates RateLookup) float64 {
	if isUSD(currency) {
		return amountUSD
	}
	return amountUSD * rateOf(currency, rates)
}

// LocalToUSD normalizes a local-currency amount back to USD (reporting direction).
// It is not the inverse of USDToLocal at the call sites: reporting feeds it an
// amount that was computed in USD and only nominally tagged with the local currency.
func (e *Engine) LocalToUSD(amount float64, currency string, rates RateLookup) float64 {
	if isUSD(currency) {
		return amount
	}
	return amount / rateOf(currency, rates)
}

// DiscountedPriceInUSD is the revenue contribution of one subscription.
func (e *Engine) DiscountedPriceInUSD(sub *model.Subscription, owner *model.User, rates RateLookup) (float64, error) {
	country := ""
	if owner != nil {
		country = owner.Country
	}
	currency := e.CurrencyForCountry(country)
	price, err := e.SubscriptionPrice(e.base, sub.Type, sub.DurationDays)
	if err != nil {
		return 0, err
	}
	discounted := e.ApplyCountryDiscount(price, country)
	return e.LocalToUSD(discounted, currency, rates), nil
}

// Quote builds a checkout quote in the country's currency.
func (e *Engine) Quote(t model.SubscriptionType, durationDays int, country string, rates RateLookup) (model.PriceQuote, error) {
	norm, err := t.Normalize()
	if err != nil {
		return model.PriceQuote{}, fmt.Errorf("subscription type %q: %w", t, err)
	}
	base, err := e.SubscriptionPrice(e.base, norm, durationDays)
	if err != nil {
		return model.PriceQuote{}, err
	}
	currency := e.CurrencyForCountry(country)
	discounted := e.ApplyCountryDiscount(base, country)
	rate := 1.0
	if !isUSD(currency) {
		rate = rateOf(currency, rates)
	}
	return model.PriceQuote{
		Type:          norm,
		DurationDays:  durationDays,
		Country:       country,
		Currency:      currency,
		BaseUSD:       base,
		Discount:      e.DiscountFor(country),
		DiscountedUSD: discounted,
		Rate:          rate,
		Amount:        e.USDToLocal(discounted, currency, rates),
	}, nil
}

func rateOf(currency string, rates RateLookup) float64 {
	if rates == nil {
		return 1
	}
	r := rates.GetRate(model.NormalizeCurrency(currency))
	if r <= 0 {
		return 1
	}
	return r
}

func isUSD(currency string) bool {
	c := model.NormalizeCurrency(currency)
	return c == "" || c == model.BaseCurrency
}

func normCountry(c string) string { return strings.ToLower(strings.TrimSpace(c)) }
