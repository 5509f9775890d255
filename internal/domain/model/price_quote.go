package model

import "github.com/shopspring/decimal"

// PriceQuote is an ephemeral checkout price. Amounts stay unrounded; only
// Display rounds.
type PriceQuote struct {
	Type          SubscriptionType `json:"subscriptionType"`
	DurationDays  int              `json:"duration"`
	Country       string           `json:"country,omitempty"`
	Currency      string           `json:"currency"`
	BaseUSD       float64          `json:"baseUsd"`
	Discount      float64          `json:"discount"`
	DiscountedUSD float64          `json:"discountedUsd"`
	Rate          float64          `json:"rate"`
	Amount        float64          `json:"amount"`
}

// Display renders Amount rounded to two decimals, e.g. "12000.50 NGN".
func (q PriceQuote) Display() string {
	return decimal.NewFromFloat(q.Amount).StringFixed(2) + " " + q.Currency
}
