package model

import (
	"strings"
	"time"
)

// BaseCurrency is the currency all rates are quoted against.
const BaseCurrency = "USD"

// ExchangeRate is the number of Currency units per 1 USD.
type ExchangeRate struct {
	Currency    string    `json:"currency"`
	Rate        float64   `json:"rate"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// NormalizeCurrency upper-cases and trims a currency code.
func NormalizeCurrency(c string) string {
	return strings.ToUpper(strings.TrimSpace(c))
}
