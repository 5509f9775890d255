package rates

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"sports-tips-subscription/internal/domain/model"
	"sports-tips-subscription/internal/domain/ports/adapter"
)

var _ adapter.RateFetcher = (*HTTPFetcher)(nil)

var errUpstream = errors.New("exchange-rate upstream rejected the request")

// maxRateBody bounds how much of a rate response is read.
const maxRateBody = 1 << 20

// HTTPFetcher reads a USD-based rate table. It understands the open.er-api
// object ({"result":"success","rates":{"NGN":1500}}) and a plain array of
// {currency, rate, lastUpdated}.
type HTTPFetcher struct {
	url    string
	apiKey string
	client *http.Client
	now    func() time.Time
}

func NewHTTPFetcher(url, apiKey string, timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPFetcher{
		url:    url,
		apiKey: apiKey,
		client: &http.Client{Timeout: timeout},
		now:    time.Now,
	}
}

type erAPIResponse struct {
	Result             string             `json:"result"`
	BaseCode           string             `json:"base_code"`
	TimeLastUpdateUnix int64              `json:"time_last_update_unix"`
	Rates              map[string]float64 `json:"rates"`
	ErrorType          string             `json:"error-type"`
}

func (f *HTTPFetcher) FetchRates(ctx context.Context) ([]model.ExchangeRate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if f.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.apiKey)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", errUpstream, resp.StatusCode)
	}

	var raw json.RawMessage
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxRateBody)).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode rates: %w", err)
	}
	if b := bytes.TrimSpace(raw); len(b) > 0 && b[0] == '[' {
		var list []model.ExchangeRate
		if err := json.Unmarshal(b, &list); err != nil {
			return nil, fmt.Errorf("decode rates: %w", err)
		}
		return clean(list), nil
	}

	var out erAPIResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode rates: %w", err)
	}
	if out.Result != "" && out.Result != "success" {
		return nil, fmt.Errorf("%w: %s", errUpstream, out.ErrorType)
	}
	if out.BaseCode != "" && model.NormalizeCurrency(out.BaseCode) != model.BaseCurrency {
		return nil, fmt.Errorf("%w: base %s is not USD", errUpstream, out.BaseCode)
	}
	updated := f.now().UTC()
	if out.TimeLastUpdateUnix > 0 {
		updated = time.Unix(out.TimeLastUpdateUnix, 0).UTC()
	}
	list := make([]model.ExchangeRate, 0, len(out.Rates))
	for c, r := range out.Rates {
		list = append(list, model.ExchangeRate{Currency: c, Rate: r, LastUpdated: updated})
	}
	return clean(list), nil
}

// clean normalises codes and drops non-positive rates.
func clean(in []model.ExchangeRate) []model.ExchangeRate {
	out := make([]model.ExchangeRate, 0, len(in))
	for _, r := range in {
		r.Currency = model.NormalizeCurrency(r.Currency)
		if r.Currency == "" || r.Rate <= 0 {
			continue
		}
		out = append(out, r)
	}
	return out
}
