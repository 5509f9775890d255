//go:build !integration

package rates

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"sports-tips-subscription/internal/domain"
	"sports-tips-subscription/internal/domain/model"
)

type mockFetcher struct {
	FetchRatesFunc func(ctx context.Context) ([]model.ExchangeRate, error)
	calls          int
}

func (m *mockFetcher) FetchRates(ctx context.Context) ([]model.ExchangeRate, error) {
	m.calls++
	return m.FetchRatesFunc(ctx)
}

type mockSnapshot struct {
	stored []model.ExchangeRate
	loaded []model.ExchangeRate
}

func (m *mockSnapshot) Load(ctx context.Context) ([]model.ExchangeRate, error) {
	if m.loaded == nil {
		return nil, domain.ErrNotFound
	}
	return m.loaded, nil
}

func (m *mockSnapshot) Store(ctx context.Context, rates []model.ExchangeRate) error {
	m.stored = rates
	return nil
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func TestCache(t *testing.T) {
	ctx := context.Background()
	nop := zerolog.Nop()
	clk := &clock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	fail := false
	f := &mockFetcher{FetchRatesFunc: func(ctx context.Context) ([]model.ExchangeRate, error) {
		if fail {
			return nil, errors.New("upstream down")
		}
		return []model.ExchangeRate{{Currency: "ngn", Rate: 1500}, {Currency: "GHS", Rate: 12.5}}, nil
	}}
	snap := &mockSnapshot{}
	c := NewCache(f, time.Hour, &nop, WithClock(clk.now), WithSnapshot(snap))

	t.Run("empty cache defaults to 1 and is stale", func(t *testing.T) {
		if c.GetRate("NGN") != 1 || !c.Stale() {
			t.Fatal("empty cache should default and be stale")
		}
	})

	t.Run("refresh fills the table and the snapshot", func(t *testing.T) {
		if err := c.Refresh(ctx); err != nil {
			t.Fatal(err)
		}
		if c.GetRate(" ngn ") != 1500 || c.GetRate("USD") != 1 || c.GetRate("XYZ") != 1 {
			t.Fatalf("lookups wrong: %v", c.Rates())
		}
		if len(snap.stored) != 2 {
			t.Fatalf("snapshot not stored: %v", snap.stored)
		}
		if got := c.Rates(); got[0].Currency != "GHS" || got[1].Currency != "NGN" {
			t.Fatalf("rates not sorted: %v", got)
		}
	})

	t.Run("TTL is driven by the injected clock", func(t *testing.T) {
		calls := f.calls
		clk.t = clk.t.Add(30 * time.Minute)
		if err := c.RefreshIfStale(ctx); err != nil || f.calls != calls {
			t.Fatalf("fresh table should not refetch (calls %d -> %d)", calls, f.calls)
		}
		clk.t = clk.t.Add(31 * time.Minute)
		if !c.Stale() {
			t.Fatal("table should be stale after the TTL")
		}
		if err := c.RefreshIfStale(ctx); err != nil || f.calls != calls+1 {
			t.Fatalf("stale table should refetch once, calls %d", f.calls)
		}
	})

	t.Run("failed refresh keeps serving the old table", func(t *testing.T) {
		fail = true
		defer func() { fail = false }()
		if err := c.Refresh(ctx); err == nil {
			t.Fatal("expected error")
		}
		if c.GetRate("NGN") != 1500 {
			t.Fatal("previous table lost")
		}
	})
}

func TestCache_Warm(t *testing.T) {
	nop := zerolog.Nop()
	seen := time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC)
	snap := &mockSnapshot{loaded: []model.ExchangeRate{{Currency: "KES", Rate: 160, LastUpdated: seen}}}
	f := &mockFetcher{FetchRatesFunc: func(ctx context.Context) ([]model.ExchangeRate, error) { return nil, nil }}
	c := NewCache(f, time.Hour, &nop, WithSnapshot(snap), WithClock(func() time.Time { return seen.Add(2 * time.Hour) }))

	if err := c.Warm(context.Background()); err != nil {
		t.Fatal(err)
	}
	if c.GetRate("KES") != 160 {
		t.Fatal("snapshot not loaded")
	}
	if !c.Stale() {
		t.Fatal("a warmed table keeps its age")
	}
	if err := c.Refresh(context.Background()); !errors.Is(err, ErrNoRates) {
		t.Fatalf("empty upstream: want ErrNoRates, got %v", err)
	}
}

func TestHTTPFetcher(t *testing.T) {
	oversized := `{"result":"success","rates":{"NGN":1500},"pad":"` + strings.Repeat("x", maxRateBody) + `"}`
	testCases := []struct {
		name    string
		status  int
		body    string
		want    int
		wantErr bool
	}{
		{"open er-api object", 200, `{"result":"success","base_code":"USD","time_last_update_unix":1704067200,"rates":{"USD":1,"NGN":1500,"BAD":0}}`, 2, false},
		{"plain array", 200, `[{"currency":"ghs","rate":12.5,"lastUpdated":"2024-01-01T00:00:00Z"}]`, 1, false},
		{"upstream error result", 200, `{"result":"error","error-type":"invalid-key"}`, 0, true},
		{"non-USD base", 200, `{"result":"success","base_code":"EUR","rates":{"NGN":1600}}`, 0, true},
		{"http failure", 503, `oops`, 0, true},
		{"garbage", 200, `not json`, 0, true},
		{"body past the read limit", 200, oversized, 0, true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Header.Get("Authorization") != "Bearer k" {
					t.Errorf("api key not sent")
				}
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			got, err := NewHTTPFetcher(srv.URL, "k", time.Second).FetchRates(context.Background())
			if (err != nil) != tc.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tc.wantErr)
			}
			if len(got) != tc.want {
				t.Fatalf("want %d rates, got %d (%v)", tc.want, len(got), got)
			}
		})
	}
}
