package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"sports-tips-subscription/internal/domain/model"
	"sports-tips-subscription/internal/infra/metrics"
)

// RateRefresher is the part of the rates cache this worker drives.
type RateRefresher interface {
	Refresh(ctx context.Context) error
	Rates() []model.ExchangeRate
	FetchedAt() time.Time
}

// RateRefreshWorker pulls a fresh exchange-rate table on every tick. A
// failed refresh keeps the previous table.
type RateRefreshWorker struct {
	interval time.Duration
	timeout  time.Duration
	cache    RateRefresher
	log      *zerolog.Logger
}

func NewRateRefreshWorker(interval time.Duration, cache RateRefresher, logger *zerolog.Logger) *RateRefreshWorker {
	if interval <= 0 {
		interval = time.Hour
	}
	l := logger.With().Str("component", "RateRefreshWorker").Logger()
	return &RateRefreshWorker{interval: interval, timeout: runTimeout(interval), cache: cache, log: &l}
}

func (w *RateRefreshWorker) Name() string { return "rates" }

func (w *RateRefreshWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting rate refresh worker")
	w.refresh(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping rate refresh worker")
			return ctx.Err()
		case <-ticker.C:
			w.refresh(ctx)
		}
	}
}

func (w *RateRefreshWorker) refresh(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()
	if err := w.cache.Refresh(runCtx); err != nil {
		w.log.Warn().Err(err).Time("table_from", w.cache.FetchedAt()).Msg("rate refresh failed")
	}
	metrics.SetRateTable(len(w.cache.Rates()), w.cache.FetchedAt().Unix())
}
