package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"sports-tips-subscription/internal/usecase"
)

// ExpiryWorker periodically invalidates lapsed subscriptions via the use case.
type ExpiryWorker struct {
	interval time.Duration
	timeout  time.Duration
	subUC    usecase.SubscriptionUseCase
	log      *zerolog.Logger
}

func NewExpiryWorker(interval time.Duration, subUC usecase.SubscriptionUseCase, logger *zerolog.Logger) *ExpiryWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	exprLog := logger.With().Str("component", "ExpiryWorker").Logger()
	return &ExpiryWorker{
		interval: interval,
		timeout:  runTimeout(interval),
		subUC:    subUC,
		log:      &exprLog,
	}
}

func (w *ExpiryWorker) Name() string { return "expiry" }

func (w *ExpiryWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting expiry worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping expiry worker")
			return ctx.Err()
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *ExpiryWorker) sweep(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()
	n, err := w.subUC.ExpireDue(runCtx)
	if err != nil {
		w.log.Error().Err(err).Msg("expiry worker error")
	}
	if n > 0 {
		w.log.Info().Int("count", n).Msg("lapsed subscriptions invalidated")
	}
}
