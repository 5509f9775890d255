package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"sports-tips-subscription/internal/usecase"
)

type NotificationWorker struct {
	interval time.Duration
	timeout  time.Duration
	notifUC  usecase.NotificationUseCase
	log      *zerolog.Logger
}

func NewNotificationWorker(interval time.Duration, notifUC usecase.NotificationUseCase, logger *zerolog.Logger) *NotificationWorker {
	if interval <= 0 {
		interval = time.Hour
	}
	compLog := logger.With().Str("component", "NotificationWorker").Logger()
	return &NotificationWorker{
		interval: interval,
		timeout:  runTimeout(interval),
		notifUC:  notifUC,
		log:      &compLog,
	}
}

func (w *NotificationWorker) Name() string { return "notification" }

func (w *NotificationWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting notification worker")
	// Run once on startup, then on every tick
	w.runCheck(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping notification worker")
			return ctx.Err()
		case <-ticker.C:
			w.runCheck(ctx)
		}
	}
}

func (w *NotificationWorker) runCheck(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()
	sent, err := w.notifUC.CheckAndSendExpiryNotifications(runCtx)
	if err != nil {
		w.log.Error().Err(err).Msg("notification check failed")
	}
	if sent > 0 {
		w.log.Info().Int("count", sent).Msg("expiry notifications sent")
	}
}
