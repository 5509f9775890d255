// Package sched runs the periodic background jobs: expiry sweep, expiry
// reminders and exchange-rate refresh.
package sched

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Worker is a long-running loop that returns when ctx is done.
type Worker interface {
	Name() string
	Run(ctx context.Context) error
}

// runTimeout bounds one tick so a hung backend cannot stall the loop.
func runTimeout(interval time.Duration) time.Duration {
	if interval > 2*time.Minute {
		return 2 * time.Minute
	}
	return interval
}

// RunAll runs every worker until ctx is done, which is a clean stop. Any
// other error stops the rest and is returned.
func RunAll(ctx context.Context, logger *zerolog.Logger, workers ...Worker) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, w := range workers {
		w := w
		g.Go(func() error {
			err := w.Run(gctx)
			if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
				logger.Error().Err(err).Str("worker", w.Name()).Msg("worker stopped")
				return err
			}
			return nil
		})
	}
	return g.Wait()
}
