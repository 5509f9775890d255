package usecase

import (
	"context"
	"errors"
	"sort"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"sports-tips-subscription/internal/domain"
	"sports-tips-subscription/internal/domain/lifecycle"
	"sports-tips-subscription/internal/domain/model"
	"sports-tips-subscription/internal/domain/ports/repository"
	"sports-tips-subscription/internal/infra/email"
	"sports-tips-subscription/internal/infra/logging"
	"sports-tips-subscription/internal/infra/metrics"
)

// Compile-time check
var _ NotificationUseCase = (*notificationUC)(nil)

type NotificationUseCase interface {
	// CheckAndSendExpiryNotifications e-mails the owners of subscriptions
	// close to expiry, at most once per subscription and threshold, and
	// returns how many were sent.
	CheckAndSendExpiryNotifications(ctx context.Context) (int, error)
}

type notificationUC struct {
	subs       repository.SubscriptionRepository
	notifLogs  repository.NotificationLogRepository
	users      repository.UserRepository
	engine     *lifecycle.Engine
	notifier   *Notifier
	thresholds []int
	limit      int
	now        func() time.Time
	log        *zerolog.Logger
}

// NewNotificationUseCase sends expiry reminders when a subscription has at
// most threshold days left, for each threshold in thresholds. limit bounds
// concurrent sends.
func NewNotificationUseCase(
	subs repository.SubscriptionRepository,
	notifLogs repository.NotificationLogRepository,
	users repository.UserRepository,
	engine *lifecycle.Engine,
	notifier *Notifier,
	thresholds []int,
	limit int,
	logger *zerolog.Logger,
) *notificationUC {
	ts := make([]int, 0, len(thresholds))
	for _, t := range thresholds {
		if t > 0 {
			ts = append(ts, t)
		}
	}
	sort.Ints(ts)
	if limit <= 0 {
		limit = 1
	}
	l := logger.With().Str("component", "NotificationUseCase").Logger()
	return &notificationUC{
		subs:       subs,
		notifLogs:  notifLogs,
		users:      users,
		engine:     engine,
		notifier:   notifier,
		thresholds: ts,
		limit:      limit,
		now:        time.Now,
		log:        &l,
	}
}

// threshold picks the tightest threshold the subscription has crossed, or 0.
func (n *notificationUC) threshold(daysLeft float64) int {
	for _, t := range n.thresholds {
		if daysLeft <= float64(t) {
			return t
		}
	}
	return 0
}

func (n *notificationUC) CheckAndSendExpiryNotifications(ctx context.Context) (int, error) {
	subs, skipped, err := n.subs.ListValid(ctx, repository.NoTX)
	if err != nil {
		return 0, err
	}
	if skipped > 0 {
		metrics.AddMalformedSkipped(skipped)
	}
	now := n.now()

	var sent int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(n.limit)
	for _, sub := range subs {
		switch n.engine.ComputeStatus(sub, now) {
		case model.SubscriptionStateActive, model.SubscriptionStateExpiring:
		default:
			continue
		}
		th := n.threshold(n.engine.DaysLeft(sub, now))
		if th == 0 {
			continue
		}
		sub := sub
		g.Go(func() error {
			ok, err := n.notifyOnce(gctx, sub, th)
			if ok {
				atomic.AddInt64(&sent, 1)
			}
			if err != nil {
				// one failed recipient must not stop the rest
				logging.With(logging.WithSubscriptionID(gctx, sub.ID), n.log).Error().Err(err).Int("threshold", th).Msg("expiry notification failed")
			}
			return nil
		})
	}
	_ = g.Wait()
	return int(sent), ctx.Err()
}

func (n *notificationUC) notifyOnce(ctx context.Context, sub *model.Subscription, threshold int) (bool, error) {
	exists, err := n.notifLogs.Exists(ctx, repository.NoTX, sub.ID, email.KindExpiring, threshold)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	owner, err := n.users.FindByID(ctx, repository.NoTX, sub.UserID)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := n.notifier.Deliver(ctx, owner, sub, email.KindExpiring); err != nil {
		return false, err
	}
	if err := n.notifLogs.Save(ctx, repository.NoTX, sub.ID, sub.UserID, email.KindExpiring, threshold); err != nil {
		// sent but unrecorded: the owner may get this reminder again
		return true, err
	}
	return true, nil
}
