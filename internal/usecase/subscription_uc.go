package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"sports-tips-subscription/internal/domain"
	"sports-tips-subscription/internal/domain/lifecycle"
	"sports-tips-subscription/internal/domain/model"
	"sports-tips-subscription/internal/domain/ports/adapter"
	"sports-tips-subscription/internal/domain/ports/repository"
	"sports-tips-subscription/internal/infra/email"
	"sports-tips-subscription/internal/infra/logging"
	"sports-tips-subscription/internal/infra/metrics"
)

// Compile-time check
var _ SubscriptionUseCase = (*subscriptionUC)(nil)

const (
	expirySweepLock    = "lock:expiry-sweep"
	expirySweepLockTTL = 5 * time.Minute
)

// SubscriptionStatus is a subscription together with its derived state.
type SubscriptionStatus struct {
	Subscription *model.Subscription     `json:"subscription"`
	State        model.SubscriptionState `json:"state"`
	ExpiresAt    time.Time               `json:"expiresAt"`
	DaysLeft     float64                 `json:"daysLeft"`
}

type SubscriptionUseCase interface {
	Assign(ctx context.Context, userID string, t model.SubscriptionType, durationDays int) (*SubscriptionStatus, error)
	// Get derives the current state. A subscription whose window has passed
	// is marked invalid on read.
	Get(ctx context.Context, id string) (*SubscriptionStatus, error)
	ListByUser(ctx context.Context, userID string) ([]*SubscriptionStatus, error)
	Freeze(ctx context.Context, id string) (*SubscriptionStatus, error)
	Unfreeze(ctx context.Context, id string) (*SubscriptionStatus, error)
	Renew(ctx context.Context, id string, t model.SubscriptionType, durationDays int) (*SubscriptionStatus, error)
	Expire(ctx context.Context, id string) (*SubscriptionStatus, error)
	// ExpireDue invalidates every valid subscription whose window has passed
	// and returns how many were invalidated.
	ExpireDue(ctx context.Context) (int, error)
	HasAccess(ctx context.Context, userID string, plan model.PlanToken) (bool, error)
}

type subscriptionUC struct {
	subs      repository.SubscriptionRepository
	users     repository.UserRepository
	txm       repository.TransactionManager
	engine    *lifecycle.Engine
	durations map[int]bool
	locker    adapter.Locker
	notifier  *Notifier
	now       func() time.Time
	log       *zerolog.Logger
}

// NewSubscriptionUseCase wires the lifecycle engine to storage. durations
// lists the allowed subscription lengths in days.
func NewSubscriptionUseCase(
	subs repository.SubscriptionRepository,
	users repository.UserRepository,
	txm repository.TransactionManager,
	engine *lifecycle.Engine,
	durations []int,
	locker adapter.Locker,
	notifier *Notifier,
	logger *zerolog.Logger,
) *subscriptionUC {
	allowed := make(map[int]bool, len(durations))
	for _, d := range durations {
		allowed[d] = true
	}
	l := logger.With().Str("component", "SubscriptionUseCase").Logger()
	return &subscriptionUC{
		subs:      subs,
		users:     users,
		txm:       txm,
		engine:    engine,
		durations: allowed,
		locker:    locker,
		notifier:  notifier,
		now:       time.Now,
		log:       &l,
	}
}

func (uc *subscriptionUC) status(sub *model.Subscription, now time.Time) *SubscriptionStatus {
	return &SubscriptionStatus{
		Subscription: sub,
		State:        uc.engine.ComputeStatus(sub, now),
		ExpiresAt:    uc.engine.ExpiresAt(sub),
		DaysLeft:     uc.engine.DaysLeft(sub, now),
	}
}

func (uc *subscriptionUC) checkDuration(days int) error {
	if !uc.durations[days] {
		return domain.ErrInvalidDuration
	}
	return nil
}

func (uc *subscriptionUC) Assign(ctx context.Context, userID string, t model.SubscriptionType, durationDays int) (res *SubscriptionStatus, err error) {
	defer func() { metrics.IncSubscriptionOp("assign", err) }()
	if err := uc.checkDuration(durationDays); err != nil {
		return nil, err
	}
	if _, err := uc.users.FindByID(ctx, repository.NoTX, userID); err != nil {
		return nil, err
	}
	now := uc.now()
	sub, err := model.NewSubscription("", userID, t, durationDays, now)
	if err != nil {
		return nil, err
	}
	if err := uc.subs.Create(ctx, repository.NoTX, sub); err != nil {
		return nil, err
	}
	ctx = logging.WithSubscriptionID(logging.WithUserID(ctx, userID), sub.ID)
	logging.With(ctx, uc.log).Info().Str("type", string(sub.Type)).Int("duration", durationDays).Msg("subscription assigned")
	uc.notifier.Enqueue(ctx, sub, email.KindAssigned)
	return uc.status(sub, now), nil
}

func (uc *subscriptionUC) Get(ctx context.Context, id string) (*SubscriptionStatus, error) {
	sub, err := uc.subs.FindByID(ctx, repository.NoTX, id)
	if err != nil {
		return nil, err
	}
	now := uc.now()
	if err := uc.invalidateIfDue(ctx, sub, now); err != nil {
		return nil, err
	}
	return uc.status(sub, now), nil
}

// invalidateIfDue persists the expired flag when sub, as read by the caller,
// looks lapsed. The decision is re-made on a fresh read, so sub may come back
// renewed instead of expired.
func (uc *subscriptionUC) invalidateIfDue(ctx context.Context, sub *model.Subscription, now time.Time) error {
	if !uc.engine.NeedsInvalidation(sub, now) {
		return nil
	}
	cur, _, err := uc.expireIfDue(ctx, sub.ID, now)
	if err != nil {
		return err
	}
	*sub = *cur
	return nil
}

// expireIfDue re-reads the subscription inside a transaction and writes
// isValid=false only if its current window has lapsed. A renewal committed
// after an earlier read is left alone. It returns the state after the check
// and whether this call invalidated it.
func (uc *subscriptionUC) expireIfDue(ctx context.Context, id string, now time.Time) (*model.Subscription, bool, error) {
	var (
		cur     *model.Subscription
		expired bool
	)
	err := uc.txm.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead}, func(ctx context.Context, tx repository.Tx) error {
		sub, err := uc.subs.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if !uc.engine.NeedsInvalidation(sub, now) {
			cur = sub
			return nil
		}
		if err := uc.subs.MarkInvalid(ctx, tx, id); err != nil {
			return err
		}
		cur, expired = uc.engine.Expire(sub), true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return cur, expired, nil
}

func (uc *subscriptionUC) ListByUser(ctx context.Context, userID string) ([]*SubscriptionStatus, error) {
	subs, err := uc.subs.ListByUser(ctx, repository.NoTX, userID)
	if err != nil {
		return nil, err
	}
	now := uc.now()
	out := make([]*SubscriptionStatus, 0, len(subs))
	for _, sub := range subs {
		if err := uc.invalidateIfDue(ctx, sub, now); err != nil {
			logging.With(ctx, uc.log).Warn().Err(err).Str("subscription_id", sub.ID).Msg("could not persist expiry")
		}
		out = append(out, uc.status(sub, now))
	}
	return out, nil
}

// mutate loads, transforms and saves one subscription inside a store
// transaction, then sends the confirmation notice.
func (uc *subscriptionUC) mutate(ctx context.Context, op, id, notice string, fn func(*model.Subscription, time.Time) (*model.Subscription, error)) (res *SubscriptionStatus, err error) {
	defer func() { metrics.IncSubscriptionOp(op, err) }()
	now := uc.now()
	var updated *model.Subscription
	err = uc.txm.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead}, func(ctx context.Context, tx repository.Tx) error {
		sub, err := uc.subs.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		next, err := fn(sub, now)
		if err != nil {
			return err
		}
		if err := uc.subs.Save(ctx, tx, next); err != nil {
			return err
		}
		updated = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	ctx = logging.WithSubscriptionID(logging.WithUserID(ctx, updated.UserID), updated.ID)
	logging.With(ctx, uc.log).Info().Str("op", op).Msg("subscription updated")
	uc.notifier.Enqueue(ctx, updated, notice)
	return uc.status(updated, now), nil
}

func (uc *subscriptionUC) Freeze(ctx context.Context, id string) (*SubscriptionStatus, error) {
	return uc.mutate(ctx, "freeze", id, email.KindFrozen, func(sub *model.Subscription, now time.Time) (*model.Subscription, error) {
		// a lapsed window cannot be frozen even if the flag was never written
		if uc.engine.NeedsInvalidation(sub, now) {
			return nil, domain.ErrExpiredSubscription
		}
		return uc.engine.Freeze(sub, now)
	})
}

func (uc *subscriptionUC) Unfreeze(ctx context.Context, id string) (*SubscriptionStatus, error) {
	return uc.mutate(ctx, "unfreeze", id, email.KindUnfrozen, uc.engine.Unfreeze)
}

func (uc *subscriptionUC) Renew(ctx context.Context, id string, t model.SubscriptionType, durationDays int) (*SubscriptionStatus, error) {
	if err := uc.checkDuration(durationDays); err != nil {
		metrics.IncSubscriptionOp("renew", err)
		return nil, err
	}
	return uc.mutate(ctx, "renew", id, email.KindRenewed, func(sub *model.Subscription, now time.Time) (*model.Subscription, error) {
		return uc.engine.Renew(sub, t, durationDays, now)
	})
}

func (uc *subscriptionUC) Expire(ctx context.Context, id string) (res *SubscriptionStatus, err error) {
	defer func() { metrics.IncSubscriptionOp("expire", err) }()
	var (
		sub      *model.Subscription
		wasValid bool
	)
	err = uc.txm.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead}, func(ctx context.Context, tx repository.Tx) error {
		cur, err := uc.subs.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		wasValid = cur.IsValid
		if err := uc.subs.MarkInvalid(ctx, tx, id); err != nil {
			return err
		}
		sub = uc.engine.Expire(cur)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if wasValid {
		uc.notifier.Enqueue(logging.WithUserID(ctx, sub.UserID), sub, email.KindExpired)
	}
	return uc.status(sub, uc.now()), nil
}

func (uc *subscriptionUC) ExpireDue(ctx context.Context) (int, error) {
	token, err := uc.locker.TryLock(ctx, expirySweepLock, expirySweepLockTTL)
	if err != nil {
		if errors.Is(err, domain.ErrLockNotAcquired) {
			uc.log.Debug().Msg("expiry sweep held elsewhere")
			return 0, nil
		}
		return 0, err
	}
	defer func() {
		if err := uc.locker.Unlock(context.WithoutCancel(ctx), expirySweepLock, token); err != nil {
			uc.log.Warn().Err(err).Msg("release expiry sweep lock")
		}
	}()

	subs, skipped, err := uc.subs.ListValid(ctx, repository.NoTX)
	if err != nil {
		return 0, err
	}
	if skipped > 0 {
		metrics.AddMalformedSkipped(skipped)
		uc.log.Warn().Int("skipped", skipped).Msg("malformed subscriptions skipped")
	}
	now := uc.now()
	expired := 0
	for _, sub := range subs {
		if ctx.Err() != nil {
			break
		}
		if !uc.engine.NeedsInvalidation(sub, now) {
			continue
		}
		cur, ok, err := uc.expireIfDue(ctx, sub.ID, now)
		if err != nil {
			uc.log.Error().Err(err).Str("subscription_id", sub.ID).Msg("mark invalid failed")
			continue
		}
		if !ok {
			uc.log.Debug().Str("subscription_id", sub.ID).Msg("changed since listing; left valid")
			continue
		}
		expired++
		uc.notifier.Enqueue(ctx, cur, email.KindExpired)
	}
	if expired > 0 {
		metrics.IncSubscriptionsExpired(expired)
	}
	return expired, ctx.Err()
}

// HasAccess reports whether any live subscription of the user grants plan.
// Frozen subscriptions grant nothing while frozen.
func (uc *subscriptionUC) HasAccess(ctx context.Context, userID string, plan model.PlanToken) (bool, error) {
	if !plan.Valid() {
		return false, domain.ErrUnknownPlan
	}
	subs, err := uc.subs.ListByUser(ctx, repository.NoTX, userID)
	if err != nil {
		return false, err
	}
	now := uc.now()
	for _, sub := range subs {
		switch uc.engine.ComputeStatus(sub, now) {
		case model.SubscriptionStateActive, model.SubscriptionStateExpiring:
			if sub.Type.Grants(plan) {
				return true, nil
			}
		}
	}
	return false, nil
}
