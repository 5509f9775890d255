package usecase

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/rs/zerolog"

	"sports-tips-subscription/internal/domain"
	"sports-tips-subscription/internal/domain/lifecycle"
	"sports-tips-subscription/internal/domain/model"
	"sports-tips-subscription/internal/domain/ports/adapter"
	"sports-tips-subscription/internal/domain/ports/repository"
	"sports-tips-subscription/internal/infra/email"
	"sports-tips-subscription/internal/infra/logging"
	"sports-tips-subscription/internal/infra/metrics"
	"sports-tips-subscription/internal/infra/worker"
)

// Notifier renders subscription notices and sends them to the owner.
// A nil *Notifier is valid and sends nothing.
type Notifier struct {
	users  repository.UserRepository
	sender adapter.EmailSender
	pool   *worker.Pool
	engine *lifecycle.Engine
	now    func() time.Time
	log    *zerolog.Logger
}

func NewNotifier(users repository.UserRepository, sender adapter.EmailSender, pool *worker.Pool, engine *lifecycle.Engine, logger *zerolog.Logger) *Notifier {
	l := logger.With().Str("component", "Notifier").Logger()
	return &Notifier{users: users, sender: sender, pool: pool, engine: engine, now: time.Now, log: &l}
}

// Deliver sends one notice synchronously.
func (n *Notifier) Deliver(ctx context.Context, owner *model.User, sub *model.Subscription, kind string) error {
	if owner == nil || owner.Email == "" {
		return domain.ErrInvalidArgument
	}
	left := n.engine.DaysLeft(sub, n.now())
	subject, body, err := email.Render(email.Notice{
		Kind:      kind,
		Name:      owner.Name,
		Plan:      string(sub.Type),
		DaysLeft:  int(math.Max(0, math.Ceil(left))),
		ExpiresAt: n.engine.ExpiresAt(sub),
	})
	if err != nil {
		return err
	}
	err = n.sender.Send(ctx, owner.Email, subject, body)
	metrics.IncEmail(kind, err)
	return err
}

// Enqueue hands a notice to the worker pool. A full queue drops the notice:
// lifecycle confirmations are best effort.
func (n *Notifier) Enqueue(ctx context.Context, sub *model.Subscription, kind string) {
	if n == nil || n.pool == nil {
		return
	}
	traceID := logging.TraceID(ctx)
	snapshot := sub.Clone()
	task := func(taskCtx context.Context) error {
		taskCtx = logging.WithTraceID(taskCtx, traceID)
		taskCtx = logging.WithSubscriptionID(taskCtx, snapshot.ID)
		owner, err := n.users.FindByID(taskCtx, repository.NoTX, snapshot.UserID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil
			}
			return err
		}
		if err := n.Deliver(taskCtx, owner, snapshot, kind); err != nil {
			logging.With(taskCtx, n.log).Warn().Err(err).Str("kind", kind).Msg("notice not delivered")
			return nil
		}
		return nil
	}
	if err := n.pool.Submit(task); err != nil {
		logging.With(ctx, n.log).Warn().Err(err).Str("kind", kind).Msg("notice dropped")
	}
}
