package repository

import (
	"context"

	"sports-tips-subscription/internal/domain/model"
)

// SubscriptionRepository is the typed port for subscriptions. Implementations
// reject malformed documents with domain.ErrMalformedDocument.
type SubscriptionRepository interface {
	Create(ctx context.Context, tx Tx, sub *model.Subscription) error
	Save(ctx context.Context, tx Tx, sub *model.Subscription) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Subscription, error)
	ListByUser(ctx context.Context, tx Tx, userID string) ([]*model.Subscription, error)
	// ListValid returns subscriptions still flagged isValid. Malformed
	// documents are skipped and counted in the second return value.
	ListValid(ctx context.Context, tx Tx) ([]*model.Subscription, int, error)
	ListAll(ctx context.Context, tx Tx) ([]*model.Subscription, int, error)
	// MarkInvalid patches isValid=false. Safe to apply redundantly.
	MarkInvalid(ctx context.Context, tx Tx, id string) error
	Delete(ctx context.Context, tx Tx, id string) error
}
