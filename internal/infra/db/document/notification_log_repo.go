package document

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sports-tips-subscription/internal/domain"
	"sports-tips-subscription/internal/domain/model"
	"sports-tips-subscription/internal/domain/ports/repository"
)

var _ repository.NotificationLogRepository = (*notificationLogRepo)(nil)

// notificationLogRepo keys each entry by subscription, kind and threshold so
// Exists is a single Get and a duplicate Save is a no-op.
type notificationLogRepo struct {
	store repository.DocumentStore
}

func NewNotificationLogRepo(store repository.DocumentStore) *notificationLogRepo {
	return &notificationLogRepo{store: store}
}

func notificationID(subscriptionID, kind string, thresholdDays int) string {
	return fmt.Sprintf("%s_%s_%d", subscriptionID, kind, thresholdDays)
}

func (r *notificationLogRepo) Save(ctx context.Context, tx repository.Tx, subscriptionID, userID, kind string, thresholdDays int) error {
	_, err := r.store.Create(ctx, tx, model.CollectionNotifications, map[string]any{
		IDField:         notificationID(subscriptionID, kind, thresholdDays),
		"subscription":  subscriptionID,
		"user":          userID,
		"kind":          kind,
		"thresholdDays": thresholdDays,
		"sentAt":        time.Now().UTC().Format(time.RFC3339Nano),
	})
	if errors.Is(err, domain.ErrAlreadyExists) {
		return nil
	}
	return err
}

func (r *notificationLogRepo) Exists(ctx context.Context, tx repository.Tx, subscriptionID, kind string, thresholdDays int) (bool, error) {
	_, err := r.store.Get(ctx, tx, model.CollectionNotifications, notificationID(subscriptionID, kind, thresholdDays))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, domain.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}
