package document

import (
	"context"
	"errors"

	"sports-tips-subscription/internal/domain"
	"sports-tips-subscription/internal/domain/model"
	"sports-tips-subscription/internal/domain/ports/repository"
)

var _ repository.SubscriptionRepository = (*subscriptionRepo)(nil)

type subscriptionRepo struct {
	store repository.DocumentStore
}

func NewSubscriptionRepo(store repository.DocumentStore) *subscriptionRepo {
	return &subscriptionRepo{store: store}
}

// Create persists a new subscription and writes the assigned id back into sub.
func (r *subscriptionRepo) Create(ctx context.Context, tx repository.Tx, sub *model.Subscription) error {
	if err := sub.Validate(); err != nil {
		return domain.ErrInvalidArgument
	}
	data := encodeSubscription(sub)
	if sub.ID != "" {
		data[IDField] = sub.ID
	}
	doc, err := r.store.Create(ctx, tx, model.CollectionSubscriptions, data)
	if err != nil {
		return err
	}
	sub.ID = doc.ID
	return nil
}

// Save overwrites every lifecycle field of an existing subscription.
func (r *subscriptionRepo) Save(ctx context.Context, tx repository.Tx, sub *model.Subscription) error {
	if sub.ID == "" {
		return domain.ErrInvalidArgument
	}
	if err := sub.Validate(); err != nil {
		return domain.ErrInvalidArgument
	}
	_, err := r.store.Update(ctx, tx, model.CollectionSubscriptions, sub.ID, encodeSubscription(sub))
	return err
}

func (r *subscriptionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Subscription, error) {
	doc, err := r.store.Get(ctx, tx, model.CollectionSubscriptions, id)
	if err != nil {
		return nil, err
	}
	return decodeSubscription(doc)
}

func (r *subscriptionRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.Subscription, error) {
	out, _, err := r.list(ctx, tx, model.Filter{fieldUser: userID})
	return out, err
}

func (r *subscriptionRepo) ListValid(ctx context.Context, tx repository.Tx) ([]*model.Subscription, int, error) {
	return r.list(ctx, tx, model.Filter{fieldIsValid: true})
}

func (r *subscriptionRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.Subscription, int, error) {
	return r.list(ctx, tx, nil)
}

func (r *subscriptionRepo) MarkInvalid(ctx context.Context, tx repository.Tx, id string) error {
	_, err := r.store.Update(ctx, tx, model.CollectionSubscriptions, id, map[string]any{fieldIsValid: false})
	return err
}

func (r *subscriptionRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	return r.store.Delete(ctx, tx, model.CollectionSubscriptions, id)
}

// list decodes every document, skipping the malformed ones.
func (r *subscriptionRepo) list(ctx context.Context, tx repository.Tx, f model.Filter) ([]*model.Subscription, int, error) {
	docs, err := r.store.List(ctx, tx, model.CollectionSubscriptions, f)
	if err != nil {
		return nil, 0, err
	}
	out := make([]*model.Subscription, 0, len(docs))
	skipped := 0
	for _, doc := range docs {
		s, err := decodeSubscription(doc)
		if err != nil {
			if errors.Is(err, domain.ErrMalformedDocument) {
				skipped++
				continue
			}
			return nil, skipped, err
		}
		out = append(out, s)
	}
	return out, skipped, nil
}
