package document

import (
	"context"
	"errors"

	"sports-tips-subscription/internal/domain"
	"sports-tips-subscription/internal/domain/model"
	"sports-tips-subscription/internal/domain/ports/repository"
)

var _ repository.UserRepository = (*userRepo)(nil)

type userRepo struct {
	store repository.DocumentStore
}

func NewUserRepo(store repository.DocumentStore) *userRepo {
	return &userRepo{store: store}
}

// Save upserts: unknown ids are created, known ids are overwritten.
func (r *userRepo) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	if u == nil || u.Email == "" {
		return domain.ErrInvalidArgument
	}
	data := encodeUser(u)
	if u.ID != "" {
		_, err := r.store.Update(ctx, tx, model.CollectionUsers, u.ID, data)
		if err == nil || !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		data[IDField] = u.ID
	}
	doc, err := r.store.Create(ctx, tx, model.CollectionUsers, data)
	if err != nil {
		return err
	}
	u.ID = doc.ID
	return nil
}

func (r *userRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	doc, err := r.store.Get(ctx, tx, model.CollectionUsers, id)
	if err != nil {
		return nil, err
	}
	return decodeUser(doc)
}

func (r *userRepo) List(ctx context.Context, tx repository.Tx) ([]*model.User, error) {
	docs, err := r.store.List(ctx, tx, model.CollectionUsers, nil)
	if err != nil {
		return nil, err
	}
	out := make([]*model.User, 0, len(docs))
	for _, doc := range docs {
		u, err := decodeUser(doc)
		if err != nil {
			continue
		}
		out = append(out, u)
	}
	return out, nil
}
