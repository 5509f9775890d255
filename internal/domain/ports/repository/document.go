package repository

import (
	"context"

	"sports-tips-subscription/internal/domain/model"
)

// DocumentStore is the generic backing store: documents keyed by collection
// and id, holding loosely typed data. Get/Update/Delete return
// domain.ErrNotFound for missing documents.
type DocumentStore interface {
	Get(ctx context.Context, tx Tx, collection, id string) (*model.Document, error)
	// List returns documents whose top-level fields equal every filter entry.
	List(ctx context.Context, tx Tx, collection string, filter model.Filter) ([]*model.Document, error)
	// Create assigns an id when data carries none.
	Create(ctx context.Context, tx Tx, collection string, data map[string]any) (*model.Document, error)
	// Update merges patch into the top-level fields; nil values remove a field.
	Update(ctx context.Context, tx Tx, collection, id string, patch map[string]any) (*model.Document, error)
	Delete(ctx context.Context, tx Tx, collection, id string) error
}
