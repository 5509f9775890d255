package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/oklog/ulid/v2"

	"sports-tips-subscription/internal/domain"
	"sports-tips-subscription/internal/domain/model"
	"sports-tips-subscription/internal/domain/ports/repository"
	"sports-tips-subscription/internal/infra/metrics"
)

var _ repository.DocumentStore = (*documentStore)(nil)

const (
	backend = "postgres"
	idField = "id"
)

// documentStore keeps every collection in one JSONB table (see
// deploy/postgres/init.sql). Filters use containment, which the GIN index on
// data serves.
type documentStore struct {
	pool *pgxpool.Pool
}

func NewDocumentStore(pool *pgxpool.Pool) *documentStore {
	return &documentStore{pool: pool}
}

func (s *documentStore) Get(ctx context.Context, tx repository.Tx, collection, id string) (doc *model.Document, err error) {
	defer metrics.ObserveStoreOp(backend, "get", time.Now(), &err)
	const q = `
SELECT data, created_at, updated_at
  FROM documents
 WHERE collection=$1 AND id=$2;`
	ex, err := getExecutor(s.pool, tx)
	if err != nil {
		return nil, err
	}
	doc = &model.Document{Collection: collection, ID: id}
	var raw []byte
	if err = ex.QueryRow(ctx, q, collection, id).Scan(&raw, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		return nil, mapErr(err)
	}
	if doc.Data, err = decodeData(raw); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *documentStore) List(ctx context.Context, tx repository.Tx, collection string, filter model.Filter) (docs []*model.Document, err error) {
	defer metrics.ObserveStoreOp(backend, "list", time.Now(), &err)
	const q = `
SELECT id, data, created_at, updated_at
  FROM documents
 WHERE collection=$1 AND data @> $2::jsonb
 ORDER BY id;`
	ex, err := getExecutor(s.pool, tx)
	if err != nil {
		return nil, err
	}
	if filter == nil {
		filter = model.Filter{}
	}
	f, err := json.Marshal(filter)
	if err != nil {
		return nil, domain.ErrInvalidArgument
	}
	rows, err := ex.Query(ctx, q, collection, string(f))
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	docs = make([]*model.Document, 0)
	for rows.Next() {
		d := &model.Document{Collection: collection}
		var raw []byte
		if err = rows.Scan(&d.ID, &raw, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		if d.Data, err = decodeData(raw); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	if err = rows.Err(); err != nil {
		return nil, mapErr(err)
	}
	return docs, nil
}

func (s *documentStore) Create(ctx context.Context, tx repository.Tx, collection string, data map[string]any) (doc *model.Document, err error) {
	defer metrics.ObserveStoreOp(backend, "create", time.Now(), &err)
	const q = `
INSERT INTO documents (collection, id, data)
VALUES ($1, $2, $3::jsonb)
RETURNING created_at, updated_at;`
	ex, err := getExecutor(s.pool, tx)
	if err != nil {
		return nil, err
	}
	set, _ := splitPatch(data)
	id, _ := set[idField].(string)
	delete(set, idField)
	if id == "" {
		id = ulid.Make().String()
	}
	b, err := json.Marshal(set)
	if err != nil {
		return nil, domain.ErrInvalidArgument
	}
	doc = &model.Document{Collection: collection, ID: id}
	if err = ex.QueryRow(ctx, q, collection, id, string(b)).Scan(&doc.CreatedAt, &doc.UpdatedAt); err != nil {
		return nil, mapErr(err)
	}
	if doc.Data, err = decodeData(b); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *documentStore) Update(ctx context.Context, tx repository.Tx, collection, id string, patch map[string]any) (doc *model.Document, err error) {
	defer metrics.ObserveStoreOp(backend, "update", time.Now(), &err)
	const q = `
UPDATE documents
   SET data = (data || $3::jsonb) - $4::text[],
       updated_at = now()
 WHERE collection=$1 AND id=$2
RETURNING data, created_at, updated_at;`
	ex, err := getExecutor(s.pool, tx)
	if err != nil {
		return nil, err
	}
	set, remove := splitPatch(patch)
	b, err := json.Marshal(set)
	if err != nil {
		return nil, domain.ErrInvalidArgument
	}
	doc = &model.Document{Collection: collection, ID: id}
	var raw []byte
	if err = ex.QueryRow(ctx, q, collection, id, string(b), remove).Scan(&raw, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		return nil, mapErr(err)
	}
	if doc.Data, err = decodeData(raw); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *documentStore) Delete(ctx context.Context, tx repository.Tx, collection, id string) (err error) {
	defer metrics.ObserveStoreOp(backend, "delete", time.Now(), &err)
	ex, err := getExecutor(s.pool, tx)
	if err != nil {
		return err
	}
	tag, err := ex.Exec(ctx, `DELETE FROM documents WHERE collection=$1 AND id=$2;`, collection, id)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// splitPatch separates values to merge from keys to drop (nil values).
func splitPatch(patch map[string]any) (map[string]any, []string) {
	set := make(map[string]any, len(patch))
	remove := make([]string, 0)
	for k, v := range patch {
		if v == nil {
			remove = append(remove, k)
			continue
		}
		set[k] = v
	}
	return set, remove
}

func decodeData(raw []byte) (map[string]any, error) {
	data := map[string]any{}
	if len(raw) == 0 {
		return data, nil
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, domain.ErrMalformedDocument
	}
	return data, nil
}

func mapErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return domain.ErrAlreadyExists
		case "40001", "40P01":
			return domain.ErrConcurrentUpdate
		}
	}
	switch err {
	case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
		return err
	}
	return domain.ErrOperationFailed
}
