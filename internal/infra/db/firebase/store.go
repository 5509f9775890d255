package firebase

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"firebase.google.com/go/v4/db"
	"github.com/jackc/pgx/v4"
	"github.com/oklog/ulid/v2"

	"sports-tips-subscription/internal/domain"
	"sports-tips-subscription/internal/domain/model"
	"sports-tips-subscription/internal/domain/ports/repository"
	"sports-tips-subscription/internal/infra/metrics"
)

var (
	_ repository.DocumentStore      = (*Store)(nil)
	_ repository.TransactionManager = (*Store)(nil)
)

const (
	backend      = "firebase"
	idField      = "id"
	metaCreated  = "_createdAt"
	metaUpdated  = "_updatedAt"
	invalidChars = ".#$[]/"
)

// Store ignores tx: the Realtime Database has no multi-path transactions.
// Timestamps live beside the data as epoch millis under reserved keys.
type Store struct {
	t   tree
	now func() time.Time
	// txMu serializes WithTx callbacks within this process.
	txMu sync.Mutex
}

func NewStore(cli *db.Client) *Store {
	return newStore(rtdb{cli: cli})
}

func newStore(t tree) *Store {
	return &Store{t: t, now: time.Now}
}

func (s *Store) Get(ctx context.Context, _ repository.Tx, collection, id string) (doc *model.Document, err error) {
	defer metrics.ObserveStoreOp(backend, "get", time.Now(), &err)
	p, err := path(collection, id)
	if err != nil {
		return nil, err
	}
	var raw map[string]any
	if err = s.t.Get(ctx, p, &raw); err != nil {
		return nil, domain.ErrOperationFailed
	}
	if raw == nil {
		return nil, domain.ErrNotFound
	}
	return toDocument(collection, id, raw), nil
}

// List pushes the first filter key (in sorted order) down as an equality
// query and applies the rest in process.
func (s *Store) List(ctx context.Context, _ repository.Tx, collection string, filter model.Filter) (docs []*model.Document, err error) {
	defer metrics.ObserveStoreOp(backend, "list", time.Now(), &err)
	p, err := path(collection, "")
	if err != nil {
		return nil, err
	}
	want, err := normalize(map[string]any(filter))
	if err != nil {
		return nil, domain.ErrInvalidArgument
	}
	keys := make([]string, 0, len(want))
	for k := range want {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var raw map[string]any
	if len(keys) == 0 {
		err = s.t.Get(ctx, p, &raw)
	} else {
		err = s.t.QueryEqual(ctx, p, keys[0], want[keys[0]], &raw)
	}
	if err != nil {
		return nil, domain.ErrOperationFailed
	}

	docs = make([]*model.Document, 0, len(raw))
	for id, v := range raw {
		data, ok := v.(map[string]any)
		if !ok {
			// scalar children are not documents
			continue
		}
		if !matches(data, want, keys) {
			continue
		}
		docs = append(docs, toDocument(collection, id, data))
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

func (s *Store) Create(ctx context.Context, _ repository.Tx, collection string, data map[string]any) (doc *model.Document, err error) {
	defer metrics.ObserveStoreOp(backend, "create", time.Now(), &err)
	clean, err := normalize(data)
	if err != nil {
		return nil, domain.ErrInvalidArgument
	}
	id, _ := clean[idField].(string)
	delete(clean, idField)
	for k, v := range clean {
		if v == nil {
			delete(clean, k)
		}
	}
	if id == "" {
		id = ulid.Make().String()
	}
	p, err := path(collection, id)
	if err != nil {
		return nil, err
	}
	now := s.now().UnixMilli()
	clean[metaCreated] = now
	clean[metaUpdated] = now

	if err = s.t.CreateIfAbsent(ctx, p, clean); err != nil {
		if errors.Is(err, errExists) {
			return nil, domain.ErrAlreadyExists
		}
		return nil, domain.ErrOperationFailed
	}
	return toDocument(collection, id, clean), nil
}

// Update patches the node in a single RTDB transaction so a concurrent
// Delete cannot be undone by a partial write. A nil value removes the field.
func (s *Store) Update(ctx context.Context, tx repository.Tx, collection, id string, patch map[string]any) (doc *model.Document, err error) {
	defer metrics.ObserveStoreOp(backend, "update", time.Now(), &err)
	p, err := path(collection, id)
	if err != nil {
		return nil, err
	}
	clean, err := normalize(patch)
	if err != nil {
		return nil, domain.ErrInvalidArgument
	}
	delete(clean, idField)
	delete(clean, metaCreated)
	clean[metaUpdated] = s.now().UnixMilli()

	merged, err := s.t.UpdateIfPresent(ctx, p, clean)
	if err != nil {
		if errors.Is(err, errMissing) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrOperationFailed
	}
	return toDocument(collection, id, merged), nil
}

func (s *Store) Delete(ctx context.Context, tx repository.Tx, collection, id string) (err error) {
	defer metrics.ObserveStoreOp(backend, "delete", time.Now(), &err)
	p, err := path(collection, id)
	if err != nil {
		return err
	}
	if _, err = s.Get(ctx, tx, collection, id); err != nil {
		return err
	}
	if err = s.t.Delete(ctx, p); err != nil {
		return domain.ErrOperationFailed
	}
	return nil
}

// WithTx runs one callback at a time with NoTX. Writes are not grouped: a
// failure midway leaves earlier writes in place, and other processes are
// not excluded.
func (s *Store) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return fn(ctx, repository.NoTX)
}

func path(collection, id string) (string, error) {
	if collection == "" || strings.ContainsAny(collection, invalidChars) || strings.ContainsAny(id, invalidChars) {
		return "", domain.ErrInvalidArgument
	}
	if id == "" {
		return "/" + collection, nil
	}
	return "/" + collection + "/" + id, nil
}

func toDocument(collection, id string, raw map[string]any) *model.Document {
	doc := &model.Document{Collection: collection, ID: id, Data: make(map[string]any, len(raw))}
	for k, v := range raw {
		switch k {
		case metaCreated:
			doc.CreatedAt = millis(v)
		case metaUpdated:
			doc.UpdatedAt = millis(v)
		default:
			doc.Data[k] = v
		}
	}
	return doc
}

func millis(v any) time.Time {
	switch x := v.(type) {
	case float64:
		return time.UnixMilli(int64(x)).UTC()
	case int64:
		return time.UnixMilli(x).UTC()
	}
	return time.Time{}
}

func normalize(in map[string]any) (map[string]any, error) {
	out := map[string]any{}
	if len(in) == 0 {
		return out, nil
	}
	b, err := json.Marshal(in)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func matches(data, want map[string]any, keys []string) bool {
	for _, k := range keys {
		if !reflect.DeepEqual(data[k], want[k]) {
			return false
		}
	}
	return true
}
