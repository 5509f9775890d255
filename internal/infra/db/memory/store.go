// Package memory is a process-local DocumentStore used by tests and by the
// "memory" database driver. Data is passed through JSON on the way in so the
// values it hands back have the same shapes the networked stores produce.
package memory

import (
	"context"
	"encoding/json"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/oklog/ulid/v2"

	"sports-tips-subscription/internal/domain"
	"sports-tips-subscription/internal/domain/model"
	"sports-tips-subscription/internal/domain/ports/repository"
)

const idField = "id"

var (
	_ repository.DocumentStore      = (*Store)(nil)
	_ repository.TransactionManager = (*Store)(nil)
)

type Store struct {
	// txMu serializes WithTx callbacks; mu guards cols per call.
	txMu sync.Mutex
	mu   sync.RWMutex
	cols map[string]map[string]*model.Document
	now  func() time.Time
}

func NewStore() *Store {
	return &Store{
		cols: make(map[string]map[string]*model.Document),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Put stores raw data under id without normalisation. Tests use it to seed
// documents no repository would write.
func (s *Store) Put(collection, id string, data map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.col(collection)[id] = &model.Document{Collection: collection, ID: id, Data: data, CreatedAt: now, UpdatedAt: now}
}

func (s *Store) Get(_ context.Context, _ repository.Tx, collection, id string) (*model.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.cols[collection][id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneDoc(doc), nil
}

func (s *Store) List(_ context.Context, _ repository.Tx, collection string, filter model.Filter) ([]*model.Document, error) {
	want, err := normalize(map[string]any(filter))
	if err != nil {
		return nil, domain.ErrInvalidArgument
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.Document, 0)
	for _, doc := range s.cols[collection] {
		if matches(doc.Data, want) {
			out = append(out, cloneDoc(doc))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) Create(_ context.Context, _ repository.Tx, collection string, data map[string]any) (*model.Document, error) {
	clean, err := normalize(data)
	if err != nil {
		return nil, domain.ErrInvalidArgument
	}
	id, _ := clean[idField].(string)
	delete(clean, idField)
	dropNils(clean)

	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.col(collection)
	if id == "" {
		id = ulid.Make().String()
	}
	if _, exists := c[id]; exists {
		return nil, domain.ErrAlreadyExists
	}
	now := s.now()
	doc := &model.Document{Collection: collection, ID: id, Data: clean, CreatedAt: now, UpdatedAt: now}
	c[id] = doc
	return cloneDoc(doc), nil
}

func (s *Store) Update(_ context.Context, _ repository.Tx, collection, id string, patch map[string]any) (*model.Document, error) {
	clean, err := normalize(patch)
	if err != nil {
		return nil, domain.ErrInvalidArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.cols[collection][id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	for k, v := range clean {
		if v == nil {
			delete(doc.Data, k)
			continue
		}
		doc.Data[k] = v
	}
	doc.UpdatedAt = s.now()
	return cloneDoc(doc), nil
}

func (s *Store) Delete(_ context.Context, _ repository.Tx, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cols[collection][id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.cols[collection], id)
	return nil
}

// WithTx runs one callback at a time with NoTX. Writes made before fn fails
// are not undone. Callbacks must not nest.
func (s *Store) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return fn(ctx, repository.NoTX)
}

func (s *Store) col(name string) map[string]*model.Document {
	c, ok := s.cols[name]
	if !ok {
		c = make(map[string]*model.Document)
		s.cols[name] = c
	}
	return c
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

func dropNils(m map[string]any) {
	for k, v := range m {
		if v == nil {
			delete(m, k)
		}
	}
}

func matches(data, want map[string]any) bool {
	for k, v := range want {
		if !reflect.DeepEqual(data[k], v) {
			return false
		}
	}
	return true
}

func cloneDoc(d *model.Document) *model.Document {
	cp := *d
	cp.Data = make(map[string]any, len(d.Data))
	for k, v := range d.Data {
		cp.Data[k] = v
	}
	return &cp
}
