//go:build !integration

package usecase_test

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"sports-tips-subscription/internal/domain"
	"sports-tips-subscription/internal/domain/model"
	"sports-tips-subscription/internal/domain/ports/adapter"
	"sports-tips-subscription/internal/domain/ports/repository"
)

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

func daysAgo(d float64) time.Time {
	return time.Now().Add(-time.Duration(d * float64(24*time.Hour)))
}

// ---- Mock SubscriptionRepository ----

type MockSubscriptionRepo struct {
	mu      sync.Mutex
	Subs    map[string]*model.Subscription
	Skipped int
	nextID  int

	Saved         []*model.Subscription
	InvalidMarked []string

	FindByIDFunc    func(ctx context.Context, tx repository.Tx, id string) (*model.Subscription, error)
	MarkInvalidFunc func(ctx context.Context, tx repository.Tx, id string) error
	ListValidFunc   func(ctx context.Context, tx repository.Tx) ([]*model.Subscription, int, error)
}

var _ repository.SubscriptionRepository = (*MockSubscriptionRepo)(nil)

func NewMockSubscriptionRepo(subs ...*model.Subscription) *MockSubscriptionRepo {
	m := &MockSubscriptionRepo{Subs: map[string]*model.Subscription{}}
	for _, s := range subs {
		m.Subs[s.ID] = s.Clone()
	}
	return m
}

func (m *MockSubscriptionRepo) Create(ctx context.Context, tx repository.Tx, sub *model.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sub.ID == "" {
		m.nextID++
		sub.ID = fmt.Sprintf("sub-new-%d", m.nextID)
	}
	if _, ok := m.Subs[sub.ID]; ok {
		return domain.ErrAlreadyExists
	}
	m.Subs[sub.ID] = sub.Clone()
	return nil
}

func (m *MockSubscriptionRepo) Save(ctx context.Context, tx repository.Tx, sub *model.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Subs[sub.ID]; !ok {
		return domain.ErrNotFound
	}
	m.Subs[sub.ID] = sub.Clone()
	m.Saved = append(m.Saved, sub.Clone())
	return nil
}

func (m *MockSubscriptionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Subscription, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, tx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.Subs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return s.Clone(), nil
}

func (m *MockSubscriptionRepo) sorted(keep func(*model.Subscription) bool) []*model.Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*model.Subscription{}
	for _, s := range m.Subs {
		if keep(s) {
			out = append(out, s.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *MockSubscriptionRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.Subscription, error) {
	return m.sorted(func(s *model.Subscription) bool { return s.UserID == userID }), nil
}

func (m *MockSubscriptionRepo) ListValid(ctx context.Context, tx repository.Tx) ([]*model.Subscription, int, error) {
	if m.ListValidFunc != nil {
		return m.ListValidFunc(ctx, tx)
	}
	return m.sorted(func(s *model.Subscription) bool { return s.IsValid }), m.Skipped, nil
}

func (m *MockSubscriptionRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.Subscription, int, error) {
	return m.sorted(func(*model.Subscription) bool { return true }), m.Skipped, nil
}

func (m *MockSubscriptionRepo) MarkInvalid(ctx context.Context, tx repository.Tx, id string) error {
	if m.MarkInvalidFunc != nil {
		return m.MarkInvalidFunc(ctx, tx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.Subs[id]
	if !ok {
		return domain.ErrNotFound
	}
	s.IsValid = false
	m.InvalidMarked = append(m.InvalidMarked, id)
	return nil
}

func (m *MockSubscriptionRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Subs, id)
	return nil
}

// ---- Mock UserRepository ----

type MockUserRepo struct {
	mu    sync.Mutex
	Users map[string]*model.User

	FindByIDFunc func(ctx context.Context, tx repository.Tx, id string) (*model.User, error)
}

var _ repository.UserRepository = (*MockUserRepo)(nil)

func NewMockUserRepo(users ...*model.User) *MockUserRepo {
	m := &MockUserRepo{Users: map[string]*model.User{}}
	for _, u := range users {
		cp := *u
		m.Users[u.ID] = &cp
	}
	return m
}

func (m *MockUserRepo) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.Users[u.ID] = &cp
	return nil
}

func (m *MockUserRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, tx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.Users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *MockUserRepo) List(ctx context.Context, tx repository.Tx) ([]*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.User, 0, len(m.Users))
	for _, u := range m.Users {
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ---- Mock NotificationLogRepository ----

type MockNotificationLogRepo struct {
	mu   sync.Mutex
	Sent map[string]bool

	ExistsFunc func(ctx context.Context, tx repository.Tx, subscriptionID, kind string, thresholdDays int) (bool, error)
}

var _ repository.NotificationLogRepository = (*MockNotificationLogRepo)(nil)

func NewMockNotificationLogRepo() *MockNotificationLogRepo {
	return &MockNotificationLogRepo{Sent: map[string]bool{}}
}

func logKey(subID, kind string, th int) string {
	return fmt.Sprintf("%s|%s|%d", subID, kind, th)
}

func (m *MockNotificationLogRepo) Save(ctx context.Context, tx repository.Tx, subscriptionID, userID, kind string, thresholdDays int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent[logKey(subscriptionID, kind, thresholdDays)] = true
	return nil
}

func (m *MockNotificationLogRepo) Exists(ctx context.Context, tx repository.Tx, subscriptionID, kind string, thresholdDays int) (bool, error) {
	if m.ExistsFunc != nil {
		return m.ExistsFunc(ctx, tx, subscriptionID, kind, thresholdDays)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Sent[logKey(subscriptionID, kind, thresholdDays)], nil
}

// ---- Mock EmailSender ----

type SentMail struct {
	To, Subject, Body string
}

type MockEmailSender struct {
	mu   sync.Mutex
	Sent []SentMail

	SendFunc func(ctx context.Context, to, subject, body string) error
}

var _ adapter.EmailSender = (*MockEmailSender)(nil)

func (m *MockEmailSender) Send(ctx context.Context, to, subject, body string) error {
	if m.SendFunc != nil {
		if err := m.SendFunc(ctx, to, subject, body); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, SentMail{To: to, Subject: subject, Body: body})
	return nil
}

func (m *MockEmailSender) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sent)
}

// ---- Mock Locker ----

type MockLocker struct {
	Held     bool
	Unlocked int
	Err      error
}

var _ adapter.Locker = (*MockLocker)(nil)

func (m *MockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	if m.Held {
		return "", domain.ErrLockNotAcquired
	}
	m.Held = true
	return "token", nil
}

func (m *MockLocker) Unlock(ctx context.Context, key, token string) error {
	m.Held = false
	m.Unlocked++
	return nil
}

// ---- Mock TransactionManager ----

type MockTxManager struct {
	Calls int
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

func (m *MockTxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	m.Calls++
	return fn(ctx, repository.NoTX)
}

// ---- Mock RateSource ----

type MockRateSource struct {
	Table      map[string]float64
	Refreshes  int
	RefreshErr error
}

func (m *MockRateSource) GetRate(currency string) float64 {
	if r, ok := m.Table[currency]; ok {
		return r
	}
	return 1
}

func (m *MockRateSource) Rates() []model.ExchangeRate {
	out := make([]model.ExchangeRate, 0, len(m.Table))
	for c, r := range m.Table {
		out = append(out, model.ExchangeRate{Currency: c, Rate: r})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Currency < out[j].Currency })
	return out
}

func (m *MockRateSource) FetchedAt() time.Time { return time.Time{} }

func (m *MockRateSource) RefreshIfStale(ctx context.Context) error {
	m.Refreshes++
	return m.RefreshErr
}
