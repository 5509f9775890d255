//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"sports-tips-subscription/internal/domain"
	"sports-tips-subscription/internal/domain/lifecycle"
	"sports-tips-subscription/internal/domain/model"
	"sports-tips-subscription/internal/domain/ports/repository"
	"sports-tips-subscription/internal/infra/worker"
	"sports-tips-subscription/internal/usecase"
)

type subFixture struct {
	subs   *MockSubscriptionRepo
	users  *MockUserRepo
	sender *MockEmailSender
	locker *MockLocker
	txm    *MockTxManager
	pool   *worker.Pool
	uc     usecase.SubscriptionUseCase
}

func newSubFixture(t *testing.T, subs ...*model.Subscription) *subFixture {
	t.Helper()
	logger := newTestLogger()
	f := &subFixture{
		subs:   NewMockSubscriptionRepo(subs...),
		users:  NewMockUserRepo(&model.User{ID: "user-1", Email: "ada@example.com", Name: "Ada", Country: "Nigeria"}),
		sender: &MockEmailSender{},
		locker: &MockLocker{},
		txm:    &MockTxManager{},
		pool:   worker.NewPool(1, logger),
	}
	f.pool.Start(context.Background())
	t.Cleanup(f.pool.Stop)
	engine := lifecycle.NewEngine(3)
	notifier := usecase.NewNotifier(f.users, f.sender, f.pool, engine, logger)
	f.uc = usecase.NewSubscriptionUseCase(f.subs, f.users, f.txm, engine, []int{10, 20, 30}, f.locker, notifier, logger)
	return f
}

// waitForMail polls until the pool has delivered n messages.
func waitForMail(t *testing.T, s *MockEmailSender, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for s.Count() < n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d mails, got %d", n, s.Count())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func validSub(id string, startedDaysAgo float64, duration int) *model.Subscription {
	return &model.Subscription{
		ID:           id,
		UserID:       "user-1",
		Type:         "vip",
		DurationDays: duration,
		IsValid:      true,
		CreatedAt:    daysAgo(startedDaysAgo),
	}
}

func TestSubscriptionUseCase_Assign(t *testing.T) {
	ctx := context.Background()

	t.Run("should create a valid subscription and confirm by mail", func(t *testing.T) {
		f := newSubFixture(t)
		st, err := f.uc.Assign(ctx, "user-1", "mega&vip", 30)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if st.Subscription.ID == "" || st.Subscription.Type != "vip&mega" {
			t.Fatalf("unexpected subscription: %+v", st.Subscription)
		}
		if st.State != model.SubscriptionStateActive {
			t.Errorf("expected ACTIVE, got %s", st.State)
		}
		if _, ok := f.subs.Subs[st.Subscription.ID]; !ok {
			t.Error("subscription was not stored")
		}
		waitForMail(t, f.sender, 1)
		if f.sender.Sent[0].To != "ada@example.com" {
			t.Errorf("mail sent to %q", f.sender.Sent[0].To)
		}
	})

	testCases := []struct {
		name     string
		userID   string
		typ      model.SubscriptionType
		duration int
		want     error
	}{
		{"unknown user", "ghost", "vip", 10, domain.ErrNotFound},
		{"duration without a price", "user-1", "vip", 15, domain.ErrInvalidDuration},
		{"unknown plan", "user-1", "platinum", 10, domain.ErrUnknownPlan},
	}
	for _, tc := range testCases {
		t.Run("should reject "+tc.name, func(t *testing.T) {
			f := newSubFixture(t)
			if _, err := f.uc.Assign(ctx, tc.userID, tc.typ, tc.duration); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if len(f.subs.Subs) != 0 {
				t.Error("nothing should be stored")
			}
		})
	}
}

func TestSubscriptionUseCase_Get(t *testing.T) {
	ctx := context.Background()

	t.Run("should write back expiry for a lapsed subscription", func(t *testing.T) {
		f := newSubFixture(t, validSub("sub-1", 11, 10))
		st, err := f.uc.Get(ctx, "sub-1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if st.State != model.SubscriptionStateExpired || st.Subscription.IsValid {
			t.Fatalf("expected an invalidated EXPIRED subscription, got %s valid=%v", st.State, st.Subscription.IsValid)
		}
		if len(f.subs.InvalidMarked) != 1 {
			t.Fatalf("expected one write-back, got %v", f.subs.InvalidMarked)
		}
		// a second read finds isValid=false and does not write again
		if _, err := f.uc.Get(ctx, "sub-1"); err != nil {
			t.Fatal(err)
		}
		if len(f.subs.InvalidMarked) != 1 {
			t.Fatalf("expected no second write-back, got %v", f.subs.InvalidMarked)
		}
	})

	t.Run("should report EXPIRING inside the warning window", func(t *testing.T) {
		f := newSubFixture(t, validSub("sub-1", 8, 10))
		st, err := f.uc.Get(ctx, "sub-1")
		if err != nil {
			t.Fatal(err)
		}
		if st.State != model.SubscriptionStateExpiring {
			t.Errorf("expected EXPIRING, got %s", st.State)
		}
		if st.DaysLeft < 1.9 || st.DaysLeft > 2.1 {
			t.Errorf("expected ~2 days left, got %v", st.DaysLeft)
		}
	})

	t.Run("should not expire a subscription renewed after the read", func(t *testing.T) {
		f := newSubFixture(t, validSub("sub-1", 11, 10))
		stale, _ := f.subs.FindByID(ctx, repository.NoTX, "sub-1")
		reads := 0
		f.subs.FindByIDFunc = func(ctx context.Context, tx repository.Tx, id string) (*model.Subscription, error) {
			reads++
			if reads == 1 {
				return stale.Clone(), nil
			}
			f.subs.mu.Lock()
			defer f.subs.mu.Unlock()
			return f.subs.Subs[id].Clone(), nil
		}
		renewedAt := time.Now()
		f.subs.mu.Lock()
		f.subs.Subs["sub-1"].UpdatedAt = &renewedAt
		f.subs.mu.Unlock()

		st, err := f.uc.Get(ctx, "sub-1")
		if err != nil {
			t.Fatal(err)
		}
		if st.State != model.SubscriptionStateActive || len(f.subs.InvalidMarked) != 0 {
			t.Fatalf("expected ACTIVE without write-back, got %s marked=%v", st.State, f.subs.InvalidMarked)
		}
		if f.txm.Calls != 1 {
			t.Errorf("expected the re-check inside one transaction, got %d", f.txm.Calls)
		}
	})

	t.Run("should propagate not found", func(t *testing.T) {
		f := newSubFixture(t)
		if _, err := f.uc.Get(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestSubscriptionUseCase_FreezeCycle(t *testing.T) {
	ctx := context.Background()
	f := newSubFixture(t, validSub("sub-1", 2, 10))

	st, err := f.uc.Freeze(ctx, "sub-1")
	if err != nil {
		t.Fatalf("freeze: %v", err)
	}
	if st.State != model.SubscriptionStateFrozen || f.txm.Calls != 1 {
		t.Fatalf("expected FROZEN inside a tx, got %s (tx calls %d)", st.State, f.txm.Calls)
	}
	if _, err := f.uc.Freeze(ctx, "sub-1"); !errors.Is(err, domain.ErrAlreadyFrozen) {
		t.Fatalf("expected ErrAlreadyFrozen, got %v", err)
	}

	st, err = f.uc.Unfreeze(ctx, "sub-1")
	if err != nil {
		t.Fatalf("unfreeze: %v", err)
	}
	if st.State != model.SubscriptionStateActive || st.Subscription.FreezeEnd == nil {
		t.Fatalf("expected ACTIVE with a freeze end, got %+v", st)
	}
	if _, err := f.uc.Unfreeze(ctx, "sub-1"); !errors.Is(err, domain.ErrNotFrozen) {
		t.Fatalf("expected ErrNotFrozen, got %v", err)
	}
	waitForMail(t, f.sender, 2)
	if !strings.Contains(f.sender.Sent[0].Subject, "paused") {
		t.Errorf("first mail should confirm the freeze, got %q", f.sender.Sent[0].Subject)
	}
}

func TestSubscriptionUseCase_FreezeRejectsLapsedWindow(t *testing.T) {
	f := newSubFixture(t, validSub("sub-1", 12, 10))
	if _, err := f.uc.Freeze(context.Background(), "sub-1"); !errors.Is(err, domain.ErrExpiredSubscription) {
		t.Fatalf("expected ErrExpiredSubscription, got %v", err)
	}
	if len(f.subs.Saved) != 0 {
		t.Error("nothing should be saved")
	}
}

func TestSubscriptionUseCase_Renew(t *testing.T) {
	ctx := context.Background()
	old := validSub("sub-1", 40, 30)
	old.IsValid = false
	f := newSubFixture(t, old)

	if _, err := f.uc.Renew(ctx, "sub-1", "vip", 7); !errors.Is(err, domain.ErrInvalidDuration) {
		t.Fatalf("expected ErrInvalidDuration, got %v", err)
	}
	st, err := f.uc.Renew(ctx, "sub-1", "all", 20)
	if err != nil {
		t.Fatalf("renew: %v", err)
	}
	if st.State != model.SubscriptionStateActive || st.Subscription.Type != "all" || st.Subscription.DurationDays != 20 {
		t.Fatalf("unexpected renewal: %+v", st.Subscription)
	}
	if st.DaysLeft < 19.9 {
		t.Errorf("renewal should start a fresh window, got %v days left", st.DaysLeft)
	}
}

func TestSubscriptionUseCase_Expire(t *testing.T) {
	ctx := context.Background()
	f := newSubFixture(t, validSub("sub-1", 1, 30))

	st, err := f.uc.Expire(ctx, "sub-1")
	if err != nil {
		t.Fatal(err)
	}
	if st.State != model.SubscriptionStateExpired {
		t.Fatalf("expected EXPIRED, got %s", st.State)
	}
	if _, err := f.uc.Expire(ctx, "sub-1"); err != nil {
		t.Fatalf("expire should be idempotent, got %v", err)
	}
	waitForMail(t, f.sender, 1)
	time.Sleep(20 * time.Millisecond)
	if f.sender.Count() != 1 {
		t.Errorf("only the first expiry should notify, got %d mails", f.sender.Count())
	}
}

func TestSubscriptionUseCase_ExpireDue(t *testing.T) {
	ctx := context.Background()

	t.Run("should invalidate only lapsed subscriptions", func(t *testing.T) {
		frozen := validSub("sub-frozen", 40, 10)
		frozen.IsFreeze = true
		start := daysAgo(35)
		frozen.FreezeStart = &start
		f := newSubFixture(t,
			validSub("sub-lapsed", 11, 10),
			validSub("sub-live", 1, 10),
			frozen,
		)
		f.subs.Skipped = 2

		n, err := f.uc.ExpireDue(ctx)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if n != 1 || len(f.subs.InvalidMarked) != 1 || f.subs.InvalidMarked[0] != "sub-lapsed" {
			t.Fatalf("expected only sub-lapsed, got n=%d marked=%v", n, f.subs.InvalidMarked)
		}
		if f.locker.Held || f.locker.Unlocked != 1 {
			t.Error("sweep lock should be released")
		}
	})

	t.Run("should skip when another replica holds the lock", func(t *testing.T) {
		f := newSubFixture(t, validSub("sub-lapsed", 11, 10))
		f.locker.Held = true
		n, err := f.uc.ExpireDue(ctx)
		if err != nil || n != 0 {
			t.Fatalf("expected a silent skip, got n=%d err=%v", n, err)
		}
		if len(f.subs.InvalidMarked) != 0 {
			t.Error("nothing should be written without the lock")
		}
	})

	t.Run("should keep a renewal committed after listing", func(t *testing.T) {
		f := newSubFixture(t, validSub("sub-1", 11, 10))
		f.subs.ListValidFunc = func(ctx context.Context, tx repository.Tx) ([]*model.Subscription, int, error) {
			stale, _, _ := f.subs.ListAll(ctx, tx)
			if _, err := f.uc.Renew(ctx, "sub-1", "vip", 30); err != nil {
				t.Fatalf("renew: %v", err)
			}
			return stale, 0, nil
		}

		n, err := f.uc.ExpireDue(ctx)
		if err != nil || n != 0 {
			t.Fatalf("expected no expiry, got n=%d err=%v", n, err)
		}
		if len(f.subs.InvalidMarked) != 0 {
			t.Fatalf("renewed subscription was invalidated: %v", f.subs.InvalidMarked)
		}
		st, err := f.uc.Get(ctx, "sub-1")
		if err != nil {
			t.Fatal(err)
		}
		if !st.Subscription.IsValid || st.State != model.SubscriptionStateActive {
			t.Fatalf("expected an ACTIVE renewal, got %s valid=%v", st.State, st.Subscription.IsValid)
		}
	})

	t.Run("should continue past a failed write", func(t *testing.T) {
		f := newSubFixture(t, validSub("sub-a", 11, 10), validSub("sub-b", 11, 10))
		f.subs.MarkInvalidFunc = func(_ context.Context, _ repository.Tx, id string) error {
			if id == "sub-a" {
				return domain.ErrOperationFailed
			}
			return nil
		}
		n, err := f.uc.ExpireDue(ctx)
		if err != nil || n != 1 {
			t.Fatalf("expected one expiry, got n=%d err=%v", n, err)
		}
	})
}

func TestSubscriptionUseCase_HasAccess(t *testing.T) {
	ctx := context.Background()
	composite := validSub("sub-combo", 1, 30)
	composite.Type = "investment&mega"
	lapsed := validSub("sub-old", 40, 10)
	lapsed.Type = "all"
	f := newSubFixture(t, composite, lapsed)

	testCases := []struct {
		plan model.PlanToken
		want bool
	}{
		{model.PlanInvestment, true},
		{model.PlanMega, true},
		{model.PlanVIP, false},
	}
	for _, tc := range testCases {
		got, err := f.uc.HasAccess(ctx, "user-1", tc.plan)
		if err != nil {
			t.Fatalf("%s: %v", tc.plan, err)
		}
		if got != tc.want {
			t.Errorf("%s: expected %v, got %v", tc.plan, tc.want, got)
		}
	}
	if _, err := f.uc.HasAccess(ctx, "user-1", "gold"); !errors.Is(err, domain.ErrUnknownPlan) {
		t.Fatalf("expected ErrUnknownPlan, got %v", err)
	}
}
