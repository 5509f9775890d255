//go:build !integration

package sched

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"sports-tips-subscription/internal/domain/model"
	"sports-tips-subscription/internal/usecase"
)

type mockSubUC struct {
	usecase.SubscriptionUseCase
	sweeps int32
}

func (m *mockSubUC) ExpireDue(ctx context.Context) (int, error) {
	atomic.AddInt32(&m.sweeps, 1)
	return 1, nil
}

type mockNotifUC struct{ runs int32 }

func (m *mockNotifUC) CheckAndSendExpiryNotifications(ctx context.Context) (int, error) {
	atomic.AddInt32(&m.runs, 1)
	return 0, errors.New("smtp down")
}

type mockRates struct{ refreshes int32 }

func (m *mockRates) Refresh(ctx context.Context) error {
	atomic.AddInt32(&m.refreshes, 1)
	return nil
}
func (m *mockRates) Rates() []model.ExchangeRate {
	return []model.ExchangeRate{{Currency: "NGN", Rate: 1500}}
}
func (m *mockRates) FetchedAt() time.Time { return time.Now() }

func TestWorkers(t *testing.T) {
	nop := zerolog.Nop()
	subUC := &mockSubUC{}
	notifUC := &mockNotifUC{}
	rates := &mockRates{}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()
	err := RunAll(ctx, &nop,
		NewExpiryWorker(20*time.Millisecond, subUC, &nop),
		NewNotificationWorker(time.Hour, notifUC, &nop),
		NewRateRefreshWorker(time.Hour, rates, &nop),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if atomic.LoadInt32(&subUC.sweeps) < 2 {
		t.Errorf("expected repeated sweeps, got %d", subUC.sweeps)
	}
	// hourly workers run once at startup; a failing run must not stop the loop
	if atomic.LoadInt32(&notifUC.runs) != 1 {
		t.Errorf("expected one notification run, got %d", notifUC.runs)
	}
	if atomic.LoadInt32(&rates.refreshes) != 1 {
		t.Errorf("expected one rate refresh, got %d", rates.refreshes)
	}
}

type failingWorker struct{ err error }

func (f failingWorker) Name() string                  { return "failing" }
func (f failingWorker) Run(ctx context.Context) error { return f.err }

func TestRunAll_StopsOnWorkerError(t *testing.T) {
	nop := zerolog.Nop()
	boom := errors.New("boom")
	done := make(chan error, 1)
	go func() {
		done <- RunAll(context.Background(), &nop, failingWorker{err: boom}, NewExpiryWorker(time.Hour, &mockSubUC{}, &nop))
	}()
	select {
	case err := <-done:
		if !errors.Is(err, boom) {
			t.Fatalf("expected boom, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("RunAll did not stop the other workers")
	}
}

func TestRunTimeout(t *testing.T) {
	if runTimeout(time.Hour) != 2*time.Minute || runTimeout(time.Second) != time.Second {
		t.Fatal("unexpected per-run timeout")
	}
}
