package core_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rtrvrtg/contact-form-connect/internal/core"
)

func deliveryStatus(t *testing.T, f fixture, id string) core.Delivery {
	t.Helper()
	d, err := f.store.GetDelivery(context.Background(), id)
	if err != nil {
		t.Fatalf("GetDelivery() error = %v", err)
	}
	return d
}

func TestProcessPending_Delivers(t *testing.T) {
	f := newFixture(t, 3, false)
	ctx := context.Background()

	msg, ds, err := f.svc.Submit(ctx, "contact", submission(), "")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	n, err := f.svc.ProcessPending(ctx, core.WorkerConfig{BatchSize: 10})
	if err != nil {
		t.Fatalf("ProcessPending() error = %v", err)
	}
	// The limiter has two slots, so one poll claims two deliveries.
	if n != 2 {
		t.Errorf("ProcessPending() = %d, want 2", n)
	}
	if n, _ = f.svc.ProcessPending(ctx, core.WorkerConfig{}); n != 1 {
		t.Errorf("second ProcessPending() = %d, want 1", n)
	}

	for _, d := range ds {
		got := deliveryStatus(t, f, d.ID)
		if got.Status != core.StatusDelivered || got.Attempts != 1 || got.DeliveredAt == nil {
			t.Errorf("delivery %s = %+v, want delivered after one attempt", d.ID, got)
		}
	}
	if got := sendCount(msg.ID); got != 3 {
		t.Errorf("sends = %d, want 3", got)
	}
	if got := f.svc.Limiter().ActiveCount(); got != 0 {
		t.Errorf("ActiveCount() = %d after processing", got)
	}
}

func TestProcessPending_RetriesThenFails(t *testing.T) {
	f := newFixture(t, 1, false)
	ctx := context.Background()
	cfg := core.WorkerConfig{MaxAttempts: 3}

	msg, ds, err := f.svc.Submit(ctx, "contact", submission(), "")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	failSends(msg.ID, errors.New("http 503: unavailable"))
	id := ds[0].ID

	tests := []struct {
		wantStatus   core.DeliveryStatus
		wantAttempts int
	}{
		{core.StatusPending, 1},
		{core.StatusPending, 2},
		{core.StatusFailed, 3},
	}
	for i, tt := range tests {
		if _, err := f.svc.ProcessPending(ctx, cfg); err != nil {
			t.Fatalf("poll %d: ProcessPending() error = %v", i+1, err)
		}
		got := deliveryStatus(t, f, id)
		if got.Status != tt.wantStatus || got.Attempts != tt.wantAttempts {
			t.Errorf("poll %d: status %s attempts %d, want %s %d", i+1, got.Status, got.Attempts, tt.wantStatus, tt.wantAttempts)
		}
		if got.LastError == "" {
			t.Errorf("poll %d: LastError is empty", i+1)
		}
	}

	// Failed deliveries are not claimed again.
	if n, _ := f.svc.ProcessPending(ctx, cfg); n != 0 {
		t.Errorf("ProcessPending() after failure = %d, want 0", n)
	}

	failSends(msg.ID, nil)
	d, err := f.svc.Retry(ctx, id)
	if err != nil {
		t.Fatalf("Retry() error = %v", err)
	}
	if d.Status != core.StatusPending || d.Attempts != 0 || d.LastError != "" {
		t.Errorf("Retry() = %+v, want pending with no attempts", d)
	}

	if _, err := f.svc.ProcessPending(ctx, cfg); err != nil {
		t.Fatalf("ProcessPending() error = %v", err)
	}
	if got := deliveryStatus(t, f, id); got.Status != core.StatusDelivered {
		t.Errorf("status after retry = %s, want delivered", got.Status)
	}

	if _, err := f.svc.Retry(ctx, id); !errors.Is(err, core.ErrNotRetryable) {
		t.Errorf("Retry(delivered) error = %v, want ErrNotRetryable", err)
	}
	if _, err := f.svc.Retry(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("Retry(missing) error = %v, want ErrNotFound", err)
	}
}

func TestProcessPending_PermanentFailure(t *testing.T) {
	f := newFixture(t, 1, false)
	ctx := context.Background()

	_, ds, err := f.svc.Submit(ctx, "contact", submission(), "")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if err := f.store.DeleteConnector(ctx, f.conns[0].ID); err != nil {
		t.Fatalf("DeleteConnector() error = %v", err)
	}

	if _, err := f.svc.ProcessPending(ctx, core.WorkerConfig{MaxAttempts: 5}); err != nil {
		t.Fatalf("ProcessPending() error = %v", err)
	}
	got := deliveryStatus(t, f, ds[0].ID)
	if got.Status != core.StatusFailed || got.Attempts != 1 {
		t.Errorf("delivery = status %s attempts %d, want failed after 1", got.Status, got.Attempts)
	}
}

func TestDeliver_PermanentErrors(t *testing.T) {
	f := newFixture(t, 1, false)
	ctx := context.Background()

	_, ds, err := f.svc.Submit(ctx, "contact", submission(), "")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	d := ds[0]

	entity := f.conns[0]
	entity.ServiceName = "no_such_service"
	if _, err := f.store.SaveConnector(ctx, entity); err != nil {
		t.Fatalf("SaveConnector() error = %v", err)
	}

	err = f.svc.Deliver(ctx, d)
	if !core.IsPermanent(err) {
		t.Errorf("Deliver() error = %v, want permanent", err)
	}

	if core.IsPermanent(errors.New("http 500")) {
		t.Error("IsPermanent(plain error) = true")
	}
}

func TestStartWorker_StopsOnCancel(t *testing.T) {
	f := newFixture(t, 1, false)
	ctx, cancel := context.WithCancel(context.Background())

	_, ds, err := f.svc.Submit(ctx, "contact", submission(), "")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	done := make(chan struct{})
	go func() {
		f.svc.StartWorker(ctx, core.WorkerConfig{})
		close(done)
	}()

	// The first poll runs before StartWorker waits on its ticker.
	for i := 0; i < 100; i++ {
		if deliveryStatus(t, f, ds[0].ID).Status == core.StatusDelivered {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	<-done

	if got := deliveryStatus(t, f, ds[0].ID).Status; got != core.StatusDelivered {
		t.Errorf("status = %s, want delivered", got)
	}
}
