package core_test

import (
	"context"
	"testing"
	"time"

	"github.com/rtrvrtg/contact-form-connect/internal/core"
)

func TestPurgeOld(t *testing.T) {
	f := newFixture(t, 2, false)
	ctx := context.Background()

	_, ds, err := f.svc.Submit(ctx, "contact", submission(), "")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	// One delivered, one still pending.
	if n, err := f.svc.ProcessPending(ctx, core.WorkerConfig{BatchSize: 1}); err != nil || n != 1 {
		t.Fatalf("ProcessPending() = %d, %v", n, err)
	}

	if n := f.svc.PurgeOld(ctx, time.Hour); n != 0 {
		t.Errorf("PurgeOld(1h) = %d, want 0", n)
	}

	time.Sleep(5 * time.Millisecond)
	if n := f.svc.PurgeOld(ctx, time.Millisecond); n != 1 {
		t.Errorf("PurgeOld(1ms) = %d, want 1", n)
	}

	left, err := f.store.ListDeliveries(ctx, "", 0)
	if err != nil {
		t.Fatalf("ListDeliveries() error = %v", err)
	}
	if len(left) != 1 || left[0].Status != core.StatusPending {
		t.Errorf("remaining = %+v, want one pending delivery", left)
	}
	if len(ds) != 2 {
		t.Errorf("deliveries = %d, want 2", len(ds))
	}
}

func TestStartRetention(t *testing.T) {
	f := newFixture(t, 1, false)

	done := make(chan struct{})
	go func() {
		f.svc.StartRetention(context.Background(), core.RetentionConfig{})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("StartRetention() with zero retention did not return")
	}

	ctx, cancel := context.WithCancel(context.Background())
	done = make(chan struct{})
	go func() {
		f.svc.StartRetention(ctx, core.RetentionConfig{Retention: time.Hour, CheckInterval: 10 * time.Millisecond})
		close(done)
	}()
	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("StartRetention() did not stop on cancel")
	}
}
