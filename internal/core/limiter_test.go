package core

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLimiter_Slots(t *testing.T) {
	l := NewLimiter(2, time.Second)
	ctx := context.Background()

	steps := []struct {
		name          string
		do            func()
		wantActive    int
		wantAvailable int
	}{
		{"initial", func() {}, 0, 2},
		{"acquire", func() { mustAcquire(t, l, ctx) }, 1, 1},
		{"try acquire", func() {
			if !l.TryAcquire() {
				t.Fatal("TryAcquire() = false with a free slot")
			}
		}, 2, 0},
		{"try acquire when full", func() {
			if l.TryAcquire() {
				t.Fatal("TryAcquire() = true when full")
			}
		}, 2, 0},
		{"release", l.Release, 1, 1},
		{"release again", l.Release, 0, 2},
	}

	for _, s := range steps {
		s.do()
		st := l.Status()
		if st.Active != s.wantActive || st.Available != s.wantAvailable || st.MaxConcurrent != 2 {
			t.Errorf("%s: status = %+v, want active %d available %d", s.name, st, s.wantActive, s.wantAvailable)
		}
	}
}

func mustAcquire(t *testing.T, l *Limiter, ctx context.Context) {
	t.Helper()
	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
}

func TestLimiter_WaitExpires(t *testing.T) {
	l := NewLimiter(1, 50*time.Millisecond)
	ctx := context.Background()
	mustAcquire(t, l, ctx)
	defer l.Release()

	start := time.Now()
	err := l.Acquire(ctx)
	if !errors.Is(err, ErrTooManyDeliveries) {
		t.Errorf("Acquire() error = %v, want ErrTooManyDeliveries", err)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("Acquire() gave up after %v", elapsed)
	}
}

func TestLimiter_CallerCancel(t *testing.T) {
	l := NewLimiter(1, 5*time.Second)
	mustAcquire(t, l, context.Background())
	defer l.Release()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- l.Acquire(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Acquire() error = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Acquire() did not return after cancel")
	}
}

func TestLimiter_NeverExceedsMax(t *testing.T) {
	const max = 3
	l := NewLimiter(max, time.Second)

	var running, peak int32
	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Acquire(context.Background()); err != nil {
				t.Errorf("Acquire() error = %v", err)
				return
			}
			defer l.Release()

			n := atomic.AddInt32(&running, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&running, -1)
		}()
	}
	wg.Wait()

	if peak > max {
		t.Errorf("peak concurrency = %d, want <= %d", peak, max)
	}
	if got := l.ActiveCount(); got != 0 {
		t.Errorf("ActiveCount() = %d after all released", got)
	}
}

func TestLimiter_WaitForDrain(t *testing.T) {
	l := NewLimiter(2, time.Second)
	mustAcquire(t, l, context.Background())

	done := make(chan error, 1)
	go func() { done <- l.WaitForDrain(context.Background()) }()

	select {
	case <-done:
		t.Fatal("WaitForDrain() returned with an active delivery")
	case <-time.After(150 * time.Millisecond):
	}

	l.Release()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("WaitForDrain() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("WaitForDrain() did not return after release")
	}
}

func TestLimiter_WaitForDrainCanceled(t *testing.T) {
	l := NewLimiter(1, time.Second)
	mustAcquire(t, l, context.Background())
	defer l.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := l.WaitForDrain(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("WaitForDrain() error = %v, want deadline exceeded", err)
	}
}

func TestLimiter_Defaults(t *testing.T) {
	if got := NewLimiter(0, 0).MaxConcurrent(); got != DefaultMaxConcurrentDeliveries {
		t.Errorf("MaxConcurrent() = %d, want %d", got, DefaultMaxConcurrentDeliveries)
	}
}
