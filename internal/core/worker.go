package core

// worker.go runs the delivery queue.
//
// The worker polls the store every PollInterval, claims up to BatchSize
// pending deliveries and sends each under the Limiter with SendTimeout.
// A failed delivery goes back to pending until it has been attempted
// MaxAttempts times; failures that retrying cannot fix are failed at once.
// The worker logs progress and errors but never stops on a failed poll.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// WorkerConfig holds configuration for the delivery worker.
// Zero fields take defaults.
type WorkerConfig struct {
	PollInterval time.Duration // How often to poll (default: 5s)
	BatchSize    int           // Deliveries claimed per poll (default: 10)
	MaxAttempts  int           // Attempts before a delivery fails (default: 5)
	SendTimeout  time.Duration // Per delivery deadline (default: 60s)
}

func (c WorkerConfig) withDefaults() WorkerConfig {
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 10
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = 60 * time.Second
	}
	return c
}

// StartWorker processes the delivery queue until ctx is cancelled.
// Deliveries left running by a previous process are requeued first; the
// queue is then processed immediately and every PollInterval.
func (s *Service) StartWorker(ctx context.Context, cfg WorkerConfig) {
	cfg = cfg.withDefaults()
	slog.Info("delivery worker started",
		"poll_interval", cfg.PollInterval,
		"batch_size", cfg.BatchSize,
		"max_attempts", cfg.MaxAttempts,
	)

	if n, err := s.store.RequeueRunning(ctx); err != nil {
		slog.Error("requeue running deliveries failed", "error", err)
	} else if n > 0 {
		slog.Info("requeued interrupted deliveries", "count", n)
	}

	s.runPoll(ctx, cfg)

	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("delivery worker stopped")
			return
		case <-ticker.C:
			s.runPoll(ctx, cfg)
		}
	}
}

func (s *Service) runPoll(ctx context.Context, cfg WorkerConfig) {
	start := time.Now()
	n, err := s.ProcessPending(ctx, cfg)
	if err != nil {
		slog.Error("delivery poll failed", "error", err)
		return
	}
	if n > 0 {
		slog.Info("delivery poll completed",
			"deliveries", n,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}

// ProcessPending claims one batch of pending deliveries, sends them and waits
// for every send to finish. It returns how many deliveries it processed.
func (s *Service) ProcessPending(ctx context.Context, cfg WorkerConfig) (int, error) {
	cfg = cfg.withDefaults()

	limit := cfg.BatchSize
	if avail := s.limiter.Available(); avail < limit {
		limit = avail
	}
	if limit == 0 {
		return 0, nil
	}

	claimed, err := s.store.ClaimDeliveries(ctx, limit)
	if err != nil {
		return 0, err
	}

	var wg sync.WaitGroup
	for _, d := range claimed {
		if err := s.limiter.Acquire(ctx); err != nil {
			// Hand the delivery back untouched; it was never attempted.
			d.Status = StatusPending
			s.finish(context.WithoutCancel(ctx), d)
			continue
		}

		wg.Add(1)
		go func(d Delivery) {
			defer wg.Done()
			defer s.limiter.Release()
			s.process(ctx, d, cfg)
		}(d)
	}
	wg.Wait()

	return len(claimed), nil
}

func (s *Service) process(ctx context.Context, d Delivery, cfg WorkerConfig) {
	logger := slog.With(
		"delivery_id", d.ID,
		"connector_id", d.ConnectorID,
		"form", d.FormID,
		"message_id", d.Message.ID,
	)

	sendCtx, cancel := context.WithTimeout(ctx, cfg.SendTimeout)
	err := s.Deliver(sendCtx, d)
	cancel()

	d.Attempts++
	now := s.now().UTC()

	switch {
	case err == nil:
		d.Status = StatusDelivered
		d.LastError = ""
		d.DeliveredAt = &now
		logger.Info("delivery sent", "attempts", d.Attempts)

	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
		// Shutting down: not the connector's fault.
		d.Attempts--
		d.Status = StatusPending
		d.LastError = err.Error()
		logger.Info("delivery interrupted by shutdown")

	case IsPermanent(err) || d.Attempts >= cfg.MaxAttempts:
		d.Status = StatusFailed
		d.LastError = err.Error()
		logger.Error("delivery failed", "attempts", d.Attempts, "error", err)

	default:
		d.Status = StatusPending
		d.LastError = err.Error()
		logger.Warn("delivery attempt failed, will retry", "attempts", d.Attempts, "error", err)
	}

	d.UpdatedAt = now
	s.finish(context.WithoutCancel(ctx), d)
}

func (s *Service) finish(ctx context.Context, d Delivery) {
	if err := s.store.FinishDelivery(ctx, d); err != nil {
		slog.Error("store delivery result failed", "delivery_id", d.ID, "error", err)
	}
}

// Retry resets a failed delivery to pending with no attempts.
func (s *Service) Retry(ctx context.Context, id string) (Delivery, error) {
	d, err := s.store.GetDelivery(ctx, id)
	if err != nil {
		return Delivery{}, err
	}
	if d.Status != StatusFailed {
		return Delivery{}, fmt.Errorf("%w: delivery %s is %s", ErrNotRetryable, id, d.Status)
	}

	d.Status = StatusPending
	d.Attempts = 0
	d.LastError = ""
	d.UpdatedAt = s.now().UTC()
	if err := s.store.FinishDelivery(ctx, d); err != nil {
		return Delivery{}, err
	}
	return d, nil
}
