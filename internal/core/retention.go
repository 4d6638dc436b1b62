package core

// retention.go deletes finished deliveries once they are older than the
// retention period. It runs immediately on start and then every
// CheckInterval; a failed run is logged and retried on the next tick.

import (
	"context"
	"log/slog"
	"time"
)

// RetentionConfig holds configuration for the retention job.
type RetentionConfig struct {
	Retention     time.Duration // Age after which finished deliveries go (0 disables)
	CheckInterval time.Duration // How often to run (default: 1h)
}

// StartRetention purges old deliveries until ctx is cancelled. It returns at
// once when Retention is zero.
func (s *Service) StartRetention(ctx context.Context, cfg RetentionConfig) {
	if cfg.Retention <= 0 {
		slog.Info("delivery retention disabled")
		return
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = time.Hour
	}
	slog.Info("delivery retention started",
		"retention", cfg.Retention,
		"check_interval", cfg.CheckInterval,
	)

	s.PurgeOld(ctx, cfg.Retention)

	ticker := time.NewTicker(cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("delivery retention stopped")
			return
		case <-ticker.C:
			s.PurgeOld(ctx, cfg.Retention)
		}
	}
}

// PurgeOld deletes delivered and failed deliveries not updated within
// retention and returns how many went.
func (s *Service) PurgeOld(ctx context.Context, retention time.Duration) int {
	start := time.Now()
	n, err := s.store.PurgeDeliveries(ctx, s.now().UTC().Add(-retention))
	if err != nil {
		slog.Error("purge deliveries failed", "error", err)
		return 0
	}
	if n > 0 {
		slog.Info("purged old deliveries",
			"deliveries", n,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
	return n
}
