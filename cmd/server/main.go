package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/rtrvrtg/contact-form-connect/internal/config"
	"github.com/rtrvrtg/contact-form-connect/internal/connector"
	_ "github.com/rtrvrtg/contact-form-connect/internal/connector/all" // Register all services
	"github.com/rtrvrtg/contact-form-connect/internal/core"
	"github.com/rtrvrtg/contact-form-connect/internal/logging"
	"github.com/rtrvrtg/contact-form-connect/internal/store"
	"github.com/rtrvrtg/contact-form-connect/internal/transport"
	"github.com/rtrvrtg/contact-form-connect/internal/web"
)

func main() {
	// Overload so a .env file wins over the inherited environment.
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("configuration loaded", "config", cfg.String())

	ctx := context.Background()

	st, closeStore, err := openStore(ctx, cfg.Database)
	if err != nil {
		slog.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	var observer connector.Observer = connector.NopObserver{}
	if cfg.Delivery.Verbose {
		observer = connector.NewLoggingObserver(nil)
	}

	service := core.NewService(st, core.Options{
		Env: connector.Env{
			Observer: observer,
			HTTP: transport.Config{
				Timeout:   cfg.Outbound.Timeout,
				RateLimit: cfg.Outbound.RateLimit,
				RateBurst: cfg.Outbound.RateBurst,
				UserAgent: cfg.Outbound.UserAgent,
			},
			SheetsBaseURL: cfg.Outbound.SheetsBaseURL,
		},
		Limiter:   core.NewLimiter(cfg.Delivery.Workers, cfg.Delivery.MaxWaitTime),
		Separator: cfg.Flatten.Separator,
		SkipKeys:  cfg.Flatten.SkipKeys,
	})
	slog.Info("services registered", "services", connector.Services())

	server := web.NewServer(service, *cfg)

	jobCtx, cancelJobs := context.WithCancel(context.Background())
	go service.StartWorker(jobCtx, core.WorkerConfig{
		PollInterval: cfg.Delivery.PollInterval,
		BatchSize:    cfg.Delivery.BatchSize,
		MaxAttempts:  cfg.Delivery.MaxAttempts,
		SendTimeout:  cfg.Delivery.SendTimeout,
	})
	go service.StartRetention(jobCtx, core.RetentionConfig{
		Retention:     cfg.Delivery.Retention,
		CheckInterval: cfg.Delivery.PurgeInterval,
	})
	go server.SweepLimiters(jobCtx, time.Minute)

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if status := service.Limiter().Status(); status.Active > 0 {
			slog.Info("waiting for deliveries to complete", "active", status.Active)
			if err := service.Limiter().WaitForDrain(shutdownCtx); err != nil {
				slog.Warn("deliveries did not complete in time", "error", err)
			} else {
				slog.Info("all deliveries completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

// openStore connects to PostgreSQL when a URL is configured and otherwise
// falls back to an in-memory store.
func openStore(ctx context.Context, cfg config.DatabaseConfig) (core.Store, func(), error) {
	if !cfg.UsesDatabase() {
		slog.Warn("DATABASE_URL not set, keeping data in memory; it is lost on exit")
		return store.NewMemory(), func() {}, nil
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, nil, err
	}
	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	if err := store.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}

	if u, err := url.Parse(cfg.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}
	return store.NewPostgres(pool), pool.Close, nil
}
