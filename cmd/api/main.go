package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/josh-kwaku/booking-payments/internal/config"
	"github.com/josh-kwaku/booking-payments/internal/handler"
	"github.com/josh-kwaku/booking-payments/internal/logging"
	"github.com/josh-kwaku/booking-payments/internal/notify"
	"github.com/josh-kwaku/booking-payments/internal/obs"
	"github.com/josh-kwaku/booking-payments/internal/processor"
	"github.com/josh-kwaku/booking-payments/internal/repository"
	"github.com/josh-kwaku/booking-payments/internal/service/payment"
	"github.com/josh-kwaku/booking-payments/internal/service/reconcile"
	"github.com/josh-kwaku/booking-payments/migrations"
)

const serviceName = "payments-api"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.Init(serviceName, cfg.LogLevel, cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := obs.InitTracer(ctx, serviceName, cfg.AppEnv, cfg.OTLPEndpoint)
	if err != nil {
		slog.Error("failed to init tracer", "error", err)
		os.Exit(1)
	}

	db, err := repository.NewPostgresDB(ctx, cfg.DatabaseURL, repository.PoolConfig{
		MaxOpenConns:     cfg.DBMaxOpenConns,
		MaxIdleConns:     cfg.DBMaxIdleConns,
		ConnMaxLifetimeS: cfg.DBConnMaxLifetimeS,
		ConnMaxIdleTimeS: cfg.DBConnMaxIdleTimeS,
		PingAttempts:     30,
	})
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	applied, err := migrations.Up(ctx, db)
	if err != nil {
		slog.Error("failed to apply migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("migrations applied", "files", applied)

	checks := map[string]handler.Checker{"database": db}
	var notifier reconcile.Notifier
	if cfg.NotificationsEnabled() {
		pub, err := notify.NewPublisher(cfg.AMQPURL, cfg.NotifyExchange)
		if err != nil {
			slog.Error("failed to connect to message broker", "error", err)
			os.Exit(1)
		}
		defer pub.Close()
		notifier = pub
		checks["broker"] = pub
		slog.Info("payment notifications enabled", "exchange", cfg.NotifyExchange)
	}

	payments := repository.NewPaymentRepository(db)
	events := repository.NewPaymentEventRepository(db)
	idempotency := repository.NewIdempotencyRepository(db)

	client := processor.NewClient(processor.Config{
		BaseURL:   cfg.ProcessorBaseURL,
		SecretKey: cfg.ProcessorSecretKey,
		Timeout:   cfg.ProcessorTimeout(),
	})
	engine := reconcile.NewEngine(db, payments, events, notifier, logger)
	paymentSvc := payment.NewService(payments, events, client, engine, cfg)

	mux := routes(routeDeps{
		payments:    handler.NewPaymentHandler(paymentSvc),
		webhooks:    handler.NewWebhookHandler(paymentSvc, cfg.WebhookSecret),
		health:      handler.NewHealthHandler(checks),
		idempotency: idempotency,
		ttl:         cfg.IdempotencyTTL(),
	})

	go runIdempotencyJanitor(ctx, idempotency, time.Hour)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           otelhttp.NewHandler(mux, serviceName),
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.ProcessorTimeout() + 15*time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("server started", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}
	if err := shutdownTracer(shutdownCtx); err != nil {
		slog.Warn("tracer shutdown failed", "error", err)
	}
	slog.Info("server stopped")
}

type idempotencyCleaner interface {
	CleanExpired(ctx context.Context) (int64, error)
}

func runIdempotencyJanitor(ctx context.Context, repo idempotencyCleaner, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := repo.CleanExpired(ctx)
			if err != nil {
				slog.Error("failed to purge idempotency cache", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("purged expired idempotency keys", "count", n)
			}
		}
	}
}
