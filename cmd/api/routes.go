package main

import (
	"net/http"
	"time"

	"github.com/josh-kwaku/booking-payments/internal/handler"
	"github.com/josh-kwaku/booking-payments/internal/middleware"
	"github.com/josh-kwaku/booking-payments/internal/repository"
)

type routeDeps struct {
	payments    *handler.PaymentHandler
	webhooks    *handler.WebhookHandler
	health      *handler.HealthHandler
	idempotency *repository.IdempotencyRepository
	ttl         time.Duration
}

func routes(d routeDeps) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", d.health.Liveness)
	mux.HandleFunc("GET /health/ready", d.health.Readiness)

	initiate := middleware.Idempotency(d.idempotency, d.ttl)(http.HandlerFunc(d.payments.Initiate))
	mux.Handle("POST /api/v1/payments/initiate", initiate)
	mux.HandleFunc("POST /api/v1/payments/verify", d.payments.Verify)
	mux.HandleFunc("POST /api/v1/payments/callback", d.webhooks.ReceiveCallback)
	mux.HandleFunc("GET /api/v1/payments/callback", d.webhooks.ReceiveCallback)
	mux.HandleFunc("GET /api/v1/payments/{reference}", d.payments.Get)

	return middleware.Chain(mux,
		middleware.Tracing,
		middleware.Logging,
		middleware.Recovery,
	)
}
