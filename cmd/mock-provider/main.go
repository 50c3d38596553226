package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"os"

	"github.com/josh-kwaku/booking-payments/internal/logging"
)

func main() {
	logging.Init("mock-provider", "info", os.Getenv("APP_ENV"))

	addr := ":8081"
	if v := os.Getenv("MOCK_PROVIDER_ADDR"); v != "" {
		addr = v
	}
	store := newTransactionStore(os.Getenv("MOCK_PROVIDER_PUBLIC_URL"))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]string{"status": "ok"}); err != nil {
			slog.Error("failed to write health response", "error", err)
		}
	})
	mux.HandleFunc("POST /v1/transaction/initialize", store.initialize)
	mux.HandleFunc("GET /v1/transaction/verify/{reference}", store.verify)
	mux.HandleFunc("POST /v1/transaction/{reference}/status", store.setStatus)

	slog.Info("mock provider started", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}
