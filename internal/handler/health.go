package handler

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"
)

const readinessTimeout = 2 * time.Second

// Checker reports whether one dependency is usable.
type Checker interface {
	PingContext(ctx context.Context) error
}

type HealthHandler struct {
	checks map[string]Checker
}

// NewHealthHandler takes the dependencies readiness depends on, keyed by the
// name reported in the response. Nil checkers are skipped.
func NewHealthHandler(checks map[string]Checker) *HealthHandler {
	live := make(map[string]Checker, len(checks))
	for name, c := range checks {
		if c != nil {
			live[name] = c
		}
	}
	return &HealthHandler{checks: live}
}

func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := "ok"
	code := http.StatusOK
	results := make(map[string]string, len(names))
	for _, name := range names {
		if err := h.checks[name].PingContext(ctx); err != nil {
			slog.Warn("readiness check failed", "check", name, "error", err)
			results[name] = "down"
			status, code = "down", http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}

	RespondJSON(w, code, map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    results,
	})
}
