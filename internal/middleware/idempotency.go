package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/josh-kwaku/booking-payments/internal/handler"
	"github.com/josh-kwaku/booking-payments/internal/logging"
	"github.com/josh-kwaku/booking-payments/internal/repository"
)

const idempotencyHeader = "Idempotency-Key"

type idempotencyRepository interface {
	Get(ctx context.Context, key string) (*repository.IdempotencyRecord, error)
	Reserve(ctx context.Context, key, requestHash string, expiresAt time.Time) (bool, error)
	Complete(ctx context.Context, key string, statusCode int, body []byte) error
	Release(ctx context.Context, key string) error
}

// Idempotency makes a keyed POST run at most once per TTL. The first request
// reserves the key, later ones get its stored response, and a duplicate that
// arrives while the first is still running is rejected. Responses of 500 and
// above release the key so the client can retry.
func Idempotency(repo idempotencyRepository, ttl time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(idempotencyHeader)
			if key == "" || r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}

			ctx := logging.With(r.Context(), "idempotency_key", key)
			log := logging.FromContext(ctx)
			r = r.WithContext(ctx)

			body, err := io.ReadAll(r.Body)
			if err != nil {
				handler.RespondAppError(w, handler.ErrInvalidRequest, nil)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))
			reqHash := requestHash(r, body)

			existing, err := repo.Get(ctx, key)
			if err != nil {
				log.Error("idempotency lookup failed", "error", err)
				handler.RespondAppError(w, handler.ErrInternalError, nil)
				return
			}
			if existing == nil {
				won, err := repo.Reserve(ctx, key, reqHash, time.Now().UTC().Add(ttl))
				if err != nil {
					log.Error("idempotency reserve failed", "error", err)
					handler.RespondAppError(w, handler.ErrInternalError, nil)
					return
				}
				if !won {
					if existing, err = repo.Get(ctx, key); err != nil {
						log.Error("idempotency lookup failed", "error", err)
						handler.RespondAppError(w, handler.ErrInternalError, nil)
						return
					}
					if existing == nil {
						handler.RespondAppError(w, handler.ErrIdempotencyInFlight, nil)
						return
					}
				}
			}
			if existing != nil {
				replay(w, existing, reqHash, log)
				return
			}

			rec := &responseRecorder{ResponseWriter: w, body: &bytes.Buffer{}, statusCode: http.StatusOK}
			settled := false
			defer func() {
				if settled {
					return
				}
				if err := repo.Release(context.WithoutCancel(ctx), key); err != nil {
					log.Error("idempotency release failed", "error", err)
				}
			}()

			next.ServeHTTP(rec, r)

			if rec.statusCode >= http.StatusInternalServerError {
				return
			}
			if err := repo.Complete(context.WithoutCancel(ctx), key, rec.statusCode, rec.body.Bytes()); err != nil {
				log.Error("idempotency store failed", "error", err)
				return
			}
			settled = true
		})
	}
}

func replay(w http.ResponseWriter, rec *repository.IdempotencyRecord, reqHash string, log *slog.Logger) {
	switch {
	case rec.RequestHash != reqHash:
		handler.RespondAppError(w, handler.ErrIdempotencyConflict, nil)
	case rec.InFlight():
		handler.RespondAppError(w, handler.ErrIdempotencyInFlight, nil)
	default:
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Idempotent-Replayed", "true")
		w.WriteHeader(rec.StatusCode)
		if _, err := w.Write(rec.ResponseBody); err != nil {
			log.Error("failed to write idempotent replay", "error", err)
		}
	}
}

// requestHash binds a key to one method, route and body.
func requestHash(r *http.Request, body []byte) string {
	h := sha256.New()
	h.Write([]byte(r.Method))
	h.Write([]byte{0})
	h.Write([]byte(r.URL.Path))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       *bytes.Buffer
}

func (r *responseRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *responseRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }
