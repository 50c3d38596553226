package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/josh-kwaku/booking-payments/internal/handler"
	"github.com/josh-kwaku/booking-payments/internal/logging"
)

func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				if err == http.ErrAbortHandler {
					panic(err)
				}
				log := logging.FromContext(r.Context())
				log.Error("panic recovered",
					"error", err,
					"path", r.URL.Path,
					"stack", string(debug.Stack()),
				)
				handler.RespondAppError(w, handler.ErrInternalError, map[string]string{
					"request_id": TraceIDFromContext(r.Context()),
				})
			}
		}()
		next.ServeHTTP(w, r)
	})
}
