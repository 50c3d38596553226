package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubChecker struct{ err error }

func (s stubChecker) PingContext(context.Context) error { return s.err }

func TestHealthHandler_Readiness(t *testing.T) {
	tests := []struct {
		name       string
		checks     map[string]Checker
		wantCode   int
		wantStatus string
		wantChecks map[string]any
	}{
		{
			name:       "all dependencies up",
			checks:     map[string]Checker{"database": stubChecker{}, "broker": stubChecker{}},
			wantCode:   http.StatusOK,
			wantStatus: "ok",
			wantChecks: map[string]any{"database": "ok", "broker": "ok"},
		},
		{
			name:       "broker down",
			checks:     map[string]Checker{"database": stubChecker{}, "broker": stubChecker{err: errors.New("closed")}},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "down",
			wantChecks: map[string]any{"database": "ok", "broker": "down"},
		},
		{
			name:       "nil checker is skipped",
			checks:     map[string]Checker{"database": stubChecker{}, "broker": nil},
			wantCode:   http.StatusOK,
			wantStatus: "ok",
			wantChecks: map[string]any{"database": "ok"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(tt.checks)
			rr := httptest.NewRecorder()
			h.Readiness(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

			assert.Equal(t, tt.wantCode, rr.Code)
			var body map[string]any
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.Equal(t, tt.wantStatus, body["status"])
			assert.Equal(t, tt.wantChecks, body["checks"])
		})
	}
}

func TestHealthHandler_Liveness(t *testing.T) {
	rr := httptest.NewRecorder()
	NewHealthHandler(nil).Liveness(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"ok"`)
}
