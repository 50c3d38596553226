package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/booking-payments/internal/domain"
	"github.com/josh-kwaku/booking-payments/internal/service/payment"
	"github.com/josh-kwaku/booking-payments/internal/service/reconcile"
)

const testWebhookSecret = "test-secret-key"

type mockCallbackService struct {
	raw   json.RawMessage
	state domain.PaymentState
	err   error
}

func (m *mockCallbackService) HandleCallback(_ context.Context, raw json.RawMessage) (*payment.CallbackResult, error) {
	m.raw = raw
	if m.err != nil {
		return nil, m.err
	}
	var doc map[string]any
	_ = json.Unmarshal(raw, &doc)
	ref, _ := doc["tx_ref"].(string)
	p := &domain.Payment{ID: uuid.New(), MerchantReference: ref, State: m.state}
	return &payment.CallbackResult{Payment: p, Outcome: &reconcile.Outcome{Payment: p}}, nil
}

func signPayload(body, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyHMAC(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		signature string
		secret    string
		want      bool
	}{
		{
			name:      "valid signature",
			body:      `{"tx_ref":"abc"}`,
			signature: signPayload(`{"tx_ref":"abc"}`, testWebhookSecret),
			secret:    testWebhookSecret,
			want:      true,
		},
		{
			name:      "valid signature in upper case",
			body:      `{"tx_ref":"abc"}`,
			signature: strings.ToUpper(signPayload(`{"tx_ref":"abc"}`, testWebhookSecret)),
			secret:    testWebhookSecret,
			want:      true,
		},
		{
			name:      "wrong signature",
			body:      `{"tx_ref":"abc"}`,
			signature: "deadbeef",
			secret:    testWebhookSecret,
			want:      false,
		},
		{
			name:      "empty signature",
			body:      `{"tx_ref":"abc"}`,
			signature: "",
			secret:    testWebhookSecret,
			want:      false,
		},
		{
			name:      "wrong secret",
			body:      `{"tx_ref":"abc"}`,
			signature: signPayload(`{"tx_ref":"abc"}`, "other-secret"),
			secret:    testWebhookSecret,
			want:      false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := verifyHMAC([]byte(tc.body), tc.signature, tc.secret)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestReceiveCallback(t *testing.T) {
	validBody := `{"tx_ref":"BK1-0a1b2c3d","status":"success","id":"ptx_1"}`

	tests := []struct {
		name       string
		secret     string
		method     string
		target     string
		body       string
		sigHeader  string
		sig        func(body string) string
		state      domain.PaymentState
		svcErr     error
		wantStatus int
		wantCode   string
		wantState  string
	}{
		{
			name:       "unsigned callback accepted without secret",
			method:     http.MethodPost,
			target:     "/api/v1/payments/callback",
			body:       validBody,
			wantStatus: http.StatusOK,
		},
		{
			name:       "signed callback",
			secret:     testWebhookSecret,
			method:     http.MethodPost,
			target:     "/api/v1/payments/callback",
			body:       validBody,
			sigHeader:  "Chapa-Signature",
			sig:        func(body string) string { return signPayload(body, testWebhookSecret) },
			wantStatus: http.StatusOK,
		},
		{
			name:       "alternate signature header",
			secret:     testWebhookSecret,
			method:     http.MethodPost,
			target:     "/api/v1/payments/callback",
			body:       validBody,
			sigHeader:  "X-Chapa-Signature",
			sig:        func(body string) string { return signPayload(body, testWebhookSecret) },
			wantStatus: http.StatusOK,
		},
		{
			name:       "missing signature",
			secret:     testWebhookSecret,
			method:     http.MethodPost,
			target:     "/api/v1/payments/callback",
			body:       validBody,
			wantStatus: http.StatusUnauthorized,
			wantCode:   "INVALID_SIGNATURE",
		},
		{
			name:       "bad signature",
			secret:     testWebhookSecret,
			method:     http.MethodPost,
			target:     "/api/v1/payments/callback",
			body:       validBody,
			sigHeader:  "Chapa-Signature",
			sig:        func(string) string { return "deadbeef" },
			wantStatus: http.StatusUnauthorized,
			wantCode:   "INVALID_SIGNATURE",
		},
		{
			name:       "signed query string callback",
			secret:     testWebhookSecret,
			method:     http.MethodGet,
			target:     "/api/v1/payments/callback?tx_ref=BK1-0a1b2c3d&status=success",
			sigHeader:  "Chapa-Signature",
			sig:        func(string) string { return signPayload("tx_ref=BK1-0a1b2c3d&status=success", testWebhookSecret) },
			wantStatus: http.StatusOK,
		},
		{
			name:       "unknown status on pending payment is acknowledged",
			method:     http.MethodPost,
			target:     "/api/v1/payments/callback",
			body:       `{"tx_ref":"BK1-0a1b2c3d","status":"processing"}`,
			state:      domain.PaymentStatePending,
			wantStatus: http.StatusOK,
			wantState:  "pending",
		},
		{
			name:       "duplicate webhook on failed payment is acknowledged",
			method:     http.MethodPost,
			target:     "/api/v1/payments/callback",
			body:       validBody,
			state:      domain.PaymentStateFailed,
			wantStatus: http.StatusOK,
			wantState:  "failed",
		},
		{
			name:       "unknown payment",
			method:     http.MethodPost,
			target:     "/api/v1/payments/callback",
			body:       validBody,
			svcErr:     fmt.Errorf("HandleCallback: %w", domain.ErrNotFound),
			wantStatus: http.StatusNotFound,
			wantCode:   "RESOURCE_NOT_FOUND",
		},
		{
			name:       "missing tx_ref",
			method:     http.MethodPost,
			target:     "/api/v1/payments/callback",
			body:       `{"status":"success"}`,
			svcErr:     &domain.ValidationError{Violations: []domain.FieldViolation{{Field: "tx_ref", Message: "required"}}},
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_FAILED",
		},
		{
			name:       "store failure",
			method:     http.MethodPost,
			target:     "/api/v1/payments/callback",
			body:       validBody,
			svcErr:     fmt.Errorf("connection refused"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "INTERNAL_ERROR",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			state := tc.state
			if state == "" {
				state = domain.PaymentStateCompleted
			}
			svc := &mockCallbackService{state: state, err: tc.svcErr}
			h := NewWebhookHandler(svc, tc.secret)

			req := httptest.NewRequest(tc.method, tc.target, strings.NewReader(tc.body))
			if tc.sig != nil {
				req.Header.Set(tc.sigHeader, tc.sig(tc.body))
			}
			rr := httptest.NewRecorder()

			h.ReceiveCallback(rr, req)

			assert.Equal(t, tc.wantStatus, rr.Code)

			var resp APIResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))

			if tc.wantCode == "" {
				require.True(t, resp.Success)
				data := resp.Data.(map[string]any)
				assert.Equal(t, "Webhook received", data["message"])
				wantState := tc.wantState
				if wantState == "" {
					wantState = "completed"
				}
				assert.Equal(t, wantState, data["payment_status"])
				assert.Equal(t, "BK1-0a1b2c3d", data["tx_ref"])
			} else {
				assert.False(t, resp.Success)
				require.NotNil(t, resp.Error)
				assert.Equal(t, tc.wantCode, resp.Error.Code)
			}
		})
	}
}

func TestReceiveCallback_QueryStringBecomesDocument(t *testing.T) {
	svc := &mockCallbackService{state: domain.PaymentStatePending}
	h := NewWebhookHandler(svc, "")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments/callback?trx_ref=BK9-x&status=pending", nil)
	rr := httptest.NewRecorder()
	h.ReceiveCallback(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"trx_ref":"BK9-x","status":"pending"}`, string(svc.raw))
}

func TestReceiveCallback_BodyPassedVerbatim(t *testing.T) {
	svc := &mockCallbackService{state: domain.PaymentStatePending}
	h := NewWebhookHandler(svc, "")

	body := `{"tx_ref":"BK1-0a1b2c3d","status":"weird","extra":{"nested":[1,2]}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/callback", strings.NewReader(body))
	rr := httptest.NewRecorder()
	h.ReceiveCallback(rr, req)

	require.Equal(t, http.StatusOK, rr.Code, "unknown statuses are still acknowledged")
	assert.Equal(t, body, string(svc.raw))
}
