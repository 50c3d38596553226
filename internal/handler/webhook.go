package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/josh-kwaku/booking-payments/internal/domain"
	"github.com/josh-kwaku/booking-payments/internal/logging"
	"github.com/josh-kwaku/booking-payments/internal/service/payment"
)

var signatureHeaders = []string{"Chapa-Signature", "X-Chapa-Signature"}

type callbackService interface {
	HandleCallback(ctx context.Context, raw json.RawMessage) (*payment.CallbackResult, error)
}

type WebhookHandler struct {
	payments callbackService
	secret   string
}

// NewWebhookHandler builds the processor callback handler. An empty secret
// disables signature checks.
func NewWebhookHandler(payments callbackService, secret string) *WebhookHandler {
	return &WebhookHandler{payments: payments, secret: secret}
}

type callbackResponse struct {
	Message       string `json:"message"`
	TxRef         string `json:"tx_ref"`
	PaymentStatus string `json:"payment_status"`
}

func (h *WebhookHandler) ReceiveCallback(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		log.Error("failed to read callback body", "error", err)
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	// Query-string callbacks are signed over the raw query.
	signed := body
	if len(strings.TrimSpace(string(body))) == 0 {
		signed = []byte(r.URL.RawQuery)
	}
	if h.secret != "" && !verifyHMAC(signed, callbackSignature(r), h.secret) {
		log.Warn("callback signature verification failed")
		RespondAppError(w, ErrInvalidSignature, nil)
		return
	}

	raw, err := callbackDocument(body, r.URL.Query())
	if err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	res, err := h.payments.HandleCallback(r.Context(), raw)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			log.Warn("callback for unknown payment", "error", err)
		case errors.Is(err, domain.ErrValidation):
		default:
			log.Error("callback processing failed", "error", err)
		}
		RespondDomainError(w, err)
		return
	}

	log.Info("callback processed",
		"merchant_reference", res.Payment.MerchantReference,
		"payment_status", res.Payment.State,
		"transitioned", res.Outcome.Transitioned,
	)

	RespondSuccess(w, http.StatusOK, callbackResponse{
		Message:       "Webhook received",
		TxRef:         res.Payment.MerchantReference,
		PaymentStatus: string(res.Payment.State),
	})
}

// callbackDocument returns the JSON body, or the query parameters as a JSON
// object when the body is empty.
func callbackDocument(body []byte, query url.Values) (json.RawMessage, error) {
	if len(strings.TrimSpace(string(body))) > 0 {
		return json.RawMessage(body), nil
	}
	doc := make(map[string]string, len(query))
	for k := range query {
		doc[k] = query.Get(k)
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func callbackSignature(r *http.Request) string {
	for _, h := range signatureHeaders {
		if sig := r.Header.Get(h); sig != "" {
			return sig
		}
	}
	return ""
}

func verifyHMAC(body []byte, signature, secret string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature)))
}
