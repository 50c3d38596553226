package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/booking-payments/internal/domain"
	"github.com/josh-kwaku/booking-payments/internal/logging"
	"github.com/josh-kwaku/booking-payments/internal/service/payment"
)

type paymentService interface {
	Initiate(ctx context.Context, req payment.InitiateRequest) (*payment.InitiateResult, error)
	Verify(ctx context.Context, lookup domain.PaymentLookup) (*payment.VerifyResult, error)
	History(ctx context.Context, lookup domain.PaymentLookup) (*domain.Payment, []domain.PaymentEvent, error)
}

type PaymentHandler struct {
	payments paymentService
}

func NewPaymentHandler(payments paymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

type initiatePaymentRequest struct {
	BookingReference string           `json:"booking_reference"`
	Amount           *decimal.Decimal `json:"amount"`
	Currency         string           `json:"currency"`
	Email            string           `json:"email"`
	FirstName        string           `json:"first_name"`
	LastName         string           `json:"last_name"`
}

type verifyPaymentRequest struct {
	TxRef         string `json:"tx_ref"`
	ProcessorTxID string `json:"processor_tx_id"`
}

type paymentDTO struct {
	ID               uuid.UUID       `json:"id"`
	TxRef            string          `json:"tx_ref"`
	ProcessorTxID    *string         `json:"processor_tx_id"`
	BookingReference string          `json:"booking_reference"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	Status           string          `json:"status"`
	LastRawResponse  json.RawMessage `json:"last_raw_response,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

func toPaymentDTO(p *domain.Payment) *paymentDTO {
	if p == nil {
		return nil
	}
	return &paymentDTO{
		ID:               p.ID,
		TxRef:            p.MerchantReference,
		ProcessorTxID:    p.ProcessorTransactionID,
		BookingReference: p.BookingReference,
		Amount:           p.Amount,
		Currency:         p.Currency,
		Status:           string(p.State),
		LastRawResponse:  p.LastRawResponse,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
}

type paymentEventDTO struct {
	Channel   string          `json:"channel"`
	Signal    string          `json:"signal"`
	FromState string          `json:"from_status"`
	ToState   string          `json:"to_status"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

type initiatePaymentResponse struct {
	PaymentID         uuid.UUID       `json:"payment_id"`
	TxRef             string          `json:"tx_ref"`
	Status            string          `json:"status"`
	CheckoutURL       string          `json:"checkout_url"`
	ProcessorResponse json.RawMessage `json:"processor_response"`
}

type verifyPaymentResponse struct {
	ProcessorResponse json.RawMessage `json:"processor_response"`
	UpdatedPayment    *paymentDTO     `json:"updated_payment"`
}

type paymentDetailResponse struct {
	Payment *paymentDTO       `json:"payment"`
	Events  []paymentEventDTO `json:"events"`
}

func (h *PaymentHandler) Initiate(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var req initiatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	svcReq := payment.InitiateRequest{
		BookingReference: req.BookingReference,
		Currency:         req.Currency,
		Email:            req.Email,
		FirstName:        req.FirstName,
		LastName:         req.LastName,
	}
	if req.Amount != nil {
		svcReq.Amount = *req.Amount
	}

	res, err := h.payments.Initiate(r.Context(), svcReq)
	if err != nil {
		if !errors.Is(err, domain.ErrValidation) {
			log.Warn("payment initiation failed", "booking_reference", req.BookingReference, "error", err)
		}
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, initiatePaymentResponse{
		PaymentID:         res.Payment.ID,
		TxRef:             res.MerchantReference,
		Status:            string(res.Payment.State),
		CheckoutURL:       res.CheckoutURL,
		ProcessorResponse: res.ProcessorResponse,
	})
}

func (h *PaymentHandler) Verify(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var req verifyPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	lookup, err := domain.LookupFrom(req.TxRef, req.ProcessorTxID)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	res, err := h.payments.Verify(r.Context(), lookup)
	if err != nil {
		log.Warn("payment verification failed", "lookup", lookup.String(), "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, verifyPaymentResponse{
		ProcessorResponse: res.ProcessorResponse,
		UpdatedPayment:    toPaymentDTO(res.Payment),
	})
}

func (h *PaymentHandler) Get(w http.ResponseWriter, r *http.Request) {
	ref := r.PathValue("reference")
	if ref == "" {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	p, events, err := h.payments.History(r.Context(), domain.ByMerchantReference(ref))
	if err != nil {
		logging.FromContext(r.Context()).Warn("payment lookup failed", "merchant_reference", ref, "error", err)
		RespondDomainError(w, err)
		return
	}

	resp := paymentDetailResponse{
		Payment: toPaymentDTO(p),
		Events:  make([]paymentEventDTO, 0, len(events)),
	}
	for _, e := range events {
		resp.Events = append(resp.Events, paymentEventDTO{
			Channel:   string(e.Channel),
			Signal:    string(e.Signal),
			FromState: string(e.FromState),
			ToState:   string(e.ToState),
			Payload:   e.Payload,
			CreatedAt: e.CreatedAt,
		})
	}

	RespondSuccess(w, http.StatusOK, resp)
}
